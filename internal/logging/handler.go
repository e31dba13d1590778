// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

// Rules are the default and per-module log levels, parsed from strings such as
// "error;ledger=debug;incentive=info".
type Rules struct {
	Default slog.Level
	Modules map[string]slog.Level
}

// ParseRules parses a rule string. A term without "=" (or with the module "*")
// sets the default level.
func ParseRules(s string) (Rules, error) {
	r := Rules{Default: slog.LevelError, Modules: map[string]slog.Level{}}
	for _, term := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' }) {
		parts := strings.SplitN(strings.TrimSpace(term), "=", 2)
		level, err := parseLevel(parts[len(parts)-1])
		if err != nil {
			return Rules{}, err
		}

		if len(parts) == 1 || parts[0] == "*" {
			r.Default = level
		} else {
			r.Modules[strings.ToLower(parts[0])] = level
		}
	}
	return r, nil
}

// parseLevel accepts the level names zerolog accepts.
func parseLevel(s string) (slog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return 0, errors.BadRequest.WithFormat("invalid log level %q", s)
	}
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return slog.LevelDebug, nil
	case zerolog.InfoLevel, zerolog.NoLevel:
		return slog.LevelInfo, nil
	case zerolog.WarnLevel:
		return slog.LevelWarn, nil
	case zerolog.Disabled:
		return slog.LevelError + 100, nil
	default:
		return slog.LevelError, nil
	}
}

func (r Rules) lowest() slog.Level {
	lowest := r.Default
	for _, l := range r.Modules {
		if l < lowest {
			lowest = l
		}
	}
	return lowest
}

// New returns a logger writing to w in the given format ("plain", "text",
// "json") filtered by the rules.
func New(w io.Writer, format, rules string) (*slog.Logger, error) {
	r, err := ParseRules(rules)
	if err != nil {
		return nil, err
	}
	h, err := NewHandler(w, format, r)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// NewHandler returns a handler filtering records by module.
func NewHandler(w io.Writer, format string, rules Rules) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: rules.lowest(),
	}

	var h slog.Handler
	switch format {
	case "", "text", "plain":
		// Use zerolog's console writer to write pretty logs
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.MessageKey {
				return a
			}
			if a.Value.Kind() == slog.KindString {
				return slog.Any(zerolog.MessageFieldName, a.Value)
			}
			return slog.String(zerolog.MessageFieldName, fmt.Sprint(a.Value.Any()))
		}
		h = slog.NewJSONHandler(ConsoleWriter(w, false), opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, errors.BadRequest.WithFormat("log format %q is not supported", format)
	}

	return &logHandler{
		handler:      h,
		defaultLevel: rules.Default,
		lowestLevel:  rules.lowest(),
		modules:      rules.Modules,
	}, nil
}

// ConsoleWriter returns zerolog's console writer configured the way the
// command line tools print logs.
func ConsoleWriter(w io.Writer, color bool) io.Writer {
	return &zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    !color,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			if ll, ok := i.(string); ok {
				return strings.ToUpper(ll)
			}
			return "????"
		},
		FormatMessage: func(i interface{}) string {
			s, ok := i.(string)
			if ok {
				return s
			}
			return fmt.Sprint(i)
		},
	}
}

type logHandler struct {
	handler      slog.Handler
	defaultLevel slog.Level
	lowestLevel  slog.Level
	modules      map[string]slog.Level

	// level is the level selected by a module attribute added with WithAttrs
	level *slog.Level
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	i := *h
	i.handler = h.handler.WithAttrs(attrs)
	if l, ok := h.moduleLevel(attrs); ok {
		i.level = &l
	}
	return &i
}

func (h *logHandler) WithGroup(name string) slog.Handler {
	i := *h
	i.handler = h.handler.WithGroup(name)
	return &i
}

func (h *logHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.lowestLevel {
		return false
	}
	if l, ok := h.moduleLevel(Attrs(ctx)); ok && level < l {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *logHandler) Handle(ctx context.Context, record slog.Record) error {
	level := h.defaultLevel
	if h.level != nil {
		level = *h.level
	}
	if l, ok := h.moduleLevel(Attrs(ctx)); ok {
		level = l
	}
	record.Attrs(func(a slog.Attr) bool {
		if l, ok := h.moduleLevel([]slog.Attr{a}); ok {
			level = l
			return false
		}
		return true
	})
	if record.Level < level {
		return nil
	}

	if attrs := Attrs(ctx); len(attrs) > 0 {
		record = record.Clone()
		record.AddAttrs(attrs...)
	}
	return h.handler.Handle(ctx, record)
}

func (h *logHandler) moduleLevel(attrs []slog.Attr) (slog.Level, bool) {
	for _, a := range attrs {
		if a.Key != "module" {
			continue
		}
		if l, ok := h.modules[strings.ToLower(a.Value.String())]; ok {
			return l, true
		}
		return h.defaultLevel, true
	}
	return 0, false
}
