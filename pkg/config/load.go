// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gopkg.in/yaml.v3"
)

type decoder = func([]byte, any) error
type encoder = func(any) ([]byte, error)

func formatOf(file string) (decoder, encoder, error) {
	switch s := filepath.Ext(file); s {
	case ".toml", ".tml":
		return toml.Unmarshal, marshalTOML, nil
	case ".yaml", ".yml":
		return yaml.Unmarshal, yaml.Marshal, nil
	case ".json":
		return json.Unmarshal, json.Marshal, nil
	default:
		return nil, nil, errors.BadRequest.WithFormat("unknown file type %q", s)
	}
}

func (c *Config) FilePath() string { return c.file }

// LoadFrom loads the file on top of the current values.
func (c *Config) LoadFrom(file string) error {
	dir, name := filepath.Split(file)
	if dir == "" {
		dir = "."
	}
	return c.LoadFromFS(os.DirFS(dir), name)
}

func (c *Config) LoadFromFS(fsys fs.FS, file string) error {
	decode, _, err := formatOf(file)
	if err != nil {
		return err
	}

	f, err := fsys.Open(file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	b, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	c.file = file
	c.fs = fsys
	return c.Load(b, decode)
}

// Load decodes the configuration. Keys are kebab-case.
func (c *Config) Load(b []byte, decode func([]byte, any) error) error {
	var v any
	err := decode(b, &v)
	if err != nil {
		return errors.BadRequest.WithFormat("decode config: %w", err)
	}

	b, err = json.Marshal(remap(v, kebab2camel, nil))
	if err != nil {
		return errors.BadRequest.WithFormat("decode config: %w", err)
	}
	err = json.Unmarshal(b, c)
	if err != nil {
		return errors.BadRequest.WithFormat("decode config: %w", err)
	}

	return c.applyDotEnv()
}

// applyDotEnv expands ${VAR} references from the .env file. Variables are
// resolved from the file alone, not from the process environment.
func (c *Config) applyDotEnv() error {
	if c.DotEnv == nil || !*c.DotEnv {
		return nil
	}

	fsys := c.fs
	if fsys == nil {
		fsys = os.DirFS(".")
	}
	file := filepath.Join(filepath.Dir(c.file), ".env")

	var expand func(name string) string
	var errs []error

	f, err := fsys.Open(file)
	switch {
	case err == nil:
		defer func() { _ = f.Close() }()

		env, err := godotenv.Parse(f)
		if err != nil {
			return err
		}

		expand = func(name string) string {
			value, ok := env[name]
			if ok {
				return value
			}
			errs = append(errs, fmt.Errorf("%q is not defined", name))
			return fmt.Sprintf("#!MISSING(%q)", name)
		}

	case errors.Is(err, fs.ErrNotExist):
		// Only an error if something references a variable
		expand = func(name string) string {
			if len(errs) == 0 {
				errs = append(errs, err)
			}
			return fmt.Sprintf("#!MISSING(%q)", name)
		}

	default:
		return err
	}

	expandEnv(reflect.ValueOf(c), expand)
	return errors.Join(errs...)
}

// SaveTo writes the configuration in the format given by the file extension.
func (c *Config) SaveTo(file string) error {
	_, encode, err := formatOf(file)
	if err != nil {
		return err
	}

	b, err := c.Marshal(encode)
	if err != nil {
		return err
	}

	return os.WriteFile(file, b, 0600)
}

func marshalTOML(v any) ([]byte, error) {
	b := new(bytes.Buffer)
	err := toml.NewEncoder(b).Encode(v)
	return b.Bytes(), err
}

// Marshal encodes the configuration with kebab-case keys.
func (c *Config) Marshal(encode func(any) ([]byte, error)) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	var v any
	err = json.Unmarshal(b, &v)
	if err != nil {
		return nil, err
	}

	return encode(remap(v, camel2kebab, float2int))
}

func remap(v any, mapKey func(string) string, mapValue func(reflect.Value) any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		u := make([]any, rv.Len())
		for i := range u {
			u[i] = remap(rv.Index(i).Interface(), mapKey, mapValue)
		}
		return u

	case reflect.Map:
		u := make(map[string]any, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			u[mapKey(it.Key().String())] = remap(it.Value().Interface(), mapKey, mapValue)
		}
		return u

	default:
		if mapValue != nil {
			return mapValue(rv)
		}
		return v
	}
}

var reKebab = regexp.MustCompile(`-[a-z]`)
var reCamel = regexp.MustCompile(`[a-z][A-Z]+`)

func kebab2camel(s string) string {
	return reKebab.ReplaceAllStringFunc(s, func(s string) string {
		return strings.ToUpper(s[1:])
	})
}

func camel2kebab(s string) string {
	return strings.ToLower(reCamel.ReplaceAllStringFunc(s, func(s string) string {
		return s[:1] + "-" + s[1:]
	}))
}

// float2int restores integers that JSON decoded as floats.
func float2int(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	default:
		return v.Interface()
	}
}

func expandEnv(v reflect.Value, expand func(string) string) {
	switch v.Kind() {
	case reflect.String:
		v.SetString(os.Expand(v.String(), expand))

	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			expandEnv(v.Elem(), expand)
		}

	case reflect.Struct:
		typ := v.Type()
		for i, n := 0, typ.NumField(); i < n; i++ {
			if typ.Field(i).IsExported() {
				expandEnv(v.Field(i), expand)
			}
		}
	}
}
