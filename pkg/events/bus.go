// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package events

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Publisher publishes events.
type Publisher interface {
	Publish(...Event)
}

// Bus delivers published events to subscribers in publication order.
type Bus struct {
	mu          *sync.Mutex
	subscribers []func(Event)
	logger      *slog.Logger
}

var _ Publisher = (*Bus)(nil)

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := new(Bus)
	b.mu = new(sync.Mutex)
	b.logger = logger.With("module", "events")
	return b
}

func (b *Bus) subscribe(sub func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish calls every subscriber with each event. A nil bus discards the
// events.
func (b *Bus) Publish(events ...Event) {
	if b == nil {
		return
	}

	b.mu.Lock()
	n := len(b.subscribers)
	subs := b.subscribers
	b.mu.Unlock()

	for _, event := range events {
		for _, sub := range subs[:n] {
			sub(event)
		}
	}
}

// SubscribeSync calls sub on the publishing goroutine for every event of
// type T. A panicking subscriber is logged and does not affect other
// subscribers.
func SubscribeSync[T Event](b *Bus, sub func(T)) {
	b.subscribe(func(e Event) {
		et, ok := e.(T)
		if !ok {
			return
		}

		defer func() {
			err := recover()
			if err == nil {
				return
			}

			b.logger.Error("Subscriber panicked", "error", err, "stack", string(debug.Stack()))
		}()

		sub(et)
	})
}

// SubscribeAsync calls sub on a new goroutine for every event of type T.
func SubscribeAsync[T Event](b *Bus, sub func(T)) {
	b.subscribe(func(e Event) {
		et, ok := e.(T)
		if !ok {
			return
		}

		go func() {
			defer func() {
				err := recover()
				if err == nil {
					return
				}

				b.logger.Error("Subscriber panicked", "error", err, "stack", string(debug.Stack()))
			}()

			sub(et)
		}()
	})
}
