// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package memory

import (
	"bytes"
	"sort"
	"sync"

	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

// Database is an in-memory key-value store. Each commit replaces the
// database's map, so change sets read from the state at which they began.
type Database struct {
	mu      sync.RWMutex
	entries map[string][]byte
	prefix  []byte
}

var _ keyvalue.Database = (*Database)(nil)

func New(prefix []byte) *Database {
	return &Database{prefix: prefix, entries: map[string][]byte{}}
}

// Begin begins a change set.
func (d *Database) Begin(prefix []byte, writable bool) keyvalue.ChangeSet {
	d.mu.RLock()
	view := d.entries
	d.mu.RUnlock()

	opts := ChangeSetOptions{
		Prefix: keyvalue.Join(d.prefix, prefix),
		Get: func(key []byte) ([]byte, error) {
			v, ok := view[string(key)]
			if !ok {
				return nil, errors.NotFound.WithFormat("%x not found", key)
			}
			return append([]byte(nil), v...), nil
		},
		ForEach: func(prefix []byte, fn func(key, value []byte) error) error {
			return forEach(view, prefix, fn)
		},
	}
	if writable {
		opts.Commit = d.commit
	}
	return NewChangeSet(opts)
}

func (d *Database) commit(entries []Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	m := make(map[string][]byte, len(d.entries)+len(entries))
	for k, v := range d.entries {
		m[k] = v
	}
	for _, e := range entries {
		if e.Delete {
			delete(m, string(e.Key))
		} else {
			m[string(e.Key)] = e.Value
		}
	}
	d.entries = m
	return nil
}

func forEach(view map[string][]byte, prefix []byte, fn func(key, value []byte) error) error {
	var keys []string
	for k := range view {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		err := fn([]byte(k), append([]byte(nil), view[k]...))
		if err != nil {
			return err
		}
	}
	return nil
}

// Export returns a copy of every entry.
func (d *Database) Export() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var entries []Entry
	_ = forEach(d.entries, nil, func(key, value []byte) error {
		entries = append(entries, Entry{Key: key, Value: value})
		return nil
	})
	return entries
}

// Import writes the entries to the database.
func (d *Database) Import(entries []Entry) error {
	return d.commit(entries)
}

func (d *Database) Close() error { return nil }
