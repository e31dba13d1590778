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

// Entry is a pending write. Keys are absolute.
type Entry struct {
	Key    []byte
	Value  []byte
	Delete bool
}

type GetFunc = func(key []byte) ([]byte, error)
type CommitFunc = func(entries []Entry) error
type ForEachFunc = func(prefix []byte, fn func(key, value []byte) error) error

// ChangeSetOptions are the callbacks a change set reads from and commits to.
// A nil Commit makes the change set read-only.
type ChangeSetOptions struct {
	Prefix  []byte
	Get     GetFunc
	Commit  CommitFunc
	ForEach ForEachFunc
	Discard func()
}

// ChangeSet caches writes in memory until they are committed, so Get sees
// values updated with Put regardless of the underlying store.
type ChangeSet struct {
	mu      sync.RWMutex
	opts    ChangeSetOptions
	entries map[string]Entry
	done    bool
}

var _ keyvalue.ChangeSet = (*ChangeSet)(nil)

func NewChangeSet(opts ChangeSetOptions) *ChangeSet {
	c := new(ChangeSet)
	c.opts = opts
	c.entries = map[string]Entry{}
	return c
}

func (c *ChangeSet) key(key []byte) []byte {
	return keyvalue.Join(c.opts.Prefix, key)
}

// Begin begins a nested change set that commits into this one.
func (c *ChangeSet) Begin(prefix []byte, writable bool) keyvalue.ChangeSet {
	opts := ChangeSetOptions{
		Prefix:  c.key(prefix),
		Get:     c.get,
		ForEach: c.forEach,
	}
	if writable {
		opts.Commit = c.put
	}
	return NewChangeSet(opts)
}

func (c *ChangeSet) Get(key []byte) ([]byte, error) {
	return c.get(c.key(key))
}

func (c *ChangeSet) get(key []byte) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[string(key)]
	done := c.done
	c.mu.RUnlock()

	switch {
	case done:
		return nil, errors.NotReady.With("change set has been committed or discarded")
	case !ok:
		if c.opts.Get == nil {
			return nil, errors.NotFound.WithFormat("%x not found", key)
		}
		return c.opts.Get(key)
	case e.Delete:
		return nil, errors.NotFound.WithFormat("%x not found", key)
	default:
		return append([]byte(nil), e.Value...), nil
	}
}

func (c *ChangeSet) Put(key, value []byte) error {
	return c.write(Entry{Key: c.key(key), Value: append([]byte(nil), value...)})
}

func (c *ChangeSet) Delete(key []byte) error {
	return c.write(Entry{Key: c.key(key), Delete: true})
}

func (c *ChangeSet) write(e Entry) error {
	if c.opts.Commit == nil {
		return errors.NotAllowed.With("change set is read-only")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return errors.NotReady.With("change set has been committed or discarded")
	}
	c.entries[string(e.Key)] = e
	return nil
}

// put applies the entries of a nested change set.
func (c *ChangeSet) put(entries []Entry) error {
	for _, e := range entries {
		err := c.write(e)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *ChangeSet) ForEach(fn func(key, value []byte) error) error {
	n := len(c.opts.Prefix)
	return c.forEach(c.opts.Prefix, func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// forEach merges the pending entries with the underlying store.
func (c *ChangeSet) forEach(prefix []byte, fn func(key, value []byte) error) error {
	values := map[string][]byte{}
	if c.opts.ForEach != nil {
		err := c.opts.ForEach(prefix, func(key, value []byte) error {
			values[string(key)] = value
			return nil
		})
		if err != nil {
			return err
		}
	}

	c.mu.RLock()
	for k, e := range c.entries {
		if !bytes.HasPrefix(e.Key, prefix) {
			continue
		}
		if e.Delete {
			delete(values, k)
		} else {
			values[k] = e.Value
		}
	}
	c.mu.RUnlock()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		err := fn([]byte(k), append([]byte(nil), values[k]...))
		if err != nil {
			return err
		}
	}
	return nil
}

// Commit writes the pending entries to the underlying store and ends the
// change set.
func (c *ChangeSet) Commit() error {
	if c.opts.Commit == nil {
		return errors.NotAllowed.With("change set is read-only")
	}

	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return errors.NotReady.With("change set has been committed or discarded")
	}
	entries := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].Key, entries[j].Key) < 0 })
	err := c.opts.Commit(entries)
	if err != nil {
		return err
	}

	c.Discard()
	return nil
}

// Discard drops pending changes and releases the underlying transaction.
// Discarding twice does nothing.
func (c *ChangeSet) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	c.entries = nil
	if c.opts.Discard != nil {
		c.opts.Discard()
	}
}
