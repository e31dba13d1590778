// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package keyvalue defines the storage interface implemented by the database
// drivers. Keys are byte strings and iteration is in byte order.
package keyvalue

import (
	"io"
)

// Store reads and writes values.
type Store interface {
	// Get loads a value. Get returns an error with status NotFound if the
	// key does not exist.
	Get(key []byte) ([]byte, error)

	// Put stores a value.
	Put(key, value []byte) error

	// Delete deletes a key-value pair.
	Delete(key []byte) error

	// ForEach calls fn for each key-value pair in key order. Keys are relative
	// to the change set's prefix.
	ForEach(fn func(key, value []byte) error) error
}

// Database is a change set source that must be closed.
type Database interface {
	Beginner
	io.Closer
}

// Join returns the concatenation of the key parts.
func Join(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	b := make([]byte, 0, n)
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}
