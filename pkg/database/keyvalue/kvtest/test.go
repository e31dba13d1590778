// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package kvtest

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

type Opener = func() (keyvalue.Database, error)

type closableDb struct {
	keyvalue.Database
	t      testing.TB
	closed bool
}

func (c *closableDb) Close() {
	if c.closed {
		return
	}
	c.closed = true
	require.NoError(c.t, c.Database.Close())
}

func openDb(t testing.TB, open Opener) *closableDb {
	db, err := open()
	require.NoError(t, err)
	c := &closableDb{db, t, false}
	t.Cleanup(c.Close)
	return c
}

// Key returns "answer" followed by i as a big-endian integer, so keys sort
// numerically.
func Key(i int) []byte {
	return binary.BigEndian.AppendUint64([]byte("answer"), uint64(i))
}

func value(i int) string {
	return fmt.Sprintf("%x this much data ", i)
}

// TestSuite runs every test against the database.
func TestSuite(t *testing.T, open Opener) {
	t.Run("Database", func(t *testing.T) { TestDatabase(t, open) })
	t.Run("Isolation", func(t *testing.T) { TestIsolation(t, open) })
	t.Run("SubBatch", func(t *testing.T) { TestSubBatch(t, open) })
	t.Run("Prefix", func(t *testing.T) { TestPrefix(t, open) })
	t.Run("Delete", func(t *testing.T) { TestDelete(t, open) })
}

func TestDatabase(t *testing.T, open Opener) {
	const N = 1000

	// Open and write changes
	db := openDb(t, open)

	batch := db.Begin(nil, true)
	defer batch.Discard()

	// Read when nothing exists
	_, err := batch.Get(Key(0))
	require.ErrorIs(t, err, errors.NotFound)

	// Write
	for i := 0; i < N; i++ {
		require.NoError(t, batch.Put(Key(i), []byte(value(i))), "Put")
	}

	// Commit
	require.NoError(t, batch.Commit())

	// Verify with a new batch
	batch = db.Begin(nil, false)
	defer batch.Discard()

	for i := 0; i < N; i++ {
		val, err := batch.Get(Key(i))
		require.NoError(t, err, "Get")
		require.Equal(t, value(i), string(val))
	}

	batch.Discard()

	// Verify with a fresh instance
	db.Close()
	db = openDb(t, open)

	batch = db.Begin(nil, false)
	defer batch.Discard()

	for i := 0; i < N; i++ {
		val, err := batch.Get(Key(i))
		require.NoError(t, err, "Get")
		require.Equal(t, value(i), string(val))
	}

	// Verify ForEach visits every value in order
	var i int
	require.NoError(t, batch.ForEach(func(key, val []byte) error {
		require.Equal(t, Key(i), key)
		require.Equal(t, value(i), string(val))
		i++
		return nil
	}))
	require.Equal(t, N, i, "All values should be iterated over")
}

func TestIsolation(t *testing.T, open Opener) {
	// Open and write
	db := openDb(t, open)

	batch := db.Begin(nil, true)
	defer batch.Discard()

	key := []byte("key")
	require.NoError(t, batch.Put(key, []byte("value")), "Put")
	require.NoError(t, batch.Commit())

	// Start two batches
	b1 := db.Begin(nil, true)
	defer b1.Discard()

	b2 := db.Begin(nil, false)
	defer b2.Discard()

	// Delete and commit in batch 1
	require.NoError(t, b1.Delete(key))
	require.NoError(t, b1.Commit())

	// Verify the change is not visible from batch 2
	v, err := b2.Get(key)
	require.NoError(t, err, "Get")
	require.Equal(t, []byte("value"), v)
	b2.Discard()

	// Verify the change is now visible
	batch = db.Begin(nil, true)
	defer batch.Discard()
	_, err = batch.Get(key)
	require.ErrorIs(t, err, errors.NotFound)
}

func TestSubBatch(t *testing.T, open Opener) {
	db := openDb(t, open)

	prefix := []byte("sub/")
	batch := db.Begin(nil, true)
	defer batch.Discard()
	sub := batch.Begin(prefix, true)
	defer sub.Discard()

	for i := 0; i < 1000; i++ {
		require.NoError(t, sub.Put(Key(i), []byte(value(i))), "Put")
	}

	// Commit and begin a new sub-batch
	require.NoError(t, sub.Commit())
	sub = batch.Begin(prefix, true)
	defer sub.Discard()

	for i := 0; i < 1000; i++ {
		val, err := sub.Get(Key(i))
		require.NoError(t, err, "Get")
		require.Equal(t, value(i), string(val))
	}

	// Nothing reached the database
	rd := db.Begin(nil, false)
	defer rd.Discard()
	_, err := rd.Get(keyvalue.Join(prefix, Key(0)))
	require.ErrorIs(t, err, errors.NotFound)
}

func TestPrefix(t *testing.T, open Opener) {
	data := make([]byte, 10)
	_, err := io.ReadFull(rand.Reader, data)
	require.NoError(t, err)

	db := openDb(t, open)

	prefix, key := []byte("foo/"), []byte("bar")
	batch := db.Begin(prefix, true)
	defer batch.Discard()
	require.NoError(t, batch.Put(key, data))
	require.NoError(t, batch.Put([]byte("baz"), data))
	require.NoError(t, batch.Commit())

	batch = db.Begin(prefix, false)
	defer batch.Discard()
	v, err := batch.Get(key)
	require.NoError(t, err)
	require.Equal(t, data, v)

	var keys []string
	require.NoError(t, batch.ForEach(func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	}))
	require.Equal(t, []string{"bar", "baz"}, keys)

	batch = db.Begin(nil, false)
	defer batch.Discard()
	v, err = batch.Get([]byte("foo/bar"))
	require.NoError(t, err)
	require.Equal(t, data, v)
}

func TestDelete(t *testing.T, open Opener) {
	db := openDb(t, open)

	// Write a value
	batch := db.Begin(nil, true)
	defer batch.Discard()
	require.NoError(t, batch.Put([]byte("foo"), []byte("bar")))
	require.NoError(t, batch.Commit())

	// Verify it can be retrieved
	batch = db.Begin(nil, false)
	defer batch.Discard()
	v, err := batch.Get([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, "bar", string(v))
	batch.Discard()

	// Delete the value
	batch = db.Begin(nil, true)
	defer batch.Discard()
	require.NoError(t, batch.Delete([]byte("foo")))

	// Verify it returns not found from the same batch
	_, err = batch.Get([]byte("foo"))
	require.ErrorIs(t, err, errors.NotFound)

	// Commit and reopen
	require.NoError(t, batch.Commit())
	db.Close()
	db = openDb(t, open)

	// Verify it returns not found from a new batch
	batch = db.Begin(nil, false)
	defer batch.Discard()
	_, err = batch.Get([]byte("foo"))
	require.ErrorIs(t, err, errors.NotFound)
}
