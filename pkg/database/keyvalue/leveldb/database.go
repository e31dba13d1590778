// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package leveldb

import (
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue/memory"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

type Database struct {
	leveldb *leveldb.DB
}

var _ keyvalue.Database = (*Database)(nil)

func OpenFile(filepath string) (*Database, error) {
	// Make sure all directories exist
	err := os.MkdirAll(filepath, 0700)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("create %q: %w", filepath, err)
	}

	db, err := leveldb.OpenFile(filepath, nil)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("open %q: %w", filepath, err)
	}

	d := new(Database)
	d.leveldb = db
	return d, nil
}

// Begin begins a change set.
func (d *Database) Begin(prefix []byte, writable bool) keyvalue.ChangeSet {
	snap, err := d.leveldb.GetSnapshot()

	// Read from the snapshot
	get := func(key []byte) ([]byte, error) {
		return d.get(snap, err, key)
	}

	// Commit to the write batch
	var commit memory.CommitFunc
	if writable {
		commit = d.commit
	}

	forEach := func(prefix []byte, fn func(key, value []byte) error) error {
		return d.forEach(snap, err, prefix, fn)
	}

	discard := func() {
		if err == nil {
			snap.Release()
		}
	}

	// The memory changeset caches entries in a map so Get will see values
	// updated with Put, regardless of the underlying snapshot and write batch
	// behavior
	return memory.NewChangeSet(memory.ChangeSetOptions{
		Prefix:  prefix,
		Get:     get,
		Commit:  commit,
		ForEach: forEach,
		Discard: discard,
	})
}

func (d *Database) commit(entries []memory.Entry) error {
	batch := new(leveldb.Batch)
	for _, e := range entries {
		if e.Delete {
			batch.Delete(e.Key)
		} else {
			batch.Put(e.Key, e.Value)
		}
	}

	err := d.leveldb.Write(batch, nil)
	if err != nil {
		return errors.UnknownError.WithFormat("write batch: %w", err)
	}
	return nil
}

func (d *Database) get(snap *leveldb.Snapshot, err error, key []byte) ([]byte, error) {
	if err != nil {
		return nil, errors.UnknownError.WithFormat("snapshot: %w", err)
	}

	v, err := snap.Get(key, nil)
	switch {
	case err == nil:
		u := make([]byte, len(v))
		copy(u, v)
		return u, nil
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, errors.NotFound.WithFormat("%x not found", key)
	default:
		return nil, errors.UnknownError.WithFormat("get %x: %w", key, err)
	}
}

func (d *Database) forEach(snap *leveldb.Snapshot, err error, prefix []byte, fn func(key, value []byte) error) error {
	if err != nil {
		return errors.UnknownError.WithFormat("snapshot: %w", err)
	}

	it := snap.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		value := make([]byte, len(it.Value()))
		copy(value, it.Value())
		err = fn(key, value)
		if err != nil {
			return err
		}
	}
	return it.Error()
}

// Close the underlying database
func (d *Database) Close() error {
	return d.leveldb.Close()
}
