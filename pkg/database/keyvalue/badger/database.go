// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package badger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue/memory"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

type Database struct {
	badger *badger.DB
	ready  bool
	mu     sync.RWMutex
	done   chan struct{}
}

var _ keyvalue.Database = (*Database)(nil)

type Option func(*badger.Options) error

// InMemory keeps the database in memory. The path is ignored.
func InMemory(o *badger.Options) error {
	*o = o.WithInMemory(true).WithDir("").WithValueDir("")
	return nil
}

func New(filepath string, o ...Option) (*Database, error) {
	opts := badger.DefaultOptions(filepath)
	opts = opts.WithLogger(slogger{})

	for _, o := range o {
		err := o(&opts)
		if err != nil {
			return nil, errors.UnknownError.Wrap(err)
		}
	}

	// Make sure all directories exist
	if !opts.InMemory {
		err := os.MkdirAll(filepath, 0700)
		if err != nil {
			return nil, errors.UnknownError.WithFormat("open badger: create %q: %w", filepath, err)
		}
	}

	d := new(Database)
	d.ready = true
	d.done = make(chan struct{})

	// Open Badger
	var err error
	d.badger, err = badger.Open(opts)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("open badger: %w", err)
	}

	mDbOpen.Inc()
	go d.gc()
	return d, nil
}

// Begin begins a change set.
func (d *Database) Begin(prefix []byte, writable bool) keyvalue.ChangeSet {
	// Use a read-only transaction for reading
	rd := d.badger.NewTransaction(false)
	mTxnOpen.Inc()

	// Read from the transaction
	get := func(key []byte) ([]byte, error) {
		item, err := rd.Get(key)
		switch {
		case err == nil:
			// Ok
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil, errors.NotFound.WithFormat("%x not found", key)
		default:
			return nil, errors.UnknownError.WithFormat("get %x: %w", key, err)
		}

		v, err := item.ValueCopy(nil)
		if err != nil {
			return nil, errors.UnknownError.WithFormat("get %x: %w", key, err)
		}
		return v, nil
	}

	forEach := func(prefix []byte, fn func(key, value []byte) error) error {
		it := rd.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return errors.UnknownError.WithFormat("get %x: %w", item.Key(), err)
			}
			err = fn(item.KeyCopy(nil), v)
			if err != nil {
				return err
			}
		}
		return nil
	}

	// Commit to the write batch
	var commit memory.CommitFunc
	if writable {
		commit = d.commit
	}

	// Discard the transaction
	discard := func() {
		rd.Discard()
		mTxnOpen.Dec()
	}

	// The memory changeset caches entries in a map so Get will see values
	// updated with Put, regardless of the underlying transaction and write
	// batch behavior
	return memory.NewChangeSet(memory.ChangeSetOptions{
		Prefix:  prefix,
		Get:     get,
		Commit:  commit,
		ForEach: forEach,
		Discard: discard,
	})
}

func (d *Database) commit(entries []memory.Entry) error {
	l, err := d.lock(false)
	if err != nil {
		return err
	}
	defer l.Unlock()

	start := time.Now()
	defer func() { mCommitDuration.Set(time.Since(start).Seconds()) }()

	// Use a write batch for writing to work around Badger's limitations
	wr := d.badger.NewWriteBatch()

	for _, e := range entries {
		if e.Delete {
			err = wr.Delete(e.Key)
		} else {
			err = wr.Set(e.Key, e.Value)
		}
		if err != nil {
			wr.Cancel()
			return errors.UnknownError.WithFormat("write %x: %w", e.Key, err)
		}
	}

	return wr.Flush()
}

// Close the underlying database
func (d *Database) Close() error {
	l, err := d.lock(true)
	if err != nil {
		return err
	}
	defer l.Unlock()

	d.ready = false
	close(d.done)
	mDbOpen.Dec()
	return d.badger.Close()
}

func (d *Database) gc() {
	tick := time.NewTicker(time.Hour)
	defer tick.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-tick.C:
		}

		// Still open?
		l, err := d.lock(false)
		if err != nil {
			return
		}

		// Run GC if 50% space could be reclaimed
		start := time.Now()
		err = d.badger.RunValueLogGC(0.5)
		if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			slog.Error("Badger GC failed", "error", err, "module", "badger")
		}
		mGcRun.Inc()
		mGcDuration.Set(time.Since(start).Seconds())

		// Release the lock
		l.Unlock()
	}
}

// lock acquires a lock on the ready mutex and checks for readiness. This
// prevents races between commits, garbage collection, and Close.
func (d *Database) lock(closing bool) (sync.Locker, error) {
	var l sync.Locker = &d.mu
	if !closing {
		l = d.mu.RLocker()
	}

	l.Lock()
	if !d.ready {
		l.Unlock()
		return nil, errors.NotReady
	}

	return l, nil
}

type slogger struct{}

func (l slogger) format(format string, args ...interface{}) string {
	s := fmt.Sprintf(format, args...)
	return strings.TrimRight(s, "\n")
}

func (l slogger) Errorf(format string, args ...interface{}) {
	slog.Error(l.format(format, args...), "module", "badger")
}

func (l slogger) Warningf(format string, args ...interface{}) {
	slog.Warn(l.format(format, args...), "module", "badger")
}

func (l slogger) Infof(format string, args ...interface{}) {
	slog.Info(l.format(format, args...), "module", "badger")
}

func (l slogger) Debugf(format string, args ...interface{}) {
	slog.Debug(l.format(format, args...), "module", "badger")
}
