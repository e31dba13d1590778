// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package journal persists published events so they can be replayed per task.
package journal

import (
	"encoding/binary"
	"log/slog"
	"sync"

	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
)

var prefix = []byte("journal/")

// Record is a journaled event.
type Record struct {
	Seq   uint64
	Task  uint64
	Event events.Event
}

// Journal writes events to a key-value store under task ID || sequence
// number. Events that are not tied to a task are stored under
// [events.NoTask].
type Journal struct {
	mu     sync.Mutex
	db     keyvalue.Beginner
	seq    uint64
	logger *slog.Logger
}

// Open opens the journal stored in the database and resumes its sequence.
func Open(db keyvalue.Beginner, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{db: db, logger: logger.With("module", "journal")}

	batch := db.Begin(prefix, false)
	defer batch.Discard()
	err := batch.ForEach(func(key, _ []byte) error {
		_, seq, err := parseKey(key)
		if err != nil {
			return err
		}
		if seq >= j.seq {
			j.seq = seq + 1
		}
		return nil
	})
	if err != nil {
		return nil, errors.UnknownError.WithFormat("load journal: %w", err)
	}
	return j, nil
}

func makeKey(task, seq uint64) []byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], task)
	binary.BigEndian.PutUint64(b[8:], seq)
	return b[:]
}

func parseKey(key []byte) (task, seq uint64, err error) {
	if len(key) != 16 {
		return 0, 0, errors.InternalError.WithFormat("invalid journal key %x", key)
	}
	return binary.BigEndian.Uint64(key[:8]), binary.BigEndian.Uint64(key[8:]), nil
}

// Subscribe journals every event published on the bus. Failures are logged.
func (j *Journal) Subscribe(bus *events.Bus) {
	events.SubscribeSync(bus, func(e events.Event) {
		err := j.Record(e)
		if err != nil {
			j.logger.Error("Failed to journal event", "kind", e.Kind(), "error", err)
		}
	})
}

// Record writes the event.
func (j *Journal) Record(e events.Event) error {
	task := events.NoTask
	if e, ok := e.(events.TaskEvent); ok {
		task = e.Task()
	}

	b, err := events.Marshal(e)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	batch := j.db.Begin(prefix, true)
	defer batch.Discard()
	err = batch.Put(makeKey(task, j.seq), b)
	if err != nil {
		return errors.UnknownError.WithFormat("store event: %w", err)
	}
	err = batch.Commit()
	if err != nil {
		return errors.UnknownError.WithFormat("commit event: %w", err)
	}

	j.seq++
	return nil
}

// Events returns the events of the task in the order they were published.
func (j *Journal) Events(task uint64) ([]*Record, error) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], task)
	return j.scan(keyvalue.Join(prefix, b[:]), func(key []byte) []byte {
		return keyvalue.Join(b[:], key)
	})
}

// All returns every journaled event in publication order.
func (j *Journal) All() ([]*Record, error) {
	records, err := j.scan(prefix, func(key []byte) []byte { return key })
	if err != nil {
		return nil, err
	}

	// Keys sort by task first
	sortBySeq(records)
	return records, nil
}

func (j *Journal) scan(prefix []byte, fullKey func([]byte) []byte) ([]*Record, error) {
	batch := j.db.Begin(prefix, false)
	defer batch.Discard()

	var records []*Record
	err := batch.ForEach(func(key, value []byte) error {
		task, seq, err := parseKey(fullKey(key))
		if err != nil {
			return err
		}
		e, err := events.Unmarshal(value)
		if err != nil {
			return errors.UnknownError.WithFormat("event %d: %w", seq, err)
		}
		records = append(records, &Record{Seq: seq, Task: task, Event: e})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
