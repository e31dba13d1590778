// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package database opens key-value stores by driver name.
package database

import (
	"path/filepath"
	"strings"

	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue/badger"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue/bolt"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue/leveldb"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue/memory"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

// Driver is a storage backend.
type Driver string

const (
	Memory  Driver = "memory"
	Bolt    Driver = "bolt"
	Badger  Driver = "badger"
	LevelDB Driver = "leveldb"
)

// Drivers lists the supported drivers.
var Drivers = []Driver{Memory, Bolt, Badger, LevelDB}

func ParseDriver(s string) (Driver, error) {
	d := Driver(strings.ToLower(s))
	for _, e := range Drivers {
		if d == e {
			return d, nil
		}
	}
	return "", errors.BadRequest.WithFormat("unknown storage driver %q", s)
}

// Open opens a store. Relative paths are resolved against dir. Bolt stores a
// single file; the other persistent drivers store a directory.
func Open(driver Driver, dir, path string) (keyvalue.Database, error) {
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if driver != Memory && path == "" {
		return nil, errors.BadRequest.WithFormat("the %s driver requires a path", driver)
	}

	var db keyvalue.Database
	var err error
	switch driver {
	case Memory:
		db = memory.New(nil)
	case Bolt:
		db, err = bolt.Open(path)
	case Badger:
		db, err = badger.New(path)
	case LevelDB:
		db, err = leveldb.OpenFile(path)
	default:
		return nil, errors.BadRequest.WithFormat("unknown storage driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}
