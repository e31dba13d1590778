// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, driver := range Drivers {
		t.Run(string(driver), func(t *testing.T) {
			db, err := Open(driver, dir, "store-"+string(driver))
			require.NoError(t, err)
			defer func() { require.NoError(t, db.Close()) }()

			batch := db.Begin([]byte("x/"), true)
			require.NoError(t, batch.Put([]byte("k"), []byte("v")))
			require.NoError(t, batch.Commit())

			batch = db.Begin(nil, false)
			defer batch.Discard()
			v, err := batch.Get([]byte("x/k"))
			require.NoError(t, err)
			require.Equal(t, "v", string(v))
		})
	}

	_, err := Open(Bolt, dir, "")
	require.ErrorIs(t, err, errors.BadRequest)

	_, err = ParseDriver("postgres")
	require.ErrorIs(t, err, errors.BadRequest)
	d, err := ParseDriver("LevelDB")
	require.NoError(t, err)
	require.Equal(t, LevelDB, d)
}
