// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package journal

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gitlab.com/accumulatenetwork/incentive/internal/logging"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue/memory"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
)

func TestJournal(t *testing.T) {
	alice := common.HexToAddress("0xA11CE")
	db := memory.New(nil)
	bus := events.NewBus(logging.NewTestLogger(t))

	j, err := Open(db, logging.NewTestLogger(t))
	require.NoError(t, err)
	j.Subscribe(bus)

	bus.Publish(
		events.DepositMade{Account: alice, Amount: 10},
		events.TaskCreated{TaskID: 1, Giver: alice, Difficulty: 5, MinDeposit: 10, RegistrationDeadline: 20},
		events.DepositBonded{TaskID: 0, Account: alice, Amount: 10},
		events.TaskStateChange{TaskID: 1, State: 1, Height: 3},
	)

	records, err := j.Events(1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(1), records[0].Seq)
	require.Equal(t, events.KindTaskCreated, records[0].Event.Kind())
	require.Equal(t, events.TaskStateChange{TaskID: 1, State: 1, Height: 3}, records[1].Event)

	records, err = j.Events(events.NoTask)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, events.DepositMade{Account: alice, Amount: 10}, records[0].Event)

	// Reopening resumes the sequence
	j, err = Open(db, nil)
	require.NoError(t, err)
	require.NoError(t, j.Record(events.TaskFinalized{TaskID: 0, Finality: 1}))

	all, err := j.All()
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, r := range all {
		require.Equal(t, uint64(i), r.Seq)
	}
	require.Equal(t, events.KindTaskFinalized, all[4].Event.Kind())
}
