// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
	"golang.org/x/sync/errgroup"
)

var (
	alice = common.HexToAddress("0xA11CE")
	bob   = common.HexToAddress("0xB0B")
)

type recorder []events.Event

func (r *recorder) Publish(e ...events.Event) { *r = append(*r, e...) }

func TestBondUnbond(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(alice, 100000))
	require.Equal(t, uint64(100000), l.Balance(alice))

	require.NoError(t, l.Bond(0, alice, 100000))
	require.Equal(t, uint64(0), l.Balance(alice))
	require.Equal(t, uint64(100000), l.Bonded(0, alice))

	amount, err := l.Unbond(0, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100000), amount)
	require.Equal(t, uint64(100000), l.Balance(alice))
	require.Equal(t, uint64(0), l.Bonded(0, alice))
}

func TestBondInsufficientBalance(t *testing.T) {
	var rec recorder
	l := New(WithEvents(&rec))
	require.NoError(t, l.Deposit(alice, 10))

	err := l.Bond(1, alice, 11)
	require.ErrorIs(t, err, errors.InsufficientBalance)
	require.Equal(t, uint64(10), l.Balance(alice))
	require.Equal(t, uint64(0), l.Bonded(1, alice))

	err = l.Bond(1, bob, 1)
	require.ErrorIs(t, err, errors.InsufficientBalance)

	// Only the deposit was published
	require.Len(t, rec, 1)
}

func TestUnbondIdempotent(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(alice, 50))
	require.NoError(t, l.Bond(3, alice, 20))

	_, err := l.Unbond(3, alice)
	require.NoError(t, err)
	before := l.Totals(alice)

	amount, err := l.Unbond(3, alice)
	require.NoError(t, err)
	require.Zero(t, amount)
	require.Equal(t, before, l.Totals(alice))

	// Unknown account
	amount, err = l.Unbond(3, bob)
	require.NoError(t, err)
	require.Zero(t, amount)
}

func TestSlashBurns(t *testing.T) {
	var rec recorder
	l := New(WithEvents(&rec))
	require.NoError(t, l.Deposit(alice, 100))
	require.NoError(t, l.Deposit(bob, 100))
	require.NoError(t, l.Bond(7, alice, 60))

	amount, err := l.Slash(7, alice, "test")
	require.NoError(t, err)
	require.Equal(t, uint64(60), amount)
	require.Equal(t, uint64(40), l.Balance(alice))
	require.Equal(t, uint64(0), l.Bonded(7, alice))
	require.Equal(t, uint64(100), l.Balance(bob), "slashing does not credit anyone")
	require.Equal(t, uint64(60), l.Burned())

	totals := l.Totals(alice)
	require.True(t, totals.Balanced())
	require.Equal(t, uint64(60), totals.Slashed)

	require.Equal(t, events.DepositSlashed{TaskID: 7, Account: alice, Amount: 60, Reason: "test"}, rec[len(rec)-1])

	// Slashing again is a no-op
	amount, err = l.Slash(7, alice, "test")
	require.NoError(t, err)
	require.Zero(t, amount)
}

func TestCredit(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(alice, 100))
	require.NoError(t, l.Bond(1, alice, 100))
	_, err := l.Slash(1, alice, "test")
	require.NoError(t, err)

	require.Error(t, l.Credit(1, bob, 101))
	require.NoError(t, l.Credit(1, bob, 100))
	require.Equal(t, uint64(100), l.Balance(bob))
	require.Zero(t, l.Burned())
	require.True(t, l.Totals(bob).Balanced())
}

func TestConcurrentBonds(t *testing.T) {
	l := New()
	const n = 64
	require.NoError(t, l.Deposit(alice, n*10))

	// Bond more than the balance allows from many goroutines; exactly n
	// succeed
	var g errgroup.Group
	results := make([]error, 2*n)
	for i := 0; i < 2*n; i++ {
		i := i
		g.Go(func() error {
			results[i] = l.Bond(uint64(i), alice, 10)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, errors.InsufficientBalance)
		}
	}
	require.Equal(t, n, ok)
	require.Zero(t, l.Balance(alice))
	require.True(t, l.Totals(alice).Balanced())
}

func TestExportImport(t *testing.T) {
	l := New()
	require.NoError(t, l.Deposit(alice, 100))
	require.NoError(t, l.Deposit(bob, 50))
	require.NoError(t, l.Bond(2, alice, 30))
	require.NoError(t, l.Bond(1, alice, 20))
	require.NoError(t, l.Bond(1, bob, 50))
	_, err := l.Slash(1, bob, "test")
	require.NoError(t, err)

	states, burned := l.Export()
	require.Len(t, states, 2)
	require.Equal(t, bob, states[0].Address, "accounts are sorted by address")
	require.Empty(t, states[0].Bonds)
	require.Equal(t, []BondState{{1, 20}, {2, 30}}, states[1].Bonds)

	m := New()
	require.NoError(t, m.Import(states, burned))
	require.Equal(t, l.Totals(alice), m.Totals(alice))
	require.Equal(t, l.Totals(bob), m.Totals(bob))
	require.Equal(t, uint64(50), m.Burned())

	require.Error(t, m.Import(states, burned), "import requires an empty ledger")

	states[1].Free++
	require.Error(t, New().Import(states, burned))
}
