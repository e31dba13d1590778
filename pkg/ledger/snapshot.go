// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// AccountState is the exported state of an account.
type AccountState struct {
	Address   common.Address
	Free      uint64
	Deposited uint64
	Slashed   uint64
	Credited  uint64
	Bonds     []BondState
}

type BondState struct {
	TaskID uint64
	Amount uint64
}

// Export returns the state of every account, in address order, and the
// amount burned.
func (l *Ledger) Export() ([]AccountState, uint64) {
	var states []AccountState
	for _, addr := range l.Accounts() {
		a := l.lookup(addr)
		a.mu.Lock()
		s := AccountState{
			Address:   addr,
			Free:      a.free,
			Deposited: a.deposited,
			Slashed:   a.slashed,
			Credited:  a.credited,
		}
		ids := maps.Keys(a.bonds)
		slices.Sort(ids)
		for _, id := range ids {
			s.Bonds = append(s.Bonds, BondState{TaskID: id, Amount: a.bonds[id]})
		}
		a.mu.Unlock()
		states = append(states, s)
	}
	return states, l.Burned()
}

// Import loads exported state into an empty ledger. It does not publish
// events.
func (l *Ledger) Import(states []AccountState, burned uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.accounts) > 0 {
		return errors.Conflict.With("cannot import into a ledger that has accounts")
	}

	m := make(map[common.Address]*account, len(states))
	for _, s := range states {
		a := &account{
			free:      s.Free,
			deposited: s.Deposited,
			slashed:   s.Slashed,
			credited:  s.Credited,
			bonds:     make(map[uint64]uint64, len(s.Bonds)),
		}
		for _, b := range s.Bonds {
			a.bonds[b.TaskID] = b.Amount
		}
		if !a.totals().Balanced() {
			return errors.BadRequest.WithFormat("account %v does not balance", s.Address)
		}
		m[s.Address] = a
	}
	l.accounts = m
	l.burned.Store(burned)
	return nil
}
