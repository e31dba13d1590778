// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package escrow holds task rewards between task creation and finalization.
package escrow

import (
	"bytes"
	"context"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Escrow moves reward value in and out of custody. The settlement currency
// is outside the protocol.
type Escrow interface {
	// Lock takes amount from the giver into custody for the task.
	Lock(ctx context.Context, taskID uint64, from common.Address, amount uint64) error

	// Refund returns a lock that was just taken, when the operation that took
	// it fails.
	Refund(ctx context.Context, taskID uint64) error

	// Release pays the task's locked amount to the account.
	Release(ctx context.Context, taskID uint64, to common.Address) (uint64, error)

	// Burn destroys the task's locked amount.
	Burn(ctx context.Context, taskID uint64) (uint64, error)
}

// Vault is an in-memory escrow backed by per-account wallets.
type Vault struct {
	mu      sync.Mutex
	wallets map[common.Address]uint64
	locks   map[uint64]lock
	burned  uint64
}

type lock struct {
	From   common.Address
	Amount uint64
}

var _ Escrow = (*Vault)(nil)

func NewVault() *Vault {
	return &Vault{
		wallets: map[common.Address]uint64{},
		locks:   map[uint64]lock{},
	}
}

// Fund adds value to an account's wallet.
func (v *Vault) Fund(addr common.Address, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.wallets[addr] > math.MaxUint64-amount {
		return errors.BadRequest.WithFormat("funding %v with %d would overflow", addr, amount)
	}
	v.wallets[addr] += amount
	return nil
}

// Wallet returns the account's wallet balance.
func (v *Vault) Wallet(addr common.Address) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.wallets[addr]
}

// Locked returns the amount held for the task.
func (v *Vault) Locked(taskID uint64) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.locks[taskID].Amount
}

func (v *Vault) Lock(_ context.Context, taskID uint64, from common.Address, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.locks[taskID]; ok {
		return errors.Conflict.WithFormat("reward for task %d is already in escrow", taskID)
	}
	if v.wallets[from] < amount {
		return errors.InsufficientBalance.WithFormat("%v has %d, reward is %d", from, v.wallets[from], amount)
	}
	v.wallets[from] -= amount
	v.locks[taskID] = lock{From: from, Amount: amount}
	return nil
}

func (v *Vault) Refund(_ context.Context, taskID uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[taskID]
	if !ok {
		return errors.NotFound.WithFormat("no reward in escrow for task %d", taskID)
	}
	delete(v.locks, taskID)
	v.wallets[l.From] += l.Amount
	return nil
}

func (v *Vault) Release(_ context.Context, taskID uint64, to common.Address) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[taskID]
	if !ok {
		return 0, errors.NotFound.WithFormat("no reward in escrow for task %d", taskID)
	}
	delete(v.locks, taskID)
	v.wallets[to] += l.Amount
	return l.Amount, nil
}

func (v *Vault) Burn(_ context.Context, taskID uint64) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[taskID]
	if !ok {
		return 0, errors.NotFound.WithFormat("no reward in escrow for task %d", taskID)
	}
	delete(v.locks, taskID)
	v.burned += l.Amount
	return l.Amount, nil
}

// VaultState is the exported state of a vault.
type VaultState struct {
	Wallets []Wallet
	Locks   []Lock
	Burned  uint64
}

type Wallet struct {
	Address common.Address
	Amount  uint64
}

type Lock struct {
	TaskID uint64
	From   common.Address
	Amount uint64
}

// Export returns the vault's state in a deterministic order.
func (v *Vault) Export() VaultState {
	v.mu.Lock()
	defer v.mu.Unlock()

	var s VaultState
	s.Burned = v.burned
	addrs := maps.Keys(v.wallets)
	slices.SortFunc(addrs, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })
	for _, a := range addrs {
		s.Wallets = append(s.Wallets, Wallet{a, v.wallets[a]})
	}
	ids := maps.Keys(v.locks)
	slices.Sort(ids)
	for _, id := range ids {
		l := v.locks[id]
		s.Locks = append(s.Locks, Lock{id, l.From, l.Amount})
	}
	return s
}

// Import replaces the vault's state.
func (v *Vault) Import(s VaultState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wallets = make(map[common.Address]uint64, len(s.Wallets))
	v.locks = make(map[uint64]lock, len(s.Locks))
	v.burned = s.Burned
	for _, w := range s.Wallets {
		v.wallets[w.Address] = w.Amount
	}
	for _, l := range s.Locks {
		v.locks[l.TaskID] = lock{From: l.From, Amount: l.Amount}
	}
}
