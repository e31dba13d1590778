// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package ledger tracks each account's free balance and the collateral it
// has bonded to tasks.
//
// Value only enters the ledger through [Ledger.Deposit] and [Ledger.Credit]
// and only leaves it through [Ledger.Slash], so for every account
//
//	free + Σ bonds == deposited − slashed + credited
//
// Operations on one account are atomic with respect to each other. Operations
// on different accounts never contend.
package ledger

import (
	"bytes"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Ledger struct {
	mu       sync.RWMutex
	accounts map[common.Address]*account
	burned   atomic.Uint64
	events   events.Publisher
	logger   *slog.Logger
}

type account struct {
	mu        sync.Mutex
	free      uint64
	bonds     map[uint64]uint64
	deposited uint64
	slashed   uint64
	credited  uint64
}

type Option func(*Ledger)

// WithEvents publishes an event for every successful operation.
func WithEvents(p events.Publisher) Option {
	return func(l *Ledger) { l.events = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func New(opts ...Option) *Ledger {
	l := new(Ledger)
	l.accounts = map[common.Address]*account{}
	l.logger = slog.Default()
	for _, o := range opts {
		o(l)
	}
	l.logger = l.logger.With("module", "ledger")
	return l
}

// get returns the account record, creating it if necessary.
func (l *Ledger) get(addr common.Address) *account {
	l.mu.RLock()
	a, ok := l.accounts[addr]
	l.mu.RUnlock()
	if ok {
		return a
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok = l.accounts[addr]
	if !ok {
		a = &account{bonds: map[uint64]uint64{}}
		l.accounts[addr] = a
	}
	return a
}

// lookup returns the account record or nil.
func (l *Ledger) lookup(addr common.Address) *account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[addr]
}

func (l *Ledger) publish(e ...events.Event) {
	if l.events != nil {
		l.events.Publish(e...)
	}
}

// Deposit adds amount to the account's free balance.
func (l *Ledger) Deposit(addr common.Address, amount uint64) error {
	a := l.get(addr)
	a.mu.Lock()
	if a.free > math.MaxUint64-amount || a.deposited > math.MaxUint64-amount {
		a.mu.Unlock()
		return errors.BadRequest.WithFormat("deposit of %d would overflow the balance of %v", amount, addr)
	}
	a.free += amount
	a.deposited += amount
	a.mu.Unlock()

	mDeposited.Add(float64(amount))
	l.logger.Debug("Deposit", "account", addr, "amount", amount)
	l.publish(events.DepositMade{Account: addr, Amount: amount})
	return nil
}

// Bond moves amount from the account's free balance into its bond for the
// task.
func (l *Ledger) Bond(taskID uint64, addr common.Address, amount uint64) error {
	a := l.lookup(addr)
	if a == nil {
		if amount == 0 {
			a = l.get(addr)
		} else {
			return errors.InsufficientBalance.WithFormat("%v has no deposit, attempted to bond %d", addr, amount)
		}
	}

	a.mu.Lock()
	if a.free < amount {
		free := a.free
		a.mu.Unlock()
		return errors.InsufficientBalance.WithFormat("%v has %d free, attempted to bond %d", addr, free, amount)
	}
	a.free -= amount
	a.bonds[taskID] += amount
	a.mu.Unlock()

	mBonds.WithLabelValues("bond").Inc()
	mBonded.Add(float64(amount))
	l.logger.Debug("Bond", "task", taskID, "account", addr, "amount", amount)
	l.publish(events.DepositBonded{TaskID: taskID, Account: addr, Amount: amount})
	return nil
}

// Unbond returns the account's entire bond for the task to its free balance
// and reports the amount. Unbonding when nothing is bonded does nothing.
func (l *Ledger) Unbond(taskID uint64, addr common.Address) (uint64, error) {
	a := l.lookup(addr)
	if a == nil {
		return 0, nil
	}

	a.mu.Lock()
	amount, ok := a.bonds[taskID]
	if !ok {
		a.mu.Unlock()
		return 0, nil
	}
	delete(a.bonds, taskID)
	a.free += amount
	a.mu.Unlock()

	mBonds.WithLabelValues("unbond").Inc()
	mBonded.Sub(float64(amount))
	l.logger.Debug("Unbond", "task", taskID, "account", addr, "amount", amount)
	l.publish(events.DepositUnbonded{TaskID: taskID, Account: addr, Amount: amount})
	return amount, nil
}

// Slash burns the account's entire bond for the task and reports the amount.
// The burned value is not credited to anyone; redistribution is up to the
// caller, via [Ledger.Credit].
func (l *Ledger) Slash(taskID uint64, addr common.Address, reason string) (uint64, error) {
	a := l.lookup(addr)
	if a == nil {
		return 0, nil
	}

	a.mu.Lock()
	amount, ok := a.bonds[taskID]
	if !ok {
		a.mu.Unlock()
		return 0, nil
	}
	delete(a.bonds, taskID)
	a.slashed += amount
	a.mu.Unlock()

	l.burned.Add(amount)
	mBonds.WithLabelValues("slash").Inc()
	mBonded.Sub(float64(amount))
	mBurned.Add(float64(amount))
	l.logger.Info("Slashed", "task", taskID, "account", addr, "amount", amount, "reason", reason)
	l.publish(events.DepositSlashed{TaskID: taskID, Account: addr, Amount: amount, Reason: reason})
	return amount, nil
}

// Credit adds previously burned value to the account's free balance. It is
// the reward-credit step of a slash redistribution policy and fails if it
// would mint more than has been burned.
func (l *Ledger) Credit(taskID uint64, addr common.Address, amount uint64) error {
	for {
		burned := l.burned.Load()
		if amount > burned {
			return errors.BadRequest.WithFormat("cannot credit %d, only %d has been burned", amount, burned)
		}
		if l.burned.CompareAndSwap(burned, burned-amount) {
			break
		}
	}

	a := l.get(addr)
	a.mu.Lock()
	a.free += amount
	a.credited += amount
	a.mu.Unlock()

	l.logger.Debug("Credit", "task", taskID, "account", addr, "amount", amount)
	l.publish(events.DepositCredited{TaskID: taskID, Account: addr, Amount: amount})
	return nil
}

// Balance returns the account's free balance.
func (l *Ledger) Balance(addr common.Address) uint64 {
	a := l.lookup(addr)
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.free
}

// Bonded returns the amount the account has bonded to the task.
func (l *Ledger) Bonded(taskID uint64, addr common.Address) uint64 {
	a := l.lookup(addr)
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bonds[taskID]
}

// Burned returns the amount slashed and not redistributed.
func (l *Ledger) Burned() uint64 { return l.burned.Load() }

// Totals is an account's balance sheet.
type Totals struct {
	Free      uint64
	Bonded    uint64
	Deposited uint64
	Slashed   uint64
	Credited  uint64
}

// Balanced reports whether the totals satisfy the conservation invariant.
func (t Totals) Balanced() bool {
	return t.Free+t.Bonded+t.Slashed == t.Deposited+t.Credited
}

func (l *Ledger) Totals(addr common.Address) Totals {
	a := l.lookup(addr)
	if a == nil {
		return Totals{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totals()
}

func (a *account) totals() Totals {
	t := Totals{Free: a.free, Deposited: a.deposited, Slashed: a.slashed, Credited: a.credited}
	for _, b := range a.bonds {
		t.Bonded += b
	}
	return t
}

// Accounts returns every account the ledger knows of, in byte order.
func (l *Ledger) Accounts() []common.Address {
	l.mu.RLock()
	addrs := maps.Keys(l.accounts)
	l.mu.RUnlock()
	slices.SortFunc(addrs, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })
	return addrs
}
