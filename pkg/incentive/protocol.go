// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package incentive implements the task registry: the lifecycle of an
// outsourced task from creation through commitment, challenge, reveal, and
// finalization, and the deposits that bind each participant to it.
//
// Every operation either succeeds completely or fails with a status-coded
// error and leaves the ledger, the escrow, and the task untouched. Operations
// on one task are serialized. Operations on different tasks only contend on
// the accounts they share.
package incentive

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gitlab.com/accumulatenetwork/incentive/pkg/clock"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/escrow"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
	"gitlab.com/accumulatenetwork/incentive/pkg/game"
	"gitlab.com/accumulatenetwork/incentive/pkg/ledger"
	"gitlab.com/accumulatenetwork/incentive/pkg/rate"
)

type Protocol struct {
	params  Params
	logger  *slog.Logger
	events  events.Publisher
	clock   clock.Clock
	ledger  *ledger.Ledger
	escrow  escrow.Escrow
	rates   *rate.Adapter
	decider game.Decider

	// create serializes task creation so IDs are assigned without gaps. It
	// is held across the escrow call; mu is not.
	create sync.Mutex

	// mu guards the task arena. Appending and snapshots hold it exclusively,
	// everything else only long enough to find a task.
	mu    sync.RWMutex
	tasks []*entry
}

type entry struct {
	mu   sync.Mutex
	task Task
}

// Options are the collaborators of a [Protocol]. Any that are nil are
// replaced with defaults: a manual clock at height zero, a fresh ledger, an
// empty vault, the default deposit policy without a rate source, and the
// single-round verification game.
type Options struct {
	Params  Params
	Logger  *slog.Logger
	Events  events.Publisher
	Clock   clock.Clock
	Ledger  *ledger.Ledger
	Escrow  escrow.Escrow
	Rates   *rate.Adapter
	Decider game.Decider
}

func New(opts Options) *Protocol {
	p := new(Protocol)
	p.params = opts.Params
	p.logger = opts.Logger
	p.events = opts.Events
	p.clock = opts.Clock
	p.ledger = opts.Ledger
	p.escrow = opts.Escrow
	p.rates = opts.Rates
	p.decider = opts.Decider

	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.clock == nil {
		p.clock = clock.NewManual(0)
	}
	if p.ledger == nil {
		p.ledger = ledger.New(
			ledger.WithEvents(p.events),
			ledger.WithLogger(p.logger),
		)
	}
	if p.escrow == nil {
		p.escrow = escrow.NewVault()
	}
	if p.rates == nil {
		p.rates = rate.NewAdapter(nil, p.clock, rate.DefaultPolicy)
	}
	if p.decider == nil {
		p.decider = game.Default
	}
	p.logger = p.logger.With("module", "incentive")
	return p
}

func (p *Protocol) Params() Params           { return p.params }
func (p *Protocol) Clock() clock.Clock       { return p.clock }
func (p *Protocol) Ledger() *ledger.Ledger   { return p.ledger }
func (p *Protocol) Escrow() escrow.Escrow    { return p.escrow }
func (p *Protocol) Rates() *rate.Adapter     { return p.rates }
func (p *Protocol) Decider() game.Decider    { return p.decider }
func (p *Protocol) Logger() *slog.Logger     { return p.logger }
func (p *Protocol) Events() events.Publisher { return p.events }

func (p *Protocol) publish(e ...events.Event) {
	for _, e := range e {
		observe(e)
	}
	if p.events != nil {
		p.events.Publish(e...)
	}
}

func (p *Protocol) lookup(id uint64) (*entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id >= uint64(len(p.tasks)) {
		return nil, errors.NotFound.WithFormat("task %d not found", id)
	}
	return p.tasks[id], nil
}

// batch collects the events of an operation. They are published once the
// operation has succeeded.
type batch struct {
	height uint64
	events []events.Event
}

func (b *batch) add(e ...events.Event) {
	b.events = append(b.events, e...)
}

func (b *batch) transition(t *Task, to State) error {
	if !CanTransition(t.State, to) {
		return errors.InternalError.WithFormat("task %d cannot move from %v to %v", t.ID, t.State, to)
	}
	t.State = to
	t.StateHeight = b.height
	b.add(events.TaskStateChange{TaskID: t.ID, State: uint8(to), Height: b.height})
	return nil
}

// update runs fn on a copy of the task with the task locked, and stores the
// copy only if fn succeeds. fn must perform every fallible check before its
// first ledger or escrow mutation, and at most one fallible mutation, which
// must come last.
func (p *Protocol) update(id uint64, fn func(t *Task, b *batch) error) error {
	e, err := p.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	b := &batch{height: p.clock.Height()}
	t := e.task.copy()
	err = fn(t, b)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.task = *t
	e.mu.Unlock()

	p.publish(b.events...)
	return nil
}

// MakeDeposit adds amount to the account's free balance. Depositing zero
// does nothing.
func (p *Protocol) MakeDeposit(account common.Address, amount uint64) error {
	if account == (common.Address{}) {
		return errors.BadRequest.With("missing account")
	}
	if amount == 0 {
		return nil
	}

	// Hold the arena so a snapshot sees either all or none of the deposit
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.Deposit(account, amount)
}

// GetDeposit returns the account's free balance.
func (p *Protocol) GetDeposit(account common.Address) uint64 {
	return p.ledger.Balance(account)
}

// GetBondedDeposit returns the amount the account has bonded to the task.
func (p *Protocol) GetBondedDeposit(taskID uint64, account common.Address) uint64 {
	return p.ledger.Bonded(taskID, account)
}

// CreateTask registers a task. The giver bonds the task's minimum deposit,
// which is sized by the exchange rate adapter, and the reward is taken into
// escrow. Task IDs are assigned sequentially from zero.
func (p *Protocol) CreateTask(ctx context.Context, giver common.Address, difficulty uint64, payload []byte, registrationDeadline, reward uint64) (uint64, error) {
	if giver == (common.Address{}) {
		return 0, errors.BadRequest.With("missing giver")
	}
	if difficulty == 0 {
		return 0, errors.BadRequest.With("difficulty must be greater than zero")
	}

	height := p.clock.Height()
	if registrationDeadline < height {
		return 0, errors.BadRequest.WithCauseAndFormat(errors.Expired, "registration deadline %d is before the current height %d", registrationDeadline, height)
	}

	minDeposit, err := p.rates.MinDeposit(ctx, difficulty)
	if err != nil {
		return 0, errors.UnknownError.WithFormat("size deposit: %w", err)
	}

	p.create.Lock()
	defer p.create.Unlock()

	p.mu.RLock()
	id := uint64(len(p.tasks))
	p.mu.RUnlock()

	err = p.escrow.Lock(ctx, id, giver, reward)
	if err != nil {
		return 0, errors.UnknownError.WithFormat("escrow reward: %w", err)
	}

	err = p.ledger.Bond(id, giver, minDeposit)
	if err != nil {
		if err2 := p.escrow.Refund(ctx, id); err2 != nil {
			p.logger.ErrorContext(ctx, "Failed to refund escrow", "task", id, "error", err2)
		}
		return 0, err
	}

	t := Task{
		ID:                   id,
		Giver:                giver,
		Difficulty:           difficulty,
		MinDeposit:           minDeposit,
		Reward:               reward,
		Payload:              append([]byte(nil), payload...),
		RegistrationDeadline: registrationDeadline,
		RegistrationWindow:   registrationDeadline - height,
		State:                Open,
		StateHeight:          height,
	}
	p.mu.Lock()
	p.tasks = append(p.tasks, &entry{task: t})
	p.mu.Unlock()

	mTasksCreated.Inc()
	p.logger.InfoContext(ctx, "Task created", "task", id, "giver", giver, "difficulty", difficulty, "min-deposit", minDeposit, "reward", reward)
	p.publish(events.TaskCreated{
		TaskID:               id,
		Giver:                giver,
		Difficulty:           difficulty,
		MinDeposit:           minDeposit,
		Reward:               reward,
		RegistrationDeadline: registrationDeadline,
		Payload:              t.Payload,
	})
	return id, nil
}

// GetTask returns a copy of the task.
func (p *Protocol) GetTask(taskID uint64) (*Task, error) {
	e, err := p.lookup(taskID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.copy(), nil
}

// GetTaskFinality returns the task's recorded outcome. It is Unresolved
// until the verification game has run or the task has been finalized.
func (p *Protocol) GetTaskFinality(taskID uint64) (Finality, error) {
	t, err := p.GetTask(taskID)
	if err != nil {
		return 0, err
	}
	return t.Finality, nil
}

// Tasks returns a copy of every task, in ID order.
func (p *Protocol) Tasks() []*Task {
	p.mu.RLock()
	entries := p.tasks
	p.mu.RUnlock()

	tasks := make([]*Task, len(entries))
	for i, e := range entries {
		e.mu.Lock()
		tasks[i] = e.task.copy()
		e.mu.Unlock()
	}
	return tasks
}

// slash burns the account's bond for the task. Under the redistribute policy
// the amount is credited to the beneficiary, if there is one.
func (p *Protocol) slash(t *Task, account common.Address, reason string, beneficiary common.Address) error {
	amount, err := p.ledger.Slash(t.ID, account, reason)
	if err != nil {
		return err
	}
	if p.params.Slash != SlashRedistribute || beneficiary == (common.Address{}) || amount == 0 {
		return nil
	}
	return p.ledger.Credit(t.ID, beneficiary, amount)
}
