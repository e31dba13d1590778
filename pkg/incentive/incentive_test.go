// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package incentive

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gitlab.com/accumulatenetwork/incentive/internal/logging"
	"gitlab.com/accumulatenetwork/incentive/pkg/clock"
	"gitlab.com/accumulatenetwork/incentive/pkg/commit"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/escrow"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
	"gitlab.com/accumulatenetwork/incentive/pkg/game"
)

var (
	giver    = common.HexToAddress("0x1111")
	solver   = common.HexToAddress("0x2222")
	verifier = common.HexToAddress("0x3333")
	backup   = common.HexToAddress("0x4444")
	reporter = common.HexToAddress("0x5555")
)

const (
	deposit    = 100000
	difficulty = 50000 // Minimum deposit of 100000 under the default policy
	reward     = 1000
	secret     = 12345
)

type harness struct {
	*Protocol
	t     testing.TB
	clock *clock.Manual
	vault *escrow.Vault

	mu     sync.Mutex
	events []events.Event
	states map[uint64]State
}

func setup(t testing.TB, params Params) *harness {
	h := new(harness)
	h.t = t
	h.clock = clock.NewManual(0)
	h.vault = escrow.NewVault()
	h.states = map[uint64]State{}

	bus := events.NewBus(logging.NewTestLogger(t))
	events.SubscribeSync(bus, func(e events.Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.events = append(h.events, e)
	})

	// Every transition must be one the state machine allows
	events.SubscribeSync(bus, func(e events.TaskStateChange) {
		h.mu.Lock()
		defer h.mu.Unlock()
		prev := h.states[e.TaskID]
		if !CanTransition(prev, State(e.State)) {
			t.Errorf("task %d moved from %v to %v", e.TaskID, prev, State(e.State))
		}
		h.states[e.TaskID] = State(e.State)
	})

	h.Protocol = New(Options{
		Params: params,
		Logger: logging.NewTestLogger(t),
		Events: bus,
		Clock:  h.clock,
		Escrow: h.vault,
	})
	return h
}

func (h *harness) fund(addrs ...common.Address) {
	for _, a := range addrs {
		require.NoError(h.t, h.MakeDeposit(a, deposit))
	}
	require.NoError(h.t, h.vault.Fund(giver, reward))
}

func (h *harness) create() uint64 {
	id, err := h.CreateTask(context.Background(), giver, difficulty, []byte("payload"), h.clock.Height()+10, reward)
	require.NoError(h.t, err)
	return id
}

func (h *harness) state(id uint64) State {
	task, err := h.GetTask(id)
	require.NoError(h.t, err)
	return task.State
}

func (h *harness) kinds() []events.Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	var kinds []events.Kind
	for _, e := range h.events {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

func (h *harness) requireBalanced(addrs ...common.Address) {
	for _, a := range addrs {
		require.True(h.t, h.Ledger().Totals(a).Balanced(), "%v does not balance", a)
	}
}

func hashOf(v uint64) common.Hash {
	return commit.Hash(commit.SecretFromUint64(v))
}

func secretOf(v uint64) common.Hash {
	return commit.SecretFromUint64(v)
}

// assign creates a task and registers the solver.
func (h *harness) assign() uint64 {
	id := h.create()
	require.NoError(h.t, h.RegisterForTask(id, solver, hashOf(secret)))
	return id
}

// commitSolutions creates a task and takes it to SolutionCommitted.
func (h *harness) commitSolutions() uint64 {
	id := h.assign()
	require.NoError(h.t, h.CommitSolution(id, solver, hashOf(0x0), hashOf(0x12345)))
	return id
}

func TestDeposits(t *testing.T) {
	h := setup(t, DefaultParams())
	require.NoError(t, h.MakeDeposit(giver, deposit))
	require.Equal(t, uint64(deposit), h.GetDeposit(giver))

	require.ErrorIs(t, h.MakeDeposit(common.Address{}, 1), errors.BadRequest)

	// Depositing nothing succeeds and changes nothing
	n := len(h.kinds())
	require.NoError(t, h.MakeDeposit(giver, 0))
	require.NoError(t, h.MakeDeposit(reporter, 0))
	require.Equal(t, uint64(deposit), h.GetDeposit(giver))
	require.Zero(t, h.GetDeposit(reporter))
	require.Len(t, h.kinds(), n)

	id := h.create()
	require.Zero(t, h.GetDeposit(giver))
	require.Equal(t, uint64(deposit), h.GetBondedDeposit(id, giver))
}

func TestCreateTask(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver)

	id := h.create()
	require.Zero(t, id)
	task, err := h.GetTask(id)
	require.NoError(t, err)
	require.Equal(t, Open, task.State)
	require.Equal(t, uint64(deposit), task.MinDeposit)
	require.Equal(t, uint64(10), task.RegistrationWindow)
	require.Equal(t, uint64(reward), h.vault.Locked(id))
	require.Equal(t, []events.Kind{
		events.KindDepositMade,
		events.KindDepositBonded,
		events.KindTaskCreated,
	}, h.kinds())

	// The copy is detached
	task.Payload[0] = 'x'
	task.State = Finalized
	require.Equal(t, Open, h.state(id))
	again, err := h.GetTask(id)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), again.Payload)

	_, err = h.GetTask(1)
	require.ErrorIs(t, err, errors.NotFound)
}

func TestCreateTaskFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("Insufficient deposit", func(t *testing.T) {
		h := setup(t, DefaultParams())
		require.NoError(t, h.MakeDeposit(giver, deposit-1))
		require.NoError(t, h.vault.Fund(giver, reward))

		_, err := h.CreateTask(ctx, giver, difficulty, nil, 10, reward)
		require.ErrorIs(t, err, errors.InsufficientBalance)
		require.Empty(t, h.Tasks())
		require.Equal(t, uint64(deposit-1), h.GetDeposit(giver))
		require.Equal(t, uint64(reward), h.vault.Wallet(giver), "reward must be refunded")
		require.Zero(t, h.vault.Locked(0))
	})

	t.Run("Insufficient reward", func(t *testing.T) {
		h := setup(t, DefaultParams())
		require.NoError(t, h.MakeDeposit(giver, deposit))

		_, err := h.CreateTask(ctx, giver, difficulty, nil, 10, reward)
		require.ErrorIs(t, err, errors.InsufficientBalance)
		require.Empty(t, h.Tasks())
		require.Equal(t, uint64(deposit), h.GetDeposit(giver))
	})

	t.Run("Bad input", func(t *testing.T) {
		h := setup(t, DefaultParams())
		h.fund(giver)
		h.clock.Set(5)

		_, err := h.CreateTask(ctx, giver, 0, nil, 10, reward)
		require.ErrorIs(t, err, errors.BadRequest)
		_, err = h.CreateTask(ctx, common.Address{}, difficulty, nil, 10, reward)
		require.ErrorIs(t, err, errors.BadRequest)
		_, err = h.CreateTask(ctx, giver, difficulty, nil, 4, reward)
		require.ErrorIs(t, err, errors.BadRequest)
		require.ErrorIs(t, err, errors.Expired)
		require.Empty(t, h.Tasks())
	})
}

// TestRegistrationDeadline registers after the deadline has passed.
func TestRegistrationDeadline(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver)

	id := h.create()
	h.clock.Advance(11)

	err := h.RegisterForTask(id, solver, hashOf(secret))
	require.ErrorIs(t, err, errors.WrongState)
	require.ErrorIs(t, err, errors.Expired)
	require.Equal(t, errors.WrongState, errors.Code(err))
	require.Equal(t, Open, h.state(id))
	require.Equal(t, uint64(deposit), h.GetDeposit(solver))
	require.Zero(t, h.GetBondedDeposit(id, solver))
}

func TestRegisterForTask(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier)
	id := h.create()

	require.ErrorIs(t, h.RegisterForTask(id, giver, hashOf(secret)), errors.Unauthorized)
	require.ErrorIs(t, h.RegisterForTask(id, solver, common.Hash{}), errors.BadRequest)
	require.ErrorIs(t, h.RegisterForTask(id, reporter, hashOf(secret)), errors.InsufficientBalance)
	require.Equal(t, Open, h.state(id))

	require.NoError(t, h.RegisterForTask(id, solver, hashOf(secret)))
	require.Equal(t, Assigned, h.state(id))
	require.Zero(t, h.GetDeposit(solver))
	require.Equal(t, uint64(deposit), h.GetBondedDeposit(id, solver))

	require.ErrorIs(t, h.RegisterForTask(id, verifier, hashOf(secret)), errors.WrongState)
	require.Equal(t, uint64(deposit), h.GetDeposit(verifier))
}

// TestPrematureReveal reveals the solver's secret before the solver does.
func TestPrematureReveal(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver, backup)
	id := h.assign()

	// A wrong preimage is rejected and nothing changes
	err := h.PrematureReveal(id, reporter, secretOf(secret+1))
	require.ErrorIs(t, err, errors.RevealMismatch)
	require.Equal(t, Assigned, h.state(id))

	require.NoError(t, h.PrematureReveal(id, reporter, secretOf(secret)))
	task, err := h.GetTask(id)
	require.NoError(t, err)
	require.Equal(t, Open, task.State)
	require.False(t, task.HasSolver())
	require.Equal(t, uint64(1), task.Reopened)
	require.Equal(t, uint64(deposit), task.MinDeposit)
	require.Equal(t, uint64(reward), h.vault.Locked(id))

	// The solver's bond is burned
	require.Zero(t, h.GetBondedDeposit(id, solver))
	require.Zero(t, h.GetDeposit(solver))
	require.Equal(t, uint64(deposit), h.Ledger().Totals(solver).Slashed)
	require.Equal(t, uint64(deposit), h.Ledger().Burned())
	require.Contains(t, h.kinds(), events.KindTaskReopened)

	// The same preimage cannot be reported twice
	require.ErrorIs(t, h.PrematureReveal(id, reporter, secretOf(secret)), errors.WrongState)

	// A backup solver takes over
	require.NoError(t, h.RegisterForTask(id, backup, hashOf(secret+7)))
	task, err = h.GetTask(id)
	require.NoError(t, err)
	require.Equal(t, Assigned, task.State)
	require.Equal(t, backup, task.Solver)
	require.Equal(t, events.KindSolverSelected, h.kinds()[len(h.kinds())-1])

	h.requireBalanced(giver, solver, backup)
}

func TestPrematureRevealDropsChallenge(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier)
	id := h.commitSolutions()
	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(0)))

	_, err := h.UnbondDeposit(id, verifier)
	require.ErrorIs(t, err, errors.WrongState)

	require.NoError(t, h.PrematureReveal(id, verifier, secretOf(secret)))
	task, err := h.GetTask(id)
	require.NoError(t, err)
	require.Equal(t, Open, task.State)
	require.False(t, task.Challenged())
	require.Equal(t, common.Hash{}, task.SolutionHash0)

	// The challenger is released
	amount, err := h.UnbondDeposit(id, verifier)
	require.NoError(t, err)
	require.Equal(t, uint64(deposit), amount)
	require.Equal(t, uint64(deposit), h.GetDeposit(verifier))
}

// TestDroppedChallengerRegisters registers the verifier of a dropped challenge
// as the backup solver.
func TestDroppedChallengerRegisters(t *testing.T) {
	ctx := context.Background()
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier)
	require.NoError(t, h.MakeDeposit(verifier, deposit))
	id := h.commitSolutions()
	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(0)))
	require.NoError(t, h.PrematureReveal(id, reporter, secretOf(secret)))

	// The challenge bond must be released first
	err := h.RegisterForTask(id, verifier, hashOf(secret+1))
	require.ErrorIs(t, err, errors.Conflict)
	require.Equal(t, Open, h.state(id))
	require.Equal(t, uint64(deposit), h.GetBondedDeposit(id, verifier))
	require.Equal(t, uint64(deposit), h.GetDeposit(verifier))

	_, err = h.UnbondDeposit(id, verifier)
	require.NoError(t, err)
	require.NoError(t, h.RegisterForTask(id, verifier, hashOf(secret+1)))
	require.Equal(t, uint64(deposit), h.GetBondedDeposit(id, verifier))
	require.Equal(t, uint64(deposit), h.GetDeposit(verifier))

	// Timing out as the solver costs only the solver's bond
	h.clock.Advance(50)
	require.NoError(t, h.FinalizeTask(ctx, id, giver))
	task, err := h.GetTask(id)
	require.NoError(t, err)
	require.Equal(t, ReasonSolverTimeout, task.FinalityReason)
	require.Zero(t, h.GetBondedDeposit(id, verifier))
	require.Equal(t, uint64(deposit), h.Ledger().Totals(verifier).Slashed)
	require.Equal(t, uint64(deposit), h.GetDeposit(verifier))
	h.requireBalanced(giver, solver, verifier)
}

func TestPrematureRevealExtendsDeadline(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver)
	id := h.create() // Deadline 10
	h.clock.Set(5)
	require.NoError(t, h.RegisterForTask(id, solver, hashOf(secret)))

	h.clock.Set(30)
	require.NoError(t, h.PrematureReveal(id, reporter, secretOf(secret)))
	task, err := h.GetTask(id)
	require.NoError(t, err)
	require.Equal(t, uint64(40), task.RegistrationDeadline)
}

func TestPrematureRevealWrongState(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver)

	id := h.create()
	require.ErrorIs(t, h.PrematureReveal(id, reporter, secretOf(secret)), errors.WrongState)

	require.NoError(t, h.RegisterForTask(id, solver, hashOf(secret)))
	require.NoError(t, h.CommitSolution(id, solver, hashOf(0), hashOf(1)))
	h.clock.Advance(20)
	require.NoError(t, h.AdvanceState(id, giver, ChallengeWindow))
	h.clock.Advance(10)
	require.NoError(t, h.AdvanceState(id, giver, IntentRevealed))
	require.NoError(t, h.RevealSolution(id, solver, true, secretOf(secret)))

	// Once sanctioned, revealing the secret is no longer a leak
	require.ErrorIs(t, h.PrematureReveal(id, reporter, secretOf(secret)), errors.WrongState)
	require.Equal(t, uint64(deposit), h.GetBondedDeposit(id, solver))
}

// TestHappyPath takes a challenged task all the way through the
// verification game.
func TestHappyPath(t *testing.T) {
	ctx := context.Background()
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier)

	id := h.assign()
	require.NoError(t, h.CommitSolution(id, solver, hashOf(0x0), hashOf(0x12345)))
	require.Equal(t, SolutionCommitted, h.state(id))

	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(0)))
	require.Zero(t, h.GetDeposit(verifier))

	require.ErrorIs(t, h.AdvanceState(id, giver, ChallengeWindow), errors.TimeoutNotReached)
	h.clock.Advance(20)
	require.NoError(t, h.AdvanceState(id, giver, ChallengeWindow))
	require.Equal(t, ChallengeWindow, h.state(id))

	require.NoError(t, h.RevealIntent(id, verifier, 0))

	require.ErrorIs(t, h.AdvanceState(id, giver, IntentRevealed), errors.TimeoutNotReached)
	h.clock.Advance(10)
	require.NoError(t, h.AdvanceState(id, giver, IntentRevealed))
	require.Equal(t, IntentRevealed, h.state(id))

	require.NoError(t, h.RevealSolution(id, solver, true, secretOf(secret)))
	require.Equal(t, ResolutionPending, h.state(id))

	require.NoError(t, h.RunVerificationGame(id, verifier))
	finality, err := h.GetTaskFinality(id)
	require.NoError(t, err)
	require.Equal(t, Accepted, finality)
	require.Equal(t, uint64(deposit), h.GetDeposit(solver))

	require.NoError(t, h.FinalizeTask(ctx, id, giver))
	require.Equal(t, Finalized, h.state(id))
	require.Equal(t, uint64(reward), h.vault.Wallet(solver))

	amount, err := h.UnbondDeposit(id, solver)
	require.NoError(t, err)
	require.Zero(t, amount)
	require.Equal(t, uint64(deposit), h.GetDeposit(solver))

	for _, a := range []common.Address{giver, verifier} {
		_, err = h.UnbondDeposit(id, a)
		require.NoError(t, err)
		require.Equal(t, uint64(deposit), h.GetDeposit(a))
	}

	require.Zero(t, h.Ledger().Burned())
	h.requireBalanced(giver, solver, verifier)

	require.Equal(t, []events.Kind{
		events.KindDepositMade,
		events.KindDepositMade,
		events.KindDepositMade,
		events.KindDepositBonded, // Giver
		events.KindTaskCreated,
		events.KindDepositBonded, // Solver
		events.KindTaskStateChange,
		events.KindSolverSelected,
		events.KindTaskStateChange,
		events.KindSolutionsCommitted,
		events.KindDepositBonded, // Verifier
		events.KindChallengeCommitted,
		events.KindTaskStateChange,
		events.KindIntentRevealed,
		events.KindTaskStateChange,
		events.KindTaskStateChange,
		events.KindSolutionRevealed,
		events.KindDepositUnbonded, // Solver
		events.KindVerificationGameResolved,
		events.KindTaskStateChange,
		events.KindTaskFinalized,
		events.KindRewardSettled,
		events.KindDepositUnbonded, // Giver
		events.KindDepositUnbonded, // Verifier
	}, h.kinds())
}

func TestUnchallenged(t *testing.T) {
	ctx := context.Background()
	h := setup(t, DefaultParams())
	h.fund(giver, solver)
	id := h.commitSolutions()

	h.clock.Advance(20)
	require.NoError(t, h.AdvanceState(id, solver, ChallengeWindow))
	h.clock.Advance(10)
	require.NoError(t, h.AdvanceState(id, solver, IntentRevealed))
	require.NoError(t, h.RevealSolution(id, solver, true, secretOf(secret)))

	require.ErrorIs(t, h.RunVerificationGame(id, verifier), errors.Unauthorized)
	require.ErrorIs(t, h.FinalizeTask(ctx, id, solver), errors.Unauthorized)
	require.NoError(t, h.FinalizeTask(ctx, id, giver))

	task, err := h.GetTask(id)
	require.NoError(t, err)
	require.Equal(t, Accepted, task.Finality)
	require.Equal(t, ReasonUnchallenged, task.FinalityReason)
	require.Equal(t, uint64(deposit), h.GetDeposit(solver))
	require.Equal(t, uint64(reward), h.vault.Wallet(solver))

	require.ErrorIs(t, h.FinalizeTask(ctx, id, giver), errors.WrongState)
}

func TestFinalizeRunsGame(t *testing.T) {
	ctx := context.Background()
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier)
	id := h.commitSolutions()

	// The challenger holds the second solution to be correct, the solver
	// claims the first
	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(1)))
	h.clock.Advance(20)
	require.NoError(t, h.AdvanceState(id, verifier, ChallengeWindow))
	require.NoError(t, h.RevealIntent(id, verifier, 1))
	h.clock.Advance(10)
	require.NoError(t, h.AdvanceState(id, verifier, IntentRevealed))
	require.NoError(t, h.RevealSolution(id, solver, true, secretOf(secret)))

	require.NoError(t, h.FinalizeTask(ctx, id, giver))
	task, err := h.GetTask(id)
	require.NoError(t, err)
	require.True(t, task.GameRun)
	require.Equal(t, Forfeited, task.Finality)
	require.Zero(t, h.GetDeposit(solver))
	require.Equal(t, uint64(deposit), h.Ledger().Totals(solver).Slashed)
	require.Equal(t, uint64(reward), h.vault.Wallet(giver), "reward is returned")
	h.requireBalanced(giver, solver, verifier)
}

func TestGameRunsOnce(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier)
	id := h.commitSolutions()
	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(0)))
	h.clock.Advance(20)
	require.NoError(t, h.AdvanceState(id, verifier, ChallengeWindow))
	require.NoError(t, h.RevealIntent(id, verifier, 0))
	h.clock.Advance(10)
	require.NoError(t, h.AdvanceState(id, verifier, IntentRevealed))

	require.ErrorIs(t, h.RunVerificationGame(id, verifier), errors.WrongState)
	require.NoError(t, h.RevealSolution(id, solver, true, secretOf(secret)))
	require.ErrorIs(t, h.RunVerificationGame(id, solver), errors.Unauthorized)
	require.NoError(t, h.RunVerificationGame(id, verifier))
	require.ErrorIs(t, h.RunVerificationGame(id, verifier), errors.WrongState)

	// The challenge is resolved so the challenger may leave
	_, err := h.UnbondDeposit(id, verifier)
	require.NoError(t, err)
	require.Equal(t, uint64(deposit), h.GetDeposit(verifier))
}

// TestDefaultForfeit finalizes tasks whose solver stalled.
func TestDefaultForfeit(t *testing.T) {
	ctx := context.Background()

	t.Run("No solution", func(t *testing.T) {
		h := setup(t, DefaultParams())
		h.fund(giver, solver)
		id := h.assign()

		h.clock.Advance(49)
		require.ErrorIs(t, h.FinalizeTask(ctx, id, giver), errors.TimeoutNotReached)
		h.clock.Advance(1)
		require.NoError(t, h.FinalizeTask(ctx, id, giver))

		task, err := h.GetTask(id)
		require.NoError(t, err)
		require.Equal(t, Finalized, task.State)
		require.Equal(t, Forfeited, task.Finality)
		require.Equal(t, ReasonSolverTimeout, task.FinalityReason)
		require.Zero(t, h.GetBondedDeposit(id, solver))
		require.Zero(t, h.GetDeposit(solver))
		require.Equal(t, uint64(reward), h.vault.Wallet(giver))
		h.requireBalanced(giver, solver)
	})

	t.Run("No reveal", func(t *testing.T) {
		h := setup(t, DefaultParams())
		h.fund(giver, solver)
		id := h.commitSolutions()

		// Nothing to finalize while the challenge period runs
		require.ErrorIs(t, h.FinalizeTask(ctx, id, giver), errors.WrongState)

		h.clock.Advance(20)
		require.NoError(t, h.AdvanceState(id, giver, ChallengeWindow))
		h.clock.Advance(10)
		require.NoError(t, h.AdvanceState(id, giver, IntentRevealed))

		h.clock.Advance(50)
		require.ErrorIs(t, h.RevealSolution(id, solver, true, secretOf(secret+1)), errors.RevealMismatch)
		require.NoError(t, h.FinalizeTask(ctx, id, giver))

		finality, err := h.GetTaskFinality(id)
		require.NoError(t, err)
		require.Equal(t, Forfeited, finality)
		require.Equal(t, uint64(deposit), h.Ledger().Burned())
	})

	t.Run("Burn reward", func(t *testing.T) {
		params := DefaultParams()
		params.Forfeit = ForfeitBurn
		h := setup(t, params)
		h.fund(giver, solver)
		id := h.assign()

		h.clock.Advance(50)
		require.NoError(t, h.FinalizeTask(ctx, id, giver))
		require.Zero(t, h.vault.Wallet(giver))
		require.Zero(t, h.vault.Locked(id))
	})

	t.Run("Expired", func(t *testing.T) {
		h := setup(t, DefaultParams())
		h.fund(giver)
		id := h.create()

		h.clock.Set(10)
		require.ErrorIs(t, h.FinalizeTask(ctx, id, giver), errors.WrongState)
		h.clock.Set(11)
		require.NoError(t, h.FinalizeTask(ctx, id, giver))

		task, err := h.GetTask(id)
		require.NoError(t, err)
		require.Equal(t, ReasonExpired, task.FinalityReason)
		require.Equal(t, uint64(reward), h.vault.Wallet(giver))

		_, err = h.UnbondDeposit(id, giver)
		require.NoError(t, err)
		require.Equal(t, uint64(deposit), h.GetDeposit(giver))
	})
}

func TestSilentChallenger(t *testing.T) {
	ctx := context.Background()
	for _, policy := range []SlashPolicy{SlashBurn, SlashRedistribute} {
		t.Run(policy.String(), func(t *testing.T) {
			params := DefaultParams()
			params.Slash = policy
			h := setup(t, params)
			h.fund(giver, solver, verifier)
			id := h.commitSolutions()
			require.NoError(t, h.CommitChallenge(id, verifier, hashOf(0)))

			h.clock.Advance(20)
			require.NoError(t, h.AdvanceState(id, giver, ChallengeWindow))
			h.clock.Advance(9)
			require.ErrorIs(t, h.AdvanceState(id, giver, IntentRevealed), errors.TimeoutNotReached)
			h.clock.Advance(1)
			require.NoError(t, h.AdvanceState(id, giver, IntentRevealed))

			task, err := h.GetTask(id)
			require.NoError(t, err)
			require.False(t, task.Challenged())
			require.Zero(t, h.GetBondedDeposit(id, verifier))
			require.Equal(t, uint64(deposit), h.Ledger().Totals(verifier).Slashed)

			require.NoError(t, h.RevealSolution(id, solver, true, secretOf(secret)))
			require.NoError(t, h.FinalizeTask(ctx, id, giver))

			finality, err := h.GetTaskFinality(id)
			require.NoError(t, err)
			require.Equal(t, Accepted, finality)

			if policy == SlashRedistribute {
				require.Equal(t, uint64(2*deposit), h.GetDeposit(solver))
				require.Zero(t, h.Ledger().Burned())
			} else {
				require.Equal(t, uint64(deposit), h.GetDeposit(solver))
				require.Equal(t, uint64(deposit), h.Ledger().Burned())
			}
			h.requireBalanced(giver, solver, verifier)
		})
	}
}

func TestGameLostRedistribute(t *testing.T) {
	params := DefaultParams()
	params.Slash = SlashRedistribute
	h := setup(t, params)
	h.fund(giver, solver, verifier)
	id := h.commitSolutions()

	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(1)))
	h.clock.Advance(20)
	require.NoError(t, h.AdvanceState(id, verifier, ChallengeWindow))
	require.NoError(t, h.RevealIntent(id, verifier, 1))
	h.clock.Advance(10)
	require.NoError(t, h.AdvanceState(id, verifier, IntentRevealed))
	require.NoError(t, h.RevealSolution(id, solver, true, secretOf(secret)))
	require.NoError(t, h.RunVerificationGame(id, verifier))

	finality, err := h.GetTaskFinality(id)
	require.NoError(t, err)
	require.Equal(t, Forfeited, finality)
	require.Equal(t, uint64(deposit), h.GetDeposit(verifier), "the challenger is credited the solver's bond")

	// The challenger's own bond is still held by the task
	require.Equal(t, uint64(deposit), h.GetBondedDeposit(id, verifier))
	h.requireBalanced(giver, solver, verifier)
}

func TestCustomDecider(t *testing.T) {
	h := setup(t, DefaultParams())
	h.decider = game.DecideFunc(func(uint64, game.Claim) game.Outcome { return 0 })
	h.fund(giver, solver, verifier)
	id := h.commitSolutions()
	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(0)))
	h.clock.Advance(20)
	require.NoError(t, h.AdvanceState(id, verifier, ChallengeWindow))
	require.NoError(t, h.RevealIntent(id, verifier, 0))
	h.clock.Advance(10)
	require.NoError(t, h.AdvanceState(id, verifier, IntentRevealed))
	require.NoError(t, h.RevealSolution(id, solver, true, secretOf(secret)))

	// An invalid outcome is an internal error and changes nothing
	require.ErrorIs(t, h.RunVerificationGame(id, verifier), errors.InternalError)
	require.Equal(t, ResolutionPending, h.state(id))
	require.Equal(t, uint64(deposit), h.GetBondedDeposit(id, solver))
}

func TestCommitChallenge(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier, backup)
	id := h.assign()

	require.ErrorIs(t, h.CommitChallenge(id, verifier, hashOf(0)), errors.WrongState)
	require.ErrorIs(t, h.CommitSolution(id, verifier, hashOf(0), hashOf(1)), errors.Unauthorized)
	require.NoError(t, h.CommitSolution(id, solver, hashOf(0), hashOf(1)))
	require.ErrorIs(t, h.CommitSolution(id, solver, hashOf(0), hashOf(1)), errors.WrongState)

	require.ErrorIs(t, h.CommitChallenge(id, solver, hashOf(0)), errors.Unauthorized)
	require.ErrorIs(t, h.CommitChallenge(id, giver, hashOf(0)), errors.Unauthorized)
	require.ErrorIs(t, h.CommitChallenge(id, reporter, hashOf(0)), errors.InsufficientBalance)
	h.clock.Advance(5)
	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(0)))
	require.ErrorIs(t, h.CommitChallenge(id, backup, hashOf(0)), errors.Conflict)
	require.Equal(t, uint64(deposit), h.GetDeposit(backup))

	// The challenge period restarts from the challenge
	h.clock.Advance(19)
	require.ErrorIs(t, h.AdvanceState(id, giver, ChallengeWindow), errors.TimeoutNotReached)
}

func TestAdvanceState(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier)
	id := h.commitSolutions()
	h.clock.Advance(100)

	require.ErrorIs(t, h.AdvanceState(id, common.Address{}, ChallengeWindow), errors.BadRequest)
	for _, s := range []State{Open, Assigned, SolutionCommitted, IntentRevealed, ResolutionPending, Finalized} {
		require.ErrorIs(t, h.AdvanceState(id, giver, s), errors.WrongState, "advance to %v", s)
	}
	require.Equal(t, SolutionCommitted, h.state(id))

	require.NoError(t, h.AdvanceState(id, giver, ChallengeWindow))
	require.ErrorIs(t, h.CommitChallenge(id, verifier, hashOf(0)), errors.WrongState)
	require.ErrorIs(t, h.RevealIntent(id, verifier, 0), errors.Unauthorized)
}

// TestAdvanceStalledTask advances a task through both windows on behalf of
// participants that have gone quiet.
func TestAdvanceStalledTask(t *testing.T) {
	stranger := common.HexToAddress("0x9999")
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier)
	id := h.commitSolutions()
	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(1)))

	require.ErrorIs(t, h.AdvanceState(id, stranger, ChallengeWindow), errors.TimeoutNotReached)
	h.clock.Advance(20)
	require.NoError(t, h.AdvanceState(id, stranger, ChallengeWindow))
	require.NoError(t, h.RevealIntent(id, verifier, 1))

	require.ErrorIs(t, h.AdvanceState(id, stranger, IntentRevealed), errors.TimeoutNotReached)
	h.clock.Advance(10)
	require.NoError(t, h.AdvanceState(id, stranger, IntentRevealed))
	require.Equal(t, IntentRevealed, h.state(id))
	require.Zero(t, h.GetBondedDeposit(id, stranger))
}

func TestRevealIntent(t *testing.T) {
	h := setup(t, DefaultParams())
	h.fund(giver, solver, verifier)
	id := h.commitSolutions()
	require.NoError(t, h.CommitChallenge(id, verifier, hashOf(1)))
	require.ErrorIs(t, h.RevealIntent(id, verifier, 1), errors.WrongState)

	h.clock.Advance(20)
	require.NoError(t, h.AdvanceState(id, verifier, ChallengeWindow))
	require.ErrorIs(t, h.RevealIntent(id, solver, 1), errors.Unauthorized)
	require.ErrorIs(t, h.RevealIntent(id, verifier, 2), errors.BadRequest)
	require.ErrorIs(t, h.RevealIntent(id, verifier, 0), errors.RevealMismatch)
	require.Equal(t, uint64(deposit), h.GetBondedDeposit(id, verifier), "a mismatch is not slashed")

	// The reveal period restarts from the reveal
	h.clock.Advance(5)
	require.NoError(t, h.RevealIntent(id, verifier, 1))
	require.ErrorIs(t, h.RevealIntent(id, verifier, 1), errors.WrongState)

	h.clock.Advance(9)
	require.ErrorIs(t, h.AdvanceState(id, verifier, IntentRevealed), errors.TimeoutNotReached)
	h.clock.Advance(1)
	require.NoError(t, h.AdvanceState(id, verifier, IntentRevealed))
	require.Equal(t, uint64(deposit), h.GetBondedDeposit(id, verifier))
}
