// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package incentive

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
	"gitlab.com/accumulatenetwork/incentive/pkg/game"
)

// RunVerificationGame resolves the challenge. If the solver's claim stands,
// their bond is released; otherwise it is slashed.
func (p *Protocol) RunVerificationGame(taskID uint64, verifier common.Address) error {
	return p.update(taskID, func(t *Task, b *batch) error {
		if t.State != ResolutionPending {
			return errors.WrongState.WithFormat("task %d is %v", t.ID, t.State)
		}
		if !t.Challenged() || verifier != t.Verifier {
			return errors.Unauthorized.WithFormat("%v is not the challenger of task %d", verifier, t.ID)
		}
		if t.GameRun {
			return errors.WrongState.WithFormat("the verification game of task %d has already run", t.ID)
		}

		err := p.play(t, b)
		if err != nil {
			return err
		}
		return p.settleBonds(t)
	})
}

// play runs the verification game and records its outcome. It does not
// touch the ledger.
func (p *Protocol) play(t *Task, b *batch) error {
	if !t.Intent.Revealed {
		return errors.WrongState.WithFormat("the challenger of task %d has not revealed their intent", t.ID)
	}

	claim := game.Claim{
		Hash0:          t.SolutionHash0,
		Hash1:          t.SolutionHash1,
		Correct:        t.Correct,
		PreimageOpened: t.RandomCommit.Revealed,
	}
	outcome := p.decider.Decide(t.IntentValue(), claim)
	if outcome != game.Accepted && outcome != game.Forfeited {
		return errors.InternalError.WithFormat("verification game of task %d returned %v", t.ID, outcome)
	}

	t.GameRun = true
	t.Finality = Finality(outcome)
	t.FinalityReason = ReasonVerificationRun
	b.add(events.VerificationGameResolved{TaskID: t.ID, Finality: uint8(t.Finality)})
	p.logger.Info("Verification game resolved", "task", t.ID, "finality", t.Finality)
	return nil
}

// settleBonds releases or slashes the solver's bond according to the task's
// finality. It cannot fail once the finality is recorded.
func (p *Protocol) settleBonds(t *Task) error {
	if !t.HasSolver() {
		return nil
	}

	if t.Finality == Accepted {
		_, err := p.ledger.Unbond(t.ID, t.Solver)
		return err
	}

	reason := ReasonGameLost
	if t.FinalityReason == ReasonSolverTimeout {
		reason = ReasonSolverTimeout
	}
	return p.slash(t, t.Solver, reason, t.Verifier)
}

// FinalizeTask settles the task. The outcome is decided by the verification
// game if the task was challenged. Otherwise the solution is accepted, or the
// task is forfeited by default if the solver stalled or nobody registered
// before the deadline. The reward is paid to the solver of an accepted task.
func (p *Protocol) FinalizeTask(ctx context.Context, taskID uint64, giver common.Address) error {
	return p.update(taskID, func(t *Task, b *batch) error {
		if giver != t.Giver {
			return errors.Unauthorized.WithFormat("%v is not the giver of task %d", giver, t.ID)
		}

		settle := !t.GameRun
		switch t.State {
		case ResolutionPending:
			switch {
			case t.GameRun:
				// Decided by the verification game
			case t.Challenged():
				err := p.play(t, b)
				if err != nil {
					return err
				}
			default:
				t.Finality = Accepted
				t.FinalityReason = ReasonUnchallenged
			}

		case Assigned, IntentRevealed:
			deadline := t.StateHeight + p.params.SolverTimeout
			if b.height < deadline {
				return errors.TimeoutNotReached.WithFormat("the solver of task %d has until height %d", t.ID, deadline)
			}
			t.Finality = Forfeited
			t.FinalityReason = ReasonSolverTimeout

		case Open:
			if b.height <= t.RegistrationDeadline {
				return errors.WrongState.WithFormat("task %d is open for registration until height %d", t.ID, t.RegistrationDeadline)
			}
			t.Finality = Forfeited
			t.FinalityReason = ReasonExpired

		default:
			return errors.WrongState.WithFormat("task %d is %v", t.ID, t.State)
		}

		err := b.transition(t, Finalized)
		if err != nil {
			return err
		}
		b.add(events.TaskFinalized{TaskID: t.ID, Finality: uint8(t.Finality), Reason: t.FinalityReason})

		// The escrow is the only fallible step, so it goes first
		to := t.Solver
		if t.Finality != Accepted {
			to = t.Giver
			if p.params.Forfeit == ForfeitBurn {
				to = common.Address{}
			}
		}
		var amount uint64
		if to == (common.Address{}) {
			amount, err = p.escrow.Burn(ctx, t.ID)
		} else {
			amount, err = p.escrow.Release(ctx, t.ID, to)
		}
		if err != nil {
			return errors.UnknownError.WithFormat("settle reward: %w", err)
		}
		b.add(events.RewardSettled{TaskID: t.ID, To: to, Amount: amount})

		if settle {
			err = p.settleBonds(t)
			if err != nil {
				return err
			}
		}

		p.logger.InfoContext(ctx, "Task finalized", "task", t.ID, "finality", t.Finality, "reason", t.FinalityReason)
		return nil
	})
}

// UnbondDeposit returns the account's bond for the task to its free balance.
// The giver's bond is held until the task is finalized, as is the bond of the
// solver and of a challenger whose challenge is unresolved. Unbonding twice
// does nothing.
func (p *Protocol) UnbondDeposit(taskID uint64, account common.Address) (uint64, error) {
	var amount uint64
	err := p.update(taskID, func(t *Task, b *batch) error {
		if t.State != Finalized {
			switch {
			case account == t.Giver:
				return errors.WrongState.WithFormat("the giver's bond is held until task %d is finalized", t.ID)
			case t.HasSolver() && account == t.Solver:
				return errors.WrongState.WithFormat("the solver's bond is held until task %d is finalized", t.ID)
			case t.Challenged() && !t.GameRun && account == t.Verifier:
				return errors.WrongState.WithFormat("the challenge of task %d is unresolved", t.ID)
			}
		}

		var err error
		amount, err = p.ledger.Unbond(t.ID, account)
		return err
	})
	return amount, err
}
