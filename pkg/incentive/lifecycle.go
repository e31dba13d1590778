// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package incentive

import (
	"github.com/ethereum/go-ethereum/common"
	"gitlab.com/accumulatenetwork/incentive/pkg/commit"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
)

const (
	ReasonSecretLeaked    = "secret leaked"
	ReasonFailedToReveal  = "failed to reveal intent"
	ReasonGameLost        = "verification game lost"
	ReasonSolverTimeout   = "solver timed out"
	ReasonExpired         = "registration expired"
	ReasonUnchallenged    = "unchallenged"
	ReasonVerificationRun = "verification game"
)

// RegisterForTask assigns the task to the solver. The solver bonds the
// task's minimum deposit and commits to a random secret, which they must not
// disclose until they reveal their solution.
func (p *Protocol) RegisterForTask(taskID uint64, solver common.Address, randomCommitHash common.Hash) error {
	return p.update(taskID, func(t *Task, b *batch) error {
		if solver == (common.Address{}) {
			return errors.BadRequest.With("missing solver")
		}
		if randomCommitHash == (common.Hash{}) {
			return errors.BadRequest.With("missing commitment")
		}
		if t.State != Open {
			return errors.WrongState.WithFormat("task %d is %v", t.ID, t.State)
		}
		if b.height > t.RegistrationDeadline {
			return errors.WrongState.WithCauseAndFormat(errors.Expired, "registration for task %d closed at height %d", t.ID, t.RegistrationDeadline)
		}
		if solver == t.Giver {
			return errors.Unauthorized.WithFormat("%v cannot solve their own task", solver)
		}
		if p.ledger.Bonded(t.ID, solver) != 0 {
			return errors.Conflict.WithFormat("%v still has a bond on task %d", solver, t.ID)
		}

		t.Solver = solver
		t.RandomCommit = commit.New(randomCommitHash)
		err := b.transition(t, Assigned)
		if err != nil {
			return err
		}
		b.add(events.SolverSelected{
			TaskID:         t.ID,
			Solver:         solver,
			Payload:        t.Payload,
			MinDeposit:     t.MinDeposit,
			RandomBitsHash: randomCommitHash,
		})

		err = p.ledger.Bond(t.ID, solver, t.MinDeposit)
		if err != nil {
			return err
		}

		p.logger.Info("Solver selected", "task", t.ID, "solver", solver)
		return nil
	})
}

// PrematureReveal reports a preimage of the solver's random commitment that
// surfaced before the solver revealed it. Anyone may report. If the preimage
// opens the commitment, the solver's bond is slashed, any challenge is
// dropped, and the task is reopened with the same ID, deposit, and reward.
func (p *Protocol) PrematureReveal(taskID uint64, caller common.Address, preimage common.Hash) error {
	return p.update(taskID, func(t *Task, b *batch) error {
		if t.State < Assigned || t.State > IntentRevealed {
			return errors.WrongState.WithFormat("task %d is %v", t.ID, t.State)
		}

		err := t.RandomCommit.CheckLeak(preimage)
		if !errors.Is(err, errors.SecretLeaked) {
			if err == nil {
				return errors.InternalError.With("leak check passed without a leak")
			}
			return err
		}

		solver := t.Solver
		t.Solver = common.Address{}
		t.RandomCommit = commit.Commitment{}
		t.SolutionHash0 = common.Hash{}
		t.SolutionHash1 = common.Hash{}
		t.SolutionHeight = 0
		t.Correct = false
		t.dropChallenge()
		t.Reopened++
		if b.height > t.RegistrationDeadline {
			t.RegistrationDeadline = b.height + t.RegistrationWindow
		}

		err = b.transition(t, Open)
		if err != nil {
			return err
		}
		b.add(
			events.TaskReopened{TaskID: t.ID, Solver: solver, Reporter: caller},
			events.TaskCreated{
				TaskID:               t.ID,
				Giver:                t.Giver,
				Difficulty:           t.Difficulty,
				MinDeposit:           t.MinDeposit,
				Reward:               t.Reward,
				RegistrationDeadline: t.RegistrationDeadline,
				Payload:              t.Payload,
			},
		)

		// A leaked secret is burned whatever the policy, since the reporter
		// may be the solver
		_, err = p.ledger.Slash(t.ID, solver, ReasonSecretLeaked)
		if err != nil {
			return err
		}

		p.logger.Info("Task reopened", "task", t.ID, "solver", solver, "reporter", caller)
		return nil
	})
}

func (t *Task) dropChallenge() {
	t.Verifier = common.Address{}
	t.ChallengeHeight = 0
	t.Intent = commit.Commitment{}
	t.IntentHeight = 0
}

// CommitSolution records the solver's two solution hashes, one of which is
// the hash of the correct solution.
func (p *Protocol) CommitSolution(taskID uint64, solver common.Address, hash0, hash1 common.Hash) error {
	return p.update(taskID, func(t *Task, b *batch) error {
		if t.State != Assigned {
			return errors.WrongState.WithFormat("task %d is %v", t.ID, t.State)
		}
		if solver != t.Solver {
			return errors.Unauthorized.WithFormat("%v is not the solver of task %d", solver, t.ID)
		}

		t.SolutionHash0 = hash0
		t.SolutionHash1 = hash1
		t.SolutionHeight = b.height
		err := b.transition(t, SolutionCommitted)
		if err != nil {
			return err
		}
		b.add(events.SolutionsCommitted{
			TaskID:     t.ID,
			MinDeposit: t.MinDeposit,
			Hash0:      hash0,
			Hash1:      hash1,
		})

		p.logger.Info("Solutions committed", "task", t.ID)
		return nil
	})
}

// CommitChallenge records a challenge to the committed solution. The
// verifier bonds the task's minimum deposit and commits to their intent,
// the index of the solution they hold to be correct.
func (p *Protocol) CommitChallenge(taskID uint64, verifier common.Address, intentHash common.Hash) error {
	return p.update(taskID, func(t *Task, b *batch) error {
		if verifier == (common.Address{}) {
			return errors.BadRequest.With("missing verifier")
		}
		if intentHash == (common.Hash{}) {
			return errors.BadRequest.With("missing commitment")
		}
		if t.State != SolutionCommitted {
			return errors.WrongState.WithFormat("task %d is %v", t.ID, t.State)
		}
		if verifier == t.Solver || verifier == t.Giver {
			return errors.Unauthorized.WithFormat("%v cannot challenge task %d", verifier, t.ID)
		}
		if t.Challenged() {
			return errors.Conflict.WithFormat("task %d has already been challenged", t.ID)
		}

		t.Verifier = verifier
		t.ChallengeHeight = b.height
		t.Intent = commit.New(intentHash)
		b.add(events.ChallengeCommitted{
			TaskID:     t.ID,
			Verifier:   verifier,
			IntentHash: intentHash,
		})

		err := p.ledger.Bond(t.ID, verifier, t.MinDeposit)
		if err != nil {
			return err
		}

		p.logger.Info("Challenge committed", "task", t.ID, "verifier", verifier)
		return nil
	})
}

// AdvanceState moves the task into the challenge window or out of it once
// the respective timeout has passed. Anyone may advance a task whose timeout
// has passed.
func (p *Protocol) AdvanceState(taskID uint64, caller common.Address, target State) error {
	return p.update(taskID, func(t *Task, b *batch) error {
		if caller == (common.Address{}) {
			return errors.BadRequest.With("missing caller")
		}

		switch target {
		case ChallengeWindow:
			if t.State != SolutionCommitted {
				return errors.WrongState.WithFormat("cannot advance task %d from %v to %v", t.ID, t.State, target)
			}
			ref := t.SolutionHeight
			if t.Challenged() {
				ref = t.ChallengeHeight
			}
			if b.height < ref+p.params.ChallengeTimeout {
				return errors.TimeoutNotReached.WithFormat("challenge period of task %d ends at height %d", t.ID, ref+p.params.ChallengeTimeout)
			}
			p.logger.Debug("Advancing task", "task", t.ID, "to", target, "caller", caller, "participant", t.Participant(caller))
			return b.transition(t, ChallengeWindow)

		case IntentRevealed:
			if t.State != ChallengeWindow {
				return errors.WrongState.WithFormat("cannot advance task %d from %v to %v", t.ID, t.State, target)
			}
			ref := t.StateHeight
			if t.Challenged() && t.Intent.Revealed {
				ref = t.IntentHeight
			}
			if b.height < ref+p.params.RevealTimeout {
				return errors.TimeoutNotReached.WithFormat("reveal period of task %d ends at height %d", t.ID, ref+p.params.RevealTimeout)
			}

			p.logger.Debug("Advancing task", "task", t.ID, "to", target, "caller", caller, "participant", t.Participant(caller))
			verifier := t.Verifier
			silent := t.Challenged() && !t.Intent.Revealed
			if silent {
				t.dropChallenge()
			}
			err := b.transition(t, IntentRevealed)
			if err != nil {
				return err
			}
			if silent {
				p.logger.Info("Challenge dropped", "task", t.ID, "verifier", verifier)
				return p.slash(t, verifier, ReasonFailedToReveal, t.Solver)
			}
			return nil

		default:
			return errors.WrongState.WithFormat("cannot advance task %d from %v to %v", t.ID, t.State, target)
		}
	})
}

// RevealIntent opens the challenger's intent commitment. A mismatch is
// rejected without penalty.
func (p *Protocol) RevealIntent(taskID uint64, verifier common.Address, intent uint64) error {
	return p.update(taskID, func(t *Task, b *batch) error {
		if t.State != ChallengeWindow {
			return errors.WrongState.WithFormat("task %d is %v", t.ID, t.State)
		}
		if !t.Challenged() || verifier != t.Verifier {
			return errors.Unauthorized.WithFormat("%v is not the challenger of task %d", verifier, t.ID)
		}
		if intent > 1 {
			return errors.BadRequest.WithFormat("intent must be 0 or 1, got %d", intent)
		}

		err := t.Intent.Reveal(commit.SecretFromUint64(intent))
		if err != nil {
			return err
		}
		t.IntentHeight = b.height
		b.add(events.IntentRevealed{TaskID: t.ID, Verifier: verifier, Intent: intent})

		p.logger.Info("Intent revealed", "task", t.ID, "verifier", verifier, "intent", intent)
		return nil
	})
}

// RevealSolution records the solver's claim and opens their random
// commitment.
func (p *Protocol) RevealSolution(taskID uint64, solver common.Address, correct bool, preimage common.Hash) error {
	return p.update(taskID, func(t *Task, b *batch) error {
		if t.State != IntentRevealed {
			return errors.WrongState.WithFormat("task %d is %v", t.ID, t.State)
		}
		if solver != t.Solver {
			return errors.Unauthorized.WithFormat("%v is not the solver of task %d", solver, t.ID)
		}

		err := t.RandomCommit.Reveal(preimage)
		if err != nil {
			return err
		}
		t.Correct = correct
		err = b.transition(t, ResolutionPending)
		if err != nil {
			return err
		}
		b.add(events.SolutionRevealed{TaskID: t.ID, Correct: correct, RandomBits: preimage})

		p.logger.Info("Solution revealed", "task", t.ID, "correct", correct)
		return nil
	})
}
