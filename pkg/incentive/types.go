// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package incentive

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gitlab.com/accumulatenetwork/incentive/pkg/commit"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/game"
)

// State is the lifecycle state of a task.
type State uint8

const (
	// Open tasks accept registrations.
	Open State = iota

	// Assigned tasks have a solver who has bonded and committed to a secret.
	Assigned

	// SolutionCommitted tasks have two committed solution hashes and accept
	// a challenge.
	SolutionCommitted

	// ChallengeWindow tasks wait for the challenger to reveal their intent.
	ChallengeWindow

	// IntentRevealed tasks wait for the solver to reveal their solution.
	IntentRevealed

	// ResolutionPending tasks have a revealed solution and wait for the
	// verification game or finalization.
	ResolutionPending

	// Finalized tasks are settled.
	Finalized
)

var stateNames = [...]string{
	Open:              "open",
	Assigned:          "assigned",
	SolutionCommitted: "solution-committed",
	ChallengeWindow:   "challenge-window",
	IntentRevealed:    "intent-revealed",
	ResolutionPending: "resolution-pending",
	Finalized:         "finalized",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ParseState parses a state name or number.
func ParseState(s string) (State, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range stateNames {
		if s == n || s == fmt.Sprint(i) {
			return State(i), nil
		}
	}
	return 0, errors.BadRequest.WithFormat("unknown task state %q", s)
}

// transitions lists the legal successor of each state. Open is the successor
// of the states that can be reopened; Finalized is the successor of the
// states from which default resolution applies.
var transitions = map[State][]State{
	Open:              {Assigned, Finalized},
	Assigned:          {SolutionCommitted, Open, Finalized},
	SolutionCommitted: {ChallengeWindow, Open},
	ChallengeWindow:   {IntentRevealed, Open},
	IntentRevealed:    {ResolutionPending, Open, Finalized},
	ResolutionPending: {Finalized},
}

// CanTransition returns true if the state machine allows from → to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Finality is the recorded outcome of a task.
type Finality uint8

const (
	Unresolved Finality = 0
	Accepted   Finality = Finality(game.Accepted)
	Forfeited  Finality = Finality(game.Forfeited)
)

func (f Finality) String() string { return game.Outcome(f).String() }

// Task is the record of a task. Values returned by [Protocol.GetTask] are
// copies.
type Task struct {
	ID         uint64
	Giver      common.Address
	Difficulty uint64
	MinDeposit uint64
	Reward     uint64
	Payload    []byte

	RegistrationDeadline uint64
	RegistrationWindow   uint64

	State       State
	StateHeight uint64

	// Solver is zero until the task is assigned. Reopened counts the
	// solvers that were removed for leaking their secret.
	Solver       common.Address
	Reopened     uint64
	RandomCommit commit.Commitment

	SolutionHash0  common.Hash
	SolutionHash1  common.Hash
	SolutionHeight uint64
	Correct        bool

	// Verifier is zero unless a challenge is outstanding.
	Verifier        common.Address
	ChallengeHeight uint64
	Intent          commit.Commitment
	IntentHeight    uint64

	GameRun        bool
	Finality       Finality
	FinalityReason string
}

// Challenged returns true if a challenge is outstanding.
func (t *Task) Challenged() bool {
	return t.Verifier != (common.Address{})
}

// HasSolver returns true if the task has a solver.
func (t *Task) HasSolver() bool {
	return t.Solver != (common.Address{})
}

// IntentValue returns the challenger's revealed intent.
func (t *Task) IntentValue() uint64 {
	return intentValue(t.Intent.Secret)
}

func intentValue(secret common.Hash) uint64 {
	return secret.Big().Uint64()
}

func (t *Task) copy() *Task {
	u := *t
	u.Payload = append([]byte(nil), t.Payload...)
	return &u
}

// Participant returns true if the account holds a role in the task.
func (t *Task) Participant(addr common.Address) bool {
	if addr == (common.Address{}) {
		return false
	}
	return addr == t.Giver || addr == t.Solver || addr == t.Verifier
}
