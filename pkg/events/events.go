// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package events

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

// Kind identifies the type of an event.
type Kind uint8

const (
	KindDepositMade Kind = iota + 1
	KindDepositBonded
	KindDepositUnbonded
	KindDepositSlashed
	KindDepositCredited
	KindTaskCreated
	KindSolverSelected
	KindTaskReopened
	KindSolutionsCommitted
	KindChallengeCommitted
	KindTaskStateChange
	KindIntentRevealed
	KindSolutionRevealed
	KindVerificationGameResolved
	KindTaskFinalized
	KindRewardSettled
)

var kindNames = map[Kind]string{
	KindDepositMade:              "DepositMade",
	KindDepositBonded:            "DepositBonded",
	KindDepositUnbonded:          "DepositUnbonded",
	KindDepositSlashed:           "DepositSlashed",
	KindDepositCredited:          "DepositCredited",
	KindTaskCreated:              "TaskCreated",
	KindSolverSelected:           "SolverSelected",
	KindTaskReopened:             "TaskReopened",
	KindSolutionsCommitted:       "SolutionsCommitted",
	KindChallengeCommitted:       "ChallengeCommitted",
	KindTaskStateChange:          "TaskStateChange",
	KindIntentRevealed:           "IntentRevealed",
	KindSolutionRevealed:         "SolutionRevealed",
	KindVerificationGameResolved: "VerificationGameResolved",
	KindTaskFinalized:            "TaskFinalized",
	KindRewardSettled:            "RewardSettled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Event is an observable record of a ledger or task transition.
type Event interface {
	Kind() Kind
}

// TaskEvent is an event about a specific task.
type TaskEvent interface {
	Event
	Task() uint64
}

// NoTask is the task ID reported by events that are not tied to a task.
const NoTask = ^uint64(0)

type DepositMade struct {
	Account common.Address
	Amount  uint64
}

type DepositBonded struct {
	TaskID  uint64
	Account common.Address
	Amount  uint64
}

type DepositUnbonded struct {
	TaskID  uint64
	Account common.Address
	Amount  uint64
}

// DepositSlashed is published when a bond is burned. Reason names the rule
// that was violated.
type DepositSlashed struct {
	TaskID  uint64
	Account common.Address
	Amount  uint64
	Reason  string
}

// DepositCredited is published when slashed value is redistributed.
type DepositCredited struct {
	TaskID  uint64
	Account common.Address
	Amount  uint64
}

type TaskCreated struct {
	TaskID               uint64
	Giver                common.Address
	Difficulty           uint64
	MinDeposit           uint64
	Reward               uint64
	RegistrationDeadline uint64
	Payload              []byte
}

type SolverSelected struct {
	TaskID         uint64
	Solver         common.Address
	Payload        []byte
	MinDeposit     uint64
	RandomBitsHash common.Hash
}

// TaskReopened is published when a solver's secret leaked and the task was
// returned to the pool of open tasks.
type TaskReopened struct {
	TaskID   uint64
	Solver   common.Address
	Reporter common.Address
}

type SolutionsCommitted struct {
	TaskID     uint64
	MinDeposit uint64
	Hash0      common.Hash
	Hash1      common.Hash
}

type ChallengeCommitted struct {
	TaskID     uint64
	Verifier   common.Address
	IntentHash common.Hash
}

type TaskStateChange struct {
	TaskID uint64
	State  uint8
	Height uint64
}

type IntentRevealed struct {
	TaskID   uint64
	Verifier common.Address
	Intent   uint64
}

type SolutionRevealed struct {
	TaskID     uint64
	Correct    bool
	RandomBits common.Hash
}

type VerificationGameResolved struct {
	TaskID   uint64
	Finality uint8
}

type TaskFinalized struct {
	TaskID   uint64
	Finality uint8
	Reason   string
}

// RewardSettled is published when the escrowed reward leaves escrow. A zero
// To address means the reward was burned.
type RewardSettled struct {
	TaskID uint64
	To     common.Address
	Amount uint64
}

func (DepositMade) Kind() Kind              { return KindDepositMade }
func (DepositBonded) Kind() Kind            { return KindDepositBonded }
func (DepositUnbonded) Kind() Kind          { return KindDepositUnbonded }
func (DepositSlashed) Kind() Kind           { return KindDepositSlashed }
func (DepositCredited) Kind() Kind          { return KindDepositCredited }
func (TaskCreated) Kind() Kind              { return KindTaskCreated }
func (SolverSelected) Kind() Kind           { return KindSolverSelected }
func (TaskReopened) Kind() Kind             { return KindTaskReopened }
func (SolutionsCommitted) Kind() Kind       { return KindSolutionsCommitted }
func (ChallengeCommitted) Kind() Kind       { return KindChallengeCommitted }
func (TaskStateChange) Kind() Kind          { return KindTaskStateChange }
func (IntentRevealed) Kind() Kind           { return KindIntentRevealed }
func (SolutionRevealed) Kind() Kind         { return KindSolutionRevealed }
func (VerificationGameResolved) Kind() Kind { return KindVerificationGameResolved }
func (TaskFinalized) Kind() Kind            { return KindTaskFinalized }
func (RewardSettled) Kind() Kind            { return KindRewardSettled }

func (DepositMade) Task() uint64                { return NoTask }
func (e DepositBonded) Task() uint64            { return e.TaskID }
func (e DepositUnbonded) Task() uint64          { return e.TaskID }
func (e DepositSlashed) Task() uint64           { return e.TaskID }
func (e DepositCredited) Task() uint64          { return e.TaskID }
func (e TaskCreated) Task() uint64              { return e.TaskID }
func (e SolverSelected) Task() uint64           { return e.TaskID }
func (e TaskReopened) Task() uint64             { return e.TaskID }
func (e SolutionsCommitted) Task() uint64       { return e.TaskID }
func (e ChallengeCommitted) Task() uint64       { return e.TaskID }
func (e TaskStateChange) Task() uint64          { return e.TaskID }
func (e IntentRevealed) Task() uint64           { return e.TaskID }
func (e SolutionRevealed) Task() uint64         { return e.TaskID }
func (e VerificationGameResolved) Task() uint64 { return e.TaskID }
func (e TaskFinalized) Task() uint64            { return e.TaskID }
func (e RewardSettled) Task() uint64            { return e.TaskID }

func newEvent(kind Kind) (Event, error) {
	switch kind {
	case KindDepositMade:
		return new(DepositMade), nil
	case KindDepositBonded:
		return new(DepositBonded), nil
	case KindDepositUnbonded:
		return new(DepositUnbonded), nil
	case KindDepositSlashed:
		return new(DepositSlashed), nil
	case KindDepositCredited:
		return new(DepositCredited), nil
	case KindTaskCreated:
		return new(TaskCreated), nil
	case KindSolverSelected:
		return new(SolverSelected), nil
	case KindTaskReopened:
		return new(TaskReopened), nil
	case KindSolutionsCommitted:
		return new(SolutionsCommitted), nil
	case KindChallengeCommitted:
		return new(ChallengeCommitted), nil
	case KindTaskStateChange:
		return new(TaskStateChange), nil
	case KindIntentRevealed:
		return new(IntentRevealed), nil
	case KindSolutionRevealed:
		return new(SolutionRevealed), nil
	case KindVerificationGameResolved:
		return new(VerificationGameResolved), nil
	case KindTaskFinalized:
		return new(TaskFinalized), nil
	case KindRewardSettled:
		return new(RewardSettled), nil
	}
	return nil, errors.BadRequest.WithFormat("unknown event kind %d", kind)
}

// Marshal encodes an event as its kind followed by its RLP encoding.
func Marshal(e Event) ([]byte, error) {
	b, err := rlp.EncodeToBytes(e)
	if err != nil {
		return nil, errors.InternalError.WithFormat("encode %v: %w", e.Kind(), err)
	}
	return append([]byte{byte(e.Kind())}, b...), nil
}

// Unmarshal decodes an event encoded with [Marshal]. The returned event is a
// value, not a pointer, so it can be compared with published events.
func Unmarshal(b []byte) (Event, error) {
	if len(b) == 0 {
		return nil, errors.BadRequest.With("empty event")
	}
	ptr, err := newEvent(Kind(b[0]))
	if err != nil {
		return nil, err
	}
	err = rlp.DecodeBytes(b[1:], ptr)
	if err != nil {
		return nil, errors.BadRequest.WithFormat("decode %v: %w", Kind(b[0]), err)
	}
	return deref(ptr), nil
}

func deref(e Event) Event {
	switch e := e.(type) {
	case *DepositMade:
		return *e
	case *DepositBonded:
		return *e
	case *DepositUnbonded:
		return *e
	case *DepositSlashed:
		return *e
	case *DepositCredited:
		return *e
	case *TaskCreated:
		return *e
	case *SolverSelected:
		return *e
	case *TaskReopened:
		return *e
	case *SolutionsCommitted:
		return *e
	case *ChallengeCommitted:
		return *e
	case *TaskStateChange:
		return *e
	case *IntentRevealed:
		return *e
	case *SolutionRevealed:
		return *e
	case *VerificationGameResolved:
		return *e
	case *TaskFinalized:
		return *e
	case *RewardSettled:
		return *e
	}
	return e
}
