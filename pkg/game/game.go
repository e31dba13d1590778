// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package game decides disputes between a solver and a challenger.
package game

import (
	"github.com/ethereum/go-ethereum/common"
)

// Outcome is the result of a verification game.
type Outcome uint8

const (
	// Accepted means the solver's commitment stands.
	Accepted Outcome = iota + 1

	// Forfeited means the solver's commitment was invalid or inconsistent.
	Forfeited
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Forfeited:
		return "forfeited"
	default:
		return "unresolved"
	}
}

// Claim is what the solver has put on record: the two committed solution
// hashes, the revealed correctness flag, and whether the revealed preimage
// opened the solver's random commitment.
type Claim struct {
	Hash0          common.Hash
	Hash1          common.Hash
	Correct        bool
	PreimageOpened bool
}

// Index is the solution the solver claims is correct: 0 when Correct is set,
// otherwise 1.
func (c Claim) Index() uint64 {
	if c.Correct {
		return 0
	}
	return 1
}

// Consistent returns true if the claim is well formed.
func (c Claim) Consistent() bool {
	zero := common.Hash{}
	return c.PreimageOpened &&
		c.Hash0 != zero &&
		c.Hash1 != zero &&
		c.Hash0 != c.Hash1
}

// A Decider resolves a challenge. Intent is the challenger's revealed intent:
// the index of the solution the challenger holds to be correct.
type Decider interface {
	Decide(intent uint64, claim Claim) Outcome
}

// DecideFunc adapts a function to [Decider].
type DecideFunc func(intent uint64, claim Claim) Outcome

func (f DecideFunc) Decide(intent uint64, claim Claim) Outcome { return f(intent, claim) }

// Default is the single-round comparison: a consistent claim whose index
// agrees with the challenger's intent is accepted, anything else is
// forfeited.
var Default Decider = DecideFunc(Decide)

func Decide(intent uint64, claim Claim) Outcome {
	if !claim.Consistent() {
		return Forfeited
	}
	if claim.Index() != intent {
		return Forfeited
	}
	return Accepted
}
