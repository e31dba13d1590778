// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package incentive

import (
	"strings"

	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

// SlashPolicy controls what happens to a slashed bond.
type SlashPolicy uint8

const (
	// SlashBurn burns slashed bonds.
	SlashBurn SlashPolicy = iota

	// SlashRedistribute credits a slashed solver bond to the challenger that
	// won the verification game, and a slashed challenger bond to the solver.
	SlashRedistribute
)

func (p SlashPolicy) String() string {
	if p == SlashRedistribute {
		return "redistribute"
	}
	return "burn"
}

func ParseSlashPolicy(s string) (SlashPolicy, error) {
	switch strings.ToLower(s) {
	case "", "burn":
		return SlashBurn, nil
	case "redistribute":
		return SlashRedistribute, nil
	}
	return 0, errors.BadRequest.WithFormat("unknown slash policy %q", s)
}

// ForfeitPolicy controls what happens to the reward of a forfeited task.
type ForfeitPolicy uint8

const (
	// ForfeitReturn returns the reward to the giver.
	ForfeitReturn ForfeitPolicy = iota

	// ForfeitBurn burns the reward.
	ForfeitBurn
)

func (p ForfeitPolicy) String() string {
	if p == ForfeitBurn {
		return "burn"
	}
	return "return"
}

func ParseForfeitPolicy(s string) (ForfeitPolicy, error) {
	switch strings.ToLower(s) {
	case "", "return":
		return ForfeitReturn, nil
	case "burn":
		return ForfeitBurn, nil
	}
	return 0, errors.BadRequest.WithFormat("unknown forfeit policy %q", s)
}

// Params are the protocol's timeouts, in blocks, and policies.
type Params struct {
	// ChallengeTimeout is how long a challenge may be raised after the
	// solution is committed, or after the last challenge.
	ChallengeTimeout uint64

	// RevealTimeout is how long the challenger has to reveal their intent.
	RevealTimeout uint64

	// SolverTimeout is how long the solver may stall before the giver can
	// finalize the task as forfeited.
	SolverTimeout uint64

	Slash   SlashPolicy
	Forfeit ForfeitPolicy
}

func DefaultParams() Params {
	return Params{
		ChallengeTimeout: 20,
		RevealTimeout:    10,
		SolverTimeout:    50,
	}
}
