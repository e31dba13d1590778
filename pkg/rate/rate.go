// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package rate sizes task collateral from a USD-denominated difficulty.
package rate

import (
	"context"
	"math/big"

	"gitlab.com/accumulatenetwork/incentive/pkg/clock"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

// Rate is a conversion rate and the block height at which it was set.
type Rate struct {
	TokensPerUSD uint64
	Height       uint64
}

// Source supplies the current exchange rate. A source that has no rate
// returns an error with status RateUnavailable.
type Source interface {
	CurrentRate(context.Context) (Rate, error)
}

// Policy controls how collateral is derived from difficulty.
type Policy struct {
	// DepositPerDifficulty is the deposit per unit of difficulty used when
	// there is no rate source.
	DepositPerDifficulty uint64

	// RateDivisor divides difficulty × rate. Zero is treated as one.
	RateDivisor uint64

	// MaxRateAge is the maximum age of a rate in blocks. Zero disables the
	// staleness check.
	MaxRateAge uint64
}

// DefaultPolicy deposits twice the difficulty.
var DefaultPolicy = Policy{DepositPerDifficulty: 2, RateDivisor: 1}

// Adapter converts difficulty into a minimum deposit.
type Adapter struct {
	source Source
	clock  clock.Clock
	policy Policy
}

// NewAdapter returns an adapter. The source may be nil, in which case the
// fixed deposit-per-difficulty policy applies. The clock is required for the
// staleness check.
func NewAdapter(source Source, clock clock.Clock, policy Policy) *Adapter {
	return &Adapter{source: source, clock: clock, policy: policy}
}

// MinDeposit returns the minimum deposit for a task of the given difficulty.
// The rate is read from the source on every call.
func (a *Adapter) MinDeposit(ctx context.Context, difficulty uint64) (uint64, error) {
	if a.source == nil {
		return mulDiv(difficulty, a.policy.DepositPerDifficulty, 1)
	}

	r, err := a.source.CurrentRate(ctx)
	if err != nil {
		return 0, errors.RateUnavailable.WithFormat("query exchange rate: %w", err)
	}
	if r.TokensPerUSD == 0 {
		return 0, errors.RateUnavailable.With("exchange rate is zero")
	}
	if a.policy.MaxRateAge > 0 {
		var now uint64
		if a.clock != nil {
			now = a.clock.Height()
		}
		if r.Height > now || now-r.Height > a.policy.MaxRateAge {
			return 0, errors.RateUnavailable.WithFormat("exchange rate set at height %d is stale at height %d", r.Height, now)
		}
	}

	div := a.policy.RateDivisor
	if div == 0 {
		div = 1
	}
	return mulDiv(difficulty, r.TokensPerUSD, div)
}

func mulDiv(a, b, c uint64) (uint64, error) {
	v := new(big.Int).SetUint64(a)
	v.Mul(v, new(big.Int).SetUint64(b))
	v.Quo(v, new(big.Int).SetUint64(c))
	if !v.IsUint64() {
		return 0, errors.BadRequest.WithFormat("deposit for difficulty %d overflows", a)
	}
	return v.Uint64(), nil
}
