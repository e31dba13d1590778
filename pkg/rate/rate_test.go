// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package rate

import (
	"context"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"gitlab.com/accumulatenetwork/incentive/pkg/clock"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

type countingSource struct {
	Rate
	calls int
}

func (s *countingSource) CurrentRate(context.Context) (Rate, error) {
	s.calls++
	return s.Rate, nil
}

func TestDefaultDeposit(t *testing.T) {
	a := NewAdapter(nil, clock.NewManual(0), DefaultPolicy)
	v, err := a.MinDeposit(context.Background(), 50000)
	require.NoError(t, err)
	require.Equal(t, uint64(100000), v)

	_, err = a.MinDeposit(context.Background(), math.MaxUint64)
	require.ErrorIs(t, err, errors.BadRequest)
}

func TestRateSource(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{Rate: Rate{TokensPerUSD: 2000}}

	a := NewAdapter(src, clock.NewManual(0), Policy{})
	v, err := a.MinDeposit(ctx, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(100000), v)

	// The rate is pulled on every call
	src.TokensPerUSD = 3000
	v, err = a.MinDeposit(ctx, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(150000), v)
	require.Equal(t, 2, src.calls)

	// 2000 tokens per USD with a divisor of 1000 is the 2× policy
	a = NewAdapter(Fixed{TokensPerUSD: 2000}, clock.NewManual(0), Policy{RateDivisor: 1000})
	v, err = a.MinDeposit(ctx, 50000)
	require.NoError(t, err)
	require.Equal(t, uint64(100000), v)
}

func TestFailClosed(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(100)
	owner := common.HexToAddress("0x0E")

	o := NewOracle(owner, clk, nil)
	a := NewAdapter(o, clk, Policy{MaxRateAge: 10})

	// No rate yet
	_, err := a.MinDeposit(ctx, 1)
	require.ErrorIs(t, err, errors.RateUnavailable)

	// Only the owner may set the rate
	require.ErrorIs(t, o.UpdateExchangeRate(common.HexToAddress("0x01"), 5), errors.Unauthorized)
	require.ErrorIs(t, o.UpdateExchangeRate(owner, 0), errors.BadRequest)
	require.NoError(t, o.UpdateExchangeRate(owner, 5))

	v, err := a.MinDeposit(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(15), v)

	// Stale
	clk.Advance(11)
	_, err = a.MinDeposit(ctx, 3)
	require.ErrorIs(t, err, errors.RateUnavailable)

	// Zero rate
	a = NewAdapter(Fixed{}, clk, Policy{})
	_, err = a.MinDeposit(ctx, 3)
	require.ErrorIs(t, err, errors.RateUnavailable)
}

func TestOracleExport(t *testing.T) {
	owner := common.HexToAddress("0x0BAD")
	clk := clock.NewManual(7)
	o := NewOracle(owner, clk, nil)
	_, ok := o.Export()
	require.False(t, ok)

	require.NoError(t, o.UpdateExchangeRate(owner, 42))
	r, ok := o.Export()
	require.True(t, ok)

	clk.Advance(3)
	p := NewOracle(owner, clk, nil)
	p.Import(r)
	got, err := p.CurrentRate(context.Background())
	require.NoError(t, err)
	require.Equal(t, Rate{TokensPerUSD: 42, Height: 7}, got)
}
