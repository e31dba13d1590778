// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package rate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gitlab.com/accumulatenetwork/incentive/pkg/clock"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

// Fixed is a source that always returns the same rate.
type Fixed Rate

func (f Fixed) CurrentRate(context.Context) (Rate, error) { return Rate(f), nil }

// Oracle is a rate source whose rate is set by its owner.
type Oracle struct {
	mu     sync.RWMutex
	owner  common.Address
	clock  clock.Clock
	rate   Rate
	set    bool
	logger *slog.Logger
}

var _ Source = (*Oracle)(nil)

// NewOracle returns an oracle with no rate.
func NewOracle(owner common.Address, clock clock.Clock, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{owner: owner, clock: clock, logger: logger.With("module", "oracle")}
}

// Owner returns the account allowed to update the rate.
func (o *Oracle) Owner() common.Address { return o.owner }

// UpdateExchangeRate sets the rate, stamped with the current height.
func (o *Oracle) UpdateExchangeRate(caller common.Address, tokensPerUSD uint64) error {
	if caller != o.owner {
		return errors.Unauthorized.WithFormat("%v is not the oracle owner", caller)
	}
	if tokensPerUSD == 0 {
		return errors.BadRequest.With("exchange rate must be positive")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.rate = Rate{TokensPerUSD: tokensPerUSD, Height: o.clock.Height()}
	o.set = true
	o.logger.Info("Exchange rate updated", "rate", tokensPerUSD, "height", o.rate.Height)
	return nil
}

func (o *Oracle) CurrentRate(context.Context) (Rate, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.set {
		return Rate{}, errors.RateUnavailable.With("the exchange rate has not been set")
	}
	return o.rate, nil
}

// Export returns the rate and whether it has been set.
func (o *Oracle) Export() (Rate, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rate, o.set
}

// Import restores a rate returned by Export, keeping its height.
func (o *Oracle) Import(r Rate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rate = r
	o.set = r.TokensPerUSD != 0
}
