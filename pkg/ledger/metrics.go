// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Deposit ledger metrics
var (
	mDeposited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incentive",
		Subsystem: "ledger",
		Name:      "deposited_total",
		Help:      "Token units deposited",
	})
	mBonds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "incentive",
		Subsystem: "ledger",
		Name:      "bond_operations_total",
		Help:      "Number of bond, unbond, and slash operations",
	}, []string{"op"})
	mBurned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "incentive",
		Subsystem: "ledger",
		Name:      "burned_total",
		Help:      "Token units burned by slashing",
	})
	mBonded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "incentive",
		Subsystem: "ledger",
		Name:      "bonded",
		Help:      "Token units currently bonded across all ledgers",
	})
)
