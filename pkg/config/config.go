// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package config loads the configuration of an incentive node.
package config

import (
	"io/fs"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gitlab.com/accumulatenetwork/incentive/pkg/database"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/incentive"
	"gitlab.com/accumulatenetwork/incentive/pkg/rate"
)

type Config struct {
	file string
	fs   fs.FS

	// DotEnv enables ${VAR} expansion from a .env file next to the
	// configuration file.
	DotEnv *bool `json:"dotEnv,omitempty"`

	Protocol Protocol `json:"protocol"`
	Deposit  Deposit  `json:"deposit"`
	Storage  Storage  `json:"storage"`
	Logging  Logging  `json:"logging"`
	Metrics  Metrics  `json:"metrics"`
}

// Protocol holds the timeouts, in blocks, and the penalty policies.
type Protocol struct {
	ChallengeTimeout uint64 `json:"challengeTimeout" validate:"gt=0"`
	RevealTimeout    uint64 `json:"revealTimeout" validate:"gt=0"`
	SolverTimeout    uint64 `json:"solverTimeout" validate:"gt=0"`
	Slash            string `json:"slash" validate:"oneof=burn redistribute"`
	Forfeit          string `json:"forfeit" validate:"oneof=return burn"`
}

// Deposit configures how minimum deposits are sized. If Oracle is set, an
// owner-controlled exchange rate oracle is used instead of the fixed
// per-difficulty deposit.
type Deposit struct {
	PerDifficulty uint64 `json:"perDifficulty" validate:"gt=0"`
	RateDivisor   uint64 `json:"rateDivisor"`
	MaxRateAge    uint64 `json:"maxRateAge"`
	Oracle        string `json:"oracle,omitempty" validate:"omitempty,eth_addr"`
}

type Storage struct {
	Driver string `json:"driver" validate:"oneof=memory bolt badger leveldb"`
	Path   string `json:"path,omitempty"`
}

type Logging struct {
	Format string `json:"format" validate:"oneof=plain text json"`
	Rules  string `json:"rules"`
}

type Metrics struct {
	// Listen is the address the Prometheus handler listens on. Metrics are
	// not served if it is empty.
	Listen string `json:"listen,omitempty" validate:"omitempty,hostname_port"`
}

// Default returns the default configuration.
func Default() *Config {
	params := incentive.DefaultParams()
	return &Config{
		Protocol: Protocol{
			ChallengeTimeout: params.ChallengeTimeout,
			RevealTimeout:    params.RevealTimeout,
			SolverTimeout:    params.SolverTimeout,
			Slash:            params.Slash.String(),
			Forfeit:          params.Forfeit.String(),
		},
		Deposit: Deposit{
			PerDifficulty: rate.DefaultPolicy.DepositPerDifficulty,
			RateDivisor:   rate.DefaultPolicy.RateDivisor,
		},
		Storage: Storage{
			Driver: string(database.Bolt),
			Path:   "incentive.db",
		},
		Logging: Logging{
			Format: "plain",
			Rules:  "error;incentive=info;ledger=info",
		},
	}
}

var validate = validator.New()

// Validate checks the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return errors.BadRequest.WithFormat("invalid configuration: %w", err)
	}
	if c.Storage.Driver != string(database.Memory) && c.Storage.Path == "" {
		return errors.BadRequest.WithFormat("the %s driver requires a path", c.Storage.Driver)
	}
	return nil
}

// Params returns the protocol parameters.
func (c *Config) Params() (incentive.Params, error) {
	slash, err := incentive.ParseSlashPolicy(c.Protocol.Slash)
	if err != nil {
		return incentive.Params{}, err
	}
	forfeit, err := incentive.ParseForfeitPolicy(c.Protocol.Forfeit)
	if err != nil {
		return incentive.Params{}, err
	}
	return incentive.Params{
		ChallengeTimeout: c.Protocol.ChallengeTimeout,
		RevealTimeout:    c.Protocol.RevealTimeout,
		SolverTimeout:    c.Protocol.SolverTimeout,
		Slash:            slash,
		Forfeit:          forfeit,
	}, nil
}

// RatePolicy returns the deposit policy of the exchange rate adapter.
func (c *Config) RatePolicy() rate.Policy {
	return rate.Policy{
		DepositPerDifficulty: c.Deposit.PerDifficulty,
		RateDivisor:          c.Deposit.RateDivisor,
		MaxRateAge:           c.Deposit.MaxRateAge,
	}
}

// OracleOwner returns the owner of the exchange rate oracle, if one is
// configured.
func (c *Config) OracleOwner() (common.Address, bool) {
	if c.Deposit.Oracle == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(c.Deposit.Oracle), true
}
