// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/accumulatenetwork/incentive/internal/journal"
	"gitlab.com/accumulatenetwork/incentive/internal/logging"
	"gitlab.com/accumulatenetwork/incentive/pkg/clock"
	"gitlab.com/accumulatenetwork/incentive/pkg/config"
	"gitlab.com/accumulatenetwork/incentive/pkg/database"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/escrow"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
	"gitlab.com/accumulatenetwork/incentive/pkg/incentive"
	"gitlab.com/accumulatenetwork/incentive/pkg/rate"
)

const configFile = "incentive.toml"

var (
	statePrefix = []byte("state/")
	protocolKey = []byte("protocol")
	oracleKey   = []byte("oracle")
)

// node is the protocol and everything it is persisted with.
type node struct {
	config   *config.Config
	logger   *slog.Logger
	db       keyvalue.Database
	bus      *events.Bus
	journal  *journal.Journal
	clock    *clock.Manual
	vault    *escrow.Vault
	oracle   *rate.Oracle
	protocol *incentive.Protocol
}

// loadConfig loads the configuration file named by --config or
// INCENTIVE_CONFIG, or incentive.toml in the working directory if it exists.
func loadConfig(workDir string) (*config.Config, error) {
	cfg := config.Default()

	file := viper.GetString("config")
	if file == "" {
		file = filepath.Join(workDir, configFile)
		_, err := os.Stat(file)
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, cfg.Validate()
		}
	}

	err := cfg.LoadFrom(file)
	if err != nil {
		return nil, errors.UnknownError.WithFormat("load %s: %w", file, err)
	}
	return cfg, cfg.Validate()
}

func openNode() (*node, error) {
	workDir := viper.GetString("work-dir")
	cfg, err := loadConfig(workDir)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(os.Stderr, cfg.Logging.Format, cfg.Logging.Rules)
	if err != nil {
		return nil, err
	}

	driver, err := database.ParseDriver(cfg.Storage.Driver)
	if err != nil {
		return nil, err
	}
	if driver != database.Memory {
		err = os.MkdirAll(workDir, 0700)
		if err != nil {
			return nil, err
		}
	}
	db, err := database.Open(driver, workDir, cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	n, err := newNode(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return n, nil
}

// newNode loads the protocol state stored in the database, if any.
func newNode(cfg *config.Config, db keyvalue.Database, logger *slog.Logger) (*node, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	n := new(node)
	n.config = cfg
	n.logger = logger
	n.db = db
	n.bus = events.NewBus(logger)
	n.clock = clock.NewManual(0)
	n.vault = escrow.NewVault()

	n.journal, err = journal.Open(db, logger)
	if err != nil {
		return nil, err
	}
	n.journal.Subscribe(n.bus)

	var source rate.Source
	if owner, ok := cfg.OracleOwner(); ok {
		n.oracle = rate.NewOracle(owner, n.clock, logger)
		source = n.oracle
	}

	opts := incentive.Options{
		Params: params,
		Logger: logger,
		Events: n.bus,
		Clock:  n.clock,
		Escrow: n.vault,
		Rates:  rate.NewAdapter(source, n.clock, cfg.RatePolicy()),
	}

	batch := db.Begin(statePrefix, false)
	defer batch.Discard()

	b, err := batch.Get(protocolKey)
	switch {
	case err == nil:
		snap := new(incentive.Snapshot)
		err = snap.UnmarshalBinary(b)
		if err != nil {
			return nil, err
		}
		n.protocol, err = incentive.Restore(snap, opts)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, errors.NotFound):
		n.protocol = incentive.New(opts)
	default:
		return nil, errors.UnknownError.WithFormat("load state: %w", err)
	}

	if n.oracle == nil {
		return n, nil
	}
	b, err = batch.Get(oracleKey)
	switch {
	case err == nil:
		var r rate.Rate
		err = rlp.DecodeBytes(b, &r)
		if err != nil {
			return nil, errors.BadRequest.WithFormat("decode exchange rate: %w", err)
		}
		n.oracle.Import(r)
	case !errors.Is(err, errors.NotFound):
		return nil, errors.UnknownError.WithFormat("load exchange rate: %w", err)
	}
	return n, nil
}

// save writes the protocol state.
func (n *node) save() error {
	b, err := n.protocol.Snapshot().MarshalBinary()
	if err != nil {
		return err
	}

	batch := n.db.Begin(statePrefix, true)
	defer batch.Discard()
	err = batch.Put(protocolKey, b)
	if err != nil {
		return err
	}

	if n.oracle != nil {
		if r, ok := n.oracle.Export(); ok {
			b, err = rlp.EncodeToBytes(r)
			if err != nil {
				return errors.InternalError.WithFormat("encode exchange rate: %w", err)
			}
			err = batch.Put(oracleKey, b)
			if err != nil {
				return err
			}
		}
	}

	return batch.Commit()
}

func (n *node) Close() error {
	return n.db.Close()
}

var _ io.Closer = (*node)(nil)

// withNode opens the node, runs fn, and saves the state if fn succeeds.
func withNode(fn func(cmd *cobra.Command, n *node, args []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		n, err := openNode()
		checkf(err, "open node")

		err = fn(cmd, n, args)
		if err == nil {
			err = n.save()
		}
		if e := n.Close(); err == nil && e != nil {
			err = errors.UnknownError.WithFormat("close database: %w", e)
		}
		check(err)
	}
}
