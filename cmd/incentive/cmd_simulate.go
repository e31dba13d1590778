// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/accumulatenetwork/incentive/internal/logging"
	"gitlab.com/accumulatenetwork/incentive/pkg/commit"
	"gitlab.com/accumulatenetwork/incentive/pkg/database/keyvalue/memory"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/incentive"
)

var flagSimulate = struct {
	Metrics string
	Hold    bool
}{}

func init() {
	cmdMain.AddCommand(cmdSimulate)
	cmdSimulate.Flags().StringVar(&flagSimulate.Metrics, "metrics", "", "Serve Prometheus metrics on this address (overrides the configuration)")
	cmdSimulate.Flags().BoolVar(&flagSimulate.Hold, "hold", false, "Keep serving metrics after the simulation until interrupted")
}

var cmdSimulate = &cobra.Command{
	Use:   "simulate",
	Short: "Run scripted tasks against an in-memory node",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cfg, err := loadConfig(viper.GetString("work-dir"))
		checkf(err, "load configuration")
		cfg.Storage.Driver = "memory"
		if cfg.Logging.Rules == "" {
			cfg.Logging.Rules = "info"
		}

		logger, err := logging.New(os.Stderr, cfg.Logging.Format, cfg.Logging.Rules)
		check(err)

		listen := cfg.Metrics.Listen
		if flagSimulate.Metrics != "" {
			listen = flagSimulate.Metrics
		}
		if listen != "" {
			ln, err := net.Listen("tcp", listen)
			checkf(err, "listen on %s", listen)
			server := &http.Server{Handler: promhttp.Handler(), ReadHeaderTimeout: time.Minute}
			go func() { _ = server.Serve(ln) }()
			defer func() { _ = server.Close() }()
			cmd.Printf("Serving metrics on http://%s/metrics\n", ln.Addr())
		}

		n, err := newNode(cfg, memory.New(nil), logger)
		check(err)
		defer func() { _ = n.Close() }()

		err = simulate(context.Background(), n, cmd.OutOrStdout())
		check(err)

		if listen != "" && flagSimulate.Hold {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt)
			<-sigs
		}
	},
}

// A scenario is a sequence of steps played against the node.
type scenario struct {
	name  string
	steps []step
}

type step struct {
	desc string
	fn   func(*sim) error
}

// sim is the shared state of the scripted participants.
type sim struct {
	ctx      context.Context
	n        *node
	p        *incentive.Protocol
	giver    common.Address
	solver   common.Address
	verifier common.Address
	reporter common.Address
	secret   common.Hash
	task     uint64
}

func (s *sim) mine(blocks uint64) error {
	s.n.clock.Advance(blocks)
	return nil
}

func (s *sim) create() error {
	var err error
	s.task, err = s.p.CreateTask(s.ctx, s.giver, 100, []byte("factor 8051"), s.n.clock.Height()+10, 1000)
	return err
}

func (s *sim) register() error {
	var err error
	s.secret, err = commit.RandomSecret()
	if err != nil {
		return err
	}
	return s.p.RegisterForTask(s.task, s.solver, commit.Hash(s.secret))
}

func (s *sim) commitSolutions() error {
	return s.p.CommitSolution(s.task, s.solver, crypto.Keccak256Hash([]byte("83 × 97")), crypto.Keccak256Hash([]byte("prime")))
}

func (s *sim) challenge(intent uint64) func(*sim) error {
	return func(s *sim) error {
		return s.p.CommitChallenge(s.task, s.verifier, commit.Hash(commit.SecretFromUint64(intent)))
	}
}

func (s *sim) advance(state incentive.State) func(*sim) error {
	return func(s *sim) error { return s.p.AdvanceState(s.task, s.giver, state) }
}

func (s *sim) finalize() error {
	return s.p.FinalizeTask(s.ctx, s.task, s.giver)
}

func (s *sim) unbond(accounts ...common.Address) func(*sim) error {
	return func(s *sim) error {
		for _, a := range accounts {
			_, err := s.p.UnbondDeposit(s.task, a)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func scenarios(s *sim) []scenario {
	return []scenario{
		{"Unchallenged solution", []step{
			{"Giver creates a task", (*sim).create},
			{"Solver registers", (*sim).register},
			{"Solver commits two solutions", (*sim).commitSolutions},
			{"Challenge period passes", func(s *sim) error { return s.mine(s.p.Params().ChallengeTimeout) }},
			{"Open the challenge window", s.advance(incentive.ChallengeWindow)},
			{"Reveal period passes", func(s *sim) error { return s.mine(s.p.Params().RevealTimeout) }},
			{"Close the challenge window", s.advance(incentive.IntentRevealed)},
			{"Solver reveals", func(s *sim) error { return s.p.RevealSolution(s.task, s.solver, true, s.secret) }},
			{"Giver finalizes", (*sim).finalize},
			{"Bonds are returned", s.unbond(s.giver)},
		}},

		{"Successful challenge", []step{
			{"Giver creates a task", (*sim).create},
			{"Solver registers", (*sim).register},
			{"Solver commits two solutions", (*sim).commitSolutions},
			{"Verifier challenges, holding the second solution to be correct", s.challenge(1)},
			{"Challenge period passes", func(s *sim) error { return s.mine(s.p.Params().ChallengeTimeout) }},
			{"Open the challenge window", s.advance(incentive.ChallengeWindow)},
			{"Verifier reveals their intent", func(s *sim) error { return s.p.RevealIntent(s.task, s.verifier, 1) }},
			{"Reveal period passes", func(s *sim) error { return s.mine(s.p.Params().RevealTimeout) }},
			{"Close the challenge window", s.advance(incentive.IntentRevealed)},
			{"Solver reveals", func(s *sim) error { return s.p.RevealSolution(s.task, s.solver, true, s.secret) }},
			{"Verifier runs the verification game and wins", func(s *sim) error { return s.p.RunVerificationGame(s.task, s.verifier) }},
			{"Giver finalizes", (*sim).finalize},
			{"Bonds are returned", s.unbond(s.giver, s.verifier)},
		}},

		{"Leaked secret", []step{
			{"Giver creates a task", (*sim).create},
			{"Solver registers", (*sim).register},
			{"Someone reports the solver's secret", func(s *sim) error { return s.p.PrematureReveal(s.task, s.reporter, s.secret) }},
			{"Solver registers again", (*sim).register},
			{"Solver commits two solutions", (*sim).commitSolutions},
			{"Challenge period passes", func(s *sim) error { return s.mine(s.p.Params().ChallengeTimeout) }},
			{"Open the challenge window", s.advance(incentive.ChallengeWindow)},
			{"Reveal period passes", func(s *sim) error { return s.mine(s.p.Params().RevealTimeout) }},
			{"Close the challenge window", s.advance(incentive.IntentRevealed)},
			{"Solver never reveals", func(s *sim) error { return s.mine(s.p.Params().SolverTimeout) }},
			{"Giver finalizes", (*sim).finalize},
			{"Giver's bond is returned", s.unbond(s.giver)},
		}},
	}
}

// simulate plays the scripted scenarios and prints the resulting state.
func simulate(ctx context.Context, n *node, w io.Writer) error {
	s := &sim{
		ctx:      ctx,
		n:        n,
		p:        n.protocol,
		giver:    common.HexToAddress("0x1111111111111111111111111111111111111111"),
		solver:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
		verifier: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		reporter: common.HexToAddress("0x4444444444444444444444444444444444444444"),
	}

	if n.oracle != nil {
		err := n.oracle.UpdateExchangeRate(n.oracle.Owner(), 2)
		if err != nil {
			return err
		}
	}

	const funds = 1_000_000
	for _, a := range []common.Address{s.giver, s.solver, s.verifier} {
		err := s.p.MakeDeposit(a, funds)
		if err != nil {
			return err
		}
	}
	err := n.vault.Fund(s.giver, funds)
	if err != nil {
		return err
	}

	for _, sc := range scenarios(s) {
		fmt.Fprintf(w, "%s\n", eventColor.Sprint(sc.name))
		for _, st := range sc.steps {
			fmt.Fprintf(w, "  %s\n", st.desc)
			err := st.fn(s)
			if err != nil {
				return errors.UnknownError.WithFormat("%s: %s: %w", sc.name, st.desc, err)
			}
		}
	}

	fmt.Fprintf(w, "\nHeight %d\n", n.clock.Height())
	printTasks(w, s.p.Tasks())

	records, err := n.journal.All()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d events journaled\n", len(records))
	return nil
}
