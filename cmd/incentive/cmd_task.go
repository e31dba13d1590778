// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"gitlab.com/accumulatenetwork/incentive/pkg/commit"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
	"gitlab.com/accumulatenetwork/incentive/pkg/incentive"
)

var flagCreateTask = struct {
	Difficulty uint64
	Reward     uint64
	Window     uint64
	Payload    string
}{}

var flagSecret common.Hash

var flagRevealSolution = struct {
	Correct bool
}{}

func init() {
	cmdMain.AddCommand(
		cmdCreateTask,
		cmdRegister,
		cmdRevealPremature,
		cmdCommitSolution,
		cmdCommitChallenge,
		cmdAdvance,
		cmdRevealIntent,
		cmdRevealSolution,
		cmdRunGame,
		cmdFinalize,
	)

	for _, cmd := range []*cobra.Command{
		cmdCreateTask,
		cmdRegister,
		cmdRevealPremature,
		cmdCommitSolution,
		cmdCommitChallenge,
		cmdAdvance,
		cmdRevealIntent,
		cmdRevealSolution,
		cmdRunGame,
		cmdFinalize,
	} {
		fromFlag(cmd)
	}

	cmdCreateTask.Flags().Uint64Var(&flagCreateTask.Difficulty, "difficulty", 1, "Difficulty of the task")
	cmdCreateTask.Flags().Uint64Var(&flagCreateTask.Reward, "reward", 0, "Reward paid from the giver's wallet")
	cmdCreateTask.Flags().Uint64Var(&flagCreateTask.Window, "window", 20, "Number of blocks registration stays open")
	cmdCreateTask.Flags().StringVar(&flagCreateTask.Payload, "payload", "", "Task payload")

	cmdRegister.Flags().Var(HashFlag{&flagSecret}, "secret", "Random secret (generated if omitted)")
	cmdRevealPremature.Flags().Var(HashFlag{&flagSecret}, "secret", "The leaked secret")
	cmdRevealSolution.Flags().Var(HashFlag{&flagSecret}, "secret", "The secret committed at registration")
	cmdRevealSolution.Flags().BoolVar(&flagRevealSolution.Correct, "correct", true, "Whether the first solution is the correct one")
	check(cmdRevealPremature.MarkFlagRequired("secret"))
	check(cmdRevealSolution.MarkFlagRequired("secret"))
}

func taskArg(args []string) (uint64, error) {
	return parseUint(args[0], "task ID")
}

var cmdCreateTask = &cobra.Command{
	Use:   "create-task",
	Short: "Create a task, bonding the giver's deposit and escrowing the reward",
	Args:  cobra.NoArgs,
	Run: withNode(func(cmd *cobra.Command, n *node, _ []string) error {
		deadline := n.clock.Height() + flagCreateTask.Window
		id, err := n.protocol.CreateTask(context.Background(), flagFrom, flagCreateTask.Difficulty, []byte(flagCreateTask.Payload), deadline, flagCreateTask.Reward)
		if err != nil {
			return err
		}
		cmd.Printf("Created task %d, registration closes at height %d\n", id, deadline)
		return nil
	}),
}

var cmdRegister = &cobra.Command{
	Use:   "register [task]",
	Short: "Register as the solver of a task",
	Args:  cobra.ExactArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := taskArg(args)
		if err != nil {
			return err
		}

		secret := flagSecret
		if secret == (common.Hash{}) {
			secret, err = commit.RandomSecret()
			if err != nil {
				return err
			}
		}

		err = n.protocol.RegisterForTask(id, flagFrom, commit.Hash(secret))
		if err != nil {
			return err
		}
		cmd.Printf("Registered for task %d\nSecret: %s (keep it private until you reveal the solution)\n", id, secret.Hex())
		return nil
	}),
}

var cmdRevealPremature = &cobra.Command{
	Use:   "reveal-premature [task]",
	Short: "Report a solver's leaked secret",
	Args:  cobra.ExactArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := taskArg(args)
		if err != nil {
			return err
		}
		err = n.protocol.PrematureReveal(id, flagFrom, flagSecret)
		if err != nil {
			return err
		}
		cmd.Printf("Task %d reopened\n", id)
		return nil
	}),
}

var cmdCommitSolution = &cobra.Command{
	Use:   "commit-solution [task] [solution 0] [solution 1]",
	Short: "Commit the hashes of two candidate solutions",
	Args:  cobra.ExactArgs(3),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := taskArg(args)
		if err != nil {
			return err
		}
		h0 := crypto.Keccak256Hash([]byte(args[1]))
		h1 := crypto.Keccak256Hash([]byte(args[2]))
		err = n.protocol.CommitSolution(id, flagFrom, h0, h1)
		if err != nil {
			return err
		}
		cmd.Printf("Committed %s and %s\n", h0.Hex(), h1.Hex())
		return nil
	}),
}

var cmdCommitChallenge = &cobra.Command{
	Use:   "commit-challenge [task] [intent]",
	Short: "Challenge a solution, committing to the index of the correct one",
	Args:  cobra.ExactArgs(2),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := taskArg(args)
		if err != nil {
			return err
		}
		intent, err := parseIntent(args[1])
		if err != nil {
			return err
		}
		return n.protocol.CommitChallenge(id, flagFrom, commit.Hash(commit.SecretFromUint64(intent)))
	}),
}

func parseIntent(s string) (uint64, error) {
	v, err := parseUint(s, "intent")
	if err != nil {
		return 0, err
	}
	if v > 1 {
		return 0, errors.BadRequest.WithFormat("intent must be 0 or 1, got %d", v)
	}
	return v, nil
}

var cmdAdvance = &cobra.Command{
	Use:   "advance [task] [state]",
	Short: "Move a task into or out of the challenge window",
	Args:  cobra.ExactArgs(2),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := taskArg(args)
		if err != nil {
			return err
		}
		state, err := incentive.ParseState(args[1])
		if err != nil {
			return err
		}
		return n.protocol.AdvanceState(id, flagFrom, state)
	}),
}

var cmdRevealIntent = &cobra.Command{
	Use:   "reveal-intent [task] [intent]",
	Short: "Reveal the challenger's intent",
	Args:  cobra.ExactArgs(2),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := taskArg(args)
		if err != nil {
			return err
		}
		intent, err := parseIntent(args[1])
		if err != nil {
			return err
		}
		return n.protocol.RevealIntent(id, flagFrom, intent)
	}),
}

var cmdRevealSolution = &cobra.Command{
	Use:   "reveal-solution [task]",
	Short: "Reveal the solver's secret and claim",
	Args:  cobra.ExactArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := taskArg(args)
		if err != nil {
			return err
		}
		return n.protocol.RevealSolution(id, flagFrom, flagRevealSolution.Correct, flagSecret)
	}),
}

var cmdRunGame = &cobra.Command{
	Use:   "run-game [task]",
	Short: "Run the verification game of a challenged task",
	Args:  cobra.ExactArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := taskArg(args)
		if err != nil {
			return err
		}
		err = n.protocol.RunVerificationGame(id, flagFrom)
		if err != nil {
			return err
		}
		finality, err := n.protocol.GetTaskFinality(id)
		if err != nil {
			return err
		}
		cmd.Printf("Solution %v\n", finality)
		return nil
	}),
}

var cmdFinalize = &cobra.Command{
	Use:   "finalize [task]",
	Short: "Settle a task",
	Args:  cobra.ExactArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := taskArg(args)
		if err != nil {
			return err
		}
		err = n.protocol.FinalizeTask(context.Background(), id, flagFrom)
		if err != nil {
			return err
		}
		task, err := n.protocol.GetTask(id)
		if err != nil {
			return err
		}
		cmd.Printf("Task %d %v (%s)\n", id, task.Finality, task.FinalityReason)
		return nil
	}),
}
