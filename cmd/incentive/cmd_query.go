// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gitlab.com/accumulatenetwork/incentive/internal/journal"
	"gitlab.com/accumulatenetwork/incentive/pkg/events"
	"gitlab.com/accumulatenetwork/incentive/pkg/incentive"
)

var flagTasks = struct {
	State string
}{}

func init() {
	cmdMain.AddCommand(cmdTasks, cmdEvents)
	cmdTasks.Flags().StringVar(&flagTasks.State, "state", "", "Only list tasks in this state")
}

var cmdTasks = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	Run: withNode(func(cmd *cobra.Command, n *node, _ []string) error {
		tasks := n.protocol.Tasks()
		if flagTasks.State != "" {
			state, err := incentive.ParseState(flagTasks.State)
			if err != nil {
				return err
			}
			var filtered []*incentive.Task
			for _, t := range tasks {
				if t.State == state {
					filtered = append(filtered, t)
				}
			}
			tasks = filtered
		}

		cmd.Printf("Height %d\n", n.clock.Height())
		printTasks(cmd.OutOrStdout(), tasks)
		return nil
	}),
}

func printTasks(w io.Writer, tasks []*incentive.Task) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "State", "Since", "Giver", "Solver", "Verifier", "Difficulty", "Deposit", "Reward", "Deadline", "Outcome"})
	for _, t := range tasks {
		outcome := ""
		if t.Finality != incentive.Unresolved {
			outcome = fmt.Sprintf("%v (%s)", t.Finality, t.FinalityReason)
		}
		table.Append([]string{
			strconv.FormatUint(t.ID, 10),
			t.State.String(),
			strconv.FormatUint(t.StateHeight, 10),
			short(t.Giver),
			short(t.Solver),
			short(t.Verifier),
			humanize.Comma(int64(t.Difficulty)),
			humanize.Comma(int64(t.MinDeposit)),
			humanize.Comma(int64(t.Reward)),
			strconv.FormatUint(t.RegistrationDeadline, 10),
			outcome,
		})
	}
	table.Render()
}

func short(a common.Address) string {
	if a == (common.Address{}) {
		return "-"
	}
	s := a.Hex()
	return s[:6] + ".." + s[len(s)-4:]
}

var cmdEvents = &cobra.Command{
	Use:   "events [task]",
	Short: "Print the event journal of a task, or of everything",
	Args:  cobra.MaximumNArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		var records []*journal.Record
		var err error
		if len(args) == 0 {
			records, err = n.journal.All()
		} else {
			var id uint64
			id, err = taskArg(args)
			if err != nil {
				return err
			}
			records, err = n.journal.Events(id)
		}
		if err != nil {
			return err
		}

		for _, r := range records {
			err = printEvent(cmd.OutOrStdout(), r)
			if err != nil {
				return err
			}
		}
		return nil
	}),
}

var (
	seqColor     = color.New(color.FgHiBlack)
	penaltyColor = color.New(color.FgRed)
	settleColor  = color.New(color.FgGreen)
	eventColor   = color.New(color.FgCyan)
)

func kindColor(k events.Kind) *color.Color {
	switch k {
	case events.KindDepositSlashed, events.KindTaskReopened:
		return penaltyColor
	case events.KindTaskFinalized, events.KindRewardSettled, events.KindVerificationGameResolved:
		return settleColor
	default:
		return eventColor
	}
}

func printEvent(w io.Writer, r *journal.Record) error {
	b, err := json.Marshal(r.Event)
	if err != nil {
		return err
	}
	task := "-"
	if r.Task != events.NoTask {
		task = strconv.FormatUint(r.Task, 10)
	}
	_, err = fmt.Fprintf(w, "%s %s %s %s\n",
		seqColor.Sprintf("#%-4d", r.Seq),
		seqColor.Sprintf("task=%s", task),
		kindColor(r.Event.Kind()).Sprint(r.Event.Kind()),
		b)
	return err
}
