// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

var flagFrom common.Address

// fromFlag adds the required --from flag, the account a command acts as.
func fromFlag(cmd *cobra.Command) {
	cmd.Flags().Var(AddressFlag{&flagFrom}, "from", "Account the command acts as")
	check(cmd.MarkFlagRequired("from"))
}

func init() {
	cmdMain.AddCommand(
		cmdDeposit,
		cmdFund,
		cmdBalance,
		cmdUnbond,
		cmdSetRate,
		cmdMine,
	)

	for _, cmd := range []*cobra.Command{cmdDeposit, cmdFund, cmdUnbond, cmdSetRate} {
		fromFlag(cmd)
	}
}

var cmdDeposit = &cobra.Command{
	Use:   "deposit [amount]",
	Short: "Deposit collateral",
	Args:  cobra.ExactArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		amount, err := parseUint(args[0], "amount")
		if err != nil {
			return err
		}
		err = n.protocol.MakeDeposit(flagFrom, amount)
		if err != nil {
			return err
		}
		cmd.Printf("Deposited %s, free balance is %s\n", humanize.Comma(int64(amount)), humanize.Comma(int64(n.protocol.GetDeposit(flagFrom))))
		return nil
	}),
}

var cmdFund = &cobra.Command{
	Use:   "fund [amount]",
	Short: "Credit the wallet rewards are paid from",
	Args:  cobra.ExactArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		amount, err := parseUint(args[0], "amount")
		if err != nil {
			return err
		}
		err = n.vault.Fund(flagFrom, amount)
		if err != nil {
			return err
		}
		cmd.Printf("Wallet balance is %s\n", humanize.Comma(int64(n.vault.Wallet(flagFrom))))
		return nil
	}),
}

var cmdBalance = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show the balance of an account, or of every account",
	Args:  cobra.MaximumNArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		accounts := n.protocol.Ledger().Accounts()
		if len(args) > 0 {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			accounts = []common.Address{addr}
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Account", "Free", "Bonded", "Deposited", "Slashed", "Credited", "Wallet"})
		table.SetAlignment(tablewriter.ALIGN_RIGHT)
		for _, addr := range accounts {
			t := n.protocol.Ledger().Totals(addr)
			table.Append([]string{
				addr.Hex(),
				humanize.Comma(int64(t.Free)),
				humanize.Comma(int64(t.Bonded)),
				humanize.Comma(int64(t.Deposited)),
				humanize.Comma(int64(t.Slashed)),
				humanize.Comma(int64(t.Credited)),
				humanize.Comma(int64(n.vault.Wallet(addr))),
			})
		}
		table.Render()
		cmd.Printf("Burned: %s\n", humanize.Comma(int64(n.protocol.Ledger().Burned())))
		return nil
	}),
}

var cmdUnbond = &cobra.Command{
	Use:   "unbond [task]",
	Short: "Return a bond to the free balance",
	Args:  cobra.ExactArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		id, err := parseUint(args[0], "task ID")
		if err != nil {
			return err
		}
		amount, err := n.protocol.UnbondDeposit(id, flagFrom)
		if err != nil {
			return err
		}
		cmd.Printf("Unbonded %s\n", humanize.Comma(int64(amount)))
		return nil
	}),
}

var cmdSetRate = &cobra.Command{
	Use:   "set-rate [tokens per USD]",
	Short: "Update the exchange rate oracle",
	Args:  cobra.ExactArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		if n.oracle == nil {
			return errors.BadRequest.With("no exchange rate oracle is configured")
		}
		v, err := parseUint(args[0], "rate")
		if err != nil {
			return err
		}
		return n.oracle.UpdateExchangeRate(flagFrom, v)
	}),
}

var cmdMine = &cobra.Command{
	Use:   "mine [blocks]",
	Short: "Advance the block height",
	Args:  cobra.MaximumNArgs(1),
	Run: withNode(func(cmd *cobra.Command, n *node, args []string) error {
		blocks := uint64(1)
		if len(args) > 0 {
			var err error
			blocks, err = parseUint(args[0], "block count")
			if err != nil {
				return err
			}
		}
		cmd.Printf("Height %d\n", n.clock.Advance(blocks))
		return nil
	}),
}
