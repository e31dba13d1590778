// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/accumulatenetwork/incentive/pkg/errors"
)

var cmdMain = &cobra.Command{
	Use:   "incentive",
	Short: "Outsource computation to untrusted solvers",
	Run:   printUsageAndExit1,
	PersistentPreRun: func(*cobra.Command, []string) {
		if flagMain.Debug {
			errors.EnableLocationTracking()
		}
	},
}

var flagMain = struct {
	Debug bool
}{}

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	flags := cmdMain.PersistentFlags()
	flags.StringP("work-dir", "w", filepath.Join(home, ".incentive"), "Working directory for configuration and data")
	flags.StringP("config", "c", "", "Configuration file (defaults to incentive.toml in the working directory)")
	flags.BoolVar(&flagMain.Debug, "debug", false, "Record where errors are created and print their call stacks")

	viper.SetEnvPrefix("incentive")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	check(viper.BindPFlag("work-dir", flags.Lookup("work-dir")))
	check(viper.BindPFlag("config", flags.Lookup("config")))
}

func main() {
	_ = cmdMain.Execute()
}

func printUsageAndExit1(cmd *cobra.Command, args []string) {
	_ = cmd.Usage()
	os.Exit(1)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func check(err error) {
	if err != nil {
		fatalf(errVerb(), err)
	}
}

func checkf(err error, format string, otherArgs ...interface{}) {
	if err != nil {
		fatalf(format+": "+errVerb(), append(otherArgs, err)...)
	}
}

// errVerb prints call stacks in debug mode.
func errVerb() string {
	if flagMain.Debug {
		return "%+v"
	}
	return "%v"
}
