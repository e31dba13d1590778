// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package main

import (
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
)

const unknownVersion = "version unknown"

// Version is set with -ldflags "-X main.Version=...".
var Version = unknownVersion

func version() string {
	if Version != unknownVersion {
		return Version
	}
	info, ok := debug.ReadBuildInfo()
	if ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return unknownVersion
}

var cmdVersion = &cobra.Command{
	Use:  "version",
	Args: cobra.NoArgs,
	Run:  showVersion,
}

var flagVersion struct {
	VersionOnly  bool
	KnownVersion bool
}

func init() {
	cmdMain.AddCommand(cmdVersion)

	cmdVersion.Flags().BoolVar(&flagVersion.VersionOnly, "version-only", false, "Only print out the version number")
	cmdVersion.Flags().BoolVar(&flagVersion.KnownVersion, "known-version", false, "Return 1 if the version number is unknown")
}

func showVersion(cmd *cobra.Command, _ []string) {
	v := version()
	if flagVersion.VersionOnly {
		cmd.Println(v)
	} else {
		cmd.Printf("%s %s\n", cmdMain.Short, v)
	}

	if flagVersion.KnownVersion && v == unknownVersion {
		os.Exit(1)
	}
}
