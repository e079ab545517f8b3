// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/blockzilla-foundation/blockzilla/cmd/blockzilla/cli"
	"github.com/blockzilla-foundation/blockzilla/lib/compactor"
)

func registryCommand() *cli.Command {
	var (
		input  string
		output string
		epoch  uint32
		strict bool
		verify bool
	)
	return &cli.Command{
		Name:    "registry",
		Summary: "build only the account key registry for an epoch",
		Description: "Runs the registry scan (pass one) over an epoch archive and\n" +
			"publishes just the registry file. A later 'optimize --resume' run\n" +
			"reuses it instead of scanning again.",
		Usage: "blockzilla registry --input epoch.car[.zst|.lz4] --output dir --epoch N",
		Examples: []cli.Example{
			{
				Description: "scan epoch 612 and write its registry",
				Command:     "blockzilla registry --input epoch-612.car.zst --output /data/compact --epoch 612",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("registry", pflag.ContinueOnError)
			flags.StringVar(&input, "input", "", "epoch archive to scan")
			flags.StringVar(&output, "output", "", "directory for the registry file")
			flags.Uint32Var(&epoch, "epoch", 0, "epoch number of the archive")
			flags.BoolVar(&strict, "strict", false, "abort on the first malformed block")
			flags.BoolVar(&verify, "verify", false, "verify content address digests while reading")
			return flags
		},
		Run: func(args []string) error {
			if input == "" || output == "" {
				return fmt.Errorf("--input and --output are required")
			}
			log := cli.NewCommandLogger().With("command", "registry", "epoch", epoch)
			c := compactor.New(log, compactor.Options{Strict: strict, Verify: verify})
			_, err := c.BuildRegistry(input, output, epoch)
			return err
		},
	}
}
