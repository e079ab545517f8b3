// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the blockzilla command tree.
package commands

import (
	"fmt"

	"github.com/blockzilla-foundation/blockzilla/cmd/blockzilla/cli"
	"github.com/blockzilla-foundation/blockzilla/lib/version"
)

// Root returns the top-level blockzilla command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "blockzilla",
		Summary: "Solana epoch archive compactor",
		Description: "blockzilla converts content-addressed epoch archives (CAR files)\n" +
			"into a compact four-file format with deduplicated account keys,\n" +
			"an O(1) slot index, and memory-mapped zero-copy reads.",
		Subcommands: []*cli.Command{
			registryCommand(),
			optimizeCommand(),
			analyzeCommand(),
			stringsCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("blockzilla %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
