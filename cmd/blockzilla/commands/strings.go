// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/pflag"

	"github.com/blockzilla-foundation/blockzilla/cmd/blockzilla/cli"
	"github.com/blockzilla-foundation/blockzilla/lib/compact"
)

func stringsCommand() *cli.Command {
	var (
		compactDir string
		epoch      uint32
		top        int
		jsonOut    bool
	)
	return &cli.Command{
		Name:    "strings",
		Summary: "dump string table statistics for a compact epoch",
		Description: "Reports the size of the shared string table and the largest\n" +
			"entries in it. Useful for judging how much log text an epoch\n" +
			"carries and what is worth filtering upstream.",
		Usage: "blockzilla strings --compact dir --epoch N [--top k] [--json]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("strings", pflag.ContinueOnError)
			flags.StringVar(&compactDir, "compact", "", "compact file set directory")
			flags.Uint32Var(&epoch, "epoch", 0, "epoch number")
			flags.IntVar(&top, "top", 20, "number of largest entries to show")
			flags.BoolVar(&jsonOut, "json", false, "output as JSON")
			return flags
		},
		Run: func(args []string) error {
			if compactDir == "" {
				return fmt.Errorf("--compact is required")
			}
			r, err := compact.Open(compactDir, epoch)
			if err != nil {
				return err
			}
			defer r.Close()
			return dumpStrings(r, top, jsonOut)
		},
	}
}

type stringEntry struct {
	ID    uint32 `json:"id"`
	Bytes int    `json:"bytes"`
	Value string `json:"value"`
}

type stringsReport struct {
	Count      int           `json:"count"`
	TotalBytes int           `json:"total_bytes"`
	Largest    []stringEntry `json:"largest"`
}

func dumpStrings(r *compact.Reader, top int, jsonOut bool) error {
	table := r.Strings()
	report := stringsReport{Count: table.Len()}

	entries := make([]stringEntry, table.Len())
	for id := 0; id < table.Len(); id++ {
		value, err := table.Get(uint32(id))
		if err != nil {
			return err
		}
		report.TotalBytes += len(value)
		entries[id] = stringEntry{ID: uint32(id), Bytes: len(value), Value: string(value)}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Bytes != entries[j].Bytes {
			return entries[i].Bytes > entries[j].Bytes
		}
		return entries[i].ID < entries[j].ID
	})
	if top > len(entries) {
		top = len(entries)
	}
	report.Largest = entries[:top]

	if jsonOut {
		return cli.WriteJSON(report)
	}
	fmt.Printf("strings:     %d\n", report.Count)
	fmt.Printf("total bytes: %d\n", report.TotalBytes)
	for _, e := range report.Largest {
		value := e.Value
		if len(value) > 80 {
			value = value[:77] + "..."
		}
		fmt.Printf("%8d  %6dB  %q\n", e.ID, e.Bytes, value)
	}
	return nil
}
