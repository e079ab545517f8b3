// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/pflag"

	"github.com/blockzilla-foundation/blockzilla/cmd/blockzilla/cli"
	"github.com/blockzilla-foundation/blockzilla/lib/carchive"
	"github.com/blockzilla-foundation/blockzilla/lib/compact"
	"github.com/blockzilla-foundation/blockzilla/lib/ledger"
)

// analyzeReport is the analyze command's output for both formats.
type analyzeReport struct {
	Source       string           `json:"source"`
	Blocks       uint64           `json:"blocks"`
	Transactions uint64           `json:"transactions"`
	Instructions uint64           `json:"instructions"`
	LogEvents    uint64           `json:"log_events"`
	DistinctKeys int              `json:"distinct_keys"`
	FileBytes    map[string]int64 `json:"file_bytes"`
	SpanSeconds  int64            `json:"span_seconds"`
	TPS          float64          `json:"tps"`

	minTime, maxTime int64
}

func (r *analyzeReport) observeTime(t int64) {
	if t == 0 {
		return
	}
	if r.minTime == 0 || t < r.minTime {
		r.minTime = t
	}
	if t > r.maxTime {
		r.maxTime = t
	}
}

func (r *analyzeReport) finish() {
	if r.maxTime > r.minTime {
		r.SpanSeconds = r.maxTime - r.minTime
		r.TPS = float64(r.Transactions) / float64(r.SpanSeconds)
	}
}

func analyzeCommand() *cli.Command {
	var (
		carPath    string
		compactDir string
		epoch      uint32
		jsonOut    bool
	)
	return &cli.Command{
		Name:    "analyze",
		Summary: "report statistics for an epoch archive or compact file set",
		Description: "Walks every block of either format and reports block, transaction,\n" +
			"instruction, and log counts, distinct account keys, per-file byte\n" +
			"sizes, and transaction throughput derived from block timestamps.",
		Usage: "blockzilla analyze (--car file | --compact dir --epoch N) [--json]",
		Examples: []cli.Example{
			{
				Description: "summarize a raw archive",
				Command:     "blockzilla analyze --car epoch-612.car",
			},
			{
				Description: "summarize a compact epoch as JSON",
				Command:     "blockzilla analyze --compact /data/compact --epoch 612 --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
			flags.StringVar(&carPath, "car", "", "epoch archive to analyze")
			flags.StringVar(&compactDir, "compact", "", "compact file set directory")
			flags.Uint32Var(&epoch, "epoch", 0, "epoch number (with --compact)")
			flags.BoolVar(&jsonOut, "json", false, "output as JSON")
			return flags
		},
		Run: func(args []string) error {
			var (
				report *analyzeReport
				err    error
			)
			switch {
			case carPath != "" && compactDir != "":
				return fmt.Errorf("--car and --compact are mutually exclusive")
			case carPath != "":
				report, err = analyzeCar(carPath)
			case compactDir != "":
				report, err = analyzeCompact(compactDir, epoch)
			default:
				return fmt.Errorf("one of --car or --compact is required")
			}
			if err != nil {
				return err
			}
			report.finish()

			if jsonOut {
				return cli.WriteJSON(report)
			}
			printReport(report)
			return nil
		},
	}
}

func analyzeCar(path string) (*analyzeReport, error) {
	r, err := carchive.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	report := &analyzeReport{Source: path, FileBytes: map[string]int64{}}
	if info, err := os.Stat(path); err == nil {
		report.FileBytes[filepath.Base(path)] = info.Size()
	}

	keys := make(map[[32]byte]struct{})
	asm := ledger.NewAssembler(r)
	for {
		blk, err := asm.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		report.Blocks++
		report.observeTime(blk.BlockTime)
		for i := range blk.Transactions {
			tx := &blk.Transactions[i]
			report.Transactions++
			report.Instructions += uint64(len(tx.Wire.Instructions))
			for _, key := range tx.Wire.AccountKeys {
				keys[key] = struct{}{}
			}
			if tx.Meta == nil {
				continue
			}
			report.LogEvents += uint64(len(tx.Meta.Logs))
			for _, key := range tx.Meta.LoadedWritable {
				keys[key] = struct{}{}
			}
			for _, key := range tx.Meta.LoadedReadonly {
				keys[key] = struct{}{}
			}
		}
	}
	report.DistinctKeys = len(keys)
	return report, nil
}

func analyzeCompact(dir string, epoch uint32) (*analyzeReport, error) {
	r, err := compact.Open(dir, epoch)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	report := &analyzeReport{
		Source:       fmt.Sprintf("%s (epoch %d)", dir, epoch),
		DistinctKeys: r.Registry().Len(),
		FileBytes:    map[string]int64{},
	}
	for _, kind := range []byte{compact.KindRegistry, compact.KindSlotIndex, compact.KindBlock, compact.KindRuntime} {
		name := compact.FileName(epoch, kind)
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
			report.FileBytes[name] = info.Size()
		}
	}

	it := r.Blocks()
	for {
		blk, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		report.Blocks++
		report.observeTime(blk.BlockTime)
		for _, tx := range blk.Transactions {
			report.Transactions++
			report.Instructions += uint64(len(tx.Instructions))
			rec, err := r.Runtime(tx)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				report.LogEvents += uint64(len(rec.Logs))
			}
		}
	}
	return report, nil
}

func printReport(r *analyzeReport) {
	fmt.Printf("source:        %s\n", r.Source)
	fmt.Printf("blocks:        %d\n", r.Blocks)
	fmt.Printf("transactions:  %d\n", r.Transactions)
	fmt.Printf("instructions:  %d\n", r.Instructions)
	fmt.Printf("log events:    %d\n", r.LogEvents)
	fmt.Printf("distinct keys: %d\n", r.DistinctKeys)
	for _, name := range slices.Sorted(maps.Keys(r.FileBytes)) {
		fmt.Printf("file:          %s (%d bytes)\n", name, r.FileBytes[name])
	}
	if r.SpanSeconds > 0 {
		fmt.Printf("span:          %ds\n", r.SpanSeconds)
		fmt.Printf("tps:           %.2f\n", r.TPS)
	}
}
