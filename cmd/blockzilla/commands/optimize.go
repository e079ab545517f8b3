// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/blockzilla-foundation/blockzilla/cmd/blockzilla/cli"
	"github.com/blockzilla-foundation/blockzilla/lib/compact"
	"github.com/blockzilla-foundation/blockzilla/lib/compactor"
)

func optimizeCommand() *cli.Command {
	var (
		inputs     []string
		epochs     []uint
		output     string
		configPath string
		resume     bool
		strict     bool
		verify     bool
		workers    int
	)
	return &cli.Command{
		Name:    "optimize",
		Summary: "build the complete compact file set for one or more epochs",
		Description: "Runs both passes over each epoch archive and publishes the four\n" +
			"compact files atomically. Repeat --input/--epoch in matching order\n" +
			"to build several epochs; --workers bounds how many build at once.",
		Usage: "blockzilla optimize --input epoch.car[.zst|.lz4] --output dir --epoch N " +
			"[--resume] [--strict] [--verify] [--workers k] [--config file]",
		Examples: []cli.Example{
			{
				Description: "build epoch 612",
				Command:     "blockzilla optimize --input epoch-612.car.zst --output /data/compact --epoch 612",
			},
			{
				Description: "build two epochs concurrently, reusing prebuilt registries",
				Command: "blockzilla optimize --input e612.car --epoch 612 " +
					"--input e613.car --epoch 613 --output /data/compact --resume --workers 2",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("optimize", pflag.ContinueOnError)
			flags.StringArrayVar(&inputs, "input", nil, "epoch archive (repeatable)")
			flags.UintSliceVar(&epochs, "epoch", nil, "epoch number for each --input")
			flags.StringVar(&output, "output", "", "directory for the compact files")
			flags.StringVar(&configPath, "config", "", "YAML configuration file")
			flags.BoolVar(&resume, "resume", false, "reuse an existing registry file per epoch")
			flags.BoolVar(&strict, "strict", false, "abort an epoch on the first malformed block")
			flags.BoolVar(&verify, "verify", false, "verify content address digests while reading")
			flags.IntVar(&workers, "workers", 0, "concurrent epoch builds (default from config)")
			return flags
		},
		Run: func(args []string) error {
			cfg := compactor.Default()
			if configPath != "" {
				var err error
				if cfg, err = compactor.LoadFile(configPath); err != nil {
					return err
				}
			}
			// Flags override the config file.
			if output != "" {
				cfg.OutputDir = output
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if strict {
				cfg.Strict = true
			}
			if verify {
				cfg.Verify = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("--input is required")
			}
			if len(inputs) != len(epochs) {
				return fmt.Errorf("%d --input flags but %d --epoch flags", len(inputs), len(epochs))
			}

			log := cli.NewCommandLogger().With("command", "optimize")

			if resume {
				// Resumed builds bypass the pool: each needs its own
				// preloaded registry.
				for i, input := range inputs {
					epoch := uint32(epochs[i])
					reg, err := compact.ReadRegistry(cfg.OutputDir, epoch)
					if err != nil {
						return fmt.Errorf("epoch %d: loading registry for --resume: %w", epoch, err)
					}
					c := compactor.New(log, compactor.Options{
						Strict:   cfg.Strict,
						Verify:   cfg.Verify,
						Registry: reg,
					})
					if _, err := c.Run(input, cfg.OutputDir, epoch); err != nil {
						return err
					}
				}
				return nil
			}

			jobs := make([]compactor.Job, len(inputs))
			for i, input := range inputs {
				jobs[i] = compactor.Job{CarPath: input, Epoch: uint32(epochs[i])}
			}
			failed := 0
			for _, res := range compactor.RunPool(cfg, log, jobs) {
				if res.Err != nil {
					failed++
					log.Error("epoch build failed", "epoch", res.Job.Epoch, "error", res.Err)
				}
			}
			if failed > 0 {
				// Each failure is already logged above; signal the
				// code without a redundant error line.
				log.Error("epoch builds failed", "failed", failed, "total", len(jobs))
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
