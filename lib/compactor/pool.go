// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compactor

import (
	"log/slog"
	"sync"
)

// Job names one epoch archive to build.
type Job struct {
	CarPath string
	Epoch   uint32
}

// Result pairs a job with its outcome.
type Result struct {
	Job     Job
	Summary *Summary
	Err     error
}

// RunPool builds the given epochs with cfg.Workers concurrent workers.
// Each job gets a fresh Compactor, so workers share no mutable state;
// the encoder's temp-then-rename publish makes even duplicate jobs
// safe. Results are returned in job order.
func RunPool(cfg Config, log *slog.Logger, jobs []Job) []Result {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]Result, len(jobs))
	ch := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range ch {
				job := jobs[i]
				c := New(log, Options{Strict: cfg.Strict, Verify: cfg.Verify})
				sum, err := c.Run(job.CarPath, cfg.OutputDir, job.Epoch)
				results[i] = Result{Job: job, Summary: sum, Err: err}
			}
		}()
	}
	for i := range jobs {
		ch <- i
	}
	close(ch)
	wg.Wait()
	return results
}
