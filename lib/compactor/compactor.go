// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

// Package compactor orchestrates the two-pass conversion of an epoch
// archive into the compact file set: pass one scans the archive and
// assigns registry IDs, pass two re-reads it and writes the four
// output files. A Compactor instance is single-use; the worker pool
// creates a fresh one per epoch.
package compactor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blockzilla-foundation/blockzilla/lib/carchive"
	"github.com/blockzilla-foundation/blockzilla/lib/compact"
	"github.com/blockzilla-foundation/blockzilla/lib/ledger"
	"github.com/blockzilla-foundation/blockzilla/lib/registry"
)

// Stage is the orchestrator's position in the build.
type Stage uint8

const (
	StageIdle Stage = iota
	StageScanning
	StageRegistryBuilt
	StageEncoding
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageScanning:
		return "scanning"
	case StageRegistryBuilt:
		return "registry-built"
	case StageEncoding:
		return "encoding"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// StageError reports which stage a build failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("compactor: %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Options configures one build.
type Options struct {
	// Strict aborts the epoch on the first malformed block instead of
	// skipping it.
	Strict bool
	// Verify recomputes content address digests while reading.
	Verify bool
	// Registry, when non-nil, skips pass one and encodes against a
	// previously built registry.
	Registry *registry.Registry
}

// Summary is the result of a completed build.
type Summary struct {
	Epoch            uint32
	Blocks           uint32
	Transactions     uint32
	SkippedSlots     uint32 // blocks produced with zero transactions
	MalformedSkipped uint32
	RegistryKeys     int
	ScanTime         time.Duration
	EncodeTime       time.Duration
}

// Compactor drives one epoch build through the stage machine.
type Compactor struct {
	log  *slog.Logger
	opts Options

	mu    sync.Mutex
	stage Stage
	used  bool
}

// New returns an idle compactor. A nil logger discards progress
// output.
func New(log *slog.Logger, opts Options) *Compactor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Compactor{log: log, opts: opts}
}

// Stage returns the current stage.
func (c *Compactor) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

func (c *Compactor) setStage(s Stage) {
	c.mu.Lock()
	c.stage = s
	c.mu.Unlock()
}

func (c *Compactor) fail(stage Stage, err error) error {
	c.setStage(StageFailed)
	return &StageError{Stage: stage, Err: err}
}

// acquire enforces single use.
func (c *Compactor) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used {
		return errors.New("compactor: instance already used, create a new one")
	}
	c.used = true
	return nil
}

// Run builds the complete four-file epoch set from the archive at
// carPath into outDir.
func (c *Compactor) Run(carPath, outDir string, epoch uint32) (*Summary, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	sum := &Summary{Epoch: epoch}

	c.setStage(StageScanning)
	src, err := c.prepareSource(carPath, outDir)
	if err != nil {
		return nil, c.fail(StageScanning, err)
	}

	reg := c.opts.Registry
	if reg == nil {
		start := time.Now()
		if reg, err = c.scanRegistry(src, epoch, sum); err != nil {
			return nil, c.fail(StageScanning, err)
		}
		sum.ScanTime = time.Since(start)
	} else {
		c.log.Info("reusing prebuilt registry", "epoch", epoch, "keys", reg.Len())
	}
	sum.RegistryKeys = reg.Len()
	c.setStage(StageRegistryBuilt)

	c.setStage(StageEncoding)
	start := time.Now()
	if err := c.encode(src, outDir, epoch, reg, sum); err != nil {
		return nil, c.fail(StageEncoding, err)
	}
	sum.EncodeTime = time.Since(start)

	c.setStage(StageDone)
	c.log.Info("epoch build complete",
		"epoch", epoch,
		"blocks", sum.Blocks,
		"transactions", sum.Transactions,
		"skipped_slots", sum.SkippedSlots,
		"malformed_skipped", sum.MalformedSkipped,
		"registry_keys", sum.RegistryKeys,
		"scan_time", sum.ScanTime,
		"encode_time", sum.EncodeTime)
	return sum, nil
}

// BuildRegistry runs pass one only and publishes just the registry
// file.
func (c *Compactor) BuildRegistry(carPath, outDir string, epoch uint32) (*Summary, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	sum := &Summary{Epoch: epoch}

	c.setStage(StageScanning)
	src, err := c.prepareSource(carPath, outDir)
	if err != nil {
		return nil, c.fail(StageScanning, err)
	}
	start := time.Now()
	reg, err := c.scanRegistry(src, epoch, sum)
	if err != nil {
		return nil, c.fail(StageScanning, err)
	}
	sum.ScanTime = time.Since(start)
	sum.RegistryKeys = reg.Len()
	c.setStage(StageRegistryBuilt)

	if err := compact.WriteRegistry(outDir, epoch, reg); err != nil {
		return nil, c.fail(StageRegistryBuilt, err)
	}
	c.setStage(StageDone)
	c.log.Info("registry build complete",
		"epoch", epoch,
		"registry_keys", sum.RegistryKeys,
		"malformed_skipped", sum.MalformedSkipped,
		"scan_time", sum.ScanTime)
	return sum, nil
}

// prepareSource resolves a possibly compressed archive to a plain one,
// caching the decompressed copy next to the output files.
func (c *Compactor) prepareSource(carPath, outDir string) (string, error) {
	f, err := os.Open(carPath)
	if err != nil {
		return "", err
	}
	head := make([]byte, 4)
	n, _ := io.ReadFull(f, head)
	f.Close()
	if carchive.DetectEnvelope(head[:n]) == carchive.EnvelopeNone {
		return carPath, nil
	}

	base := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(carPath), ".zst"), ".lz4")
	cached := filepath.Join(outDir, base)
	if info, err := os.Stat(cached); err == nil && info.Size() > 0 {
		c.log.Info("reusing cached archive", "path", cached)
		return cached, nil
	}
	c.log.Info("decompressing archive", "src", carPath, "dst", cached)
	if err := carchive.Decompress(carPath, cached); err != nil {
		return "", err
	}
	return cached, nil
}

func (c *Compactor) openArchive(path string) (*carchive.Reader, error) {
	if c.opts.Verify {
		return carchive.OpenVerified(path)
	}
	return carchive.Open(path)
}

// skippable reports whether a block-level decode failure may be
// skipped in non-strict mode. Archive framing errors are never
// skippable: the reader cannot advance past them.
func skippable(err error) bool {
	var de *ledger.DecodeError
	return errors.As(err, &de)
}

// scanRegistry is pass one: walk every block and assign registry IDs
// in first-seen order.
func (c *Compactor) scanRegistry(src string, epoch uint32, sum *Summary) (*registry.Registry, error) {
	r, err := c.openArchive(src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	b := registry.NewBuilder()
	asm := ledger.NewAssembler(r)
	for {
		blk, err := asm.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !c.opts.Strict && skippable(err) {
				sum.MalformedSkipped++
				c.log.Warn("skipping malformed block", "pass", "scan", "error", err)
				continue
			}
			return nil, err
		}
		scanBlockKeys(blk, b)
	}
	c.log.Info("registry scan complete", "epoch", epoch, "keys", b.Len())
	return b.Finalize(), nil
}

// scanBlockKeys inserts every key the encoder will later resolve:
// static account keys, loaded addresses, token balance keys, and
// transaction reward recipients.
func scanBlockKeys(blk *ledger.Block, b *registry.Builder) {
	for i := range blk.Transactions {
		tx := &blk.Transactions[i]
		for _, key := range tx.Wire.AccountKeys {
			b.LookupOrInsert(key)
		}
		if tx.Meta == nil {
			continue
		}
		for _, key := range tx.Meta.LoadedWritable {
			b.LookupOrInsert(key)
		}
		for _, key := range tx.Meta.LoadedReadonly {
			b.LookupOrInsert(key)
		}
		scanTokenBalanceKeys(tx.Meta.PreTokenBalances, b)
		scanTokenBalanceKeys(tx.Meta.PostTokenBalances, b)
		for _, rw := range tx.Meta.Rewards {
			b.LookupOrInsert(rw.Pubkey)
		}
		if tx.Meta.ReturnData != nil {
			b.LookupOrInsert(tx.Meta.ReturnData.Program)
		}
	}
}

func scanTokenBalanceKeys(balances []ledger.TokenBalance, b *registry.Builder) {
	for _, tb := range balances {
		b.LookupOrInsert(tb.Mint)
		if tb.HasOwner {
			b.LookupOrInsert(tb.Owner)
		}
		if tb.HasProgram {
			b.LookupOrInsert(tb.Program)
		}
	}
}

// encode is pass two: walk the archive again and write the file set.
// The walk skips exactly the blocks pass one skipped, so every key
// resolves.
func (c *Compactor) encode(src, outDir string, epoch uint32, reg *registry.Registry, sum *Summary) error {
	r, err := c.openArchive(src)
	if err != nil {
		return err
	}
	defer r.Close()

	enc, err := compact.NewEncoder(outDir, epoch, reg)
	if err != nil {
		return err
	}
	defer enc.Abort()

	asm := ledger.NewAssembler(r)
	for {
		blk, err := asm.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !c.opts.Strict && skippable(err) {
				// Pass one already counted this skip unless it was
				// bypassed by a prebuilt registry.
				if c.opts.Registry != nil {
					sum.MalformedSkipped++
				}
				c.log.Warn("skipping malformed block", "pass", "encode", "error", err)
				continue
			}
			return err
		}
		if err := enc.AddBlock(blk); err != nil {
			return err
		}
		sum.Blocks++
		sum.Transactions += uint32(len(blk.Transactions))
		if len(blk.Transactions) == 0 {
			sum.SkippedSlots++
		}
	}
	return enc.Finish()
}
