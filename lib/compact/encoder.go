// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blockzilla-foundation/blockzilla/lib/ledger"
	"github.com/blockzilla-foundation/blockzilla/lib/registry"
)

// Encoder writes one epoch's compact file set. Blocks are appended in
// ascending slot order; Finish seals the four files and renames them
// into place in one batch, so a reader never observes a partial epoch.
// Until Finish succeeds only *.tmp names exist.
type Encoder struct {
	dir        string
	epoch      uint32
	epochStart uint64
	reg        *registry.Registry
	rt         *runtimeEncoder

	block   *tmpFile
	runtime *tmpFile

	// blockhashes maps each encoded block's hash to its slot offset,
	// so later transactions store a reference instead of the raw hash.
	blockhashes map[[32]byte]uint32

	blockOff   uint64
	runtimeOff uint64
	slots      []SlotEntry
	blockCount uint32
	txCount    uint32
	lastSlot   uint64
	finished   bool
}

// tmpFile is a buffered temp file that becomes final by rename.
type tmpFile struct {
	f    *os.File
	w    *bufio.Writer
	path string // final path, f.Name() is path+".tmp"
}

func createTmp(dir, name string) (*tmpFile, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path+".tmp", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return &tmpFile{f: f, w: bufio.NewWriterSize(f, 1<<20), path: path}, nil
}

func (t *tmpFile) seal() error {
	if err := t.w.Flush(); err != nil {
		return err
	}
	return t.f.Sync()
}

func (t *tmpFile) discard() {
	t.f.Close()
	os.Remove(t.f.Name())
}

// publish renames the temp file to its final name.
func (t *tmpFile) publish() error {
	if err := os.Rename(t.f.Name(), t.path); err != nil {
		return fmt.Errorf("publish %s: %w", filepath.Base(t.path), err)
	}
	return t.f.Close()
}

// NewEncoder opens the temp files for epoch under dir. The registry
// must be sealed: every key the blocks reference has to resolve.
func NewEncoder(dir string, epoch uint32, reg *registry.Registry) (*Encoder, error) {
	e := &Encoder{
		dir:         dir,
		epoch:       epoch,
		epochStart:  uint64(epoch) * SlotsPerEpoch,
		reg:         reg,
		rt:          newRuntimeEncoder(reg),
		blockhashes: make(map[[32]byte]uint32),
		blockOff:    HeaderLen,
		runtimeOff:  HeaderLen + RuntimeDirLen,
		slots:       make([]SlotEntry, SlotsPerEpoch),
	}

	var err error
	if e.block, err = createTmp(dir, FileName(epoch, KindBlock)); err != nil {
		return nil, err
	}
	if e.runtime, err = createTmp(dir, FileName(epoch, KindRuntime)); err != nil {
		e.block.discard()
		return nil, err
	}

	// Header (and runtime directory) space is reserved now and filled
	// in by Finish once the counts are known.
	if _, err := e.block.w.Write(make([]byte, HeaderLen)); err != nil {
		e.Abort()
		return nil, err
	}
	if _, err := e.runtime.w.Write(make([]byte, HeaderLen+RuntimeDirLen)); err != nil {
		e.Abort()
		return nil, err
	}
	return e, nil
}

// Abort discards the temp files. Safe to call after a failed Finish.
func (e *Encoder) Abort() {
	if e.block != nil {
		e.block.discard()
		e.block = nil
	}
	if e.runtime != nil {
		e.runtime.discard()
		e.runtime = nil
	}
}

// Blocks reports the number of blocks encoded so far.
func (e *Encoder) Blocks() uint32 { return e.blockCount }

// Transactions reports the number of transactions encoded so far.
func (e *Encoder) Transactions() uint32 { return e.txCount }

// AddBlock encodes one assembled block. Blocks must arrive in strictly
// ascending slot order within the encoder's epoch.
func (e *Encoder) AddBlock(b *ledger.Block) error {
	if e.finished {
		return formatErr(FileName(e.epoch, KindBlock), "AddBlock after Finish")
	}
	if b.Slot < e.epochStart || b.Slot >= e.epochStart+SlotsPerEpoch {
		return formatErr(FileName(e.epoch, KindBlock), "slot %d outside epoch %d", b.Slot, e.epoch)
	}
	if e.blockCount > 0 && b.Slot <= e.lastSlot {
		return formatErr(FileName(e.epoch, KindBlock), "slot %d out of order after %d", b.Slot, e.lastSlot)
	}

	var body []byte
	for i := range b.Transactions {
		tx, err := e.convertTransaction(&b.Transactions[i])
		if err != nil {
			return fmt.Errorf("slot %d tx %d: %w", b.Slot, i, err)
		}
		body = appendTxRecord(body, tx)
	}

	hdr := BlockHeader{
		Slot:        b.Slot,
		ParentSlot:  b.ParentSlot,
		BlockTime:   b.BlockTime,
		BlockHeight: b.BlockHeight,
		TxCount:     uint32(len(b.Transactions)),
		BodyLen:     uint32(len(body)),
		Blockhash:   b.Blockhash,
	}
	raw := hdr.encode()
	if _, err := e.block.w.Write(raw[:]); err != nil {
		return err
	}
	if _, err := e.block.w.Write(body); err != nil {
		return err
	}

	status := SlotPresent
	if len(b.Transactions) == 0 {
		status = SlotSkipped
	}
	e.slots[b.Slot-e.epochStart] = SlotEntry{
		Status:  status,
		TxCount: hdr.TxCount,
		Offset:  e.blockOff,
		Length:  BlockHeaderLen + uint64(len(body)),
	}

	e.blockhashes[b.Blockhash] = uint32(b.Slot - e.epochStart)
	e.blockOff += BlockHeaderLen + uint64(len(body))
	e.lastSlot = b.Slot
	e.blockCount++
	e.txCount += hdr.TxCount
	return nil
}

// convertTransaction resolves a transaction's keys against the
// registry and writes its runtime record.
func (e *Encoder) convertTransaction(src *ledger.Transaction) (*Transaction, error) {
	tx := &Transaction{
		Signatures: src.Wire.Signatures,
		Header:     src.Wire.Header,
	}
	if slot, ok := e.blockhashes[src.Wire.RecentBlockhash]; ok {
		tx.RecentBlockhash = RecentBlockhash{ByRef: true, Slot: slot}
	} else {
		// Durable nonce, or a hash from before this epoch's blocks.
		tx.RecentBlockhash = RecentBlockhash{Inline: src.Wire.RecentBlockhash}
	}

	tx.StaticAccounts = make([]uint32, len(src.Wire.AccountKeys))
	for i, key := range src.Wire.AccountKeys {
		id, ok := e.reg.Lookup(key)
		if !ok {
			return nil, formatErr("registry", "account key %s not registered", ledger.FormatPubkey(key))
		}
		tx.StaticAccounts[i] = id
	}

	if src.Meta != nil {
		tx.Status = src.Meta.Status
		tx.Fee = src.Meta.Fee
		var err error
		if tx.LoadedWritable, err = e.lookupKeys(src.Meta.LoadedWritable); err != nil {
			return nil, err
		}
		if tx.LoadedReadonly, err = e.lookupKeys(src.Meta.LoadedReadonly); err != nil {
			return nil, err
		}
	}

	combined := tx.CombinedAccounts()
	tx.Instructions = make([]Instruction, len(src.Wire.Instructions))
	for i, in := range src.Wire.Instructions {
		program, err := resolveIndex(combined, in.ProgramIndex, "instruction program")
		if err != nil {
			return nil, err
		}
		accounts := make([]uint32, len(in.Accounts))
		for j, idx := range in.Accounts {
			if accounts[j], err = resolveIndex(combined, idx, "instruction account"); err != nil {
				return nil, err
			}
		}
		tx.Instructions[i] = Instruction{Program: program, Accounts: accounts, Data: in.Data}
	}

	if src.Meta != nil {
		record, err := e.rt.encode(nil, src.Meta, combined)
		if err != nil {
			return nil, err
		}
		framed := appendFrame(nil, record)
		if _, err := e.runtime.w.Write(framed); err != nil {
			return nil, err
		}
		tx.RuntimeOffset = e.runtimeOff
		tx.RuntimeLen = uint32(len(framed))
		e.runtimeOff += uint64(len(framed))
	}
	return tx, nil
}

func (e *Encoder) lookupKeys(keys [][32]byte) ([]uint32, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]uint32, len(keys))
	for i, key := range keys {
		id, ok := e.reg.Lookup(key)
		if !ok {
			return nil, formatErr("registry", "loaded key %s not registered", ledger.FormatPubkey(key))
		}
		out[i] = id
	}
	return out, nil
}

// Finish seals all four files and renames them into place. On error
// the temp files are discarded and the target names are untouched.
func (e *Encoder) Finish() error {
	if e.finished {
		return formatErr(e.dir, "Finish called twice")
	}
	e.finished = true

	if err := e.finishBlock(); err != nil {
		e.Abort()
		return err
	}
	if err := e.finishRuntime(); err != nil {
		e.Abort()
		return err
	}

	regFile, err := writeRegistryTmp(e.dir, e.epoch, e.reg)
	if err != nil {
		e.Abort()
		return err
	}
	indexFile, err := e.writeSlotIndex()
	if err != nil {
		regFile.discard()
		e.Abort()
		return err
	}

	// All four temp files are complete and durable; publish them.
	for _, t := range []*tmpFile{regFile, indexFile, e.block, e.runtime} {
		if err := t.publish(); err != nil {
			regFile.discard()
			indexFile.discard()
			e.Abort()
			return err
		}
	}
	e.block, e.runtime = nil, nil
	return syncDir(e.dir)
}

func (e *Encoder) finishBlock() error {
	if err := e.block.w.Flush(); err != nil {
		return err
	}
	hdr := Header{Kind: KindBlock, Epoch: e.epoch, Count: e.blockCount}.encode()
	if _, err := e.block.f.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	return e.block.f.Sync()
}

func (e *Encoder) finishRuntime() error {
	strings := e.rt.strings.Finalize()
	blobs := e.rt.blobs.Finalize()

	dir := runtimeDir{
		recOff: HeaderLen + RuntimeDirLen,
		recLen: e.runtimeOff - (HeaderLen + RuntimeDirLen),
	}

	dir.strOff = e.runtimeOff
	n, err := writeTable(e.runtime.w, strings)
	if err != nil {
		return err
	}
	dir.strLen = n

	dir.bytesOff = dir.strOff + n
	if n, err = writeTable(e.runtime.w, blobs); err != nil {
		return err
	}
	dir.bytesLen = n

	if err := e.runtime.w.Flush(); err != nil {
		return err
	}
	hdr := Header{Kind: KindRuntime, Epoch: e.epoch, Count: e.txCount}.encode()
	if _, err := e.runtime.f.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	rawDir := dir.encode()
	if _, err := e.runtime.f.WriteAt(rawDir[:], HeaderLen); err != nil {
		return err
	}
	return e.runtime.f.Sync()
}

// writeTable serializes a value table: count, count+1 end offsets
// (the first always zero), then the blob.
func writeTable(w *bufio.Writer, t *registry.Table) (uint64, error) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(t.Len()))
	if _, err := w.Write(buf[:]); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(buf[:], 0)
	if _, err := w.Write(buf[:]); err != nil {
		return 0, err
	}
	for _, end := range t.Ends() {
		binary.LittleEndian.PutUint32(buf[:], end)
		if _, err := w.Write(buf[:]); err != nil {
			return 0, err
		}
	}
	if _, err := w.Write(t.Blob()); err != nil {
		return 0, err
	}
	return 4 + 4*uint64(t.Len()+1) + uint64(len(t.Blob())), nil
}

func (e *Encoder) writeSlotIndex() (*tmpFile, error) {
	t, err := createTmp(e.dir, FileName(e.epoch, KindSlotIndex))
	if err != nil {
		return nil, err
	}
	hdr := Header{Kind: KindSlotIndex, Epoch: e.epoch, Count: SlotsPerEpoch}.encode()
	if _, err := t.w.Write(hdr[:]); err != nil {
		t.discard()
		return nil, err
	}
	for i := range e.slots {
		raw := e.slots[i].encode()
		if _, err := t.w.Write(raw[:]); err != nil {
			t.discard()
			return nil, err
		}
	}
	if err := t.seal(); err != nil {
		t.discard()
		return nil, err
	}
	return t, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
