// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import (
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"

	"github.com/blockzilla-foundation/blockzilla/lib/mapped"
	"github.com/blockzilla-foundation/blockzilla/lib/registry"
)

// Block is one decoded block record.
type Block struct {
	BlockHeader
	Transactions []*Transaction
}

// TableView reads a serialized value table in place.
type TableView struct {
	name string
	ends []byte // (count+1) little-endian u32s
	blob []byte
}

func newTableView(name string, data []byte) (TableView, error) {
	if len(data) < 8 {
		return TableView{}, formatErr(name, "table region is %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data)
	endsLen := 4 * (uint64(count) + 1)
	if uint64(len(data)-4) < endsLen {
		return TableView{}, formatErr(name, "table of %d values needs %d offset bytes, region has %d", count, endsLen, len(data)-4)
	}
	v := TableView{
		name: name,
		ends: data[4 : 4+endsLen],
		blob: data[4+endsLen:],
	}
	last := v.end(count)
	if uint64(last) > uint64(len(v.blob)) {
		return TableView{}, formatErr(name, "table blob is %d bytes, offsets reach %d", len(v.blob), last)
	}
	return v, nil
}

func (v TableView) end(i uint32) uint32 {
	return binary.LittleEndian.Uint32(v.ends[4*i:])
}

// Len reports the number of values in the table.
func (v TableView) Len() int {
	return len(v.ends)/4 - 1
}

// Get returns value id directly out of the mapped region.
func (v TableView) Get(id uint32) ([]byte, error) {
	if int(id) >= v.Len() {
		return nil, fmt.Errorf("%w: %s value %d of %d", registry.ErrOutOfRange, v.name, id, v.Len())
	}
	start, end := v.end(id), v.end(id+1)
	if start > end || uint64(end) > uint64(len(v.blob)) {
		return nil, formatErr(v.name, "value %d has corrupt offsets %d..%d", id, start, end)
	}
	return v.blob[start:end], nil
}

// Reader maps one epoch's compact file set read-only. All returned
// slices borrow the mappings and are valid until Close.
type Reader struct {
	epoch uint32
	files []*mapped.File

	reg     registry.View
	slots   []byte // slot entry region
	blocks  []byte // whole block file
	runtime []byte // whole runtime file
	rdir    runtimeDir

	blockCount uint32
	strings    TableView
	blobs      TableView
}

// Open maps the four files of epoch under dir and validates their
// headers against each other.
func Open(dir string, epoch uint32) (*Reader, error) {
	r := &Reader{epoch: epoch}
	ok := false
	defer func() {
		if !ok {
			r.Close()
		}
	}()

	mapFile := func(kind byte) (string, []byte, error) {
		name := FileName(epoch, kind)
		f, err := mapped.Open(filepath.Join(dir, name))
		if err != nil {
			return name, nil, fmt.Errorf("compact: open %s: %w", name, err)
		}
		r.files = append(r.files, f)
		return name, f.Bytes(), nil
	}
	checkHeader := func(name string, data []byte, kind byte) (Header, error) {
		h, err := decodeHeader(name, data, kind)
		if err != nil {
			return h, err
		}
		if h.Epoch != epoch {
			return h, formatErr(name, "file is for epoch %d, want %d", h.Epoch, epoch)
		}
		return h, nil
	}

	name, data, err := mapFile(KindRegistry)
	if err != nil {
		return nil, err
	}
	regHdr, err := checkHeader(name, data, KindRegistry)
	if err != nil {
		return nil, err
	}
	keys := data[HeaderLen:]
	if uint64(len(keys)) != uint64(regHdr.Count)*registry.KeyLen {
		return nil, formatErr(name, "key region is %d bytes for %d keys", len(keys), regHdr.Count)
	}
	if r.reg, err = registry.NewView(keys); err != nil {
		return nil, err
	}

	if name, data, err = mapFile(KindSlotIndex); err != nil {
		return nil, err
	}
	idxHdr, err := checkHeader(name, data, KindSlotIndex)
	if err != nil {
		return nil, err
	}
	if idxHdr.Count != SlotsPerEpoch {
		return nil, formatErr(name, "index covers %d slots, want %d", idxHdr.Count, SlotsPerEpoch)
	}
	r.slots = data[HeaderLen:]
	if len(r.slots) != SlotsPerEpoch*SlotEntryLen {
		return nil, formatErr(name, "entry region is %d bytes", len(r.slots))
	}

	if name, data, err = mapFile(KindBlock); err != nil {
		return nil, err
	}
	blkHdr, err := checkHeader(name, data, KindBlock)
	if err != nil {
		return nil, err
	}
	r.blocks = data
	r.blockCount = blkHdr.Count

	if name, data, err = mapFile(KindRuntime); err != nil {
		return nil, err
	}
	if _, err = checkHeader(name, data, KindRuntime); err != nil {
		return nil, err
	}
	r.runtime = data
	if len(data) < HeaderLen+RuntimeDirLen {
		return nil, formatErr(name, "file is %d bytes, shorter than header and directory", len(data))
	}
	r.rdir = decodeRuntimeDir(data[HeaderLen:])
	strRegion, err := runtimeRegion(name, data, r.rdir.strOff, r.rdir.strLen, "string table")
	if err != nil {
		return nil, err
	}
	if r.strings, err = newTableView(name, strRegion); err != nil {
		return nil, err
	}
	blobRegion, err := runtimeRegion(name, data, r.rdir.bytesOff, r.rdir.bytesLen, "bytes table")
	if err != nil {
		return nil, err
	}
	if r.blobs, err = newTableView(name, blobRegion); err != nil {
		return nil, err
	}
	if _, err = runtimeRegion(name, data, r.rdir.recOff, r.rdir.recLen, "record region"); err != nil {
		return nil, err
	}

	ok = true
	return r, nil
}

func runtimeRegion(name string, data []byte, off, length uint64, what string) ([]byte, error) {
	end := off + length
	if end < off || end > uint64(len(data)) {
		return nil, formatErr(name, "%s %d..%d outside %d-byte file", what, off, end, len(data))
	}
	return data[off:end], nil
}

// Close unmaps all four files.
func (r *Reader) Close() error {
	var first error
	for _, f := range r.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.files = nil
	return first
}

// Epoch returns the epoch this reader covers.
func (r *Reader) Epoch() uint32 { return r.epoch }

// Registry returns the mapped key registry view.
func (r *Reader) Registry() registry.View { return r.reg }

// Strings returns the shared string table view.
func (r *Reader) Strings() TableView { return r.strings }

// Bytes returns the shared byte blob table view.
func (r *Reader) Bytes() TableView { return r.blobs }

// BlockCount reports the number of block records in the epoch.
func (r *Reader) BlockCount() uint32 { return r.blockCount }

// Slot returns the index entry for an absolute slot number. The lookup
// is a single fixed-stride read.
func (r *Reader) Slot(slot uint64) (SlotEntry, error) {
	start := uint64(r.epoch) * SlotsPerEpoch
	if slot < start || slot >= start+SlotsPerEpoch {
		return SlotEntry{}, formatErr(FileName(r.epoch, KindSlotIndex), "slot %d outside epoch %d", slot, r.epoch)
	}
	i := slot - start
	return decodeSlotEntry(r.slots[i*SlotEntryLen:]), nil
}

// BlockAt returns the decoded block for an absolute slot number, or
// nil if the slot has no block.
func (r *Reader) BlockAt(slot uint64) (*Block, error) {
	entry, err := r.Slot(slot)
	if err != nil {
		return nil, err
	}
	if entry.Status == SlotMissing {
		return nil, nil
	}
	region, err := r.blockRegion(entry.Offset, entry.Length)
	if err != nil {
		return nil, err
	}
	return decodeBlock(region)
}

func (r *Reader) blockRegion(off, length uint64) ([]byte, error) {
	name := FileName(r.epoch, KindBlock)
	end := off + length
	if off < HeaderLen || end < off || end > uint64(len(r.blocks)) {
		return nil, formatErr(name, "block record %d..%d outside %d-byte file", off, end, len(r.blocks))
	}
	if length < BlockHeaderLen {
		return nil, formatErr(name, "block record of %d bytes is shorter than its header", length)
	}
	return r.blocks[off:end], nil
}

func decodeBlock(region []byte) (*Block, error) {
	b := &Block{BlockHeader: decodeBlockHeader(region)}
	if uint64(b.BodyLen) != uint64(len(region)-BlockHeaderLen) {
		return nil, formatErr("block record", "body is %d bytes, header says %d", len(region)-BlockHeaderLen, b.BodyLen)
	}
	c := &byteCursor{data: region[BlockHeaderLen:], ctx: "block record"}
	b.Transactions = make([]*Transaction, b.TxCount)
	for i := range b.Transactions {
		tx, err := decodeTxRecord(c)
		if err != nil {
			return nil, err
		}
		b.Transactions[i] = tx
	}
	if c.remaining() != 0 {
		return nil, c.errf("%d trailing bytes after %d transactions", c.remaining(), b.TxCount)
	}
	return b, nil
}

// RecentBlockhash returns a transaction's recent blockhash, following
// a slot reference through the slot index when the hash was stored as
// one.
func (r *Reader) RecentBlockhash(tx *Transaction) ([32]byte, error) {
	if !tx.RecentBlockhash.ByRef {
		return tx.RecentBlockhash.Inline, nil
	}
	slot := uint64(r.epoch)*SlotsPerEpoch + uint64(tx.RecentBlockhash.Slot)
	entry, err := r.Slot(slot)
	if err != nil {
		return [32]byte{}, err
	}
	if entry.Status == SlotMissing {
		return [32]byte{}, formatErr(FileName(r.epoch, KindBlock),
			"recent blockhash references missing slot %d", slot)
	}
	region, err := r.blockRegion(entry.Offset, entry.Length)
	if err != nil {
		return [32]byte{}, err
	}
	return decodeBlockHeader(region).Blockhash, nil
}

// Runtime decodes the runtime record of a transaction, or nil for a
// transaction that stored no metadata.
func (r *Reader) Runtime(tx *Transaction) (*RuntimeRecord, error) {
	if tx.RuntimeLen == 0 {
		return nil, nil
	}
	name := FileName(r.epoch, KindRuntime)
	end := tx.RuntimeOffset + uint64(tx.RuntimeLen)
	if tx.RuntimeOffset < r.rdir.recOff || end > r.rdir.recOff+r.rdir.recLen || end < tx.RuntimeOffset {
		return nil, formatErr(name, "runtime record %d..%d outside record region", tx.RuntimeOffset, end)
	}
	c := &byteCursor{data: r.runtime[tx.RuntimeOffset:end], ctx: "runtime record"}
	body, err := c.frame("runtime record")
	if err != nil {
		return nil, err
	}
	if c.remaining() != 0 {
		return nil, c.errf("%d trailing bytes", c.remaining())
	}
	return DecodeRuntimeRecord(body)
}

// BlockIter iterates the block file in slot order without touching
// the slot index.
type BlockIter struct {
	r   *Reader
	off uint64
	n   uint32
}

// Blocks returns an iterator over all block records, restartable by
// calling Blocks again.
func (r *Reader) Blocks() *BlockIter {
	return &BlockIter{r: r, off: HeaderLen}
}

// Next returns the next block, or io.EOF after the last one.
func (it *BlockIter) Next() (*Block, error) {
	if it.n >= it.r.blockCount {
		return nil, io.EOF
	}
	if it.off+BlockHeaderLen > uint64(len(it.r.blocks)) {
		return nil, formatErr(FileName(it.r.epoch, KindBlock), "file ends inside block record %d", it.n)
	}
	hdr := decodeBlockHeader(it.r.blocks[it.off:])
	region, err := it.r.blockRegion(it.off, BlockHeaderLen+uint64(hdr.BodyLen))
	if err != nil {
		return nil, err
	}
	b, err := decodeBlock(region)
	if err != nil {
		return nil, err
	}
	it.off += BlockHeaderLen + uint64(hdr.BodyLen)
	it.n++
	return b, nil
}
