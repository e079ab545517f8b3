// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry deduplicates the account keys, strings, and byte
// blobs of an epoch into dense integer IDs. IDs are assigned in
// first-seen order starting at zero, so a build over the same input in
// the same order always produces the same tables.
package registry

import (
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// KeyLen is the size of a registry key (an account public key).
const KeyLen = 32

// ErrOutOfRange is returned when an ID points past the end of a table.
var ErrOutOfRange = errors.New("registry: id out of range")

// Builder assigns IDs to keys during the registry scan. The whole
// index is held in memory; an epoch's unique key set (tens of millions
// of 32-byte keys at the worst) fits comfortably.
type Builder struct {
	index  map[[KeyLen]byte]uint32
	keys   [][KeyLen]byte
	sealed bool
}

// NewBuilder returns an empty registry builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[[KeyLen]byte]uint32)}
}

// LookupOrInsert returns the ID for key, assigning the next dense ID
// on first sight. It panics if the builder has been finalized.
func (b *Builder) LookupOrInsert(key [KeyLen]byte) uint32 {
	if b.sealed {
		panic("registry: insert after Finalize")
	}
	if id, ok := b.index[key]; ok {
		return id
	}
	id := uint32(len(b.keys))
	b.index[key] = id
	b.keys = append(b.keys, key)
	return id
}

// Len reports the number of distinct keys seen so far.
func (b *Builder) Len() int {
	return len(b.keys)
}

// Finalize seals the builder and returns the completed registry.
// Further LookupOrInsert calls panic.
func (b *Builder) Finalize() *Registry {
	b.sealed = true
	return &Registry{index: b.index, keys: b.keys}
}

// Registry is a sealed key table: every key of the epoch mapped to its
// dense ID and back.
type Registry struct {
	index map[[KeyLen]byte]uint32
	keys  [][KeyLen]byte
}

// Lookup returns the ID assigned to key during the build.
func (r *Registry) Lookup(key [KeyLen]byte) (uint32, bool) {
	id, ok := r.index[key]
	return id, ok
}

// Key returns the key for id.
func (r *Registry) Key(id uint32) ([KeyLen]byte, error) {
	if int(id) >= len(r.keys) {
		return [KeyLen]byte{}, fmt.Errorf("%w: key %d of %d", ErrOutOfRange, id, len(r.keys))
	}
	return r.keys[id], nil
}

// Len reports the number of keys in the registry.
func (r *Registry) Len() int {
	return len(r.keys)
}

// View resolves IDs against the serialized key table without copying
// it: data is the raw keys region of a mapped registry file.
type View struct {
	data []byte
}

// NewView wraps a serialized key table. The region must be a whole
// number of keys.
func NewView(data []byte) (View, error) {
	if len(data)%KeyLen != 0 {
		return View{}, fmt.Errorf("registry: key region is %d bytes, not a multiple of %d", len(data), KeyLen)
	}
	return View{data: data}, nil
}

// Len reports the number of keys in the view.
func (v View) Len() int {
	return len(v.data) / KeyLen
}

// Resolve returns the key for id straight out of the underlying region.
func (v View) Resolve(id uint32) ([KeyLen]byte, error) {
	var key [KeyLen]byte
	off := int(id) * KeyLen
	if off+KeyLen > len(v.data) {
		return key, fmt.Errorf("%w: key %d of %d", ErrOutOfRange, id, v.Len())
	}
	copy(key[:], v.data[off:])
	return key, nil
}

// TableBuilder deduplicates variable-length values (log strings,
// instruction data blobs) into a blob plus end-offset table. Values
// are indexed by their blake3 digest rather than by content, which
// keeps map keys fixed-size; the inputs are archive data, not
// adversarial, so digest collisions are not a concern beyond blake3's
// own guarantees.
type TableBuilder struct {
	index  map[[32]byte]uint32
	ends   []uint32
	blob   []byte
	sealed bool
}

// NewTableBuilder returns an empty value table builder.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{index: make(map[[32]byte]uint32)}
}

// Intern returns the ID for value, appending it to the table on first
// sight. It panics if the builder has been finalized.
func (t *TableBuilder) Intern(value []byte) uint32 {
	if t.sealed {
		panic("registry: intern after Finalize")
	}
	digest := blake3.Sum256(value)
	if id, ok := t.index[digest]; ok {
		return id
	}
	id := uint32(len(t.ends))
	t.index[digest] = id
	t.blob = append(t.blob, value...)
	t.ends = append(t.ends, uint32(len(t.blob)))
	return id
}

// InternString is Intern for string values without a copy at the call
// site.
func (t *TableBuilder) InternString(value string) uint32 {
	return t.Intern([]byte(value))
}

// Len reports the number of distinct values interned so far.
func (t *TableBuilder) Len() int {
	return len(t.ends)
}

// Finalize seals the builder and returns the completed table.
func (t *TableBuilder) Finalize() *Table {
	t.sealed = true
	return &Table{ends: t.ends, blob: t.blob}
}

// Table is a sealed value table: a concatenated blob plus the end
// offset of each value.
type Table struct {
	ends []uint32
	blob []byte
}

// Len reports the number of values in the table.
func (t *Table) Len() int {
	return len(t.ends)
}

// Blob returns the concatenated value bytes.
func (t *Table) Blob() []byte {
	return t.blob
}

// Ends returns the end offset of each value within the blob.
func (t *Table) Ends() []uint32 {
	return t.ends
}

// Value returns the bytes of value id.
func (t *Table) Value(id uint32) ([]byte, error) {
	if int(id) >= len(t.ends) {
		return nil, fmt.Errorf("%w: value %d of %d", ErrOutOfRange, id, len(t.ends))
	}
	start := uint32(0)
	if id > 0 {
		start = t.ends[id-1]
	}
	return t.blob[start:t.ends[id]], nil
}
