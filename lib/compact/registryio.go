// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import (
	"fmt"
	"path/filepath"

	"github.com/blockzilla-foundation/blockzilla/lib/mapped"
	"github.com/blockzilla-foundation/blockzilla/lib/registry"
)

// writeRegistryTmp writes a sealed registry to the epoch's registry
// temp file. The caller renames it into place.
func writeRegistryTmp(dir string, epoch uint32, reg *registry.Registry) (*tmpFile, error) {
	t, err := createTmp(dir, FileName(epoch, KindRegistry))
	if err != nil {
		return nil, err
	}
	hdr := Header{Kind: KindRegistry, Epoch: epoch, Count: uint32(reg.Len())}.encode()
	if _, err := t.w.Write(hdr[:]); err != nil {
		t.discard()
		return nil, err
	}
	for i := 0; i < reg.Len(); i++ {
		key, err := reg.Key(uint32(i))
		if err != nil {
			t.discard()
			return nil, err
		}
		if _, err := t.w.Write(key[:]); err != nil {
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

// WriteRegistry publishes just the registry file of an epoch. Used for
// registry-only builds; a full epoch build goes through Encoder, which
// writes the registry as part of its atomic file set.
func WriteRegistry(dir string, epoch uint32, reg *registry.Registry) error {
	t, err := writeRegistryTmp(dir, epoch, reg)
	if err != nil {
		return err
	}
	if err := t.publish(); err != nil {
		t.discard()
		return err
	}
	return syncDir(dir)
}

// ReadRegistry loads an epoch's registry file back into a sealed
// in-memory registry, preserving the stored ID order.
func ReadRegistry(dir string, epoch uint32) (*registry.Registry, error) {
	name := FileName(epoch, KindRegistry)
	f, err := mapped.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("compact: open %s: %w", name, err)
	}
	defer f.Close()

	data := f.Bytes()
	hdr, err := decodeHeader(name, data, KindRegistry)
	if err != nil {
		return nil, err
	}
	keys := data[HeaderLen:]
	if uint64(len(keys)) != uint64(hdr.Count)*registry.KeyLen {
		return nil, formatErr(name, "key region is %d bytes for %d keys", len(keys), hdr.Count)
	}

	b := registry.NewBuilder()
	for i := uint32(0); i < hdr.Count; i++ {
		var key [registry.KeyLen]byte
		copy(key[:], keys[uint64(i)*registry.KeyLen:])
		if id := b.LookupOrInsert(key); id != i {
			return nil, formatErr(name, "duplicate key at ID %d (first seen as %d)", i, id)
		}
	}
	return b.Finalize(), nil
}
