// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"bytes"
	"errors"
	"testing"
)

func key(seed byte) [KeyLen]byte {
	var k [KeyLen]byte
	for i := range k {
		k[i] = seed + byte(i)
	}
	return k
}

func TestBuilderAssignsFirstSeenIDs(t *testing.T) {
	b := NewBuilder()
	a, c, d := key(1), key(2), key(3)

	if id := b.LookupOrInsert(a); id != 0 {
		t.Errorf("first key ID = %d, want 0", id)
	}
	if id := b.LookupOrInsert(c); id != 1 {
		t.Errorf("second key ID = %d, want 1", id)
	}
	if id := b.LookupOrInsert(a); id != 0 {
		t.Errorf("repeat key ID = %d, want 0", id)
	}
	if id := b.LookupOrInsert(d); id != 2 {
		t.Errorf("third key ID = %d, want 2", id)
	}
	if b.Len() != 3 {
		t.Errorf("Len = %d, want 3", b.Len())
	}
}

func TestBuilderDeterministicAcrossRuns(t *testing.T) {
	seq := [][KeyLen]byte{key(9), key(4), key(9), key(7), key(4), key(1)}

	build := func() []uint32 {
		b := NewBuilder()
		ids := make([]uint32, len(seq))
		for i, k := range seq {
			ids[i] = b.LookupOrInsert(k)
		}
		return ids
	}
	first, second := build(), build()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("run disagreement at %d: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestFinalizeSealsBuilder(t *testing.T) {
	b := NewBuilder()
	b.LookupOrInsert(key(1))
	r := b.Finalize()

	if r.Len() != 1 {
		t.Errorf("registry Len = %d, want 1", r.Len())
	}
	defer func() {
		if recover() == nil {
			t.Error("LookupOrInsert after Finalize did not panic")
		}
	}()
	b.LookupOrInsert(key(2))
}

func TestRegistryLookupAndKey(t *testing.T) {
	b := NewBuilder()
	a, c := key(5), key(6)
	b.LookupOrInsert(a)
	b.LookupOrInsert(c)
	r := b.Finalize()

	if id, ok := r.Lookup(c); !ok || id != 1 {
		t.Errorf("Lookup = %d,%v, want 1,true", id, ok)
	}
	if _, ok := r.Lookup(key(9)); ok {
		t.Error("Lookup found a key never inserted")
	}
	got, err := r.Key(0)
	if err != nil || got != a {
		t.Errorf("Key(0) = %x, %v", got[:4], err)
	}
	if _, err := r.Key(2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Key(2) error = %v, want ErrOutOfRange", err)
	}
}

func TestViewResolve(t *testing.T) {
	a, c := key(1), key(2)
	region := append(append([]byte{}, a[:]...), c[:]...)

	v, err := NewView(region)
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	if v.Len() != 2 {
		t.Errorf("Len = %d, want 2", v.Len())
	}
	got, err := v.Resolve(1)
	if err != nil || got != c {
		t.Errorf("Resolve(1) = %x, %v", got[:4], err)
	}
	if _, err := v.Resolve(2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Resolve(2) error = %v, want ErrOutOfRange", err)
	}

	if _, err := NewView(make([]byte, KeyLen+1)); err == nil {
		t.Error("NewView accepted a ragged key region")
	}
}

func TestTableInternDedup(t *testing.T) {
	tb := NewTableBuilder()

	if id := tb.Intern([]byte("hello")); id != 0 {
		t.Errorf("first value ID = %d, want 0", id)
	}
	if id := tb.InternString("world"); id != 1 {
		t.Errorf("second value ID = %d, want 1", id)
	}
	if id := tb.InternString("hello"); id != 0 {
		t.Errorf("repeat value ID = %d, want 0", id)
	}
	if id := tb.Intern(nil); id != 2 {
		t.Errorf("empty value ID = %d, want 2", id)
	}
	if id := tb.Intern([]byte{}); id != 2 {
		t.Errorf("empty value reinterned as %d, want 2", id)
	}

	table := tb.Finalize()
	if table.Len() != 3 {
		t.Fatalf("table Len = %d, want 3", table.Len())
	}
	for i, want := range [][]byte{[]byte("hello"), []byte("world"), {}} {
		got, err := table.Value(uint32(i))
		if err != nil {
			t.Fatalf("Value(%d): %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Value(%d) = %q, want %q", i, got, want)
		}
	}
	if _, err := table.Value(3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Value(3) error = %v, want ErrOutOfRange", err)
	}
}

func TestTableFinalizeSeals(t *testing.T) {
	tb := NewTableBuilder()
	tb.Intern([]byte("x"))
	tb.Finalize()

	defer func() {
		if recover() == nil {
			t.Error("Intern after Finalize did not panic")
		}
	}()
	tb.Intern([]byte("y"))
}
