// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestHashTableInsertFind(t *testing.T) {
	ht := newHashTable(16)

	names := []string{"a.txt", "b.txt", "dir/c.txt", "(listfile)"}
	for i, name := range names {
		if err := ht.insert(name, localeNeutral, uint32(i)); err != nil {
			t.Fatalf("insert %q: %v", name, err)
		}
	}

	for i, name := range names {
		got, ok := ht.find(name, localeNeutral)
		if !ok {
			t.Fatalf("find %q: not found", name)
		}
		if got != uint32(i) {
			t.Errorf("find %q = block %d, want %d", name, got, i)
		}
	}

	if _, ok := ht.find("missing.txt", localeNeutral); ok {
		t.Error("found a name that was never inserted")
	}
}

func TestHashTableCollisions(t *testing.T) {
	// Sixteen entries in a sixteen-slot table guarantee probe
	// collisions on the 4-bit slot index. Every entry must remain
	// retrievable.
	ht := newHashTable(16)

	for i := 0; i < 16; i++ {
		name := fmt.Sprintf("files/object_%04d.dat", i)
		if err := ht.insert(name, localeNeutral, uint32(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	for i := 0; i < 16; i++ {
		name := fmt.Sprintf("files/object_%04d.dat", i)
		got, ok := ht.find(name, localeNeutral)
		if !ok || got != uint32(i) {
			t.Errorf("find %q = (%d, %v), want (%d, true)", name, got, ok, i)
		}
	}
}

func TestHashTableFull(t *testing.T) {
	ht := newHashTable(16)

	for i := 0; i < 16; i++ {
		if err := ht.insert(fmt.Sprintf("f%d", i), localeNeutral, uint32(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	err := ht.insert("one-too-many", localeNeutral, 16)
	if !errors.Is(err, ErrHashTableFull) {
		t.Fatalf("insert into full table: %v, want ErrHashTableFull", err)
	}
}

func TestHashTableTombstones(t *testing.T) {
	// Force every name onto the same probe chain by filling a small
	// table, then delete from the middle of the chain. Names probing
	// past the tombstone must stay reachable.
	ht := newHashTable(16)

	names := make([]string, 16)
	for i := range names {
		names[i] = fmt.Sprintf("tomb/entry_%02d", i)
		if err := ht.insert(names[i], localeNeutral, uint32(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	if err := ht.remove(names[5], localeNeutral); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, ok := ht.find(names[5], localeNeutral); ok {
		t.Error("removed name still found")
	}
	for i, name := range names {
		if i == 5 {
			continue
		}
		if got, ok := ht.find(name, localeNeutral); !ok || got != uint32(i) {
			t.Errorf("after removal, find %q = (%d, %v), want (%d, true)", name, got, ok, i)
		}
	}

	// The tombstone is reusable.
	if err := ht.insert("tomb/replacement", localeNeutral, 99); err != nil {
		t.Fatalf("insert into tombstone: %v", err)
	}
	if got, ok := ht.find("tomb/replacement", localeNeutral); !ok || got != 99 {
		t.Errorf("find replacement = (%d, %v), want (99, true)", got, ok)
	}
}

func TestHashTableLocaleFallback(t *testing.T) {
	const localeDE = 0x407
	const localeEN = 0x409

	ht := newHashTable(16)
	if err := ht.insert("ui/strings.txt", localeNeutral, 0); err != nil {
		t.Fatal(err)
	}
	if err := ht.insert("ui/strings.txt", localeEN, 1); err != nil {
		t.Fatal(err)
	}

	if got, ok := ht.find("ui/strings.txt", localeEN); !ok || got != 1 {
		t.Errorf("exact locale = (%d, %v), want (1, true)", got, ok)
	}
	if got, ok := ht.find("ui/strings.txt", localeNeutral); !ok || got != 0 {
		t.Errorf("neutral locale = (%d, %v), want (0, true)", got, ok)
	}
	// No German entry exists, so the neutral one answers.
	if got, ok := ht.find("ui/strings.txt", localeDE); !ok || got != 0 {
		t.Errorf("fallback locale = (%d, %v), want (0, true)", got, ok)
	}
}

func TestHashTableFromEntriesValidation(t *testing.T) {
	if _, err := hashTableFromEntries(make([]hashEntry, 12)); !errors.Is(err, ErrCorrupted) {
		t.Errorf("size 12: %v, want ErrCorrupted", err)
	}
	if _, err := hashTableFromEntries(nil); !errors.Is(err, ErrCorrupted) {
		t.Errorf("size 0: %v, want ErrCorrupted", err)
	}
	if _, err := hashTableFromEntries(make([]hashEntry, 16)); err != nil {
		t.Errorf("size 16: %v", err)
	}
}
