// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import "github.com/pkg/errors"

// pathKey is the hash triple addressing one path: the two name hashes
// that identify it and the table-offset hash that picks its probe
// start.
type pathKey struct {
	hashA uint32
	hashB uint32
	index uint32
}

func makePathKey(name string) pathKey {
	return pathKey{
		hashA: hashString(name, hashTypeNameA),
		hashB: hashString(name, hashTypeNameB),
		index: hashString(name, hashTypeTableOffset),
	}
}

// hashTable is the archive's open-addressed index from path hashes to
// block table indices. Capacity is a power of two and never changes;
// collisions resolve by linear probing, freed slots become tombstones
// that probing skips but insertion may reclaim.
type hashTable struct {
	entries []hashEntry
}

func newHashTable(capacity uint32) *hashTable {
	entries := make([]hashEntry, capacity)
	for i := range entries {
		entries[i] = blankHashEntry()
	}
	return &hashTable{entries: entries}
}

func hashTableFromEntries(entries []hashEntry) (*hashTable, error) {
	n := uint32(len(entries))
	if n == 0 || n&(n-1) != 0 {
		return nil, errors.Wrapf(ErrCorrupted, "hash table size %d is not a power of two", n)
	}
	return &hashTable{entries: entries}, nil
}

func (t *hashTable) mask() uint32 {
	return uint32(len(t.entries)) - 1
}

// findSlot probes for the occupied slot holding name. An empty slot
// ends the probe; tombstones are skipped. An entry with the exact
// locale wins immediately, otherwise the first neutral-locale match
// seen along the probe chain is used.
func (t *hashTable) findSlot(name string, locale uint16) (uint32, bool) {
	key := makePathKey(name)
	mask := t.mask()
	start := key.index & mask

	var fallback uint32
	haveFallback := false

	for probe := uint32(0); probe < uint32(len(t.entries)); probe++ {
		idx := (start + probe) & mask
		e := &t.entries[idx]

		if e.BlockIndex == hashTableEmpty {
			break
		}
		if e.BlockIndex == hashTableDeleted {
			continue
		}
		if e.HashA != key.hashA || e.HashB != key.hashB {
			continue
		}
		if e.Locale == locale {
			return idx, true
		}
		if e.Locale == localeNeutral && !haveFallback {
			fallback = idx
			haveFallback = true
		}
	}

	if haveFallback {
		return fallback, true
	}
	return 0, false
}

// find resolves a path to its block table index.
func (t *hashTable) find(name string, locale uint16) (uint32, bool) {
	idx, ok := t.findSlot(name, locale)
	if !ok {
		return 0, false
	}
	return t.entries[idx].BlockIndex, true
}

// insert claims the first empty-or-deleted slot along the probe chain.
// Stopping at any earlier condition would drop entries whose probe
// start collides with an existing path.
func (t *hashTable) insert(name string, locale uint16, blockIndex uint32) error {
	key := makePathKey(name)
	mask := t.mask()
	start := key.index & mask

	for probe := uint32(0); probe < uint32(len(t.entries)); probe++ {
		idx := (start + probe) & mask
		e := &t.entries[idx]

		if e.BlockIndex == hashTableEmpty || e.BlockIndex == hashTableDeleted {
			*e = hashEntry{
				HashA:      key.hashA,
				HashB:      key.hashB,
				Locale:     locale,
				Platform:   0,
				BlockIndex: blockIndex,
			}
			return nil
		}
	}

	return errors.Wrapf(ErrHashTableFull, "inserting %q", name)
}

// remove frees the slot holding name, leaving a tombstone so probe
// chains running through it stay intact.
func (t *hashTable) remove(name string, locale uint16) error {
	idx, ok := t.findSlot(name, locale)
	if !ok {
		return errors.Wrapf(ErrFileNotFound, "%q", name)
	}

	e := blankHashEntry()
	e.BlockIndex = hashTableDeleted
	t.entries[idx] = e
	return nil
}
