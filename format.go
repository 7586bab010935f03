// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import (
	"encoding/binary"
	"io"
	"strings"
)

// MPQ format constants
const (
	// Magic signatures "MPQ\x1A" (archive header) and "MPQ\x1B"
	// (user data block) in little-endian
	mpqMagic  = 0x1A51504D
	userMagic = 0x1B51504D

	// V1 header size in bytes
	headerSize = 0x20

	// Archive headers may only start at multiples of this boundary
	// within the containing file
	headerBoundary = 512

	// Block table entry flags
	fileImplode    = 0x00000100 // Imploded (PKWARE DCL)
	fileCompress   = 0x00000200 // Compressed (marker byte per sector)
	fileEncrypted  = 0x00010000 // Encrypted
	fileFixKey     = 0x00020000 // Key adjusted by block offset and size
	fileSingleUnit = 0x01000000 // Single unit (not split into sectors)
	fileSectorCRC  = 0x04000000 // Sector checksums after file data
	fileExists     = 0x80000000 // File exists

	// Hash table entry sentinels for BlockIndex
	hashTableEmpty   = 0xFFFFFFFF
	hashTableDeleted = 0xFFFFFFFE

	// Locale
	localeNeutral = 0x0000

	// Serialized entry sizes
	hashEntrySize  = 16
	blockEntrySize = 16

	// Default sector size shift (512 << 3 = 4096-byte sectors)
	defaultSectorSizeShift = 3

	// Smallest hash table the creator will emit
	minHashTableSize = 16
)

// fileHeader is the V1 MPQ archive header (32 bytes).
type fileHeader struct {
	Magic             uint32 // "MPQ\x1A"
	HeaderSize        uint32 // Size of this header (0x20)
	ArchiveSize       uint32 // Size of the entire archive
	FormatVersion     uint16 // Must be 0
	SectorSizeShift   uint16 // Sector size is 512 << shift
	HashTableOffset   uint32 // Archive-relative offset of the hash table
	BlockTableOffset  uint32 // Archive-relative offset of the block table
	HashTableEntries  uint32 // Number of hash table entries (power of two)
	BlockTableEntries uint32 // Number of block table entries
}

// userHeader is the user data shunt block that may precede the archive
// header. Storm resumes its header search at HeaderOffset (relative to
// the shunt block) when it encounters one.
type userHeader struct {
	Magic        uint32 // "MPQ\x1B"
	UserDataSize uint32
	HeaderOffset uint32
}

// hashEntry is one slot of the hash table.
type hashEntry struct {
	HashA      uint32 // Name hash, variant A
	HashB      uint32 // Name hash, variant B
	Locale     uint16
	Platform   uint16
	BlockIndex uint32 // Valid index, hashTableEmpty or hashTableDeleted
}

// blankHashEntry is a never-used slot.
func blankHashEntry() hashEntry {
	return hashEntry{
		HashA:      0xFFFFFFFF,
		HashB:      0xFFFFFFFF,
		Locale:     0xFFFF,
		Platform:   0xFFFF,
		BlockIndex: hashTableEmpty,
	}
}

// blockEntry is one entry of the block table.
type blockEntry struct {
	FilePos        uint32 // Archive-relative offset of the file data
	CompressedSize uint32 // Stored payload size
	FileSize       uint32 // Uncompressed file size
	Flags          uint32
}

func (b *blockEntry) isCompressed() bool {
	return b.Flags&fileCompress != 0
}

func (b *blockEntry) isEncrypted() bool {
	return b.Flags&fileEncrypted != 0
}

func (b *blockEntry) isSingleUnit() bool {
	return b.Flags&fileSingleUnit != 0
}

func (b *blockEntry) hasSectorCRC() bool {
	return b.Flags&fileSectorCRC != 0
}

// readFileHeader reads a fileHeader at the reader's current position.
func readFileHeader(r io.Reader) (fileHeader, error) {
	var h fileHeader
	err := binary.Read(r, binary.LittleEndian, &h)
	return h, err
}

func writeFileHeader(w io.Writer, h *fileHeader) error {
	return binary.Write(w, binary.LittleEndian, h)
}

func readUserHeader(r io.Reader) (userHeader, error) {
	var h userHeader
	err := binary.Read(r, binary.LittleEndian, &h)
	return h, err
}

// packHashTable serializes hash entries into the word layout the
// cipher operates on: HashA, HashB, Locale|Platform<<16, BlockIndex.
func packHashTable(entries []hashEntry) []uint32 {
	words := make([]uint32, len(entries)*4)
	for i, e := range entries {
		words[i*4] = e.HashA
		words[i*4+1] = e.HashB
		words[i*4+2] = uint32(e.Locale) | uint32(e.Platform)<<16
		words[i*4+3] = e.BlockIndex
	}
	return words
}

func unpackHashTable(words []uint32) []hashEntry {
	entries := make([]hashEntry, len(words)/4)
	for i := range entries {
		entries[i] = hashEntry{
			HashA:      words[i*4],
			HashB:      words[i*4+1],
			Locale:     uint16(words[i*4+2] & 0xFFFF),
			Platform:   uint16(words[i*4+2] >> 16),
			BlockIndex: words[i*4+3],
		}
	}
	return entries
}

func packBlockTable(entries []blockEntry) []uint32 {
	words := make([]uint32, len(entries)*4)
	for i, e := range entries {
		words[i*4] = e.FilePos
		words[i*4+1] = e.CompressedSize
		words[i*4+2] = e.FileSize
		words[i*4+3] = e.Flags
	}
	return words
}

func unpackBlockTable(words []uint32) []blockEntry {
	entries := make([]blockEntry, len(words)/4)
	for i := range entries {
		entries[i] = blockEntry{
			FilePos:        words[i*4],
			CompressedSize: words[i*4+1],
			FileSize:       words[i*4+2],
			Flags:          words[i*4+3],
		}
	}
	return entries
}

// bytesToWords decodes little-endian uint32 words. len(data) must be a
// multiple of 4.
func bytesToWords(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}

func wordsToBytes(words []uint32) []byte {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

// normalizePath converts a path to the archive's logical form: forward
// slashes as separators. Case is left alone; hashing and lookups fold
// case themselves.
func normalizePath(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

// nextPowerOf2 returns the smallest power of 2 >= n.
func nextPowerOf2(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
