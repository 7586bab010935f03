// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
)

// incompressible returns size bytes of seeded random data, which zlib
// cannot shrink.
func incompressible(size int, seed int64) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

func roundTripFile(t *testing.T, contents []byte, sectorSize uint32, opts FileOptions) uint32 {
	t.Helper()

	const filePos = 0x240
	payload, flags, err := encodeFile("dir/some file.bin", contents, sectorSize, filePos, opts)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if uint32(len(payload)) > uint32(len(contents)) && len(contents) > 0 {
		t.Fatalf("stored %d bytes for a %d byte file", len(payload), len(contents))
	}

	entry := &blockEntry{
		FilePos:        filePos,
		CompressedSize: uint32(len(payload)),
		FileSize:       uint32(len(contents)),
		Flags:          flags,
	}

	out, err := decodeFile("dir/some file.bin", payload, entry, sectorSize)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(out, contents) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(out), len(contents))
	}

	return flags
}

func TestEncodeFileZeroLength(t *testing.T) {
	for _, opts := range []FileOptions{{}, {Compress: true}, {Encrypt: true}} {
		flags := roundTripFile(t, []byte{}, 4096, opts)
		if flags&fileExists == 0 {
			t.Error("zero-length file lost the exists flag")
		}
		if flags&fileSingleUnit != 0 {
			t.Error("zero-length file marked single unit")
		}
	}
}

func TestEncodeFileSingleUnit(t *testing.T) {
	contents := bytes.Repeat([]byte("abcd"), 200)

	flags := roundTripFile(t, contents, 4096, FileOptions{Compress: true})
	if flags&fileSingleUnit == 0 {
		t.Error("sub-sector file not stored as single unit")
	}
	if flags&fileCompress == 0 {
		t.Error("compressible single unit not compressed")
	}
}

func TestEncodeFileSingleUnitIncompressible(t *testing.T) {
	contents := incompressible(1000, 1)

	flags := roundTripFile(t, contents, 4096, FileOptions{Compress: true})
	if flags&fileCompress != 0 {
		t.Error("incompressible single unit claims compression")
	}
}

func TestEncodeFileMultiSector(t *testing.T) {
	contents := bytes.Repeat([]byte("sector data! "), 2000) // ~26000 bytes

	flags := roundTripFile(t, contents, 4096, FileOptions{Compress: true})
	if flags&fileCompress == 0 {
		t.Error("compressible multi-sector file not compressed")
	}
	if flags&fileSingleUnit != 0 {
		t.Error("multi-sector file marked single unit")
	}
}

func TestEncodeFileMultiSectorIncompressible(t *testing.T) {
	// Compression cannot pay here, so the whole file falls back to
	// raw storage and the stored size equals the file size.
	contents := incompressible(10000, 2)

	const filePos = 0x240
	payload, flags, err := encodeFile("noise.bin", contents, 4096, filePos, FileOptions{Compress: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if flags&fileCompress != 0 {
		t.Error("incompressible file claims compression")
	}
	if len(payload) != len(contents) {
		t.Errorf("stored %d bytes, want %d", len(payload), len(contents))
	}
}

func TestEncodeFileEncrypted(t *testing.T) {
	contents := bytes.Repeat([]byte("encrypt me "), 1500)

	for _, opts := range []FileOptions{
		{Encrypt: true},
		{Encrypt: true, Compress: true},
		{Encrypt: true, FixKey: true},
		{Encrypt: true, Compress: true, FixKey: true},
		{Encrypt: true, Compress: true, SectorCRC: true},
	} {
		flags := roundTripFile(t, contents, 4096, opts)
		if flags&fileEncrypted == 0 {
			t.Error("encrypted file lost the encrypted flag")
		}
		if opts.FixKey && flags&fileFixKey == 0 {
			t.Error("fix-key file lost the fix-key flag")
		}
	}
}

func TestEncodeFileEncryptedPayloadDiffers(t *testing.T) {
	contents := incompressible(5000, 3)

	plain, _, err := encodeFile("x.bin", contents, 4096, 0x240, FileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	enc, _, err := encodeFile("x.bin", contents, 4096, 0x240, FileOptions{Encrypt: true})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(plain, enc) {
		t.Fatal("encryption left the payload unchanged")
	}
}

func TestAdler32(t *testing.T) {
	if got := adler32([]byte("Wikipedia")); got != 0x11E60398 {
		t.Errorf("adler32(\"Wikipedia\") = 0x%08X, want 0x11E60398", got)
	}
	if got := adler32(nil); got != 1 {
		t.Errorf("adler32(nil) = 0x%08X, want 1", got)
	}
}

func TestSectorCRCDetectsCorruption(t *testing.T) {
	contents := bytes.Repeat([]byte("checksummed payload "), 1000)

	payload, flags, err := encodeFile("crc.bin", contents, 4096, 0x240, FileOptions{Compress: true, SectorCRC: true})
	if err != nil {
		t.Fatal(err)
	}
	if flags&fileSectorCRC == 0 {
		t.Fatal("sector CRC flag not set")
	}

	entry := &blockEntry{
		FilePos:        0x240,
		CompressedSize: uint32(len(payload)),
		FileSize:       uint32(len(contents)),
		Flags:          flags,
	}

	// Sanity: intact payload decodes.
	if _, err := decodeFile("crc.bin", payload, entry, 4096); err != nil {
		t.Fatalf("intact decode: %v", err)
	}

	// Flip a byte inside the first stored sector.
	n := sectorCount(entry.FileSize, 4096)
	sotSize := (n + 2) * 4
	corrupt := append([]byte(nil), payload...)
	corrupt[sotSize+10] ^= 0xFF

	if _, err := decodeFile("crc.bin", corrupt, entry, 4096); !errors.Is(err, ErrCorrupted) {
		t.Errorf("corrupted decode: %v, want ErrCorrupted", err)
	}
}

func TestDecodeFileSizeMismatch(t *testing.T) {
	payload, flags, err := encodeFile("y.bin", []byte("hello world"), 4096, 0x240, FileOptions{})
	if err != nil {
		t.Fatal(err)
	}

	entry := &blockEntry{
		CompressedSize: uint32(len(payload)) + 4,
		FileSize:       11,
		Flags:          flags,
	}
	if _, err := decodeFile("y.bin", payload, entry, 4096); !errors.Is(err, ErrCorrupted) {
		t.Errorf("declared size mismatch: %v, want ErrCorrupted", err)
	}
}
