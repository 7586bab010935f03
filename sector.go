// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"

	"github.com/pkg/errors"
)

// sectorCount returns the number of sectors a file of the given size
// occupies. Zero-length files occupy no sectors.
func sectorCount(size, sectorSize uint32) uint32 {
	if size == 0 {
		return 0
	}
	return (size + sectorSize - 1) / sectorSize
}

// adler32 computes the Adler-32 checksum used for MPQ sector CRCs.
func adler32(data []byte) uint32 {
	const mod = 65521
	var a uint32 = 1
	var b uint32
	for _, v := range data {
		a = (a + uint32(v)) % mod
		b = (b + a) % mod
	}
	return (b << 16) | a
}

// encodeFile runs the write-side sector pipeline: split into sectors,
// compress each (keeping the raw bytes whenever compression does not
// shrink the sector), optionally checksum and encrypt, and prepend the
// sector offset table. Returns the stored payload and the block flags.
//
// filePos is the archive-relative offset the payload will land at; it
// feeds the cipher key when fileFixKey is requested.
func encodeFile(name string, contents []byte, sectorSize, filePos uint32, opts FileOptions) ([]byte, uint32, error) {
	flags := uint32(fileExists)
	if opts.Encrypt {
		flags |= fileEncrypted
	}
	if opts.FixKey {
		flags |= fileFixKey
	}

	size := uint32(len(contents))
	if size == 0 {
		// Zero sectors, zero payload. Never reaches sector math.
		return nil, flags, nil
	}

	var key uint32
	if opts.Encrypt {
		key = fileKey(name, filePos, size, flags)
	}

	if size <= sectorSize {
		return encodeSingleUnit(contents, key, opts, flags)
	}
	if !opts.Compress {
		return encodeRawSectors(contents, sectorSize, key, opts.Encrypt), flags, nil
	}
	return encodeSectors(contents, sectorSize, key, opts, flags)
}

func encodeSingleUnit(contents []byte, key uint32, opts FileOptions, flags uint32) ([]byte, uint32, error) {
	flags |= fileSingleUnit

	payload := append([]byte(nil), contents...)
	if opts.Compress {
		compressed, err := compressSector(contents)
		if err != nil {
			return nil, 0, err
		}
		if len(compressed) < len(contents) {
			payload = compressed
			flags |= fileCompress
		}
	}

	if opts.Encrypt {
		encryptBytes(payload, key)
	}

	return payload, flags, nil
}

func encodeRawSectors(contents []byte, sectorSize, key uint32, encrypt bool) []byte {
	payload := append([]byte(nil), contents...)
	if encrypt {
		size := uint32(len(contents))
		for i := uint32(0); i < sectorCount(size, sectorSize); i++ {
			start := i * sectorSize
			end := min(start+sectorSize, size)
			encryptBytes(payload[start:end], key+i)
		}
	}
	return payload
}

func encodeSectors(contents []byte, sectorSize, key uint32, opts FileOptions, flags uint32) ([]byte, uint32, error) {
	size := uint32(len(contents))
	n := sectorCount(size, sectorSize)

	entries := n + 1
	if opts.SectorCRC {
		entries++
	}
	sotSize := entries * 4

	offsets := make([]uint32, 0, entries)
	offsets = append(offsets, sotSize)

	var body bytes.Buffer
	var crcs []uint32

	for i := uint32(0); i < n; i++ {
		start := i * sectorSize
		end := min(start+sectorSize, size)
		raw := contents[start:end]

		compressed, err := compressSector(raw)
		if err != nil {
			return nil, 0, err
		}

		// Per-sector decision: never store an expanded sector.
		stored := raw
		if len(compressed) < len(raw) {
			stored = compressed
		}

		if opts.SectorCRC {
			crcs = append(crcs, adler32(stored))
		}

		sector := append([]byte(nil), stored...)
		if opts.Encrypt {
			encryptBytes(sector, key+i)
		}
		body.Write(sector)
		offsets = append(offsets, sotSize+uint32(body.Len()))
	}

	if opts.SectorCRC {
		// Checksum region rides after the data sectors and is
		// encrypted as sector n.
		region := wordsToBytes(crcs)
		if opts.Encrypt {
			encryptBytes(region, key+n)
		}
		body.Write(region)
		offsets = append(offsets, sotSize+uint32(body.Len()))
	}

	if sotSize+uint32(body.Len()) >= size {
		// Compression did not pay for this file. Store it raw so the
		// stored size never exceeds the uncompressed size.
		return encodeRawSectors(contents, sectorSize, key, opts.Encrypt), flags, nil
	}

	flags |= fileCompress
	if opts.SectorCRC {
		flags |= fileSectorCRC
	}

	if opts.Encrypt {
		encryptBlock(offsets, key-1)
	}

	payload := append(wordsToBytes(offsets), body.Bytes()...)
	return payload, flags, nil
}

// decodeFile runs the read-side sector pipeline on a file's raw stored
// payload and returns the uncompressed contents.
func decodeFile(name string, raw []byte, entry *blockEntry, sectorSize uint32) ([]byte, error) {
	if entry.FileSize == 0 {
		if entry.CompressedSize != 0 {
			return nil, errors.Wrap(ErrCorrupted, "zero-length file with payload")
		}
		return []byte{}, nil
	}
	if uint32(len(raw)) != entry.CompressedSize {
		return nil, errors.Wrapf(ErrCorrupted, "payload is %d bytes, block declares %d", len(raw), entry.CompressedSize)
	}

	var key uint32
	if entry.isEncrypted() {
		key = fileKey(name, entry.FilePos, entry.FileSize, entry.Flags)
	}

	if entry.isSingleUnit() {
		return decodeSingleUnit(raw, entry, key)
	}
	if entry.isCompressed() {
		return decodeSectors(raw, entry, sectorSize, key)
	}
	return decodeRawSectors(raw, entry, sectorSize, key)
}

func decodeSingleUnit(raw []byte, entry *blockEntry, key uint32) ([]byte, error) {
	buf := append([]byte(nil), raw...)
	if entry.isEncrypted() {
		decryptBytes(buf, key)
	}

	// A payload stored at full size was never compressed.
	if entry.isCompressed() && entry.CompressedSize < entry.FileSize {
		out, err := decompressSector(buf, entry.FileSize)
		if err != nil {
			return nil, errors.Wrap(err, "single unit")
		}
		if uint32(len(out)) != entry.FileSize {
			return nil, errors.Wrapf(ErrCorrupted, "single unit decompressed to %d bytes, want %d", len(out), entry.FileSize)
		}
		return out, nil
	}

	if uint32(len(buf)) != entry.FileSize {
		return nil, errors.Wrapf(ErrCorrupted, "single unit stored %d bytes, want %d", len(buf), entry.FileSize)
	}
	return buf, nil
}

func decodeRawSectors(raw []byte, entry *blockEntry, sectorSize, key uint32) ([]byte, error) {
	if entry.CompressedSize != entry.FileSize {
		return nil, errors.Wrap(ErrCorrupted, "uncompressed file with mismatched sizes")
	}

	buf := append([]byte(nil), raw...)
	if entry.isEncrypted() {
		for i := uint32(0); i < sectorCount(entry.FileSize, sectorSize); i++ {
			start := i * sectorSize
			end := min(start+sectorSize, entry.FileSize)
			decryptBytes(buf[start:end], key+i)
		}
	}
	return buf, nil
}

func decodeSectors(raw []byte, entry *blockEntry, sectorSize, key uint32) ([]byte, error) {
	n := sectorCount(entry.FileSize, sectorSize)
	entries := n + 1
	if entry.hasSectorCRC() {
		entries++
	}
	sotSize := entries * 4

	if uint32(len(raw)) < sotSize {
		return nil, errors.Wrapf(ErrCorrupted, "payload too small for %d sector offsets", entries)
	}

	offsets := bytesToWords(raw[:sotSize])
	if entry.isEncrypted() {
		decryptBlock(offsets, key-1)
	}

	for i, off := range offsets {
		if off > uint32(len(raw)) || (i > 0 && off < offsets[i-1]) {
			return nil, errors.Wrapf(ErrCorrupted, "sector offset %d out of order or out of bounds", i)
		}
	}
	if offsets[0] < sotSize {
		return nil, errors.Wrap(ErrCorrupted, "sector data overlaps offset table")
	}

	// Decode the checksum region first, if present and well-formed.
	var crcs []uint32
	if entry.hasSectorCRC() && offsets[n+1]-offsets[n] == n*4 {
		region := append([]byte(nil), raw[offsets[n]:offsets[n+1]]...)
		if entry.isEncrypted() {
			decryptBytes(region, key+n)
		}
		crcs = bytesToWords(region)
	}

	result := make([]byte, 0, entry.FileSize)
	for i := uint32(0); i < n; i++ {
		sector := append([]byte(nil), raw[offsets[i]:offsets[i+1]]...)
		if entry.isEncrypted() {
			decryptBytes(sector, key+i)
		}

		expected := sectorSize
		if i == n-1 {
			expected = entry.FileSize - i*sectorSize
		}

		if crcs != nil && adler32(sector) != crcs[i] {
			return nil, errors.Wrapf(ErrCorrupted, "sector %d checksum mismatch", i)
		}

		if uint32(len(sector)) > expected {
			return nil, errors.Wrapf(ErrCorrupted, "sector %d larger than expected", i)
		}

		// A sector stored at full length was never compressed.
		if uint32(len(sector)) < expected {
			out, err := decompressSector(sector, expected)
			if err != nil {
				return nil, errors.Wrapf(err, "sector %d", i)
			}
			if uint32(len(out)) != expected {
				return nil, errors.Wrapf(ErrCorrupted, "sector %d decompressed to %d bytes, want %d", i, len(out), expected)
			}
			result = append(result, out...)
		} else {
			result = append(result, sector...)
		}
	}

	return result, nil
}
