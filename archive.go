// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Archive is a read-only view of an MPQ archive. On open the header is
// located and both tables are decrypted and kept resident; file data is
// read on demand.
//
// An Archive is safe for concurrent reads only if the underlying
// reader is; with a plain io.ReadSeeker callers must serialize access.
type Archive struct {
	r            io.ReadSeeker
	fileSize     int64
	archiveStart int64
	header       fileHeader
	hashTable    *hashTable
	blockTable   []blockEntry
	sectorSize   uint32
}

// Open reads an MPQ archive from r. The header is searched for at
// 512-byte boundaries; a user-data block redirects the search to the
// real header offset.
func Open(r io.ReadSeeker) (*Archive, error) {
	fileSize, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	start, header, err := findHeader(r, fileSize)
	if err != nil {
		return nil, err
	}

	if header.FormatVersion != 0 {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", header.FormatVersion)
	}
	if header.SectorSizeShift > 15 {
		return nil, errors.Wrapf(ErrCorrupted, "sector size shift %d", header.SectorSizeShift)
	}

	a := &Archive{
		r:            r,
		fileSize:     fileSize,
		archiveStart: start,
		header:       header,
		sectorSize:   512 << header.SectorSizeShift,
	}

	if err := a.readTables(); err != nil {
		return nil, err
	}

	return a, nil
}

// findHeader scans 512-byte boundaries for an archive header or a
// user-data shunt pointing at one.
func findHeader(r io.ReadSeeker, fileSize int64) (int64, fileHeader, error) {
	var magicBuf [4]byte

	for off := int64(0); off+headerSize <= fileSize; off += headerBoundary {
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			return 0, fileHeader{}, errors.WithStack(err)
		}
		if _, err := io.ReadFull(r, magicBuf[:]); err != nil {
			return 0, fileHeader{}, errors.WithStack(err)
		}

		switch binary.LittleEndian.Uint32(magicBuf[:]) {
		case userMagic:
			if _, err := r.Seek(off, io.SeekStart); err != nil {
				return 0, fileHeader{}, errors.WithStack(err)
			}
			uh, err := readUserHeader(r)
			if err != nil {
				return 0, fileHeader{}, errors.WithStack(err)
			}

			target := off + int64(uh.HeaderOffset)
			if target+headerSize > fileSize {
				return 0, fileHeader{}, errors.Wrapf(ErrCorrupted, "user header redirects past end of file (offset %d)", target)
			}

			h, err := readHeaderAt(r, target)
			if err != nil {
				return 0, fileHeader{}, err
			}
			if h.Magic != mpqMagic {
				return 0, fileHeader{}, errors.Wrap(ErrCorrupted, "user header redirect does not reach an archive header")
			}
			return target, h, nil

		case mpqMagic:
			h, err := readHeaderAt(r, off)
			if err != nil {
				return 0, fileHeader{}, err
			}
			return off, h, nil
		}
	}

	return 0, fileHeader{}, errors.WithStack(ErrNoHeader)
}

func readHeaderAt(r io.ReadSeeker, off int64) (fileHeader, error) {
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return fileHeader{}, errors.WithStack(err)
	}
	h, err := readFileHeader(r)
	if err != nil {
		return fileHeader{}, errors.WithStack(err)
	}
	return h, nil
}

// readTables decrypts the hash and block tables with their fixed keys.
func (a *Archive) readTables() error {
	raw, err := a.readAt(int64(a.header.HashTableOffset), int64(a.header.HashTableEntries)*hashEntrySize)
	if err != nil {
		return errors.Wrap(err, "hash table")
	}
	words := bytesToWords(raw)
	decryptBlock(words, hashString("(hash table)", hashTypeFileKey))

	table, err := hashTableFromEntries(unpackHashTable(words))
	if err != nil {
		return err
	}
	a.hashTable = table

	raw, err = a.readAt(int64(a.header.BlockTableOffset), int64(a.header.BlockTableEntries)*blockEntrySize)
	if err != nil {
		return errors.Wrap(err, "block table")
	}
	words = bytesToWords(raw)
	decryptBlock(words, hashString("(block table)", hashTypeFileKey))
	a.blockTable = unpackBlockTable(words)

	return nil
}

// readAt reads size bytes at an archive-relative offset.
func (a *Archive) readAt(offset, size int64) ([]byte, error) {
	abs := a.archiveStart + offset
	if offset < 0 || size < 0 || abs+size > a.fileSize {
		return nil, errors.Wrapf(ErrCorrupted, "read of %d bytes at offset %d is out of bounds", size, offset)
	}

	if _, err := a.r.Seek(abs, io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(a.r, buf); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}

// ReadFile returns the contents of the named file, using the neutral
// locale.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	return a.ReadFileLocale(name, localeNeutral)
}

// ReadFileLocale returns the contents of the named file for a specific
// locale. An entry with the exact locale wins; failing that, a
// neutral-locale entry is used.
func (a *Archive) ReadFileLocale(name string, locale uint16) ([]byte, error) {
	name = normalizePath(name)

	blockIndex, ok := a.hashTable.find(name, locale)
	if !ok {
		return nil, errors.Wrapf(ErrFileNotFound, "%q", name)
	}
	if blockIndex >= uint32(len(a.blockTable)) {
		return nil, errors.Wrapf(ErrCorrupted, "hash entry for %q points at block %d of %d", name, blockIndex, len(a.blockTable))
	}

	entry := &a.blockTable[blockIndex]
	if entry.Flags&fileExists == 0 {
		return nil, errors.Wrapf(ErrFileNotFound, "%q", name)
	}

	raw, err := a.readAt(int64(entry.FilePos), int64(entry.CompressedSize))
	if err != nil {
		return nil, errors.Wrapf(err, "block %d", blockIndex)
	}

	data, err := decodeFile(name, raw, entry, a.sectorSize)
	if err != nil {
		return nil, errors.Wrapf(err, "block %d", blockIndex)
	}
	return data, nil
}

// HasFile reports whether the archive contains the named file.
func (a *Archive) HasFile(name string) bool {
	name = normalizePath(name)

	blockIndex, ok := a.hashTable.find(name, localeNeutral)
	if !ok {
		return false
	}
	return blockIndex < uint32(len(a.blockTable)) && a.blockTable[blockIndex].Flags&fileExists != 0
}

// Files returns all paths recorded in the archive's (listfile).
func (a *Archive) Files() ([]string, error) {
	data, err := a.ReadFile(listfileName)
	if err != nil {
		return nil, err
	}

	return strings.FieldsFunc(string(data), func(r rune) bool {
		return r == '\r' || r == '\n'
	}), nil
}

// SectorSize returns the archive's sector size in bytes.
func (a *Archive) SectorSize() uint32 {
	return a.sectorSize
}
