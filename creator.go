// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// listfileName is the well-known path of the archive's file listing.
const listfileName = "(listfile)"

// FileOptions controls how a file is stored in the archive.
type FileOptions struct {
	// Compress stores each sector zlib-compressed when that is
	// smaller than the raw sector.
	Compress bool

	// Encrypt enciphers the stored payload with a key derived from
	// the file's basename.
	Encrypt bool

	// FixKey additionally mixes the block position and file size into
	// the encryption key. Implies nothing unless Encrypt is set on
	// the write side, but is still recorded in the block flags.
	FixKey bool

	// SectorCRC appends a checksum region covering the stored
	// sectors. Only meaningful together with Compress.
	SectorCRC bool

	// Locale tags the hash table entry. Zero is the neutral locale.
	Locale uint16
}

type pendingFile struct {
	name     string
	contents []byte
	opts     FileOptions
}

// Creator builds a new MPQ archive in memory. Files are staged with
// AddFile and the archive is produced once by Write or Bytes; adding
// a path twice replaces the earlier staging.
type Creator struct {
	files           []pendingFile
	index           map[string]int // upper-cased path -> files index
	sectorSizeShift uint16
	finalized       bool
}

func NewCreator() *Creator {
	return &Creator{
		index:           make(map[string]int),
		sectorSizeShift: defaultSectorSizeShift,
	}
}

// AddFile stages a file for the archive. Backslashes in name are
// normalized to forward slashes, contents are copied, and a later
// AddFile with the same path (compared case-insensitively) replaces
// this one in place.
//
// Zero-length contents are valid. Staging the reserved "(listfile)"
// path is allowed but the staged contents are replaced by the
// synthesized listing when the archive is written.
func (c *Creator) AddFile(name string, contents []byte, opts FileOptions) error {
	if c.finalized {
		return errors.Wrap(ErrInvalidInput, "archive already written")
	}

	name = normalizePath(name)
	if err := validatePath(name); err != nil {
		return err
	}

	f := pendingFile{
		name:     name,
		contents: append([]byte(nil), contents...),
		opts:     opts,
	}

	key := strings.ToUpper(name)
	if i, ok := c.index[key]; ok {
		c.files[i] = f
		return nil
	}
	c.index[key] = len(c.files)
	c.files = append(c.files, f)
	return nil
}

// RemoveFile unstages a previously added file.
func (c *Creator) RemoveFile(name string) error {
	if c.finalized {
		return errors.Wrap(ErrInvalidInput, "archive already written")
	}

	key := strings.ToUpper(normalizePath(name))
	i, ok := c.index[key]
	if !ok {
		return errors.Wrapf(ErrFileNotFound, "%q", name)
	}

	c.files = append(c.files[:i], c.files[i+1:]...)
	delete(c.index, key)
	for k, v := range c.index {
		if v > i {
			c.index[k] = v - 1
		}
	}
	return nil
}

func validatePath(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidInput, "empty path")
	}
	if strings.ContainsAny(name, "\x00\r\n") {
		return errors.Wrapf(ErrInvalidInput, "path %q contains a forbidden character", name)
	}
	return nil
}

// Write produces the archive. The archive header is placed at the next
// 512-byte boundary of w's current position, padding with zeros, so an
// archive can ride behind other content in the same file. The Creator
// is consumed: no further staging or writing is possible afterwards.
func (c *Creator) Write(w io.WriteSeeker) error {
	if c.finalized {
		return errors.Wrap(ErrInvalidInput, "archive already written")
	}
	c.finalized = true

	c.synthesizeListfile()

	n := uint32(len(c.files))
	hashTableSize := nextPowerOf2(uint32(float64(n) * 1.5))
	if hashTableSize < minHashTableSize {
		hashTableSize = minHashTableSize
	}

	ht := newHashTable(hashTableSize)
	for i, f := range c.files {
		if err := ht.insert(f.name, f.opts.Locale, uint32(i)); err != nil {
			return err
		}
	}

	sectorSize := uint32(512) << c.sectorSizeShift
	dataStart := uint32(headerSize) + hashTableSize*hashEntrySize + n*blockEntrySize

	blocks := make([]blockEntry, n)
	payloads := make([][]byte, n)
	pos := uint64(dataStart)

	for i, f := range c.files {
		payload, flags, err := encodeFile(f.name, f.contents, sectorSize, uint32(pos), f.opts)
		if err != nil {
			return errors.Wrapf(err, "encoding %q", f.name)
		}

		blocks[i] = blockEntry{
			FilePos:        uint32(pos),
			CompressedSize: uint32(len(payload)),
			FileSize:       uint32(len(f.contents)),
			Flags:          flags,
		}
		payloads[i] = payload

		pos += uint64(len(payload))
		if pos > math.MaxUint32 {
			return errors.Wrap(ErrInvalidInput, "archive exceeds 4 GiB")
		}
	}

	header := fileHeader{
		Magic:             mpqMagic,
		HeaderSize:        headerSize,
		ArchiveSize:       uint32(pos),
		FormatVersion:     0,
		SectorSizeShift:   c.sectorSizeShift,
		HashTableOffset:   headerSize,
		BlockTableOffset:  headerSize + hashTableSize*hashEntrySize,
		HashTableEntries:  hashTableSize,
		BlockTableEntries: n,
	}

	var buf bytes.Buffer
	if err := writeFileHeader(&buf, &header); err != nil {
		return errors.WithStack(err)
	}

	hashWords := packHashTable(ht.entries)
	encryptBlock(hashWords, hashString("(hash table)", hashTypeFileKey))
	buf.Write(wordsToBytes(hashWords))

	blockWords := packBlockTable(blocks)
	encryptBlock(blockWords, hashString("(block table)", hashTypeFileKey))
	buf.Write(wordsToBytes(blockWords))

	for _, p := range payloads {
		buf.Write(p)
	}

	cur, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.WithStack(err)
	}
	if pad := (headerBoundary - cur%headerBoundary) % headerBoundary; pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return errors.WithStack(err)
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Bytes produces the archive as a byte slice. Like Write, it consumes
// the Creator.
func (c *Creator) Bytes() ([]byte, error) {
	var w memWriter
	if err := c.Write(&w); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// synthesizeListfile stages the listing of all file paths, one per
// line with CRLF endings and forward slashes. Any user staging of the
// reserved name is overwritten.
func (c *Creator) synthesizeListfile() {
	var b bytes.Buffer
	for _, f := range c.files {
		if strings.EqualFold(f.name, listfileName) {
			continue
		}
		b.WriteString(f.name)
		b.WriteString("\r\n")
	}

	lf := pendingFile{
		name:     listfileName,
		contents: b.Bytes(),
		opts:     FileOptions{Compress: true, Encrypt: true, FixKey: true},
	}

	key := strings.ToUpper(listfileName)
	if i, ok := c.index[key]; ok {
		c.files[i] = lf
		return
	}
	c.index[key] = len(c.files)
	c.files = append(c.files, lf)
}

// memWriter is an in-memory io.WriteSeeker backing Creator.Bytes.
type memWriter struct {
	buf []byte
	pos int64
}

func (m *memWriter) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriter) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("seek before start of buffer")
	}
	m.pos = abs
	return abs, nil
}
