// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import (
	"bytes"
	"compress/bzip2"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	dcl "github.com/sourcekris/dclextract/common"
)

// Compression method markers. The first byte of a compressed sector is
// a bitmask of the methods applied to it.
const (
	compressionHuffman     = 0x01 // Huffman (wave files only)
	compressionZlib        = 0x02 // DEFLATE in a zlib stream
	compressionPKWare      = 0x08 // PKWare DCL ("blast")
	compressionBzip2       = 0x10 // BZip2
	compressionSparse      = 0x20 // Sparse/RLE (SC2+)
	compressionADPCMMono   = 0x40 // ADPCM mono audio
	compressionADPCMStereo = 0x80 // ADPCM stereo audio
	compressionLZMA        = 0x12 // LZMA (SC2+), overlaps zlib|bzip2 bits

	knownCompressionMask = compressionHuffman | compressionZlib |
		compressionPKWare | compressionBzip2 | compressionSparse |
		compressionADPCMMono | compressionADPCMStereo
)

// compressSector compresses one sector with zlib and prefixes the
// method marker. The caller decides whether the result is worth
// storing.
func compressSector(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(compressionZlib)

	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, errors.Wrap(err, "create zlib writer")
	}

	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "zlib write")
	}

	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "zlib close")
	}

	return buf.Bytes(), nil
}

// decompressSector decodes one stored sector: reads the method marker
// and dispatches to the matching codec.
func decompressSector(data []byte, uncompressedSize uint32) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrCorrupted, "empty compressed sector")
	}

	method := data[0]
	payload := data[1:]

	if method == compressionLZMA {
		return nil, errors.Wrap(ErrUnsupportedCompression, "LZMA")
	}
	if method&^byte(knownCompressionMask) != 0 {
		return nil, errors.Wrapf(ErrUnsupportedCompression, "unknown marker 0x%02X", method)
	}
	if method&compressionADPCMMono != 0 {
		return nil, errors.Wrap(ErrUnsupportedCompression, "ADPCM mono")
	}
	if method&compressionADPCMStereo != 0 {
		return nil, errors.Wrap(ErrUnsupportedCompression, "ADPCM stereo")
	}
	if method&compressionHuffman != 0 {
		return nil, errors.Wrap(ErrUnsupportedCompression, "Huffman")
	}
	if method&compressionSparse != 0 {
		return nil, errors.Wrap(ErrUnsupportedCompression, "sparse")
	}

	switch {
	case method&compressionBzip2 != 0:
		return decompressBzip2(payload, uncompressedSize)
	case method&compressionZlib != 0:
		return decompressZlib(payload, uncompressedSize)
	case method&compressionPKWare != 0:
		return decompressPKWare(payload)
	}

	return nil, errors.Wrapf(ErrUnsupportedCompression, "marker 0x%02X", method)
}

func decompressZlib(data []byte, uncompressedSize uint32) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrCorrupted, "zlib stream")
	}
	defer r.Close()

	result := make([]byte, uncompressedSize)
	n, err := io.ReadFull(r, result)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrap(ErrCorrupted, "zlib decompress")
	}

	return result[:n], nil
}

func decompressBzip2(data []byte, uncompressedSize uint32) ([]byte, error) {
	r := bzip2.NewReader(bytes.NewReader(data))

	result := make([]byte, uncompressedSize)
	n, err := io.ReadFull(r, result)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, errors.Wrap(ErrCorrupted, "bzip2 decompress")
	}

	return result[:n], nil
}

func decompressPKWare(data []byte) ([]byte, error) {
	result, err := dcl.ReadAndDecompressBlastData(bytes.NewReader(data), uint32(len(data)), 0)
	if err != nil {
		return nil, errors.Wrap(ErrCorrupted, "pkware decompress")
	}

	return result, nil
}
