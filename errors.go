// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import "github.com/pkg/errors"

// Errors returned by this package. Call sites wrap these with context;
// match them with errors.Is.
var (
	// ErrNoHeader means no MPQ header was found at any 512-byte
	// boundary of the input.
	ErrNoHeader = errors.New("mpq: no archive header found")

	// ErrUnsupportedVersion means the header declares a format version
	// other than 0 (V1).
	ErrUnsupportedVersion = errors.New("mpq: unsupported format version")

	// ErrCorrupted means the archive structure is internally
	// inconsistent: bad table bounds, bad sector offsets, or data that
	// fails to decrypt/decompress to the declared size.
	ErrCorrupted = errors.New("mpq: corrupted archive")

	// ErrFileNotFound means the path does not resolve to an occupied
	// hash table entry.
	ErrFileNotFound = errors.New("mpq: file not found")

	// ErrUnsupportedCompression means a sector carries a compression
	// method marker this package cannot decode.
	ErrUnsupportedCompression = errors.New("mpq: unsupported compression")

	// ErrHashTableFull means an insert was attempted into a hash table
	// with no free slot left.
	ErrHashTableFull = errors.New("mpq: hash table full")

	// ErrInvalidInput means a caller-supplied path or option is not
	// representable in the archive.
	ErrInvalidInput = errors.New("mpq: invalid input")
)
