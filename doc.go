// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

/*
Package mpq reads and writes MoPaQ (MPQ) version 1 archives.

MPQ is the archive container format used by Blizzard games of the
Warcraft III era. An archive stores named files addressed through a
fixed-size open-addressed hash table, with file contents split into
sectors that are individually compressed and optionally encrypted.

# Reading

[Open] works on any io.ReadSeeker. The archive header is located by
scanning 512-byte boundaries, following a user-data shunt block if one
is present.

	f, err := os.Open("war3map.w3x")
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	a, err := mpq.Open(f)
	if err != nil {
		log.Fatal(err)
	}

	data, err := a.ReadFile("war3map.j")
	if err != nil {
		log.Fatal(err)
	}

# Writing

[Creator] accumulates files in memory and serializes the whole archive
on [Creator.Write]. Adding a path twice replaces the earlier contents.
A (listfile) enumerating all stored paths is appended automatically.

	c := mpq.NewCreator()
	c.AddFile("scripts/main.lua", data, mpq.FileOptions{Compress: true})

	out, err := os.Create("out.mpq")
	if err != nil {
		log.Fatal(err)
	}
	defer out.Close()

	if err := c.Write(out); err != nil {
		log.Fatal(err)
	}

A Creator is consumed by Write; build a fresh one for further archives.

# Path Conventions

Stored paths use forward slashes; backslashes passed to AddFile or the
lookup functions are normalized before hashing. Lookups are
case-insensitive. The underlying hash itself distinguishes the two
separator characters, so normalization happens once at the API
boundary and the (listfile) always carries the forward-slash form.

# Limitations

This package implements the original format version only:

  - No MPQ format V2/V3/V4 (extended block table, >4GB archives)
  - No (attributes) file and no digital signatures
  - Write-side compression is DEFLATE only; the read side additionally
    understands bzip2 and PKWare DCL sectors
  - No ADPCM, Huffman, sparse or LZMA compression
*/
package mpq
