// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

// Hash types for hashString
const (
	hashTypeTableOffset = 0
	hashTypeNameA       = 1
	hashTypeNameB       = 2
	hashTypeFileKey     = 3
)

// cryptTable backs both the hash function and the cipher.
var cryptTable [0x500]uint32

func init() {
	// Standard MPQ table generation: fixed seed, 256 indices, 5 passes
	seed := uint32(0x00100001)

	for index1 := 0; index1 < 0x100; index1++ {
		index2 := index1
		for i := 0; i < 5; i++ {
			seed = (seed*125 + 3) % 0x2AAAAB
			temp1 := (seed & 0xFFFF) << 0x10

			seed = (seed*125 + 3) % 0x2AAAAB
			temp2 := seed & 0xFFFF

			cryptTable[index2] = temp1 | temp2
			index2 += 0x100
		}
	}
}

// hashString computes the MPQ hash of a string. Case is folded to
// upper, but separators are hashed as-is: "a/b" and "a\\b" produce
// different values. Callers normalize separators before hashing.
func hashString(s string, hashType uint32) uint32 {
	seed1 := uint32(0x7FED7FED)
	seed2 := uint32(0xEEEEEEEE)

	for i := 0; i < len(s); i++ {
		ch := uint32(s[i])
		if ch >= 'a' && ch <= 'z' {
			ch -= 0x20
		}

		seed1 = cryptTable[hashType*0x100+ch] ^ (seed1 + seed2)
		seed2 = ch + seed1 + seed2 + (seed2 << 5) + 3
	}

	return seed1
}

// encryptBlock encrypts a block of words in place.
func encryptBlock(data []uint32, key uint32) {
	seed := uint32(0xEEEEEEEE)

	for i := range data {
		seed += cryptTable[0x400+(key&0xFF)]
		plain := data[i]
		data[i] = plain ^ (key + seed)
		key = ((^key << 0x15) + 0x11111111) | (key >> 0x0B)
		seed = plain + seed + (seed << 5) + 3
	}
}

// decryptBlock decrypts a block of words in place. Same transform as
// encryptBlock except the running seed is updated from the decrypted
// value.
func decryptBlock(data []uint32, key uint32) {
	seed := uint32(0xEEEEEEEE)

	for i := range data {
		seed += cryptTable[0x400+(key&0xFF)]
		plain := data[i] ^ (key + seed)
		key = ((^key << 0x15) + 0x11111111) | (key >> 0x0B)
		seed = plain + seed + (seed << 5) + 3
		data[i] = plain
	}
}

// encryptBytes encrypts a byte slice in place. The cipher works on
// 32-bit words; trailing bytes past the last full word stay plain.
func encryptBytes(data []byte, key uint32) {
	n := len(data) &^ 3
	words := bytesToWords(data[:n])
	encryptBlock(words, key)
	copy(data, wordsToBytes(words))
}

// decryptBytes decrypts a byte slice in place, leaving any unaligned
// tail untouched.
func decryptBytes(data []byte, key uint32) {
	n := len(data) &^ 3
	words := bytesToWords(data[:n])
	decryptBlock(words, key)
	copy(data, wordsToBytes(words))
}

// fileKey computes the cipher key for a file. Only the basename is
// hashed; with fileFixKey set the key is adjusted by the block's
// archive-relative position and uncompressed size.
func fileKey(name string, filePos, fileSize, flags uint32) uint32 {
	plain := name
	if idx := lastIndexOfSlash(name); idx >= 0 {
		plain = name[idx+1:]
	}

	key := hashString(plain, hashTypeFileKey)

	if flags&fileFixKey != 0 {
		key = (key + filePos) ^ fileSize
	}

	return key
}

// lastIndexOfSlash finds the last path separator in a string.
func lastIndexOfSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\\' || s[i] == '/' {
			return i
		}
	}
	return -1
}
