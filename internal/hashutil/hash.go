// Copyright 2024 The powchain Authors
// This file is part of the powchain library.
//
// The powchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The powchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the powchain library. If not, see <http://www.gnu.org/licenses/>.

// Package hashutil implements the fixed 32-byte digest type shared by
// blocks, transactions and public keys, plus the proof-of-work difficulty
// check. SHA-256 is taken from the standard library per the project's
// external-interfaces contract.
package hashutil

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Size is the length in bytes of a Hash.
const Size = 32

// Difficulty masks, ANDed against the low 64 bits of a hash's high 128-bit
// word (see CheckDifficulty). DifficultyTest is deliberately weak so tests
// mine instantly; DifficultyProd is a stronger mask, still trivially
// mineable on one core since this is a didactic node, not a production
// chain (see §9 Open Question 2).
const (
	DifficultyTest uint64 = 0xF8
	DifficultyProd uint64 = 0xFFFF
)

// Hash is a SHA-256 digest, compared and serialized bytewise.
type Hash [Size]byte

// Zero is the all-zero hash used as the genesis block's previous-hash and
// self-hash.
var Zero Hash

// Sum returns the SHA-256 digest of data.
func Sum(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the digest bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])
	return b
}

// CheckDifficulty reports whether hash satisfies the proof-of-work
// difficulty mask: the mask is ANDed against the low 64 bits of the hash's
// high 128-bit word (bytes [8:16]); difficulty is met when the result is
// zero. This is a bitmask test, not a numeric-target comparison.
func CheckDifficulty(hash Hash, mask uint64) bool {
	word := binary.BigEndian.Uint64(hash[8:16])
	return word&mask == 0
}
