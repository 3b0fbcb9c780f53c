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

// Package block implements the block header, its proof-of-work and
// self-hash, and the payload-replay step that turns a parent ledger plus a
// block's transactions into the child ledger.
package block

import (
	"errors"
	"math/big"

	"github.com/powchain/node/internal/codec"
	"github.com/powchain/node/internal/hashutil"
	"github.com/powchain/node/internal/ledger"
	"github.com/powchain/node/internal/txn"
)

// Errors returned by Verify and VerifyPayload.
var (
	ErrVerifyingGenesisBlock     = errors.New("block: genesis block is never verified")
	ErrBlockContainsNoTransaction = errors.New("block: block has no transactions")
	ErrBlockProofOfWorkIsNotDone = errors.New("block: proof of work does not satisfy the difficulty mask")
	ErrBlockHashIsInvalid        = errors.New("block: stored hash does not match the recomputed hash")
)

// Content is the part of a block that gets hashed and mined against.
type Content struct {
	Index          uint32
	Timestamp      *big.Int // milliseconds since UNIX epoch, stored as u128
	PrevBlockHash  hashutil.Hash
	Transactions   []txn.Transaction
}

// Bytes returns the canonical encoding of the content: index (u32),
// timestamp (u128), prev_block_hash (32B), then a u32-length-prefixed
// vector of transactions.
func (c Content) Bytes() []byte {
	w := codec.NewWriter()
	w.WriteUint32(c.Index)
	w.WriteUint128(c.Timestamp)
	w.WriteRaw(c.PrevBlockHash[:])
	w.WriteUint32(uint32(len(c.Transactions)))
	for _, tx := range c.Transactions {
		tx.Encode(w)
	}
	return w.Bytes()
}

// Block is a mined Content: its proof of work and its own hash.
type Block struct {
	Content       Content
	ProofOfWork   *big.Int // u128
	Hash          hashutil.Hash
}

// ComputeHash recomputes SHA256(content bytes || proof_of_work big-endian).
func (b Block) ComputeHash() hashutil.Hash {
	w := codec.NewWriter()
	w.WriteRaw(b.Content.Bytes())
	w.WriteUint128(b.ProofOfWork)
	return hashutil.Sum(w.Bytes())
}

// Genesis returns the unique genesis block: index 0, no transactions,
// prev_block_hash and hash all-zero, timestamp and proof of work zero. It is
// never mined and never passed to Verify.
func Genesis() Block {
	return Block{
		Content: Content{
			Index:         0,
			Timestamp:     big.NewInt(0),
			PrevBlockHash: hashutil.Zero,
		},
		ProofOfWork: big.NewInt(0),
		Hash:        hashutil.Zero,
	}
}

// IsGenesis reports whether b is the genesis block by index.
func (b Block) IsGenesis() bool {
	return b.Content.Index == 0
}

// Verify checks b in isolation: it must not be genesis, must carry at least
// one transaction, must satisfy the proof-of-work difficulty mask, and its
// stored hash must match the recomputed one.
func (b Block) Verify(difficultyMask uint64) error {
	if b.IsGenesis() {
		return ErrVerifyingGenesisBlock
	}
	if len(b.Content.Transactions) == 0 {
		return ErrBlockContainsNoTransaction
	}
	if !hashutil.CheckDifficulty(b.Hash, difficultyMask) {
		return ErrBlockProofOfWorkIsNotDone
	}
	if b.Hash != b.ComputeHash() {
		return ErrBlockHashIsInvalid
	}
	return nil
}

// VerifyPayload replays b's transactions against parentLedger, returning the
// resulting child ledger. The first transaction error aborts the whole
// replay; the caller discards the partial overlay.
func (b Block) VerifyPayload(parentLedger ledger.Ledger) (ledger.Ledger, error) {
	p := ledger.NewPartial()
	for _, tx := range b.Content.Transactions {
		if err := p.ApplyTransaction(parentLedger, tx); err != nil {
			return ledger.Ledger{}, err
		}
	}
	return p.ToLedger(parentLedger), nil
}

// Equal reports whether b and o are structurally identical (used by the
// chain tree's duplicate-block check).
func (b Block) Equal(o Block) bool {
	if b.Content.Index != o.Content.Index ||
		b.Content.Timestamp.Cmp(o.Content.Timestamp) != 0 ||
		b.Content.PrevBlockHash != o.Content.PrevBlockHash ||
		b.ProofOfWork.Cmp(o.ProofOfWork) != 0 ||
		b.Hash != o.Hash ||
		len(b.Content.Transactions) != len(o.Content.Transactions) {
		return false
	}
	for i := range b.Content.Transactions {
		if !b.Content.Transactions[i].Equal(o.Content.Transactions[i]) {
			return false
		}
	}
	return true
}

// Encode appends the canonical wire form: proof_of_work (u128), hash (32B),
// content (index, timestamp, prev_block_hash, transaction vector).
func (b Block) Encode(w *codec.Writer) {
	w.WriteUint128(b.ProofOfWork)
	w.WriteRaw(b.Hash[:])
	w.WriteUint32(b.Content.Index)
	w.WriteUint128(b.Content.Timestamp)
	w.WriteRaw(b.Content.PrevBlockHash[:])
	w.WriteUint32(uint32(len(b.Content.Transactions)))
	for _, tx := range b.Content.Transactions {
		tx.Encode(w)
	}
}

// Decode reads a Block in the form written by Encode.
func Decode(r *codec.Reader) (Block, error) {
	pow, err := r.ReadUint128()
	if err != nil {
		return Block{}, err
	}
	hashB, err := r.ReadRaw(hashutil.Size)
	if err != nil {
		return Block{}, err
	}
	index, err := r.ReadUint32()
	if err != nil {
		return Block{}, err
	}
	ts, err := r.ReadUint128()
	if err != nil {
		return Block{}, err
	}
	prevB, err := r.ReadRaw(hashutil.Size)
	if err != nil {
		return Block{}, err
	}
	txCount, err := r.ReadUint32()
	if err != nil {
		return Block{}, err
	}
	txs := make([]txn.Transaction, 0, txCount)
	for i := uint32(0); i < txCount; i++ {
		tx, err := txn.Decode(r)
		if err != nil {
			return Block{}, err
		}
		txs = append(txs, tx)
	}
	var hash hashutil.Hash
	copy(hash[:], hashB)
	var prev hashutil.Hash
	copy(prev[:], prevB)
	return Block{
		Content: Content{
			Index:         index,
			Timestamp:     ts,
			PrevBlockHash: prev,
			Transactions:  txs,
		},
		ProofOfWork: pow,
		Hash:        hash,
	}, nil
}
