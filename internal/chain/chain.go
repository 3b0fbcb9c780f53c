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

// Package chain implements the tree of competing chains: a shared,
// append-only block pool, the set of branches induced by forks, and the
// rule that selects a single main chain by length. ChainTree.AddBlock is
// the core state transition of the whole node.
package chain

import (
	"errors"

	"github.com/powchain/node/internal/block"
	"github.com/powchain/node/internal/hashutil"
	"github.com/powchain/node/internal/ledger"
)

// Errors returned by AddBlock and Blockchain.Verify.
var (
	ErrPreviousBlockNotFound         = errors.New("chain: previous block not found in pool")
	ErrBlockExistButIsNotInAnyBranch = errors.New("chain: previous block exists in the pool but is not referenced by any branch")
	ErrBlockAlreadyExist             = errors.New("chain: block already exists in the pool")
	ErrBlockIndexAreNotContiguous    = errors.New("chain: block index is not contiguous with its parent")
	ErrBlockPrevHashDoesNotMatch     = errors.New("chain: prev_block_hash does not match parent's hash")
)

// Blockchain is a branch: a contiguous sequence of indices into the owning
// ChainTree's shared block pool, from the genesis block to this branch's
// tip, plus the cached ledger obtained by replaying those blocks in order.
type Blockchain struct {
	BlockIndices []uint32
	Ledger       ledger.Ledger
}

// Length is the number of blocks in the branch, genesis included.
func (b Blockchain) Length() int {
	return len(b.BlockIndices)
}

// Verify walks the branch against the shared pool: the first block must be
// genesis (skipped), and every subsequent block must have a contiguous
// index, satisfy the difficulty mask, and chain its prev_block_hash to the
// previous block's hash.
func (b Blockchain) Verify(pool []block.Block, difficultyMask uint64) error {
	if len(b.BlockIndices) == 0 {
		return nil
	}
	prev := pool[b.BlockIndices[0]]
	for _, idx := range b.BlockIndices[1:] {
		cur := pool[idx]
		if cur.Content.Index != prev.Content.Index+1 {
			return ErrBlockIndexAreNotContiguous
		}
		if !hashutil.CheckDifficulty(cur.Hash, difficultyMask) {
			return ErrBlockProofOfWorkIsNotDone
		}
		if cur.Content.PrevBlockHash != prev.Hash {
			return ErrBlockPrevHashDoesNotMatch
		}
		prev = cur
	}
	return nil
}

// ErrBlockProofOfWorkIsNotDone mirrors block.ErrBlockProofOfWorkIsNotDone for
// branch-level verification, which only has access to the difficulty mask
// and not a block.Block to call Verify on.
var ErrBlockProofOfWorkIsNotDone = block.ErrBlockProofOfWorkIsNotDone

// ChainTree holds every known valid block (the shared pool), every branch
// induced by forks, and a pointer to the currently-longest branch.
type ChainTree struct {
	Blocks   []block.Block
	Branches []Blockchain
	Main     uint32

	hashIndex map[hashutil.Hash]int // block hash -> position in Blocks
}

// NewFromNothingness returns a ChainTree containing only the genesis block
// and the genesis-only branch.
func NewFromNothingness() *ChainTree {
	g := block.Genesis()
	t := &ChainTree{
		Blocks:    []block.Block{g},
		Branches:  []Blockchain{{BlockIndices: []uint32{0}, Ledger: ledger.New()}},
		Main:      0,
		hashIndex: map[hashutil.Hash]int{g.Hash: 0},
	}
	return t
}

// MainBranch returns the currently-selected main chain.
func (t *ChainTree) MainBranch() Blockchain {
	return t.Branches[t.Main]
}

// TipOf returns the last block of br.
func (t *ChainTree) TipOf(br Blockchain) block.Block {
	return t.Blocks[br.BlockIndices[len(br.BlockIndices)-1]]
}

// rebuildLedger replays every transaction of every non-genesis block in
// blocks against a single empty parent ledger, swallowing per-transaction
// errors: the chain is assumed valid, since each block was validated when
// it was originally added.
func rebuildLedger(blocks []block.Block) ledger.Ledger {
	parent := ledger.New()
	p := ledger.NewPartial()
	for _, blk := range blocks[1:] {
		for _, tx := range blk.Content.Transactions {
			_ = p.ApplyTransaction(parent, tx)
		}
	}
	return p.ToLedger(parent)
}

// locateParent implements phase 3 of AddBlock: find the branch (existing or
// synthesized by forking) that b extends. mutateIndex is the index into
// t.Branches to overwrite on commit, or -1 if parent is a freshly synthesized
// branch that should be appended instead.
func (t *ChainTree) locateParent(b block.Block) (parent Blockchain, mutateIndex int, isFork bool, err error) {
	for i, br := range t.Branches {
		if t.TipOf(br).Hash == b.Content.PrevBlockHash {
			return br, i, false, nil
		}
	}

	poolIdx, ok := t.hashIndex[b.Content.PrevBlockHash]
	if !ok {
		return Blockchain{}, 0, false, ErrPreviousBlockNotFound
	}
	for _, br := range t.Branches {
		for i, bi := range br.BlockIndices {
			if int(bi) == poolIdx {
				prefix := append([]uint32{}, br.BlockIndices[:i+1]...)
				prefixBlocks := make([]block.Block, len(prefix))
				for j, idx := range prefix {
					prefixBlocks[j] = t.Blocks[idx]
				}
				return Blockchain{BlockIndices: prefix, Ledger: rebuildLedger(prefixBlocks)}, -1, true, nil
			}
		}
	}
	return Blockchain{}, 0, false, ErrBlockExistButIsNotInAnyBranch
}

// AddBlock is the core state transition. It runs six ordered phases —
// duplicate check, self-validation, parent location (extension or fork),
// chain-link check, payload replay, commit — where only the final phase
// mutates the tree. Every earlier failure leaves t byte-identical to its
// pre-call state.
func (t *ChainTree) AddBlock(b block.Block, difficultyMask uint64) error {
	if idx, ok := t.hashIndex[b.Hash]; ok && t.Blocks[idx].Equal(b) {
		return ErrBlockAlreadyExist
	}

	if err := b.Verify(difficultyMask); err != nil {
		return err
	}

	parentBranch, mutateIndex, isFork, err := t.locateParent(b)
	if err != nil {
		return err
	}

	tip := t.TipOf(parentBranch)
	if tip.Content.Index+1 != b.Content.Index {
		return ErrBlockIndexAreNotContiguous
	}
	if tip.Hash != b.Content.PrevBlockHash {
		return ErrBlockPrevHashDoesNotMatch
	}

	childLedger, err := b.VerifyPayload(parentBranch.Ledger)
	if err != nil {
		return err
	}

	t.Blocks = append(t.Blocks, b)
	bIdx := uint32(len(t.Blocks) - 1)
	t.hashIndex[b.Hash] = int(bIdx)

	var targetIdx int
	if isFork {
		newBranch := Blockchain{
			BlockIndices: append(append([]uint32{}, parentBranch.BlockIndices...), bIdx),
			Ledger:       childLedger,
		}
		t.Branches = append(t.Branches, newBranch)
		targetIdx = len(t.Branches) - 1
	} else {
		mutated := t.Branches[mutateIndex]
		mutated.BlockIndices = append(append([]uint32{}, mutated.BlockIndices...), bIdx)
		mutated.Ledger = childLedger
		t.Branches[mutateIndex] = mutated
		targetIdx = mutateIndex
	}

	if t.Branches[targetIdx].Length() > t.Branches[t.Main].Length() {
		t.Main = uint32(targetIdx)
	}
	return nil
}
