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

package chain

import (
	"github.com/powchain/node/internal/block"
	"github.com/powchain/node/internal/codec"
	"github.com/powchain/node/internal/hashutil"
	"github.com/powchain/node/internal/ledger"
)

// Encode appends a branch's wire form: len(indices) u32, indices u32...,
// then the ledger.
func (b Blockchain) Encode(w *codec.Writer) {
	w.WriteUint32(uint32(len(b.BlockIndices)))
	for _, idx := range b.BlockIndices {
		w.WriteUint32(idx)
	}
	b.Ledger.Encode(w)
}

// DecodeBlockchain reads a branch in the form written by Encode.
func DecodeBlockchain(r *codec.Reader) (Blockchain, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return Blockchain{}, err
	}
	indices := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		idx, err := r.ReadUint32()
		if err != nil {
			return Blockchain{}, err
		}
		indices = append(indices, idx)
	}
	l, err := ledger.Decode(r)
	if err != nil {
		return Blockchain{}, err
	}
	return Blockchain{BlockIndices: indices, Ledger: l}, nil
}

// Encode appends the ChainTree's wire form: len(blocks) u32, blocks...,
// len(branches) u32, branches..., main u32.
func (t *ChainTree) Encode(w *codec.Writer) {
	w.WriteUint32(uint32(len(t.Blocks)))
	for _, b := range t.Blocks {
		b.Encode(w)
	}
	w.WriteUint32(uint32(len(t.Branches)))
	for _, br := range t.Branches {
		br.Encode(w)
	}
	w.WriteUint32(t.Main)
}

// Decode reads a ChainTree in the form written by Encode, rebuilding the
// non-serialized block-hash index.
func Decode(r *codec.Reader) (*ChainTree, error) {
	blockCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	blocks := make([]block.Block, 0, blockCount)
	hashIndex := make(map[hashutil.Hash]int, blockCount)
	for i := uint32(0); i < blockCount; i++ {
		b, err := block.Decode(r)
		if err != nil {
			return nil, err
		}
		hashIndex[b.Hash] = len(blocks)
		blocks = append(blocks, b)
	}
	branchCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	branches := make([]Blockchain, 0, branchCount)
	for i := uint32(0); i < branchCount; i++ {
		br, err := DecodeBlockchain(r)
		if err != nil {
			return nil, err
		}
		branches = append(branches, br)
	}
	main, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return &ChainTree{Blocks: blocks, Branches: branches, Main: main, hashIndex: hashIndex}, nil
}
