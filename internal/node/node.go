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

// Package node implements the event loop that multiplexes inbound network
// events, mining results and snapshot requests, and that coordinates
// starting and stopping the miner on every main-tip change. Modeled on
// work/worker.go's update/wait loop and atomic mining-state bookkeeping.
package node

import (
	"context"
	"math/big"
	"time"

	"github.com/powchain/node/internal/amount"
	"github.com/powchain/node/internal/block"
	"github.com/powchain/node/internal/chain"
	"github.com/powchain/node/internal/log"
	"github.com/powchain/node/internal/miner"
	"github.com/powchain/node/internal/txn"
)

// Flavor distinguishes the three node personalities described in the
// source: genesis starts mining immediately from a fresh tree, full fetches
// a snapshot before joining the loop, debug never mines.
type Flavor int

const (
	FlavorGenesis Flavor = iota
	FlavorFull
	FlavorDebug
)

// tickInterval is how often the event loop polls its inbound channels. All
// reads are non-blocking; this is just the loop's heartbeat.
const tickInterval = 10 * time.Millisecond

// AskSnapshotRequest carries a peer's request for the full chain tree, and
// the address it expects the reply to be sent to.
type AskSnapshotRequest struct {
	ReplyAddr string
}

// Broadcaster fans a block or transaction out to peers. Implemented by the
// network package; errors are the transport's concern and are swallowed
// there, never here (peers are best-effort).
type Broadcaster interface {
	BroadcastBlock(b block.Block)
	BroadcastTransaction(tx txn.Transaction)
}

// SnapshotSender delivers the full chain tree to a single requesting peer.
type SnapshotSender interface {
	SendSnapshot(replyAddr string, tree *chain.ChainTree) error
}

// Node owns the chain tree and the mempool; no other goroutine ever touches
// them, so no lock is needed around them — all mutation happens on the
// event-loop goroutine.
type Node struct {
	logger *log.Logger

	flavor     Flavor
	difficulty uint64
	self       txn.User

	tree  *chain.ChainTree
	cache *Cache
	sup   *miner.Supervisor

	broadcaster    Broadcaster
	snapshotSender SnapshotSender

	InboundBlocks    chan block.Block
	InboundTxs       chan txn.Transaction
	AskSnapshots     chan AskSnapshotRequest
	ReceiveSnapshots chan *chain.ChainTree

	now func() int64 // milliseconds since epoch; overridable in tests
}

// New builds a node around an already-constructed chain tree (the genesis
// tree for a fresh network, or a snapshot fetched from a peer for a full
// node). cmd/pownode gives a debug node a fresh genesis tree; it does not
// fetch a snapshot for one.
func New(flavor Flavor, difficulty uint64, self txn.User, tree *chain.ChainTree) *Node {
	return &Node{
		logger:           log.New("node"),
		flavor:           flavor,
		difficulty:       difficulty,
		self:             self,
		tree:             tree,
		cache:            NewCache(),
		sup:              miner.NewSupervisor(difficulty),
		InboundBlocks:    make(chan block.Block, 64),
		InboundTxs:       make(chan txn.Transaction, 256),
		AskSnapshots:     make(chan AskSnapshotRequest, 8),
		ReceiveSnapshots: make(chan *chain.ChainTree, 1),
		now:              func() int64 { return time.Now().UnixMilli() },
	}
}

// SetBroadcaster wires the network layer's fan-out; nil is a valid no-op
// broadcaster for tests.
func (n *Node) SetBroadcaster(b Broadcaster) { n.broadcaster = b }

// SetSnapshotSender wires the network layer's snapshot responder.
func (n *Node) SetSnapshotSender(s SnapshotSender) { n.snapshotSender = s }

// Tree returns the node's chain tree. Only safe to call from outside the
// event loop when the loop isn't running (e.g. in tests, or before Run).
func (n *Node) Tree() *chain.ChainTree { return n.tree }

// Run drives the event loop until ctx is cancelled. Genesis and full nodes
// start mining immediately; debug nodes never mine.
func (n *Node) Run(ctx context.Context) {
	defer n.sup.Close()

	if n.flavor != FlavorDebug {
		n.restartMiner()
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.tick()
		}
	}
}

// tick consumes at most one message from each inbound source, per §4.7.
func (n *Node) tick() {
	select {
	case b := <-n.InboundBlocks:
		n.handleInboundBlock(b)
	default:
	}

	select {
	case b := <-n.sup.Results():
		n.handleMinedBlock(b)
	default:
	}

	select {
	case tx := <-n.InboundTxs:
		n.handleInboundTransaction(tx)
	default:
	}

	select {
	case req := <-n.AskSnapshots:
		n.handleAskSnapshot(req)
	default:
	}

	select {
	case <-n.ReceiveSnapshots:
		// Outside the initial fetch, unsolicited snapshots are ignored.
	default:
	}
}

func (n *Node) handleInboundBlock(b block.Block) {
	if err := n.tree.AddBlock(b, n.difficulty); err != nil {
		n.logger.Debug("dropped inbound block", "err", err)
		return
	}
	n.sup.Stop()
	if n.broadcaster != nil {
		n.broadcaster.BroadcastBlock(b)
	}
	n.cache.Clear()
	n.restartMiner()
}

func (n *Node) handleMinedBlock(b block.Block) {
	if n.broadcaster != nil {
		n.broadcaster.BroadcastBlock(b)
	}
	if err := n.tree.AddBlock(b, n.difficulty); err != nil {
		n.logger.Debug("own mined block lost the race", "err", err)
		return
	}
	n.cache.Clear()
	n.restartMiner()
}

func (n *Node) handleInboundTransaction(tx txn.Transaction) {
	mainLedger := n.tree.MainBranch().Ledger
	if err := n.cache.Push(mainLedger, tx); err != nil {
		n.logger.Debug("rejected inbound transaction", "err", err)
		return
	}
	if n.broadcaster != nil {
		n.broadcaster.BroadcastTransaction(tx)
	}
}

func (n *Node) handleAskSnapshot(req AskSnapshotRequest) {
	if n.snapshotSender == nil {
		return
	}
	if err := n.snapshotSender.SendSnapshot(req.ReplyAddr, n.tree); err != nil {
		n.logger.Warn("failed to send snapshot", "to", req.ReplyAddr, "err", err)
	}
}

// BuildCandidate assembles the next BlockContent to mine: the coinbase
// reward to self first (so a block is never empty), followed by every
// pending transaction not already spent on the main branch.
func (n *Node) BuildCandidate() (block.Content, error) {
	main := n.tree.MainBranch()
	tip := n.tree.TipOf(main)

	coinbase, err := txn.NewCoinbase(n.self.AsPublic(), amount.FromInt(1))
	if err != nil {
		return block.Content{}, err
	}

	txs := []txn.Transaction{coinbase}
	for _, tx := range n.cache.Pending() {
		if main.Ledger.Contains(tx.Content.Nonce) {
			continue
		}
		txs = append(txs, tx)
	}

	return block.Content{
		Index:         tip.Content.Index + 1,
		Timestamp:     big.NewInt(n.now()),
		PrevBlockHash: tip.Hash,
		Transactions:  txs,
	}, nil
}

func (n *Node) restartMiner() {
	if n.flavor == FlavorDebug {
		return
	}
	content, err := n.BuildCandidate()
	if err != nil {
		n.logger.Error("failed to build mining candidate", "err", err)
		return
	}
	n.sup.Start(content)
}
