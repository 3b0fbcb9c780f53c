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

package node

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	set "gopkg.in/fatih/set.v0"

	"github.com/powchain/node/internal/ledger"
	"github.com/powchain/node/internal/txn"
)

// maxPendingTxs bounds the mempool the way node/cn/peer.go bounds
// maxKnownTxs: a busy gossip network shouldn't grow memory unboundedly.
const maxPendingTxs = 4096

// ErrTransactionAlreadyKnown is returned by Push for a nonce this cache has
// already admitted since its last Clear. The caller (the event loop) treats
// this exactly like any other Push rejection: the transaction is dropped and
// never re-broadcast, which is what stops an already-seen transaction
// bouncing around the gossip network forever.
var ErrTransactionAlreadyKnown = errors.New("node: transaction already known")

// Cache is the node's mempool: pending transactions admitted against a
// running PartialLedger overlay on top of the main branch's ledger, so
// intra-mempool double-spends and insufficient balances are rejected at
// admission time rather than only when a block is built.
type Cache struct {
	mu      sync.Mutex
	pending *lru.Cache // nonce -> txn.Transaction
	order   []uint64
	overlay ledger.Partial
	known   *set.Set // nonces admitted since the last Clear
}

// NewCache returns an empty mempool.
func NewCache() *Cache {
	c, _ := lru.New(maxPendingTxs)
	return &Cache{pending: c, overlay: ledger.NewPartial(), known: set.New()}
}

// Push validates tx against mainLedger through the cache's running overlay
// and, on success, admits it to the mempool. A nonce this cache has already
// admitted is rejected outright, before touching the overlay, so a
// transaction gossiped in by more than one peer is neither replayed twice
// nor broadcast back out a second time.
func (c *Cache) Push(mainLedger ledger.Ledger, tx txn.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.known.Has(tx.Content.Nonce) {
		return ErrTransactionAlreadyKnown
	}
	if err := c.overlay.ApplyTransaction(mainLedger, tx); err != nil {
		return err
	}
	c.pending.Add(tx.Content.Nonce, tx)
	c.order = append(c.order, tx.Content.Nonce)
	c.known.Add(tx.Content.Nonce)
	return nil
}

// Pending returns the admitted transactions in admission order.
func (c *Cache) Pending() []txn.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]txn.Transaction, 0, len(c.order))
	for _, nonce := range c.order {
		if v, ok := c.pending.Peek(nonce); ok {
			out = append(out, v.(txn.Transaction))
		}
	}
	return out
}

// Clear wipes the entire mempool and resets the validation overlay. This is
// the source's mempool eviction policy: coarse, but correct — it is run
// after every main-chain advance rather than trying to subtract exactly the
// transactions the new block consumed (see design note OQ4).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending.Purge()
	c.order = nil
	c.overlay = ledger.NewPartial()
	c.known.Clear()
}
