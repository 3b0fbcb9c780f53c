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

// Package ledger implements the per-branch account balances and spent-nonce
// set, and the scratch overlay (PartialLedger) used to replay a single
// block's transactions before merging the result back into its parent.
package ledger

import (
	"errors"

	"github.com/powchain/node/internal/amount"
	"github.com/powchain/node/internal/codec"
	"github.com/powchain/node/internal/txn"
)

// Errors returned while applying a transaction to a PartialLedger.
var (
	ErrTransactionWasAlreadyDone       = errors.New("ledger: transaction nonce already spent")
	ErrTryingToSendMoneyFromUnknowUser = errors.New("ledger: sender has no known balance")
)

// userBalance pairs a public key with its current balance; order within a
// Ledger/PartialLedger is always insertion order.
type userBalance struct {
	public  txn.PublicUser
	balance amount.Amount
}

// Ledger is the materialized post-state of a branch: every touched user's
// balance, and the exact set of nonces spent by the branch's transactions.
type Ledger struct {
	users      []userBalance
	userIndex  map[txn.PublicUser]int
	nonces     []uint64
	nonceIndex map[uint64]struct{}
}

// New returns an empty ledger, as held by the genesis-only branch.
func New() Ledger {
	return Ledger{userIndex: map[txn.PublicUser]int{}, nonceIndex: map[uint64]struct{}{}}
}

// Contains reports whether nonce has already been spent in this ledger.
func (l Ledger) Contains(nonce uint64) bool {
	_, ok := l.nonceIndex[nonce]
	return ok
}

// Balance returns pub's balance and whether pub is known to the ledger.
func (l Ledger) Balance(pub txn.PublicUser) (amount.Amount, bool) {
	idx, ok := l.userIndex[pub]
	if !ok {
		return amount.Zero(), false
	}
	return l.users[idx].balance, true
}

// Users returns the ledger's users in insertion order. Callers must not
// mutate the returned slice.
func (l Ledger) Users() []struct {
	Public  txn.PublicUser
	Balance amount.Amount
} {
	out := make([]struct {
		Public  txn.PublicUser
		Balance amount.Amount
	}, len(l.users))
	for i, u := range l.users {
		out[i].Public = u.public
		out[i].Balance = u.balance
	}
	return out
}

// Nonces returns the spent-nonce set in insertion order.
func (l Ledger) Nonces() []uint64 {
	out := make([]uint64, len(l.nonces))
	copy(out, l.nonces)
	return out
}

// Equal reports whether l and o hold the same users, balances and nonces,
// ignoring insertion order.
func (l Ledger) Equal(o Ledger) bool {
	if len(l.users) != len(o.users) || len(l.nonces) != len(o.nonces) {
		return false
	}
	for _, u := range l.users {
		ob, ok := o.Balance(u.public)
		if !ok || amount.Cmp(u.balance, ob) != 0 {
			return false
		}
	}
	for n := range l.nonceIndex {
		if _, ok := o.nonceIndex[n]; !ok {
			return false
		}
	}
	return true
}

// Encode appends the wire form: len(nonces) u32, nonces u64..., len(users)
// u32, users... (each user: 32-byte public key, length-prefixed amount
// string).
func (l Ledger) Encode(w *codec.Writer) {
	w.WriteUint32(uint32(len(l.nonces)))
	for _, n := range l.nonces {
		w.WriteUint64(n)
	}
	w.WriteUint32(uint32(len(l.users)))
	for _, u := range l.users {
		w.WriteRaw(u.public[:])
		w.WriteString(u.balance.String())
	}
}

// Decode reads a Ledger in the form written by Encode.
func Decode(r *codec.Reader) (Ledger, error) {
	l := New()
	nonceCount, err := r.ReadUint32()
	if err != nil {
		return Ledger{}, err
	}
	for i := uint32(0); i < nonceCount; i++ {
		n, err := r.ReadUint64()
		if err != nil {
			return Ledger{}, err
		}
		l.nonces = append(l.nonces, n)
		l.nonceIndex[n] = struct{}{}
	}
	userCount, err := r.ReadUint32()
	if err != nil {
		return Ledger{}, err
	}
	for i := uint32(0); i < userCount; i++ {
		pubB, err := r.ReadRaw(len(txn.PublicUser{}))
		if err != nil {
			return Ledger{}, err
		}
		balStr, err := r.ReadString()
		if err != nil {
			return Ledger{}, err
		}
		bal, err := amount.Parse(balStr)
		if err != nil {
			return Ledger{}, codec.ErrInvalidFormat
		}
		var pub txn.PublicUser
		copy(pub[:], pubB)
		l.userIndex[pub] = len(l.users)
		l.users = append(l.users, userBalance{public: pub, balance: bal})
	}
	return l, nil
}

// Partial is a scratch overlay used while replaying a block's transactions
// against a parent Ledger; it only materializes users touched by this
// block. Merging it back into its parent produces the child Ledger.
type Partial struct {
	users      []userBalance
	userIndex  map[txn.PublicUser]int
	nonces     []uint64
	nonceIndex map[uint64]struct{}
}

// NewPartial returns an empty overlay.
func NewPartial() Partial {
	return Partial{userIndex: map[txn.PublicUser]int{}, nonceIndex: map[uint64]struct{}{}}
}

// Contains reports whether nonce has already been spent within this overlay
// (not counting the parent).
func (p Partial) Contains(nonce uint64) bool {
	_, ok := p.nonceIndex[nonce]
	return ok
}

func (p *Partial) setBalance(pub txn.PublicUser, bal amount.Amount) {
	if idx, ok := p.userIndex[pub]; ok {
		p.users[idx].balance = bal
		return
	}
	p.userIndex[pub] = len(p.users)
	p.users = append(p.users, userBalance{public: pub, balance: bal})
}

func (p Partial) balance(pub txn.PublicUser) (amount.Amount, bool) {
	idx, ok := p.userIndex[pub]
	if !ok {
		return amount.Zero(), false
	}
	return p.users[idx].balance, true
}

// ApplyTransaction folds one transaction into the overlay:
//
//  1. reject if the nonce was already spent, in either the parent or this
//     overlay;
//  2. for a non-coinbase sender, resolve its balance (overlay first, then
//     parent; unknown is an error), run Transaction.Verify, then debit it;
//  3. record the nonce as spent;
//  4. credit the receiver, creating it from the parent if needed.
func (p *Partial) ApplyTransaction(parent Ledger, tx txn.Transaction) error {
	if parent.Contains(tx.Content.Nonce) || p.Contains(tx.Content.Nonce) {
		return ErrTransactionWasAlreadyDone
	}

	if !tx.Content.From.IsCoinbase() {
		senderBalance, ok := p.balance(tx.Content.From)
		if !ok {
			senderBalance, ok = parent.Balance(tx.Content.From)
			if !ok {
				return ErrTryingToSendMoneyFromUnknowUser
			}
		}
		if err := tx.Verify(senderBalance); err != nil {
			return err
		}
		p.setBalance(tx.Content.From, amount.Sub(senderBalance, tx.Content.Value))
	} else if err := tx.Verify(amount.Zero()); err != nil {
		return err
	}

	p.nonces = append(p.nonces, tx.Content.Nonce)
	p.nonceIndex[tx.Content.Nonce] = struct{}{}

	receiverBalance, ok := p.balance(tx.Content.To)
	if !ok {
		receiverBalance, _ = parent.Balance(tx.Content.To)
	}
	p.setBalance(tx.Content.To, amount.Add(receiverBalance, tx.Content.Value))
	return nil
}

// ToLedger materializes the child Ledger: the union of nonces (this overlay
// first, then parent-only) and the union of users (this overlay first, then
// parent-only), preserving the overlay's insertion order.
func (p Partial) ToLedger(parent Ledger) Ledger {
	child := New()
	for _, n := range p.nonces {
		child.nonces = append(child.nonces, n)
		child.nonceIndex[n] = struct{}{}
	}
	for _, n := range parent.nonces {
		if _, ok := child.nonceIndex[n]; ok {
			continue
		}
		child.nonces = append(child.nonces, n)
		child.nonceIndex[n] = struct{}{}
	}
	for _, u := range p.users {
		child.userIndex[u.public] = len(child.users)
		child.users = append(child.users, u)
	}
	for _, u := range parent.users {
		if _, ok := child.userIndex[u.public]; ok {
			continue
		}
		child.userIndex[u.public] = len(child.users)
		child.users = append(child.users, u)
	}
	return child
}
