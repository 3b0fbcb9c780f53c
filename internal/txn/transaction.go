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

// Package txn implements the signed value-transfer transaction: its content,
// its Ed25519 signature, coinbase construction and self-verification against
// a sender's known balance.
package txn

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/powchain/node/internal/amount"
	"github.com/powchain/node/internal/codec"
)

// Errors returned by Verify. The event loop and ledger observe these and
// silently drop the offending transaction; they are never panics.
var (
	ErrTransactionOf0             = errors.New("txn: value must be positive")
	ErrWrongTransactionSignature  = errors.New("txn: signature does not verify")
	ErrSenderDoNotHaveEnoughMoney = errors.New("txn: sender does not have enough money")
)

// PublicUser is a 32-byte Ed25519 public key. The all-zero key is the
// distinguished coinbase sender.
type PublicUser [ed25519.PublicKeySize]byte

// Coinbase is the all-zero PublicUser denoting the block-reward mint.
var Coinbase PublicUser

// IsCoinbase reports whether u is the coinbase sentinel.
func (u PublicUser) IsCoinbase() bool {
	return u == Coinbase
}

// Bytes returns the raw public key bytes.
func (u PublicUser) Bytes() []byte {
	b := make([]byte, len(u))
	copy(b, u[:])
	return b
}

// User is an Ed25519 keypair. It is never serialized or transmitted.
type User struct {
	Public  PublicUser
	private ed25519.PrivateKey
}

// NewUser generates a fresh random keypair.
func NewUser() (User, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return User{}, err
	}
	var pu PublicUser
	copy(pu[:], pub)
	return User{Public: pu, private: priv}, nil
}

// AsPublic returns the user's public half.
func (u User) AsPublic() PublicUser {
	return u.Public
}

// Content is the signable payload of a transaction.
type Content struct {
	From  PublicUser
	To    PublicUser
	Value amount.Amount
	Nonce uint64
}

// signDomain returns the exact bytes that get Ed25519-signed: from, to,
// nonce, value, in that order. This must match the wire form bit-for-bit,
// since a peer re-derives it to verify the signature.
func (c Content) signDomain() []byte {
	w := codec.NewWriter()
	w.WriteRaw(c.From[:])
	w.WriteRaw(c.To[:])
	w.WriteUint64(c.Nonce)
	w.WriteString(c.Value.String())
	return w.Bytes()
}

// Transaction is a signed Content.
type Transaction struct {
	Content   Content
	Signature [ed25519.SignatureSize]byte
}

// New signs a transfer of value from from to to with the given nonce. nonce
// is a globally unique transaction identifier chosen by the sender, not a
// per-account sequence number.
func New(from User, to PublicUser, value amount.Amount, nonce uint64) Transaction {
	content := Content{From: from.Public, To: to, Value: value, Nonce: nonce}
	sig := ed25519.Sign(from.private, content.signDomain())
	tx := Transaction{Content: content}
	copy(tx.Signature[:], sig)
	return tx
}

// NewCoinbase builds the block-reward transaction: from is the coinbase
// sentinel, signature is all-zero and never checked, and nonce is drawn
// uniformly at random so it can't collide with a real sender's nonce.
func NewCoinbase(to PublicUser, value amount.Amount) (Transaction, error) {
	var nonceBuf [8]byte
	if _, err := rand.Read(nonceBuf[:]); err != nil {
		return Transaction{}, err
	}
	nonce := binary.BigEndian.Uint64(nonceBuf[:])
	return Transaction{
		Content: Content{From: Coinbase, To: to, Value: value, Nonce: nonce},
	}, nil
}

// Verify checks the transaction in isolation given the sender's balance.
// Coinbase transactions skip the signature and balance checks entirely
// (source note: this is the corrected direction — only a real sender's
// transaction is signature/balance-checked).
func (t Transaction) Verify(senderBalance amount.Amount) error {
	if !t.Content.Value.IsPositive() {
		return ErrTransactionOf0
	}
	if t.Content.From.IsCoinbase() {
		return nil
	}
	if !ed25519.Verify(t.Content.From[:], t.Content.signDomain(), t.Signature[:]) {
		return ErrWrongTransactionSignature
	}
	if amount.Cmp(t.Content.Value, senderBalance) > 0 {
		return ErrSenderDoNotHaveEnoughMoney
	}
	return nil
}

// Encode appends the transaction's canonical wire form: signature (64B),
// from (32B), to (32B), nonce (u64 BE), value (length-prefixed string).
func (t Transaction) Encode(w *codec.Writer) {
	w.WriteRaw(t.Signature[:])
	w.WriteRaw(t.Content.From[:])
	w.WriteRaw(t.Content.To[:])
	w.WriteUint64(t.Content.Nonce)
	w.WriteString(t.Content.Value.String())
}

// Decode reads a Transaction in the form written by Encode.
func Decode(r *codec.Reader) (Transaction, error) {
	sig, err := r.ReadRaw(ed25519.SignatureSize)
	if err != nil {
		return Transaction{}, err
	}
	fromB, err := r.ReadRaw(ed25519.PublicKeySize)
	if err != nil {
		return Transaction{}, err
	}
	toB, err := r.ReadRaw(ed25519.PublicKeySize)
	if err != nil {
		return Transaction{}, err
	}
	nonce, err := r.ReadUint64()
	if err != nil {
		return Transaction{}, err
	}
	valueStr, err := r.ReadString()
	if err != nil {
		return Transaction{}, err
	}
	value, err := amount.Parse(valueStr)
	if err != nil {
		return Transaction{}, codec.ErrInvalidFormat
	}
	var tx Transaction
	copy(tx.Signature[:], sig)
	copy(tx.Content.From[:], fromB)
	copy(tx.Content.To[:], toB)
	tx.Content.Nonce = nonce
	tx.Content.Value = value
	return tx, nil
}

// Equal reports whether t and o are structurally identical.
func (t Transaction) Equal(o Transaction) bool {
	return t.Content.From == o.Content.From &&
		t.Content.To == o.Content.To &&
		t.Content.Nonce == o.Content.Nonce &&
		amount.Cmp(t.Content.Value, o.Content.Value) == 0 &&
		t.Signature == o.Signature
}
