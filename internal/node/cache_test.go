package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powchain/node/internal/amount"
	"github.com/powchain/node/internal/ledger"
	"github.com/powchain/node/internal/txn"
)

func TestCachePushAdmitsValidTransaction(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)
	bob, err := txn.NewUser()
	require.NoError(t, err)

	coinbase, err := txn.NewCoinbase(alice.AsPublic(), amount.FromInt(10))
	require.NoError(t, err)
	parent := ledger.New()
	p := ledger.NewPartial()
	require.NoError(t, p.ApplyTransaction(parent, coinbase))
	main := p.ToLedger(parent)

	c := NewCache()
	tx := txn.New(alice, bob.AsPublic(), amount.FromInt(1), 99)
	require.NoError(t, c.Push(main, tx))

	pending := c.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Equal(tx))
}

func TestCachePushRejectsDoubleSpendAcrossPushes(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)
	bob, err := txn.NewUser()
	require.NoError(t, err)

	coinbase, err := txn.NewCoinbase(alice.AsPublic(), amount.FromInt(10))
	require.NoError(t, err)
	parent := ledger.New()
	p := ledger.NewPartial()
	require.NoError(t, p.ApplyTransaction(parent, coinbase))
	main := p.ToLedger(parent)

	c := NewCache()
	tx1 := txn.New(alice, bob.AsPublic(), amount.FromInt(10), 1)
	require.NoError(t, c.Push(main, tx1))

	// A fresh nonce that spends the balance tx1 already consumed in the overlay.
	tx2 := txn.New(alice, bob.AsPublic(), amount.FromInt(10), 2)
	assert.Error(t, c.Push(main, tx2))
}

func TestCachePushRejectsAlreadyKnownNonceWithoutTouchingOverlay(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)
	bob, err := txn.NewUser()
	require.NoError(t, err)

	coinbase, err := txn.NewCoinbase(alice.AsPublic(), amount.FromInt(10))
	require.NoError(t, err)
	parent := ledger.New()
	p := ledger.NewPartial()
	require.NoError(t, p.ApplyTransaction(parent, coinbase))
	main := p.ToLedger(parent)

	c := NewCache()
	tx := txn.New(alice, bob.AsPublic(), amount.FromInt(1), 42)
	require.NoError(t, c.Push(main, tx))

	// A second copy of the exact same transaction, as would arrive from a
	// different peer re-gossiping it, is rejected as already known rather
	// than replayed again.
	assert.ErrorIs(t, c.Push(main, tx), ErrTransactionAlreadyKnown)
}

func TestCacheClearResetsOverlayAndPending(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)
	bob, err := txn.NewUser()
	require.NoError(t, err)

	coinbase, err := txn.NewCoinbase(alice.AsPublic(), amount.FromInt(10))
	require.NoError(t, err)
	parent := ledger.New()
	p := ledger.NewPartial()
	require.NoError(t, p.ApplyTransaction(parent, coinbase))
	main := p.ToLedger(parent)

	c := NewCache()
	tx := txn.New(alice, bob.AsPublic(), amount.FromInt(1), 1)
	require.NoError(t, c.Push(main, tx))
	assert.Len(t, c.Pending(), 1)

	c.Clear()
	assert.Len(t, c.Pending(), 0)

	// After Clear, the same nonce is admissible again against the same main
	// ledger since the overlay was reset.
	require.NoError(t, c.Push(main, tx))
}
