package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powchain/node/internal/amount"
	"github.com/powchain/node/internal/codec"
	"github.com/powchain/node/internal/txn"
)

func mustUser(t *testing.T) txn.User {
	t.Helper()
	u, err := txn.NewUser()
	require.NoError(t, err)
	return u
}

func TestApplyTransactionCoinbaseCreatesBalance(t *testing.T) {
	alice := mustUser(t)
	tx, err := txn.NewCoinbase(alice.AsPublic(), amount.FromInt(50))
	require.NoError(t, err)

	parent := New()
	p := NewPartial()
	require.NoError(t, p.ApplyTransaction(parent, tx))

	child := p.ToLedger(parent)
	bal, ok := child.Balance(alice.AsPublic())
	require.True(t, ok)
	assert.Equal(t, 0, amount.Cmp(bal, amount.FromInt(50)))
	assert.True(t, child.Contains(tx.Content.Nonce))
}

func TestApplyTransactionDebitsSenderCreditsReceiver(t *testing.T) {
	alice := mustUser(t)
	bob := mustUser(t)

	coinbase, err := txn.NewCoinbase(alice.AsPublic(), amount.FromInt(100))
	require.NoError(t, err)

	parent := New()
	p := NewPartial()
	require.NoError(t, p.ApplyTransaction(parent, coinbase))
	genesisLedger := p.ToLedger(parent)

	transfer := txn.New(alice, bob.AsPublic(), amount.FromInt(30), 1)
	p2 := NewPartial()
	require.NoError(t, p2.ApplyTransaction(genesisLedger, transfer))
	next := p2.ToLedger(genesisLedger)

	aliceBal, _ := next.Balance(alice.AsPublic())
	bobBal, _ := next.Balance(bob.AsPublic())
	assert.Equal(t, 0, amount.Cmp(aliceBal, amount.FromInt(70)))
	assert.Equal(t, 0, amount.Cmp(bobBal, amount.FromInt(30)))
}

func TestApplyTransactionRejectsDoubleSpendNonce(t *testing.T) {
	alice := mustUser(t)
	bob := mustUser(t)

	coinbase, err := txn.NewCoinbase(alice.AsPublic(), amount.FromInt(100))
	require.NoError(t, err)
	parent := New()
	p := NewPartial()
	require.NoError(t, p.ApplyTransaction(parent, coinbase))
	base := p.ToLedger(parent)

	transfer := txn.New(alice, bob.AsPublic(), amount.FromInt(10), 5)
	overlay := NewPartial()
	require.NoError(t, overlay.ApplyTransaction(base, transfer))

	replay := txn.New(alice, bob.AsPublic(), amount.FromInt(20), 5)
	// Same nonce reused: rejected even though the content differs.
	assert.ErrorIs(t, overlay.ApplyTransaction(base, replay), ErrTransactionWasAlreadyDone)
}

func TestApplyTransactionRejectsUnknownSender(t *testing.T) {
	alice := mustUser(t)
	bob := mustUser(t)

	tx := txn.New(alice, bob.AsPublic(), amount.FromInt(1), 1)
	overlay := NewPartial()
	assert.ErrorIs(t, overlay.ApplyTransaction(New(), tx), ErrTryingToSendMoneyFromUnknowUser)
}

func TestApplyTransactionRejectsInsufficientBalance(t *testing.T) {
	alice := mustUser(t)
	bob := mustUser(t)

	coinbase, err := txn.NewCoinbase(alice.AsPublic(), amount.FromInt(5))
	require.NoError(t, err)
	parent := New()
	p := NewPartial()
	require.NoError(t, p.ApplyTransaction(parent, coinbase))
	base := p.ToLedger(parent)

	overspend := txn.New(alice, bob.AsPublic(), amount.FromInt(10), 2)
	overlay := NewPartial()
	assert.ErrorIs(t, overlay.ApplyTransaction(base, overspend), txn.ErrSenderDoNotHaveEnoughMoney)
}

func TestLedgerEncodeDecodeRoundTrip(t *testing.T) {
	alice := mustUser(t)
	coinbase, err := txn.NewCoinbase(alice.AsPublic(), amount.FromFraction(7, 2))
	require.NoError(t, err)

	parent := New()
	p := NewPartial()
	require.NoError(t, p.ApplyTransaction(parent, coinbase))
	l := p.ToLedger(parent)

	w := codec.NewWriter()
	l.Encode(w)
	decoded, err := Decode(codec.NewReader(w.Bytes()))
	require.NoError(t, err)
	assert.True(t, l.Equal(decoded))
}
