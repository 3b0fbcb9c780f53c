package chain

import (
	"math/big"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powchain/node/internal/amount"
	"github.com/powchain/node/internal/block"
	"github.com/powchain/node/internal/codec"
	"github.com/powchain/node/internal/hashutil"
	"github.com/powchain/node/internal/txn"
)

const testMask = hashutil.DifficultyTest

func mineBlock(t *testing.T, content block.Content) block.Block {
	t.Helper()
	for i := int64(0); i < 5_000_000; i++ {
		b := block.Block{Content: content, ProofOfWork: big.NewInt(i)}
		b.Hash = b.ComputeHash()
		if hashutil.CheckDifficulty(b.Hash, testMask) {
			return b
		}
	}
	t.Fatal("failed to mine a test block within budget")
	return block.Block{}
}

func coinbaseContent(t *testing.T, parent block.Block, to txn.PublicUser, idx uint32) block.Content {
	t.Helper()
	tx, err := txn.NewCoinbase(to, amount.FromInt(1))
	require.NoError(t, err)
	return block.Content{
		Index:         idx,
		Timestamp:     big.NewInt(int64(idx) * 1000),
		PrevBlockHash: parent.Hash,
		Transactions:  []txn.Transaction{tx},
	}
}

func TestAddBlockExtendsMainChain(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)

	tree := NewFromNothingness()
	genesis := tree.Blocks[0]

	b1 := mineBlock(t, coinbaseContent(t, genesis, alice.AsPublic(), 1))
	require.NoError(t, tree.AddBlock(b1, testMask))

	assert.Equal(t, 2, tree.MainBranch().Length())
	assert.Equal(t, b1.Hash, tree.TipOf(tree.MainBranch()).Hash)
}

func TestAddBlockRejectsUnknownSender(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)
	mallory, err := txn.NewUser()
	require.NoError(t, err)

	tree := NewFromNothingness()
	genesis := tree.Blocks[0]

	bad := txn.New(mallory, alice.AsPublic(), amount.FromInt(1), 1)
	content := block.Content{
		Index:         1,
		Timestamp:     big.NewInt(1000),
		PrevBlockHash: genesis.Hash,
		Transactions:  []txn.Transaction{bad},
	}
	b := mineBlock(t, content)

	before := spew.Sdump(tree)
	err = tree.AddBlock(b, testMask)
	assert.Error(t, err)
	assert.Equal(t, before, spew.Sdump(tree), "tree must be unchanged when AddBlock fails")
}

func TestAddBlockRejectsEmptyPayload(t *testing.T) {
	tree := NewFromNothingness()
	genesis := tree.Blocks[0]

	content := block.Content{Index: 1, Timestamp: big.NewInt(1000), PrevBlockHash: genesis.Hash}
	b := mineBlock(t, content)

	err := tree.AddBlock(b, testMask)
	assert.ErrorIs(t, err, block.ErrBlockContainsNoTransaction)
}

func TestAddBlockRejectsNonContiguousIndex(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)

	tree := NewFromNothingness()
	genesis := tree.Blocks[0]

	content := coinbaseContent(t, genesis, alice.AsPublic(), 2) // should be 1
	b := mineBlock(t, content)

	err = tree.AddBlock(b, testMask)
	assert.ErrorIs(t, err, ErrBlockIndexAreNotContiguous)
}

func TestAddBlockRejectsUnknownParent(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)

	tree := NewFromNothingness()
	tx, err := txn.NewCoinbase(alice.AsPublic(), amount.FromInt(1))
	require.NoError(t, err)
	content := block.Content{
		Index:         1,
		Timestamp:     big.NewInt(1000),
		PrevBlockHash: hashutil.Sum([]byte("nonexistent")),
		Transactions:  []txn.Transaction{tx},
	}
	b := mineBlock(t, content)

	err = tree.AddBlock(b, testMask)
	assert.ErrorIs(t, err, ErrPreviousBlockNotFound)
}

func TestAddBlockRejectsDuplicate(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)

	tree := NewFromNothingness()
	genesis := tree.Blocks[0]
	b1 := mineBlock(t, coinbaseContent(t, genesis, alice.AsPublic(), 1))
	require.NoError(t, tree.AddBlock(b1, testMask))

	err = tree.AddBlock(b1, testMask)
	assert.ErrorIs(t, err, ErrBlockAlreadyExist)
}

func TestForkAndMainChainSwitchesOnStrictlyLongerBranch(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)
	bob, err := txn.NewUser()
	require.NoError(t, err)

	tree := NewFromNothingness()
	genesis := tree.Blocks[0]

	b1 := mineBlock(t, coinbaseContent(t, genesis, alice.AsPublic(), 1))
	require.NoError(t, tree.AddBlock(b1, testMask))

	// Fork at genesis with a competing block 1.
	fork1 := mineBlock(t, coinbaseContent(t, genesis, bob.AsPublic(), 1))
	require.NoError(t, tree.AddBlock(fork1, testMask))

	// Equal length: main branch must not have switched (strict > tie-break).
	assert.Equal(t, b1.Hash, tree.TipOf(tree.MainBranch()).Hash)
	assert.Len(t, tree.Branches, 2)

	// Extend the fork past the incumbent: main must switch.
	fork2 := mineBlock(t, coinbaseContent(t, fork1, bob.AsPublic(), 2))
	require.NoError(t, tree.AddBlock(fork2, testMask))

	assert.Equal(t, fork2.Hash, tree.TipOf(tree.MainBranch()).Hash)
	assert.Equal(t, 3, tree.MainBranch().Length())
}

func TestChainTreeEncodeDecodeRoundTrip(t *testing.T) {
	alice, err := txn.NewUser()
	require.NoError(t, err)

	tree := NewFromNothingness()
	genesis := tree.Blocks[0]
	b1 := mineBlock(t, coinbaseContent(t, genesis, alice.AsPublic(), 1))
	require.NoError(t, tree.AddBlock(b1, testMask))

	w := codec.NewWriter()
	tree.Encode(w)

	decoded, err := Decode(codec.NewReader(w.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, tree.Main, decoded.Main)
	assert.Equal(t, len(tree.Blocks), len(decoded.Blocks))
	assert.True(t, tree.MainBranch().Ledger.Equal(decoded.MainBranch().Ledger))
	assert.Equal(t, tree.TipOf(tree.MainBranch()).Hash, decoded.TipOf(decoded.MainBranch()).Hash)
}
