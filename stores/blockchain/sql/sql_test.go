package sql

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crown-blockchain/crownd/chaincfg"
	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/util"
	"github.com/crown-blockchain/crownd/wire"
)

func newSQLStore(t *testing.T) *SQL {
	t.Helper()

	storeURL, err := url.Parse("sqlitememory:///" + t.Name())
	require.NoError(t, err)

	store, err := New(ulogger.NewTestLogger(t), storeURL, t.TempDir(), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func solvedChildBlock(t *testing.T, parentHash *chainhash.Hash, parentHeight uint32) *model.Block {
	t.Helper()

	coinbase := wire.NewMsgTx(1)
	coinbase.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		[]byte{byte(parentHeight + 1), 0x01}, nil))
	coinbase.AddTxOut(wire.NewTxOut(5000000000, []byte{0x51}))

	header := &wire.BlockHeader{
		Version:    1,
		PrevBlock:  *parentHash,
		MerkleRoot: model.CalcMerkleRoot([]*wire.MsgTx{coinbase}),
		Timestamp:  uint32(time.Now().Unix()),
		Bits:       chaincfg.RegressionNetParams.PowLimitBits,
	}

	target := model.NBit(header.Bits).CalculateTarget()
	for nonce := uint32(0); ; nonce++ {
		header.Nonce = nonce
		hash := header.BlockHash()
		if model.HashToBig(&hash).Cmp(target) <= 0 {
			break
		}
	}

	msgBlock := wire.NewMsgBlock(header)
	msgBlock.AddTransaction(coinbase)

	block := model.NewBlock(msgBlock)
	block.SetHeight(int32(parentHeight + 1))

	return block
}

func TestSQLStoreStartsAtGenesis(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	header, meta, err := store.GetChainHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), meta.Height)
	assert.Equal(t, *chaincfg.RegressionNetParams.GenesisHash, header.BlockHash())

	coinbaseHash := chaincfg.RegressionNetParams.GenesisBlock.Transactions[0].TxHash()
	entry, err := store.GetUTXO(ctx, wire.OutPoint{Hash: coinbaseHash, Index: 0})
	require.NoError(t, err)
	assert.True(t, entry.Coinbase)
}

func TestSQLStoreApplyRevertRoundTrip(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	genesisHash := chaincfg.RegressionNetParams.GenesisHash
	block := solvedChildBlock(t, genesisHash, 0)

	meta := &model.BlockHeaderMeta{
		Height:      1,
		ChainWork:   util.CalcBlockWork(block.Header().Bits),
		TxCount:     1,
		SizeInBytes: uint64(block.SerializeSize()),
	}

	require.NoError(t, store.PutHeader(ctx, block.Header(), meta))
	require.NoError(t, store.PutBlock(ctx, block))
	require.NoError(t, store.ApplyBlock(ctx, block, &model.UndoBlock{}))

	// Duplicate header rejected.
	err := store.PutHeader(ctx, block.Header(), meta)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockExists))

	// Head moved, coinbase output exists, stored block round-trips.
	_, headMeta, err := store.GetChainHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), headMeta.Height)

	outpoint := wire.OutPoint{Hash: block.Transactions()[0].TxHash(), Index: 0}
	exists, err := store.HasUTXO(ctx, outpoint)
	require.NoError(t, err)
	assert.True(t, exists)

	stored, err := store.GetBlock(ctx, block.Hash())
	require.NoError(t, err)
	assert.Equal(t, *block.Hash(), *stored.Hash())
	assert.Equal(t, int32(1), stored.Height())

	// Revert restores the genesis-only state.
	_, err = store.RevertBlock(ctx, block)
	require.NoError(t, err)

	_, headMeta, err = store.GetChainHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), headMeta.Height)

	exists, err = store.HasUTXO(ctx, outpoint)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.RevertBlock(ctx, block)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUndoMissing))
}

func TestSQLStoreApplyMissingUTXOIsAtomic(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	genesisHash := chaincfg.RegressionNetParams.GenesisHash
	block := solvedChildBlock(t, genesisHash, 0)

	var fakeHash chainhash.Hash
	fakeHash[0] = 0xaa

	bogus := wire.NewMsgTx(1)
	bogus.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&fakeHash, 0), nil, nil))
	bogus.AddTxOut(wire.NewTxOut(1, []byte{0x51}))
	block.MsgBlock().AddTransaction(bogus)

	meta := &model.BlockHeaderMeta{Height: 1, ChainWork: util.CalcBlockWork(block.Header().Bits)}
	require.NoError(t, store.PutHeader(ctx, block.Header(), meta))

	err := store.ApplyBlock(ctx, block, &model.UndoBlock{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingUTXO))

	// Nothing leaked: the head did not move and the coinbase output of
	// the failed block does not exist.
	_, headMeta, err := store.GetChainHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), headMeta.Height)

	exists, err := store.HasUTXO(ctx, wire.OutPoint{Hash: block.Transactions()[0].TxHash(), Index: 0})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLStoreLocateHeaders(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	parentHash := chaincfg.RegressionNetParams.GenesisHash
	work := util.CalcBlockWork(chaincfg.RegressionNetParams.GenesisBlock.Header.Bits)

	blocks := make([]*model.Block, 0, 3)
	for i := 0; i < 3; i++ {
		block := solvedChildBlock(t, parentHash, uint32(i))
		work = util.AddWork(work, block.Header().Bits)

		meta := &model.BlockHeaderMeta{
			Height:    uint32(i + 1),
			ChainWork: work,
			TxCount:   1,
		}

		require.NoError(t, store.PutHeader(ctx, block.Header(), meta))
		require.NoError(t, store.PutBlock(ctx, block))
		require.NoError(t, store.ApplyBlock(ctx, block, &model.UndoBlock{}))

		blocks = append(blocks, block)
		parentHash = block.Hash()
	}

	locator, err := store.GetBlockLocator(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, locator)
	assert.Equal(t, blocks[2].Hash(), locator[0])

	headers, err := store.LocateHeaders(ctx, wire.BlockLocator{blocks[0].Hash()}, nil, 2000)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, *blocks[1].Hash(), headers[0].BlockHash())
	assert.Equal(t, *blocks[2].Hash(), headers[1].BlockHash())
}
