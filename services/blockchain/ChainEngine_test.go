package blockchain

import (
	"context"
	"testing"
	"time"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crown-blockchain/crownd/chaincfg"
	"github.com/crown-blockchain/crownd/coin"
	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/script"
	"github.com/crown-blockchain/crownd/settings"
	"github.com/crown-blockchain/crownd/stores/blockchain/memory"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/util"
	"github.com/crown-blockchain/crownd/wire"
)

// anyoneCanSpend is the output script used by test blocks.
var anyoneCanSpend = []byte{script.OP_TRUE}

// harness drives a chain engine over a fresh in-memory store with
// hand-mined regtest blocks.
type harness struct {
	t      *testing.T
	ctx    context.Context
	engine *ChainEngine
	store  *memory.Memory
	params *chaincfg.Params

	// baseTime anchors block timestamps safely in the past.
	baseTime int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	tSettings := settings.NewTestSettings()
	logger := ulogger.NewTestLogger(t)

	store, err := memory.New(logger, tSettings.ChainCfgParams)
	require.NoError(t, err)

	engine, err := New(logger, tSettings, store)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &harness{
		t:        t,
		ctx:      context.Background(),
		engine:   engine,
		store:    store,
		params:   tSettings.ChainCfgParams,
		baseTime: time.Now().Add(-24 * time.Hour).Unix(),
	}
}

// coinbaseTx builds a unique coinbase for the given height paying the
// subsidy plus fees to an anyone-can-spend output. tag keeps coinbases on
// competing branches distinct.
func (h *harness) coinbaseTx(height uint32, tag byte, fees coin.Coin) *wire.MsgTx {
	value, err := util.CalcBlockSubsidy(height, h.params).Add(fees)
	require.NoError(h.t, err)

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		[]byte{byte(height), byte(height >> 8), tag},
		nil,
	))
	tx.AddTxOut(wire.NewTxOut(int64(value), anyoneCanSpend))

	return tx
}

// mineBlock assembles and solves a block on top of the given parent. The
// extra transactions must already pay their fees to the coinbase value
// passed in fees.
func (h *harness) mineBlock(parentHash *chainhash.Hash, parentHeight uint32, tag byte, fees coin.Coin, txs ...*wire.MsgTx) *model.Block {
	h.t.Helper()

	height := parentHeight + 1

	transactions := append([]*wire.MsgTx{h.coinbaseTx(height, tag, fees)}, txs...)

	header := &wire.BlockHeader{
		Version:    1,
		PrevBlock:  *parentHash,
		MerkleRoot: model.CalcMerkleRoot(transactions),
		Timestamp:  uint32(h.baseTime + int64(height)*600 + int64(tag)),
		Bits:       h.params.PowLimitBits,
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
	for _, tx := range transactions {
		msgBlock.AddTransaction(tx)
	}

	return model.NewBlock(msgBlock)
}

// extendChain mines and connects n blocks on top of the current tip and
// returns the final tip block.
func (h *harness) extendChain(n int, tag byte) *model.Block {
	h.t.Helper()

	var last *model.Block
	for i := 0; i < n; i++ {
		header, meta, err := h.engine.BestHeader(h.ctx)
		require.NoError(h.t, err)

		hash := header.BlockHash()
		last = h.mineBlock(&hash, meta.Height, tag, 0)

		result, err := h.engine.AddBlock(h.ctx, last)
		require.NoError(h.t, err)
		require.Equal(h.t, NewBest, result)
	}

	return last
}

// spendTx spends the given outpoint to an anyone-can-spend output,
// leaving fee satoshis to the miner.
func spendTx(prevOut wire.OutPoint, value, fee coin.Coin) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(&prevOut, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(value-fee), anyoneCanSpend))

	return tx
}

func coinbaseOutPoint(block *model.Block) wire.OutPoint {
	return wire.OutPoint{Hash: block.Transactions()[0].TxHash(), Index: 0}
}

func TestGenesisOnly(t *testing.T) {
	h := newHarness(t)

	header, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, uint32(0), meta.Height)
	assert.Equal(t, *h.params.GenesisHash, header.BlockHash())

	// The UTXO set holds exactly the genesis coinbase.
	genesisCoinbase := h.params.GenesisBlock.Transactions[0].TxHash()
	entry, err := h.store.GetUTXO(h.ctx, wire.OutPoint{Hash: genesisCoinbase, Index: 0})
	require.NoError(t, err)
	assert.True(t, entry.Coinbase)
}

func TestLinearExtension(t *testing.T) {
	h := newHarness(t)

	notifications, cancel := h.engine.Subscribe(64)
	defer cancel()

	b1 := h.extendChain(1, 0)
	b2 := h.extendChain(1, 0)

	_, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), meta.Height)

	// Two NewBestBlock events in order.
	var bestBlocks []chainhash.Hash
	for len(bestBlocks) < 2 {
		n := <-notifications
		if n.Type == NotificationNewBestBlock {
			bestBlocks = append(bestBlocks, n.Hash)
		}
	}

	assert.Equal(t, *b1.Hash(), bestBlocks[0])
	assert.Equal(t, *b2.Hash(), bestBlocks[1])

	// The subsidy of B1 is unspendable before 100 confirmations.
	spend := spendTx(coinbaseOutPoint(b1), 50*coin.OneCoin, 0)

	header, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	tipHash := header.BlockHash()

	bad := h.mineBlock(&tipHash, meta.Height, 0, 0, spend)
	_, err = h.engine.AddBlock(h.ctx, bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrImmatureCoinbase))
}

func TestMatureCoinbaseSpendAndFees(t *testing.T) {
	h := newHarness(t)

	b1 := h.extendChain(1, 0)
	h.extendChain(int(h.params.CoinbaseMaturity), 0)

	// Spend B1's subsidy with a 1000 satoshi fee; the coinbase claims it.
	const fee = coin.Coin(1000)
	spend := spendTx(coinbaseOutPoint(b1), 50*coin.OneCoin, fee)

	header, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	tipHash := header.BlockHash()

	block := h.mineBlock(&tipHash, meta.Height, 0, fee, spend)

	result, err := h.engine.AddBlock(h.ctx, block)
	require.NoError(t, err)
	assert.Equal(t, NewBest, result)

	// The spent coinbase output is gone; the spend's output exists.
	exists, err := h.store.HasUTXO(h.ctx, coinbaseOutPoint(b1))
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = h.store.HasUTXO(h.ctx, wire.OutPoint{Hash: spend.TxHash(), Index: 0})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGreedyCoinbaseRejected(t *testing.T) {
	h := newHarness(t)

	header, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	tipHash := header.BlockHash()

	// A coinbase claiming one satoshi more than the subsidy.
	block := h.mineBlock(&tipHash, meta.Height, 0, coin.Satoshi)

	_, err = h.engine.AddBlock(h.ctx, block)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValueOutOfRange))
}

func TestOrphanThenConnect(t *testing.T) {
	h := newHarness(t)

	notifications, cancel := h.engine.Subscribe(64)
	defer cancel()

	genesisHash := *h.params.GenesisHash
	b1 := h.mineBlock(&genesisHash, 0, 0, 0)
	b1Hash := *b1.Hash()
	b2 := h.mineBlock(&b1Hash, 1, 0, 0)

	// B2 first: orphan.
	result, err := h.engine.AddBlock(h.ctx, b2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockOrphan))
	assert.Equal(t, Unchanged, result)

	// B1 connects, and the buffered B2 follows automatically.
	result, err = h.engine.AddBlock(h.ctx, b1)
	require.NoError(t, err)
	assert.Equal(t, NewBest, result)

	_, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), meta.Height)

	// Exactly one NewBestBlock per block, in order.
	var bestBlocks []chainhash.Hash
	for len(bestBlocks) < 2 {
		n := <-notifications
		if n.Type == NotificationNewBestBlock {
			bestBlocks = append(bestBlocks, n.Hash)
		}
	}
	assert.Equal(t, b1Hash, bestBlocks[0])
	assert.Equal(t, *b2.Hash(), bestBlocks[1])

	select {
	case n := <-notifications:
		assert.NotEqual(t, NotificationNewBestBlock, n.Type, "unexpected extra NewBestBlock")
	default:
	}
}

func TestSideChainNoReorg(t *testing.T) {
	h := newHarness(t)

	b1 := h.extendChain(1, 0)
	b2 := h.extendChain(1, 0)

	notifications, cancel := h.engine.Subscribe(64)
	defer cancel()

	// B2' forks off B1 with the same height and work as B2.
	b1Hash := *b1.Hash()
	b2prime := h.mineBlock(&b1Hash, 1, 1, 0)

	result, err := h.engine.AddBlock(h.ctx, b2prime)
	require.NoError(t, err)
	assert.Equal(t, SideChainAdded, result)

	// The head is unchanged: first-seen branch wins on equal work.
	header, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, *b2.Hash(), header.BlockHash())
	assert.Equal(t, uint32(2), meta.Height)

	// No chain-level events fire for a side-chain block.
	for {
		select {
		case n := <-notifications:
			assert.NotEqual(t, NotificationNewBestBlock, n.Type)
			assert.NotEqual(t, NotificationReorganize, n.Type)
			continue
		default:
		}
		break
	}

	// Feeding the same block again is a no-op.
	result, err = h.engine.AddBlock(h.ctx, b2prime)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, result)
}

func TestReorganize(t *testing.T) {
	h := newHarness(t)

	b1 := h.extendChain(1, 0)
	b2 := h.extendChain(1, 0)

	// Side branch: B2' on B1.
	b1Hash := *b1.Hash()
	b2prime := h.mineBlock(&b1Hash, 1, 1, 0)

	result, err := h.engine.AddBlock(h.ctx, b2prime)
	require.NoError(t, err)
	require.Equal(t, SideChainAdded, result)

	notifications, cancel := h.engine.Subscribe(64)
	defer cancel()

	// B3' extends the side branch past the tip's work.
	b2primeHash := *b2prime.Hash()
	b3prime := h.mineBlock(&b2primeHash, 2, 1, 0)

	result, err = h.engine.AddBlock(h.ctx, b3prime)
	require.NoError(t, err)
	assert.Equal(t, NewBest, result)

	header, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, *b3prime.Hash(), header.BlockHash())
	assert.Equal(t, uint32(3), meta.Height)

	// A single Reorganize event and no per-block NewBestBlock events.
	var reorg *ReorgEvent
	for reorg == nil {
		n := <-notifications
		require.NotEqual(t, NotificationNewBestBlock, n.Type, "reorg must not fire per-block NewBestBlock")
		if n.Type == NotificationReorganize {
			reorg = n.Reorg
		}
	}

	assert.Equal(t, *b2.Hash(), reorg.OldTip)
	assert.Equal(t, *b3prime.Hash(), reorg.NewTip)

	require.Len(t, reorg.Disconnected, 1)
	assert.Equal(t, *b2.Hash(), *reorg.Disconnected[0].Hash())

	require.Len(t, reorg.Connected, 2)
	assert.Equal(t, *b2prime.Hash(), *reorg.Connected[0].Hash())
	assert.Equal(t, *b3prime.Hash(), *reorg.Connected[1].Hash())

	// The UTXO set matches a replay along B1 -> B2' -> B3': the old
	// branch's coinbase is gone, the new branch's coinbases exist.
	exists, err := h.store.HasUTXO(h.ctx, coinbaseOutPoint(b2))
	require.NoError(t, err)
	assert.False(t, exists)

	for _, blk := range []*model.Block{b1, b2prime, b3prime} {
		exists, err = h.store.HasUTXO(h.ctx, coinbaseOutPoint(blk))
		require.NoError(t, err)
		assert.True(t, exists, "coinbase of %s missing after reorg", blk.Hash())
	}
}

func TestDoubleSpendRejected(t *testing.T) {
	h := newHarness(t)

	b1 := h.extendChain(1, 0)
	h.extendChain(int(h.params.CoinbaseMaturity), 0)

	// Two transactions spending the same mature coinbase output.
	spendA := spendTx(coinbaseOutPoint(b1), 50*coin.OneCoin, 0)
	spendB := spendTx(coinbaseOutPoint(b1), 50*coin.OneCoin, coin.Satoshi)

	header, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	tipHash := header.BlockHash()

	block := h.mineBlock(&tipHash, meta.Height, 0, coin.Satoshi, spendA, spendB)

	_, err = h.engine.AddBlock(h.ctx, block)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDoubleSpend))

	// The store is unchanged: same tip, the contested output unspent, the
	// rejected block unknown.
	newHeader, newMeta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, header.BlockHash(), newHeader.BlockHash())
	assert.Equal(t, meta.Height, newMeta.Height)

	exists, err := h.store.HasUTXO(h.ctx, coinbaseOutPoint(b1))
	require.NoError(t, err)
	assert.True(t, exists)

	known, err := h.engine.HasBlock(h.ctx, block.Hash())
	require.NoError(t, err)
	assert.False(t, known)
}

func TestDuplicateCoinbaseRejected(t *testing.T) {
	h := newHarness(t)

	b1 := h.extendChain(1, 0)

	// A second block reusing B1's coinbase byte for byte produces the
	// same txid while B1's outputs are still unspent.
	dupCoinbase := b1.Transactions()[0]

	header := &wire.BlockHeader{
		Version:    1,
		PrevBlock:  *b1.Hash(),
		MerkleRoot: model.CalcMerkleRoot([]*wire.MsgTx{dupCoinbase}),
		Timestamp:  uint32(h.baseTime + 2*600),
		Bits:       h.params.PowLimitBits,
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
	msgBlock.AddTransaction(dupCoinbase)
	block := model.NewBlock(msgBlock)

	result, err := h.engine.AddBlock(h.ctx, block)
	require.Error(t, err)
	assert.Equal(t, Unchanged, result)
	assert.True(t, errors.Is(err, errors.ErrTxDuplicate))

	// The earlier coinbase output survives, the tip did not move, and
	// the rejected block was never persisted.
	exists, err := h.store.HasUTXO(h.ctx, coinbaseOutPoint(b1))
	require.NoError(t, err)
	assert.True(t, exists)

	tipHeader, tipMeta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, *b1.Hash(), tipHeader.BlockHash())
	assert.Equal(t, uint32(1), tipMeta.Height)

	known, err := h.engine.HasBlock(h.ctx, block.Hash())
	require.NoError(t, err)
	assert.False(t, known)
}

func TestFailedReorgRestoresOldBranch(t *testing.T) {
	h := newHarness(t)

	b1 := h.extendChain(1, 0)
	b2 := h.extendChain(1, 0)

	// Side branch whose second block spends an immature coinbase: B2' is
	// fine, B3' is invalid.
	b1Hash := *b1.Hash()
	b2prime := h.mineBlock(&b1Hash, 1, 1, 0)

	_, err := h.engine.AddBlock(h.ctx, b2prime)
	require.NoError(t, err)

	badSpend := spendTx(coinbaseOutPoint(b2prime), 50*coin.OneCoin, 0)
	b2primeHash := *b2prime.Hash()
	b3prime := h.mineBlock(&b2primeHash, 2, 1, 0, badSpend)

	result, err := h.engine.AddBlock(h.ctx, b3prime)
	require.Error(t, err)
	assert.Equal(t, Unchanged, result)
	assert.True(t, errors.Is(err, errors.ErrImmatureCoinbase))

	// The old branch is fully restored.
	header, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, *b2.Hash(), header.BlockHash())
	assert.Equal(t, uint32(2), meta.Height)

	exists, err := h.store.HasUTXO(h.ctx, coinbaseOutPoint(b2))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBadDifficultyRejected(t *testing.T) {
	h := newHarness(t)

	genesisHash := *h.params.GenesisHash
	block := h.mineBlock(&genesisHash, 0, 0, 0)

	// Claim an easier-than-allowed target. Sanity passes against the
	// claimed bits, the contextual check catches the mismatch.
	block.MsgBlock().Header.Bits = 0x207ffffe

	target := model.NBit(block.Header().Bits).CalculateTarget()
	for nonce := uint32(0); ; nonce++ {
		block.MsgBlock().Header.Nonce = nonce
		hash := block.MsgBlock().Header.BlockHash()
		if model.HashToBig(&hash).Cmp(target) <= 0 {
			break
		}
	}

	fresh := model.NewBlock(block.MsgBlock())

	_, err := h.engine.AddBlock(h.ctx, fresh)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockBadDifficulty))
}

func TestBadTimestampRejected(t *testing.T) {
	h := newHarness(t)

	h.extendChain(11, 0)

	header, meta, err := h.engine.BestHeader(h.ctx)
	require.NoError(t, err)
	tipHash := header.BlockHash()

	block := h.mineBlock(&tipHash, meta.Height, 0, 0)

	// Rewind the timestamp below the median of the last eleven blocks.
	block.MsgBlock().Header.Timestamp = uint32(h.baseTime)

	target := model.NBit(block.Header().Bits).CalculateTarget()
	for nonce := uint32(0); ; nonce++ {
		block.MsgBlock().Header.Nonce = nonce
		hash := block.MsgBlock().Header.BlockHash()
		if model.HashToBig(&hash).Cmp(target) <= 0 {
			break
		}
	}

	fresh := model.NewBlock(block.MsgBlock())

	_, err = h.engine.AddBlock(h.ctx, fresh)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockBadTimestamp))
}

func TestReorgTooDeepRefused(t *testing.T) {
	h := newHarness(t)

	tSettings := settings.NewTestSettings()
	reorgWindow := int(tSettings.Chain.MaximumReorgBlockCount)

	// Main chain longer than the undo window.
	h.extendChain(reorgWindow+2, 0)

	// A competing branch from genesis that would out-work the main chain
	// requires detaching more blocks than the window allows.
	parentHash := *h.params.GenesisHash
	parentHeight := uint32(0)

	var err error
	for i := 0; i < reorgWindow+4; i++ {
		blk := h.mineBlock(&parentHash, parentHeight, 2, 0)

		_, err = h.engine.AddBlock(h.ctx, blk)
		if err != nil {
			break
		}

		parentHash = *blk.Hash()
		parentHeight++
	}

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrReorgTooDeep))
}
