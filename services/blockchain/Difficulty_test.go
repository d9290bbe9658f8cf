package blockchain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crown-blockchain/crownd/chaincfg"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/stores/blockchain/memory"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/util"
	"github.com/crown-blockchain/crownd/wire"
)

func TestCalcNextWorkRequiredRegtest(t *testing.T) {
	params := &chaincfg.RegressionNetParams

	store, err := memory.New(ulogger.NewTestLogger(t), params)
	require.NoError(t, err)

	d := NewDifficulty(store, ulogger.NewTestLogger(t), params)

	header, meta, err := store.GetChainHead(context.Background())
	require.NoError(t, err)

	bits, err := d.CalcNextWorkRequired(context.Background(), header, meta, time.Now())
	require.NoError(t, err)
	assert.Equal(t, params.PowLimitBits, bits)
}

func TestCalcNextWorkRequiredBetweenRetargets(t *testing.T) {
	// Mainnet-style parameters over a regtest store: off retarget
	// boundaries the difficulty carries over from the parent.
	params := chaincfg.MainNetParams
	params.GenesisBlock = chaincfg.RegressionNetParams.GenesisBlock
	params.GenesisHash = chaincfg.RegressionNetParams.GenesisHash

	store, err := memory.New(ulogger.NewTestLogger(t), &params)
	require.NoError(t, err)

	d := NewDifficulty(store, ulogger.NewTestLogger(t), &params)
	assert.Equal(t, uint32(2016), d.blocksPerRetarget)

	parentHeader := &wire.BlockHeader{Bits: 0x1c0ae493, Timestamp: 1600000000}
	parentMeta := &model.BlockHeaderMeta{Height: 100, ChainWork: util.CalcBlockWork(parentHeader.Bits)}

	bits, err := d.CalcNextWorkRequired(context.Background(), parentHeader, parentMeta, time.Unix(1600000600, 0))
	require.NoError(t, err)
	assert.Equal(t, parentHeader.Bits, bits)
}

func TestCalcNextWorkRequiredRetargetClamps(t *testing.T) {
	params := chaincfg.MainNetParams
	params.GenesisBlock = chaincfg.RegressionNetParams.GenesisBlock
	params.GenesisHash = chaincfg.RegressionNetParams.GenesisHash

	store, err := memory.New(ulogger.NewTestLogger(t), &params)
	require.NoError(t, err)

	d := NewDifficulty(store, ulogger.NewTestLogger(t), &params)

	// Build a 2016-header window with a timespan far shorter than the
	// two-week target, so the retarget clamps at a factor of four.
	baseBits := uint32(0x1c0ae493)
	baseTime := params.GenesisBlock.Header.Timestamp

	prevHash := *params.GenesisHash
	work := util.CalcBlockWork(params.GenesisBlock.Header.Bits)

	var lastHeader *wire.BlockHeader
	var lastMeta *model.BlockHeaderMeta

	for height := uint32(1); height <= 2015; height++ {
		header := &wire.BlockHeader{
			Version:   1,
			PrevBlock: prevHash,
			Timestamp: baseTime + height, // one second apart
			Bits:      baseBits,
		}

		work = util.AddWork(work, baseBits)
		meta := &model.BlockHeaderMeta{Height: height, ChainWork: work}

		require.NoError(t, store.PutHeader(context.Background(), header, meta))

		prevHash = header.BlockHash()
		lastHeader = header
		lastMeta = meta
	}

	bits, err := d.CalcNextWorkRequired(context.Background(), lastHeader, lastMeta, time.Now())
	require.NoError(t, err)

	oldTarget := model.NBit(baseBits).CalculateTarget()
	newTarget := model.NBit(bits).CalculateTarget()

	// The new target is a quarter of the old one (modulo compact-form
	// rounding), never less: the adjustment clamps at a factor of four.
	quarter := oldTarget.Div(oldTarget, newTarget)
	assert.Equal(t, int64(4), quarter.Int64())
}
