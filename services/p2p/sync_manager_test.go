package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crown-blockchain/crownd/services/blockchain"
	"github.com/crown-blockchain/crownd/settings"
	"github.com/crown-blockchain/crownd/stores/blockchain/memory"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/wire"
)

func newSyncHarness(t *testing.T) (*SyncManager, *Peer, *remote) {
	t.Helper()

	tSettings := settings.NewTestSettings()
	logger := ulogger.NewTestLogger(t)

	store, err := memory.New(logger, tSettings.ChainCfgParams)
	require.NoError(t, err)

	engine, err := blockchain.New(logger, tSettings, store)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	sm := NewSyncManager(logger, tSettings, engine)
	t.Cleanup(sm.Close)

	p, r := newPeerPair(t, MessageListeners{})
	p.Start(context.Background())
	completeHandshake(t, p, r)

	return sm, p, r
}

func TestStartSyncSendsGetHeaders(t *testing.T) {
	sm, p, r := newSyncHarness(t)

	sm.StartSync(context.Background(), p)

	msg := r.readUntil(wire.CmdGetHeaders)
	getHeaders := msg.(*wire.MsgGetHeaders)

	require.NotEmpty(t, getHeaders.BlockLocatorHashes)
	assert.Equal(t, settings.NewTestSettings().ChainCfgParams.GenesisHash, getHeaders.BlockLocatorHashes[0])
	assert.Equal(t, chainhash.Hash{}, getHeaders.HashStop)
}

func TestHandleInvRequestsUnknownBlock(t *testing.T) {
	sm, p, r := newSyncHarness(t)

	var unknown chainhash.Hash
	unknown[0] = 0x42

	inv := wire.NewMsgInv()
	require.NoError(t, inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &unknown)))

	sm.HandleInv(context.Background(), p, inv)

	msg := r.readUntil(wire.CmdGetData)
	getData := msg.(*wire.MsgGetData)
	require.Len(t, getData.InvList, 1)
	assert.Equal(t, unknown, getData.InvList[0].Hash)

	// The shared requested set suppresses a duplicate request.
	assert.True(t, sm.requested.Has(unknown))
	sm.HandleInv(context.Background(), p, inv)
	assert.Equal(t, 1, sm.inFlightFor(p.String()))
}

func TestHandleInvSkipsKnownBlock(t *testing.T) {
	sm, p, _ := newSyncHarness(t)

	genesisHash := settings.NewTestSettings().ChainCfgParams.GenesisHash

	inv := wire.NewMsgInv()
	require.NoError(t, inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, genesisHash)))

	sm.HandleInv(context.Background(), p, inv)
	assert.Equal(t, 0, sm.inFlightFor(p.String()))
}

func TestUnsolicitedBlockBansPeer(t *testing.T) {
	sm, p, _ := newSyncHarness(t)

	params := settings.NewTestSettings().ChainCfgParams
	sm.HandleBlock(context.Background(), p, params.GenesisBlock)

	require.Eventually(t, func() bool {
		return p.State() == StateClosed
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, p.Banned())
}

func TestHandleGetDataServesBlockAndNotFound(t *testing.T) {
	sm, p, r := newSyncHarness(t)

	params := settings.NewTestSettings().ChainCfgParams

	var unknown chainhash.Hash
	unknown[0] = 0x99

	getData := wire.NewMsgGetData()
	require.NoError(t, getData.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, params.GenesisHash)))
	require.NoError(t, getData.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &unknown)))

	go sm.HandleGetData(context.Background(), p, getData)

	block := r.readUntil(wire.CmdBlock).(*wire.MsgBlock)
	assert.Equal(t, *params.GenesisHash, block.BlockHash())

	notFound := r.readUntil(wire.CmdNotFound).(*wire.MsgNotFound)
	require.Len(t, notFound.InvList, 1)
	assert.Equal(t, unknown, notFound.InvList[0].Hash)
}

func TestHandleGetHeadersServesEmptyReplyAtTip(t *testing.T) {
	sm, p, r := newSyncHarness(t)

	params := settings.NewTestSettings().ChainCfgParams

	getHeaders := wire.NewMsgGetHeaders()
	getHeaders.ProtocolVersion = wire.ProtocolVersion
	require.NoError(t, getHeaders.AddBlockLocatorHash(params.GenesisHash))

	go sm.HandleGetHeaders(context.Background(), p, getHeaders)

	headers := r.readUntil(wire.CmdHeaders).(*wire.MsgHeaders)
	assert.Empty(t, headers.Headers)
}

func TestInvFloodDisconnectsPeer(t *testing.T) {
	sm, p, _ := newSyncHarness(t)

	// Shrink the queue bound so the flood is cheap to build.
	sm.settings.P2P.InvQueueSize = 4

	inv := wire.NewMsgInv()
	for i := 0; i < 6; i++ {
		var hash chainhash.Hash
		hash[0] = byte(i + 1)
		require.NoError(t, inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash)))
	}

	sm.HandleInv(context.Background(), p, inv)

	require.Eventually(t, func() bool {
		return p.State() == StateClosed
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, p.Banned())
}
