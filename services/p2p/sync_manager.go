package p2p

import (
	"context"

	"github.com/jellydator/ttlcache/v3"
	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/services/blockchain"
	"github.com/crown-blockchain/crownd/settings"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/wire"
)

// retryFunc re-issues a block download with a different peer after the
// original request timed out.
type retryFunc func(hash chainhash.Hash, excludePeer string)

// SyncManager drives the header/block download protocol against the chain
// engine. Delivery into the engine is serialized by the engine's own
// lock; the manager's job is deciding what to request from whom and
// reacting to what arrives.
type SyncManager struct {
	logger   ulogger.Logger
	settings *settings.Settings
	engine   *blockchain.ChainEngine

	// requested is the shared in-flight block download set, keyed by
	// block hash with the requesting peer as value. Entries expire after
	// the download timeout, triggering a retry with a different peer.
	requested *ttlcache.Cache[chainhash.Hash, string]

	retry retryFunc
}

// NewSyncManager builds the download driver shared by all peer sessions.
func NewSyncManager(logger ulogger.Logger, tSettings *settings.Settings, engine *blockchain.ChainEngine) *SyncManager {
	sm := &SyncManager{
		logger:   logger,
		settings: tSettings,
		engine:   engine,
		requested: ttlcache.New[chainhash.Hash, string](
			ttlcache.WithTTL[chainhash.Hash, string](tSettings.P2P.BlockDownloadTimeout),
		),
	}

	sm.requested.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[chainhash.Hash, string]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}

		sm.logger.Warnf("block %s not delivered by %s within %s, retrying elsewhere",
			item.Key(), item.Value(), tSettings.P2P.BlockDownloadTimeout)
		prometheusBlockDownloadTimeouts.Inc()

		if sm.retry != nil {
			sm.retry(item.Key(), item.Value())
		}
	})

	go sm.requested.Start()

	return sm
}

// SetRetry installs the callback used to re-request timed out downloads.
func (sm *SyncManager) SetRetry(retry retryFunc) {
	sm.retry = retry
}

// Close stops the requested-set expiry loop.
func (sm *SyncManager) Close() {
	sm.requested.Stop()
}

// StartSync kicks off header synchronisation with the given peer: it
// sends a getheaders anchored at our chain head with a zero stop hash.
func (sm *SyncManager) StartSync(ctx context.Context, p *Peer) {
	locator, err := sm.engine.GetBlockLocator(ctx)
	if err != nil {
		sm.logger.Errorf("failed to build block locator: %v", err)
		return
	}

	msg := wire.NewMsgGetHeaders()
	msg.ProtocolVersion = wire.ProtocolVersion
	for _, hash := range locator {
		if err := msg.AddBlockLocatorHash(hash); err != nil {
			break
		}
	}

	p.QueueMessage(msg)
}

// inFlightFor counts the outstanding downloads assigned to one peer.
func (sm *SyncManager) inFlightFor(peer string) int {
	count := 0
	sm.requested.Range(func(item *ttlcache.Item[chainhash.Hash, string]) bool {
		if item.Value() == peer {
			count++
		}
		return true
	})

	return count
}

// requestBlock marks the hash as in flight with the peer and queues the
// getdata. Duplicate requests across peers are suppressed by the shared
// set.
func (sm *SyncManager) requestBlock(p *Peer, hash chainhash.Hash) {
	if sm.requested.Has(hash) {
		return
	}

	sm.requested.Set(hash, p.String(), ttlcache.DefaultTTL)

	invType := wire.InvTypeBlock
	if p.WitnessEnabled() {
		invType = wire.InvTypeWitnessBlock
	}

	getData := wire.NewMsgGetData()
	_ = getData.AddInvVect(wire.NewInvVect(invType, &hash))
	p.QueueMessage(getData)
}

// HandleInv processes an unsolicited inventory announcement: every
// unknown announced block is queued for download, within the per-peer
// in-flight window.
func (sm *SyncManager) HandleInv(ctx context.Context, p *Peer, msg *wire.MsgInv) {
	// Backpressure: an announcement with more entries than the configured
	// bound bans and disconnects the peer.
	if len(msg.InvList) > sm.settings.P2P.InvQueueSize {
		p.Ban(errors.NewPeerMaliciousError("inv announcement of %d entries exceeds the queue bound %d",
			len(msg.InvList), sm.settings.P2P.InvQueueSize))
		return
	}

	for _, iv := range msg.InvList {
		if iv.Type != wire.InvTypeBlock && iv.Type != wire.InvTypeWitnessBlock {
			continue
		}

		if sm.inFlightFor(p.String()) >= sm.settings.P2P.MaxInFlightBlocks {
			// The rest will be picked up by a later announcement or
			// headers batch once the window frees up.
			return
		}

		known, err := sm.engine.HasBlock(ctx, &iv.Hash)
		if err != nil {
			sm.logger.Errorf("failed to check block %s: %v", iv.Hash, err)
			return
		}

		if !known {
			sm.requestBlock(p, iv.Hash)
		}
	}
}

// HandleHeaders walks a headers reply and requests every block we do not
// have yet, stopping once the peer's in-flight window is full. A full batch means the peer has more; the sync continues with
// another getheaders.
func (sm *SyncManager) HandleHeaders(ctx context.Context, p *Peer, msg *wire.MsgHeaders) {
	for _, header := range msg.Headers {
		hash := header.BlockHash()

		known, err := sm.engine.HasBlock(ctx, &hash)
		if err != nil {
			sm.logger.Errorf("failed to check block %s: %v", hash, err)
			return
		}

		if known {
			continue
		}

		if sm.inFlightFor(p.String()) >= sm.settings.P2P.MaxInFlightBlocks {
			break
		}

		sm.requestBlock(p, hash)
	}

	if len(msg.Headers) == wire.MaxBlockHeadersPerMsg {
		sm.StartSync(ctx, p)
	}
}

// HandleBlock feeds a delivered block into the chain engine. Blocks we
// never asked the peer for are a protocol violation.
func (sm *SyncManager) HandleBlock(ctx context.Context, p *Peer, msg *wire.MsgBlock) {
	hash := msg.BlockHash()

	item := sm.requested.Get(hash, ttlcache.WithDisableTouchOnHit[chainhash.Hash, string]())
	if item == nil || item.Value() != p.String() {
		p.Ban(errors.NewPeerMaliciousError("unsolicited block %s", hash))
		return
	}

	sm.requested.Delete(hash)

	block := model.NewBlock(msg)

	result, err := sm.engine.AddBlock(ctx, block)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrBlockOrphan):
			// The parent is missing: negotiate a common ancestor so the
			// gap gets filled.
			prometheusOrphanBlocks.Inc()
			sm.StartSync(ctx, p)

		case errors.IsVerificationError(err):
			// The supplier of an invalid block is banned for the session.
			prometheusInvalidBlocks.Inc()
			p.Ban(errors.NewPeerMaliciousError("invalid block %s: %v", hash, err))

		default:
			sm.logger.Errorf("failed to process block %s: %v", hash, err)
		}

		return
	}

	prometheusBlocksReceived.Inc()
	sm.logger.Debugf("processed block %s from %s: %s", hash, p, result)
}

// HandleGetHeaders serves a peer's locator-based header request from the
// store.
func (sm *SyncManager) HandleGetHeaders(ctx context.Context, p *Peer, msg *wire.MsgGetHeaders) {
	var hashStop *chainhash.Hash
	if msg.HashStop != (chainhash.Hash{}) {
		hashStop = &msg.HashStop
	}

	headers, err := sm.engine.LocateHeaders(ctx, msg.BlockLocatorHashes, hashStop)
	if err != nil {
		sm.logger.Errorf("failed to locate headers: %v", err)
		return
	}

	reply := wire.NewMsgHeaders()
	for _, header := range headers {
		if err := reply.AddBlockHeader(header); err != nil {
			break
		}
	}

	p.QueueMessage(reply)
}

// HandleGetData serves block requests from the store. Unknown hashes get
// a notfound reply so the requester is not left waiting for a timeout.
func (sm *SyncManager) HandleGetData(ctx context.Context, p *Peer, msg *wire.MsgGetData) {
	notFound := wire.NewMsgNotFound()

	for _, iv := range msg.InvList {
		switch iv.Type {
		case wire.InvTypeBlock, wire.InvTypeWitnessBlock:
			block, err := sm.engine.GetBlock(ctx, &iv.Hash)
			if err != nil {
				_ = notFound.AddInvVect(iv)
				continue
			}

			p.QueueMessage(block.MsgBlock())

		default:
			// No mempool is maintained; transactions are only relayed
			// inside blocks.
			_ = notFound.AddInvVect(iv)
		}
	}

	if len(notFound.InvList) > 0 {
		p.QueueMessage(notFound)
	}
}
