// Package blockchain implements the full-validation chain engine: it
// ingests blocks, verifies them against consensus rules, extends or
// reorganizes the best chain through the block store, and publishes the
// resulting events to subscribers.
package blockchain

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/chaincfg"
	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/settings"
	blockchain_store "github.com/crown-blockchain/crownd/stores/blockchain"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/util"
	"github.com/crown-blockchain/crownd/wire"
)

// BlockAddResult describes what AddBlock did with a block.
type BlockAddResult int

const (
	// Unchanged: the block was already known; nothing happened.
	Unchanged BlockAddResult = iota

	// SideChainAdded: the header was persisted on a side chain; the UTXO
	// set was not touched.
	SideChainAdded

	// NewBest: the block extended or reorganized the best chain.
	NewBest
)

func (r BlockAddResult) String() string {
	switch r {
	case SideChainAdded:
		return "SIDE_CHAIN"
	case NewBest:
		return "NEW_BEST"
	default:
		return "UNCHANGED"
	}
}

// ChainEngine serializes all chain mutation behind one mutex. Multiple
// peer sessions may call AddBlock concurrently; contention is handled
// here, matching the store's single-writer assumption.
type ChainEngine struct {
	// mu is held for the whole duration of an AddBlock call. AddBlock is
	// not interruptible; it runs to completion or to a well-defined
	// error.
	mu sync.Mutex

	logger     ulogger.Logger
	settings   *settings.Settings
	params     *chaincfg.Params
	store      blockchain_store.Store
	difficulty *Difficulty
	notifier   notifier

	// orphans buffers blocks whose parent is unknown, keyed by the
	// missing parent hash. Bounded by capacity and TTL.
	orphans *ttlcache.Cache[chainhash.Hash, []*model.Block]

	// timeSource supplies the network adjusted time used by the two-hour
	// future block bound.
	timeSource func() time.Time
}

// New creates a chain engine over the given store. The store must already
// be primed with the genesis block of the configured network.
func New(logger ulogger.Logger, tSettings *settings.Settings, store blockchain_store.Store) (*ChainEngine, error) {
	initPrometheusMetrics()

	orphans := ttlcache.New[chainhash.Hash, []*model.Block](
		ttlcache.WithTTL[chainhash.Hash, []*model.Block](tSettings.Chain.OrphanTTL),
		ttlcache.WithCapacity[chainhash.Hash, []*model.Block](tSettings.Chain.OrphanBufferSize),
	)
	go orphans.Start()

	e := &ChainEngine{
		logger:     logger,
		settings:   tSettings,
		params:     tSettings.ChainCfgParams,
		store:      store,
		difficulty: NewDifficulty(store, logger, tSettings.ChainCfgParams),
		orphans:    orphans,
		timeSource: time.Now,
	}
	e.notifier.logger = logger

	return e, nil
}

// Close stops the orphan eviction loop. In-flight AddBlock calls drain
// through the engine lock first.
func (e *ChainEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.orphans.Stop()
}

// Subscribe registers a listener channel for chain events. Events carry
// immutable values and are delivered outside the engine lock.
func (e *ChainEngine) Subscribe(buffer int) (<-chan *Notification, func()) {
	return e.notifier.Subscribe(buffer)
}

// SetTimeSource overrides the network adjusted time oracle.
func (e *ChainEngine) SetTimeSource(timeSource func() time.Time) {
	e.timeSource = timeSource
}

// AddBlock runs a block through identity, context-free and contextual
// validation, then extends or reorganizes the chain. An unknown-parent
// block is buffered in the bounded orphan map and reported with
// ERR_BLOCK_ORPHAN; when its parent later connects, the orphan is retried
// automatically.
func (e *ChainEngine) AddBlock(ctx context.Context, block *model.Block) (BlockAddResult, error) {
	var events []*Notification

	e.mu.Lock()
	result, err := e.addBlock(ctx, block, &events)
	e.mu.Unlock()

	for _, event := range events {
		e.notifier.publish(event)
	}

	if err == nil && result != Unchanged {
		e.processOrphans(ctx, block.Hash())
	}

	return result, err
}

func (e *ChainEngine) addBlock(ctx context.Context, block *model.Block, events *[]*Notification) (BlockAddResult, error) {
	hash := block.Hash()

	// Step 1: identity and quick reject.
	exists, err := e.store.GetBlockExists(ctx, hash)
	if err != nil {
		return Unchanged, err
	}

	if exists {
		e.logger.Debugf("block %s already known", hash)
		return Unchanged, nil
	}

	// Step 2: context-free checks.
	if err = model.CheckBlockSanity(block, e.params.PowLimit, e.settings.Policy.MaxBlockSize, e.timeSource()); err != nil {
		prometheusBlocksRejected.Inc()
		return Unchanged, err
	}

	// Step 3: parent lookup.
	header := block.Header()

	parentHeader, parentMeta, err := e.store.GetHeader(ctx, &header.PrevBlock)
	if err != nil {
		if errors.Is(err, errors.ErrBlockNotFound) {
			e.stashOrphan(block)
			return Unchanged, errors.NewBlockOrphanError("parent %s of block %s not known", header.PrevBlock, hash)
		}

		return Unchanged, err
	}

	height := parentMeta.Height + 1
	block.SetHeight(int32(height))

	// Step 4: contextual header checks.
	expectedBits, err := e.difficulty.CalcNextWorkRequired(ctx, parentHeader, parentMeta, header.Time())
	if err != nil {
		return Unchanged, err
	}

	if header.Bits != expectedBits {
		prometheusBlocksRejected.Inc()
		return Unchanged, errors.NewBlockBadDifficultyError(
			"block %s has difficulty %08x, expected %08x", hash, header.Bits, expectedBits)
	}

	medianTime, err := e.medianTimePast(ctx, parentHeader, parentMeta)
	if err != nil {
		return Unchanged, err
	}

	if int64(header.Timestamp) <= medianTime {
		prometheusBlocksRejected.Inc()
		return Unchanged, errors.NewBlockBadTimestampError(
			"block %s timestamp %d is not after median time past %d", hash, header.Timestamp, medianTime)
	}

	meta := &model.BlockHeaderMeta{
		Height:      height,
		ChainWork:   util.AddWork(parentMeta.ChainWork, header.Bits),
		TxCount:     uint64(len(block.Transactions())),
		SizeInBytes: uint64(block.SerializeSize()),
	}

	headHeader, headMeta, err := e.store.GetChainHead(ctx)
	if err != nil {
		return Unchanged, err
	}
	headHash := headHeader.BlockHash()

	// Step 6: straight-line extension of the current tip.
	if header.PrevBlock == headHash {
		start := time.Now()

		undo, err := e.connectBlock(ctx, block, parentHeader, parentMeta)
		if err != nil {
			prometheusBlocksRejected.Inc()
			return Unchanged, err
		}

		if err = e.persistAndApply(ctx, block, meta, undo); err != nil {
			return Unchanged, err
		}

		prometheusBlocksConnected.Inc()
		prometheusBlockValidation.Observe(time.Since(start).Seconds())

		if err = e.store.PruneUndo(ctx, e.settings.Chain.MaximumReorgBlockCount); err != nil {
			e.logger.Warnf("failed to prune undo data: %v", err)
		}

		*events = append(*events, &Notification{
			Type:   NotificationNewBestBlock,
			Hash:   *hash,
			Header: header,
			Meta:   meta,
		})
		appendTxEvents(events, block, meta, BestChain)

		e.logger.Infof("new best block %s at height %d", hash, height)

		return NewBest, nil
	}

	// Step 8: a branch with strictly more work than the tip triggers a
	// reorganization. Equal work keeps the currently-active branch.
	if meta.ChainWork.Cmp(headMeta.ChainWork) > 0 {
		if err = e.reorganize(ctx, block, meta, headHeader, headMeta, events); err != nil {
			prometheusBlocksRejected.Inc()
			return Unchanged, err
		}

		prometheusReorganizations.Inc()
		e.logger.Infof("reorganized to new best block %s at height %d", hash, height)

		return NewBest, nil
	}

	// Step 5: side chain. Persist the header and body, leave the UTXO set
	// alone.
	if err = e.store.PutHeader(ctx, header, meta); err != nil {
		return Unchanged, err
	}

	if err = e.store.PutBlock(ctx, block); err != nil {
		return Unchanged, err
	}

	prometheusBlocksSideChain.Inc()
	appendTxEvents(events, block, meta, SideChain)

	e.logger.Infof("block %s stored on side chain at height %d", hash, height)

	return SideChainAdded, nil
}

// persistAndApply stores the header and body, then applies the block to
// the UTXO set in one atomic store transaction.
func (e *ChainEngine) persistAndApply(ctx context.Context, block *model.Block, meta *model.BlockHeaderMeta, undo *model.UndoBlock) error {
	if err := e.store.PutHeader(ctx, block.Header(), meta); err != nil && !errors.Is(err, errors.ErrBlockExists) {
		return err
	}

	if err := e.store.PutBlock(ctx, block); err != nil {
		return err
	}

	return e.store.ApplyBlock(ctx, block, undo)
}

// medianTimePast returns the median timestamp of the last eleven blocks
// ending at the given header.
func (e *ChainEngine) medianTimePast(ctx context.Context, header *wire.BlockHeader, meta *model.BlockHeaderMeta) (int64, error) {
	timestamps := make([]int64, 0, util.MedianTimeBlocks)
	timestamps = append(timestamps, int64(header.Timestamp))

	cursorHeader := header
	cursorMeta := meta

	for len(timestamps) < util.MedianTimeBlocks && cursorMeta.Height > 0 {
		var err error

		cursorHeader, cursorMeta, err = e.store.GetHeader(ctx, &cursorHeader.PrevBlock)
		if err != nil {
			return 0, err
		}

		timestamps = append(timestamps, int64(cursorHeader.Timestamp))
	}

	return util.CalcPastMedianTime(timestamps)
}

// stashOrphan buffers a parentless block until its parent arrives.
func (e *ChainEngine) stashOrphan(block *model.Block) {
	parent := block.Header().PrevBlock

	var waiting []*model.Block
	if item := e.orphans.Get(parent); item != nil {
		waiting = item.Value()
	}

	for _, b := range waiting {
		if *b.Hash() == *block.Hash() {
			return
		}
	}

	e.orphans.Set(parent, append(waiting, block), ttlcache.DefaultTTL)
	prometheusBlocksOrphaned.Inc()

	e.logger.Infof("buffered orphan block %s waiting for parent %s", block.Hash(), parent)
}

// processOrphans retries any orphans that were waiting for the given
// block. Called without the engine lock held; each retry takes the lock
// itself and may in turn release further orphans.
func (e *ChainEngine) processOrphans(ctx context.Context, parentHash *chainhash.Hash) {
	item := e.orphans.Get(*parentHash)
	if item == nil {
		return
	}

	e.orphans.Delete(*parentHash)

	for _, orphan := range item.Value() {
		if _, err := e.AddBlock(ctx, orphan); err != nil {
			e.logger.Warnf("orphan block %s failed to connect: %v", orphan.Hash(), err)
		}
	}
}

// appendTxEvents queues one transaction notification per transaction of
// the block.
func appendTxEvents(events *[]*Notification, block *model.Block, meta *model.BlockHeaderMeta, relativity TxRelativity) {
	hash := *block.Hash()

	for i, tx := range block.Transactions() {
		*events = append(*events, &Notification{
			Type: NotificationTransaction,
			Tx: &TxNotification{
				Tx:            tx,
				BlockHash:     hash,
				BlockMeta:     meta,
				Relativity:    relativity,
				OffsetInBlock: i,
			},
		})
	}
}

// BestHeader returns the current chain head.
func (e *ChainEngine) BestHeader(ctx context.Context) (*wire.BlockHeader, *model.BlockHeaderMeta, error) {
	return e.store.GetChainHead(ctx)
}

// HasBlock reports whether the block is known, on any branch.
func (e *ChainEngine) HasBlock(ctx context.Context, hash *chainhash.Hash) (bool, error) {
	return e.store.GetBlockExists(ctx, hash)
}

// GetBlock returns a stored block when it is still within the pruning
// window.
func (e *ChainEngine) GetBlock(ctx context.Context, hash *chainhash.Hash) (*model.Block, error) {
	return e.store.GetBlock(ctx, hash)
}

// GetBlockLocator builds a locator for the current best chain.
func (e *ChainEngine) GetBlockLocator(ctx context.Context) (wire.BlockLocator, error) {
	return e.store.GetBlockLocator(ctx)
}

// LocateHeaders serves a peer's getheaders request from the header index.
func (e *ChainEngine) LocateHeaders(ctx context.Context, locator wire.BlockLocator, hashStop *chainhash.Hash) ([]*wire.BlockHeader, error) {
	return e.store.LocateHeaders(ctx, locator, hashStop, wire.MaxBlockHeadersPerMsg)
}
