package blockchain

import (
	"context"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/util"
	"github.com/crown-blockchain/crownd/wire"
)

// reorganize switches the best chain to the branch ending in candidate,
// whose cumulative work strictly exceeds the current tip's. The old branch
// is reverted down to the fork point using stored undo data, the new
// branch is forward-validated block by block, and a failure anywhere
// restores the old branch so the chain head never moves on error.
func (e *ChainEngine) reorganize(ctx context.Context, candidate *model.Block, candidateMeta *model.BlockHeaderMeta, headHeader *wire.BlockHeader, headMeta *model.BlockHeaderMeta, events *[]*Notification) error {
	headHash := headHeader.BlockHash()

	// Walk the candidate's ancestry back to the first block that is on
	// the current best chain. Everything walked over is the attach list.
	attach := []*model.Block{candidate}

	forkHash := candidate.Header().PrevBlock

	for {
		_, meta, err := e.store.GetHeader(ctx, &forkHash)
		if err != nil {
			return err
		}

		bestAtHeight, err := e.store.GetHashByHeight(ctx, meta.Height)
		if err == nil && bestAtHeight.IsEqual(&forkHash) {
			break
		}
		if err != nil && !errors.Is(err, errors.ErrBlockNotFound) {
			return err
		}

		ancestor, err := e.store.GetBlock(ctx, &forkHash)
		if err != nil {
			if errors.Is(err, errors.ErrBlockNotFound) {
				return errors.NewReorgTooDeepError(
					"side-chain block %s is no longer available; fork predates the pruning window", forkHash)
			}

			return err
		}

		attach = append([]*model.Block{ancestor}, attach...)
		forkHash = ancestor.Header().PrevBlock
	}

	_, forkMeta, err := e.store.GetHeader(ctx, &forkHash)
	if err != nil {
		return err
	}

	depth := headMeta.Height - forkMeta.Height
	if depth > e.settings.Chain.MaximumReorgBlockCount {
		return errors.NewReorgTooDeepError(
			"reorganization depth %d exceeds the undo window of %d blocks",
			depth, e.settings.Chain.MaximumReorgBlockCount)
	}

	e.logger.Infof("reorganizing: fork at %s (height %d), detaching %d blocks, attaching %d blocks",
		forkHash, forkMeta.Height, depth, len(attach))

	// Detach the old branch from the tip down to (but not including) the
	// fork, in reverse order, using the stored undo data.
	detached := make([]*model.Block, 0, depth)

	cursor := headHash
	for cursor != forkHash {
		blk, err := e.store.GetBlock(ctx, &cursor)
		if err != nil {
			if restoreErr := e.restoreBranch(ctx, nil, detached); restoreErr != nil {
				e.logger.Errorf("FATAL: failed to restore old branch after aborted reorganization: %v", restoreErr)
				return restoreErr
			}

			if errors.Is(err, errors.ErrBlockNotFound) {
				return errors.NewReorgTooDeepError(
					"best-chain block %s is no longer available; fork predates the pruning window", cursor)
			}

			return err
		}

		if _, err = e.store.RevertBlock(ctx, blk); err != nil {
			if restoreErr := e.restoreBranch(ctx, nil, detached); restoreErr != nil {
				e.logger.Errorf("FATAL: failed to restore old branch after aborted reorganization: %v", restoreErr)
				return restoreErr
			}

			if errors.Is(err, errors.ErrUndoMissing) {
				// Nothing has been reverted for this block and the blocks
				// detached before it were reconnected above, so the chain
				// is intact; the candidate branch is abandoned.
				return errors.NewReorgTooDeepError(
					"undo data for block %s pruned; cannot reorganize", cursor)
			}

			return err
		}

		prometheusBlocksDisconnected.Inc()

		detached = append([]*model.Block{blk}, detached...)
		cursor = blk.Header().PrevBlock
	}

	// Forward-apply the new branch from the fork up to the candidate with
	// full validation per block.
	applied := make([]*model.Block, 0, len(attach))

	for _, blk := range attach {
		if err := e.connectAndApply(ctx, blk); err != nil {
			e.logger.Warnf("reorganization aborted: block %s failed validation: %v", blk.Hash(), err)

			if restoreErr := e.restoreBranch(ctx, applied, detached); restoreErr != nil {
				// The store is atomic per mutator, so a failure here is a
				// broken invariant rather than a recoverable condition.
				e.logger.Errorf("FATAL: failed to restore old branch after aborted reorganization: %v", restoreErr)
				return restoreErr
			}

			return err
		}

		applied = append(applied, blk)
	}

	*events = append(*events, &Notification{
		Type: NotificationReorganize,
		Reorg: &ReorgEvent{
			OldTip:       headHash,
			NewTip:       *candidate.Hash(),
			Disconnected: detached,
			Connected:    attach,
		},
	})

	return nil
}

// connectAndApply runs full validation for a block whose parent is the
// current chain head, then persists and applies it.
func (e *ChainEngine) connectAndApply(ctx context.Context, block *model.Block) error {
	header := block.Header()

	parentHeader, parentMeta, err := e.store.GetHeader(ctx, &header.PrevBlock)
	if err != nil {
		return err
	}

	block.SetHeight(int32(parentMeta.Height + 1))

	meta := &model.BlockHeaderMeta{
		Height:      parentMeta.Height + 1,
		ChainWork:   util.AddWork(parentMeta.ChainWork, header.Bits),
		TxCount:     uint64(len(block.Transactions())),
		SizeInBytes: uint64(block.SerializeSize()),
	}

	undo, err := e.connectBlock(ctx, block, parentHeader, parentMeta)
	if err != nil {
		return err
	}

	if err = e.persistAndApply(ctx, block, meta, undo); err != nil {
		return err
	}

	prometheusBlocksConnected.Inc()

	return nil
}

// restoreBranch reverts the partially applied new branch and reconnects
// the previously detached old branch, leaving the chain exactly as it was
// before the aborted reorganization.
func (e *ChainEngine) restoreBranch(ctx context.Context, applied, detached []*model.Block) error {
	for i := len(applied) - 1; i >= 0; i-- {
		if _, err := e.store.RevertBlock(ctx, applied[i]); err != nil {
			return err
		}
	}

	for _, blk := range detached {
		if err := e.connectAndApply(ctx, blk); err != nil {
			return err
		}
	}

	return nil
}
