package blockchain

import (
	"context"
	"math/big"
	"time"

	"github.com/crown-blockchain/crownd/chaincfg"
	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	blockchain_store "github.com/crown-blockchain/crownd/stores/blockchain"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/wire"
)

// Difficulty computes the required proof-of-work target for candidate
// blocks from the header index.
type Difficulty struct {
	logger      ulogger.Logger
	store       blockchain_store.Store
	chainParams *chaincfg.Params

	// blocksPerRetarget is the number of blocks between difficulty
	// retargets.
	blocksPerRetarget uint32

	// minRetargetTimespan and maxRetargetTimespan clamp the measured
	// timespan to a quarter and four times the target respectively.
	minRetargetTimespan int64
	maxRetargetTimespan int64
}

// NewDifficulty builds the difficulty calculator for the given network.
func NewDifficulty(store blockchain_store.Store, logger ulogger.Logger, params *chaincfg.Params) *Difficulty {
	targetTimespan := int64(params.TargetTimespan / time.Second)
	targetTimePerBlock := int64(params.TargetTimePerBlock / time.Second)
	adjustmentFactor := params.RetargetAdjustmentFactor

	return &Difficulty{
		logger:              logger,
		store:               store,
		chainParams:         params,
		blocksPerRetarget:   uint32(targetTimespan / targetTimePerBlock),
		minRetargetTimespan: targetTimespan / adjustmentFactor,
		maxRetargetTimespan: targetTimespan * adjustmentFactor,
	}
}

// CalcNextWorkRequired returns the compact difficulty required for the
// block following the given parent.
func (d *Difficulty) CalcNextWorkRequired(ctx context.Context, parentHeader *wire.BlockHeader, parentMeta *model.BlockHeaderMeta, newBlockTime time.Time) (uint32, error) {
	// Networks without difficulty adjustment (regtest) keep the limit.
	if d.chainParams.NoDifficultyAdjustment {
		return d.chainParams.PowLimitBits, nil
	}

	nextHeight := parentMeta.Height + 1

	if nextHeight%d.blocksPerRetarget != 0 {
		// For networks that support it, allow special reduction of the
		// required difficulty once too much time has elapsed without
		// mining a block.
		if d.chainParams.ReduceMinDifficulty {
			reductionTime := int64(d.chainParams.MinDiffReductionTime / time.Second)
			if newBlockTime.Unix() > int64(parentHeader.Timestamp)+reductionTime {
				return d.chainParams.PowLimitBits, nil
			}

			// The block was mined within the desired timeframe, so return
			// the difficulty of the last block that did not have the
			// special minimum difficulty rule applied.
			return d.findPrevTestNetDifficulty(ctx, parentHeader, parentMeta)
		}

		// The difficulty stays the same between retarget boundaries.
		return parentHeader.Bits, nil
	}

	// We're at a retarget boundary: walk back to the first block of the
	// window.
	firstHeader := parentHeader

	for i := uint32(0); i < d.blocksPerRetarget-1; i++ {
		var err error

		firstHeader, _, err = d.store.GetHeader(ctx, &firstHeader.PrevBlock)
		if err != nil {
			return 0, errors.NewStorageError("failed to walk retarget window below height %d", parentMeta.Height, err)
		}
	}

	// Limit the amount of adjustment that can occur to the previous
	// difficulty.
	actualTimespan := int64(parentHeader.Timestamp) - int64(firstHeader.Timestamp)
	adjustedTimespan := actualTimespan
	if actualTimespan < d.minRetargetTimespan {
		adjustedTimespan = d.minRetargetTimespan
	} else if actualTimespan > d.maxRetargetTimespan {
		adjustedTimespan = d.maxRetargetTimespan
	}

	// Calculate new target difficulty as:
	//   currentDifficulty * (adjustedTimespan / targetTimespan)
	// The result uses integer division which means it will be slightly
	// rounded down.
	oldTarget := model.NBit(parentHeader.Bits).CalculateTarget()
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(adjustedTimespan))
	targetTimespan := int64(d.chainParams.TargetTimespan / time.Second)
	newTarget.Div(newTarget, big.NewInt(targetTimespan))

	if newTarget.Cmp(d.chainParams.PowLimit) > 0 {
		newTarget.Set(d.chainParams.PowLimit)
	}

	newBits := uint32(model.NewNBitFromTarget(newTarget))

	d.logger.Debugf("difficulty retarget at height %d: %08x -> %08x (actual timespan %ds)",
		nextHeight, parentHeader.Bits, newBits, actualTimespan)

	return newBits, nil
}

// findPrevTestNetDifficulty returns the difficulty of the previous block
// which did not have the special testnet minimum difficulty rule applied.
func (d *Difficulty) findPrevTestNetDifficulty(ctx context.Context, header *wire.BlockHeader, meta *model.BlockHeaderMeta) (uint32, error) {
	for meta.Height != 0 &&
		meta.Height%d.blocksPerRetarget != 0 &&
		header.Bits == d.chainParams.PowLimitBits {

		var err error

		header, meta, err = d.store.GetHeader(ctx, &header.PrevBlock)
		if err != nil {
			return 0, errors.NewStorageError("failed to walk min-difficulty chain", err)
		}
	}

	return header.Bits, nil
}
