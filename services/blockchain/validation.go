package blockchain

import (
	"context"
	"runtime"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"golang.org/x/sync/errgroup"

	"github.com/crown-blockchain/crownd/coin"
	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/script"
	"github.com/crown-blockchain/crownd/util"
	"github.com/crown-blockchain/crownd/wire"
)

// scriptJob is one input script verification unit, farmed out to the
// worker pool inside connectBlock.
type scriptJob struct {
	tx     *wire.MsgTx
	txIdx  int
	entry  *model.UTXO
	flags  script.Flags
	amount coin.Coin
}

// scriptFlags derives the script verification flags for a block at the
// given height from the network's soft-fork activation heights.
func (e *ChainEngine) scriptFlags(height uint32) script.Flags {
	var flags script.Flags

	if height >= uint32(e.params.BIP0016Height) {
		flags |= script.ScriptBip16
	}

	if height >= uint32(e.params.BIP0066Height) {
		flags |= script.ScriptVerifyDERSignatures | script.ScriptVerifyStrictEncoding
	}

	if height >= uint32(e.params.BIP0065Height) {
		flags |= script.ScriptVerifyCheckLockTimeVerify
	}

	if height >= uint32(e.params.CSVHeight) {
		flags |= script.ScriptVerifyCheckSequenceVerify
	}

	if height >= uint32(e.params.SegwitHeight) {
		flags |= script.ScriptVerifyWitness
	}

	return flags
}

// connectBlock performs the full contextual validation of a block against
// the current UTXO set and returns the undo record that reverts it. It
// does not mutate the store: the caller applies the returned undo record
// together with the block in one atomic store transaction.
func (e *ChainEngine) connectBlock(ctx context.Context, block *model.Block, parentHeader *wire.BlockHeader, parentMeta *model.BlockHeaderMeta) (*model.UndoBlock, error) {
	height := uint32(block.Height())
	blockHash := block.Hash()
	flags := e.scriptFlags(height)
	csvActive := flags&script.ScriptVerifyCheckSequenceVerify != 0

	medianTime, err := e.medianTimePast(ctx, parentHeader, parentMeta)
	if err != nil {
		return nil, err
	}

	// created tracks outputs produced earlier in this block so later
	// transactions can spend them; spent tracks every outpoint consumed
	// so far so a double spend inside the block is caught.
	created := make(map[wire.OutPoint]*model.UTXO)
	spent := make(map[wire.OutPoint]struct{})

	undo := &model.UndoBlock{}

	var (
		totalFees  coin.Coin
		scriptJobs []scriptJob
	)

	for _, tx := range block.Transactions() {
		txHash := tx.TxHash()

		// A transaction whose txid collides with an earlier transaction
		// that still has unspent outputs would silently overwrite them;
		// historically this was exploited through duplicated coinbases
		// (BIP 30). Reject the block up front, before any script cost is
		// paid, unless this block itself has already spent the colliding
		// outputs.
		if err = e.checkDuplicateTransaction(ctx, txHash, tx, spent, blockHash); err != nil {
			return nil, err
		}

		if tx.IsCoinbase() {
			for i, out := range tx.TxOut {
				created[wire.OutPoint{Hash: txHash, Index: uint32(i)}] = &model.UTXO{
					Output:   *out,
					Height:   height,
					Coinbase: true,
				}
			}
			continue
		}

		var totalIn coin.Coin

		for inIdx, txIn := range tx.TxIn {
			op := txIn.PreviousOutPoint

			if _, alreadySpent := spent[op]; alreadySpent {
				return nil, errors.NewDoubleSpendError(
					"block %s spends outpoint %s twice", blockHash, op)
			}

			// Resolve the spent output from outputs created earlier in
			// this block, or from the store.
			entry, inBlock := created[op]
			if !inBlock {
				entry, err = e.store.GetUTXO(ctx, op)
				if err != nil {
					if errors.Is(err, errors.ErrNotFound) {
						return nil, errors.NewMissingUTXOError(
							"block %s spends unknown outpoint %s", blockHash, op)
					}

					return nil, err
				}
			}

			if entry.Coinbase && height-entry.Height < uint32(e.params.CoinbaseMaturity) {
				return nil, errors.NewImmatureCoinbaseError(
					"block %s spends coinbase %s at depth %d, need %d",
					blockHash, op, height-entry.Height, e.params.CoinbaseMaturity)
			}

			value := coin.Coin(entry.Output.Value)
			if !value.InRange() {
				return nil, errors.NewValueOutOfRangeError("spent output %s value %v out of range", op, value)
			}

			totalIn, err = totalIn.Add(value)
			if err != nil {
				return nil, errors.NewValueOutOfRangeError("sum of inputs of %s overflows", txHash, err)
			}

			spent[op] = struct{}{}
			if !inBlock {
				undo.Spent = append(undo.Spent, model.SpentUTXO{OutPoint: op, Entry: *entry})
			}

			scriptJobs = append(scriptJobs, scriptJob{
				tx:     tx,
				txIdx:  inIdx,
				entry:  entry,
				flags:  flags,
				amount: value,
			})

			if csvActive {
				if err = e.checkSequenceLock(ctx, tx, txIn, entry, height, medianTime); err != nil {
					return nil, err
				}
			}
		}

		var totalOut coin.Coin
		for _, out := range tx.TxOut {
			totalOut, err = totalOut.Add(coin.Coin(out.Value))
			if err != nil {
				return nil, errors.NewValueOutOfRangeError("sum of outputs of %s overflows", txHash, err)
			}
		}

		if totalIn < totalOut {
			return nil, errors.NewValueOutOfRangeError(
				"transaction %s spends %v but only has %v available", txHash, totalOut, totalIn)
		}

		fee, err := totalIn.Sub(totalOut)
		if err != nil {
			return nil, errors.NewValueOutOfRangeError("fee of %s overflows", txHash, err)
		}

		totalFees, err = totalFees.Add(fee)
		if err != nil {
			return nil, errors.NewValueOutOfRangeError("total fees of block %s overflow", blockHash, err)
		}

		for i, out := range tx.TxOut {
			created[wire.OutPoint{Hash: txHash, Index: uint32(i)}] = &model.UTXO{
				Output: *out,
				Height: height,
			}
		}
	}

	// The coinbase may claim at most the subsidy plus the fees of the
	// transactions it confirms.
	var coinbaseOut coin.Coin
	for _, out := range block.Transactions()[0].TxOut {
		coinbaseOut, err = coinbaseOut.Add(coin.Coin(out.Value))
		if err != nil {
			return nil, errors.NewValueOutOfRangeError("coinbase output sum overflows", err)
		}
	}

	maxCoinbase, err := util.CalcBlockSubsidy(height, e.params).Add(totalFees)
	if err != nil {
		return nil, errors.NewValueOutOfRangeError("maximum coinbase value overflows", err)
	}

	if coinbaseOut > maxCoinbase {
		return nil, errors.NewValueOutOfRangeError(
			"coinbase of block %s pays %v, limit is %v", blockHash, coinbaseOut, maxCoinbase)
	}

	// Script verification is CPU-bound and independent per input, so it
	// is parallelized. The block connect stays atomic to observers: no
	// state was touched yet.
	if err = e.verifyScripts(ctx, scriptJobs); err != nil {
		return nil, err
	}

	return undo, nil
}

// checkDuplicateTransaction rejects a transaction whose txid matches an
// earlier transaction with outputs still in the UTXO set. Outpoints the
// current block has already spent are excluded: once they are gone, the
// recreation is unambiguous.
func (e *ChainEngine) checkDuplicateTransaction(ctx context.Context, txHash chainhash.Hash, tx *wire.MsgTx, spent map[wire.OutPoint]struct{}, blockHash *chainhash.Hash) error {
	for i := range tx.TxOut {
		op := wire.OutPoint{Hash: txHash, Index: uint32(i)}

		if _, beingSpent := spent[op]; beingSpent {
			continue
		}

		exists, err := e.store.HasUTXO(ctx, op)
		if err != nil {
			return err
		}

		if exists {
			return errors.NewDuplicateTransactionError(
				"block %s contains transaction %s which would overwrite the unspent output %s of an earlier transaction",
				blockHash, txHash, op)
		}
	}

	return nil
}

// verifyScripts runs the collected script jobs across a bounded worker
// pool, failing fast on the first invalid input.
func (e *ChainEngine) verifyScripts(ctx context.Context, jobs []scriptJob) error {
	concurrency := e.settings.Chain.ScriptVerifyConcurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, job := range jobs {
		job := job

		g.Go(func() error {
			txIn := job.tx.TxIn[job.txIdx]

			err := script.Verify(txIn.SignatureScript, job.entry.Output.PkScript,
				txIn.Witness, job.tx, job.txIdx, job.flags, job.amount)
			if err != nil {
				return errors.NewScriptError("input %d of %s failed script verification",
					job.txIdx, job.tx.TxHash(), err)
			}

			return nil
		})
	}

	return g.Wait()
}

// checkSequenceLock enforces the BIP 68 relative lock-time of one input:
// a version 2 transaction input with a relative lock-time may only be
// included once the output it spends is old enough.
func (e *ChainEngine) checkSequenceLock(ctx context.Context, tx *wire.MsgTx, txIn *wire.TxIn, entry *model.UTXO, height uint32, medianTime int64) error {
	if tx.Version < 2 {
		return nil
	}

	sequence := txIn.Sequence
	if sequence&wire.SequenceLockTimeDisabled != 0 {
		return nil
	}

	locked := sequence & wire.SequenceLockTimeMask

	if sequence&wire.SequenceLockTimeIsSeconds != 0 {
		// Time-based relative lock: each unit is 512 seconds, counted
		// from the timestamp of the block that created the spent output.
		// An output created in this same block can never satisfy a
		// time-based lock.
		if entry.Height >= height {
			return errors.NewTxInvalidError(
				"transaction %s has a time-based lock on an output created in the same block", tx.TxHash())
		}

		prevHash, err := e.store.GetHashByHeight(ctx, entry.Height)
		if err != nil {
			return err
		}

		prevHeader, _, err := e.store.GetHeader(ctx, prevHash)
		if err != nil {
			return err
		}

		if medianTime < int64(prevHeader.Timestamp)+int64(locked)<<9 {
			return errors.NewTxInvalidError(
				"transaction %s input locked for %d seconds", tx.TxHash(), int64(locked)<<9)
		}

		return nil
	}

	if entry.Height+locked > height {
		return errors.NewTxInvalidError(
			"transaction %s spends output aged %d blocks, needs %d",
			tx.TxHash(), height-entry.Height, locked)
	}

	return nil
}
