package sql

import (
	"context"
	"database/sql"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/wire"
)

func (s *SQL) PutBlock(ctx context.Context, block *model.Block) error {
	hash := block.Hash()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM blocks WHERE hash = $1", hash[:]).Scan(&count); err != nil {
		return errors.NewStorageError("failed to check block %s", hash, err)
	}

	if count > 0 {
		return nil
	}

	raw, err := block.Bytes()
	if err != nil {
		return err
	}

	if _, err = s.db.ExecContext(ctx,
		"INSERT INTO blocks (hash, height, data) VALUES ($1, $2, $3)",
		hash[:], block.Height(), raw); err != nil {
		return errors.NewStorageError("failed to insert block %s", hash, err)
	}

	return nil
}

func (s *SQL) ApplyBlock(ctx context.Context, block *model.Block, undo *model.UndoBlock) error {
	hash := block.Hash()
	height := uint32(block.Height())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("failed to begin apply transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, blockTx := range block.Transactions() {
		if !blockTx.IsCoinbase() {
			for _, txIn := range blockTx.TxIn {
				res, err := tx.ExecContext(ctx,
					"DELETE FROM utxo WHERE txid = $1 AND vout = $2",
					txIn.PreviousOutPoint.Hash[:], txIn.PreviousOutPoint.Index)
				if err != nil {
					return errors.NewStorageError("failed to spend utxo %s", txIn.PreviousOutPoint, err)
				}

				affected, err := res.RowsAffected()
				if err != nil {
					return errors.NewStorageError("failed to read spend result", err)
				}

				if affected == 0 {
					return errors.NewMissingUTXOError("apply: utxo %s not found", txIn.PreviousOutPoint)
				}
			}
		}

		txHash := blockTx.TxHash()
		coinbase := blockTx.IsCoinbase()

		for i, out := range blockTx.TxOut {
			if _, err = tx.ExecContext(ctx,
				"INSERT INTO utxo (txid, vout, value, script, height, coinbase) VALUES ($1, $2, $3, $4, $5, $6)",
				txHash[:], i, out.Value, out.PkScript, height, coinbase); err != nil {
				return errors.NewDoubleSpendError("apply: output %s:%d already exists unspent", txHash, i, err)
			}
		}
	}

	undoBytes, err := undo.Bytes()
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO undo (hash, height, data) VALUES ($1, $2, $3)",
		hash[:], height, undoBytes); err != nil {
		return errors.NewStorageError("failed to insert undo data for %s", hash, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM chain WHERE height = $1", height); err != nil {
		return errors.NewStorageError("failed to update chain index", err)
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO chain (height, hash) VALUES ($1, $2)", height, hash[:]); err != nil {
		return errors.NewStorageError("failed to insert chain entry", err)
	}

	if err = setState(ctx, tx, chainHeadKey, hash[:]); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit block %s", hash, err)
	}

	return nil
}

func (s *SQL) RevertBlock(ctx context.Context, block *model.Block) (*model.UndoBlock, error) {
	hash := block.Hash()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageError("failed to begin revert transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		undoBytes []byte
		height    uint32
	)

	err = tx.QueryRowContext(ctx, "SELECT data, height FROM undo WHERE hash = $1", hash[:]).Scan(&undoBytes, &height)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewUndoMissingError("revert: no undo data for block %s", hash)
		}

		return nil, errors.NewStorageError("failed to load undo data for %s", hash, err)
	}

	undo, err := model.NewUndoBlockFromBytes(undoBytes)
	if err != nil {
		return nil, err
	}

	// Remove the outputs the block created.
	for _, blockTx := range block.Transactions() {
		txHash := blockTx.TxHash()
		for i := range blockTx.TxOut {
			if _, err = tx.ExecContext(ctx,
				"DELETE FROM utxo WHERE txid = $1 AND vout = $2", txHash[:], i); err != nil {
				return nil, errors.NewStorageError("failed to remove output %s:%d", txHash, i, err)
			}
		}
	}

	// Reinstate the outputs the block consumed.
	for i := range undo.Spent {
		spent := &undo.Spent[i]
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO utxo (txid, vout, value, script, height, coinbase) VALUES ($1, $2, $3, $4, $5, $6)",
			spent.OutPoint.Hash[:], spent.OutPoint.Index, spent.Entry.Output.Value,
			spent.Entry.Output.PkScript, spent.Entry.Height, spent.Entry.Coinbase); err != nil {
			return nil, errors.NewStorageError("failed to reinstate utxo %s", spent.OutPoint, err)
		}
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM undo WHERE hash = $1", hash[:]); err != nil {
		return nil, errors.NewStorageError("failed to delete undo data for %s", hash, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM chain WHERE height = $1", height); err != nil {
		return nil, errors.NewStorageError("failed to remove chain entry at %d", height, err)
	}

	prev := block.Header().PrevBlock
	if err = setState(ctx, tx, chainHeadKey, prev[:]); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.NewStorageError("failed to commit revert of %s", hash, err)
	}

	return undo, nil
}

func (s *SQL) GetUTXO(ctx context.Context, outpoint wire.OutPoint) (*model.UTXO, error) {
	var (
		value    int64
		script   []byte
		height   uint32
		coinbase bool
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT value, script, height, coinbase FROM utxo WHERE txid = $1 AND vout = $2",
		outpoint.Hash[:], outpoint.Index).Scan(&value, &script, &height, &coinbase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("utxo %s not found", outpoint)
		}

		return nil, errors.NewStorageError("failed to get utxo %s", outpoint, err)
	}

	return &model.UTXO{
		Output:   wire.TxOut{Value: value, PkScript: script},
		Height:   height,
		Coinbase: coinbase,
	}, nil
}

func (s *SQL) HasUTXO(ctx context.Context, outpoint wire.OutPoint) (bool, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM utxo WHERE txid = $1 AND vout = $2",
		outpoint.Hash[:], outpoint.Index).Scan(&count)
	if err != nil {
		return false, errors.NewStorageError("failed to check utxo %s", outpoint, err)
	}

	return count > 0, nil
}

func (s *SQL) GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error) {
	var (
		raw    []byte
		height uint32
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT data, height FROM blocks WHERE hash = $1", blockHash[:]).Scan(&raw, &height)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("block %s not found", blockHash)
		}

		return nil, errors.NewStorageError("failed to get block %s", blockHash, err)
	}

	block, err := model.NewBlockFromBytes(raw)
	if err != nil {
		return nil, err
	}

	block.SetHeight(int32(height))

	return block, nil
}

func (s *SQL) PruneUndo(ctx context.Context, keepDepth uint32) error {
	_, headMeta, err := s.GetChainHead(ctx)
	if err != nil {
		return err
	}

	if headMeta.Height < keepDepth {
		return nil
	}

	cutoff := headMeta.Height - keepDepth

	if _, err = s.db.ExecContext(ctx, "DELETE FROM undo WHERE height < $1", cutoff); err != nil {
		return errors.NewStorageError("failed to prune undo data below %d", cutoff, err)
	}

	if _, err = s.db.ExecContext(ctx, "DELETE FROM blocks WHERE height < $1", cutoff); err != nil {
		return errors.NewStorageError("failed to prune blocks below %d", cutoff, err)
	}

	return nil
}
