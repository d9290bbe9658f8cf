// Package sql implements the blockchain store contract on a relational
// database. The engine is selected by the store URL scheme: postgres,
// sqlite or sqlitememory.
package sql

import (
	"context"
	"database/sql"
	"net/url"

	"github.com/crown-blockchain/crownd/chaincfg"
	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/util"
	"github.com/crown-blockchain/crownd/wire"
)

const chainHeadKey = "chain_head"

// SQL is the relational implementation of the blockchain store.
type SQL struct {
	db     *sql.DB
	engine util.SQLEngine
	logger ulogger.Logger
}

// New opens the database described by storeURL, creates the schema when
// needed and primes an empty store with the genesis block.
func New(logger ulogger.Logger, storeURL *url.URL, dataFolder string, params *chaincfg.Params) (*SQL, error) {
	db, err := util.InitSQLDB(logger, storeURL, dataFolder)
	if err != nil {
		return nil, err
	}

	s := &SQL{
		db:     db,
		engine: util.SQLEngine(storeURL.Scheme),
		logger: logger,
	}

	switch s.engine {
	case util.Postgres:
		err = createPostgresSchema(db)
	case util.Sqlite, util.SqliteMemory:
		err = createSqliteSchema(db)
	default:
		err = errors.NewConfigurationError("unknown database engine: %s", storeURL.Scheme)
	}

	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err = s.insertGenesis(params); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database handle.
func (s *SQL) Close() error {
	return s.db.Close()
}

// insertGenesis stores the genesis block when the store is empty.
func (s *SQL) insertGenesis(params *chaincfg.Params) error {
	ctx := context.Background()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM headers").Scan(&count); err != nil {
		return errors.NewStorageError("failed to count headers", err)
	}

	if count > 0 {
		return nil
	}

	genesis := model.NewBlock(params.GenesisBlock)
	genesis.SetHeight(0)

	meta := &model.BlockHeaderMeta{
		Height:      0,
		ChainWork:   util.CalcBlockWork(genesis.Header().Bits),
		TxCount:     uint64(len(genesis.Transactions())),
		SizeInBytes: uint64(genesis.SerializeSize()),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("failed to begin genesis transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err = insertHeader(ctx, tx, genesis.Header(), meta); err != nil {
		return err
	}

	raw, err := genesis.Bytes()
	if err != nil {
		return err
	}

	hash := genesis.Hash()
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO blocks (hash, height, data) VALUES ($1, $2, $3)",
		hash[:], 0, raw); err != nil {
		return errors.NewStorageError("failed to insert genesis block", err)
	}

	coinbase := genesis.Transactions()[0]
	coinbaseHash := coinbase.TxHash()
	for i, out := range coinbase.TxOut {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO utxo (txid, vout, value, script, height, coinbase) VALUES ($1, $2, $3, $4, $5, $6)",
			coinbaseHash[:], i, out.Value, out.PkScript, 0, true); err != nil {
			return errors.NewStorageError("failed to insert genesis coinbase utxo", err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO chain (height, hash) VALUES (0, $1)", hash[:]); err != nil {
		return errors.NewStorageError("failed to insert genesis chain entry", err)
	}

	if err = setState(ctx, tx, chainHeadKey, hash[:]); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit genesis", err)
	}

	s.logger.Infof("initialised chain store at genesis %s", hash)

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func setState(ctx context.Context, q execer, key string, data []byte) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM state WHERE key = $1", key); err != nil {
		return errors.NewStorageError("failed to clear state key %s", key, err)
	}

	if _, err := q.ExecContext(ctx, "INSERT INTO state (key, data) VALUES ($1, $2)", key, data); err != nil {
		return errors.NewStorageError("failed to set state key %s", key, err)
	}

	return nil
}

func insertHeader(ctx context.Context, q execer, header *wire.BlockHeader, meta *model.BlockHeaderMeta) error {
	hash := header.BlockHash()

	var exists int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(1) FROM headers WHERE hash = $1", hash[:]).Scan(&exists); err != nil {
		return errors.NewStorageError("failed to check header %s", hash, err)
	}

	if exists > 0 {
		return errors.NewBlockExistsError("header %s already stored", hash)
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO headers (hash, prev, height, work, header, tx_count, size_in_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		hash[:], header.PrevBlock[:], meta.Height, meta.WorkBytes(), header.Bytes(),
		meta.TxCount, meta.SizeInBytes); err != nil {
		return errors.NewStorageError("failed to insert header %s", hash, err)
	}

	return nil
}
