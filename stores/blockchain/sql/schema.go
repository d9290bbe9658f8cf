package sql

import (
	"database/sql"

	"github.com/crown-blockchain/crownd/errors"
)

func createPostgresSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS state (
		   key            VARCHAR(32) PRIMARY KEY
		  ,data           BYTEA NOT NULL
		  ,inserted_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		 );`,
		`CREATE TABLE IF NOT EXISTS headers (
		   hash           BYTEA PRIMARY KEY
		  ,prev           BYTEA NOT NULL
		  ,height         BIGINT NOT NULL
		  ,work           BYTEA NOT NULL
		  ,header         BYTEA NOT NULL
		  ,tx_count       BIGINT NOT NULL
		  ,size_in_bytes  BIGINT NOT NULL
		  ,inserted_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		 );`,
		`CREATE INDEX IF NOT EXISTS ux_headers_prev ON headers (prev);`,
		`CREATE TABLE IF NOT EXISTS chain (
		   height         BIGINT PRIMARY KEY
		  ,hash           BYTEA NOT NULL
		 );`,
		`CREATE TABLE IF NOT EXISTS utxo (
		   txid           BYTEA NOT NULL
		  ,vout           BIGINT NOT NULL
		  ,value          BIGINT NOT NULL
		  ,script         BYTEA NOT NULL
		  ,height         BIGINT NOT NULL
		  ,coinbase       BOOLEAN NOT NULL
		  ,PRIMARY KEY (txid, vout)
		 );`,
		`CREATE TABLE IF NOT EXISTS undo (
		   hash           BYTEA PRIMARY KEY
		  ,height         BIGINT NOT NULL
		  ,data           BYTEA NOT NULL
		 );`,
		`CREATE TABLE IF NOT EXISTS blocks (
		   hash           BYTEA PRIMARY KEY
		  ,height         BIGINT NOT NULL
		  ,data           BYTEA NOT NULL
		 );`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return errors.NewStorageError("could not create postgres schema", err)
		}
	}

	return nil
}

func createSqliteSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS state (
		   key            TEXT PRIMARY KEY
		  ,data           BLOB NOT NULL
		 );`,
		`CREATE TABLE IF NOT EXISTS headers (
		   hash           BLOB PRIMARY KEY
		  ,prev           BLOB NOT NULL
		  ,height         INTEGER NOT NULL
		  ,work           BLOB NOT NULL
		  ,header         BLOB NOT NULL
		  ,tx_count       INTEGER NOT NULL
		  ,size_in_bytes  INTEGER NOT NULL
		 );`,
		`CREATE INDEX IF NOT EXISTS ux_headers_prev ON headers (prev);`,
		`CREATE TABLE IF NOT EXISTS chain (
		   height         INTEGER PRIMARY KEY
		  ,hash           BLOB NOT NULL
		 );`,
		`CREATE TABLE IF NOT EXISTS utxo (
		   txid           BLOB NOT NULL
		  ,vout           INTEGER NOT NULL
		  ,value          INTEGER NOT NULL
		  ,script         BLOB NOT NULL
		  ,height         INTEGER NOT NULL
		  ,coinbase       INTEGER NOT NULL
		  ,PRIMARY KEY (txid, vout)
		 );`,
		`CREATE TABLE IF NOT EXISTS undo (
		   hash           BLOB PRIMARY KEY
		  ,height         INTEGER NOT NULL
		  ,data           BLOB NOT NULL
		 );`,
		`CREATE TABLE IF NOT EXISTS blocks (
		   hash           BLOB PRIMARY KEY
		  ,height         INTEGER NOT NULL
		  ,data           BLOB NOT NULL
		 );`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return errors.NewStorageError("could not create sqlite schema", err)
		}
	}

	return nil
}
