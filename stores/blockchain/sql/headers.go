package sql

import (
	"bytes"
	"context"
	"database/sql"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/wire"
)

func (s *SQL) PutHeader(ctx context.Context, header *wire.BlockHeader, meta *model.BlockHeaderMeta) error {
	return insertHeader(ctx, s.db, header, meta)
}

func (s *SQL) GetHeader(ctx context.Context, blockHash *chainhash.Hash) (*wire.BlockHeader, *model.BlockHeaderMeta, error) {
	return s.getHeader(ctx, s.db, blockHash)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) getHeader(ctx context.Context, q querier, blockHash *chainhash.Hash) (*wire.BlockHeader, *model.BlockHeaderMeta, error) {
	var (
		headerBytes []byte
		height      uint32
		workBytes   []byte
		txCount     uint64
		sizeInBytes uint64
	)

	err := q.QueryRowContext(ctx,
		"SELECT header, height, work, tx_count, size_in_bytes FROM headers WHERE hash = $1",
		blockHash[:]).Scan(&headerBytes, &height, &workBytes, &txCount, &sizeInBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errors.NewBlockNotFoundError("header %s not found", blockHash)
		}

		return nil, nil, errors.NewStorageError("failed to get header %s", blockHash, err)
	}

	header := &wire.BlockHeader{}
	if err = header.Decode(bytes.NewReader(headerBytes)); err != nil {
		return nil, nil, errors.NewStorageError("failed to decode stored header %s", blockHash, err)
	}

	return header, model.NewBlockHeaderMeta(height, workBytes, txCount, sizeInBytes), nil
}

func (s *SQL) GetChainHead(ctx context.Context) (*wire.BlockHeader, *model.BlockHeaderMeta, error) {
	var headBytes []byte

	err := s.db.QueryRowContext(ctx, "SELECT data FROM state WHERE key = $1", chainHeadKey).Scan(&headBytes)
	if err != nil {
		return nil, nil, errors.NewStorageError("failed to get chain head", err)
	}

	hash, err := chainhash.NewHash(headBytes)
	if err != nil {
		return nil, nil, errors.NewStorageError("stored chain head is not a hash", err)
	}

	return s.getHeader(ctx, s.db, hash)
}

func (s *SQL) SetChainHead(ctx context.Context, blockHash *chainhash.Hash) error {
	if _, _, err := s.getHeader(ctx, s.db, blockHash); err != nil {
		return err
	}

	return setState(ctx, s.db, chainHeadKey, blockHash[:])
}

func (s *SQL) GetBlockExists(ctx context.Context, blockHash *chainhash.Hash) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM headers WHERE hash = $1", blockHash[:]).Scan(&count); err != nil {
		return false, errors.NewStorageError("failed to check block %s", blockHash, err)
	}

	return count > 0, nil
}

func (s *SQL) GetHashByHeight(ctx context.Context, height uint32) (*chainhash.Hash, error) {
	var hashBytes []byte

	err := s.db.QueryRowContext(ctx, "SELECT hash FROM chain WHERE height = $1", height).Scan(&hashBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("no best-chain block at height %d", height)
		}

		return nil, errors.NewStorageError("failed to get hash at height %d", height, err)
	}

	return chainhash.NewHash(hashBytes)
}

func (s *SQL) GetBlockLocator(ctx context.Context) (wire.BlockLocator, error) {
	_, headMeta, err := s.GetChainHead(ctx)
	if err != nil {
		return nil, err
	}

	locator := make(wire.BlockLocator, 0, 32)

	height := int64(headMeta.Height)
	step := int64(1)

	for height >= 0 {
		hash, err := s.GetHashByHeight(ctx, uint32(height))
		if err == nil {
			locator = append(locator, hash)
		} else if !errors.Is(err, errors.ErrBlockNotFound) {
			return nil, err
		}

		if height == 0 {
			break
		}

		if len(locator) > 10 {
			step *= 2
		}

		height -= step
		if height < 0 {
			height = 0
		}
	}

	return locator, nil
}

func (s *SQL) LocateHeaders(ctx context.Context, locator wire.BlockLocator, hashStop *chainhash.Hash, maxHeaders int) ([]*wire.BlockHeader, error) {
	_, headMeta, err := s.GetChainHead(ctx)
	if err != nil {
		return nil, err
	}

	startHeight := uint32(0)
	for _, hash := range locator {
		_, meta, err := s.getHeader(ctx, s.db, hash)
		if err != nil {
			if errors.Is(err, errors.ErrBlockNotFound) {
				continue
			}
			return nil, err
		}

		best, err := s.GetHashByHeight(ctx, meta.Height)
		if err != nil {
			if errors.Is(err, errors.ErrBlockNotFound) {
				continue
			}
			return nil, err
		}

		if best.IsEqual(hash) {
			startHeight = meta.Height
			break
		}
	}

	headers := make([]*wire.BlockHeader, 0, maxHeaders)
	for height := startHeight + 1; height <= headMeta.Height && len(headers) < maxHeaders; height++ {
		hash, err := s.GetHashByHeight(ctx, height)
		if err != nil {
			if errors.Is(err, errors.ErrBlockNotFound) {
				break
			}
			return nil, err
		}

		header, _, err := s.getHeader(ctx, s.db, hash)
		if err != nil {
			return nil, err
		}

		headers = append(headers, header)

		if hashStop != nil && hash.IsEqual(hashStop) {
			break
		}
	}

	return headers, nil
}
