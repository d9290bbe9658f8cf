// Package blockchain defines the contract between the chain engine and its
// persistent block/UTXO store.
package blockchain

import (
	"context"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/wire"
)

// Store is the persistence contract the chain engine drives. There is a
// single writer (the engine); reads are safe for concurrent use.
//
// Every mutator is atomic: on error the store is indistinguishable from its
// pre-call state. After any successful mutator the chain head is consistent
// with the UTXO set, that is, the UTXO set equals the result of replaying
// every block from genesis to the chain head.
type Store interface {
	// PutHeader persists a header with its chain metadata. Storing a
	// header that already exists fails with ERR_BLOCK_EXISTS.
	PutHeader(ctx context.Context, header *wire.BlockHeader, meta *model.BlockHeaderMeta) error

	// GetHeader returns the header and metadata for the given block hash,
	// or ERR_BLOCK_NOT_FOUND.
	GetHeader(ctx context.Context, blockHash *chainhash.Hash) (*wire.BlockHeader, *model.BlockHeaderMeta, error)

	// GetChainHead returns the header and metadata of the current best
	// block.
	GetChainHead(ctx context.Context) (*wire.BlockHeader, *model.BlockHeaderMeta, error)

	// SetChainHead moves the chain head pointer without touching the UTXO
	// set. The chain engine does not call it; ApplyBlock and RevertBlock
	// move the head themselves.
	SetChainHead(ctx context.Context, blockHash *chainhash.Hash) error

	// PutBlock persists the full block body keyed by its hash, without
	// touching the UTXO set. Side-chain bodies stored this way are what a
	// later reorganization forward-applies. Storing the same block twice
	// is a no-op.
	PutBlock(ctx context.Context, block *model.Block) error

	// ApplyBlock spends the block's inputs, creates its outputs, persists
	// its undo record, and advances the chain head, all in one atomic
	// transaction. The block's height must be set and its body must
	// already be stored with PutBlock.
	ApplyBlock(ctx context.Context, block *model.Block, undo *model.UndoBlock) error

	// RevertBlock rolls the block back out of the UTXO set using its
	// stored undo data and moves the chain head to its parent, all in one
	// atomic transaction. It returns the undo record that was applied, or
	// ERR_UNDO_MISSING when the block is beyond the pruning window.
	RevertBlock(ctx context.Context, block *model.Block) (*model.UndoBlock, error)

	// GetUTXO returns the unspent output for the outpoint, or
	// ERR_NOT_FOUND.
	GetUTXO(ctx context.Context, outpoint wire.OutPoint) (*model.UTXO, error)

	// HasUTXO reports whether the outpoint is unspent.
	HasUTXO(ctx context.Context, outpoint wire.OutPoint) (bool, error)

	// GetBlock returns the full block for the hash when it is still
	// within the pruning window, or ERR_BLOCK_NOT_FOUND.
	GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error)

	// GetBlockExists reports whether a header for the hash is known,
	// whether on the best chain or a side chain.
	GetBlockExists(ctx context.Context, blockHash *chainhash.Hash) (bool, error)

	// GetHashByHeight returns the hash of the best-chain block at the
	// given height.
	GetHashByHeight(ctx context.Context, height uint32) (*chainhash.Hash, error)

	// GetBlockLocator builds a sparse locator from the chain head back to
	// genesis, thinning geometrically after the first ten hashes.
	GetBlockLocator(ctx context.Context) (wire.BlockLocator, error)

	// LocateHeaders returns up to maxHeaders best-chain headers after the
	// first locator hash found on the best chain, stopping at hashStop.
	LocateHeaders(ctx context.Context, locator wire.BlockLocator, hashStop *chainhash.Hash, maxHeaders int) ([]*wire.BlockHeader, error)

	// PruneUndo discards undo data and block bodies more than keepDepth
	// blocks below the chain head. Reorganizations past that depth are no
	// longer possible.
	PruneUndo(ctx context.Context, keepDepth uint32) error

	// Close releases the underlying resources.
	Close() error
}
