// Package model holds the block, transaction and UTXO entities shared by
// the stores and the chain engine, together with their context-free
// validity checks.
package model

import (
	"bytes"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/wire"
)

// BlockHeightUnknown is the value returned for the height of a block that
// has not yet been connected to the chain.
const BlockHeightUnknown = int32(-1)

// Block wraps a wire.MsgBlock with the hash and height caches every caller
// ends up wanting. The height is BlockHeightUnknown until it is known.
type Block struct {
	msgBlock *wire.MsgBlock

	hash   *chainhash.Hash
	height int32

	serializedSize int
}

// NewBlock returns a new block for the given underlying wire block.
func NewBlock(msgBlock *wire.MsgBlock) *Block {
	return &Block{
		msgBlock: msgBlock,
		height:   BlockHeightUnknown,
	}
}

// NewBlockFromBytes returns a new block from its serialized bytes.
func NewBlockFromBytes(serialized []byte) (*Block, error) {
	var msgBlock wire.MsgBlock
	if err := msgBlock.Deserialize(bytes.NewReader(serialized)); err != nil {
		return nil, errors.NewMalformedMessageError("failed to deserialize block", err)
	}

	b := NewBlock(&msgBlock)
	b.serializedSize = len(serialized)

	return b, nil
}

// MsgBlock returns the underlying wire block.
func (b *Block) MsgBlock() *wire.MsgBlock {
	return b.msgBlock
}

// Header returns the block header.
func (b *Block) Header() *wire.BlockHeader {
	return &b.msgBlock.Header
}

// Hash returns the block identifier hash, computing and caching it on
// first use.
func (b *Block) Hash() *chainhash.Hash {
	if b.hash == nil {
		hash := b.msgBlock.BlockHash()
		b.hash = &hash
	}

	return b.hash
}

// Transactions returns the transactions of the block.
func (b *Block) Transactions() []*wire.MsgTx {
	return b.msgBlock.Transactions
}

// Height returns the height at which the block connects to the chain, or
// BlockHeightUnknown.
func (b *Block) Height() int32 {
	return b.height
}

// SetHeight records the connect height of the block.
func (b *Block) SetHeight(height int32) {
	b.height = height
}

// SerializeSize returns the serialized byte size of the block including
// witness data.
func (b *Block) SerializeSize() int {
	if b.serializedSize == 0 {
		b.serializedSize = b.msgBlock.SerializeSize()
	}

	return b.serializedSize
}

// Bytes returns the serialized form of the block.
func (b *Block) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.msgBlock.Serialize(&buf); err != nil {
		return nil, errors.NewProcessingError("failed to serialize block", err)
	}

	return buf.Bytes(), nil
}
