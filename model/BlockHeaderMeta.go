package model

import (
	"math/big"
)

// BlockHeaderMeta carries the chain-context data the store assigns to a
// header when it is persisted: its height, the cumulative work of the
// chain ending in it, and bookkeeping sizes. The store owns these values;
// the engine only ever reads them.
type BlockHeaderMeta struct {
	Height      uint32
	ChainWork   *big.Int
	TxCount     uint64
	SizeInBytes uint64
}

// WorkBytes returns the cumulative work as a fixed 32-byte big-endian
// value, the form the store persists and compares lexicographically.
func (m *BlockHeaderMeta) WorkBytes() []byte {
	b := make([]byte, 32)
	if m.ChainWork != nil {
		m.ChainWork.FillBytes(b)
	}

	return b
}

// NewBlockHeaderMeta builds a meta record with the work parsed from its
// 32-byte persisted form.
func NewBlockHeaderMeta(height uint32, workBytes []byte, txCount, sizeInBytes uint64) *BlockHeaderMeta {
	return &BlockHeaderMeta{
		Height:      height,
		ChainWork:   new(big.Int).SetBytes(workBytes),
		TxCount:     txCount,
		SizeInBytes: sizeInBytes,
	}
}
