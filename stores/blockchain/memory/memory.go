// Package memory implements the blockchain store contract with plain maps.
// It backs the chain engine in tests and in throwaway regtest nodes; the
// durability guarantees come from the sql implementation.
package memory

import (
	"context"
	"sync"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/chaincfg"
	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/util"
	"github.com/crown-blockchain/crownd/wire"
)

type headerRecord struct {
	header wire.BlockHeader
	meta   *model.BlockHeaderMeta
}

// Memory is a map-backed Store. A single RWMutex covers all state; the
// engine is the only writer.
type Memory struct {
	mu     sync.RWMutex
	logger ulogger.Logger

	headers  map[chainhash.Hash]*headerRecord
	blocks   map[chainhash.Hash][]byte
	undoData map[chainhash.Hash][]byte
	utxos    map[wire.OutPoint]*model.UTXO
	byHeight map[uint32]chainhash.Hash

	chainHead chainhash.Hash
}

// New creates an in-memory store primed with the genesis block of the
// given network.
func New(logger ulogger.Logger, params *chaincfg.Params) (*Memory, error) {
	m := &Memory{
		logger:   logger,
		headers:  make(map[chainhash.Hash]*headerRecord),
		blocks:   make(map[chainhash.Hash][]byte),
		undoData: make(map[chainhash.Hash][]byte),
		utxos:    make(map[wire.OutPoint]*model.UTXO),
		byHeight: make(map[uint32]chainhash.Hash),
	}

	if err := m.insertGenesis(params); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Memory) insertGenesis(params *chaincfg.Params) error {
	genesis := model.NewBlock(params.GenesisBlock)
	genesis.SetHeight(0)

	hash := *genesis.Hash()

	m.headers[hash] = &headerRecord{
		header: *genesis.Header(),
		meta: &model.BlockHeaderMeta{
			Height:      0,
			ChainWork:   util.CalcBlockWork(genesis.Header().Bits),
			TxCount:     uint64(len(genesis.Transactions())),
			SizeInBytes: uint64(genesis.SerializeSize()),
		},
	}

	raw, err := genesis.Bytes()
	if err != nil {
		return err
	}
	m.blocks[hash] = raw

	// The genesis coinbase enters the UTXO set like any other coinbase, at
	// height 0, and matures after CoinbaseMaturity blocks like any other.
	coinbase := genesis.Transactions()[0]
	coinbaseHash := coinbase.TxHash()
	for i, out := range coinbase.TxOut {
		m.utxos[wire.OutPoint{Hash: coinbaseHash, Index: uint32(i)}] = &model.UTXO{
			Output:   *out,
			Height:   0,
			Coinbase: true,
		}
	}

	m.byHeight[0] = hash
	m.chainHead = hash

	return nil
}

func (m *Memory) PutHeader(ctx context.Context, header *wire.BlockHeader, meta *model.BlockHeaderMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := header.BlockHash()
	if _, exists := m.headers[hash]; exists {
		return errors.NewBlockExistsError("header %s already stored", hash)
	}

	m.headers[hash] = &headerRecord{header: *header, meta: meta}

	return nil
}

func (m *Memory) GetHeader(ctx context.Context, blockHash *chainhash.Hash) (*wire.BlockHeader, *model.BlockHeaderMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.getHeaderLocked(blockHash)
}

func (m *Memory) getHeaderLocked(blockHash *chainhash.Hash) (*wire.BlockHeader, *model.BlockHeaderMeta, error) {
	rec, ok := m.headers[*blockHash]
	if !ok {
		return nil, nil, errors.NewBlockNotFoundError("header %s not found", blockHash)
	}

	header := rec.header
	return &header, rec.meta, nil
}

func (m *Memory) GetChainHead(ctx context.Context) (*wire.BlockHeader, *model.BlockHeaderMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.getHeaderLocked(&m.chainHead)
}

func (m *Memory) SetChainHead(ctx context.Context, blockHash *chainhash.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.headers[*blockHash]; !ok {
		return errors.NewBlockNotFoundError("cannot set chain head to unknown block %s", blockHash)
	}

	m.chainHead = *blockHash

	return nil
}

func (m *Memory) PutBlock(ctx context.Context, block *model.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := *block.Hash()
	if _, ok := m.blocks[hash]; ok {
		return nil
	}

	raw, err := block.Bytes()
	if err != nil {
		return err
	}

	m.blocks[hash] = raw

	return nil
}

func (m *Memory) ApplyBlock(ctx context.Context, block *model.Block, undo *model.UndoBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := *block.Hash()

	if _, ok := m.headers[hash]; !ok {
		return errors.NewBlockNotFoundError("apply: header %s not stored", hash)
	}

	// First pass: verify every mutation is possible so a failure leaves
	// the maps untouched. Outputs created by earlier transactions of the
	// block may be spent by later ones.
	created := make(map[wire.OutPoint]struct{})
	for _, tx := range block.Transactions() {
		if !tx.IsCoinbase() {
			for _, txIn := range tx.TxIn {
				_, inBlock := created[txIn.PreviousOutPoint]
				if _, ok := m.utxos[txIn.PreviousOutPoint]; !ok && !inBlock {
					return errors.NewMissingUTXOError("apply: utxo %s not found", txIn.PreviousOutPoint)
				}
			}
		}

		txHash := tx.TxHash()
		for i := range tx.TxOut {
			created[wire.OutPoint{Hash: txHash, Index: uint32(i)}] = struct{}{}
		}
	}

	for _, tx := range block.Transactions() {
		txHash := tx.TxHash()
		for i := range tx.TxOut {
			op := wire.OutPoint{Hash: txHash, Index: uint32(i)}
			if _, ok := m.utxos[op]; ok {
				return errors.NewDoubleSpendError("apply: output %s already exists unspent", op)
			}
		}
	}

	// Second pass: mutate.
	for _, tx := range block.Transactions() {
		if !tx.IsCoinbase() {
			for _, txIn := range tx.TxIn {
				delete(m.utxos, txIn.PreviousOutPoint)
			}
		}

		txHash := tx.TxHash()
		coinbase := tx.IsCoinbase()
		for i, out := range tx.TxOut {
			m.utxos[wire.OutPoint{Hash: txHash, Index: uint32(i)}] = &model.UTXO{
				Output:   *out,
				Height:   uint32(block.Height()),
				Coinbase: coinbase,
			}
		}
	}

	undoBytes, err := undo.Bytes()
	if err != nil {
		return err
	}
	m.undoData[hash] = undoBytes

	m.byHeight[uint32(block.Height())] = hash
	m.chainHead = hash

	return nil
}

func (m *Memory) RevertBlock(ctx context.Context, block *model.Block) (*model.UndoBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := *block.Hash()

	rec, ok := m.headers[hash]
	if !ok {
		return nil, errors.NewBlockNotFoundError("revert: header %s not stored", hash)
	}

	undoBytes, ok := m.undoData[hash]
	if !ok {
		return nil, errors.NewUndoMissingError("revert: no undo data for block %s", hash)
	}

	undo, err := model.NewUndoBlockFromBytes(undoBytes)
	if err != nil {
		return nil, err
	}

	// Remove the outputs the block created.
	for _, tx := range block.Transactions() {
		txHash := tx.TxHash()
		for i := range tx.TxOut {
			delete(m.utxos, wire.OutPoint{Hash: txHash, Index: uint32(i)})
		}
	}

	// Reinstate the outputs the block consumed.
	for i := range undo.Spent {
		spent := &undo.Spent[i]
		entry := spent.Entry
		m.utxos[spent.OutPoint] = &entry
	}

	delete(m.undoData, hash)
	delete(m.byHeight, rec.meta.Height)

	m.chainHead = rec.header.PrevBlock

	return undo, nil
}

func (m *Memory) GetUTXO(ctx context.Context, outpoint wire.OutPoint) (*model.UTXO, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.utxos[outpoint]
	if !ok {
		return nil, errors.NewNotFoundError("utxo %s not found", outpoint)
	}

	cp := *entry
	return &cp, nil
}

func (m *Memory) HasUTXO(ctx context.Context, outpoint wire.OutPoint) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.utxos[outpoint]
	return ok, nil
}

func (m *Memory) GetBlock(ctx context.Context, blockHash *chainhash.Hash) (*model.Block, error) {
	m.mu.RLock()
	raw, ok := m.blocks[*blockHash]
	rec := m.headers[*blockHash]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.NewBlockNotFoundError("block %s not found", blockHash)
	}

	block, err := model.NewBlockFromBytes(raw)
	if err != nil {
		return nil, err
	}

	if rec != nil {
		block.SetHeight(int32(rec.meta.Height))
	}

	return block, nil
}

func (m *Memory) GetBlockExists(ctx context.Context, blockHash *chainhash.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.headers[*blockHash]
	return ok, nil
}

func (m *Memory) GetHashByHeight(ctx context.Context, height uint32) (*chainhash.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, ok := m.byHeight[height]
	if !ok {
		return nil, errors.NewBlockNotFoundError("no best-chain block at height %d", height)
	}

	cp := hash
	return &cp, nil
}

func (m *Memory) GetBlockLocator(ctx context.Context) (wire.BlockLocator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.headers[m.chainHead]
	if !ok {
		return nil, errors.NewBlockNotFoundError("chain head %s not stored", m.chainHead)
	}

	locator := make(wire.BlockLocator, 0, 32)

	height := int64(rec.meta.Height)
	step := int64(1)

	for height >= 0 {
		hash, ok := m.byHeight[uint32(height)]
		if ok {
			cp := hash
			locator = append(locator, &cp)
		}

		if height == 0 {
			break
		}

		// After the first ten hashes the locator thins geometrically.
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

func (m *Memory) LocateHeaders(ctx context.Context, locator wire.BlockLocator, hashStop *chainhash.Hash, maxHeaders int) ([]*wire.BlockHeader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Find the first locator hash on the best chain. An empty or unknown
	// locator starts just after genesis.
	startHeight := uint32(0)
	for _, hash := range locator {
		rec, ok := m.headers[*hash]
		if !ok {
			continue
		}

		if best, onChain := m.byHeight[rec.meta.Height]; onChain && best == *hash {
			startHeight = rec.meta.Height
			break
		}
	}

	headRec, ok := m.headers[m.chainHead]
	if !ok {
		return nil, errors.NewBlockNotFoundError("chain head %s not stored", m.chainHead)
	}

	headers := make([]*wire.BlockHeader, 0, maxHeaders)
	for height := startHeight + 1; height <= headRec.meta.Height && len(headers) < maxHeaders; height++ {
		hash, ok := m.byHeight[height]
		if !ok {
			break
		}

		rec := m.headers[hash]
		header := rec.header
		headers = append(headers, &header)

		if hashStop != nil && hash == *hashStop {
			break
		}
	}

	return headers, nil
}

func (m *Memory) PruneUndo(ctx context.Context, keepDepth uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	headRec, ok := m.headers[m.chainHead]
	if !ok {
		return errors.NewBlockNotFoundError("chain head %s not stored", m.chainHead)
	}

	if headRec.meta.Height < keepDepth {
		return nil
	}

	cutoff := headRec.meta.Height - keepDepth
	for hash, rec := range m.headers {
		if rec.meta.Height < cutoff {
			delete(m.undoData, hash)
			delete(m.blocks, hash)
		}
	}

	return nil
}

func (m *Memory) Close() error {
	return nil
}
