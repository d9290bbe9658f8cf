package model

import (
	"math/big"
	"time"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/coin"
	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/wire"
)

const (
	// MaxFutureBlockTime is how far ahead of network adjusted time a block
	// timestamp may be.
	MaxFutureBlockTime = 2 * time.Hour

	// MinCoinbaseScriptLen and MaxCoinbaseScriptLen bound the coinbase
	// signature script.
	MinCoinbaseScriptLen = 2
	MaxCoinbaseScriptLen = 100
)

// CheckProofOfWork verifies the block header hash is less than or equal to
// the target difficulty claimed in its bits field, and that the claimed
// target is within the valid range for the network.
func CheckProofOfWork(header *wire.BlockHeader, powLimit *big.Int) error {
	target := NBit(header.Bits).CalculateTarget()

	if target.Sign() <= 0 {
		return errors.NewBlockBadPoWError("block target difficulty of %064x is too low", target)
	}

	if target.Cmp(powLimit) > 0 {
		return errors.NewBlockBadPoWError("block target difficulty of %064x is higher than max of %064x", target, powLimit)
	}

	hash := header.BlockHash()
	hashNum := HashToBig(&hash)
	if hashNum.Cmp(target) > 0 {
		return errors.NewBlockBadPoWError("block hash of %064x is higher than expected max of %064x", hashNum, target)
	}

	return nil
}

// CheckTransactionSanity performs context-free checks on a transaction:
// structural bounds, value ranges and duplicate inputs. It never reads
// UTXO state.
func CheckTransactionSanity(tx *wire.MsgTx, maxBlockSize int) error {
	if len(tx.TxIn) == 0 {
		return errors.NewTxInvalidError("transaction has no inputs")
	}

	if len(tx.TxOut) == 0 {
		return errors.NewTxInvalidError("transaction has no outputs")
	}

	if size := tx.SerializeSizeStripped(); size > maxBlockSize {
		return errors.NewTxInvalidError("serialized transaction is too big - got %d, max %d", size, maxBlockSize)
	}

	// Ensure the transaction amounts are in range. The total of all
	// outputs must abide by the same restrictions as individual outputs.
	var totalSatoshi coin.Coin
	for _, txOut := range tx.TxOut {
		satoshi := coin.Coin(txOut.Value)
		if !satoshi.InRange() {
			return errors.NewValueOutOfRangeError("transaction output value of %v is out of range", satoshi)
		}

		var err error
		totalSatoshi, err = totalSatoshi.Add(satoshi)
		if err != nil {
			return errors.NewValueOutOfRangeError("total value of all transaction outputs overflows", err)
		}

		if !totalSatoshi.InRange() {
			return errors.NewValueOutOfRangeError("total value of all transaction outputs is %v which is out of range", totalSatoshi)
		}
	}

	// Check for duplicate transaction inputs.
	existingTxOut := make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	for _, txIn := range tx.TxIn {
		if _, exists := existingTxOut[txIn.PreviousOutPoint]; exists {
			return errors.NewTxInvalidError("transaction contains duplicate inputs")
		}
		existingTxOut[txIn.PreviousOutPoint] = struct{}{}
	}

	if tx.IsCoinbase() {
		slen := len(tx.TxIn[0].SignatureScript)
		if slen < MinCoinbaseScriptLen || slen > MaxCoinbaseScriptLen {
			return errors.NewTxInvalidError("coinbase transaction script length of %d is out of range (min: %d, max: %d)",
				slen, MinCoinbaseScriptLen, MaxCoinbaseScriptLen)
		}
	} else {
		// Previous transaction outputs referenced by the inputs to this
		// transaction must not be null.
		for _, txIn := range tx.TxIn {
			if txIn.PreviousOutPoint.Index == wire.MaxPrevOutIndex &&
				txIn.PreviousOutPoint.Hash == (chainhash.Hash{}) {
				return errors.NewTxInvalidError("transaction input refers to previous output that is null")
			}
		}
	}

	return nil
}

// CheckBlockSanity performs context-free checks on a block: proof of work,
// timestamp bound, coinbase placement, merkle root and structural limits.
// networkAdjustedTime is the caller's time oracle.
func CheckBlockSanity(block *Block, powLimit *big.Int, maxBlockSize int, networkAdjustedTime time.Time) error {
	header := block.Header()

	if err := CheckProofOfWork(header, powLimit); err != nil {
		return err
	}

	if header.Time().After(networkAdjustedTime.Add(MaxFutureBlockTime)) {
		return errors.NewBlockFutureError("block timestamp of %v is too far in the future", header.Time())
	}

	transactions := block.Transactions()
	if len(transactions) == 0 {
		return errors.NewBlockInvalidError("block does not contain any transactions")
	}

	if size := block.MsgBlock().SerializeSizeStripped(); size > maxBlockSize {
		return errors.NewBlockInvalidError("serialized block is too big - got %d, max %d", size, maxBlockSize)
	}

	if !transactions[0].IsCoinbase() {
		return errors.NewBlockInvalidError("first transaction in block is not the coinbase")
	}

	for i, tx := range transactions[1:] {
		if tx.IsCoinbase() {
			return errors.NewBlockInvalidError("block contains second coinbase at index %d", i+1)
		}
	}

	for _, tx := range transactions {
		if err := CheckTransactionSanity(tx, maxBlockSize); err != nil {
			return err
		}
	}

	// Build the merkle tree and ensure the calculated merkle root matches
	// the header commitment.
	calculatedMerkleRoot := CalcMerkleRoot(transactions)
	if header.MerkleRoot != calculatedMerkleRoot {
		return errors.NewBlockBadMerkleError("block merkle root is invalid - header indicates %v, but calculated value is %v",
			header.MerkleRoot, calculatedMerkleRoot)
	}

	// Check for duplicate transactions. This guards against the known
	// merkle tree mutation where the final duplicated transaction pair
	// produces the same root as the unmutated block.
	existingTxHashes := make(map[[32]byte]struct{}, len(transactions))
	for _, tx := range transactions {
		hash := tx.TxHash()
		if _, exists := existingTxHashes[hash]; exists {
			return errors.NewBlockInvalidError("block contains duplicate transaction %v", hash)
		}
		existingTxHashes[hash] = struct{}{}
	}

	return nil
}

// HashToBig converts a chain hash into a big.Int that can be compared
// against a difficulty target. The hash is in little-endian, so the bytes
// are reversed.
func HashToBig(hash *chainhash.Hash) *big.Int {
	// A Hash is in little-endian, but the big package wants the bytes in
	// big-endian, so reverse them.
	buf := *hash
	blen := len(buf)
	for i := 0; i < blen/2; i++ {
		buf[i], buf[blen-1-i] = buf[blen-1-i], buf[i]
	}

	return new(big.Int).SetBytes(buf[:])
}
