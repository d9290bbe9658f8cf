// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package script

import (
	"bytes"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/wire"
)

// SigHashType represents hash type bits at the end of a signature.
type SigHashType uint32

// Hash type bits from the end of a signature.
const (
	SigHashAll          SigHashType = 0x1
	SigHashNone         SigHashType = 0x2
	SigHashSingle       SigHashType = 0x3
	SigHashAnyOneCanPay SigHashType = 0x80

	// sigHashMask defines the number of bits of the hash type which are
	// used to identify which outputs are signed.
	sigHashMask = 0x1f
)

// removeOpcode returns the script minus any opcodes of the given kind.
func removeOpcode(pops []parsedOpcode, opcode byte) []parsedOpcode {
	retScript := make([]parsedOpcode, 0, len(pops))
	for _, pop := range pops {
		if pop.opcode != opcode {
			retScript = append(retScript, pop)
		}
	}

	return retScript
}

// removeOpcodeByData returns the script minus any data pushes equal to the
// passed data. Used by the legacy signature hash to delete the signature
// itself from the subscript.
func removeOpcodeByData(pops []parsedOpcode, data []byte) []parsedOpcode {
	retScript := make([]parsedOpcode, 0, len(pops))
	for _, pop := range pops {
		if !bytes.Equal(pop.data, data) {
			retScript = append(retScript, pop)
		}
	}

	return retScript
}

// calcSignatureHash computes the legacy signature hash for the transaction
// input, committing to the given subscript and hash type.
func calcSignatureHash(subScript []parsedOpcode, hashType SigHashType, tx *wire.MsgTx, idx int) chainhash.Hash {
	// The SigHashSingle signature type signs only the corresponding input
	// and output (the output with the same index number as the input).
	//
	// Since transactions can have more inputs than outputs, this means it
	// is improper to use SigHashSingle on input indices that don't have a
	// corresponding output. The original implementation returns 1 as the
	// signature hash in that case, and that behaviour is consensus.
	if hashType&sigHashMask == SigHashSingle && idx >= len(tx.TxOut) {
		var hash chainhash.Hash
		hash[0] = 0x01
		return hash
	}

	// Remove all instances of OP_CODESEPARATOR from the script.
	subScript = removeOpcode(subScript, OP_CODESEPARATOR)

	// Make a shallow copy of the transaction, zeroing out the script for
	// all inputs that are not currently being processed.
	txCopy := shallowCopyTx(tx)
	for i := range txCopy.TxIn {
		if i == idx {
			txCopy.TxIn[idx].SignatureScript = unparseScript(subScript)
		} else {
			txCopy.TxIn[i].SignatureScript = nil
		}
	}

	switch hashType & sigHashMask {
	case SigHashNone:
		txCopy.TxOut = txCopy.TxOut[0:0] // Empty slice.
		for i := range txCopy.TxIn {
			if i != idx {
				txCopy.TxIn[i].Sequence = 0
			}
		}

	case SigHashSingle:
		// Resize output array to up to and including requested index.
		txCopy.TxOut = txCopy.TxOut[:idx+1]

		// All but current output get zeroed out.
		for i := 0; i < idx; i++ {
			txCopy.TxOut[i].Value = -1
			txCopy.TxOut[i].PkScript = nil
		}

		// Sequence on all other inputs is 0, too.
		for i := range txCopy.TxIn {
			if i != idx {
				txCopy.TxIn[i].Sequence = 0
			}
		}

	default:
		// Consensus treats undefined hashtypes like normal SigHashAll for
		// purposes of hash generation.
		fallthrough
	case SigHashAll:
		// Nothing special here.
	}

	if hashType&SigHashAnyOneCanPay != 0 {
		txCopy.TxIn = txCopy.TxIn[idx : idx+1]
	}

	// The final hash is the double sha256 of both the serialized modified
	// transaction and the hash type (encoded as a 4-byte little-endian
	// value) appended.
	var buf bytes.Buffer
	_ = txCopy.SerializeNoWitness(&buf)
	_ = wire.WriteUint32(&buf, uint32(hashType))

	return chainhash.DoubleHashH(buf.Bytes())
}

// shallowCopyTx creates a shallow copy of the transaction for use when
// calculating the signature hash. It is used over the Copy method on the
// transaction itself since that is a deep copy and therefore does more
// work and allocates much more space than needed.
func shallowCopyTx(tx *wire.MsgTx) wire.MsgTx {
	txCopy := wire.MsgTx{
		Version:  tx.Version,
		TxIn:     make([]*wire.TxIn, len(tx.TxIn)),
		TxOut:    make([]*wire.TxOut, len(tx.TxOut)),
		LockTime: tx.LockTime,
	}

	txIns := make([]wire.TxIn, len(tx.TxIn))
	for i, oldTxIn := range tx.TxIn {
		txIns[i] = *oldTxIn
		txCopy.TxIn[i] = &txIns[i]
	}

	txOuts := make([]wire.TxOut, len(tx.TxOut))
	for i, oldTxOut := range tx.TxOut {
		txOuts[i] = *oldTxOut
		txCopy.TxOut[i] = &txOuts[i]
	}

	return txCopy
}

// calcHashPrevOuts calculates a single hash of all the previous outputs
// referenced within the passed transaction. This is part of the BIP 143
// sighash midstate that lets each input reuse the aggregate commitment.
func calcHashPrevOuts(tx *wire.MsgTx) chainhash.Hash {
	var b bytes.Buffer
	for _, in := range tx.TxIn {
		b.Write(in.PreviousOutPoint.Hash[:])
		_ = wire.WriteUint32(&b, in.PreviousOutPoint.Index)
	}

	return chainhash.DoubleHashH(b.Bytes())
}

// calcHashSequence computes an aggregated hash of each of the sequence
// numbers within the inputs of the passed transaction.
func calcHashSequence(tx *wire.MsgTx) chainhash.Hash {
	var b bytes.Buffer
	for _, in := range tx.TxIn {
		_ = wire.WriteUint32(&b, in.Sequence)
	}

	return chainhash.DoubleHashH(b.Bytes())
}

// calcHashOutputs computes a hash digest of all outputs created by the
// transaction.
func calcHashOutputs(tx *wire.MsgTx) chainhash.Hash {
	var b bytes.Buffer
	for _, out := range tx.TxOut {
		_ = wire.WriteUint64(&b, uint64(out.Value))
		_ = wire.WriteVarBytes(&b, out.PkScript)
	}

	return chainhash.DoubleHashH(b.Bytes())
}

// calcWitnessSignatureHash computes the sighash digest of the
// transaction's input using the new, optimized digest calculation
// algorithm defined in BIP0143. This function makes use of pre-calculated
// sighash fragments, so the amount of data hashed stays constant per
// input. The digest commits to the amount and outpoint of the spent
// output and the sequence of the input individually.
func calcWitnessSignatureHash(subScript []byte, hashType SigHashType, tx *wire.MsgTx, idx int, amt int64) ([]byte, error) {
	if idx > len(tx.TxIn)-1 {
		return nil, scriptError(ErrInvalidIndex, "index out of range for transaction inputs")
	}

	var sigHash bytes.Buffer

	_ = wire.WriteUint32(&sigHash, uint32(tx.Version))

	var zeroHash chainhash.Hash

	// If anyone can pay isn't active, then we can use the cached
	// hashPrevOuts, otherwise we just write zeroes for the prev outs.
	if hashType&SigHashAnyOneCanPay == 0 {
		prevOuts := calcHashPrevOuts(tx)
		sigHash.Write(prevOuts[:])
	} else {
		sigHash.Write(zeroHash[:])
	}

	// If the sighash isn't anyone can pay, single, or none, the use the
	// cached hash sequences, otherwise write all zeroes for the
	// hashSequence.
	if hashType&SigHashAnyOneCanPay == 0 &&
		hashType&sigHashMask != SigHashSingle &&
		hashType&sigHashMask != SigHashNone {
		sequence := calcHashSequence(tx)
		sigHash.Write(sequence[:])
	} else {
		sigHash.Write(zeroHash[:])
	}

	txIn := tx.TxIn[idx]

	// Next, write the outpoint being spent.
	sigHash.Write(txIn.PreviousOutPoint.Hash[:])
	_ = wire.WriteUint32(&sigHash, txIn.PreviousOutPoint.Index)

	// The script code is written with a var-byte prefix.
	_ = wire.WriteVarBytes(&sigHash, subScript)

	// Next, add the input amount, and sequence number of the input being
	// signed.
	_ = wire.WriteUint64(&sigHash, uint64(amt))
	_ = wire.WriteUint32(&sigHash, txIn.Sequence)

	// If the current signature mode isn't single, or none, then we can
	// re-use the pre-generated hashoutputs sighash fragment. Otherwise,
	// we'll serialize and add only the target output index to the signature
	// pre-image.
	switch {
	case hashType&sigHashMask != SigHashSingle && hashType&sigHashMask != SigHashNone:
		outputs := calcHashOutputs(tx)
		sigHash.Write(outputs[:])
	case hashType&sigHashMask == SigHashSingle && idx < len(tx.TxOut):
		var b bytes.Buffer
		_ = wire.WriteUint64(&b, uint64(tx.TxOut[idx].Value))
		_ = wire.WriteVarBytes(&b, tx.TxOut[idx].PkScript)

		h := chainhash.DoubleHashH(b.Bytes())
		sigHash.Write(h[:])
	default:
		sigHash.Write(zeroHash[:])
	}

	// Finally, write out the transaction's locktime, and the sig hash
	// type.
	_ = wire.WriteUint32(&sigHash, tx.LockTime)
	_ = wire.WriteUint32(&sigHash, uint32(hashType))

	hash := chainhash.DoubleHashH(sigHash.Bytes())
	return hash[:], nil
}
