// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package script

import (
	"github.com/libsv/go-bk/bec"

	"github.com/crown-blockchain/crownd/wire"
)

// CalcSignatureHash computes the legacy signature hash for the given
// script and transaction input.
func CalcSignatureHash(subScript []byte, hashType SigHashType, tx *wire.MsgTx, idx int) ([]byte, error) {
	pops, err := parseScript(subScript)
	if err != nil {
		return nil, err
	}

	hash := calcSignatureHash(pops, hashType, tx, idx)
	return hash[:], nil
}

// CalcWitnessSigHash computes the BIP 143 signature hash for the given
// script and transaction input.
func CalcWitnessSigHash(subScript []byte, hashType SigHashType, tx *wire.MsgTx, idx int, amt int64) ([]byte, error) {
	return calcWitnessSignatureHash(subScript, hashType, tx, idx, amt)
}

// RawTxInSignature returns the serialized ECDSA signature for the input of
// the given transaction, with the hash type appended.
func RawTxInSignature(tx *wire.MsgTx, idx int, subScript []byte, hashType SigHashType, key *bec.PrivateKey) ([]byte, error) {
	hash, err := CalcSignatureHash(subScript, hashType, tx, idx)
	if err != nil {
		return nil, err
	}

	signature, err := key.Sign(hash)
	if err != nil {
		return nil, scriptError(ErrInternal, "cannot sign tx input: "+err.Error())
	}

	return append(signature.Serialise(), byte(hashType)), nil
}

// SignatureScript creates an input signature script for spending a
// pay-to-pubkey-hash output with the given key.
func SignatureScript(tx *wire.MsgTx, idx int, subscript []byte, hashType SigHashType, privKey *bec.PrivateKey, compress bool) ([]byte, error) {
	sig, err := RawTxInSignature(tx, idx, subscript, hashType, privKey)
	if err != nil {
		return nil, err
	}

	pk := privKey.PubKey()

	var pkData []byte
	if compress {
		pkData = pk.SerialiseCompressed()
	} else {
		pkData = pk.SerialiseUncompressed()
	}

	script := canonicalPush(sig)
	return append(script, canonicalPush(pkData)...), nil
}

// RawTxInWitnessSignature returns the serialized ECDSA signature for the
// input of the given transaction using the BIP 143 sighash, with the hash
// type appended.
func RawTxInWitnessSignature(tx *wire.MsgTx, idx int, amt int64, subScript []byte, hashType SigHashType, key *bec.PrivateKey) ([]byte, error) {
	hash, err := calcWitnessSignatureHash(subScript, hashType, tx, idx, amt)
	if err != nil {
		return nil, err
	}

	signature, err := key.Sign(hash)
	if err != nil {
		return nil, scriptError(ErrInternal, "cannot sign tx input: "+err.Error())
	}

	return append(signature.Serialise(), byte(hashType)), nil
}

// WitnessSignature creates the witness stack for spending a
// pay-to-witness-pubkey-hash output with the given key. The returned
// witness is [signature, pubkey].
func WitnessSignature(tx *wire.MsgTx, idx int, amt int64, subscript []byte, hashType SigHashType, privKey *bec.PrivateKey, compress bool) (wire.TxWitness, error) {
	sig, err := RawTxInWitnessSignature(tx, idx, amt, subscript, hashType, privKey)
	if err != nil {
		return nil, err
	}

	pk := privKey.PubKey()

	var pkData []byte
	if compress {
		pkData = pk.SerialiseCompressed()
	} else {
		pkData = pk.SerialiseUncompressed()
	}

	return wire.TxWitness{sig, pkData}, nil
}
