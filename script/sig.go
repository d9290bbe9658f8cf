// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package script

import (
	"fmt"
	"math/big"

	"github.com/libsv/go-bk/bec"
)

// halfOrder is half of the secp256k1 curve order, used to enforce low-S
// signatures.
var halfOrder = new(big.Int).Rsh(bec.S256().N, 1)

// checkHashTypeEncoding reports whether the passed hashtype adheres to the
// strict encoding requirements.
func (vm *Engine) checkHashTypeEncoding(hashType SigHashType) error {
	if !vm.hasFlag(ScriptVerifyStrictEncoding) {
		return nil
	}

	sigHashType := hashType & ^SigHashAnyOneCanPay
	if sigHashType < SigHashAll || sigHashType > SigHashSingle {
		return scriptError(ErrInvalidSigHashType, fmt.Sprintf("invalid hash type 0x%x", hashType))
	}

	return nil
}

// checkPubKeyEncoding reports whether the passed public key adheres to the
// strict encoding requirements.
func (vm *Engine) checkPubKeyEncoding(pubKey []byte) error {
	if !vm.hasFlag(ScriptVerifyStrictEncoding) {
		return nil
	}

	if len(pubKey) == 33 && (pubKey[0] == 0x02 || pubKey[0] == 0x03) {
		// Compressed
		return nil
	}

	if len(pubKey) == 65 && pubKey[0] == 0x04 {
		// Uncompressed
		return nil
	}

	return scriptError(ErrPubKeyFormat, "unsupported public key type")
}

// checkSignatureEncoding reports whether the passed signature adheres to
// the strict DER encoding requirements when they are enabled.
func (vm *Engine) checkSignatureEncoding(sig []byte) error {
	if !vm.hasFlag(ScriptVerifyDERSignatures) &&
		!vm.hasFlag(ScriptVerifyStrictEncoding) &&
		!vm.hasFlag(ScriptVerifyLowS) {
		return nil
	}

	// The format of a DER encoded signature is as follows:
	//
	// 0x30 <total length> 0x02 <length of R> <R> 0x02 <length of S> <S>
	const (
		asn1SequenceID = 0x30
		asn1IntegerID  = 0x02

		minSigLen = 8
		maxSigLen = 72

		sequenceOffset = 0
		dataLenOffset  = 1
		rTypeOffset    = 2
		rLenOffset     = 3
		rOffset        = 4
	)

	sigLen := len(sig)
	if sigLen < minSigLen {
		return scriptError(ErrSigTooShort, fmt.Sprintf("malformed signature: too short: %d < %d", sigLen, minSigLen))
	}
	if sigLen > maxSigLen {
		return scriptError(ErrSigTooLong, fmt.Sprintf("malformed signature: too long: %d > %d", sigLen, maxSigLen))
	}

	if sig[sequenceOffset] != asn1SequenceID {
		return scriptError(ErrSigDER, "malformed signature: format has wrong type")
	}

	if int(sig[dataLenOffset]) != sigLen-2 {
		return scriptError(ErrSigInvalidDataLen, "malformed signature: bad length")
	}

	rLen := int(sig[rLenOffset])
	sTypeOffset := rOffset + rLen
	sLenOffset := sTypeOffset + 1

	if sTypeOffset >= sigLen {
		return scriptError(ErrSigDER, "malformed signature: S type indicator missing")
	}
	if sLenOffset >= sigLen {
		return scriptError(ErrSigDER, "malformed signature: S length missing")
	}

	sOffset := sLenOffset + 1
	sLen := int(sig[sLenOffset])

	if sOffset+sLen != sigLen {
		return scriptError(ErrSigDER, "malformed signature: invalid S length")
	}

	if sig[rTypeOffset] != asn1IntegerID {
		return scriptError(ErrSigDER, "malformed signature: R integer marker invalid")
	}

	if rLen == 0 {
		return scriptError(ErrSigDER, "malformed signature: R length is zero")
	}
	if sig[rOffset]&0x80 != 0 {
		return scriptError(ErrSigDER, "malformed signature: R value is negative")
	}
	if rLen > 1 && sig[rOffset] == 0x00 && sig[rOffset+1]&0x80 == 0 {
		return scriptError(ErrSigDER, "malformed signature: R value has too much padding")
	}

	if sig[sTypeOffset] != asn1IntegerID {
		return scriptError(ErrSigDER, "malformed signature: S integer marker invalid")
	}

	if sLen == 0 {
		return scriptError(ErrSigDER, "malformed signature: S length is zero")
	}
	if sig[sOffset]&0x80 != 0 {
		return scriptError(ErrSigDER, "malformed signature: S value is negative")
	}
	if sLen > 1 && sig[sOffset] == 0x00 && sig[sOffset+1]&0x80 == 0 {
		return scriptError(ErrSigDER, "malformed signature: S value has too much padding")
	}

	// Verify the S value is <= half the order of the curve when the low-S
	// flag is set. This check prevents a transaction malleability vector.
	if vm.hasFlag(ScriptVerifyLowS) {
		sValue := new(big.Int).SetBytes(sig[sOffset : sOffset+sLen])
		if sValue.Cmp(halfOrder) > 0 {
			return scriptError(ErrSigHighS, "signature is not canonical due to unnecessarily high S value")
		}
	}

	return nil
}

// parseSig parses a signature according to the strictness demanded by the
// engine flags.
func (vm *Engine) parseSig(sigBytes []byte) (*bec.Signature, error) {
	if vm.hasFlag(ScriptVerifyStrictEncoding) || vm.hasFlag(ScriptVerifyDERSignatures) {
		return bec.ParseDERSignature(sigBytes, bec.S256())
	}

	return bec.ParseSignature(sigBytes, bec.S256())
}
