// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package script

// MaxPubKeysPerMultiSig is the maximum number of public keys a bare
// multisig output may carry.
const MaxPubKeysPerMultiSig = 20

// ScriptClass is an enumeration for the list of standard types of script
// recognised by the pattern matcher. The wallet signer keys off these.
type ScriptClass byte

const (
	// NonStandardTy indicates the script is none of the recognized forms.
	NonStandardTy ScriptClass = iota

	// PubKeyTy indicates a pay-to-pubkey script.
	PubKeyTy

	// PubKeyHashTy indicates a pay-to-pubkey-hash script.
	PubKeyHashTy

	// ScriptHashTy indicates a pay-to-script-hash script.
	ScriptHashTy

	// MultiSigTy indicates a bare multisig script.
	MultiSigTy

	// WitnessV0PubKeyHashTy indicates a pay-to-witness-pubkey-hash script.
	WitnessV0PubKeyHashTy

	// WitnessV0ScriptHashTy indicates a pay-to-witness-script-hash script.
	WitnessV0ScriptHashTy
)

var scriptClassToName = map[ScriptClass]string{
	NonStandardTy:         "nonstandard",
	PubKeyTy:              "pubkey",
	PubKeyHashTy:          "pubkeyhash",
	ScriptHashTy:          "scripthash",
	MultiSigTy:            "multisig",
	WitnessV0PubKeyHashTy: "witness_v0_keyhash",
	WitnessV0ScriptHashTy: "witness_v0_scripthash",
}

// String implements the Stringer interface by returning the name of the
// enum script class.
func (t ScriptClass) String() string {
	if s, ok := scriptClassToName[t]; ok {
		return s
	}

	return "Invalid"
}

// isPubKey returns whether the script passed is a pay-to-pubkey
// transaction: <33 or 65 byte pubkey> OP_CHECKSIG.
func isPubKey(pops []parsedOpcode) bool {
	return len(pops) == 2 &&
		(len(pops[0].data) == 33 || len(pops[0].data) == 65) &&
		pops[1].opcode == OP_CHECKSIG
}

// isPubKeyHash returns whether the script passed is a pay-to-pubkey-hash
// transaction: OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG.
func isPubKeyHash(pops []parsedOpcode) bool {
	return len(pops) == 5 &&
		pops[0].opcode == OP_DUP &&
		pops[1].opcode == OP_HASH160 &&
		pops[2].opcode == OP_DATA_20 &&
		pops[3].opcode == OP_EQUALVERIFY &&
		pops[4].opcode == OP_CHECKSIG
}

// isScriptHash returns whether the script passed is a pay-to-script-hash
// transaction: OP_HASH160 <20 bytes> OP_EQUAL.
func isScriptHash(pops []parsedOpcode) bool {
	return len(pops) == 3 &&
		pops[0].opcode == OP_HASH160 &&
		pops[1].opcode == OP_DATA_20 &&
		pops[2].opcode == OP_EQUAL
}

// isSmallInt reports whether the opcode pushes a small integer 0 to 16.
func isSmallInt(op byte) bool {
	return op == OP_0 || (op >= OP_1 && op <= OP_16)
}

// asSmallInt returns the integer pushed by a small integer opcode.
func asSmallInt(op byte) int {
	if op == OP_0 {
		return 0
	}

	return int(op - (OP_1 - 1))
}

// isMultiSig returns whether the script passed is a bare multisig
// transaction: OP_m <n pubkeys> OP_n OP_CHECKMULTISIG.
func isMultiSig(pops []parsedOpcode) bool {
	// The absolute minimum is 1 pubkey:
	// OP_1 <pubkey> OP_1 OP_CHECKMULTISIG
	l := len(pops)
	if l < 4 {
		return false
	}

	if !isSmallInt(pops[0].opcode) || !isSmallInt(pops[l-2].opcode) {
		return false
	}

	if pops[l-1].opcode != OP_CHECKMULTISIG {
		return false
	}

	// Verify the number of pubkeys matches the claimed count.
	if l-2-1 != asSmallInt(pops[l-2].opcode) {
		return false
	}

	for _, pop := range pops[1 : l-2] {
		if len(pop.data) != 33 && len(pop.data) != 65 {
			return false
		}
	}

	return true
}

// isWitnessPubKeyHash returns whether the script passed is a
// pay-to-witness-pubkey-hash transaction: OP_0 <20 bytes>.
func isWitnessPubKeyHash(pops []parsedOpcode) bool {
	return len(pops) == 2 &&
		pops[0].opcode == OP_0 &&
		pops[1].opcode == OP_DATA_20
}

// isWitnessScriptHash returns whether the script passed is a
// pay-to-witness-script-hash transaction: OP_0 <32 bytes>.
func isWitnessScriptHash(pops []parsedOpcode) bool {
	return len(pops) == 2 &&
		pops[0].opcode == OP_0 &&
		pops[1].opcode == OP_DATA_32
}

// typeOfScript returns the type of the script being inspected from the
// known standard types.
func typeOfScript(pops []parsedOpcode) ScriptClass {
	switch {
	case isPubKey(pops):
		return PubKeyTy
	case isPubKeyHash(pops):
		return PubKeyHashTy
	case isWitnessPubKeyHash(pops):
		return WitnessV0PubKeyHashTy
	case isScriptHash(pops):
		return ScriptHashTy
	case isWitnessScriptHash(pops):
		return WitnessV0ScriptHashTy
	case isMultiSig(pops):
		return MultiSigTy
	}

	return NonStandardTy
}

// ClassifyScript returns the class of the passed public key script. It is
// a pure function over the script bytes; NonStandardTy is returned when
// the script does not parse.
func ClassifyScript(pkScript []byte) ScriptClass {
	pops, err := parseScript(pkScript)
	if err != nil {
		return NonStandardTy
	}

	return typeOfScript(pops)
}

// IsPayToScriptHash reports whether the script is in the standard
// pay-to-script-hash format.
func IsPayToScriptHash(script []byte) bool {
	pops, err := parseScript(script)
	if err != nil {
		return false
	}

	return isScriptHash(pops)
}

// IsWitnessProgram reports whether the script is a witness program: a
// small integer version followed by a single 2-40 byte data push.
func IsWitnessProgram(script []byte) bool {
	pops, err := parseScript(script)
	if err != nil {
		return false
	}

	return isWitnessProgram(pops)
}

func isWitnessProgram(pops []parsedOpcode) bool {
	return len(pops) == 2 &&
		isSmallInt(pops[0].opcode) &&
		len(pops[1].data) >= 2 && len(pops[1].data) <= 40
}

// ExtractWitnessProgramInfo returns the version and program of a witness
// program script.
func ExtractWitnessProgramInfo(script []byte) (int, []byte, error) {
	pops, err := parseScript(script)
	if err != nil {
		return 0, nil, err
	}

	if !isWitnessProgram(pops) {
		return 0, nil, scriptError(ErrWitnessProgramMismatch, "script is not a witness program")
	}

	return asSmallInt(pops[0].opcode), pops[1].data, nil
}

// IsPushOnly reports whether the script only pushes data.
func IsPushOnly(script []byte) bool {
	pops, err := parseScript(script)
	if err != nil {
		return false
	}

	for _, pop := range pops {
		if pop.opcode > OP_16 {
			return false
		}
	}

	return true
}

// PushedData returns the data pushed by a push-only script, in order.
func PushedData(script []byte) ([][]byte, error) {
	pops, err := parseScript(script)
	if err != nil {
		return nil, err
	}

	var data [][]byte
	for _, pop := range pops {
		if pop.data != nil {
			data = append(data, pop.data)
		} else if pop.opcode == OP_0 {
			data = append(data, nil)
		}
	}

	return data, nil
}

// PayToPubKeyHashScript creates a script paying to the given 20-byte
// pubkey hash.
func PayToPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, scriptError(ErrInternal, "pubkey hash must be 20 bytes")
	}

	script := []byte{OP_DUP, OP_HASH160}
	script = append(script, canonicalPush(pubKeyHash)...)
	return append(script, OP_EQUALVERIFY, OP_CHECKSIG), nil
}

// PayToPubKeyScript creates a script paying to the given serialized
// public key.
func PayToPubKeyScript(serializedPubKey []byte) ([]byte, error) {
	if len(serializedPubKey) != 33 && len(serializedPubKey) != 65 {
		return nil, scriptError(ErrPubKeyFormat, "unsupported public key length")
	}

	return append(canonicalPush(serializedPubKey), OP_CHECKSIG), nil
}

// PayToScriptHashScript creates a script paying to the given 20-byte
// script hash.
func PayToScriptHashScript(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 20 {
		return nil, scriptError(ErrInternal, "script hash must be 20 bytes")
	}

	script := []byte{OP_HASH160}
	script = append(script, canonicalPush(scriptHash)...)
	return append(script, OP_EQUAL), nil
}

// PayToWitnessPubKeyHashScript creates a version 0 witness program paying
// to the given 20-byte pubkey hash.
func PayToWitnessPubKeyHashScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, scriptError(ErrInternal, "witness pubkey hash must be 20 bytes")
	}

	return append([]byte{OP_0}, canonicalPush(pubKeyHash)...), nil
}

// PayToWitnessScriptHashScript creates a version 0 witness program paying
// to the given 32-byte script hash.
func PayToWitnessScriptHashScript(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 32 {
		return nil, scriptError(ErrInternal, "witness script hash must be 32 bytes")
	}

	return append([]byte{OP_0}, canonicalPush(scriptHash)...), nil
}

// MultiSigScript creates a bare multisig script requiring nRequired of the
// given serialized public keys to sign.
func MultiSigScript(pubKeys [][]byte, nRequired int) ([]byte, error) {
	if len(pubKeys) < nRequired || nRequired <= 0 {
		return nil, scriptError(ErrInvalidSignatureCount, "not enough keys for the required signature count")
	}

	if len(pubKeys) > 16 {
		return nil, scriptError(ErrInvalidPubKeyCount, "too many keys for a small int push")
	}

	script := []byte{OP_1 + byte(nRequired-1)}
	for _, key := range pubKeys {
		if len(key) != 33 && len(key) != 65 {
			return nil, scriptError(ErrPubKeyFormat, "unsupported public key length")
		}
		script = append(script, canonicalPush(key)...)
	}

	script = append(script, OP_1+byte(len(pubKeys)-1))
	return append(script, OP_CHECKMULTISIG), nil
}
