// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package script

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"

	"github.com/libsv/go-bk/bec"
	"github.com/libsv/go-bk/crypto"

	"github.com/crown-blockchain/crownd/coin"
	"github.com/crown-blockchain/crownd/wire"
)

// Flags is a bitmask defining additional operations or tests that will be
// done when executing a script pair. The chain engine derives these from
// the soft-fork activation heights of the network.
type Flags uint32

const (
	// ScriptBip16 defines whether the bip16 threshold has passed and
	// therefore pay-to-script hash transactions will be fully validated.
	ScriptBip16 Flags = 1 << iota

	// ScriptVerifyDERSignatures defines that signatures are required to
	// comply with the DER format.
	ScriptVerifyDERSignatures

	// ScriptVerifyStrictEncoding defines that signature scripts and
	// public keys must follow the strict encoding requirements.
	ScriptVerifyStrictEncoding

	// ScriptVerifyLowS defines that signatures are required to comply
	// with the DER format and have an S value <= order / 2.
	ScriptVerifyLowS

	// ScriptVerifyMinimalData defines that scripts only push data using
	// the minimal encoding.
	ScriptVerifyMinimalData

	// ScriptVerifySigPushOnly defines that signature scripts must contain
	// only pushed data.
	ScriptVerifySigPushOnly

	// ScriptVerifyCleanStack defines that the stack must contain only one
	// stack element after evaluation.
	ScriptVerifyCleanStack

	// ScriptVerifyCheckLockTimeVerify defines whether to verify that a
	// transaction output is spendable based on the locktime.
	ScriptVerifyCheckLockTimeVerify

	// ScriptVerifyCheckSequenceVerify defines whether to allow execution
	// pathways of a script to be restricted based on the age of the
	// output being spent.
	ScriptVerifyCheckSequenceVerify

	// ScriptVerifyWitness defines whether to verify with segregated
	// witness rules.
	ScriptVerifyWitness
)

const (
	// MaxStackSize is the maximum combined height of stack and alt stack
	// during execution.
	MaxStackSize = 1000

	// MaxScriptSize is the maximum allowed length of a raw script.
	MaxScriptSize = 10000

	// MaxOpsPerScript is the maximum number of non-push operations per
	// script.
	MaxOpsPerScript = 201

	// MaxScriptElementSize is the maximum number of bytes pushable to the
	// stack.
	MaxScriptElementSize = 520

	// payToWitnessPubKeyHashDataSize and payToWitnessScriptHashDataSize
	// are the sizes of the data pushes of the version 0 witness programs.
	payToWitnessPubKeyHashDataSize = 20
	payToWitnessScriptHashDataSize = 32
)

// condFrame values for the conditional execution stack.
const (
	opCondFalse = 0
	opCondTrue  = 1
	opCondSkip  = 2
)

// Engine is the virtual machine that executes scripts.
type Engine struct {
	flags Flags

	tx     *wire.MsgTx
	txIdx  int
	amount int64

	dstack stack
	astack stack

	condStack   []int
	numOps      int
	lastCodeSep int

	// script is the currently executing raw script; pops is its parsed
	// form.
	script []byte
	pops   []parsedOpcode

	// sigVersion is 0 for legacy execution and 1 for witness execution;
	// it selects the signature hash algorithm.
	sigVersion int

	witness wire.TxWitness
}

func (vm *Engine) hasFlag(flag Flags) bool {
	return vm.flags&flag == flag
}

// isBranchExecuting returns whether the current conditional branch is
// actively executing.
func (vm *Engine) isBranchExecuting() bool {
	if len(vm.condStack) == 0 {
		return true
	}

	return vm.condStack[len(vm.condStack)-1] == opCondTrue
}

// subScript returns the script since the most recent OP_CODESEPARATOR.
func (vm *Engine) subScript() []parsedOpcode {
	return vm.pops[vm.lastCodeSep:]
}

// executeScript runs the given parsed script against the engine state.
// The op count, conditional stack and code separator tracking reset per
// script.
func (vm *Engine) executeScript(script []byte, pops []parsedOpcode) error {
	if len(script) > MaxScriptSize {
		return scriptError(ErrScriptTooBig,
			fmt.Sprintf("script of size %d exceeded the maximum allowed of %d", len(script), MaxScriptSize))
	}

	vm.script = script
	vm.pops = pops
	vm.condStack = vm.condStack[:0]
	vm.numOps = 0
	vm.lastCodeSep = 0

	for i := range pops {
		if err := vm.executeOpcode(i, &pops[i]); err != nil {
			return err
		}

		if vm.dstack.Depth()+vm.astack.Depth() > MaxStackSize {
			return scriptError(ErrStackOverflow,
				fmt.Sprintf("combined stack depth %d exceeds limit %d", vm.dstack.Depth()+vm.astack.Depth(), MaxStackSize))
		}
	}

	if len(vm.condStack) != 0 {
		return scriptError(ErrUnbalancedConditional, "end of script reached in conditional execution")
	}

	return nil
}

// executeOpcode performs execution of one opcode, honouring conditional
// execution state.
func (vm *Engine) executeOpcode(popIdx int, pop *parsedOpcode) error {
	if pop.isDisabled() {
		return scriptError(ErrDisabledOpcode, fmt.Sprintf("attempt to execute disabled opcode %#x", pop.opcode))
	}

	if pop.alwaysIllegal() {
		return scriptError(ErrReservedOpcode, fmt.Sprintf("attempt to execute reserved opcode %#x", pop.opcode))
	}

	// Note that this includes OP_RESERVED which counts as a push operation.
	if pop.opcode > OP_16 {
		vm.numOps++
		if vm.numOps > MaxOpsPerScript {
			return scriptError(ErrTooManyOperations,
				fmt.Sprintf("exceeded max operation limit of %d", MaxOpsPerScript))
		}
	} else if len(pop.data) > MaxScriptElementSize {
		return scriptError(ErrElementTooBig,
			fmt.Sprintf("element size %d exceeds max allowed size %d", len(pop.data), MaxScriptElementSize))
	}

	executing := vm.isBranchExecuting()
	if !executing && !pop.isConditional() {
		return nil
	}

	// Ensure all executed data push opcodes use the minimal encoding when
	// the minimal data verification flag is set.
	if vm.dstack.verifyMinimalData && executing && pop.opcode <= OP_PUSHDATA4 {
		if err := pop.checkMinimalDataPush(); err != nil {
			return err
		}
	}

	return vm.opcodeHandler(popIdx, pop, executing)
}

// opcodeHandler dispatches a single opcode.
func (vm *Engine) opcodeHandler(popIdx int, pop *parsedOpcode, executing bool) error {
	op := pop.opcode

	switch {
	case op == OP_0:
		vm.dstack.PushByteArray(nil)
		return nil

	case op >= OP_DATA_1 && op <= OP_PUSHDATA4:
		vm.dstack.PushByteArray(pop.data)
		return nil

	case op == OP_1NEGATE:
		vm.dstack.PushInt(scriptNum(-1))
		return nil

	case op >= OP_1 && op <= OP_16:
		vm.dstack.PushInt(scriptNum(asSmallInt(op)))
		return nil
	}

	switch op {
	case OP_NOP, OP_NOP1, OP_NOP4, OP_NOP5, OP_NOP6, OP_NOP7, OP_NOP8, OP_NOP9, OP_NOP10:
		return nil

	case OP_IF, OP_NOTIF:
		condVal := opCondFalse
		if executing {
			ok, err := vm.dstack.PopBool()
			if err != nil {
				return err
			}

			if op == OP_NOTIF {
				ok = !ok
			}

			if ok {
				condVal = opCondTrue
			}
		} else {
			condVal = opCondSkip
		}

		vm.condStack = append(vm.condStack, condVal)
		return nil

	case OP_ELSE:
		if len(vm.condStack) == 0 {
			return scriptError(ErrUnbalancedConditional, "encountered opcode OP_ELSE with no matching opcode to begin conditional execution")
		}

		switch vm.condStack[len(vm.condStack)-1] {
		case opCondTrue:
			vm.condStack[len(vm.condStack)-1] = opCondFalse
		case opCondFalse:
			vm.condStack[len(vm.condStack)-1] = opCondTrue
		case opCondSkip:
			// Value doesn't change in skip since it indicates this opcode
			// is nested in a non-executed branch.
		}
		return nil

	case OP_ENDIF:
		if len(vm.condStack) == 0 {
			return scriptError(ErrUnbalancedConditional, "encountered opcode OP_ENDIF with no matching opcode to begin conditional execution")
		}

		vm.condStack = vm.condStack[:len(vm.condStack)-1]
		return nil

	case OP_VERIFY:
		verified, err := vm.dstack.PopBool()
		if err != nil {
			return err
		}
		if !verified {
			return scriptError(ErrVerify, "OP_VERIFY failed")
		}
		return nil

	case OP_RETURN:
		return scriptError(ErrEarlyReturn, "script returned early")

	case OP_CHECKLOCKTIMEVERIFY:
		return vm.opcodeCheckLockTimeVerify()

	case OP_CHECKSEQUENCEVERIFY:
		return vm.opcodeCheckSequenceVerify()

	case OP_TOALTSTACK:
		so, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		vm.astack.PushByteArray(so)
		return nil

	case OP_FROMALTSTACK:
		so, err := vm.astack.PopByteArray()
		if err != nil {
			return err
		}
		vm.dstack.PushByteArray(so)
		return nil

	case OP_2DROP:
		return vm.dstack.DropN(2)
	case OP_2DUP:
		return vm.dstack.DupN(2)
	case OP_3DUP:
		return vm.dstack.DupN(3)
	case OP_2OVER:
		return vm.dstack.OverN(2)
	case OP_2ROT:
		return vm.dstack.RotN(2)
	case OP_2SWAP:
		return vm.dstack.SwapN(2)

	case OP_IFDUP:
		so, err := vm.dstack.PeekByteArray(0)
		if err != nil {
			return err
		}

		if asBool(so) {
			vm.dstack.PushByteArray(so)
		}
		return nil

	case OP_DEPTH:
		vm.dstack.PushInt(scriptNum(vm.dstack.Depth()))
		return nil

	case OP_DROP:
		return vm.dstack.DropN(1)
	case OP_DUP:
		return vm.dstack.DupN(1)
	case OP_NIP:
		return vm.dstack.NipN(1)
	case OP_OVER:
		return vm.dstack.OverN(1)

	case OP_PICK:
		val, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		return vm.dstack.PickN(val.Int32())

	case OP_ROLL:
		val, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		return vm.dstack.RollN(val.Int32())

	case OP_ROT:
		return vm.dstack.RotN(1)
	case OP_SWAP:
		return vm.dstack.SwapN(1)
	case OP_TUCK:
		return vm.dstack.Tuck()

	case OP_SIZE:
		so, err := vm.dstack.PeekByteArray(0)
		if err != nil {
			return err
		}

		vm.dstack.PushInt(scriptNum(len(so)))
		return nil

	case OP_EQUAL, OP_EQUALVERIFY:
		a, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		b, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}

		equal := bytes.Equal(a, b)
		if op == OP_EQUALVERIFY {
			if !equal {
				return scriptError(ErrEqualVerify, "OP_EQUALVERIFY failed")
			}
			return nil
		}

		vm.dstack.PushBool(equal)
		return nil

	case OP_1ADD, OP_1SUB, OP_NEGATE, OP_ABS, OP_NOT, OP_0NOTEQUAL:
		m, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}

		switch op {
		case OP_1ADD:
			vm.dstack.PushInt(m + 1)
		case OP_1SUB:
			vm.dstack.PushInt(m - 1)
		case OP_NEGATE:
			vm.dstack.PushInt(-m)
		case OP_ABS:
			if m < 0 {
				m = -m
			}
			vm.dstack.PushInt(m)
		case OP_NOT:
			vm.dstack.PushBool(m == 0)
		case OP_0NOTEQUAL:
			vm.dstack.PushBool(m != 0)
		}
		return nil

	case OP_ADD, OP_SUB, OP_BOOLAND, OP_BOOLOR, OP_NUMEQUAL, OP_NUMEQUALVERIFY,
		OP_NUMNOTEQUAL, OP_LESSTHAN, OP_GREATERTHAN, OP_LESSTHANOREQUAL,
		OP_GREATERTHANOREQUAL, OP_MIN, OP_MAX:
		v1, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		v0, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}

		switch op {
		case OP_ADD:
			vm.dstack.PushInt(v0 + v1)
		case OP_SUB:
			vm.dstack.PushInt(v0 - v1)
		case OP_BOOLAND:
			vm.dstack.PushBool(v0 != 0 && v1 != 0)
		case OP_BOOLOR:
			vm.dstack.PushBool(v0 != 0 || v1 != 0)
		case OP_NUMEQUAL:
			vm.dstack.PushBool(v0 == v1)
		case OP_NUMEQUALVERIFY:
			if v0 != v1 {
				return scriptError(ErrNumEqualVerify, "OP_NUMEQUALVERIFY failed")
			}
		case OP_NUMNOTEQUAL:
			vm.dstack.PushBool(v0 != v1)
		case OP_LESSTHAN:
			vm.dstack.PushBool(v0 < v1)
		case OP_GREATERTHAN:
			vm.dstack.PushBool(v0 > v1)
		case OP_LESSTHANOREQUAL:
			vm.dstack.PushBool(v0 <= v1)
		case OP_GREATERTHANOREQUAL:
			vm.dstack.PushBool(v0 >= v1)
		case OP_MIN:
			if v0 < v1 {
				vm.dstack.PushInt(v0)
			} else {
				vm.dstack.PushInt(v1)
			}
		case OP_MAX:
			if v0 > v1 {
				vm.dstack.PushInt(v0)
			} else {
				vm.dstack.PushInt(v1)
			}
		}
		return nil

	case OP_WITHIN:
		maxVal, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		minVal, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}
		x, err := vm.dstack.PopInt()
		if err != nil {
			return err
		}

		vm.dstack.PushBool(x >= minVal && x < maxVal)
		return nil

	case OP_RIPEMD160, OP_SHA1, OP_SHA256, OP_HASH160, OP_HASH256:
		buf, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}

		switch op {
		case OP_RIPEMD160:
			vm.dstack.PushByteArray(crypto.Ripemd160(buf))
		case OP_SHA1:
			hash := sha1.Sum(buf)
			vm.dstack.PushByteArray(hash[:])
		case OP_SHA256:
			hash := sha256.Sum256(buf)
			vm.dstack.PushByteArray(hash[:])
		case OP_HASH160:
			vm.dstack.PushByteArray(crypto.Hash160(buf))
		case OP_HASH256:
			vm.dstack.PushByteArray(crypto.Sha256d(buf))
		}
		return nil

	case OP_CODESEPARATOR:
		vm.lastCodeSep = popIdx + 1
		return nil

	case OP_CHECKSIG, OP_CHECKSIGVERIFY:
		return vm.opcodeCheckSig(op)

	case OP_CHECKMULTISIG, OP_CHECKMULTISIGVERIFY:
		return vm.opcodeCheckMultiSig(op)

	case OP_RESERVED, OP_VER, OP_RESERVED1, OP_RESERVED2:
		return scriptError(ErrReservedOpcode, fmt.Sprintf("attempt to execute reserved opcode %#x", op))
	}

	return scriptError(ErrReservedOpcode, fmt.Sprintf("attempt to execute invalid opcode %#x", op))
}

// opcodeCheckLockTimeVerify compares the top item of the data stack to the
// lock-time field of the transaction.
func (vm *Engine) opcodeCheckLockTimeVerify() error {
	if !vm.hasFlag(ScriptVerifyCheckLockTimeVerify) {
		// Treated as OP_NOP2 prior to activation.
		return nil
	}

	// The lock time field of a transaction is either a block height at
	// which the transaction is finalized or a timestamp depending on if
	// the value is before the lock time threshold. In order to support
	// that full range, 5-byte numbers are allowed here since they can
	// represent any uint32.
	so, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}

	lockTime, err := makeScriptNum(so, vm.dstack.verifyMinimalData, 5)
	if err != nil {
		return err
	}

	if lockTime < 0 {
		return scriptError(ErrNegativeLockTime, fmt.Sprintf("negative lock time: %d", lockTime))
	}

	// The lock time field of a transaction and the stack operand must be
	// of the same type.
	txLockTime := scriptNum(vm.tx.LockTime)
	if (txLockTime < LockTimeThreshold) != (lockTime < LockTimeThreshold) {
		return scriptError(ErrUnsatisfiedLockTime,
			fmt.Sprintf("mismatched locktime types -- tx locktime %d, stack locktime %d", txLockTime, lockTime))
	}

	if lockTime > txLockTime {
		return scriptError(ErrUnsatisfiedLockTime,
			fmt.Sprintf("locktime requirement not satisfied -- locktime is greater than the transaction locktime: %d > %d", lockTime, txLockTime))
	}

	// The lock time feature can also be disabled, thereby bypassing
	// OP_CHECKLOCKTIMEVERIFY, if every transaction input has been
	// finalized by setting its sequence to the maximum value.
	if vm.tx.TxIn[vm.txIdx].Sequence == wire.MaxTxInSequenceNum {
		return scriptError(ErrUnsatisfiedLockTime, "transaction input is finalized")
	}

	return nil
}

// LockTimeThreshold is the number below which a lock time is interpreted
// as a block height rather than a timestamp.
const LockTimeThreshold = 500000000

// opcodeCheckSequenceVerify compares the top item of the data stack to the
// sequence field of the input.
func (vm *Engine) opcodeCheckSequenceVerify() error {
	if !vm.hasFlag(ScriptVerifyCheckSequenceVerify) {
		// Treated as OP_NOP3 prior to activation.
		return nil
	}

	so, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}

	stackSequence, err := makeScriptNum(so, vm.dstack.verifyMinimalData, 5)
	if err != nil {
		return err
	}

	if stackSequence < 0 {
		return scriptError(ErrNegativeLockTime, fmt.Sprintf("negative sequence: %d", stackSequence))
	}

	sequence := int64(stackSequence)

	// To provide for future soft-fork extensibility, if the operand has
	// the disabled lock-time flag set, CHECKSEQUENCEVERIFY behaves as a
	// NOP.
	if sequence&int64(wire.SequenceLockTimeDisabled) != 0 {
		return nil
	}

	// Transaction version numbers not high enough to trigger CSV rules
	// fail.
	if vm.tx.Version < 2 {
		return scriptError(ErrUnsatisfiedLockTime,
			fmt.Sprintf("invalid transaction version: %d", vm.tx.Version))
	}

	txSequence := int64(vm.tx.TxIn[vm.txIdx].Sequence)
	if txSequence&int64(wire.SequenceLockTimeDisabled) != 0 {
		return scriptError(ErrUnsatisfiedLockTime,
			fmt.Sprintf("transaction sequence has sequence locktime disabled bit set: 0x%x", txSequence))
	}

	// Mask off non-consensus bits before doing comparisons.
	lockTimeMask := int64(wire.SequenceLockTimeIsSeconds | wire.SequenceLockTimeMask)

	maskedTxSequence := txSequence & lockTimeMask
	maskedStackSequence := sequence & lockTimeMask

	// The masked sequence numbers must be of the same type.
	if (maskedTxSequence < int64(wire.SequenceLockTimeIsSeconds)) !=
		(maskedStackSequence < int64(wire.SequenceLockTimeIsSeconds)) {
		return scriptError(ErrUnsatisfiedLockTime,
			fmt.Sprintf("mismatched sequence types -- tx sequence %d, stack sequence %d", maskedTxSequence, maskedStackSequence))
	}

	if maskedStackSequence > maskedTxSequence {
		return scriptError(ErrUnsatisfiedLockTime,
			fmt.Sprintf("sequence requirement not satisfied -- sequence is greater than the transaction sequence: %d > %d", maskedStackSequence, maskedTxSequence))
	}

	return nil
}

// calcInputSigHash computes the signature hash of the current input for the
// given subscript and hash type, honouring the signature version.
func (vm *Engine) calcInputSigHash(subScript []parsedOpcode, hashType SigHashType) ([]byte, error) {
	if vm.sigVersion == 1 {
		return calcWitnessSignatureHash(unparseScript(subScript), hashType, vm.tx, vm.txIdx, vm.amount)
	}

	hash := calcSignatureHash(subScript, hashType, vm.tx, vm.txIdx)
	return hash[:], nil
}

// opcodeCheckSig processes OP_CHECKSIG and OP_CHECKSIGVERIFY.
func (vm *Engine) opcodeCheckSig(op byte) error {
	pkBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	fullSigBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	// The signature actually needs to be longer than this, but at least 1
	// byte is needed for the hash type below. The full length is checked
	// depending on the script flags and upon parsing the signature.
	if len(fullSigBytes) < 1 {
		vm.dstack.PushBool(false)
		return vm.maybeVerify(op, OP_CHECKSIGVERIFY, ErrCheckSigVerify)
	}

	// Trim off hashtype from the signature string and check if the
	// signature and pubkey conform to the strict encoding requirements
	// depending on the flags.
	hashType := SigHashType(fullSigBytes[len(fullSigBytes)-1])
	sigBytes := fullSigBytes[:len(fullSigBytes)-1]

	if err := vm.checkHashTypeEncoding(hashType); err != nil {
		return err
	}
	if err := vm.checkSignatureEncoding(sigBytes); err != nil {
		return err
	}
	if err := vm.checkPubKeyEncoding(pkBytes); err != nil {
		return err
	}

	// Get script starting from the most recent OP_CODESEPARATOR. For the
	// legacy signature hash the signature itself is deleted from the
	// subscript.
	subScript := vm.subScript()
	if vm.sigVersion == 0 {
		subScript = removeOpcodeByData(subScript, fullSigBytes)
	}

	hash, err := vm.calcInputSigHash(subScript, hashType)
	if err != nil {
		return err
	}

	pubKey, err := bec.ParsePubKey(pkBytes, bec.S256())
	if err != nil {
		vm.dstack.PushBool(false)
		return vm.maybeVerify(op, OP_CHECKSIGVERIFY, ErrCheckSigVerify)
	}

	signature, err := vm.parseSig(sigBytes)
	if err != nil {
		vm.dstack.PushBool(false)
		return vm.maybeVerify(op, OP_CHECKSIGVERIFY, ErrCheckSigVerify)
	}

	valid := signature.Verify(hash, pubKey)
	vm.dstack.PushBool(valid)

	return vm.maybeVerify(op, OP_CHECKSIGVERIFY, ErrCheckSigVerify)
}

// maybeVerify applies VERIFY semantics to the top stack item when op is
// the verifying variant.
func (vm *Engine) maybeVerify(op, verifyOp byte, code ErrorCode) error {
	if op != verifyOp {
		return nil
	}

	verified, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}

	if !verified {
		return scriptError(code, fmt.Sprintf("%s failed", code))
	}

	return nil
}

// opcodeCheckMultiSig processes OP_CHECKMULTISIG and
// OP_CHECKMULTISIGVERIFY.
func (vm *Engine) opcodeCheckMultiSig(op byte) error {
	numKeys, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	numPubKeys := int(numKeys.Int32())
	if numPubKeys < 0 || numPubKeys > MaxPubKeysPerMultiSig {
		return scriptError(ErrInvalidPubKeyCount, fmt.Sprintf("number of pubkeys %d is invalid", numPubKeys))
	}

	vm.numOps += numPubKeys
	if vm.numOps > MaxOpsPerScript {
		return scriptError(ErrTooManyOperations, fmt.Sprintf("exceeded max operation limit of %d", MaxOpsPerScript))
	}

	pubKeys := make([][]byte, 0, numPubKeys)
	for i := 0; i < numPubKeys; i++ {
		pubKey, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		pubKeys = append(pubKeys, pubKey)
	}

	numSigs, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	numSignatures := int(numSigs.Int32())
	if numSignatures < 0 {
		return scriptError(ErrInvalidSignatureCount, fmt.Sprintf("number of signatures %d is negative", numSignatures))
	}
	if numSignatures > numPubKeys {
		return scriptError(ErrInvalidSignatureCount,
			fmt.Sprintf("more signatures than pubkeys: %d > %d", numSignatures, numPubKeys))
	}

	signatures := make([][]byte, 0, numSignatures)
	for i := 0; i < numSignatures; i++ {
		signature, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		signatures = append(signatures, signature)
	}

	// A bug in the original implementation means one more stack value
	// than should be used must be popped.
	if _, err := vm.dstack.PopByteArray(); err != nil {
		return err
	}

	// Get script starting from the most recent OP_CODESEPARATOR.
	subScript := vm.subScript()

	// Remove the signatures since there is no way for a signature to sign
	// itself.
	if vm.sigVersion == 0 {
		for _, sigBytes := range signatures {
			subScript = removeOpcodeByData(subScript, sigBytes)
		}
	}

	success := true
	numPubKeysRemaining := numPubKeys
	numSignaturesRemaining := numSignatures
	sigIdx, pubKeyIdx := 0, 0

	for numSignaturesRemaining > 0 {
		// When there are more signatures than public keys remaining, there
		// is no way to succeed since too many signatures are invalid, so
		// exit early.
		if numSignaturesRemaining > numPubKeysRemaining {
			success = false
			break
		}

		fullSigBytes := signatures[sigIdx]
		pubKeyBytes := pubKeys[pubKeyIdx]

		pubKeyIdx++
		numPubKeysRemaining--

		if len(fullSigBytes) < 1 {
			continue
		}

		hashType := SigHashType(fullSigBytes[len(fullSigBytes)-1])
		sigBytes := fullSigBytes[:len(fullSigBytes)-1]

		if err := vm.checkHashTypeEncoding(hashType); err != nil {
			return err
		}
		if err := vm.checkSignatureEncoding(sigBytes); err != nil {
			return err
		}
		if err := vm.checkPubKeyEncoding(pubKeyBytes); err != nil {
			return err
		}

		signature, err := vm.parseSig(sigBytes)
		if err != nil {
			continue
		}

		pubKey, err := bec.ParsePubKey(pubKeyBytes, bec.S256())
		if err != nil {
			continue
		}

		hash, err := vm.calcInputSigHash(subScript, hashType)
		if err != nil {
			return err
		}

		if signature.Verify(hash, pubKey) {
			sigIdx++
			numSignaturesRemaining--
		}
	}

	vm.dstack.PushBool(success)

	return vm.maybeVerify(op, OP_CHECKMULTISIGVERIFY, ErrCheckMultiSigVerify)
}

// Verify executes the full verification of a transaction input: signature
// script, public key script, pay-to-script-hash redemption and segregated
// witness execution as demanded by the flags. A nil return means the spend
// is authorized.
func Verify(scriptSig, scriptPubKey []byte, witness wire.TxWitness, tx *wire.MsgTx, txIdx int, flags Flags, amount coin.Coin) error {
	if txIdx < 0 || txIdx >= len(tx.TxIn) {
		return scriptError(ErrInvalidIndex, fmt.Sprintf("transaction input index %d is out of range", txIdx))
	}

	vm := &Engine{
		flags:   flags,
		tx:      tx,
		txIdx:   txIdx,
		amount:  int64(amount),
		witness: witness,
	}
	vm.dstack.verifyMinimalData = vm.hasFlag(ScriptVerifyMinimalData)
	vm.astack.verifyMinimalData = vm.dstack.verifyMinimalData

	if vm.hasFlag(ScriptVerifySigPushOnly) && !IsPushOnly(scriptSig) {
		return scriptError(ErrNotPushOnly, "signature script is not push only")
	}

	sigPops, err := parseScript(scriptSig)
	if err != nil {
		return err
	}

	pkPops, err := parseScript(scriptPubKey)
	if err != nil {
		return err
	}

	// The engine stores the scripts in parsed form and the p2sh evaluation
	// needs the stack as it was after the signature script ran.
	isP2SH := vm.hasFlag(ScriptBip16) && isScriptHash(pkPops)
	if isP2SH && !IsPushOnly(scriptSig) {
		return scriptError(ErrNotPushOnly, "pay to script hash is not push only")
	}

	if err := vm.executeScript(scriptSig, sigPops); err != nil {
		return err
	}

	savedStack := make([][]byte, len(vm.dstack.stk))
	copy(savedStack, vm.dstack.stk)

	if err := vm.executeScript(scriptPubKey, pkPops); err != nil {
		return err
	}

	if ok, err := vm.dstack.PopBool(); err != nil {
		return err
	} else if !ok {
		return scriptError(ErrEvalFalse, "script returned false")
	}

	var redeemScript []byte

	if isP2SH {
		if len(savedStack) == 0 {
			return scriptError(ErrEmptyStack, "stack empty for pay to script hash redemption")
		}

		redeemScript = savedStack[len(savedStack)-1]

		redeemPops, err := parseScript(redeemScript)
		if err != nil {
			return err
		}

		vm.dstack.stk = make([][]byte, len(savedStack)-1)
		copy(vm.dstack.stk, savedStack[:len(savedStack)-1])

		if err := vm.executeScript(redeemScript, redeemPops); err != nil {
			return err
		}

		if ok, err := vm.dstack.PopBool(); err != nil {
			return err
		} else if !ok {
			return scriptError(ErrEvalFalse, "pay to script hash redemption returned false")
		}
	}

	if vm.hasFlag(ScriptVerifyWitness) {
		switch {
		case IsWitnessProgram(scriptPubKey):
			// Native witness spends must have an empty signature script.
			if len(scriptSig) != 0 {
				return scriptError(ErrWitnessMalleated, "native witness program cannot also have a signature script")
			}

			version, program, err := ExtractWitnessProgramInfo(scriptPubKey)
			if err != nil {
				return err
			}

			return vm.verifyWitnessProgram(version, program)

		case isP2SH && IsWitnessProgram(redeemScript):
			// The signature script must be exactly a canonical push of the
			// witness program.
			if !bytes.Equal(scriptSig, canonicalPush(redeemScript)) {
				return scriptError(ErrWitnessMalleated, "signature script for witness nested p2sh is not canonical")
			}

			version, program, err := ExtractWitnessProgramInfo(redeemScript)
			if err != nil {
				return err
			}

			return vm.verifyWitnessProgram(version, program)

		default:
			// Witness data is only allowed for witness spends.
			if len(witness) != 0 {
				return scriptError(ErrWitnessUnexpected, "non-witness inputs cannot have a witness")
			}
		}
	}

	if vm.hasFlag(ScriptVerifyCleanStack) && vm.dstack.Depth() != 0 {
		return scriptError(ErrCleanStack, fmt.Sprintf("stack contains %d unexpected items", vm.dstack.Depth()))
	}

	return nil
}

// verifyWitnessProgram validates the stored witness stack against the
// given witness program using the BIP 143 signature hash algorithm.
func (vm *Engine) verifyWitnessProgram(version int, program []byte) error {
	if version != 0 {
		// Unknown witness program versions succeed unconditionally so
		// future soft forks remain soft.
		return nil
	}

	vm.sigVersion = 1

	var (
		witnessScript []byte
		initialStack  [][]byte
	)

	switch len(program) {
	case payToWitnessPubKeyHashDataSize:
		// The witness stack must be exactly [signature, pubkey].
		if len(vm.witness) != 2 {
			return scriptError(ErrWitnessProgramMismatch,
				fmt.Sprintf("should have exactly two items in witness, instead have %v", len(vm.witness)))
		}

		// The implicit script is the standard pay-to-pubkey-hash form with
		// the program as the hash.
		var err error
		witnessScript, err = PayToPubKeyHashScript(program)
		if err != nil {
			return err
		}

		initialStack = vm.witness

	case payToWitnessScriptHashDataSize:
		if len(vm.witness) == 0 {
			return scriptError(ErrWitnessProgramEmpty, "witness program empty passed empty witness")
		}

		witnessScript = vm.witness[len(vm.witness)-1]

		scriptHash := sha256.Sum256(witnessScript)
		if !bytes.Equal(scriptHash[:], program) {
			return scriptError(ErrWitnessProgramMismatch, "witness program hash mismatch")
		}

		initialStack = vm.witness[:len(vm.witness)-1]

	default:
		return scriptError(ErrWitnessProgramWrongLength,
			fmt.Sprintf("length of witness program must be either 20 or 32 bytes, instead is %v bytes", len(program)))
	}

	// All elements within the witness stack must not be greater than the
	// maximum bytes which are allowed to be pushed onto the stack.
	for _, witElement := range initialStack {
		if len(witElement) > MaxScriptElementSize {
			return scriptError(ErrElementTooBig,
				fmt.Sprintf("element size %d exceeds max allowed size %d", len(witElement), MaxScriptElementSize))
		}
	}

	witnessPops, err := parseScript(witnessScript)
	if err != nil {
		return err
	}

	vm.dstack.stk = make([][]byte, len(initialStack))
	copy(vm.dstack.stk, initialStack)
	vm.astack.stk = nil

	if err := vm.executeScript(witnessScript, witnessPops); err != nil {
		return err
	}

	// Witness execution requires a clean stack with a truthy item on top.
	if vm.dstack.Depth() != 1 {
		return scriptError(ErrCleanStack,
			fmt.Sprintf("witness program must have clean stack, instead has %d items", vm.dstack.Depth()))
	}

	if ok, err := vm.dstack.PopBool(); err != nil {
		return err
	} else if !ok {
		return scriptError(ErrEvalFalse, "witness program returned false")
	}

	return nil
}
