package script

import (
	"bytes"
	"testing"

	"github.com/libsv/go-bk/bec"
	"github.com/libsv/go-bk/crypto"
	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crown-blockchain/crownd/coin"
	"github.com/crown-blockchain/crownd/wire"
)

// spendingTx builds a one-input, one-output transaction spending the given
// outpoint.
func spendingTx(prevOut *wire.OutPoint) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(prevOut, nil, nil))
	tx.AddTxOut(wire.NewTxOut(90000000, []byte{OP_TRUE}))

	return tx
}

func testOutPoint(t *testing.T) *wire.OutPoint {
	t.Helper()

	hash, err := chainhash.NewHashFromStr("a5b1c4f1fda8b8a1b3dd4b8b9a7d2e3f405162738495a6b7c8d9e0f102132435")
	require.NoError(t, err)

	return wire.NewOutPoint(hash, 0)
}

func verifySimple(scriptSig, scriptPubKey []byte, flags Flags) error {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, scriptSig, nil))
	tx.AddTxOut(wire.NewTxOut(0, nil))

	return Verify(scriptSig, scriptPubKey, nil, tx, 0, flags, 0)
}

func TestSimpleScripts(t *testing.T) {
	tests := []struct {
		name         string
		scriptSig    []byte
		scriptPubKey []byte
		wantCode     ErrorCode
		wantOK       bool
	}{
		{"true", nil, []byte{OP_TRUE}, 0, true},
		{"false", nil, []byte{OP_FALSE}, ErrEvalFalse, false},
		{"add", []byte{OP_2, OP_3}, []byte{OP_ADD, OP_5, OP_EQUAL}, 0, true},
		{"sub negative", []byte{OP_2, OP_3}, []byte{OP_SUB, OP_1NEGATE, OP_EQUAL}, 0, true},
		{"if true branch", []byte{OP_1}, []byte{OP_IF, OP_2, OP_ELSE, OP_3, OP_ENDIF, OP_2, OP_EQUAL}, 0, true},
		{"if false branch", []byte{OP_0}, []byte{OP_IF, OP_2, OP_ELSE, OP_3, OP_ENDIF, OP_3, OP_EQUAL}, 0, true},
		{"unbalanced if", nil, []byte{OP_1, OP_IF, OP_1}, ErrUnbalancedConditional, false},
		{"early return", nil, []byte{OP_RETURN, OP_1}, ErrEarlyReturn, false},
		{"verify ok", []byte{OP_1}, []byte{OP_VERIFY, OP_1}, 0, true},
		{"verify fails", []byte{OP_0}, []byte{OP_VERIFY, OP_1}, ErrVerify, false},
		{"empty final stack", []byte{OP_1}, []byte{OP_DROP}, ErrInvalidStackOperation, false},
		{"disabled opcode", nil, []byte{OP_1, OP_1, OP_CAT}, ErrDisabledOpcode, false},
		{"disabled opcode in unexecuted branch", nil,
			[]byte{OP_0, OP_IF, OP_CAT, OP_ENDIF, OP_1}, ErrDisabledOpcode, false},
		{"negative zero is false", []byte{OP_1}, append([]byte{OP_DROP, OP_DATA_1}, 0x80), ErrEvalFalse, false},
		{"depth", []byte{OP_5, OP_6}, []byte{OP_DEPTH, OP_2, OP_EQUALVERIFY, OP_DROP, OP_DROP, OP_1}, 0, true},
		{"within", []byte{OP_5, OP_1, OP_10}, []byte{OP_WITHIN}, 0, true},
		{"min max", []byte{OP_5, OP_3}, []byte{OP_MIN, OP_3, OP_EQUAL}, 0, true},
		{"altstack", []byte{OP_5}, []byte{OP_TOALTSTACK, OP_FROMALTSTACK, OP_5, OP_EQUAL}, 0, true},
		{"hash160", []byte{OP_DATA_1, 0x61}, []byte{OP_HASH160, OP_SIZE, OP_DATA_1, 20, OP_EQUALVERIFY, OP_DROP, OP_1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifySimple(tt.scriptSig, tt.scriptPubKey, 0)
			if tt.wantOK {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, IsErrorCode(err, tt.wantCode), "got %v, want %v", err, tt.wantCode)
		})
	}
}

func TestScriptSizeLimits(t *testing.T) {
	t.Run("script too big", func(t *testing.T) {
		big := bytes.Repeat([]byte{OP_NOP}, MaxScriptSize+1)
		err := verifySimple(nil, big, 0)
		require.True(t, IsErrorCode(err, ErrScriptTooBig))
	})

	t.Run("too many operations", func(t *testing.T) {
		script := append(bytes.Repeat([]byte{OP_NOP}, MaxOpsPerScript+1), OP_1)
		err := verifySimple(nil, script, 0)
		require.True(t, IsErrorCode(err, ErrTooManyOperations))
	})

	t.Run("element too big", func(t *testing.T) {
		data := bytes.Repeat([]byte{0x01}, MaxScriptElementSize+1)
		script := append([]byte{OP_PUSHDATA2, byte(len(data)), byte(len(data) >> 8)}, data...)
		script = append(script, OP_DROP, OP_1)

		err := verifySimple(nil, script, 0)
		require.True(t, IsErrorCode(err, ErrElementTooBig))
	})

	t.Run("stack overflow", func(t *testing.T) {
		script := bytes.Repeat([]byte{OP_1}, MaxStackSize+1)

		err := verifySimple(nil, script, 0)
		require.True(t, IsErrorCode(err, ErrStackOverflow))
	})
}

func TestSigPushOnlyFlag(t *testing.T) {
	sig := []byte{OP_1, OP_1, OP_ADD}

	require.NoError(t, verifySimple(sig, []byte{OP_2, OP_EQUAL}, 0))

	err := verifySimple(sig, []byte{OP_2, OP_EQUAL}, ScriptVerifySigPushOnly)
	require.True(t, IsErrorCode(err, ErrNotPushOnly))
}

func TestP2PKHSpend(t *testing.T) {
	key, err := bec.NewPrivateKey(bec.S256())
	require.NoError(t, err)

	pubKeyHash := crypto.Hash160(key.PubKey().SerialiseCompressed())
	pkScript, err := PayToPubKeyHashScript(pubKeyHash)
	require.NoError(t, err)

	tx := spendingTx(testOutPoint(t))

	sigScript, err := SignatureScript(tx, 0, pkScript, SigHashAll, key, true)
	require.NoError(t, err)
	tx.TxIn[0].SignatureScript = sigScript

	flags := ScriptBip16 | ScriptVerifyDERSignatures | ScriptVerifyStrictEncoding | ScriptVerifyLowS
	require.NoError(t, Verify(sigScript, pkScript, nil, tx, 0, flags, coin.OneCoin))
}

func TestP2PKHSpendWrongKey(t *testing.T) {
	key, err := bec.NewPrivateKey(bec.S256())
	require.NoError(t, err)

	wrongKey, err := bec.NewPrivateKey(bec.S256())
	require.NoError(t, err)

	pubKeyHash := crypto.Hash160(key.PubKey().SerialiseCompressed())
	pkScript, err := PayToPubKeyHashScript(pubKeyHash)
	require.NoError(t, err)

	tx := spendingTx(testOutPoint(t))

	// Sign with the wrong key; the signature script carries that key's
	// own pubkey, whose hash does not match, so the hash comparison fails
	// first.
	sigScript, err := SignatureScript(tx, 0, pkScript, SigHashAll, wrongKey, true)
	require.NoError(t, err)
	tx.TxIn[0].SignatureScript = sigScript

	err = Verify(sigScript, pkScript, nil, tx, 0, 0, coin.OneCoin)
	require.Error(t, err)
}

func TestP2PKSpend(t *testing.T) {
	key, err := bec.NewPrivateKey(bec.S256())
	require.NoError(t, err)

	pkScript, err := PayToPubKeyScript(key.PubKey().SerialiseCompressed())
	require.NoError(t, err)

	tx := spendingTx(testOutPoint(t))

	sig, err := RawTxInSignature(tx, 0, pkScript, SigHashAll, key)
	require.NoError(t, err)

	sigScript := canonicalPush(sig)
	tx.TxIn[0].SignatureScript = sigScript

	require.NoError(t, Verify(sigScript, pkScript, nil, tx, 0, 0, coin.OneCoin))
}

func TestP2SHSpend(t *testing.T) {
	// Redeem script: 2 OP_EQUAL - spendable by pushing 2.
	redeemScript := []byte{OP_2, OP_EQUAL}
	scriptHash := crypto.Hash160(redeemScript)

	pkScript, err := PayToScriptHashScript(scriptHash)
	require.NoError(t, err)

	sigScript := append([]byte{OP_2}, canonicalPush(redeemScript)...)

	tx := spendingTx(testOutPoint(t))
	tx.TxIn[0].SignatureScript = sigScript

	require.NoError(t, Verify(sigScript, pkScript, nil, tx, 0, ScriptBip16, coin.OneCoin))

	// Without the bip16 flag the script hash is treated as a plain script
	// and succeeds trivially as well, but with a mismatched redeem push it
	// must fail under bip16.
	badSigScript := append([]byte{OP_3}, canonicalPush(redeemScript)...)
	tx.TxIn[0].SignatureScript = badSigScript

	err = Verify(badSigScript, pkScript, nil, tx, 0, ScriptBip16, coin.OneCoin)
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrEvalFalse))
}

func TestMultiSigSpend(t *testing.T) {
	var keys []*bec.PrivateKey
	var pubKeys [][]byte

	for i := 0; i < 3; i++ {
		key, err := bec.NewPrivateKey(bec.S256())
		require.NoError(t, err)

		keys = append(keys, key)
		pubKeys = append(pubKeys, key.PubKey().SerialiseCompressed())
	}

	pkScript, err := MultiSigScript(pubKeys, 2)
	require.NoError(t, err)
	require.Equal(t, MultiSigTy, ClassifyScript(pkScript))

	tx := spendingTx(testOutPoint(t))

	sig1, err := RawTxInSignature(tx, 0, pkScript, SigHashAll, keys[0])
	require.NoError(t, err)
	sig3, err := RawTxInSignature(tx, 0, pkScript, SigHashAll, keys[2])
	require.NoError(t, err)

	// Signatures must appear in key order, preceded by the extra dummy
	// element the original implementation consumes.
	sigScript := []byte{OP_0}
	sigScript = append(sigScript, canonicalPush(sig1)...)
	sigScript = append(sigScript, canonicalPush(sig3)...)
	tx.TxIn[0].SignatureScript = sigScript

	require.NoError(t, Verify(sigScript, pkScript, nil, tx, 0, 0, coin.OneCoin))

	// Same signatures in the wrong order must fail.
	badScript := []byte{OP_0}
	badScript = append(badScript, canonicalPush(sig3)...)
	badScript = append(badScript, canonicalPush(sig1)...)
	tx.TxIn[0].SignatureScript = badScript

	require.Error(t, Verify(badScript, pkScript, nil, tx, 0, 0, coin.OneCoin))
}

func TestP2WPKHSpend(t *testing.T) {
	key, err := bec.NewPrivateKey(bec.S256())
	require.NoError(t, err)

	pubKeyHash := crypto.Hash160(key.PubKey().SerialiseCompressed())
	pkScript, err := PayToWitnessPubKeyHashScript(pubKeyHash)
	require.NoError(t, err)

	const amount = int64(coin.OneCoin)

	tx := spendingTx(testOutPoint(t))

	// The script code for a P2WPKH spend is the corresponding P2PKH
	// script.
	scriptCode, err := PayToPubKeyHashScript(pubKeyHash)
	require.NoError(t, err)

	witness, err := WitnessSignature(tx, 0, amount, scriptCode, SigHashAll, key, true)
	require.NoError(t, err)
	tx.TxIn[0].Witness = witness

	flags := ScriptBip16 | ScriptVerifyWitness | ScriptVerifyStrictEncoding
	require.NoError(t, Verify(nil, pkScript, witness, tx, 0, flags, coin.Coin(amount)))

	// A different amount must invalidate the BIP 143 commitment.
	err = Verify(nil, pkScript, witness, tx, 0, flags, coin.Coin(amount)+1)
	require.Error(t, err)

	// A non-empty signature script on a native witness spend is
	// malleation.
	err = Verify([]byte{OP_0}, pkScript, witness, tx, 0, flags, coin.Coin(amount))
	require.Error(t, err)
}

func TestP2WSHSpend(t *testing.T) {
	witnessScript := []byte{OP_2, OP_EQUAL}

	scriptHash := crypto.Sha256(witnessScript)
	pkScript, err := PayToWitnessScriptHashScript(scriptHash)
	require.NoError(t, err)

	witness := wire.TxWitness{{0x02}, witnessScript}

	tx := spendingTx(testOutPoint(t))
	tx.TxIn[0].Witness = witness

	flags := ScriptVerifyWitness
	require.NoError(t, Verify(nil, pkScript, witness, tx, 0, flags, coin.OneCoin))

	// Wrong witness script hash must fail.
	badWitness := wire.TxWitness{{0x02}, {OP_3, OP_EQUAL}}
	tx.TxIn[0].Witness = badWitness

	err = Verify(nil, pkScript, badWitness, tx, 0, flags, coin.OneCoin)
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrWitnessProgramMismatch))
}

func TestWitnessUnexpected(t *testing.T) {
	tx := spendingTx(testOutPoint(t))
	witness := wire.TxWitness{{0x01}}
	tx.TxIn[0].Witness = witness

	err := Verify(nil, []byte{OP_1}, witness, tx, 0, ScriptVerifyWitness, 0)
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrWitnessUnexpected))
}

func TestLowSEnforcement(t *testing.T) {
	key, err := bec.NewPrivateKey(bec.S256())
	require.NoError(t, err)

	pkScript, err := PayToPubKeyScript(key.PubKey().SerialiseCompressed())
	require.NoError(t, err)

	tx := spendingTx(testOutPoint(t))

	sig, err := RawTxInSignature(tx, 0, pkScript, SigHashAll, key)
	require.NoError(t, err)

	sigScript := canonicalPush(sig)
	tx.TxIn[0].SignatureScript = sigScript

	// go-bk produces low-S signatures, so enforcement passes.
	require.NoError(t, Verify(sigScript, pkScript, nil, tx, 0, ScriptVerifyLowS, coin.OneCoin))
}
