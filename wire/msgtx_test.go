package wire

import (
	"bytes"
	"testing"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTx(t *testing.T) *MsgTx {
	t.Helper()

	prevHash, err := chainhash.NewHashFromStr("a5b1c4f1fda8b8a1b3dd4b8b9a7d2e3f405162738495a6b7c8d9e0f102132435")
	require.NoError(t, err)

	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(&TxIn{
		PreviousOutPoint: *NewOutPoint(prevHash, 1),
		SignatureScript:  []byte{0x04, 0x31, 0xdc, 0x00, 0x1b},
		Sequence:         MaxTxInSequenceNum,
	})
	tx.AddTxOut(NewTxOut(100000000, []byte{0x76, 0xa9, 0x14, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14, 0x88, 0xac}))
	tx.LockTime = 0

	return tx
}

func TestTxSerializeRoundTrip(t *testing.T) {
	tx := testTx(t)

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	assert.Equal(t, tx.SerializeSize(), buf.Len())

	var decoded MsgTx
	require.NoError(t, decoded.Deserialize(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, tx, &decoded)
}

func TestTxWitnessSerializeRoundTrip(t *testing.T) {
	tx := testTx(t)
	tx.TxIn[0].Witness = TxWitness{
		bytes.Repeat([]byte{0x01}, 71),
		bytes.Repeat([]byte{0x02}, 33),
	}

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	assert.Equal(t, tx.SerializeSize(), buf.Len())

	// witness form starts with version then the marker/flag pair
	raw := buf.Bytes()
	assert.Equal(t, byte(TxMarker), raw[4])
	assert.Equal(t, byte(TxFlag), raw[5])

	var decoded MsgTx
	require.NoError(t, decoded.Deserialize(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, tx, &decoded)

	// stripped form must not contain the witness
	var stripped bytes.Buffer
	require.NoError(t, tx.SerializeNoWitness(&stripped))
	assert.Equal(t, tx.SerializeSizeStripped(), stripped.Len())
	assert.Less(t, stripped.Len(), buf.Len())
}

func TestTxHashIgnoresWitness(t *testing.T) {
	tx := testTx(t)
	baseHash := tx.TxHash()
	baseWitnessHash := tx.WitnessHash()

	// without witness data both identifiers agree
	assert.Equal(t, baseHash, baseWitnessHash)

	tx.TxIn[0].Witness = TxWitness{{0x01, 0x02}}
	assert.Equal(t, baseHash, tx.TxHash())
	assert.NotEqual(t, baseHash, tx.WitnessHash())
}

func TestIsCoinbase(t *testing.T) {
	coinbase := NewMsgTx(TxVersion)
	coinbase.AddTxIn(NewTxIn(NewOutPoint(&chainhash.Hash{}, MaxPrevOutIndex), []byte{0x51, 0x52}, nil))
	coinbase.AddTxOut(NewTxOut(5000000000, []byte{0x51}))

	assert.True(t, coinbase.IsCoinbase())
	assert.False(t, testTx(t).IsCoinbase())
}

func TestTxCopyIsDeep(t *testing.T) {
	tx := testTx(t)
	tx.TxIn[0].Witness = TxWitness{{0xaa}}

	cp := tx.Copy()
	require.Equal(t, tx, cp)

	cp.TxIn[0].SignatureScript[0] = 0xff
	cp.TxIn[0].Witness[0][0] = 0xff
	cp.TxOut[0].PkScript[0] = 0xff

	assert.Equal(t, byte(0x04), tx.TxIn[0].SignatureScript[0])
	assert.Equal(t, byte(0xaa), tx.TxIn[0].Witness[0][0])
	assert.Equal(t, byte(0x76), tx.TxOut[0].PkScript[0])
}

func TestBlockSerializeRoundTrip(t *testing.T) {
	prevHash, err := chainhash.NewHashFromStr("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f")
	require.NoError(t, err)

	header := NewBlockHeader(2, prevHash, prevHash, 0x207fffff, 12345)
	header.Timestamp = 1600000000

	block := NewMsgBlock(header)
	block.AddTransaction(testTx(t))

	var buf bytes.Buffer
	require.NoError(t, block.Serialize(&buf))
	assert.Equal(t, block.SerializeSize(), buf.Len())

	var decoded MsgBlock
	require.NoError(t, decoded.Deserialize(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, block, &decoded)

	assert.Equal(t, header.BlockHash(), decoded.BlockHash())
	assert.Len(t, decoded.TxHashes(), 1)
}

func TestBlockHeaderIs80Bytes(t *testing.T) {
	header := NewBlockHeader(1, &chainhash.Hash{}, &chainhash.Hash{}, 0x1d00ffff, 0)
	assert.Len(t, header.Bytes(), MaxBlockHeaderPayload)

	var decoded BlockHeader
	require.NoError(t, decoded.Decode(bytes.NewReader(header.Bytes())))
	assert.Equal(t, *header, decoded)
}
