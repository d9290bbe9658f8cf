// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"strconv"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
)

const (
	// TxVersion is the current latest supported transaction version.
	TxVersion = 2

	// MaxTxInSequenceNum is the maximum sequence number the sequence field
	// of a transaction input can be.
	MaxTxInSequenceNum uint32 = 0xffffffff

	// MaxPrevOutIndex is the maximum index the index field of a previous
	// outpoint can be.
	MaxPrevOutIndex uint32 = 0xffffffff

	// SequenceLockTimeDisabled is a flag that if set on a transaction
	// input's sequence number, the sequence number will not be interpreted
	// as a relative locktime.
	SequenceLockTimeDisabled uint32 = 1 << 31

	// SequenceLockTimeIsSeconds is a flag that if set on a transaction
	// input's sequence number, the relative locktime has units of 512
	// seconds.
	SequenceLockTimeIsSeconds uint32 = 1 << 22

	// SequenceLockTimeMask is a mask that extracts the relative locktime
	// when masked against the transaction input sequence number.
	SequenceLockTimeMask uint32 = 0x0000ffff

	// TxMarker is the first byte of the marker/flag pair that signals a
	// serialized transaction carries witness data.
	TxMarker = 0x00

	// TxFlag is the second byte of the marker/flag pair.
	TxFlag = 0x01

	// maxTxInPerMessage is the maximum number of transaction inputs a
	// message can plausibly carry, used as a sanity bound on decode.
	maxTxInPerMessage = MaxMessagePayload/41 + 1

	// maxTxOutPerMessage is the equivalent bound on outputs.
	maxTxOutPerMessage = MaxMessagePayload/9 + 1

	// maxWitnessItemsPerInput and maxWitnessItemSize bound witness stacks
	// on decode.
	maxWitnessItemsPerInput = 500000
	maxWitnessItemSize      = 11000
)

// OutPoint defines a crown data type that is used to track previous
// transaction outputs.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPoint returns a new crown transaction outpoint with the provided
// hash and index.
func NewOutPoint(hash *chainhash.Hash, index uint32) *OutPoint {
	return &OutPoint{
		Hash:  *hash,
		Index: index,
	}
}

// String returns the OutPoint in the human-readable form "hash:index".
func (o OutPoint) String() string {
	return o.Hash.String() + ":" + strconv.FormatUint(uint64(o.Index), 10)
}

// TxWitness defines the witness for a TxIn. A witness is interpreted as a
// slice of byte slices, or a stack with one or many elements.
type TxWitness [][]byte

// SerializeSize returns the number of bytes it would take to serialize the
// transaction input's witness.
func (t TxWitness) SerializeSize() int {
	n := VarIntSerializeSize(uint64(len(t)))
	for _, item := range t {
		n += VarIntSerializeSize(uint64(len(item))) + len(item)
	}

	return n
}

// TxIn defines a crown transaction input.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Witness          TxWitness
	Sequence         uint32
}

// NewTxIn returns a new crown transaction input with the provided previous
// outpoint and signature script with a default sequence of
// MaxTxInSequenceNum.
func NewTxIn(prevOut *OutPoint, signatureScript []byte, witness [][]byte) *TxIn {
	return &TxIn{
		PreviousOutPoint: *prevOut,
		SignatureScript:  signatureScript,
		Witness:          witness,
		Sequence:         MaxTxInSequenceNum,
	}
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction input, excluding witness data.
func (t *TxIn) SerializeSize() int {
	// Outpoint Hash 32 bytes + Outpoint Index 4 bytes + Sequence 4 bytes +
	// serialized varint size for the length of SignatureScript +
	// SignatureScript bytes.
	return 40 + VarIntSerializeSize(uint64(len(t.SignatureScript))) + len(t.SignatureScript)
}

// TxOut defines a crown transaction output.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// NewTxOut returns a new crown transaction output with the provided value
// and public key script.
func NewTxOut(value int64, pkScript []byte) *TxOut {
	return &TxOut{
		Value:    value,
		PkScript: pkScript,
	}
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction output.
func (t *TxOut) SerializeSize() int {
	return 8 + VarIntSerializeSize(uint64(len(t.PkScript))) + len(t.PkScript)
}

// MsgTx implements the Message interface and represents a crown tx message.
// It is used to deliver transaction information in response to a getdata
// message for a given transaction.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// AddTxIn adds a transaction input to the message.
func (msg *MsgTx) AddTxIn(ti *TxIn) {
	msg.TxIn = append(msg.TxIn, ti)
}

// AddTxOut adds a transaction output to the message.
func (msg *MsgTx) AddTxOut(to *TxOut) {
	msg.TxOut = append(msg.TxOut, to)
}

// TxHash generates the transaction identifier: the double sha256 of the
// serialized transaction with witness data stripped.
func (msg *MsgTx) TxHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, msg.SerializeSizeStripped()))
	_ = msg.SerializeNoWitness(buf)

	return chainhash.DoubleHashH(buf.Bytes())
}

// WitnessHash generates the wtxid: the double sha256 of the transaction
// including witness data. For transactions without witness data this is
// equal to TxHash.
func (msg *MsgTx) WitnessHash() chainhash.Hash {
	if msg.HasWitness() {
		buf := bytes.NewBuffer(make([]byte, 0, msg.SerializeSize()))
		_ = msg.Serialize(buf)

		return chainhash.DoubleHashH(buf.Bytes())
	}

	return msg.TxHash()
}

// HasWitness reports whether any input carries witness data.
func (msg *MsgTx) HasWitness() bool {
	for _, txIn := range msg.TxIn {
		if len(txIn.Witness) != 0 {
			return true
		}
	}

	return false
}

// IsCoinbase reports whether the transaction's sole input carries the null
// outpoint sentinel.
func (msg *MsgTx) IsCoinbase() bool {
	if len(msg.TxIn) != 1 {
		return false
	}

	prevOut := &msg.TxIn[0].PreviousOutPoint
	return prevOut.Index == MaxPrevOutIndex && prevOut.Hash == chainhash.Hash{}
}

// Copy creates a deep copy of the transaction so the original does not get
// modified when the copy is manipulated.
func (msg *MsgTx) Copy() *MsgTx {
	newTx := MsgTx{
		Version:  msg.Version,
		TxIn:     make([]*TxIn, 0, len(msg.TxIn)),
		TxOut:    make([]*TxOut, 0, len(msg.TxOut)),
		LockTime: msg.LockTime,
	}

	for _, oldTxIn := range msg.TxIn {
		newScript := make([]byte, len(oldTxIn.SignatureScript))
		copy(newScript, oldTxIn.SignatureScript)

		newTxIn := TxIn{
			PreviousOutPoint: oldTxIn.PreviousOutPoint,
			SignatureScript:  newScript,
			Sequence:         oldTxIn.Sequence,
		}

		if len(oldTxIn.Witness) != 0 {
			newTxIn.Witness = make(TxWitness, len(oldTxIn.Witness))
			for i, item := range oldTxIn.Witness {
				newItem := make([]byte, len(item))
				copy(newItem, item)
				newTxIn.Witness[i] = newItem
			}
		}

		newTx.TxIn = append(newTx.TxIn, &newTxIn)
	}

	for _, oldTxOut := range msg.TxOut {
		newScript := make([]byte, len(oldTxOut.PkScript))
		copy(newScript, oldTxOut.PkScript)

		newTx.TxOut = append(newTx.TxOut, &TxOut{
			Value:    oldTxOut.Value,
			PkScript: newScript,
		})
	}

	return &newTx
}

// Decode decodes r using the protocol encoding into the receiver.
func (msg *MsgTx) Decode(r io.Reader, pver uint32, enc MessageEncoding) error {
	version, err := ReadUint32(r)
	if err != nil {
		return err
	}
	msg.Version = int32(version)

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	// A count of zero (meaning no TxIn to the uninitiated) indicates this
	// is a transaction with witness data.
	var flag byte
	if count == TxMarker && enc == WitnessEncoding {
		var b [1]byte
		if _, err = io.ReadFull(r, b[:]); err != nil {
			return err
		}
		flag = b[0]

		if flag != TxFlag {
			return errors.NewMalformedMessageError("witness tx but flag byte is %x", flag)
		}

		if count, err = ReadVarInt(r); err != nil {
			return err
		}
	}

	if count > uint64(maxTxInPerMessage) {
		return errors.NewMalformedMessageError("too many input transactions [count %d]", count)
	}

	msg.TxIn = make([]*TxIn, count)
	for i := uint64(0); i < count; i++ {
		ti := TxIn{}
		if err = readTxIn(r, &ti); err != nil {
			return err
		}
		msg.TxIn[i] = &ti
	}

	count, err = ReadVarInt(r)
	if err != nil {
		return err
	}

	if count > uint64(maxTxOutPerMessage) {
		return errors.NewMalformedMessageError("too many output transactions [count %d]", count)
	}

	msg.TxOut = make([]*TxOut, count)
	for i := uint64(0); i < count; i++ {
		to := TxOut{}
		if err = readTxOut(r, &to); err != nil {
			return err
		}
		msg.TxOut[i] = &to
	}

	if flag != 0 {
		for _, txIn := range msg.TxIn {
			witCount, err := ReadVarInt(r)
			if err != nil {
				return err
			}

			if witCount > maxWitnessItemsPerInput {
				return errors.NewMalformedMessageError("too many witness items [count %d]", witCount)
			}

			txIn.Witness = make(TxWitness, witCount)
			for j := uint64(0); j < witCount; j++ {
				txIn.Witness[j], err = ReadVarBytes(r, maxWitnessItemSize, "script witness item")
				if err != nil {
					return err
				}
			}
		}
	}

	msg.LockTime, err = ReadUint32(r)
	return err
}

// Encode encodes the receiver to w using the protocol encoding.
func (msg *MsgTx) Encode(w io.Writer, pver uint32, enc MessageEncoding) error {
	if err := WriteUint32(w, uint32(msg.Version)); err != nil {
		return err
	}

	doWitness := enc == WitnessEncoding && msg.HasWitness()
	if doWitness {
		if _, err := w.Write([]byte{TxMarker, TxFlag}); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxIn))); err != nil {
		return err
	}

	for _, ti := range msg.TxIn {
		if err := writeTxIn(w, ti); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(msg.TxOut))); err != nil {
		return err
	}

	for _, to := range msg.TxOut {
		if err := writeTxOut(w, to); err != nil {
			return err
		}
	}

	if doWitness {
		for _, ti := range msg.TxIn {
			if err := WriteVarInt(w, uint64(len(ti.Witness))); err != nil {
				return err
			}

			for _, item := range ti.Witness {
				if err := WriteVarBytes(w, item); err != nil {
					return err
				}
			}
		}
	}

	return WriteUint32(w, msg.LockTime)
}

// Serialize encodes the transaction to w using a format suitable for
// long-term storage, including witness data.
func (msg *MsgTx) Serialize(w io.Writer) error {
	return msg.Encode(w, 0, WitnessEncoding)
}

// SerializeNoWitness encodes the transaction to w with witness data
// stripped. This is the txid form.
func (msg *MsgTx) SerializeNoWitness(w io.Writer) error {
	return msg.Encode(w, 0, BaseEncoding)
}

// Deserialize decodes a transaction from r, accepting both witness and
// stripped forms.
func (msg *MsgTx) Deserialize(r io.Reader) error {
	return msg.Decode(r, 0, WitnessEncoding)
}

// SerializeSize returns the number of bytes it would take to serialize the
// transaction, including witness data.
func (msg *MsgTx) SerializeSize() int {
	n := msg.baseSize()

	if msg.HasWitness() {
		// marker and flag
		n += 2
		for _, txIn := range msg.TxIn {
			n += txIn.Witness.SerializeSize()
		}
	}

	return n
}

// SerializeSizeStripped returns the number of bytes it would take to
// serialize the transaction with witness data stripped.
func (msg *MsgTx) SerializeSizeStripped() int {
	return msg.baseSize()
}

func (msg *MsgTx) baseSize() int {
	// Version 4 bytes + LockTime 4 bytes + serialized varint sizes for the
	// number of transaction inputs and outputs.
	n := 8 + VarIntSerializeSize(uint64(len(msg.TxIn))) +
		VarIntSerializeSize(uint64(len(msg.TxOut)))

	for _, txIn := range msg.TxIn {
		n += txIn.SerializeSize()
	}

	for _, txOut := range msg.TxOut {
		n += txOut.SerializeSize()
	}

	return n
}

// Command returns the protocol command string for the message.
func (msg *MsgTx) Command() string {
	return CmdTx
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.
func (msg *MsgTx) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}

// NewMsgTx returns a new crown tx message that conforms to the Message
// interface.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{
		Version: version,
		TxIn:    make([]*TxIn, 0, 8),
		TxOut:   make([]*TxOut, 0, 8),
	}
}

func readOutPoint(r io.Reader, op *OutPoint) error {
	if err := readHash(r, &op.Hash); err != nil {
		return err
	}

	var err error
	op.Index, err = ReadUint32(r)
	return err
}

func writeOutPoint(w io.Writer, op *OutPoint) error {
	if err := writeHash(w, &op.Hash); err != nil {
		return err
	}

	return WriteUint32(w, op.Index)
}

func readTxIn(r io.Reader, ti *TxIn) error {
	if err := readOutPoint(r, &ti.PreviousOutPoint); err != nil {
		return err
	}

	var err error
	if ti.SignatureScript, err = ReadVarBytes(r, MaxMessagePayload, "transaction input signature script"); err != nil {
		return err
	}

	ti.Sequence, err = ReadUint32(r)
	return err
}

func writeTxIn(w io.Writer, ti *TxIn) error {
	if err := writeOutPoint(w, &ti.PreviousOutPoint); err != nil {
		return err
	}

	if err := WriteVarBytes(w, ti.SignatureScript); err != nil {
		return err
	}

	return WriteUint32(w, ti.Sequence)
}

func readTxOut(r io.Reader, to *TxOut) error {
	v, err := ReadUint64(r)
	if err != nil {
		return err
	}
	to.Value = int64(v)

	to.PkScript, err = ReadVarBytes(r, MaxMessagePayload, "transaction output public key script")
	return err
}

func writeTxOut(w io.Writer, to *TxOut) error {
	if err := WriteUint64(w, uint64(to.Value)); err != nil {
		return err
	}

	return WriteVarBytes(w, to.PkScript)
}
