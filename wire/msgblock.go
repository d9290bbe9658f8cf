// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
)

// maxTxPerBlock is the sanity bound on the number of transactions a block
// message may carry on decode.
const maxTxPerBlock = MaxMessagePayload/10 + 1

// MsgBlock implements the Message interface and represents a crown block
// message. It is used to deliver block and transaction information in
// response to a getdata message for a given block hash.
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*MsgTx
}

// AddTransaction adds a transaction to the message.
func (msg *MsgBlock) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// ClearTransactions removes all transactions from the message.
func (msg *MsgBlock) ClearTransactions() {
	msg.Transactions = make([]*MsgTx, 0, 2048)
}

// Decode decodes r using the protocol encoding into the receiver.
func (msg *MsgBlock) Decode(r io.Reader, pver uint32, enc MessageEncoding) error {
	if err := msg.Header.Decode(r); err != nil {
		return err
	}

	txCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	if txCount > maxTxPerBlock {
		return errors.NewMalformedMessageError("too many transactions to fit into a block [count %d]", txCount)
	}

	msg.Transactions = make([]*MsgTx, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx := MsgTx{}
		if err = tx.Decode(r, pver, enc); err != nil {
			return err
		}
		msg.Transactions = append(msg.Transactions, &tx)
	}

	return nil
}

// Encode encodes the receiver to w using the protocol encoding.
func (msg *MsgBlock) Encode(w io.Writer, pver uint32, enc MessageEncoding) error {
	if err := msg.Header.Serialize(w); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.Transactions))); err != nil {
		return err
	}

	for _, tx := range msg.Transactions {
		if err := tx.Encode(w, pver, enc); err != nil {
			return err
		}
	}

	return nil
}

// Serialize encodes the block to w including witness data, suitable for
// long-term storage.
func (msg *MsgBlock) Serialize(w io.Writer) error {
	return msg.Encode(w, 0, WitnessEncoding)
}

// SerializeNoWitness encodes the block to w with all witness data stripped.
func (msg *MsgBlock) SerializeNoWitness(w io.Writer) error {
	return msg.Encode(w, 0, BaseEncoding)
}

// Deserialize decodes a block from r, accepting witness data when present.
func (msg *MsgBlock) Deserialize(r io.Reader) error {
	return msg.Decode(r, 0, WitnessEncoding)
}

// SerializeSize returns the number of bytes it would take to serialize the
// block including witness data.
func (msg *MsgBlock) SerializeSize() int {
	n := MaxBlockHeaderPayload + VarIntSerializeSize(uint64(len(msg.Transactions)))

	for _, tx := range msg.Transactions {
		n += tx.SerializeSize()
	}

	return n
}

// SerializeSizeStripped returns the serialized size of the block with all
// witness data stripped.
func (msg *MsgBlock) SerializeSizeStripped() int {
	n := MaxBlockHeaderPayload + VarIntSerializeSize(uint64(len(msg.Transactions)))

	for _, tx := range msg.Transactions {
		n += tx.SerializeSizeStripped()
	}

	return n
}

// Command returns the protocol command string for the message.
func (msg *MsgBlock) Command() string {
	return CmdBlock
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.
func (msg *MsgBlock) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}

// BlockHash computes the block identifier hash for this block.
func (msg *MsgBlock) BlockHash() chainhash.Hash {
	return msg.Header.BlockHash()
}

// TxHashes returns a slice of hashes of all of transactions in this block.
func (msg *MsgBlock) TxHashes() []chainhash.Hash {
	hashList := make([]chainhash.Hash, 0, len(msg.Transactions))
	for _, tx := range msg.Transactions {
		hashList = append(hashList, tx.TxHash())
	}

	return hashList
}

// NewMsgBlock returns a new crown block message that conforms to the
// Message interface.
func NewMsgBlock(blockHeader *BlockHeader) *MsgBlock {
	return &MsgBlock{
		Header:       *blockHeader,
		Transactions: make([]*MsgTx, 0, 2048),
	}
}
