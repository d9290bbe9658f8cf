// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
)

// MaxBlockHeaderPayload is the maximum number of bytes a block header can
// be: version 4 bytes + prev hash 32 bytes + merkle root 32 bytes +
// timestamp 4 bytes + bits 4 bytes + nonce 4 bytes.
const MaxBlockHeaderPayload = 80

// BlockHeader defines information about a block and is used in the crown
// block (MsgBlock) and headers (MsgHeaders) messages.
type BlockHeader struct {
	// Version of the block. This is not the same as the protocol version.
	Version int32

	// Hash of the previous block header in the blockchain.
	PrevBlock chainhash.Hash

	// Merkle tree reference to hash of all transactions for the block.
	MerkleRoot chainhash.Hash

	// Time the block was created in unix time.
	Timestamp uint32

	// Difficulty target for the block in compact form.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint32
}

// BlockHash computes the block identifier hash for the given block header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, MaxBlockHeaderPayload))
	_ = h.Serialize(buf)

	return chainhash.DoubleHashH(buf.Bytes())
}

// Decode decodes a block header from r using the protocol encoding.
func (h *BlockHeader) Decode(r io.Reader) error {
	v, err := ReadUint32(r)
	if err != nil {
		return err
	}
	h.Version = int32(v)

	if err = readHash(r, &h.PrevBlock); err != nil {
		return err
	}

	if err = readHash(r, &h.MerkleRoot); err != nil {
		return err
	}

	if h.Timestamp, err = ReadUint32(r); err != nil {
		return err
	}

	if h.Bits, err = ReadUint32(r); err != nil {
		return err
	}

	h.Nonce, err = ReadUint32(r)
	return err
}

// Serialize encodes a block header to w using the protocol encoding.
func (h *BlockHeader) Serialize(w io.Writer) error {
	if err := WriteUint32(w, uint32(h.Version)); err != nil {
		return err
	}

	if err := writeHash(w, &h.PrevBlock); err != nil {
		return err
	}

	if err := writeHash(w, &h.MerkleRoot); err != nil {
		return err
	}

	if err := WriteUint32(w, h.Timestamp); err != nil {
		return err
	}

	if err := WriteUint32(w, h.Bits); err != nil {
		return err
	}

	return WriteUint32(w, h.Nonce)
}

// Bytes returns the serialized 80-byte form of the header.
func (h *BlockHeader) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, MaxBlockHeaderPayload))
	_ = h.Serialize(buf)

	return buf.Bytes()
}

// Time returns the header timestamp as a time.Time.
func (h *BlockHeader) Time() time.Time {
	return time.Unix(int64(h.Timestamp), 0)
}

// NewBlockHeader returns a new BlockHeader using the provided fields with
// the timestamp set to the current time, truncated to one second precision.
func NewBlockHeader(version int32, prevHash, merkleRootHash *chainhash.Hash, bits, nonce uint32) *BlockHeader {
	return &BlockHeader{
		Version:    version,
		PrevBlock:  *prevHash,
		MerkleRoot: *merkleRootHash,
		Timestamp:  uint32(time.Now().Unix()),
		Bits:       bits,
		Nonce:      nonce,
	}
}
