// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
)

// MaxBlockLocatorsPerMsg is the maximum number of block locator hashes
// allowed per message.
const MaxBlockLocatorsPerMsg = 500

// BlockLocator is used to help locate a specific block. The algorithm for
// building the block locator is to add the hashes in reverse order until
// the genesis block is reached. In order to keep the list of locator hashes
// to a reasonable number of entries, the step between each entry doubles
// once it is farther than 10 blocks from the tip.
type BlockLocator []*chainhash.Hash

// MsgGetHeaders implements the Message interface and represents a crown
// getheaders message. It is used to request a list of block headers for
// blocks starting after the last known hash in the block locator.
type MsgGetHeaders struct {
	ProtocolVersion    uint32
	BlockLocatorHashes BlockLocator
	HashStop           chainhash.Hash
}

// AddBlockLocatorHash adds a new block locator hash to the message.
func (msg *MsgGetHeaders) AddBlockLocatorHash(hash *chainhash.Hash) error {
	if len(msg.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		return errors.NewInvalidArgumentError("too many block locator hashes in message [max %d]", MaxBlockLocatorsPerMsg)
	}

	msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, hash)
	return nil
}

// Decode decodes r using the protocol encoding into the receiver.
func (msg *MsgGetHeaders) Decode(r io.Reader, pver uint32, enc MessageEncoding) error {
	var err error
	if msg.ProtocolVersion, err = ReadUint32(r); err != nil {
		return err
	}

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	if count > MaxBlockLocatorsPerMsg {
		return errors.NewMalformedMessageError("too many block locator hashes for message [count %d]", count)
	}

	locatorHashes := make([]chainhash.Hash, count)
	msg.BlockLocatorHashes = make(BlockLocator, 0, count)
	for i := uint64(0); i < count; i++ {
		hash := &locatorHashes[i]
		if err = readHash(r, hash); err != nil {
			return err
		}
		msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, hash)
	}

	return readHash(r, &msg.HashStop)
}

// Encode encodes the receiver to w using the protocol encoding.
func (msg *MsgGetHeaders) Encode(w io.Writer, pver uint32, enc MessageEncoding) error {
	count := len(msg.BlockLocatorHashes)
	if count > MaxBlockLocatorsPerMsg {
		return errors.NewInvalidArgumentError("too many block locator hashes for message [count %d]", count)
	}

	if err := WriteUint32(w, msg.ProtocolVersion); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(count)); err != nil {
		return err
	}

	for _, hash := range msg.BlockLocatorHashes {
		if err := writeHash(w, hash); err != nil {
			return err
		}
	}

	return writeHash(w, &msg.HashStop)
}

// Command returns the protocol command string for the message.
func (msg *MsgGetHeaders) Command() string {
	return CmdGetHeaders
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.
func (msg *MsgGetHeaders) MaxPayloadLength(pver uint32) uint32 {
	// Protocol version 4 bytes + num hashes varint + max block locator
	// hashes + hash stop.
	return 4 + MaxVarIntPayload + (MaxBlockLocatorsPerMsg * chainhash.HashSize) + chainhash.HashSize
}

// NewMsgGetHeaders returns a new crown getheaders message that conforms to
// the Message interface.
func NewMsgGetHeaders() *MsgGetHeaders {
	return &MsgGetHeaders{
		BlockLocatorHashes: make(BlockLocator, 0, MaxBlockLocatorsPerMsg),
	}
}
