// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/crown-blockchain/crownd/errors"
)

// MaxBlockHeadersPerMsg is the maximum number of block headers that can be
// in a single crown headers message.
const MaxBlockHeadersPerMsg = 2000

// MsgHeaders implements the Message interface and represents a crown
// headers message. It is used to deliver block header information in
// response to a getheaders message.
type MsgHeaders struct {
	Headers []*BlockHeader
}

// AddBlockHeader adds a new block header to the message.
func (msg *MsgHeaders) AddBlockHeader(bh *BlockHeader) error {
	if len(msg.Headers)+1 > MaxBlockHeadersPerMsg {
		return errors.NewInvalidArgumentError("too many block headers in message [max %d]", MaxBlockHeadersPerMsg)
	}

	msg.Headers = append(msg.Headers, bh)
	return nil
}

// Decode decodes r using the protocol encoding into the receiver.
func (msg *MsgHeaders) Decode(r io.Reader, pver uint32, enc MessageEncoding) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	if count > MaxBlockHeadersPerMsg {
		return errors.NewMalformedMessageError("too many block headers for message [count %d]", count)
	}

	msg.Headers = make([]*BlockHeader, 0, count)
	for i := uint64(0); i < count; i++ {
		bh := BlockHeader{}
		if err = bh.Decode(r); err != nil {
			return err
		}

		txCount, err := ReadVarInt(r)
		if err != nil {
			return err
		}

		// Ensure the transaction count is zero for headers.
		if txCount > 0 {
			return errors.NewMalformedMessageError("block headers may not contain transactions [count %d]", txCount)
		}

		msg.Headers = append(msg.Headers, &bh)
	}

	return nil
}

// Encode encodes the receiver to w using the protocol encoding.
func (msg *MsgHeaders) Encode(w io.Writer, pver uint32, enc MessageEncoding) error {
	count := len(msg.Headers)
	if count > MaxBlockHeadersPerMsg {
		return errors.NewInvalidArgumentError("too many block headers in message [count %d]", count)
	}

	if err := WriteVarInt(w, uint64(count)); err != nil {
		return err
	}

	for _, bh := range msg.Headers {
		if err := bh.Serialize(w); err != nil {
			return err
		}

		// The wire protocol encoding always includes a 0 transaction count.
		if err := WriteVarInt(w, 0); err != nil {
			return err
		}
	}

	return nil
}

// Command returns the protocol command string for the message.
func (msg *MsgHeaders) Command() string {
	return CmdHeaders
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.
func (msg *MsgHeaders) MaxPayloadLength(pver uint32) uint32 {
	// Num headers varint + max allowed headers (header length + 1 byte for
	// the number of transactions which is always 0).
	return MaxVarIntPayload + ((MaxBlockHeaderPayload + 1) * MaxBlockHeadersPerMsg)
}

// NewMsgHeaders returns a new crown headers message that conforms to the
// Message interface.
func NewMsgHeaders() *MsgHeaders {
	return &MsgHeaders{
		Headers: make([]*BlockHeader, 0, MaxBlockHeadersPerMsg),
	}
}
