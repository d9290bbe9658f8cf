// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/crown-blockchain/crownd/errors"
)

// MsgNotFound defines a crown notfound message which is sent in response
// to a getdata message when any of the requested data is not available.
type MsgNotFound struct {
	InvList []*InvVect
}

// AddInvVect adds an inventory vector to the message.
func (msg *MsgNotFound) AddInvVect(iv *InvVect) error {
	if len(msg.InvList)+1 > MaxInvPerMsg {
		return errors.NewInvalidArgumentError("too many invvect in message [max %d]", MaxInvPerMsg)
	}

	msg.InvList = append(msg.InvList, iv)
	return nil
}

// Decode decodes r using the protocol encoding into the receiver.
func (msg *MsgNotFound) Decode(r io.Reader, pver uint32, enc MessageEncoding) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	if count > MaxInvPerMsg {
		return errors.NewMalformedMessageError("too many invvect in message [%d]", count)
	}

	msg.InvList = make([]*InvVect, 0, count)
	for i := uint64(0); i < count; i++ {
		iv := InvVect{}
		if err := readInvVect(r, &iv); err != nil {
			return err
		}
		msg.InvList = append(msg.InvList, &iv)
	}

	return nil
}

// Encode encodes the receiver to w using the protocol encoding.
func (msg *MsgNotFound) Encode(w io.Writer, pver uint32, enc MessageEncoding) error {
	count := len(msg.InvList)
	if count > MaxInvPerMsg {
		return errors.NewInvalidArgumentError("too many invvect in message [%d]", count)
	}

	if err := WriteVarInt(w, uint64(count)); err != nil {
		return err
	}

	for _, iv := range msg.InvList {
		if err := writeInvVect(w, iv); err != nil {
			return err
		}
	}

	return nil
}

// Command returns the protocol command string for the message.
func (msg *MsgNotFound) Command() string {
	return CmdNotFound
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.
func (msg *MsgNotFound) MaxPayloadLength(pver uint32) uint32 {
	return MaxVarIntPayload + (MaxInvPerMsg * maxInvVectPayload)
}

// NewMsgNotFound returns a new crown notfound message that conforms to the
// Message interface.
func NewMsgNotFound() *MsgNotFound {
	return &MsgNotFound{
		InvList: make([]*InvVect, 0, 128),
	}
}
