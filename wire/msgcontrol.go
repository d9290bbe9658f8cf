// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
)

// MsgVerAck defines a crown verack message which is sent in reply to a
// version message to complete the handshake. It has no payload.
type MsgVerAck struct{}

func (msg *MsgVerAck) Decode(r io.Reader, pver uint32, enc MessageEncoding) error { return nil }
func (msg *MsgVerAck) Encode(w io.Writer, pver uint32, enc MessageEncoding) error { return nil }
func (msg *MsgVerAck) Command() string                                            { return CmdVerAck }
func (msg *MsgVerAck) MaxPayloadLength(pver uint32) uint32                        { return 0 }

// NewMsgVerAck returns a new crown verack message that conforms to the
// Message interface.
func NewMsgVerAck() *MsgVerAck {
	return &MsgVerAck{}
}

// MsgSendHeaders defines a crown sendheaders message. It requests that the
// receiving peer announces new blocks with a headers message rather than an
// inv message. It has no payload.
type MsgSendHeaders struct{}

func (msg *MsgSendHeaders) Decode(r io.Reader, pver uint32, enc MessageEncoding) error { return nil }
func (msg *MsgSendHeaders) Encode(w io.Writer, pver uint32, enc MessageEncoding) error { return nil }
func (msg *MsgSendHeaders) Command() string                                            { return CmdSendHeaders }
func (msg *MsgSendHeaders) MaxPayloadLength(pver uint32) uint32                        { return 0 }

// NewMsgSendHeaders returns a new crown sendheaders message that conforms
// to the Message interface.
func NewMsgSendHeaders() *MsgSendHeaders {
	return &MsgSendHeaders{}
}

// MsgMemPool implements the Message interface and represents a crown
// mempool message. It is used to request the peer's known unconfirmed
// transactions, which are returned as one or more inv messages. It has no
// payload.
type MsgMemPool struct{}

func (msg *MsgMemPool) Decode(r io.Reader, pver uint32, enc MessageEncoding) error { return nil }
func (msg *MsgMemPool) Encode(w io.Writer, pver uint32, enc MessageEncoding) error { return nil }
func (msg *MsgMemPool) Command() string                                            { return CmdMemPool }
func (msg *MsgMemPool) MaxPayloadLength(pver uint32) uint32                        { return 0 }

// NewMsgMemPool returns a new crown mempool message that conforms to the
// Message interface.
func NewMsgMemPool() *MsgMemPool {
	return &MsgMemPool{}
}

// MsgPing implements the Message interface and represents a crown ping
// message. The nonce is returned in the matching pong so the sender can
// associate replies with requests.
type MsgPing struct {
	Nonce uint64
}

func (msg *MsgPing) Decode(r io.Reader, pver uint32, enc MessageEncoding) error {
	var err error
	msg.Nonce, err = ReadUint64(r)
	return err
}

func (msg *MsgPing) Encode(w io.Writer, pver uint32, enc MessageEncoding) error {
	return WriteUint64(w, msg.Nonce)
}

func (msg *MsgPing) Command() string                     { return CmdPing }
func (msg *MsgPing) MaxPayloadLength(pver uint32) uint32 { return 8 }

// NewMsgPing returns a new crown ping message that conforms to the Message
// interface.
func NewMsgPing(nonce uint64) *MsgPing {
	return &MsgPing{Nonce: nonce}
}

// MsgPong implements the Message interface and represents a crown pong
// message which replies to a ping, echoing its nonce.
type MsgPong struct {
	Nonce uint64
}

func (msg *MsgPong) Decode(r io.Reader, pver uint32, enc MessageEncoding) error {
	var err error
	msg.Nonce, err = ReadUint64(r)
	return err
}

func (msg *MsgPong) Encode(w io.Writer, pver uint32, enc MessageEncoding) error {
	return WriteUint64(w, msg.Nonce)
}

func (msg *MsgPong) Command() string                     { return CmdPong }
func (msg *MsgPong) MaxPayloadLength(pver uint32) uint32 { return 8 }

// NewMsgPong returns a new crown pong message that conforms to the Message
// interface.
func NewMsgPong(nonce uint64) *MsgPong {
	return &MsgPong{Nonce: nonce}
}
