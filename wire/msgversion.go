// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"
	"time"

	"github.com/crown-blockchain/crownd/errors"
)

// MaxUserAgentLen is the maximum allowed length for the user agent field in
// a version message.
const MaxUserAgentLen = 256

// DefaultUserAgent for wire.
const DefaultUserAgent = "/crownd:0.1.0/"

// MsgVersion implements the Message interface and represents a crown
// version message. It is used for a peer to advertise itself as soon as an
// outbound connection is made.
type MsgVersion struct {
	// Version of the protocol the node is using.
	ProtocolVersion int32

	// Bitfield which identifies the enabled services.
	Services ServiceFlag

	// Time the message was generated. This is encoded as an int64 on the
	// wire.
	Timestamp time.Time

	// Address of the remote peer.
	AddrYou NetAddress

	// Address of the local peer.
	AddrMe NetAddress

	// Unique value associated with the message that is used to detect self
	// connections.
	Nonce uint64

	// The user agent that generated the message.
	UserAgent string

	// Last block seen by the generator of the version message.
	LastBlock int32

	// Don't announce transactions to the peer.
	DisableRelayTx bool
}

// HasService reports whether the specified service is supported by the peer
// that generated the message.
func (msg *MsgVersion) HasService(service ServiceFlag) bool {
	return msg.Services&service == service
}

// AddService adds a service to the enabled services in the message.
func (msg *MsgVersion) AddService(service ServiceFlag) {
	msg.Services |= service
}

// Decode decodes r using the protocol encoding into the receiver.
func (msg *MsgVersion) Decode(r io.Reader, pver uint32, enc MessageEncoding) error {
	v, err := ReadUint32(r)
	if err != nil {
		return err
	}
	msg.ProtocolVersion = int32(v)

	services, err := ReadUint64(r)
	if err != nil {
		return err
	}
	msg.Services = ServiceFlag(services)

	if msg.Timestamp, err = readTimestamp(r); err != nil {
		return err
	}

	if err = readNetAddress(r, &msg.AddrYou); err != nil {
		return err
	}

	if err = readNetAddress(r, &msg.AddrMe); err != nil {
		return err
	}

	if msg.Nonce, err = ReadUint64(r); err != nil {
		return err
	}

	userAgent, err := ReadVarString(r)
	if err != nil {
		return err
	}
	if err = validateUserAgent(userAgent); err != nil {
		return err
	}
	msg.UserAgent = userAgent

	lastBlock, err := ReadUint32(r)
	if err != nil {
		return err
	}
	msg.LastBlock = int32(lastBlock)

	// The relay flag is optional for backwards compatibility; its absence
	// means relay is enabled.
	var relay [1]byte
	if _, err = io.ReadFull(r, relay[:]); err == nil {
		msg.DisableRelayTx = relay[0] == 0x00
	}

	return nil
}

// Encode encodes the receiver to w using the protocol encoding.
func (msg *MsgVersion) Encode(w io.Writer, pver uint32, enc MessageEncoding) error {
	if err := validateUserAgent(msg.UserAgent); err != nil {
		return err
	}

	if err := WriteUint32(w, uint32(msg.ProtocolVersion)); err != nil {
		return err
	}

	if err := WriteUint64(w, uint64(msg.Services)); err != nil {
		return err
	}

	if err := writeTimestamp(w, msg.Timestamp); err != nil {
		return err
	}

	if err := writeNetAddress(w, &msg.AddrYou); err != nil {
		return err
	}

	if err := writeNetAddress(w, &msg.AddrMe); err != nil {
		return err
	}

	if err := WriteUint64(w, msg.Nonce); err != nil {
		return err
	}

	if err := WriteVarString(w, msg.UserAgent); err != nil {
		return err
	}

	if err := WriteUint32(w, uint32(msg.LastBlock)); err != nil {
		return err
	}

	var relay [1]byte
	if !msg.DisableRelayTx {
		relay[0] = 0x01
	}
	_, err := w.Write(relay[:])
	return err
}

// Command returns the protocol command string for the message.
func (msg *MsgVersion) Command() string {
	return CmdVersion
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.
func (msg *MsgVersion) MaxPayloadLength(pver uint32) uint32 {
	// Protocol version 4 bytes + services 8 bytes + timestamp 8 bytes +
	// remote and local net addresses + nonce 8 bytes + length of user
	// agent (varInt) + max allowed user agent length + last block 4 bytes +
	// relay transactions flag 1 byte.
	return 33 + (maxNetAddressPayload * 2) + MaxVarIntPayload + MaxUserAgentLen
}

func validateUserAgent(userAgent string) error {
	if len(userAgent) > MaxUserAgentLen {
		return errors.NewMalformedMessageError("user agent too long [len %d, max %d]", len(userAgent), MaxUserAgentLen)
	}

	return nil
}

// NewMsgVersion returns a new crown version message that conforms to the
// Message interface.
func NewMsgVersion(me, you *NetAddress, nonce uint64, lastBlock int32) *MsgVersion {
	return &MsgVersion{
		ProtocolVersion: int32(ProtocolVersion),
		Services:        0,
		Timestamp:       time.Unix(time.Now().Unix(), 0),
		AddrYou:         *you,
		AddrMe:          *me,
		Nonce:           nonce,
		UserAgent:       DefaultUserAgent,
		LastBlock:       lastBlock,
		DisableRelayTx:  false,
	}
}
