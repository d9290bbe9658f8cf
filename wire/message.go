// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
)

// MessageHeaderSize is the number of bytes in a message header: magic 4
// bytes + command 12 bytes + payload length 4 bytes + checksum 4 bytes.
const MessageHeaderSize = 24

// CommandSize is the fixed size of all commands in the common message
// header, shorter commands are zero padded.
const CommandSize = 12

// Commands used in message headers which describe the type of message.
const (
	CmdVersion     = "version"
	CmdVerAck      = "verack"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdInv         = "inv"
	CmdGetData     = "getdata"
	CmdGetHeaders  = "getheaders"
	CmdHeaders     = "headers"
	CmdBlock       = "block"
	CmdTx          = "tx"
	CmdMemPool     = "mempool"
	CmdNotFound    = "notfound"
	CmdReject      = "reject"
	CmdSendHeaders = "sendheaders"
)

// MessageEncoding represents the wire message encoding format to be used.
type MessageEncoding uint32

const (
	// BaseEncoding encodes all messages in the default format specified
	// for the wire protocol.
	BaseEncoding MessageEncoding = 1 << iota

	// WitnessEncoding encodes all messages other than transaction
	// messages using the default encoding while transactions are encoded
	// with the witness format.
	WitnessEncoding
)

// Message is the interface implemented by all wire protocol messages.
type Message interface {
	Decode(io.Reader, uint32, MessageEncoding) error
	Encode(io.Writer, uint32, MessageEncoding) error
	Command() string
	MaxPayloadLength(uint32) uint32
}

// makeEmptyMessage creates a message of the appropriate concrete type based
// on the command.
func makeEmptyMessage(command string) (Message, error) {
	var msg Message

	switch command {
	case CmdVersion:
		msg = &MsgVersion{}
	case CmdVerAck:
		msg = &MsgVerAck{}
	case CmdPing:
		msg = &MsgPing{}
	case CmdPong:
		msg = &MsgPong{}
	case CmdInv:
		msg = &MsgInv{}
	case CmdGetData:
		msg = &MsgGetData{}
	case CmdGetHeaders:
		msg = &MsgGetHeaders{}
	case CmdHeaders:
		msg = &MsgHeaders{}
	case CmdBlock:
		msg = &MsgBlock{}
	case CmdTx:
		msg = &MsgTx{}
	case CmdMemPool:
		msg = &MsgMemPool{}
	case CmdNotFound:
		msg = &MsgNotFound{}
	case CmdReject:
		msg = &MsgReject{}
	case CmdSendHeaders:
		msg = &MsgSendHeaders{}
	default:
		return nil, errors.NewMalformedMessageError("unhandled command [%s]", command)
	}

	return msg, nil
}

// messageHeader defines the header structure for all protocol messages.
type messageHeader struct {
	magic    CrownNet
	command  string
	length   uint32
	checksum [4]byte
}

func readMessageHeader(r io.Reader) (*messageHeader, error) {
	var headerBytes [MessageHeaderSize]byte
	if _, err := io.ReadFull(r, headerBytes[:]); err != nil {
		return nil, err
	}

	hdr := messageHeader{}
	hdr.magic = CrownNet(littleEndian.Uint32(headerBytes[0:4]))

	command := headerBytes[4:16]
	hdr.length = littleEndian.Uint32(headerBytes[16:20])
	copy(hdr.checksum[:], headerBytes[20:24])

	// strip trailing zeros from command string
	idx := bytes.IndexByte(command, 0x00)
	if idx < 0 {
		idx = CommandSize
	}
	hdr.command = string(command[:idx])

	if !utf8.ValidString(hdr.command) {
		return nil, errors.NewMalformedMessageError("invalid command %v", command)
	}

	return &hdr, nil
}

// ReadMessage reads, validates and parses the next message from r for the
// provided protocol version and network. It returns the parsed message and
// its raw payload. When the payload is malformed, the error names the byte
// offset at which decoding stopped.
func ReadMessage(r io.Reader, pver uint32, net CrownNet) (Message, []byte, error) {
	return ReadMessageWithEncoding(r, pver, net, BaseEncoding)
}

// ReadMessageWithEncoding is ReadMessage with a specific encoding for the
// deserialized transactions.
func ReadMessageWithEncoding(r io.Reader, pver uint32, net CrownNet, enc MessageEncoding) (Message, []byte, error) {
	hdr, err := readMessageHeader(r)
	if err != nil {
		return nil, nil, err
	}

	if hdr.length > MaxMessagePayload {
		return nil, nil, errors.NewMalformedMessageError("message payload is too large - %d bytes", hdr.length)
	}

	if hdr.magic != net {
		return nil, nil, errors.NewMalformedMessageError("message from other network [%v]", hdr.magic)
	}

	msg, err := makeEmptyMessage(hdr.command)
	if err != nil {
		return nil, nil, err
	}

	if hdr.length > msg.MaxPayloadLength(pver) {
		return nil, nil, errors.NewMalformedMessageError("payload exceeds max length for [%s] - %d bytes",
			hdr.command, hdr.length)
	}

	payload := make([]byte, hdr.length)
	if _, err = io.ReadFull(r, payload); err != nil {
		return nil, nil, err
	}

	checksum := chainhash.DoubleHashB(payload)[0:4]
	if !bytes.Equal(checksum, hdr.checksum[:]) {
		return nil, nil, errors.NewMalformedMessageError("payload checksum failed - header indicates %x, but actual checksum is %x",
			hdr.checksum, checksum)
	}

	pr := bytes.NewReader(payload)
	if err = msg.Decode(pr, pver, enc); err != nil {
		offset := int(hdr.length) - pr.Len()
		return nil, payload, errors.NewMalformedMessageError("failed to decode [%s] at offset %d", hdr.command, offset, err)
	}

	return msg, payload, nil
}

// WriteMessage writes a Message to w including the necessary header
// information.
func WriteMessage(w io.Writer, msg Message, pver uint32, net CrownNet) error {
	return WriteMessageWithEncoding(w, msg, pver, net, BaseEncoding)
}

// WriteMessageWithEncoding is WriteMessage with a specific encoding for the
// serialized transactions.
func WriteMessageWithEncoding(w io.Writer, msg Message, pver uint32, net CrownNet, enc MessageEncoding) error {
	command := msg.Command()
	if len(command) > CommandSize {
		return errors.NewInvalidArgumentError("command [%s] is too long [max %v]", command, CommandSize)
	}

	var command12 [CommandSize]byte
	copy(command12[:], command)

	var bw bytes.Buffer
	if err := msg.Encode(&bw, pver, enc); err != nil {
		return err
	}
	payload := bw.Bytes()

	if len(payload) > MaxMessagePayload {
		return errors.NewInvalidArgumentError("message payload is too large - %d bytes", len(payload))
	}

	if uint32(len(payload)) > msg.MaxPayloadLength(pver) {
		return errors.NewInvalidArgumentError("message payload is too large - %d bytes for [%s]", len(payload), command)
	}

	var hdr bytes.Buffer
	if err := WriteUint32(&hdr, uint32(net)); err != nil {
		return err
	}
	if _, err := hdr.Write(command12[:]); err != nil {
		return err
	}
	if err := WriteUint32(&hdr, uint32(len(payload))); err != nil {
		return err
	}
	if _, err := hdr.Write(chainhash.DoubleHashB(payload)[0:4]); err != nil {
		return err
	}

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}

	_, err := w.Write(payload)
	return err
}
