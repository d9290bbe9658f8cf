// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
)

// RejectCode represents a numeric value by which a remote peer indicates
// why a message was rejected.
type RejectCode uint8

const (
	RejectMalformed       RejectCode = 0x01
	RejectInvalid         RejectCode = 0x10
	RejectObsolete        RejectCode = 0x11
	RejectDuplicate       RejectCode = 0x12
	RejectNonstandard     RejectCode = 0x40
	RejectDust            RejectCode = 0x41
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint      RejectCode = 0x43
)

var rejectCodeStrings = map[RejectCode]string{
	RejectMalformed:       "REJECT_MALFORMED",
	RejectInvalid:         "REJECT_INVALID",
	RejectObsolete:        "REJECT_OBSOLETE",
	RejectDuplicate:       "REJECT_DUPLICATE",
	RejectNonstandard:     "REJECT_NONSTANDARD",
	RejectDust:            "REJECT_DUST",
	RejectInsufficientFee: "REJECT_INSUFFICIENTFEE",
	RejectCheckpoint:      "REJECT_CHECKPOINT",
}

// String returns the RejectCode in human-readable form.
func (code RejectCode) String() string {
	if s, ok := rejectCodeStrings[code]; ok {
		return s
	}

	return "Unknown RejectCode"
}

// MsgReject implements the Message interface and represents a crown reject
// message, informing a peer that one of its previous messages was rejected.
type MsgReject struct {
	// Cmd is the command for the message which was rejected such as
	// CmdBlock or CmdTx.
	Cmd string

	// Code indicating why the command was rejected.
	Code RejectCode

	// Human-readable string with specific details (over and above the
	// reject code) about why the command was rejected.
	Reason string

	// Hash identifies a specific block or transaction that was rejected
	// and therefore only applies to CmdBlock and CmdTx.
	Hash chainhash.Hash
}

// Decode decodes r using the protocol encoding into the receiver.
func (msg *MsgReject) Decode(r io.Reader, pver uint32, enc MessageEncoding) error {
	cmd, err := ReadVarString(r)
	if err != nil {
		return err
	}
	msg.Cmd = cmd

	var code [1]byte
	if _, err = io.ReadFull(r, code[:]); err != nil {
		return err
	}
	msg.Code = RejectCode(code[0])

	if msg.Reason, err = ReadVarString(r); err != nil {
		return err
	}

	if msg.Cmd == CmdBlock || msg.Cmd == CmdTx {
		return readHash(r, &msg.Hash)
	}

	return nil
}

// Encode encodes the receiver to w using the protocol encoding.
func (msg *MsgReject) Encode(w io.Writer, pver uint32, enc MessageEncoding) error {
	if err := WriteVarString(w, msg.Cmd); err != nil {
		return err
	}

	if _, err := w.Write([]byte{byte(msg.Code)}); err != nil {
		return err
	}

	if err := WriteVarString(w, msg.Reason); err != nil {
		return err
	}

	if msg.Cmd == CmdBlock || msg.Cmd == CmdTx {
		return writeHash(w, &msg.Hash)
	}

	return nil
}

// Command returns the protocol command string for the message.
func (msg *MsgReject) Command() string {
	return CmdReject
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.
func (msg *MsgReject) MaxPayloadLength(pver uint32) uint32 {
	return MaxMessagePayload
}

// NewMsgReject returns a new crown reject message that conforms to the
// Message interface.
func NewMsgReject(command string, code RejectCode, reason string) *MsgReject {
	return &MsgReject{
		Cmd:    command,
		Code:   code,
		Reason: reason,
	}
}
