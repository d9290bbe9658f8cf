// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/libsv/go-p2p/chaincfg/chainhash"
)

const (
	// MaxInvPerMsg is the maximum number of inventory vectors that can be
	// in a single crown inv message.
	MaxInvPerMsg = 50000

	// maxInvVectPayload is the maximum payload size for an inventory
	// vector: 4 bytes type + 32 bytes hash.
	maxInvVectPayload = 4 + chainhash.HashSize

	// InvWitnessFlag denotes that the inventory vector type is requesting,
	// or sending a version which includes witness data.
	InvWitnessFlag = 1 << 30
)

// InvType represents the allowed types of inventory vectors.
type InvType uint32

const (
	InvTypeError        InvType = 0
	InvTypeTx           InvType = 1
	InvTypeBlock        InvType = 2
	InvTypeWitnessTx    InvType = InvTypeTx | InvWitnessFlag
	InvTypeWitnessBlock InvType = InvTypeBlock | InvWitnessFlag
)

var ivStrings = map[InvType]string{
	InvTypeError:        "ERROR",
	InvTypeTx:           "MSG_TX",
	InvTypeBlock:        "MSG_BLOCK",
	InvTypeWitnessTx:    "MSG_WITNESS_TX",
	InvTypeWitnessBlock: "MSG_WITNESS_BLOCK",
}

// String returns the InvType in human-readable form.
func (invtype InvType) String() string {
	if s, ok := ivStrings[invtype]; ok {
		return s
	}

	return fmt.Sprintf("Unknown InvType (%d)", uint32(invtype))
}

// InvVect defines a crown inventory vector which is used to describe data,
// as specified by the Type field, that a peer wants, has, or does not have
// to another peer.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{
		Type: typ,
		Hash: *hash,
	}
}

func readInvVect(r io.Reader, iv *InvVect) error {
	t, err := ReadUint32(r)
	if err != nil {
		return err
	}
	iv.Type = InvType(t)

	return readHash(r, &iv.Hash)
}

func writeInvVect(w io.Writer, iv *InvVect) error {
	if err := WriteUint32(w, uint32(iv.Type)); err != nil {
		return err
	}

	return writeHash(w, &iv.Hash)
}
