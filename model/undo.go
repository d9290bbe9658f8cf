package model

import (
	"bytes"
	"io"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/wire"
)

// SpentUTXO records one UTXO consumed while connecting a block, keyed by
// the outpoint that was spent. Reverting the block reinstates the entry.
type SpentUTXO struct {
	OutPoint wire.OutPoint
	Entry    UTXO
}

// UndoBlock is the per-block undo record: every UTXO the block consumed
// from the set as it stood before the block, in input order across the
// block's transactions. It is persisted next to
// the block and pruned once the block is deeper than the reorg window.
type UndoBlock struct {
	Spent []SpentUTXO
}

// Serialize writes the undo record to w.
func (u *UndoBlock) Serialize(w io.Writer) error {
	if err := wire.WriteVarInt(w, uint64(len(u.Spent))); err != nil {
		return err
	}

	for i := range u.Spent {
		s := &u.Spent[i]

		if _, err := w.Write(s.OutPoint.Hash[:]); err != nil {
			return err
		}

		if err := wire.WriteUint32(w, s.OutPoint.Index); err != nil {
			return err
		}

		if err := s.Entry.Serialize(w); err != nil {
			return err
		}
	}

	return nil
}

// DeserializeUndoBlock reads an undo record from r.
func DeserializeUndoBlock(r io.Reader) (*UndoBlock, error) {
	count, err := wire.ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	undo := &UndoBlock{
		Spent: make([]SpentUTXO, count),
	}

	for i := uint64(0); i < count; i++ {
		s := &undo.Spent[i]

		if _, err = io.ReadFull(r, s.OutPoint.Hash[:]); err != nil {
			return nil, err
		}

		if s.OutPoint.Index, err = wire.ReadUint32(r); err != nil {
			return nil, err
		}

		entry, err := DeserializeUTXO(r)
		if err != nil {
			return nil, err
		}
		s.Entry = *entry
	}

	return undo, nil
}

// Bytes returns the serialized form of the undo record.
func (u *UndoBlock) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := u.Serialize(&buf); err != nil {
		return nil, errors.NewProcessingError("failed to serialize undo block", err)
	}

	return buf.Bytes(), nil
}

// NewUndoBlockFromBytes parses a persisted undo record.
func NewUndoBlockFromBytes(serialized []byte) (*UndoBlock, error) {
	undo, err := DeserializeUndoBlock(bytes.NewReader(serialized))
	if err != nil {
		return nil, errors.NewStorageError("failed to deserialize undo block", err)
	}

	return undo, nil
}
