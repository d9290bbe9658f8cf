package model

import (
	"bytes"
	"io"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/wire"
)

// UTXO is one unspent transaction output together with the chain context
// needed to validate a spend of it: the height its producing transaction
// connected at, and whether that transaction was a coinbase.
type UTXO struct {
	Output   wire.TxOut
	Height   uint32
	Coinbase bool
}

// Serialize writes the entry to w.
func (u *UTXO) Serialize(w io.Writer) error {
	if err := wire.WriteUint64(w, uint64(u.Output.Value)); err != nil {
		return err
	}

	if err := wire.WriteVarBytes(w, u.Output.PkScript); err != nil {
		return err
	}

	if err := wire.WriteUint32(w, u.Height); err != nil {
		return err
	}

	var coinbase [1]byte
	if u.Coinbase {
		coinbase[0] = 1
	}

	_, err := w.Write(coinbase[:])
	return err
}

// DeserializeUTXO reads an entry from r.
func DeserializeUTXO(r io.Reader) (*UTXO, error) {
	value, err := wire.ReadUint64(r)
	if err != nil {
		return nil, err
	}

	pkScript, err := wire.ReadVarBytes(r, wire.MaxMessagePayload, "utxo pk script")
	if err != nil {
		return nil, err
	}

	height, err := wire.ReadUint32(r)
	if err != nil {
		return nil, err
	}

	var coinbase [1]byte
	if _, err = io.ReadFull(r, coinbase[:]); err != nil {
		return nil, err
	}

	return &UTXO{
		Output: wire.TxOut{
			Value:    int64(value),
			PkScript: pkScript,
		},
		Height:   height,
		Coinbase: coinbase[0] == 1,
	}, nil
}

// Bytes returns the serialized form of the entry.
func (u *UTXO) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := u.Serialize(&buf); err != nil {
		return nil, errors.NewProcessingError("failed to serialize utxo", err)
	}

	return buf.Bytes(), nil
}
