package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crown-blockchain/crownd/errors"
)

func TestVarIntRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   uint64
		want []byte
	}{
		{"single byte low", 0, []byte{0x00}},
		{"single byte high", 0xfc, []byte{0xfc}},
		{"3-byte low", 0xfd, []byte{0xfd, 0xfd, 0x00}},
		{"3-byte high", 0xffff, []byte{0xfd, 0xff, 0xff}},
		{"5-byte low", 0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		{"5-byte high", 0xffffffff, []byte{0xfe, 0xff, 0xff, 0xff, 0xff}},
		{"9-byte low", 0x100000000, []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
		{"9-byte high", 0xffffffffffffffff, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteVarInt(&buf, tt.in))
			assert.Equal(t, tt.want, buf.Bytes())
			assert.Equal(t, len(tt.want), VarIntSerializeSize(tt.in))

			got, err := ReadVarInt(bytes.NewReader(tt.want))
			require.NoError(t, err)
			assert.Equal(t, tt.in, got)
		})
	}
}

func TestVarIntNonCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"0xfc encoded with 3 bytes", []byte{0xfd, 0xfc, 0x00}},
		{"0xffff encoded with 5 bytes", []byte{0xfe, 0xff, 0xff, 0x00, 0x00}},
		{"0xffffffff encoded with 9 bytes", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadVarInt(bytes.NewReader(tt.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrMalformedMessage))
		})
	}
}

func TestVarBytes(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	var buf bytes.Buffer
	require.NoError(t, WriteVarBytes(&buf, payload))

	got, err := ReadVarBytes(bytes.NewReader(buf.Bytes()), 16, "test payload")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = ReadVarBytes(bytes.NewReader(buf.Bytes()), 3, "test payload")
	require.Error(t, err)
}

func TestVarString(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarString(&buf, "/crownd:0.1.0/"))

	got, err := ReadVarString(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "/crownd:0.1.0/", got)
}
