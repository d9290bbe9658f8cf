package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ERR_BLOCK_INVALID, "block %s failed", "deadbeef")
	require.NotNil(t, err)
	assert.Equal(t, ERR_BLOCK_INVALID, err.Code())
	assert.Equal(t, "block deadbeef failed", err.Message())
	assert.Nil(t, err.WrappedErr())
}

func TestNewWithWrappedError(t *testing.T) {
	cause := errors.New("disk full")
	err := New(ERR_STORAGE, "failed to apply block", cause)

	require.NotNil(t, err)
	assert.Equal(t, ERR_STORAGE, err.Code())
	assert.Equal(t, "failed to apply block", err.Message())
	assert.Equal(t, cause, err.WrappedErr())
	assert.ErrorIs(t, err, cause)
}

func TestNewWithInvalidCode(t *testing.T) {
	err := New(ERR(9999), "whatever")
	require.NotNil(t, err)
	assert.Equal(t, "invalid error code", err.Message())
}

func TestIsMatchesOnCode(t *testing.T) {
	err := NewDoubleSpendError("outpoint %s:%d spent twice", "deadbeef", 0)
	require.True(t, Is(err, ErrDoubleSpend))
	require.False(t, Is(err, ErrMissingUTXO))
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	inner := NewMissingUTXOError("no such outpoint")
	outer := New(ERR_BLOCK_INVALID, "block connect failed", inner)

	require.True(t, Is(outer, ErrBlockInvalid))
	require.True(t, Is(outer, ErrMissingUTXO))
}

func TestAs(t *testing.T) {
	var tErr *Error

	err := fmt.Errorf("outer: %w", NewScriptError("signature check failed"))
	require.True(t, As(err, &tErr))
	assert.Equal(t, ERR_SCRIPT, tErr.Code())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(ERR_PROCESSING, "wrapped", cause)
	assert.Equal(t, cause, Unwrap(err))

	var nilErr *Error
	assert.Nil(t, nilErr.Unwrap())
	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Equal(t, ERR_UNKNOWN, nilErr.Code())
}

func TestIsVerificationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"double spend", NewDoubleSpendError("x"), true},
		{"duplicate tx", NewDuplicateTransactionError("x"), true},
		{"bad pow", NewBlockBadPoWError("x"), true},
		{"script", NewScriptError("x"), true},
		{"orphan is not verification", NewBlockOrphanError("x"), false},
		{"storage is not verification", NewStorageError("x"), false},
		{"plain error", errors.New("x"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVerificationError(tt.err))
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(NewStorageError("io")))
	assert.True(t, IsRetryableError(NewNetworkTimeoutError("slow peer")))
	assert.False(t, IsRetryableError(NewPeerMaliciousError("bad block")))
	assert.False(t, IsRetryableError(nil))
}

func TestErrorStringContainsCodeName(t *testing.T) {
	err := NewReorgTooDeepError("fork point beyond undo window")
	assert.Contains(t, err.Error(), "ERR_REORG_TOO_DEEP")
	assert.Contains(t, err.Error(), "fork point beyond undo window")
}
