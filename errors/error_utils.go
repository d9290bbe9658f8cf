package errors

import (
	"context"
	"errors"
)

// IsRetryableError determines if an error is transient and the operation
// should be retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_NETWORK_TIMEOUT, ERR_NETWORK_ERROR, ERR_STORAGE:
			return true
		case ERR_NETWORK_PEER_MALICIOUS, ERR_NETWORK_PEER_BANNED:
			return false
		}
	}

	return false
}

// IsVerificationError reports whether the error is any of the block or
// transaction validation failures. Peers supplying a block that fails one of
// these are banned for the session.
func IsVerificationError(err error) bool {
	var tErr *Error
	if !As(err, &tErr) {
		return false
	}

	switch tErr.Code() {
	case ERR_BLOCK_INVALID, ERR_BLOCK_BAD_POW, ERR_BLOCK_BAD_MERKLE,
		ERR_BLOCK_FUTURE, ERR_BLOCK_BAD_DIFFICULTY, ERR_BLOCK_BAD_TIMESTAMP,
		ERR_TX_INVALID, ERR_TX_DUPLICATE, ERR_DOUBLE_SPEND, ERR_MISSING_UTXO,
		ERR_IMMATURE_COINBASE, ERR_VALUE_OUT_OF_RANGE, ERR_SCRIPT:
		return true
	}

	return false
}
