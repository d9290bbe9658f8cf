package errors

// ERR is the numeric error code carried by every *Error. The ranges group
// the codes by subsystem: 0-9 generic, 10-19 encoding, 20-49 block
// validation, 50-69 transaction and UTXO, 70-79 storage, 80-89 network,
// 90-99 arithmetic.
type ERR int32

const (
	ERR_UNKNOWN          ERR = 0
	ERR_INVALID_ARGUMENT ERR = 1
	ERR_PROCESSING       ERR = 2
	ERR_CONFIGURATION    ERR = 3
	ERR_NOT_FOUND        ERR = 4
	ERR_CONTEXT_CANCELED ERR = 5

	ERR_MALFORMED_MESSAGE ERR = 10

	ERR_BLOCK_INVALID        ERR = 20
	ERR_BLOCK_BAD_POW        ERR = 21
	ERR_BLOCK_BAD_MERKLE     ERR = 22
	ERR_BLOCK_FUTURE         ERR = 23
	ERR_BLOCK_BAD_DIFFICULTY ERR = 24
	ERR_BLOCK_BAD_TIMESTAMP  ERR = 25
	ERR_BLOCK_ORPHAN         ERR = 26
	ERR_BLOCK_EXISTS         ERR = 27
	ERR_BLOCK_NOT_FOUND      ERR = 28
	ERR_REORG_TOO_DEEP       ERR = 29

	ERR_TX_INVALID         ERR = 50
	ERR_DOUBLE_SPEND       ERR = 51
	ERR_MISSING_UTXO       ERR = 52
	ERR_IMMATURE_COINBASE  ERR = 53
	ERR_VALUE_OUT_OF_RANGE ERR = 54
	ERR_SCRIPT             ERR = 55
	ERR_TX_DUPLICATE       ERR = 56

	ERR_STORAGE      ERR = 70
	ERR_UNDO_MISSING ERR = 71

	ERR_NETWORK_ERROR          ERR = 80
	ERR_NETWORK_TIMEOUT        ERR = 81
	ERR_NETWORK_PEER_MALICIOUS ERR = 82
	ERR_NETWORK_PEER_BANNED    ERR = 83

	ERR_OVERFLOW ERR = 90
)

var ERR_name = map[int32]string{
	0:  "ERR_UNKNOWN",
	1:  "ERR_INVALID_ARGUMENT",
	2:  "ERR_PROCESSING",
	3:  "ERR_CONFIGURATION",
	4:  "ERR_NOT_FOUND",
	5:  "ERR_CONTEXT_CANCELED",
	10: "ERR_MALFORMED_MESSAGE",
	20: "ERR_BLOCK_INVALID",
	21: "ERR_BLOCK_BAD_POW",
	22: "ERR_BLOCK_BAD_MERKLE",
	23: "ERR_BLOCK_FUTURE",
	24: "ERR_BLOCK_BAD_DIFFICULTY",
	25: "ERR_BLOCK_BAD_TIMESTAMP",
	26: "ERR_BLOCK_ORPHAN",
	27: "ERR_BLOCK_EXISTS",
	28: "ERR_BLOCK_NOT_FOUND",
	29: "ERR_REORG_TOO_DEEP",
	50: "ERR_TX_INVALID",
	51: "ERR_DOUBLE_SPEND",
	52: "ERR_MISSING_UTXO",
	53: "ERR_IMMATURE_COINBASE",
	54: "ERR_VALUE_OUT_OF_RANGE",
	55: "ERR_SCRIPT",
	56: "ERR_TX_DUPLICATE",
	70: "ERR_STORAGE",
	71: "ERR_UNDO_MISSING",
	80: "ERR_NETWORK_ERROR",
	81: "ERR_NETWORK_TIMEOUT",
	82: "ERR_NETWORK_PEER_MALICIOUS",
	83: "ERR_NETWORK_PEER_BANNED",
	90: "ERR_OVERFLOW",
}

func (e ERR) Enum() string {
	name, ok := ERR_name[int32(e)]
	if !ok {
		return "ERR_UNKNOWN"
	}

	return name
}
