// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package script

import "fmt"

// These constants are the values of the official opcodes used on the wire
// in the crown script language.
const (
	OP_0                   = 0x00
	OP_FALSE               = 0x00
	OP_DATA_1              = 0x01
	OP_DATA_2              = 0x02
	OP_DATA_20             = 0x14
	OP_DATA_32             = 0x20
	OP_DATA_33             = 0x21
	OP_DATA_65             = 0x41
	OP_DATA_75             = 0x4b
	OP_PUSHDATA1           = 0x4c
	OP_PUSHDATA2           = 0x4d
	OP_PUSHDATA4           = 0x4e
	OP_1NEGATE             = 0x4f
	OP_RESERVED            = 0x50
	OP_1                   = 0x51
	OP_TRUE                = 0x51
	OP_2                   = 0x52
	OP_3                   = 0x53
	OP_4                   = 0x54
	OP_5                   = 0x55
	OP_6                   = 0x56
	OP_7                   = 0x57
	OP_8                   = 0x58
	OP_9                   = 0x59
	OP_10                  = 0x5a
	OP_11                  = 0x5b
	OP_12                  = 0x5c
	OP_13                  = 0x5d
	OP_14                  = 0x5e
	OP_15                  = 0x5f
	OP_16                  = 0x60
	OP_NOP                 = 0x61
	OP_VER                 = 0x62
	OP_IF                  = 0x63
	OP_NOTIF               = 0x64
	OP_VERIF               = 0x65
	OP_VERNOTIF            = 0x66
	OP_ELSE                = 0x67
	OP_ENDIF               = 0x68
	OP_VERIFY              = 0x69
	OP_RETURN              = 0x6a
	OP_TOALTSTACK          = 0x6b
	OP_FROMALTSTACK        = 0x6c
	OP_2DROP               = 0x6d
	OP_2DUP                = 0x6e
	OP_3DUP                = 0x6f
	OP_2OVER               = 0x70
	OP_2ROT                = 0x71
	OP_2SWAP               = 0x72
	OP_IFDUP               = 0x73
	OP_DEPTH               = 0x74
	OP_DROP                = 0x75
	OP_DUP                 = 0x76
	OP_NIP                 = 0x77
	OP_OVER                = 0x78
	OP_PICK                = 0x79
	OP_ROLL                = 0x7a
	OP_ROT                 = 0x7b
	OP_SWAP                = 0x7c
	OP_TUCK                = 0x7d
	OP_CAT                 = 0x7e
	OP_SUBSTR              = 0x7f
	OP_LEFT                = 0x80
	OP_RIGHT               = 0x81
	OP_SIZE                = 0x82
	OP_INVERT              = 0x83
	OP_AND                 = 0x84
	OP_OR                  = 0x85
	OP_XOR                 = 0x86
	OP_EQUAL               = 0x87
	OP_EQUALVERIFY         = 0x88
	OP_RESERVED1           = 0x89
	OP_RESERVED2           = 0x8a
	OP_1ADD                = 0x8b
	OP_1SUB                = 0x8c
	OP_2MUL                = 0x8d
	OP_2DIV                = 0x8e
	OP_NEGATE              = 0x8f
	OP_ABS                 = 0x90
	OP_NOT                 = 0x91
	OP_0NOTEQUAL           = 0x92
	OP_ADD                 = 0x93
	OP_SUB                 = 0x94
	OP_MUL                 = 0x95
	OP_DIV                 = 0x96
	OP_MOD                 = 0x97
	OP_LSHIFT              = 0x98
	OP_RSHIFT              = 0x99
	OP_BOOLAND             = 0x9a
	OP_BOOLOR              = 0x9b
	OP_NUMEQUAL            = 0x9c
	OP_NUMEQUALVERIFY      = 0x9d
	OP_NUMNOTEQUAL         = 0x9e
	OP_LESSTHAN            = 0x9f
	OP_GREATERTHAN         = 0xa0
	OP_LESSTHANOREQUAL     = 0xa1
	OP_GREATERTHANOREQUAL  = 0xa2
	OP_MIN                 = 0xa3
	OP_MAX                 = 0xa4
	OP_WITHIN              = 0xa5
	OP_RIPEMD160           = 0xa6
	OP_SHA1                = 0xa7
	OP_SHA256              = 0xa8
	OP_HASH160             = 0xa9
	OP_HASH256             = 0xaa
	OP_CODESEPARATOR       = 0xab
	OP_CHECKSIG            = 0xac
	OP_CHECKSIGVERIFY      = 0xad
	OP_CHECKMULTISIG       = 0xae
	OP_CHECKMULTISIGVERIFY = 0xaf
	OP_NOP1                = 0xb0
	OP_CHECKLOCKTIMEVERIFY = 0xb1
	OP_CHECKSEQUENCEVERIFY = 0xb2
	OP_NOP4                = 0xb3
	OP_NOP5                = 0xb4
	OP_NOP6                = 0xb5
	OP_NOP7                = 0xb6
	OP_NOP8                = 0xb7
	OP_NOP9                = 0xb8
	OP_NOP10               = 0xb9
	OP_INVALIDOPCODE       = 0xff
)

// parsedOpcode represents an opcode that has been parsed from a script
// together with any associated data pushes.
type parsedOpcode struct {
	opcode byte
	data   []byte
}

// isDisabled returns whether the opcode is disabled and thus is always bad
// to see in the instruction stream, even if turned off by a conditional.
func (pop *parsedOpcode) isDisabled() bool {
	switch pop.opcode {
	case OP_CAT, OP_SUBSTR, OP_LEFT, OP_RIGHT, OP_INVERT, OP_AND, OP_OR,
		OP_XOR, OP_2MUL, OP_2DIV, OP_MUL, OP_DIV, OP_MOD, OP_LSHIFT,
		OP_RSHIFT:
		return true
	}

	return false
}

// alwaysIllegal returns whether the opcode is always illegal when passed
// over by the program counter, even if in a non-executed branch.
func (pop *parsedOpcode) alwaysIllegal() bool {
	switch pop.opcode {
	case OP_VERIF, OP_VERNOTIF:
		return true
	}

	return false
}

// isConditional returns whether the opcode is a conditional opcode which
// changes the conditional execution stack when executed.
func (pop *parsedOpcode) isConditional() bool {
	switch pop.opcode {
	case OP_IF, OP_NOTIF, OP_ELSE, OP_ENDIF:
		return true
	}

	return false
}

// isPush reports whether the opcode only pushes data to the stack. Opcodes
// that count toward the operation limit are everything else.
func (pop *parsedOpcode) isPush() bool {
	return pop.opcode <= OP_16
}

// checkMinimalDataPush reports whether the opcode is the smallest possible
// way to represent the given data.
func (pop *parsedOpcode) checkMinimalDataPush() error {
	data := pop.data
	dataLen := len(data)
	opcode := pop.opcode

	switch {
	case dataLen == 0 && opcode != OP_0:
		return scriptError(ErrMinimalData, "zero length data push must use OP_0")
	case dataLen == 1 && data[0] >= 1 && data[0] <= 16 && opcode != OP_1+data[0]-1:
		return scriptError(ErrMinimalData, fmt.Sprintf("data push of %d must use OP_%d", data[0], data[0]))
	case dataLen == 1 && data[0] == 0x81 && opcode != OP_1NEGATE:
		return scriptError(ErrMinimalData, "data push of -1 must use OP_1NEGATE")
	case dataLen <= 75 && int(opcode) != dataLen:
		return scriptError(ErrMinimalData, fmt.Sprintf("data push of %d bytes must use a direct push", dataLen))
	case dataLen <= 255 && dataLen > 75 && opcode != OP_PUSHDATA1:
		return scriptError(ErrMinimalData, fmt.Sprintf("data push of %d bytes must use OP_PUSHDATA1", dataLen))
	case dataLen <= 65535 && dataLen > 255 && opcode != OP_PUSHDATA2:
		return scriptError(ErrMinimalData, fmt.Sprintf("data push of %d bytes must use OP_PUSHDATA2", dataLen))
	}

	return nil
}

// parseScript parses a raw script into its opcodes and associated data.
func parseScript(script []byte) ([]parsedOpcode, error) {
	retScript := make([]parsedOpcode, 0, len(script))

	for i := 0; i < len(script); {
		instr := script[i]
		pop := parsedOpcode{opcode: instr}

		switch {
		// Direct data pushes of 1 to 75 bytes.
		case instr >= OP_DATA_1 && instr <= OP_DATA_75:
			length := int(instr)
			if len(script[i+1:]) < length {
				return retScript, scriptError(ErrMalformedPush,
					fmt.Sprintf("opcode %#x requires %d bytes, but script only has %d remaining", instr, length, len(script[i+1:])))
			}

			pop.data = script[i+1 : i+1+length]
			i += 1 + length

		case instr == OP_PUSHDATA1:
			if len(script[i+1:]) < 1 {
				return retScript, scriptError(ErrMalformedPush, "OP_PUSHDATA1 requires a length byte")
			}

			length := int(script[i+1])
			if len(script[i+2:]) < length {
				return retScript, scriptError(ErrMalformedPush,
					fmt.Sprintf("OP_PUSHDATA1 requires %d bytes, but script only has %d remaining", length, len(script[i+2:])))
			}

			pop.data = script[i+2 : i+2+length]
			i += 2 + length

		case instr == OP_PUSHDATA2:
			if len(script[i+1:]) < 2 {
				return retScript, scriptError(ErrMalformedPush, "OP_PUSHDATA2 requires 2 length bytes")
			}

			length := int(script[i+1]) | int(script[i+2])<<8
			if len(script[i+3:]) < length {
				return retScript, scriptError(ErrMalformedPush,
					fmt.Sprintf("OP_PUSHDATA2 requires %d bytes, but script only has %d remaining", length, len(script[i+3:])))
			}

			pop.data = script[i+3 : i+3+length]
			i += 3 + length

		case instr == OP_PUSHDATA4:
			if len(script[i+1:]) < 4 {
				return retScript, scriptError(ErrMalformedPush, "OP_PUSHDATA4 requires 4 length bytes")
			}

			length := int(script[i+1]) | int(script[i+2])<<8 | int(script[i+3])<<16 | int(script[i+4])<<24
			if length < 0 || len(script[i+5:]) < length {
				return retScript, scriptError(ErrMalformedPush,
					fmt.Sprintf("OP_PUSHDATA4 requires %d bytes, but script only has %d remaining", length, len(script[i+5:])))
			}

			pop.data = script[i+5 : i+5+length]
			i += 5 + length

		default:
			i++
		}

		retScript = append(retScript, pop)
	}

	return retScript, nil
}

// unparseScript reassembles parsed opcodes back into the raw script bytes.
func unparseScript(pops []parsedOpcode) []byte {
	script := make([]byte, 0, len(pops))
	for _, pop := range pops {
		script = append(script, pop.bytes()...)
	}

	return script
}

// bytes returns the raw byte form of the parsed opcode.
func (pop *parsedOpcode) bytes() []byte {
	instr := pop.opcode

	switch {
	case instr >= OP_DATA_1 && instr <= OP_DATA_75:
		return append([]byte{instr}, pop.data...)
	case instr == OP_PUSHDATA1:
		return append([]byte{instr, byte(len(pop.data))}, pop.data...)
	case instr == OP_PUSHDATA2:
		l := len(pop.data)
		return append([]byte{instr, byte(l), byte(l >> 8)}, pop.data...)
	case instr == OP_PUSHDATA4:
		l := len(pop.data)
		return append([]byte{instr, byte(l), byte(l >> 8), byte(l >> 16), byte(l >> 24)}, pop.data...)
	}

	return []byte{instr}
}

// canonicalPush returns the minimal opcode sequence that pushes the given
// data.
func canonicalPush(data []byte) []byte {
	dataLen := len(data)

	switch {
	case dataLen == 0:
		return []byte{OP_0}
	case dataLen == 1 && data[0] >= 1 && data[0] <= 16:
		return []byte{OP_1 + data[0] - 1}
	case dataLen == 1 && data[0] == 0x81:
		return []byte{OP_1NEGATE}
	case dataLen <= 75:
		return append([]byte{byte(dataLen)}, data...)
	case dataLen <= 255:
		return append([]byte{OP_PUSHDATA1, byte(dataLen)}, data...)
	case dataLen <= 65535:
		return append([]byte{OP_PUSHDATA2, byte(dataLen), byte(dataLen >> 8)}, data...)
	}

	return append([]byte{OP_PUSHDATA4, byte(dataLen), byte(dataLen >> 8), byte(dataLen >> 16), byte(dataLen >> 24)}, data...)
}
