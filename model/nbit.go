package model

import (
	"math/big"
)

// NBit is the compact representation of a 256-bit difficulty target, as
// carried in block headers. The first byte is a base-256 exponent and the
// remaining three bytes are the mantissa. The sign bit exists for
// historical reasons and never appears in a valid header.
type NBit uint32

// CalculateTarget expands the compact representation into the full 256-bit
// target.
func (n NBit) CalculateTarget() *big.Int {
	mantissa := uint32(n) & 0x007fffff
	isNegative := uint32(n)&0x00800000 != 0
	exponent := uint(uint32(n) >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}

	return bn
}

// NewNBitFromTarget converts a 256-bit target into compact form. The result
// loses precision beyond the three mantissa bytes, matching the header
// encoding.
func NewNBitFromTarget(target *big.Int) NBit {
	if target.Sign() == 0 {
		return 0
	}

	// Since the base for the exponent is 256, the exponent can be treated
	// as the number of bytes.
	exponent := uint(len(target.Bytes()))

	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(target.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		// Use a copy to avoid modifying the caller's original target.
		tn := new(big.Int).Set(target)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	// When the mantissa already has the sign bit set, the number is too
	// large to fit into the available 23-bits, so divide the number by 256
	// and increment the exponent accordingly.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	return NBit(uint32(exponent<<24) | mantissa)
}
