package util

import (
	"math/big"

	"github.com/crown-blockchain/crownd/model"
)

var (
	bigOne = big.NewInt(1)

	// oneLsh256 is 1 shifted left 256 bits.  It is defined here to avoid
	// the overhead of creating it multiple times.
	oneLsh256 = new(big.Int).Lsh(bigOne, 256)
)

// CalcBlockWork returns the expected number of hash attempts the block with
// the given compact difficulty represents: 2^256 / (target + 1).
func CalcBlockWork(bits uint32) *big.Int {
	target := model.NBit(bits).CalculateTarget()

	// Return zero work for targets that are invalid anyway, so callers can
	// still order headers that never pass validation.
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}

	denominator := new(big.Int).Add(target, bigOne)
	return new(big.Int).Div(oneLsh256, denominator)
}

// AddWork returns prevWork plus the work of a block with the given compact
// difficulty.
func AddWork(prevWork *big.Int, bits uint32) *big.Int {
	if prevWork == nil {
		prevWork = big.NewInt(0)
	}

	return new(big.Int).Add(prevWork, CalcBlockWork(bits))
}
