package util

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crown-blockchain/crownd/chaincfg"
	"github.com/crown-blockchain/crownd/coin"
)

func TestCalcBlockWork(t *testing.T) {
	// A harder target (lower) represents more work.
	easy := CalcBlockWork(0x207fffff)
	hard := CalcBlockWork(0x1d00ffff)

	require.Positive(t, easy.Sign())
	require.Positive(t, hard.Sign())
	assert.Negative(t, easy.Cmp(hard))

	// Invalid targets carry zero work.
	assert.Zero(t, CalcBlockWork(0).Sign())
}

func TestAddWork(t *testing.T) {
	w1 := AddWork(nil, 0x207fffff)
	w2 := AddWork(w1, 0x207fffff)

	assert.Equal(t, 0, new(big.Int).Mul(w1, big.NewInt(2)).Cmp(w2))
}

func TestCalcBlockSubsidy(t *testing.T) {
	params := &chaincfg.MainNetParams

	assert.Equal(t, 50*coin.OneCoin, CalcBlockSubsidy(0, params))
	assert.Equal(t, 50*coin.OneCoin, CalcBlockSubsidy(209999, params))
	assert.Equal(t, 25*coin.OneCoin, CalcBlockSubsidy(210000, params))
	assert.Equal(t, 25*coin.OneCoin/2, CalcBlockSubsidy(420000, params))

	// After 64 halvings the subsidy is gone entirely.
	assert.Equal(t, coin.Zero, CalcBlockSubsidy(64*210000, params))
}
