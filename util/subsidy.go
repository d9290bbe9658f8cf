package util

import (
	"github.com/crown-blockchain/crownd/chaincfg"
	"github.com/crown-blockchain/crownd/coin"
)

// baseSubsidy is the starting subsidy amount. It is halved every
// SubsidyReductionInterval blocks.
var baseSubsidy = 50 * coin.OneCoin

// CalcBlockSubsidy returns the subsidy amount a block at the provided
// height should have.
func CalcBlockSubsidy(height uint32, params *chaincfg.Params) coin.Coin {
	if params.SubsidyReductionInterval == 0 {
		return baseSubsidy
	}

	halvings := height / uint32(params.SubsidyReductionInterval)
	if halvings >= 64 {
		return 0
	}

	// Equivalent to: baseSubsidy / 2^(height/subsidyHalvingInterval)
	return baseSubsidy >> halvings
}
