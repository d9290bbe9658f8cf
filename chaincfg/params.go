// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"time"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/wire"
)

// These variables are the chain proof-of-work limit parameters for each
// default network.
var (
	// bigOne is 1 represented as a big.Int.  It is defined here to avoid
	// the overhead of creating it multiple times.
	bigOne = big.NewInt(1)

	// mainPowLimit is the highest proof of work value a crown block can
	// have for the main network.  It is the value 2^224 - 1.
	mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	// testNetPowLimit is the highest proof of work value a crown block can
	// have for the test network.  It is the value 2^224 - 1.
	testNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	// regressionPowLimit is the highest proof of work value a crown block
	// can have for the regression test network.  It is the value 2^255 - 1.
	regressionPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
)

// Checkpoint identifies a known good point in the block chain.  Using
// checkpoints allows a few optimizations for old blocks during initial
// download and also prevents forks from old blocks.
type Checkpoint struct {
	Height int32
	Hash   *chainhash.Hash
}

// Params defines a crown network by its parameters.  These parameters may
// be used by applications to differentiate networks as well as addresses
// and keys for one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net wire.CrownNet

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort string

	// GenesisBlock defines the first block of the chain.
	GenesisBlock *wire.MsgBlock

	// GenesisHash is the starting block hash.
	GenesisHash *chainhash.Hash

	// PowLimit defines the highest allowed proof of work value for a block
	// as a uint256.
	PowLimit *big.Int

	// PowLimitBits defines the highest allowed proof of work value for a
	// block in compact form.
	PowLimitBits uint32

	// CoinbaseMaturity is the number of blocks required before newly mined
	// coins can be spent.
	CoinbaseMaturity uint16

	// SubsidyReductionInterval is the interval of blocks before the subsidy
	// is reduced.
	SubsidyReductionInterval int32

	// TargetTimespan is the desired amount of time that should elapse
	// before the block difficulty requirement is examined to determine how
	// it should be changed in order to maintain the desired block
	// generation rate.
	TargetTimespan time.Duration

	// TargetTimePerBlock is the desired amount of time to generate each
	// block.
	TargetTimePerBlock time.Duration

	// RetargetAdjustmentFactor is the adjustment factor used to limit the
	// minimum and maximum amount of adjustment that can occur between
	// difficulty retargets.
	RetargetAdjustmentFactor int64

	// ReduceMinDifficulty defines whether the network should reduce the
	// minimum required difficulty after a long enough period of time has
	// passed without finding a block.  This is really only useful for test
	// networks.
	ReduceMinDifficulty bool

	// MinDiffReductionTime is the amount of time after which the minimum
	// required difficulty should be reduced when a block hasn't been found.
	// NOTE: This only applies if ReduceMinDifficulty is true.
	MinDiffReductionTime time.Duration

	// NoDifficultyAdjustment defines whether the network skips the normal
	// difficulty retargeting entirely.  This is only used on the
	// regression test network.
	NoDifficultyAdjustment bool

	// GenerateSupported specifies whether CPU mining is allowed.
	GenerateSupported bool

	// Checkpoints ordered from oldest to newest.
	Checkpoints []Checkpoint

	// BIP0016Height is the height at which pay-to-script-hash evaluation
	// becomes active.
	BIP0016Height int32

	// BIP0034Height is the height at which the coinbase must commit to the
	// block height.
	BIP0034Height int32

	// BIP0065Height is the height at which OP_CHECKLOCKTIMEVERIFY becomes
	// active.
	BIP0065Height int32

	// BIP0066Height is the height at which strict DER signatures become
	// required.
	BIP0066Height int32

	// CSVHeight is the height at which BIP 68/112/113 relative lock-times
	// become active.
	CSVHeight int32

	// SegwitHeight is the height at which segregated witness validation
	// becomes active.
	SegwitHeight int32

	// RelayNonStdTxs defines whether the network should relay non-standard
	// transactions.
	RelayNonStdTxs bool
}

// MainNetParams defines the network parameters for the main crown network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         wire.MainNet,
	DefaultPort: "9340",

	GenesisBlock: &genesisBlock,
	GenesisHash:  &genesisHash,

	PowLimit:                 mainPowLimit,
	PowLimitBits:             0x1d00ffff,
	CoinbaseMaturity:         100,
	SubsidyReductionInterval: 210000,
	TargetTimespan:           time.Hour * 24 * 14, // 14 days
	TargetTimePerBlock:       time.Minute * 10,    // 10 minutes
	RetargetAdjustmentFactor: 4,                   // 25% less, 400% more
	ReduceMinDifficulty:      false,
	MinDiffReductionTime:     0,
	NoDifficultyAdjustment:   false,
	GenerateSupported:        false,

	BIP0016Height: 173805,
	BIP0034Height: 227931,
	BIP0065Height: 388381,
	BIP0066Height: 363725,
	CSVHeight:     419328,
	SegwitHeight:  481824,

	RelayNonStdTxs: false,
}

// TestNetParams defines the network parameters for the crown test network.
var TestNetParams = Params{
	Name:        "testnet",
	Net:         wire.TestNet,
	DefaultPort: "19340",

	GenesisBlock: &testNetGenesisBlock,
	GenesisHash:  &testNetGenesisHash,

	PowLimit:                 testNetPowLimit,
	PowLimitBits:             0x1d00ffff,
	CoinbaseMaturity:         100,
	SubsidyReductionInterval: 210000,
	TargetTimespan:           time.Hour * 24 * 14,
	TargetTimePerBlock:       time.Minute * 10,
	RetargetAdjustmentFactor: 4,
	ReduceMinDifficulty:      true,
	MinDiffReductionTime:     time.Minute * 20,
	NoDifficultyAdjustment:   false,
	GenerateSupported:        true,

	BIP0016Height: 514,
	BIP0034Height: 21111,
	BIP0065Height: 581885,
	BIP0066Height: 330776,
	CSVHeight:     770112,
	SegwitHeight:  834624,

	RelayNonStdTxs: true,
}

// RegressionNetParams defines the network parameters for the regression
// test network.  Difficulty is never adjusted and every soft fork is active
// from genesis, which keeps hand-mined test chains simple.
var RegressionNetParams = Params{
	Name:        "regtest",
	Net:         wire.RegTest,
	DefaultPort: "19444",

	GenesisBlock: &regTestGenesisBlock,
	GenesisHash:  &regTestGenesisHash,

	PowLimit:                 regressionPowLimit,
	PowLimitBits:             0x207fffff,
	CoinbaseMaturity:         100,
	SubsidyReductionInterval: 150,
	TargetTimespan:           time.Hour * 24 * 14,
	TargetTimePerBlock:       time.Minute * 10,
	RetargetAdjustmentFactor: 4,
	ReduceMinDifficulty:      true,
	MinDiffReductionTime:     time.Minute * 20,
	NoDifficultyAdjustment:   true,
	GenerateSupported:        true,

	BIP0016Height: 0,
	BIP0034Height: 0,
	BIP0065Height: 0,
	BIP0066Height: 0,
	CSVHeight:     0,
	SegwitHeight:  0,

	RelayNonStdTxs: true,
}

// GetChainParams returns the network parameters for the given network name.
func GetChainParams(network string) (*Params, error) {
	switch network {
	case "mainnet":
		return &MainNetParams, nil
	case "testnet":
		return &TestNetParams, nil
	case "regtest":
		return &RegressionNetParams, nil
	}

	return nil, errors.NewConfigurationError("unknown network: %s", network)
}
