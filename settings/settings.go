package settings

import (
	"time"

	"github.com/crown-blockchain/crownd/chaincfg"
)

// NewSettings reads the process configuration once and resolves the chain
// parameters for the configured network.
func NewSettings() *Settings {
	params, err := chaincfg.GetChainParams(getString("network", "mainnet"))
	if err != nil {
		panic(err)
	}

	return &Settings{
		ClientName:     getString("clientName", "crownd"),
		DataFolder:     getString("dataFolder", "data"),
		LogLevel:       getString("logLevel", "INFO"),
		ChainCfgParams: params,
		Chain: ChainSettings{
			StoreURL:                getURL("chainstore", "sqlitememory:///crownd"),
			MaximumReorgBlockCount:  uint32(getInt("maximumReorgBlockCount", 288)),
			OrphanBufferSize:        uint64(getInt("orphanBufferSize", 100)),
			OrphanTTL:               getDuration("orphanTTL", 10*time.Minute),
			ScriptVerifyConcurrency: getInt("scriptVerifyConcurrency", 0),
		},
		P2P: P2PSettings{
			ListenAddress:        getString("p2p_listenAddress", ":"+params.DefaultPort),
			UserAgentName:        getString("p2p_userAgentName", "crownd"),
			UserAgentVersion:     getString("p2p_userAgentVersion", "0.1.0"),
			HandshakeTimeout:     getDuration("p2p_handshakeTimeout", 30*time.Second),
			PingInterval:         getDuration("p2p_pingInterval", 2*time.Minute),
			PingTimeout:          getDuration("p2p_pingTimeout", 30*time.Second),
			BlockDownloadTimeout: getDuration("p2p_blockDownloadTimeout", 60*time.Second),
			MaxInFlightBlocks:    getInt("p2p_maxInFlightBlocks", 16),
			InvQueueSize:         getInt("p2p_invQueueSize", 50000),
		},
		Policy: PolicySettings{
			MaxBlockSize:   getInt("maxblocksize", 4000000),
			MaxBlockSigOps: getInt("maxblocksigops", 80000),
		},
	}
}

// NewTestSettings returns settings suitable for unit tests: regtest
// parameters, an in-memory store and short timeouts.
func NewTestSettings() *Settings {
	s := NewSettings()
	s.ChainCfgParams = &chaincfg.RegressionNetParams
	s.Chain.MaximumReorgBlockCount = 32
	s.P2P.HandshakeTimeout = 2 * time.Second
	s.P2P.BlockDownloadTimeout = 2 * time.Second

	return s
}
