package settings

import (
	"net/url"
	"time"

	"github.com/crown-blockchain/crownd/chaincfg"
)

// ChainSettings holds the configuration of the chain engine and its store.
type ChainSettings struct {
	// StoreURL selects the block store backend by scheme:
	// postgres | sqlite | sqlitememory.
	StoreURL *url.URL

	// MaximumReorgBlockCount bounds how deep a reorganization may go.
	// Undo data older than this is pruned.
	MaximumReorgBlockCount uint32

	// OrphanBufferSize bounds the number of parentless blocks held while
	// waiting for their parents.
	OrphanBufferSize uint64

	// OrphanTTL is how long an orphan is held before being dropped.
	OrphanTTL time.Duration

	// ScriptVerifyConcurrency caps the number of goroutines checking
	// input scripts inside a single block connect. Zero means NumCPU.
	ScriptVerifyConcurrency int
}

// P2PSettings holds the configuration of peer sessions.
type P2PSettings struct {
	ListenAddress    string
	UserAgentName    string
	UserAgentVersion string

	// HandshakeTimeout bounds the version/verack exchange.
	HandshakeTimeout time.Duration

	// PingInterval drives keep-alive probing: a ping still unanswered at
	// the next interval tick disconnects the peer. PingTimeout is not read
	// by the peer session.
	PingInterval time.Duration
	PingTimeout  time.Duration

	// BlockDownloadTimeout is how long a requested block may stay
	// outstanding before it is retried with a different peer.
	BlockDownloadTimeout time.Duration

	// MaxInFlightBlocks caps concurrent block downloads per peer.
	MaxInFlightBlocks int

	// InvQueueSize bounds the number of entries in a single inv
	// announcement; a larger announcement bans and disconnects the peer.
	// Announcements are handled as they arrive and are not queued.
	InvQueueSize int
}

// PolicySettings holds consensus-adjacent limits.
type PolicySettings struct {
	// MaxBlockSize is the serialized block size limit in bytes.
	MaxBlockSize int

	// MaxBlockSigOps is a block-wide signature operation budget. No
	// component reads it; signature operations are not counted.
	MaxBlockSigOps int
}

// Settings is the one aggregate handed to every constructor. There is no
// process-global chain context; the chain parameters travel here.
type Settings struct {
	ClientName     string
	DataFolder     string
	LogLevel       string
	ChainCfgParams *chaincfg.Params

	Chain  ChainSettings
	P2P    P2PSettings
	Policy PolicySettings
}
