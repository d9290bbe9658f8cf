package blockchain

import (
	"sync"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/model"
	"github.com/crown-blockchain/crownd/wire"
)

// NotificationType distinguishes the events the chain engine publishes.
type NotificationType int

const (
	// NotificationNewBestBlock is fired once per straight-line extension
	// of the best chain. It is NOT fired for the blocks of a
	// reorganization; subscribers handle those through the single
	// NotificationReorganize event instead.
	NotificationNewBestBlock NotificationType = iota

	// NotificationReorganize is fired once per reorganization.
	NotificationReorganize

	// NotificationTransaction is fired for every transaction of a block
	// that extends the best chain or is stored on a side chain. The
	// blocks connected by a reorganization are reported only through
	// NotificationReorganize; no transaction events are fired for them.
	NotificationTransaction
)

// TxRelativity tells a wallet whether the block carrying a transaction is
// on the best chain or a side chain.
type TxRelativity int

const (
	BestChain TxRelativity = iota
	SideChain
)

// ReorgEvent describes a completed reorganization. The slices are ordered
// from lowest to highest block.
type ReorgEvent struct {
	OldTip       chainhash.Hash
	NewTip       chainhash.Hash
	Disconnected []*model.Block
	Connected    []*model.Block
}

// TxNotification carries one transaction seen in a block together with its
// position.
type TxNotification struct {
	Tx            *wire.MsgTx
	BlockHash     chainhash.Hash
	BlockMeta     *model.BlockHeaderMeta
	Relativity    TxRelativity
	OffsetInBlock int
}

// Notification is the immutable event value delivered to subscribers. The
// fields populated depend on the Type.
type Notification struct {
	Type NotificationType

	// Populated for NotificationNewBestBlock.
	Hash   chainhash.Hash
	Header *wire.BlockHeader
	Meta   *model.BlockHeaderMeta

	// Populated for NotificationReorganize.
	Reorg *ReorgEvent

	// Populated for NotificationTransaction.
	Tx *TxNotification
}

// subscriber is one registered notification channel.
type subscriber struct {
	ch chan *Notification
}

// notifier implements the one-way listener fan-out: the engine publishes
// immutable event values, subscribers consume them from their own
// channels. The subscriber list is copy-on-write so publishing never holds
// a lock across a send.
type notifier struct {
	mu   sync.Mutex
	subs []*subscriber

	logger interface {
		Warnf(format string, args ...interface{})
	}
}

// Subscribe registers a new listener channel with the given buffer size.
// The returned cancel function removes the subscription and closes the
// channel.
func (n *notifier) Subscribe(buffer int) (<-chan *Notification, func()) {
	sub := &subscriber{ch: make(chan *Notification, buffer)}

	n.mu.Lock()
	subs := make([]*subscriber, len(n.subs)+1)
	copy(subs, n.subs)
	subs[len(subs)-1] = sub
	n.subs = subs
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		for i, s := range n.subs {
			if s == sub {
				subs := make([]*subscriber, 0, len(n.subs)-1)
				subs = append(subs, n.subs[:i]...)
				subs = append(subs, n.subs[i+1:]...)
				n.subs = subs

				close(sub.ch)
				return
			}
		}
	}

	return sub.ch, cancel
}

// publish delivers the notification to every subscriber. A subscriber
// whose buffer is full loses the event; stalling the engine on a slow
// consumer is worse than a dropped notification.
func (n *notifier) publish(notification *Notification) {
	n.mu.Lock()
	subs := n.subs
	n.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- notification:
		default:
			if n.logger != nil {
				n.logger.Warnf("dropping %d notification: subscriber buffer full", notification.Type)
			}
		}
	}
}
