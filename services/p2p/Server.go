// Package p2p implements peer sessions over the legacy framed wire
// protocol and the download driver that feeds the chain engine.
package p2p

import (
	"context"
	"net"
	"sync"

	"github.com/libsv/go-p2p/chaincfg/chainhash"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/services/blockchain"
	"github.com/crown-blockchain/crownd/settings"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/wire"
)

// Server owns the peer set: it accepts inbound connections, dials
// outbound ones, and wires every session to the shared sync manager.
type Server struct {
	logger   ulogger.Logger
	settings *settings.Settings
	engine   *blockchain.ChainEngine
	sync     *SyncManager

	mu       sync.Mutex
	peers    map[string]*Peer
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds the peer server over the given chain engine.
func NewServer(logger ulogger.Logger, tSettings *settings.Settings, engine *blockchain.ChainEngine) *Server {
	s := &Server{
		logger:   logger,
		settings: tSettings,
		engine:   engine,
		sync:     NewSyncManager(logger, tSettings, engine),
		peers:    make(map[string]*Peer),
	}

	s.sync.SetRetry(s.retryBlock)
	initPrometheusMetrics()

	return s
}

// Start begins accepting inbound connections. It returns immediately; the
// accept loop runs until Stop or context cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.settings.P2P.ListenAddress)
	if err != nil {
		return errors.NewNetworkError("failed to listen on %s", s.settings.P2P.ListenAddress, err)
	}

	s.listener = listener
	s.logger.Infof("p2p listening on %s", listener.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					s.logger.Warnf("accept failed: %v", err)
					continue
				}
			}

			s.addPeer(conn, true)
		}
	}()

	return nil
}

// Stop closes the listener and every session, then waits for them to
// drain.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p.Disconnect(nil)
		p.WaitForDisconnect()
	}

	s.sync.Close()
	s.wg.Wait()
}

// Connect dials a remote peer and starts an outbound session.
func (s *Server) Connect(addr string) (*Peer, error) {
	dialer := net.Dialer{Timeout: s.settings.P2P.HandshakeTimeout}

	conn, err := dialer.DialContext(s.ctx, "tcp", addr)
	if err != nil {
		return nil, errors.NewNetworkError("failed to connect to %s", addr, err)
	}

	return s.addPeer(conn, false), nil
}

// PeerCount returns the number of live sessions.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.peers)
}

func (s *Server) addPeer(conn net.Conn, inbound bool) *Peer {
	cfg := Config{
		Logger:   s.logger,
		Settings: s.settings,
		Services: wire.SFNodeNetwork | wire.SFNodeWitness,
		NewestBlock: func() (int32, error) {
			_, meta, err := s.engine.BestHeader(context.Background())
			if err != nil {
				return 0, err
			}

			return int32(meta.Height), nil
		},
		Listeners: MessageListeners{
			OnActive: func(p *Peer) {
				prometheusPeersConnected.Inc()
				s.sync.StartSync(s.ctx, p)
			},
			OnClosed: func(p *Peer, reason error) {
				s.removePeer(p)
			},
			OnInv: func(p *Peer, msg *wire.MsgInv) {
				s.sync.HandleInv(s.ctx, p, msg)
			},
			OnHeaders: func(p *Peer, msg *wire.MsgHeaders) {
				s.sync.HandleHeaders(s.ctx, p, msg)
			},
			OnGetHeaders: func(p *Peer, msg *wire.MsgGetHeaders) {
				s.sync.HandleGetHeaders(s.ctx, p, msg)
			},
			OnGetData: func(p *Peer, msg *wire.MsgGetData) {
				s.sync.HandleGetData(s.ctx, p, msg)
			},
			OnBlock: func(p *Peer, msg *wire.MsgBlock) {
				s.sync.HandleBlock(s.ctx, p, msg)
			},
		},
	}

	p := NewPeer(cfg, conn, inbound)

	s.mu.Lock()
	s.peers[p.String()] = p
	s.mu.Unlock()

	p.Start(s.ctx)

	return p
}

func (s *Server) removePeer(p *Peer) {
	s.mu.Lock()
	delete(s.peers, p.String())
	s.mu.Unlock()

	prometheusPeersDisconnected.Inc()
}

// retryBlock re-requests a timed out block download from any live peer
// other than the one that failed to deliver.
func (s *Server) retryBlock(hash chainhash.Hash, excludePeer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for addr, p := range s.peers {
		if addr == excludePeer || p.State() != StateActive {
			continue
		}

		s.sync.requestBlock(p, hash)
		return
	}
}
