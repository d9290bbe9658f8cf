package p2p

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/crown-blockchain/crownd/errors"
	"github.com/crown-blockchain/crownd/settings"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/wire"
)

// Peer session states.
const (
	StateConnecting  = "connecting"
	StateHandshaking = "handshaking"
	StateActive      = "active"
	StateClosed      = "closed"
)

// Peer session state machine events.
const (
	eventConnected    = "connected"
	eventHandshakeOK  = "handshake_ok"
	eventDisconnected = "disconnected"
)

// MessageListeners holds the callbacks a peer invokes. OnVersion fires
// during the handshake; the other message callbacks fire only once the
// session is active. Message callbacks run on the peer's read goroutine,
// so messages from one session are processed in arrival order. OnActive
// fires when the handshake completes and OnClosed when the session closes.
type MessageListeners struct {
	OnVersion    func(p *Peer, msg *wire.MsgVersion)
	OnInv        func(p *Peer, msg *wire.MsgInv)
	OnHeaders    func(p *Peer, msg *wire.MsgHeaders)
	OnGetHeaders func(p *Peer, msg *wire.MsgGetHeaders)
	OnGetData    func(p *Peer, msg *wire.MsgGetData)
	OnBlock      func(p *Peer, msg *wire.MsgBlock)
	OnTx         func(p *Peer, msg *wire.MsgTx)
	OnMemPool    func(p *Peer, msg *wire.MsgMemPool)
	OnNotFound   func(p *Peer, msg *wire.MsgNotFound)
	OnReject     func(p *Peer, msg *wire.MsgReject)
	OnActive     func(p *Peer)
	OnClosed     func(p *Peer, reason error)
}

// Config is the set of collaborators a peer session needs.
type Config struct {
	Logger    ulogger.Logger
	Settings  *settings.Settings
	Listeners MessageListeners

	// Services advertises our service bits in the version message.
	Services wire.ServiceFlag

	// NewestBlock supplies the start height for the version message.
	NewestBlock func() (int32, error)
}

// Peer is one session with a remote node over a framed message stream. It
// owns a read goroutine, a write goroutine and a keep-alive ticker; all
// state transitions run through its FSM.
type Peer struct {
	cfg     Config
	conn    net.Conn
	inbound bool
	addr    string

	net  wire.CrownNet
	fsm  *fsm.FSM
	fsmM sync.Mutex

	outQueue chan wire.Message
	quit     chan struct{}
	wg       sync.WaitGroup

	closeOnce   sync.Once
	closeReason error

	// Negotiated session state.
	versionNonce    uint64
	remoteVersion   atomic.Pointer[wire.MsgVersion]
	witnessEnabled  atomic.Bool
	sendHeadersMode atomic.Bool
	verackReceived  atomic.Bool
	versionReceived atomic.Bool

	lastPingNonce atomic.Uint64
	lastPingTime  atomic.Int64

	// banned marks the session so a reconnect policy can skip the peer.
	banned atomic.Bool
}

// NewPeer wraps an established connection in a session. Call Start to run
// the handshake and message loops.
func NewPeer(cfg Config, conn net.Conn, inbound bool) *Peer {
	p := &Peer{
		cfg:          cfg,
		conn:         conn,
		inbound:      inbound,
		addr:         conn.RemoteAddr().String(),
		net:          cfg.Settings.ChainCfgParams.Net,
		outQueue:     make(chan wire.Message, 64),
		quit:         make(chan struct{}),
		versionNonce: rand.Uint64(),
	}

	p.fsm = fsm.NewFSM(
		StateConnecting,
		fsm.Events{
			{Name: eventConnected, Src: []string{StateConnecting}, Dst: StateHandshaking},
			{Name: eventHandshakeOK, Src: []string{StateHandshaking}, Dst: StateActive},
			{Name: eventDisconnected, Src: []string{StateConnecting, StateHandshaking, StateActive}, Dst: StateClosed},
		},
		fsm.Callbacks{},
	)

	return p
}

// String returns the remote address of the session.
func (p *Peer) String() string {
	return p.addr
}

// Inbound reports whether the remote side initiated the connection.
func (p *Peer) Inbound() bool {
	return p.inbound
}

// State returns the current session state.
func (p *Peer) State() string {
	p.fsmM.Lock()
	defer p.fsmM.Unlock()

	return p.fsm.Current()
}

func (p *Peer) transition(event string) {
	p.fsmM.Lock()
	defer p.fsmM.Unlock()

	// A late disconnect on an already-closed session is not an error.
	_ = p.fsm.Event(context.Background(), event)
}

// WitnessEnabled reports whether the remote advertised witness support.
func (p *Peer) WitnessEnabled() bool {
	return p.witnessEnabled.Load()
}

// Banned reports whether the session was terminated for misbehaviour.
func (p *Peer) Banned() bool {
	return p.banned.Load()
}

// Ban marks the session as misbehaving and disconnects it.
func (p *Peer) Ban(reason error) {
	p.banned.Store(true)
	p.Disconnect(reason)
}

// Start runs the session: it performs the version handshake and then
// serves messages until the connection closes or ctx is cancelled.
func (p *Peer) Start(ctx context.Context) {
	p.transition(eventConnected)

	p.wg.Add(2)
	go p.writeLoop()
	go p.readLoop()

	// Cancellation closes the transport, which drives both loops to
	// completion and the state machine to closed.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case <-ctx.Done():
			p.Disconnect(errors.NewNetworkError("session cancelled"))
		case <-p.quit:
		}
	}()

	if !p.inbound {
		p.queueVersion()
	}

	// Enforce the handshake deadline.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		timer := time.NewTimer(p.cfg.Settings.P2P.HandshakeTimeout)
		defer timer.Stop()

		select {
		case <-timer.C:
			if p.State() != StateActive {
				p.Disconnect(errors.NewNetworkTimeoutError("handshake timed out after %s", p.cfg.Settings.P2P.HandshakeTimeout))
			}
		case <-p.quit:
		}
	}()
}

// WaitForDisconnect blocks until the session has fully shut down.
func (p *Peer) WaitForDisconnect() {
	<-p.quit
	p.wg.Wait()
}

// Disconnect closes the transport and drives the state machine to closed.
// The first reason wins.
func (p *Peer) Disconnect(reason error) {
	p.closeOnce.Do(func() {
		p.closeReason = reason
		p.transition(eventDisconnected)

		_ = p.conn.Close()
		close(p.quit)

		if reason != nil {
			p.cfg.Logger.Infof("peer %s disconnected: %v", p.addr, reason)
		}

		if p.cfg.Listeners.OnClosed != nil {
			p.cfg.Listeners.OnClosed(p, reason)
		}
	})
}

// QueueMessage enqueues a message for delivery to the remote peer. It
// drops the message when the session is closing rather than blocking the
// caller.
func (p *Peer) QueueMessage(msg wire.Message) {
	select {
	case p.outQueue <- msg:
	case <-p.quit:
	}
}

func (p *Peer) queueVersion() {
	startHeight := int32(0)
	if p.cfg.NewestBlock != nil {
		if h, err := p.cfg.NewestBlock(); err == nil {
			startHeight = h
		}
	}

	local := wire.NetAddress{Services: p.cfg.Services}
	remote := wire.NetAddress{}

	version := wire.NewMsgVersion(&local, &remote, p.versionNonce, startHeight)
	version.Services = p.cfg.Services
	version.UserAgent = "/" + p.cfg.Settings.P2P.UserAgentName + ":" + p.cfg.Settings.P2P.UserAgentVersion + "/"

	p.QueueMessage(version)
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()

	for {
		select {
		case msg := <-p.outQueue:
			encoding := wire.BaseEncoding
			if p.witnessEnabled.Load() {
				encoding = wire.WitnessEncoding
			}

			if err := wire.WriteMessageWithEncoding(p.conn, msg, wire.ProtocolVersion, p.net, encoding); err != nil {
				p.Disconnect(errors.NewNetworkError("write failed", err))
				return
			}

		case <-p.quit:
			return
		}
	}
}

func (p *Peer) readLoop() {
	defer p.wg.Done()

	for {
		msg, _, err := wire.ReadMessageWithEncoding(p.conn, wire.ProtocolVersion, p.net, wire.WitnessEncoding)
		if err != nil {
			select {
			case <-p.quit:
				return
			default:
			}

			// A protocol violation disconnects with a reject reply;
			// transport errors just close.
			if errors.Is(err, errors.ErrMalformedMessage) {
				p.QueueMessage(wire.NewMsgReject("malformed", wire.RejectMalformed, err.Error()))
			}

			p.Disconnect(err)
			return
		}

		p.handleMessage(msg)
	}
}

func (p *Peer) handleMessage(msg wire.Message) {
	// Only handshake messages are legal before the session is active.
	if p.State() != StateActive {
		switch m := msg.(type) {
		case *wire.MsgVersion:
			p.handleVersion(m)
		case *wire.MsgVerAck:
			p.handleVerAck()
		default:
			p.Ban(errors.NewPeerMaliciousError("message %s before handshake completed", msg.Command()))
		}
		return
	}

	switch m := msg.(type) {
	case *wire.MsgVersion:
		p.Ban(errors.NewPeerMaliciousError("duplicate version message"))

	case *wire.MsgVerAck:
		// Redundant but harmless.

	case *wire.MsgPing:
		p.QueueMessage(wire.NewMsgPong(m.Nonce))

	case *wire.MsgPong:
		if p.lastPingNonce.Load() == m.Nonce {
			p.lastPingNonce.Store(0)
		}

	case *wire.MsgSendHeaders:
		p.sendHeadersMode.Store(true)

	case *wire.MsgInv:
		if p.cfg.Listeners.OnInv != nil {
			p.cfg.Listeners.OnInv(p, m)
		}

	case *wire.MsgHeaders:
		if p.cfg.Listeners.OnHeaders != nil {
			p.cfg.Listeners.OnHeaders(p, m)
		}

	case *wire.MsgGetHeaders:
		if p.cfg.Listeners.OnGetHeaders != nil {
			p.cfg.Listeners.OnGetHeaders(p, m)
		}

	case *wire.MsgGetData:
		if p.cfg.Listeners.OnGetData != nil {
			p.cfg.Listeners.OnGetData(p, m)
		}

	case *wire.MsgBlock:
		if p.cfg.Listeners.OnBlock != nil {
			p.cfg.Listeners.OnBlock(p, m)
		}

	case *wire.MsgTx:
		if p.cfg.Listeners.OnTx != nil {
			p.cfg.Listeners.OnTx(p, m)
		}

	case *wire.MsgMemPool:
		if p.cfg.Listeners.OnMemPool != nil {
			p.cfg.Listeners.OnMemPool(p, m)
		}

	case *wire.MsgNotFound:
		if p.cfg.Listeners.OnNotFound != nil {
			p.cfg.Listeners.OnNotFound(p, m)
		}

	case *wire.MsgReject:
		p.cfg.Logger.Warnf("peer %s rejected our %s: %s (%s)", p.addr, m.Cmd, m.Reason, m.Code)
		if p.cfg.Listeners.OnReject != nil {
			p.cfg.Listeners.OnReject(p, m)
		}
	}
}

func (p *Peer) handleVersion(msg *wire.MsgVersion) {
	if p.versionReceived.Load() {
		p.Ban(errors.NewPeerMaliciousError("duplicate version message"))
		return
	}

	// A node connecting to itself shows up as our own nonce echoed back.
	if msg.Nonce == p.versionNonce {
		p.Disconnect(errors.NewNetworkError("connected to self"))
		return
	}

	p.versionReceived.Store(true)
	p.remoteVersion.Store(msg)
	p.witnessEnabled.Store(msg.HasService(wire.SFNodeWitness))

	if p.cfg.Listeners.OnVersion != nil {
		p.cfg.Listeners.OnVersion(p, msg)
	}

	if p.inbound {
		p.queueVersion()
	}

	p.QueueMessage(wire.NewMsgVerAck())

	if uint32(msg.ProtocolVersion) >= wire.SendHeadersVersion {
		p.QueueMessage(wire.NewMsgSendHeaders())
	}

	p.maybeActivate()
}

func (p *Peer) handleVerAck() {
	if !p.versionReceived.Load() {
		p.Ban(errors.NewPeerMaliciousError("verack before version"))
		return
	}

	p.verackReceived.Store(true)
	p.maybeActivate()
}

// maybeActivate completes the handshake once both the remote version and
// its verack have been seen.
func (p *Peer) maybeActivate() {
	if !p.versionReceived.Load() || !p.verackReceived.Load() {
		return
	}

	if p.State() != StateHandshaking {
		return
	}

	p.transition(eventHandshakeOK)
	p.cfg.Logger.Infof("peer %s active (ua=%s, witness=%v)", p.addr, p.remoteVersion.Load().UserAgent, p.WitnessEnabled())

	p.startPinger()

	if p.cfg.Listeners.OnActive != nil {
		p.cfg.Listeners.OnActive(p)
	}
}

// startPinger serves the keep-alive duty: it sends a ping on every
// interval and disconnects the session when a pong does not come back
// within the deadline.
func (p *Peer) startPinger() {
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.cfg.Settings.P2P.PingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if nonce := p.lastPingNonce.Load(); nonce != 0 {
					// The previous ping was never answered.
					p.Disconnect(errors.NewNetworkTimeoutError("ping %d not answered within %s", nonce, p.cfg.Settings.P2P.PingInterval))
					return
				}

				nonce := rand.Uint64()
				p.lastPingNonce.Store(nonce)
				p.lastPingTime.Store(time.Now().UnixNano())
				p.QueueMessage(wire.NewMsgPing(nonce))

			case <-p.quit:
				return
			}
		}
	}()
}
