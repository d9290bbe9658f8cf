package p2p

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crown-blockchain/crownd/settings"
	"github.com/crown-blockchain/crownd/ulogger"
	"github.com/crown-blockchain/crownd/wire"
)

// remote is the far end of a peer session, driven directly with wire
// messages from the test.
type remote struct {
	t    *testing.T
	conn net.Conn
	net  wire.CrownNet
}

func (r *remote) read() wire.Message {
	r.t.Helper()

	require.NoError(r.t, r.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	msg, _, err := wire.ReadMessageWithEncoding(r.conn, wire.ProtocolVersion, r.net, wire.WitnessEncoding)
	require.NoError(r.t, err)

	return msg
}

// readUntil reads messages until one of the wanted command arrives.
func (r *remote) readUntil(command string) wire.Message {
	r.t.Helper()

	for {
		msg := r.read()
		if msg.Command() == command {
			return msg
		}
	}
}

func (r *remote) write(msg wire.Message) {
	r.t.Helper()

	require.NoError(r.t, r.conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	require.NoError(r.t, wire.WriteMessageWithEncoding(r.conn, msg, wire.ProtocolVersion, r.net, wire.WitnessEncoding))
}

func (r *remote) version(nonce uint64) *wire.MsgVersion {
	msg := wire.NewMsgVersion(&wire.NetAddress{}, &wire.NetAddress{}, nonce, 0)
	msg.Services = wire.SFNodeNetwork | wire.SFNodeWitness

	return msg
}

// newPeerPair builds a peer over one end of a pipe and a test-driven
// remote over the other.
func newPeerPair(t *testing.T, listeners MessageListeners) (*Peer, *remote) {
	t.Helper()

	tSettings := settings.NewTestSettings()

	local, far := net.Pipe()

	cfg := Config{
		Logger:    ulogger.NewTestLogger(t),
		Settings:  tSettings,
		Services:  wire.SFNodeNetwork | wire.SFNodeWitness,
		Listeners: listeners,
	}

	p := NewPeer(cfg, local, false)

	t.Cleanup(func() {
		p.Disconnect(nil)
		_ = far.Close()
	})

	return p, &remote{t: t, conn: far, net: tSettings.ChainCfgParams.Net}
}

// completeHandshake drives the remote side of the version exchange.
func completeHandshake(t *testing.T, p *Peer, r *remote) {
	t.Helper()

	// The outbound peer speaks first.
	msg := r.read()
	version, ok := msg.(*wire.MsgVersion)
	require.True(t, ok, "expected version, got %s", msg.Command())
	assert.Contains(t, version.UserAgent, "crownd")

	r.write(r.version(version.Nonce + 1))
	r.write(wire.NewMsgVerAck())

	r.readUntil(wire.CmdVerAck)

	require.Eventually(t, func() bool {
		return p.State() == StateActive
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandshake(t *testing.T) {
	activated := make(chan struct{}, 1)

	p, r := newPeerPair(t, MessageListeners{
		OnActive: func(p *Peer) {
			activated <- struct{}{}
		},
	})

	assert.Equal(t, StateConnecting, p.State())

	p.Start(context.Background())
	completeHandshake(t, p, r)

	select {
	case <-activated:
	case <-time.After(5 * time.Second):
		t.Fatal("OnActive never fired")
	}

	assert.True(t, p.WitnessEnabled())
}

func TestHandshakeTimeout(t *testing.T) {
	closed := make(chan error, 1)

	p, r := newPeerPair(t, MessageListeners{
		OnClosed: func(p *Peer, reason error) {
			closed <- reason
		},
	})
	p.cfg.Settings.P2P.HandshakeTimeout = 50 * time.Millisecond

	p.Start(context.Background())

	// Drain the version message but never answer.
	r.read()

	select {
	case reason := <-closed:
		require.Error(t, reason)
	case <-time.After(5 * time.Second):
		t.Fatal("peer never closed")
	}

	assert.Equal(t, StateClosed, p.State())
}

func TestPingServed(t *testing.T) {
	p, r := newPeerPair(t, MessageListeners{})
	p.Start(context.Background())
	completeHandshake(t, p, r)

	r.write(wire.NewMsgPing(0xfeed))

	msg := r.readUntil(wire.CmdPong)
	assert.Equal(t, uint64(0xfeed), msg.(*wire.MsgPong).Nonce)
}

func TestMessageBeforeHandshakeBansPeer(t *testing.T) {
	closed := make(chan error, 1)

	p, r := newPeerPair(t, MessageListeners{
		OnClosed: func(p *Peer, reason error) {
			closed <- reason
		},
	})
	p.Start(context.Background())

	// Drain the peer's version, then violate the protocol.
	r.read()
	r.write(wire.NewMsgInv())

	select {
	case reason := <-closed:
		require.Error(t, reason)
	case <-time.After(5 * time.Second):
		t.Fatal("peer never closed")
	}

	assert.True(t, p.Banned())
}

func TestSelfConnectionDetected(t *testing.T) {
	p, r := newPeerPair(t, MessageListeners{})
	p.Start(context.Background())

	msg := r.read()
	version := msg.(*wire.MsgVersion)

	// Echo our own nonce back, as a self-connection would.
	r.write(r.version(version.Nonce))

	require.Eventually(t, func() bool {
		return p.State() == StateClosed
	}, 5*time.Second, 10*time.Millisecond)

	assert.False(t, p.Banned())
}

func TestCancellationClosesSession(t *testing.T) {
	p, r := newPeerPair(t, MessageListeners{})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	completeHandshake(t, p, r)

	cancel()

	require.Eventually(t, func() bool {
		return p.State() == StateClosed
	}, 5*time.Second, 10*time.Millisecond)
}
