package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/rudp/pkg/core"
	"github.com/irctrakz/rudp/pkg/wire"
)

func testDatagram(t *testing.T, h wire.Header, payload []byte) []byte {
	t.Helper()
	h.ProtocolID = wire.ProtocolID()
	return h.Marshal(payload)
}

func TestManagerCreatesConnectionOnFirstSend(t *testing.T) {
	m := NewConnectionManager(testConnConfig())
	now := time.Now()
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 9000}

	assert.Equal(t, 0, m.Count())
	_, err := m.ProcessOutgoing(addr, []byte("hello"), core.Unreliable, now)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	c, ok := m.Connection(addr)
	require.True(t, ok)
	assert.Equal(t, addr, c.RemoteAddr())

	// Sending again reuses the connection.
	_, err = m.ProcessOutgoing(addr, []byte("again"), core.Unreliable, now)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, uint64(1), m.Metrics().ConnectionsCreated)
}

func TestManagerCreatesConnectionOnFirstReceive(t *testing.T) {
	m := NewConnectionManager(testConnConfig())
	now := time.Now()
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 9000}

	data := testDatagram(t, wire.Header{Type: wire.TypePacket, Method: core.Unreliable, Sequence: 0}, []byte("hi"))
	events, err := m.ProcessIncoming(data, addr, now)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.IsType(t, core.ConnectEvent{}, events[0])
	assert.Equal(t, 1, m.Count())
}

func TestManagerDropsMalformedWithoutCreating(t *testing.T) {
	m := NewConnectionManager(testConnConfig())
	now := time.Now()
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 3), Port: 9000}

	_, err := m.ProcessIncoming([]byte{1, 2, 3}, addr, now)
	assert.ErrorIs(t, err, wire.ErrShortDatagram)
	assert.Equal(t, 0, m.Count(), "garbage must not allocate connection state")

	// Valid framing with the wrong protocol tag is equally ignored.
	h := wire.Header{ProtocolID: 0xDEADBEEF, Type: wire.TypePacket, Method: core.Unreliable}
	_, err = m.ProcessIncoming(h.Marshal([]byte("x")), addr, now)
	assert.ErrorIs(t, err, wire.ErrVersionMismatch)
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, uint64(2), m.Metrics().MalformedPackets)
}

func TestManagerIgnoresControlFromUnknownEndpoint(t *testing.T) {
	m := NewConnectionManager(testConnConfig())
	now := time.Now()
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 10), Port: 9000}

	// Heartbeats and disconnects from strangers must not conjure up a
	// connection just to report its lifecycle.
	events, err := m.ProcessIncoming(testDatagram(t, wire.Header{Type: wire.TypeHeartBeat, Method: core.Unreliable, Sequence: 0}, nil), addr, now)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 0, m.Count())

	events, err = m.ProcessIncoming(testDatagram(t, wire.Header{Type: wire.TypeDisconnect, Method: core.Unreliable, Sequence: 0}, nil), addr, now)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, uint64(0), m.Metrics().ConnectionsCreated)

	// A data packet still opens the connection.
	events, err = m.ProcessIncoming(testDatagram(t, wire.Header{Type: wire.TypePacket, Method: core.Unreliable, Sequence: 0}, []byte("hi")), addr, now)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, m.Count())
}

func TestManagerRemovesOnPeerDisconnect(t *testing.T) {
	m := NewConnectionManager(testConnConfig())
	now := time.Now()
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 4), Port: 9000}

	_, err := m.ProcessIncoming(testDatagram(t, wire.Header{Type: wire.TypePacket, Method: core.Unreliable, Sequence: 0}, []byte("a")), addr, now)
	require.NoError(t, err)
	require.Equal(t, 1, m.Count())

	events, err := m.ProcessIncoming(testDatagram(t, wire.Header{Type: wire.TypeDisconnect, Method: core.Unreliable, Sequence: 1}, nil), addr, now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.IsType(t, core.DisconnectEvent{}, events[0])
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, uint64(1), m.Metrics().ConnectionsClosed)
}

func TestManagerTickRemovesTimedOut(t *testing.T) {
	m := NewConnectionManager(testConnConfig())
	base := time.Now()
	addrA := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 9000}
	addrB := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 6), Port: 9000}

	_, err := m.ProcessIncoming(testDatagram(t, wire.Header{Type: wire.TypePacket, Method: core.Unreliable, Sequence: 0}, []byte("a")), addrA, base)
	require.NoError(t, err)
	_, err = m.ProcessIncoming(testDatagram(t, wire.Header{Type: wire.TypePacket, Method: core.Unreliable, Sequence: 0}, []byte("b")), addrB, base.Add(20*time.Second))
	require.NoError(t, err)
	require.Equal(t, 2, m.Count())

	// Walk both connections into IdlePending, then time out only the older.
	m.Tick(base.Add(26 * time.Second))
	_, events := m.Tick(base.Add(31 * time.Second))
	require.Len(t, events, 1)
	timeout, ok := events[0].(core.TimeoutEvent)
	require.True(t, ok)
	assert.Equal(t, addrA.String(), timeout.Remote.String())
	assert.Equal(t, 1, m.Count())
	_, stillThere := m.Connection(addrB)
	assert.True(t, stillThere)
}

func TestManagerClose(t *testing.T) {
	m := NewConnectionManager(testConnConfig())
	now := time.Now()
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 9000}

	_, err := m.ProcessOutgoing(addr, []byte("x"), core.Unreliable, now)
	require.NoError(t, err)

	out := m.Close(addr)
	require.Len(t, out, 1)
	var h wire.Header
	require.NoError(t, h.Unmarshal(out[0].Payload))
	assert.Equal(t, wire.TypeDisconnect, h.Type)
	assert.Equal(t, 0, m.Count())

	assert.Nil(t, m.Close(addr), "closing an unknown endpoint is a no-op")
}

func TestManagerIsolatesConnections(t *testing.T) {
	m := NewConnectionManager(testConnConfig())
	now := time.Now()
	addrA := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 8), Port: 9000}
	addrB := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 9000}

	// Both peers use sequence 0; neither is a duplicate of the other.
	for _, addr := range []*net.UDPAddr{addrA, addrB} {
		events, err := m.ProcessIncoming(testDatagram(t, wire.Header{Type: wire.TypePacket, Method: core.Unreliable, Sequence: 0}, []byte("hello")), addr, now)
		require.NoError(t, err)
		require.Len(t, events, 2)
	}

	a, _ := m.Connection(addrA)
	b, _ := m.Connection(addrB)
	assert.Equal(t, uint64(0), a.Metrics().Duplicates)
	assert.Equal(t, uint64(0), b.Metrics().Duplicates)
}
