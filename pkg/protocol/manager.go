package protocol

import (
	"net"
	"time"

	"github.com/irctrakz/rudp/pkg/core"
	"github.com/irctrakz/rudp/pkg/logging"
	"github.com/irctrakz/rudp/pkg/wire"
)

// ConnectionManager owns every virtual connection, keyed by remote endpoint.
// Connections are created on the first packet sent to or validly received
// from an endpoint and removed when they disconnect or time out.
//
// The manager is not safe for concurrent use; the caller serializes all
// access (one goroutine, or an external mutex).
type ConnectionManager struct {
	cfg         engineConfig
	connections map[string]*VirtualConnection
	metrics     core.EngineMetrics
}

// NewConnectionManager creates an empty manager with the given policy
// configuration. Zero-valued knobs fall back to engine defaults.
func NewConnectionManager(cfg core.ProtocolConfig) *ConnectionManager {
	return &ConnectionManager{
		cfg:         normalizeConfig(cfg),
		connections: make(map[string]*VirtualConnection),
	}
}

// Connection looks up the connection for an endpoint without creating one.
// Absence is not an error; it just means the endpoint has no history.
func (m *ConnectionManager) Connection(addr *net.UDPAddr) (*VirtualConnection, bool) {
	c, ok := m.connections[addr.String()]
	return c, ok
}

// Count returns the number of live connections.
func (m *ConnectionManager) Count() int { return len(m.connections) }

// Metrics returns a snapshot of the aggregate counters.
func (m *ConnectionManager) Metrics() core.EngineMetrics { return m.metrics }

func (m *ConnectionManager) connectionFor(addr *net.UDPAddr, now time.Time) *VirtualConnection {
	key := addr.String()
	if c, ok := m.connections[key]; ok {
		return c
	}
	c := newVirtualConnection(addr, m.cfg, now)
	m.connections[key] = c
	m.metrics.ConnectionsCreated++
	logging.Debugf("tracking new connection %s (%d total)", key, len(m.connections))
	return c
}

// ProcessOutgoing accepts one logical send for an endpoint, creating the
// connection if this is the first traffic for it, and returns the wire
// datagrams to transmit. A payload that cannot fit the fragment budget fails
// here, synchronously.
func (m *ConnectionManager) ProcessOutgoing(addr *net.UDPAddr, payload []byte, method core.DeliveryMethod, now time.Time) ([]core.Datagram, error) {
	return m.connectionFor(addr, now).ProcessOutgoing(payload, method, now)
}

// ProcessIncoming consumes one raw datagram from the wire. The header is
// parsed and validated before any connection state is touched: unparsable or
// wrong-version datagrams are dropped without ever creating a connection.
// The returned error exists for the caller's diagnostics only.
func (m *ConnectionManager) ProcessIncoming(data []byte, from *net.UDPAddr, now time.Time) ([]core.SocketEvent, error) {
	var h wire.Header
	if err := h.Unmarshal(data); err != nil {
		m.metrics.MalformedPackets++
		return nil, err
	}

	c, known := m.connections[from.String()]
	if !known {
		// Control traffic from an endpoint with no history carries no
		// payload and nothing to keep alive or tear down.
		if h.Type == wire.TypeHeartBeat || h.Type == wire.TypeDisconnect {
			return nil, nil
		}
		c = m.connectionFor(from, now)
	}
	events := c.handleIncoming(&h, data, now)
	if c.State() == StateDisconnected {
		m.remove(from.String())
	}
	return events, nil
}

// Tick advances every connection's timeout state machine and retransmission
// sweep, removing connections that reached their terminal state. It is the
// single scheduling entry point the engine needs from its environment.
func (m *ConnectionManager) Tick(now time.Time) ([]core.Datagram, []core.SocketEvent) {
	var out []core.Datagram
	var events []core.SocketEvent
	for key, c := range m.connections {
		datagrams, evs := c.Tick(now)
		out = append(out, datagrams...)
		events = append(events, evs...)
		if c.State() == StateDisconnected {
			m.remove(key)
		}
	}
	return out, events
}

// Close disconnects an endpoint explicitly, returning a best-effort
// disconnect datagram for the peer. Closing an unknown endpoint is a no-op.
func (m *ConnectionManager) Close(addr *net.UDPAddr) []core.Datagram {
	c, ok := m.connections[addr.String()]
	if !ok {
		return nil
	}
	out := c.Close()
	m.remove(addr.String())
	return out
}

// Remove deletes a disconnected connection outright. Live connections are
// left alone; use Close for those.
func (m *ConnectionManager) Remove(addr *net.UDPAddr) {
	if c, ok := m.connections[addr.String()]; ok && c.State() == StateDisconnected {
		m.remove(addr.String())
	}
}

func (m *ConnectionManager) remove(key string) {
	delete(m.connections, key)
	m.metrics.ConnectionsClosed++
	logging.Debugf("removed connection %s (%d remaining)", key, len(m.connections))
}
