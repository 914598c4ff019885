package protocol

import (
	"errors"
	"net"
	"time"

	"github.com/irctrakz/rudp/pkg/core"
	"github.com/irctrakz/rudp/pkg/logging"
	"github.com/irctrakz/rudp/pkg/wire"
)

// ErrConnectionClosed is returned when sending on a disconnected connection.
var ErrConnectionClosed = errors.New("protocol: connection is closed")

// ConnectionState is the lifecycle state of a virtual connection.
type ConnectionState uint8

const (
	// StateConnecting means the connection exists but no valid packet has
	// been seen from the peer yet.
	StateConnecting ConnectionState = iota
	// StateConnected means traffic is flowing.
	StateConnected
	// StateIdlePending means the peer has been quiet longer than the idle
	// timeout; any packet revives it, a longer silence disconnects it.
	StateIdlePending
	// StateDisconnected is terminal; the manager removes the connection.
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateIdlePending:
		return "idle-pending"
	case StateDisconnected:
		return "disconnected"
	}
	return "invalid"
}

// VirtualConnection tracks one remote endpoint over the connectionless
// medium: its sequence state, RTT estimate, retransmission queue, reassembly
// table and ordering buffers. It is exclusively owned by a ConnectionManager
// and shares nothing with other connections.
type VirtualConnection struct {
	remote *net.UDPAddr
	cfg    engineConfig

	state ConnectionState

	seq       Sequencer
	rtt       *RttEstimator
	pending   pendingQueue
	frag      fragmenter
	reasm     *reassembler
	ordered   *orderedBuffer
	sequenced sequencedGate

	// orderedSeq numbers the ordered payloads this side has sent. One slot
	// per logical payload, shared across all of its fragments.
	orderedSeq uint16

	lastRecv time.Time
	lastSend time.Time

	metrics core.ConnectionMetrics
}

func newVirtualConnection(remote *net.UDPAddr, cfg engineConfig, now time.Time) *VirtualConnection {
	return &VirtualConnection{
		remote: remote,
		cfg:    cfg,
		state:  StateConnecting,
		rtt:    newRttEstimator(cfg.rtoMultiplier, cfg.minRTO, cfg.maxRTO),
		frag: fragmenter{
			fragmentSize: cfg.fragmentSize,
			maxFragments: cfg.maxFragments,
		},
		reasm:    newReassembler(cfg.reassemblyTimeout),
		ordered:  newOrderedBuffer(),
		lastRecv: now,
		lastSend: now,
	}
}

// RemoteAddr returns the remote endpoint of this connection.
func (c *VirtualConnection) RemoteAddr() *net.UDPAddr { return c.remote }

// State returns the current lifecycle state.
func (c *VirtualConnection) State() ConnectionState { return c.state }

// SmoothedRTT returns the current round-trip estimate for this peer.
func (c *VirtualConnection) SmoothedRTT() time.Duration { return c.rtt.SmoothedRTT() }

// Metrics returns a snapshot of the connection counters.
func (c *VirtualConnection) Metrics() core.ConnectionMetrics { return c.metrics }

// PendingCount returns how many reliable datagrams await acknowledgment.
func (c *VirtualConnection) PendingCount() int { return c.pending.len() }

// ProcessOutgoing turns one logical send into one or more wire datagrams,
// fragmenting oversized payloads, stamping sequence and ack state, and
// enqueuing reliable datagrams for retransmission.
func (c *VirtualConnection) ProcessOutgoing(payload []byte, method core.DeliveryMethod, now time.Time) ([]core.Datagram, error) {
	if c.state == StateDisconnected {
		return nil, ErrConnectionClosed
	}
	groupID, chunks, err := c.frag.split(payload)
	if err != nil {
		return nil, err
	}

	var streamSeq uint16
	if method == core.ReliableOrdered {
		streamSeq = c.orderedSeq
		c.orderedSeq++
	}

	ack, ackBits := c.seq.Ack()
	out := make([]core.Datagram, 0, len(chunks))
	for i, chunk := range chunks {
		h := wire.Header{
			ProtocolID:     wire.ProtocolID(),
			Type:           wire.TypePacket,
			Method:         method,
			Sequence:       c.seq.NextLocal(),
			Ack:            ack,
			AckBits:        ackBits,
			StreamSequence: streamSeq,
		}
		if len(chunks) > 1 {
			h.Type = wire.TypeFragment
			h.GroupID = groupID
			h.FragmentIndex = uint8(i)
			h.FragmentCount = uint8(len(chunks))
		}
		datagram := h.Marshal(chunk)
		if method.IsReliable() {
			c.pending.enqueue(&pendingPacket{
				sequence: h.Sequence,
				method:   method,
				datagram: datagram,
				payload:  chunk,
				sentAt:   now,
			})
		}
		out = append(out, core.Datagram{Addr: c.remote, Payload: datagram})
	}

	c.lastSend = now
	c.metrics.PacketsSent += uint64(len(out))
	c.metrics.BytesSent += uint64(len(payload))
	return out, nil
}

// handleIncoming consumes one parsed datagram and returns the events it
// produces: delivered payloads and lifecycle changes. Duplicates and stale
// sequences are dropped without altering any connection state.
func (c *VirtualConnection) handleIncoming(h *wire.Header, data []byte, now time.Time) []core.SocketEvent {
	switch c.seq.Classify(h.Sequence) {
	case SequenceDuplicate:
		c.metrics.Duplicates++
		return nil
	case SequenceStale:
		c.metrics.Stale++
		return nil
	}

	c.seq.Observe(h.Sequence)
	c.lastRecv = now
	c.metrics.PacketsReceived++

	var events []core.SocketEvent
	switch c.state {
	case StateConnecting:
		c.state = StateConnected
		logging.Debugf("connection %s established", c.remote)
		events = append(events, core.ConnectEvent{Remote: c.remote})
	case StateIdlePending:
		c.state = StateConnected
	}

	c.applyAck(h.Ack, h.AckBits, now)

	switch h.Type {
	case wire.TypeHeartBeat:
		// Ack bookkeeping above is the whole point of a heartbeat.

	case wire.TypeDisconnect:
		logging.Debugf("connection %s closed by peer", c.remote)
		c.teardown()
		events = append(events, core.DisconnectEvent{Remote: c.remote})

	case wire.TypePacket:
		payload := append([]byte(nil), h.Payload(data)...)
		c.metrics.BytesReceived += uint64(len(payload))
		events = c.deliver(events, h.Sequence, h.StreamSequence, payload, h.Method)

	case wire.TypeFragment:
		payload, group, err := c.reasm.add(h, h.Payload(data), now)
		if err != nil {
			logging.Debugf("connection %s: dropping fragment group=%d index=%d: %v",
				c.remote, h.GroupID, h.FragmentIndex, err)
			return events
		}
		if payload != nil {
			c.metrics.BytesReceived += uint64(len(payload))
			events = c.deliver(events, group.headSequence, group.streamSequence, payload, h.Method)
		}
	}
	return events
}

// deliver applies the arrival policy of the delivery method and appends a
// PacketEvent for every payload that reaches the caller. The ordered policy
// keys off the stream sequence; the sequenced gate off the wire sequence.
func (c *VirtualConnection) deliver(events []core.SocketEvent, seq, streamSeq uint16, payload []byte, method core.DeliveryMethod) []core.SocketEvent {
	switch method {
	case core.Unreliable, core.ReliableUnordered:
		events = append(events, core.PacketEvent{
			Packet: core.NewPacket(c.remote, payload, method),
		})
	case core.ReliableOrdered:
		events = c.releaseOrdered(events, c.ordered.insert(streamSeq, payload))
	case core.ReliableSequenced:
		if c.sequenced.accept(seq) {
			events = append(events, core.PacketEvent{
				Packet: core.NewPacket(c.remote, payload, method),
			})
		}
	}
	return events
}

func (c *VirtualConnection) releaseOrdered(events []core.SocketEvent, payloads [][]byte) []core.SocketEvent {
	for _, p := range payloads {
		events = append(events, core.PacketEvent{
			Packet: core.NewPacket(c.remote, p, core.ReliableOrdered),
		})
	}
	return events
}

// applyAck removes acknowledged entries from the retransmission queue and
// feeds clean round-trip samples to the estimator. Samples from datagrams
// that were ever retransmitted are ambiguous and skipped.
func (c *VirtualConnection) applyAck(ack uint16, ackBits uint32, now time.Time) {
	c.confirm(ack, now)
	for i := uint16(1); i <= AckBitfieldWidth; i++ {
		if ackBits&(1<<(i-1)) != 0 {
			c.confirm(ack-i, now)
		}
	}
}

func (c *VirtualConnection) confirm(seq uint16, now time.Time) {
	p := c.pending.ack(seq)
	if p == nil {
		return
	}
	if p.retries == 0 {
		c.rtt.AddSample(now.Sub(p.sentAt))
	}
}

// Tick advances the timeout state machine, emits a heartbeat when the send
// side has been quiet too long, retransmits timed-out reliable datagrams and
// ages out stale fragment groups. It is the only place time passes.
func (c *VirtualConnection) Tick(now time.Time) ([]core.Datagram, []core.SocketEvent) {
	if c.state == StateDisconnected {
		return nil, nil
	}

	var events []core.SocketEvent
	quiet := now.Sub(c.lastRecv)
	switch c.state {
	case StateConnected:
		if quiet >= c.cfg.idleTimeout {
			logging.Debugf("connection %s idle for %v", c.remote, quiet)
			c.state = StateIdlePending
		}
	case StateIdlePending, StateConnecting:
		if quiet >= c.cfg.disconnectTimeout {
			logging.Debugf("connection %s timed out after %v", c.remote, quiet)
			c.teardown()
			events = append(events, core.TimeoutEvent{Remote: c.remote})
			return nil, events
		}
	}

	var out []core.Datagram
	if now.Sub(c.lastSend) >= c.cfg.heartbeatInterval {
		out = append(out, c.controlDatagram(wire.TypeHeartBeat))
		c.lastSend = now
		c.metrics.PacketsSent++
	}

	resend, failed := c.pending.sweep(now, c.rtt.RetransmissionTimeout(), c.cfg.maxRetries)
	for _, p := range resend {
		out = append(out, core.Datagram{Addr: c.remote, Payload: p.datagram})
		c.metrics.Retransmissions++
	}
	for _, p := range failed {
		c.metrics.DeliveryFailures++
		logging.Debugf("connection %s: delivery failure seq=%d after %d retries",
			c.remote, p.sequence, p.retries)
		events = append(events, core.DeliveryFailureEvent{
			Packet:   core.NewPacket(c.remote, p.payload, p.method),
			Sequence: p.sequence,
			Retries:  p.retries,
		})
	}
	if len(resend) > 0 {
		c.lastSend = now
	}

	dropped := c.reasm.sweep(now)
	c.metrics.FragmentGroupsDropped += uint64(len(dropped))
	for _, g := range dropped {
		if g.method == core.ReliableOrdered {
			// The group's stream slot was consumed on the sender. Freeing it
			// keeps the ordered cursor from waiting on it forever.
			events = c.releaseOrdered(events, c.ordered.skip(g.streamSequence))
		}
	}
	return out, events
}

// Close moves the connection to its terminal state and returns a best-effort
// disconnect datagram to notify the peer. Pending retransmissions and
// partial reassembly state are discarded, not flushed.
func (c *VirtualConnection) Close() []core.Datagram {
	if c.state == StateDisconnected {
		return nil
	}
	out := []core.Datagram{c.controlDatagram(wire.TypeDisconnect)}
	c.teardown()
	return out
}

func (c *VirtualConnection) controlDatagram(t wire.PacketType) core.Datagram {
	ack, ackBits := c.seq.Ack()
	h := wire.Header{
		ProtocolID: wire.ProtocolID(),
		Type:       t,
		Method:     core.Unreliable,
		Sequence:   c.seq.NextLocal(),
		Ack:        ack,
		AckBits:    ackBits,
	}
	return core.Datagram{Addr: c.remote, Payload: h.Marshal(nil)}
}

func (c *VirtualConnection) teardown() {
	c.state = StateDisconnected
	c.pending.clear()
	c.reasm.clear()
}
