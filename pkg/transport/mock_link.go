package transport

import (
	"net"
	"time"

	"github.com/irctrakz/rudp/pkg/core"
	"github.com/irctrakz/rudp/pkg/protocol"
)

// MockLink wires two protocol engines together in memory: datagrams emitted
// by one side are fed straight into the other, optionally through a link
// conditioner. Time is whatever the caller passes in, so tests drive the
// full two-peer protocol deterministically without sockets or sleeps.
type MockLink struct {
	A *protocol.ConnectionManager
	B *protocol.ConnectionManager

	// AddrA and AddrB identify the two endpoints on the simulated wire.
	AddrA *net.UDPAddr
	AddrB *net.UDPAddr

	// Conditioner, when set, may suppress datagrams in flight. Delays are
	// ignored; the mock link delivers synchronously.
	Conditioner core.LinkConditioner

	toA []core.Datagram
	toB []core.Datagram
}

// NewMockLink creates two engines with the same protocol configuration and
// a lossless wire between them.
func NewMockLink(cfg core.ProtocolConfig) *MockLink {
	return &MockLink{
		A:     protocol.NewConnectionManager(cfg),
		B:     protocol.NewConnectionManager(cfg),
		AddrA: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40001},
		AddrB: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40002},
	}
}

// SendA sends a payload from side A to side B.
func (l *MockLink) SendA(payload []byte, method core.DeliveryMethod, now time.Time) error {
	datagrams, err := l.A.ProcessOutgoing(l.AddrB, payload, method, now)
	if err != nil {
		return err
	}
	l.toB = append(l.toB, datagrams...)
	return nil
}

// SendB sends a payload from side B to side A.
func (l *MockLink) SendB(payload []byte, method core.DeliveryMethod, now time.Time) error {
	datagrams, err := l.B.ProcessOutgoing(l.AddrA, payload, method, now)
	if err != nil {
		return err
	}
	l.toA = append(l.toA, datagrams...)
	return nil
}

// Deliver flushes every in-flight datagram into its destination engine and
// returns the events each side produced. Datagrams queued by the deliveries
// themselves (none today, but acks piggyback on later sends) stay queued.
func (l *MockLink) Deliver(now time.Time) (eventsA, eventsB []core.SocketEvent) {
	toB := l.toB
	l.toB = nil
	for _, d := range toB {
		if l.dropped(len(d.Payload)) {
			continue
		}
		evs, _ := l.B.ProcessIncoming(d.Payload, l.AddrA, now)
		eventsB = append(eventsB, evs...)
	}
	toA := l.toA
	l.toA = nil
	for _, d := range toA {
		if l.dropped(len(d.Payload)) {
			continue
		}
		evs, _ := l.A.ProcessIncoming(d.Payload, l.AddrB, now)
		eventsA = append(eventsA, evs...)
	}
	return eventsA, eventsB
}

// Tick advances both engines and queues whatever they emit (heartbeats,
// retransmissions) onto the wire.
func (l *MockLink) Tick(now time.Time) (eventsA, eventsB []core.SocketEvent) {
	outA, evsA := l.A.Tick(now)
	l.toB = append(l.toB, outA...)
	outB, evsB := l.B.Tick(now)
	l.toA = append(l.toA, outB...)
	return evsA, evsB
}

func (l *MockLink) dropped(size int) bool {
	if l.Conditioner == nil {
		return false
	}
	_, ok := l.Conditioner.Intercept(core.Outbound, size)
	return !ok
}
