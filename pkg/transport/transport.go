// Package transport owns the UDP socket and drives the protocol engine. All
// engine access is serialized through one run-loop goroutine: inbound
// datagrams, outbound sends and the periodic tick all funnel into it, which
// is what lets the engine itself stay lock-free.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/irctrakz/rudp/pkg/core"
	"github.com/irctrakz/rudp/pkg/logging"
	"github.com/irctrakz/rudp/pkg/protocol"
)

// ErrNotRunning is returned for operations that need a started transport.
var ErrNotRunning = errors.New("transport: not running")

type sendRequest struct {
	addr    *net.UDPAddr
	payload []byte
	method  core.DeliveryMethod
	errCh   chan error
}

type inboundDatagram struct {
	data []byte
	from *net.UDPAddr
}

// Transport binds a UDP socket, feeds received datagrams to the engine,
// transmits whatever the engine emits, and ticks the engine's timeout state
// on a fixed interval. Events surface on the Events channel.
type Transport struct {
	pcfg core.ProtocolConfig
	tcfg core.TransportConfig

	engine *protocol.ConnectionManager

	conn  *net.UDPConn
	batch *ipv4.PacketConn

	conditioner core.LinkConditioner

	events    chan core.SocketEvent
	sendCh    chan sendRequest
	inboundCh chan inboundDatagram
	closeReqs chan *net.UDPAddr

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	datagramsSent     uint64
	datagramsReceived uint64
	bytesSent         uint64
	bytesReceived     uint64
	conditionedDrops  uint64
	errors            uint64
}

// NewTransport creates a transport for the given configuration. Zero-valued
// knobs fall back to defaults.
func NewTransport(pcfg core.ProtocolConfig, tcfg core.TransportConfig) *Transport {
	if tcfg.TickIntervalMs <= 0 {
		tcfg.TickIntervalMs = 16
	}
	if tcfg.EventBufferSize <= 0 {
		tcfg.EventBufferSize = 1024
	}
	if tcfg.SendBufferSize <= 0 {
		tcfg.SendBufferSize = 1024
	}
	if tcfg.ReadBatchSize <= 0 {
		tcfg.ReadBatchSize = 32
	}
	if pcfg.ReceiveBufferSize <= 0 {
		pcfg.ReceiveBufferSize = 1500
	}
	return &Transport{
		pcfg:      pcfg,
		tcfg:      tcfg,
		engine:    protocol.NewConnectionManager(pcfg),
		events:    make(chan core.SocketEvent, tcfg.EventBufferSize),
		sendCh:    make(chan sendRequest, tcfg.SendBufferSize),
		inboundCh: make(chan inboundDatagram, tcfg.SendBufferSize),
		closeReqs: make(chan *net.UDPAddr, 16),
		stopCh:    make(chan struct{}),
	}
}

// SetLinkConditioner installs a loss/latency policy on the datagram
// boundary. Must be called before Start.
func (t *Transport) SetLinkConditioner(lc core.LinkConditioner) {
	t.conditioner = lc
}

// Events returns the channel delivering payloads and lifecycle events.
func (t *Transport) Events() <-chan core.SocketEvent {
	return t.events
}

// Start binds the socket and starts the reader and run-loop goroutines.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("transport already running")
	}

	addr, err := net.ResolveUDPAddr("udp", t.tcfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", t.tcfg.ListenAddress, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %q: %w", t.tcfg.ListenAddress, err)
	}
	t.conn = conn
	t.batch = ipv4.NewPacketConn(conn)

	t.running = true
	t.wg.Add(2)
	go t.readLoop()
	go t.runLoop()

	logging.WithComponent("transport").Infof("listening on %s", conn.LocalAddr())
	return nil
}

// Stop closes the socket and stops both goroutines.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return ErrNotRunning
	}
	t.running = false
	close(t.stopCh)
	t.conn.Close()
	t.wg.Wait()
	return nil
}

// LocalAddr returns the bound address, or nil before Start.
func (t *Transport) LocalAddr() net.Addr {
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// Send queues one payload for the endpoint with the given delivery method.
// Encoding failures (payload larger than the fragment budget) surface here,
// synchronously; everything later is reported through events.
func (t *Transport) Send(addr *net.UDPAddr, payload []byte, method core.DeliveryMethod) error {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	req := sendRequest{addr: addr, payload: payload, method: method, errCh: make(chan error, 1)}
	select {
	case t.sendCh <- req:
	case <-t.stopCh:
		return ErrNotRunning
	}
	select {
	case err := <-req.errCh:
		return err
	case <-t.stopCh:
		return ErrNotRunning
	}
}

// Close disconnects an endpoint, notifying the peer best-effort.
func (t *Transport) Close(addr *net.UDPAddr) {
	select {
	case t.closeReqs <- addr:
	case <-t.stopCh:
	}
}

// Metrics returns a snapshot of the transport counters.
func (t *Transport) Metrics() core.TransportMetrics {
	return core.TransportMetrics{
		DatagramsSent:     atomic.LoadUint64(&t.datagramsSent),
		DatagramsReceived: atomic.LoadUint64(&t.datagramsReceived),
		BytesSent:         atomic.LoadUint64(&t.bytesSent),
		BytesReceived:     atomic.LoadUint64(&t.bytesReceived),
		ConditionedDrops:  atomic.LoadUint64(&t.conditionedDrops),
		Errors:            atomic.LoadUint64(&t.errors),
	}
}

// readLoop reads datagram batches off the socket and hands them to the run
// loop, applying the inbound half of the link conditioner.
func (t *Transport) readLoop() {
	defer t.wg.Done()

	msgs := make([]ipv4.Message, t.tcfg.ReadBatchSize)
	for i := range msgs {
		msgs[i].Buffers = [][]byte{make([]byte, t.pcfg.ReceiveBufferSize)}
	}

	for {
		n, err := t.batch.ReadBatch(msgs, 0)
		if err != nil {
			select {
			case <-t.stopCh:
				return
			default:
			}
			atomic.AddUint64(&t.errors, 1)
			logging.Debugf("transport read error: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			m := &msgs[i]
			from, ok := m.Addr.(*net.UDPAddr)
			if !ok || m.N == 0 {
				continue
			}
			atomic.AddUint64(&t.datagramsReceived, 1)
			atomic.AddUint64(&t.bytesReceived, uint64(m.N))

			data := make([]byte, m.N)
			copy(data, m.Buffers[0][:m.N])
			in := inboundDatagram{data: data, from: from}

			if t.conditioner != nil {
				delay, ok := t.conditioner.Intercept(core.Inbound, m.N)
				if !ok {
					atomic.AddUint64(&t.conditionedDrops, 1)
					continue
				}
				if delay > 0 {
					time.AfterFunc(delay, func() { t.enqueueInbound(in) })
					continue
				}
			}
			t.enqueueInbound(in)
		}
	}
}

func (t *Transport) enqueueInbound(in inboundDatagram) {
	select {
	case t.inboundCh <- in:
	case <-t.stopCh:
	}
}

// runLoop is the only goroutine that touches the engine.
func (t *Transport) runLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(time.Duration(t.tcfg.TickIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return

		case req := <-t.sendCh:
			datagrams, err := t.engine.ProcessOutgoing(req.addr, req.payload, req.method, time.Now())
			req.errCh <- err
			t.transmit(datagrams)

		case in := <-t.inboundCh:
			events, err := t.engine.ProcessIncoming(in.data, in.from, time.Now())
			if err != nil {
				logging.Debugf("discarding datagram from %s: %v", in.from, err)
			}
			t.emit(events)

		case addr := <-t.closeReqs:
			t.transmit(t.engine.Close(addr))

		case <-ticker.C:
			datagrams, events := t.engine.Tick(time.Now())
			t.transmit(datagrams)
			t.emit(events)
		}
	}
}

func (t *Transport) transmit(datagrams []core.Datagram) {
	for _, d := range datagrams {
		if t.conditioner != nil {
			delay, ok := t.conditioner.Intercept(core.Outbound, len(d.Payload))
			if !ok {
				atomic.AddUint64(&t.conditionedDrops, 1)
				continue
			}
			if delay > 0 {
				dg := d
				time.AfterFunc(delay, func() { t.write(dg) })
				continue
			}
		}
		t.write(d)
	}
}

// write puts one datagram on the wire. UDPConn writes are safe to call from
// delayed timers as well as the run loop.
func (t *Transport) write(d core.Datagram) {
	n, err := t.conn.WriteToUDP(d.Payload, d.Addr)
	if err != nil {
		atomic.AddUint64(&t.errors, 1)
		logging.Debugf("transport write to %s failed: %v", d.Addr, err)
		return
	}
	atomic.AddUint64(&t.datagramsSent, 1)
	atomic.AddUint64(&t.bytesSent, uint64(n))
}

// emit forwards events without ever blocking the run loop. A full event
// channel sheds the oldest-unread semantics in favor of dropping, which the
// caller can detect through the gap in traffic.
func (t *Transport) emit(events []core.SocketEvent) {
	for _, ev := range events {
		select {
		case t.events <- ev:
		default:
			atomic.AddUint64(&t.errors, 1)
			logging.Warnf("event channel full, dropping %T", ev)
		}
	}
}
