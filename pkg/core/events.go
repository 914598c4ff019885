package core

import "net"

// SocketEvent is anything the engine reports back to the caller: delivered
// payloads, connection lifecycle changes and per-packet delivery failures.
type SocketEvent interface {
	// Addr returns the remote endpoint the event concerns.
	Addr() *net.UDPAddr
}

// PacketEvent carries a completed, deduplicated, order-respecting payload.
type PacketEvent struct {
	Packet Packet
}

func (e PacketEvent) Addr() *net.UDPAddr { return e.Packet.Addr() }

// ConnectEvent signals that a remote endpoint completed its first round of
// valid traffic and the virtual connection is now established.
type ConnectEvent struct {
	Remote *net.UDPAddr
}

func (e ConnectEvent) Addr() *net.UDPAddr { return e.Remote }

// TimeoutEvent signals that a connection saw no traffic for longer than the
// disconnect window and has been closed. This is a lifecycle notification,
// not an error.
type TimeoutEvent struct {
	Remote *net.UDPAddr
}

func (e TimeoutEvent) Addr() *net.UDPAddr { return e.Remote }

// DisconnectEvent signals that the peer closed the connection explicitly.
type DisconnectEvent struct {
	Remote *net.UDPAddr
}

func (e DisconnectEvent) Addr() *net.UDPAddr { return e.Remote }

// DeliveryFailureEvent reports a reliable packet that exhausted its retry
// budget without being acknowledged. The connection itself stays alive.
type DeliveryFailureEvent struct {
	Packet   Packet
	Sequence uint16
	Retries  int
}

func (e DeliveryFailureEvent) Addr() *net.UDPAddr { return e.Packet.Addr() }
