package core

import "net"

// Packet is the user-facing unit of data: a payload, the remote endpoint it
// came from or goes to, and the delivery method governing its guarantees.
type Packet struct {
	addr    *net.UDPAddr
	payload []byte
	method  DeliveryMethod
}

// NewPacket creates a packet with an explicit delivery method.
func NewPacket(addr *net.UDPAddr, payload []byte, method DeliveryMethod) Packet {
	return Packet{addr: addr, payload: payload, method: method}
}

// UnreliablePacket may be dropped, duplicated or reordered in transit.
func UnreliablePacket(addr *net.UDPAddr, payload []byte) Packet {
	return NewPacket(addr, payload, Unreliable)
}

// ReliableUnorderedPacket always arrives, in no particular order.
func ReliableUnorderedPacket(addr *net.UDPAddr, payload []byte) Packet {
	return NewPacket(addr, payload, ReliableUnordered)
}

// ReliableOrderedPacket always arrives, in send order.
func ReliableOrderedPacket(addr *net.UDPAddr, payload []byte) Packet {
	return NewPacket(addr, payload, ReliableOrdered)
}

// ReliableSequencedPacket always arrives, but only the newest is delivered.
func ReliableSequencedPacket(addr *net.UDPAddr, payload []byte) Packet {
	return NewPacket(addr, payload, ReliableSequenced)
}

// Payload returns the raw packet data.
func (p Packet) Payload() []byte { return p.payload }

// Addr returns the remote endpoint of this packet.
func (p Packet) Addr() *net.UDPAddr { return p.addr }

// DeliveryMethod returns how this packet is (or was) delivered.
func (p Packet) DeliveryMethod() DeliveryMethod { return p.method }

// Datagram is one opaque wire datagram addressed to an endpoint. The engine
// emits these; the transport must put them on the wire unmodified.
type Datagram struct {
	Addr    *net.UDPAddr
	Payload []byte
}
