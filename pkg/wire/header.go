package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/irctrakz/rudp/pkg/core"
)

// PacketType identifies what a datagram carries.
type PacketType uint8

const (
	// TypePacket is a complete, unfragmented payload.
	TypePacket PacketType = 0
	// TypeFragment is one piece of a fragmented payload.
	TypeFragment PacketType = 1
	// TypeHeartBeat keeps a quiet connection from idling out. No payload.
	TypeHeartBeat PacketType = 2
	// TypeDisconnect announces an explicit close. No payload.
	TypeDisconnect PacketType = 3
)

func (t PacketType) String() string {
	switch t {
	case TypePacket:
		return "packet"
	case TypeFragment:
		return "fragment"
	case TypeHeartBeat:
		return "heartbeat"
	case TypeDisconnect:
		return "disconnect"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

const (
	// HeaderSize is the fixed size of every datagram header.
	HeaderSize = 16
	// FragmentMetaSize is the size of the fragment metadata block, present
	// only when Type is TypeFragment.
	FragmentMetaSize = 4
	// OrderedMetaSize is the size of the ordered-stream block, present only
	// when Method is ReliableOrdered.
	OrderedMetaSize = 2
)

// Header parse errors. All of them mean the datagram is discarded without
// touching connection state.
var (
	ErrShortDatagram     = errors.New("wire: datagram shorter than header")
	ErrVersionMismatch   = errors.New("wire: protocol version mismatch")
	ErrUnknownPacketType = errors.New("wire: unknown packet type")
	ErrUnknownDelivery   = errors.New("wire: unknown delivery method")
	ErrPayloadLength     = errors.New("wire: payload length field disagrees with datagram size")
)

// Header is the wire-level datagram header.
//
// Layout (big-endian):
//
//	 0  u32  protocol id (CRC32 of the version string)
//	 4  u8   packet type
//	 5  u8   delivery method
//	 6  u16  sequence number
//	 8  u16  ack (highest remote sequence seen by the sender)
//	10  u32  ack bitfield (receipt of the 32 sequences preceding ack)
//	14  u16  payload length
//	16  fragment metadata, only when packet type is fragment:
//	    u16 group id, u8 fragment index, u8 fragment count
//	    ordered-stream block, only when delivery method is reliable-ordered:
//	    u16 stream sequence (follows the fragment metadata when both present)
type Header struct {
	ProtocolID uint32
	Type       PacketType
	Method     core.DeliveryMethod
	Sequence   uint16
	Ack        uint16
	AckBits    uint32
	PayloadLen uint16

	// Fragment metadata, meaningful only when Type == TypeFragment.
	GroupID       uint16
	FragmentIndex uint8
	FragmentCount uint8

	// StreamSequence numbers the ordered stream's logical payloads. It is
	// independent of Sequence: every fragment of one ordered payload carries
	// the same value. Meaningful only when Method == ReliableOrdered.
	StreamSequence uint16
}

// Size returns the serialized size of this header in bytes.
func (h *Header) Size() int {
	n := HeaderSize
	if h.Type == TypeFragment {
		n += FragmentMetaSize
	}
	if h.Method == core.ReliableOrdered {
		n += OrderedMetaSize
	}
	return n
}

// Marshal serializes the header followed by payload into a fresh buffer.
func (h *Header) Marshal(payload []byte) []byte {
	buf := make([]byte, h.Size()+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], h.ProtocolID)
	buf[4] = uint8(h.Type)
	buf[5] = uint8(h.Method)
	binary.BigEndian.PutUint16(buf[6:8], h.Sequence)
	binary.BigEndian.PutUint16(buf[8:10], h.Ack)
	binary.BigEndian.PutUint32(buf[10:14], h.AckBits)
	binary.BigEndian.PutUint16(buf[14:16], uint16(len(payload)))
	off := HeaderSize
	if h.Type == TypeFragment {
		binary.BigEndian.PutUint16(buf[off:off+2], h.GroupID)
		buf[off+2] = h.FragmentIndex
		buf[off+3] = h.FragmentCount
		off += FragmentMetaSize
	}
	if h.Method == core.ReliableOrdered {
		binary.BigEndian.PutUint16(buf[off:off+2], h.StreamSequence)
		off += OrderedMetaSize
	}
	copy(buf[off:], payload)
	return buf
}

// Unmarshal parses a header from the front of data. It validates the
// protocol version, packet type, delivery method and payload length; any
// failure means the whole datagram must be discarded.
func (h *Header) Unmarshal(data []byte) error {
	if len(data) < HeaderSize {
		return ErrShortDatagram
	}
	h.ProtocolID = binary.BigEndian.Uint32(data[0:4])
	if !ValidProtocolID(h.ProtocolID) {
		return ErrVersionMismatch
	}
	h.Type = PacketType(data[4])
	switch h.Type {
	case TypePacket, TypeFragment, TypeHeartBeat, TypeDisconnect:
	default:
		return ErrUnknownPacketType
	}
	method, ok := core.DeliveryMethodFromID(data[5])
	if !ok {
		return ErrUnknownDelivery
	}
	h.Method = method
	h.Sequence = binary.BigEndian.Uint16(data[6:8])
	h.Ack = binary.BigEndian.Uint16(data[8:10])
	h.AckBits = binary.BigEndian.Uint32(data[10:14])
	h.PayloadLen = binary.BigEndian.Uint16(data[14:16])
	off := HeaderSize
	if h.Type == TypeFragment {
		if len(data) < off+FragmentMetaSize {
			return ErrShortDatagram
		}
		h.GroupID = binary.BigEndian.Uint16(data[off : off+2])
		h.FragmentIndex = data[off+2]
		h.FragmentCount = data[off+3]
		off += FragmentMetaSize
	}
	if h.Method == core.ReliableOrdered {
		if len(data) < off+OrderedMetaSize {
			return ErrShortDatagram
		}
		h.StreamSequence = binary.BigEndian.Uint16(data[off : off+2])
		off += OrderedMetaSize
	}
	if len(data)-h.Size() != int(h.PayloadLen) {
		return ErrPayloadLength
	}
	return nil
}

// Payload returns the payload bytes following this header in data. Only
// valid after a successful Unmarshal of the same data.
func (h *Header) Payload(data []byte) []byte {
	return data[h.Size():]
}
