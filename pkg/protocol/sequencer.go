// Package protocol implements the connection-state half of the transport: a
// single-threaded, tick-driven engine that tracks per-peer sequence state,
// acknowledges and retransmits reliable traffic, fragments and reassembles
// oversized payloads, and enforces the ordering policy of each delivery
// method. It performs no I/O and arms no timers; the caller feeds it inbound
// datagrams and a wall-clock `now` on every tick.
package protocol

const (
	// AckBitfieldWidth is the number of sequence numbers behind the highest
	// seen that the ack bitfield can confirm.
	AckBitfieldWidth = 32

	// halfSequenceSpace is the wraparound midpoint of the u16 sequence space.
	halfSequenceSpace = 1 << 15
)

// sequenceGreaterThan reports whether a is more recent than b, treating the
// u16 space as circular. Raw ordering would misclassify wraparound.
func sequenceGreaterThan(a, b uint16) bool {
	return (a > b && a-b <= halfSequenceSpace) ||
		(a < b && b-a > halfSequenceSpace)
}

// sequenceDistance returns how far ahead a is of b in circular distance.
// Negative means a is behind b.
func sequenceDistance(a, b uint16) int {
	d := a - b
	if d <= halfSequenceSpace {
		return int(d)
	}
	return -int(b - a)
}

// Classification is the verdict on an incoming remote sequence number.
type Classification uint8

const (
	// SequenceNew has not been seen before and falls inside or ahead of the
	// ack window.
	SequenceNew Classification = iota
	// SequenceDuplicate has already been received.
	SequenceDuplicate
	// SequenceStale is older than the trailing edge of the ack window and
	// can no longer be tracked.
	SequenceStale
)

func (c Classification) String() string {
	switch c {
	case SequenceNew:
		return "new"
	case SequenceDuplicate:
		return "duplicate"
	case SequenceStale:
		return "stale"
	}
	return "invalid"
}

// Sequencer owns one connection's sequence state: the local send counter and
// the receive-side ack window (highest remote sequence seen plus a 32-bit
// bitfield covering the sequences behind it).
type Sequencer struct {
	localSeq uint16

	remoteSeq     uint16
	remoteAckBits uint32
	started       bool
}

// NextLocal returns the next local sequence number and advances the counter.
// The counter wraps at the u16 boundary.
func (s *Sequencer) NextLocal() uint16 {
	n := s.localSeq
	s.localSeq++
	return n
}

// LocalSequence returns the next sequence number that will be assigned,
// without consuming it.
func (s *Sequencer) LocalSequence() uint16 { return s.localSeq }

// Classify determines whether seq is new, a duplicate, or too old to track.
// It does not modify the window; call Observe for sequences classified New.
func (s *Sequencer) Classify(seq uint16) Classification {
	if !s.started {
		return SequenceNew
	}
	if seq == s.remoteSeq {
		return SequenceDuplicate
	}
	if sequenceGreaterThan(seq, s.remoteSeq) {
		return SequenceNew
	}
	behind := s.remoteSeq - seq
	if behind > AckBitfieldWidth {
		return SequenceStale
	}
	if s.remoteAckBits&(1<<(behind-1)) != 0 {
		return SequenceDuplicate
	}
	return SequenceNew
}

// Observe records receipt of a remote sequence number, shifting the ack
// window forward when seq is the newest seen, or setting the matching
// bitfield bit when it fills a hole behind the window head.
func (s *Sequencer) Observe(seq uint16) {
	if !s.started {
		s.started = true
		s.remoteSeq = seq
		s.remoteAckBits = 0
		return
	}
	if seq == s.remoteSeq {
		return
	}
	if sequenceGreaterThan(seq, s.remoteSeq) {
		shift := seq - s.remoteSeq
		if shift <= AckBitfieldWidth {
			// The old head becomes the first bit behind the new head.
			s.remoteAckBits = ((s.remoteAckBits << 1) | 1) << (shift - 1)
		} else {
			s.remoteAckBits = 0
		}
		s.remoteSeq = seq
		return
	}
	behind := s.remoteSeq - seq
	if behind <= AckBitfieldWidth {
		s.remoteAckBits |= 1 << (behind - 1)
	}
}

// Ack returns the ack fields to stamp on outgoing packets: the highest
// remote sequence seen and the bitfield confirming the 32 before it.
func (s *Sequencer) Ack() (ack uint16, ackBits uint32) {
	return s.remoteSeq, s.remoteAckBits
}
