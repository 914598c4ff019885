package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func observeAll(s *Sequencer, seqs ...uint16) {
	for _, seq := range seqs {
		s.Observe(seq)
	}
}

func TestAckWindowSeveralPackets(t *testing.T) {
	var s Sequencer
	observeAll(&s, 0, 1, 2)

	ack, bits := s.Ack()
	assert.Equal(t, uint16(2), ack)
	assert.Equal(t, uint32(1|1<<1), bits)
}

func TestAckWindowOutOfOrder(t *testing.T) {
	var s Sequencer
	observeAll(&s, 1, 0, 2)

	ack, bits := s.Ack()
	assert.Equal(t, uint16(2), ack)
	assert.Equal(t, uint32(1|1<<1), bits)
}

func TestAckWindowFullSet(t *testing.T) {
	var s Sequencer
	for seq := uint16(0); seq <= 32; seq++ {
		s.Observe(seq)
	}

	ack, bits := s.Ack()
	assert.Equal(t, uint16(32), ack)
	assert.Equal(t, ^uint32(0), bits)
}

func TestAckWindowEdgeJump(t *testing.T) {
	var s Sequencer
	observeAll(&s, 0, 32)

	ack, bits := s.Ack()
	assert.Equal(t, uint16(32), ack)
	assert.Equal(t, uint32(1)<<31, bits)
}

func TestAckWindowJumpPastWidthClearsField(t *testing.T) {
	var s Sequencer
	observeAll(&s, 0, 1, 34)

	ack, bits := s.Ack()
	assert.Equal(t, uint16(34), ack)
	assert.Equal(t, uint32(0), bits)
}

func TestAckWindowAroundZero(t *testing.T) {
	var s Sequencer
	for i := uint16(0); i < 33; i++ {
		s.Observe(i - 16) // wraps below zero
	}

	ack, bits := s.Ack()
	assert.Equal(t, uint16(16), ack)
	assert.Equal(t, ^uint32(0), bits)
}

func TestAckWindowSkipsMissing(t *testing.T) {
	var s Sequencer
	observeAll(&s, 0, 1, 6, 4)

	ack, bits := s.Ack()
	assert.Equal(t, uint16(6), ack)
	// 5 missing, 4 present, 3 and 2 missing, 1 and 0 present.
	assert.Equal(t, uint32(1<<1|1<<4|1<<5), bits)
}

func TestClassify(t *testing.T) {
	var s Sequencer
	assert.Equal(t, SequenceNew, s.Classify(0), "first packet is always new")
	observeAll(&s, 0, 1, 2, 20)

	assert.Equal(t, SequenceDuplicate, s.Classify(20), "window head")
	assert.Equal(t, SequenceDuplicate, s.Classify(2), "inside bitfield, received")
	assert.Equal(t, SequenceNew, s.Classify(10), "inside bitfield, missing")
	assert.Equal(t, SequenceNew, s.Classify(21), "ahead of window")
	assert.Equal(t, SequenceStale, s.Classify(65516), "behind trailing edge")
}

func TestClassifyDuplicateIsIdempotent(t *testing.T) {
	var s Sequencer
	observeAll(&s, 5)

	before := s
	for i := 0; i < 3; i++ {
		assert.Equal(t, SequenceDuplicate, s.Classify(5))
	}
	assert.Equal(t, before, s, "classify must not mutate the window")
}

func TestSequenceGreaterThanWraparound(t *testing.T) {
	tests := []struct {
		a, b uint16
		want bool
	}{
		{1, 0, true},
		{0, 1, false},
		{0, 65535, true},  // wrapped past the maximum
		{65535, 0, false}, // predecessor of the wrap
		{32768, 0, true},  // exactly half the space ahead
		{0, 32767, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sequenceGreaterThan(tt.a, tt.b), "a=%d b=%d", tt.a, tt.b)
	}
}

func TestSequenceDistance(t *testing.T) {
	assert.Equal(t, 1, sequenceDistance(0, 65535))
	assert.Equal(t, -1, sequenceDistance(65535, 0))
	assert.Equal(t, 0, sequenceDistance(7, 7))
	assert.Equal(t, 40, sequenceDistance(30, 65526))
}

func TestNextLocalWraps(t *testing.T) {
	s := Sequencer{localSeq: 65535}
	assert.Equal(t, uint16(65535), s.NextLocal())
	assert.Equal(t, uint16(0), s.NextLocal())
	assert.Equal(t, uint16(1), s.NextLocal())
}
