package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/rudp/pkg/core"
)

func TestHeaderSizes(t *testing.T) {
	h := Header{Type: TypePacket}
	assert.Equal(t, HeaderSize, h.Size())

	h.Type = TypeFragment
	assert.Equal(t, HeaderSize+FragmentMetaSize, h.Size())

	h.Method = core.ReliableOrdered
	assert.Equal(t, HeaderSize+FragmentMetaSize+OrderedMetaSize, h.Size())

	h.Type = TypePacket
	assert.Equal(t, HeaderSize+OrderedMetaSize, h.Size())
}

func TestHeaderRoundTrip(t *testing.T) {
	payload := []byte("hello world")
	h := Header{
		ProtocolID:     ProtocolID(),
		Type:           TypePacket,
		Method:         core.ReliableOrdered,
		Sequence:       4097,
		Ack:            4095,
		AckBits:        0xDEADBEEF,
		StreamSequence: 512,
	}
	data := h.Marshal(payload)
	require.Equal(t, HeaderSize+OrderedMetaSize+len(payload), len(data))

	var parsed Header
	require.NoError(t, parsed.Unmarshal(data))
	assert.Equal(t, h.Sequence, parsed.Sequence)
	assert.Equal(t, h.Ack, parsed.Ack)
	assert.Equal(t, h.AckBits, parsed.AckBits)
	assert.Equal(t, core.ReliableOrdered, parsed.Method)
	assert.Equal(t, uint16(512), parsed.StreamSequence)
	assert.Equal(t, payload, parsed.Payload(data))
}

func TestFragmentHeaderRoundTrip(t *testing.T) {
	h := Header{
		ProtocolID:    ProtocolID(),
		Type:          TypeFragment,
		Method:        core.ReliableUnordered,
		Sequence:      9,
		GroupID:       3,
		FragmentIndex: 2,
		FragmentCount: 5,
	}
	chunk := []byte{1, 2, 3}
	data := h.Marshal(chunk)

	var parsed Header
	require.NoError(t, parsed.Unmarshal(data))
	assert.Equal(t, uint16(3), parsed.GroupID)
	assert.Equal(t, uint8(2), parsed.FragmentIndex)
	assert.Equal(t, uint8(5), parsed.FragmentCount)
	assert.Equal(t, chunk, parsed.Payload(data))
}

func TestOrderedFragmentHeaderRoundTrip(t *testing.T) {
	h := Header{
		ProtocolID:     ProtocolID(),
		Type:           TypeFragment,
		Method:         core.ReliableOrdered,
		Sequence:       31,
		GroupID:        7,
		FragmentIndex:  1,
		FragmentCount:  2,
		StreamSequence: 12,
	}
	chunk := []byte{9, 9}
	data := h.Marshal(chunk)
	require.Equal(t, HeaderSize+FragmentMetaSize+OrderedMetaSize+len(chunk), len(data))

	var parsed Header
	require.NoError(t, parsed.Unmarshal(data))
	assert.Equal(t, uint16(7), parsed.GroupID)
	assert.Equal(t, uint16(12), parsed.StreamSequence)
	assert.Equal(t, chunk, parsed.Payload(data))

	// Chopping off the ordered-stream block must not parse.
	var short Header
	assert.ErrorIs(t, short.Unmarshal(data[:HeaderSize+FragmentMetaSize]), ErrShortDatagram)
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	good := (&Header{ProtocolID: ProtocolID(), Type: TypePacket, Method: core.Unreliable}).Marshal([]byte("x"))

	tests := []struct {
		name   string
		mangle func([]byte) []byte
		want   error
	}{
		{"short datagram", func(d []byte) []byte { return d[:HeaderSize-1] }, ErrShortDatagram},
		{"wrong version", func(d []byte) []byte { d[0] ^= 0xFF; return d }, ErrVersionMismatch},
		{"unknown packet type", func(d []byte) []byte { d[4] = 9; return d }, ErrUnknownPacketType},
		{"unknown delivery method", func(d []byte) []byte { d[5] = 77; return d }, ErrUnknownDelivery},
		{"truncated payload", func(d []byte) []byte { return d[:len(d)-1] }, ErrPayloadLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), good...)
			var h Header
			assert.ErrorIs(t, h.Unmarshal(tt.mangle(data)), tt.want)
		})
	}
}

func TestProtocolID(t *testing.T) {
	assert.True(t, ValidProtocolID(ProtocolID()))
	assert.False(t, ValidProtocolID(ProtocolID()+1))
}
