package protocol

import (
	"errors"
	"time"

	"github.com/irctrakz/rudp/pkg/core"
	"github.com/irctrakz/rudp/pkg/wire"
)

// Fragmentation errors.
var (
	// ErrPayloadTooLarge means the payload cannot fit in the maximum number
	// of fragments. Surfaced synchronously to the sender.
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds max fragments * fragment size")

	// ErrFragmentInvalid means a fragment datagram carried inconsistent
	// metadata (zero count, index out of range, count disagreeing with the
	// group). The fragment is discarded.
	ErrFragmentInvalid = errors.New("protocol: invalid fragment metadata")
)

// fragmenter splits oversized payloads into equal-size chunks. Group ids are
// a per-connection monotonic counter, deliberately independent of the
// sequence-number space so retransmission and reassembly stay decoupled.
type fragmenter struct {
	fragmentSize int
	maxFragments int
	nextGroup    uint16
}

// split partitions payload into chunks of at most fragmentSize bytes. The
// returned chunks alias payload; the caller must not mutate it afterwards.
// A payload that fits in one chunk is returned as a single chunk with no
// group id consumed.
func (f *fragmenter) split(payload []byte) (groupID uint16, chunks [][]byte, err error) {
	needed := (len(payload) + f.fragmentSize - 1) / f.fragmentSize
	if needed <= 1 {
		return 0, [][]byte{payload}, nil
	}
	if needed > f.maxFragments {
		return 0, nil, ErrPayloadTooLarge
	}
	groupID = f.nextGroup
	f.nextGroup++
	chunks = make([][]byte, 0, needed)
	for start := 0; start < len(payload); start += f.fragmentSize {
		end := start + f.fragmentSize
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[start:end])
	}
	return groupID, chunks, nil
}

// reassemblyGroup accumulates the fragments of one payload.
type reassemblyGroup struct {
	fragments [][]byte
	received  int
	count     int

	// delivery context of the group, recorded from its first fragment so a
	// timed-out group can still be accounted for by the arrival policy.
	method         core.DeliveryMethod
	streamSequence uint16

	// sequence of fragment index 0, used as the payload's logical sequence
	// for the sequenced gate once the group completes.
	headSequence uint16
	haveHead     bool

	firstSeen time.Time
}

// reassembler owns the fragment-group table of one connection.
type reassembler struct {
	groups  map[uint16]*reassemblyGroup
	timeout time.Duration
}

func newReassembler(timeout time.Duration) *reassembler {
	return &reassembler{
		groups:  make(map[uint16]*reassemblyGroup),
		timeout: timeout,
	}
}

// add stores one fragment. When the group completes it returns the payload
// concatenated in index order along with the group's delivery context, and
// forgets the group. An incomplete or duplicate fragment returns a nil
// payload.
func (r *reassembler) add(h *wire.Header, data []byte, now time.Time) ([]byte, *reassemblyGroup, error) {
	if h.FragmentCount == 0 || h.FragmentIndex >= h.FragmentCount {
		return nil, nil, ErrFragmentInvalid
	}
	g, ok := r.groups[h.GroupID]
	if !ok {
		g = &reassemblyGroup{
			fragments:      make([][]byte, h.FragmentCount),
			count:          int(h.FragmentCount),
			method:         h.Method,
			streamSequence: h.StreamSequence,
			firstSeen:      now,
		}
		r.groups[h.GroupID] = g
	}
	// Every fragment of a group must declare the same count.
	if int(h.FragmentCount) != g.count {
		return nil, nil, ErrFragmentInvalid
	}
	if g.fragments[h.FragmentIndex] != nil {
		return nil, nil, nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	g.fragments[h.FragmentIndex] = buf
	g.received++
	if h.FragmentIndex == 0 {
		g.headSequence = h.Sequence
		g.haveHead = true
	}
	if g.received < g.count {
		return nil, nil, nil
	}

	total := 0
	for _, frag := range g.fragments {
		total += len(frag)
	}
	payload := make([]byte, 0, total)
	for _, frag := range g.fragments {
		payload = append(payload, frag...)
	}
	delete(r.groups, h.GroupID)
	return payload, g, nil
}

// sweep discards groups older than the reassembly timeout and returns them
// so the caller can release any stream slot they occupied. Losing an
// incomplete group is deliberate data loss, not an error.
func (r *reassembler) sweep(now time.Time) []*reassemblyGroup {
	var dropped []*reassemblyGroup
	for id, g := range r.groups {
		if now.Sub(g.firstSeen) >= r.timeout {
			delete(r.groups, id)
			dropped = append(dropped, g)
		}
	}
	return dropped
}

// clear discards all partial groups. Used on close.
func (r *reassembler) clear() {
	r.groups = make(map[uint16]*reassemblyGroup)
}
