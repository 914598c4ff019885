package protocol

// Arrival policies for the two delivery methods that constrain ordering.

// orderedEntry is one occupied slot of the ordered stream: a payload to hand
// to the caller, or a tombstone for a slot that was consumed on the sender
// but will never deliver (reassembly gave up on its fragment group).
type orderedEntry struct {
	payload []byte
	skip    bool
}

// orderedBuffer implements ReliableOrdered delivery. It operates on the
// stream-sequence space, which numbers only the ordered payloads of one
// connection: both sides start at zero and every logical payload occupies
// exactly one slot, so a hole in the stream is always a payload in flight
// and is held back until its retransmissions fill it.
type orderedBuffer struct {
	expected uint16
	held     map[uint16]orderedEntry
}

func newOrderedBuffer() *orderedBuffer {
	return &orderedBuffer{held: make(map[uint16]orderedEntry)}
}

// insert offers one payload and returns every payload now deliverable, in
// stream order.
func (o *orderedBuffer) insert(seq uint16, payload []byte) [][]byte {
	return o.offer(seq, orderedEntry{payload: payload})
}

// skip marks a stream slot as consumed without a deliverable payload and
// returns any payloads it unblocks.
func (o *orderedBuffer) skip(seq uint16) [][]byte {
	return o.offer(seq, orderedEntry{skip: true})
}

func (o *orderedBuffer) offer(seq uint16, e orderedEntry) [][]byte {
	if sequenceDistance(seq, o.expected) < 0 {
		// Behind the delivery cursor: a slot already delivered or skipped.
		return nil
	}
	o.held[seq] = e
	return o.drain()
}

// drain yields payloads starting at the cursor, stepping over tombstones.
func (o *orderedBuffer) drain() [][]byte {
	var out [][]byte
	for {
		e, ok := o.held[o.expected]
		if !ok {
			return out
		}
		delete(o.held, o.expected)
		o.expected++
		if !e.skip {
			out = append(out, e.payload)
		}
	}
}

// sequencedGate implements ReliableSequenced delivery: only payloads newer
// than the last one delivered pass; anything older is discarded.
type sequencedGate struct {
	latest  uint16
	started bool
}

// accept reports whether a payload with this sequence should be delivered,
// and advances the gate when it is.
func (g *sequencedGate) accept(seq uint16) bool {
	if !g.started {
		g.started = true
		g.latest = seq
		return true
	}
	if sequenceGreaterThan(seq, g.latest) {
		g.latest = seq
		return true
	}
	return false
}
