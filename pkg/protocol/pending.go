package protocol

import (
	"time"

	"github.com/irctrakz/rudp/pkg/core"
)

// pendingPacket is one reliable datagram awaiting acknowledgment.
type pendingPacket struct {
	sequence uint16
	method   core.DeliveryMethod

	// datagram is the serialized wire bytes, resent verbatim on timeout.
	datagram []byte
	// payload is the caller's payload chunk, reported on delivery failure.
	payload []byte

	sentAt  time.Time
	retries int
}

// pendingQueue is the retransmission queue of a single connection. Entries
// are kept in send order; acks may remove from anywhere in the queue.
type pendingQueue struct {
	entries []*pendingPacket
}

func (q *pendingQueue) enqueue(p *pendingPacket) {
	q.entries = append(q.entries, p)
}

func (q *pendingQueue) len() int { return len(q.entries) }

// ack removes and returns the entry with the given sequence number, or nil
// if no such entry is pending. Removal ignores the retry count.
func (q *pendingQueue) ack(seq uint16) *pendingPacket {
	for i, p := range q.entries {
		if p.sequence == seq {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return p
		}
	}
	return nil
}

// sweep partitions timed-out entries into resends and failures. Entries past
// maxRetries are removed and returned as failed; the rest get a fresh send
// timestamp and an incremented retry count.
func (q *pendingQueue) sweep(now time.Time, rto time.Duration, maxRetries int) (resend, failed []*pendingPacket) {
	kept := q.entries[:0]
	for _, p := range q.entries {
		if now.Sub(p.sentAt) < rto {
			kept = append(kept, p)
			continue
		}
		if p.retries >= maxRetries {
			failed = append(failed, p)
			continue
		}
		p.retries++
		p.sentAt = now
		resend = append(resend, p)
		kept = append(kept, p)
	}
	q.entries = kept
	return resend, failed
}

// clear discards all pending entries. Used on close; no partial flush.
func (q *pendingQueue) clear() {
	q.entries = nil
}
