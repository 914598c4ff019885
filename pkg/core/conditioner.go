package core

import "time"

// Direction marks which side of the socket boundary a datagram is crossing.
type Direction uint8

const (
	// Outbound datagrams are on their way from the engine to the wire.
	Outbound Direction = iota
	// Inbound datagrams arrived from the wire and are headed to the engine.
	Inbound
)

// LinkConditioner is a policy hook invoked on every datagram crossing the
// socket boundary. It can suppress a datagram (simulated loss) or delay its
// delivery (simulated latency/jitter). Purely a test and diagnostics seam;
// the engine itself never depends on its behavior for correctness.
type LinkConditioner interface {
	// Intercept returns the artificial delay to apply before the datagram is
	// passed on, and ok=false if the datagram should be dropped outright.
	Intercept(dir Direction, size int) (delay time.Duration, ok bool)
}
