package transport

import (
	"math/rand"
	"sync"
	"time"

	"github.com/irctrakz/rudp/pkg/core"
)

// SimulatedLink is a LinkConditioner that injects synthetic loss and latency
// at the datagram boundary. Test and diagnostics use only; a nil or
// zero-valued SimulatedLink passes everything through untouched.
type SimulatedLink struct {
	// DropRate is the probability in [0,1) that a datagram is suppressed.
	DropRate float64

	// Latency is the base artificial delay applied to every datagram.
	Latency time.Duration

	// Jitter adds a uniformly random extra delay in [0,Jitter).
	Jitter time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

var _ core.LinkConditioner = (*SimulatedLink)(nil)

// NewSimulatedLink creates a conditioner with a deterministic seed, so test
// runs are reproducible.
func NewSimulatedLink(dropRate float64, latency, jitter time.Duration, seed int64) *SimulatedLink {
	return &SimulatedLink{
		DropRate: dropRate,
		Latency:  latency,
		Jitter:   jitter,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Intercept implements core.LinkConditioner.
func (l *SimulatedLink) Intercept(core.Direction, int) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rng == nil {
		l.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if l.DropRate > 0 && l.rng.Float64() < l.DropRate {
		return 0, false
	}
	delay := l.Latency
	if l.Jitter > 0 {
		delay += time.Duration(l.rng.Int63n(int64(l.Jitter)))
	}
	return delay, true
}
