package protocol

import "time"

// RttEstimator folds acknowledged-packet round trips into a smoothed RTT and
// deviation estimate (RFC 6298 weights) and derives the retransmission
// timeout from them. Samples from retransmitted packets must not be fed in
// (Karn's rule); the caller enforces that.
type RttEstimator struct {
	srtt   time.Duration
	rttvar time.Duration

	multiplier float64
	minRTO     time.Duration
	maxRTO     time.Duration
	maxSample  time.Duration
}

func newRttEstimator(multiplier float64, minRTO, maxRTO time.Duration) *RttEstimator {
	return &RttEstimator{
		multiplier: multiplier,
		minRTO:     minRTO,
		maxRTO:     maxRTO,
		// Stale acks after a reconnect can produce wild samples; anything
		// past the RTO ceiling is noise.
		maxSample: maxRTO,
	}
}

// AddSample folds one observed round trip into the estimate. Non-positive or
// implausibly large samples are discarded.
func (e *RttEstimator) AddSample(sample time.Duration) {
	if sample <= 0 || sample > e.maxSample {
		return
	}
	if e.srtt == 0 {
		e.srtt = sample
		e.rttvar = sample / 2
		return
	}
	diff := e.srtt - sample
	if diff < 0 {
		diff = -diff
	}
	e.rttvar = (3*e.rttvar + diff) / 4
	e.srtt = (7*e.srtt + sample) / 8
}

// SmoothedRTT returns the current smoothed round-trip estimate, zero before
// the first sample.
func (e *RttEstimator) SmoothedRTT() time.Duration { return e.srtt }

// RetransmissionTimeout returns the recommended timeout before resending an
// unacknowledged reliable packet: scaled SRTT plus four deviations, bounded
// below and above. Before any sample it returns the ceiling-bounded floor
// times two, erring slow rather than flooding an unmeasured link.
func (e *RttEstimator) RetransmissionTimeout() time.Duration {
	if e.srtt == 0 {
		rto := 2 * e.minRTO
		if rto > e.maxRTO {
			rto = e.maxRTO
		}
		return rto
	}
	rto := time.Duration(float64(e.srtt)*e.multiplier) + 4*e.rttvar
	if rto < e.minRTO {
		rto = e.minRTO
	}
	if rto > e.maxRTO {
		rto = e.maxRTO
	}
	return rto
}
