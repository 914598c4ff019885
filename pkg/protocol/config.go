package protocol

import (
	"time"

	"github.com/irctrakz/rudp/pkg/core"
)

// Engine defaults, applied wherever the configuration leaves a knob at zero.
// None of these are load-bearing for correctness; they are latency/overhead
// trade-offs.
const (
	defaultFragmentSize      = 1024
	defaultMaxFragments      = 16
	defaultIdleTimeout       = 5 * time.Second
	defaultDisconnectTimeout = 30 * time.Second
	defaultHeartbeatInterval = 1500 * time.Millisecond
	defaultReassemblyTimeout = 5 * time.Second
	defaultMaxRetries        = 5
	defaultRTOMultiplier     = 1.5
	defaultMinRTO            = 200 * time.Millisecond
	defaultMaxRTO            = 60 * time.Second

	// maxFragmentCount is the wire-format ceiling: fragment counts travel in
	// a single byte.
	maxFragmentCount = 255
)

// engineConfig is core.ProtocolConfig normalized into native durations with
// defaults filled in.
type engineConfig struct {
	fragmentSize int
	maxFragments int
	maxRetries   int

	idleTimeout       time.Duration
	disconnectTimeout time.Duration
	heartbeatInterval time.Duration
	reassemblyTimeout time.Duration

	rtoMultiplier float64
	minRTO        time.Duration
	maxRTO        time.Duration
}

func normalizeConfig(c core.ProtocolConfig) engineConfig {
	e := engineConfig{
		fragmentSize:      c.FragmentSize,
		maxFragments:      c.MaxFragments,
		maxRetries:        c.MaxRetries,
		idleTimeout:       time.Duration(c.IdleTimeoutMs) * time.Millisecond,
		disconnectTimeout: time.Duration(c.DisconnectTimeoutMs) * time.Millisecond,
		heartbeatInterval: time.Duration(c.HeartbeatIntervalMs) * time.Millisecond,
		reassemblyTimeout: time.Duration(c.ReassemblyTimeoutMs) * time.Millisecond,
		rtoMultiplier:     c.RTOMultiplier,
		minRTO:            time.Duration(c.MinRTOMs) * time.Millisecond,
		maxRTO:            time.Duration(c.MaxRTOMs) * time.Millisecond,
	}
	if e.fragmentSize <= 0 {
		e.fragmentSize = defaultFragmentSize
	}
	if e.maxFragments <= 0 {
		e.maxFragments = defaultMaxFragments
	}
	if e.maxFragments > maxFragmentCount {
		e.maxFragments = maxFragmentCount
	}
	if e.maxRetries <= 0 {
		e.maxRetries = defaultMaxRetries
	}
	if e.idleTimeout <= 0 {
		e.idleTimeout = defaultIdleTimeout
	}
	if e.disconnectTimeout <= e.idleTimeout {
		e.disconnectTimeout = defaultDisconnectTimeout
		if e.disconnectTimeout <= e.idleTimeout {
			e.disconnectTimeout = 2 * e.idleTimeout
		}
	}
	if e.heartbeatInterval <= 0 {
		e.heartbeatInterval = defaultHeartbeatInterval
	}
	if e.reassemblyTimeout <= 0 {
		e.reassemblyTimeout = defaultReassemblyTimeout
	}
	if e.rtoMultiplier <= 0 {
		e.rtoMultiplier = defaultRTOMultiplier
	}
	if e.minRTO <= 0 {
		e.minRTO = defaultMinRTO
	}
	if e.maxRTO <= e.minRTO {
		e.maxRTO = defaultMaxRTO
	}
	return e
}
