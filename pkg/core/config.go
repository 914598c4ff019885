package core

// ProtocolConfig contains the policy knobs of the protocol engine. All
// timeouts are caller-clock driven; the engine never arms its own timers.
type ProtocolConfig struct {
	// FragmentSize is the maximum payload bytes carried by a single datagram.
	// Larger payloads are fragmented.
	FragmentSize int `json:"fragment_size" yaml:"fragmentSize"`

	// MaxFragments is the maximum number of fragments a payload may split
	// into. The wire format caps this at 255.
	MaxFragments int `json:"max_fragments" yaml:"maxFragments"`

	// ReceiveBufferSize is the size of the buffer datagrams are read into.
	ReceiveBufferSize int `json:"receive_buffer_size" yaml:"receiveBufferSize"`

	// IdleTimeoutMs is the quiet interval after which a connected peer is
	// considered idle.
	IdleTimeoutMs int `json:"idle_timeout_ms" yaml:"idleTimeoutMs"`

	// DisconnectTimeoutMs is the quiet interval after which an idle peer is
	// dropped. Measured from the last observed packet, so it must be larger
	// than IdleTimeoutMs.
	DisconnectTimeoutMs int `json:"disconnect_timeout_ms" yaml:"disconnectTimeoutMs"`

	// HeartbeatIntervalMs is how long a connection may stay send-quiet before
	// the engine emits a heartbeat to keep the peer from idling us out.
	HeartbeatIntervalMs int `json:"heartbeat_interval_ms" yaml:"heartbeatIntervalMs"`

	// ReassemblyTimeoutMs is how long an incomplete fragment group is kept
	// before being discarded.
	ReassemblyTimeoutMs int `json:"reassembly_timeout_ms" yaml:"reassemblyTimeoutMs"`

	// MaxRetries is the number of times a reliable packet is retransmitted
	// before being reported as a delivery failure.
	MaxRetries int `json:"max_retries" yaml:"maxRetries"`

	// RTOMultiplier scales the smoothed RTT when deriving the retransmission
	// timeout.
	RTOMultiplier float64 `json:"rto_multiplier" yaml:"rtoMultiplier"`

	// MinRTOMs is the floor of the retransmission timeout.
	MinRTOMs int `json:"min_rto_ms" yaml:"minRTOMs"`

	// MaxRTOMs is the ceiling of the retransmission timeout.
	MaxRTOMs int `json:"max_rto_ms" yaml:"maxRTOMs"`
}

// TransportConfig contains configuration for the UDP transport that drives
// the engine.
type TransportConfig struct {
	// ListenAddress is the local address to bind, e.g. "0.0.0.0:34254".
	ListenAddress string `json:"listen_address" yaml:"listenAddress"`

	// TickIntervalMs is how often the transport advances the engine's
	// timeout and retransmission state.
	TickIntervalMs int `json:"tick_interval_ms" yaml:"tickIntervalMs"`

	// EventBufferSize is the capacity of the socket event channel.
	EventBufferSize int `json:"event_buffer_size" yaml:"eventBufferSize"`

	// SendBufferSize is the capacity of the outbound send queue.
	SendBufferSize int `json:"send_buffer_size" yaml:"sendBufferSize"`

	// ReadBatchSize is the number of datagrams read from the socket per
	// batch syscall.
	ReadBatchSize int `json:"read_batch_size" yaml:"readBatchSize"`

	// Debug enables verbose logging of per-datagram decisions.
	Debug bool `json:"debug" yaml:"debug"`
}
