package core

// ConnectionMetrics contains counters for a single virtual connection.
type ConnectionMetrics struct {
	// PacketsSent is the number of wire datagrams emitted.
	PacketsSent uint64

	// PacketsReceived is the number of wire datagrams accepted.
	PacketsReceived uint64

	// BytesSent is the number of payload bytes emitted.
	BytesSent uint64

	// BytesReceived is the number of payload bytes accepted.
	BytesReceived uint64

	// Duplicates is the number of datagrams dropped as duplicates.
	Duplicates uint64

	// Stale is the number of datagrams dropped as older than the ack window.
	Stale uint64

	// Retransmissions is the number of reliable datagrams resent.
	Retransmissions uint64

	// DeliveryFailures is the number of reliable datagrams that exhausted
	// their retry budget.
	DeliveryFailures uint64

	// FragmentGroupsDropped is the number of incomplete fragment groups
	// discarded after the reassembly timeout.
	FragmentGroupsDropped uint64
}

// EngineMetrics contains aggregate counters for the connection manager.
type EngineMetrics struct {
	// ConnectionsCreated is the number of virtual connections created.
	ConnectionsCreated uint64

	// ConnectionsClosed is the number of virtual connections removed, by
	// timeout or explicit close.
	ConnectionsClosed uint64

	// MalformedPackets is the number of datagrams discarded before reaching
	// any connection (short reads, bad headers, version mismatches).
	MalformedPackets uint64
}

// TransportMetrics contains counters for the UDP transport.
type TransportMetrics struct {
	// DatagramsSent is the number of datagrams written to the socket.
	DatagramsSent uint64

	// DatagramsReceived is the number of datagrams read from the socket.
	DatagramsReceived uint64

	// BytesSent is the number of bytes written to the socket.
	BytesSent uint64

	// BytesReceived is the number of bytes read from the socket.
	BytesReceived uint64

	// ConditionedDrops is the number of datagrams suppressed by the link
	// conditioner.
	ConditionedDrops uint64

	// Errors is the number of socket errors encountered.
	Errors uint64
}
