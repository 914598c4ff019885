package core

// DeliveryMethod specifies the reliability and ordering guarantees applied to
// a payload. It is a closed set; every decision point in the engine switches
// exhaustively over it.
type DeliveryMethod uint8

const (
	// Unreliable packets can be dropped, duplicated or arrive out of order.
	// Bare UDP semantics, suitable for frequent state snapshots.
	Unreliable DeliveryMethod = iota

	// ReliableUnordered packets always arrive, but in no particular order.
	ReliableUnordered

	// ReliableOrdered packets always arrive, and are handed to the caller in
	// the order they were sent. Gaps hold back newer packets until filled or
	// declared stale.
	ReliableOrdered

	// ReliableSequenced packets always arrive on the wire, but only the
	// newest one is handed to the caller; late arrivals are discarded.
	ReliableSequenced
)

// IsReliable reports whether packets sent with this method enter the
// retransmission queue.
func (m DeliveryMethod) IsReliable() bool {
	switch m {
	case ReliableUnordered, ReliableOrdered, ReliableSequenced:
		return true
	case Unreliable:
		return false
	}
	return false
}

func (m DeliveryMethod) String() string {
	switch m {
	case Unreliable:
		return "unreliable"
	case ReliableUnordered:
		return "reliable-unordered"
	case ReliableOrdered:
		return "reliable-ordered"
	case ReliableSequenced:
		return "reliable-sequenced"
	}
	return "unknown"
}

// DeliveryMethodFromID maps a wire-level tag back to a DeliveryMethod.
func DeliveryMethodFromID(id uint8) (DeliveryMethod, bool) {
	m := DeliveryMethod(id)
	switch m {
	case Unreliable, ReliableUnordered, ReliableOrdered, ReliableSequenced:
		return m, true
	}
	return Unreliable, false
}
