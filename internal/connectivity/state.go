package connectivity

// State is the connection progress of the controller.
type State int32

const (
	// Disconnected means the radio is not associated.
	Disconnected State = iota
	// LinkUp means the interface reports carrier.
	LinkUp
	// AddressAcquired means the interface has an IPv4 address.
	AddressAcquired
	// BusConnected means the bus session is established.
	BusConnected
)

// String returns the state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case LinkUp:
		return "link_up"
	case AddressAcquired:
		return "address_acquired"
	case BusConnected:
		return "bus_connected"
	default:
		return "unknown"
	}
}

// States lists every state in progression order.
func States() []State {
	return []State{Disconnected, LinkUp, AddressAcquired, BusConnected}
}
