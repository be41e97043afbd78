package order

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s is a terminal state. No transition is legal
// out of a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether a privileged status change from one state to
// another is legal. Privileged transitions are unconstrained in direction,
// except that terminal states are frozen and cancellation is only reachable
// from pending or confirmed.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return CanCancel(from)
	}
	return true
}

// CanCancel reports whether a customer-initiated cancellation is legal from
// the given state.
func CanCancel(from Status) bool {
	return from == StatusPending || from == StatusConfirmed
}
