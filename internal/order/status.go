package order

import "ms-sorteos/internal/models"

type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
)

// Status is the order status an outcome settles into.
func (o Outcome) Status() models.OrderStatus {
	switch o {
	case OutcomeApproved:
		return models.OrderApproved
	case OutcomeRejected:
		return models.OrderRejected
	case OutcomeCancelled:
		return models.OrderCancelled
	}
	return ""
}

func (o Outcome) Valid() bool {
	return o.Status() != ""
}

type Action int

const (
	// Apply the outcome to a pending order.
	Apply Action = iota
	// Replay the stored result. The order already settled with this outcome.
	Replay
	// Conflict: the order already settled with a different outcome.
	Conflict
)

func (a Action) String() string {
	switch a {
	case Apply:
		return "apply"
	case Replay:
		return "replay"
	case Conflict:
		return "conflict"
	}
	return "unknown"
}

// Transition decides what settling current with outcome does. It has no side
// effects; every terminal status is absorbing.
func Transition(current models.OrderStatus, outcome Outcome) Action {
	if !current.IsTerminal() {
		return Apply
	}
	if current == outcome.Status() {
		return Replay
	}
	return Conflict
}
