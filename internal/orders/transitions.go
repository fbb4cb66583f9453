package orders

import "github.com/freightlinkhq/freightlink-backend/pkg/enums"

// legalTransitions is the closed transition table for the order state
// machine. Anything not listed here is only reachable through the
// admin override escape hatch.
var legalTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusAccepted,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAccepted: {
		enums.OrderStatusPickedUp,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPickedUp: {
		enums.OrderStatusInTransit,
		enums.OrderStatusDelivered,
	},
	enums.OrderStatusInTransit: {
		enums.OrderStatusDelivered,
		enums.OrderStatusCompleted,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusCompleted,
	},
}

// CanTransition reports whether moving from one status to another is a
// legal happy-path transition.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
