package gateway

// OrderStatus is the lifecycle position of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	OrderStatusPendingReplace  OrderStatus = "PENDING_REPLACE"
)

// orderTransitions lists the statuses reachable from each non-terminal status.
// Terminal statuses have no entry.
var orderTransitions = map[OrderStatus]map[OrderStatus]struct{}{
	OrderStatusNew: {
		OrderStatusPartiallyFilled: {},
		OrderStatusFilled:          {},
		OrderStatusCancelled:       {},
		OrderStatusRejected:        {},
		OrderStatusExpired:         {},
		OrderStatusPendingCancel:   {},
		OrderStatusPendingReplace:  {},
	},
	OrderStatusPartiallyFilled: {
		OrderStatusPartiallyFilled: {},
		OrderStatusFilled:          {},
		OrderStatusCancelled:       {},
		OrderStatusExpired:         {},
		OrderStatusPendingCancel:   {},
		OrderStatusPendingReplace:  {},
	},
	OrderStatusPendingCancel: {
		OrderStatusCancelled:       {},
		OrderStatusPartiallyFilled: {},
		OrderStatusFilled:          {},
	},
	OrderStatusPendingReplace: {
		OrderStatusNew:             {},
		OrderStatusPartiallyFilled: {},
		OrderStatusFilled:          {},
		OrderStatusCancelled:       {},
		OrderStatusRejected:        {},
	},
}

// AllOrderStatuses returns every status in declaration order.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusNew,
		OrderStatusPartiallyFilled,
		OrderStatusFilled,
		OrderStatusCancelled,
		OrderStatusRejected,
		OrderStatusExpired,
		OrderStatusPendingCancel,
		OrderStatusPendingReplace,
	}
}

// IsValid checks the status is one of the known values
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusNew, OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled,
		OrderStatusRejected, OrderStatusExpired, OrderStatusPendingCancel, OrderStatusPendingReplace:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition can leave this status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	allowed, ok := orderTransitions[s]
	if !ok {
		return false
	}
	_, exists := allowed[target]
	return exists
}

// IsCancellable reports whether an order in this status may be cancelled.
func (s OrderStatus) IsCancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// CancellableStatuses returns the statuses from which a cancel may proceed.
func CancellableStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(orderTransitions))
	for _, s := range AllOrderStatuses() {
		if s.IsCancellable() {
			out = append(out, s)
		}
	}
	return out
}
