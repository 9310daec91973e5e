package enums

import "fmt"

// OrderStatus is the fulfillment axis of an order. Transitions are only legal
// when listed in the transition table below; everything else is rejected
// regardless of caller.
type OrderStatus string

const (
	OrderStatusPendingCommit    OrderStatus = "pending_commit"
	OrderStatusCommitted        OrderStatus = "committed"
	OrderStatusCourierScheduled OrderStatus = "courier_scheduled"
	OrderStatusShipped          OrderStatus = "shipped"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusRefunded         OrderStatus = "refunded"
	OrderStatusCancelled        OrderStatus = "cancelled"
	OrderStatusFailed           OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingCommit,
	OrderStatusCommitted,
	OrderStatusCourierScheduled,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusRefunded,
	OrderStatusCancelled,
	OrderStatusFailed,
}

// orderTransitions is the closed legal status graph. The only exit from
// delivered is the refund path; refunded has no exits.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingCommit:    {OrderStatusCommitted, OrderStatusRefunded, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusCommitted:        {OrderStatusCourierScheduled, OrderStatusRefunded, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusCourierScheduled: {OrderStatusShipped, OrderStatusRefunded, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusShipped:          {OrderStatusDelivered, OrderStatusRefunded, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusDelivered:        {OrderStatusRefunded},
	OrderStatusFailed:           {OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusCancelled:        {OrderStatusRefunded},
	OrderStatusRefunded:         {},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order is in a state the engine never mutates
// through the normal fulfillment flow.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusRefunded, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the status graph permits moving to target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
