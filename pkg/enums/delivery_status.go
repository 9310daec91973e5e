package enums

import "fmt"

// DeliveryStatus tracks the physical shipment axis, independent of the
// order's fulfillment status.
type DeliveryStatus string

const (
	DeliveryStatusNone            DeliveryStatus = "none"
	DeliveryStatusPickupScheduled DeliveryStatus = "pickup_scheduled"
	// Reserved for courier status callbacks; no flow writes it yet.
	DeliveryStatusPickupAttempted DeliveryStatus = "pickup_attempted"
	DeliveryStatusDelivered       DeliveryStatus = "delivered"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusNone,
	DeliveryStatusPickupScheduled,
	DeliveryStatusPickupAttempted,
	DeliveryStatusDelivered,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
