package enums

import "fmt"

// TransferStatus is the gateway-reported state of a seller payout transfer.
type TransferStatus string

const (
	TransferStatusPending  TransferStatus = "pending"
	TransferStatusSuccess  TransferStatus = "success"
	TransferStatusFailed   TransferStatus = "failed"
	TransferStatusReversed TransferStatus = "reversed"
)

var validTransferStatuses = []TransferStatus{
	TransferStatusPending,
	TransferStatusSuccess,
	TransferStatusFailed,
	TransferStatusReversed,
}

// String implements fmt.Stringer.
func (t TransferStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransferStatus.
func (t TransferStatus) IsValid() bool {
	for _, candidate := range validTransferStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransferStatus converts raw input into a TransferStatus.
func ParseTransferStatus(value string) (TransferStatus, error) {
	for _, candidate := range validTransferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer status %q", value)
}
