package enums

import "fmt"

// CourierProvider identifies which shipping provider booked a pickup.
type CourierProvider string

const (
	CourierProviderCourierGuy CourierProvider = "courier-guy"
	CourierProviderFastway    CourierProvider = "fastway"
)

var validCourierProviders = []CourierProvider{
	CourierProviderCourierGuy,
	CourierProviderFastway,
}

// String implements fmt.Stringer.
func (c CourierProvider) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CourierProvider.
func (c CourierProvider) IsValid() bool {
	for _, candidate := range validCourierProviders {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCourierProvider converts raw input into a CourierProvider.
func ParseCourierProvider(value string) (CourierProvider, error) {
	for _, candidate := range validCourierProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid courier provider %q", value)
}
