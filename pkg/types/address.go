package types

import "strings"

// Address is the postal address shape stored as jsonb on orders and profiles.
type Address struct {
	Street     string `json:"street"`
	Suburb     string `json:"suburb,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Normalize trims whitespace and applies the default country.
func (a Address) Normalize() Address {
	out := Address{
		Street:     strings.TrimSpace(a.Street),
		Suburb:     strings.TrimSpace(a.Suburb),
		City:       strings.TrimSpace(a.City),
		Province:   strings.TrimSpace(a.Province),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
		Phone:      strings.TrimSpace(a.Phone),
	}
	if out.Country == "" {
		out.Country = "ZA"
	}
	return out
}

// Complete reports whether the address carries enough detail for a courier booking.
func (a Address) Complete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.PostalCode) != ""
}
