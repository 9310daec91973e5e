package courier

import (
	"context"
	"time"

	"github.com/SimelweN/rebooked-backend/pkg/enums"
	"github.com/SimelweN/rebooked-backend/pkg/types"
)

// ParcelRequest is the provider-neutral pickup booking request. Both
// addresses must already be normalized and complete. DeclaredValueCents is
// what the courier insures, in minor currency units.
type ParcelRequest struct {
	Reference          string
	Description        string
	WeightKg           float64
	DeclaredValueCents int64
	Pickup             types.Address
	Delivery           types.Address
	SenderName         string
	ReceiverName       string
	ReceiverPhone      string
	PickupDate         time.Time
}

// DeclaredValueRands converts the declared value to the major units both
// provider APIs expect.
func (p ParcelRequest) DeclaredValueRands() float64 {
	return float64(p.DeclaredValueCents) / 100
}

// Booking is a confirmed pickup from a provider.
type Booking struct {
	Provider       enums.CourierProvider
	TrackingNumber string
	LabelURL       string
	PickupDate     time.Time
}

// Provider books pickups and serves shipping labels for one courier.
// Implementations must respect ctx deadlines on every call.
type Provider interface {
	Name() enums.CourierProvider
	BookPickup(ctx context.Context, parcel ParcelRequest) (*Booking, error)
	DownloadLabel(ctx context.Context, labelURL string) ([]byte, error)
}
