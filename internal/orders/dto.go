package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	"github.com/SimelweN/rebooked-backend/pkg/types"
)

// CreateFromPaymentInput carries everything the webhook learns about a paid
// order. Amounts are minor currency units.
type CreateFromPaymentInput struct {
	BuyerID          uuid.UUID
	SellerID         uuid.UUID
	BookID           uuid.UUID
	BookPriceCents   int64
	DeliveryFeeCents int64
	PaymentReference string
	PickupAddress    *types.Address
	DeliveryAddress  *types.Address
}

// SellerOrderFilters narrows the seller order listing.
type SellerOrderFilters struct {
	Status *enums.OrderStatus
}

// SellerOrderList is one page of a seller's orders. NextCursor is empty on
// the last page.
type SellerOrderList struct {
	Orders     []models.Order
	NextCursor string
}

// OrderView is the API projection of an order.
type OrderView struct {
	ID               uuid.UUID              `json:"id"`
	BuyerID          uuid.UUID              `json:"buyer_id"`
	SellerID         uuid.UUID              `json:"seller_id"`
	BookID           uuid.UUID              `json:"book_id"`
	AmountCents      int64                  `json:"amount_cents"`
	BookPriceCents   int64                  `json:"book_price_cents"`
	DeliveryFeeCents int64                  `json:"delivery_fee_cents"`
	Status           enums.OrderStatus      `json:"status"`
	DeliveryStatus   enums.DeliveryStatus   `json:"delivery_status"`
	PaymentReference string                 `json:"payment_reference"`
	CourierProvider  *enums.CourierProvider `json:"courier_provider,omitempty"`
	TrackingNumber   *string                `json:"tracking_number,omitempty"`
	ShippingLabelURL *string                `json:"shipping_label_url,omitempty"`
	PickupDate       *time.Time             `json:"pickup_date,omitempty"`
	CommittedAt      *time.Time             `json:"committed_at,omitempty"`
	PayoutStatus     enums.PayoutStatus     `json:"payout_status"`
	CreatedAt        time.Time              `json:"created_at"`
}

// ViewFromModel projects a stored order into its API shape.
func ViewFromModel(order *models.Order) OrderView {
	return OrderView{
		ID:               order.ID,
		BuyerID:          order.BuyerID,
		SellerID:         order.SellerID,
		BookID:           order.BookID,
		AmountCents:      order.AmountCents,
		BookPriceCents:   order.BookPriceCents,
		DeliveryFeeCents: order.DeliveryFeeCents,
		Status:           order.Status,
		DeliveryStatus:   order.DeliveryStatus,
		PaymentReference: order.PaymentReference,
		CourierProvider:  order.CourierProvider,
		TrackingNumber:   order.TrackingNumber,
		ShippingLabelURL: order.ShippingLabelURL,
		PickupDate:       order.PickupDate,
		CommittedAt:      order.CommittedAt,
		PayoutStatus:     order.PayoutStatus,
		CreatedAt:        order.CreatedAt,
	}
}
