package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/SimelweN/rebooked-backend/pkg/enums"
	"github.com/SimelweN/rebooked-backend/pkg/types"
)

// Order is the fulfillment aggregate. AmountCents is fixed at creation as
// BookPriceCents + DeliveryFeeCents and never mutated afterwards; all money
// is integer minor-currency units.
type Order struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID          uuid.UUID              `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID         uuid.UUID              `gorm:"column:seller_id;type:uuid;not null;index"`
	BookID           uuid.UUID              `gorm:"column:book_id;type:uuid;not null"`
	AmountCents      int64                  `gorm:"column:amount_cents;not null"`
	BookPriceCents   int64                  `gorm:"column:book_price_cents;not null"`
	DeliveryFeeCents int64                  `gorm:"column:delivery_fee_cents;not null;default:0"`
	Status           enums.OrderStatus      `gorm:"column:status;type:text;not null;default:'pending_commit'"`
	DeliveryStatus   enums.DeliveryStatus   `gorm:"column:delivery_status;type:text;not null;default:'none'"`
	PaymentReference string                 `gorm:"column:payment_reference;not null;uniqueIndex:ux_orders_payment_reference"`
	CourierProvider  *enums.CourierProvider `gorm:"column:courier_provider;type:text"`
	TrackingNumber   *string                `gorm:"column:tracking_number"`
	ShippingLabelURL *string                `gorm:"column:shipping_label_url"`
	PickupDate       *time.Time             `gorm:"column:pickup_date"`
	PickupAddress    *types.Address         `gorm:"column:pickup_address;type:jsonb;serializer:json"`
	DeliveryAddress  *types.Address         `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	CommittedAt      *time.Time             `gorm:"column:committed_at"`
	RefundReference  *string                `gorm:"column:refund_reference"`
	PayoutStatus     enums.PayoutStatus     `gorm:"column:payout_status;type:text;not null;default:'pending'"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
