package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/SimelweN/rebooked-backend/pkg/enums"
)

// RefundTransaction is a gateway refund attempt for one order. A partial
// unique index in the schema guarantees at most one row per order reaches
// status=success.
type RefundTransaction struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	RefundReference string             `gorm:"column:refund_reference;not null"`
	AmountCents     int64              `gorm:"column:amount_cents;not null"`
	Reason          string             `gorm:"column:reason;not null"`
	Status          enums.RefundStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayResponse []byte             `gorm:"column:gateway_response;type:jsonb"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
