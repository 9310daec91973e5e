package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/SimelweN/rebooked-backend/pkg/enums"
)

// Transfer is a seller payout transfer initiated outside this engine; the
// webhook updates its status by reference.
type Transfer struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	Reference     string               `gorm:"column:reference;not null;uniqueIndex:ux_transfers_reference"`
	RecipientCode string               `gorm:"column:recipient_code;not null"`
	AmountCents   int64                `gorm:"column:amount_cents;not null"`
	Status        enums.TransferStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	FailureReason *string              `gorm:"column:failure_reason"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
