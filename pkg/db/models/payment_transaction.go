package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/SimelweN/rebooked-backend/pkg/enums"
)

// PaymentTransaction records every gateway reference the webhook has seen.
// Reference is the idempotency anchor: first sighting inserts, later
// sightings update.
type PaymentTransaction struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference  string              `gorm:"column:reference;not null;uniqueIndex:ux_payment_transactions_reference"`
	Status     enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RawPayload []byte              `gorm:"column:raw_payload;type:jsonb"`
	VerifiedAt *time.Time          `gorm:"column:verified_at"`
	LinkedAt   *time.Time          `gorm:"column:linked_at"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
