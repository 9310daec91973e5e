package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookFailure records a side effect that failed after the webhook (or a
// post-booking write) was already acknowledged, so operators can reconcile
// by hand. Nothing retries these automatically.
type WebhookFailure struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Source     string     `gorm:"column:source;not null"`
	Event      string     `gorm:"column:event;not null"`
	Reference  string     `gorm:"column:reference;not null;index"`
	ErrorChain string     `gorm:"column:error_chain;not null"`
	Payload    []byte     `gorm:"column:payload;type:jsonb"`
	ResolvedAt *time.Time `gorm:"column:resolved_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
