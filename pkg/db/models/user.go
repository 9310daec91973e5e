package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/SimelweN/rebooked-backend/pkg/types"
)

// User is a read-only reference to a buyer or seller profile owned by the
// accounts service. The engine reads names, emails and pickup addresses;
// it never writes here.
type User struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name          string         `gorm:"column:name;not null"`
	Email         string         `gorm:"column:email;not null"`
	PickupAddress *types.Address `gorm:"column:pickup_address;type:jsonb;serializer:json"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
}
