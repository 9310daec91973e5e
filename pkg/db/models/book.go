package models

import (
	"time"

	"github.com/google/uuid"
)

// Book is the listing an order sells. The engine only touches the sold /
// reserved fields (set on sale, cleared on refund); everything else belongs
// to the catalog service.
type Book struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID   uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index"`
	Title      string     `gorm:"column:title;not null"`
	PriceCents int64      `gorm:"column:price_cents;not null"`
	WeightKg   *float64   `gorm:"column:weight_kg"`
	Sold       bool       `gorm:"column:sold;not null;default:false"`
	SoldAt     *time.Time `gorm:"column:sold_at"`
	ReservedBy *uuid.UUID `gorm:"column:reserved_by;type:uuid"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
