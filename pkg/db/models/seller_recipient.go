package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerRecipient is the payment gateway's bank destination for a seller.
// RecipientCode is the gateway-issued handle reused for every transfer.
type SellerRecipient struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_seller_recipients_seller"`
	RecipientCode string    `gorm:"column:recipient_code;not null"`
	AccountName   string    `gorm:"column:account_name;not null"`
	AccountNumber string    `gorm:"column:account_number;not null"`
	BankCode      string    `gorm:"column:bank_code;not null"`
	Active        bool      `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
