package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
)

// Repository persists seller transfer recipients. One row per seller,
// enforced by a unique index on seller_id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRecipientBySeller(ctx context.Context, sellerID uuid.UUID) (*models.SellerRecipient, error)
	SaveRecipient(ctx context.Context, recipient *models.SellerRecipient) error
	SetRecipientCode(ctx context.Context, sellerID uuid.UUID, code string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRecipientBySeller(ctx context.Context, sellerID uuid.UUID) (*models.SellerRecipient, error) {
	var recipient models.SellerRecipient
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		First(&recipient).Error
	if err != nil {
		return nil, err
	}
	return &recipient, nil
}

// SaveRecipient upserts the seller's banking destination. Re-registering
// replaces the bank details and recipient code in place.
func (r *repository) SaveRecipient(ctx context.Context, recipient *models.SellerRecipient) error {
	if recipient.ID == uuid.Nil {
		recipient.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "seller_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"recipient_code", "account_name", "account_number", "bank_code", "active", "updated_at",
			}),
		}).
		Create(recipient).Error
}

func (r *repository) SetRecipientCode(ctx context.Context, sellerID uuid.UUID, code string) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerRecipient{}).
		Where("seller_id = ?", sellerID).
		Updates(map[string]any{"recipient_code": code, "active": true}).Error
}
