package refunds

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
)

// Repository persists refund attempts. A partial unique index keeps at most
// one success row per order.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.RefundTransaction) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindAcknowledgedByOrder(ctx context.Context, orderID uuid.UUID) (*models.RefundTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a refunds repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, refund *models.RefundTransaction) error {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.RefundTransaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// FindAcknowledgedByOrder returns the newest refund the gateway accepted for
// the order. A stored gateway response is what distinguishes an accepted
// refund (pending or success on their side) from a local attempt that never
// reached them.
func (r *repository) FindAcknowledgedByOrder(ctx context.Context, orderID uuid.UUID) (*models.RefundTransaction, error) {
	var refund models.RefundTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ? AND gateway_response IS NOT NULL",
			orderID, []enums.RefundStatus{enums.RefundStatusPending, enums.RefundStatusSuccess}).
		Order("created_at DESC").
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}
