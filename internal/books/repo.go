package books

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
)

// Repository covers the listing fields the fulfillment engine owns: a book
// is marked sold when its order is created and released again on refund.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	MarkSold(ctx context.Context, bookID, buyerID uuid.UUID, at time.Time) error
	Release(ctx context.Context, bookID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a books repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *repository) MarkSold(ctx context.Context, bookID, buyerID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", bookID).
		Updates(map[string]any{
			"sold":        true,
			"sold_at":     at,
			"reserved_by": buyerID,
		}).Error
}

// Release puts the listing back on the market after a refund.
func (r *repository) Release(ctx context.Context, bookID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", bookID).
		Updates(map[string]any{
			"sold":        false,
			"sold_at":     nil,
			"reserved_by": nil,
		}).Error
}
