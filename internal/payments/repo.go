package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
)

// Repository persists the gateway-facing ledgers: one payment transaction
// per charge reference, transfer status by reference, and the manual
// reconciliation ledger for side effects that failed after acknowledgement.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertPayment(ctx context.Context, reference string, status enums.PaymentStatus, rawPayload []byte, verifiedAt time.Time) (*models.PaymentTransaction, error)
	MarkPaymentLinked(ctx context.Context, reference string, at time.Time) error
	FindPaymentByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	UpdateTransferStatus(ctx context.Context, reference string, status enums.TransferStatus, failureReason *string) (int64, error)
	FindTransferByReference(ctx context.Context, reference string) (*models.Transfer, error)
	RecordWebhookFailure(ctx context.Context, failure *models.WebhookFailure) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertPayment inserts the first sighting of a reference and updates later
// ones in place, so redelivered events never produce a second row.
func (r *repository) UpsertPayment(ctx context.Context, reference string, status enums.PaymentStatus, rawPayload []byte, verifiedAt time.Time) (*models.PaymentTransaction, error) {
	txn := &models.PaymentTransaction{
		ID:         uuid.New(),
		Reference:  reference,
		Status:     status,
		RawPayload: rawPayload,
		VerifiedAt: &verifiedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "raw_payload", "verified_at", "updated_at"}),
		}).
		Create(txn).Error
	if err != nil {
		return nil, err
	}
	return r.FindPaymentByReference(ctx, reference)
}

func (r *repository) MarkPaymentLinked(ctx context.Context, reference string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("reference = ?", reference).
		Update("linked_at", at).Error
}

func (r *repository) FindPaymentByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpdateTransferStatus touches only transfers we know about; an unknown
// reference matches zero rows and the caller decides what that means.
func (r *repository) UpdateTransferStatus(ctx context.Context, reference string, status enums.TransferStatus, failureReason *string) (int64, error) {
	updates := map[string]any{"status": status}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}
	result := r.db.WithContext(ctx).
		Model(&models.Transfer{}).
		Where("reference = ?", reference).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) FindTransferByReference(ctx context.Context, reference string) (*models.Transfer, error) {
	var transfer models.Transfer
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&transfer).Error
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *repository) RecordWebhookFailure(ctx context.Context, failure *models.WebhookFailure) error {
	if failure.ID == uuid.Nil {
		failure.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(failure).Error
}
