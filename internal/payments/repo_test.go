package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	paymentTransactions := `
CREATE TABLE IF NOT EXISTS payment_transactions (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  raw_payload TEXT,
  verified_at DATETIME,
  linked_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	transfers := `
CREATE TABLE IF NOT EXISTS transfers (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  reference TEXT NOT NULL UNIQUE,
  recipient_code TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	webhookFailures := `
CREATE TABLE IF NOT EXISTS webhook_failures (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  event TEXT NOT NULL,
  reference TEXT NOT NULL,
  error_chain TEXT NOT NULL,
  payload TEXT,
  resolved_at DATETIME,
  created_at DATETIME
);`
	for _, stmt := range []string{paymentTransactions, transfers, webhookFailures} {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func TestUpsertPaymentCollapsesRedeliveries(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	first, err := repo.UpsertPayment(ctx, "ref-1", enums.PaymentStatusSuccess, []byte(`{"n":1}`), time.Now().UTC())
	require.NoError(t, err)

	second, err := repo.UpsertPayment(ctx, "ref-1", enums.PaymentStatusSuccess, []byte(`{"n":2}`), time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, conn.Model(&models.PaymentTransaction{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestMarkPaymentLinked(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	_, err := repo.UpsertPayment(ctx, "ref-1", enums.PaymentStatusSuccess, nil, time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, repo.MarkPaymentLinked(ctx, "ref-1", time.Now().UTC()))

	stored, err := repo.FindPaymentByReference(ctx, "ref-1")
	require.NoError(t, err)
	assert.NotNil(t, stored.LinkedAt)
}

func TestUpdateTransferStatus(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	transfer := &models.Transfer{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Reference:     "trf-1",
		RecipientCode: "RCP_abc",
		AmountCents:   54000,
		Status:        enums.TransferStatusPending,
	}
	require.NoError(t, conn.Create(transfer).Error)

	rows, err := repo.UpdateTransferStatus(ctx, "trf-1", enums.TransferStatusSuccess, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	stored, err := repo.FindTransferByReference(ctx, "trf-1")
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusSuccess, stored.Status)

	reason := "insufficient balance"
	rows, err = repo.UpdateTransferStatus(ctx, "trf-1", enums.TransferStatusFailed, &reason)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	stored, err = repo.FindTransferByReference(ctx, "trf-1")
	require.NoError(t, err)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, reason, *stored.FailureReason)

	// Unknown references match nothing and return zero rows.
	rows, err = repo.UpdateTransferStatus(ctx, "trf-unknown", enums.TransferStatusSuccess, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)
}

func TestRecordWebhookFailure(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	failure := &models.WebhookFailure{
		Source:     "paystack",
		Event:      "charge.success",
		Reference:  "ref-1",
		ErrorChain: "mark book sold: connection reset",
		Payload:    []byte(`{"event":"charge.success"}`),
	}
	require.NoError(t, repo.RecordWebhookFailure(ctx, failure))
	assert.NotEqual(t, uuid.Nil, failure.ID)

	var count int64
	require.NoError(t, conn.Model(&models.WebhookFailure{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
