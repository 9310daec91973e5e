package payouts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
)

func setupPayoutsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS seller_recipients (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL UNIQUE,
  recipient_code TEXT NOT NULL,
  account_name TEXT NOT NULL,
  account_number TEXT NOT NULL,
  bank_code TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

func seedRecipient(sellerID uuid.UUID) *models.SellerRecipient {
	return &models.SellerRecipient{
		SellerID:      sellerID,
		RecipientCode: "RCP_1",
		AccountName:   "Thandi Book Shop",
		AccountNumber: "1234567890",
		BankCode:      "632005",
		Active:        true,
	}
}

func TestSaveRecipientUpsertsBySeller(t *testing.T) {
	conn := setupPayoutsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	sellerID := uuid.New()

	require.NoError(t, repo.SaveRecipient(ctx, seedRecipient(sellerID)))

	replacement := seedRecipient(sellerID)
	replacement.RecipientCode = "RCP_2"
	replacement.AccountNumber = "9876543210"
	require.NoError(t, repo.SaveRecipient(ctx, replacement))

	var count int64
	require.NoError(t, conn.Model(&models.SellerRecipient{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	stored, err := repo.FindRecipientBySeller(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, "RCP_2", stored.RecipientCode)
	assert.Equal(t, "9876543210", stored.AccountNumber)
}

func TestFindRecipientBySellerNotFound(t *testing.T) {
	conn := setupPayoutsTestDB(t)
	repo := NewRepository(conn)

	_, err := repo.FindRecipientBySeller(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestSetRecipientCodeActivates(t *testing.T) {
	conn := setupPayoutsTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	sellerID := uuid.New()

	recipient := seedRecipient(sellerID)
	recipient.RecipientCode = ""
	recipient.Active = false
	require.NoError(t, repo.SaveRecipient(ctx, recipient))

	require.NoError(t, repo.SetRecipientCode(ctx, sellerID, "RCP_fresh"))

	stored, err := repo.FindRecipientBySeller(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, "RCP_fresh", stored.RecipientCode)
	assert.True(t, stored.Active)
}
