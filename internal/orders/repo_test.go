package orders

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
	"github.com/SimelweN/rebooked-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  book_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  book_price_cents INTEGER NOT NULL,
  delivery_fee_cents INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending_commit',
  delivery_status TEXT NOT NULL DEFAULT 'none',
  payment_reference TEXT NOT NULL UNIQUE,
  courier_provider TEXT,
  tracking_number TEXT,
  shipping_label_url TEXT,
  pickup_date DATETIME,
  pickup_address TEXT,
  delivery_address TEXT,
  committed_at DATETIME,
  refund_reference TEXT,
  payout_status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

func insertOrder(t *testing.T, conn *gorm.DB, mutate func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:               uuid.New(),
		BuyerID:          uuid.New(),
		SellerID:         uuid.New(),
		BookID:           uuid.New(),
		AmountCents:      22500,
		BookPriceCents:   20000,
		DeliveryFeeCents: 2500,
		Status:           enums.OrderStatusPendingCommit,
		DeliveryStatus:   enums.DeliveryStatusNone,
		PaymentReference: uuid.NewString(),
		PayoutStatus:     enums.PayoutStatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func TestRepoCommitPending(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := insertOrder(t, conn, nil)
	at := time.Now().UTC()

	rows, err := repo.CommitPending(ctx, order.ID, order.SellerID, at)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCommitted, stored.Status)
	require.NotNil(t, stored.CommittedAt)

	// Second invocation matches no rows but leaves the order intact.
	rows, err = repo.CommitPending(ctx, order.ID, order.SellerID, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)
}

func TestRepoCommitPendingSellerScope(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := insertOrder(t, conn, nil)

	rows, err := repo.CommitPending(ctx, order.ID, uuid.New(), time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingCommit, stored.Status)
}

func TestRepoUpdateStatusFrom(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := insertOrder(t, conn, func(o *models.Order) {
		o.Status = enums.OrderStatusShipped
	})

	rows, err := repo.UpdateStatusFrom(ctx, order.ID, enums.OrderStatusShipped, enums.OrderStatusDelivered, map[string]any{
		"delivery_status": enums.DeliveryStatusDelivered,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	assert.Equal(t, enums.DeliveryStatusDelivered, stored.DeliveryStatus)

	// A stale from-status matches nothing.
	rows, err = repo.UpdateStatusFrom(ctx, order.ID, enums.OrderStatusShipped, enums.OrderStatusDelivered, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)
}

func TestRepoFindByPaymentReference(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := insertOrder(t, conn, func(o *models.Order) {
		o.PaymentReference = "ref-find"
	})

	stored, err := repo.FindByPaymentReference(ctx, "ref-find")
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)

	_, err = repo.FindByPaymentReference(ctx, "ref-missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepoListBySellerPagination(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	sellerID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		created := base.Add(time.Duration(i) * time.Minute)
		insertOrder(t, conn, func(o *models.Order) {
			o.SellerID = sellerID
			o.CreatedAt = created
		})
	}
	insertOrder(t, conn, nil) // another seller, must not appear

	page, err := repo.ListBySeller(ctx, sellerID, pagination.Params{Limit: 3}, SellerOrderFilters{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 3)
	require.NotEmpty(t, page.NextCursor)

	rest, err := repo.ListBySeller(ctx, sellerID, pagination.Params{Limit: 3, Cursor: page.NextCursor}, SellerOrderFilters{})
	require.NoError(t, err)
	assert.Len(t, rest.Orders, 2)
	assert.Empty(t, rest.NextCursor)

	// Newest first across the pages, no overlap.
	seen := map[uuid.UUID]bool{}
	var previous time.Time
	for i, order := range append(page.Orders, rest.Orders...) {
		assert.False(t, seen[order.ID])
		seen[order.ID] = true
		if i > 0 {
			assert.False(t, order.CreatedAt.After(previous))
		}
		previous = order.CreatedAt
	}
}

func TestRepoListBySellerStatusFilter(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	sellerID := uuid.New()
	insertOrder(t, conn, func(o *models.Order) {
		o.SellerID = sellerID
		o.Status = enums.OrderStatusCommitted
	})
	insertOrder(t, conn, func(o *models.Order) {
		o.SellerID = sellerID
		o.Status = enums.OrderStatusShipped
	})

	committed := enums.OrderStatusCommitted
	page, err := repo.ListBySeller(ctx, sellerID, pagination.Params{}, SellerOrderFilters{Status: &committed})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, enums.OrderStatusCommitted, page.Orders[0].Status)
}

func TestRepoListPayoutEligible(t *testing.T) {
	conn := setupOrdersTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	sellerID := uuid.New()
	eligible := insertOrder(t, conn, func(o *models.Order) {
		o.SellerID = sellerID
		o.Status = enums.OrderStatusDelivered
		o.PayoutStatus = enums.PayoutStatusPending
	})
	insertOrder(t, conn, func(o *models.Order) { // already paid out
		o.SellerID = sellerID
		o.Status = enums.OrderStatusDelivered
		o.PayoutStatus = enums.PayoutStatusPaid
	})
	insertOrder(t, conn, func(o *models.Order) { // not delivered yet
		o.SellerID = sellerID
		o.Status = enums.OrderStatusShipped
	})

	rows, err := repo.ListPayoutEligible(ctx, sellerID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, eligible.ID, rows[0].ID)

	sellers, err := repo.ListSellersWithPayoutEligibleOrders(ctx)
	require.NoError(t, err)
	require.Len(t, sellers, 1)
	assert.Equal(t, sellerID, sellers[0])
}
