package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	"github.com/SimelweN/rebooked-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table. Status
// moves are conditional updates: they only apply when the row still holds
// the expected from-status, and report how many rows matched.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	CommitPending(ctx context.Context, orderID, sellerID uuid.UUID, at time.Time) (int64, error)
	UpdateStatusFrom(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters SellerOrderFilters) (*SellerOrderList, error)
	ListPayoutEligible(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error)
	ListSellersWithPayoutEligibleOrders(ctx context.Context) ([]uuid.UUID, error)
}
