package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/pkg/db"
	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/pagination"
)

// Service owns the order lifecycle: idempotent creation from payment events,
// the seller commit step and every later status move.
type Service interface {
	CreateFromPayment(ctx context.Context, input CreateFromPaymentInput) (*models.Order, bool, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Commit(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Order, error)
	Advance(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (*models.Order, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters SellerOrderFilters) (*SellerOrderList, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

// CreateFromPayment inserts the order for a verified charge. The unique
// payment_reference index makes redelivered events collapse onto the first
// row; the bool reports whether this call created it.
func (s *service) CreateFromPayment(ctx context.Context, input CreateFromPaymentInput) (*models.Order, bool, error) {
	if input.PaymentReference == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if input.BuyerID == uuid.Nil || input.SellerID == uuid.Nil || input.BookID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "buyer, seller and book ids required")
	}
	if input.BookPriceCents < 0 || input.DeliveryFeeCents < 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "amounts must not be negative")
	}

	existing, err := s.repo.FindByPaymentReference(ctx, input.PaymentReference)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	order := &models.Order{
		ID:               uuid.New(),
		BuyerID:          input.BuyerID,
		SellerID:         input.SellerID,
		BookID:           input.BookID,
		AmountCents:      input.BookPriceCents + input.DeliveryFeeCents,
		BookPriceCents:   input.BookPriceCents,
		DeliveryFeeCents: input.DeliveryFeeCents,
		Status:           enums.OrderStatusPendingCommit,
		DeliveryStatus:   enums.DeliveryStatusNone,
		PaymentReference: input.PaymentReference,
		PickupAddress:    input.PickupAddress,
		DeliveryAddress:  input.DeliveryAddress,
		PayoutStatus:     enums.PayoutStatusPending,
	}

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		// Lost the race with a concurrent delivery of the same event.
		if db.IsUniqueViolation(err, "") {
			existing, findErr := s.repo.FindByPaymentReference(ctx, input.PaymentReference)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return created, true, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

// Commit is the seller's acceptance of a pending order. The update is
// conditional on seller and status; when no row matches, the current row
// decides the outcome: a commit that already happened is reported as
// success, a foreign seller is rejected, anything else is a state conflict.
func (s *service) Commit(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity missing")
	}

	rows, err := s.repo.CommitPending(ctx, orderID, sellerID, s.now())
	if err != nil {
		return nil, err
	}
	if rows > 0 {
		ctx = s.logg.WithOrderID(ctx, orderID.String())
		s.logg.Info(ctx, "order committed")
		return s.Get(ctx, orderID)
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another seller")
	}
	switch order.Status {
	case enums.OrderStatusCommitted,
		enums.OrderStatusCourierScheduled,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered:
		// Already committed, possibly further along. Re-invocation is a no-op.
		return order, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be committed").
			WithDetails(map[string]any{"current_status": order.Status.String()})
	}
}

// Advance moves the order from one status to another when the transition
// graph allows it. A retry that finds the order already at the target is a
// success; any other mismatch is a state conflict.
func (s *service) Advance(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !from.IsValid() || !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if !from.CanTransitionTo(to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "illegal status transition").
			WithDetails(map[string]any{"from": from.String(), "to": to.String()})
	}

	rows, err := s.repo.UpdateStatusFrom(ctx, orderID, from, to, updates)
	if err != nil {
		return nil, err
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rows > 0 {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"from":     from.String(),
			"to":       to.String(),
		})
		s.logg.Info(ctx, "order status advanced")
		return order, nil
	}
	if order.Status == to {
		return order, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in the expected status").
		WithDetails(map[string]any{
			"expected": from.String(),
			"current":  order.Status.String(),
		})
}

func (s *service) MarkShipped(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.Advance(ctx, orderID, enums.OrderStatusCourierScheduled, enums.OrderStatusShipped, nil)
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.Advance(ctx, orderID, enums.OrderStatusShipped, enums.OrderStatusDelivered, map[string]any{
		"delivery_status": enums.DeliveryStatusDelivered,
	})
}

func (s *service) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters SellerOrderFilters) (*SellerOrderList, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status filter")
	}
	return s.repo.ListBySeller(ctx, sellerID, params, filters)
}
