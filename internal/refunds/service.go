package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/internal/notifications"
	"github.com/SimelweN/rebooked-backend/internal/orders"
	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/paystack"
)

// expectedCompletionDays is how long the gateway quotes for the money to
// land back with the buyer, in calendar days.
const expectedCompletionDays = 5

// refunder is the gateway surface this service needs.
type refunder interface {
	Refund(ctx context.Context, params paystack.RefundParams) (*paystack.RefundResult, error)
}

// bookReleaser puts a listing back on the market after its sale unwinds.
type bookReleaser interface {
	Release(ctx context.Context, bookID uuid.UUID) error
}

// Result reports a settled refund.
type Result struct {
	Order              *models.Order
	Refund             *models.RefundTransaction
	AlreadyRefunded    bool
	ExpectedCompletion time.Time
}

// Service processes buyer refunds end to end: eligibility, the gateway
// call, the order exit to refunded and releasing the listing.
type Service interface {
	RequestRefund(ctx context.Context, orderID uuid.UUID, reason string) (*Result, error)
}

// ServiceParams carries the refund service dependencies. Notifier is
// optional.
type ServiceParams struct {
	Repo     Repository
	Orders   orders.Service
	Gateway  refunder
	Books    bookReleaser
	Notifier notifications.Service
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	orders   orders.Service
	gateway  refunder
	books    bookReleaser
	notifier notifications.Service
	logg     *logger.Logger
	now      func() time.Time
}

// refundableStatuses are the order statuses a refund may start from. A
// delivered order is settled and leaves through the payout flow instead.
var refundableStatuses = map[enums.OrderStatus]bool{
	enums.OrderStatusPendingCommit:    true,
	enums.OrderStatusCommitted:        true,
	enums.OrderStatusCourierScheduled: true,
	enums.OrderStatusShipped:          true,
	enums.OrderStatusFailed:           true,
	enums.OrderStatusCancelled:        true,
}

// NewService validates dependencies and builds the refund service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Books == nil {
		return nil, fmt.Errorf("book releaser required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		orders:   params.Orders,
		gateway:  params.Gateway,
		books:    params.Books,
		notifier: params.Notifier,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) RequestRefund(ctx context.Context, orderID uuid.UUID, reason string) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if reason == "" {
		reason = "buyer requested refund"
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	// A refund the gateway already accepted must never be sent twice. The
	// guard runs before eligibility so a retry after a crashed first attempt
	// can still finish the order exit instead of moving money again.
	existing, findErr := s.repo.FindAcknowledgedByOrder(ctx, order.ID)
	if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return nil, findErr
	}
	if existing != nil {
		result, err := s.settleOrder(ctx, order, existing)
		if err != nil {
			return nil, err
		}
		result.AlreadyRefunded = true
		return result, nil
	}
	if order.Status == enums.OrderStatusRefunded {
		// Refunded out of band, no transaction row to report.
		return &Result{
			Order:              order,
			AlreadyRefunded:    true,
			ExpectedCompletion: s.now().AddDate(0, 0, expectedCompletionDays),
		}, nil
	}

	if !refundableStatuses[order.Status] || order.DeliveryStatus == enums.DeliveryStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not eligible for a refund").
			WithDetails(map[string]any{
				"current_status":  order.Status.String(),
				"delivery_status": order.DeliveryStatus.String(),
			})
	}

	refund := &models.RefundTransaction{
		ID:              uuid.New(),
		OrderID:         order.ID,
		RefundReference: "rbref_" + uuid.NewString(),
		AmountCents:     order.AmountCents,
		Reason:          reason,
		Status:          enums.RefundStatusPending,
	}
	if err := s.repo.Create(ctx, refund); err != nil {
		return nil, err
	}

	gatewayResult, err := s.gateway.Refund(ctx, paystack.RefundParams{
		TransactionReference: order.PaymentReference,
		AmountCents:          order.AmountCents,
		Reason:               reason,
	})
	if err != nil {
		if updateErr := s.repo.Update(ctx, refund.ID, map[string]any{"status": enums.RefundStatusFailed}); updateErr != nil {
			s.logg.Error(ctx, "marking refund attempt failed", updateErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway refund failed")
	}

	// The persisted status is the gateway's: their side may still be
	// settling, in which case the row stays pending with the response kept.
	status := enums.RefundStatusPending
	if gatewayResult.Succeeded() {
		status = enums.RefundStatusSuccess
	}
	updates := map[string]any{
		"status":           status,
		"gateway_response": gatewayResult.Raw,
	}
	refund.Status = status
	refund.GatewayResponse = gatewayResult.Raw
	if err := s.repo.Update(ctx, refund.ID, updates); err != nil {
		// The money already moved; finish the order exit and leave the row
		// for reconciliation rather than inviting a second gateway call.
		s.logg.Error(ctx, "recording gateway refund response failed", err)
	}

	return s.settleOrder(ctx, order, refund)
}

// settleOrder moves the order to refunded and runs the post-refund side
// effects. An order that already exited passes through untouched, so the
// retry path can reuse it.
func (s *service) settleOrder(ctx context.Context, order *models.Order, refund *models.RefundTransaction) (*Result, error) {
	updatedOrder := order
	if order.Status != enums.OrderStatusRefunded {
		advanced, err := s.orders.Advance(ctx, order.ID, order.Status, enums.OrderStatusRefunded, map[string]any{
			"refund_reference": refund.RefundReference,
		})
		if err != nil {
			return nil, err
		}
		updatedOrder = advanced

		if err := s.books.Release(ctx, order.BookID); err != nil {
			// The money is already on its way back; relisting is recoverable.
			s.logg.Error(ctx, "releasing book listing after refund failed", err)
		}

		if s.notifier != nil {
			notifyErr := s.notifier.Notify(ctx, notifications.NotifyInput{
				UserID: order.BuyerID,
				Kind:   "refund.processed",
				Title:  "Your refund is on its way",
				Body: fmt.Sprintf(
					"We refunded R%.2f for your order. Expect it within %d days.",
					float64(order.AmountCents)/100, expectedCompletionDays,
				),
			})
			if notifyErr != nil {
				s.logg.Error(ctx, "refund notification failed", notifyErr)
			}
		}

		s.logg.Info(s.logg.WithReference(ctx, refund.RefundReference), "refund processed")
	}

	return &Result{
		Order:              updatedOrder,
		Refund:             refund,
		ExpectedCompletion: s.now().AddDate(0, 0, expectedCompletionDays),
	}, nil
}
