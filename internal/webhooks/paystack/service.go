package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/internal/notifications"
	"github.com/SimelweN/rebooked-backend/internal/orders"
	"github.com/SimelweN/rebooked-backend/internal/payments"
	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
)

const failureSource = "paystack"

// Outcome classifies what one delivery did.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

// Result reports one handled delivery. Order is set when the event touched
// an order.
type Result struct {
	Event   string
	Outcome Outcome
	Order   *models.Order
}

// orderWriter is the slice of the order service the dispatcher drives.
type orderWriter interface {
	CreateFromPayment(ctx context.Context, input orders.CreateFromPaymentInput) (*models.Order, bool, error)
	Advance(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (*models.Order, error)
}

// orderLookup finds the order a charge reference belongs to.
type orderLookup interface {
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
}

// bookMarker takes a listing off the market once it is paid for.
type bookMarker interface {
	MarkSold(ctx context.Context, bookID, buyerID uuid.UUID, at time.Time) error
}

// Service dispatches verified gateway events. Deliveries are at-least-once:
// every handler tolerates replays, and side-effect failures after the
// payment is recorded land in the reconciliation ledger instead of failing
// the delivery.
type Service interface {
	HandleEvent(ctx context.Context, raw []byte) (*Result, error)
}

// ServiceParams carries the dispatcher dependencies. Dedupe and Notifier
// are optional.
type ServiceParams struct {
	Payments    payments.Repository
	Orders      orderWriter
	OrderLookup orderLookup
	Books       bookMarker
	Notifier    notifications.Service
	Dedupe      dedupeStore
	DedupeTTL   time.Duration
	Logger      *logger.Logger
}

type service struct {
	payments payments.Repository
	orders   orderWriter
	lookup   orderLookup
	books    bookMarker
	notifier notifications.Service
	guard    *dedupeGuard
	logg     *logger.Logger
	now      func() time.Time
}

// NewService validates dependencies and builds the dispatcher.
func NewService(params ServiceParams) (Service, error) {
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order writer required")
	}
	if params.OrderLookup == nil {
		return nil, fmt.Errorf("order lookup required")
	}
	if params.Books == nil {
		return nil, fmt.Errorf("book marker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		payments: params.Payments,
		orders:   params.Orders,
		lookup:   params.OrderLookup,
		books:    params.Books,
		notifier: params.Notifier,
		guard:    newDedupeGuard(params.Dedupe, params.DedupeTTL, params.Logger),
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) HandleEvent(ctx context.Context, raw []byte) (*Result, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
	}
	ctx = s.logg.WithField(ctx, "event", event.Event)

	switch event.Event {
	case EventChargeSuccess:
		return s.handleChargeSuccess(ctx, event, raw)
	case EventChargeFailed:
		return s.handleChargeFailed(ctx, event, raw)
	case EventTransferSuccess:
		return s.handleTransfer(ctx, event, raw, enums.TransferStatusSuccess)
	case EventTransferFailed:
		return s.handleTransfer(ctx, event, raw, enums.TransferStatusFailed)
	case EventTransferReversed:
		return s.handleTransfer(ctx, event, raw, enums.TransferStatusReversed)
	default:
		s.logg.Info(ctx, "ignoring unhandled webhook event")
		return &Result{Event: event.Event, Outcome: OutcomeIgnored}, nil
	}
}

func (s *service) handleChargeSuccess(ctx context.Context, event Event, raw []byte) (*Result, error) {
	var charge ChargeData
	if err := json.Unmarshal(event.Data, &charge); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed charge payload")
	}
	if charge.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge reference missing")
	}
	ctx = s.logg.WithReference(ctx, charge.Reference)

	if !s.guard.firstDelivery(ctx, event.Event, charge.Reference) {
		return &Result{Event: event.Event, Outcome: OutcomeDuplicate}, nil
	}

	if _, err := s.payments.UpsertPayment(ctx, charge.Reference, enums.PaymentStatusSuccess, raw, s.now().UTC()); err != nil {
		s.recordFailure(ctx, event.Event, charge.Reference, raw, err)
		return &Result{Event: event.Event, Outcome: OutcomeFailed}, err
	}

	meta := charge.Metadata
	if meta.BuyerID == uuid.Nil || meta.SellerID == uuid.Nil || meta.BookID == uuid.Nil {
		err := pkgerrors.New(pkgerrors.CodeValidation, "charge metadata missing order context")
		s.recordFailure(ctx, event.Event, charge.Reference, raw, err)
		return &Result{Event: event.Event, Outcome: OutcomeFailed}, err
	}

	bookPrice := meta.BookPriceCents
	if bookPrice == 0 {
		bookPrice = charge.AmountCents - meta.DeliveryFeeCents
	}

	order, created, err := s.orders.CreateFromPayment(ctx, orders.CreateFromPaymentInput{
		BuyerID:          meta.BuyerID,
		SellerID:         meta.SellerID,
		BookID:           meta.BookID,
		BookPriceCents:   bookPrice,
		DeliveryFeeCents: meta.DeliveryFeeCents,
		PaymentReference: charge.Reference,
		PickupAddress:    meta.PickupAddress,
		DeliveryAddress:  meta.DeliveryAddress,
	})
	if err != nil {
		s.recordFailure(ctx, event.Event, charge.Reference, raw, err)
		return &Result{Event: event.Event, Outcome: OutcomeFailed}, err
	}

	// Everything past this point is a side effect of an order that now
	// exists: failures are recorded for reconciliation, never surfaced.
	if created {
		if err := s.books.MarkSold(ctx, order.BookID, order.BuyerID, s.now().UTC()); err != nil {
			s.logg.Error(ctx, "marking book sold failed", err)
			s.recordFailure(ctx, event.Event, charge.Reference, raw, fmt.Errorf("mark book sold: %w", err))
		}
		if err := s.payments.MarkPaymentLinked(ctx, charge.Reference, s.now().UTC()); err != nil {
			s.logg.Error(ctx, "linking payment to order failed", err)
			s.recordFailure(ctx, event.Event, charge.Reference, raw, fmt.Errorf("link payment: %w", err))
		}
		s.notify(ctx, order.SellerID, "order.created",
			"You have a new order",
			"A buyer paid for your book. Commit within 48 hours to keep the sale.")
	}

	s.logg.Info(ctx, "charge processed")
	return &Result{Event: event.Event, Outcome: OutcomeProcessed, Order: order}, nil
}

func (s *service) handleChargeFailed(ctx context.Context, event Event, raw []byte) (*Result, error) {
	var charge ChargeData
	if err := json.Unmarshal(event.Data, &charge); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed charge payload")
	}
	if charge.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge reference missing")
	}
	ctx = s.logg.WithReference(ctx, charge.Reference)

	if !s.guard.firstDelivery(ctx, event.Event, charge.Reference) {
		return &Result{Event: event.Event, Outcome: OutcomeDuplicate}, nil
	}

	if _, err := s.payments.UpsertPayment(ctx, charge.Reference, enums.PaymentStatusFailed, raw, s.now().UTC()); err != nil {
		s.recordFailure(ctx, event.Event, charge.Reference, raw, err)
		return &Result{Event: event.Event, Outcome: OutcomeFailed}, err
	}

	order, err := s.lookup.FindByPaymentReference(ctx, charge.Reference)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Charge failed before any order existed; the payment row is enough.
		return &Result{Event: event.Event, Outcome: OutcomeProcessed}, nil
	}
	if err != nil {
		s.recordFailure(ctx, event.Event, charge.Reference, raw, err)
		return &Result{Event: event.Event, Outcome: OutcomeFailed}, err
	}

	if order.Status == enums.OrderStatusPendingCommit {
		updated, err := s.orders.Advance(ctx, order.ID, enums.OrderStatusPendingCommit, enums.OrderStatusFailed, nil)
		if err != nil {
			s.logg.Error(ctx, "failing order after charge failure", err)
			s.recordFailure(ctx, event.Event, charge.Reference, raw, fmt.Errorf("fail order: %w", err))
			return &Result{Event: event.Event, Outcome: OutcomeFailed}, err
		}
		order = updated
	}

	s.logg.Info(ctx, "charge failure processed")
	return &Result{Event: event.Event, Outcome: OutcomeProcessed, Order: order}, nil
}

func (s *service) handleTransfer(ctx context.Context, event Event, raw []byte, status enums.TransferStatus) (*Result, error) {
	var transfer TransferData
	if err := json.Unmarshal(event.Data, &transfer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed transfer payload")
	}
	if transfer.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer reference missing")
	}
	ctx = s.logg.WithReference(ctx, transfer.Reference)

	if !s.guard.firstDelivery(ctx, event.Event, transfer.Reference) {
		return &Result{Event: event.Event, Outcome: OutcomeDuplicate}, nil
	}

	var failureReason *string
	if status != enums.TransferStatusSuccess && transfer.Reason != "" {
		failureReason = &transfer.Reason
	}

	rows, err := s.payments.UpdateTransferStatus(ctx, transfer.Reference, status, failureReason)
	if err != nil {
		s.recordFailure(ctx, event.Event, transfer.Reference, raw, err)
		return &Result{Event: event.Event, Outcome: OutcomeFailed}, err
	}
	if rows == 0 {
		s.logg.Warn(ctx, "transfer event for unknown reference")
		return &Result{Event: event.Event, Outcome: OutcomeIgnored}, nil
	}

	s.logg.Info(ctx, "transfer status updated")
	return &Result{Event: event.Event, Outcome: OutcomeProcessed}, nil
}

func (s *service) notify(ctx context.Context, userID uuid.UUID, kind, title, body string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, notifications.NotifyInput{
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
	})
	if err != nil {
		s.logg.Error(ctx, "webhook notification failed", err)
	}
}

func (s *service) recordFailure(ctx context.Context, event, reference string, payload []byte, cause error) {
	failure := &models.WebhookFailure{
		Source:     failureSource,
		Event:      event,
		Reference:  reference,
		ErrorChain: cause.Error(),
		Payload:    payload,
	}
	if err := s.payments.RecordWebhookFailure(ctx, failure); err != nil {
		s.logg.Error(ctx, "recording webhook failure entry failed", err)
	}
}
