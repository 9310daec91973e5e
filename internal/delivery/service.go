package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SimelweN/rebooked-backend/internal/books"
	"github.com/SimelweN/rebooked-backend/internal/orders"
	"github.com/SimelweN/rebooked-backend/internal/users"
	"github.com/SimelweN/rebooked-backend/pkg/courier"
	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/metrics"
)

// labelStore persists downloaded labels; the GCS client satisfies it.
type labelStore interface {
	Upload(ctx context.Context, objectKey, contentType string, data []byte) (string, error)
}

// failureRecorder writes reconciliation ledger rows for side effects that
// failed after the booking was already placed.
type failureRecorder interface {
	RecordWebhookFailure(ctx context.Context, failure *models.WebhookFailure) error
}

// ScheduleResult reports a placed booking. LabelPersisted is false when the
// label could not be stored and the remote courier URL was kept instead.
type ScheduleResult struct {
	Order          *models.Order
	Booking        *courier.Booking
	LabelPersisted bool
}

// Service books courier pickups for committed orders.
type Service interface {
	SchedulePickup(ctx context.Context, orderID uuid.UUID) (*ScheduleResult, error)
}

// ServiceParams carries the orchestrator dependencies. Labels and Metrics
// are optional; Providers are attempted in slice order.
type ServiceParams struct {
	Orders          orders.Service
	Books           books.Repository
	Users           users.Repository
	Providers       []courier.Provider
	Labels          labelStore
	Failures        failureRecorder
	Metrics         *metrics.FulfillmentMetrics
	Logger          *logger.Logger
	BookingTimeout  time.Duration
	LabelTimeout    time.Duration
	DefaultWeightKg float64
	LabelPrefix     string
}

type service struct {
	orders         orders.Service
	books          books.Repository
	users          users.Repository
	providers      []courier.Provider
	labels         labelStore
	failures       failureRecorder
	metrics        *metrics.FulfillmentMetrics
	logg           *logger.Logger
	bookingTimeout time.Duration
	labelTimeout   time.Duration
	defaultWeight  float64
	labelPrefix    string
	now            func() time.Time
}

// NewService validates the dependencies and builds the orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Books == nil {
		return nil, fmt.Errorf("books repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if len(params.Providers) == 0 {
		return nil, fmt.Errorf("at least one courier provider required")
	}
	if params.Failures == nil {
		return nil, fmt.Errorf("failure recorder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.BookingTimeout <= 0 {
		params.BookingTimeout = 10 * time.Second
	}
	if params.LabelTimeout <= 0 {
		params.LabelTimeout = 15 * time.Second
	}
	if params.DefaultWeightKg <= 0 {
		params.DefaultWeightKg = 2
	}
	if params.LabelPrefix == "" {
		params.LabelPrefix = "shipping-labels"
	}
	return &service{
		orders:         params.Orders,
		books:          params.Books,
		users:          params.Users,
		providers:      params.Providers,
		labels:         params.Labels,
		failures:       params.Failures,
		metrics:        params.Metrics,
		logg:           params.Logger,
		bookingTimeout: params.BookingTimeout,
		labelTimeout:   params.LabelTimeout,
		defaultWeight:  params.DefaultWeightKg,
		labelPrefix:    params.LabelPrefix,
		now:            time.Now,
	}, nil
}

// SchedulePickup books a courier for a committed order. A failed booking
// leaves the order committed so the next attempt starts clean; once a
// booking is placed, persistence problems are recorded for reconciliation
// but the booking is still reported as a success.
func (s *service) SchedulePickup(ctx context.Context, orderID uuid.UUID) (*ScheduleResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if order.Status != enums.OrderStatusCommitted {
		if order.Status == enums.OrderStatusCourierScheduled && order.TrackingNumber != nil {
			// Retry after a completed booking: report the existing one.
			return s.resultFromOrder(order), nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order must be committed before scheduling pickup").
			WithDetails(map[string]any{"current_status": order.Status.String()})
	}

	parcel, err := s.buildParcel(ctx, order)
	if err != nil {
		return nil, err
	}

	booking, err := bookWithFallback(ctx, s.providers, s.bookingTimeout, *parcel, s.observeAttempt)
	if err != nil {
		s.logg.Warn(ctx, "courier booking failed on all providers")
		return nil, err
	}

	labelURL, persisted := s.persistLabel(ctx, order.ID, booking)

	provider := booking.Provider
	updates := map[string]any{
		"courier_provider":   provider,
		"tracking_number":    booking.TrackingNumber,
		"shipping_label_url": labelURL,
		"pickup_date":        booking.PickupDate,
		"delivery_status":    enums.DeliveryStatusPickupScheduled,
	}

	updated, err := s.orders.Advance(ctx, order.ID, enums.OrderStatusCommitted, enums.OrderStatusCourierScheduled, updates)
	if err != nil {
		// The courier holds a live booking we failed to record. Surface it
		// to operators instead of failing the call and double-booking.
		s.logg.Error(ctx, "booking placed but order update failed; reconciliation required", err)
		s.recordBookingFailure(ctx, order, booking, err)

		order.CourierProvider = &provider
		order.TrackingNumber = &booking.TrackingNumber
		order.ShippingLabelURL = &labelURL
		return &ScheduleResult{Order: order, Booking: booking, LabelPersisted: persisted}, nil
	}

	s.logg.Info(s.logg.WithField(ctx, "provider", provider.String()), "courier pickup scheduled")
	return &ScheduleResult{Order: updated, Booking: booking, LabelPersisted: persisted}, nil
}

func (s *service) buildParcel(ctx context.Context, order *models.Order) (*courier.ParcelRequest, error) {
	if order.DeliveryAddress == nil || !order.DeliveryAddress.Complete() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no usable delivery address")
	}

	var senderName string
	pickup := order.PickupAddress
	if seller, err := s.users.FindByID(ctx, order.SellerID); err == nil {
		senderName = seller.Name
		if pickup == nil || !pickup.Complete() {
			pickup = seller.PickupAddress
		}
	}
	if pickup == nil || !pickup.Complete() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller has no usable pickup address")
	}

	weight := s.defaultWeight
	description := "Used book"
	book, err := s.books.FindByID(ctx, order.BookID)
	if err == nil {
		if book.WeightKg != nil && *book.WeightKg > 0 {
			weight = *book.WeightKg
		}
		if book.Title != "" {
			description = book.Title
		}
	}

	var receiverName, receiverPhone string
	if buyer, err := s.users.FindByID(ctx, order.BuyerID); err == nil {
		receiverName = buyer.Name
	}
	receiverPhone = order.DeliveryAddress.Phone

	normalizedPickup := pickup.Normalize()
	normalizedDelivery := order.DeliveryAddress.Normalize()

	return &courier.ParcelRequest{
		Reference:          "RB-" + order.ID.String(),
		Description:        description,
		WeightKg:           weight,
		DeclaredValueCents: order.AmountCents,
		Pickup:             normalizedPickup,
		Delivery:           normalizedDelivery,
		SenderName:         senderName,
		ReceiverName:       receiverName,
		ReceiverPhone:      receiverPhone,
		PickupDate:         s.now().Add(24 * time.Hour),
	}, nil
}

// persistLabel downloads and stores the label, returning the URL to put on
// the order. Every failure falls back to the courier's own URL.
func (s *service) persistLabel(ctx context.Context, orderID uuid.UUID, booking *courier.Booking) (string, bool) {
	if s.labels == nil || booking.LabelURL == "" {
		return booking.LabelURL, false
	}

	provider := s.providerByName(booking.Provider)
	if provider == nil {
		return booking.LabelURL, false
	}

	labelCtx, cancel := context.WithTimeout(ctx, s.labelTimeout)
	defer cancel()

	data, err := provider.DownloadLabel(labelCtx, booking.LabelURL)
	if err != nil {
		s.logg.Warn(ctx, "label download failed, keeping remote url")
		return booking.LabelURL, false
	}

	objectKey := fmt.Sprintf("%s/%s.pdf", s.labelPrefix, orderID)
	storedURL, err := s.labels.Upload(labelCtx, objectKey, "application/pdf", data)
	if err != nil {
		s.logg.Warn(ctx, "label upload failed, keeping remote url")
		return booking.LabelURL, false
	}
	return storedURL, true
}

func (s *service) providerByName(name enums.CourierProvider) courier.Provider {
	for _, provider := range s.providers {
		if provider.Name() == name {
			return provider
		}
	}
	return nil
}

func (s *service) observeAttempt(provider, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveCourierAttempt(provider, outcome)
	}
}

func (s *service) recordBookingFailure(ctx context.Context, order *models.Order, booking *courier.Booking, cause error) {
	failure := &models.WebhookFailure{
		Source:     "delivery",
		Event:      "booking.persist",
		Reference:  booking.TrackingNumber,
		ErrorChain: cause.Error(),
		Payload: []byte(fmt.Sprintf(
			`{"order_id":%q,"provider":%q,"tracking_number":%q}`,
			order.ID, booking.Provider, booking.TrackingNumber,
		)),
	}
	if err := s.failures.RecordWebhookFailure(ctx, failure); err != nil {
		s.logg.Error(ctx, "recording reconciliation entry failed", err)
	}
}

func (s *service) resultFromOrder(order *models.Order) *ScheduleResult {
	booking := &courier.Booking{}
	if order.CourierProvider != nil {
		booking.Provider = *order.CourierProvider
	}
	if order.TrackingNumber != nil {
		booking.TrackingNumber = *order.TrackingNumber
	}
	if order.ShippingLabelURL != nil {
		booking.LabelURL = *order.ShippingLabelURL
	}
	if order.PickupDate != nil {
		booking.PickupDate = *order.PickupDate
	}
	return &ScheduleResult{Order: order, Booking: booking, LabelPersisted: order.ShippingLabelURL != nil}
}
