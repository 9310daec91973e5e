package delivery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/internal/books"
	"github.com/SimelweN/rebooked-backend/internal/orders"
	"github.com/SimelweN/rebooked-backend/internal/users"
	"github.com/SimelweN/rebooked-backend/pkg/courier"
	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/pagination"
	"github.com/SimelweN/rebooked-backend/pkg/types"
)

type fakeProvider struct {
	name      enums.CourierProvider
	booking   *courier.Booking
	bookErr   error
	blocks    bool
	labelData []byte
	labelErr  error
	calls     []time.Time
	parcels   []courier.ParcelRequest
}

func (p *fakeProvider) Name() enums.CourierProvider { return p.name }

func (p *fakeProvider) BookPickup(ctx context.Context, parcel courier.ParcelRequest) (*courier.Booking, error) {
	p.calls = append(p.calls, time.Now())
	p.parcels = append(p.parcels, parcel)
	if p.blocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.bookErr != nil {
		return nil, p.bookErr
	}
	return p.booking, nil
}

func (p *fakeProvider) DownloadLabel(ctx context.Context, labelURL string) ([]byte, error) {
	if p.labelErr != nil {
		return nil, p.labelErr
	}
	return p.labelData, nil
}

type stubOrdersService struct {
	order      *models.Order
	advanceErr error
}

func (s *stubOrdersService) CreateFromPayment(ctx context.Context, input orders.CreateFromPaymentInput) (*models.Order, bool, error) {
	return nil, false, fmt.Errorf("not implemented")
}

func (s *stubOrdersService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubOrdersService) Commit(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Order, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubOrdersService) Advance(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (*models.Order, error) {
	if s.advanceErr != nil {
		return nil, s.advanceErr
	}
	if s.order == nil || s.order.Status != from {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "unexpected status")
	}
	s.order.Status = to
	if provider, ok := updates["courier_provider"].(enums.CourierProvider); ok {
		s.order.CourierProvider = &provider
	}
	if tracking, ok := updates["tracking_number"].(string); ok {
		s.order.TrackingNumber = &tracking
	}
	if label, ok := updates["shipping_label_url"].(string); ok {
		s.order.ShippingLabelURL = &label
	}
	if ds, ok := updates["delivery_status"].(enums.DeliveryStatus); ok {
		s.order.DeliveryStatus = ds
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubOrdersService) MarkShipped(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubOrdersService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubOrdersService) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters orders.SellerOrderFilters) (*orders.SellerOrderList, error) {
	return nil, fmt.Errorf("not implemented")
}

type stubBooksRepo struct {
	book *models.Book
}

func (r *stubBooksRepo) WithTx(tx *gorm.DB) books.Repository { return r }
func (r *stubBooksRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	if r.book == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.book, nil
}
func (r *stubBooksRepo) MarkSold(ctx context.Context, bookID, buyerID uuid.UUID, at time.Time) error {
	return nil
}
func (r *stubBooksRepo) Release(ctx context.Context, bookID uuid.UUID) error { return nil }

type stubUsersRepo struct {
	users map[uuid.UUID]*models.User
}

func (r *stubUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

var _ users.Repository = (*stubUsersRepo)(nil)

type stubLabelStore struct {
	uploadErr error
	uploaded  map[string][]byte
}

func (s *stubLabelStore) Upload(ctx context.Context, objectKey, contentType string, data []byte) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	if s.uploaded == nil {
		s.uploaded = map[string][]byte{}
	}
	s.uploaded[objectKey] = data
	return "https://storage.example.com/rebooked-labels/" + objectKey, nil
}

type stubFailureRecorder struct {
	failures []*models.WebhookFailure
}

func (s *stubFailureRecorder) RecordWebhookFailure(ctx context.Context, failure *models.WebhookFailure) error {
	s.failures = append(s.failures, failure)
	return nil
}

func completeAddress() *types.Address {
	return &types.Address{
		Street:     "12 Long Street",
		City:       "Cape Town",
		Province:   "Western Cape",
		PostalCode: "8001",
		Country:    "ZA",
		Phone:      "+27831234567",
	}
}

func committedOrder() *models.Order {
	return &models.Order{
		ID:               uuid.New(),
		BuyerID:          uuid.New(),
		SellerID:         uuid.New(),
		BookID:           uuid.New(),
		AmountCents:      22500,
		BookPriceCents:   20000,
		DeliveryFeeCents: 2500,
		Status:           enums.OrderStatusCommitted,
		DeliveryStatus:   enums.DeliveryStatusNone,
		PaymentReference: "ref-1",
		PickupAddress:    completeAddress(),
		DeliveryAddress:  completeAddress(),
		PayoutStatus:     enums.PayoutStatusPending,
	}
}

type deliveryFixture struct {
	ordersSvc *stubOrdersService
	primary   *fakeProvider
	fallback  *fakeProvider
	labels    *stubLabelStore
	failures  *stubFailureRecorder
	service   Service
}

func newDeliveryFixture(t *testing.T, order *models.Order) *deliveryFixture {
	t.Helper()

	weight := 1.2
	fixture := &deliveryFixture{
		ordersSvc: &stubOrdersService{order: order},
		primary: &fakeProvider{
			name: enums.CourierProviderCourierGuy,
			booking: &courier.Booking{
				Provider:       enums.CourierProviderCourierGuy,
				TrackingNumber: "CG123",
				LabelURL:       "https://cg.example.com/labels/CG123.pdf",
				PickupDate:     time.Now().Add(24 * time.Hour),
			},
			labelData: []byte("%PDF-1.4 cg"),
		},
		fallback: &fakeProvider{
			name: enums.CourierProviderFastway,
			booking: &courier.Booking{
				Provider:       enums.CourierProviderFastway,
				TrackingNumber: "FW987",
				LabelURL:       "https://fw.example.com/labels/FW987.pdf",
				PickupDate:     time.Now().Add(24 * time.Hour),
			},
			labelData: []byte("%PDF-1.4 fw"),
		},
		labels:   &stubLabelStore{},
		failures: &stubFailureRecorder{},
	}

	usersRepo := &stubUsersRepo{users: map[uuid.UUID]*models.User{}}
	if order != nil {
		usersRepo.users[order.SellerID] = &models.User{ID: order.SellerID, Name: "Thandi M", Email: "thandi@example.com", PickupAddress: completeAddress()}
		usersRepo.users[order.BuyerID] = &models.User{ID: order.BuyerID, Name: "Pieter V", Email: "pieter@example.com"}
	}

	svc, err := NewService(ServiceParams{
		Orders:          fixture.ordersSvc,
		Books:           &stubBooksRepo{book: &models.Book{ID: uuid.New(), Title: "Discrete Mathematics", WeightKg: &weight}},
		Users:           usersRepo,
		Providers:       []courier.Provider{fixture.primary, fixture.fallback},
		Labels:          fixture.labels,
		Failures:        fixture.failures,
		Logger:          logger.New(logger.Options{ServiceName: "test"}),
		BookingTimeout:  100 * time.Millisecond,
		LabelTimeout:    100 * time.Millisecond,
		DefaultWeightKg: 2,
	})
	require.NoError(t, err)
	fixture.service = svc
	return fixture
}

func TestSchedulePickupPrimaryProvider(t *testing.T) {
	order := committedOrder()
	fixture := newDeliveryFixture(t, order)

	result, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.CourierProviderCourierGuy, result.Booking.Provider)
	assert.Equal(t, "CG123", result.Booking.TrackingNumber)
	assert.Len(t, fixture.primary.calls, 1)
	assert.Empty(t, fixture.fallback.calls, "fallback must not be contacted when the primary succeeds")

	assert.Equal(t, enums.OrderStatusCourierScheduled, result.Order.Status)
	assert.Equal(t, enums.DeliveryStatusPickupScheduled, result.Order.DeliveryStatus)
	require.NotNil(t, result.Order.TrackingNumber)
	assert.Equal(t, "CG123", *result.Order.TrackingNumber)

	assert.True(t, result.LabelPersisted)
	require.NotNil(t, result.Order.ShippingLabelURL)
	assert.Contains(t, *result.Order.ShippingLabelURL, "storage.example.com")
}

func TestSchedulePickupDeclaresOrderValue(t *testing.T) {
	order := committedOrder()
	fixture := newDeliveryFixture(t, order)

	_, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.NoError(t, err)

	require.Len(t, fixture.primary.parcels, 1)
	parcel := fixture.primary.parcels[0]
	assert.Equal(t, order.AmountCents, parcel.DeclaredValueCents)
	assert.InDelta(t, 225.0, parcel.DeclaredValueRands(), 0.001)
}

func TestSchedulePickupFallsBackSequentially(t *testing.T) {
	order := committedOrder()
	fixture := newDeliveryFixture(t, order)
	fixture.primary.bookErr = fmt.Errorf("no coverage")

	result, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.CourierProviderFastway, result.Booking.Provider)
	require.Len(t, fixture.primary.calls, 1)
	require.Len(t, fixture.fallback.calls, 1)
	assert.True(t, fixture.fallback.calls[0].After(fixture.primary.calls[0]) ||
		fixture.fallback.calls[0].Equal(fixture.primary.calls[0]))
}

func TestSchedulePickupTimesOutPerAttempt(t *testing.T) {
	order := committedOrder()
	fixture := newDeliveryFixture(t, order)
	fixture.primary.blocks = true

	result, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CourierProviderFastway, result.Booking.Provider)
}

func TestSchedulePickupBothProvidersFail(t *testing.T) {
	order := committedOrder()
	fixture := newDeliveryFixture(t, order)
	fixture.primary.bookErr = fmt.Errorf("no coverage")
	fixture.fallback.bookErr = fmt.Errorf("service window closed")

	_, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	// The order must remain committed so a later attempt starts clean.
	current, getErr := fixture.ordersSvc.Get(context.Background(), order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, enums.OrderStatusCommitted, current.Status)
	assert.Nil(t, current.TrackingNumber)
}

func TestSchedulePickupRequiresCommittedOrder(t *testing.T) {
	order := committedOrder()
	order.Status = enums.OrderStatusPendingCommit
	fixture := newDeliveryFixture(t, order)

	_, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, fixture.primary.calls)
}

func TestSchedulePickupRetryAfterBookingIsNoOp(t *testing.T) {
	order := committedOrder()
	tracking := "CG123"
	label := "https://cg.example.com/labels/CG123.pdf"
	provider := enums.CourierProviderCourierGuy
	order.Status = enums.OrderStatusCourierScheduled
	order.TrackingNumber = &tracking
	order.ShippingLabelURL = &label
	order.CourierProvider = &provider
	fixture := newDeliveryFixture(t, order)

	result, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "CG123", result.Booking.TrackingNumber)
	assert.Empty(t, fixture.primary.calls)
	assert.Empty(t, fixture.fallback.calls)
}

func TestSchedulePickupLabelFallsBackToRemoteURL(t *testing.T) {
	order := committedOrder()
	fixture := newDeliveryFixture(t, order)
	fixture.labels.uploadErr = fmt.Errorf("bucket unavailable")

	result, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.NoError(t, err)

	assert.False(t, result.LabelPersisted)
	require.NotNil(t, result.Order.ShippingLabelURL)
	assert.Equal(t, "https://cg.example.com/labels/CG123.pdf", *result.Order.ShippingLabelURL)
}

func TestSchedulePickupReportsSuccessWhenPersistenceFails(t *testing.T) {
	order := committedOrder()
	fixture := newDeliveryFixture(t, order)
	fixture.ordersSvc.advanceErr = fmt.Errorf("connection reset")

	result, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.NoError(t, err, "a placed booking must be reported even when the DB write fails")

	assert.Equal(t, "CG123", result.Booking.TrackingNumber)
	require.Len(t, fixture.failures.failures, 1)
	assert.Equal(t, "delivery", fixture.failures.failures[0].Source)
	assert.Equal(t, "CG123", fixture.failures.failures[0].Reference)
}

func TestSchedulePickupRequiresDeliveryAddress(t *testing.T) {
	order := committedOrder()
	order.DeliveryAddress = nil
	fixture := newDeliveryFixture(t, order)

	_, err := fixture.service.SchedulePickup(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
