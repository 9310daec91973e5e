package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/internal/notifications"
	"github.com/SimelweN/rebooked-backend/internal/orders"
	"github.com/SimelweN/rebooked-backend/internal/payments"
	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
)

type stubPaymentsRepo struct {
	payments    map[string]*models.PaymentTransaction
	linked      map[string]bool
	transfers   map[string]enums.TransferStatus
	reasons     map[string]string
	failures    []*models.WebhookFailure
	upsertErr   error
	transferErr error
}

func newStubPaymentsRepo() *stubPaymentsRepo {
	return &stubPaymentsRepo{
		payments:  map[string]*models.PaymentTransaction{},
		linked:    map[string]bool{},
		transfers: map[string]enums.TransferStatus{},
		reasons:   map[string]string{},
	}
}

func (s *stubPaymentsRepo) WithTx(*gorm.DB) payments.Repository { return s }

func (s *stubPaymentsRepo) UpsertPayment(_ context.Context, reference string, status enums.PaymentStatus, raw []byte, verifiedAt time.Time) (*models.PaymentTransaction, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	txn, ok := s.payments[reference]
	if !ok {
		txn = &models.PaymentTransaction{ID: uuid.New(), Reference: reference}
		s.payments[reference] = txn
	}
	txn.Status = status
	txn.RawPayload = raw
	txn.VerifiedAt = &verifiedAt
	return txn, nil
}

func (s *stubPaymentsRepo) MarkPaymentLinked(_ context.Context, reference string, _ time.Time) error {
	s.linked[reference] = true
	return nil
}

func (s *stubPaymentsRepo) FindPaymentByReference(_ context.Context, reference string) (*models.PaymentTransaction, error) {
	txn, ok := s.payments[reference]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return txn, nil
}

func (s *stubPaymentsRepo) UpdateTransferStatus(_ context.Context, reference string, status enums.TransferStatus, failureReason *string) (int64, error) {
	if s.transferErr != nil {
		return 0, s.transferErr
	}
	if _, ok := s.transfers[reference]; !ok {
		return 0, nil
	}
	s.transfers[reference] = status
	if failureReason != nil {
		s.reasons[reference] = *failureReason
	}
	return 1, nil
}

func (s *stubPaymentsRepo) FindTransferByReference(_ context.Context, reference string) (*models.Transfer, error) {
	status, ok := s.transfers[reference]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.Transfer{Reference: reference, Status: status}, nil
}

func (s *stubPaymentsRepo) RecordWebhookFailure(_ context.Context, failure *models.WebhookFailure) error {
	s.failures = append(s.failures, failure)
	return nil
}

type stubOrderWriter struct {
	byReference map[string]*models.Order
	createErr   error
	advanceErr  error
	creates     int
}

func newStubOrderWriter() *stubOrderWriter {
	return &stubOrderWriter{byReference: map[string]*models.Order{}}
}

func (s *stubOrderWriter) CreateFromPayment(_ context.Context, input orders.CreateFromPaymentInput) (*models.Order, bool, error) {
	if s.createErr != nil {
		return nil, false, s.createErr
	}
	if existing, ok := s.byReference[input.PaymentReference]; ok {
		return existing, false, nil
	}
	s.creates++
	order := &models.Order{
		ID:               uuid.New(),
		BuyerID:          input.BuyerID,
		SellerID:         input.SellerID,
		BookID:           input.BookID,
		AmountCents:      input.BookPriceCents + input.DeliveryFeeCents,
		BookPriceCents:   input.BookPriceCents,
		DeliveryFeeCents: input.DeliveryFeeCents,
		Status:           enums.OrderStatusPendingCommit,
		PaymentReference: input.PaymentReference,
	}
	s.byReference[input.PaymentReference] = order
	return order, true, nil
}

func (s *stubOrderWriter) Advance(_ context.Context, orderID uuid.UUID, from, to enums.OrderStatus, _ map[string]any) (*models.Order, error) {
	if s.advanceErr != nil {
		return nil, s.advanceErr
	}
	for _, order := range s.byReference {
		if order.ID == orderID {
			if order.Status != from {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "unexpected status")
			}
			order.Status = to
			return order, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubOrderWriter) FindByPaymentReference(_ context.Context, reference string) (*models.Order, error) {
	order, ok := s.byReference[reference]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

type stubBookMarker struct {
	sold []uuid.UUID
	err  error
}

func (s *stubBookMarker) MarkSold(_ context.Context, bookID, _ uuid.UUID, _ time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.sold = append(s.sold, bookID)
	return nil
}

type stubWebhookNotifier struct {
	inputs []notifications.NotifyInput
	err    error
}

func (s *stubWebhookNotifier) Notify(_ context.Context, input notifications.NotifyInput) error {
	if s.err != nil {
		return s.err
	}
	s.inputs = append(s.inputs, input)
	return nil
}

type stubDedupe struct {
	seen map[string]bool
	err  error
}

func newStubDedupe() *stubDedupe { return &stubDedupe{seen: map[string]bool{}} }

func (s *stubDedupe) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *stubDedupe) IdempotencyKey(scope, id string) string {
	return "rb:idempotency:" + scope + ":" + id
}

type webhookFixture struct {
	svc      Service
	payments *stubPaymentsRepo
	orders   *stubOrderWriter
	books    *stubBookMarker
	notifier *stubWebhookNotifier
	dedupe   *stubDedupe
}

func newWebhookFixture(t *testing.T, withDedupe bool) *webhookFixture {
	t.Helper()

	fixture := &webhookFixture{
		payments: newStubPaymentsRepo(),
		orders:   newStubOrderWriter(),
		books:    &stubBookMarker{},
		notifier: &stubWebhookNotifier{},
	}

	params := ServiceParams{
		Payments:    fixture.payments,
		Orders:      fixture.orders,
		OrderLookup: fixture.orders,
		Books:       fixture.books,
		Notifier:    fixture.notifier,
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
	}
	if withDedupe {
		fixture.dedupe = newStubDedupe()
		params.Dedupe = fixture.dedupe
	}

	svc, err := NewService(params)
	require.NoError(t, err)
	fixture.svc = svc
	return fixture
}

func chargeSuccessPayload(t *testing.T, reference string, meta ChargeMetadata) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"event": EventChargeSuccess,
		"data": map[string]any{
			"reference": reference,
			"amount":    meta.BookPriceCents + meta.DeliveryFeeCents,
			"status":    "success",
			"currency":  "ZAR",
			"metadata":  meta,
		},
	})
	require.NoError(t, err)
	return data
}

func fullMetadata() ChargeMetadata {
	return ChargeMetadata{
		BuyerID:          uuid.New(),
		SellerID:         uuid.New(),
		BookID:           uuid.New(),
		BookPriceCents:   20000,
		DeliveryFeeCents: 2500,
	}
}

func TestChargeSuccessCreatesOrder(t *testing.T) {
	fixture := newWebhookFixture(t, false)
	meta := fullMetadata()
	payload := chargeSuccessPayload(t, "ps_ref_1", meta)

	result, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	require.NotNil(t, result.Order)
	assert.Equal(t, enums.OrderStatusPendingCommit, result.Order.Status)
	assert.EqualValues(t, 22500, result.Order.AmountCents)

	payment, err := fixture.payments.FindPaymentByReference(context.Background(), "ps_ref_1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSuccess, payment.Status)
	assert.True(t, fixture.payments.linked["ps_ref_1"])

	assert.Equal(t, []uuid.UUID{meta.BookID}, fixture.books.sold)
	require.Len(t, fixture.notifier.inputs, 1)
	assert.Equal(t, meta.SellerID, fixture.notifier.inputs[0].UserID)
}

func TestChargeSuccessRedeliveryCreatesOneOrder(t *testing.T) {
	// No dedupe store here: the unique payment reference alone must keep
	// the second delivery from creating anything.
	fixture := newWebhookFixture(t, false)
	payload := chargeSuccessPayload(t, "ps_ref_1", fullMetadata())

	first, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)

	second, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, second.Outcome)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, fixture.orders.creates)
	assert.Len(t, fixture.books.sold, 1)
	assert.Len(t, fixture.notifier.inputs, 1)
}

func TestChargeSuccessDedupeShortCircuitsRedelivery(t *testing.T) {
	fixture := newWebhookFixture(t, true)
	payload := chargeSuccessPayload(t, "ps_ref_1", fullMetadata())

	_, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)

	second, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, 1, fixture.orders.creates)
}

func TestChargeSuccessDedupeFailsOpen(t *testing.T) {
	fixture := newWebhookFixture(t, true)
	fixture.dedupe.err = fmt.Errorf("connection refused")
	payload := chargeSuccessPayload(t, "ps_ref_1", fullMetadata())

	result, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, result.Outcome)
}

func TestChargeSuccessMissingMetadataRecordsFailure(t *testing.T) {
	fixture := newWebhookFixture(t, false)
	payload := chargeSuccessPayload(t, "ps_ref_1", ChargeMetadata{})

	result, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, OutcomeFailed, result.Outcome)

	// The payment row still lands even when no order can be built.
	_, findErr := fixture.payments.FindPaymentByReference(context.Background(), "ps_ref_1")
	assert.NoError(t, findErr)
	require.Len(t, fixture.payments.failures, 1)
	assert.Equal(t, EventChargeSuccess, fixture.payments.failures[0].Event)
}

func TestChargeSuccessBookMarkFailureStillProcessed(t *testing.T) {
	fixture := newWebhookFixture(t, false)
	fixture.books.err = fmt.Errorf("connection reset")
	payload := chargeSuccessPayload(t, "ps_ref_1", fullMetadata())

	result, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, result.Outcome)

	require.Len(t, fixture.payments.failures, 1)
	assert.Contains(t, fixture.payments.failures[0].ErrorChain, "mark book sold")
}

func TestChargeSuccessOrderCreateFailureRecorded(t *testing.T) {
	fixture := newWebhookFixture(t, false)
	fixture.orders.createErr = fmt.Errorf("db down")
	payload := chargeSuccessPayload(t, "ps_ref_1", fullMetadata())

	result, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	require.Len(t, fixture.payments.failures, 1)
}

func TestChargeFailedMarksPendingOrderFailed(t *testing.T) {
	fixture := newWebhookFixture(t, false)
	createPayload := chargeSuccessPayload(t, "ps_ref_1", fullMetadata())
	_, err := fixture.svc.HandleEvent(context.Background(), createPayload)
	require.NoError(t, err)

	failedPayload := []byte(`{"event":"charge.failed","data":{"reference":"ps_ref_1","status":"failed"}}`)
	result, err := fixture.svc.HandleEvent(context.Background(), failedPayload)
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	require.NotNil(t, result.Order)
	assert.Equal(t, enums.OrderStatusFailed, result.Order.Status)

	payment, err := fixture.payments.FindPaymentByReference(context.Background(), "ps_ref_1")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
}

func TestChargeFailedWithoutOrder(t *testing.T) {
	fixture := newWebhookFixture(t, false)

	payload := []byte(`{"event":"charge.failed","data":{"reference":"ps_ref_gone","status":"failed"}}`)
	result, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Nil(t, result.Order)
}

func TestChargeFailedLeavesCommittedOrderAlone(t *testing.T) {
	fixture := newWebhookFixture(t, false)
	createPayload := chargeSuccessPayload(t, "ps_ref_1", fullMetadata())
	_, err := fixture.svc.HandleEvent(context.Background(), createPayload)
	require.NoError(t, err)
	fixture.orders.byReference["ps_ref_1"].Status = enums.OrderStatusCommitted

	payload := []byte(`{"event":"charge.failed","data":{"reference":"ps_ref_1","status":"failed"}}`)
	result, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, result.Outcome)
	assert.Equal(t, enums.OrderStatusCommitted, result.Order.Status)
}

func TestTransferEventsUpdateStatus(t *testing.T) {
	cases := []struct {
		event  string
		status enums.TransferStatus
		reason string
	}{
		{EventTransferSuccess, enums.TransferStatusSuccess, ""},
		{EventTransferFailed, enums.TransferStatusFailed, "insufficient balance"},
		{EventTransferReversed, enums.TransferStatusReversed, "beneficiary account closed"},
	}
	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			fixture := newWebhookFixture(t, false)
			fixture.payments.transfers["trf_1"] = enums.TransferStatusPending

			payload := fmt.Sprintf(`{"event":%q,"data":{"reference":"trf_1","reason":%q}}`, tc.event, tc.reason)
			result, err := fixture.svc.HandleEvent(context.Background(), []byte(payload))
			require.NoError(t, err)

			assert.Equal(t, OutcomeProcessed, result.Outcome)
			assert.Equal(t, tc.status, fixture.payments.transfers["trf_1"])
			if tc.reason != "" {
				assert.Equal(t, tc.reason, fixture.payments.reasons["trf_1"])
			}
		})
	}
}

func TestTransferEventUnknownReferenceIgnored(t *testing.T) {
	fixture := newWebhookFixture(t, false)

	payload := []byte(`{"event":"transfer.success","data":{"reference":"trf_unknown"}}`)
	result, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
}

func TestUnknownEventIgnored(t *testing.T) {
	fixture := newWebhookFixture(t, false)

	payload := []byte(`{"event":"subscription.create","data":{}}`)
	result, err := fixture.svc.HandleEvent(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
}

func TestMalformedPayloadRejected(t *testing.T) {
	fixture := newWebhookFixture(t, false)

	_, err := fixture.svc.HandleEvent(context.Background(), []byte(`{"event":`))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestMissingReferenceRejected(t *testing.T) {
	fixture := newWebhookFixture(t, false)

	for _, payload := range []string{
		`{"event":"charge.success","data":{"amount":100}}`,
		`{"event":"transfer.success","data":{}}`,
	} {
		_, err := fixture.svc.HandleEvent(context.Background(), []byte(payload))
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	}
}
