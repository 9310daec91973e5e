package payouts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/paystack"
)

// orderSource is the slice of the orders repository this service reads.
type orderSource interface {
	ListPayoutEligible(ctx context.Context, sellerID uuid.UUID) ([]models.Order, error)
	ListSellersWithPayoutEligibleOrders(ctx context.Context) ([]uuid.UUID, error)
}

// recipientCreator is the gateway surface for registering bank destinations.
type recipientCreator interface {
	CreateTransferRecipient(ctx context.Context, params paystack.RecipientParams) (*paystack.Recipient, error)
}

// BankDetails is a seller's bank destination as they submit it.
type BankDetails struct {
	AccountName   string
	AccountNumber string
	BankCode      string
}

// OrderLine is the commission split for one delivered order. All amounts
// are integer cents; SellerAmountCents + PlatformAmountCents always equals
// BookPriceCents + DeliveryFeeCents.
type OrderLine struct {
	OrderID             uuid.UUID `json:"order_id"`
	BookPriceCents      int64     `json:"book_price_cents"`
	DeliveryFeeCents    int64     `json:"delivery_fee_cents"`
	CommissionCents     int64     `json:"commission_cents"`
	SellerAmountCents   int64     `json:"seller_amount_cents"`
	PlatformAmountCents int64     `json:"platform_amount_cents"`
}

// Breakdown is the per-seller payout summary handed to the admin approval
// step. BelowMinimum flags aggregates under the configured threshold; the
// breakdown is still returned so operators can see what is accruing.
type Breakdown struct {
	SellerID               uuid.UUID   `json:"seller_id"`
	RecipientCode          string      `json:"recipient_code"`
	Orders                 []OrderLine `json:"orders"`
	TotalBookSalesCents    int64       `json:"total_book_sales_cents"`
	TotalDeliveryFeesCents int64       `json:"total_delivery_fees_cents"`
	SellerAmountCents      int64       `json:"seller_amount_cents"`
	PlatformEarningsCents  int64       `json:"platform_earnings_cents"`
	BelowMinimum           bool        `json:"below_minimum"`
	MinimumPayoutCents     int64       `json:"minimum_payout_cents"`
}

// Service computes seller payout breakdowns and manages gateway recipients.
type Service interface {
	ComputeSellerPayout(ctx context.Context, sellerID uuid.UUID) (*Breakdown, error)
	RegisterRecipient(ctx context.Context, sellerID uuid.UUID, details BankDetails) (*models.SellerRecipient, error)
	ListEligibleSellers(ctx context.Context) ([]uuid.UUID, error)
}

// ServiceParams carries the payout service dependencies and commission
// configuration. Rates are decimal strings, e.g. "0.10".
type ServiceParams struct {
	Repo                     Repository
	Orders                   orderSource
	Gateway                  recipientCreator
	Logger                   *logger.Logger
	BookCommissionRate       string
	DeliveryFeeRetentionRate string
	MinimumPayoutCents       int64
}

type service struct {
	repo          Repository
	orders        orderSource
	gateway       recipientCreator
	logg          *logger.Logger
	commission    decimal.Decimal
	feeRetention  decimal.Decimal
	minimumPayout int64
}

// NewService parses the commission configuration and builds the service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	commission, err := parseRate("book commission rate", params.BookCommissionRate)
	if err != nil {
		return nil, err
	}
	feeRetention, err := parseRate("delivery fee retention rate", params.DeliveryFeeRetentionRate)
	if err != nil {
		return nil, err
	}
	if params.MinimumPayoutCents < 0 {
		return nil, fmt.Errorf("minimum payout cannot be negative")
	}

	return &service{
		repo:          params.Repo,
		orders:        params.Orders,
		gateway:       params.Gateway,
		logg:          params.Logger,
		commission:    commission,
		feeRetention:  feeRetention,
		minimumPayout: params.MinimumPayoutCents,
	}, nil
}

func parseRate(name, raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s %q: %w", name, raw, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 1, got %s", name, rate)
	}
	return rate, nil
}

// ComputeSellerPayout aggregates the seller's delivered, payout-pending
// orders into a breakdown. The seller must have banking details on record;
// a missing gateway recipient code is created on the fly and persisted.
func (s *service) ComputeSellerPayout(ctx context.Context, sellerID uuid.UUID) (*Breakdown, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	ctx = s.logg.WithField(ctx, "seller_id", sellerID.String())

	recipient, err := s.resolveRecipient(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	eligible, err := s.orders.ListPayoutEligible(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	breakdown := &Breakdown{
		SellerID:           sellerID,
		RecipientCode:      recipient.RecipientCode,
		Orders:             make([]OrderLine, 0, len(eligible)),
		MinimumPayoutCents: s.minimumPayout,
	}
	for _, order := range eligible {
		line := s.splitOrder(&order)
		breakdown.Orders = append(breakdown.Orders, line)
		breakdown.TotalBookSalesCents += line.BookPriceCents
		breakdown.TotalDeliveryFeesCents += line.DeliveryFeeCents
		breakdown.SellerAmountCents += line.SellerAmountCents
		breakdown.PlatformEarningsCents += line.PlatformAmountCents
	}
	breakdown.BelowMinimum = breakdown.SellerAmountCents < s.minimumPayout

	s.logg.Info(s.logg.WithField(ctx, "order_count", len(eligible)), "payout breakdown computed")
	return breakdown, nil
}

// splitOrder divides one order's money between seller and platform. The
// commission applies to the book price only; the platform keeps the share
// of the delivery fee the retention rate dictates. The two sides always
// sum back to the order total, whatever the rounding does.
func (s *service) splitOrder(order *models.Order) OrderLine {
	price := decimal.NewFromInt(order.BookPriceCents)
	fee := decimal.NewFromInt(order.DeliveryFeeCents)

	commission := price.Mul(s.commission).Round(0).IntPart()
	sellerFeeShare := fee.Mul(decimal.NewFromInt(1).Sub(s.feeRetention)).Round(0).IntPart()

	sellerAmount := order.BookPriceCents - commission + sellerFeeShare
	platformAmount := commission + (order.DeliveryFeeCents - sellerFeeShare)

	return OrderLine{
		OrderID:             order.ID,
		BookPriceCents:      order.BookPriceCents,
		DeliveryFeeCents:    order.DeliveryFeeCents,
		CommissionCents:     commission,
		SellerAmountCents:   sellerAmount,
		PlatformAmountCents: platformAmount,
	}
}

// resolveRecipient loads the seller's recipient row and lazily registers it
// with the gateway when the code is missing, reusing the stored bank details.
func (s *service) resolveRecipient(ctx context.Context, sellerID uuid.UUID) (*models.SellerRecipient, error) {
	recipient, err := s.repo.FindRecipientBySeller(ctx, sellerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "seller has no banking details on record")
	}
	if err != nil {
		return nil, err
	}
	if !recipient.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "seller recipient is inactive")
	}
	if recipient.RecipientCode != "" {
		return recipient, nil
	}

	created, err := s.gateway.CreateTransferRecipient(ctx, paystack.RecipientParams{
		Name:          recipient.AccountName,
		AccountNumber: recipient.AccountNumber,
		BankCode:      recipient.BankCode,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetRecipientCode(ctx, sellerID, created.RecipientCode); err != nil {
		return nil, err
	}
	recipient.RecipientCode = created.RecipientCode
	s.logg.Info(ctx, "gateway transfer recipient registered")
	return recipient, nil
}

// RegisterRecipient stores a seller's bank details and registers them with
// the gateway. Re-registering the same account reuses the existing code.
func (s *service) RegisterRecipient(ctx context.Context, sellerID uuid.UUID, details BankDetails) (*models.SellerRecipient, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if details.AccountNumber == "" || details.BankCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account number and bank code are required")
	}
	ctx = s.logg.WithField(ctx, "seller_id", sellerID.String())

	existing, err := s.repo.FindRecipientBySeller(ctx, sellerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil &&
		existing.RecipientCode != "" &&
		existing.AccountNumber == details.AccountNumber &&
		existing.BankCode == details.BankCode {
		return existing, nil
	}

	created, err := s.gateway.CreateTransferRecipient(ctx, paystack.RecipientParams{
		Name:          details.AccountName,
		AccountNumber: details.AccountNumber,
		BankCode:      details.BankCode,
	})
	if err != nil {
		return nil, err
	}

	recipient := &models.SellerRecipient{
		SellerID:      sellerID,
		RecipientCode: created.RecipientCode,
		AccountName:   details.AccountName,
		AccountNumber: details.AccountNumber,
		BankCode:      details.BankCode,
		Active:        true,
	}
	if existing != nil {
		recipient.ID = existing.ID
	}
	if err := s.repo.SaveRecipient(ctx, recipient); err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "seller banking details registered")
	return recipient, nil
}

// ListEligibleSellers returns sellers with at least one delivered,
// payout-pending order, for batch breakdown runs.
func (s *service) ListEligibleSellers(ctx context.Context) ([]uuid.UUID, error) {
	return s.orders.ListSellersWithPayoutEligibleOrders(ctx)
}
