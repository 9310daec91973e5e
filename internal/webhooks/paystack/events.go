package paystack

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/SimelweN/rebooked-backend/pkg/types"
)

// Gateway event types this engine reacts to. Anything else is acknowledged
// and ignored.
const (
	EventChargeSuccess    = "charge.success"
	EventChargeFailed     = "charge.failed"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

// Event is the outer webhook envelope. Data stays raw until the event type
// picks a shape.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChargeData is the charge.* payload. Amount is in minor currency units.
type ChargeData struct {
	Reference   string         `json:"reference"`
	AmountCents int64          `json:"amount"`
	Status      string         `json:"status"`
	Currency    string         `json:"currency"`
	Metadata    ChargeMetadata `json:"metadata"`
}

// ChargeMetadata is the order context the checkout attaches to a charge.
type ChargeMetadata struct {
	BuyerID          uuid.UUID      `json:"buyer_id"`
	SellerID         uuid.UUID      `json:"seller_id"`
	BookID           uuid.UUID      `json:"book_id"`
	BookPriceCents   int64          `json:"book_price_cents"`
	DeliveryFeeCents int64          `json:"delivery_fee_cents"`
	PickupAddress    *types.Address `json:"pickup_address,omitempty"`
	DeliveryAddress  *types.Address `json:"delivery_address,omitempty"`
}

// TransferData is the transfer.* payload.
type TransferData struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
}
