package payouts

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SimelweN/rebooked-backend/api/responses"
	"github.com/SimelweN/rebooked-backend/api/validators"
	internalpayouts "github.com/SimelweN/rebooked-backend/internal/payouts"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
)

type registerRecipientRequest struct {
	AccountName   string `json:"account_name" validate:"required,max=120"`
	AccountNumber string `json:"account_number" validate:"required,min=6,max=20"`
	BankCode      string `json:"bank_code" validate:"required,max=12"`
}

// Breakdown returns the seller's current payout computation for the admin
// approval step.
func Breakdown(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := validators.ParseURLUUID(chi.URLParam(r, "sellerID"), "sellerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		breakdown, err := svc.ComputeSellerPayout(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, breakdown)
	}
}

// RegisterRecipient stores the seller's bank destination and registers it
// with the payment gateway.
func RegisterRecipient(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := validators.ParseURLUUID(chi.URLParam(r, "sellerID"), "sellerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req registerRecipientRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recipient, err := svc.RegisterRecipient(r.Context(), sellerID, internalpayouts.BankDetails{
			AccountName:   req.AccountName,
			AccountNumber: req.AccountNumber,
			BankCode:      req.BankCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"seller_id":      recipient.SellerID,
			"recipient_code": recipient.RecipientCode,
			"active":         recipient.Active,
		})
	}
}
