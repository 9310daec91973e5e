package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/SimelweN/rebooked-backend/api/responses"
	"github.com/SimelweN/rebooked-backend/api/validators"
	"github.com/SimelweN/rebooked-backend/internal/delivery"
	internalorders "github.com/SimelweN/rebooked-backend/internal/orders"
	"github.com/SimelweN/rebooked-backend/internal/refunds"
	"github.com/SimelweN/rebooked-backend/pkg/enums"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/pagination"
)

type commitRequest struct {
	SellerID uuid.UUID `json:"seller_id" validate:"required"`
}

type refundRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// Commit is the seller's 48-hour sale confirmation. Re-sending the request
// after a successful commit returns the same order again.
func Commit(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseURLUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req commitRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Commit(r.Context(), orderID, req.SellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ViewFromModel(order))
	}
}

// SchedulePickup books a courier for a committed order.
func SchedulePickup(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseURLUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SchedulePickup(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"order": internalorders.ViewFromModel(result.Order),
			"booking": map[string]any{
				"provider":        result.Booking.Provider.String(),
				"tracking_number": result.Booking.TrackingNumber,
				"label_url":       result.Booking.LabelURL,
				"pickup_date":     result.Booking.PickupDate,
			},
			"label_persisted": result.LabelPersisted,
		})
	}
}

// Refund reverses the buyer's charge and releases the listing.
func Refund(svc refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseURLUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RequestRefund(r.Context(), orderID, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{
			"order":                    internalorders.ViewFromModel(result.Order),
			"already_refunded":         result.AlreadyRefunded,
			"expected_completion_date": result.ExpectedCompletion.Format(time.RFC3339),
		}
		if result.Refund != nil {
			payload["refund"] = map[string]any{
				"reference":    result.Refund.RefundReference,
				"amount_cents": result.Refund.AmountCents,
				"status":       result.Refund.Status.String(),
			}
		}
		responses.WriteSuccess(w, payload)
	}
}

// MarkShipped records the courier collecting the parcel.
func MarkShipped(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseURLUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.MarkShipped(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ViewFromModel(order))
	}
}

// MarkDelivered records final delivery; the order becomes payout-eligible.
func MarkDelivered(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseURLUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.MarkDelivered(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ViewFromModel(order))
	}
}

// Get returns one order.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseURLUUID(chi.URLParam(r, "orderID"), "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.ViewFromModel(order))
	}
}

// ListSeller returns one cursor page of a seller's orders.
func ListSeller(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerRaw := strings.TrimSpace(r.URL.Query().Get("seller_id"))
		if sellerRaw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "seller_id query parameter required"))
			return
		}
		sellerID, err := uuid.Parse(sellerRaw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "seller_id must be a uuid"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := internalorders.SellerOrderFilters{}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{"status": raw}))
				return
			}
			filters.Status = &status
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		page, err := svc.ListSellerOrders(r.Context(), sellerID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]internalorders.OrderView, 0, len(page.Orders))
		for i := range page.Orders {
			views = append(views, internalorders.ViewFromModel(&page.Orders[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"orders":      views,
			"next_cursor": page.NextCursor,
		})
	}
}
