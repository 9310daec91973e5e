package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/SimelweN/rebooked-backend/api/responses"
	paystackhook "github.com/SimelweN/rebooked-backend/internal/webhooks/paystack"
	pkgerrors "github.com/SimelweN/rebooked-backend/pkg/errors"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/metrics"
	"github.com/SimelweN/rebooked-backend/pkg/paystack"
)

const signatureHeader = "X-Paystack-Signature"

// PaystackWebhookService dispatches a verified raw event body.
type PaystackWebhookService interface {
	HandleEvent(ctx context.Context, raw []byte) (*paystackhook.Result, error)
}

// paystackSigner exposes the webhook signing secret.
type paystackSigner interface {
	SigningSecret() string
}

// PaystackWebhook receives gateway events. The signature is verified against
// the raw body before any parsing. Deliveries are at-least-once: once the
// event is dispatched the gateway gets a 200 even when side effects failed,
// because a retry would replay work the reconciliation ledger already tracks.
func PaystackWebhook(svc PaystackWebhookService, signer paystackSigner, fm *metrics.FulfillmentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || signer == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(signatureHeader)
		if signature == "" {
			// No signature is a malformed request; only a mismatch is treated
			// as an authentication failure.
			fm.ObserveWebhook("unknown", "rejected")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing webhook signature"))
			return
		}
		if !paystack.VerifySignature(payload, signer.SigningSecret(), signature) {
			fm.ObserveWebhook("unknown", "rejected")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		result, err := svc.HandleEvent(ctx, payload)
		if result == nil {
			// The body never parsed into an event; nothing was dispatched.
			fm.ObserveWebhook("unknown", "rejected")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		fm.ObserveWebhook(result.Event, string(result.Outcome))
		if err != nil {
			if logg != nil {
				logg.Error(logg.WithField(ctx, "event", result.Event), "webhook side effects incomplete", err)
			}
		}

		responses.WriteSuccess(w, map[string]any{
			"event":   result.Event,
			"outcome": string(result.Outcome),
		})
	}
}
