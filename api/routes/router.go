package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SimelweN/rebooked-backend/api/controllers"
	ordercontrollers "github.com/SimelweN/rebooked-backend/api/controllers/orders"
	payoutcontrollers "github.com/SimelweN/rebooked-backend/api/controllers/payouts"
	webhookcontrollers "github.com/SimelweN/rebooked-backend/api/controllers/webhooks"
	"github.com/SimelweN/rebooked-backend/api/middleware"
	"github.com/SimelweN/rebooked-backend/internal/delivery"
	"github.com/SimelweN/rebooked-backend/internal/orders"
	"github.com/SimelweN/rebooked-backend/internal/payouts"
	"github.com/SimelweN/rebooked-backend/internal/refunds"
	"github.com/SimelweN/rebooked-backend/pkg/config"
	"github.com/SimelweN/rebooked-backend/pkg/db"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/metrics"
	"github.com/SimelweN/rebooked-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           redis.Pinger
	Registry        *prometheus.Registry
	Metrics         *metrics.FulfillmentMetrics
	WebhookService  webhookcontrollers.PaystackWebhookService
	WebhookSigner   interface{ SigningSecret() string }
	OrdersService   orders.Service
	DeliveryService delivery.Service
	RefundsService  refunds.Service
	PayoutsService  payouts.Service
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, p.DB, p.Redis))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaystackWebhook(p.WebhookService, p.WebhookSigner, p.Metrics, p.Logger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.ListSeller(p.OrdersService, p.Logger))
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Get(p.OrdersService, p.Logger))
				r.Post("/commit", ordercontrollers.Commit(p.OrdersService, p.Logger))
				r.Post("/schedule-pickup", ordercontrollers.SchedulePickup(p.DeliveryService, p.Logger))
				r.Post("/refund", ordercontrollers.Refund(p.RefundsService, p.Logger))
				r.Post("/mark-shipped", ordercontrollers.MarkShipped(p.OrdersService, p.Logger))
				r.Post("/mark-delivered", ordercontrollers.MarkDelivered(p.OrdersService, p.Logger))
			})
		})

		r.Route("/sellers/{sellerID}", func(r chi.Router) {
			r.Get("/payout-breakdown", payoutcontrollers.Breakdown(p.PayoutsService, p.Logger))
			r.Post("/recipient", payoutcontrollers.RegisterRecipient(p.PayoutsService, p.Logger))
		})
	})

	return r
}
