package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/SimelweN/rebooked-backend/api/routes"
	"github.com/SimelweN/rebooked-backend/internal/books"
	"github.com/SimelweN/rebooked-backend/internal/delivery"
	"github.com/SimelweN/rebooked-backend/internal/notifications"
	"github.com/SimelweN/rebooked-backend/internal/orders"
	"github.com/SimelweN/rebooked-backend/internal/payments"
	"github.com/SimelweN/rebooked-backend/internal/payouts"
	"github.com/SimelweN/rebooked-backend/internal/refunds"
	"github.com/SimelweN/rebooked-backend/internal/users"
	paystackhook "github.com/SimelweN/rebooked-backend/internal/webhooks/paystack"
	"github.com/SimelweN/rebooked-backend/pkg/config"
	"github.com/SimelweN/rebooked-backend/pkg/courier"
	"github.com/SimelweN/rebooked-backend/pkg/db"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/metrics"
	"github.com/SimelweN/rebooked-backend/pkg/migrate"
	"github.com/SimelweN/rebooked-backend/pkg/paystack"
	"github.com/SimelweN/rebooked-backend/pkg/redis"
	"github.com/SimelweN/rebooked-backend/pkg/sendgrid"
	"github.com/SimelweN/rebooked-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paystackClient, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack client", err)
		os.Exit(1)
	}

	providers := courierProviders(cfg, logg)
	if len(providers) == 0 {
		logg.Error(context.Background(), "no courier provider configured", nil)
		os.Exit(1)
	}

	var labelStore *gcs.Client
	if cfg.GCS.BucketName != "" {
		labelStore, err = gcs.NewClient(context.Background(), cfg.GCS, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create gcs client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "gcs bucket not configured, shipping labels stay on courier urls")
	}

	var mailer sendgrid.Mailer
	if cfg.Sendgrid.APIKey != "" {
		sendgridClient, err := sendgrid.NewClient(context.Background(), cfg.Sendgrid, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create sendgrid client", err)
			os.Exit(1)
		}
		mailer = sendgridClient
	} else {
		logg.Warn(context.Background(), "sendgrid not configured, notifications are rows only")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	fulfillmentMetrics := metrics.NewFulfillmentMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	booksRepo := books.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	refundsRepo := refunds.NewRepository(dbClient.DB())
	payoutsRepo := payouts.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())

	ordersService, err := orders.NewService(ordersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo, usersRepo, mailer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	deliveryParams := delivery.ServiceParams{
		Orders:          ordersService,
		Books:           booksRepo,
		Users:           usersRepo,
		Providers:       providers,
		Failures:        paymentsRepo,
		Metrics:         fulfillmentMetrics,
		Logger:          logg,
		BookingTimeout:  cfg.Courier.BookingTimeout,
		LabelTimeout:    cfg.Courier.LabelTimeout,
		DefaultWeightKg: cfg.Courier.ParcelWeightKg,
		LabelPrefix:     cfg.GCS.LabelPrefix,
	}
	if labelStore != nil {
		deliveryParams.Labels = labelStore
	}
	deliveryService, err := delivery.NewService(deliveryParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	refundsService, err := refunds.NewService(refunds.ServiceParams{
		Repo:     refundsRepo,
		Orders:   ordersService,
		Gateway:  paystackClient,
		Books:    booksRepo,
		Notifier: notificationsService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	payoutsService, err := payouts.NewService(payouts.ServiceParams{
		Repo:                     payoutsRepo,
		Orders:                   ordersRepo,
		Gateway:                  paystackClient,
		Logger:                   logg,
		BookCommissionRate:       cfg.Commission.BookCommissionRate,
		DeliveryFeeRetentionRate: cfg.Commission.DeliveryFeeRetentionRate,
		MinimumPayoutCents:       cfg.Commission.MinimumPayoutCents,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payouts service", err)
		os.Exit(1)
	}

	webhookService, err := paystackhook.NewService(paystackhook.ServiceParams{
		Payments:    paymentsRepo,
		Orders:      ordersService,
		OrderLookup: ordersRepo,
		Books:       booksRepo,
		Notifier:    notificationsService,
		Dedupe:      redisClient,
		DedupeTTL:   cfg.Paystack.WebhookDedupeTTL,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Registry:        registry,
			Metrics:         fulfillmentMetrics,
			WebhookService:  webhookService,
			WebhookSigner:   paystackClient,
			OrdersService:   ordersService,
			DeliveryService: deliveryService,
			RefundsService:  refundsService,
			PayoutsService:  payoutsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// courierProviders builds the fallback chain in priority order from whatever
// credentials are configured.
func courierProviders(cfg *config.Config, logg *logger.Logger) []courier.Provider {
	var providers []courier.Provider

	if cfg.Courier.CourierGuyAPIKey != "" {
		courierGuy, err := courier.NewCourierGuyClient(cfg.Courier)
		if err != nil {
			logg.Error(context.Background(), "failed to create courier guy client", err)
		} else {
			providers = append(providers, courierGuy)
		}
	}
	if cfg.Courier.FastwayAPIKey != "" {
		fastway, err := courier.NewFastwayClient(cfg.Courier)
		if err != nil {
			logg.Error(context.Background(), "failed to create fastway client", err)
		} else {
			providers = append(providers, fastway)
		}
	}
	return providers
}
