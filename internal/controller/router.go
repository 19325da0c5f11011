package controller

import (
	"time"

	"github.com/commercekit/paygate/internal/application/checkout"
	"github.com/commercekit/paygate/internal/infrastructure/config"
	"github.com/commercekit/paygate/internal/infrastructure/observability"
	customMW "github.com/commercekit/paygate/internal/middleware"
	"github.com/commercekit/paygate/internal/repository/postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	Initialize      *checkout.InitializePaymentUseCase
	Authorize       *checkout.AuthorizePaymentUseCase
	Charge          *checkout.ChargePaymentUseCase
	Capture         *checkout.CapturePaymentUseCase
	Refund          *checkout.RefundPaymentUseCase
	List            *checkout.ListTransactionsUseCase
	IdempotencyRepo *postgres.IdempotencyRepository
	Metrics         *observability.Metrics
	ServerConfig    config.ServerConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	paymentH := NewPaymentController(
		deps.Initialize,
		deps.Authorize,
		deps.Charge,
		deps.Capture,
		deps.Refund,
		deps.List,
	)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.ServerConfig.RateLimitPerMin))

		// Idempotency middleware for mutating endpoints.
		idempotencyMW := customMW.Idempotency(deps.IdempotencyRepo)

		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/transactions", paymentH.ListTransactions)

			r.Route("/payment", func(r chi.Router) {
				r.Use(idempotencyMW)
				r.Post("/initialize", paymentH.InitializePayment)
				r.Post("/authorize", paymentH.AuthorizePayment)
				r.Post("/charge", paymentH.ChargePayment)
				r.Post("/capture", paymentH.CapturePayment)
				r.Post("/refund", paymentH.RefundPayment)
			})
		})
	})

	return r
}
