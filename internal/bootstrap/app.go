package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/commercekit/paygate/internal/gateway"
	"github.com/commercekit/paygate/internal/gateway/braintree"
	"github.com/commercekit/paygate/internal/gateway/paypalexpress"
	"github.com/commercekit/paygate/internal/gateway/paypalrest"
	"github.com/commercekit/paygate/internal/gateway/stripe"
	"github.com/commercekit/paygate/internal/infrastructure/config"
	"github.com/commercekit/paygate/internal/infrastructure/observability"
	infraRedis "github.com/commercekit/paygate/internal/infrastructure/redis"
	"github.com/commercekit/paygate/internal/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info().Str("service", serviceName).Msg("Starting")

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracer(serviceName, cfg.InstanceID, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			go func() {
				<-ctx.Done()
				shutdown(context.Background())
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	metrics := observability.NewMetrics(metricsNamespace, nil)
	logger.Info().Msg("Metrics initialized")

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
	}, nil
}

func (a *App) Close() {
	a.Redis.Close()
	a.Pool.Close()
}

// BuildRegistry constructs the gateway registry from the enabled provider
// sections, validating each provider's credentials before the service starts
// taking traffic. A misconfigured provider fails startup rather than the
// first customer payment.
func BuildRegistry(cfg *config.ProvidersConfig, metrics *observability.Metrics) (*gateway.Registry, error) {
	kinds, err := cfg.EnabledKinds()
	if err != nil {
		return nil, err
	}

	registry := gateway.NewRegistry()
	for _, kind := range kinds {
		var g gateway.Gateway
		switch kind {
		case gateway.KindBraintree:
			g = braintree.New(cfg.Braintree)
		case gateway.KindPayPalExpress:
			g = paypalexpress.New(cfg.PayPalExpress)
		case gateway.KindPayPalRest:
			g = paypalrest.New(cfg.PayPalRest)
		case gateway.KindStripe:
			g = stripe.New(cfg.Stripe)
		}
		if err := g.ValidateConfig(); err != nil {
			return nil, fmt.Errorf("provider %s: %w", kind, err)
		}
		registry.Register(observability.InstrumentGateway(g, metrics))
	}
	return registry, nil
}

// WatchBreakers samples every provider's circuit breaker state into the
// breaker gauge until ctx is cancelled.
func WatchBreakers(ctx context.Context, registry *gateway.Registry, metrics *observability.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, kind := range registry.Kinds() {
			_, breaker, err := registry.Get(kind)
			if err != nil {
				continue
			}
			metrics.CircuitBreakerState.WithLabelValues(string(kind)).Set(float64(breaker.State()))
		}
	}
}
