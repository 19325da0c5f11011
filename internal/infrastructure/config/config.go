package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/commercekit/paygate/internal/gateway"
	"github.com/commercekit/paygate/internal/gateway/braintree"
	"github.com/commercekit/paygate/internal/gateway/paypalexpress"
	"github.com/commercekit/paygate/internal/gateway/paypalrest"
	"github.com/commercekit/paygate/internal/gateway/stripe"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

type PaymentConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// LockTTL bounds how long one lifecycle step may hold its order lock.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// ProvidersConfig carries each provider's credentials in its own typed
// section. Enabled lists the providers to register; only those sections are
// validated, so a deployment can carry credentials for the providers it
// actually uses.
type ProvidersConfig struct {
	Enabled       []string             `mapstructure:"enabled"`
	Braintree     braintree.Config     `mapstructure:"braintree"`
	PayPalExpress paypalexpress.Config `mapstructure:"paypalexpress"`
	PayPalRest    paypalrest.Config    `mapstructure:"paypalrest"`
	Stripe        stripe.Config        `mapstructure:"stripe"`
}

type WorkerConfig struct {
	BatchSize          int64         `mapstructure:"batch_size"`
	BlockDuration      time.Duration `mapstructure:"block_duration"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	IdempotencyTTL     time.Duration `mapstructure:"idempotency_ttl"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables, e.g. PAYGATE_PROVIDERS_STRIPE_SECRET_KEY.
	v.SetEnvPrefix("PAYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paygate")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Payment.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("payment.lock_ttl must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}

	for _, name := range c.Providers.Enabled {
		if _, err := gateway.ParseProviderKind(name); err != nil {
			errs = append(errs, fmt.Errorf("providers.enabled: %w", err))
		}
	}
	if err := c.Providers.normalizeEnvironments(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// normalizeEnvironments parses each enabled provider's environment token and
// rewrites it to canonical form. Adapters compare against the canonical
// constants, so an unparsed "production" from an env var must never reach
// them: it would silently select the sandbox endpoints.
func (c *ProvidersConfig) normalizeEnvironments() error {
	var errs []error
	for _, name := range c.Enabled {
		kind, err := gateway.ParseProviderKind(name)
		if err != nil {
			continue // already reported against providers.enabled
		}
		var envp *gateway.Environment
		switch kind {
		case gateway.KindBraintree:
			envp = &c.Braintree.Environment
		case gateway.KindPayPalExpress:
			envp = &c.PayPalExpress.Environment
		case gateway.KindPayPalRest:
			envp = &c.PayPalRest.Environment
		case gateway.KindStripe:
			envp = &c.Stripe.Environment
		}
		env, err := gateway.ParseEnvironment(string(*envp))
		if err != nil {
			errs = append(errs, fmt.Errorf("providers.%s.environment: %w", kind, err))
			continue
		}
		*envp = env
	}
	return errors.Join(errs...)
}

// EnabledKinds returns the provider kinds this deployment registers.
func (c *ProvidersConfig) EnabledKinds() ([]gateway.ProviderKind, error) {
	kinds := make([]gateway.ProviderKind, 0, len(c.Enabled))
	for _, name := range c.Enabled {
		k, err := gateway.ParseProviderKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.rate_limit_per_min", 600)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paygate")
	v.SetDefault("database.database", "paygate")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Worker defaults
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.block_duration", "1s")
	v.SetDefault("worker.outbox_poll_interval", "2s")
	v.SetDefault("worker.consumer_group", "payment-events")
	v.SetDefault("worker.idempotency_ttl", "24h")

	// Payment defaults
	v.SetDefault("payment.max_retries", 3)
	v.SetDefault("payment.retry_delay", "1s")
	v.SetDefault("payment.lock_ttl", "30s")

	// Provider defaults: sandbox everywhere, production is always an
	// explicit choice.
	v.SetDefault("providers.enabled", []string{})
	v.SetDefault("providers.braintree.environment", string(gateway.EnvSandbox))
	v.SetDefault("providers.paypalexpress.environment", string(gateway.EnvSandbox))
	v.SetDefault("providers.paypalrest.environment", string(gateway.EnvSandbox))
	v.SetDefault("providers.stripe.environment", string(gateway.EnvSandbox))

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "paygate-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
