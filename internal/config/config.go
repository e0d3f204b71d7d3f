package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/reservation-service/pkg/kafka"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/mongodb"
	"github.com/wms-platform/reservation-service/pkg/temporal"
	"github.com/wms-platform/reservation-service/pkg/tracing"
)

const ServiceName = "reservation-service"

const (
	StoreMemory  = "memory"
	StoreMongoDB = "mongodb"
)

// Config holds application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       string            `yaml:"store" validate:"oneof=memory mongodb"`
	MongoDB     *mongodb.Config   `yaml:"mongodb" validate:"required_if=Store mongodb"`
	Transaction TransactionConfig `yaml:"transaction"`
	Kafka       *kafka.Config     `yaml:"kafka"`
	Outbox      OutboxConfig      `yaml:"outbox"`
	Temporal    *temporal.Config  `yaml:"temporal"`
	Sweeper     SweeperConfig     `yaml:"sweeper"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Reservation ReservationConfig `yaml:"reservation"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tracing     *tracing.Config   `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// TransactionConfig bounds row lock waits in both stores
type TransactionConfig struct {
	LockWaitTimeout time.Duration `yaml:"lockWaitTimeout" validate:"gt=0"`
}

// OutboxConfig controls the Kafka relay of committed events
type OutboxConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"pollInterval" validate:"gt=0"`
	BatchSize    int           `yaml:"batchSize" validate:"gt=0"`
}

// SweeperConfig controls expiration sweeps. The in-process ticker and the
// Temporal cron workflow are independent; running both is safe.
type SweeperConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval" validate:"gt=0"`
	BatchSize  int           `yaml:"batchSize" validate:"gt=0"`
	Cron       string        `yaml:"cron" validate:"required"`
	WorkflowID string        `yaml:"workflowId" validate:"required"`
}

// IdempotencyConfig controls Idempotency-Key handling on POST routes
type IdempotencyConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RequireKey      bool          `yaml:"requireKey"`
	LockTimeout     time.Duration `yaml:"lockTimeout" validate:"gt=0"`
	RetentionPeriod time.Duration `yaml:"retentionPeriod" validate:"gt=0"`
}

// ReservationConfig holds business defaults
type ReservationConfig struct {
	DefaultQuotationTTL time.Duration `yaml:"defaultQuotationTtl" validate:"gt=0"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level       string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Environment string `yaml:"environment"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store:       StoreMongoDB,
		MongoDB:     mongodb.DefaultConfig(),
		Transaction: TransactionConfig{LockWaitTimeout: 5 * time.Second},
		Kafka:       kafka.DefaultConfig(),
		Outbox: OutboxConfig{
			Enabled:      true,
			PollInterval: time.Second,
			BatchSize:    100,
		},
		Temporal: temporal.DefaultConfig(),
		Sweeper: SweeperConfig{
			Enabled:    true,
			Interval:   time.Minute,
			BatchSize:  200,
			Cron:       "*/1 * * * *",
			WorkflowID: "reservation-expiration-sweep",
		},
		Idempotency: IdempotencyConfig{
			Enabled:         true,
			LockTimeout:     time.Minute,
			RetentionPeriod: 24 * time.Hour,
		},
		Reservation: ReservationConfig{DefaultQuotationTTL: 7 * 24 * time.Hour},
		Logging:     LoggingConfig{Level: "info", Environment: "development"},
		Tracing:     tracing.DefaultConfig(ServiceName),
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE when set, and environment overrides, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Store = strings.ToLower(getEnv("STORE", c.Store))

	c.MongoDB.URI = getEnv("MONGODB_URI", c.MongoDB.URI)
	c.MongoDB.Database = getEnv("MONGODB_DATABASE", c.MongoDB.Database)
	c.MongoDB.Username = getEnv("MONGODB_USERNAME", c.MongoDB.Username)
	c.MongoDB.Password = getEnv("MONGODB_PASSWORD", c.MongoDB.Password)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Temporal.HostPort = getEnv("TEMPORAL_HOST", c.Temporal.HostPort)
	c.Temporal.Namespace = getEnv("TEMPORAL_NAMESPACE", c.Temporal.Namespace)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Environment = getEnv("ENVIRONMENT", c.Logging.Environment)
	c.Tracing.Environment = c.Logging.Environment
	c.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
	c.Sweeper.Cron = getEnv("SWEEPER_CRON", c.Sweeper.Cron)

	var err error
	if c.Transaction.LockWaitTimeout, err = getEnvDuration("LOCK_WAIT_TIMEOUT", c.Transaction.LockWaitTimeout); err != nil {
		return err
	}
	if c.Sweeper.Interval, err = getEnvDuration("SWEEPER_INTERVAL", c.Sweeper.Interval); err != nil {
		return err
	}
	if c.Reservation.DefaultQuotationTTL, err = getEnvDuration("QUOTATION_TTL", c.Reservation.DefaultQuotationTTL); err != nil {
		return err
	}
	if c.Sweeper.Enabled, err = getEnvBool("SWEEPER_ENABLED", c.Sweeper.Enabled); err != nil {
		return err
	}
	if c.Outbox.Enabled, err = getEnvBool("OUTBOX_ENABLED", c.Outbox.Enabled); err != nil {
		return err
	}
	if c.Idempotency.Enabled, err = getEnvBool("IDEMPOTENCY_ENABLED", c.Idempotency.Enabled); err != nil {
		return err
	}
	if c.Idempotency.RetentionPeriod, err = getEnvDuration("IDEMPOTENCY_RETENTION", c.Idempotency.RetentionPeriod); err != nil {
		return err
	}
	if c.Tracing.Enabled, err = getEnvBool("TRACING_ENABLED", c.Tracing.Enabled); err != nil {
		return err
	}
	return nil
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Store == StoreMemory && c.Outbox.Enabled {
		return fmt.Errorf("invalid configuration: outbox requires the %s store", StoreMongoDB)
	}
	return nil
}

// LoggerConfig returns the logger configuration for this service
func (c *Config) LoggerConfig() *logging.Config {
	cfg := logging.DefaultConfig(ServiceName)
	cfg.Level = logging.ParseLevel(c.Logging.Level)
	cfg.Environment = c.Logging.Environment
	return cfg
}

// TxOptions converts the lock wait setting for the MongoDB transaction manager
func (c *Config) TxOptions() mongodb.TxOptions {
	opts := mongodb.DefaultTxOptions()
	opts.LockWaitTimeout = c.Transaction.LockWaitTimeout
	return opts
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
