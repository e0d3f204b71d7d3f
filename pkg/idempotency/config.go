package idempotency

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/reservation-service/pkg/errors"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/metrics"
)

const (
	// DefaultMaxKeyLength is the longest accepted key
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is how long a running request keeps its key
	DefaultLockTimeout = time.Minute

	// DefaultRetentionPeriod is how long responses are replayed
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize is the largest response that is cached
	DefaultMaxResponseSize = 1 << 20
)

// Config holds configuration for the idempotency middleware
type Config struct {
	ServiceName     string
	Repository      KeyRepository
	Logger          *logging.Logger
	Metrics         *metrics.Metrics
	RequireKey      bool
	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration
	MaxResponseSize int

	// Respond renders rejections. Defaults to a plain JSON body.
	Respond func(c *gin.Context, appErr *errors.AppError)
}

// DefaultConfig returns a configuration with optional keys
func DefaultConfig(serviceName string, repository KeyRepository, logger *logging.Logger) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repository,
		Logger:          logger,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
	}
}
