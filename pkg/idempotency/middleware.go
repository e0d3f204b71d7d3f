package idempotency

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/reservation-service/pkg/errors"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

const (
	// HeaderIdempotencyKey is the request header carrying the key
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderReplayed marks a response served from the key store
	HeaderReplayed = "Idempotent-Replayed"
)

// Error codes returned by the middleware
const (
	CodeKeyRequired       = "IDEMPOTENCY_KEY_REQUIRED"
	CodeKeyInvalid        = "IDEMPOTENCY_KEY_INVALID"
	CodeParameterMismatch = "IDEMPOTENCY_PARAMETER_MISMATCH"
	CodeConcurrentRequest = "IDEMPOTENCY_CONCURRENT_REQUEST"
	CodeStorageFailure    = "IDEMPOTENCY_STORAGE_UNAVAILABLE"
)

// replayedHeaders are stored with a response and sent again on replay
var replayedHeaders = []string{"Content-Type", "Location"}

type responseWriter struct {
	gin.ResponseWriter
	body       *bytes.Buffer
	statusCode int
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware replays the stored response of a POST that already ran with the
// same Idempotency-Key. Requests without a key pass through unless RequireKey
// is set. Server errors release the key so the client can retry.
func Middleware(config *Config) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}
	respond := config.Respond
	if respond == nil {
		respond = func(c *gin.Context, appErr *errors.AppError) {
			c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{"code": appErr.Code, "message": appErr.Message})
		}
	}
	reject := func(c *gin.Context, path, outcome string, appErr *errors.AppError) {
		config.Metrics.RecordIdempotency(path, outcome)
		respond(c, appErr)
		c.Abort()
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		path := c.FullPath()
		key := NormalizeKey(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if config.RequireKey {
				reject(c, path, "missing", errors.NewAppError(CodeKeyRequired, "Idempotency-Key header is required", http.StatusBadRequest))
				return
			}
			c.Next()
			return
		}
		if err := ValidateKey(key, config.MaxKeyLength); err != nil {
			reject(c, path, "invalid", errors.NewAppError(CodeKeyInvalid, err.Error(), http.StatusBadRequest))
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		ctx := c.Request.Context()
		logger := config.Logger.WithContext(ctx)
		now := time.Now().UTC()
		candidate := &IdempotencyKey{
			ID:                 KeyID(config.ServiceName, key),
			Key:                key,
			ServiceID:          config.ServiceName,
			RequestPath:        c.Request.URL.Path,
			RequestMethod:      c.Request.Method,
			RequestFingerprint: ComputeFingerprint(c.Request.Method, c.Request.URL.Path, body),
			LockToken:          uuid.NewString(),
			CreatedAt:          now,
			ExpiresAt:          now.Add(config.RetentionPeriod),
		}

		stored, isNew, err := config.Repository.AcquireLock(ctx, candidate, config.LockTimeout)
		if err != nil {
			logger.WithError(err).Error("Failed to acquire idempotency key", "key", key)
			reject(c, path, "storage_error",
				errors.NewAppError(CodeStorageFailure, "Idempotency storage is temporarily unavailable", http.StatusServiceUnavailable).AsRetryable())
			return
		}

		if !isNew {
			switch {
			case stored.RequestFingerprint != candidate.RequestFingerprint:
				logger.Warn("Idempotency key reused with different request", "key", key, "path", c.Request.URL.Path)
				reject(c, path, "mismatch", errors.NewAppError(CodeParameterMismatch,
					"Request differs from the original request with this Idempotency-Key", http.StatusUnprocessableEntity))
			case stored.IsCompleted():
				config.Metrics.RecordIdempotency(path, "replayed")
				for k, v := range stored.ResponseHeaders {
					c.Header(k, v)
				}
				c.Header(HeaderReplayed, "true")
				c.Data(stored.ResponseCode, stored.ResponseHeaders["Content-Type"], stored.ResponseBody)
				c.Abort()
			default:
				reject(c, path, "concurrent", errors.NewAppError(CodeConcurrentRequest,
					"A request with this Idempotency-Key is still being processed", http.StatusConflict).AsRetryable())
			}
			return
		}

		config.Metrics.RecordIdempotency(path, "executed")
		writer := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}, statusCode: http.StatusOK}
		c.Writer = writer
		c.Next()

		// The client may be gone, the key must still be settled.
		settle := context.WithoutCancel(ctx)
		if writer.statusCode >= http.StatusInternalServerError || writer.body.Len() > config.MaxResponseSize {
			if err := config.Repository.ReleaseLock(settle, stored.ID, candidate.LockToken); err != nil {
				logger.WithError(err).Error("Failed to release idempotency key", "key", key)
			}
			return
		}

		headers := make(map[string]string, len(replayedHeaders))
		for _, h := range replayedHeaders {
			if v := writer.Header().Get(h); v != "" {
				headers[h] = v
			}
		}
		if err := config.Repository.StoreResponse(settle, stored.ID, candidate.LockToken, writer.statusCode, writer.body.Bytes(), headers); err != nil {
			logger.WithError(err).Error("Failed to store idempotency response", "key", key)
		}
	}
}
