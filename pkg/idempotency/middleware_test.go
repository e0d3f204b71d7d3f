package idempotency

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reservation-service/pkg/logging"
)

type testRouter struct {
	router *gin.Engine
	repo   *MemoryKeyRepository
	calls  atomic.Int32
	status int
}

func newTestRouter(t *testing.T, configure func(*Config)) *testRouter {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tr := &testRouter{repo: NewMemoryKeyRepository(), status: http.StatusCreated}
	config := DefaultConfig("reservation-service", tr.repo, logging.NewNop())
	if configure != nil {
		configure(config)
	}

	tr.router = gin.New()
	tr.router.Use(Middleware(config))
	tr.router.POST("/stock", func(c *gin.Context) {
		n := tr.calls.Add(1)
		c.Header("Location", "/stock/P-1")
		c.JSON(tr.status, gin.H{"call": n})
	})
	tr.router.GET("/stock", func(c *gin.Context) {
		tr.calls.Add(1)
		c.JSON(http.StatusOK, gin.H{})
	})
	return tr
}

func (tr *testRouter) send(method, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/stock", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	tr.router.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ReplaysCompletedRequest(t *testing.T) {
	tr := newTestRouter(t, nil)

	first := tr.send(http.MethodPost, "key-1", `{"quantity":"5"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(HeaderReplayed))

	retry := tr.send(http.MethodPost, "key-1", `{"quantity":"5"}`)
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, "true", retry.Header().Get(HeaderReplayed))
	assert.Equal(t, "/stock/P-1", retry.Header().Get("Location"))
	assert.JSONEq(t, `{"call":1}`, retry.Body.String())
	assert.Equal(t, int32(1), tr.calls.Load())
}

func TestMiddleware_DifferentBodyIsRejected(t *testing.T) {
	tr := newTestRouter(t, nil)

	require.Equal(t, http.StatusCreated, tr.send(http.MethodPost, "key-1", `{"quantity":"5"}`).Code)
	w := tr.send(http.MethodPost, "key-1", `{"quantity":"6"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), CodeParameterMismatch)
	assert.Equal(t, int32(1), tr.calls.Load())
}

func TestMiddleware_RequestsWithoutKeyPassThrough(t *testing.T) {
	tr := newTestRouter(t, nil)

	tr.send(http.MethodPost, "", `{}`)
	tr.send(http.MethodPost, "", `{}`)
	tr.send(http.MethodGet, "key-1", "")
	tr.send(http.MethodGet, "key-1", "")

	assert.Equal(t, int32(4), tr.calls.Load())
}

func TestMiddleware_RequireKey(t *testing.T) {
	tr := newTestRouter(t, func(c *Config) { c.RequireKey = true })

	w := tr.send(http.MethodPost, "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), CodeKeyRequired)
	assert.Zero(t, tr.calls.Load())
}

func TestMiddleware_InvalidKey(t *testing.T) {
	tr := newTestRouter(t, nil)

	w := tr.send(http.MethodPost, "not a key!", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), CodeKeyInvalid)
}

func TestMiddleware_ServerErrorReleasesKey(t *testing.T) {
	tr := newTestRouter(t, nil)
	tr.status = http.StatusServiceUnavailable

	w := tr.send(http.MethodPost, "key-1", `{}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	tr.status = http.StatusCreated
	w = tr.send(http.MethodPost, "key-1", `{}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get(HeaderReplayed))
	assert.Equal(t, int32(2), tr.calls.Load())
}

func TestMiddleware_InFlightKeyConflicts(t *testing.T) {
	tr := newTestRouter(t, nil)
	fingerprint := ComputeFingerprint(http.MethodPost, "/stock", []byte(`{}`))
	_, isNew, err := tr.repo.AcquireLock(context.Background(), &IdempotencyKey{
		ID:                 KeyID("reservation-service", "key-1"),
		Key:                "key-1",
		RequestFingerprint: fingerprint,
		LockToken:          "other",
		ExpiresAt:          time.Now().Add(time.Hour),
	}, time.Minute)
	require.NoError(t, err)
	require.True(t, isNew)

	w := tr.send(http.MethodPost, "key-1", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), CodeConcurrentRequest)
	assert.Zero(t, tr.calls.Load())
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("", 10))
	assert.NoError(t, ValidateKey("abc_DEF-123", 20))
	assert.ErrorIs(t, ValidateKey("abcdef", 3), ErrKeyTooLong)
	assert.ErrorIs(t, ValidateKey("a b", 10), ErrKeyInvalid)
}

func TestComputeFingerprint(t *testing.T) {
	base := ComputeFingerprint(http.MethodPost, "/stock", []byte(`{}`))
	assert.Equal(t, base, ComputeFingerprint(http.MethodPost, "/stock", []byte(`{}`)))
	assert.NotEqual(t, base, ComputeFingerprint(http.MethodPost, "/stock/adjust", []byte(`{}`)))
	assert.NotEqual(t, base, ComputeFingerprint(http.MethodPost, "/stock", []byte(`{"a":1}`)))
}
