package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errShortage = errors.New("insufficient stock")
	errLocked   = errors.New("lock wait timeout")
)

var testMappings = []Mapping{
	{Target: errShortage, Build: func(err error) *AppError { return ErrInsufficientStock(err.Error()) }},
	{Target: errLocked, Build: func(err error) *AppError { return ErrConcurrentModification(err.Error()) }},
}

func TestMapDomainError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, MapDomainError(nil, testMappings))
	})

	t.Run("wrapped sentinel is matched", func(t *testing.T) {
		appErr := MapDomainError(fmt.Errorf("reserve line 1: %w", errShortage), testMappings)
		require.NotNil(t, appErr)
		assert.Equal(t, CodeInsufficientStock, appErr.Code)
		assert.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
		assert.ErrorIs(t, appErr, errShortage)
	})

	t.Run("concurrent modification is retryable", func(t *testing.T) {
		appErr := MapDomainError(errLocked, testMappings)
		assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
		assert.True(t, appErr.Retryable)
	})

	t.Run("app errors pass through", func(t *testing.T) {
		original := ErrNotFound("quotation")
		assert.Same(t, original, MapDomainError(original, testMappings))
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		appErr := MapDomainError(errors.New("boom"), testMappings)
		assert.Equal(t, CodeInternalError, appErr.Code)
		assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	})
}

func TestAppError_WithDetail(t *testing.T) {
	appErr := ErrValidation("bad quantity").WithDetail("field", "quantity")
	assert.Equal(t, "quantity", appErr.Details["field"])
	assert.Equal(t, "VALIDATION_ERROR: bad quantity", appErr.Error())
}
