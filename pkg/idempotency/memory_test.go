package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeyRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := NewMemoryKeyRepository()
	repo.now = func() time.Time { return now }

	key := func(token string) *IdempotencyKey {
		return &IdempotencyKey{ID: "svc:k", Key: "k", LockToken: token, ExpiresAt: now.Add(time.Hour)}
	}

	stored, isNew, err := repo.AcquireLock(ctx, key("t1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, stored.IsLocked())

	stored, isNew, err = repo.AcquireLock(ctx, key("t2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "t1", stored.LockToken)

	assert.ErrorIs(t, repo.StoreResponse(ctx, "svc:k", "t2", 201, nil, nil), ErrNotFound)
	require.NoError(t, repo.StoreResponse(ctx, "svc:k", "t1", 201, []byte(`{}`), nil))

	stored, isNew, err = repo.AcquireLock(ctx, key("t3"), time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.True(t, stored.IsCompleted())
	assert.Equal(t, 201, stored.ResponseCode)

	// Completed keys survive a release attempt.
	require.NoError(t, repo.ReleaseLock(ctx, "svc:k", "t1"))
	_, isNew, _ = repo.AcquireLock(ctx, key("t4"), time.Minute)
	assert.False(t, isNew)

	now = now.Add(2 * time.Hour)
	_, isNew, err = repo.AcquireLock(ctx, key("t5"), time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestMemoryKeyRepository_StaleLockIsTakenOver(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := NewMemoryKeyRepository()
	repo.now = func() time.Time { return now }

	_, _, err := repo.AcquireLock(ctx, &IdempotencyKey{ID: "svc:k", LockToken: "t1", ExpiresAt: now.Add(time.Hour)}, time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	stored, isNew, err := repo.AcquireLock(ctx, &IdempotencyKey{ID: "svc:k", LockToken: "t2", ExpiresAt: now.Add(time.Hour)}, time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "t2", stored.LockToken)

	require.NoError(t, repo.ReleaseLock(ctx, "svc:k", "t2"))
	_, isNew, _ = repo.AcquireLock(ctx, &IdempotencyKey{ID: "svc:k", LockToken: "t3", ExpiresAt: now.Add(time.Hour)}, time.Minute)
	assert.True(t, isNew)
}
