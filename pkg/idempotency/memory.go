package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryKeyRepository keeps keys in process. It backs the memory store.
type MemoryKeyRepository struct {
	mu   sync.Mutex
	keys map[string]*IdempotencyKey
	now  func() time.Time
}

// NewMemoryKeyRepository creates an empty repository
func NewMemoryKeyRepository() *MemoryKeyRepository {
	return &MemoryKeyRepository{
		keys: make(map[string]*IdempotencyKey),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// AcquireLock implements KeyRepository
func (r *MemoryKeyRepository) AcquireLock(_ context.Context, key *IdempotencyKey, staleAfter time.Duration) (*IdempotencyKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	existing, ok := r.keys[key.ID]
	switch {
	case !ok, !existing.ExpiresAt.After(now):
		cp := *key
		cp.LockedAt = now
		r.keys[key.ID] = &cp
		out := cp
		return &out, true, nil
	case existing.IsLocked() && now.Sub(existing.LockedAt) >= staleAfter:
		existing.LockToken = key.LockToken
		existing.LockedAt = now
		existing.RequestFingerprint = key.RequestFingerprint
		out := *existing
		return &out, true, nil
	}
	out := *existing
	return &out, false, nil
}

// ReleaseLock implements KeyRepository
func (r *MemoryKeyRepository) ReleaseLock(_ context.Context, keyID, lockToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[keyID]; ok && k.LockToken == lockToken && !k.IsCompleted() {
		delete(r.keys, keyID)
	}
	return nil
}

// StoreResponse implements KeyRepository
func (r *MemoryKeyRepository) StoreResponse(_ context.Context, keyID, lockToken string, code int, body []byte, headers map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[keyID]
	if !ok || k.LockToken != lockToken {
		return ErrNotFound
	}
	now := r.now()
	k.ResponseCode = code
	k.ResponseBody = append([]byte(nil), body...)
	k.ResponseHeaders = headers
	k.CompletedAt = &now
	k.LockedAt = time.Time{}
	return nil
}
