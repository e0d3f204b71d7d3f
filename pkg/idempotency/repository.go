package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for an unknown key id
var ErrNotFound = errors.New("idempotency key not found")

// KeyRepository stores idempotency keys. AcquireLock must be atomic: of two
// concurrent calls for the same key exactly one reports isNew.
type KeyRepository interface {
	// AcquireLock inserts key locked, or returns the stored key. A stored key
	// whose lock is older than staleAfter is taken over and reported as new.
	AcquireLock(ctx context.Context, key *IdempotencyKey, staleAfter time.Duration) (stored *IdempotencyKey, isNew bool, err error)

	// ReleaseLock drops an uncompleted key so the request can be retried
	ReleaseLock(ctx context.Context, keyID, lockToken string) error

	// StoreResponse completes the key with the response to replay
	StoreResponse(ctx context.Context, keyID, lockToken string, code int, body []byte, headers map[string]string) error
}
