package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/reservation-service/internal/domain"
)

// lockTable hands out one exclusive lock per row key. A lock is a buffered
// channel of size one so that waits can be bounded by a timer.
type lockTable struct {
	mu   sync.Mutex
	rows map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{rows: make(map[string]chan struct{})}
}

func (t *lockTable) slot(key string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.rows[key]
	if !ok {
		ch = make(chan struct{}, 1)
		t.rows[key] = ch
	}
	return ch
}

func (t *lockTable) acquire(ctx context.Context, key string, wait time.Duration) error {
	ch := t.slot(key)

	select {
	case ch <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: lock wait on %s exceeded %s", domain.ErrConcurrentModification, key, wait)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *lockTable) release(key string) {
	<-t.slot(key)
}
