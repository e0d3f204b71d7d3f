package outbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps outbox events in process. It backs the in-memory
// store and the relay tests.
type MemoryRepository struct {
	mu     sync.Mutex
	events map[string]*OutboxEvent
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[string]*OutboxEvent)}
}

// SaveAll stores copies of the events
func (r *MemoryRepository) SaveAll(_ context.Context, events []*OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		if _, exists := r.events[e.ID]; exists {
			return fmt.Errorf("outbox event %s already exists", e.ID)
		}
		cp := *e
		r.events[e.ID] = &cp
	}
	return nil
}

// FindUnpublished returns retryable events oldest first
func (r *MemoryRepository) FindUnpublished(_ context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*OutboxEvent
	for _, e := range r.events {
		if e.ShouldRetry() {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkPublished marks an event as published
func (r *MemoryRepository) MarkPublished(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event not found: %s", eventID)
	}
	now := time.Now().UTC()
	e.PublishedAt = &now
	return nil
}

// IncrementRetry records a failed delivery attempt
func (r *MemoryRepository) IncrementRetry(_ context.Context, eventID string, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event not found: %s", eventID)
	}
	e.RetryCount++
	e.LastError = errorMsg
	return nil
}

// All returns copies of every stored event
func (r *MemoryRepository) All() []*OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*OutboxEvent, 0, len(r.events))
	for _, e := range r.events {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
