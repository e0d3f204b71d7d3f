package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/cloudevents"
	"github.com/wms-platform/reservation-service/pkg/kafka"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/outbox"
)

// EventHandler reacts to a committed domain event
type EventHandler func(ctx context.Context, event domain.DomainEvent) error

// EventDispatcher is the in-process domain.EventPublisher. Handlers run
// synchronously after commit; their failures are reported but never undo the
// committed state.
type EventDispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	all      []EventHandler
	logger   *logging.Logger
}

// NewEventDispatcher creates a dispatcher with no subscribers
func NewEventDispatcher(logger *logging.Logger) *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
		logger:   logger.WithComponent("event-dispatcher"),
	}
}

// Subscribe registers h for one event type
func (d *EventDispatcher) Subscribe(eventType string, h EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// SubscribeAll registers h for every event type
func (d *EventDispatcher) SubscribeAll(h EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, h)
}

// Publish delivers one event to its subscribers
func (d *EventDispatcher) Publish(ctx context.Context, event domain.DomainEvent) error {
	d.mu.RLock()
	handlers := make([]EventHandler, 0, len(d.all)+len(d.handlers[event.EventType()]))
	handlers = append(handlers, d.handlers[event.EventType()]...)
	handlers = append(handlers, d.all...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := d.invoke(ctx, h, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAll delivers events in order
func (d *EventDispatcher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	var errs []error
	for _, event := range events {
		if err := d.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *EventDispatcher) invoke(ctx context.Context, h EventHandler, event domain.DomainEvent) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Panic(ctx, recovered)
			err = fmt.Errorf("handler for %s panicked: %v", event.EventType(), recovered)
		}
	}()
	return h(ctx, event)
}

// OutboxStager writes domain events to the outbox inside the transaction that produced them
type OutboxStager struct {
	repo    outbox.Repository
	factory *cloudevents.EventFactory
}

// NewOutboxStager creates a stager. A nil repo disables staging.
func NewOutboxStager(repo outbox.Repository, factory *cloudevents.EventFactory) *OutboxStager {
	return &OutboxStager{repo: repo, factory: factory}
}

// Stage converts events to CloudEvents and saves them through the transaction's ctx
func (s *OutboxStager) Stage(ctx context.Context, events []domain.DomainEvent) error {
	if s == nil || s.repo == nil || len(events) == 0 {
		return nil
	}

	staged := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		var (
			ce    *cloudevents.Event
			topic string
		)
		switch event.AggregateType() {
		case domain.AggregateStockRecord:
			ce = s.factory.CreateEvent(ctx, event.EventType(), "stock/"+event.AggregateID(), event)
			topic = kafka.Topics.StockEvents
		default:
			ce = s.factory.CreateQuotationEvent(ctx, event.EventType(), event.AggregateID(), event)
			topic = kafka.Topics.ReservationEvents
		}
		ce.Time = event.OccurredAt().UTC()

		oe, err := outbox.NewOutboxEvent(event.AggregateID(), event.AggregateType(), topic, ce)
		if err != nil {
			return fmt.Errorf("failed to stage %s: %w", event.EventType(), err)
		}
		staged = append(staged, oe)
	}
	return s.repo.SaveAll(ctx, staged)
}
