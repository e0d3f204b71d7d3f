package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/metrics"
	"github.com/wms-platform/reservation-service/pkg/tracing"
)

const tracerName = "github.com/wms-platform/reservation-service/internal/application"

// transactor runs one use case inside a unit of work. Staged events go to the
// outbox before commit and to the publisher after it.
type transactor struct {
	tx        domain.TransactionManager
	outbox    *OutboxStager
	publisher domain.EventPublisher
	logger    *logging.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func newTransactor(tx domain.TransactionManager, stager *OutboxStager, publisher domain.EventPublisher, logger *logging.Logger, m *metrics.Metrics) *transactor {
	return &transactor{
		tx:        tx,
		outbox:    stager,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer(tracerName),
	}
}

func (t *transactor) run(ctx context.Context, operation string, fn func(ctx context.Context, uow domain.UnitOfWork) error, attrs ...attribute.KeyValue) error {
	var committed []domain.DomainEvent

	err := tracing.TracedVoidOperation(ctx, t.tracer, "reservation."+operation, func(ctx context.Context) error {
		return t.tx.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
			if err := fn(ctx, uow); err != nil {
				return err
			}
			committed = uow.Staged()
			return t.outbox.Stage(ctx, committed)
		})
	}, attrs...)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			t.metrics.RecordConcurrentModification(operation)
			t.logger.WithContext(ctx).Warn("Transaction lost a lock race", "operation", operation, "error", err)
		}
		return err
	}

	t.publish(ctx, committed)
	return nil
}

func (t *transactor) view(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return t.tx.View(ctx, fn)
}

func (t *transactor) publish(ctx context.Context, events []domain.DomainEvent) {
	if len(events) == 0 {
		return
	}
	for _, event := range events {
		t.logger.Event(ctx, event.EventType(), map[string]any{
			"aggregateId":   event.AggregateID(),
			"aggregateType": event.AggregateType(),
		})
	}
	if t.publisher == nil {
		return
	}
	if err := t.publisher.PublishAll(ctx, events); err != nil {
		t.logger.WithContext(ctx).Warn("Event subscribers failed after commit", "count", len(events), "error", err)
	}
}

// Clock returns the current instant
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
