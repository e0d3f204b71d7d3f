package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

// EventFactory creates CloudEvents for a single source
type EventFactory struct {
	source string
	now    func() time.Time
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source, now: time.Now}
}

// CreateEvent wraps data in an envelope. The correlation id is taken from ctx when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *Event {
	return &Event{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            f.now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
	}
}

// CreateQuotationEvent creates an event about a quotation, keyed by the quotation id
func (f *EventFactory) CreateQuotationEvent(ctx context.Context, eventType, quotationID string, data interface{}) *Event {
	event := f.CreateEvent(ctx, eventType, "quotation/"+quotationID, data)
	event.QuotationID = quotationID
	return event
}
