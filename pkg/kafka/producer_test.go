package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms-platform/reservation-service/pkg/cloudevents"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

func headerMap(t *testing.T, event *cloudevents.Event, extra map[string]string) (map[string]string, []byte, []byte) {
	t.Helper()
	msg, err := buildMessage(event, extra)
	require.NoError(t, err)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return headers, msg.Key, msg.Value
}

func TestBuildMessage(t *testing.T) {
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	event := cloudevents.NewEventFactory(cloudevents.SourceReservation).
		CreateQuotationEvent(ctx, cloudevents.QuotationConverted, "QUO-7", map[string]string{"saleId": "SALE-1"})
	event.Time = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

	headers, key, value := headerMap(t, event, map[string]string{"traceparent": "00-abc-def-01"})

	assert.Equal(t, "quotation/QUO-7", string(key))
	assert.Equal(t, "1.0", headers["ce-specversion"])
	assert.Equal(t, cloudevents.QuotationConverted, headers["ce-type"])
	assert.Equal(t, cloudevents.SourceReservation, headers["ce-source"])
	assert.Equal(t, event.ID, headers["ce-id"])
	assert.Equal(t, "2026-05-04T10:30:00Z", headers["ce-time"])
	assert.Equal(t, "application/json", headers["content-type"])
	assert.Equal(t, "corr-1", headers["ce-"+cloudevents.ExtCorrelationID])
	assert.Equal(t, "QUO-7", headers["ce-"+cloudevents.ExtQuotationID])
	assert.Equal(t, "00-abc-def-01", headers["ce-traceparent"])

	var decoded cloudevents.Event
	require.NoError(t, json.Unmarshal(value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
}

func TestBuildMessage_OmitsEmptyExtensions(t *testing.T) {
	event := cloudevents.NewEventFactory(cloudevents.SourceReservation).
		CreateEvent(context.Background(), cloudevents.StockReceived, "stock/SR-1", nil)

	headers, _, _ := headerMap(t, event, nil)

	assert.NotContains(t, headers, "ce-"+cloudevents.ExtCorrelationID)
	assert.NotContains(t, headers, "ce-"+cloudevents.ExtQuotationID)
	assert.NotContains(t, headers, "ce-"+cloudevents.ExtWorkflowID)
}
