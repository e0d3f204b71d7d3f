package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms-platform/reservation-service/pkg/cloudevents"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

type recordingSink struct {
	mu     sync.Mutex
	fail   bool
	topics []string
	ids    []string
}

func (s *recordingSink) PublishEvent(_ context.Context, topic string, event *cloudevents.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broker unavailable")
	}
	s.topics = append(s.topics, topic)
	s.ids = append(s.ids, event.ID)
	return nil
}

func (s *recordingSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func stageEvents(t *testing.T, repo *MemoryRepository, n int) []string {
	t.Helper()
	factory := cloudevents.NewEventFactory(cloudevents.SourceReservation)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ids := make([]string, 0, n)
	events := make([]*OutboxEvent, 0, n)
	for i := 0; i < n; i++ {
		ce := factory.CreateQuotationEvent(context.Background(), cloudevents.QuotationApproved, "QUO-1", map[string]int{"seq": i})
		ce.Time = base.Add(time.Duration(i) * time.Second)
		e, err := NewOutboxEvent("QUO-1", "Quotation", "wms.reservation.events", ce)
		require.NoError(t, err)
		events = append(events, e)
		ids = append(ids, e.ID)
	}
	require.NoError(t, repo.SaveAll(context.Background(), events))
	return ids
}

func TestPublisher_ProcessBatchDeliversInOrder(t *testing.T) {
	repo := NewMemoryRepository()
	ids := stageEvents(t, repo, 3)
	sink := &recordingSink{}
	p := NewPublisher(repo, sink, logging.NewNop(), nil, nil)

	assert.Equal(t, 3, p.ProcessBatch(context.Background()))
	assert.Equal(t, ids, sink.delivered())

	for _, e := range repo.All() {
		assert.True(t, e.IsPublished())
	}
	assert.Zero(t, p.ProcessBatch(context.Background()))
	assert.Equal(t, map[string]int{"published": 3, "failed": 0}, p.Stats())
}

func TestPublisher_FailedDeliveryIsRetriedUntilLimit(t *testing.T) {
	repo := NewMemoryRepository()
	stageEvents(t, repo, 1)
	sink := &recordingSink{fail: true}
	p := NewPublisher(repo, sink, logging.NewNop(), nil, &PublisherConfig{PollInterval: time.Millisecond, BatchSize: 10})

	for i := 0; i < DefaultMaxRetries; i++ {
		assert.Zero(t, p.ProcessBatch(context.Background()))
	}

	stored := repo.All()
	require.Len(t, stored, 1)
	assert.Equal(t, DefaultMaxRetries, stored[0].RetryCount)
	assert.Contains(t, stored[0].LastError, "broker unavailable")
	assert.False(t, stored[0].ShouldRetry())

	pending, err := repo.FindUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPublisher_StartStop(t *testing.T) {
	repo := NewMemoryRepository()
	ids := stageEvents(t, repo, 2)
	sink := &recordingSink{}
	p := NewPublisher(repo, sink, logging.NewNop(), nil, &PublisherConfig{PollInterval: 5 * time.Millisecond, BatchSize: 10})

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
	assert.True(t, p.IsRunning())

	assert.Eventually(t, func() bool { return len(sink.delivered()) == len(ids) }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop())
	assert.False(t, p.IsRunning())
	assert.Error(t, p.Stop())
}

func TestPublisher_ConcurrentStop(t *testing.T) {
	p := NewPublisher(NewMemoryRepository(), &recordingSink{}, logging.NewNop(), nil, &PublisherConfig{PollInterval: time.Hour, BatchSize: 10})
	require.NoError(t, p.Start(context.Background()))

	var mu sync.Mutex
	stopped := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.Stop() == nil {
				mu.Lock()
				stopped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, stopped)
	assert.False(t, p.IsRunning())
}

func TestNewOutboxEvent_RejectsInvalidEnvelope(t *testing.T) {
	_, err := NewOutboxEvent("QUO-1", "Quotation", "topic", &cloudevents.Event{SpecVersion: "1.0"})
	assert.Error(t, err)
}

func TestOutboxEvent_RoundTripsCloudEvent(t *testing.T) {
	factory := cloudevents.NewEventFactory(cloudevents.SourceReservation)
	ce := factory.CreateQuotationEvent(context.Background(), cloudevents.QuotationConverted, "QUO-9", nil)

	e, err := NewOutboxEvent("QUO-9", "Quotation", "topic", ce)
	require.NoError(t, err)
	assert.Equal(t, ce.ID, e.ID)

	decoded, err := e.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, cloudevents.QuotationConverted, decoded.Type)
	assert.Equal(t, "QUO-9", decoded.QuotationID)
}
