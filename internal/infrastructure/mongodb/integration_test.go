package mongodb_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/wms-platform/reservation-service/internal/application"
	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/reservation-service/pkg/cloudevents"
	"github.com/wms-platform/reservation-service/pkg/idempotency"
	"github.com/wms-platform/reservation-service/pkg/logging"
	pkgmongo "github.com/wms-platform/reservation-service/pkg/mongodb"
	"github.com/wms-platform/reservation-service/pkg/outbox"
	outboxmongo "github.com/wms-platform/reservation-service/pkg/outbox/mongodb"
	pkgtesting "github.com/wms-platform/reservation-service/pkg/testing"
)

type MongoStoreSuite struct {
	suite.Suite
	ctx       context.Context
	container *pkgtesting.MongoDBContainer
	client    *pkgmongo.InstrumentedClient

	tx       *mongodb.TransactionManager
	outbox   *outboxmongo.OutboxRepository
	services *application.Services
	now      time.Time
}

func TestMongoStoreSuite(t *testing.T) {
	pkgtesting.SkipIfShort(t)
	suite.Run(t, new(MongoStoreSuite))
}

func (s *MongoStoreSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := pkgtesting.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	client, err := container.NewClient(s.ctx, "reservations_test")
	s.Require().NoError(err)
	s.client = pkgmongo.NewInstrumentedClient(client, nil, logging.NewNop())
}

func (s *MongoStoreSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close(s.ctx)
	}
	if s.container != nil {
		_ = s.container.Close(s.ctx)
	}
}

func (s *MongoStoreSuite) SetupTest() {
	s.Require().NoError(s.client.Database().Drop(s.ctx))

	s.tx = mongodb.NewTransactionManager(s.client, logging.NewNop(), pkgmongo.TxOptions{
		LockWaitTimeout: 10 * time.Second,
		InitialBackoff:  5 * time.Millisecond,
		MaxBackoff:      100 * time.Millisecond,
	})
	s.Require().NoError(s.tx.EnsureIndexes(s.ctx))

	s.outbox = outboxmongo.NewOutboxRepository(s.client.Collection(mongodb.OutboxCollection))
	s.Require().NoError(s.outbox.EnsureIndexes(s.ctx))

	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.services = application.NewServices(s.tx, logging.NewNop(), nil, application.Options{
		DefaultQuotationTTL: 72 * time.Hour,
		Outbox:              application.NewOutboxStager(s.outbox, cloudevents.NewEventFactory(cloudevents.SourceReservation)),
		Clock:               func() time.Time { return s.now },
	})
}

func qty(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (s *MongoStoreSuite) receive(productID, warehouseID, quantity string) {
	_, err := s.services.Stock.ReceiveStock(s.ctx, application.ReceiveStockCommand{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty(quantity),
		Reference:   "PO-1",
	})
	s.Require().NoError(err)
}

func (s *MongoStoreSuite) requireStock(productID, warehouseID, onHand, reserved, available string) {
	dto, err := s.services.Stock.GetStock(s.ctx, application.GetStockQuery{ProductID: productID, WarehouseID: warehouseID})
	s.Require().NoError(err)
	s.True(qty(onHand).Equal(qty(dto.OnHand)), "onHand %s, want %s", dto.OnHand, onHand)
	s.True(qty(reserved).Equal(qty(dto.Reserved)), "reserved %s, want %s", dto.Reserved, reserved)
	s.True(qty(available).Equal(qty(dto.Available)), "available %s, want %s", dto.Available, available)
}

func (s *MongoStoreSuite) create(id string, quantities ...string) (*application.QuotationDTO, error) {
	lines := make([]application.QuotationLineCommand, 0, len(quantities))
	for _, q := range quantities {
		lines = append(lines, application.QuotationLineCommand{ProductID: "P-1", WarehouseID: "W-1", Quantity: qty(q)})
	}
	return s.services.Lifecycle.Create(s.ctx, application.CreateQuotationCommand{
		QuotationID: id,
		CustomerID:  "CUST-1",
		Lines:       lines,
	})
}

func (s *MongoStoreSuite) TestConcurrentReservationsNeverOversell() {
	s.receive("P-1", "W-1", "100")

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, id := range []string{"QUO-A", "QUO-B", "QUO-C"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = s.create(id, "30")
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		s.Require().NoError(err)
	}
	s.requireStock("P-1", "W-1", "100", "90", "10")

	_, err := s.create("QUO-D", "20")
	s.ErrorIs(err, domain.ErrInsufficientStock)
	s.requireStock("P-1", "W-1", "100", "90", "10")

	_, err = s.services.Lifecycle.Get(s.ctx, application.GetQuotationQuery{QuotationID: "QUO-D"})
	s.ErrorIs(err, domain.ErrQuotationNotFound)
}

func (s *MongoStoreSuite) TestApproveAndConvertConsumesStock() {
	s.receive("P-1", "W-1", "100")
	_, err := s.create("QUO-1", "20", "10")
	s.Require().NoError(err)

	_, err = s.services.Lifecycle.Approve(s.ctx, application.ApproveQuotationCommand{QuotationID: "QUO-1"})
	s.Require().NoError(err)

	result, err := s.services.Conversion.Convert(s.ctx, application.ConvertQuotationCommand{QuotationID: "QUO-1"})
	s.Require().NoError(err)
	s.Equal(string(domain.QuotationConverted), result.Quotation.State)
	s.Len(result.Sale.Lines, 2)
	s.requireStock("P-1", "W-1", "70", "0", "70")

	sale, err := s.services.Conversion.GetSale(s.ctx, application.GetSaleQuery{SaleID: result.Sale.ID})
	s.Require().NoError(err)
	s.Equal("QUO-1", sale.QuotationID)
}

func (s *MongoStoreSuite) TestRejectReleasesReservations() {
	s.receive("P-1", "W-1", "50")
	_, err := s.create("QUO-1", "20", "5")
	s.Require().NoError(err)
	s.requireStock("P-1", "W-1", "50", "25", "25")

	dto, err := s.services.Lifecycle.Reject(s.ctx, application.RejectQuotationCommand{QuotationID: "QUO-1", Reason: "customer declined"})
	s.Require().NoError(err)
	s.Equal(string(domain.QuotationRejected), dto.State)
	for _, r := range dto.Reservations {
		s.Equal(string(domain.ReservationReleased), r.State)
	}
	s.requireStock("P-1", "W-1", "50", "0", "50")
}

func (s *MongoStoreSuite) TestDuplicateQuotationID() {
	s.receive("P-1", "W-1", "50")
	_, err := s.create("QUO-1", "5")
	s.Require().NoError(err)

	_, err = s.create("QUO-1", "5")
	s.ErrorIs(err, domain.ErrQuotationExists)
	s.requireStock("P-1", "W-1", "50", "5", "45")
}

func (s *MongoStoreSuite) TestSweepExpiresPastDueQuotations() {
	s.receive("P-1", "W-1", "50")
	_, err := s.create("QUO-1", "10")
	s.Require().NoError(err)

	s.now = s.now.Add(73 * time.Hour)
	result, err := s.services.Sweeper.SweepOnce(s.ctx, application.TriggerManual)
	s.Require().NoError(err)
	s.Equal([]string{"QUO-1"}, result.Expired)
	s.requireStock("P-1", "W-1", "50", "0", "50")

	dto, err := s.services.Lifecycle.Get(s.ctx, application.GetQuotationQuery{QuotationID: "QUO-1"})
	s.Require().NoError(err)
	s.Equal(string(domain.QuotationExpired), dto.State)
}

func (s *MongoStoreSuite) TestOutboxHoldsOnlyCommittedEvents() {
	s.receive("P-1", "W-1", "10")
	_, err := s.create("QUO-1", "5")
	s.Require().NoError(err)

	_, err = s.create("QUO-2", "50")
	s.Require().ErrorIs(err, domain.ErrInsufficientStock)

	events, err := s.outbox.FindUnpublished(s.ctx, 100)
	s.Require().NoError(err)

	types := make(map[string]int)
	for _, event := range events {
		types[event.EventType]++
		s.NotEqual("QUO-2", event.AggregateID)
	}
	s.Equal(1, types[cloudevents.StockReceived])
	s.Equal(1, types[cloudevents.QuotationCreated])

	sink := &memorySink{}
	publisher := outbox.NewPublisher(s.outbox, sink, logging.NewNop(), nil, nil)
	s.Equal(len(events), publisher.ProcessBatch(s.ctx))

	events, err = s.outbox.FindUnpublished(s.ctx, 100)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *MongoStoreSuite) TestStaleSaveIsRejected() {
	s.receive("P-1", "W-1", "10")
	id := domain.StockRecordID("P-1", "W-1")

	var stale *domain.StockRecord
	s.Require().NoError(s.tx.View(s.ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		stale, err = uow.StockRecords().FindByID(ctx, id)
		return err
	}))

	s.receive("P-1", "W-1", "5")

	err := s.tx.WithinTransaction(s.ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return uow.StockRecords().Save(ctx, stale)
	})
	s.ErrorIs(err, domain.ErrConcurrentModification)
	s.requireStock("P-1", "W-1", "15", "0", "15")
}

func (s *MongoStoreSuite) TestLockWaitTimeoutSurfacesAsConcurrentModification() {
	s.receive("P-1", "W-1", "10")
	id := domain.StockRecordID("P-1", "W-1")

	short := mongodb.NewTransactionManager(s.client, logging.NewNop(), pkgmongo.TxOptions{
		LockWaitTimeout: 300 * time.Millisecond,
		InitialBackoff:  10 * time.Millisecond,
		MaxBackoff:      50 * time.Millisecond,
	})

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.tx.WithinTransaction(s.ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
			if _, err := uow.StockRecords().LockByID(ctx, id); err != nil {
				return err
			}
			select {
			case <-locked:
			default:
				close(locked)
			}
			<-release
			return nil
		})
	}()
	<-locked

	err := short.WithinTransaction(s.ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, err := uow.StockRecords().LockByID(ctx, id)
		return err
	})
	close(release)

	s.ErrorIs(err, domain.ErrConcurrentModification)
	s.NoError(<-done)
}

func (s *MongoStoreSuite) TestViewRejectsWrites() {
	err := s.tx.View(s.ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return uow.StockRecords().Insert(ctx, domain.NewStockRecord("P-9", "W-9", s.now))
	})
	s.Error(err)

	_, err = s.services.Stock.GetStock(s.ctx, application.GetStockQuery{ProductID: "P-9", WarehouseID: "W-9"})
	s.ErrorIs(err, domain.ErrStockRecordNotFound)
}

func (s *MongoStoreSuite) TestIdempotencyKeyLifecycle() {
	repo := idempotency.NewMongoKeyRepository(s.client.Collection(idempotency.KeysCollection))
	s.Require().NoError(repo.EnsureIndexes(s.ctx))

	key := func(token string) *idempotency.IdempotencyKey {
		return &idempotency.IdempotencyKey{
			ID:                 idempotency.KeyID("reservation-service", "k-1"),
			Key:                "k-1",
			RequestFingerprint: "fp",
			LockToken:          token,
			CreatedAt:          s.now,
			ExpiresAt:          time.Now().Add(time.Hour),
		}
	}

	stored, isNew, err := repo.AcquireLock(s.ctx, key("t1"), time.Minute)
	s.Require().NoError(err)
	s.True(isNew)
	s.True(stored.IsLocked())

	_, isNew, err = repo.AcquireLock(s.ctx, key("t2"), time.Minute)
	s.Require().NoError(err)
	s.False(isNew)

	s.Require().NoError(repo.ReleaseLock(s.ctx, stored.ID, "t1"))
	stored, isNew, err = repo.AcquireLock(s.ctx, key("t3"), time.Minute)
	s.Require().NoError(err)
	s.True(isNew)

	s.ErrorIs(repo.StoreResponse(s.ctx, stored.ID, "t1", 201, []byte(`{}`), nil), idempotency.ErrNotFound)
	s.Require().NoError(repo.StoreResponse(s.ctx, stored.ID, "t3", 201, []byte(`{"id":"Q-1"}`), map[string]string{"Location": "/q/Q-1"}))

	stored, isNew, err = repo.AcquireLock(s.ctx, key("t4"), 0)
	s.Require().NoError(err)
	s.False(isNew)
	s.True(stored.IsCompleted())
	s.Equal(201, stored.ResponseCode)
	s.JSONEq(`{"id":"Q-1"}`, string(stored.ResponseBody))
	s.Equal("/q/Q-1", stored.ResponseHeaders["Location"])
}

type memorySink struct {
	mu     sync.Mutex
	events []*cloudevents.Event
}

func (m *memorySink) PublishEvent(_ context.Context, _ string, event *cloudevents.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}
