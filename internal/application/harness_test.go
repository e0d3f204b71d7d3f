package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/internal/infrastructure/memory"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	for _, event := range events {
		_ = p.Publish(ctx, event)
	}
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []domain.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.DomainEvent
	for _, event := range p.events {
		if event.EventType() == eventType {
			out = append(out, event)
		}
	}
	return out
}

type harness struct {
	store    *memory.Store
	services *Services
	clock    *fakeClock
	events   *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithTx(t, nil)
}

// newHarnessWithTx lets a test decorate the transaction manager
func newHarnessWithTx(t *testing.T, wrap func(domain.TransactionManager) domain.TransactionManager) *harness {
	t.Helper()
	store := memory.NewStore(memory.WithLockWaitTimeout(2 * time.Second))
	var tx domain.TransactionManager = store
	if wrap != nil {
		tx = wrap(store)
	}
	h := &harness{
		store:  store,
		clock:  newFakeClock(),
		events: &recordingPublisher{},
	}
	h.services = NewServices(tx, logging.NewNop(), nil, Options{
		DefaultQuotationTTL: 72 * time.Hour,
		Publisher:           h.events,
		Clock:               h.clock.Now,
	})
	return h
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(productID, warehouseID, quantity string) QuotationLineCommand {
	return QuotationLineCommand{ProductID: productID, WarehouseID: warehouseID, Quantity: qty(quantity)}
}

func (h *harness) receive(t *testing.T, productID, warehouseID, quantity string) {
	t.Helper()
	_, err := h.services.Stock.ReceiveStock(context.Background(), ReceiveStockCommand{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty(quantity),
		Reference:   "PO-1",
	})
	require.NoError(t, err)
}

func (h *harness) stock(t *testing.T, productID, warehouseID string) *StockRecordDTO {
	t.Helper()
	dto, err := h.services.Stock.GetStock(context.Background(), GetStockQuery{ProductID: productID, WarehouseID: warehouseID})
	require.NoError(t, err)
	return dto
}

// requireStock asserts on-hand, reserved and available of one stock record
func (h *harness) requireStock(t *testing.T, productID, warehouseID, onHand, reserved, available string) {
	t.Helper()
	dto := h.stock(t, productID, warehouseID)
	require.True(t, qty(onHand).Equal(qty(dto.OnHand)), "onHand %s, want %s", dto.OnHand, onHand)
	require.True(t, qty(reserved).Equal(qty(dto.Reserved)), "reserved %s, want %s", dto.Reserved, reserved)
	require.True(t, qty(available).Equal(qty(dto.Available)), "available %s, want %s", dto.Available, available)
}

func (h *harness) createQuotation(t *testing.T, id string, lines ...QuotationLineCommand) *QuotationDTO {
	t.Helper()
	dto, err := h.services.Lifecycle.Create(context.Background(), CreateQuotationCommand{
		QuotationID: id,
		CustomerID:  "CUST-1",
		Lines:       lines,
	})
	require.NoError(t, err)
	return dto
}

// requireReservedMatchesActive checks that every stock record's reserved
// quantity equals the sum of its ACTIVE reservations.
func (h *harness) requireReservedMatchesActive(t *testing.T) {
	t.Helper()
	require.NoError(t, h.store.View(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		quotations, err := uow.Quotations().List(ctx, domain.QuotationFilter{})
		require.NoError(t, err)

		active := make(map[string]decimal.Decimal)
		for _, q := range quotations {
			rs, err := uow.Reservations().FindByQuotation(ctx, q.ID)
			require.NoError(t, err)
			for _, r := range rs {
				if q.State.IsTerminal() {
					require.False(t, r.IsActive(), "quotation %s is %s but reservation %s is ACTIVE", q.ID, q.State, r.ID)
				}
				if r.IsActive() {
					active[r.StockRecordID] = active[r.StockRecordID].Add(r.Quantity)
				}
			}
		}
		for id, sum := range active {
			record, err := uow.StockRecords().FindByID(ctx, id)
			require.NoError(t, err)
			require.True(t, record.Reserved.Equal(sum), "%s reserved %s, active sum %s", id, record.Reserved, sum)
		}
		return nil
	}))
}
