package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/cloudevents"
	pkgtesting "github.com/wms-platform/reservation-service/pkg/testing"
)

func TestSweeper_ExpiresPastDueQuotations(t *testing.T) {
	h := newHarness(t)
	h.receive(t, "P-1", "W-1", "100")
	ctx := context.Background()

	h.createQuotation(t, "Q-old", line("P-1", "W-1", "25"))
	_, err := h.services.Lifecycle.Approve(ctx, ApproveQuotationCommand{QuotationID: "Q-old"})
	require.NoError(t, err)

	h.clock.Advance(48 * time.Hour)
	h.createQuotation(t, "Q-new", line("P-1", "W-1", "10"))
	h.clock.Advance(25 * time.Hour)

	var handled []string
	progress := WithSweepProgress(ctx, func(id string) { handled = append(handled, id) })
	result, err := h.services.Sweeper.SweepOnce(progress, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q-old"}, result.Expired)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"Q-old"}, handled)

	old, err := h.services.Lifecycle.Get(ctx, GetQuotationQuery{QuotationID: "Q-old"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.QuotationExpired), old.State)
	require.Len(t, old.Reservations, 1)
	assert.Equal(t, domain.ReleaseReasonExpired, old.Reservations[0].ReleaseReason)

	fresh, err := h.services.Lifecycle.Get(ctx, GetQuotationQuery{QuotationID: "Q-new"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.QuotationPending), fresh.State)

	h.requireStock(t, "P-1", "W-1", "100", "10", "90")
	h.requireReservedMatchesActive(t)
	assert.Len(t, h.events.ofType(cloudevents.QuotationExpired), 1)

	again, err := h.services.Sweeper.SweepOnce(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Empty(t, again.Expired)
}

func TestSweeper_ConcurrentSweepsReleaseOnce(t *testing.T) {
	h := newHarness(t)
	h.receive(t, "P-1", "W-1", "100")
	h.receive(t, "P-2", "W-1", "100")
	ctx := context.Background()

	for _, id := range []string{"Q-1", "Q-2", "Q-3"} {
		h.createQuotation(t, id, line("P-1", "W-1", "10"), line("P-2", "W-1", "5"))
	}
	h.clock.Advance(72 * time.Hour)

	results := make([]*SweepResult, 2)
	errs := pkgtesting.RunConcurrently(2, func(i int) error {
		var err error
		results[i], err = h.services.Sweeper.SweepOnce(ctx, TriggerManual)
		return err
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	expired := append(append([]string{}, results[0].Expired...), results[1].Expired...)
	assert.ElementsMatch(t, []string{"Q-1", "Q-2", "Q-3"}, expired)
	assert.Empty(t, results[0].Failed)
	assert.Empty(t, results[1].Failed)

	h.requireStock(t, "P-1", "W-1", "100", "0", "100")
	h.requireStock(t, "P-2", "W-1", "100", "0", "100")
	h.requireReservedMatchesActive(t)
	assert.Len(t, h.events.ofType(cloudevents.QuotationExpired), 3)
}

func TestSweeper_ReleasesOrphans(t *testing.T) {
	h := newHarness(t)
	h.receive(t, "P-1", "W-1", "10")
	ctx := context.Background()

	var orphanID string
	require.NoError(t, h.store.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		r, err := h.services.Ledger.Reserve(ctx, uow, ReserveRequest{
			QuotationID: "Q-gone",
			LineNumber:  1,
			ProductID:   "P-1",
			WarehouseID: "W-1",
			Quantity:    qty("3"),
			ExpiresAt:   h.clock.Now().Add(time.Hour),
		})
		if err != nil {
			return err
		}
		orphanID = r.ID
		return nil
	}))
	h.requireStock(t, "P-1", "W-1", "10", "3", "7")

	result, err := h.services.Sweeper.SweepOnce(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Empty(t, result.OrphansReleased)

	h.clock.Advance(2 * time.Hour)
	var handled []string
	progress := WithSweepProgress(ctx, func(id string) { handled = append(handled, id) })
	result, err = h.services.Sweeper.SweepOnce(progress, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []string{orphanID}, result.OrphansReleased)
	assert.Equal(t, []string{orphanID}, handled)
	h.requireStock(t, "P-1", "W-1", "10", "0", "10")

	r, err := h.services.Reservations.Get(ctx, GetReservationQuery{ReservationID: orphanID})
	require.NoError(t, err)
	assert.Equal(t, domain.ReleaseReasonOrphaned, r.ReleaseReason)
}

func TestSweeper_StartStop(t *testing.T) {
	h := newHarness(t)
	h.receive(t, "P-1", "W-1", "10")
	h.createQuotation(t, "Q-1", line("P-1", "W-1", "4"))
	h.clock.Advance(100 * time.Hour)

	sweeper := newExpirationSweeper(h.services.Sweeper.tx, h.services.Lifecycle, h.services.Ledger, h.services.Sweeper.logger, nil, h.clock.Now,
		&SweeperConfig{Interval: 10 * time.Millisecond, BatchSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sweeper.Start(ctx))
	assert.True(t, sweeper.IsRunning())
	require.Error(t, sweeper.Start(ctx))

	pkgtesting.RequireEventually(t, func() bool {
		dto, err := h.services.Stock.GetStock(ctx, GetStockQuery{ProductID: "P-1", WarehouseID: "W-1"})
		return err == nil && dto.Reserved == "0"
	}, 2*time.Second, "ticker should expire the quotation")

	require.NoError(t, sweeper.Stop())
	assert.False(t, sweeper.IsRunning())
	require.Error(t, sweeper.Stop())
}

func TestSweeper_ConcurrentStopClosesOnce(t *testing.T) {
	h := newHarness(t)
	sweeper := newExpirationSweeper(h.services.Sweeper.tx, h.services.Lifecycle, h.services.Ledger, h.services.Sweeper.logger, nil, h.clock.Now,
		&SweeperConfig{Interval: time.Hour, BatchSize: 10})
	require.NoError(t, sweeper.Start(context.Background()))

	var stopped atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sweeper.Stop() == nil {
				stopped.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), stopped.Load())
	assert.False(t, sweeper.IsRunning())
	require.NoError(t, sweeper.Start(context.Background()))
	require.NoError(t, sweeper.Stop())
}
