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
)

func TestReservationStore_BulkRelease(t *testing.T) {
	h := newHarness(t)
	h.receive(t, "P-1", "W-1", "100")
	h.receive(t, "P-2", "W-1", "100")
	ctx := context.Background()

	q1 := h.createQuotation(t, "Q-1", line("P-1", "W-1", "10"), line("P-2", "W-1", "20"))
	q2 := h.createQuotation(t, "Q-2", line("P-1", "W-1", "5"))

	terminal := q2.Lines[0].ReservationID
	_, err := h.services.Reservations.Release(ctx, ReleaseReservationCommand{ReservationID: terminal})
	require.NoError(t, err)

	result, err := h.services.Reservations.BulkRelease(ctx, BulkReleaseCommand{
		ReservationIDs: []string{
			q1.Lines[0].ReservationID,
			q1.Lines[1].ReservationID,
			q1.Lines[1].ReservationID,
			terminal,
			"RSV-missing",
		},
		Reason: "warehouse recount",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{q1.Lines[0].ReservationID, q1.Lines[1].ReservationID}, result.Released)
	assert.Equal(t, []string{terminal}, result.AlreadyTerminal)
	assert.Equal(t, []string{"RSV-missing"}, result.NotFound)
	assert.Empty(t, result.Failed)

	h.requireStock(t, "P-1", "W-1", "100", "0", "100")
	h.requireStock(t, "P-2", "W-1", "100", "0", "100")

	r, err := h.services.Reservations.Get(ctx, GetReservationQuery{ReservationID: q1.Lines[0].ReservationID})
	require.NoError(t, err)
	assert.Equal(t, "warehouse recount", r.ReleaseReason)
}

// pausingTx stalls the first unit of work that locks one reservation until
// resume is closed, so a competing transaction can queue up behind it.
type pausingTx struct {
	domain.TransactionManager
	reservationID string
	paused        chan struct{}
	resume        chan struct{}
	fired         atomic.Bool
}

func (p *pausingTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return p.TransactionManager.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return fn(ctx, &pausingUoW{UnitOfWork: uow, tx: p})
	})
}

type pausingUoW struct {
	domain.UnitOfWork
	tx *pausingTx
}

func (u *pausingUoW) Reservations() domain.ReservationRepository {
	return &pausingReservations{ReservationRepository: u.UnitOfWork.Reservations(), tx: u.tx}
}

type pausingReservations struct {
	domain.ReservationRepository
	tx *pausingTx
}

func (r *pausingReservations) LockByID(ctx context.Context, id string) (*domain.Reservation, error) {
	locked, err := r.ReservationRepository.LockByID(ctx, id)
	if err == nil && id == r.tx.reservationID && r.tx.fired.CompareAndSwap(false, true) {
		close(r.tx.paused)
		<-r.tx.resume
	}
	return locked, err
}

func TestReservationStore_BulkReleaseDoesNotDeadlockWithReject(t *testing.T) {
	pause := &pausingTx{paused: make(chan struct{}), resume: make(chan struct{})}
	h := newHarnessWithTx(t, func(tx domain.TransactionManager) domain.TransactionManager {
		pause.TransactionManager = tx
		return pause
	})
	h.receive(t, "P-1", "W-1", "100")
	ctx := context.Background()

	q1 := h.createQuotation(t, "Q-1", line("P-1", "W-1", "10"))
	q2 := h.createQuotation(t, "Q-2", line("P-1", "W-1", "20"))

	// The rejected quotation owns the reservation bulk release reaches last.
	first, second := q1.Lines[0].ReservationID, q2.Lines[0].ReservationID
	rejected, kept := "Q-2", "Q-1"
	if second < first {
		first, second = second, first
		rejected, kept = kept, rejected
	}
	pause.reservationID = second

	start := time.Now()
	var wg sync.WaitGroup
	var rejectErr, bulkErr error
	var bulk *BulkReleaseResult

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, rejectErr = h.services.Lifecycle.Reject(ctx, RejectQuotationCommand{QuotationID: rejected, Reason: "customer declined"})
	}()
	<-pause.paused

	wg.Add(1)
	go func() {
		defer wg.Done()
		bulk, bulkErr = h.services.Reservations.BulkRelease(ctx, BulkReleaseCommand{ReservationIDs: []string{first, second}})
	}()
	time.Sleep(100 * time.Millisecond)
	close(pause.resume)
	wg.Wait()

	require.NoError(t, rejectErr)
	require.NoError(t, bulkErr)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, bulk.Failed)
	assert.Equal(t, []string{first}, bulk.Released)
	assert.Equal(t, []string{second}, bulk.AlreadyTerminal)

	q, err := h.services.Lifecycle.Get(ctx, GetQuotationQuery{QuotationID: rejected})
	require.NoError(t, err)
	assert.Equal(t, string(domain.QuotationRejected), q.State)
	q, err = h.services.Lifecycle.Get(ctx, GetQuotationQuery{QuotationID: kept})
	require.NoError(t, err)
	assert.Equal(t, string(domain.QuotationPending), q.State)

	h.requireStock(t, "P-1", "W-1", "100", "0", "100")
	h.requireReservedMatchesActive(t)
}

func TestReservationStore_BulkReleaseEmpty(t *testing.T) {
	h := newHarness(t)

	result, err := h.services.Reservations.BulkRelease(context.Background(), BulkReleaseCommand{})
	require.NoError(t, err)
	assert.Empty(t, result.Released)
	assert.NotNil(t, result.NotFound)
}

func TestReservationStore_Extend(t *testing.T) {
	h := newHarness(t)
	h.receive(t, "P-1", "W-1", "10")
	ctx := context.Background()

	q := h.createQuotation(t, "Q-1", line("P-1", "W-1", "4"))
	id := q.Lines[0].ReservationID

	extended, err := h.services.Reservations.Extend(ctx, ExtendReservationCommand{ReservationID: id, Days: 5})
	require.NoError(t, err)
	assert.True(t, extended.ExpiresAt.Equal(h.clock.Now().AddDate(0, 0, 5)))
	assert.Equal(t, "4", extended.Quantity)
	h.requireStock(t, "P-1", "W-1", "10", "4", "6")

	past := h.clock.Now().Add(-time.Hour)
	_, err = h.services.Reservations.Extend(ctx, ExtendReservationCommand{ReservationID: id, ExpiresAt: &past})
	require.ErrorIs(t, err, domain.ErrInvalidExpiration)

	_, err = h.services.Reservations.Extend(ctx, ExtendReservationCommand{ReservationID: id})
	require.ErrorIs(t, err, domain.ErrInvalidExpiration)

	_, err = h.services.Reservations.Release(ctx, ReleaseReservationCommand{ReservationID: id})
	require.NoError(t, err)
	_, err = h.services.Reservations.Extend(ctx, ExtendReservationCommand{ReservationID: id, Days: 1})
	require.ErrorIs(t, err, domain.ErrInvalidReservationState)
}

func TestReservationStore_ListByQuotation(t *testing.T) {
	h := newHarness(t)
	h.receive(t, "P-1", "W-1", "10")
	h.receive(t, "P-2", "W-1", "10")
	ctx := context.Background()

	h.createQuotation(t, "Q-1", line("P-2", "W-1", "1"), line("P-1", "W-1", "2"))

	list, err := h.services.Reservations.ListByQuotation(ctx, ListReservationsQuery{QuotationID: "Q-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].LineNumber)
	assert.Equal(t, "P-2", list[0].ProductID)
	assert.Equal(t, 2, list[1].LineNumber)

	_, err = h.services.Reservations.ListByQuotation(ctx, ListReservationsQuery{QuotationID: "Q-404"})
	require.ErrorIs(t, err, domain.ErrQuotationNotFound)

	_, err = h.services.Reservations.Release(ctx, ReleaseReservationCommand{ReservationID: "RSV-404"})
	require.ErrorIs(t, err, domain.ErrReservationNotFound)
}
