package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reservation-service/internal/domain"
)

func seedStock(t *testing.T, s *Store, onHand int64) *domain.StockRecord {
	t.Helper()
	record := domain.NewStockRecord("P-1", "W-1", time.Now())
	record.OnHand = decimal.NewFromInt(onHand)
	require.NoError(t, s.WithinTransaction(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		return uow.StockRecords().Insert(ctx, record)
	}))
	return record
}

func TestStore_CommitAndRollback(t *testing.T) {
	s := NewStore()
	record := seedStock(t, s, 100)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		locked, err := uow.StockRecords().LockByID(ctx, record.ID)
		require.NoError(t, err)
		require.NoError(t, locked.Reserve(decimal.NewFromInt(10), time.Now()))
		require.NoError(t, uow.StockRecords().Save(ctx, locked))

		seen, err := uow.StockRecords().FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, seen.Reserved.Equal(decimal.NewFromInt(10)), "reads see own writes")
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		stored, err := uow.StockRecords().FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, stored.Reserved.IsZero())
		assert.Equal(t, int64(0), stored.Version)
		return nil
	}))
}

func TestStore_LockWaitTimeout(t *testing.T) {
	s := NewStore(WithLockWaitTimeout(50 * time.Millisecond))
	record := seedStock(t, s, 10)
	ctx := context.Background()

	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
			_, err := uow.StockRecords().LockByID(ctx, record.ID)
			close(locked)
			<-done
			return err
		})
	}()
	<-locked

	start := time.Now()
	err := s.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, err := uow.StockRecords().LockByID(ctx, record.ID)
		return err
	})
	close(done)

	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestStore_LocksAreReentrantAndReleased(t *testing.T) {
	s := NewStore(WithLockWaitTimeout(50 * time.Millisecond))
	record := seedStock(t, s, 10)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, s.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
			if _, err := uow.StockRecords().LockByID(ctx, record.ID); err != nil {
				return err
			}
			_, err := uow.StockRecords().LockByID(ctx, record.ID)
			return err
		}))
	}
}

func TestStore_UnlockedWriteConflict(t *testing.T) {
	s := NewStore()
	record := seedStock(t, s, 10)
	ctx := context.Background()

	err := s.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		stale, err := uow.StockRecords().FindByID(ctx, record.ID)
		require.NoError(t, err)

		require.NoError(t, s.WithinTransaction(ctx, func(ctx context.Context, other domain.UnitOfWork) error {
			fresh, err := other.StockRecords().LockByID(ctx, record.ID)
			require.NoError(t, err)
			fresh.OnHand = decimal.NewFromInt(20)
			return other.StockRecords().Save(ctx, fresh)
		}))

		stale.OnHand = decimal.NewFromInt(5)
		return uow.StockRecords().Save(ctx, stale)
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestStore_ViewIsReadOnly(t *testing.T) {
	s := NewStore()
	record := seedStock(t, s, 10)

	err := s.View(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		found, err := uow.StockRecords().LockByID(ctx, record.ID)
		require.NoError(t, err)
		return uow.StockRecords().Save(ctx, found)
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestStore_QuotationQueries(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	lines := []domain.QuotationLine{{ProductID: "P-1", WarehouseID: "W-1", Quantity: decimal.NewFromInt(1)}}
	fresh, err := domain.NewQuotation("Q-fresh", "", lines, now.Add(time.Hour), now)
	require.NoError(t, err)
	stale, err := domain.NewQuotation("Q-stale", "", lines, now.Add(time.Minute), now)
	require.NoError(t, err)

	require.NoError(t, s.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		require.NoError(t, uow.Quotations().Insert(ctx, fresh))
		return uow.Quotations().Insert(ctx, stale)
	}))

	err = s.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		return uow.Quotations().Insert(ctx, fresh)
	})
	assert.ErrorIs(t, err, domain.ErrQuotationExists)

	require.NoError(t, s.View(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		expirable, err := uow.Quotations().FindExpirable(ctx, now.Add(2*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, expirable, 1)
		assert.Equal(t, "Q-stale", expirable[0].ID)

		pending, err := uow.Quotations().List(ctx, domain.QuotationFilter{State: domain.QuotationPending})
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		_, err = uow.Quotations().FindByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrQuotationNotFound)
		return nil
	}))
}
