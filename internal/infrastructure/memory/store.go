package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wms-platform/reservation-service/internal/domain"
)

// DefaultLockWaitTimeout bounds how long a transaction waits for a row lock
const DefaultLockWaitTimeout = 5 * time.Second

var errReadOnly = errors.New("write attempted in a read-only unit of work")

// Store is an in-process implementation of domain.TransactionManager. Row
// locks are real exclusive locks held until the unit of work ends, and writes
// are buffered so that a failed unit of work leaves no trace.
type Store struct {
	mu           sync.RWMutex
	stock        *table[domain.StockRecord]
	reservations *table[domain.Reservation]
	quotations   *table[domain.Quotation]
	sales        *table[domain.Sale]

	locks    *lockTable
	lockWait time.Duration
}

// Option configures a Store
type Option func(*Store)

// WithLockWaitTimeout overrides DefaultLockWaitTimeout
func WithLockWaitTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockWait = d
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		stock: newTable("stock record", cloneStockRecord,
			func(r *domain.StockRecord) int64 { return r.Version },
			func(r *domain.StockRecord, v int64) { r.Version = v }),
		reservations: newTable("reservation", cloneReservation,
			func(r *domain.Reservation) int64 { return r.Version },
			func(r *domain.Reservation, v int64) { r.Version = v }),
		quotations: newTable("quotation", cloneQuotation,
			func(q *domain.Quotation) int64 { return q.Version },
			func(q *domain.Quotation, v int64) { q.Version = v }),
		sales: newTable("sale", cloneSale,
			func(*domain.Sale) int64 { return 0 },
			func(*domain.Sale, int64) {}),
		locks:    newLockTable(),
		lockWait: DefaultLockWaitTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithinTransaction runs fn in a unit of work and commits its buffered writes
// atomically when fn succeeds. Row locks are released on return either way.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	u := s.newUnitOfWork(false)
	defer u.releaseLocks()

	if err := fn(ctx, u); err != nil {
		return err
	}
	return u.commit()
}

// View runs fn against committed state without taking locks. Writes fail.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return fn(ctx, s.newUnitOfWork(true))
}

func (s *Store) newUnitOfWork(readOnly bool) *unitOfWork {
	return &unitOfWork{
		store:        s,
		readOnly:     readOnly,
		held:         make(map[string]bool),
		stock:        newChangeSet(s.stock),
		reservations: newChangeSet(s.reservations),
		quotations:   newChangeSet(s.quotations),
		sales:        newChangeSet(s.sales),
	}
}

type unitOfWork struct {
	store    *Store
	readOnly bool
	held     map[string]bool
	order    []string
	staged   []domain.DomainEvent

	stock        *changeSet[domain.StockRecord]
	reservations *changeSet[domain.Reservation]
	quotations   *changeSet[domain.Quotation]
	sales        *changeSet[domain.Sale]
}

func (u *unitOfWork) StockRecords() domain.StockRecordRepository { return &stockRecordRepository{u} }
func (u *unitOfWork) Reservations() domain.ReservationRepository { return &reservationRepository{u} }
func (u *unitOfWork) Quotations() domain.QuotationRepository     { return &quotationRepository{u} }
func (u *unitOfWork) Sales() domain.SaleRepository               { return &saleRepository{u} }

func (u *unitOfWork) Stage(events ...domain.DomainEvent) {
	u.staged = append(u.staged, events...)
}

func (u *unitOfWork) Staged() []domain.DomainEvent {
	return u.staged
}

// lock acquires the row lock once per unit of work
func (u *unitOfWork) lock(ctx context.Context, key string) error {
	if u.readOnly || u.held[key] {
		return nil
	}
	if err := u.store.locks.acquire(ctx, key, u.store.lockWait); err != nil {
		return err
	}
	u.held[key] = true
	u.order = append(u.order, key)
	return nil
}

func (u *unitOfWork) releaseLocks() {
	for i := len(u.order) - 1; i >= 0; i-- {
		u.store.locks.release(u.order[i])
	}
	u.order = nil
	u.held = make(map[string]bool)
}

func (u *unitOfWork) writable() error {
	if u.readOnly {
		return errReadOnly
	}
	return nil
}

func (u *unitOfWork) commit() error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if err := errors.Join(
		u.stock.validate(),
		u.reservations.validate(),
		u.quotations.validate(),
		u.sales.validate(),
	); err != nil {
		return err
	}

	u.stock.apply()
	u.reservations.apply()
	u.quotations.apply()
	u.sales.apply()
	return nil
}

// read runs fn under the store read lock
func (u *unitOfWork) read(fn func()) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	fn()
}
