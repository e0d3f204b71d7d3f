package domain

import (
	"context"
	"time"
)

// StockRecordRepository persists ledger slots. LockByID takes the row lock
// for the remainder of the enclosing transaction.
type StockRecordRepository interface {
	LockByID(ctx context.Context, id string) (*StockRecord, error)
	FindByID(ctx context.Context, id string) (*StockRecord, error)
	Insert(ctx context.Context, record *StockRecord) error
	Save(ctx context.Context, record *StockRecord) error
}

// ReservationRepository persists reservations
type ReservationRepository interface {
	LockByID(ctx context.Context, id string) (*Reservation, error)
	FindByID(ctx context.Context, id string) (*Reservation, error)
	FindByIDs(ctx context.Context, ids []string) ([]*Reservation, error)
	FindByQuotation(ctx context.Context, quotationID string) ([]*Reservation, error)
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
	Insert(ctx context.Context, reservation *Reservation) error
	Save(ctx context.Context, reservation *Reservation) error
}

// QuotationFilter narrows quotation listings
type QuotationFilter struct {
	State  QuotationState
	Limit  int
	Offset int
}

// QuotationRepository persists quotations
type QuotationRepository interface {
	LockByID(ctx context.Context, id string) (*Quotation, error)
	FindByID(ctx context.Context, id string) (*Quotation, error)
	List(ctx context.Context, filter QuotationFilter) ([]*Quotation, error)
	FindExpirable(ctx context.Context, now time.Time, limit int) ([]*Quotation, error)
	Insert(ctx context.Context, quotation *Quotation) error
	Save(ctx context.Context, quotation *Quotation) error
}

// SaleRepository persists sales
type SaleRepository interface {
	FindByID(ctx context.Context, id string) (*Sale, error)
	Insert(ctx context.Context, sale *Sale) error
}

// UnitOfWork groups the repositories bound to one transaction. Events staged
// on it are written to the outbox before commit and published after it.
type UnitOfWork interface {
	StockRecords() StockRecordRepository
	Reservations() ReservationRepository
	Quotations() QuotationRepository
	Sales() SaleRepository
	Stage(events ...DomainEvent)
	Staged() []DomainEvent
}

// TransactionManager opens units of work. WithinTransaction commits when fn
// returns nil and rolls everything back otherwise. A lock wait that exceeds
// the configured timeout surfaces as ErrConcurrentModification.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	View(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// EventPublisher receives domain events strictly after their transaction committed
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	PublishAll(ctx context.Context, events []DomainEvent) error
}
