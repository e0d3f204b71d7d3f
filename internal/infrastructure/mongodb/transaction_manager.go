package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/logging"
	pkgmongo "github.com/wms-platform/reservation-service/pkg/mongodb"
)

var errReadOnly = errors.New("mongodb: write attempted in a read-only unit of work")

// TransactionManager implements domain.TransactionManager on replica-set
// transactions. Row locks are taken by bumping lockSeq on the document, so a
// second writer hits a WriteConflict and waits inside RunTransaction.
type TransactionManager struct {
	client *pkgmongo.InstrumentedClient
	logger *logging.Logger
	opts   pkgmongo.TxOptions

	stock        *pkgmongo.InstrumentedCollection
	reservations *pkgmongo.InstrumentedCollection
	quotations   *pkgmongo.InstrumentedCollection
	sales        *pkgmongo.InstrumentedCollection
}

// NewTransactionManager binds the service collections of client
func NewTransactionManager(client *pkgmongo.InstrumentedClient, logger *logging.Logger, opts pkgmongo.TxOptions) *TransactionManager {
	return &TransactionManager{
		client:       client,
		logger:       logger.WithComponent("mongodb-tx"),
		opts:         opts,
		stock:        client.Collection(StockRecordsCollection),
		reservations: client.Collection(ReservationsCollection),
		quotations:   client.Collection(QuotationsCollection),
		sales:        client.Collection(SalesCollection),
	}
}

// WithinTransaction runs fn in a transaction. fn may run more than once when
// it collides with another writer, each time against a fresh unit of work.
func (m *TransactionManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	err := m.client.RunTransaction(ctx, m.opts, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx, m.newUnitOfWork(false))
	})
	if errors.Is(err, pkgmongo.ErrLockWaitTimeout) {
		m.logger.WithContext(ctx).Warn("Transaction gave up waiting for a lock", "error", err.Error())
		return fmt.Errorf("%w: %v", domain.ErrConcurrentModification, err)
	}
	return err
}

// View runs fn outside a transaction against committed state. Writes fail.
func (m *TransactionManager) View(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	return fn(ctx, m.newUnitOfWork(true))
}

// EnsureIndexes creates the secondary indexes the repositories query by
func (m *TransactionManager) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll   *pkgmongo.InstrumentedCollection
		models []mongo.IndexModel
	}{
		{m.stock, []mongo.IndexModel{
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "warehouseId", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{m.reservations, []mongo.IndexModel{
			{Keys: bson.D{{Key: "quotationId", Value: 1}, {Key: "lineNumber", Value: 1}}},
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "expiresAt", Value: 1}}},
			{Keys: bson.D{{Key: "stockRecordId", Value: 1}}},
		}},
		{m.quotations, []mongo.IndexModel{
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "expirationAt", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
		}},
		{m.sales, []mongo.IndexModel{
			{Keys: bson.D{{Key: "quotationId", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
	}

	for _, idx := range indexes {
		if err := idx.coll.EnsureIndexes(ctx, idx.models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

func (m *TransactionManager) newUnitOfWork(readOnly bool) *unitOfWork {
	return &unitOfWork{manager: m, readOnly: readOnly}
}

type unitOfWork struct {
	manager  *TransactionManager
	readOnly bool
	staged   []domain.DomainEvent
}

func (u *unitOfWork) StockRecords() domain.StockRecordRepository {
	return &stockRecordRepository{coll: u.manager.stock, uow: u}
}

func (u *unitOfWork) Reservations() domain.ReservationRepository {
	return &reservationRepository{coll: u.manager.reservations, uow: u}
}

func (u *unitOfWork) Quotations() domain.QuotationRepository {
	return &quotationRepository{coll: u.manager.quotations, uow: u}
}

func (u *unitOfWork) Sales() domain.SaleRepository {
	return &saleRepository{coll: u.manager.sales, uow: u}
}

func (u *unitOfWork) Stage(events ...domain.DomainEvent) {
	u.staged = append(u.staged, events...)
}

func (u *unitOfWork) Staged() []domain.DomainEvent {
	return u.staged
}

func (u *unitOfWork) writable() error {
	if u.readOnly {
		return errReadOnly
	}
	return nil
}
