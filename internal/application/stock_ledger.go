package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/metrics"
)

// Ledger operation names used in logs and metrics
const (
	LedgerReserve = "reserve"
	LedgerRelease = "release"
	LedgerConsume = "consume"
	LedgerReceive = "receive"
	LedgerAdjust  = "adjust"
)

// ReserveRequest describes one line to hold against the ledger
type ReserveRequest struct {
	QuotationID string
	LineNumber  int
	ProductID   string
	WarehouseID string
	Quantity    decimal.Decimal
	ExpiresAt   time.Time
}

// StockLedger holds the primitives that move quantities between on-hand and
// reserved. Every method runs inside the caller's unit of work and locks the
// stock record it touches until that unit of work ends.
type StockLedger struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     Clock
}

// NewStockLedger creates a StockLedger
func NewStockLedger(logger *logging.Logger, m *metrics.Metrics, clock Clock) *StockLedger {
	if clock == nil {
		clock = systemClock
	}
	return &StockLedger{
		logger:  logger.WithComponent("stock-ledger"),
		metrics: m,
		now:     clock,
	}
}

// Reserve moves req.Quantity from available to reserved and records the reservation
func (l *StockLedger) Reserve(ctx context.Context, uow domain.UnitOfWork, req ReserveRequest) (*domain.Reservation, error) {
	now := l.now()

	record, err := uow.StockRecords().LockByID(ctx, domain.StockRecordID(req.ProductID, req.WarehouseID))
	if err != nil {
		l.record(LedgerReserve, false, req.Quantity)
		return nil, err
	}
	if err := record.Reserve(req.Quantity, now); err != nil {
		l.record(LedgerReserve, false, req.Quantity)
		return nil, err
	}

	reservation := domain.NewReservation(req.QuotationID, req.LineNumber, record, req.Quantity, req.ExpiresAt, now)
	if err := uow.StockRecords().Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save stock record %s: %w", record.ID, err)
	}
	if err := uow.Reservations().Insert(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}

	l.logger.Ledger(ctx, LedgerReserve, record.ID, req.Quantity.String(), record.OnHand.String(), record.Reserved.String())
	l.record(LedgerReserve, true, req.Quantity)
	return reservation, nil
}

// Release returns an ACTIVE reservation's quantity to available. A reservation
// that is already terminal is returned unchanged with released false.
func (l *StockLedger) Release(ctx context.Context, uow domain.UnitOfWork, reservationID, reason string) (*domain.Reservation, bool, error) {
	now := l.now()

	reservation, err := uow.Reservations().LockByID(ctx, reservationID)
	if err != nil {
		return nil, false, err
	}
	if !reservation.IsActive() {
		return reservation, false, nil
	}

	record, err := uow.StockRecords().LockByID(ctx, reservation.StockRecordID)
	if err != nil {
		return nil, false, err
	}
	if err := record.Release(reservation.Quantity, now); err != nil {
		l.record(LedgerRelease, false, reservation.Quantity)
		return nil, false, err
	}
	reservation.Release(reason, now)

	if err := uow.StockRecords().Save(ctx, record); err != nil {
		return nil, false, fmt.Errorf("failed to save stock record %s: %w", record.ID, err)
	}
	if err := uow.Reservations().Save(ctx, reservation); err != nil {
		return nil, false, fmt.Errorf("failed to save reservation %s: %w", reservation.ID, err)
	}

	l.logger.Ledger(ctx, LedgerRelease, record.ID, reservation.Quantity.String(), record.OnHand.String(), record.Reserved.String())
	l.record(LedgerRelease, true, reservation.Quantity)
	return reservation, true, nil
}

// Consume removes an ACTIVE reservation's quantity from both on-hand and reserved
func (l *StockLedger) Consume(ctx context.Context, uow domain.UnitOfWork, reservationID string) (*domain.Reservation, error) {
	now := l.now()

	reservation, err := uow.Reservations().LockByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := reservation.Consume(now); err != nil {
		l.record(LedgerConsume, false, reservation.Quantity)
		return nil, err
	}

	record, err := uow.StockRecords().LockByID(ctx, reservation.StockRecordID)
	if err != nil {
		return nil, err
	}
	if err := record.Consume(reservation.Quantity, now); err != nil {
		l.record(LedgerConsume, false, reservation.Quantity)
		return nil, err
	}

	if err := uow.StockRecords().Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save stock record %s: %w", record.ID, err)
	}
	if err := uow.Reservations().Save(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to save reservation %s: %w", reservation.ID, err)
	}

	l.logger.Ledger(ctx, LedgerConsume, record.ID, reservation.Quantity.String(), record.OnHand.String(), record.Reserved.String())
	l.record(LedgerConsume, true, reservation.Quantity)
	return reservation, nil
}

// Receive adds qty to on-hand, creating the stock record on first receipt
func (l *StockLedger) Receive(ctx context.Context, uow domain.UnitOfWork, productID, warehouseID string, qty decimal.Decimal, reference string) (*domain.StockRecord, error) {
	now := l.now()
	id := domain.StockRecordID(productID, warehouseID)

	record, err := uow.StockRecords().LockByID(ctx, id)
	insert := false
	switch {
	case errors.Is(err, domain.ErrStockRecordNotFound):
		record = domain.NewStockRecord(productID, warehouseID, now)
		insert = true
	case err != nil:
		return nil, err
	}

	if err := record.Receive(qty, reference, now); err != nil {
		l.record(LedgerReceive, false, qty)
		return nil, err
	}

	if insert {
		err = uow.StockRecords().Insert(ctx, record)
	} else {
		err = uow.StockRecords().Save(ctx, record)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save stock record %s: %w", record.ID, err)
	}
	uow.Stage(record.PullEvents()...)

	l.logger.Ledger(ctx, LedgerReceive, record.ID, qty.String(), record.OnHand.String(), record.Reserved.String())
	l.record(LedgerReceive, true, qty)
	return record, nil
}

// Adjust sets on-hand to a counted value. It never drops below reserved.
func (l *StockLedger) Adjust(ctx context.Context, uow domain.UnitOfWork, productID, warehouseID string, counted decimal.Decimal, reason string) (*domain.StockRecord, error) {
	now := l.now()

	record, err := uow.StockRecords().LockByID(ctx, domain.StockRecordID(productID, warehouseID))
	if err != nil {
		return nil, err
	}
	previous := record.OnHand
	if err := record.Adjust(counted, reason, now); err != nil {
		l.record(LedgerAdjust, false, counted)
		return nil, err
	}
	if err := uow.StockRecords().Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save stock record %s: %w", record.ID, err)
	}
	uow.Stage(record.PullEvents()...)

	l.logger.Ledger(ctx, LedgerAdjust, record.ID, counted.Sub(previous).String(), record.OnHand.String(), record.Reserved.String())
	l.record(LedgerAdjust, true, counted.Sub(previous).Abs())
	return record, nil
}

func (l *StockLedger) record(operation string, success bool, qty decimal.Decimal) {
	l.metrics.RecordLedgerOperation(operation, success, qty.InexactFloat64())
}
