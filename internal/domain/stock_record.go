package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord is the ledger slot for one product in one warehouse.
// 0 <= Reserved <= OnHand holds after every mutation.
type StockRecord struct {
	ID          string
	ProductID   string
	WarehouseID string
	OnHand      decimal.Decimal
	Reserved    decimal.Decimal
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	DomainEvents []DomainEvent
}

// StockRecordID derives the record id from its natural key
func StockRecordID(productID, warehouseID string) string {
	return "SR-" + productID + "@" + warehouseID
}

// NewStockRecord creates an empty ledger slot
func NewStockRecord(productID, warehouseID string, now time.Time) *StockRecord {
	return &StockRecord{
		ID:          StockRecordID(productID, warehouseID),
		ProductID:   productID,
		WarehouseID: warehouseID,
		OnHand:      decimal.Zero,
		Reserved:    decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Available is the quantity that can still be reserved
func (s *StockRecord) Available() decimal.Decimal {
	return s.OnHand.Sub(s.Reserved)
}

// Reserve withholds qty from the available quantity
func (s *StockRecord) Reserve(qty decimal.Decimal, now time.Time) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, qty)
	}
	if qty.GreaterThan(s.Available()) {
		return fmt.Errorf("%w: requested %s, available %s on %s", ErrInsufficientStock, qty, s.Available(), s.ID)
	}
	s.Reserved = s.Reserved.Add(qty)
	s.UpdatedAt = now
	return nil
}

// Release gives back qty previously reserved
func (s *StockRecord) Release(qty decimal.Decimal, now time.Time) error {
	if !qty.IsPositive() || qty.GreaterThan(s.Reserved) {
		return fmt.Errorf("%w: release %s exceeds reserved %s on %s", ErrInvalidQuantity, qty, s.Reserved, s.ID)
	}
	s.Reserved = s.Reserved.Sub(qty)
	s.UpdatedAt = now
	return nil
}

// Consume turns reserved quantity into a permanent deduction. Both fields move together.
func (s *StockRecord) Consume(qty decimal.Decimal, now time.Time) error {
	if !qty.IsPositive() || qty.GreaterThan(s.Reserved) || qty.GreaterThan(s.OnHand) {
		return fmt.Errorf("%w: consume %s with reserved %s and on-hand %s on %s", ErrInvalidQuantity, qty, s.Reserved, s.OnHand, s.ID)
	}
	s.Reserved = s.Reserved.Sub(qty)
	s.OnHand = s.OnHand.Sub(qty)
	s.UpdatedAt = now
	return nil
}

// Receive adds physically received quantity
func (s *StockRecord) Receive(qty decimal.Decimal, reference string, now time.Time) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, qty)
	}
	s.OnHand = s.OnHand.Add(qty)
	s.UpdatedAt = now

	s.addEvent(&StockReceivedEvent{
		StockRecordID: s.ID,
		ProductID:     s.ProductID,
		WarehouseID:   s.WarehouseID,
		Quantity:      qty,
		OnHand:        s.OnHand,
		Reference:     reference,
		ReceivedAt:    now,
	})
	return nil
}

// Adjust sets on-hand to a counted value. Reserved quantity is never orphaned.
func (s *StockRecord) Adjust(counted decimal.Decimal, reason string, now time.Time) error {
	if counted.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, counted)
	}
	if counted.LessThan(s.Reserved) {
		return fmt.Errorf("%w: counted %s, reserved %s on %s", ErrBelowReserved, counted, s.Reserved, s.ID)
	}
	previous := s.OnHand
	s.OnHand = counted
	s.UpdatedAt = now

	s.addEvent(&StockAdjustedEvent{
		StockRecordID:  s.ID,
		ProductID:      s.ProductID,
		WarehouseID:    s.WarehouseID,
		PreviousOnHand: previous,
		OnHand:         counted,
		Reason:         reason,
		AdjustedAt:     now,
	})
	return nil
}

func (s *StockRecord) addEvent(event DomainEvent) {
	s.DomainEvents = append(s.DomainEvents, event)
}

// PullEvents returns and clears the recorded events
func (s *StockRecord) PullEvents() []DomainEvent {
	events := s.DomainEvents
	s.DomainEvents = nil
	return events
}
