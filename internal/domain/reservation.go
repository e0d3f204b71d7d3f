package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationState represents the state of a reservation
type ReservationState string

const (
	ReservationActive   ReservationState = "ACTIVE"
	ReservationReleased ReservationState = "RELEASED"
	ReservationConsumed ReservationState = "CONSUMED"
)

// IsTerminal reports whether no further transitions are possible
func (s ReservationState) IsTerminal() bool {
	return s == ReservationReleased || s == ReservationConsumed
}

// Release reasons recorded on reservations
const (
	ReleaseReasonRejected = "quotation-rejected"
	ReleaseReasonExpired  = "quotation-expired"
	ReleaseReasonManual   = "manual"
	ReleaseReasonOrphaned = "orphan-expired"
)

// Reservation withholds a quantity of one stock record for one quotation line
type Reservation struct {
	ID            string
	QuotationID   string
	LineNumber    int
	StockRecordID string
	ProductID     string
	WarehouseID   string
	Quantity      decimal.Decimal
	State         ReservationState
	ReleaseReason string
	Version       int64
	CreatedAt     time.Time
	ExpiresAt     time.Time
	UpdatedAt     time.Time
	ReleasedAt    *time.Time
	ConsumedAt    *time.Time
}

// NewReservation creates an ACTIVE reservation against record
func NewReservation(quotationID string, lineNumber int, record *StockRecord, qty decimal.Decimal, expiresAt, now time.Time) *Reservation {
	return &Reservation{
		ID:            "RSV-" + uuid.New().String(),
		QuotationID:   quotationID,
		LineNumber:    lineNumber,
		StockRecordID: record.ID,
		ProductID:     record.ProductID,
		WarehouseID:   record.WarehouseID,
		Quantity:      qty,
		State:         ReservationActive,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
		UpdatedAt:     now,
	}
}

// IsActive reports whether the reservation still holds stock
func (r *Reservation) IsActive() bool {
	return r.State == ReservationActive
}

// IsExpired reports whether an active reservation is past its expiry
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.IsActive() && !r.ExpiresAt.After(now)
}

// Release marks the reservation RELEASED. It returns false when the
// reservation was already terminal and nothing changed.
func (r *Reservation) Release(reason string, now time.Time) bool {
	if r.State.IsTerminal() {
		return false
	}
	r.State = ReservationReleased
	r.ReleaseReason = reason
	r.ReleasedAt = &now
	r.UpdatedAt = now
	return true
}

// Consume marks the reservation CONSUMED
func (r *Reservation) Consume(now time.Time) error {
	if !r.IsActive() {
		return fmt.Errorf("%w: reservation %s is %s", ErrInvalidReservationState, r.ID, r.State)
	}
	r.State = ReservationConsumed
	r.ConsumedAt = &now
	r.UpdatedAt = now
	return nil
}

// Extend moves the expiry. Quantities are never touched.
func (r *Reservation) Extend(expiresAt, now time.Time) error {
	if !r.IsActive() {
		return fmt.Errorf("%w: reservation %s is %s", ErrInvalidReservationState, r.ID, r.State)
	}
	if !expiresAt.After(now) {
		return fmt.Errorf("%w: %s is not in the future", ErrInvalidExpiration, expiresAt.Format(time.RFC3339))
	}
	r.ExpiresAt = expiresAt
	r.UpdatedAt = now
	return nil
}
