package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// QuotationState represents the lifecycle state of a quotation
type QuotationState string

const (
	QuotationPending   QuotationState = "PENDING"
	QuotationApproved  QuotationState = "APPROVED"
	QuotationRejected  QuotationState = "REJECTED"
	QuotationConverted QuotationState = "CONVERTED"
	QuotationExpired   QuotationState = "EXPIRED"
)

var quotationTransitions = map[QuotationState][]QuotationState{
	QuotationPending:  {QuotationApproved, QuotationRejected, QuotationExpired},
	QuotationApproved: {QuotationConverted, QuotationRejected, QuotationExpired},
}

// IsValid checks if the state is one of the known states
func (s QuotationState) IsValid() bool {
	switch s {
	case QuotationPending, QuotationApproved, QuotationRejected, QuotationConverted, QuotationExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the quotation can no longer change state
func (s QuotationState) IsTerminal() bool {
	_, open := quotationTransitions[s]
	return !open
}

// CanTransitionTo reports whether target is reachable in one step
func (s QuotationState) CanTransitionTo(target QuotationState) bool {
	for _, allowed := range quotationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// QuotationLine is one requested product/warehouse quantity. Each line owns exactly one reservation.
type QuotationLine struct {
	LineNumber    int
	ProductID     string
	WarehouseID   string
	Quantity      decimal.Decimal
	ReservationID string
}

// StockRecordID returns the ledger slot the line reserves against
func (l QuotationLine) StockRecordID() string {
	return StockRecordID(l.ProductID, l.WarehouseID)
}

// Quotation is the aggregate root owning lines and their reservations
type Quotation struct {
	ID              string
	CustomerID      string
	State           QuotationState
	ExpirationAt    time.Time
	Lines           []QuotationLine
	RejectionReason string
	SaleID          string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	ConvertedAt     *time.Time
	ExpiredAt       *time.Time

	DomainEvents []DomainEvent
}

// NewQuotation validates a draft and returns it in PENDING. Line numbers are assigned 1..n.
func NewQuotation(id, customerID string, lines []QuotationLine, expirationAt, now time.Time) (*Quotation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidQuotation)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyQuotation
	}
	if !expirationAt.After(now) {
		return nil, fmt.Errorf("%w: %s is not in the future", ErrInvalidExpiration, expirationAt.Format(time.RFC3339))
	}

	owned := make([]QuotationLine, len(lines))
	for i, line := range lines {
		if line.ProductID == "" || line.WarehouseID == "" {
			return nil, fmt.Errorf("%w: line %d needs a product and a warehouse", ErrInvalidQuotation, i+1)
		}
		if !line.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: line %d quantity %s", ErrInvalidQuantity, i+1, line.Quantity)
		}
		line.LineNumber = i + 1
		line.ReservationID = ""
		owned[i] = line
	}

	return &Quotation{
		ID:           id,
		CustomerID:   customerID,
		State:        QuotationPending,
		ExpirationAt: expirationAt,
		Lines:        owned,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// BindReservation links a line to the reservation created for it
func (q *Quotation) BindReservation(lineNumber int, reservationID string) error {
	for i := range q.Lines {
		if q.Lines[i].LineNumber == lineNumber {
			q.Lines[i].ReservationID = reservationID
			return nil
		}
	}
	return fmt.Errorf("quotation %s has no line %d", q.ID, lineNumber)
}

// RecordCreated emits the creation event once every line holds a reservation
func (q *Quotation) RecordCreated() error {
	for _, line := range q.Lines {
		if line.ReservationID == "" {
			return fmt.Errorf("%w: line %d of %s has no reservation", ErrInvalidReservationState, line.LineNumber, q.ID)
		}
	}
	q.addEvent(&QuotationCreatedEvent{
		QuotationID:    q.ID,
		CustomerID:     q.CustomerID,
		ReservationIDs: q.ReservationIDs(),
		ExpirationAt:   q.ExpirationAt,
		CreatedAt:      q.CreatedAt,
	})
	return nil
}

// ReservationIDs returns the reservation of every line in line order
func (q *Quotation) ReservationIDs() []string {
	ids := make([]string, 0, len(q.Lines))
	for _, line := range q.Lines {
		if line.ReservationID != "" {
			ids = append(ids, line.ReservationID)
		}
	}
	return ids
}

// IsExpired reports whether the expiration instant has passed
func (q *Quotation) IsExpired(now time.Time) bool {
	return !q.ExpirationAt.After(now)
}

func (q *Quotation) transition(target QuotationState, now time.Time) error {
	if !q.State.CanTransitionTo(target) {
		return fmt.Errorf("%w: quotation %s cannot move from %s to %s", ErrInvalidStateTransition, q.ID, q.State, target)
	}
	q.State = target
	q.UpdatedAt = now
	return nil
}

// Approve moves a PENDING quotation to APPROVED
func (q *Quotation) Approve(now time.Time) error {
	if q.State == QuotationPending && q.IsExpired(now) {
		return fmt.Errorf("%w: quotation %s expired at %s", ErrInvalidStateTransition, q.ID, q.ExpirationAt.Format(time.RFC3339))
	}
	if err := q.transition(QuotationApproved, now); err != nil {
		return err
	}
	q.ApprovedAt = &now

	q.addEvent(&QuotationApprovedEvent{
		QuotationID:    q.ID,
		ReservationIDs: q.ReservationIDs(),
		ApprovedAt:     now,
	})
	return nil
}

// Reject moves the quotation to REJECTED. released lists the reservations the
// caller released in the same transaction.
func (q *Quotation) Reject(reason string, released []string, now time.Time) error {
	if err := q.transition(QuotationRejected, now); err != nil {
		return err
	}
	q.RejectionReason = reason
	q.RejectedAt = &now

	q.addEvent(&QuotationRejectedEvent{
		QuotationID:    q.ID,
		Reason:         reason,
		ReservationIDs: released,
		RejectedAt:     now,
	})
	return nil
}

// Expire moves a quotation past its expiration to EXPIRED
func (q *Quotation) Expire(released []string, now time.Time) error {
	if !q.IsExpired(now) {
		return fmt.Errorf("%w: quotation %s expires at %s", ErrInvalidStateTransition, q.ID, q.ExpirationAt.Format(time.RFC3339))
	}
	if err := q.transition(QuotationExpired, now); err != nil {
		return err
	}
	q.ExpiredAt = &now

	q.addEvent(&QuotationExpiredEvent{
		QuotationID:    q.ID,
		ReservationIDs: released,
		ExpiredAt:      now,
	})
	return nil
}

// Convert moves an APPROVED quotation to CONVERTED after every reservation was consumed
func (q *Quotation) Convert(saleID string, consumed []string, now time.Time) error {
	if err := q.CanConvert(now); err != nil {
		return err
	}
	if err := q.transition(QuotationConverted, now); err != nil {
		return err
	}
	q.SaleID = saleID
	q.ConvertedAt = &now

	q.addEvent(&QuotationConvertedEvent{
		QuotationID:    q.ID,
		SaleID:         saleID,
		ReservationIDs: consumed,
		ConvertedAt:    now,
	})
	return nil
}

// CanConvert checks the preconditions of Convert without changing anything
func (q *Quotation) CanConvert(now time.Time) error {
	if q.State != QuotationApproved {
		return fmt.Errorf("%w: quotation %s is %s, conversion requires %s", ErrInvalidStateTransition, q.ID, q.State, QuotationApproved)
	}
	if q.IsExpired(now) {
		return fmt.Errorf("%w: quotation %s expired at %s", ErrInvalidStateTransition, q.ID, q.ExpirationAt.Format(time.RFC3339))
	}
	return nil
}

// Extend moves the expiration of an open quotation
func (q *Quotation) Extend(expirationAt time.Time, now time.Time) error {
	if q.State.IsTerminal() {
		return fmt.Errorf("%w: quotation %s is %s", ErrInvalidStateTransition, q.ID, q.State)
	}
	if !expirationAt.After(now) {
		return fmt.Errorf("%w: %s is not in the future", ErrInvalidExpiration, expirationAt.Format(time.RFC3339))
	}
	q.ExpirationAt = expirationAt
	q.UpdatedAt = now

	q.addEvent(&QuotationExtendedEvent{
		QuotationID:    q.ID,
		ReservationIDs: q.ReservationIDs(),
		ExpirationAt:   expirationAt,
		ExtendedAt:     now,
	})
	return nil
}

func (q *Quotation) addEvent(event DomainEvent) {
	q.DomainEvents = append(q.DomainEvents, event)
}

// PullEvents returns and clears the recorded events
func (q *Quotation) PullEvents() []DomainEvent {
	events := q.DomainEvents
	q.DomainEvents = nil
	return events
}
