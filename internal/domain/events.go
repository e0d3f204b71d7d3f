package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wms-platform/reservation-service/pkg/cloudevents"
)

// Aggregate types used as outbox keys
const (
	AggregateQuotation   = "Quotation"
	AggregateReservation = "Reservation"
	AggregateStockRecord = "StockRecord"
)

// DomainEvent is a fact recorded by an aggregate and published after commit
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
	AggregateType() string
}

// QuotationCreatedEvent is emitted when a quotation and all its reservations exist
type QuotationCreatedEvent struct {
	QuotationID    string    `json:"quotationId"`
	CustomerID     string    `json:"customerId,omitempty"`
	ReservationIDs []string  `json:"reservationIds"`
	ExpirationAt   time.Time `json:"expirationAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (e *QuotationCreatedEvent) EventType() string     { return cloudevents.QuotationCreated }
func (e *QuotationCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }
func (e *QuotationCreatedEvent) AggregateID() string   { return e.QuotationID }
func (e *QuotationCreatedEvent) AggregateType() string { return AggregateQuotation }

// QuotationApprovedEvent is emitted when a quotation is approved
type QuotationApprovedEvent struct {
	QuotationID    string    `json:"quotationId"`
	ReservationIDs []string  `json:"reservationIds"`
	ApprovedAt     time.Time `json:"approvedAt"`
}

func (e *QuotationApprovedEvent) EventType() string     { return cloudevents.QuotationApproved }
func (e *QuotationApprovedEvent) OccurredAt() time.Time { return e.ApprovedAt }
func (e *QuotationApprovedEvent) AggregateID() string   { return e.QuotationID }
func (e *QuotationApprovedEvent) AggregateType() string { return AggregateQuotation }

// QuotationRejectedEvent carries the reservations released by the rejection
type QuotationRejectedEvent struct {
	QuotationID    string    `json:"quotationId"`
	Reason         string    `json:"reason"`
	ReservationIDs []string  `json:"reservationIds"`
	RejectedAt     time.Time `json:"rejectedAt"`
}

func (e *QuotationRejectedEvent) EventType() string     { return cloudevents.QuotationRejected }
func (e *QuotationRejectedEvent) OccurredAt() time.Time { return e.RejectedAt }
func (e *QuotationRejectedEvent) AggregateID() string   { return e.QuotationID }
func (e *QuotationRejectedEvent) AggregateType() string { return AggregateQuotation }

// QuotationConvertedEvent carries the sale and the consumed reservations
type QuotationConvertedEvent struct {
	QuotationID    string    `json:"quotationId"`
	SaleID         string    `json:"saleId"`
	ReservationIDs []string  `json:"reservationIds"`
	ConvertedAt    time.Time `json:"convertedAt"`
}

func (e *QuotationConvertedEvent) EventType() string     { return cloudevents.QuotationConverted }
func (e *QuotationConvertedEvent) OccurredAt() time.Time { return e.ConvertedAt }
func (e *QuotationConvertedEvent) AggregateID() string   { return e.QuotationID }
func (e *QuotationConvertedEvent) AggregateType() string { return AggregateQuotation }

// QuotationExpiredEvent carries the reservations released by the expiry
type QuotationExpiredEvent struct {
	QuotationID    string    `json:"quotationId"`
	ReservationIDs []string  `json:"reservationIds"`
	ExpiredAt      time.Time `json:"expiredAt"`
}

func (e *QuotationExpiredEvent) EventType() string     { return cloudevents.QuotationExpired }
func (e *QuotationExpiredEvent) OccurredAt() time.Time { return e.ExpiredAt }
func (e *QuotationExpiredEvent) AggregateID() string   { return e.QuotationID }
func (e *QuotationExpiredEvent) AggregateType() string { return AggregateQuotation }

// QuotationExtendedEvent is emitted when a quotation and its reservations get a new expiry
type QuotationExtendedEvent struct {
	QuotationID    string    `json:"quotationId"`
	ReservationIDs []string  `json:"reservationIds"`
	ExpirationAt   time.Time `json:"expirationAt"`
	ExtendedAt     time.Time `json:"extendedAt"`
}

func (e *QuotationExtendedEvent) EventType() string     { return cloudevents.QuotationExtended }
func (e *QuotationExtendedEvent) OccurredAt() time.Time { return e.ExtendedAt }
func (e *QuotationExtendedEvent) AggregateID() string   { return e.QuotationID }
func (e *QuotationExtendedEvent) AggregateType() string { return AggregateQuotation }

// ReservationReleasedEvent is emitted for releases outside a quotation transition
type ReservationReleasedEvent struct {
	ReservationID string          `json:"reservationId"`
	QuotationID   string          `json:"quotationId"`
	StockRecordID string          `json:"stockRecordId"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reason        string          `json:"reason"`
	ReleasedAt    time.Time       `json:"releasedAt"`
}

func (e *ReservationReleasedEvent) EventType() string     { return cloudevents.ReservationReleased }
func (e *ReservationReleasedEvent) OccurredAt() time.Time { return e.ReleasedAt }
func (e *ReservationReleasedEvent) AggregateID() string   { return e.QuotationID }
func (e *ReservationReleasedEvent) AggregateType() string { return AggregateReservation }

// StockReceivedEvent is emitted when on-hand grows from a receipt
type StockReceivedEvent struct {
	StockRecordID string          `json:"stockRecordId"`
	ProductID     string          `json:"productId"`
	WarehouseID   string          `json:"warehouseId"`
	Quantity      decimal.Decimal `json:"quantity"`
	OnHand        decimal.Decimal `json:"onHand"`
	Reference     string          `json:"reference,omitempty"`
	ReceivedAt    time.Time       `json:"receivedAt"`
}

func (e *StockReceivedEvent) EventType() string     { return cloudevents.StockReceived }
func (e *StockReceivedEvent) OccurredAt() time.Time { return e.ReceivedAt }
func (e *StockReceivedEvent) AggregateID() string   { return e.StockRecordID }
func (e *StockReceivedEvent) AggregateType() string { return AggregateStockRecord }

// StockAdjustedEvent is emitted when on-hand is set from a count
type StockAdjustedEvent struct {
	StockRecordID  string          `json:"stockRecordId"`
	ProductID      string          `json:"productId"`
	WarehouseID    string          `json:"warehouseId"`
	PreviousOnHand decimal.Decimal `json:"previousOnHand"`
	OnHand         decimal.Decimal `json:"onHand"`
	Reason         string          `json:"reason"`
	AdjustedAt     time.Time       `json:"adjustedAt"`
}

func (e *StockAdjustedEvent) EventType() string     { return cloudevents.StockAdjusted }
func (e *StockAdjustedEvent) OccurredAt() time.Time { return e.AdjustedAt }
func (e *StockAdjustedEvent) AggregateID() string   { return e.StockRecordID }
func (e *StockAdjustedEvent) AggregateType() string { return AggregateStockRecord }
