package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuotationLineCommand is one requested line of a new quotation
type QuotationLineCommand struct {
	ProductID   string
	WarehouseID string
	Quantity    decimal.Decimal
}

// CreateQuotationCommand represents the command to create a quotation and reserve its lines
type CreateQuotationCommand struct {
	QuotationID  string
	CustomerID   string
	Lines        []QuotationLineCommand
	ExpirationAt *time.Time
	ValidityDays int
}

// ApproveQuotationCommand represents the command to approve a quotation
type ApproveQuotationCommand struct {
	QuotationID string
}

// RejectQuotationCommand represents the command to reject a quotation
type RejectQuotationCommand struct {
	QuotationID string
	Reason      string
}

// ExtendQuotationCommand moves the expiration of a quotation and its reservations.
// ExpirationAt wins over Days when both are set.
type ExtendQuotationCommand struct {
	QuotationID  string
	Days         int
	ExpirationAt *time.Time
}

// ConvertQuotationCommand represents the command to convert a quotation into a sale
type ConvertQuotationCommand struct {
	QuotationID string
}

// GetQuotationQuery represents the query to get a quotation by ID
type GetQuotationQuery struct {
	QuotationID string
}

// ListQuotationsQuery represents the query to list quotations
type ListQuotationsQuery struct {
	State  string
	Limit  int
	Offset int
}

// GetReservationQuery represents the query to get a reservation by ID
type GetReservationQuery struct {
	ReservationID string
}

// ListReservationsQuery lists the reservations held for a quotation
type ListReservationsQuery struct {
	QuotationID string
}

// ReleaseReservationCommand represents the command to release one reservation
type ReleaseReservationCommand struct {
	ReservationID string
	Reason        string
}

// ExtendReservationCommand moves the expiry of one reservation
type ExtendReservationCommand struct {
	ReservationID string
	Days          int
	ExpiresAt     *time.Time
}

// BulkReleaseCommand releases many reservations, each stock record in its own transaction
type BulkReleaseCommand struct {
	ReservationIDs []string
	Reason         string
}

// ReceiveStockCommand represents the command to receive stock into a warehouse
type ReceiveStockCommand struct {
	ProductID   string
	WarehouseID string
	Quantity    decimal.Decimal
	Reference   string
}

// AdjustStockCommand sets on-hand from a physical count
type AdjustStockCommand struct {
	ProductID     string
	WarehouseID   string
	CountedOnHand decimal.Decimal
	Reason        string
}

// GetStockQuery represents the query to get one stock record
type GetStockQuery struct {
	ProductID   string
	WarehouseID string
}

// GetSaleQuery represents the query to get a sale by ID
type GetSaleQuery struct {
	SaleID string
}
