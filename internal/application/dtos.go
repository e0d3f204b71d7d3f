package application

import "time"

// StockRecordDTO represents a stock record in responses
type StockRecordDTO struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId"`
	WarehouseID string    `json:"warehouseId"`
	OnHand      string    `json:"onHand"`
	Reserved    string    `json:"reserved"`
	Available   string    `json:"available"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ReservationDTO represents a reservation in responses
type ReservationDTO struct {
	ID            string     `json:"id"`
	QuotationID   string     `json:"quotationId"`
	LineNumber    int        `json:"lineNumber"`
	StockRecordID string     `json:"stockRecordId"`
	ProductID     string     `json:"productId"`
	WarehouseID   string     `json:"warehouseId"`
	Quantity      string     `json:"quantity"`
	State         string     `json:"state"`
	ReleaseReason string     `json:"releaseReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ReleasedAt    *time.Time `json:"releasedAt,omitempty"`
	ConsumedAt    *time.Time `json:"consumedAt,omitempty"`
}

// QuotationLineDTO represents a quotation line in responses
type QuotationLineDTO struct {
	LineNumber    int    `json:"lineNumber"`
	ProductID     string `json:"productId"`
	WarehouseID   string `json:"warehouseId"`
	Quantity      string `json:"quantity"`
	ReservationID string `json:"reservationId,omitempty"`
}

// QuotationDTO represents a quotation in responses
type QuotationDTO struct {
	ID               string             `json:"id"`
	CustomerID       string             `json:"customerId,omitempty"`
	State            string             `json:"state"`
	ExpirationAt     time.Time          `json:"expirationAt"`
	Lines            []QuotationLineDTO `json:"lines"`
	RejectionReason  string             `json:"rejectionReason,omitempty"`
	SaleID           string             `json:"saleId,omitempty"`
	ReservedQuantity string             `json:"reservedQuantity,omitempty"`
	Reservations     []ReservationDTO   `json:"reservations,omitempty"`
	Version          int64              `json:"version"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
	ApprovedAt       *time.Time         `json:"approvedAt,omitempty"`
	RejectedAt       *time.Time         `json:"rejectedAt,omitempty"`
	ConvertedAt      *time.Time         `json:"convertedAt,omitempty"`
	ExpiredAt        *time.Time         `json:"expiredAt,omitempty"`
}

// SaleLineDTO represents a sale line in responses
type SaleLineDTO struct {
	LineNumber    int    `json:"lineNumber"`
	ProductID     string `json:"productId"`
	WarehouseID   string `json:"warehouseId"`
	Quantity      string `json:"quantity"`
	ReservationID string `json:"reservationId"`
}

// SaleDTO represents a sale in responses
type SaleDTO struct {
	ID          string        `json:"id"`
	QuotationID string        `json:"quotationId"`
	CustomerID  string        `json:"customerId,omitempty"`
	Lines       []SaleLineDTO `json:"lines"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// ConversionResultDTO is the outcome of a successful conversion
type ConversionResultDTO struct {
	Quotation QuotationDTO `json:"quotation"`
	Sale      SaleDTO      `json:"sale"`
}

// ReleaseResultDTO is the outcome of a single release. Released is false when
// the reservation was already terminal.
type ReleaseResultDTO struct {
	Reservation ReservationDTO `json:"reservation"`
	Released    bool           `json:"released"`
}

// BulkReleaseResult partitions the requested reservation ids by outcome
type BulkReleaseResult struct {
	Released        []string          `json:"released"`
	AlreadyTerminal []string          `json:"alreadyTerminal"`
	NotFound        []string          `json:"notFound"`
	Failed          map[string]string `json:"failed,omitempty"`
}

// SweepResult summarises one expiration sweep
type SweepResult struct {
	Trigger         string            `json:"trigger"`
	Expired         []string          `json:"expired"`
	Skipped         []string          `json:"skipped"`
	OrphansReleased []string          `json:"orphansReleased"`
	Failed          map[string]string `json:"failed,omitempty"`
	StartedAt       time.Time         `json:"startedAt"`
	Duration        time.Duration     `json:"duration"`
}
