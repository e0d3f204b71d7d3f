package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleLine is a consumed quotation line
type SaleLine struct {
	LineNumber    int
	ProductID     string
	WarehouseID   string
	Quantity      decimal.Decimal
	ReservationID string
}

// Sale is the confirmed sale produced by converting a quotation
type Sale struct {
	ID          string
	QuotationID string
	CustomerID  string
	Lines       []SaleLine
	CreatedAt   time.Time
}

// NewSale copies the quotation lines into a new sale
func NewSale(q *Quotation, now time.Time) *Sale {
	lines := make([]SaleLine, len(q.Lines))
	for i, line := range q.Lines {
		lines[i] = SaleLine{
			LineNumber:    line.LineNumber,
			ProductID:     line.ProductID,
			WarehouseID:   line.WarehouseID,
			Quantity:      line.Quantity,
			ReservationID: line.ReservationID,
		}
	}
	return &Sale{
		ID:          "SALE-" + uuid.New().String(),
		QuotationID: q.ID,
		CustomerID:  q.CustomerID,
		Lines:       lines,
		CreatedAt:   now,
	}
}
