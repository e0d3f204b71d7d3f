package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/reservation-service/internal/application"
	"github.com/wms-platform/reservation-service/pkg/errors"
)

// ReceiveStockRequest is the body of POST /stock
type ReceiveStockRequest struct {
	ProductID   string `json:"productId" binding:"required,product_id"`
	WarehouseID string `json:"warehouseId" binding:"required,warehouse_id"`
	Quantity    string `json:"quantity" binding:"required,quantity"`
	Reference   string `json:"reference" binding:"max=128"`
}

// AdjustStockRequest is the body of POST /stock/adjust
type AdjustStockRequest struct {
	ProductID     string `json:"productId" binding:"required,product_id"`
	WarehouseID   string `json:"warehouseId" binding:"required,warehouse_id"`
	CountedOnHand string `json:"countedOnHand" binding:"required,numeric"`
	Reason        string `json:"reason" binding:"required,max=256"`
}

// QuotationLineRequest is one line of CreateQuotationRequest
type QuotationLineRequest struct {
	ProductID   string `json:"productId" binding:"required,product_id"`
	WarehouseID string `json:"warehouseId" binding:"required,warehouse_id"`
	Quantity    string `json:"quantity" binding:"required,quantity"`
}

// CreateQuotationRequest is the body of POST /quotations
type CreateQuotationRequest struct {
	QuotationID  string                 `json:"quotationId" binding:"omitempty,max=64"`
	CustomerID   string                 `json:"customerId" binding:"required,max=64"`
	Lines        []QuotationLineRequest `json:"lines" binding:"required,min=1,max=200,dive"`
	ExpirationAt *time.Time             `json:"expirationAt"`
	ValidityDays int                    `json:"validityDays" binding:"omitempty,min=1,max=365"`
}

// RejectQuotationRequest is the body of POST /quotations/:id/reject
type RejectQuotationRequest struct {
	Reason string `json:"reason" binding:"required,max=256"`
}

// ExtendRequest is the body of the quotation and reservation extend endpoints.
// One of days or the absolute time is required.
type ExtendRequest struct {
	Days         int        `json:"days" binding:"omitempty,min=1,max=365"`
	ExpirationAt *time.Time `json:"expirationAt"`
}

// ReleaseReservationRequest is the optional body of POST /reservations/:id/release
type ReleaseReservationRequest struct {
	Reason string `json:"reason" binding:"max=64"`
}

// BulkReleaseRequest is the body of POST /reservations/release
type BulkReleaseRequest struct {
	ReservationIDs []string `json:"reservationIds" binding:"required,min=1,max=500,dive,required"`
	Reason         string   `json:"reason" binding:"max=64"`
}

func parseQuantity(field, value string) (decimal.Decimal, *errors.AppError) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, errors.ErrValidation("validation failed").WithDetail(field, "must be a decimal")
	}
	return d, nil
}

func (r ReceiveStockRequest) toCommand() (application.ReceiveStockCommand, *errors.AppError) {
	q, appErr := parseQuantity("quantity", r.Quantity)
	if appErr != nil {
		return application.ReceiveStockCommand{}, appErr
	}
	return application.ReceiveStockCommand{
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		Quantity:    q,
		Reference:   r.Reference,
	}, nil
}

func (r AdjustStockRequest) toCommand() (application.AdjustStockCommand, *errors.AppError) {
	q, appErr := parseQuantity("countedOnHand", r.CountedOnHand)
	if appErr != nil {
		return application.AdjustStockCommand{}, appErr
	}
	return application.AdjustStockCommand{
		ProductID:     r.ProductID,
		WarehouseID:   r.WarehouseID,
		CountedOnHand: q,
		Reason:        r.Reason,
	}, nil
}

func (r CreateQuotationRequest) toCommand() (application.CreateQuotationCommand, *errors.AppError) {
	lines := make([]application.QuotationLineCommand, 0, len(r.Lines))
	for _, l := range r.Lines {
		q, appErr := parseQuantity("quantity", l.Quantity)
		if appErr != nil {
			return application.CreateQuotationCommand{}, appErr
		}
		lines = append(lines, application.QuotationLineCommand{
			ProductID:   l.ProductID,
			WarehouseID: l.WarehouseID,
			Quantity:    q,
		})
	}
	return application.CreateQuotationCommand{
		QuotationID:  r.QuotationID,
		CustomerID:   r.CustomerID,
		Lines:        lines,
		ExpirationAt: r.ExpirationAt,
		ValidityDays: r.ValidityDays,
	}, nil
}

func (r ExtendRequest) validate() *errors.AppError {
	if r.Days == 0 && r.ExpirationAt == nil {
		return errors.ErrValidation("validation failed").WithDetail("days", "days or expirationAt is required")
	}
	return nil
}
