package domain

import "errors"

// Errors
var (
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidReservationState = errors.New("invalid reservation state")
	ErrInvalidStateTransition  = errors.New("invalid state transition")
	ErrConcurrentModification  = errors.New("concurrent modification")
	ErrQuotationNotFound       = errors.New("quotation not found")
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrStockRecordNotFound     = errors.New("stock record not found")
	ErrSaleNotFound            = errors.New("sale not found")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidExpiration       = errors.New("invalid expiration")
	ErrQuotationExists         = errors.New("quotation already exists")
	ErrEmptyQuotation          = errors.New("quotation has no lines")
	ErrInvalidQuotation        = errors.New("invalid quotation")
	ErrBelowReserved           = errors.New("on-hand cannot drop below reserved quantity")
)
