package application

import (
	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/errors"
)

// ErrorMappings surfaces domain sentinels as API errors. Order matters: the
// first target matched by errors.Is wins.
func ErrorMappings() []errors.Mapping {
	message := func(err error) string { return err.Error() }

	return []errors.Mapping{
		{Target: domain.ErrConcurrentModification, Build: func(err error) *errors.AppError {
			return errors.ErrConcurrentModification("resource is locked by another operation, retry")
		}},
		{Target: domain.ErrInsufficientStock, Build: func(err error) *errors.AppError {
			return errors.ErrInsufficientStock(message(err))
		}},
		{Target: domain.ErrInvalidReservationState, Build: func(err error) *errors.AppError {
			return errors.ErrInvalidReservationState(message(err))
		}},
		{Target: domain.ErrInvalidStateTransition, Build: func(err error) *errors.AppError {
			return errors.ErrInvalidStateTransition(message(err))
		}},
		{Target: domain.ErrQuotationNotFound, Build: func(error) *errors.AppError {
			return errors.ErrNotFound("quotation")
		}},
		{Target: domain.ErrReservationNotFound, Build: func(error) *errors.AppError {
			return errors.ErrNotFound("reservation")
		}},
		{Target: domain.ErrStockRecordNotFound, Build: func(error) *errors.AppError {
			return errors.ErrNotFound("stock record")
		}},
		{Target: domain.ErrSaleNotFound, Build: func(error) *errors.AppError {
			return errors.ErrNotFound("sale")
		}},
		{Target: domain.ErrQuotationExists, Build: func(err error) *errors.AppError {
			return errors.ErrConflict(message(err))
		}},
		{Target: domain.ErrBelowReserved, Build: func(err error) *errors.AppError {
			return errors.ErrConflict(message(err))
		}},
		{Target: domain.ErrInvalidQuantity, Build: func(err error) *errors.AppError {
			return errors.ErrValidation(message(err))
		}},
		{Target: domain.ErrInvalidExpiration, Build: func(err error) *errors.AppError {
			return errors.ErrValidation(message(err))
		}},
		{Target: domain.ErrEmptyQuotation, Build: func(err error) *errors.AppError {
			return errors.ErrValidation(message(err))
		}},
		{Target: domain.ErrInvalidQuotation, Build: func(err error) *errors.AppError {
			return errors.ErrValidation(message(err))
		}},
	}
}
