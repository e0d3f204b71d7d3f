package application

import (
	"github.com/shopspring/decimal"

	"github.com/wms-platform/reservation-service/internal/domain"
)

// ToStockRecordDTO converts a domain StockRecord to a DTO
func ToStockRecordDTO(record *domain.StockRecord) *StockRecordDTO {
	if record == nil {
		return nil
	}
	return &StockRecordDTO{
		ID:          record.ID,
		ProductID:   record.ProductID,
		WarehouseID: record.WarehouseID,
		OnHand:      record.OnHand.String(),
		Reserved:    record.Reserved.String(),
		Available:   record.Available().String(),
		Version:     record.Version,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

// ToReservationDTO converts a domain Reservation to a DTO
func ToReservationDTO(r *domain.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:            r.ID,
		QuotationID:   r.QuotationID,
		LineNumber:    r.LineNumber,
		StockRecordID: r.StockRecordID,
		ProductID:     r.ProductID,
		WarehouseID:   r.WarehouseID,
		Quantity:      r.Quantity.String(),
		State:         string(r.State),
		ReleaseReason: r.ReleaseReason,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
		UpdatedAt:     r.UpdatedAt,
		ReleasedAt:    r.ReleasedAt,
		ConsumedAt:    r.ConsumedAt,
	}
}

// ToReservationDTOs converts a slice of reservations
func ToReservationDTOs(reservations []*domain.Reservation) []ReservationDTO {
	dtos := make([]ReservationDTO, 0, len(reservations))
	for _, r := range reservations {
		dtos = append(dtos, ToReservationDTO(r))
	}
	return dtos
}

// ToQuotationDTO converts a quotation and, when given, its reservations.
// ReservedQuantity only counts ACTIVE reservations.
func ToQuotationDTO(q *domain.Quotation, reservations []*domain.Reservation) *QuotationDTO {
	if q == nil {
		return nil
	}

	lines := make([]QuotationLineDTO, 0, len(q.Lines))
	for _, line := range q.Lines {
		lines = append(lines, QuotationLineDTO{
			LineNumber:    line.LineNumber,
			ProductID:     line.ProductID,
			WarehouseID:   line.WarehouseID,
			Quantity:      line.Quantity.String(),
			ReservationID: line.ReservationID,
		})
	}

	dto := &QuotationDTO{
		ID:              q.ID,
		CustomerID:      q.CustomerID,
		State:           string(q.State),
		ExpirationAt:    q.ExpirationAt,
		Lines:           lines,
		RejectionReason: q.RejectionReason,
		SaleID:          q.SaleID,
		Version:         q.Version,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
		ApprovedAt:      q.ApprovedAt,
		RejectedAt:      q.RejectedAt,
		ConvertedAt:     q.ConvertedAt,
		ExpiredAt:       q.ExpiredAt,
	}

	if reservations != nil {
		reserved := decimal.Zero
		for _, r := range reservations {
			if r.IsActive() {
				reserved = reserved.Add(r.Quantity)
			}
		}
		dto.ReservedQuantity = reserved.String()
		dto.Reservations = ToReservationDTOs(reservations)
	}
	return dto
}

// ToQuotationDTOs converts a page of quotations without their reservations
func ToQuotationDTOs(quotations []*domain.Quotation) []QuotationDTO {
	dtos := make([]QuotationDTO, 0, len(quotations))
	for _, q := range quotations {
		dtos = append(dtos, *ToQuotationDTO(q, nil))
	}
	return dtos
}

// ToSaleDTO converts a domain Sale to a DTO
func ToSaleDTO(s *domain.Sale) *SaleDTO {
	if s == nil {
		return nil
	}
	lines := make([]SaleLineDTO, 0, len(s.Lines))
	for _, line := range s.Lines {
		lines = append(lines, SaleLineDTO{
			LineNumber:    line.LineNumber,
			ProductID:     line.ProductID,
			WarehouseID:   line.WarehouseID,
			Quantity:      line.Quantity.String(),
			ReservationID: line.ReservationID,
		})
	}
	return &SaleDTO{
		ID:          s.ID,
		QuotationID: s.QuotationID,
		CustomerID:  s.CustomerID,
		Lines:       lines,
		CreatedAt:   s.CreatedAt,
	}
}
