package memory

import (
	"time"

	"github.com/wms-platform/reservation-service/internal/domain"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStockRecord(r *domain.StockRecord) *domain.StockRecord {
	c := *r
	c.DomainEvents = nil
	return &c
}

func cloneReservation(r *domain.Reservation) *domain.Reservation {
	c := *r
	c.ReleasedAt = cloneTime(r.ReleasedAt)
	c.ConsumedAt = cloneTime(r.ConsumedAt)
	return &c
}

func cloneQuotation(q *domain.Quotation) *domain.Quotation {
	c := *q
	c.Lines = append([]domain.QuotationLine(nil), q.Lines...)
	c.ApprovedAt = cloneTime(q.ApprovedAt)
	c.RejectedAt = cloneTime(q.RejectedAt)
	c.ConvertedAt = cloneTime(q.ConvertedAt)
	c.ExpiredAt = cloneTime(q.ExpiredAt)
	c.DomainEvents = nil
	return &c
}

func cloneSale(s *domain.Sale) *domain.Sale {
	c := *s
	c.Lines = append([]domain.SaleLine(nil), s.Lines...)
	return &c
}
