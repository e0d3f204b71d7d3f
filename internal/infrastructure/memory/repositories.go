package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wms-platform/reservation-service/internal/domain"
)

type stockRecordRepository struct{ u *unitOfWork }

func (r *stockRecordRepository) LockByID(ctx context.Context, id string) (*domain.StockRecord, error) {
	if err := r.u.lock(ctx, "stock/"+id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *stockRecordRepository) FindByID(_ context.Context, id string) (*domain.StockRecord, error) {
	var (
		record *domain.StockRecord
		ok     bool
	)
	r.u.read(func() { record, ok = r.u.stock.get(id) })
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStockRecordNotFound, id)
	}
	return record, nil
}

func (r *stockRecordRepository) Insert(ctx context.Context, record *domain.StockRecord) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := r.u.lock(ctx, "stock/"+record.ID); err != nil {
		return err
	}
	var err error
	r.u.read(func() { err = r.u.stock.insert(record.ID, record) })
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConcurrentModification, err)
	}
	return nil
}

func (r *stockRecordRepository) Save(_ context.Context, record *domain.StockRecord) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	var err error
	r.u.read(func() { err = r.u.stock.save(record.ID, record) })
	return err
}

type reservationRepository struct{ u *unitOfWork }

func (r *reservationRepository) LockByID(ctx context.Context, id string) (*domain.Reservation, error) {
	if err := r.u.lock(ctx, "reservation/"+id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *reservationRepository) FindByID(_ context.Context, id string) (*domain.Reservation, error) {
	var (
		reservation *domain.Reservation
		ok          bool
	)
	r.u.read(func() { reservation, ok = r.u.reservations.get(id) })
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrReservationNotFound, id)
	}
	return reservation, nil
}

func (r *reservationRepository) FindByIDs(_ context.Context, ids []string) ([]*domain.Reservation, error) {
	out := make([]*domain.Reservation, 0, len(ids))
	r.u.read(func() {
		for _, id := range ids {
			if reservation, ok := r.u.reservations.get(id); ok {
				out = append(out, reservation)
			}
		}
	})
	return out, nil
}

func (r *reservationRepository) FindByQuotation(_ context.Context, quotationID string) ([]*domain.Reservation, error) {
	var out []*domain.Reservation
	r.u.read(func() {
		for _, reservation := range r.u.reservations.all() {
			if reservation.QuotationID == quotationID {
				out = append(out, reservation)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	return out, nil
}

func (r *reservationRepository) FindExpiredActive(_ context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	var out []*domain.Reservation
	r.u.read(func() {
		for _, reservation := range r.u.reservations.all() {
			if reservation.IsExpired(now) {
				out = append(out, reservation)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *reservationRepository) Insert(ctx context.Context, reservation *domain.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := r.u.lock(ctx, "reservation/"+reservation.ID); err != nil {
		return err
	}
	var err error
	r.u.read(func() { err = r.u.reservations.insert(reservation.ID, reservation) })
	return err
}

func (r *reservationRepository) Save(_ context.Context, reservation *domain.Reservation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	var err error
	r.u.read(func() { err = r.u.reservations.save(reservation.ID, reservation) })
	return err
}

type quotationRepository struct{ u *unitOfWork }

func (r *quotationRepository) LockByID(ctx context.Context, id string) (*domain.Quotation, error) {
	if err := r.u.lock(ctx, "quotation/"+id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *quotationRepository) FindByID(_ context.Context, id string) (*domain.Quotation, error) {
	var (
		quotation *domain.Quotation
		ok        bool
	)
	r.u.read(func() { quotation, ok = r.u.quotations.get(id) })
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuotationNotFound, id)
	}
	return quotation, nil
}

func (r *quotationRepository) List(_ context.Context, filter domain.QuotationFilter) ([]*domain.Quotation, error) {
	var out []*domain.Quotation
	r.u.read(func() {
		for _, quotation := range r.u.quotations.all() {
			if filter.State == "" || quotation.State == filter.State {
				out = append(out, quotation)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (r *quotationRepository) FindExpirable(_ context.Context, now time.Time, limit int) ([]*domain.Quotation, error) {
	var out []*domain.Quotation
	r.u.read(func() {
		for _, quotation := range r.u.quotations.all() {
			if !quotation.State.IsTerminal() && quotation.IsExpired(now) {
				out = append(out, quotation)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpirationAt.Before(out[j].ExpirationAt) })
	return page(out, 0, limit), nil
}

func (r *quotationRepository) Insert(ctx context.Context, quotation *domain.Quotation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if err := r.u.lock(ctx, "quotation/"+quotation.ID); err != nil {
		return err
	}
	var err error
	r.u.read(func() { err = r.u.quotations.insert(quotation.ID, quotation) })
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrQuotationExists, quotation.ID)
	}
	return nil
}

func (r *quotationRepository) Save(_ context.Context, quotation *domain.Quotation) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	var err error
	r.u.read(func() { err = r.u.quotations.save(quotation.ID, quotation) })
	return err
}

type saleRepository struct{ u *unitOfWork }

func (r *saleRepository) FindByID(_ context.Context, id string) (*domain.Sale, error) {
	var (
		sale *domain.Sale
		ok   bool
	)
	r.u.read(func() { sale, ok = r.u.sales.get(id) })
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSaleNotFound, id)
	}
	return sale, nil
}

func (r *saleRepository) Insert(_ context.Context, sale *domain.Sale) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	var err error
	r.u.read(func() { err = r.u.sales.insert(sale.ID, sale) })
	return err
}

func page[T any](rows []*T, offset, limit int) []*T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
