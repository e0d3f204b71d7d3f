package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wms-platform/reservation-service/internal/domain"
	pkgmongo "github.com/wms-platform/reservation-service/pkg/mongodb"
)

// Collection names
const (
	StockRecordsCollection = "stock_records"
	ReservationsCollection = "reservations"
	QuotationsCollection   = "quotations"
	SalesCollection        = "sales"
	OutboxCollection       = "outbox_events"
)

// lockSeq is bumped by LockByID only. Writing it inside a transaction takes
// the document's write lock until commit.
type stockRecordDocument struct {
	ID          string               `bson:"_id"`
	ProductID   string               `bson:"productId"`
	WarehouseID string               `bson:"warehouseId"`
	OnHand      primitive.Decimal128 `bson:"onHand"`
	Reserved    primitive.Decimal128 `bson:"reserved"`
	Version     int64                `bson:"version"`
	LockSeq     int64                `bson:"lockSeq,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

func toStockRecordDocument(r *domain.StockRecord) (*stockRecordDocument, error) {
	onHand, err := pkgmongo.ToDecimal128(r.OnHand)
	if err != nil {
		return nil, err
	}
	reserved, err := pkgmongo.ToDecimal128(r.Reserved)
	if err != nil {
		return nil, err
	}
	return &stockRecordDocument{
		ID:          r.ID,
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		OnHand:      onHand,
		Reserved:    reserved,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func (d *stockRecordDocument) toDomain() (*domain.StockRecord, error) {
	onHand, err := pkgmongo.FromDecimal128(d.OnHand)
	if err != nil {
		return nil, err
	}
	reserved, err := pkgmongo.FromDecimal128(d.Reserved)
	if err != nil {
		return nil, err
	}
	return &domain.StockRecord{
		ID:          d.ID,
		ProductID:   d.ProductID,
		WarehouseID: d.WarehouseID,
		OnHand:      onHand,
		Reserved:    reserved,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

type reservationDocument struct {
	ID            string               `bson:"_id"`
	QuotationID   string               `bson:"quotationId"`
	LineNumber    int                  `bson:"lineNumber"`
	StockRecordID string               `bson:"stockRecordId"`
	ProductID     string               `bson:"productId"`
	WarehouseID   string               `bson:"warehouseId"`
	Quantity      primitive.Decimal128 `bson:"quantity"`
	State         string               `bson:"state"`
	ReleaseReason string               `bson:"releaseReason,omitempty"`
	Version       int64                `bson:"version"`
	LockSeq       int64                `bson:"lockSeq,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt"`
	ExpiresAt     time.Time            `bson:"expiresAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
	ReleasedAt    *time.Time           `bson:"releasedAt,omitempty"`
	ConsumedAt    *time.Time           `bson:"consumedAt,omitempty"`
}

func toReservationDocument(r *domain.Reservation) (*reservationDocument, error) {
	quantity, err := pkgmongo.ToDecimal128(r.Quantity)
	if err != nil {
		return nil, err
	}
	return &reservationDocument{
		ID:            r.ID,
		QuotationID:   r.QuotationID,
		LineNumber:    r.LineNumber,
		StockRecordID: r.StockRecordID,
		ProductID:     r.ProductID,
		WarehouseID:   r.WarehouseID,
		Quantity:      quantity,
		State:         string(r.State),
		ReleaseReason: r.ReleaseReason,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
		UpdatedAt:     r.UpdatedAt,
		ReleasedAt:    r.ReleasedAt,
		ConsumedAt:    r.ConsumedAt,
	}, nil
}

func (d *reservationDocument) toDomain() (*domain.Reservation, error) {
	quantity, err := pkgmongo.FromDecimal128(d.Quantity)
	if err != nil {
		return nil, err
	}
	return &domain.Reservation{
		ID:            d.ID,
		QuotationID:   d.QuotationID,
		LineNumber:    d.LineNumber,
		StockRecordID: d.StockRecordID,
		ProductID:     d.ProductID,
		WarehouseID:   d.WarehouseID,
		Quantity:      quantity,
		State:         domain.ReservationState(d.State),
		ReleaseReason: d.ReleaseReason,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		ExpiresAt:     d.ExpiresAt,
		UpdatedAt:     d.UpdatedAt,
		ReleasedAt:    d.ReleasedAt,
		ConsumedAt:    d.ConsumedAt,
	}, nil
}

type lineDocument struct {
	LineNumber    int                  `bson:"lineNumber"`
	ProductID     string               `bson:"productId"`
	WarehouseID   string               `bson:"warehouseId"`
	Quantity      primitive.Decimal128 `bson:"quantity"`
	ReservationID string               `bson:"reservationId,omitempty"`
}

type quotationDocument struct {
	ID              string         `bson:"_id"`
	CustomerID      string         `bson:"customerId,omitempty"`
	State           string         `bson:"state"`
	ExpirationAt    time.Time      `bson:"expirationAt"`
	Lines           []lineDocument `bson:"lines"`
	RejectionReason string         `bson:"rejectionReason,omitempty"`
	SaleID          string         `bson:"saleId,omitempty"`
	Version         int64          `bson:"version"`
	LockSeq         int64          `bson:"lockSeq,omitempty"`
	CreatedAt       time.Time      `bson:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt"`
	ApprovedAt      *time.Time     `bson:"approvedAt,omitempty"`
	RejectedAt      *time.Time     `bson:"rejectedAt,omitempty"`
	ConvertedAt     *time.Time     `bson:"convertedAt,omitempty"`
	ExpiredAt       *time.Time     `bson:"expiredAt,omitempty"`
}

func toQuotationDocument(q *domain.Quotation) (*quotationDocument, error) {
	lines := make([]lineDocument, 0, len(q.Lines))
	for _, l := range q.Lines {
		quantity, err := pkgmongo.ToDecimal128(l.Quantity)
		if err != nil {
			return nil, err
		}
		lines = append(lines, lineDocument{
			LineNumber:    l.LineNumber,
			ProductID:     l.ProductID,
			WarehouseID:   l.WarehouseID,
			Quantity:      quantity,
			ReservationID: l.ReservationID,
		})
	}
	return &quotationDocument{
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
	}, nil
}

func (d *quotationDocument) toDomain() (*domain.Quotation, error) {
	lines := make([]domain.QuotationLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		quantity, err := pkgmongo.FromDecimal128(l.Quantity)
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.QuotationLine{
			LineNumber:    l.LineNumber,
			ProductID:     l.ProductID,
			WarehouseID:   l.WarehouseID,
			Quantity:      quantity,
			ReservationID: l.ReservationID,
		})
	}
	return &domain.Quotation{
		ID:              d.ID,
		CustomerID:      d.CustomerID,
		State:           domain.QuotationState(d.State),
		ExpirationAt:    d.ExpirationAt,
		Lines:           lines,
		RejectionReason: d.RejectionReason,
		SaleID:          d.SaleID,
		Version:         d.Version,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		ApprovedAt:      d.ApprovedAt,
		RejectedAt:      d.RejectedAt,
		ConvertedAt:     d.ConvertedAt,
		ExpiredAt:       d.ExpiredAt,
	}, nil
}

type saleDocument struct {
	ID          string         `bson:"_id"`
	QuotationID string         `bson:"quotationId"`
	CustomerID  string         `bson:"customerId,omitempty"`
	Lines       []lineDocument `bson:"lines"`
	CreatedAt   time.Time      `bson:"createdAt"`
}

func toSaleDocument(s *domain.Sale) (*saleDocument, error) {
	lines := make([]lineDocument, 0, len(s.Lines))
	for _, l := range s.Lines {
		quantity, err := pkgmongo.ToDecimal128(l.Quantity)
		if err != nil {
			return nil, err
		}
		lines = append(lines, lineDocument{
			LineNumber:    l.LineNumber,
			ProductID:     l.ProductID,
			WarehouseID:   l.WarehouseID,
			Quantity:      quantity,
			ReservationID: l.ReservationID,
		})
	}
	return &saleDocument{
		ID:          s.ID,
		QuotationID: s.QuotationID,
		CustomerID:  s.CustomerID,
		Lines:       lines,
		CreatedAt:   s.CreatedAt,
	}, nil
}

func (d *saleDocument) toDomain() (*domain.Sale, error) {
	lines := make([]domain.SaleLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		quantity, err := pkgmongo.FromDecimal128(l.Quantity)
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.SaleLine{
			LineNumber:    l.LineNumber,
			ProductID:     l.ProductID,
			WarehouseID:   l.WarehouseID,
			Quantity:      quantity,
			ReservationID: l.ReservationID,
		})
	}
	return &domain.Sale{
		ID:          d.ID,
		QuotationID: d.QuotationID,
		CustomerID:  d.CustomerID,
		Lines:       lines,
		CreatedAt:   d.CreatedAt,
	}, nil
}
