package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/reservation-service/internal/domain"
	pkgmongo "github.com/wms-platform/reservation-service/pkg/mongodb"
)

// lockUpdate takes the document write lock for the rest of the transaction
var lockUpdate = bson.M{"$inc": bson.M{"lockSeq": 1}}

func lockOptions() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// versionedSet builds a $set of every field but _id and lockSeq, stamping the next version
func versionedSet(doc interface{}, next int64) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	delete(fields, "_id")
	delete(fields, "lockSeq")
	fields["version"] = next
	return bson.M{"$set": fields}, nil
}

// saveVersioned replaces the mutable fields when the stored version still matches
func saveVersioned(ctx context.Context, coll *pkgmongo.InstrumentedCollection, id string, version int64, doc interface{}) error {
	update, err := versionedSet(doc, version+1)
	if err != nil {
		return err
	}
	result, err := coll.UpdateOne(ctx, bson.M{"_id": id, "version": version}, update)
	if err != nil {
		return fmt.Errorf("failed to save %s %s: %w", coll.Name(), id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s %s changed since version %d", domain.ErrConcurrentModification, coll.Name(), id, version)
	}
	return nil
}

func notFound(err error, sentinel error, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return err
}

type stockRecordRepository struct {
	coll *pkgmongo.InstrumentedCollection
	uow  *unitOfWork
}

func (r *stockRecordRepository) LockByID(ctx context.Context, id string) (*domain.StockRecord, error) {
	if r.uow.readOnly {
		return r.FindByID(ctx, id)
	}
	var doc stockRecordDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, lockUpdate, lockOptions()).Decode(&doc); err != nil {
		return nil, notFound(err, domain.ErrStockRecordNotFound, id)
	}
	return doc.toDomain()
}

func (r *stockRecordRepository) FindByID(ctx context.Context, id string) (*domain.StockRecord, error) {
	var doc stockRecordDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, domain.ErrStockRecordNotFound, id)
	}
	return doc.toDomain()
}

func (r *stockRecordRepository) Insert(ctx context.Context, record *domain.StockRecord) error {
	if err := r.uow.writable(); err != nil {
		return err
	}
	doc, err := toStockRecordDocument(record)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: stock record %s already exists", domain.ErrConcurrentModification, record.ID)
		}
		return fmt.Errorf("failed to insert stock record %s: %w", record.ID, err)
	}
	return nil
}

func (r *stockRecordRepository) Save(ctx context.Context, record *domain.StockRecord) error {
	if err := r.uow.writable(); err != nil {
		return err
	}
	doc, err := toStockRecordDocument(record)
	if err != nil {
		return err
	}
	if err := saveVersioned(ctx, r.coll, record.ID, record.Version, doc); err != nil {
		return err
	}
	record.Version++
	return nil
}

type reservationRepository struct {
	coll *pkgmongo.InstrumentedCollection
	uow  *unitOfWork
}

func (r *reservationRepository) LockByID(ctx context.Context, id string) (*domain.Reservation, error) {
	if r.uow.readOnly {
		return r.FindByID(ctx, id)
	}
	var doc reservationDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, lockUpdate, lockOptions()).Decode(&doc); err != nil {
		return nil, notFound(err, domain.ErrReservationNotFound, id)
	}
	return doc.toDomain()
}

func (r *reservationRepository) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	var doc reservationDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, domain.ErrReservationNotFound, id)
	}
	return doc.toDomain()
}

func (r *reservationRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Reservation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(pkgmongo.SortAscending("_id")))
}

func (r *reservationRepository) FindByQuotation(ctx context.Context, quotationID string) ([]*domain.Reservation, error) {
	return r.find(ctx, bson.M{"quotationId": quotationID}, options.Find().SetSort(pkgmongo.SortAscending("lineNumber")))
}

func (r *reservationRepository) FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]*domain.Reservation, error) {
	filter := bson.M{
		"state":     string(domain.ReservationActive),
		"expiresAt": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(pkgmongo.SortAscending("expiresAt"))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *reservationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Reservation, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reservationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	out := make([]*domain.Reservation, 0, len(docs))
	for i := range docs {
		reservation, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, reservation)
	}
	return out, nil
}

func (r *reservationRepository) Insert(ctx context.Context, reservation *domain.Reservation) error {
	if err := r.uow.writable(); err != nil {
		return err
	}
	doc, err := toReservationDocument(reservation)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert reservation %s: %w", reservation.ID, err)
	}
	return nil
}

func (r *reservationRepository) Save(ctx context.Context, reservation *domain.Reservation) error {
	if err := r.uow.writable(); err != nil {
		return err
	}
	doc, err := toReservationDocument(reservation)
	if err != nil {
		return err
	}
	if err := saveVersioned(ctx, r.coll, reservation.ID, reservation.Version, doc); err != nil {
		return err
	}
	reservation.Version++
	return nil
}

type quotationRepository struct {
	coll *pkgmongo.InstrumentedCollection
	uow  *unitOfWork
}

func (r *quotationRepository) LockByID(ctx context.Context, id string) (*domain.Quotation, error) {
	if r.uow.readOnly {
		return r.FindByID(ctx, id)
	}
	var doc quotationDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, lockUpdate, lockOptions()).Decode(&doc); err != nil {
		return nil, notFound(err, domain.ErrQuotationNotFound, id)
	}
	return doc.toDomain()
}

func (r *quotationRepository) FindByID(ctx context.Context, id string) (*domain.Quotation, error) {
	var doc quotationDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, domain.ErrQuotationNotFound, id)
	}
	return doc.toDomain()
}

func (r *quotationRepository) List(ctx context.Context, filter domain.QuotationFilter) ([]*domain.Quotation, error) {
	query := bson.M{}
	if filter.State != "" {
		query["state"] = string(filter.State)
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return r.find(ctx, query, opts)
}

func (r *quotationRepository) FindExpirable(ctx context.Context, now time.Time, limit int) ([]*domain.Quotation, error) {
	filter := bson.M{
		"state":        bson.M{"$in": bson.A{string(domain.QuotationPending), string(domain.QuotationApproved)}},
		"expirationAt": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(pkgmongo.SortAscending("expirationAt"))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *quotationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Quotation, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []quotationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode quotations: %w", err)
	}
	out := make([]*domain.Quotation, 0, len(docs))
	for i := range docs {
		quotation, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, quotation)
	}
	return out, nil
}

func (r *quotationRepository) Insert(ctx context.Context, quotation *domain.Quotation) error {
	if err := r.uow.writable(); err != nil {
		return err
	}
	doc, err := toQuotationDocument(quotation)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", domain.ErrQuotationExists, quotation.ID)
		}
		return fmt.Errorf("failed to insert quotation %s: %w", quotation.ID, err)
	}
	return nil
}

func (r *quotationRepository) Save(ctx context.Context, quotation *domain.Quotation) error {
	if err := r.uow.writable(); err != nil {
		return err
	}
	doc, err := toQuotationDocument(quotation)
	if err != nil {
		return err
	}
	if err := saveVersioned(ctx, r.coll, quotation.ID, quotation.Version, doc); err != nil {
		return err
	}
	quotation.Version++
	return nil
}

type saleRepository struct {
	coll *pkgmongo.InstrumentedCollection
	uow  *unitOfWork
}

func (r *saleRepository) FindByID(ctx context.Context, id string) (*domain.Sale, error) {
	var doc saleDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err, domain.ErrSaleNotFound, id)
	}
	return doc.toDomain()
}

func (r *saleRepository) Insert(ctx context.Context, sale *domain.Sale) error {
	if err := r.uow.writable(); err != nil {
		return err
	}
	doc, err := toSaleDocument(sale)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert sale %s: %w", sale.ID, err)
	}
	return nil
}
