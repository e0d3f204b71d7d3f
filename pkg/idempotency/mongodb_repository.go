package idempotency

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	pkgmongo "github.com/wms-platform/reservation-service/pkg/mongodb"
)

// KeysCollection holds the REST idempotency keys
const KeysCollection = "idempotency_keys"

// MongoKeyRepository implements KeyRepository on MongoDB. Expired keys are
// removed by a TTL index on expiresAt.
type MongoKeyRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewMongoKeyRepository creates a new MongoDB-backed key repository
func NewMongoKeyRepository(collection *pkgmongo.InstrumentedCollection) *MongoKeyRepository {
	return &MongoKeyRepository{collection: collection}
}

// AcquireLock implements KeyRepository
func (r *MongoKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey, staleAfter time.Duration) (*IdempotencyKey, bool, error) {
	now := pkgmongo.Now()

	filter := bson.M{"_id": key.ID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"key":                key.Key,
			"serviceId":          key.ServiceID,
			"requestPath":        key.RequestPath,
			"requestMethod":      key.RequestMethod,
			"requestFingerprint": key.RequestFingerprint,
			"lockToken":          key.LockToken,
			"lockedAt":           now,
			"createdAt":          key.CreatedAt,
			"expiresAt":          key.ExpiresAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored IdempotencyKey
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		err = r.collection.FindOne(ctx, filter).Decode(&stored)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire idempotency key %s: %w", key.ID, err)
	}
	if stored.LockToken == key.LockToken {
		return &stored, true, nil
	}
	if !stored.IsLocked() || now.Sub(stored.LockedAt) < staleAfter {
		return &stored, false, nil
	}

	takeover := bson.M{"_id": key.ID, "lockToken": stored.LockToken, "completedAt": bson.M{"$exists": false}}
	res, err := r.collection.UpdateOne(ctx, takeover, bson.M{"$set": bson.M{
		"lockToken":          key.LockToken,
		"lockedAt":           now,
		"requestFingerprint": key.RequestFingerprint,
	}})
	if err != nil {
		return nil, false, fmt.Errorf("failed to take over idempotency key %s: %w", key.ID, err)
	}
	if res.MatchedCount == 0 {
		return &stored, false, nil
	}
	stored.LockToken = key.LockToken
	stored.LockedAt = now
	stored.RequestFingerprint = key.RequestFingerprint
	return &stored, true, nil
}

// ReleaseLock implements KeyRepository
func (r *MongoKeyRepository) ReleaseLock(ctx context.Context, keyID, lockToken string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":         keyID,
		"lockToken":   lockToken,
		"completedAt": bson.M{"$exists": false},
	})
	return err
}

// StoreResponse implements KeyRepository
func (r *MongoKeyRepository) StoreResponse(ctx context.Context, keyID, lockToken string, code int, body []byte, headers map[string]string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": keyID, "lockToken": lockToken},
		bson.M{
			"$set": bson.M{
				"responseCode":    code,
				"responseBody":    body,
				"responseHeaders": headers,
				"completedAt":     pkgmongo.Now(),
			},
			"$unset": bson.M{"lockedAt": ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureIndexes creates the TTL index that drops expired keys
func (r *MongoKeyRepository) EnsureIndexes(ctx context.Context) error {
	return r.collection.EnsureIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	})
}
