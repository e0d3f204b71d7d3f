package idempotency

import "time"

// IdempotencyKey is a stored Idempotency-Key together with the response it
// produced. A key is scoped to one service and locked while its first request
// runs.
type IdempotencyKey struct {
	ID                 string    `bson:"_id"`
	Key                string    `bson:"key"`
	ServiceID          string    `bson:"serviceId"`
	RequestPath        string    `bson:"requestPath"`
	RequestMethod      string    `bson:"requestMethod"`
	RequestFingerprint string    `bson:"requestFingerprint"`
	LockToken          string    `bson:"lockToken,omitempty"`
	LockedAt           time.Time `bson:"lockedAt,omitempty"`

	ResponseCode    int               `bson:"responseCode,omitempty"`
	ResponseBody    []byte            `bson:"responseBody,omitempty"`
	ResponseHeaders map[string]string `bson:"responseHeaders,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt"`
}

// KeyID builds the storage id of a key within a service
func KeyID(serviceID, key string) string {
	return serviceID + ":" + key
}

// IsCompleted returns true once a response has been stored
func (k *IdempotencyKey) IsCompleted() bool {
	return k.CompletedAt != nil
}

// IsLocked returns true while the first request is still running
func (k *IdempotencyKey) IsLocked() bool {
	return !k.LockedAt.IsZero() && k.CompletedAt == nil
}
