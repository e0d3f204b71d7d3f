package mongodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsWriteConflict(t *testing.T) {
	conflict := mongo.CommandError{Code: codeWriteConflict, Name: "WriteConflict"}
	transient := mongo.CommandError{Code: 251, Labels: []string{labelTransientTransaction}}
	duplicate := mongo.CommandError{Code: 11000, Name: "DuplicateKey"}

	assert.True(t, IsWriteConflict(conflict))
	assert.True(t, IsWriteConflict(fmt.Errorf("lock stock record: %w", conflict)))
	assert.True(t, IsWriteConflict(transient))
	assert.False(t, IsWriteConflict(duplicate))
	assert.False(t, IsWriteConflict(errors.New("boom")))
	assert.False(t, IsWriteConflict(nil))
}

func TestSleepCtx_StopsOnDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sleepCtx(ctx, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}

func TestJitter_StaysWithinBounds(t *testing.T) {
	assert.Zero(t, jitter(0))
	for i := 0; i < 100; i++ {
		d := jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.Less(t, d, 150*time.Millisecond)
	}
}
