package mongodb

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	labelTransientTransaction = "TransientTransactionError"
	codeWriteConflict         = 112
)

// ErrLockWaitTimeout is returned when a transaction kept hitting write conflicts
// until its lock wait budget ran out.
var ErrLockWaitTimeout = errors.New("mongodb: lock wait timeout")

// TxOptions bounds how long RunTransaction waits on conflicting writers
type TxOptions struct {
	LockWaitTimeout time.Duration
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// DefaultTxOptions mirrors a relational lock wait of a few seconds
func DefaultTxOptions() TxOptions {
	return TxOptions{
		LockWaitTimeout: 5 * time.Second,
		InitialBackoff:  5 * time.Millisecond,
		MaxBackoff:      200 * time.Millisecond,
	}
}

// AttemptObserver is notified after every transaction attempt
type AttemptObserver func(outcome string)

// RunTransaction runs fn through session.WithTransaction in a snapshot
// transaction with majority commit.
//
// A document that another open transaction has written is reported by the
// server as a WriteConflict labelled TransientTransactionError, which the
// driver retries by calling fn again. RunTransaction bounds those retries by
// LockWaitTimeout instead of the driver's two minutes, backs off between
// attempts and returns ErrLockWaitTimeout once the budget is spent. Errors
// returned by fn itself abort the transaction and are returned untouched.
func (c *Client) RunTransaction(ctx context.Context, opts TxOptions, observe AttemptObserver, fn func(sessCtx mongo.SessionContext) error) error {
	if opts.LockWaitTimeout <= 0 {
		opts = DefaultTxOptions()
	}
	if observe == nil {
		observe = func(string) {}
	}

	session, err := c.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	lockCtx, cancel := context.WithTimeout(ctx, opts.LockWaitTimeout)
	defer cancel()

	backoff := opts.InitialBackoff
	attempts := 0
	_, err = session.WithTransaction(lockCtx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		attempts++
		if attempts > 1 {
			observe("conflict")
			if err := sleepCtx(sessCtx, jitter(backoff)); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > opts.MaxBackoff {
				backoff = opts.MaxBackoff
			}
		}
		return nil, fn(sessCtx)
	}, txnOpts)

	switch {
	case err == nil:
		observe("committed")
		return nil
	case ctx.Err() != nil:
		observe("failed")
		return ctx.Err()
	case lockCtx.Err() != nil || IsWriteConflict(err):
		observe("timeout")
		return fmt.Errorf("%w after %d attempts: %v", ErrLockWaitTimeout, attempts, err)
	default:
		observe("failed")
		return err
	}
}

// IsWriteConflict reports whether err means another transaction holds the document
func IsWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	if hasLabel(err, labelTransientTransaction) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(codeWriteConflict)
	}
	return false
}

func hasLabel(err error, label string) bool {
	var le mongo.LabeledError
	if errors.As(err, &le) {
		return le.HasErrorLabel(label)
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}
