package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/metrics"
)

// Sweep triggers
const (
	TriggerManual   = "manual"
	TriggerTicker   = "ticker"
	TriggerWorkflow = "workflow"
)

type sweepProgressKey struct{}

// WithSweepProgress attaches fn to ctx. SweepOnce calls it after every
// quotation and orphan candidate it handles.
func WithSweepProgress(ctx context.Context, fn func(id string)) context.Context {
	return context.WithValue(ctx, sweepProgressKey{}, fn)
}

// ReportSweepProgress calls the hook attached by WithSweepProgress, if any
func ReportSweepProgress(ctx context.Context, id string) {
	if fn, ok := ctx.Value(sweepProgressKey{}).(func(string)); ok {
		fn(id)
	}
}

// ExpirationSweeper expires quotations past their expiration and releases
// ACTIVE reservations whose quotation is already gone or terminal. Each
// quotation is expired in its own transaction, so concurrent sweeps release
// every reservation exactly once.
type ExpirationSweeper struct {
	tx        *transactor
	lifecycle *ProformaLifecycle
	ledger    *StockLedger
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       Clock
	batchSize int
	interval  time.Duration

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// SweeperConfig holds configuration for the in-process sweeper loop
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultSweeperConfig returns default configuration
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval:  time.Minute,
		BatchSize: 200,
	}
}

func newExpirationSweeper(tx *transactor, lifecycle *ProformaLifecycle, ledger *StockLedger, logger *logging.Logger, m *metrics.Metrics, clock Clock, config *SweeperConfig) *ExpirationSweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}
	return &ExpirationSweeper{
		tx:        tx,
		lifecycle: lifecycle,
		ledger:    ledger,
		logger:    logger.WithComponent("expiration-sweeper"),
		metrics:   m,
		now:       clock,
		batchSize: config.BatchSize,
		interval:  config.Interval,
	}
}

// SweepOnce runs one pass. Failures on single quotations are collected in the
// result; only a failed candidate query is returned as an error.
func (s *ExpirationSweeper) SweepOnce(ctx context.Context, trigger string) (*SweepResult, error) {
	started := time.Now()
	now := s.now()
	result := &SweepResult{
		Trigger:         trigger,
		Expired:         []string{},
		Skipped:         []string{},
		OrphansReleased: []string{},
		StartedAt:       now,
	}

	var candidates []*domain.Quotation
	err := s.tx.view(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		candidates, err = uow.Quotations().FindExpirable(ctx, now, s.batchSize)
		return err
	})
	if err != nil {
		s.metrics.RecordSweeperRun(trigger, false, 0, time.Since(started))
		return nil, fmt.Errorf("failed to find expirable quotations: %w", err)
	}

	for _, q := range candidates {
		if err := ctx.Err(); err != nil {
			s.fail(result, q.ID, err)
			continue
		}
		expired, err := s.lifecycle.Expire(ctx, q.ID, now)
		switch {
		case err != nil:
			s.fail(result, q.ID, err)
		case expired:
			result.Expired = append(result.Expired, q.ID)
		default:
			result.Skipped = append(result.Skipped, q.ID)
		}
		ReportSweepProgress(ctx, q.ID)
	}

	if err := s.releaseOrphans(ctx, now, result); err != nil {
		s.fail(result, "orphans", err)
	}

	result.Duration = time.Since(started)
	s.metrics.RecordSweeperRun(trigger, len(result.Failed) == 0, len(result.Expired), result.Duration)
	if len(result.Expired) > 0 || len(result.OrphansReleased) > 0 || len(result.Failed) > 0 {
		s.logger.Info("Expiration sweep finished",
			"trigger", trigger,
			"expired", len(result.Expired),
			"skipped", len(result.Skipped),
			"orphansReleased", len(result.OrphansReleased),
			"failed", len(result.Failed),
			"duration", result.Duration,
		)
	}
	return result, nil
}

// releaseOrphans releases expired ACTIVE reservations whose quotation is
// missing or terminal. Reservations of open quotations are left to Expire.
func (s *ExpirationSweeper) releaseOrphans(ctx context.Context, now time.Time, result *SweepResult) error {
	var candidates []*domain.Reservation
	err := s.tx.view(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		candidates, err = uow.Reservations().FindExpiredActive(ctx, now, s.batchSize)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to find expired reservations: %w", err)
	}

	for _, candidate := range candidates {
		var released bool
		err := s.tx.run(ctx, "release_orphan", func(ctx context.Context, uow domain.UnitOfWork) error {
			released = false
			q, err := uow.Quotations().LockByID(ctx, candidate.QuotationID)
			switch {
			case errors.Is(err, domain.ErrQuotationNotFound):
			case err != nil:
				return err
			case !q.State.IsTerminal():
				return nil
			}

			r, ok, err := s.ledger.Release(ctx, uow, candidate.ID, domain.ReleaseReasonOrphaned)
			if err != nil {
				return err
			}
			if ok {
				uow.Stage(releasedEvent(r))
				released = true
			}
			return nil
		}, attribute.String("reservation.id", candidate.ID))
		ReportSweepProgress(ctx, candidate.ID)
		if err != nil {
			s.fail(result, candidate.ID, err)
			continue
		}
		if released {
			result.OrphansReleased = append(result.OrphansReleased, candidate.ID)
		}
	}
	return nil
}

func (s *ExpirationSweeper) fail(result *SweepResult, id string, err error) {
	if result.Failed == nil {
		result.Failed = make(map[string]string)
	}
	result.Failed[id] = err.Error()
	s.logger.Warn("Sweep item failed", "id", id, "error", err)
}

// Start launches the in-process ticker loop
func (s *ExpirationSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sweeper already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stoppedCh = make(chan struct{})

	s.logger.Info("Starting expiration sweeper", "interval", s.interval, "batchSize", s.batchSize)
	go s.run(ctx, s.stopCh, s.stoppedCh)
	return nil
}

// Stop stops the loop and waits for the in-flight pass
func (s *ExpirationSweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper not running")
	}
	stopCh, stoppedCh := s.stopCh, s.stoppedCh
	s.running = false
	s.stopCh, s.stoppedCh = nil, nil
	s.mu.Unlock()

	close(stopCh)
	<-stoppedCh

	s.logger.Info("Expiration sweeper stopped")
	return nil
}

func (s *ExpirationSweeper) run(ctx context.Context, stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, TriggerTicker); err != nil {
				s.logger.WithError(err).Error("Expiration sweep failed")
			}
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// IsRunning returns whether the ticker loop is running
func (s *ExpirationSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
