package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/wms-platform/reservation-service/internal/application"
	"github.com/wms-platform/reservation-service/internal/workflows"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

// Sweeper runs one expiration pass. *application.ExpirationSweeper satisfies it.
type Sweeper interface {
	SweepOnce(ctx context.Context, trigger string) (*application.SweepResult, error)
}

// SweeperActivities exposes the expiration sweeper to Temporal
type SweeperActivities struct {
	sweeper   Sweeper
	logger    *logging.Logger
	heartbeat func(ctx context.Context, details ...interface{})
}

// NewSweeperActivities creates the sweeper activities
func NewSweeperActivities(sweeper Sweeper, logger *logging.Logger) *SweeperActivities {
	return &SweeperActivities{
		sweeper:   sweeper,
		logger:    logger.WithComponent("sweeper-activities"),
		heartbeat: activity.RecordHeartbeat,
	}
}

// SweepExpiredQuotations runs one sweep and reports what it did. It heartbeats
// once per handled quotation or orphan, so a long pass stays alive.
func (a *SweeperActivities) SweepExpiredQuotations(ctx context.Context, input workflows.ExpirationSweepInput) (*workflows.SweepSummary, error) {
	info := activity.GetInfo(ctx)
	trigger := input.Trigger
	if trigger == "" {
		trigger = application.TriggerWorkflow
	}

	logger := a.logger.WithContext(ctx)
	logger.Info("Running expiration sweep",
		"workflowId", info.WorkflowExecution.ID,
		"attempt", info.Attempt,
	)
	a.heartbeat(ctx, "started")
	progress := application.WithSweepProgress(ctx, func(id string) {
		a.heartbeat(ctx, id)
	})

	result, err := a.sweeper.SweepOnce(progress, trigger)
	if err != nil {
		logger.WithError(err).Error("Expiration sweep failed")
		return nil, fmt.Errorf("expiration sweep failed: %w", err)
	}

	return &workflows.SweepSummary{
		StartedAt:       result.StartedAt,
		Expired:         result.Expired,
		Skipped:         result.Skipped,
		OrphansReleased: result.OrphansReleased,
		Failed:          result.Failed,
	}, nil
}
