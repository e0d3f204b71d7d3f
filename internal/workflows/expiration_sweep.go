package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SweepExpiredQuotationsActivity is the registered activity name
const SweepExpiredQuotationsActivity = "SweepExpiredQuotations"

// ExpirationSweepInput is the input of one cron run
type ExpirationSweepInput struct {
	Trigger string `json:"trigger,omitempty"`
}

// SweepSummary is what one sweep reports back to the workflow
type SweepSummary struct {
	StartedAt       time.Time         `json:"startedAt"`
	Expired         []string          `json:"expired"`
	Skipped         []string          `json:"skipped"`
	OrphansReleased []string          `json:"orphansReleased"`
	Failed          map[string]string `json:"failed,omitempty"`
}

// ExpirationSweepWorkflow runs one expiration sweep per cron tick. Sweeps are
// idempotent, so a retried activity cannot release a reservation twice.
func ExpirationSweepWorkflow(ctx workflow.Context, input ExpirationSweepInput) (*SweepSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting expiration sweep")

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var summary SweepSummary
	if err := workflow.ExecuteActivity(ctx, SweepExpiredQuotationsActivity, input).Get(ctx, &summary); err != nil {
		logger.Error("Expiration sweep failed", "error", err)
		return nil, err
	}

	if len(summary.Failed) > 0 {
		logger.Warn("Expiration sweep left failures", "failed", len(summary.Failed))
	}
	logger.Info("Expiration sweep completed",
		"expired", len(summary.Expired),
		"skipped", len(summary.Skipped),
		"orphansReleased", len(summary.OrphansReleased),
	)
	return &summary, nil
}
