package activities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/wms-platform/reservation-service/internal/application"
	"github.com/wms-platform/reservation-service/internal/workflows"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

type fakeSweeper struct {
	triggers []string
	handled  []string
	result   *application.SweepResult
	err      error
}

func (f *fakeSweeper) SweepOnce(ctx context.Context, trigger string) (*application.SweepResult, error) {
	f.triggers = append(f.triggers, trigger)
	for _, id := range f.handled {
		application.ReportSweepProgress(ctx, id)
	}
	return f.result, f.err
}

func TestSweepExpiredQuotations(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	sweeper := &fakeSweeper{result: &application.SweepResult{
		StartedAt:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Expired:         []string{"QUO-1"},
		Skipped:         []string{"QUO-2"},
		OrphansReleased: []string{},
		Failed:          map[string]string{"QUO-3": "lock wait timeout"},
	}}
	activities := NewSweeperActivities(sweeper, logging.NewNop())
	env.RegisterActivity(activities)

	value, err := env.ExecuteActivity(activities.SweepExpiredQuotations, workflows.ExpirationSweepInput{})
	require.NoError(t, err)

	var summary workflows.SweepSummary
	require.NoError(t, value.Get(&summary))
	assert.Equal(t, []string{"QUO-1"}, summary.Expired)
	assert.Equal(t, []string{"QUO-2"}, summary.Skipped)
	assert.Equal(t, "lock wait timeout", summary.Failed["QUO-3"])
	assert.Equal(t, []string{application.TriggerWorkflow}, sweeper.triggers)
}

func TestSweepExpiredQuotations_Error(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	activities := NewSweeperActivities(&fakeSweeper{err: errors.New("query failed")}, logging.NewNop())
	env.RegisterActivity(activities)

	_, err := env.ExecuteActivity(activities.SweepExpiredQuotations, workflows.ExpirationSweepInput{Trigger: "manual"})
	require.Error(t, err)
}

func TestSweepExpiredQuotations_HeartbeatsPerItem(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	sweeper := &fakeSweeper{
		handled: []string{"QUO-1", "QUO-2", "RSV-9"},
		result:  &application.SweepResult{Expired: []string{"QUO-1", "QUO-2"}},
	}
	activities := NewSweeperActivities(sweeper, logging.NewNop())

	var beats []interface{}
	activities.heartbeat = func(_ context.Context, details ...interface{}) {
		beats = append(beats, details...)
	}
	env.RegisterActivity(activities)

	_, err := env.ExecuteActivity(activities.SweepExpiredQuotations, workflows.ExpirationSweepInput{})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"started", "QUO-1", "QUO-2", "RSV-9"}, beats)
}
