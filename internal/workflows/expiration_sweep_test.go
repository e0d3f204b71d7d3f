package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func sweepStub(context.Context, ExpirationSweepInput) (*SweepSummary, error) {
	return &SweepSummary{}, nil
}

// newSweepEnv registers a placeholder under the activity name so tests can
// mock it by name.
func newSweepEnv() *testsuite.TestWorkflowEnvironment {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(sweepStub, activity.RegisterOptions{Name: SweepExpiredQuotationsActivity})
	return env
}

func TestExpirationSweepWorkflow(t *testing.T) {
	env := newSweepEnv()

	env.OnActivity(SweepExpiredQuotationsActivity, mock.Anything, mock.Anything).Return(&SweepSummary{
		Expired:         []string{"QUO-1", "QUO-2"},
		Skipped:         []string{},
		OrphansReleased: []string{"RES-9"},
	}, nil)

	env.ExecuteWorkflow(ExpirationSweepWorkflow, ExpirationSweepInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary SweepSummary
	require.NoError(t, env.GetWorkflowResult(&summary))
	require.Equal(t, []string{"QUO-1", "QUO-2"}, summary.Expired)
	require.Equal(t, []string{"RES-9"}, summary.OrphansReleased)
}

func TestExpirationSweepWorkflow_RetriesActivity(t *testing.T) {
	env := newSweepEnv()

	calls := 0
	env.OnActivity(SweepExpiredQuotationsActivity, mock.Anything, mock.Anything).Return(
		func(_ context.Context, _ ExpirationSweepInput) (*SweepSummary, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("mongodb unavailable")
			}
			return &SweepSummary{Expired: []string{"QUO-1"}}, nil
		})

	env.ExecuteWorkflow(ExpirationSweepWorkflow, ExpirationSweepInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Equal(t, 2, calls)
}

func TestExpirationSweepWorkflow_GivesUp(t *testing.T) {
	env := newSweepEnv()

	env.OnActivity(SweepExpiredQuotationsActivity, mock.Anything, mock.Anything).Return(nil, errors.New("mongodb unavailable"))

	env.ExecuteWorkflow(ExpirationSweepWorkflow, ExpirationSweepInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
