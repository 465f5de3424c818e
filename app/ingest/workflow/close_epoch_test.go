package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"

	"github.com/pump-pill/arenax/app/ingest/activity"
	"github.com/pump-pill/arenax/app/ingest/types"
)

func newCloseEpochEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *activity.Context, *Context) {
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	activityCtx := &activity.Context{Logger: zaptest.NewLogger(t)}
	wfCtx := &Context{ActivityContext: activityCtx}

	env.RegisterWorkflow(wfCtx.CloseEpochWorkflow)
	env.RegisterActivity(activityCtx.CloseEpoch)
	env.RegisterActivity(activityCtx.SnapshotStats)
	env.RegisterActivity(activityCtx.ComputeGrants)
	env.RegisterActivity(activityCtx.PublishEpochClosed)

	return env, activityCtx, wfCtx
}

func TestCloseEpochWorkflowHappyPath(t *testing.T) {
	env, activityCtx, wfCtx := newCloseEpochEnv(t)
	in := types.ActivityEpochInput{EpochIndex: 12}

	env.OnActivity(activityCtx.CloseEpoch, mock.Anything, in).
		Return(types.ActivityCloseEpochOutput{Transitioned: true}, nil).Once()
	env.OnActivity(activityCtx.SnapshotStats, mock.Anything, in).
		Return(types.ActivitySnapshotStatsOutput{Wallets: 3, Trades: 5}, nil).Once()
	env.OnActivity(activityCtx.ComputeGrants, mock.Anything, in).
		Return(types.ActivityComputeGrantsOutput{Grants: 3, TotalLamports: "1000000000"}, nil).Once()
	env.OnActivity(activityCtx.PublishEpochClosed, mock.Anything, in).
		Return(nil).Once()

	env.ExecuteWorkflow(wfCtx.CloseEpochWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

// A transient snapshot failure retries in place; the grant computation only
// ever runs after a successful snapshot.
func TestCloseEpochWorkflowRetriesSnapshot(t *testing.T) {
	env, activityCtx, wfCtx := newCloseEpochEnv(t)
	in := types.ActivityEpochInput{EpochIndex: 12}

	env.OnActivity(activityCtx.CloseEpoch, mock.Anything, in).
		Return(types.ActivityCloseEpochOutput{Transitioned: true}, nil).Once()
	env.OnActivity(activityCtx.SnapshotStats, mock.Anything, in).
		Return(types.ActivitySnapshotStatsOutput{}, fmt.Errorf("clickhouse unavailable")).Once()
	env.OnActivity(activityCtx.SnapshotStats, mock.Anything, in).
		Return(types.ActivitySnapshotStatsOutput{Wallets: 3, Trades: 5}, nil).Once()
	env.OnActivity(activityCtx.ComputeGrants, mock.Anything, in).
		Return(types.ActivityComputeGrantsOutput{Grants: 3}, nil).Once()
	env.OnActivity(activityCtx.PublishEpochClosed, mock.Anything, in).
		Return(nil).Once()

	env.ExecuteWorkflow(wfCtx.CloseEpochWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

// Re-running the close sequence against an already-settled epoch is a clean
// pass-through: every step reports its no-op outcome and the workflow still
// completes.
func TestCloseEpochWorkflowIdempotentRerun(t *testing.T) {
	env, activityCtx, wfCtx := newCloseEpochEnv(t)
	in := types.ActivityEpochInput{EpochIndex: 12}

	env.OnActivity(activityCtx.CloseEpoch, mock.Anything, in).
		Return(types.ActivityCloseEpochOutput{Transitioned: false}, nil).Once()
	env.OnActivity(activityCtx.SnapshotStats, mock.Anything, in).
		Return(types.ActivitySnapshotStatsOutput{Wallets: 3, Trades: 5}, nil).Once()
	env.OnActivity(activityCtx.ComputeGrants, mock.Anything, in).
		Return(types.ActivityComputeGrantsOutput{Grants: 3, AlreadyComputed: true}, nil).Once()
	env.OnActivity(activityCtx.PublishEpochClosed, mock.Anything, in).
		Return(nil).Once()

	env.ExecuteWorkflow(wfCtx.CloseEpochWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}
