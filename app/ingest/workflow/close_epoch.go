package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/pump-pill/arenax/app/ingest/types"
)

// CloseEpochWorkflow runs the epoch settlement sequence: close the window,
// snapshot final aggregates from the trade ledger, compute and persist the
// grant set, then announce the result. Each step is idempotent, so the
// workflow can replay from any point; the per-epoch workflow ID plus the
// reject-duplicate reuse policy means the whole sequence executes at most
// once per epoch even when multiple schedulers notice the expiry.
func (wc *Context) CloseEpochWorkflow(ctx workflow.Context, in types.ActivityEpochInput) error {
	retry := &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		// Unlimited: a close must eventually settle, the stores being down
		// should delay it, not abandon it.
		MaximumAttempts: 0,
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         retry,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var closeOut types.ActivityCloseEpochOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.CloseEpoch, in).Get(ctx, &closeOut); err != nil {
		return err
	}

	var snapshotOut types.ActivitySnapshotStatsOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.SnapshotStats, in).Get(ctx, &snapshotOut); err != nil {
		return err
	}

	var grantsOut types.ActivityComputeGrantsOutput
	if err := workflow.ExecuteActivity(ctx, wc.ActivityContext.ComputeGrants, in).Get(ctx, &grantsOut); err != nil {
		return err
	}

	return workflow.ExecuteActivity(ctx, wc.ActivityContext.PublishEpochClosed, in).Get(ctx, nil)
}
