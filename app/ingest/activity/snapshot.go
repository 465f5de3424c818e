package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/app/ingest/types"
	"github.com/pump-pill/arenax/pkg/model"
)

// SnapshotStats recomputes the epoch's aggregates from the complete trade
// ledger and commits the result as the final snapshot. Running after the
// close transition, it replaces whatever incremental state was flushed during
// the epoch, so late or re-delivered events cannot skew the closed totals.
func (ac *Context) SnapshotStats(ctx context.Context, in types.ActivityEpochInput) (types.ActivitySnapshotStatsOutput, error) {
	start := time.Now()

	// Fetch the trade ledger and the epoch row in parallel.
	var (
		events   []model.TradeEvent
		eventErr error
		epochErr error
	)

	pool := ac.WorkerPool()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	group.Submit(func() {
		if err := groupCtx.Err(); err != nil {
			return
		}
		events, eventErr = ac.TradesDB.TradesByEpoch(groupCtx, in.EpochIndex)
	})
	group.Submit(func() {
		if err := groupCtx.Err(); err != nil {
			return
		}
		_, epochErr = ac.RewardDB.GetEpoch(groupCtx, in.EpochIndex)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		ac.Logger.Warn("Parallel snapshot fetch encountered error",
			zap.Uint64("epoch", in.EpochIndex),
			zap.Error(err))
	}
	if eventErr != nil {
		return types.ActivitySnapshotStatsOutput{}, fmt.Errorf("fetch trades for epoch %d: %w", in.EpochIndex, eventErr)
	}
	if epochErr != nil {
		return types.ActivitySnapshotStatsOutput{}, fmt.Errorf("fetch epoch %d: %w", in.EpochIndex, epochErr)
	}

	stats := ac.Aggregator.Recompute(ctx, in.EpochIndex, events)
	if err := ac.TradesDB.InsertStats(ctx, stats); err != nil {
		return types.ActivitySnapshotStatsOutput{}, fmt.Errorf("commit snapshot for epoch %d: %w", in.EpochIndex, err)
	}

	// The epoch is final; release its in-memory accumulators.
	ac.Aggregator.DropEpoch(in.EpochIndex)

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0

	ac.Logger.Info("Snapshotted epoch aggregates",
		zap.Uint64("epoch", in.EpochIndex),
		zap.Int("trades", len(events)),
		zap.Int("wallets", len(stats)),
		zap.Float64("durationMs", durationMs))

	return types.ActivitySnapshotStatsOutput{
		Wallets:    len(stats),
		Trades:     len(events),
		DurationMs: durationMs,
	}, nil
}
