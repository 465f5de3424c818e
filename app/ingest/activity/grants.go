package activity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pump-pill/arenax/app/ingest/types"
	"github.com/pump-pill/arenax/pkg/redis"
	"github.com/pump-pill/arenax/pkg/reward"
)

// ComputeGrants splits the closed epoch's budget across its wallets and
// persists the grant set. The store's grants_computed guard makes a repeat
// invocation return the existing grants instead of double-allocating.
func (ac *Context) ComputeGrants(ctx context.Context, in types.ActivityEpochInput) (types.ActivityComputeGrantsOutput, error) {
	start := time.Now()

	epoch, err := ac.RewardDB.GetEpoch(ctx, in.EpochIndex)
	if err != nil {
		return types.ActivityComputeGrantsOutput{}, fmt.Errorf("fetch epoch %d: %w", in.EpochIndex, err)
	}

	stats, err := ac.TradesDB.StatsByEpoch(ctx, in.EpochIndex)
	if err != nil {
		return types.ActivityComputeGrantsOutput{}, fmt.Errorf("fetch stats for epoch %d: %w", in.EpochIndex, err)
	}

	policy := reward.Policy{
		TotalBudgetLamports: epoch.BudgetLamports,
		Distribution:        ac.Distribution,
		Tiers:               ac.Tiers,
	}
	grants, err := reward.ComputeGrants(in.EpochIndex, stats, policy)
	if err != nil {
		return types.ActivityComputeGrantsOutput{}, fmt.Errorf("compute grants for epoch %d: %w", in.EpochIndex, err)
	}

	persisted, already, err := ac.RewardDB.InsertGrants(ctx, in.EpochIndex, grants)
	if err != nil {
		return types.ActivityComputeGrantsOutput{}, fmt.Errorf("persist grants for epoch %d: %w", in.EpochIndex, err)
	}

	total, err := ac.RewardDB.RewardTotalByEpoch(ctx, in.EpochIndex)
	if err != nil {
		return types.ActivityComputeGrantsOutput{}, err
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0

	ac.Logger.Info("Computed reward grants",
		zap.Uint64("epoch", in.EpochIndex),
		zap.Int("grants", len(persisted)),
		zap.Bool("alreadyComputed", already),
		zap.String("totalLamports", total.String()),
		zap.Float64("durationMs", durationMs))

	return types.ActivityComputeGrantsOutput{
		Grants:          len(persisted),
		AlreadyComputed: already,
		TotalLamports:   total.String(),
		DurationMs:      durationMs,
	}, nil
}

// PublishEpochClosed notifies subscribers that the epoch settled. Best effort.
func (ac *Context) PublishEpochClosed(ctx context.Context, in types.ActivityEpochInput) error {
	if ac.RedisClient == nil {
		return nil
	}
	ac.RedisClient.Publish(ctx, redis.ChannelEpochClosed, fmt.Sprintf(`{"epoch":%d}`, in.EpochIndex))
	return nil
}
