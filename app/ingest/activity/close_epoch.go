package activity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pump-pill/arenax/app/ingest/types"
)

// CloseEpoch transitions the epoch active -> closed. Re-running against an
// already-closed epoch succeeds without transitioning, so workflow retries
// stay safe.
func (ac *Context) CloseEpoch(ctx context.Context, in types.ActivityEpochInput) (types.ActivityCloseEpochOutput, error) {
	start := time.Now()

	transitioned, err := ac.RewardDB.CloseEpoch(ctx, in.EpochIndex)
	if err != nil {
		return types.ActivityCloseEpochOutput{}, fmt.Errorf("close epoch %d: %w", in.EpochIndex, err)
	}

	if transitioned {
		ac.Logger.Info("Epoch closed", zap.Uint64("epoch", in.EpochIndex))
	}

	return types.ActivityCloseEpochOutput{
		Transitioned: transitioned,
		DurationMs:   float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}
