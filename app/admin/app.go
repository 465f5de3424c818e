package admin

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/app/admin/types"
	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/logging"
	"github.com/pump-pill/arenax/pkg/temporal"
	"github.com/pump-pill/arenax/pkg/utils"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	rewardDb, err := rewardstore.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize reward store", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	if err := temporalClient.EnsureNamespace(ctx, 7*24*time.Hour); err != nil {
		logger.Fatal("Unable to ensure temporal namespace", zap.Error(err))
	}
	logger.Info("Temporal namespace ready", zap.String("namespace", temporalClient.Namespace))

	app := &types.App{
		RewardDB:       rewardDb,
		TemporalClient: temporalClient,
		CronSpec:       utils.Env("EPOCH_SCAN_SPEC", "*/15 * * * * *"),
		Logger:         logger,
	}

	if err := setupScheduler(ctx, app); err != nil {
		logger.Fatal("Unable to set up epoch scan scheduler", zap.Error(err))
	}

	return app
}

// setupScheduler wires the cron job that notices expired active epochs and
// launches their close workflows.
func setupScheduler(ctx context.Context, app *types.App) error {
	app.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	_, err := app.Cron.AddFunc(app.CronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		if err := app.ScanExpiredEpochs(rctx); err != nil {
			app.Logger.Error("Epoch expiry scan failed", zap.Error(err))
		}
	})
	return err
}
