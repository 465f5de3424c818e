package ingest

import (
	"context"
	"encoding/json"
	"time"

	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/app/ingest/activity"
	"github.com/pump-pill/arenax/app/ingest/workflow"
	"github.com/pump-pill/arenax/pkg/aggregator"
	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/db/trades"
	"github.com/pump-pill/arenax/pkg/logging"
	"github.com/pump-pill/arenax/pkg/oracle"
	"github.com/pump-pill/arenax/pkg/redis"
	"github.com/pump-pill/arenax/pkg/reward"
	"github.com/pump-pill/arenax/pkg/temporal"
	"github.com/pump-pill/arenax/pkg/utils"
)

// App hosts the two halves of ingest: the trade-stream consumer and the
// Temporal worker running epoch close workflows.
type App struct {
	Worker         worker.Worker
	Consumer       *Consumer
	TemporalClient *temporal.Client
	Logger         *zap.Logger
}

// Start starts the worker and the consumer, blocking until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}

	if err := a.Consumer.Run(ctx); err != nil {
		a.Logger.Error("Consumer stopped with error", zap.Error(err))
	}

	a.Stop()
}

// Stop stops the worker.
func (a *App) Stop() {
	a.Worker.Stop()
	a.TemporalClient.Close()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Ingest shut down")
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}

	tradesDb, err := trades.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize trades database", zap.Error(err))
	}

	rewardDb, err := rewardstore.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize reward store", zap.Error(err))
	}

	redisClient, err := redis.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to connect to Redis", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}
	if err := temporalClient.EnsureNamespace(ctx, 72*time.Hour); err != nil {
		logger.Fatal("Unable to ensure temporal namespace", zap.Error(err))
	}

	agg := aggregator.New(logger, oracle.NewFixedFromEnv())

	activityContext := &activity.Context{
		Logger:       logger,
		TradesDB:     tradesDb,
		RewardDB:     rewardDb,
		Aggregator:   agg,
		RedisClient:  redisClient,
		Distribution: distributionFromEnv(logger),
		Tiers:        tiersFromEnv(logger),
	}
	workflowContext := workflow.Context{
		TemporalClient:  temporalClient,
		ActivityContext: activityContext,
	}

	wkr := worker.New(
		temporalClient.TClient,
		temporal.QueueEpochs,
		worker.Options{
			MaxConcurrentActivityExecutionSize: 20,
			WorkerStopTimeout:                  time.Minute,
		},
	)

	wkr.RegisterWorkflowWithOptions(
		workflowContext.CloseEpochWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.CloseEpochWorkflowName},
	)
	wkr.RegisterActivity(activityContext.CloseEpoch)
	wkr.RegisterActivity(activityContext.SnapshotStats)
	wkr.RegisterActivity(activityContext.ComputeGrants)
	wkr.RegisterActivity(activityContext.PublishEpochClosed)

	consumer := &Consumer{
		Logger:        logger,
		TradesDB:      tradesDb,
		RewardDB:      rewardDb,
		Aggregator:    agg,
		RedisClient:   redisClient,
		FlushInterval: utils.EnvDuration("FLUSH_INTERVAL", 2*time.Second),
	}

	return &App{
		Worker:         wkr,
		Consumer:       consumer,
		TemporalClient: temporalClient,
		Logger:         logger,
	}
}

func distributionFromEnv(logger *zap.Logger) reward.Distribution {
	raw := utils.Env("REWARD_DISTRIBUTION", string(reward.ProportionalToVolume))
	switch reward.Distribution(raw) {
	case reward.ProportionalToVolume, reward.Tiered:
		return reward.Distribution(raw)
	default:
		logger.Warn("Unknown REWARD_DISTRIBUTION, using proportional", zap.String("value", raw))
		return reward.ProportionalToVolume
	}
}

// tiersFromEnv parses REWARD_TIERS, a JSON array ordered by descending
// minVolSol. Only consulted when the distribution is tiered.
func tiersFromEnv(logger *zap.Logger) []reward.Tier {
	raw := utils.Env("REWARD_TIERS", "")
	if raw == "" {
		return nil
	}
	var tiers []reward.Tier
	if err := json.Unmarshal([]byte(raw), &tiers); err != nil {
		logger.Warn("Invalid REWARD_TIERS, ignoring", zap.Error(err))
		return nil
	}
	return tiers
}
