package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/pump-pill/arenax/app/query/types"
	"github.com/pump-pill/arenax/pkg/auth"
	"github.com/pump-pill/arenax/pkg/claims"
	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/db/trades"
	"github.com/pump-pill/arenax/pkg/ledger"
	"github.com/pump-pill/arenax/pkg/logging"
	"github.com/pump-pill/arenax/pkg/redis"
	"github.com/pump-pill/arenax/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
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

	// Redis is optional: without it the summary cache and WebSocket events
	// are disabled, the rest of the API still works.
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "true") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - cache and real-time events disabled",
				zap.Error(err))
			redisClient = nil
		}
	}

	var notifier claims.Notifier
	if redisClient != nil {
		notifier = redisClient
	}
	claimService := claims.NewService(
		logger,
		rewardDb,
		ledger.NewHTTPSubmitter(logger),
		notifier,
		redis.ChannelGrantClaimed,
	)

	return &types.App{
		TradesDB:    tradesDb,
		RewardDB:    rewardDb,
		RedisClient: redisClient,
		Claims:      claimService,
		Sessions:    auth.NewSessions(),
		Logger:      logger,
	}
}
