package types

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/auth"
	"github.com/pump-pill/arenax/pkg/claims"
	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/db/trades"
	"github.com/pump-pill/arenax/pkg/redis"
)

type App struct {
	TradesDB *trades.DB
	RewardDB *rewardstore.DB
	// RedisClient is optional; without it the summary cache and WebSocket
	// events are disabled.
	RedisClient *redis.Client
	Claims      *claims.Service
	Sessions    *auth.Sessions
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.TradesDB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	a.RewardDB.Close()
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Query API shut down")
}
