package activity

import (
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/aggregator"
	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/db/trades"
	"github.com/pump-pill/arenax/pkg/redis"
	"github.com/pump-pill/arenax/pkg/reward"
)

// Context carries the shared dependencies for the epoch close activities.
type Context struct {
	Logger     *zap.Logger
	TradesDB   *trades.DB
	RewardDB   *rewardstore.DB
	Aggregator *aggregator.Aggregator
	// For publishing real-time events
	RedisClient *redis.Client

	// Distribution policy applied when computing grants. Budget comes from
	// the epoch row itself.
	Distribution reward.Distribution
	Tiers        []reward.Tier

	fetchPoolOnce sync.Once
	fetchPool     pond.Pool
}

// WorkerPool returns a shared pool for parallel store fetches.
func (c *Context) WorkerPool() pond.Pool {
	c.fetchPoolOnce.Do(func() {
		size := runtime.NumCPU()
		if size < 2 {
			size = 2
		}
		c.fetchPool = pond.NewPool(size)
	})
	return c.fetchPool
}
