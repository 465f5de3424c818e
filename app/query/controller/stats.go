package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const statsCacheTTL = 15 * time.Second

type statsResponse struct {
	Epoch             uint64          `json:"epoch"`
	TotalParticipants uint64          `json:"totalParticipants"`
	TotalVolume       decimal.Decimal `json:"totalVolume"`
	TotalRewards      string          `json:"totalRewards"`
	AverageVolume     decimal.Decimal `json:"averageVolume"`
	TopPerformer      string          `json:"topPerformer"`
	LastUpdated       time.Time       `json:"lastUpdated"`
}

// HandleLeaderboardStats serves the aggregate epoch summary. The response is
// cached briefly in Redis since the underlying aggregation scans every wallet
// row for the epoch.
func (c *Controller) HandleLeaderboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	epoch, ok := c.resolveEpoch(w, r)
	if !ok {
		return
	}

	cacheKey := fmt.Sprintf("arenax:stats:%d", epoch.Index)
	if c.App.RedisClient != nil {
		if cached, hit := c.App.RedisClient.CacheGet(ctx, cacheKey); hit {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	summary, err := c.App.TradesDB.SummaryByEpoch(ctx, epoch.Index)
	if err != nil {
		c.App.Logger.Error("Failed to compute epoch summary", zap.Uint64("epoch", epoch.Index), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "query failed")
		return
	}

	totalRewards, err := c.App.RewardDB.RewardTotalByEpoch(ctx, epoch.Index)
	if err != nil {
		c.App.Logger.Error("Failed to sum rewards", zap.Uint64("epoch", epoch.Index), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "query failed")
		return
	}

	resp := statsResponse{
		Epoch:             epoch.Index,
		TotalParticipants: summary.TotalParticipants,
		TotalVolume:       summary.TotalVolSol,
		TotalRewards:      totalRewards.String(),
		AverageVolume:     summary.AverageVolSol,
		TopPerformer:      summary.TopWallet,
		LastUpdated:       summary.LastUpdated,
	}

	if c.App.RedisClient != nil {
		if body, err := json.Marshal(resp); err == nil {
			c.App.RedisClient.CacheSet(ctx, cacheKey, body, statsCacheTTL)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
