package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/model"
	"github.com/pump-pill/arenax/pkg/ranking"
)

type paginationInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type leaderboardMetadata struct {
	Epoch       uint64            `json:"epoch"`
	EpochStatus model.EpochStatus `json:"epochStatus"`
	SortBy      ranking.SortBy    `json:"sortBy"`
	Order       ranking.Order     `json:"order"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

type leaderboardResponse struct {
	Data       []model.LeaderboardEntry `json:"data"`
	Pagination paginationInfo           `json:"pagination"`
	Metadata   leaderboardMetadata      `json:"metadata"`
}

// HandleLeaderboard serves the ranked, paginated leaderboard. Ranks are
// recomputed per request over the latest committed snapshot; reads never
// block ingestion. Query parameters:
//   - page: 1-based page number (default 1)
//   - pageSize: entries per page, 1..100 (default 50)
//   - epoch: epoch index (default: the current active epoch)
//   - sortBy: volume | rewards | rank (default rank)
//   - order: asc | desc (default desc)
func (c *Controller) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := parsePageSpec(r)
	if err != nil {
		code := CodeValidation
		if errors.Is(err, errPageSizeTooLarge) || errors.Is(err, errInvalidPageSize) {
			code = CodePageSize
		}
		writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	sortBy, err := ranking.ParseSortBy(r.URL.Query().Get("sortBy"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	order, err := ranking.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	epoch, ok := c.resolveEpoch(w, r)
	if !ok {
		return
	}

	stats, err := c.App.TradesDB.StatsByEpoch(ctx, epoch.Index)
	if err != nil {
		c.App.Logger.Error("Failed to query epoch stats", zap.Uint64("epoch", epoch.Index), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "query failed")
		return
	}

	// Until grants are computed the rewards map stays empty and the rank and
	// rewards dimensions order by the wallet tie-break alone. The volume sort
	// is the live-epoch view.
	rewards := map[string]model.Lamports{}
	if epoch.GrantsComputed {
		grants, err := c.App.RewardDB.GrantsByEpoch(ctx, epoch.Index)
		if err != nil {
			c.App.Logger.Error("Failed to query grants", zap.Uint64("epoch", epoch.Index), zap.Error(err))
			writeError(w, http.StatusInternalServerError, CodeInternal, "query failed")
			return
		}
		for _, g := range grants {
			rewards[g.Wallet] = g.AmountLamports
		}
	}

	entries := ranking.Rank(stats, rewards, sortBy, order)
	data, pagination := paginate(entries, page)

	writeJSON(w, http.StatusOK, leaderboardResponse{
		Data:       data,
		Pagination: pagination,
		Metadata: leaderboardMetadata{
			Epoch:       epoch.Index,
			EpochStatus: epoch.Status,
			SortBy:      sortBy,
			Order:       order,
			GeneratedAt: time.Now().UTC(),
		},
	})
}

// resolveEpoch returns the epoch addressed by the request, defaulting to the
// active one. Writes the error response itself when resolution fails.
func (c *Controller) resolveEpoch(w http.ResponseWriter, r *http.Request) (*model.EpochWindow, bool) {
	ctx := r.Context()

	if v := r.URL.Query().Get("epoch"); v != "" {
		index, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidation, "invalid epoch, must be a non-negative integer")
			return nil, false
		}
		epoch, err := c.App.RewardDB.GetEpoch(ctx, index)
		if err != nil {
			if errors.Is(err, rewardstore.ErrEpochNotFound) {
				writeError(w, http.StatusNotFound, CodeNotFound, "epoch not found")
				return nil, false
			}
			c.App.Logger.Error("Failed to load epoch", zap.Uint64("epoch", index), zap.Error(err))
			writeError(w, http.StatusInternalServerError, CodeInternal, "query failed")
			return nil, false
		}
		return epoch, true
	}

	epoch, err := c.App.RewardDB.ActiveEpoch(ctx)
	if err != nil {
		if errors.Is(err, rewardstore.ErrNoActiveEpoch) {
			writeError(w, http.StatusNotFound, CodeNotFound, "no active epoch")
			return nil, false
		}
		c.App.Logger.Error("Failed to load active epoch", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "query failed")
		return nil, false
	}
	return epoch, true
}
