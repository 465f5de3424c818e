package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/model"
)

type epochStartRequest struct {
	Index          uint64    `json:"index"`
	StartTs        time.Time `json:"startTs"`
	EndTs          time.Time `json:"endTs"`
	BudgetLamports string    `json:"budgetLamports"`
	// Activate controls whether the window goes live immediately. Nil means
	// activate, matching the common start-now flow.
	Activate *bool `json:"activate,omitempty"`
}

// HandleEpochStart creates a new epoch window and, unless told otherwise,
// activates it. Activation enforces the single-active invariant in the store,
// so a second live window is rejected, not silently allowed.
func (c *Controller) HandleEpochStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in epochStartRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	budget, err := model.ParseLamports(in.BudgetLamports)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid budgetLamports, must be a decimal string")
		return
	}

	window := model.EpochWindow{
		Index:          in.Index,
		StartUtc:       in.StartTs.UTC(),
		EndUtc:         in.EndTs.UTC(),
		BudgetLamports: budget,
	}
	if err := window.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := c.App.RewardDB.CreateEpoch(ctx, window); err != nil {
		if errors.Is(err, rewardstore.ErrEpochExists) {
			writeError(w, http.StatusConflict, "epoch index already exists")
			return
		}
		c.App.Logger.Error("Failed to create epoch", zap.Uint64("epoch", in.Index), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create epoch")
		return
	}

	if in.Activate == nil || *in.Activate {
		if err := c.App.RewardDB.ActivateEpoch(ctx, in.Index); err != nil {
			if errors.Is(err, rewardstore.ErrActiveEpochExists) {
				writeError(w, http.StatusConflict, "another epoch is already active")
				return
			}
			c.App.Logger.Error("Failed to activate epoch", zap.Uint64("epoch", in.Index), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to activate epoch")
			return
		}
	}

	epoch, err := c.App.RewardDB.GetEpoch(ctx, in.Index)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load epoch")
		return
	}

	writeJSON(w, http.StatusCreated, epoch)
}

// HandleEpochClose launches the close workflow for an epoch ahead of its
// scheduled expiry. Settlement still runs through the same workflow as the
// cron path, so closing early cannot skip grant computation.
func (c *Controller) HandleEpochClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid epoch index")
		return
	}

	epoch, err := c.App.RewardDB.GetEpoch(ctx, index)
	if err != nil {
		if errors.Is(err, rewardstore.ErrEpochNotFound) {
			writeError(w, http.StatusNotFound, "epoch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load epoch")
		return
	}
	if epoch.Status != model.EpochActive {
		writeError(w, http.StatusConflict, "epoch is not active")
		return
	}

	if err := c.App.StartCloseWorkflow(ctx, index); err != nil {
		c.App.Logger.Error("Failed to start close workflow", zap.Uint64("epoch", index), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start close workflow")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"epoch": index, "status": "closing"})
}

// HandleListEpochs returns every epoch window, newest first.
func (c *Controller) HandleListEpochs(w http.ResponseWriter, r *http.Request) {
	epochs, err := c.App.RewardDB.ListEpochs(r.Context())
	if err != nil {
		c.App.Logger.Error("Failed to list epochs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list epochs")
		return
	}
	if epochs == nil {
		epochs = []model.EpochWindow{}
	}
	writeJSON(w, http.StatusOK, epochs)
}
