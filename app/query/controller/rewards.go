package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/auth"
	"github.com/pump-pill/arenax/pkg/claims"
	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/model"
)

type claimRequest struct {
	Epoch         *uint64 `json:"epoch,omitempty"`
	WalletAddress string  `json:"walletAddress"`
	Message       string  `json:"message"`
	Signature     string  `json:"signature"`
}

type claimResponse struct {
	TransactionSignature string `json:"transactionSignature"`
	Amount               string `json:"amount"`
	Status               string `json:"status"`
}

// HandleClaim settles a reward grant. The wallet proof travels in the body,
// not the session: sessions identify, proofs authorize moving funds. Epoch
// defaults to the most recently closed one.
func (c *Controller) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	var epochIndex uint64
	if req.Epoch != nil {
		epochIndex = *req.Epoch
	} else {
		latest, err := c.App.RewardDB.LatestClosedEpoch(ctx)
		if err != nil {
			if errors.Is(err, rewardstore.ErrEpochNotFound) {
				writeError(w, http.StatusNotFound, CodeNotFound, "no closed epoch to claim against")
				return
			}
			writeError(w, http.StatusInternalServerError, CodeInternal, "query failed")
			return
		}
		epochIndex = latest.Index
	}

	// Grants are keyed by the normalized address, so the post-claim lookup
	// must use the same form regardless of the caller's casing.
	wallet := strings.ToLower(strings.TrimSpace(req.WalletAddress))

	signature, err := c.App.Claims.Claim(ctx, epochIndex, auth.Proof{
		Wallet:    req.WalletAddress,
		Message:   req.Message,
		Signature: req.Signature,
	})
	if err != nil {
		c.writeClaimError(w, wallet, epochIndex, err)
		return
	}

	grant, err := c.App.RewardDB.GetGrant(ctx, wallet, epochIndex)
	if err != nil {
		c.App.Logger.Error("Claim settled but grant lookup failed",
			zap.String("wallet", req.WalletAddress),
			zap.Uint64("epoch", epochIndex),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		TransactionSignature: signature,
		Amount:               grant.AmountLamports.String(),
		Status:               string(grant.Status),
	})
}

func (c *Controller) writeClaimError(w http.ResponseWriter, wallet string, epochIndex uint64, err error) {
	switch {
	case errors.Is(err, claims.ErrInvalidProof):
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "proof verification failed")
	case errors.Is(err, rewardstore.ErrGrantNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "no grant for this wallet and epoch")
	case errors.Is(err, rewardstore.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, CodeState, "grant already claimed")
	case errors.Is(err, rewardstore.ErrClaimInProgress):
		writeError(w, http.StatusConflict, CodeState, "claim already in progress")
	case errors.Is(err, claims.ErrPayoutFailed):
		writeError(w, http.StatusBadGateway, CodeExternalDep, "payout submission failed, claim rolled back")
	default:
		c.App.Logger.Error("Claim failed",
			zap.String("wallet", wallet),
			zap.Uint64("epoch", epochIndex),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "claim failed")
	}
}

type pendingResponse struct {
	PendingRewards []model.RewardGrant `json:"pendingRewards"`
	Epoch          *uint64             `json:"epoch,omitempty"`
	CanClaim       bool                `json:"canClaim"`
}

// HandlePendingRewards lists the session wallet's unclaimed grants.
func (c *Controller) HandlePendingRewards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet := sessionWallet(r)

	grants, err := c.App.Claims.Pending(ctx, wallet)
	if err != nil {
		c.App.Logger.Error("Failed to list pending rewards", zap.String("wallet", wallet), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "query failed")
		return
	}

	resp := pendingResponse{
		PendingRewards: grants,
		CanClaim:       len(grants) > 0,
	}
	if len(grants) > 0 {
		resp.Epoch = &grants[0].EpochIndex
	}
	if resp.PendingRewards == nil {
		resp.PendingRewards = []model.RewardGrant{}
	}

	writeJSON(w, http.StatusOK, resp)
}
