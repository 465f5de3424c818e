package controller

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/pump-pill/arenax/pkg/auth"
)

type sessionResponse struct {
	Token  string `json:"token"`
	Wallet string `json:"wallet"`
}

// HandleCreateSession exchanges a wallet-ownership proof for a session token.
// The proof is a signature by the wallet's key over a message embedding the
// wallet address.
func (c *Controller) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var proof auth.Proof
	if err := json.NewDecoder(r.Body).Decode(&proof); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	wallet, err := auth.VerifyProof(proof)
	if err != nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "proof verification failed")
		return
	}

	token, err := c.App.Sessions.Mint(wallet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to mint session")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Wallet: wallet})
}

type walletKey struct{}

// RequireWallet authenticates the Bearer session token and stashes the wallet
// in the request context.
func (c *Controller) RequireWallet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing session token")
			return
		}

		wallet, err := c.App.Sessions.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid session token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), walletKey{}, wallet)))
	})
}

// sessionWallet returns the wallet placed in the context by RequireWallet.
func sessionWallet(r *http.Request) string {
	wallet, _ := r.Context().Value(walletKey{}).(string)
	return wallet
}
