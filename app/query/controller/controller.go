package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pump-pill/arenax/app/query/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	r.HandleFunc("/leaderboard", c.HandleLeaderboard).Methods("GET")
	r.HandleFunc("/leaderboard/stats", c.HandleLeaderboardStats).Methods("GET")

	r.HandleFunc("/auth/session", c.HandleCreateSession).Methods("POST")
	r.HandleFunc("/rewards/claim", c.HandleClaim).Methods("POST")
	r.Handle("/rewards/pending", c.RequireWallet(http.HandlerFunc(c.HandlePendingRewards))).Methods("GET")

	r.HandleFunc("/ws", c.HandleWebSocket).Methods("GET")

	return r, nil
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
