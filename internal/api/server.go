package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/mtlprog/nftstate/internal/metrics"
	"github.com/mtlprog/nftstate/internal/static"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, handler *Handler, m *metrics.Metrics, adminAPIKey string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(handler, m, adminAPIKey),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewRouter registers every route. Snapshot routes are only mounted when a snapshot service is set.
func NewRouter(handler *Handler, m *metrics.Metrics, adminAPIKey string) http.Handler {
	admin := func(h http.HandlerFunc) http.Handler {
		if adminAPIKey == "" {
			return h
		}
		return requireAuth(adminAPIKey, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /skill.md", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write(static.SkillMD)
	})

	mux.HandleFunc("GET /api/v1/users/{address}/tokens", handler.GetUserTokens)
	mux.HandleFunc("GET /api/v1/users/{address}/profile", handler.GetUserProfile)
	mux.HandleFunc("GET /api/v1/users/{address}/notifications", handler.GetUserNotifications)
	mux.HandleFunc("POST /api/v1/users/{address}/notifications/clear", handler.ClearUserNotifications)
	mux.HandleFunc("GET /api/v1/users/{address}/activity", handler.GetUserActivity)

	mux.HandleFunc("GET /api/v1/collections", handler.ListCollections)
	mux.HandleFunc("GET /api/v1/collections/{address}/market", handler.GetCollectionMarket)
	mux.HandleFunc("GET /api/v1/collections/{address}/tokens", handler.BrowseTokens)
	mux.HandleFunc("GET /api/v1/collections/{address}/tokens/{id}/offers", handler.GetTokenOffers)
	mux.HandleFunc("GET /api/v1/collections/{address}/traits", handler.GetCollectionTraits)
	mux.HandleFunc("GET /api/v1/collections/{address}/stats", handler.GetCollectionStats)
	mux.Handle("POST /api/v1/collections/{address}/metadata/invalidate", admin(handler.InvalidateMetadata))

	mux.HandleFunc("GET /api/v1/market/volume", handler.GetProtocolVolume)
	mux.HandleFunc("GET /api/v1/market/rate", handler.GetExchangeRate)
	mux.HandleFunc("GET /api/v1/market/activity", handler.GetRecentActivity)
	mux.HandleFunc("GET /api/v1/staking/stats", handler.GetStakingStats)
	mux.HandleFunc("GET /api/v1/leaderboard/{kind}", handler.GetLeaderboard)

	if handler.Snapshots != nil {
		mux.HandleFunc("GET /api/v1/collections/{address}/floors", handler.GetFloorHistory)
		mux.HandleFunc("GET /api/v1/snapshots/latest", handler.GetLatestSnapshot)
		mux.HandleFunc("GET /api/v1/snapshots/{date}", handler.GetSnapshotByDate)
		mux.HandleFunc("GET /api/v1/snapshots", handler.ListSnapshots)
		mux.Handle("POST /api/v1/snapshots/generate", admin(handler.GenerateSnapshot))
	}

	if m == nil {
		return mux
	}
	mux.Handle("GET /metrics", m.Handler())
	return m.Instrument(mux)
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
