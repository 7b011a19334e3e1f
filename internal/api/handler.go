package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mtlprog/nftstate/internal/chain"
	"github.com/mtlprog/nftstate/internal/currency"
	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/indexer"
	"github.com/mtlprog/nftstate/internal/listing"
	"github.com/mtlprog/nftstate/internal/metadata"
	"github.com/mtlprog/nftstate/internal/ownership"
	"github.com/mtlprog/nftstate/internal/portfolio"
	"github.com/mtlprog/nftstate/internal/snapshot"
)

// HoldingsResolver reconciles the tokens of a wallet.
type HoldingsResolver interface {
	Resolve(ctx context.Context, wallet string, cols []domain.Collection) (ownership.Holdings, error)
}

// ProfileSource builds wallet profiles.
type ProfileSource interface {
	Profile(ctx context.Context, wallet string) (portfolio.Profile, error)
}

// MarketService provides collection market views.
type MarketService interface {
	Market(ctx context.Context, collection string) (listing.CollectionMarket, error)
	Browse(ctx context.Context, col domain.Collection, q listing.BrowseQuery) (listing.BrowseResult, error)
	Offers(ctx context.Context, collection string, tokenID int) ([]domain.Offer, error)
	ProtocolVolume(ctx context.Context, collections []string) (listing.ProtocolVolume, error)
}

// MetadataStore loads and invalidates collection metadata.
type MetadataStore interface {
	Load(ctx context.Context, col domain.Collection) (*metadata.Table, error)
	Invalidate(address string) bool
}

// IndexerSource is the subset of the indexer API exposed by the service.
type IndexerSource interface {
	FetchNotifications(ctx context.Context, address string) ([]indexer.Notification, error)
	FetchUnreadCounts(ctx context.Context, address string) (indexer.UnreadCounts, error)
	ClearNotifications(ctx context.Context, address string) error
	FetchUserActivity(ctx context.Context, address string) ([]indexer.ActivityEvent, error)
	FetchRecentActivity(ctx context.Context, limit int) ([]indexer.ActivityEvent, error)
	FetchCollectionStats(ctx context.Context, collection string) (indexer.CollectionStats, error)
	FetchLeaderboard(ctx context.Context, kind indexer.LeaderboardKind) ([]indexer.LeaderboardEntry, error)
}

// SalesSource scans recent on-chain sales.
type SalesSource interface {
	SalesSince(ctx context.Context, lookback uint64) ([]chain.Sale, error)
}

// StakingStatsSource reads protocol-wide staking stats.
type StakingStatsSource interface {
	GetGlobalStats(ctx context.Context) (domain.StakingGlobalStats, error)
}

// RateSource provides the current exchange rate and converter.
type RateSource interface {
	Snapshot(ctx context.Context) domain.ExchangeRate
	Converter() *currency.Converter
}

// SnapshotService stores and serves market snapshots.
type SnapshotService interface {
	Generate(ctx context.Context, date time.Time) (snapshot.MarketSnapshot, error)
	GetLatest(ctx context.Context) (*snapshot.Snapshot, error)
	GetByDate(ctx context.Context, date time.Time) (*snapshot.Snapshot, error)
	List(ctx context.Context, limit int) ([]snapshot.Snapshot, error)
	FloorHistory(ctx context.Context, collection string, limit int) ([]snapshot.FloorPoint, error)
}

// Deps are the services behind the HTTP API. Snapshots may be nil when no database is configured.
type Deps struct {
	Collections []domain.Collection
	Holdings    HoldingsResolver
	Profiles    ProfileSource
	Market      MarketService
	Metadata    MetadataStore
	Indexer     IndexerSource
	Sales       SalesSource
	Staking     StakingStatsSource
	Rates       RateSource
	Snapshots   SnapshotService
}

// Handler provides HTTP endpoints for the market-state API.
type Handler struct {
	Deps
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

// GetLatestSnapshot handles GET /api/v1/snapshots/latest.
func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	s, err := h.Snapshots.GetLatest(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshots found")
			return
		}
		slog.Error("failed to get latest snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetSnapshotByDate handles GET /api/v1/snapshots/{date}.
func (h *Handler) GetSnapshotByDate(w http.ResponseWriter, r *http.Request) {
	dateStr := r.PathValue("date")
	date, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	s, err := h.Snapshots.GetByDate(r.Context(), date)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found for date")
			return
		}
		slog.Error("failed to get snapshot by date", "date", dateStr, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListSnapshots handles GET /api/v1/snapshots.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 30, 365)

	snapshots, err := h.Snapshots.List(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// GenerateSnapshot handles POST /api/v1/snapshots/generate.
func (h *Handler) GenerateSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := h.Snapshots.Generate(r.Context(), time.Now())
	if err != nil {
		slog.Error("failed to generate snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate snapshot")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// queryLimit parses ?limit=, falling back to def and capping at maxLimit.
func queryLimit(r *http.Request, def, maxLimit int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return min(n, maxLimit)
		}
	}
	return def
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ownership.ErrInvalidWallet):
		writeError(w, http.StatusBadRequest, "invalid wallet address")
	case errors.Is(err, indexer.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrCapabilityUnsupported):
		writeError(w, http.StatusNotImplemented, msg)
	case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, domain.ErrPartialData):
		slog.Warn(msg, "error", err)
		writeError(w, http.StatusServiceUnavailable, msg)
	default:
		slog.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
