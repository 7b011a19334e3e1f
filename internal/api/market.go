package api

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/indexer"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100

	// salesLookbackBlocks bounds the on-chain fallback scan for the traders leaderboard.
	salesLookbackBlocks = 50000
)

// GetProtocolVolume handles GET /api/v1/market/volume.
func (h *Handler) GetProtocolVolume(w http.ResponseWriter, r *http.Request) {
	addresses := make([]string, len(h.Collections))
	for i, c := range h.Collections {
		addresses[i] = c.Address
	}
	volume, err := h.Market.ProtocolVolume(r.Context(), addresses)
	if err != nil {
		writeServiceError(w, err, "failed to read protocol volume")
		return
	}
	writeJSON(w, http.StatusOK, volume)
}

// GetExchangeRate handles GET /api/v1/market/rate.
func (h *Handler) GetExchangeRate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Rates.Snapshot(r.Context()))
}

// GetRecentActivity handles GET /api/v1/market/activity.
func (h *Handler) GetRecentActivity(w http.ResponseWriter, r *http.Request) {
	events, err := h.Indexer.FetchRecentActivity(r.Context(), queryLimit(r, defaultActivityLimit, maxActivityLimit))
	if err != nil {
		writeServiceError(w, err, "failed to fetch recent activity")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetStakingStats handles GET /api/v1/staking/stats.
func (h *Handler) GetStakingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Staking.GetGlobalStats(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to read staking stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetLeaderboard handles GET /api/v1/leaderboard/{kind}.
// The traders board falls back to recent on-chain sales when the indexer has nothing.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	kind, ok := indexer.ParseLeaderboardKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown leaderboard, expected stakers, traders or lp")
		return
	}

	entries, err := h.Indexer.FetchLeaderboard(r.Context(), kind)
	if kind == indexer.LeaderboardTraders && (err != nil || len(entries) == 0) {
		if err != nil {
			slog.Warn("indexer traders leaderboard failed, scanning chain", "error", err)
		}
		entries, err = h.tradersFromSales(r.Context())
	}
	if err != nil {
		writeServiceError(w, err, "failed to read leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// tradersFromSales aggregates recent Sold events per buyer, ranked by A-equivalent volume.
func (h *Handler) tradersFromSales(ctx context.Context) ([]indexer.LeaderboardEntry, error) {
	sales, err := h.Sales.SalesSince(ctx, salesLookbackBlocks)
	if err != nil {
		return nil, err
	}

	rate := h.Rates.Snapshot(ctx)
	conv := h.Rates.Converter()
	byBuyer := make(map[string]*indexer.LeaderboardEntry)
	for _, s := range sales {
		buyer := strings.ToLower(s.Buyer)
		e, ok := byBuyer[buyer]
		if !ok {
			e = &indexer.LeaderboardEntry{Address: buyer}
			byBuyer[buyer] = e
		}
		amount := conv.Sum(domain.FromWei(s.PriceA), domain.FromWei(s.PriceB), rate.APerB)
		e.Volume = e.Volume.Add(amount)
		e.Sales++
	}

	entries := make([]indexer.LeaderboardEntry, 0, len(byBuyer))
	for _, e := range byBuyer {
		entries = append(entries, *e)
	}
	slices.SortFunc(entries, func(a, b indexer.LeaderboardEntry) int {
		return cmp.Or(
			b.Volume.Cmp(a.Volume),
			cmp.Compare(b.Sales, a.Sales),
			strings.Compare(a.Address, b.Address),
		)
	})
	return entries, nil
}
