package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/indexer"
	"github.com/mtlprog/nftstate/internal/listing"
	"github.com/mtlprog/nftstate/internal/rarity"
)

const (
	defaultBrowseLimit = 50
	maxBrowseLimit     = 500
	traitParamPrefix   = "trait."
)

func validAddress(address string) bool {
	return common.IsHexAddress(address)
}

// collection resolves the {address} path value against the registry, writing 404 when unknown.
func (h *Handler) collection(w http.ResponseWriter, r *http.Request) (domain.Collection, bool) {
	col, ok := domain.CollectionByAddress(h.Collections, r.PathValue("address"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
	}
	return col, ok
}

// ListCollections handles GET /api/v1/collections.
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Collections)
}

// GetCollectionMarket handles GET /api/v1/collections/{address}/market.
func (h *Handler) GetCollectionMarket(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	market, err := h.Market.Market(r.Context(), col.Address)
	if err != nil {
		writeServiceError(w, err, "failed to read collection market")
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// BrowseTokens handles GET /api/v1/collections/{address}/tokens.
func (h *Handler) BrowseTokens(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	result, err := h.Market.Browse(r.Context(), col, parseBrowseQuery(r))
	if err != nil {
		writeServiceError(w, err, "failed to browse tokens")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseBrowseQuery reads sort, order, trait.<type>, listed, limit and offset.
func parseBrowseQuery(r *http.Request) listing.BrowseQuery {
	q := r.URL.Query()
	bq := listing.BrowseQuery{
		Sort: listing.SortOptions{
			Field: listing.ParseSortField(q.Get("sort")),
			Desc:  q.Get("order") == "desc",
		},
		ListedOnly: q.Get("listed") == "true",
		Limit:      queryLimit(r, defaultBrowseLimit, maxBrowseLimit),
	}
	if o, err := strconv.Atoi(q.Get("offset")); err == nil && o > 0 {
		bq.Offset = o
	}
	for key, values := range q {
		traitType, found := strings.CutPrefix(key, traitParamPrefix)
		if !found || traitType == "" || len(values) == 0 || values[0] == "" {
			continue
		}
		if bq.Traits == nil {
			bq.Traits = make(map[string]string)
		}
		bq.Traits[traitType] = values[0]
	}
	return bq
}

// GetCollectionStats handles GET /api/v1/collections/{address}/stats.
// Indexer stats are preferred; the marketplace counters are read when the indexer fails.
func (h *Handler) GetCollectionStats(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	stats, err := h.Indexer.FetchCollectionStats(r.Context(), col.Address)
	if err == nil {
		writeJSON(w, http.StatusOK, stats)
		return
	}
	slog.Warn("indexer collection stats failed, reading marketplace", "collection", col.Address, "error", err)

	market, err := h.Market.Market(r.Context(), col.Address)
	if err != nil {
		writeServiceError(w, err, "failed to read collection stats")
		return
	}
	if market.Volume == nil {
		writeServiceError(w, domain.ErrSourceUnavailable, "failed to read collection stats")
		return
	}
	writeJSON(w, http.StatusOK, indexer.CollectionStats{
		VolumeSGB:  market.Volume.VolumeA,
		VolumePOND: market.Volume.VolumeB,
		Sales:      market.Volume.Sales,
	})
}

// GetTokenOffers handles GET /api/v1/collections/{address}/tokens/{id}/offers.
func (h *Handler) GetTokenOffers(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}
	offers, err := h.Market.Offers(r.Context(), col.Address, id)
	if err != nil {
		writeServiceError(w, err, "failed to read offers")
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

// GetCollectionTraits handles GET /api/v1/collections/{address}/traits.
func (h *Handler) GetCollectionTraits(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	table, err := h.Metadata.Load(r.Context(), col)
	if err != nil {
		writeServiceError(w, err, "failed to load metadata")
		return
	}
	writeJSON(w, http.StatusOK, rarity.Catalog(table.Metadata))
}

// GetFloorHistory handles GET /api/v1/collections/{address}/floors.
func (h *Handler) GetFloorHistory(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	points, err := h.Snapshots.FloorHistory(r.Context(), col.Key(), queryLimit(r, 30, 365))
	if err != nil {
		writeServiceError(w, err, "failed to read floor history")
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// InvalidateMetadata handles POST /api/v1/collections/{address}/metadata/invalidate.
func (h *Handler) InvalidateMetadata(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"invalidated": h.Metadata.Invalidate(col.Address)})
}
