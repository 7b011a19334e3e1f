package api

import (
	"net/http"

	"github.com/mtlprog/nftstate/internal/domain"
	"github.com/mtlprog/nftstate/internal/ownership"
)

type tokensResponse struct {
	ownership.Holdings
	Counts map[domain.TokenState]int `json:"counts"`
}

// GetUserTokens handles GET /api/v1/users/{address}/tokens.
// An optional ?collection= narrows resolution to one collection.
func (h *Handler) GetUserTokens(w http.ResponseWriter, r *http.Request) {
	cols := h.Collections
	if c := r.URL.Query().Get("collection"); c != "" {
		col, ok := domain.CollectionByAddress(h.Collections, c)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown collection")
			return
		}
		cols = []domain.Collection{col}
	}

	holdings, err := h.Holdings.Resolve(r.Context(), r.PathValue("address"), cols)
	if err != nil {
		writeServiceError(w, err, "failed to resolve holdings")
		return
	}
	writeJSON(w, http.StatusOK, tokensResponse{Holdings: holdings, Counts: holdings.Counts()})
}

// GetUserProfile handles GET /api/v1/users/{address}/profile.
func (h *Handler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Profiles.Profile(r.Context(), r.PathValue("address"))
	if err != nil {
		writeServiceError(w, err, "failed to build profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GetUserNotifications handles GET /api/v1/users/{address}/notifications.
// With ?unread=true only the unread counters are returned.
func (h *Handler) GetUserNotifications(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	if r.URL.Query().Get("unread") == "true" {
		counts, err := h.Indexer.FetchUnreadCounts(r.Context(), address)
		if err != nil {
			writeServiceError(w, err, "failed to fetch unread counts")
			return
		}
		writeJSON(w, http.StatusOK, counts)
		return
	}

	notifications, err := h.Indexer.FetchNotifications(r.Context(), address)
	if err != nil {
		writeServiceError(w, err, "failed to fetch notifications")
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// ClearUserNotifications handles POST /api/v1/users/{address}/notifications/clear.
func (h *Handler) ClearUserNotifications(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	if err := h.Indexer.ClearNotifications(r.Context(), address); err != nil {
		writeServiceError(w, err, "failed to clear notifications")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// GetUserActivity handles GET /api/v1/users/{address}/activity.
func (h *Handler) GetUserActivity(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validAddress(address) {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	events, err := h.Indexer.FetchUserActivity(r.Context(), address)
	if err != nil {
		writeServiceError(w, err, "failed to fetch activity")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
