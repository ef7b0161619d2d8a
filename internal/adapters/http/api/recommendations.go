// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/tipster/internal/adapters/repository"
	"github.com/okian/tipster/internal/domain/model"
)

// RecommendationDependencies defines the read operations on the snapshot.
type RecommendationDependencies interface {
	queryer
	Lookup(ctx context.Context, key model.Key) (model.Recommendation, error)
}

// RecommendationsHandler serves filtered listings and exact-key lookups.
type RecommendationsHandler struct {
	deps     RecommendationDependencies
	maxLimit int
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(deps RecommendationDependencies, maxLimit int) *RecommendationsHandler {
	return &RecommendationsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleList handles GET /recommendations?venue=&category=&risk_tier=&min_confidence=&limit=.
// A store that has never committed returns an empty list.
func (h *RecommendationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_recommendations"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	f, err := filterFromQuery(r.URL.Query(), h.maxLimit)
	if err != nil {
		code := "bad_request"
		if errors.Is(err, ErrLimitExceeded) {
			code = "limit_exceeded"
		}
		writeError(w, http.StatusBadRequest, code, wrapKind(op, ErrBadRequest, err))
		return
	}
	recs, err := h.deps.Query(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrapKind(op, errors.New("query failed"), err))
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(recs))
}

// HandleLookup handles GET /strategies/{venue}/{category}/{risk_tier}.
func (h *RecommendationsHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	const op = "api.lookup_strategy"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	venue := strings.TrimSpace(r.PathValue("venue"))
	category := strings.TrimSpace(r.PathValue("category"))
	tier, ok := model.ParseRiskTier(r.PathValue("risk_tier"))
	if venue == "" || category == "" || !ok {
		writeError(w, http.StatusBadRequest, "bad_request", newKind(op, ErrBadRequest))
		return
	}

	rec, err := h.deps.Lookup(r.Context(), model.Key{Venue: venue, Category: category, RiskTier: tier})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", wrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
