// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/tipster/internal/adapters/repository"
	"github.com/okian/tipster/internal/domain/model"
)

// AdjustDependencies re-scores recommendations for live conditions.
type AdjustDependencies interface {
	Adjust(ctx context.Context, f repository.Filter, c model.Conditions) ([]model.Recommendation, error)
}

// AdjustHandler handles context adjustment requests.
type AdjustHandler struct {
	deps     AdjustDependencies
	maxLimit int
}

// NewAdjustHandler creates a new adjust handler.
func NewAdjustHandler(deps AdjustDependencies, maxLimit int) *AdjustHandler {
	return &AdjustHandler{deps: deps, maxLimit: maxLimit}
}

// adjustRequest is the body of POST /recommendations/adjust.
type adjustRequest struct {
	Venue         string   `json:"venue"`
	Category      string   `json:"category"`
	RiskTier      string   `json:"risk_tier"`
	Surface       string   `json:"surface"`
	Weather       string   `json:"weather"`
	Condition     string   `json:"condition"`
	MinConfidence *float64 `json:"min_confidence"`
	Limit         int      `json:"limit"`
}

func (a adjustRequest) filter(maxLimit int) (repository.Filter, error) {
	tier, err := parseRiskTier(a.RiskTier)
	if err != nil {
		return repository.Filter{}, err
	}
	switch {
	case a.Limit < 0:
		return repository.Filter{}, errors.New("limit must be positive")
	case a.MinConfidence != nil && *a.MinConfidence < 0:
		return repository.Filter{}, errors.New("min_confidence must not be negative")
	}
	f := repository.Filter{
		Category:      strings.TrimSpace(a.Category),
		RiskTier:      tier,
		MinConfidence: a.MinConfidence,
		Limit:         a.Limit,
	}
	return f, checkLimit(f.Limit, maxLimit)
}

func (a adjustRequest) conditions() model.Conditions {
	return model.Conditions{
		Venue:     strings.TrimSpace(a.Venue),
		Surface:   strings.TrimSpace(a.Surface),
		Weather:   strings.TrimSpace(a.Weather),
		Condition: strings.TrimSpace(a.Condition),
	}
}

// HandleAdjust handles POST /recommendations/adjust.
func (h *AdjustHandler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	const op = "api.adjust_recommendations"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	f, err := req.filter(h.maxLimit)
	if err != nil {
		code := "bad_request"
		if errors.Is(err, ErrLimitExceeded) {
			code = "limit_exceeded"
		}
		writeError(w, http.StatusBadRequest, code, wrapKind(op, ErrBadRequest, err))
		return
	}

	recs, err := h.deps.Adjust(r.Context(), f, req.conditions())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(recs))
}
