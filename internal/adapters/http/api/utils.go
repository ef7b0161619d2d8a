// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/tipster/internal/adapters/repository"
	"github.com/okian/tipster/internal/domain/model"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// parseRiskTier accepts an empty value as "any tier".
func parseRiskTier(s string) (model.RiskTier, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	t, ok := model.ParseRiskTier(s)
	if !ok {
		return "", fmt.Errorf("unknown risk_tier %q", s)
	}
	return t, nil
}

// filterFromQuery reads venue, category, risk_tier, min_confidence and limit.
func filterFromQuery(q url.Values, maxLimit int) (repository.Filter, error) {
	tier, err := parseRiskTier(q.Get("risk_tier"))
	if err != nil {
		return repository.Filter{}, err
	}
	f := repository.Filter{
		Venue:    strings.TrimSpace(q.Get("venue")),
		Category: strings.TrimSpace(q.Get("category")),
		RiskTier: tier,
	}
	if v := q.Get("min_confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil || c < 0 {
			return repository.Filter{}, fmt.Errorf("invalid min_confidence %q", v)
		}
		f.MinConfidence = &c
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return repository.Filter{}, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	return f, checkLimit(f.Limit, maxLimit)
}

func checkLimit(limit, maxLimit int) error {
	if maxLimit > 0 && limit > maxLimit {
		return fmt.Errorf("%w: %d > %d", ErrLimitExceeded, limit, maxLimit)
	}
	return nil
}
