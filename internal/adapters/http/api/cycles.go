// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"

	service "github.com/okian/tipster/internal/app"
)

// CyclesHandler triggers cycles on demand.
type CyclesHandler struct {
	deps CycleDependencies
}

// NewCyclesHandler creates a new cycles handler.
func NewCyclesHandler(deps CycleDependencies) *CyclesHandler {
	return &CyclesHandler{deps: deps}
}

// HandleRunCycle handles POST /cycles. It blocks until the cycle finishes
// and returns its report. A discarded cycle answers 409 with the report.
func (h *CyclesHandler) HandleRunCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	report, err := h.deps.RunCycle(r.Context())
	switch {
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "not_started", err)
	case errors.Is(err, service.ErrCycleDiscarded):
		writeJSON(w, http.StatusConflict, report)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}
