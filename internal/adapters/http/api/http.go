// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/tipster/internal/adapters/repository"
	service "github.com/okian/tipster/internal/app"
	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/internal/domain/types"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	RecommendationDependencies
	AdjustDependencies
	CycleDependencies
	StatsProvider
}

// Entry mirrors the ranked row returned alongside query results.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler          *HealthHandler
	statsHandler           *StatsHandler
	recommendationsHandler *RecommendationsHandler
	adjustHandler          *AdjustHandler
	cyclesHandler          *CyclesHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// limit a caller may request; zero means uncapped.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:          NewHealthHandler(),
		statsHandler:           NewStatsHandler(deps),
		recommendationsHandler: NewRecommendationsHandler(deps, maxLimit),
		adjustHandler:          NewAdjustHandler(deps, maxLimit),
		cyclesHandler:          NewCyclesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/recommendations", MetricsMiddleware(s.recommendationsHandler.HandleList, "recommendations"))
	mux.HandleFunc("/recommendations/adjust", MetricsMiddleware(s.adjustHandler.HandleAdjust, "adjust"))
	mux.HandleFunc("/strategies/{venue}/{category}/{risk_tier}", MetricsMiddleware(s.recommendationsHandler.HandleLookup, "strategies"))
	mux.HandleFunc("/cycles", MetricsMiddleware(s.cyclesHandler.HandleRunCycle, "cycles"))
}

// listResponse is the body of every recommendation listing.
type listResponse struct {
	Count           int                    `json:"count"`
	Recommendations []model.Recommendation `json:"recommendations"`
	Ranking         []Entry                `json:"ranking"`
}

func newListResponse(recs []model.Recommendation) listResponse {
	if recs == nil {
		recs = []model.Recommendation{}
	}
	return listResponse{Count: len(recs), Recommendations: recs, Ranking: types.Rank(recs)}
}

// CycleDependencies runs a cycle on demand.
type CycleDependencies interface {
	RunCycle(ctx context.Context) (service.CycleReport, error)
}

// queryer is the read side shared by listing and adjusting.
type queryer interface {
	Query(ctx context.Context, f repository.Filter) ([]model.Recommendation, error)
}
