package seed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	historydb "github.com/okian/tipster/internal/adapters/history"
	"github.com/okian/tipster/internal/domain/types"
	"github.com/okian/tipster/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// Summarizer renders the ranking fetched after a cycle.
type Summarizer interface {
	Summarize(ctx context.Context, entries []types.Entry) error
}

// Run generates actors, stores their histories and, when ServiceURL is
// set, triggers a cycle and hands the resulting ranking to out.
func Run(ctx context.Context, cfg Config, out Summarizer) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if err := cfg.Validate(); err != nil {
		return stats, err
	}
	log := logger.Get().Named("seed")

	src, err := historydb.Open(ctx, cfg.DSN)
	if err != nil {
		return stats, err
	}
	defer func() { _ = src.Close() }()

	actors := Generate(cfg)
	for _, a := range actors {
		if err := src.Insert(ctx, a.ID, a.History...); err != nil {
			return stats, fmt.Errorf("insert %s: %w", a.ID, err)
		}
		stats.ActorsGenerated++
		stats.WagersInserted += len(a.History)
		if a.Sharp {
			stats.SharpActors++
		}
	}
	log.Info(ctx, "histories stored",
		logger.String("dsn", cfg.DSN),
		logger.Int("actors", stats.ActorsGenerated),
		logger.Int("sharp", stats.SharpActors),
		logger.Int("wagers", stats.WagersInserted),
	)

	if cfg.ServiceURL != "" {
		entries, err := trigger(ctx, cfg, log)
		if err != nil {
			return stats, err
		}
		if out != nil {
			if err := out.Summarize(ctx, entries); err != nil {
				return stats, err
			}
		}
	}

	stats.Duration = time.Since(stats.StartTime)
	return stats, nil
}

type cycleReport struct {
	ID            string         `json:"id"`
	Outcome       string         `json:"outcome"`
	ProfilesBuilt int            `json:"profiles_built"`
	Strategies    int            `json:"strategies"`
	Dropped       map[string]int `json:"dropped"`
}

type listResponse struct {
	Ranking []types.Entry `json:"ranking"`
}

func trigger(ctx context.Context, cfg Config, log logger.Logger) ([]types.Entry, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().SetBaseURL(cfg.ServiceURL).SetTimeout(timeout)

	var report cycleReport
	resp, err := client.R().SetContext(ctx).SetResult(&report).Post("/cycles")
	if err != nil {
		return nil, fmt.Errorf("run cycle: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("run cycle: status %d: %s", resp.StatusCode(), resp.String())
	}
	log.Info(ctx, "cycle finished",
		logger.String("cycle_id", report.ID),
		logger.String("outcome", report.Outcome),
		logger.Int("profiles", report.ProfilesBuilt),
		logger.Int("strategies", report.Strategies),
		logger.Any("dropped", report.Dropped),
	)

	req := client.R().SetContext(ctx).SetResult(&listResponse{})
	if cfg.Top > 0 {
		req.SetQueryParam("limit", strconv.Itoa(cfg.Top))
	}
	resp, err = req.Get("/recommendations")
	if err != nil {
		return nil, fmt.Errorf("fetch recommendations: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch recommendations: status %d", resp.StatusCode())
	}
	return resp.Result().(*listResponse).Ranking, nil
}
