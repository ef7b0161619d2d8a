package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/tipster/internal/adapters/publish"
	"github.com/okian/tipster/internal/seed"
	"github.com/okian/tipster/pkg/logger"
)

// Default configuration constants.
const (
	defaultActors       = 200
	defaultBetsPerActor = 120
	defaultSharpShare   = 0.25
	defaultTop          = 10
	defaultTimeout      = 2 * time.Minute
)

func main() {
	var (
		dsn        = flag.String("dsn", "tipster.db", "History database path")
		actors     = flag.Int("actors", defaultActors, "Number of actors to generate")
		bets       = flag.Int("bets", defaultBetsPerActor, "Wagers per actor")
		sharpShare = flag.Float64("sharp", defaultSharpShare, "Fraction of profitable actors")
		seedValue  = flag.Uint64("seed", uint64(time.Now().UnixNano()), "PRNG seed")
		url        = flag.String("url", "", "Service base URL; when set a cycle is triggered after seeding")
		top        = flag.Int("top", defaultTop, "Recommendations to print after the cycle")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := seed.Run(ctx, seed.Config{
		DSN:          *dsn,
		Actors:       *actors,
		BetsPerActor: *bets,
		SharpShare:   *sharpShare,
		Seed:         *seedValue,
		ServiceURL:   *url,
		Top:          *top,
		Timeout:      *timeout,
	}, publish.NewConsoleSink())
	if err != nil {
		logger.Get().Error(ctx, "seed failed", logger.Error(err))
		os.Exit(1)
	}
	logger.Get().Info(ctx, "seed complete",
		logger.Int("actors", stats.ActorsGenerated),
		logger.Int("wagers", stats.WagersInserted),
		logger.Duration("duration", stats.Duration),
	)
}
