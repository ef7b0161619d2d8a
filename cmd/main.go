package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/tipster/internal/adapters/extractor"
	"github.com/okian/tipster/internal/adapters/history"
	"github.com/okian/tipster/internal/adapters/http/api"
	"github.com/okian/tipster/internal/adapters/http/swagger"
	"github.com/okian/tipster/internal/adapters/publish"
	"github.com/okian/tipster/internal/adapters/repository"
	app "github.com/okian/tipster/internal/app"
	"github.com/okian/tipster/internal/config"
	"github.com/okian/tipster/internal/domain/aggregate"
	"github.com/okian/tipster/internal/domain/profile"
	"github.com/okian/tipster/pkg/logger"
	"github.com/okian/tipster/pkg/metrics"
)

// HTTP server timeout constants. Writes allow for a synchronous cycle.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 5 * time.Minute
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithFile(cfg.LogFile)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "tipster exited with error", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// components is the wired application.
type components struct {
	history   *history.SQLiteSource
	service   *app.Service
	scheduler *app.Scheduler
	publisher *publish.Publisher
	mux       *http.ServeMux
}

// build wires every component from cfg without starting anything.
func build(ctx context.Context, cfg *config.Config, sink publish.Sink) (*components, error) {
	log := logger.Get()

	src, err := history.Open(ctx, cfg.HistoryDSN)
	if err != nil {
		return nil, err
	}

	if cfg.ExtractorAPIKey == "" {
		log.Warn(ctx, "extractor_api_key is empty; pattern extraction requests will be rejected upstream")
	}
	client := extractor.New(
		extractor.WithBaseURL(cfg.ExtractorBaseURL),
		extractor.WithAPIKey(cfg.ExtractorAPIKey),
		extractor.WithModel(cfg.ExtractorModel),
		extractor.WithMaxTokens(cfg.ExtractorMaxTokens),
		extractor.WithTimeout(cfg.CollaboratorTimeout()),
		extractor.WithRate(cfg.ExtractorRatePerS, 1),
		extractor.WithLogger(log.Named("extractor")),
	)

	var actors app.ActorSource = src
	if len(cfg.Actors) > 0 {
		actors = app.StaticActors(cfg.Actors)
	}

	store := repository.NewSnapshotStore(
		repository.WithDefaultMinConfidence(cfg.QueryMinConfidence),
		repository.WithDefaultLimit(cfg.QueryLimit),
		repository.WithMaxLimit(cfg.MaxQueryLimit),
		repository.WithUpdateInterval(cfg.UpdateInterval()),
	)

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithCollaboratorTimeout(cfg.CollaboratorTimeout()),
		app.WithActorSource(actors),
		app.WithHistorySource(src),
		app.WithStore(store),
		app.WithBuilder(profile.NewBuilder(
			profile.WithMinBets(cfg.MinBetsForAnalysis),
			profile.WithProfitableThreshold(cfg.ProfitableThreshold),
			profile.WithExtractor(client),
			profile.WithLogger(log.Named("profile")),
		)),
		app.WithAggregator(aggregate.New(
			aggregate.WithMinBets(cfg.MinBetsForAnalysis),
			aggregate.WithProfitableThreshold(cfg.ProfitableThreshold),
			aggregate.WithTopN(cfg.StrategyTopN),
		)),
	)

	sched, err := app.NewScheduler(svc, cfg.Schedule(), app.WithSchedulerLogger(log.Named("scheduler")))
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	pub := publish.NewPublisher(svc, sink,
		publish.WithMinConfidence(cfg.PublishMinConfidence),
		publish.WithLimit(cfg.PublishLimit),
		publish.WithPerMinute(cfg.PublishPerMinute),
		publish.WithLogger(log.Named("publisher")),
	)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, cfg.MaxQueryLimit).Register(ctx, mux)

	return &components{history: src, service: svc, scheduler: sched, publisher: pub, mux: mux}, nil
}

// run starts the wired application and blocks until ctx ends.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	c, err := build(ctx, cfg, publish.NewConsoleSink())
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() { _ = c.history.Close() }()

	if err := c.service.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer c.service.Stop()

	go publishOnCommit(ctx, c.service, c.publisher)
	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, c.service)

	c.scheduler.Start(ctx)
	go func() {
		if _, err := c.scheduler.RunNow(ctx); err != nil {
			log.Warn(ctx, "initial cycle failed", logger.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           c.mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.scheduler.Stop(shutdownCtx); err != nil {
		log.Warn(ctx, "scheduler stop incomplete", logger.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// publishOnCommit publishes after every committed cycle until ctx ends or
// the service closes the subscription.
func publishOnCommit(ctx context.Context, svc *app.Service, pub *publish.Publisher) {
	reports, cancel := svc.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-reports:
			if !ok {
				return
			}
			if r.Outcome != app.OutcomeCommitted {
				continue
			}
			if _, err := pub.Publish(ctx); err != nil {
				logger.Get().Warn(ctx, "publish incomplete", logger.String("cycle_id", r.ID), logger.Error(err))
			}
		}
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges derived from service stats.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workers, ok := stats["workerCount"].(int); ok && stats["started"] == true {
		metrics.UpdateWorkerActiveCount(workers)
	}
}
