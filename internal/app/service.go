// Package service wires the profile builder, aggregator, store and worker
// pool into the cycle engine served by the HTTP API and the scheduler.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	jobqueue "github.com/okian/tipster/internal/adapters/mq/queue"
	workerpool "github.com/okian/tipster/internal/adapters/mq/worker"
	"github.com/okian/tipster/internal/adapters/repository"
	"github.com/okian/tipster/internal/domain/aggregate"
	"github.com/okian/tipster/internal/domain/dedupe"
	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/internal/domain/profile"
	"github.com/okian/tipster/internal/domain/scoring"
	"github.com/okian/tipster/pkg/logger"
	"github.com/okian/tipster/pkg/metrics"
)

const (
	defaultQueueSize           = 10_000
	defaultCollaboratorTimeout = 30 * time.Second
	subscriberBuffer           = 4
)

// Service runs cycles and serves reads of the committed snapshot.
type Service struct {
	mu      sync.RWMutex
	cycleMu sync.Mutex

	builder    *profile.Builder
	aggregator *aggregate.Aggregator
	store      repository.Store
	adjuster   *scoring.Adjuster
	actors     ActorSource
	history    HistorySource

	queue    *jobqueue.InMemoryQueue
	pool     *workerpool.Pool
	inFlight dedupe.Deduper

	workerCount         int
	queueSize           int
	collaboratorTimeout time.Duration
	now                 func() time.Time

	subMu       sync.Mutex
	subscribers map[int]chan CycleReport
	nextSub     int

	lastReport *CycleReport
	started    bool
	cancel     context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of profile-building workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the job queue capacity. Actors beyond it are dropped
// for the cycle.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCollaboratorTimeout bounds each history fetch and extraction.
func WithCollaboratorTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.collaboratorTimeout = d
		}
	}
}

// WithBuilder sets the profile builder.
func WithBuilder(b *profile.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithAggregator sets the aggregator.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithStore sets the recommendation store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithAdjuster sets the context adjuster.
func WithAdjuster(a *scoring.Adjuster) Option {
	return func(s *Service) {
		if a != nil {
			s.adjuster = a
		}
	}
}

// WithActorSource sets where actor ids come from.
func WithActorSource(a ActorSource) Option {
	return func(s *Service) {
		if a != nil {
			s.actors = a
		}
	}
}

// WithHistorySource sets where wager histories come from.
func WithHistorySource(h HistorySource) Option {
	return func(s *Service) {
		if h != nil {
			s.history = h
		}
	}
}

// WithClock overrides time.Now for cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Unset collaborators default to an empty actor
// list and empty histories, so cycles yield no update.
func New(opts ...Option) *Service {
	s := &Service{
		builder:             profile.NewBuilder(),
		aggregator:          aggregate.New(),
		store:               repository.NewSnapshotStore(),
		adjuster:            scoring.NewAdjuster(),
		actors:              StaticActors(nil),
		history:             emptyHistory{},
		workerCount:         runtime.NumCPU() * 2,
		queueSize:           defaultQueueSize,
		collaboratorTimeout: defaultCollaboratorTimeout,
		now:                 time.Now,
		subscribers:         make(map[int]chan CycleReport),
		inFlight:            dedupe.NewInMemoryDeduper(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the job queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.ProcessorFunc(s.process))
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "tipster service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("collaboratorTimeout", s.collaboratorTimeout),
	)
	return nil
}

// Stop waits for an in-flight cycle, then shuts the pool down and closes
// every subscription.
func (s *Service) Stop() {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping tipster service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	s.cancel()

	s.subMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()

	s.started = false
	s.logger.Info(ctx, "tipster service stopped")
}

// Subscribe returns a channel that receives every finished cycle's report
// and a function that ends the subscription. Slow subscribers miss reports
// rather than stall a cycle.
func (s *Service) Subscribe() (<-chan CycleReport, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan CycleReport, subscriberBuffer)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subscribers[id]; ok {
				close(c)
				delete(s.subscribers, id)
			}
		})
	}
}

func (s *Service) broadcast(ctx context.Context, r CycleReport) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- r:
		default:
			s.logger.Warn(ctx, "subscriber lagging, report dropped",
				logger.Int("subscriber", id), logger.String("cycle_id", r.ID))
		}
	}
}

// Query returns recommendations from the committed snapshot.
func (s *Service) Query(ctx context.Context, f repository.Filter) ([]model.Recommendation, error) {
	return s.store.Query(ctx, f)
}

// Lookup returns one strategy by exact key.
func (s *Service) Lookup(ctx context.Context, key model.Key) (model.Recommendation, error) {
	return s.store.Lookup(ctx, key)
}

// Adjust queries recommendations for the conditions' venue and re-scores
// them against the live conditions. The store is never written.
func (s *Service) Adjust(ctx context.Context, f repository.Filter, c model.Conditions) ([]model.Recommendation, error) {
	if c.Venue != "" {
		f.Venue = c.Venue
	}
	recs, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	out := s.adjuster.Adjust(recs, c)
	metrics.RecordAdjustments(len(out))
	return out, nil
}

// LastReport returns the most recent cycle report, if any.
func (s *Service) LastReport() (CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastReport == nil {
		return CycleReport{}, false
	}
	return *s.lastReport, true
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	info := s.store.Info(ctx)
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"strategies":      info.Strategies,
		"snapshotVersion": info.Version,
		"inFlight":        s.inFlight.Size(),
	}
	if !info.CommittedAt.IsZero() {
		stats["committedAt"] = info.CommittedAt
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
	}
	if s.lastReport != nil {
		stats["lastCycle"] = *s.lastReport
	}
	return stats
}
