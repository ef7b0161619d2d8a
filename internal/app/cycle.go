package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/tipster/internal/adapters/mq/queue"
	workerpool "github.com/okian/tipster/internal/adapters/mq/worker"
	"github.com/okian/tipster/internal/domain/dedupe"
	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/internal/domain/profile"
	"github.com/okian/tipster/pkg/logger"
	"github.com/okian/tipster/pkg/metrics"
)

// Cycle outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeNoUpdate  = "no_update"
	OutcomeDiscarded = "discarded"
)

// Drop reasons counted per cycle.
const (
	DropValidation   = "validation"
	DropCollaborator = "collaborator"
	DropQueueFull    = "queue_full"
	DropAbandoned    = "abandoned"
)

// CycleReport summarizes one cycle.
type CycleReport struct {
	ID              string         `json:"id"`
	Outcome         string         `json:"outcome"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	DurationMS      int64          `json:"duration_ms"`
	Actors          int            `json:"actors"`
	ProfilesBuilt   int            `json:"profiles_built"`
	Dropped         map[string]int `json:"dropped,omitempty"`
	Strategies      int            `json:"strategies"`
	DominantRisk    model.RiskTier `json:"dominant_risk,omitempty"`
	SuccessFactors  []string       `json:"success_factors,omitempty"`
	SnapshotVersion uint64         `json:"snapshot_version"`
	Error           string         `json:"error,omitempty"`
}

// RunCycle profiles every known actor, aggregates the valid profiles and
// commits the result as the new snapshot. Only one cycle runs at a time.
// A cycle that yields nothing keeps the previous snapshot and reports
// OutcomeNoUpdate. A cycle whose context ends before commit is discarded
// and returns an error wrapping both ErrCycleDiscarded and ctx.Err().
func (s *Service) RunCycle(ctx context.Context) (CycleReport, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return CycleReport{}, ErrNotStarted
	}

	r := CycleReport{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
		Dropped:   make(map[string]int),
	}
	log := s.logger.With(logger.String("cycle_id", r.ID))
	log.Info(ctx, "cycle started")

	profiles, err := s.collect(ctx, log, &r)
	if err != nil {
		return s.finish(ctx, log, r, err)
	}
	if err := ctx.Err(); err != nil {
		return s.finish(ctx, log, r, err)
	}

	res := s.aggregator.Aggregate(profiles, r.StartedAt)
	if res == nil || len(res.Strategies) == 0 {
		r.Outcome = OutcomeNoUpdate
		r.SnapshotVersion = s.store.Info(ctx).Version
		return s.finish(ctx, log, r, nil)
	}
	r.Strategies = len(res.Strategies)
	r.DominantRisk = res.DominantRisk
	for _, f := range res.SuccessFactors {
		r.SuccessFactors = append(r.SuccessFactors, f.Name)
	}
	metrics.UpdateStrategiesGenerated(r.Strategies)

	if err := ctx.Err(); err != nil {
		return s.finish(ctx, log, r, err)
	}
	if err := s.store.ReplaceSnapshot(ctx, res.Strategies, r.StartedAt); err != nil {
		return s.finish(ctx, log, r, err)
	}
	r.Outcome = OutcomeCommitted
	r.SnapshotVersion = s.store.Info(ctx).Version
	return s.finish(ctx, log, r, nil)
}

// collect fans the actors out to the worker pool and gathers the built
// profiles in actor id order.
func (s *Service) collect(ctx context.Context, log logger.Logger, r *CycleReport) ([]model.ActorProfile, error) {
	ids, err := s.actors.ListActors(ctx)
	if err != nil {
		metrics.RecordCollaboratorError("actors", "list")
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer s.inFlight.Reset()
	ids = dedupe.Unique(ctx, s.inFlight, ids)
	r.Actors = len(ids)
	metrics.UpdateActorsPerCycle(len(ids))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	replies := make(chan model.JobResult, len(ids))
	done := make(chan struct{})
	defer close(done)

	pending := 0
	for _, id := range ids {
		j := model.Job{CycleID: r.ID, ActorID: id, Reply: replies, Done: done}
		if err := jobqueue.Submit(ctx, s.queue, j); err != nil {
			s.inFlight.Unrecord(ctx, id)
			s.drop(ctx, log, r, id, DropQueueFull, err)
			continue
		}
		pending++
	}

	built := make([]model.ActorProfile, 0, pending)
	for pending > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-replies:
			pending--
			s.inFlight.Unrecord(ctx, res.ActorID)
			switch {
			case res.Err == nil && res.Profile != nil:
				built = append(built, *res.Profile)
				metrics.RecordProfileBuilt()
			case errors.Is(res.Err, profile.ErrValidation), res.Err == nil:
				s.drop(ctx, log, r, res.ActorID, DropValidation, res.Err)
			case errors.Is(res.Err, workerpool.ErrAbandoned):
				s.drop(ctx, log, r, res.ActorID, DropAbandoned, res.Err)
			default:
				s.drop(ctx, log, r, res.ActorID, DropCollaborator, res.Err)
			}
		}
	}

	sort.Slice(built, func(i, j int) bool { return built[i].ActorID < built[j].ActorID })
	r.ProfilesBuilt = len(built)
	return built, nil
}

func (s *Service) drop(ctx context.Context, log logger.Logger, r *CycleReport, actorID, reason string, err error) {
	r.Dropped[reason]++
	metrics.RecordProfileDropped(reason)
	if reason == DropValidation {
		log.Debug(ctx, "actor not eligible", logger.String("actor_id", actorID), logger.Error(err))
		return
	}
	fields := []logger.Field{logger.String("actor_id", actorID), logger.String("reason", reason)}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	log.Warn(ctx, "actor dropped", fields...)
}

func (s *Service) finish(ctx context.Context, log logger.Logger, r CycleReport, err error) (CycleReport, error) {
	r.FinishedAt = s.now()
	r.DurationMS = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	if len(r.Dropped) == 0 {
		r.Dropped = nil
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCycleDiscarded, err)
		r.Outcome = OutcomeDiscarded
		r.Error = err.Error()
		r.SnapshotVersion = s.store.Info(context.WithoutCancel(ctx)).Version
		metrics.RecordErrorByComponent("cycle", "discarded")
		log.Warn(ctx, "cycle discarded", logger.Error(err))
	} else {
		log.Info(ctx, "cycle finished",
			logger.String("outcome", r.Outcome),
			logger.Int("actors", r.Actors),
			logger.Int("profiles", r.ProfilesBuilt),
			logger.Int("strategies", r.Strategies),
			logger.Any("dropped", r.Dropped),
		)
	}
	metrics.RecordCycle(r.Outcome, float64(r.DurationMS))

	s.mu.Lock()
	last := r
	s.lastReport = &last
	s.mu.Unlock()

	s.broadcast(ctx, r)
	return r, err
}

// process fetches one actor's history and builds its profile. It runs on a
// pool worker and gives up as soon as the job's cycle ends.
func (s *Service) process(ctx context.Context, j model.Job) (*model.ActorProfile, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if j.Done != nil {
		go func() {
			select {
			case <-j.Done:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	fetchCtx, fetchCancel := context.WithTimeout(ctx, s.collaboratorTimeout)
	history, err := s.history.FetchHistory(fetchCtx, j.ActorID)
	fetchCancel()
	if err != nil {
		metrics.RecordCollaboratorError("history", "fetch")
		return nil, fmt.Errorf("%w: fetch history for %s: %w", profile.ErrCollaborator, j.ActorID, err)
	}

	buildCtx, buildCancel := context.WithTimeout(ctx, s.collaboratorTimeout)
	defer buildCancel()
	return s.builder.Build(buildCtx, j.ActorID, history)
}
