package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/tipster/internal/adapters/repository"
	service "github.com/okian/tipster/internal/app"
	"github.com/okian/tipster/internal/domain/model"
	"github.com/okian/tipster/internal/domain/profile"
	"github.com/okian/tipster/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeHistory serves fixed histories and optional per-actor failures.
// Actors in hang block until their context ends. A non-zero delay holds
// every other fetch, and during runs at the start of each fetch.
type fakeHistory struct {
	mu       sync.Mutex
	byActor  map[string][]model.WagerRecord
	failures map[string]error
	hang     map[string]bool
	delay    time.Duration
	during   func()
	calls    int
}

func (f *fakeHistory) FetchHistory(ctx context.Context, actorID string) ([]model.WagerRecord, error) {
	f.mu.Lock()
	f.calls++
	hang, during := f.hang[actorID], f.during
	f.mu.Unlock()

	if during != nil {
		during()
	}
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[actorID]; err != nil {
		return nil, err
	}
	return f.byActor[actorID], nil
}

func winning(n int) []model.WagerRecord {
	out := make([]model.WagerRecord, n)
	for i := range out {
		out[i] = model.WagerRecord{
			Venue: "Ascot", Category: "win", Amount: 10, Odds: 2.0,
			Result: model.OutcomeWon, Timestamp: time.Unix(int64(i), 0),
		}
	}
	return out
}

func extraction(context.Context, string) (model.Extraction, error) {
	return model.Extraction{
		Patterns:            []string{"backs front runners on firm ground"},
		PreferredVenues:     []string{"Ascot"},
		PreferredCategories: []string{"win"},
		RiskTier:            model.RiskModerate,
		SuccessFactors:      []string{"discipline"},
	}, nil
}

func newService(actors []string, h *fakeHistory, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithActorSource(service.StaticActors(actors)),
		service.WithHistorySource(h),
		service.WithBuilder(profile.NewBuilder(
			profile.WithMinBets(5),
			profile.WithExtractor(profile.ExtractorFunc(extraction)),
		)),
	}
	return service.New(append(base, opts...)...)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("When getting stats before starting", func() {
			stats := svc.GetStats()

			Convey("Then it should report not started and an empty snapshot", func() {
				So(stats["started"], ShouldEqual, false)
				So(stats["strategies"], ShouldEqual, 0)
			})
		})

		Convey("When running a cycle before starting", func() {
			_, err := svc.RunCycle(context.Background())

			Convey("Then it should fail with ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_RunCycle(t *testing.T) {
	Convey("Given a started service with two profitable actors", t, func() {
		h := &fakeHistory{byActor: map[string][]model.WagerRecord{
			"alice": winning(6),
			"bob":   winning(8),
		}}
		svc := newService([]string{"bob", "alice", " bob ", ""}, h)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		reports, unsubscribe := svc.Subscribe()
		defer unsubscribe()

		Convey("When a cycle runs", func() {
			r, err := svc.RunCycle(context.Background())

			Convey("Then it should commit a new snapshot", func() {
				So(err, ShouldBeNil)
				So(r.ID, ShouldNotBeEmpty)
				So(r.Outcome, ShouldEqual, service.OutcomeCommitted)
				So(r.Actors, ShouldEqual, 2)
				So(r.ProfilesBuilt, ShouldEqual, 2)
				So(r.Strategies, ShouldEqual, 1)
				So(r.DominantRisk, ShouldEqual, model.RiskModerate)
				So(r.SuccessFactors, ShouldResemble, []string{"discipline"})
				So(r.SnapshotVersion, ShouldEqual, 1)
			})

			Convey("Then the strategy should be queryable", func() {
				recs, err := svc.Query(context.Background(), repository.Filter{})
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 1)
				So(recs[0].Venue, ShouldEqual, "Ascot")
				So(recs[0].Confidence, ShouldAlmostEqual, 1.0)

				rec, err := svc.Lookup(context.Background(), recs[0].Key)
				So(err, ShouldBeNil)
				So(rec.Key, ShouldResemble, recs[0].Key)
			})

			Convey("Then subscribers should receive the report", func() {
				select {
				case got := <-reports:
					So(got.ID, ShouldEqual, r.ID)
				case <-time.After(time.Second):
					So("no report delivered", ShouldBeEmpty)
				}
			})

			Convey("Then stats should describe the last cycle", func() {
				stats := svc.GetStats()
				So(stats["strategies"], ShouldEqual, 1)
				last, ok := svc.LastReport()
				So(ok, ShouldBeTrue)
				So(last.ID, ShouldEqual, r.ID)
			})
		})

		Convey("When two cycles run back to back", func() {
			first, err := svc.RunCycle(context.Background())
			So(err, ShouldBeNil)
			second, err := svc.RunCycle(context.Background())
			So(err, ShouldBeNil)

			Convey("Then each should get its own id and a new version", func() {
				So(second.ID, ShouldNotEqual, first.ID)
				So(second.SnapshotVersion, ShouldEqual, first.SnapshotVersion+1)
			})
		})
	})
}

func TestService_RunCycleDrops(t *testing.T) {
	Convey("Given a started service with one failing and one short history", t, func() {
		h := &fakeHistory{
			byActor: map[string][]model.WagerRecord{
				"alice": winning(6),
				"carol": winning(2),
			},
			failures: map[string]error{"bob": errors.New("connection reset")},
		}
		svc := newService([]string{"alice", "bob", "carol"}, h)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When a cycle runs", func() {
			r, err := svc.RunCycle(context.Background())

			Convey("Then only the failing actors should be dropped", func() {
				So(err, ShouldBeNil)
				So(r.Outcome, ShouldEqual, service.OutcomeCommitted)
				So(r.ProfilesBuilt, ShouldEqual, 1)
				So(r.Dropped[service.DropCollaborator], ShouldEqual, 1)
				So(r.Dropped[service.DropValidation], ShouldEqual, 1)
			})
		})
	})

	Convey("Given a started service where one actor's history hangs", t, func() {
		h := &fakeHistory{
			byActor: map[string][]model.WagerRecord{"fast": winning(6)},
			hang:    map[string]bool{"slow": true},
		}
		svc := newService([]string{"fast", "slow"}, h,
			service.WithCollaboratorTimeout(100*time.Millisecond))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When a cycle runs", func() {
			begin := time.Now()
			r, err := svc.RunCycle(context.Background())
			elapsed := time.Since(begin)

			Convey("Then only the hanging actor should be dropped once its timeout fires", func() {
				So(err, ShouldBeNil)
				So(elapsed, ShouldBeLessThan, 5*time.Second)
				So(r.Outcome, ShouldEqual, service.OutcomeCommitted)
				So(r.ProfilesBuilt, ShouldEqual, 1)
				So(r.Dropped[service.DropCollaborator], ShouldEqual, 1)
				recs, err := svc.Query(context.Background(), repository.Filter{})
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given a started service whose queue holds a single job", t, func() {
		actors := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a1 "}
		h := &fakeHistory{byActor: map[string][]model.WagerRecord{}, delay: 50 * time.Millisecond}
		for _, id := range actors[:6] {
			h.byActor[id] = winning(6)
		}
		svc := newService(actors, h, service.WithWorkerCount(1), service.WithQueueSize(1))
		var peak int64
		h.during = func() {
			if n, _ := svc.GetStats()["inFlight"].(int64); n > atomic.LoadInt64(&peak) {
				atomic.StoreInt64(&peak, n)
			}
		}
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When a cycle runs", func() {
			r, err := svc.RunCycle(context.Background())

			Convey("Then overflow actors should be dropped as queue_full and every in-flight id released", func() {
				So(err, ShouldBeNil)
				So(r.Actors, ShouldEqual, 6)
				So(r.Dropped[service.DropQueueFull], ShouldBeGreaterThan, 0)
				So(r.ProfilesBuilt+r.Dropped[service.DropQueueFull], ShouldEqual, 6)
				So(atomic.LoadInt64(&peak), ShouldBeGreaterThan, 0)
				So(atomic.LoadInt64(&peak), ShouldBeLessThanOrEqualTo, int64(r.ProfilesBuilt))
				So(svc.GetStats()["inFlight"], ShouldEqual, int64(0))
			})
		})
	})

	Convey("Given a started service where no actor qualifies", t, func() {
		h := &fakeHistory{byActor: map[string][]model.WagerRecord{"carol": winning(2)}}
		svc := newService([]string{"carol"}, h)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("When a cycle runs", func() {
			r, err := svc.RunCycle(context.Background())

			Convey("Then it should report no update and keep the empty snapshot", func() {
				So(err, ShouldBeNil)
				So(r.Outcome, ShouldEqual, service.OutcomeNoUpdate)
				So(r.SnapshotVersion, ShouldEqual, 0)
				recs, err := svc.Query(context.Background(), repository.Filter{})
				So(err, ShouldBeNil)
				So(recs, ShouldBeEmpty)
			})
		})
	})
}

func TestService_RunCycleCancelled(t *testing.T) {
	Convey("Given a service with a committed snapshot", t, func() {
		h := &fakeHistory{byActor: map[string][]model.WagerRecord{"alice": winning(6)}}
		svc := newService([]string{"alice"}, h)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		_, err := svc.RunCycle(context.Background())
		So(err, ShouldBeNil)

		Convey("When a cycle runs with a cancelled context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			r, err := svc.RunCycle(ctx)

			Convey("Then it should be discarded and the snapshot kept", func() {
				So(errors.Is(err, service.ErrCycleDiscarded), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(r.Outcome, ShouldEqual, service.OutcomeDiscarded)
				So(r.SnapshotVersion, ShouldEqual, 1)

				recs, err := svc.Query(context.Background(), repository.Filter{})
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 1)
			})
		})
	})
}

func TestService_Adjust(t *testing.T) {
	Convey("Given a service with a committed snapshot", t, func() {
		h := &fakeHistory{byActor: map[string][]model.WagerRecord{"alice": winning(6)}}
		svc := newService([]string{"alice"}, h)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		_, err := svc.RunCycle(context.Background())
		So(err, ShouldBeNil)

		Convey("When adjusting for matching firm ground", func() {
			c := model.Conditions{Venue: "Ascot", Condition: "firm"}
			recs, err := svc.Adjust(context.Background(), repository.Filter{}, c)

			Convey("Then the confidence should be boosted and the store untouched", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 1)
				So(recs[0].Confidence, ShouldAlmostEqual, 1.1)
				So(recs[0].AdjustedFor, ShouldNotBeNil)

				stored, err := svc.Query(context.Background(), repository.Filter{})
				So(err, ShouldBeNil)
				So(stored[0].Confidence, ShouldAlmostEqual, 1.0)
			})
		})

		Convey("When adjusting for a venue with no strategies", func() {
			recs, err := svc.Adjust(context.Background(), repository.Filter{}, model.Conditions{Venue: "Bath"})

			Convey("Then nothing should be returned", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldBeEmpty)
			})
		})
	})
}

func TestService_Subscribe(t *testing.T) {
	Convey("Given a subscription", t, func() {
		svc := service.New()
		ch, unsubscribe := svc.Subscribe()

		Convey("When it is cancelled twice", func() {
			unsubscribe()
			unsubscribe()

			Convey("Then the channel should be closed", func() {
				_, ok := <-ch
				So(ok, ShouldBeFalse)
			})
		})
	})
}
