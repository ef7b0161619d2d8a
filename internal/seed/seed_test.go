package seed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/tipster/internal/domain/profile"
	"github.com/okian/tipster/internal/domain/types"
	"github.com/okian/tipster/internal/seed"
	"github.com/okian/tipster/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type captureSummarizer struct {
	entries []types.Entry
}

func (c *captureSummarizer) Summarize(_ context.Context, entries []types.Entry) error {
	c.entries = entries
	return nil
}

func baseConfig() seed.Config {
	return seed.Config{
		DSN:          ":memory:",
		Actors:       10,
		BetsPerActor: 500,
		SharpShare:   0.3,
		Seed:         42,
		Now:          time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a seed configuration", t, func() {
		cfg := baseConfig()

		Convey("When generating twice with the same seed", func() {
			a := seed.Generate(cfg)
			b := seed.Generate(cfg)

			Convey("Then the output should be identical", func() {
				So(a, ShouldResemble, b)
				So(a, ShouldHaveLength, 10)
				So(a[0].ID, ShouldNotEqual, a[1].ID)
			})
		})

		Convey("When generating actors", func() {
			actors := seed.Generate(cfg)

			Convey("Then sharp actors should clear the profitability threshold and the rest should not", func() {
				sharp := 0
				for _, a := range actors {
					So(a.History, ShouldHaveLength, 500)
					p, _ := profile.Summarize(a.History)
					if a.Sharp {
						sharp++
						So(p, ShouldBeGreaterThanOrEqualTo, profile.DefaultProfitableThreshold)
					} else {
						So(p, ShouldBeLessThan, profile.DefaultProfitableThreshold)
					}
				}
				So(sharp, ShouldEqual, 3)
			})

			Convey("Then wagers should be in chronological order ending before now", func() {
				h := actors[0].History
				for i := 1; i < len(h); i++ {
					So(h[i].Timestamp.After(h[i-1].Timestamp), ShouldBeTrue)
				}
				So(h[len(h)-1].Timestamp.Before(cfg.Now), ShouldBeTrue)
			})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given an invalid configuration", t, func() {
		cfg := baseConfig()
		cfg.Actors = 0
		_, err := seed.Run(context.Background(), cfg, nil)
		So(errors.Is(err, seed.ErrInvalidConfig), ShouldBeTrue)
	})

	Convey("Given a running service", t, func() {
		var cycles int
		var limit string
		mux := http.NewServeMux()
		mux.HandleFunc("/cycles", func(w http.ResponseWriter, r *http.Request) {
			cycles++
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"c1","outcome":"committed","profiles_built":3,"strategies":2}`))
		})
		mux.HandleFunc("/recommendations", func(w http.ResponseWriter, r *http.Request) {
			limit = r.URL.Query().Get("limit")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"count":1,"ranking":[{"rank":1,"key":"Ascot|win|moderate","confidence":0.9}]}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		cfg := baseConfig()
		cfg.BetsPerActor = 60
		cfg.ServiceURL = srv.URL
		cfg.Top = 5
		out := &captureSummarizer{}

		Convey("When the seed runs", func() {
			stats, err := seed.Run(context.Background(), cfg, out)

			Convey("Then histories should be stored and the ranking printed", func() {
				So(err, ShouldBeNil)
				So(stats.ActorsGenerated, ShouldEqual, 10)
				So(stats.SharpActors, ShouldEqual, 3)
				So(stats.WagersInserted, ShouldEqual, 600)
				So(cycles, ShouldEqual, 1)
				So(limit, ShouldEqual, "5")
				So(out.entries, ShouldHaveLength, 1)
				So(out.entries[0].Key, ShouldEqual, "Ascot|win|moderate")
			})
		})
	})
}
