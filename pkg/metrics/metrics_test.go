package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options twice", func() {
			Convey("Then each manager should own its registry and not collide", func() {
				So(func() {
					_ = NewManager()
					_ = NewManager()
				}, ShouldNotPanic)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("pfx"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics should be registered under the custom names", func() {
				So(manager, ShouldNotBeNil)
				manager.cyclesTotal.WithLabelValues("committed").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_unit_pfx_cycles_total")
			})

			Convey("Then constant labels and custom buckets should be applied", func() {
				manager.cycleDuration.Observe(5)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() != "test_unit_pfx_cycle_duration_milliseconds" {
						continue
					}
					found = true
					metric := f.GetMetric()[0]
					So(metric.GetLabel(), ShouldHaveLength, 1)
					So(metric.GetLabel()[0].GetName(), ShouldEqual, "env")
					So(metric.GetLabel()[0].GetValue(), ShouldEqual, "test")
					So(metric.GetHistogram().GetBucket(), ShouldHaveLength, 3)
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording a committed cycle", func() {
			before := testutil.ToFloat64(globalManager.cyclesTotal.WithLabelValues("committed"))
			RecordCycle("committed", 120)

			Convey("Then the outcome counter should increase by one", func() {
				after := testutil.ToFloat64(globalManager.cyclesTotal.WithLabelValues("committed"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When updating the snapshot gauges", func() {
			now := time.Unix(1_700_000_000, 0)
			UpdateSnapshot(7, 3, now)

			Convey("Then the gauges should reflect the commit", func() {
				So(testutil.ToFloat64(globalManager.snapshotStrategies), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.snapshotVersion), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.snapshotLastUnix), ShouldEqual, 1_700_000_000)
			})
		})

		Convey("When recording every other metric", func() {
			So(func() {
				RecordProfileBuilt()
				RecordProfileDropped("validation")
				UpdateActorsPerCycle(10)
				UpdateStrategiesGenerated(4)
				RecordStoreQuery("query", 0.2)
				RecordDecayedReads(2)
				RecordAdjustments(3)
				RecordCollaboratorLatency("extractor", 250)
				RecordCollaboratorError("history", "timeout")
				RecordPublish("sent")
				RecordHTTPRequest("/recommendations", "GET", "200")
				RecordHTTPRequestDuration("/recommendations", "GET", "200", 3)
				UpdateQueueSize(5)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.05)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(4)
				RecordWorkerProcessingLatency(40)
				RecordWorkerError()
				RecordErrorByComponent("worker", "timeout")
				RecordErrorByType("timeout", "high")
				RecordErrorByEndpoint("/cycles", "POST", "server_error")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})

		Convey("Then the registry should be gatherable", func() {
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		done := make(chan struct{}, 10)
		for i := 0; i < 10; i++ {
			go func() {
				for j := 0; j < 100; j++ {
					RecordProfileBuilt()
					UpdateQueueSize(j)
					RecordStoreQuery("lookup", float64(j))
				}
				done <- struct{}{}
			}()
		}
		for i := 0; i < 10; i++ {
			<-done
		}
		So(true, ShouldBeTrue)
	})
}
