// Package metrics exports run statistics in the Prometheus format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/brittle/internal/harness"
	"github.com/roach88/brittle/internal/tap"
)

// Namespace prefixes every metric name.
const Namespace = "brittle"

// Result label values.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Collector is a harness.Sink that counts tests and assertions by result
// and records run outcome. Each Collector owns its registry.
type Collector struct {
	registry *prometheus.Registry

	testsTotal     *prometheus.CounterVec
	assertsTotal   *prometheus.CounterVec
	testDuration   prometheus.Histogram
	runsTotal      prometheus.Counter
	lateAssertions prometheus.Counter
	exitCode       prometheus.Gauge
	runDuration    prometheus.Gauge
}

var _ harness.Sink = (*Collector)(nil)

// NewCollector creates a collector with its metrics registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tests_total",
			Help:      "Test nodes reported, by result",
		}, []string{"result"}),
		assertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "assertions_total",
			Help:      "Assertions reported, by result",
		}, []string{"result"}),
		testDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "test_duration_seconds",
			Help:      "Duration of top-level tests",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Completed runs",
		}),
		lateAssertions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "late_assertions_total",
			Help:      "Assertions made after their test had ended",
		}),
		exitCode: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_exit_code",
			Help:      "Exit code of the last completed run",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last completed run",
		}),
	}
}

// Registry returns the collector's registry, e.g. for an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Consume counts every node and assertion of a top-level test.
func (c *Collector) Consume(_ int, t *tap.Test) error {
	t.Walk(func(n *tap.Test) {
		c.testsTotal.WithLabelValues(result(n.Ok)).Inc()
		passed, total := n.Asserts()
		c.assertsTotal.WithLabelValues(ResultPass).Add(float64(passed))
		c.assertsTotal.WithLabelValues(ResultFail).Add(float64(total - passed))
	})
	c.testDuration.Observe(t.Elapsed.Seconds())
	return nil
}

// Complete records the run outcome.
func (c *Collector) Complete(r *harness.Result) error {
	c.runsTotal.Inc()
	c.lateAssertions.Add(float64(r.LateAssertions))
	c.exitCode.Set(float64(r.ExitCode))
	c.runDuration.Set(r.Summary.Elapsed.Seconds())
	return nil
}

// WriteTextfile writes the registry to path for a node_exporter textfile
// collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func result(ok bool) string {
	if ok {
		return ResultPass
	}
	return ResultFail
}
