// Package metrics registers the engine's prometheus collectors and
// counters, promoted to a scrapeable surface by the ambient metrics
// stack. The /metrics HTTP handler this package exposes is an optional
// adjunct a caller may mount; the engine itself never listens on a port.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkUnitsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "imagec",
		Subsystem: "engine",
		Name:      "work_units_completed_total",
		Help:      "WorkUnits that ran to completion.",
	})

	WorkUnitsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imagec",
		Subsystem: "engine",
		Name:      "work_units_failed_total",
		Help:      "WorkUnits that failed, by error code.",
	}, []string{"code"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "imagec",
		Subsystem: "engine",
		Name:      "active_workers",
		Help:      "Worker goroutines currently processing a WorkUnit.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "imagec",
		Subsystem: "engine",
		Name:      "queue_depth",
		Help:      "WorkUnits queued but not yet picked up by a worker.",
	})

	ImageCommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "imagec",
		Subsystem: "engine",
		Name:      "image_commit_latency_seconds",
		Help:      "Time spent writing and committing one image's ImageBatch.",
		Buckets:   prometheus.DefBuckets,
	})

	ObjectsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "imagec",
		Subsystem: "engine",
		Name:      "objects_written_total",
		Help:      "Objects persisted to the Result Sink.",
	})
)

// Handler exposes the standard prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
