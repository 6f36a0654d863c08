// Package metrics exposes prometheus counters for the generation engine.
//
// Usage:
//
//	RecordTracksCreated("bulk", 3)
//	RecordJob("chunk", err)
//	RecordDebounce("scheduled")
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TracksCreatedTotal counts tracks persisted by the builder, by run source.
	TracksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackline_tracks_created_total",
			Help: "Total number of tracks created",
		},
		[]string{"source"},
	)

	// TrackBuildFailuresTotal counts segments that could not be persisted.
	TrackBuildFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackline_track_build_failures_total",
			Help: "Total number of segments skipped because the track could not be built",
		},
	)

	// TracksMergedTotal counts merge operations by trigger and outcome.
	TracksMergedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackline_track_merges_total",
			Help: "Total number of track merge attempts",
		},
		[]string{"trigger", "outcome"},
	)

	// DuplicatesRemovedTotal counts rows deleted by the deduplicator.
	DuplicatesRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackline_duplicate_tracks_removed_total",
			Help: "Total number of duplicate tracks removed",
		},
	)

	// DebounceTriggersTotal counts realtime triggers by result.
	DebounceTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackline_debounce_triggers_total",
			Help: "Total number of realtime generation triggers",
		},
		[]string{"result"},
	)

	// JobsTotal counts executed async jobs by name and outcome.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackline_jobs_total",
			Help: "Total number of executed jobs",
		},
		[]string{"job", "outcome"},
	)

	// GenerationDuration tracks the wall time of a single generator run.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackline_generation_duration_seconds",
			Help:    "Duration of generator runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"source"},
	)
)

func RecordTracksCreated(source string, n int) {
	if n <= 0 {
		return
	}
	TracksCreatedTotal.WithLabelValues(source).Add(float64(n))
}

func RecordBuildFailure() {
	TrackBuildFailuresTotal.Inc()
}

func RecordMerge(trigger string, merged bool) {
	outcome := "merged"
	if !merged {
		outcome = "failed"
	}
	TracksMergedTotal.WithLabelValues(trigger, outcome).Inc()
}

func RecordDuplicatesRemoved(n int) {
	if n <= 0 {
		return
	}
	DuplicatesRemovedTotal.Add(float64(n))
}

func RecordDebounce(result string) {
	DebounceTriggersTotal.WithLabelValues(result).Inc()
}

func RecordJob(name string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	JobsTotal.WithLabelValues(name, outcome).Inc()
}

func RecordJobPanic(name string) {
	JobsTotal.WithLabelValues(name, "panic").Inc()
}

func ObserveGeneration(source string, d time.Duration) {
	GenerationDuration.WithLabelValues(source).Observe(d.Seconds())
}
