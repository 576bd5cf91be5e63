package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video2doc_jobs_processed_total",
		Help: "Conversion jobs finished, by outcome",
	}, []string{"status"})

	JobFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video2doc_job_failures_total",
		Help: "Failed conversion attempts, by error code",
	}, []string{"code"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "video2doc_stage_duration_seconds",
		Help:    "Duration of each conversion stage",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video2doc_frames_sampled_total",
		Help: "Candidate frames read from extracted output",
	})

	FramesDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video2doc_frames_discarded_total",
		Help: "Candidate frames dropped as near-duplicates",
	})

	PagesAssembledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video2doc_pages_assembled_total",
		Help: "Pages written into output documents",
	})

	SamplingStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video2doc_sampling_stops_total",
		Help: "Sampling runs, by stop reason",
	}, []string{"reason"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "video2doc_active_workers",
		Help: "Workers currently converting a video",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video2doc_retry_total",
		Help: "Retries scheduled, by attempt number",
	}, []string{"attempt"})
)
