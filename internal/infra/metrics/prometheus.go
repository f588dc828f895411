package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframes_runs_total",
		Help: "Total number of extraction runs, by outcome",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyframes_stage_duration_seconds",
		Help:    "Duration of extraction pipeline stages",
		Buckets: []float64{0.05, 0.25, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyframes_frames_decoded_total",
		Help: "Total number of frames read from videos across all runs",
	})

	CandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyframes_candidates_total",
		Help: "Total number of sampled frames whose score exceeded the scene threshold",
	})

	KeyframesSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyframes_selected_total",
		Help: "Total number of keyframes materialized",
	})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyframes_active_runs",
		Help: "Number of extraction runs currently in progress",
	})

	StagingCleanupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframes_staging_cleanup_total",
		Help: "Staging area removals, by mode and result",
	}, []string{"mode", "result"})

	ModerationVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframes_moderation_verdicts_total",
		Help: "Videos judged by the moderation service, by verdict",
	}, []string{"verdict"})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframes_check_retry_total",
		Help: "Total number of republished async checks",
	}, []string{"attempt"})
)
