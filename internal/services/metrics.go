package services

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sora_jobs_submitted_total",
			Help: "Video jobs submitted to the provider, by outcome.",
		},
		[]string{"outcome"},
	)

	statusChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sora_status_checks_total",
			Help: "Status checks by result.",
		},
		[]string{"result"},
	)

	terminalTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sora_terminal_transitions_total",
			Help: "Generations moved into a terminal state.",
		},
		[]string{"status"},
	)

	orphanedJobs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sora_orphaned_jobs_total",
			Help: "Jobs accepted by the provider whose local record could not be written.",
		},
	)

	artifactBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sora_artifact_bytes",
			Help:    "Size of downloaded video artifacts.",
			Buckets: prometheus.ExponentialBuckets(256<<10, 2, 10), // 256KiB..128MiB
		},
	)
)

func init() {
	prometheus.MustRegister(jobsSubmitted, statusChecks, terminalTransitions, orphanedJobs, artifactBytes)
}

const (
	checkTerminalCached = "terminal_cached"
	checkProcessing     = "processing"
	checkCompleted      = "completed"
	checkFailed         = "failed"
	checkUpstreamError  = "upstream_error"
	checkDownloadError  = "download_error"
	checkStoreError     = "store_error"
	checkTimedOut       = "timed_out"
	checkLocked         = "locked"
)
