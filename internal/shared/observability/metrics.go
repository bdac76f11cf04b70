package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connascence_parse_seconds",
		Help:    "Time spent parsing and extracting a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connascence_cache_hits_total",
		Help: "Source cache lookups served without reading the file.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connascence_cache_misses_total",
		Help: "Source cache lookups that had to read the file.",
	})

	CacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connascence_cache_evictions_total",
		Help: "Source cache entries evicted by the LRU bound.",
	})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connascence_cache_entries",
		Help: "Current number of source cache entries.",
	})

	PoolWaitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connascence_pool_wait_seconds",
		Help:    "Time spent waiting for a detector instance.",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"category"})

	PoolInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "connascence_pool_in_use",
		Help: "Detector instances currently handed out.",
	}, []string{"category"})

	DetectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connascence_detector_seconds",
		Help:    "Time spent in a single detector run over one file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"category"})

	ViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connascence_violations_total",
		Help: "Violations reported by completed runs.",
	}, []string{"category", "severity"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connascence_diagnostics_total",
		Help: "Diagnostic entries recorded for files that could not be fully analysed.",
	}, []string{"category"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connascence_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	ComplianceScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connascence_compliance_score",
		Help: "Compliance score of the most recent project run.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connascence_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	StreamDeltasTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connascence_stream_deltas_total",
		Help: "Delta results emitted by streaming sessions.",
	})

	StreamDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "connascence_stream_discarded_total",
		Help: "In-flight file analyses discarded because a newer change arrived.",
	})
)
