package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "ledger_"

	// ResultSuccess labels a successful operation.
	ResultSuccess = "success"
	// ResultError labels a failed operation.
	ResultError = "error"
)

var (
	registerOnce sync.Once

	mergeTotal      *prometheus.CounterVec
	mergeLatency    *prometheus.HistogramVec
	mergeRowsAdded  prometheus.Counter
	mergeDuplicates prometheus.Counter
	mergeUnmatched  prometheus.Counter

	saveTotal   *prometheus.CounterVec
	saveRetries prometheus.Counter

	generateTotal   *prometheus.CounterVec
	generateLatency *prometheus.HistogramVec
)

// Init registers the ledger metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		mergeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "merge_total",
				Help: "Total batch merges by source and result",
			},
			[]string{"source", "result"},
		)
		mergeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "merge_latency_seconds",
				Help:    "Batch merge latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)
		mergeRowsAdded = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "merge_rows_added_total",
			Help: "Ledger rows created by merges",
		})
		mergeDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "merge_duplicates_total",
			Help: "Duplicate rows collapsed by merges",
		})
		mergeUnmatched = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "merge_unmatched_total",
			Help: "Batch rows skipped because their site has no ledger record",
		})

		saveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "save_total",
				Help: "Ledger snapshot saves by result",
			},
			[]string{"result"},
		)
		saveRetries = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "save_retries_total",
			Help: "Snapshot saves that needed the delete-and-retry path",
		})

		generateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "generate_total",
				Help: "Accounting entry generations by result",
			},
			[]string{"result"},
		)
		generateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "generate_latency_seconds",
				Help:    "Accounting entry generation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			mergeTotal, mergeLatency, mergeRowsAdded, mergeDuplicates,
			mergeUnmatched, saveTotal, saveRetries,
			generateTotal, generateLatency,
		)
	})
}

// ObserveMerge records one batch merge.
func ObserveMerge(source, result string, added, duplicates, unmatched int, elapsed time.Duration) {
	if mergeTotal == nil {
		return
	}
	mergeTotal.WithLabelValues(source, result).Inc()
	mergeLatency.WithLabelValues(source).Observe(elapsed.Seconds())
	mergeRowsAdded.Add(float64(added))
	mergeDuplicates.Add(float64(duplicates))
	mergeUnmatched.Add(float64(unmatched))
}

// ObserveSave records one snapshot save.
func ObserveSave(result string, retried bool) {
	if saveTotal == nil {
		return
	}
	saveTotal.WithLabelValues(result).Inc()
	if retried {
		saveRetries.Inc()
	}
}

// ObserveGenerate records one accounting entry generation.
func ObserveGenerate(result string, elapsed time.Duration) {
	if generateTotal == nil {
		return
	}
	generateTotal.WithLabelValues(result).Inc()
	generateLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}
