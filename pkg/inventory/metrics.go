package inventory

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// treeMutationTotal counts tree mutations by operation and outcome.
	treeMutationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdna_tree_mutations_total",
		Help: "Tree mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	// treeMutationDuration tracks mutation latency including the transaction.
	treeMutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assetdna_tree_mutation_duration_seconds",
		Help:    "Tree mutation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"operation"})

	// bomUploadTotal counts BOM uploads by detected format and outcome.
	bomUploadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdna_bom_uploads_total",
		Help: "BOM uploads by format and outcome",
	}, []string{"format", "outcome"})

	bomComponents = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assetdna_bom_components",
		Help:    "Number of components per uploaded BOM",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 20000},
	})
)

// outcomeLabel collapses an error into a low-cardinality label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid"
	case errors.Is(err, ErrParse):
		return "parse_error"
	default:
		return "error"
	}
}

func observeMutation(operation string, start time.Time, err error) {
	treeMutationTotal.WithLabelValues(operation, outcomeLabel(err)).Inc()
	treeMutationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
