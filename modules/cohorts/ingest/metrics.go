package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
)

var (
	ingestUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cohorts",
		Subsystem: "ingest",
		Name:      "uploads_total",
		Help:      "Total number of uploads broken down by final status.",
	}, []string{"status"})

	ingestRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cohorts",
		Subsystem: "ingest",
		Name:      "rows_total",
		Help:      "Total number of spreadsheet rows broken down by outcome.",
	}, []string{"outcome"})

	ingestEntities = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cohorts",
		Subsystem: "ingest",
		Name:      "entities_total",
		Help:      "Total number of upserted entities broken down by kind and created/updated.",
	}, []string{"kind", "outcome"})

	ingestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cohorts",
		Subsystem: "ingest",
		Name:      "errors_total",
		Help:      "Total number of non-fatal upload errors broken down by kind.",
	}, []string{"kind"})

	ingestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cohorts",
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Wall time of an upload reconciliation.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"status"})
)

func recordUploadFailure(status string) {
	ingestUploads.WithLabelValues(status).Inc()
}

func recordReport(r *Report) {
	status := r.Status()
	if r.DryRun {
		status = "dry_run"
	}
	ingestUploads.WithLabelValues(status).Inc()
	ingestDuration.WithLabelValues(status).Observe(r.Duration.Seconds())

	ingestRows.WithLabelValues("read").Add(float64(r.RowsRead))
	ingestRows.WithLabelValues("skipped").Add(float64(r.Skipped))
	ingestRows.WithLabelValues("discarded").Add(float64(r.Discarded))
	ingestRows.WithLabelValues("filtered").Add(float64(r.Filtered))
	ingestRows.WithLabelValues("processed").Add(float64(r.RowsProcessed))

	for _, kind := range cohort.Kinds {
		ingestEntities.WithLabelValues(string(kind), "created").Add(float64(r.Created[kind]))
		ingestEntities.WithLabelValues(string(kind), "updated").Add(float64(r.Updated[kind]))
	}
	for _, e := range r.Errors {
		ingestErrors.WithLabelValues(e.Kind).Inc()
	}
}
