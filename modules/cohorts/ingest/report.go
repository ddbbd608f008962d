package ingest

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
)

type ReportError struct {
	Kind    string `json:"kind"`
	Row     int    `json:"row,omitempty"`
	Key     string `json:"key,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Report is the outcome of one upload.
type Report struct {
	UploadID      uuid.UUID           `json:"upload_id"`
	Family        string              `json:"family"`
	DryRun        bool                `json:"dry_run"`
	RowsRead      int                 `json:"rows_read"`
	RowsProcessed int                 `json:"rows_processed"`
	Skipped       int                 `json:"skipped_count"`
	Discarded     int                 `json:"discarded_count"`
	Filtered      int                 `json:"filtered_count"`
	Created       map[cohort.Kind]int `json:"created_by_kind"`
	Updated       map[cohort.Kind]int `json:"updated_by_kind"`
	ErrorCount    int                 `json:"error_count"`
	Errors        []ReportError       `json:"errors"`
	Success       bool                `json:"success"`
	Columns       map[string]string   `json:"columns,omitempty"`
	Unmapped      []string            `json:"unmapped,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	Duration      time.Duration       `json:"duration_ns"`
}

func newReport() *Report {
	r := &Report{
		UploadID:  uuid.New(),
		Created:   make(map[cohort.Kind]int, len(cohort.Kinds)),
		Updated:   make(map[cohort.Kind]int, len(cohort.Kinds)),
		Errors:    []ReportError{},
		StartedAt: time.Now().UTC(),
	}
	for _, k := range cohort.Kinds {
		r.Created[k] = 0
		r.Updated[k] = 0
	}
	return r
}

func (r *Report) created(kind cohort.Kind, n int) { r.Created[kind] += n }
func (r *Report) updated(kind cohort.Kind, n int) { r.Updated[kind] += n }

func (r *Report) upserted(kind cohort.Kind, created bool) {
	if created {
		r.created(kind, 1)
		return
	}
	r.updated(kind, 1)
}

// fail records a non-fatal error.
func (r *Report) fail(err error) {
	if err == nil {
		return
	}
	entry := ReportError{Kind: "error", Message: err.Error()}
	var (
		conv     *RowConversionError
		upsert   *EntityUpsertError
		filtered *RowFilteredError
	)
	switch {
	case errors.As(err, &conv):
		entry.Kind = "conversion"
		entry.Row = conv.Row
		entry.Field = conv.Field
	case errors.As(err, &upsert):
		entry.Kind = string(upsert.Kind)
		entry.Row = upsert.Row
		entry.Key = upsert.Key
	case errors.As(err, &filtered):
		entry.Kind = "filter"
	}
	r.Errors = append(r.Errors, entry)
	r.ErrorCount = len(r.Errors)
}

func (r *Report) finish() {
	r.ErrorCount = len(r.Errors)
	r.Success = r.ErrorCount == 0
	r.Duration = time.Since(r.StartedAt)
}

// Status is "ok", "partial" or "failed" depending on the recorded errors.
func (r *Report) Status() string {
	switch {
	case r.ErrorCount == 0:
		return "ok"
	case r.RowsProcessed > 0:
		return "partial"
	default:
		return "failed"
	}
}
