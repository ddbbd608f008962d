package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
)

const DefaultHistoryLimit = 50

type UploadSummary struct {
	UploadID      uuid.UUID           `json:"upload_id"`
	Filename      string              `json:"filename"`
	Family        string              `json:"family"`
	Status        string              `json:"status"`
	DryRun        bool                `json:"dry_run"`
	RowsRead      int                 `json:"rows_read"`
	RowsProcessed int                 `json:"rows_processed"`
	ErrorCount    int                 `json:"error_count"`
	Created       map[cohort.Kind]int `json:"created_by_kind,omitempty"`
	Updated       map[cohort.Kind]int `json:"updated_by_kind,omitempty"`
	Error         string              `json:"error,omitempty"`
	At            time.Time           `json:"at"`
}

// UploadHistory keeps the most recent upload outcomes in memory.
type UploadHistory struct {
	mu    sync.RWMutex
	limit int
	items []UploadSummary
}

func NewUploadHistory(limit int) *UploadHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &UploadHistory{limit: limit}
}

func (h *UploadHistory) OnUploaded(e *UploadedEvent) {
	r := e.Report
	h.add(UploadSummary{
		UploadID:      r.UploadID,
		Filename:      e.Filename,
		Family:        r.Family,
		Status:        r.Status(),
		DryRun:        r.DryRun,
		RowsRead:      r.RowsRead,
		RowsProcessed: r.RowsProcessed,
		ErrorCount:    r.ErrorCount,
		Created:       r.Created,
		Updated:       r.Updated,
		At:            r.StartedAt,
	})
}

func (h *UploadHistory) OnRejected(e *UploadRejectedEvent) {
	s := UploadSummary{
		UploadID: e.UploadID,
		Filename: e.Filename,
		Family:   e.Family,
		Status:   "rejected",
		DryRun:   e.DryRun,
		At:       time.Now().UTC(),
	}
	if e.Err != nil {
		s.Error = e.Err.Error()
	}
	h.add(s)
}

func (h *UploadHistory) add(s UploadSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, s)
	if over := len(h.items) - h.limit; over > 0 {
		h.items = append(h.items[:0:0], h.items[over:]...)
	}
}

// Recent returns up to n summaries, newest first. n <= 0 returns all.
func (h *UploadHistory) Recent(n int) []UploadSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.items) {
		n = len(h.items)
	}
	out := make([]UploadSummary, 0, n)
	for i := len(h.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.items[i])
	}
	return out
}

func (h *UploadHistory) Get(id uuid.UUID) (UploadSummary, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.items) - 1; i >= 0; i-- {
		if h.items[i].UploadID == id {
			return h.items[i], true
		}
	}
	return UploadSummary{}, false
}

// Subscribe attaches the history to the upload events of bus.
func (h *UploadHistory) Subscribe(bus interface{ Subscribe(handler any) }) {
	bus.Subscribe(h.OnUploaded)
	bus.Subscribe(h.OnRejected)
}
