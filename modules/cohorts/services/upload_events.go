package services

import (
	"github.com/google/uuid"

	"github.com/softdata/cohortsync/modules/cohorts/ingest"
)

// UploadedEvent is published after an upload was reconciled, dry runs included.
type UploadedEvent struct {
	Filename string
	Report   *ingest.Report
}

// UploadRejectedEvent is published when an upload wrote nothing: the file
// could not be read, a required column was missing or the transaction failed.
type UploadRejectedEvent struct {
	UploadID uuid.UUID
	Filename string
	Family   string
	DryRun   bool
	Err      error
}
