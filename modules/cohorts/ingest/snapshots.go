package ingest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
)

const DefaultBatchSize = 1000

// upsertSnapshots overwrites the counters of every materialized group in
// fixed-size batches. A failed batch is reported once and the next batch
// still runs.
func upsertSnapshots(
	ctx context.Context,
	tx cohort.Tx,
	records []Record,
	materialized map[int64]struct{},
	batchSize int,
	report *Report,
	log *logrus.Entry,
) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	order, latest := latestByFicha(records)
	snapshots := make([]cohort.Snapshot, 0, len(order))
	for _, ficha := range order {
		if _, ok := materialized[ficha]; !ok {
			log.WithField("ficha", ficha).Debug("snapshot skipped: group not materialized")
			continue
		}
		snapshots = append(snapshots, latest[ficha].Snapshot())
	}

	for start, batch := 0, 1; start < len(snapshots); start, batch = start+batchSize, batch+1 {
		end := min(start+batchSize, len(snapshots))
		chunk := snapshots[start:end]
		inserted, updated, err := tx.BulkUpsertSnapshots(ctx, chunk)
		if err != nil {
			report.fail(&EntityUpsertError{
				Kind: cohort.KindSnapshot,
				Key:  fmt.Sprintf("batch %d (fichas %d..%d)", batch, chunk[0].Ficha, chunk[len(chunk)-1].Ficha),
				Err:  err,
			})
			continue
		}
		report.created(cohort.KindSnapshot, inserted)
		report.updated(cohort.KindSnapshot, updated)
	}
}
