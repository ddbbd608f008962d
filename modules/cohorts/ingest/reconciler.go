package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
	"github.com/softdata/cohortsync/pkg/composables"
)

var tracer = otel.Tracer("cohortsync/ingest")

type Options struct {
	// BatchSize is the number of snapshots per bulk statement.
	BatchSize int
	Region    RegionFilter
	// CompareFields is the duplicate-row key; nil means DefaultCompareFields.
	CompareFields []string
}

type runOptions struct {
	dryRun bool
}

type RunOption func(*runOptions)

// DryRun executes every write and rolls the transaction back at the end.
func DryRun() RunOption {
	return func(o *runOptions) { o.dryRun = true }
}

// Reconciler runs one upload through resolution, normalization,
// deduplication and the transactional write steps.
type Reconciler struct {
	store      cohort.Store
	resolver   *Resolver
	normalizer *Normalizer
	opts       Options
}

func NewReconciler(store cohort.Store, resolver *Resolver, opts Options) *Reconciler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.CompareFields == nil {
		opts.CompareFields = DefaultCompareFields()
	}
	return &Reconciler{
		store:      store,
		resolver:   resolver,
		normalizer: NewNormalizer(resolver.Family()),
		opts:       opts,
	}
}

func (r *Reconciler) Resolver() *Resolver { return r.resolver }

// Reconcile writes the table and reports what happened. It returns an
// error only when the required column is missing (*UnresolvedRequiredFieldError)
// or the transaction cannot be opened or committed (*BatchCommitError);
// every other problem is listed in the report.
func (r *Reconciler) Reconcile(ctx context.Context, t Table, opts ...RunOption) (*Report, error) {
	var run runOptions
	for _, o := range opts {
		o(&run)
	}

	report := newReport()
	report.DryRun = run.dryRun
	report.Family = r.resolver.Family().Name
	report.RowsRead = len(t.Rows)
	family := r.resolver.Family()

	ctx, span := tracer.Start(ctx, "ingest.reconcile", trace.WithAttributes(
		attribute.String("ingest.upload_id", report.UploadID.String()),
		attribute.String("ingest.family", family.Name),
		attribute.Int("ingest.rows", len(t.Rows)),
		attribute.Bool("ingest.dry_run", run.dryRun),
	))
	defer span.End()

	log := composables.UseLogger(ctx).WithFields(logrus.Fields{
		"upload_id": report.UploadID,
		"family":    family.Name,
	})

	res, err := r.resolver.Resolve(t.Headers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unresolved required column")
		recordUploadFailure("rejected")
		log.WithError(err).Warn("upload rejected")
		return nil, err
	}
	report.Columns = res.Mapping()
	report.Unmapped = res.Unmapped

	normalized := r.normalizer.Normalize(t, res)
	for _, e := range normalized.Errors {
		report.fail(e)
	}
	report.Skipped = normalized.Skipped

	records, discarded := Deduplicate(normalized.Records, CompareFields(family, res, r.opts.CompareFields))
	report.Discarded = discarded

	if r.opts.Region.Enabled() {
		before := len(records)
		records, report.Filtered = r.opts.Region.Apply(records, res)
		if before > 0 && len(records) == 0 {
			report.fail(&RowFilteredError{Filter: r.opts.Region.String(), Rows: before})
		}
	}
	report.RowsProcessed = len(records)

	if len(records) == 0 {
		report.finish()
		recordReport(report)
		log.WithField("errors", report.ErrorCount).Info("upload had no rows to write")
		return report, nil
	}

	tx, err := r.store.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin failed")
		recordUploadFailure("commit_failed")
		return nil, &BatchCommitError{Op: "begin", Err: err}
	}

	r.stage(ctx, "ingest.parents", func(ctx context.Context) {
		materializeParents(ctx, tx, records, report)
	})
	var materialized map[int64]struct{}
	r.stage(ctx, "ingest.groups", func(ctx context.Context) {
		materialized = reconcileGroups(ctx, tx, records, report)
	})
	if family.HasCounters() {
		r.stage(ctx, "ingest.snapshots", func(ctx context.Context) {
			upsertSnapshots(ctx, tx, records, materialized, r.opts.BatchSize, report, log)
		})
	} else {
		log.Debug("family has no counters, snapshots left untouched")
	}

	if run.dryRun {
		if err := tx.Rollback(ctx); err != nil {
			log.WithError(err).Warn("dry run rollback failed")
		}
	} else if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		recordUploadFailure("commit_failed")
		log.WithError(err).Error("upload commit failed")
		return nil, &BatchCommitError{Op: "commit", Err: err}
	}

	report.finish()
	recordReport(report)
	span.SetAttributes(
		attribute.Int("ingest.errors", report.ErrorCount),
		attribute.Int("ingest.discarded", report.Discarded),
	)
	log.WithFields(logrus.Fields{
		"rows":      report.RowsProcessed,
		"discarded": report.Discarded,
		"errors":    report.ErrorCount,
		"dry_run":   report.DryRun,
		"duration":  report.Duration.Round(time.Millisecond),
	}).Info("upload reconciled")
	return report, nil
}

func (r *Reconciler) stage(ctx context.Context, name string, fn func(context.Context)) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	fn(ctx)
}
