package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
	"github.com/softdata/cohortsync/modules/cohorts/infrastructure/memstore"
	"github.com/softdata/cohortsync/modules/cohorts/infrastructure/persistence"
	"github.com/softdata/cohortsync/modules/cohorts/ingest"
	"github.com/softdata/cohortsync/modules/cohorts/services"
	"github.com/softdata/cohortsync/pkg/composables"
	"github.com/softdata/cohortsync/pkg/eventbus"
)

type importOptions struct {
	input         string
	family        string
	outputDir     string
	apply         bool
	offline       bool
	strict        bool
	aliasesPath   string
	batchSize     int
	maxHeaderScan int
	regionCode    int64
	regionName    string
}

type importSummary struct {
	UploadID  string              `json:"upload_id"`
	Input     string              `json:"input"`
	Family    string              `json:"family"`
	Status    string              `json:"status"`
	DryRun    bool                `json:"dry_run"`
	Rows      int                 `json:"rows_processed"`
	Errors    int                 `json:"error_count"`
	Created   map[cohort.Kind]int `json:"created_by_kind"`
	Updated   map[cohort.Kind]int `json:"updated_by_kind"`
	ReportOut string              `json:"report,omitempty"`
}

func newImportCmd(g *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Reconcile a cohort spreadsheet (xlsx, xls or csv) into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := composables.WithLogger(cmd.Context(), logrus.NewEntry(g.logger(cmd)))
			return runImport(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Spreadsheet to import (required)")
	cmd.Flags().StringVar(&opts.family, "family", ingest.Historico.Name,
		"Upload type: "+strings.Join(ingest.FamilyNames(), " or ")+" (grupos leaves counters untouched)")
	cmd.Flags().StringVar(&opts.outputDir, "output", "", "Directory for the full JSON report (default: no report file)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Commit changes (default is dry-run)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Reconcile against an empty in-memory store instead of the database")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when any row reported an error")
	cmd.Flags().StringVar(&opts.aliasesPath, "aliases", "", "YAML or TOML file with extra header spellings")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", ingest.DefaultBatchSize, "Snapshots per bulk statement")
	cmd.Flags().IntVar(&opts.maxHeaderScan, "max-header-scan", 6, "Rows inspected when looking for the header row")
	cmd.Flags().Int64Var(&opts.regionCode, "region-code", 0, "Keep only rows of this regional code")
	cmd.Flags().StringVar(&opts.regionName, "region-name", "", "Keep only rows of this regional name")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runImport(ctx context.Context, opts importOptions, stdout io.Writer) error {
	if strings.TrimSpace(opts.input) == "" {
		return withCode(exitUsage, fmt.Errorf("--input is required"))
	}
	if opts.batchSize < 1 || opts.batchSize > 10000 {
		return withCode(exitUsage, fmt.Errorf("--batch-size must be within 1..10000, got %d", opts.batchSize))
	}
	if opts.family == "" {
		opts.family = ingest.Historico.Name
	}
	family, ok := ingest.FamilyByName(opts.family)
	if !ok {
		return withCode(exitUsage, fmt.Errorf("--family must be one of %s, got %q", strings.Join(ingest.FamilyNames(), ", "), opts.family))
	}
	if opts.offline && opts.apply {
		return withCode(exitUsage, fmt.Errorf("--apply has no effect with --offline"))
	}

	data, err := os.ReadFile(opts.input)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read %s: %w", opts.input, err))
	}
	aliases, err := ingest.LoadAliases(opts.aliasesPath)
	if err != nil {
		return withCode(exitUsage, err)
	}

	var store cohort.Store
	if opts.offline {
		store = memstore.New()
	} else {
		pool, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = persistence.NewPgStore(pool)
	}

	reconciler := ingest.NewReconciler(store, ingest.NewResolver(aliases, family), ingest.Options{
		BatchSize: opts.batchSize,
		Region:    ingest.RegionFilter{Code: opts.regionCode, Name: strings.TrimSpace(opts.regionName)},
	})
	bus := eventbus.NewEventPublisher(composables.UseLogger(ctx).Logger)
	service := services.NewUploadService(bus, opts.maxHeaderScan, reconciler)

	report, err := service.Import(ctx, filepath.Base(opts.input), data, services.ImportOptions{
		DryRun: !opts.apply,
		Family: family.Name,
	})
	if err != nil {
		return withCode(importExitCode(err), err)
	}

	summary := importSummary{
		UploadID: report.UploadID.String(),
		Input:    opts.input,
		Family:   report.Family,
		Status:   report.Status(),
		DryRun:   report.DryRun,
		Rows:     report.RowsProcessed,
		Errors:   report.ErrorCount,
		Created:  report.Created,
		Updated:  report.Updated,
	}
	if opts.outputDir != "" {
		summary.ReportOut = filepath.Join(opts.outputDir, "report-"+summary.UploadID+".json")
		if err := writeJSONFile(summary.ReportOut, report); err != nil {
			return err
		}
	}
	if err := writeJSONLine(stdout, summary); err != nil {
		return err
	}
	if opts.strict && report.ErrorCount > 0 {
		return withCode(exitPartial, fmt.Errorf("%d row errors reported (status %s)", report.ErrorCount, summary.Status))
	}
	return nil
}

func importExitCode(err error) int {
	var (
		unresolved *ingest.UnresolvedRequiredFieldError
		fileErr    *services.FileError
		commit     *ingest.BatchCommitError
	)
	switch {
	case errors.As(err, &unresolved), errors.As(err, &fileErr):
		return exitValidation
	case errors.As(err, &commit):
		return exitDBWrite
	default:
		return exitDB
	}
}
