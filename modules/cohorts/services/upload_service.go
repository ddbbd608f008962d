package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/softdata/cohortsync/modules/cohorts/ingest"
	"github.com/softdata/cohortsync/pkg/composables"
	"github.com/softdata/cohortsync/pkg/eventbus"
	"github.com/softdata/cohortsync/pkg/spreadsheet"
)

// FileError means the uploaded bytes could not be read as a spreadsheet.
type FileError struct {
	Filename string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Filename, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

var ErrUnknownFamily = errors.New("unknown upload family")

type ImportOptions struct {
	DryRun bool
	// Family names the upload type; empty selects the first reconciler.
	Family string
}

type UploadService struct {
	reconcilers   map[string]*ingest.Reconciler
	families      []string
	publisher     eventbus.EventBus
	maxHeaderScan int
}

// NewUploadService registers one reconciler per upload family. The first
// one is the default.
func NewUploadService(publisher eventbus.EventBus, maxHeaderScan int, reconcilers ...*ingest.Reconciler) *UploadService {
	s := &UploadService{
		reconcilers:   make(map[string]*ingest.Reconciler, len(reconcilers)),
		publisher:     publisher,
		maxHeaderScan: maxHeaderScan,
	}
	for _, r := range reconcilers {
		name := r.Resolver().Family().Name
		if _, dup := s.reconcilers[name]; !dup {
			s.families = append(s.families, name)
		}
		s.reconcilers[name] = r
	}
	return s
}

// Families lists the registered upload families, default first.
func (s *UploadService) Families() []string {
	return append([]string(nil), s.families...)
}

func (s *UploadService) reconciler(family string) (*ingest.Reconciler, error) {
	if family == "" && len(s.families) > 0 {
		family = s.families[0]
	}
	r, ok := s.reconcilers[family]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownFamily, family, strings.Join(s.families, ", "))
	}
	return r, nil
}

// Import reads a spreadsheet, locates its header row and reconciles the rows
// below it. The returned error is ErrUnknownFamily, a *FileError,
// *ingest.UnresolvedRequiredFieldError or *ingest.BatchCommitError.
func (s *UploadService) Import(ctx context.Context, filename string, data []byte, opts ImportOptions) (*ingest.Report, error) {
	reconciler, err := s.reconciler(opts.Family)
	if err != nil {
		return nil, err
	}
	log := composables.UseLogger(ctx).WithFields(logrus.Fields{
		"filename": filename,
		"bytes":    len(data),
		"family":   reconciler.Resolver().Family().Name,
	})

	rows, err := spreadsheet.Read(filename, data)
	if err != nil {
		err = &FileError{Filename: filename, Err: err}
		s.reject(ctx, filename, reconciler, opts, err)
		return nil, err
	}

	headerRow := reconciler.Resolver().DetectHeader(rows, s.maxHeaderScan)
	if headerRow > 0 {
		log.WithField("header_row", headerRow+1).Debug("skipping preamble rows")
	}
	table := ingest.NewTable(rows, headerRow)

	var run []ingest.RunOption
	if opts.DryRun {
		run = append(run, ingest.DryRun())
	}
	report, err := reconciler.Reconcile(composables.WithLogger(ctx, log), table, run...)
	if err != nil {
		s.reject(ctx, filename, reconciler, opts, err)
		return nil, err
	}

	s.publisher.Publish(ctx, &UploadedEvent{Filename: filename, Report: report})
	return report, nil
}

func (s *UploadService) reject(ctx context.Context, filename string, r *ingest.Reconciler, opts ImportOptions, err error) {
	s.publisher.Publish(ctx, &UploadRejectedEvent{
		UploadID: uuid.New(),
		Filename: filename,
		Family:   r.Resolver().Family().Name,
		DryRun:   opts.DryRun,
		Err:      err,
	})
}
