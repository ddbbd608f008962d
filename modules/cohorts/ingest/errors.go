package ingest

import (
	"fmt"
	"strings"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
)

// UnresolvedRequiredFieldError means no column could be matched to a
// required field. Nothing has been written when it is returned.
type UnresolvedRequiredFieldError struct {
	Field       string
	Headers     []string
	Suggestions []string
}

func (e *UnresolvedRequiredFieldError) Error() string {
	msg := fmt.Sprintf("required column %q not found among headers [%s]", e.Field, strings.Join(e.Headers, ", "))
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf("; closest headers: %s", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// RowConversionError reports one cell that could not be converted. The
// field is treated as absent and the row keeps going.
type RowConversionError struct {
	Row   int
	Field string
	Raw   string
	Err   error
}

func (e *RowConversionError) Error() string {
	return fmt.Sprintf("row %d: field %s: cannot convert %q: %v", e.Row, e.Field, e.Raw, e.Err)
}

func (e *RowConversionError) Unwrap() error { return e.Err }

// EntityUpsertError reports a store failure for one entity key or one
// snapshot batch. Sibling entities are still processed.
type EntityUpsertError struct {
	Kind cohort.Kind
	Key  string
	Row  int
	Err  error
}

func (e *EntityUpsertError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s %s (row %d): %v", e.Kind, e.Key, e.Row, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Key, e.Err)
}

func (e *EntityUpsertError) Unwrap() error { return e.Err }

// BatchCommitError means the upload transaction could not be opened or
// committed; every change of the upload has been rolled back.
type BatchCommitError struct {
	Op  string
	Err error
}

func (e *BatchCommitError) Error() string {
	return fmt.Sprintf("%s upload transaction: %v", e.Op, e.Err)
}

func (e *BatchCommitError) Unwrap() error { return e.Err }

// RowFilteredError is recorded when a configured filter removes every row.
type RowFilteredError struct {
	Filter string
	Rows   int
}

func (e *RowFilteredError) Error() string {
	return fmt.Sprintf("%s filter removed all %d rows", e.Filter, e.Rows)
}
