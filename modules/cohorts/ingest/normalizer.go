package ingest

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

var (
	errMissingRequired = errors.New("required value is missing")
	errNotPositive     = errors.New("must be a positive integer")
)

type NormalizeResult struct {
	Records []Record
	Errors  []*RowConversionError
	// Skipped counts rows dropped for a missing or invalid required field.
	Skipped int
}

// Normalizer converts raw cells into typed Records.
type Normalizer struct {
	family Family
}

func NewNormalizer(family Family) *Normalizer {
	return &Normalizer{family: family}
}

// Normalize converts every non-blank row. A bad optional cell becomes
// absent (counters become 0) and is reported; a row whose required field
// is missing or invalid is dropped and reported.
func (n *Normalizer) Normalize(t Table, res Resolution) NormalizeResult {
	cols := make([]int, 0, len(res.Columns))
	for col := range res.Columns {
		cols = append(cols, col)
	}
	sort.Ints(cols)

	var out NormalizeResult
	for _, row := range t.Rows {
		if row.blank() {
			continue
		}
		rec := Record{Line: row.Line}
		var rowErrs []*RowConversionError
		skip := false
		for _, col := range cols {
			field, ok := n.family.Field(res.Columns[col])
			if !ok {
				continue
			}
			raw := row.Cell(col)
			c, present, err := convert(field, raw)
			if field.Required && err == nil && !present {
				err = errMissingRequired
			}
			if field.Required && err == nil && c.i <= 0 && field.Type == TypeInteger {
				err = errNotPositive
			}
			if err != nil {
				rowErrs = append(rowErrs, &RowConversionError{
					Row:   row.Line,
					Field: field.Name,
					Raw:   rawString(raw),
					Err:   err,
				})
				if field.Required {
					skip = true
				}
				continue
			}
			if present {
				field.assign(&rec, c)
			}
		}
		out.Errors = append(out.Errors, rowErrs...)
		if skip {
			out.Skipped++
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

func convert(field Field, raw any) (cell, bool, error) {
	switch field.Type {
	case TypeInteger:
		v, present, err := parseInteger(raw)
		if err == nil && field.Counter && v < 0 {
			err = fmt.Errorf("negative counter %d", v)
		}
		if err == nil && field.Max > 0 && v > field.Max {
			err = fmt.Errorf("%d exceeds %d", v, field.Max)
		}
		return cell{i: v}, present, err
	case TypeDate:
		v, present, err := parseDate(raw)
		return cell{t: v}, present, err
	case TypeText:
		v, present := parseText(raw, field.MaxLen)
		return cell{s: v}, present, nil
	case TypeBool:
		_, present := parseText(raw, 0)
		if !present {
			return cell{}, false, nil
		}
		return cell{b: ParseBool(raw, true)}, true, nil
	default:
		return cell{}, false, fmt.Errorf("unsupported field type %s", field.Type)
	}
}
