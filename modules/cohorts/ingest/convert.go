package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	errNotInteger  = errors.New("not an integer")
	errNotDate     = errors.New("not a recognizable date")
	dottedThousand = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)
	commaThousand  = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	maxInt64       = decimal.NewFromInt(math.MaxInt64)
	minInt64       = decimal.NewFromInt(math.MinInt64)
	excelEpoch     = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

// minSerialText keeps bare years and small numbers typed as text from being
// read as Excel serials (20000 is 1954-10-03).
const minSerialText = 20000

// rawString renders a cell for error messages and text fields.
func rawString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.DateOnly)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// parseInteger returns present=false for empty cells.
func parseInteger(v any) (n int64, present bool, err error) {
	switch t := v.(type) {
	case nil:
		return 0, false, nil
	case int:
		return int64(t), true, nil
	case int32:
		return int64(t), true, nil
	case int64:
		return t, true, nil
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) || t >= math.MaxInt64 || t < math.MinInt64 {
			return 0, true, errNotInteger
		}
		return int64(t), true, nil
	case decimal.Decimal:
		return decimalInt(t)
	}

	s := strings.TrimSpace(rawString(v))
	if s == "" {
		return 0, false, nil
	}
	s = strings.NewReplacer("_", "", " ", "", "\u00a0", "").Replace(s)
	switch {
	case commaThousand.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		// A decimal comma ("2,5") or misplaced grouping is not an integer.
		return 0, true, errNotInteger
	case dottedThousand.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, true, errNotInteger
	}
	return decimalInt(d)
}

func decimalInt(d decimal.Decimal) (int64, bool, error) {
	if !d.IsInteger() || d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		return 0, true, errNotInteger
	}
	return d.IntPart(), true, nil
}

var isoLayouts = []string{
	time.DateOnly,
	time.DateTime,
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var dmyLayouts = []string{
	"2/1/2006", "2/1/2006 15:04:05", "2/1/2006 15:04",
	"2-1-2006", "2-1-2006 15:04:05",
	"2.1.2006",
}

var flexibleLayouts = []string{
	"2006/1/2",
	"2006/1/2 15:04:05",
	"2-Jan-2006",
	"2-Jan-06",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC1123,
}

var spanishMonths = strings.NewReplacer(
	"enero", "January", "febrero", "February", "marzo", "March", "abril", "April",
	"mayo", "May", "junio", "June", "julio", "July", "agosto", "August",
	"septiembre", "September", "setiembre", "September", "octubre", "October",
	"noviembre", "November", "diciembre", "December",
	"ene", "Jan", "abr", "Apr", "ago", "Aug", "dic", "Dec",
)

// parseDate tries ISO layouts, then day/month/year with '/', '-' or '.',
// then Excel serial numbers and month-name layouts in English or Spanish.
func parseDate(v any) (d time.Time, present bool, err error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false, nil
		}
		return dateOnly(t), true, nil
	case float64:
		if d, ok := excelSerialDate(t); ok {
			return d, true, nil
		}
		return time.Time{}, true, errNotDate
	case int:
		if d, ok := excelSerialDate(float64(t)); ok {
			return d, true, nil
		}
		return time.Time{}, true, errNotDate
	case int64:
		if d, ok := excelSerialDate(float64(t)); ok {
			return d, true, nil
		}
		return time.Time{}, true, errNotDate
	}

	s := strings.TrimSpace(rawString(v))
	if s == "" {
		return time.Time{}, false, nil
	}
	for _, layouts := range [][]string{isoLayouts, dmyLayouts} {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return dateOnly(t), true, nil
			}
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if d, ok := excelSerialDate(f); ok && f >= minSerialText {
			return d, true, nil
		}
		return time.Time{}, true, errNotDate
	}

	flexible := strings.Join(strings.Fields(strings.ReplaceAll(strings.ToLower(s), " de ", " ")), " ")
	flexible = spanishMonths.Replace(flexible)
	for _, layout := range flexibleLayouts {
		if t, err := time.Parse(layout, flexible); err == nil {
			return dateOnly(t), true, nil
		}
	}
	return time.Time{}, true, errNotDate
}

// excelSerialDate converts a 1900-system serial. Serials below 60 sit before
// the fictitious 1900-02-29 and are shifted by one day.
func excelSerialDate(f float64) (time.Time, bool) {
	if f < 1 || f > 2958465 {
		return time.Time{}, false
	}
	days := int(f)
	if days < 60 {
		days++
	}
	return excelEpoch.AddDate(0, 0, days), true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseText trims and truncates to maxLen runes. Truncation is silent.
func parseText(v any, maxLen int) (string, bool) {
	s := strings.TrimSpace(rawString(v))
	if s == "" {
		return "", false
	}
	if maxLen > 0 {
		if runes := []rune(s); len(runes) > maxLen {
			s = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return s, true
}

var (
	trueWords  = map[string]struct{}{"1": {}, "true": {}, "yes": {}, "si": {}, "active": {}, "activo": {}, "activa": {}, "verdadero": {}}
	falseWords = map[string]struct{}{"0": {}, "false": {}, "no": {}, "inactive": {}, "inactivo": {}, "inactiva": {}, "falso": {}}
)

// ParseBool maps the usual yes/no vocabulary (English or Spanish, accents
// ignored). Anything else yields def.
func ParseBool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	s := strings.ToLower(strings.TrimSpace(foldDiacritics(rawString(v))))
	if _, ok := trueWords[s]; ok {
		return true
	}
	if _, ok := falseWords[s]; ok {
		return false
	}
	return def
}
