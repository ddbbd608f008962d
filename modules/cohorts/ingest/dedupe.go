package ingest

import "strings"

// CompareFields returns the fields among names that the upload actually
// carries, in the order given.
func CompareFields(family Family, res Resolution, names []string) []Field {
	out := make([]Field, 0, len(names))
	for _, name := range names {
		if !res.Has(name) {
			continue
		}
		if f, ok := family.Field(name); ok {
			out = append(out, f)
		}
	}
	return out
}

// Deduplicate drops records whose compare-field values equal an earlier
// record's, keeping the first. With no compare fields the input is
// returned unchanged.
func Deduplicate(records []Record, fields []Field) ([]Record, int) {
	if len(fields) == 0 || len(records) < 2 {
		return records, 0
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	var b strings.Builder
	for i := range records {
		b.Reset()
		for _, f := range fields {
			b.WriteString(f.key(&records[i]))
			b.WriteByte(0x1f)
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, records[i])
	}
	return out, len(records) - len(out)
}
