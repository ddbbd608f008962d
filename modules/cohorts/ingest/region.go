package ingest

import (
	"fmt"
	"strings"
)

// RegionFilter keeps only rows of one regional office. A zero value keeps
// everything.
type RegionFilter struct {
	Code int64
	// Name must be contained in the row's regional name (case and accents
	// are ignored).
	Name string
}

func (f RegionFilter) Enabled() bool {
	return f.Code > 0 || strings.TrimSpace(f.Name) != ""
}

func (f RegionFilter) String() string {
	return fmt.Sprintf("region(code=%d, name=%q)", f.Code, f.Name)
}

// Apply returns the matching records and how many were removed. Checks
// whose column is missing from the upload are not applied.
func (f RegionFilter) Apply(records []Record, res Resolution) ([]Record, int) {
	checkCode := f.Code > 0 && res.Has("cod_regional")
	name := foldUpper(f.Name)
	checkName := name != "" && res.Has("nombre_regional")
	if !checkCode && !checkName {
		return records, 0
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if checkCode && r.RegionalCode.OrElse(0) != f.Code {
			continue
		}
		if checkName && !strings.Contains(foldUpper(r.RegionalName.OrElse("")), name) {
			continue
		}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}
