package ingest

import (
	"context"
	"fmt"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
	"github.com/softdata/cohortsync/pkg/constants"
)

// pending collects one merged candidate per key in first-seen order.
type pending[K comparable, V any] struct {
	order []K
	items map[K]V
	rows  map[K]int
}

func newPending[K comparable, V any]() *pending[K, V] {
	return &pending[K, V]{items: make(map[K]V), rows: make(map[K]int)}
}

// add folds v into the candidate for k; later rows win where they carry a value.
func (p *pending[K, V]) add(k K, v V, row int, merge func(incoming, prev V) V) {
	prev, ok := p.items[k]
	if !ok {
		p.order = append(p.order, k)
		p.rows[k] = row
		p.items[k] = v
		return
	}
	p.items[k] = merge(v, prev)
}

// materializeParents upserts every program, center, municipality and
// strategy referenced by records. Failures are recorded per key.
func materializeParents(ctx context.Context, tx cohort.Tx, records []Record, report *Report) {
	programs := newPending[string, cohort.Program]()
	centers := newPending[int64, cohort.Center]()
	municipalities := newPending[string, cohort.Municipality]()
	strategies := newPending[string, cohort.Strategy]()

	for _, r := range records {
		if p, ok := r.Program(); ok {
			programs.add(p.Code, p, r.Line, cohort.Program.Merge)
		}
		if c, ok := r.Center(); ok {
			centers.add(c.Code, c, r.Line, cohort.Center.Merge)
		}
		if m, ok := r.Municipality(); ok {
			municipalities.add(m.Code, m, r.Line, cohort.Municipality.Merge)
		}
		if s, ok := r.Strategy(); ok {
			strategies.add(s.Code, s, r.Line, func(incoming, _ cohort.Strategy) cohort.Strategy { return incoming })
		}
	}

	upsertAll(ctx, report, cohort.KindProgram, programs, tx.UpsertProgram)

	if len(centers.order) > 0 {
		stored, err := tx.LookupCenters(ctx, centers.order)
		if err != nil {
			report.fail(&EntityUpsertError{Kind: cohort.KindCenter, Key: "lookup", Err: err})
		}
		for code, existing := range stored {
			if c, ok := centers.items[code]; ok {
				centers.items[code] = c.Merge(existing)
			}
		}
	}
	upsertAll(ctx, report, cohort.KindCenter, centers, tx.UpsertCenter)
	upsertAll(ctx, report, cohort.KindMunicipality, municipalities, tx.UpsertMunicipality)
	upsertAll(ctx, report, cohort.KindStrategy, strategies, tx.UpsertStrategy)
}

func upsertAll[K comparable, V any](
	ctx context.Context,
	report *Report,
	kind cohort.Kind,
	p *pending[K, V],
	upsert func(context.Context, V) (bool, error),
) {
	for _, k := range p.order {
		v := p.items[k]
		key := fmt.Sprint(k)
		if err := constants.Validate.Struct(v); err != nil {
			report.fail(&EntityUpsertError{Kind: kind, Key: key, Row: p.rows[k], Err: err})
			continue
		}
		created, err := upsert(ctx, v)
		if err != nil {
			report.fail(&EntityUpsertError{Kind: kind, Key: key, Row: p.rows[k], Err: err})
			continue
		}
		report.upserted(kind, created)
	}
}
