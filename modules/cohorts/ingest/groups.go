package ingest

import (
	"context"
	"strconv"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
	"github.com/softdata/cohortsync/pkg/constants"
)

// latestByFicha keeps the last record per ficha, ordered by first appearance.
func latestByFicha(records []Record) ([]int64, map[int64]Record) {
	order := make([]int64, 0, len(records))
	latest := make(map[int64]Record, len(records))
	for _, r := range records {
		if _, seen := latest[r.Ficha]; !seen {
			order = append(order, r.Ficha)
		}
		latest[r.Ficha] = r
	}
	return order, latest
}

// reconcileGroups inserts new groups and merge-updates existing ones. It
// returns the fichas whose group exists once it is done.
func reconcileGroups(ctx context.Context, tx cohort.Tx, records []Record, report *Report) map[int64]struct{} {
	order, latest := latestByFicha(records)
	materialized := make(map[int64]struct{}, len(order))
	groupErr := func(ficha int64, err error) {
		report.fail(&EntityUpsertError{
			Kind: cohort.KindGroup,
			Key:  strconv.FormatInt(ficha, 10),
			Row:  latest[ficha].Line,
			Err:  err,
		})
	}

	existing, err := tx.ExistingFichas(ctx, order)
	if err != nil {
		// Unknown state: insert everything and merge whatever turns out to exist.
		report.fail(&EntityUpsertError{Kind: cohort.KindGroup, Key: "lookup", Err: err})
		existing = map[int64]struct{}{}
	}

	var fresh, known []cohort.Group
	for _, ficha := range order {
		g := latest[ficha].Group()
		if err := constants.Validate.Struct(g); err != nil {
			groupErr(ficha, err)
			continue
		}
		if _, ok := existing[ficha]; ok {
			known = append(known, g)
			continue
		}
		fresh = append(fresh, g)
	}

	if len(fresh) > 0 {
		inserted := make(map[int64]struct{}, len(fresh))
		failed := make(map[int64]struct{})
		fichas, err := tx.InsertGroups(ctx, fresh)
		if err == nil {
			for _, f := range fichas {
				inserted[f] = struct{}{}
			}
		} else {
			for _, g := range fresh {
				one, err := tx.InsertGroups(ctx, []cohort.Group{g})
				if err != nil {
					groupErr(g.Ficha, err)
					failed[g.Ficha] = struct{}{}
					continue
				}
				for _, f := range one {
					inserted[f] = struct{}{}
				}
			}
		}
		for _, g := range fresh {
			if _, ok := failed[g.Ficha]; ok {
				continue
			}
			if _, ok := inserted[g.Ficha]; ok {
				report.created(cohort.KindGroup, 1)
				materialized[g.Ficha] = struct{}{}
				continue
			}
			// Created by a concurrent upload after the lookup.
			known = append(known, g)
		}
	}

	for _, g := range known {
		materialized[g.Ficha] = struct{}{}
		if err := tx.MergeGroup(ctx, g); err != nil {
			groupErr(g.Ficha, err)
			continue
		}
		report.updated(cohort.KindGroup, 1)
	}
	return materialized
}
