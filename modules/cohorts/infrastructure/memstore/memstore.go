// Package memstore is an in-memory cohort.Store. Each transaction works on
// a private copy of the data that replaces the shared state on commit. It
// enforces the same key and reference rules as the Postgres schema.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/pkg/errors"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
)

var (
	ErrTxClosed   = errors.New("transaction already closed")
	ErrForeignKey = errors.New("foreign key violation")
	ErrNotFound   = errors.New("row not found")
)

// Faults injects failures.
type Faults struct {
	Begin  error
	Commit error
	// InsertGroupFichas makes any InsertGroups call containing one of these fichas fail.
	InsertGroupFichas map[int64]bool
	// MergeGroupFichas makes MergeGroup fail for these fichas.
	MergeGroupFichas map[int64]bool
	// SnapshotBatches makes the n-th BulkUpsertSnapshots call (1-based) fail.
	SnapshotBatches map[int]bool
	// Programs makes UpsertProgram fail for these codes.
	Programs map[string]bool
}

type data struct {
	programs       map[string]cohort.Program
	centers        map[int64]cohort.Center
	municipalities map[string]cohort.Municipality
	strategies     map[string]cohort.Strategy
	groups         map[int64]cohort.Group
	snapshots      map[int64]cohort.Snapshot
}

func newData() data {
	return data{
		programs:       map[string]cohort.Program{},
		centers:        map[int64]cohort.Center{},
		municipalities: map[string]cohort.Municipality{},
		strategies:     map[string]cohort.Strategy{},
		groups:         map[int64]cohort.Group{},
		snapshots:      map[int64]cohort.Snapshot{},
	}
}

func (d data) clone() data {
	return data{
		programs:       maps.Clone(d.programs),
		centers:        maps.Clone(d.centers),
		municipalities: maps.Clone(d.municipalities),
		strategies:     maps.Clone(d.strategies),
		groups:         maps.Clone(d.groups),
		snapshots:      maps.Clone(d.snapshots),
	}
}

type Store struct {
	mu     sync.Mutex
	data   data
	faults Faults

	begins        int
	commits       int
	snapshotCalls int
}

func New() *Store {
	return &Store{data: newData()}
}

func (s *Store) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

func (s *Store) Begin(_ context.Context) (cohort.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults.Begin != nil {
		return nil, s.faults.Begin
	}
	s.begins++
	return &tx{store: s, data: s.data.clone()}, nil
}

func (s *Store) Begins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins
}

func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) Program(code string) (cohort.Program, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.programs[code]
	return p, ok
}

func (s *Store) Center(code int64) (cohort.Center, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.centers[code]
	return c, ok
}

func (s *Store) Municipality(code string) (cohort.Municipality, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data.municipalities[code]
	return m, ok
}

func (s *Store) Strategy(code string) (cohort.Strategy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.data.strategies[code]
	return st, ok
}

func (s *Store) Group(ficha int64) (cohort.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.data.groups[ficha]
	return g, ok
}

func (s *Store) Snapshot(ficha int64) (cohort.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data.snapshots[ficha]
	return snap, ok
}

// Counts reports the number of stored rows per kind.
func (s *Store) Counts() map[cohort.Kind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[cohort.Kind]int{
		cohort.KindProgram:      len(s.data.programs),
		cohort.KindCenter:       len(s.data.centers),
		cohort.KindMunicipality: len(s.data.municipalities),
		cohort.KindStrategy:     len(s.data.strategies),
		cohort.KindGroup:        len(s.data.groups),
		cohort.KindSnapshot:     len(s.data.snapshots),
	}
}

// Seed stores entities directly, bypassing transactions.
func (s *Store) Seed(items ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		switch v := item.(type) {
		case cohort.Program:
			s.data.programs[v.Code] = v
		case cohort.Center:
			s.data.centers[v.Code] = v
		case cohort.Municipality:
			s.data.municipalities[v.Code] = v
		case cohort.Strategy:
			s.data.strategies[v.Code] = v
		case cohort.Group:
			s.data.groups[v.Ficha] = v
		case cohort.Snapshot:
			s.data.snapshots[v.Ficha] = v
		default:
			panic(fmt.Sprintf("memstore: cannot seed %T", item))
		}
	}
}

type tx struct {
	store  *Store
	data   data
	closed bool
}

func (t *tx) faults() Faults {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.faults
}

func (t *tx) ExistingFichas(_ context.Context, fichas []int64) (map[int64]struct{}, error) {
	if t.closed {
		return nil, ErrTxClosed
	}
	out := make(map[int64]struct{})
	for _, f := range fichas {
		if _, ok := t.data.groups[f]; ok {
			out[f] = struct{}{}
		}
	}
	return out, nil
}

func (t *tx) LookupCenters(_ context.Context, codes []int64) (map[int64]cohort.Center, error) {
	if t.closed {
		return nil, ErrTxClosed
	}
	out := make(map[int64]cohort.Center)
	for _, c := range codes {
		if center, ok := t.data.centers[c]; ok {
			out[c] = center
		}
	}
	return out, nil
}

func (t *tx) UpsertProgram(_ context.Context, p cohort.Program) (bool, error) {
	if t.closed {
		return false, ErrTxClosed
	}
	if t.faults().Programs[p.Code] {
		return false, errors.Errorf("program %s: injected failure", p.Code)
	}
	stored, exists := t.data.programs[p.Code]
	t.data.programs[p.Code] = p.Merge(stored)
	return !exists, nil
}

func (t *tx) UpsertCenter(_ context.Context, c cohort.Center) (bool, error) {
	if t.closed {
		return false, ErrTxClosed
	}
	stored, exists := t.data.centers[c.Code]
	t.data.centers[c.Code] = c.Merge(stored)
	return !exists, nil
}

func (t *tx) UpsertMunicipality(_ context.Context, m cohort.Municipality) (bool, error) {
	if t.closed {
		return false, ErrTxClosed
	}
	stored, exists := t.data.municipalities[m.Code]
	t.data.municipalities[m.Code] = m.Merge(stored)
	return !exists, nil
}

func (t *tx) UpsertStrategy(_ context.Context, s cohort.Strategy) (bool, error) {
	if t.closed {
		return false, ErrTxClosed
	}
	_, exists := t.data.strategies[s.Code]
	if !exists {
		t.data.strategies[s.Code] = s
	}
	return !exists, nil
}

func (t *tx) checkReferences(g cohort.Group) error {
	if code, ok := g.ProgramCode.Get(); ok {
		if _, found := t.data.programs[code]; !found {
			return errors.Wrapf(ErrForeignKey, "group %d: program %s", g.Ficha, code)
		}
	}
	if code, ok := g.CenterCode.Get(); ok {
		if _, found := t.data.centers[code]; !found {
			return errors.Wrapf(ErrForeignKey, "group %d: center %d", g.Ficha, code)
		}
	}
	if code, ok := g.MunicipalityCode.Get(); ok {
		if _, found := t.data.municipalities[code]; !found {
			return errors.Wrapf(ErrForeignKey, "group %d: municipality %s", g.Ficha, code)
		}
	}
	if code, ok := g.StrategyCode.Get(); ok {
		if _, found := t.data.strategies[code]; !found {
			return errors.Wrapf(ErrForeignKey, "group %d: strategy %s", g.Ficha, code)
		}
	}
	return nil
}

// InsertGroups is all-or-nothing like a single INSERT statement.
func (t *tx) InsertGroups(_ context.Context, groups []cohort.Group) ([]int64, error) {
	if t.closed {
		return nil, ErrTxClosed
	}
	faults := t.faults()
	for _, g := range groups {
		if faults.InsertGroupFichas[g.Ficha] {
			return nil, errors.Errorf("group %d: injected failure", g.Ficha)
		}
		if err := t.checkReferences(g); err != nil {
			return nil, err
		}
	}
	var inserted []int64
	for _, g := range groups {
		if _, exists := t.data.groups[g.Ficha]; exists {
			continue
		}
		t.data.groups[g.Ficha] = g
		inserted = append(inserted, g.Ficha)
	}
	return inserted, nil
}

func (t *tx) MergeGroup(_ context.Context, g cohort.Group) error {
	if t.closed {
		return ErrTxClosed
	}
	if t.faults().MergeGroupFichas[g.Ficha] {
		return errors.Errorf("group %d: injected failure", g.Ficha)
	}
	stored, ok := t.data.groups[g.Ficha]
	if !ok {
		return errors.Wrapf(ErrNotFound, "group %d", g.Ficha)
	}
	merged := g.Merge(stored)
	if err := t.checkReferences(merged); err != nil {
		return err
	}
	t.data.groups[g.Ficha] = merged
	return nil
}

func (t *tx) BulkUpsertSnapshots(_ context.Context, snapshots []cohort.Snapshot) (int, int, error) {
	if t.closed {
		return 0, 0, ErrTxClosed
	}
	t.store.mu.Lock()
	t.store.snapshotCalls++
	call := t.store.snapshotCalls
	fail := t.store.faults.SnapshotBatches[call]
	t.store.mu.Unlock()
	if fail {
		return 0, 0, errors.Errorf("snapshot batch %d: injected failure", call)
	}
	for _, s := range snapshots {
		if _, ok := t.data.groups[s.Ficha]; !ok {
			return 0, 0, errors.Wrapf(ErrForeignKey, "snapshot %d: group", s.Ficha)
		}
	}
	var inserted, updated int
	for _, s := range snapshots {
		if _, exists := t.data.snapshots[s.Ficha]; exists {
			updated++
		} else {
			inserted++
		}
		t.data.snapshots[s.Ficha] = s
	}
	return inserted, updated, nil
}

func (t *tx) Commit(_ context.Context) error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.faults.Commit != nil {
		return t.store.faults.Commit
	}
	t.store.data = t.data
	t.store.commits++
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true
	return nil
}
