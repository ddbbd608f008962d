package cohort

import "context"

// Store opens the transactional scope one upload runs in.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the write surface used while reconciling one upload. Upsert methods
// report created=true when the key did not exist before the call. A failing
// call must leave the transaction usable for the following calls.
type Tx interface {
	ExistingFichas(ctx context.Context, fichas []int64) (map[int64]struct{}, error)
	LookupCenters(ctx context.Context, codes []int64) (map[int64]Center, error)

	UpsertProgram(ctx context.Context, p Program) (created bool, err error)
	UpsertCenter(ctx context.Context, c Center) (created bool, err error)
	UpsertMunicipality(ctx context.Context, m Municipality) (created bool, err error)
	UpsertStrategy(ctx context.Context, s Strategy) (created bool, err error)

	// InsertGroups inserts new groups and returns the fichas that were
	// actually inserted; fichas that already existed are left untouched.
	InsertGroups(ctx context.Context, groups []Group) ([]int64, error)
	MergeGroup(ctx context.Context, g Group) error
	BulkUpsertSnapshots(ctx context.Context, snapshots []Snapshot) (inserted, updated int, err error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
