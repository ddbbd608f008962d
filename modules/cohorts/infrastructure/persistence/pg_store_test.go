package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
	"github.com/softdata/cohortsync/pkg/composables"
)

func TestPgStore_BeginUsesSavepointOfContextTx(t *testing.T) {
	t.Parallel()

	outer := newStubTx()
	ctx := composables.WithTx(context.Background(), outer)

	tx, err := NewPgStore(nil).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.Equal(t, []string{"savepoint", "release"}, *outer.log)
}

func TestPgStore_BeginWithoutPoolOrTx(t *testing.T) {
	t.Parallel()

	_, err := NewPgStore(nil).Begin(context.Background())
	require.ErrorIs(t, err, composables.ErrNoPool)
}

func TestMergeGroup_MissingRow(t *testing.T) {
	t.Parallel()

	stub := newStubTx()
	stub.execFunc = func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		require.Contains(t, sql, "UPDATE grupos")
		require.Equal(t, int64(42), args[0])
		require.Nil(t, args[15], "absent attributes are sent as NULL")
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	tx := &pgTx{tx: stub}

	err := tx.MergeGroup(context.Background(), cohort.Group{Ficha: 42, Modality: cohort.Some("VIRTUAL")})
	require.ErrorIs(t, err, ErrGroupNotFound)
	require.Equal(t, []string{"savepoint", "rollback"}, *stub.log)
}

func TestUpsertProgram_FailureKeepsTransactionUsable(t *testing.T) {
	t.Parallel()

	stub := newStubTx()
	calls := 0
	stub.queryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		calls++
		require.Contains(t, sql, "INSERT INTO programas_formacion")
		if calls == 1 {
			return stubRow{scan: func(dest ...any) error {
				return &pgconn.PgError{Code: "22001", ColumnName: "nombre_programa"}
			}}
		}
		return stubRow{scan: func(dest ...any) error {
			*dest[0].(*bool) = true
			return nil
		}}
	}
	tx := &pgTx{tx: stub}

	_, err := tx.UpsertProgram(context.Background(), cohort.Program{Code: "P1"})
	require.ErrorContains(t, err, "value too long for column (nombre_programa)")

	created, err := tx.UpsertProgram(context.Background(), cohort.Program{Code: "P2"})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, []string{"savepoint", "rollback", "savepoint", "release"}, *stub.log)
}

func TestSavepoint_RollbackFailureIsKept(t *testing.T) {
	t.Parallel()

	stub := newStubTx()
	stub.rollbackErr = errors.New("conn busy")
	stub.queryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return stubRow{scan: func(dest ...any) error {
			return &pgconn.PgError{Code: "23505", ConstraintName: "centros_formacion_pkey"}
		}}
	}
	tx := &pgTx{tx: stub}

	_, err := tx.UpsertCenter(context.Background(), cohort.Center{Code: 9101})
	require.ErrorContains(t, err, "upsert center 9101")
	require.ErrorIs(t, err, stub.rollbackErr)
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, []string{"savepoint", "rollback"}, *stub.log)
}

func TestUpsertStrategy_ExistingIsNotCreated(t *testing.T) {
	t.Parallel()

	stub := newStubTx()
	stub.queryRowFunc = func(ctx context.Context, sql string, args ...any) pgx.Row {
		return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
	}
	tx := &pgTx{tx: stub}

	created, err := tx.UpsertStrategy(context.Background(), cohort.Strategy{Code: "CE"})
	require.NoError(t, err)
	require.False(t, created)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	err := describe(&pgconn.PgError{Code: "23503", ConstraintName: "grupos_cod_programa_fkey"}, "insert 3 groups")
	require.ErrorContains(t, err, "insert 3 groups: referenced row does not exist (grupos_cod_programa_fkey)")
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)

	plain := errors.New("conn closed")
	require.ErrorIs(t, describe(plain, "merge group 1"), plain)
	require.NoError(t, describe(nil, "noop"))
}

func TestUpsertSnapshotsQuery(t *testing.T) {
	t.Parallel()

	for _, col := range cohort.CounterColumns() {
		require.Contains(t, upsertSnapshotsQuery, col+" = EXCLUDED."+col)
	}
	require.Contains(t, upsertSnapshotsQuery, "$15::bigint[]")
	require.NotContains(t, upsertSnapshotsQuery, "$16")
	require.True(t, strings.HasSuffix(upsertSnapshotsQuery, "RETURNING (xmax = 0)"))
}

type stubTx struct {
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	rollbackErr  error
	log          *[]string
	nested       bool
}

func newStubTx() *stubTx {
	return &stubTx{log: &[]string{}}
}

func (s *stubTx) Begin(ctx context.Context) (pgx.Tx, error) {
	*s.log = append(*s.log, "savepoint")
	nested := *s
	nested.nested = true
	return &nested, nil
}

func (s *stubTx) Commit(ctx context.Context) error {
	if s.nested {
		*s.log = append(*s.log, "release")
	} else {
		*s.log = append(*s.log, "commit")
	}
	return nil
}

func (s *stubTx) Rollback(ctx context.Context) error {
	*s.log = append(*s.log, "rollback")
	return s.rollbackErr
}

func (s *stubTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("copy not implemented")
}

func (s *stubTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	var results pgx.BatchResults
	return results
}

func (s *stubTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (s *stubTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("prepare not implemented")
}

func (s *stubTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if s.execFunc == nil {
		return pgconn.CommandTag{}, errors.New("exec not implemented")
	}
	return s.execFunc(ctx, sql, arguments...)
}

func (s *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.queryFunc == nil {
		return nil, errors.New("query not implemented")
	}
	return s.queryFunc(ctx, sql, args...)
}

func (s *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryRowFunc == nil {
		return stubRow{scan: func(dest ...any) error { return errors.New("query row not implemented") }}
	}
	return s.queryRowFunc(ctx, sql, args...)
}

func (s *stubTx) Conn() *pgx.Conn { return nil }

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return errors.New("scan not implemented")
	}
	return r.scan(dest...)
}
