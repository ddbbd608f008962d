package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
	"github.com/softdata/cohortsync/pkg/composables"
)

var ErrGroupNotFound = errors.New("group not found")

const (
	existingFichasQuery = `SELECT ficha FROM grupos WHERE ficha = ANY($1::bigint[])`

	lookupCentersQuery = `
SELECT cod_centro, nombre_centro, cod_regional, nombre_regional, datos_centro
FROM centros_formacion
WHERE cod_centro = ANY($1::bigint[])`

	upsertProgramQuery = `
INSERT INTO programas_formacion AS p
    (cod_programa, version, nombre_programa, nivel_formacion, red_conocimiento, tipo_programa, activo)
VALUES ($1, $2::text, $3::text, $4::text, $5::text, $6::text, COALESCE($7::boolean, true))
ON CONFLICT (cod_programa) DO UPDATE SET
    version          = COALESCE($2::text, p.version),
    nombre_programa  = COALESCE($3::text, p.nombre_programa),
    nivel_formacion  = COALESCE($4::text, p.nivel_formacion),
    red_conocimiento = COALESCE($5::text, p.red_conocimiento),
    tipo_programa    = COALESCE($6::text, p.tipo_programa),
    activo           = COALESCE($7::boolean, p.activo),
    updated_at       = now()
RETURNING (xmax = 0)`

	upsertCenterQuery = `
INSERT INTO centros_formacion AS c
    (cod_centro, nombre_centro, cod_regional, nombre_regional, datos_centro)
VALUES ($1, $2::text, $3::bigint, $4::text, $5::text)
ON CONFLICT (cod_centro) DO UPDATE SET
    nombre_centro   = COALESCE($2::text, c.nombre_centro),
    cod_regional    = COALESCE($3::bigint, c.cod_regional),
    nombre_regional = COALESCE($4::text, c.nombre_regional),
    datos_centro    = COALESCE($5::text, c.datos_centro),
    updated_at      = now()
RETURNING (xmax = 0)`

	upsertMunicipalityQuery = `
INSERT INTO municipios AS m (cod_municipio, nombre_municipio)
VALUES ($1, $2::text)
ON CONFLICT (cod_municipio) DO UPDATE SET
    nombre_municipio = COALESCE($2::text, m.nombre_municipio),
    updated_at       = now()
RETURNING (xmax = 0)`

	insertStrategyQuery = `
INSERT INTO estrategia (cod_estrategia, nombre)
VALUES ($1, $2)
ON CONFLICT (cod_estrategia) DO NOTHING
RETURNING true`

	insertGroupsQuery = `
INSERT INTO grupos (
    ficha, cod_programa, cod_centro, cod_municipio, cod_estrategia,
    modalidad, jornada, etapa_ficha, estado_curso, codigo_estado, nombre_estado,
    fecha_inicio, fecha_fin, duracion_meses, nombre_responsable, nombre_empresa,
    num_aprendices_matriculados)
SELECT * FROM unnest(
    $1::bigint[], $2::text[], $3::bigint[], $4::text[], $5::text[],
    $6::text[], $7::text[], $8::text[], $9::text[], $10::bigint[], $11::text[],
    $12::date[], $13::date[], $14::bigint[], $15::text[], $16::text[],
    $17::bigint[])
ON CONFLICT (ficha) DO NOTHING
RETURNING ficha`

	mergeGroupQuery = `
UPDATE grupos SET
    cod_programa                = COALESCE($2::text, cod_programa),
    cod_centro                  = COALESCE($3::bigint, cod_centro),
    cod_municipio               = COALESCE($4::text, cod_municipio),
    cod_estrategia              = COALESCE($5::text, cod_estrategia),
    modalidad                   = COALESCE($6::text, modalidad),
    jornada                     = COALESCE($7::text, jornada),
    etapa_ficha                 = COALESCE($8::text, etapa_ficha),
    estado_curso                = COALESCE($9::text, estado_curso),
    codigo_estado               = COALESCE($10::bigint, codigo_estado),
    nombre_estado               = COALESCE($11::text, nombre_estado),
    fecha_inicio                = COALESCE($12::date, fecha_inicio),
    fecha_fin                   = COALESCE($13::date, fecha_fin),
    duracion_meses              = COALESCE($14::bigint, duracion_meses),
    nombre_responsable          = COALESCE($15::text, nombre_responsable),
    nombre_empresa              = COALESCE($16::text, nombre_empresa),
    num_aprendices_matriculados = COALESCE($17::bigint, num_aprendices_matriculados),
    updated_at                  = now()
WHERE ficha = $1`
)

// upsertSnapshotsQuery overwrites every counter; snapshots never merge.
var upsertSnapshotsQuery = buildUpsertSnapshotsQuery()

func buildUpsertSnapshotsQuery() string {
	cols := cohort.CounterColumns()
	params := make([]string, 0, len(cols)+1)
	params = append(params, "$1::bigint[]")
	sets := make([]string, 0, len(cols)+1)
	for i, col := range cols {
		params = append(params, fmt.Sprintf("$%d::bigint[]", i+2))
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	sets = append(sets, "updated_at = now()")
	return fmt.Sprintf(
		"INSERT INTO historico (id_grupo, %s)\nSELECT * FROM unnest(%s)\nON CONFLICT (id_grupo) DO UPDATE SET\n    %s\nRETURNING (xmax = 0)",
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
		strings.Join(sets, ",\n    "),
	)
}

// PgStore implements cohort.Store on Postgres. Each upload runs in one
// transaction, or in a savepoint when the context already carries one.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Begin(ctx context.Context) (cohort.Tx, error) {
	if _, err := composables.UseTx(ctx); err != nil && s.pool != nil {
		ctx = composables.WithPool(ctx, s.pool)
	}
	tx, err := composables.BeginTx(ctx)
	if err != nil {
		return nil, gerrors.Wrap(err, "begin upload transaction")
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

// savepoint runs fn in a nested transaction so a failed statement does not
// abort the surrounding upload.
func (t *pgTx) savepoint(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	err := composables.InTx(composables.WithTx(ctx, t.tx), func(ctx context.Context) error {
		sp, err := composables.UseTx(ctx)
		if err != nil {
			return err
		}
		return fn(sp)
	})
	return describe(err, op)
}

func (t *pgTx) ExistingFichas(ctx context.Context, fichas []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(fichas))
	err := t.savepoint(ctx, "lookup groups", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, existingFichasQuery, fichas)
		if err != nil {
			return err
		}
		found, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return err
		}
		for _, f := range found {
			out[f] = struct{}{}
		}
		return nil
	})
	return out, err
}

func (t *pgTx) LookupCenters(ctx context.Context, codes []int64) (map[int64]cohort.Center, error) {
	out := make(map[int64]cohort.Center, len(codes))
	err := t.savepoint(ctx, "lookup centers", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lookupCentersQuery, codes)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				c                  cohort.Center
				name, region, data *string
				regionCode         *int64
			)
			if err := rows.Scan(&c.Code, &name, &regionCode, &region, &data); err != nil {
				return err
			}
			c.Name = cohort.FromPtr(name)
			c.RegionalCode = cohort.FromPtr(regionCode)
			c.RegionalName = cohort.FromPtr(region)
			c.Data = cohort.FromPtr(data)
			out[c.Code] = c
		}
		return rows.Err()
	})
	return out, err
}

// upsertRow reports whether the statement inserted rather than updated.
func (t *pgTx) upsertRow(ctx context.Context, op, query string, args ...any) (bool, error) {
	created, err := composables.InTxResult(composables.WithTx(ctx, t.tx), func(ctx context.Context) (bool, error) {
		sp, err := composables.UseTx(ctx)
		if err != nil {
			return false, err
		}
		var created bool
		err = sp.QueryRow(ctx, query, args...).Scan(&created)
		return created, err
	})
	return created, describe(err, op)
}

func (t *pgTx) UpsertProgram(ctx context.Context, p cohort.Program) (bool, error) {
	return t.upsertRow(ctx, "upsert program "+p.Code, upsertProgramQuery,
		p.Code, p.Version.Ptr(), p.Name.Ptr(), p.Level.Ptr(), p.Network.Ptr(), p.Type.Ptr(), p.Active.Ptr())
}

func (t *pgTx) UpsertCenter(ctx context.Context, c cohort.Center) (bool, error) {
	return t.upsertRow(ctx, fmt.Sprintf("upsert center %d", c.Code), upsertCenterQuery,
		c.Code, c.Name.Ptr(), c.RegionalCode.Ptr(), c.RegionalName.Ptr(), c.Data.Ptr())
}

func (t *pgTx) UpsertMunicipality(ctx context.Context, m cohort.Municipality) (bool, error) {
	return t.upsertRow(ctx, "upsert municipality "+m.Code, upsertMunicipalityQuery, m.Code, m.Name.Ptr())
}

// UpsertStrategy only inserts; an existing strategy is left as it is.
func (t *pgTx) UpsertStrategy(ctx context.Context, s cohort.Strategy) (bool, error) {
	created, err := t.upsertRow(ctx, "insert strategy "+s.Code, insertStrategyQuery, s.Code, s.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return created, err
}

func (t *pgTx) InsertGroups(ctx context.Context, groups []cohort.Group) ([]int64, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	cols := newGroupColumns(len(groups))
	for _, g := range groups {
		cols.add(g)
	}
	var inserted []int64
	err := t.savepoint(ctx, fmt.Sprintf("insert %d groups", len(groups)), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, insertGroupsQuery, cols.args()...)
		if err != nil {
			return err
		}
		inserted, err = pgx.CollectRows(rows, pgx.RowTo[int64])
		return err
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (t *pgTx) MergeGroup(ctx context.Context, g cohort.Group) error {
	return t.savepoint(ctx, fmt.Sprintf("merge group %d", g.Ficha), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, mergeGroupQuery,
			g.Ficha, g.ProgramCode.Ptr(), g.CenterCode.Ptr(), g.MunicipalityCode.Ptr(), g.StrategyCode.Ptr(),
			g.Modality.Ptr(), g.Shift.Ptr(), g.Stage.Ptr(), g.Status.Ptr(), g.StatusCode.Ptr(), g.StatusName.Ptr(),
			pgDate(g.StartDate), pgDate(g.EndDate), g.DurationMonths.Ptr(), g.Responsible.Ptr(), g.Company.Ptr(),
			g.Enrolled.Ptr(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrGroupNotFound
		}
		return nil
	})
}

func (t *pgTx) BulkUpsertSnapshots(ctx context.Context, snapshots []cohort.Snapshot) (int, int, error) {
	if len(snapshots) == 0 {
		return 0, 0, nil
	}
	fichas := make([]int64, len(snapshots))
	counters := make([][]int64, cohort.NumCounters)
	for i := range counters {
		counters[i] = make([]int64, len(snapshots))
	}
	for i, s := range snapshots {
		fichas[i] = s.Ficha
		for c := 0; c < cohort.NumCounters; c++ {
			counters[c][i] = s.Counters[c]
		}
	}
	args := make([]any, 0, cohort.NumCounters+1)
	args = append(args, fichas)
	for _, col := range counters {
		args = append(args, col)
	}

	var inserted, updated int
	op := fmt.Sprintf("upsert %d snapshots (fichas %d..%d)", len(snapshots), fichas[0], fichas[len(fichas)-1])
	err := t.savepoint(ctx, op, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, upsertSnapshotsQuery, args...)
		if err != nil {
			return err
		}
		flags, err := pgx.CollectRows(rows, pgx.RowTo[bool])
		if err != nil {
			return err
		}
		for _, created := range flags {
			if created {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// groupColumns holds one array per grupos column for the unnest insert.
type groupColumns struct {
	ficha                                  []int64
	program, municipality, strategy        []*string
	center, statusCode, duration, enrolled []*int64
	modality, shift, stage, status         []*string
	statusName, responsible, company       []*string
	start, end                             []pgtype.Date
}

func newGroupColumns(n int) *groupColumns {
	return &groupColumns{ficha: make([]int64, 0, n)}
}

func (c *groupColumns) add(g cohort.Group) {
	c.ficha = append(c.ficha, g.Ficha)
	c.program = append(c.program, g.ProgramCode.Ptr())
	c.center = append(c.center, g.CenterCode.Ptr())
	c.municipality = append(c.municipality, g.MunicipalityCode.Ptr())
	c.strategy = append(c.strategy, g.StrategyCode.Ptr())
	c.modality = append(c.modality, g.Modality.Ptr())
	c.shift = append(c.shift, g.Shift.Ptr())
	c.stage = append(c.stage, g.Stage.Ptr())
	c.status = append(c.status, g.Status.Ptr())
	c.statusCode = append(c.statusCode, g.StatusCode.Ptr())
	c.statusName = append(c.statusName, g.StatusName.Ptr())
	c.start = append(c.start, pgDate(g.StartDate))
	c.end = append(c.end, pgDate(g.EndDate))
	c.duration = append(c.duration, g.DurationMonths.Ptr())
	c.responsible = append(c.responsible, g.Responsible.Ptr())
	c.company = append(c.company, g.Company.Ptr())
	c.enrolled = append(c.enrolled, g.Enrolled.Ptr())
}

func (c *groupColumns) args() []any {
	return []any{
		c.ficha, c.program, c.center, c.municipality, c.strategy,
		c.modality, c.shift, c.stage, c.status, c.statusCode, c.statusName,
		c.start, c.end, c.duration, c.responsible, c.company,
		c.enrolled,
	}
}

func pgDate(o cohort.Opt[time.Time]) pgtype.Date {
	t, ok := o.Get()
	if !ok {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}
