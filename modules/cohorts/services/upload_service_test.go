package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
	"github.com/softdata/cohortsync/modules/cohorts/infrastructure/memstore"
	"github.com/softdata/cohortsync/modules/cohorts/ingest"
	"github.com/softdata/cohortsync/modules/cohorts/services"
	"github.com/softdata/cohortsync/pkg/eventbus"
	"github.com/softdata/cohortsync/pkg/spreadsheet"
)

const reportCSV = `Reporte generado 2024-06-01
FICHA;CODIGO_PROGRAMA;VERSION;CODIGO_CENTRO;NOMBRE_CENTRO;CERTIFICADOS
2001;228106;102;9101;Centro Uno;4
2002;228106;102;9101;Centro Uno;0
`

type fixture struct {
	store   *memstore.Store
	service *services.UploadService
	history *services.UploadHistory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.New()
	bus := eventbus.NewEventPublisher(nil)
	history := services.NewUploadHistory(3)
	history.Subscribe(bus)
	var reconcilers []*ingest.Reconciler
	for _, family := range ingest.Families {
		reconcilers = append(reconcilers, ingest.NewReconciler(store, ingest.NewResolver(ingest.DefaultAliases(), family), ingest.Options{}))
	}
	return fixture{
		store:   store,
		service: services.NewUploadService(bus, 6, reconcilers...),
		history: history,
	}
}

func TestUploadService_ImportsCSVBelowTitleRow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	report, err := f.service.Import(context.Background(), "historico.csv", []byte(reportCSV), services.ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, "ok", report.Status())
	assert.Equal(t, 2, report.Created[cohort.KindGroup])
	snap, ok := f.store.Snapshot(2001)
	require.True(t, ok)
	assert.Equal(t, int64(4), snap.Counters.Get(cohort.Certified))

	recent := f.history.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, report.UploadID, recent[0].UploadID)
	assert.Equal(t, "historico.csv", recent[0].Filename)
	assert.Equal(t, "ok", recent[0].Status)
}

func TestUploadService_DryRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	report, err := f.service.Import(context.Background(), "historico.csv", []byte(reportCSV), services.ImportOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Created[cohort.KindGroup])
	_, ok := f.store.Group(2001)
	assert.False(t, ok)
	assert.True(t, f.history.Recent(1)[0].DryRun)
}

func TestUploadService_RejectsMissingFicha(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	data := "CODIGO_PROGRAMA,VERSION\n228106,102\n"
	_, err := f.service.Import(context.Background(), "sin_ficha.csv", []byte(data), services.ImportOptions{})

	var unresolved *ingest.UnresolvedRequiredFieldError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "ficha", unresolved.Field)
	assert.Zero(t, f.store.Begins())

	recent := f.history.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, "rejected", recent[0].Status)
	assert.Contains(t, recent[0].Error, "ficha")
}

func TestUploadService_RejectsUnreadableFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.service.Import(context.Background(), "vacio.csv", nil, services.ImportOptions{})
	require.ErrorIs(t, err, spreadsheet.ErrEmpty)
	var fileErr *services.FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "vacio.csv", fileErr.Filename)
	assert.Equal(t, "rejected", f.history.Recent(1)[0].Status)
}

func TestUploadHistory_KeepsNewestWithinLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, name := range []string{"a.csv", "b.csv", "c.csv", "d.csv"} {
		_, err := f.service.Import(context.Background(), name, []byte(reportCSV), services.ImportOptions{DryRun: true})
		require.NoError(t, err)
	}

	recent := f.history.Recent(0)
	require.Len(t, recent, 3)
	names := make([]string, len(recent))
	for i, s := range recent {
		names[i] = s.Filename
	}
	assert.Equal(t, "d.csv,c.csv,b.csv", strings.Join(names, ","))

	got, ok := f.history.Get(recent[1].UploadID)
	require.True(t, ok)
	assert.Equal(t, "c.csv", got.Filename)
	assert.Len(t, f.history.Recent(2), 2)
}

const gruposCSV = `IDENTIFICADOR_FICHA;CODIGO_CENTRO;CODIGO_PROGRAMA;NOMBRE_PROGRAMA_FORMACION;NOMBRE_RESPONSABLE
3001;9101;228106;Análisis y Desarrollo de Software;Ana
`

func TestUploadService_GruposFamily(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	assert.Equal(t, []string{"historico", "grupos"}, f.service.Families())

	report, err := f.service.Import(context.Background(), "pe04.csv", []byte(gruposCSV), services.ImportOptions{Family: "grupos"})
	require.NoError(t, err)
	assert.Equal(t, "grupos", report.Family)
	assert.Equal(t, 1, report.Created[cohort.KindGroup])

	_, ok := f.store.Group(3001)
	assert.True(t, ok)
	_, ok = f.store.Snapshot(3001)
	assert.False(t, ok, "group listings carry no counters")

	recent := f.history.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "grupos", recent[0].Family)
}

func TestUploadService_UnknownFamily(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.service.Import(context.Background(), "pe04.csv", []byte(gruposCSV), services.ImportOptions{Family: "normas"})
	require.ErrorIs(t, err, services.ErrUnknownFamily)
	assert.Empty(t, f.history.Recent(0))
	assert.Zero(t, f.store.Begins())
}
