package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
)

const sampleCSV = "Reporte de fichas\n" +
	"FICHA;CODIGO_PROGRAMA;VERSION;CODIGO_CENTRO;CODIGO_REGIONAL;CERTIFICADOS\n" +
	"4001;228106;102;9101;66;3\n" +
	"4002;228106;102;9201;5;x\n"

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func offlineOptions(input string) importOptions {
	return importOptions{input: input, offline: true, batchSize: 1000, maxHeaderScan: 6}
}

func TestRunImport_OfflineWritesSummaryAndReport(t *testing.T) {
	opts := offlineOptions(writeInput(t, "historico.csv", sampleCSV))
	opts.outputDir = t.TempDir()

	var out bytes.Buffer
	require.NoError(t, runImport(context.Background(), opts, &out))

	var summary importSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, "partial", summary.Status)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 2, summary.Created[cohort.KindGroup])

	b, err := os.ReadFile(summary.ReportOut)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind": "conversion"`)
}

func TestRunImport_StrictFailsOnRowErrors(t *testing.T) {
	opts := offlineOptions(writeInput(t, "historico.csv", sampleCSV))
	opts.strict = true

	err := runImport(context.Background(), opts, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, exitPartial, exitCode(err))
}

func TestRunImport_RegionFilter(t *testing.T) {
	opts := offlineOptions(writeInput(t, "historico.csv", sampleCSV))
	opts.regionCode = 66

	var out bytes.Buffer
	require.NoError(t, runImport(context.Background(), opts, &out))
	var summary importSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 1, summary.Rows)
	assert.Equal(t, 1, summary.Created[cohort.KindGroup])
	assert.Equal(t, 1, summary.Created[cohort.KindCenter])
}

func TestRunImport_GruposFamilyLeavesCounters(t *testing.T) {
	opts := offlineOptions(writeInput(t, "grupos.csv", sampleCSV))
	opts.family = "grupos"

	var out bytes.Buffer
	require.NoError(t, runImport(context.Background(), opts, &out))
	var summary importSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, "grupos", summary.Family)
	assert.Equal(t, "ok", summary.Status)
	assert.Equal(t, 2, summary.Rows)
	assert.Zero(t, summary.Errors, "certificate counts are not read for grupos")
	assert.Equal(t, 2, summary.Created[cohort.KindGroup])
	assert.Zero(t, summary.Created[cohort.KindSnapshot])
}

func TestRunImport_ExitCodes(t *testing.T) {
	cases := []struct {
		name string
		opts func(t *testing.T) importOptions
		want int
	}{
		{"missing input flag", func(t *testing.T) importOptions { return importOptions{batchSize: 1} }, exitUsage},
		{"unreadable path", func(t *testing.T) importOptions {
			return offlineOptions(filepath.Join(t.TempDir(), "nope.csv"))
		}, exitUsage},
		{"bad batch size", func(t *testing.T) importOptions {
			o := offlineOptions(writeInput(t, "a.csv", sampleCSV))
			o.batchSize = 0
			return o
		}, exitUsage},
		{"apply offline", func(t *testing.T) importOptions {
			o := offlineOptions(writeInput(t, "a.csv", sampleCSV))
			o.apply = true
			return o
		}, exitUsage},
		{"unknown family", func(t *testing.T) importOptions {
			o := offlineOptions(writeInput(t, "a.csv", sampleCSV))
			o.family = "matriculas"
			return o
		}, exitUsage},
		{"grupos without program column", func(t *testing.T) importOptions {
			o := offlineOptions(writeInput(t, "a.csv", "FICHA;CODIGO_CENTRO\n4001;9101\n"))
			o.family = "grupos"
			return o
		}, exitValidation},
		{"no ficha column", func(t *testing.T) importOptions {
			return offlineOptions(writeInput(t, "a.csv", "NOMBRE_CENTRO,CERTIFICADOS\nUno,1\n"))
		}, exitValidation},
		{"empty file", func(t *testing.T) importOptions {
			return offlineOptions(writeInput(t, "a.csv", ""))
		}, exitValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := runImport(context.Background(), tc.opts(t), &bytes.Buffer{})
			require.Error(t, err)
			assert.Equal(t, tc.want, exitCode(err), err.Error())
		})
	}
}

func TestRunColumns(t *testing.T) {
	var out bytes.Buffer
	err := runColumns(context.Background(), columnsOptions{
		input:         writeInput(t, "historico.csv", sampleCSV),
		maxHeaderScan: 6,
	}, &out)
	require.NoError(t, err)

	var res columnsResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 2, res.HeaderRow)
	assert.Equal(t, "ficha", res.Columns["FICHA"])
	assert.Equal(t, "num_aprendices_certificados", res.Columns["CERTIFICADOS"])
	assert.Contains(t, res.Missing, "nombre_programa")
	assert.NotContains(t, res.Missing, "ficha")
}

func TestRunColumns_GruposFamily(t *testing.T) {
	var out bytes.Buffer
	err := runColumns(context.Background(), columnsOptions{
		input:         writeInput(t, "grupos.csv", sampleCSV),
		maxHeaderScan: 6,
		family:        "grupos",
	}, &out)
	require.NoError(t, err)

	var res columnsResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "grupos", res.Family)
	assert.Equal(t, "cod_programa", res.Columns["CODIGO_PROGRAMA"])
	assert.NotContains(t, res.Columns, "CERTIFICADOS")
	assert.NotContains(t, res.Missing, "num_aprendices_certificados")

	err = runColumns(context.Background(), columnsOptions{
		input:         writeInput(t, "grupos.csv", sampleCSV),
		maxHeaderScan: 6,
		family:        "bogus",
	}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestAliasesCommand_MergesExtraSpellings(t *testing.T) {
	extra := writeInput(t, "aliases.yaml", "ficha: [NUMERO DEL GRUPO]\n")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"aliases", "--aliases", extra})
	require.NoError(t, cmd.Execute())

	var got map[string][]string
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Contains(t, got["ficha"], "FICHA")
	assert.Contains(t, got["ficha"], "NUMERO DEL GRUPO")
}

func TestMigrateCommand_RejectsUnknownSubcommand(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate", "sideways"})
	require.Error(t, cmd.Execute())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("plain")))
	assert.Equal(t, exitDBWrite, exitCode(withCode(exitDBWrite, errors.New("commit"))))
	assert.Nil(t, withCode(exitDB, nil))
}
