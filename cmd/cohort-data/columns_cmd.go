package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/softdata/cohortsync/modules/cohorts/ingest"
	"github.com/softdata/cohortsync/pkg/spreadsheet"
)

type columnsOptions struct {
	input         string
	family        string
	aliasesPath   string
	maxHeaderScan int
}

type columnsResult struct {
	Input     string            `json:"input"`
	Family    string            `json:"family"`
	HeaderRow int               `json:"header_row"`
	Columns   map[string]string `json:"columns"`
	Unmapped  []string          `json:"unmapped"`
	Missing   []string          `json:"missing"`
}

func newColumnsCmd(g *globalOptions) *cobra.Command {
	var opts columnsOptions
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Show how the headers of a spreadsheet map to canonical fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "Spreadsheet to inspect (required)")
	cmd.Flags().StringVar(&opts.family, "family", ingest.Historico.Name, "Upload type: "+strings.Join(ingest.FamilyNames(), " or "))
	cmd.Flags().StringVar(&opts.aliasesPath, "aliases", "", "YAML or TOML file with extra header spellings")
	cmd.Flags().IntVar(&opts.maxHeaderScan, "max-header-scan", 6, "Rows inspected when looking for the header row")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runColumns(_ context.Context, opts columnsOptions, stdout io.Writer) error {
	if opts.family == "" {
		opts.family = ingest.Historico.Name
	}
	family, ok := ingest.FamilyByName(opts.family)
	if !ok {
		return withCode(exitUsage, fmt.Errorf("--family must be one of %s, got %q", strings.Join(ingest.FamilyNames(), ", "), opts.family))
	}
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read %s: %w", opts.input, err))
	}
	aliases, err := ingest.LoadAliases(opts.aliasesPath)
	if err != nil {
		return withCode(exitUsage, err)
	}
	rows, err := spreadsheet.Read(filepath.Base(opts.input), data)
	if err != nil {
		return withCode(exitValidation, err)
	}

	resolver := ingest.NewResolver(aliases, family)
	headerRow := resolver.DetectHeader(rows, opts.maxHeaderScan)
	table := ingest.NewTable(rows, headerRow)
	res, resolveErr := resolver.Resolve(table.Headers)

	out := columnsResult{
		Input:     opts.input,
		Family:    family.Name,
		HeaderRow: headerRow + 1,
		Columns:   res.Mapping(),
		Unmapped:  res.Unmapped,
		Missing:   []string{},
	}
	for _, f := range family.Fields {
		if !res.Has(f.Name) {
			out.Missing = append(out.Missing, f.Name)
		}
	}
	if err := writeJSONLine(stdout, out); err != nil {
		return err
	}
	if resolveErr != nil {
		return withCode(exitValidation, resolveErr)
	}
	return nil
}
