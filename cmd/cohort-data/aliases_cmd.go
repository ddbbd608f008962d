package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/softdata/cohortsync/modules/cohorts/ingest"
)

func newAliasesCmd() *cobra.Command {
	var aliasesPath string
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Print the effective header alias table as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			aliases, err := ingest.LoadAliases(aliasesPath)
			if err != nil {
				return withCode(exitUsage, err)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(aliases); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&aliasesPath, "aliases", "", "YAML file with extra header spellings")
	return cmd
}
