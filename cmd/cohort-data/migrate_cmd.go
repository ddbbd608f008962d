package main

import (
	"github.com/spf13/cobra"

	"github.com/softdata/cohortsync/modules/cohorts/infrastructure/persistence"
)

func newMigrateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Manage the cohort schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := databaseDSN()
			if err != nil {
				return err
			}
			g.logger(cmd).WithField("command", args[0]).Info("running migrations")
			if err := persistence.Migrate(cmd.Context(), dsn, args[0]); err != nil {
				return withCode(exitDB, err)
			}
			return nil
		},
	}
}
