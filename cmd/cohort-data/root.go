package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/softdata/cohortsync/pkg/logging"
)

type globalOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	var g globalOptions
	cmd := &cobra.Command{
		Use:           "cohort-data",
		Short:         "Historical cohort spreadsheet import and schema tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log progress to stderr")

	cmd.AddCommand(newImportCmd(&g))
	cmd.AddCommand(newColumnsCmd(&g))
	cmd.AddCommand(newMigrateCmd(&g))
	cmd.AddCommand(newAliasesCmd())
	return cmd
}

func (g *globalOptions) logger(cmd *cobra.Command) *logrus.Logger {
	level := logrus.WarnLevel
	if g.verbose {
		level = logrus.DebugLevel
	}
	logger := logging.ConsoleLogger(level)
	logger.SetOutput(cmd.ErrOrStderr())
	return logger
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
