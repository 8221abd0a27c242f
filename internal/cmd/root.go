package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "oflow",
	Short: "OFlow merchant client",
	Long: `oflow signs a merchant in to OFlow with LINE or Apple, keeps the session
in sync with the backend and routes to team selection, LINE channel setup
or the main app.

Run 'oflow app' for the interactive client. Every step is also available
as a plain subcommand for scripting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which cancels logins and
// backend calls on Ctrl+C.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	level := log.LevelWarn

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.oflow/config.yaml)")
	flags.Var(&level, "log-level", "log level: debug, info, warn or error")
	flags.Bool("ephemeral", false, "keep identity and session in memory only")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address while 'oflow app' runs")
}
