package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/tui"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Open the interactive client",
	Long: `Open the terminal client. It restores your identity, checks it against
the backend and opens on the login, team selection, LINE channel setup or
main screen. Logs go to ~/.oflow/logs/oflow.log while it runs.

With --metrics-addr the Prometheus registry is served at /metrics.`,
	RunE: runApp,
}

func init() {
	rootCmd.AddCommand(appCmd)
}

func runApp(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	a, done, err := cc.App(cmd, true)
	if err != nil {
		return err
	}
	defer done()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if addr := a.Config.Metrics.Addr; addr != "" {
		bound, errc, err := a.ServeMetrics(ctx, addr)
		if err != nil {
			return fmt.Errorf("failed to serve metrics: %w", err)
		}
		a.Logger.Info("serving metrics", "addr", bound)
		go func() {
			if err := <-errc; err != nil {
				a.Logger.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	adapter := tui.NewAdapter()
	_, stop := a.Start(ctx, adapter)
	defer stop()

	go a.Hydrate(ctx)

	return tui.Run(ctx, a, adapter)
}
