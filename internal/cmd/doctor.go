package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/health"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run client diagnostics",
	Long: `Check that oflow is ready to sign in.

Checks include:
  • Backend reachability
  • Local storage read/write
  • The current backend session
  • LINE and Apple login configuration

Examples:
  oflow doctor
  oflow doctor --json
`,
	RunE: runDoctor,
}

// DoctorReport is the --json shape of 'oflow doctor'.
type DoctorReport struct {
	Status health.Status             `json:"status"`
	Checks map[string]*health.Result `json:"checks"`
}

func init() {
	doctorCmd.Flags().Bool("json", false, "output the report as JSON")

	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	a, done, err := cc.App(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	manager := health.NewManager()
	manager.AddChecker(health.NewBackendChecker(a.API))
	manager.AddChecker(health.NewStorageChecker(a.KV))
	manager.AddChecker(health.NewSessionChecker(a.Validator))
	manager.AddChecker(health.NewLoginConfigChecker(a.Config))

	results := manager.Check(cmd.Context())
	report := DoctorReport{Status: manager.OverallStatus(results), Checks: results}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, name := range manager.CheckNames() {
			r := results[name]
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, r.Status, r.Message)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nOverall: %s\n", report.Status)
	}

	if report.Status == health.StatusUnhealthy {
		return errors.New(errors.ErrCodeServer, "one or more checks failed").
			WithSuggestion("Run 'oflow config view' to inspect the configuration")
	}
	return nil
}
