package cmd

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/oauth"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/route"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/tui"
)

var loginCmd = &cobra.Command{
	Use:   "login <line|apple>",
	Short: "Sign in with LINE or Apple",
	Long: `Sign in to OFlow through the system browser.

The browser redirects back to a local listener on 127.0.0.1. Press Ctrl+C
to abandon the login; nothing is stored unless it completes.

Examples:
  oflow login line
  oflow login apple`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"line", "apple"},
	RunE:      runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored identity",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who is logged in and where the app would open",
	Long: `Restore the stored identity, reconcile it with the backend session and
print the screen the app would open on: login, team_select, channel_setup
or main.`,
	RunE: runStatus,
}

var linkCmd = &cobra.Command{
	Use:   "link <url>",
	Short: "Complete a login from a callback or deep link URL",
	Long: `Ingest an oflow:// deep link or universal link produced by the backend
after a LINE login, for example when the browser hands the callback to a
different device.

Example:
  oflow link 'oflow://auth/callback?access_token=...&refresh_token=...'`,
	Args: cobra.ExactArgs(1),
	RunE: runLink,
}

func init() {
	logoutCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	statusCmd.Flags().Bool("json", false, "output status as JSON")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(linkCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	a, done, err := cc.App(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	a.Hydrate(ctx)

	if err := a.Login(ctx, args[0]); err != nil {
		if stderrors.Is(err, oauth.ErrCancelled) {
			fmt.Fprintln(cmd.OutOrStdout(), "Login cancelled.")
			return nil
		}
		return err
	}

	id := a.Identity()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logged in as %s\n", displayName(id.DisplayName, id.UserID))

	state, err := a.RouteState(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Next: %s\n", nextStep(state))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	a, done, err := cc.App(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	id := a.Hydrate(ctx)
	if !id.LoggedIn {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
		return nil
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && tui.ShouldPrompt() {
		ok, err := tui.PromptForConfirmation(fmt.Sprintf("Log out %s?", displayName(id.DisplayName, id.UserID)), true)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if err := a.Logout(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: backend sign out failed: %v\n", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}

// statusReport is the --json shape of 'oflow status'.
type statusReport struct {
	LoggedIn    bool              `json:"logged_in"`
	UserID      string            `json:"user_id,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	TeamID      string            `json:"team_id,omitempty"`
	TeamName    string            `json:"team_name,omitempty"`
	State       string            `json:"state"`
	Destination route.Destination `json:"destination"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	a, done, err := cc.App(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	state, err := a.RouteState(cmd.Context())
	if err != nil {
		return err
	}

	id := a.Identity()
	report := statusReport{
		LoggedIn:    id.LoggedIn,
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		TeamID:      state.TeamID,
		TeamName:    state.TeamName,
		State:       state.Tag.String(),
		Destination: state.Destination(),
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	if !report.LoggedIn {
		fmt.Fprintln(out, "Not logged in.")
		fmt.Fprintf(out, "Next: %s\n", nextStep(state))
		return nil
	}
	fmt.Fprintf(out, "User:   %s\n", displayName(report.DisplayName, report.UserID))
	if report.TeamID != "" {
		team := report.TeamID
		if report.TeamName != "" {
			team = fmt.Sprintf("%s (%s)", report.TeamName, report.TeamID)
		}
		fmt.Fprintf(out, "Team:   %s\n", team)
	}
	fmt.Fprintf(out, "Screen: %s\n", report.Destination)
	fmt.Fprintf(out, "Next:   %s\n", nextStep(state))
	return nil
}

func runLink(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	a, done, err := cc.App(cmd, false)
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	a.Hydrate(ctx)
	if err := a.Link(ctx, args[0]); err != nil {
		return err
	}

	id := a.Identity()
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", displayName(id.DisplayName, id.UserID))
	return nil
}

func displayName(name, userID string) string {
	if name != "" {
		return name
	}
	if userID != "" {
		return userID
	}
	return "unknown user"
}

func nextStep(s route.State) string {
	switch s.Tag {
	case route.TagNoTeam:
		return "pick a team with 'oflow teams use' or create one with 'oflow teams create'"
	case route.TagIncomplete:
		return fmt.Sprintf("connect a LINE official account to %s in the OFlow app", s.TeamName)
	case route.TagComplete:
		return "run 'oflow app'"
	}
	return "run 'oflow login line'"
}
