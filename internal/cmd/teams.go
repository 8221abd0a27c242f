package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/tui"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List, create, join, leave and select teams",
	Long: `Manage the teams you belong to.

Examples:
  # List your teams
  oflow teams list

  # Create a team and select it
  oflow teams create --name "Mei's Bakery"

  # Join a team with an invite code
  oflow teams join AB12CD

  # Select the team the app opens on
  oflow teams use <team-id>
`,
}

var teamsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your teams",
	RunE:  runTeamsList,
}

var teamsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a team and select it",
	RunE:  runTeamsCreate,
}

var teamsJoinCmd = &cobra.Command{
	Use:   "join [invite-code]",
	Short: "Join a team with an invite code",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTeamsJoin,
}

var teamsLeaveCmd = &cobra.Command{
	Use:   "leave [team-id]",
	Short: "Leave a team",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTeamsLeave,
}

var teamsUseCmd = &cobra.Command{
	Use:   "use [team-id]",
	Short: "Select the current team",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTeamsUse,
}

func init() {
	teamsListCmd.Flags().Bool("json", false, "output teams as JSON")
	teamsCreateCmd.Flags().String("name", "", "team name")
	teamsCreateCmd.Flags().String("line-channel-name", "", "name of the LINE official account to connect")
	teamsLeaveCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	teamsCmd.AddCommand(teamsListCmd)
	teamsCmd.AddCommand(teamsCreateCmd)
	teamsCmd.AddCommand(teamsJoinCmd)
	teamsCmd.AddCommand(teamsLeaveCmd)
	teamsCmd.AddCommand(teamsUseCmd)

	rootCmd.AddCommand(teamsCmd)
}

func runTeamsList(cmd *cobra.Command, args []string) error {
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
	list, err := a.ListTeams(ctx)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), list)
	}

	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "You are not a member of any team yet.")
		fmt.Fprintln(cmd.OutOrStdout(), "Create one with 'oflow teams create' or join with 'oflow teams join <code>'.")
		return nil
	}

	current := a.Identity().CurrentTeamID
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tROLE\tMEMBERS\tLINE CHANNEL")
	for _, m := range list {
		marker := ""
		if m.TeamID == current {
			marker = "*"
		}
		channel := "-"
		if m.Complete() {
			channel = m.LineChannelName
			if channel == "" {
				channel = *m.LineChannelID
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", marker, m.TeamID, m.TeamName, m.Role, m.MemberCount, channel)
	}
	return w.Flush()
}

func runTeamsCreate(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	channel, _ := cmd.Flags().GetString("line-channel-name")

	if name == "" && tui.ShouldPrompt() {
		var err error
		name, err = tui.PromptForString(tui.Prompt{
			Message:     "Team name",
			Placeholder: "Mei's Bakery",
			Required:    true,
		})
		if err != nil {
			return err
		}
	}
	if name == "" {
		return errors.New(errors.ErrCodeTeamInvalidInput, "team name is required").
			WithSuggestion("Pass --name")
	}

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
	m, err := a.CreateTeam(ctx, teams.CreateRequest{Name: name, LineChannelName: channel})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created and selected %s\n", describeTeam(m))
	return nil
}

func runTeamsJoin(cmd *cobra.Command, args []string) error {
	code := ""
	if len(args) > 0 {
		code = args[0]
	}
	if code == "" && tui.ShouldPrompt() {
		var err error
		code, err = tui.PromptForString(tui.Prompt{Message: "Invite code", Required: true})
		if err != nil {
			return err
		}
	}
	if code == "" {
		return errors.New(errors.ErrCodeTeamInvalidInput, "invite code is required").
			WithSuggestion("Usage: oflow teams join <invite-code>")
	}

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
	m, err := a.JoinTeam(ctx, code)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Joined and selected %s\n", describeTeam(m))
	return nil
}

func runTeamsLeave(cmd *cobra.Command, args []string) error {
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
	teamID, err := pickTeam(cmd, args, a.ListTeams, "Leave which team?")
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && tui.ShouldPrompt() {
		ok, err := tui.PromptForConfirmation(fmt.Sprintf("Leave team %s?", teamID), false)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if err := a.LeaveTeam(ctx, teamID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Left team %s\n", teamID)
	return nil
}

func runTeamsUse(cmd *cobra.Command, args []string) error {
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
	teamID, err := pickTeam(cmd, args, a.ListTeams, "Select a team")
	if err != nil {
		return err
	}

	m, err := a.UseTeam(ctx, teamID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", describeTeam(m))
	if !m.Complete() {
		fmt.Fprintln(cmd.OutOrStdout(), "This team has no LINE official account connected yet.")
	}
	return nil
}

// pickTeam returns the team id argument, or prompts for one from the
// caller's memberships.
func pickTeam(cmd *cobra.Command, args []string, list func(context.Context) ([]teams.Membership, error), title string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if !tui.ShouldPrompt() {
		return "", errors.New(errors.ErrCodeTeamNoneSelected, "team id is required").
			WithSuggestion("Run 'oflow teams list' to see your team ids")
	}
	memberships, err := list(cmd.Context())
	if err != nil {
		return "", err
	}
	return tui.PromptForTeam(title, memberships)
}

func describeTeam(m *teams.Membership) string {
	if m == nil {
		return "team"
	}
	return fmt.Sprintf("%s (%s)", m.TeamName, m.TeamID)
}
