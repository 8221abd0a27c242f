package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

// Prompt represents a simple interactive prompt configuration
type Prompt struct {
	Message     string
	Default     string
	Placeholder string
	Required    bool
}

// PromptForString displays an interactive prompt and returns the user's input
func PromptForString(p Prompt) (string, error) {
	value := p.Default

	input := huh.NewInput().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Value(&value)

	if p.Required {
		input = input.Validate(func(s string) error {
			if s == "" {
				return fmt.Errorf("value is required")
			}
			return nil
		})
	}

	if err := runField(input); err != nil {
		return "", err
	}
	return value, nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := runField(confirm); err != nil {
		return false, err
	}
	return confirmed, nil
}

// PromptForTeam lets the user pick one membership and returns its team id.
func PromptForTeam(message string, memberships []teams.Membership) (string, error) {
	if len(memberships) == 0 {
		return "", fmt.Errorf("no teams to choose from")
	}

	options := make([]huh.Option[string], len(memberships))
	for i, m := range memberships {
		options[i] = huh.NewOption(TeamLabel(m), m.TeamID)
	}

	var selected string
	field := huh.NewSelect[string]().
		Title(message).
		Options(options...).
		Value(&selected)

	if err := runField(field); err != nil {
		return "", err
	}
	return selected, nil
}

func runField(f huh.Field) error {
	if err := huh.NewForm(huh.NewGroup(f)).WithTheme(huh.ThemeCharm()).Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// TeamLabel is the one-line description of a membership used in lists.
func TeamLabel(m teams.Membership) string {
	label := fmt.Sprintf("%s (%s, %d members)", m.TeamName, m.Role, m.MemberCount)
	if !m.Complete() {
		label += " - LINE channel not connected"
	}
	return label
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt reports whether commands may ask questions. Prompts are off
// in CI, with OFLOW_NO_PROMPT set, or when stdin is not a terminal.
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"OFLOW_NO_PROMPT",
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
