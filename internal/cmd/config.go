package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View oflow configuration",
	Long: `Inspect the configuration stored at ~/.oflow/config.yaml.

Environment variables override the file:
  OFLOW_API_URL, OFLOW_ANON_KEY, OFLOW_LINE_CHANNEL_ID,
  OFLOW_APPLE_CLIENT_ID, OFLOW_STORAGE, OFLOW_REDIS_ADDR, OFLOW_LOG_LEVEL

Examples:
  # View the effective configuration
  oflow config view

  # Show configuration file path
  oflow config path
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Long:  `Display the configuration after defaults, the file and environment overrides are applied.`,
	RunE:  runConfigView,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return err
	}

	shown := redact(*cfg)
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// redact masks secrets before printing.
func redact(cfg config.Config) config.Config {
	if cfg.API.AnonKey != "" {
		cfg.API.AnonKey = mask(cfg.API.AnonKey)
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "********"
	}
	return cfg
}

func mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
