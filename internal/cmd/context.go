package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/app"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/config"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/log"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/version"
)

// CommandContext holds the persistent flags every command reads.
// Commands build it in RunE instead of reading package globals:
//
//	func runCommand(cmd *cobra.Command, args []string) error {
//		cc, err := NewCommandContext(cmd)
//		if err != nil {
//			return err
//		}
//		a, done, err := cc.App(cmd, false)
//		...
//	}
type CommandContext struct {
	ConfigPath  string
	LogLevel    log.Level
	LogLevelSet bool
	Ephemeral   bool
	MetricsAddr string
}

// NewCommandContext extracts the persistent flags from cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	ephemeral, err := cmd.Flags().GetBool("ephemeral")
	if err != nil {
		return nil, err
	}

	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return nil, err
	}

	levelFlag := cmd.Flags().Lookup("log-level")
	if levelFlag == nil {
		return nil, fmt.Errorf("flag accessed but not defined: log-level")
	}

	return &CommandContext{
		ConfigPath:  configPath,
		LogLevel:    log.ParseLevel(levelFlag.Value.String()),
		LogLevelSet: levelFlag.Changed,
		Ephemeral:   ephemeral,
		MetricsAddr: metricsAddr,
	}, nil
}

// LoadConfig reads the configuration file and applies flag overrides.
func (c *CommandContext) LoadConfig() (*config.Config, error) {
	path := c.ConfigPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.Ephemeral {
		cfg.Storage.Backend = config.StorageMemory
	}
	if c.MetricsAddr != "" {
		cfg.Metrics.Addr = c.MetricsAddr
	}
	return cfg, nil
}

// Logger builds the process logger. The TUI owns the terminal, so toFile
// sends records to the configured log file instead of stderr.
func (c *CommandContext) Logger(cfg *config.Config, toFile bool) (*log.Logger, io.Closer, error) {
	level := log.ParseLevel(cfg.Logging.Level)
	if c.LogLevelSet {
		level = c.LogLevel
	}

	out := log.OutputStderr()
	if toFile && cfg.Logging.File != "" {
		var err error
		if out, err = log.OutputFile(cfg.Logging.File); err != nil {
			return nil, nil, err
		}
	}

	logger := log.New(log.Config{
		Level:          level,
		Format:         log.ParseFormat(cfg.Logging.Format),
		Output:         out,
		ServiceVersion: version.Version,
	})
	log.SetDefault(logger)
	return logger, out, nil
}

// App loads configuration, builds the logger and assembles the client.
// done releases the storage backend and the log file.
func (c *CommandContext) App(cmd *cobra.Command, tuiMode bool) (*app.App, func(), error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger, logOut, err := c.Logger(cfg, tuiMode)
	if err != nil {
		return nil, nil, err
	}

	opts := app.Options{Config: cfg, Logger: logger}
	if !tuiMode {
		stderr := cmd.ErrOrStderr()
		opts.Notice = func(authURL, cancelURL string) {
			fmt.Fprintln(stderr, "Opening your browser to sign in.")
			fmt.Fprintf(stderr, "If it does not open, visit:\n  %s\n", authURL)
			fmt.Fprintf(stderr, "To cancel, press Ctrl+C or open %s\n", cancelURL)
		}
	}

	a, err := app.New(opts)
	if err != nil {
		_ = logOut.Close()
		return nil, nil, err
	}

	done := func() {
		if err := a.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
		_ = logOut.Close()
	}
	return a, done, nil
}
