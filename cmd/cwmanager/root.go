package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wagiedev/cwmanager"
	"github.com/wagiedev/cwmanager/internal/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cwmanager",
		Short: "MCP server exposing tools and resources over stdio",
		Long: "cwmanager serves registered tools and URI-template resources to MCP clients\n" +
			"over newline-delimited JSON-RPC on stdin/stdout. Logs go to stderr.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runServe,
	}

	cmd.Version = cwmanager.Version

	cmd.PersistentFlags().String("config", "", "Path to config file (default: search for "+config.DefaultConfigFilename+")")
	cmd.PersistentFlags().String("log-level", "", "Override the log level: debug | info | warn | error")
	cmd.PersistentFlags().String("log-format", "", "Override the log format: text | json")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newToolsCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio (the default command)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv, err := cwmanager.New(
		cwmanager.WithConfig(cfg),
		cwmanager.WithLogger(log),
		cwmanager.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
	)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	return srv.Run(cmd.Context())
}

// loadConfig reads the config file and environment, applies flag overrides,
// and builds the stderr logger.
func loadConfig(cmd *cobra.Command) (*cwmanager.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	// Config loading is logged at the override level when one is given.
	bootLevel := slog.LevelWarn
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		if parsed, err := config.ParseLevel(lvl); err == nil {
			bootLevel = parsed
		}
	}

	cfg, err := config.Load(cmd.Context(), path, cwmanager.NewLogger(bootLevel, "text", cmd.ErrOrStderr()))
	if err != nil {
		return nil, nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	return cfg, cwmanager.NewLogger(level, cfg.Logging.Format, cmd.ErrOrStderr()), nil
}
