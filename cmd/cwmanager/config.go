package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wagiedev/cwmanager"
	"github.com/wagiedev/cwmanager/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	})

	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultConfigFilename
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := cwmanager.NewConfig().SaveToFile(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)

	return nil
}
