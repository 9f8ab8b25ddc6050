package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wagiedev/cwmanager"
)

// registrationInfo is the printable form of one registration.
type registrationInfo struct {
	Name        string            `json:"name" yaml:"name"`
	Kind        string            `json:"kind" yaml:"kind"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	MIMEType    string            `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	Params      []cwmanager.Param `json:"params,omitempty" yaml:"params,omitempty"`
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools and resources",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}

	cmd.Flags().StringP("output", "o", "yaml", "Output format: yaml | json")

	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "yaml" && output != "json" {
		return fmt.Errorf("unsupported output format %q", output)
	}

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv, err := cwmanager.New(cwmanager.WithConfig(cfg), cwmanager.WithLogger(log))
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	regs := append(srv.Tools(), srv.Resources()...)

	infos := make([]registrationInfo, 0, len(regs))
	for _, reg := range regs {
		infos = append(infos, registrationInfo{
			Name:        reg.Name,
			Kind:        reg.Kind.String(),
			Description: reg.Description,
			MIMEType:    reg.MIMEType,
			Params:      reg.Params,
		})
	}

	out := cmd.OutOrStdout()

	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(infos)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(infos); err != nil {
		return err
	}

	return enc.Close()
}
