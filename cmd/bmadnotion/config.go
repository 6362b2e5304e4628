package main

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		GroupID: "setup",
		Short:   "Inspect the project configuration",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, BMAD path discovery and
BMADNOTION_* environment overrides are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := a.loadProject()
			if err != nil {
				return err
			}

			switch format {
			case "yaml":
				enc := yaml.NewEncoder(a.stdout)
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return fmt.Errorf("failed to encode yaml: %w", err)
				}
				return enc.Close()
			case "toml":
				if err := toml.NewEncoder(a.stdout).Encode(cfg); err != nil {
					return fmt.Errorf("failed to encode toml: %w", err)
				}
				return nil
			case "json":
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode json: %w", err)
				}
				_, err = fmt.Fprintln(a.stdout, string(data))
				return err
			default:
				return fmt.Errorf("unknown format %q (want yaml, toml or json)", format)
			}
		},
	}
	show.Flags().StringVar(&format, "format", "yaml", "Output format: yaml, toml or json")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _, err := a.loadProject()
			if err != nil {
				return err
			}
			if a.configPath != "" {
				fmt.Fprintln(a.stdout, a.configPath)
				return nil
			}
			fmt.Fprintln(a.stdout, root.ConfigPath())
			return nil
		},
	}

	cmd.AddCommand(show, path)
	return cmd
}
