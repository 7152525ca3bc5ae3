package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/krisalay/forecast-cache/config"
)

func checkConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then print the effective values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Credentials stay out of the terminal.
			if cfg.DatabaseURL != "" {
				cfg.DatabaseURL = "<set>"
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (optional)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "forecast-cache version: %s\n", version)
		},
	}
}
