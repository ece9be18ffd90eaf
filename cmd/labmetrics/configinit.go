package main

import (
	"fmt"
	"os"

	"github.com/genolytics/labmetrics/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configInitPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&configInitPath, "path", "labmetrics.yaml",
		"Where to write the configuration file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configInitPath); err == nil {
		return fmt.Errorf("refusing to overwrite existing file %q", configInitPath)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(configInitPath, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	log.WithField("path", configInitPath).Info("Configuration file written")

	return nil
}
