package main

import (
	"fmt"

	"github.com/genolytics/labmetrics/pkg/config"
	"github.com/genolytics/labmetrics/pkg/upload"
	"github.com/spf13/cobra"
)

var (
	publishMethod string
	publishDir    string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish report artifacts to remote storage",
	Long:  `Upload the reports directory to S3-compatible storage using the config file settings.`,
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishMethod, "method", "s3",
		"Upload method (currently only \"s3\")")
	publishCmd.Flags().StringVar(&publishDir, "dir", "",
		"Directory to upload (defaults to the configured reports directory)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	if publishMethod != "s3" {
		return fmt.Errorf("unsupported method %q (only \"s3\" is supported)", publishMethod)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Upload == nil || !cfg.Upload.Enabled {
		return fmt.Errorf("S3 upload is not configured or not enabled in config")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	uploader, err := upload.NewS3Uploader(log, cfg.Upload)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	ctx := cmd.Context()

	if err := uploader.Preflight(ctx); err != nil {
		return fmt.Errorf("storage preflight: %w", err)
	}

	dir := cfg.Reports.Dir
	if publishDir != "" {
		dir = publishDir
	}

	log.WithField("dir", dir).Info("Uploading reports")

	if err := uploader.UploadDir(ctx, dir); err != nil {
		return fmt.Errorf("uploading reports: %w", err)
	}

	log.Info("Upload completed successfully")

	return nil
}
