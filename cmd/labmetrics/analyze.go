package main

import (
	"fmt"
	"os"
	"time"

	"github.com/genolytics/labmetrics/pkg/config"
	"github.com/genolytics/labmetrics/pkg/dataset"
	"github.com/genolytics/labmetrics/pkg/fsutil"
	"github.com/genolytics/labmetrics/pkg/report"
	"github.com/spf13/cobra"
)

var (
	analyzeOutputDir        string
	analyzeOwner            string
	analyzeIncludeMissingQC bool
	analyzeSampleType       string
	analyzeNoTables         bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the billing and health analysis pipeline",
	Long: `Load the CSV exports, classify runs into billing environments,
compute billable/usage figures and health metrics, and write the report
artifacts to the reports directory.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeOutputDir, "output", "",
		"Reports output directory (overrides config)")
	analyzeCmd.Flags().StringVar(&analyzeOwner, "owner", "",
		"UID:GID applied to generated files (overrides config)")
	analyzeCmd.Flags().BoolVar(&analyzeIncludeMissingQC, "include-missing-qc", false,
		"Count runs with a missing QC verdict as billable")
	analyzeCmd.Flags().StringVar(&analyzeSampleType, "sample-type", "",
		"Add a per-workflow drilldown for this sample type")
	analyzeCmd.Flags().BoolVar(&analyzeNoTables, "no-tables", false,
		"Skip printing summary tables to stdout")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ds, err := dataset.Load(log, dataset.Paths{
		Checks:    cfg.Data.ChecksFile,
		Workflows: cfg.Data.WorkflowsFile,
		Runs:      cfg.Data.RunsFile,
	})
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	opts := report.Options{
		IncludeMissingQC:    cfg.Billing.IncludeMissingQC,
		BreakdownSampleType: cfg.Billing.BreakdownSampleType,
		Now:                 time.Now().UTC(),
	}

	if cmd.Flags().Changed("include-missing-qc") {
		opts.IncludeMissingQC = analyzeIncludeMissingQC
	}

	if analyzeSampleType != "" {
		opts.BreakdownSampleType = analyzeSampleType
	}

	r := report.Build(log, ds, opts)

	outputDir := cfg.Reports.Dir
	if analyzeOutputDir != "" {
		outputDir = analyzeOutputDir
	}

	ownerSpec := cfg.Reports.Owner
	if analyzeOwner != "" {
		ownerSpec = analyzeOwner
	}

	owner, err := fsutil.ParseOwner(ownerSpec)
	if err != nil {
		return fmt.Errorf("parsing owner: %w", err)
	}

	jsonPath, err := report.Write(log, r, outputDir, owner)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if !analyzeNoTables {
		report.RenderSensitivityTable(os.Stdout, r)

		if r.Health != nil {
			report.RenderHealthTable(os.Stdout, r.Health)
			report.RenderMonthlyUsageTable(os.Stdout, r.Health)
		}
	}

	log.WithField("report", jsonPath).Info("Analysis completed")

	return nil
}
