package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultReportsDir is the default directory for report artifacts.
	DefaultReportsDir = "./reports"
)

// Config is the root configuration for labmetrics.
type Config struct {
	Global  GlobalConfig    `yaml:"global" mapstructure:"global"`
	Data    DataConfig      `yaml:"data" mapstructure:"data"`
	Billing BillingConfig   `yaml:"billing" mapstructure:"billing"`
	Reports ReportsConfig   `yaml:"reports" mapstructure:"reports"`
	API     *APIConfig      `yaml:"api,omitempty" mapstructure:"api"`
	Upload  *S3UploadConfig `yaml:"upload,omitempty" mapstructure:"upload"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DataConfig locates the three CSV exports the pipeline consumes.
type DataConfig struct {
	ChecksFile    string `yaml:"checks_file" mapstructure:"checks_file"`
	WorkflowsFile string `yaml:"workflows_file" mapstructure:"workflows_file"`
	RunsFile      string `yaml:"runs_file" mapstructure:"runs_file"`
}

// BillingConfig contains billing policy settings.
type BillingConfig struct {
	// IncludeMissingQC switches the headline billable counts to the
	// inclusive policy, counting runs with no QC verdict as billable.
	IncludeMissingQC bool `yaml:"include_missing_qc" mapstructure:"include_missing_qc"`

	// BreakdownSampleType adds a per-workflow drilldown for this sample
	// type to generated reports when set.
	BreakdownSampleType string `yaml:"breakdown_sample_type,omitempty" mapstructure:"breakdown_sample_type"`
}

// ReportsConfig controls report artifact output.
type ReportsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Owner is an optional UID:GID applied to generated files.
	Owner string `yaml:"owner,omitempty" mapstructure:"owner"`
}

// S3UploadConfig configures report publishing to S3-compatible storage.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style,omitempty" mapstructure:"force_path_style"`
}

// Load reads a configuration file and applies environment overrides.
// Any key can be overridden through LABMETRICS_-prefixed variables
// with underscores for nesting, e.g. LABMETRICS_GLOBAL_LOG_LEVEL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LABMETRICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration populated with defaults only,
// used by "config init" to emit a starting file.
func Default() *Config {
	cfg := &Config{
		Data: DataConfig{
			ChecksFile:    "./data/checks.csv",
			WorkflowsFile: "./data/workflows.csv",
			RunsFile:      "./data/runs.csv",
		},
	}

	cfg.applyDefaults()

	return cfg
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Reports.Dir == "" {
		c.Reports.Dir = DefaultReportsDir
	}

	if c.API != nil {
		c.API.applyDefaults()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Data.ChecksFile == "" {
		return fmt.Errorf("data.checks_file is required")
	}

	if c.Data.WorkflowsFile == "" {
		return fmt.Errorf("data.workflows_file is required")
	}

	if c.Data.RunsFile == "" {
		return fmt.Errorf("data.runs_file is required")
	}

	if c.Reports.Dir != "" {
		dir := filepath.Dir(c.Reports.Dir)
		if dir != "." && dir != ".." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("reports directory parent %q does not exist", dir)
			}
		}
	}

	if c.API != nil {
		if err := c.API.Validate(); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	if c.Upload != nil && c.Upload.Enabled {
		if c.Upload.Bucket == "" {
			return fmt.Errorf("upload.bucket is required when upload is enabled")
		}
	}

	return nil
}
