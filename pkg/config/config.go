package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"stegoscope/pkg/analyzer"
)

// Config is the complete scanner configuration.
type Config struct {
	// Workers bounds concurrent analyzer invocations per submission.
	Workers int `yaml:"workers"`
	// DefaultTimeout bounds one analyzer invocation, e.g. "30s".
	DefaultTimeout string `yaml:"default_timeout"`
	// Deep enables the deep-only analyzers.
	Deep bool `yaml:"deep"`
	// ArtifactDir retains submission workspaces when set.
	ArtifactDir string `yaml:"artifact_dir,omitempty"`

	Server ServerConfig `yaml:"server"`

	// Analyzers overrides individual tools by name.
	Analyzers map[string]ToolOverride `yaml:"analyzers,omitempty"`
}

// ServerConfig configures the HTTP submission interface.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// ToolOverride adjusts one analyzer descriptor.
type ToolOverride struct {
	// Path replaces the tool binary (absolute path or alternative name).
	Path string `yaml:"path,omitempty"`
	// Timeout replaces the invocation bound, e.g. "2m".
	Timeout string `yaml:"timeout,omitempty"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Workers:        4,
		DefaultTimeout: "30s",
		Server: ServerConfig{
			Listen:      ":8640",
			MaxUploadMB: 100,
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges and normalizes empty values to defaults.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.DefaultTimeout != "" {
		if _, err := time.ParseDuration(c.DefaultTimeout); err != nil {
			return fmt.Errorf("default_timeout: %w", err)
		}
	}
	for name, o := range c.Analyzers {
		if o.Timeout == "" {
			continue
		}
		if _, err := time.ParseDuration(o.Timeout); err != nil {
			return fmt.Errorf("analyzers.%s.timeout: %w", name, err)
		}
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 100
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8640"
	}
	return nil
}

// GetDefaultTimeout returns the parsed invocation bound.
func (c *Config) GetDefaultTimeout() time.Duration {
	d, err := time.ParseDuration(c.DefaultTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// BuildRegistry applies the tool overrides to the stock battery.
func (c *Config) BuildRegistry() *analyzer.Registry {
	descriptors := analyzer.Default().Registered(true)
	for i := range descriptors {
		o, ok := c.Analyzers[descriptors[i].Name]
		if !ok {
			continue
		}
		if o.Path != "" && len(descriptors[i].Argv) > 0 {
			argv := append([]string(nil), descriptors[i].Argv...)
			argv[0] = o.Path
			descriptors[i].Argv = argv
		}
		if o.Timeout != "" {
			if d, err := time.ParseDuration(o.Timeout); err == nil {
				descriptors[i].Timeout = d
			}
		}
	}
	return analyzer.NewRegistry(descriptors...)
}
