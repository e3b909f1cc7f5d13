// Package config holds the export configuration. Defaults cover the
// standard layout; a .webpipe/config.json under the webpipe root can
// override any of it, and command-line flags win over both.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete export configuration.
type Config struct {
	// Out is the SQLite store path. The store is rebuilt from scratch
	// on every export.
	Out string `json:"out" mapstructure:"out"`

	// WebpipeRoot is the repo tree scanned for transcripts and
	// .generated artifacts.
	WebpipeRoot string `json:"webpipeRoot" mapstructure:"webpipeRoot"`

	Chatvault ChatvaultConfig `json:"chatvault" mapstructure:"chatvault"`
	Reports   ReportsConfig   `json:"reports" mapstructure:"reports"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// ChatvaultConfig controls the Cursor telemetry aggregation subprocess.
type ChatvaultConfig struct {
	Bin               string   `json:"bin" mapstructure:"bin"`
	MaxKeys           int64    `json:"maxKeys" mapstructure:"maxKeys"`
	Top               int64    `json:"top" mapstructure:"top"`
	IncludePrefixes   []string `json:"includePrefixes" mapstructure:"includePrefixes"`
	ExcludeSubstrings []string `json:"excludeSubstrings" mapstructure:"excludeSubstrings"`
}

// ReportsConfig holds optional report output paths. An empty path means
// the report is not written.
type ReportsConfig struct {
	VLMOut          string `json:"vlmOut" mapstructure:"vlmOut"`
	CriticOut       string `json:"criticOut" mapstructure:"criticOut"`
	JudgeMusingsOut string `json:"judgeMusingsOut" mapstructure:"judgeMusingsOut"`
	JudgeContextOut string `json:"judgeContextOut" mapstructure:"judgeContextOut"`

	// SrcSubstring restricts transcript-event reports to source paths
	// containing this substring.
	SrcSubstring string `json:"srcSubstring" mapstructure:"srcSubstring"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration for a webpipe root.
func DefaultConfig(root string) *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return &Config{
		Out:         filepath.Join(root, ".generated", "webpipe_self_opt.sqlite3"),
		WebpipeRoot: root,
		Chatvault: ChatvaultConfig{
			Bin:               filepath.Join(home, ".cargo", "bin", "chatvault"),
			MaxKeys:           50000,
			Top:               5000,
			IncludePrefixes:   []string{"web_", "tavily", "firecrawl", "brave"},
			ExcludeSubstrings: []string{"smoke", "live_", "_opt_in"},
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .webpipe/config.json under the
// webpipe root, falling back to defaults when no file exists.
func LoadConfig(root string) (*Config, error) {
	defaults := DefaultConfig(root)

	v := viper.New()
	v.SetDefault("out", defaults.Out)
	v.SetDefault("webpipeRoot", defaults.WebpipeRoot)
	v.SetDefault("chatvault.bin", defaults.Chatvault.Bin)
	v.SetDefault("chatvault.maxKeys", defaults.Chatvault.MaxKeys)
	v.SetDefault("chatvault.top", defaults.Chatvault.Top)
	v.SetDefault("chatvault.includePrefixes", defaults.Chatvault.IncludePrefixes)
	v.SetDefault("chatvault.excludeSubstrings", defaults.Chatvault.ExcludeSubstrings)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".webpipe"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Out == "" {
		return fmt.Errorf("out path must not be empty")
	}
	if c.WebpipeRoot == "" {
		return fmt.Errorf("webpipe root must not be empty")
	}
	if c.Chatvault.MaxKeys <= 0 {
		return fmt.Errorf("chatvault maxKeys must be positive, got %d", c.Chatvault.MaxKeys)
	}
	if c.Chatvault.Top <= 0 {
		return fmt.Errorf("chatvault top must be positive, got %d", c.Chatvault.Top)
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	return nil
}
