package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/repo")
	if cfg.Out != filepath.Join("/repo", ".generated", "webpipe_self_opt.sqlite3") {
		t.Errorf("out = %q", cfg.Out)
	}
	if cfg.Chatvault.MaxKeys != 50000 || cfg.Chatvault.Top != 5000 {
		t.Errorf("chatvault limits = %d/%d", cfg.Chatvault.MaxKeys, cfg.Chatvault.Top)
	}
	if len(cfg.Chatvault.IncludePrefixes) != 4 {
		t.Errorf("include prefixes = %v", cfg.Chatvault.IncludePrefixes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.WebpipeRoot != root {
		t.Errorf("webpipeRoot = %q, want %q", cfg.WebpipeRoot, root)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".webpipe")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `{
  "out": "/tmp/custom.sqlite3",
  "chatvault": {"maxKeys": 100, "includePrefixes": ["web_"]},
  "reports": {"vlmOut": "/tmp/vlm.json", "srcSubstring": "live"},
  "logging": {"format": "json", "level": "debug"}
}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Out != "/tmp/custom.sqlite3" {
		t.Errorf("out = %q", cfg.Out)
	}
	if cfg.Chatvault.MaxKeys != 100 {
		t.Errorf("maxKeys = %d, want 100 (file overrides default)", cfg.Chatvault.MaxKeys)
	}
	if cfg.Chatvault.Top != 5000 {
		t.Errorf("top = %d, want default 5000", cfg.Chatvault.Top)
	}
	if len(cfg.Chatvault.IncludePrefixes) != 1 {
		t.Errorf("includePrefixes = %v", cfg.Chatvault.IncludePrefixes)
	}
	if cfg.Reports.VLMOut != "/tmp/vlm.json" || cfg.Reports.SrcSubstring != "live" {
		t.Errorf("reports = %+v", cfg.Reports)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging format = %q", cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty out", func(c *Config) { c.Out = "" }, true},
		{"empty root", func(c *Config) { c.WebpipeRoot = "" }, true},
		{"zero max keys", func(c *Config) { c.Chatvault.MaxKeys = 0 }, true},
		{"negative top", func(c *Config) { c.Chatvault.Top = -1 }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("/repo")
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
