package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("site_url: https://example.com/\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Cache.Backend != BackendSQLite || cfg.Cache.TTL != 168*time.Hour {
		t.Fatalf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Images.Timeout != 5*time.Second || cfg.Images.Concurrency != 8 {
		t.Fatalf("unexpected image defaults: %+v", cfg.Images)
	}
	if cfg.Charset != "UTF-8" || cfg.Listen != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SiteBase() != "https://example.com" {
		t.Fatalf("unexpected site base %q", cfg.SiteBase())
	}
}

func TestParseFull(t *testing.T) {
	raw := `
site_url: https://news.example
db_path: /tmp/ia.db
charset: ISO-8859-1
log_level: debug
log_format: json
rules_file: /etc/ia/rules.control
version: 2.1.0-1
cache:
  backend: fs
  dir: /var/cache/ia
  ttl: 2h
images:
  check_reachability: true
  timeout: 3s
  concurrency: 4
  requests_per_second: 20
  likes: true
shortcodes:
  exempt: [gallery]
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Cache.TTL != 2*time.Hour || cfg.Cache.Dir != "/var/cache/ia" {
		t.Fatalf("unexpected cache config: %+v", cfg.Cache)
	}
	if !cfg.Images.CheckReachability || cfg.Images.Timeout != 3*time.Second || cfg.Images.Burst != 20 {
		t.Fatalf("unexpected image config: %+v", cfg.Images)
	}
	if len(cfg.Shortcodes.Exempt) != 1 || cfg.Shortcodes.Exempt[0] != "gallery" {
		t.Fatalf("unexpected exempt list: %v", cfg.Shortcodes.Exempt)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"charset: UTF-8\n", "site_url is required"},
		{"site_url: /relative\n", "absolute URL"},
		{"site_url: https://x\ncache:\n  backend: redis\n", "cache.backend"},
		{"site_url: https://x\ncache:\n  backend: fs\n", "cache.dir"},
		{"site_url: https://x\nversion: \"not a version!\"\n", "config version"},
		{"site_url: https://x\nlog_level: loud\n", "log_level"},
		{"site_url: https://x\nunknown_key: 1\n", "parse config"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.raw))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("Parse(%q): expected error containing %q, got %v", tt.raw, tt.want, err)
		}
	}
}

func TestDefaultPathFromEnv(t *testing.T) {
	t.Setenv("INSTANT_ARTICLES_CONFIG", "/tmp/custom.yaml")
	if got := DefaultPath(); got != "/tmp/custom.yaml" {
		t.Fatalf("expected env override, got %s", got)
	}
	t.Setenv("INSTANT_ARTICLES_CONFIG", "")
	if got := DefaultPath(); got != defaultConfigPath {
		t.Fatalf("expected default path, got %s", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("site_url: https://example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
