package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"pault.ag/go/debian/version"

	"github.com/wpnative/instant-articles/internal/logging"
)

const defaultConfigPath = "/etc/instant-articles/config.yaml"

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendFS     = "fs"
	BackendMemory = "memory"
)

// Config is the service configuration file.
type Config struct {
	SiteURL    string           `yaml:"site_url"`
	DBPath     string           `yaml:"db_path"`
	Listen     string           `yaml:"listen"`
	Charset    string           `yaml:"charset"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"`
	RulesFile  string           `yaml:"rules_file"`
	Version    string           `yaml:"version"`
	Cache      CacheConfig      `yaml:"cache"`
	Images     ImagesConfig     `yaml:"images"`
	Shortcodes ShortcodesConfig `yaml:"shortcodes"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
}

type ImagesConfig struct {
	CheckReachability bool          `yaml:"check_reachability"`
	Timeout           time.Duration `yaml:"timeout"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Likes             bool          `yaml:"likes"`
	Comments          bool          `yaml:"comments"`
}

type ShortcodesConfig struct {
	// Exempt replaces the default list when set.
	Exempt []string `yaml:"exempt"`
}

func DefaultPath() string {
	if path := os.Getenv("INSTANT_ARTICLES_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a configuration document, fills in defaults and validates
// the result. Unknown keys are rejected.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "/var/lib/instant-articles/ia.db"
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Charset == "" {
		c.Charset = "UTF-8"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = logging.FormatText
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendSQLite
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 7 * 24 * time.Hour
	}
	if c.Images.Timeout == 0 {
		c.Images.Timeout = 5 * time.Second
	}
	if c.Images.Concurrency == 0 {
		c.Images.Concurrency = 8
	}
	if c.Images.Burst == 0 && c.Images.RequestsPerSecond > 0 {
		c.Images.Burst = max(1, int(c.Images.RequestsPerSecond))
	}
}

func (c *Config) Validate() error {
	if c.SiteURL == "" {
		return errors.New("config site_url is required")
	}
	u, err := url.Parse(c.SiteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config site_url %q must be an absolute URL", c.SiteURL)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config log_level: %w", err)
	}
	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		return fmt.Errorf("config log_format %q must be text or json", c.LogFormat)
	}
	if !slices.Contains([]string{BackendSQLite, BackendFS, BackendMemory}, c.Cache.Backend) {
		return fmt.Errorf("config cache.backend %q is not one of sqlite, fs, memory", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendFS && c.Cache.Dir == "" {
		return errors.New("config cache.dir is required for the fs backend")
	}
	if c.Cache.TTL < 0 {
		return errors.New("config cache.ttl must not be negative")
	}
	if c.Version != "" {
		if _, err := version.Parse(c.Version); err != nil {
			return fmt.Errorf("config version: %w", err)
		}
	}
	if c.Images.Timeout < 0 || c.Images.Concurrency < 1 {
		return errors.New("config images.timeout and images.concurrency must be positive")
	}
	if c.Images.RequestsPerSecond < 0 {
		return errors.New("config images.requests_per_second must not be negative")
	}
	return nil
}

// SiteBase returns the site URL without a trailing slash.
func (c *Config) SiteBase() string {
	return strings.TrimRight(c.SiteURL, "/")
}
