// Package config loads and validates the gramNERD configuration.
// Configuration lives in a single YAML file; Load merges it over
// Default() so a partial file is always usable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Quotas    QuotaConfig     `yaml:"quotas"`
	Delays    DelayConfig     `yaml:"delays"`
	Targeting TargetingConfig `yaml:"targeting"`
	Browser   BrowserConfig   `yaml:"browser"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DataConfig locates the on-disk state.
type DataConfig struct {
	Dir          string `yaml:"dir"`
	AccountsFile string `yaml:"accounts_file"`
	LedgerFile   string `yaml:"ledger_file"`
	SessionDir   string `yaml:"session_dir"`
}

// AccountsPath returns the full path to the accounts file.
func (d DataConfig) AccountsPath() string {
	return filepath.Join(d.Dir, d.AccountsFile)
}

// LedgerPath returns the full path to the SQLite ledger.
func (d DataConfig) LedgerPath() string {
	return filepath.Join(d.Dir, d.LedgerFile)
}

// SessionPath returns the session state directory for an account.
func (d DataConfig) SessionPath(username string) string {
	return filepath.Join(d.Dir, d.SessionDir, username)
}

// QuotaConfig holds the per-account daily action ceilings.
type QuotaConfig struct {
	MaxDMsPerDay          int `yaml:"max_dms_per_day"`
	MaxCommentsPerDay     int `yaml:"max_comments_per_day"`
	MaxProfileViewsPerDay int `yaml:"max_profile_views_per_day"`
	MaxSearchesPerDay     int `yaml:"max_searches_per_day"`
}

// DelayConfig holds the pacing windows in seconds.
type DelayConfig struct {
	ActionMin    int `yaml:"action_min"`
	ActionMax    int `yaml:"action_max"`
	DMMin        int `yaml:"dm_min"`
	DMMax        int `yaml:"dm_max"`
	CommentMin   int `yaml:"comment_min"`
	CommentMax   int `yaml:"comment_max"`
	PostLoginMin int `yaml:"post_login_min"`
	PostLoginMax int `yaml:"post_login_max"`
}

// TargetingConfig holds discovery and acceptance parameters.
type TargetingConfig struct {
	Hashtags            []string `yaml:"hashtags"`
	MinFollowers        int      `yaml:"min_followers"`
	MaxFollowers        int      `yaml:"max_followers"`
	SavedCollectionName string   `yaml:"saved_collection_name"`
}

// BrowserConfig holds Chromium launch parameters.
type BrowserConfig struct {
	Headless          bool   `yaml:"headless"`
	SlowMotionMs      int    `yaml:"slow_motion_ms"`
	PageLoadTimeoutMs int    `yaml:"page_load_timeout_ms"`
	ViewportWidth     int    `yaml:"viewport_width"`
	ViewportHeight    int    `yaml:"viewport_height"`
	UserAgent         string `yaml:"user_agent"`
	Bin               string `yaml:"bin"`
}

// PageLoadTimeout returns the navigation timeout.
func (b BrowserConfig) PageLoadTimeout() time.Duration {
	if b.PageLoadTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(b.PageLoadTimeoutMs) * time.Millisecond
}

// SlowMotion returns the per-action slowdown.
func (b BrowserConfig) SlowMotion() time.Duration {
	return time.Duration(b.SlowMotionMs) * time.Millisecond
}

// GetViewportWidth returns viewport width.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth == 0 {
		return 1280
	}
	return b.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight == 0 {
		return 720
	}
	return b.ViewportHeight
}

// GeminiConfig holds the advisory model settings.
type GeminiConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// Timeout returns the request timeout.
func (g GeminiConfig) Timeout() time.Duration {
	if g.TimeoutSec == 0 {
		return 2 * time.Minute
	}
	return time.Duration(g.TimeoutSec) * time.Second
}

// ServerConfig holds the dashboard listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dir:          "data",
			AccountsFile: "accounts.json",
			LedgerFile:   "outreach.db",
			SessionDir:   "sessions",
		},
		Quotas: QuotaConfig{
			MaxDMsPerDay:          25,
			MaxCommentsPerDay:     50,
			MaxProfileViewsPerDay: 100,
			MaxSearchesPerDay:     20,
		},
		Delays: DelayConfig{
			ActionMin:    15,
			ActionMax:    30,
			DMMin:        60,
			DMMax:        90,
			CommentMin:   20,
			CommentMax:   40,
			PostLoginMin: 5,
			PostLoginMax: 10,
		},
		Targeting: TargetingConfig{
			Hashtags:            DefaultHashtags(),
			MinFollowers:        100,
			MaxFollowers:        500000,
			SavedCollectionName: "Comment Leads",
		},
		Browser: BrowserConfig{
			Headless:          false,
			SlowMotionMs:      100,
			PageLoadTimeoutMs: 30000,
			ViewportWidth:     1280,
			ViewportHeight:    720,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Gemini: GeminiConfig{
			Model:      "gemini-2.5-flash",
			TimeoutSec: 120,
		},
		Server: ServerConfig{
			Addr: ":5002",
		},
	}
}

// Load reads the YAML file at path and merges it over defaults.
// A missing file is not an error; the defaults are returned.
// GEMINI_API_KEY in the environment overrides the file value.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ceilings and window ordering.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must be set")
	}
	if c.Quotas.MaxDMsPerDay < 1 {
		return fmt.Errorf("quotas.max_dms_per_day must be >= 1")
	}
	if c.Quotas.MaxCommentsPerDay < 1 {
		return fmt.Errorf("quotas.max_comments_per_day must be >= 1")
	}
	if c.Quotas.MaxProfileViewsPerDay < 1 {
		return fmt.Errorf("quotas.max_profile_views_per_day must be >= 1")
	}
	if c.Quotas.MaxSearchesPerDay < 1 {
		return fmt.Errorf("quotas.max_searches_per_day must be >= 1")
	}
	windows := []struct {
		name     string
		min, max int
	}{
		{"delays.action", c.Delays.ActionMin, c.Delays.ActionMax},
		{"delays.dm", c.Delays.DMMin, c.Delays.DMMax},
		{"delays.comment", c.Delays.CommentMin, c.Delays.CommentMax},
		{"delays.post_login", c.Delays.PostLoginMin, c.Delays.PostLoginMax},
	}
	for _, w := range windows {
		if w.min < 0 {
			return fmt.Errorf("%s_min must be >= 0", w.name)
		}
		if w.max < w.min {
			return fmt.Errorf("%s_max must be >= %s_min", w.name, w.name)
		}
	}
	if c.Targeting.MaxFollowers <= c.Targeting.MinFollowers {
		return fmt.Errorf("targeting.max_followers must be > targeting.min_followers")
	}
	return nil
}
