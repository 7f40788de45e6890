package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	appLog "nextrace/internal/log"
	"nextrace/internal/model"
)

// ErrEmptyPath is returned by Load and Save when no config path is given.
var ErrEmptyPath = errors.New("config path is empty")

const (
	defaultListen        = "127.0.0.1:8080"
	defaultFeedURL       = "https://cf.nascar.com/cacher/2025/race_list_basic.json"
	defaultEventTimezone = "America/New_York"
	defaultRefreshCron   = "*/15 * * * *"
	defaultFetchTimeout  = 15
	defaultCacheDir      = "./var/feed-cache"
)

// SeriesConfig describes one tracked series.
type SeriesConfig struct {
	// Code is the short key used in the API and calendar UIDs (e.g. "N1").
	Code string `yaml:"code" json:"code"`
	// ID matches the series_id carried by feed records.
	ID int `yaml:"id" json:"id"`
	// Name is shown when the feed does not name the series.
	Name string `yaml:"name" json:"name"`
	Logo string `yaml:"logo,omitempty" json:"logo,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone start instants are displayed in. Empty means
	// the process local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DefaultEventTimezone interprets date+time pairs that carry no
	// time_zone of their own.
	DefaultEventTimezone string `yaml:"default_event_timezone" json:"default_event_timezone"`

	// FeedURL is the schedule feed endpoint.
	FeedURL string `yaml:"feed_url" json:"feed_url"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic re-fetch.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// FetchTimeoutSeconds bounds a single feed request.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// CacheDir holds the feed body and its HTTP validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Series is the ordered list of tracked series.
	Series []SeriesConfig `yaml:"series" json:"series"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:               defaultListen,
		DefaultEventTimezone: defaultEventTimezone,
		FeedURL:              defaultFeedURL,
		RefreshCron:          defaultRefreshCron,
		FetchTimeoutSeconds:  defaultFetchTimeout,
		CacheDir:             defaultCacheDir,
		Series:               defaultSeries(),
	}
}

func defaultSeries() []SeriesConfig {
	reg := model.DefaultRegistry()
	out := make([]SeriesConfig, 0, len(reg))
	for _, d := range reg {
		out = append(out, SeriesConfig{Code: d.Code, ID: d.ID, Name: d.FallbackName, Logo: d.Logo})
	}
	return out
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly. Series entries without a
// code or a positive id are dropped.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DefaultEventTimezone == "" {
		c.DefaultEventTimezone = defaultEventTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = defaultFetchTimeout
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	c.FeedURL = strings.TrimSpace(c.FeedURL)
	if c.FeedURL == "" {
		c.FeedURL = defaultFeedURL
	}

	series := c.Series[:0]
	for _, s := range c.Series {
		s.Code = strings.TrimSpace(s.Code)
		if s.Code == "" || s.ID <= 0 {
			continue
		}
		series = append(series, s)
	}
	c.Series = series
	if len(c.Series) == 0 {
		c.Series = defaultSeries()
	}
}

// FetchTimeout returns FetchTimeoutSeconds as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// Registry converts the configured series into a model.Registry, keeping
// order. A repeated code keeps its first entry.
func (c *Config) Registry() model.Registry {
	reg := make(model.Registry, 0, len(c.Series))
	seen := make(map[string]bool, len(c.Series))
	for _, s := range c.Series {
		if seen[s.Code] {
			continue
		}
		seen[s.Code] = true
		reg = append(reg, model.SeriesDescriptor{
			Code:         s.Code,
			ID:           s.ID,
			FallbackName: s.Name,
			Logo:         s.Logo,
		})
	}
	return reg
}

// ViewerLocation resolves Timezone, falling back to time.Local.
func (c *Config) ViewerLocation() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("invalid timezone; using local", err, "timezone", c.Timezone)
		return time.Local
	}
	return loc
}

// EventLocation resolves DefaultEventTimezone, falling back to US Eastern.
func (c *Config) EventLocation() *time.Location {
	name := c.DefaultEventTimezone
	if name == "" {
		name = defaultEventTimezone
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	appLog.Error("invalid default_event_timezone; using "+defaultEventTimezone, err, "timezone", name)
	loc, err = time.LoadLocation(defaultEventTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded and defaults are filled in.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions, creating the
// parent directory (0700) when needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o600)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
