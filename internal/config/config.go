package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"monthcal/internal/layout"
	appLog "monthcal/internal/log"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS endpoint, or a local file path.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// SourceID returns ID, falling back to Name and then URL.
func (c ICSConfig) SourceID() string {
	switch {
	case c.ID != "":
		return c.ID
	case c.Name != "":
		return c.Name
	default:
		return c.URL
	}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web surface.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that decides which day an event falls on.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the weekday name of the first grid column
	// ("sunday" by default).
	WeekStart string `yaml:"week_start" json:"week_start"`

	// ShowAdjacentMonths fills grid padding with dates of the neighbouring
	// months.
	ShowAdjacentMonths bool `yaml:"show_adjacent_months" json:"show_adjacent_months"`

	// ShowWeekNumber adds an ISO week column.
	ShowWeekNumber bool `yaml:"show_week_number" json:"show_week_number"`

	// MaxVisibleEvents is the number of event rows per day cell.
	MaxVisibleEvents int `yaml:"max_visible_events" json:"max_visible_events"`

	// SlotLimit bounds the slot table per day; 0 means unbounded.
	SlotLimit int `yaml:"slot_limit" json:"slot_limit"`

	// EventOrder is "start", "duration" or "input".
	EventOrder string `yaml:"event_order" json:"event_order"`

	// MoreLabel is the overflow template ({moreCount}, {count}).
	MoreLabel string `yaml:"more_label" json:"more_label"`

	// MaxSpanDays is the span above which an event is logged as suspicious.
	MaxSpanDays int `yaml:"max_span_days" json:"max_span_days"`

	// RefreshCron is a cron spec for reloading ICS sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds the per-URL ICS cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// PreviewPath is where the PNG preview is written and served from.
	PreviewPath string `yaml:"preview_path" json:"preview_path"`

	// ICS is the list of subscribed sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// loc is Timezone resolved by Normalize. Keeping one pointer lets
	// layout options compare equal across calls.
	loc *time.Location
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "UTC"
	defaultWeekStart   = "sunday"
	defaultRefreshCron = "*/15 * * * *"
	defaultCacheDir    = "./var/ics-cache"
	defaultPreviewPath = "./var/preview.png"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           defaultListen,
		Timezone:         defaultTimezone,
		WeekStart:        defaultWeekStart,
		MaxVisibleEvents: layout.DefaultMaxVisible,
		EventOrder:       layout.OrderStart.String(),
		MoreLabel:        layout.DefaultMoreLabel,
		MaxSpanDays:      layout.DefaultMaxSpanDays,
		RefreshCron:      defaultRefreshCron,
		LogLevel:         "info",
		CacheDir:         defaultCacheDir,
		PreviewPath:      defaultPreviewPath,
		ICS:              []ICSConfig{},
	}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full or three-letter weekday names, any case.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for name, wd := range weekdays {
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return wd, true
		}
	}
	return time.Sunday, false
}

// Normalize fills in missing or invalid values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if wd, ok := ParseWeekday(c.WeekStart); ok {
		c.WeekStart = strings.ToLower(wd.String())
	} else {
		if c.WeekStart != "" {
			appLog.Warn("config: unknown week_start, using default", "week_start", c.WeekStart)
		}
		c.WeekStart = defaultWeekStart
	}
	if c.MaxVisibleEvents <= 0 {
		c.MaxVisibleEvents = layout.DefaultMaxVisible
	}
	if c.SlotLimit < 0 {
		c.SlotLimit = 0
	}
	if _, ok := layout.ParseOrder(c.EventOrder); !ok {
		appLog.Warn("config: unknown event_order, using default", "event_order", c.EventOrder)
		c.EventOrder = layout.OrderStart.String()
	} else if c.EventOrder == "" {
		c.EventOrder = layout.OrderStart.String()
	}
	if c.MoreLabel == "" {
		c.MoreLabel = layout.DefaultMoreLabel
	}
	if c.MaxSpanDays <= 0 {
		c.MaxSpanDays = layout.DefaultMaxSpanDays
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if _, ok := appLog.ParseLevel(c.LogLevel); !ok {
		c.LogLevel = "info"
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.PreviewPath == "" {
		c.PreviewPath = defaultPreviewPath
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	c.loc = nil
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		c.loc = loc
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	seen := make(map[string]bool, len(c.ICS))
	for i, src := range c.ICS {
		if src.URL == "" {
			return fmt.Errorf("config: ics[%d]: url is empty", i)
		}
		id := src.SourceID()
		if seen[id] {
			return fmt.Errorf("config: ics[%d]: duplicate id %q", i, id)
		}
		seen[id] = true
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.loc != nil && c.loc.String() == c.Timezone {
		return c.loc
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("config: failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// Weekday returns WeekStart as a time.Weekday.
func (c *Config) Weekday() time.Weekday {
	wd, _ := ParseWeekday(c.WeekStart)
	return wd
}

// LayoutOptions builds allocator options from the config.
func (c *Config) LayoutOptions() layout.Options {
	order, _ := layout.ParseOrder(c.EventOrder)
	return layout.Options{
		WeekStart:   c.Weekday(),
		MaxVisible:  c.MaxVisibleEvents,
		SlotLimit:   c.SlotLimit,
		Order:       order,
		Location:    c.Location(),
		MaxSpanDays: c.MaxSpanDays,
	}
}

// Load loads configuration from the given YAML path. A missing file is
// created with defaults (0600) and those defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, fmt.Errorf("config: writing defaults: %w", err)
			}
			appLog.Info("config: created default config", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".monthcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
