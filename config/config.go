package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/warp/pi-engine/factory"
	"github.com/warp/pi-engine/fiscal"
)

// NOTE: Load creates the file with defaults on first run. Writes go through a
// temp file and rename, and the result is always 0600.

const (
	DefaultListen = "127.0.0.1:8080"
	DefaultDBPath = "piengine.db"

	// DefaultPopulateCron runs at 06:00 every Monday, so a newly configured
	// increment is on the calendar well before its first Sunday.
	DefaultPopulateCron = "0 6 * * 1"
)

// SchedulerConfig controls the background populate trigger.
type SchedulerConfig struct {
	// Enabled turns the cron trigger on. The HTTP populate endpoint works
	// either way.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Cron is a standard five-field cron spec (robfig/cron syntax).
	Cron string `yaml:"cron" json:"cron"`
}

// Config is the top-level server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// DBPath is the SQLite database file. ":memory:" keeps everything in RAM.
	DBPath string `yaml:"db_path" json:"db_path"`

	// CORSOrigins lists the origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`

	// Calendar is the fiscal calendar definition.
	Calendar factory.CalendarDoc `yaml:"calendar" json:"calendar"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		DBPath:      DefaultDBPath,
		CORSOrigins: []string{"*"},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Cron:    DefaultPopulateCron,
		},
		Calendar: factory.ImpactCalendarDoc(),
	}
}

// Normalize fills in missing values so that partially-filled files still
// produce a usable config.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.Scheduler.Cron == "" {
		c.Scheduler.Cron = DefaultPopulateCron
	}
	if c.Calendar.BaseDate == "" {
		c.Calendar = factory.ImpactCalendarDoc()
	}
}

// FiscalConfig builds the validated calendar from the Calendar section.
func (c *Config) FiscalConfig() (*fiscal.Config, error) {
	return factory.Build(c.Calendar)
}

// Validate checks the calendar and, when the scheduler is on, its cron spec.
func (c *Config) Validate() error {
	if _, err := c.FiscalConfig(); err != nil {
		return err
	}
	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Cron); err != nil {
			return fmt.Errorf("scheduler.cron %q: %w", c.Scheduler.Cron, err)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded over the defaults, so keys absent from
//     the file keep their default value, and the result is normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically via a temp file in the same directory.
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

	tmp, err := os.CreateTemp(dir, ".piengine-config-*.tmp")
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

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
