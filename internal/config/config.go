// Package config loads the controller's single JSON configuration document
// and exposes it as a typed, validated structure. Loading follows the same
// "try the working directory, fall back to the system path" convention the
// teacher uses for its data directory resolution, applied here to the
// config file, the hardware descriptor and the event database (§6
// Persistence).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/sprinklerd/internal/model"
)

// SystemConfigDir is the fallback directory searched when no config file
// exists in the current working directory.
const SystemConfigDir = "/var/lib/sprinkler"

// WeatherAdjustConfig configures the Weather provider's adjustment formula
// and clamps (§4.3).
type WeatherAdjustConfig struct {
	Enable      bool    `json:"enable"`
	Min         int     `json:"min"`
	Max         int     `json:"max"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Sensitivity int     `json:"sensitivity"`
}

// WeatherConfig configures the WeatherAdjuster.
type WeatherConfig struct {
	Enable      bool                `json:"enable"`
	Key         string              `json:"key"`
	Station     string              `json:"station,omitempty"`
	RainTrigger float64             `json:"raintrigger"`
	Refresh     []string            `json:"refresh,omitempty"` // "HH" or "HH:MM"
	Adjust      WeatherAdjustConfig `json:"adjust"`
}

// WateringIndexAdjustConfig configures the watering-index clamps.
type WateringIndexAdjustConfig struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// WateringIndexConfig configures the WateringIndexAdjuster.
type WateringIndexConfig struct {
	Enable   bool                      `json:"enable"`
	Provider string                    `json:"provider"` // "waterdex" | "mwdsocal"
	Refresh  []string                  `json:"refresh,omitempty"`
	Adjust   WateringIndexAdjustConfig `json:"adjust"`
}

// CalendarConfig describes one configured iCalendar source.
type CalendarConfig struct {
	Name     string `json:"name"`
	Format   string `json:"format"` // must be "ical"/"icalendar"
	Source   string `json:"source"` // file:, http:// or https://
	Season   string `json:"season,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// EventConfig configures the event sink's syslog fan-out and retention.
type EventConfig struct {
	Syslog  bool `json:"syslog"`
	Cleanup int  `json:"cleanup"` // retention window, days; 0 disables purging
}

// WebServerConfig configures the ambient HTTP status surface (§6, ADDED).
type WebServerConfig struct {
	Port int `json:"port"`
}

// UDPConfig configures the (external, out of scope) discovery broadcast
// port; carried here only so activateConfig has somewhere to read it from.
type UDPConfig struct {
	Port int `json:"port,omitempty"`
}

// Config is the root of the single JSON configuration document (§6).
type Config struct {
	On         bool   `json:"on"`
	Production bool   `json:"production"`
	RainDelay  bool   `json:"raindelay"`
	Timezone   string `json:"timezone"`
	Location   string `json:"location"`
	Zipcode    string `json:"zipcode,omitempty"`

	Zones     []model.Zone             `json:"zones"`
	Programs  []model.Program          `json:"programs"`
	Calendars []CalendarConfig         `json:"calendars,omitempty"`
	Seasons   []model.Season           `json:"seasons,omitempty"`
	Adjust    []model.AdjustmentProfile `json:"adjust,omitempty"`

	Weather       WeatherConfig        `json:"weather"`
	WateringIndex WateringIndexConfig  `json:"wateringindex"`
	Event         EventConfig          `json:"event"`
	WebServer     WebServerConfig      `json:"webserver"`
	UDP           UDPConfig            `json:"udp,omitempty"`

	// Path is the file this configuration was loaded from, kept for
	// diagnostics. The one-shot program Active/Date changes the Scheduler
	// makes are held in memory only; nothing writes them back to this file.
	Path string `json:"-"`
}

// Load resolves the configuration file using the search path described in
// §6: the current working directory's config.json first, falling back to
// SystemConfigDir/config.json. explicitPath, when non-empty, is tried
// before either of those and bypasses the fallback entirely.
func Load(explicitPath string) (*Config, error) {
	path, err := Resolve("config.json", explicitPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Path = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Resolve implements the search-path fallback from §6 Persistence for any
// of the three files it names (config.json, hardware.json, the event
// database file): try the current directory, then SystemConfigDir.
// explicitPath, when set, short-circuits the search.
func Resolve(filename, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("explicit path %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}

	cwd := filepath.Join(".", filename)
	if _, err := os.Stat(cwd); err == nil {
		return cwd, nil
	}

	sys := filepath.Join(SystemConfigDir, filename)
	if _, err := os.Stat(sys); err == nil {
		return sys, nil
	}

	return "", fmt.Errorf("%s not found in working directory or %s", filename, SystemConfigDir)
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	for i := range c.Zones {
		if c.Zones[i].Level == "" {
			c.Zones[i].Level = "HIGH"
		}
	}
	for i := range c.Programs {
		if c.Programs[i].Repeat == "" {
			c.Programs[i].Repeat = model.RepeatNone
		}
		if c.Programs[i].Repeat == model.RepeatDaily && c.Programs[i].Interval == 0 {
			c.Programs[i].Interval = 1
		}
	}
	if c.UDP.Port == 0 {
		c.UDP.Port = c.WebServer.Port
	}
}

// Validate enforces the invariants §3 names: program names unique, zone
// references valid.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Programs))
	for _, p := range c.Programs {
		if seen[p.Name] {
			return fmt.Errorf("duplicate program name %q", p.Name)
		}
		seen[p.Name] = true
		for _, pz := range p.Zones {
			if pz.Zone < 0 || pz.Zone >= len(c.Zones) {
				return fmt.Errorf("program %q references invalid zone %d", p.Name, pz.Zone)
			}
		}
	}
	for _, z := range c.Zones {
		if z.Master != nil && (*z.Master < 0 || *z.Master >= len(c.Zones)) {
			return fmt.Errorf("zone %q references invalid master %d", z.Name, *z.Master)
		}
	}
	return nil
}

// ZoneIndex builds the ZoneIndex view of this configuration's zones.
func (c *Config) ZoneIndex() *model.ZoneIndex {
	return model.NewZoneIndex(c.Zones)
}

// AdjustmentByName returns the named AdjustmentProfile ("default" when
// name is empty) and true, or a zero profile and false when no profile of
// that name is configured.
func (c *Config) AdjustmentByName(name string) (model.AdjustmentProfile, bool) {
	if name == "" {
		name = "default"
	}
	for _, a := range c.Adjust {
		if a.Name == name {
			return a, true
		}
	}
	return model.AdjustmentProfile{}, false
}

// SeasonByName returns the named Season, if configured.
func (c *Config) SeasonByName(name string) (model.Season, bool) {
	for _, s := range c.Seasons {
		if s.Name == name {
			return s, true
		}
	}
	return model.Season{}, false
}
