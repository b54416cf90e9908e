// Package config loads the typed run configuration from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/world"
)

// ErrInvalid is returned by Validate. The joined field errors say what is wrong.
var ErrInvalid = errors.New("invalid config")

type PopulationConfig struct {
	Count  int             `yaml:"count" toml:"count"`   // Spawned agents, in addition to Agents
	Agents []agents.Config `yaml:"agents" toml:"agents"` // Hand-written seeds
}

type SchedulerConfig struct {
	CycleBudget    int    `yaml:"cycle_budget" toml:"cycle_budget"`
	ReactiveBudget int    `yaml:"reactive_budget" toml:"reactive_budget"`
	Workers        int    `yaml:"workers" toml:"workers"`         // 0 = GOMAXPROCS
	SoftBudget     string `yaml:"soft_budget" toml:"soft_budget"` // e.g. "50ms"; empty disables
}

type CadenceConfig struct {
	Consolidate    uint64 `yaml:"consolidate" toml:"consolidate"` // Ticks; 0 disables
	ConsolidateMin int    `yaml:"consolidate_min" toml:"consolidate_min"`
	Report         uint64 `yaml:"report" toml:"report"`
	Save           uint64 `yaml:"save" toml:"save"`
}

type LayoutConfig struct {
	Locations []world.Location        `yaml:"locations" toml:"locations"`
	Points    []world.PointOfInterest `yaml:"points" toml:"points"`
}

type StorageConfig struct {
	Path string `yaml:"path" toml:"path"` // SQLite file; empty runs in memory only
}

type APIConfig struct {
	Addr       string `yaml:"addr" toml:"addr"` // Empty disables the HTTP server
	AdminToken string `yaml:"admin_token" toml:"admin_token"`
}

type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"` // debug, info, warn, error
}

// Config is a complete run configuration.
type Config struct {
	Seed       int64                  `yaml:"seed" toml:"seed"`
	Ticks      uint64                 `yaml:"ticks" toml:"ticks"`       // 0 runs until interrupted
	Interval   string                 `yaml:"interval" toml:"interval"` // Real time per tick; "0s" runs flat out
	Speed      float64                `yaml:"speed" toml:"speed"`
	Population PopulationConfig       `yaml:"population" toml:"population"`
	Scheduler  SchedulerConfig        `yaml:"scheduler" toml:"scheduler"`
	Cadence    CadenceConfig          `yaml:"cadence" toml:"cadence"`
	Layout     LayoutConfig           `yaml:"layout" toml:"layout"`
	Events     []world.ScheduledEvent `yaml:"events" toml:"events"`
	Weather    bool                   `yaml:"weather" toml:"weather"` // Seeded weather outside
	Storage    StorageConfig          `yaml:"storage" toml:"storage"`
	API        APIConfig              `yaml:"api" toml:"api"`
	Logging    LoggingConfig          `yaml:"logging" toml:"logging"`
}

// Default returns the built-in configuration: a small tavern evening.
func Default() Config {
	locs, pois := world.DefaultTavern()
	return Config{
		Seed:       42,
		Interval:   "1s",
		Speed:      1,
		Population: PopulationConfig{Count: 24},
		Scheduler: SchedulerConfig{
			CycleBudget:    12,
			ReactiveBudget: 8,
			SoftBudget:     "50ms",
		},
		Cadence: CadenceConfig{
			Consolidate:    60,
			ConsolidateMin: 3,
			Report:         60,
			Save:           360,
		},
		Layout:  LayoutConfig{Locations: locs, Points: pois},
		Events:  world.DefaultEvents(),
		Weather: true,
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a config file over the defaults. The format follows the extension: .toml is TOML,
// .yaml and .yml are YAML. The result is validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext over the defaults and validates the result.
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate range-checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := parseDuration(c.Interval); err != nil {
		bad("interval: %w", err)
	}
	if c.Speed < 0 || math.IsNaN(c.Speed) {
		bad("speed %v must be non-negative", c.Speed)
	}
	if c.Population.Count < 0 {
		bad("population.count %d must be non-negative", c.Population.Count)
	}
	if c.Population.Count == 0 && len(c.Population.Agents) == 0 {
		bad("population is empty")
	}
	ids := make(map[agents.AgentID]bool)
	for i, ac := range c.Population.Agents {
		if ids[ac.ID] {
			bad("population.agents[%d]: duplicate id %d", i, ac.ID)
		}
		ids[ac.ID] = true
		if _, err := agents.New(ac); err != nil {
			bad("population.agents[%d]: %w", i, err)
		}
	}

	s := c.Scheduler
	if s.CycleBudget < 0 || s.ReactiveBudget < 0 || s.Workers < 0 {
		bad("scheduler budgets and workers must be non-negative")
	}
	if s.CycleBudget == 0 && s.ReactiveBudget == 0 {
		bad("scheduler gives no agent any attention")
	}
	if _, err := parseDuration(s.SoftBudget); err != nil {
		bad("scheduler.soft_budget: %w", err)
	}
	if c.Cadence.Consolidate > 0 && c.Cadence.ConsolidateMin < 1 {
		bad("cadence.consolidate_min %d must be at least 1", c.Cadence.ConsolidateMin)
	}

	if len(c.Layout.Locations) == 0 {
		bad("layout has no locations")
	}
	names := make(map[string]bool)
	for i, loc := range c.Layout.Locations {
		if loc.Name == "" {
			bad("layout.locations[%d]: empty name", i)
		}
		if names[loc.Name] {
			bad("layout.locations[%d]: duplicate name %q", i, loc.Name)
		}
		names[loc.Name] = true
	}
	for i, p := range c.Layout.Points {
		if p.Weight < 0 || p.Weight > 1 || math.IsNaN(p.Weight) {
			bad("layout.points[%d]: weight %v outside [0,1]", i, p.Weight)
		}
	}
	for i, ev := range c.Events {
		if ev.Kind == "" {
			bad("events[%d]: empty kind", i)
		}
		if ev.Location != "" && !names[ev.Location] {
			bad("events[%d]: unknown location %q", i, ev.Location)
		}
		if !inRange(ev.Valence, -1, 1) || !inRange(ev.Unexpectedness, 0, 1) || !inRange(ev.Relevance, 0, 1) {
			bad("events[%d]: appraisal out of range", i)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		bad("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s is negative", s)
	}
	return d, nil
}

// TickInterval is the parsed Interval.
func (c Config) TickInterval() time.Duration {
	d, _ := parseDuration(c.Interval)
	return d
}

// CycleSoftBudget is the parsed scheduler soft budget.
func (c Config) CycleSoftBudget() time.Duration {
	d, _ := parseDuration(c.Scheduler.SoftBudget)
	return d
}
