package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/metrics"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/mqtt"
)

// Config is the full scenario description: the fleet, the depots with
// their areas and processes, the timetable and the ambient services.
type Config struct {
	Simulation   SimulationConfig    `json:"simulation"`
	Logging      LoggingConfig       `json:"logging"`
	VehicleTypes []VehicleTypeConfig `json:"vehicle_types"`
	TypeGroups   []TypeGroupConfig   `json:"type_groups"`
	Depots       []DepotConfig       `json:"depots"`
	Trips        []TripConfig        `json:"trips"`
	Fleet        []FleetConfig       `json:"fleet"`
	Metrics      metrics.Config      `json:"metrics"`
	MQTT         mqtt.Config         `json:"mqtt"`
}

// SimulationConfig bounds the run.
type SimulationConfig struct {
	// HorizonDays caps the simulated time. Zero runs exactly the
	// interval covered by the timetable.
	HorizonDays int `json:"horizon_days"`
	// RepeatTrips re-issues the trip list every covered interval, as
	// day-shifted copies, until the horizon is reached.
	RepeatTrips bool `json:"repeat_trips"`
}

// Horizon is the simulated time span in seconds; timetableInterval is
// the fallback when no explicit horizon is set. A timetable fitting a
// single day yields an interval of zero, so a one-day floor applies.
func (c SimulationConfig) Horizon(timetableInterval int64) int64 {
	if c.HorizonDays > 0 {
		return int64(c.HorizonDays) * 86400
	}
	if timetableInterval > 0 {
		return timetableInterval
	}
	return 86400
}

func (c SimulationConfig) Validate() error {
	if c.HorizonDays < 0 {
		return fmt.Errorf("simulation: horizon_days must not be negative")
	}
	return nil
}

// Load reads a scenario from a YAML or JSON file, applies K_ prefixed
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Logging.SetDefaults()
	for i := range cfg.Depots {
		cfg.Depots[i].SetDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the scenario for internal consistency: every name
// referenced by a depot, trip or fleet entry must resolve.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if len(c.VehicleTypes) == 0 {
		return fmt.Errorf("at least one vehicle type required")
	}
	types := make(map[string]bool, len(c.VehicleTypes))
	for _, vt := range c.VehicleTypes {
		if err := vt.Validate(); err != nil {
			return err
		}
		if types[vt.ID] {
			return fmt.Errorf("duplicate vehicle type %s", vt.ID)
		}
		types[vt.ID] = true
	}
	groups := make(map[string]bool, len(c.TypeGroups))
	grouped := make(map[string]string)
	for _, g := range c.TypeGroups {
		if g.Name == "" {
			return fmt.Errorf("type group: name required")
		}
		if groups[g.Name] {
			return fmt.Errorf("duplicate type group %s", g.Name)
		}
		groups[g.Name] = true
		if len(g.Types) == 0 {
			return fmt.Errorf("type group %s: no member types", g.Name)
		}
		for _, id := range g.Types {
			if !types[id] {
				return fmt.Errorf("type group %s: unknown vehicle type %s", g.Name, id)
			}
			// Substitutability is defined by group membership; a type in
			// two groups would make it asymmetric.
			if prev, ok := grouped[id]; ok {
				return fmt.Errorf("vehicle type %s in groups %s and %s, only one allowed", id, prev, g.Name)
			}
			grouped[id] = g.Name
		}
	}
	if len(c.Depots) == 0 {
		return fmt.Errorf("at least one depot required")
	}
	depots := make(map[string]bool, len(c.Depots))
	for i := range c.Depots {
		d := &c.Depots[i]
		if depots[d.ID] {
			return fmt.Errorf("duplicate depot %s", d.ID)
		}
		depots[d.ID] = true
		if err := d.Validate(types); err != nil {
			return err
		}
	}
	if len(c.Trips) == 0 {
		return fmt.Errorf("at least one trip required")
	}
	for _, tr := range c.Trips {
		if err := tr.Validate(types, depots); err != nil {
			return err
		}
	}
	for _, f := range c.Fleet {
		if !depots[f.Depot] {
			return fmt.Errorf("fleet: unknown depot %s", f.Depot)
		}
		if !types[f.VehicleType] {
			return fmt.Errorf("fleet: unknown vehicle type %s", f.VehicleType)
		}
		if f.Count <= 0 {
			return fmt.Errorf("fleet: count for %s at %s must be positive", f.VehicleType, f.Depot)
		}
	}
	return nil
}
