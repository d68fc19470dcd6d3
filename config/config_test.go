package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const scenarioYAML = `simulation:
  horizon_days: 2
logging:
  level: debug
  format: console
vehicle_types:
  - id: "EN"
    battery_capacity: 100
    soc_min: 0.05
    soc_max: 1
    soc_init: 0.9
    soh: 1
    cr: 1
  - id: "GN"
    battery_capacity: 150
    soc_min: 0.05
    soc_max: 1
    soc_init: 0.9
    soh: 1
    cr: 1.35
type_groups:
  - name: "articulated"
    types: ["GN"]
depots:
  - id: "depot1"
    prio_init: true
    consumption:
      mode: "CR_distance_based"
    dispatch:
      strategy: "SMART"
      lead_time_match: 600
      retrigger_interval: 60
    resources:
      - name: "service_crew"
        capacity: 2
    switches:
      - name: "service_break"
        resource: "service_crew"
        windows:
          - start: 43200
            end: 45000
        strength: 2
        preempt: true
        resume: true
    processes:
      - name: "serve"
        kind: "serve"
        dur: 900
        mandatory: true
        request_immediately: true
        resources: ["service_crew"]
      - name: "charge"
        kind: "charge"
        power: 90
        efficiency: 0.95
        mandatory: true
        request_immediately: true
        cancellable_for_dispatch: true
    areas:
      - name: "service_lane"
        kind: "direct"
        capacity: 2
        processes: ["serve"]
      - name: "charge_line"
        kind: "line"
        capacity: 6
        issink: true
        charge_power: 90
        put_side: "back"
        get_side: "front"
        processes: ["charge"]
    parking_groups:
      - name: "parking"
        areas: ["charge_line"]
        strategy: "SMART"
    plan:
      default: ["service_lane", "parking"]
trips:
  - id: "t1"
    line: "X10"
    origin: "depot1"
    destination: "depot1"
    vehicle_types: ["EN"]
    std: 21600
    sta: 25200
    distance: 25
fleet:
  - depot: "depot1"
    vehicle_type: "EN"
    count: 3
metrics:
  sinks:
    - type: "nop"
mqtt:
  enabled: false
`

func writeScenario(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.HorizonDays != 2 {
		t.Errorf("horizon_days = %d, want 2", cfg.Simulation.HorizonDays)
	}
	if got := cfg.Simulation.Horizon(86400); got != 172800 {
		t.Errorf("Horizon = %d, want 172800", got)
	}
	if len(cfg.VehicleTypes) != 2 || cfg.VehicleTypes[1].ID != "GN" {
		t.Fatalf("unexpected vehicle types: %+v", cfg.VehicleTypes)
	}
	d := cfg.Depots[0]
	if d.Dispatch.Strategy != "SMART" || d.Dispatch.LeadTimeMatch != 600 {
		t.Errorf("unexpected dispatch config: %+v", d.Dispatch)
	}
	if d.Processes[1].Efficiency != 0.95 {
		t.Errorf("charge efficiency = %v, want 0.95", d.Processes[1].Efficiency)
	}
	// SetDefaults fills in the charge target.
	if d.Processes[1].SoCTarget != 1 {
		t.Errorf("charge soc_target = %v, want 1", d.Processes[1].SoCTarget)
	}
	if d.Areas[1].Kind != "line" || d.Areas[1].ChargePower != 90 {
		t.Errorf("unexpected line area: %+v", d.Areas[1])
	}
	if cfg.Trips[0].Line != "X10" || cfg.Trips[0].STA != 25200 {
		t.Errorf("unexpected trip: %+v", cfg.Trips[0])
	}
	if len(cfg.Metrics.Sinks) != 1 || cfg.Metrics.Sinks[0].Type != "nop" {
		t.Errorf("unexpected metrics config: %+v", cfg.Metrics)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("logging format = %q, want console", cfg.Logging.Format)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_LOGGING__LEVEL", "warn")
	cfg, err := Load(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging level = %q, want warn from environment", cfg.Logging.Level)
	}
}

func TestValidateRejectsDanglingReferences(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown process in area",
			mutate:  func(c *Config) { c.Depots[0].Areas[0].Processes = []string{"wash"} },
			wantErr: "unknown process",
		},
		{
			name:    "unknown area in plan",
			mutate:  func(c *Config) { c.Depots[0].Plan.Default = []string{"nowhere"} },
			wantErr: "unknown entry",
		},
		{
			name:    "unknown vehicle type in trip",
			mutate:  func(c *Config) { c.Trips[0].VehicleTypes = []string{"DD"} },
			wantErr: "unknown vehicle type",
		},
		{
			name:    "unknown process kind",
			mutate:  func(c *Config) { c.Depots[0].Processes[0].Kind = "wash" },
			wantErr: "unknown kind",
		},
		{
			name:    "unknown area kind",
			mutate:  func(c *Config) { c.Depots[0].Areas[0].Kind = "ring" },
			wantErr: "unknown kind",
		},
		{
			name:    "unknown parking strategy",
			mutate:  func(c *Config) { c.Depots[0].ParkingGroups[0].Strategy = "RANDOM" },
			wantErr: "unknown strategy",
		},
		{
			name:    "switch on unknown resource",
			mutate:  func(c *Config) { c.Depots[0].Switches[0].Resource = "cranes" },
			wantErr: "unknown resource",
		},
		{
			name: "vehicle type in two groups",
			mutate: func(c *Config) {
				c.TypeGroups = append(c.TypeGroups, TypeGroupConfig{Name: "spare", Types: []string{"GN"}})
			},
			wantErr: "only one allowed",
		},
		{
			name:    "fleet at unknown depot",
			mutate:  func(c *Config) { c.Fleet[0].Depot = "depot9" },
			wantErr: "unknown depot",
		},
		{
			name:    "unknown power curve",
			mutate:  func(c *Config) { c.Depots[0].Processes[0].Curve = "stepless" },
			wantErr: "unknown curve",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeScenario(t, scenarioYAML))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
