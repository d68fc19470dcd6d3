package config

import (
	"fmt"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/depot"
)

// VehicleTypeConfig describes one bus type of the fleet.
type VehicleTypeConfig struct {
	ID              string  `json:"id"`
	BatteryCapacity float64 `json:"battery_capacity"`
	SoCMin          float64 `json:"soc_min"`
	SoCMax          float64 `json:"soc_max"`
	SoCInit         float64 `json:"soc_init"`
	SoH             float64 `json:"soh"`
	CR              float64 `json:"cr"`
}

func (c VehicleTypeConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("vehicle type: id required")
	}
	if c.BatteryCapacity <= 0 {
		return fmt.Errorf("vehicle type %s: battery_capacity must be positive", c.ID)
	}
	return nil
}

// TypeGroupConfig joins interchangeable vehicle types.
type TypeGroupConfig struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

// DepotConfig describes one depot: its resources, process catalogue,
// areas, parking groups and the routes vehicles take between them.
type DepotConfig struct {
	ID string `json:"id"`

	// PrioInit serves departure requests from the init store before the
	// parked fleet.
	PrioInit    bool              `json:"prio_init"`
	Consumption ConsumptionConfig `json:"consumption"`
	Dispatch    DispatchConfig    `json:"dispatch"`

	Resources     []ResourceConfig     `json:"resources"`
	Switches      []SwitchConfig       `json:"switches"`
	Processes     []ProcessConfig      `json:"processes"`
	Areas         []AreaConfig         `json:"areas"`
	ParkingGroups []ParkingGroupConfig `json:"parking_groups"`
	Plan          PlanConfig           `json:"plan"`
}

func (c *DepotConfig) SetDefaults() {
	c.Consumption.SetDefaults()
	c.Dispatch.SetDefaults()
	for i := range c.Processes {
		c.Processes[i].SetDefaults()
	}
}

func (c *DepotConfig) Validate(types map[string]bool) error {
	if c.ID == "" {
		return fmt.Errorf("depot: id required")
	}
	if err := c.Consumption.Validate(); err != nil {
		return fmt.Errorf("depot %s: %w", c.ID, err)
	}
	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("depot %s: %w", c.ID, err)
	}
	resources := make(map[string]bool, len(c.Resources))
	for _, r := range c.Resources {
		if r.Name == "" {
			return fmt.Errorf("depot %s: resource name required", c.ID)
		}
		if resources[r.Name] {
			return fmt.Errorf("depot %s: duplicate resource %s", c.ID, r.Name)
		}
		if r.Capacity <= 0 {
			return fmt.Errorf("depot %s: resource %s needs positive capacity", c.ID, r.Name)
		}
		resources[r.Name] = true
	}
	for _, s := range c.Switches {
		if err := s.Validate(resources); err != nil {
			return fmt.Errorf("depot %s: %w", c.ID, err)
		}
	}
	processes := make(map[string]bool, len(c.Processes))
	for _, p := range c.Processes {
		if err := p.Validate(resources); err != nil {
			return fmt.Errorf("depot %s: %w", c.ID, err)
		}
		if processes[p.Name] {
			return fmt.Errorf("depot %s: duplicate process %s", c.ID, p.Name)
		}
		processes[p.Name] = true
	}
	areas := make(map[string]bool, len(c.Areas))
	for _, a := range c.Areas {
		if err := a.Validate(processes, types); err != nil {
			return fmt.Errorf("depot %s: %w", c.ID, err)
		}
		if areas[a.Name] {
			return fmt.Errorf("depot %s: duplicate area %s", c.ID, a.Name)
		}
		areas[a.Name] = true
	}
	groups := make(map[string]bool, len(c.ParkingGroups))
	for _, g := range c.ParkingGroups {
		if err := g.Validate(areas, types); err != nil {
			return fmt.Errorf("depot %s: %w", c.ID, err)
		}
		if areas[g.Name] {
			return fmt.Errorf("depot %s: parking group %s collides with an area name", c.ID, g.Name)
		}
		if groups[g.Name] {
			return fmt.Errorf("depot %s: duplicate parking group %s", c.ID, g.Name)
		}
		groups[g.Name] = true
	}
	if err := c.Plan.Validate(areas, groups); err != nil {
		return fmt.Errorf("depot %s: %w", c.ID, err)
	}
	return nil
}

// ConsumptionConfig selects how trips drain the battery.
type ConsumptionConfig struct {
	// Mode is one of soc_given, CR_distance_based or CR_time_based.
	Mode string `json:"mode"`
	// EnergyReserve is the safety margin in percent for the
	// sufficient-energy dispatch filter.
	EnergyReserve float64 `json:"energy_reserve"`
}

func (c *ConsumptionConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = string(depot.ConsumptionDistance)
	}
}

func (c ConsumptionConfig) Validate() error {
	if !depot.ConsumptionMode(c.Mode).Valid() {
		return fmt.Errorf("unknown consumption mode %q", c.Mode)
	}
	if c.EnergyReserve < 0 || c.EnergyReserve >= 100 {
		return fmt.Errorf("energy_reserve must be in [0, 100)")
	}
	return nil
}

// DispatchConfig selects the trip-to-vehicle matching strategy.
type DispatchConfig struct {
	// Strategy is FIRST or SMART.
	Strategy string `json:"strategy"`
	// LeadTimeMatch is how long before scheduled departure an unmatched
	// trip is nudged, and for SMART how long matching is deferred.
	LeadTimeMatch int64 `json:"lead_time_match"`
	// RetriggerInterval re-runs matching for overdue trips; zero
	// disables the periodic trigger.
	RetriggerInterval int64 `json:"retrigger_interval"`
}

func (c *DispatchConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = "FIRST"
	}
}

func (c DispatchConfig) Validate() error {
	switch c.Strategy {
	case "FIRST", "SMART":
	default:
		return fmt.Errorf("unknown dispatch strategy %q", c.Strategy)
	}
	if c.LeadTimeMatch < 0 || c.RetriggerInterval < 0 {
		return fmt.Errorf("dispatch times must not be negative")
	}
	return nil
}

// ResourceConfig is a shared pool of workers or equipment.
type ResourceConfig struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// WindowConfig is a daily time window in seconds since midnight.
type WindowConfig struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// SwitchConfig takes capacity away from a resource during daily
// breaks.
type SwitchConfig struct {
	Name     string         `json:"name"`
	Resource string         `json:"resource"`
	Windows  []WindowConfig `json:"windows"`
	// Strength is how many capacity slots the breaks occupy.
	Strength int  `json:"strength"`
	Preempt  bool `json:"preempt"`
	Resume   bool `json:"resume"`
}

func (c SwitchConfig) Validate(resources map[string]bool) error {
	if c.Name == "" {
		return fmt.Errorf("switch: name required")
	}
	if !resources[c.Resource] {
		return fmt.Errorf("switch %s: unknown resource %q", c.Name, c.Resource)
	}
	if len(c.Windows) == 0 {
		return fmt.Errorf("switch %s: at least one window required", c.Name)
	}
	for _, w := range c.Windows {
		if w.End <= w.Start {
			return fmt.Errorf("switch %s: window end must be after start", c.Name)
		}
	}
	if c.Strength <= 0 {
		return fmt.Errorf("switch %s: strength must be positive", c.Name)
	}
	return nil
}

// StepConfig is one plateau of a stepped charging curve.
type StepConfig struct {
	SoC   float64 `json:"soc"`
	Power float64 `json:"power"`
}

// ProcessConfig describes one activity vehicles can undergo in an
// area.
type ProcessConfig struct {
	Name string `json:"name"`
	// Kind is one of serve, standby, repair, maintain, precondition,
	// charge, charge_steps or charge_equation_steps.
	Kind string `json:"kind"`

	Dur                    int64 `json:"dur"`
	Mandatory              bool  `json:"mandatory"`
	RequestImmediately     bool  `json:"request_immediately"`
	CancellableForDispatch bool  `json:"cancellable_for_dispatch"`

	Resources        []string `json:"resources"`
	ResourcePriority int      `json:"resource_priority"`
	Preempt          bool     `json:"preempt"`

	Power        float64      `json:"power"`
	Efficiency   float64      `json:"efficiency"`
	SoCTarget    float64      `json:"soc_target"`
	SoCTargetMax bool         `json:"soc_target_max"`
	Steps        []StepConfig `json:"steps"`
	Precision    float64      `json:"precision"`
	// Curve selects the power equation of charge_equation_steps
	// processes: tapered (the default) or exponential. The threshold is
	// the SoC above which the power rolls off.
	Curve          string  `json:"curve"`
	CurveThreshold float64 `json:"curve_threshold"`
}

func (c *ProcessConfig) SetDefaults() {
	if c.Efficiency == 0 {
		c.Efficiency = 1
	}
	if c.SoCTarget == 0 && !c.SoCTargetMax {
		c.SoCTarget = 1
	}
	if c.Curve == "" {
		c.Curve = "tapered"
	}
	if c.CurveThreshold == 0 {
		c.CurveThreshold = 0.8
	}
}

func (c ProcessConfig) Validate(resources map[string]bool) error {
	if c.Name == "" {
		return fmt.Errorf("process: name required")
	}
	if !depot.ProcessKind(c.Kind).Valid() {
		return fmt.Errorf("process %s: unknown kind %q", c.Name, c.Kind)
	}
	for _, r := range c.Resources {
		if !resources[r] {
			return fmt.Errorf("process %s: unknown resource %q", c.Name, r)
		}
	}
	switch c.Curve {
	case "", "tapered", "exponential":
	default:
		return fmt.Errorf("process %s: unknown curve %q", c.Name, c.Curve)
	}
	if c.CurveThreshold < 0 || c.CurveThreshold >= 1 {
		return fmt.Errorf("process %s: curve threshold %g outside [0, 1)", c.Name, c.CurveThreshold)
	}
	return nil
}

// AreaConfig is one parking or working area of a depot.
type AreaConfig struct {
	Name string `json:"name"`
	// Kind is direct (random access slots) or line (a blocking lane).
	Kind     string `json:"kind"`
	Capacity int    `json:"capacity"`
	// Issink marks areas vehicles depart from.
	Issink bool `json:"issink"`
	// ChargePower equips every slot with a charging interface of that
	// power; zero leaves the area unpowered.
	ChargePower float64 `json:"charge_power"`
	// PutSide and GetSide are front or back, for line areas only.
	PutSide string `json:"put_side"`
	GetSide string `json:"get_side"`
	// Processes names the process catalogue entries available here.
	Processes []string `json:"processes"`
	// EntryTypes restricts entry to the listed vehicle types.
	EntryTypes []string `json:"entry_types"`
}

func (c AreaConfig) Validate(processes, types map[string]bool) error {
	if c.Name == "" {
		return fmt.Errorf("area: name required")
	}
	switch c.Kind {
	case "direct", "line":
	default:
		return fmt.Errorf("area %s: unknown kind %q", c.Name, c.Kind)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("area %s: capacity must be positive", c.Name)
	}
	if c.Kind == "line" {
		for _, s := range []string{c.PutSide, c.GetSide} {
			switch s {
			case "", "front", "back":
			default:
				return fmt.Errorf("area %s: unknown side %q", c.Name, s)
			}
		}
	} else if c.PutSide != "" || c.GetSide != "" {
		return fmt.Errorf("area %s: sides only apply to line areas", c.Name)
	}
	for _, p := range c.Processes {
		if !processes[p] {
			return fmt.Errorf("area %s: unknown process %q", c.Name, p)
		}
	}
	for _, id := range c.EntryTypes {
		if !types[id] {
			return fmt.Errorf("area %s: unknown vehicle type %s", c.Name, id)
		}
	}
	return nil
}

// ParkingGroupConfig joins sink areas under one parking strategy.
type ParkingGroupConfig struct {
	Name  string   `json:"name"`
	Areas []string `json:"areas"`
	// Strategy is FIRST, EVEN, MIXED, SMART or SMART2.
	Strategy string `json:"strategy"`
	// Types lists the vehicle types the group parks; empty admits all.
	Types []string `json:"types"`
}

func (c ParkingGroupConfig) Validate(areas, types map[string]bool) error {
	if c.Name == "" {
		return fmt.Errorf("parking group: name required")
	}
	if len(c.Areas) == 0 {
		return fmt.Errorf("parking group %s: no member areas", c.Name)
	}
	for _, a := range c.Areas {
		if !areas[a] {
			return fmt.Errorf("parking group %s: unknown area %q", c.Name, a)
		}
	}
	switch c.Strategy {
	case "", "FIRST", "EVEN", "MIXED", "SMART", "SMART2":
	default:
		return fmt.Errorf("parking group %s: unknown strategy %q", c.Name, c.Strategy)
	}
	for _, id := range c.Types {
		if !types[id] {
			return fmt.Errorf("parking group %s: unknown vehicle type %s", c.Name, id)
		}
	}
	return nil
}

// PlanConfig routes vehicles through the depot. Entries name areas or
// parking groups; the last entry must lead to departure slots.
type PlanConfig struct {
	Default  []string             `json:"default"`
	Specific []SpecificPlanConfig `json:"specific"`
}

// SpecificPlanConfig overrides the default route for vehicles matching
// its filter.
type SpecificPlanConfig struct {
	Entries []string `json:"entries"`
	// FilterNames selects the criteria, e.g. repair_need or
	// service_need.
	FilterNames []string `json:"filter_names"`
	// VehicleTypes feeds the vehicle_type criterion.
	VehicleTypes []string `json:"vehicle_types"`
	// ServiceNeedTripTime and ServiceNeedElapsed parameterize the
	// service_need criterion.
	ServiceNeedTripTime int64 `json:"service_need_trip_time"`
	ServiceNeedElapsed  int64 `json:"service_need_elapsed"`
}

func (c PlanConfig) Validate(areas, groups map[string]bool) error {
	if len(c.Default) == 0 {
		return fmt.Errorf("plan: default route required")
	}
	check := func(entries []string) error {
		for _, e := range entries {
			if !areas[e] && !groups[e] {
				return fmt.Errorf("plan: unknown entry %q", e)
			}
		}
		return nil
	}
	if err := check(c.Default); err != nil {
		return err
	}
	for i, sp := range c.Specific {
		if len(sp.Entries) == 0 {
			return fmt.Errorf("plan: specific plan %d has no entries", i)
		}
		if err := check(sp.Entries); err != nil {
			return err
		}
		if len(sp.FilterNames) == 0 {
			return fmt.Errorf("plan: specific plan %d has no filter", i)
		}
	}
	return nil
}

// TripConfig is one scheduled block of the timetable.
type TripConfig struct {
	ID           string   `json:"id"`
	Line         string   `json:"line"`
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	VehicleTypes []string `json:"vehicle_types"`
	// STD and STA are the scheduled departure and arrival in seconds
	// since simulation start.
	STD      int64   `json:"std"`
	STA      int64   `json:"sta"`
	Distance float64 `json:"distance"`

	// StartSoC, EndSoC and ChargeOnTrack feed the soc_given
	// consumption mode.
	StartSoC      float64 `json:"start_soc"`
	EndSoC        float64 `json:"end_soc"`
	ChargeOnTrack bool    `json:"charge_on_track"`
}

func (c TripConfig) Validate(types, depots map[string]bool) error {
	if c.ID == "" {
		return fmt.Errorf("trip: id required")
	}
	if !depots[c.Origin] {
		return fmt.Errorf("trip %s: unknown origin depot %s", c.ID, c.Origin)
	}
	if !depots[c.Destination] {
		return fmt.Errorf("trip %s: unknown destination depot %s", c.ID, c.Destination)
	}
	if len(c.VehicleTypes) == 0 {
		return fmt.Errorf("trip %s: at least one vehicle type required", c.ID)
	}
	for _, id := range c.VehicleTypes {
		if !types[id] {
			return fmt.Errorf("trip %s: unknown vehicle type %s", c.ID, id)
		}
	}
	if c.STA <= c.STD {
		return fmt.Errorf("trip %s: sta must be after std", c.ID)
	}
	if c.Distance < 0 {
		return fmt.Errorf("trip %s: distance must not be negative", c.ID)
	}
	return nil
}

// FleetConfig stages a number of vehicles of one type at a depot.
type FleetConfig struct {
	Depot       string `json:"depot"`
	VehicleType string `json:"vehicle_type"`
	Count       int    `json:"count"`
}
