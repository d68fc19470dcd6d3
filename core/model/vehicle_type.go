package model

import "fmt"

// VehicleType describes a class of vehicles. Instantiated once per type;
// vehicles of the same type share one instance.
type VehicleType struct {
	ID string
	// BatteryCapacity is the nominal battery energy in kWh.
	BatteryCapacity float64
	SoCMin          float64
	SoCMax          float64
	SoCInit         float64
	// SoH scales the nominal capacity to the real usable capacity.
	SoH float64
	// CR is the consumption rate: kWh/km for distance based consumption,
	// kW for time based. Zero when consumption is SoC driven.
	CR float64

	// Group is set when the type belongs to a substitution group.
	Group *VehicleTypeGroup
}

// Validate checks the type parameters against their domains.
func (vt *VehicleType) Validate() error {
	if vt.ID == "" {
		return fmt.Errorf("vehicle type: empty ID")
	}
	if vt.BatteryCapacity <= 0 {
		return fmt.Errorf("vehicle type %s: battery capacity must be positive", vt.ID)
	}
	for name, soc := range map[string]float64{
		"soc_min": vt.SoCMin, "soc_max": vt.SoCMax, "soc_init": vt.SoCInit, "soh": vt.SoH,
	} {
		if soc < 0 || soc > 1 {
			return fmt.Errorf("vehicle type %s: %s=%v outside [0, 1]", vt.ID, name, soc)
		}
	}
	if vt.SoCMin >= vt.SoCMax {
		return fmt.Errorf("vehicle type %s: soc_min must be below soc_max", vt.ID)
	}
	return nil
}

// VehicleTypeGroup identifies vehicle types that are mutually
// substitutable on trips.
type VehicleTypeGroup struct {
	Types []*VehicleType
}

// Contains reports whether vt is a member of the group.
func (g *VehicleTypeGroup) Contains(vt *VehicleType) bool {
	for _, t := range g.Types {
		if t == vt {
			return true
		}
	}
	return false
}

// JoinedIDs returns the member type IDs comma separated, for logging.
func (g *VehicleTypeGroup) JoinedIDs() string {
	s := ""
	for i, t := range g.Types {
		if i > 0 {
			s += ", "
		}
		s += t.ID
	}
	return s
}
