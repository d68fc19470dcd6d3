package depot

import (
	"fmt"
	"math"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/model"
)

// FilterName identifies one criterion of a VehicleFilter. The set is
// closed; unknown names fail validation.
type FilterName string

const (
	FilterVehicleType           FilterName = "vehicle_type"
	FilterTripVehicleMatch      FilterName = "trip_vehicle_match"
	FilterNoActiveProcesses     FilterName = "no_active_processes"
	FilterNoActiveUncancellable FilterName = "no_active_uncancellable_processes"
	FilterBatFull               FilterName = "bat_full"
	FilterMinEnergy             FilterName = "min_energy"
	FilterSufficientEnergy      FilterName = "sufficient_energy"
	FilterSoCLowerThan          FilterName = "soc_lower_than"
	FilterServiceNeed           FilterName = "service_need"
	FilterRepairNeed            FilterName = "repair_need"
	FilterMaintenanceNeed       FilterName = "maintenance_need"
	FilterInPeriod              FilterName = "in_period"
	FilterInPeriodDays          FilterName = "in_period_days"
	FilterIsUnblocked           FilterName = "isunblocked"
	FilterNotOnHold             FilterName = "not_on_hold"
	FilterPreviousArea          FilterName = "dwd_previous_area"
	FilterFalse                 FilterName = "false"
)

var knownFilters = map[FilterName]struct{}{
	FilterVehicleType: {}, FilterTripVehicleMatch: {},
	FilterNoActiveProcesses: {}, FilterNoActiveUncancellable: {},
	FilterBatFull: {}, FilterMinEnergy: {}, FilterSufficientEnergy: {},
	FilterSoCLowerThan: {}, FilterServiceNeed: {}, FilterRepairNeed: {},
	FilterMaintenanceNeed: {}, FilterInPeriod: {}, FilterInPeriodDays: {},
	FilterIsUnblocked: {}, FilterNotOnHold: {}, FilterPreviousArea: {},
	FilterFalse: {},
}

// VehicleFilter matches vehicles against a conjunction of named
// criteria. Parameters are shared across the criteria that use them.
type VehicleFilter struct {
	Names []FilterName

	// VehicleTypes feeds vehicle_type.
	VehicleTypes []*model.VehicleType
	// Trip feeds trip_vehicle_match and sufficient_energy.
	Trip *Trip
	// Consumption supplies the mode and reserve for sufficient_energy.
	Consumption *ConsumptionConfig
	// MinEnergy feeds min_energy, SoCThreshold soc_lower_than.
	MinEnergy    float64
	SoCThreshold float64

	// ServiceNeedTripTime triggers service_need after this much
	// cumulative trip time, ServiceNeedElapsed after this much wall
	// time since the last service. Zero disables the respective rule.
	ServiceNeedTripTime int64
	ServiceNeedElapsed  int64

	// PeriodStart/PeriodEnd bound in_period in seconds since midnight;
	// a window with start after end wraps around midnight.
	PeriodStart int64
	PeriodEnd   int64
	// PeriodDays lists permitted weekdays (0 = Monday) for
	// in_period_days; StartWeekday is the weekday at simulation time 0.
	PeriodDays   []int
	StartWeekday int

	// PreviousAreas feeds dwd_previous_area.
	PreviousAreas []Area
}

// Validate checks that all criterion names are known and their
// parameters are present.
func (f *VehicleFilter) Validate() error {
	for _, name := range f.Names {
		if _, ok := knownFilters[name]; !ok {
			return fmt.Errorf("vehicle filter: unknown criterion %q", name)
		}
		switch name {
		case FilterVehicleType:
			if len(f.VehicleTypes) == 0 {
				return fmt.Errorf("vehicle filter: %s requires vehicle types", name)
			}
		case FilterSufficientEnergy:
			if f.Consumption == nil {
				return fmt.Errorf("vehicle filter: %s requires a consumption config", name)
			}
		case FilterInPeriod:
			if f.PeriodStart < 0 || f.PeriodStart >= secondsPerDay || f.PeriodEnd < 0 || f.PeriodEnd >= secondsPerDay {
				return fmt.Errorf("vehicle filter: %s window outside [0, %d)", name, secondsPerDay)
			}
		case FilterInPeriodDays:
			if len(f.PeriodDays) == 0 {
				return fmt.Errorf("vehicle filter: %s requires weekdays", name)
			}
			for _, d := range f.PeriodDays {
				if d < 0 || d > 6 {
					return fmt.Errorf("vehicle filter: weekday %d outside [0, 6]", d)
				}
			}
		}
	}
	return nil
}

// WithTrip returns a copy of the filter bound to the given trip.
func (f *VehicleFilter) WithTrip(t *Trip) *VehicleFilter {
	c := *f
	c.Trip = t
	return &c
}

// Match reports whether the vehicle passes all criteria at the given
// time.
func (f *VehicleFilter) Match(now int64, v *Vehicle) bool {
	for _, name := range f.Names {
		if !f.match(name, now, v) {
			return false
		}
	}
	return true
}

func (f *VehicleFilter) match(name FilterName, now int64, v *Vehicle) bool {
	switch name {
	case FilterVehicleType:
		for _, vt := range f.VehicleTypes {
			if v.Type == vt {
				return true
			}
		}
		return false

	case FilterTripVehicleMatch:
		if v.Trip == f.Trip && f.Trip != nil {
			return true
		}
		return !v.SystemEntry && f.Trip != nil && f.Trip.AcceptsType(v.Type)

	case FilterNoActiveProcesses:
		return !v.DWD.AnyActiveProcesses

	case FilterNoActiveUncancellable:
		if !v.DWD.AnyActiveProcesses {
			return true
		}
		if len(v.DWD.ActiveProcesses) == 0 {
			// Processes are between interruption and restart; their
			// state is unknown, reject.
			return false
		}
		for _, p := range v.DWD.ActiveProcesses {
			if !p.CancellableForDispatch() {
				return false
			}
		}
		return true

	case FilterBatFull:
		return v.Battery.SoC() >= v.Battery.SoCMax

	case FilterMinEnergy:
		return v.Battery.Energy() >= f.MinEnergy

	case FilterSufficientEnergy:
		return f.sufficientEnergy(v)

	case FilterSoCLowerThan:
		return v.Battery.SoC() < f.SoCThreshold

	case FilterServiceNeed:
		return f.serviceNeed(now, v)

	case FilterRepairNeed:
		return v.DWD.RepairNeed

	case FilterMaintenanceNeed:
		return v.DWD.MaintenanceNeed

	case FilterInPeriod:
		tod := now % secondsPerDay
		if f.PeriodStart <= f.PeriodEnd {
			return tod >= f.PeriodStart && tod < f.PeriodEnd
		}
		return tod >= f.PeriodStart || tod < f.PeriodEnd

	case FilterInPeriodDays:
		day := (f.StartWeekday + int(now/secondsPerDay)) % 7
		for _, d := range f.PeriodDays {
			if d == day {
				return true
			}
		}
		return false

	case FilterIsUnblocked:
		area := v.DWD.CurrentArea
		if area == nil {
			return false
		}
		return area.IsUnblocked(v)

	case FilterNotOnHold:
		return !v.DWD.OnHold

	case FilterPreviousArea:
		for _, a := range f.PreviousAreas {
			if v.DWD.PreviousArea == a {
				return true
			}
		}
		return false

	case FilterFalse:
		return false
	}
	return false
}

// sufficientEnergy checks whether the battery covers the filter's trip
// including the configured reserve.
func (f *VehicleFilter) sufficientEnergy(v *Vehicle) bool {
	trip := f.Trip
	if trip == nil {
		return false
	}
	reserve := 1 + f.Consumption.EnergyReserve/100
	switch f.Consumption.Mode {
	case ConsumptionDistance:
		return v.Type.CR*trip.Distance*reserve <= v.Battery.EnergyRemaining()
	case ConsumptionTime:
		return float64(trip.Duration())/3600*v.Type.CR*reserve <= v.Battery.EnergyRemaining()
	case ConsumptionSoCGiven:
		if trip.ChargeOnTrack {
			return math.Round(v.Battery.SoC()*1e5)/1e5 >= trip.StartSoC
		}
		need := (trip.StartSoC - trip.EndSoC) * v.Battery.EnergyReal()
		if need > v.Battery.EnergyRemaining() && v.Battery.SoC() >= v.Battery.SoCMax {
			// The trip demands more than a full battery holds; let the
			// full vehicle go anyway instead of stalling dispatch.
			return true
		}
		return need <= v.Battery.EnergyRemaining()
	}
	return false
}

// serviceNeed decides whether the vehicle is due for service. The flag
// sticks on the vehicle once triggered so a vehicle stays due until
// served.
func (f *VehicleFilter) serviceNeed(now int64, v *Vehicle) bool {
	if v.DWD.ServiceNeed {
		return true
	}
	if f.ServiceNeedElapsed > 0 && now-v.DWD.TLastServed > f.ServiceNeedElapsed {
		v.DWD.ServiceNeed = true
		return true
	}
	if f.ServiceNeedTripTime > 0 {
		var total int64
		for _, t := range v.FinishedTrips {
			if t.ATA > v.DWD.TLastServed {
				total += t.Duration()
			}
		}
		if total > f.ServiceNeedTripTime {
			v.DWD.ServiceNeed = true
			return true
		}
	}
	return false
}
