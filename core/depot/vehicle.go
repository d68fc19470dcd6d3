// Package depot implements the discrete-event simulation of an electric
// bus depot: vehicles arrive from trips, move across service and parking
// areas, run processes such as charging and cleaning, and are matched to
// departing trips by a dispatch strategy.
package depot

import (
	"fmt"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/model"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// ConsumptionMode selects how trip energy consumption is computed.
type ConsumptionMode string

const (
	// ConsumptionSoCGiven takes the SoC at arrival from the trip data.
	ConsumptionSoCGiven ConsumptionMode = "soc_given"
	// ConsumptionDistance multiplies trip distance with the type's
	// consumption rate in kWh/km.
	ConsumptionDistance ConsumptionMode = "CR_distance_based"
	// ConsumptionTime multiplies trip duration with the type's
	// consumption rate in kW.
	ConsumptionTime ConsumptionMode = "CR_time_based"
)

// Valid reports whether m is a known consumption mode.
func (m ConsumptionMode) Valid() bool {
	switch m {
	case ConsumptionSoCGiven, ConsumptionDistance, ConsumptionTime:
		return true
	}
	return false
}

// Vehicle is one bus in the simulation.
type Vehicle struct {
	ID      string
	Type    *model.VehicleType
	Battery *model.Battery
	Mileage float64

	// DWD holds the working data of the vehicle's current depot stay.
	DWD WorkingData

	// Trip is the currently assigned trip, nil inside the depot until
	// dispatch matches one.
	Trip            *Trip
	TripAtDeparture *Trip
	FinishedTrips   []*Trip

	// SystemEntry is false until the vehicle leaves the init store for
	// its first trip.
	SystemEntry bool
}

// NewVehicle builds a vehicle of the given type with a fresh battery.
func NewVehicle(clock model.Clock, id string, vt *model.VehicleType, home *Depot) (*Vehicle, error) {
	bat, err := model.NewBattery(clock, vt)
	if err != nil {
		return nil, fmt.Errorf("vehicle %s: %w", id, err)
	}
	v := &Vehicle{ID: id, Type: vt, Battery: bat}
	v.DWD.HomeDepot = home
	return v, nil
}

func (v *Vehicle) String() string { return v.ID }

// Drive simulates one trip outside the depot: let the trip duration pass,
// consume energy per the depot's consumption mode and check in at the
// destination.
func (v *Vehicle) Drive(env *sim.Engine, cfg *ConsumptionConfig) {
	trip := v.Trip
	env.After(trip.Duration(), func() {
		overrun := false
		switch cfg.Mode {
		case ConsumptionDistance:
			used := trip.Distance * v.Type.CR
			overrun = used > v.Battery.Energy()
			v.Battery.Get(used)
		case ConsumptionTime:
			used := float64(trip.Duration()) / 3600 * v.Type.CR
			overrun = used > v.Battery.Energy()
			v.Battery.Get(used)
		case ConsumptionSoCGiven:
			if trip.ChargeOnTrack {
				overrun = trip.EndSoC < 0
				v.Battery.SetEnergy(trip.EndSoC * v.Battery.EnergyReal())
			} else {
				used := (trip.StartSoC - trip.EndSoC) * v.Battery.EnergyReal()
				overrun = used > v.Battery.Energy()
				v.Battery.Get(used)
			}
		}
		v.Mileage += trip.Distance
		if overrun {
			v.publishEvent(trip.Destination, events.VehicleBatteryLow, 0)
		}
		trip.Destination.CheckIn(v)
	})
}

// ConsumptionConfig controls trip energy consumption and the handling of
// over-consumed batteries.
type ConsumptionConfig struct {
	Mode ConsumptionMode
	// EnergyReserve is the safety margin in percent applied by the
	// sufficient-energy dispatch filter.
	EnergyReserve float64
}

// WorkingData carries the communication state between a vehicle and the
// depot it currently stays in.
type WorkingData struct {
	HomeDepot    *Depot
	CurrentDepot *Depot

	ServiceNeed     bool
	TLastServed     int64
	RepairNeed      bool
	MaintenanceNeed bool

	Plan         []PlanEntry
	CurrentArea  Area
	PreviousArea Area

	// ActiveProcesses lists processes currently running and not on
	// hold. AnyActiveProcesses is additionally true while processes are
	// between interruption and restart.
	ActiveProcesses    []Process
	AnyActiveProcesses bool

	// OnHold prevents the vehicle from being dispatched between
	// entering an area and starting its processes.
	OnHold bool
}

func (w *WorkingData) addActive(p Process) {
	w.ActiveProcesses = append(w.ActiveProcesses, p)
}

func (w *WorkingData) removeActive(p Process) {
	for i, q := range w.ActiveProcesses {
		if q == p {
			w.ActiveProcesses = append(w.ActiveProcesses[:i], w.ActiveProcesses[i+1:]...)
			return
		}
	}
}

// CurrentSlot returns the display slot number on the current area, or -1
// when the vehicle is outside a depot.
func (w *WorkingData) CurrentSlot(v *Vehicle) int {
	if w.CurrentArea == nil {
		return -1
	}
	return w.CurrentArea.SlotNo(v)
}

// CurrentChargingInterface returns the charging interface at the
// vehicle's current slot, or nil when there is none.
func (w *WorkingData) CurrentChargingInterface(v *Vehicle) *ChargingInterface {
	if w.CurrentArea == nil {
		return nil
	}
	cis := w.CurrentArea.ChargingInterfaces()
	if cis == nil {
		return nil
	}
	idx := w.CurrentArea.IndexOf(v)
	if idx < 0 {
		return nil
	}
	return cis[idx]
}

// ETCProcesses summarizes the estimated completion times of all active
// processes. The result is unknown if any single estimate is unknown,
// completed if there is nothing active, and otherwise the latest ETC.
func (w *WorkingData) ETCProcesses() Estimate {
	if len(w.ActiveProcesses) == 0 {
		return EstimateCompleted()
	}
	allCompleted := true
	var latest int64
	haveTime := false
	for _, p := range w.ActiveProcesses {
		etc := p.ETC()
		switch {
		case etc.Unknown():
			return EstimateUnknown()
		case etc.Completed():
		default:
			allCompleted = false
			if !haveTime || etc.Time > latest {
				latest = etc.Time
				haveTime = true
			}
		}
	}
	if allCompleted {
		return EstimateCompleted()
	}
	return EstimateAt(latest)
}

// IsRFD reports whether the vehicle is ready for departure: parked at a
// sink area with no active processes except preconditioning. Blocking by
// other vehicles is a separate filter.
func (w *WorkingData) IsRFD() bool {
	if w.CurrentArea == nil || !w.CurrentArea.IsSink() {
		return false
	}
	for _, p := range w.ActiveProcesses {
		if p.Kind() != KindPrecondition {
			return false
		}
	}
	return true
}

func (v *Vehicle) publishEvent(d *Depot, action events.VehicleAction, delay int64) {
	tripID := ""
	if v.Trip != nil {
		tripID = v.Trip.ID
	}
	d.Events.Vehicle.Publish(events.VehicleEvent{
		Time:      d.env.Now(),
		Action:    action,
		VehicleID: v.ID,
		TypeID:    v.Type.ID,
		TripID:    tripID,
		SoC:       v.Battery.SoC(),
		Delay:     delay,
	})
}
