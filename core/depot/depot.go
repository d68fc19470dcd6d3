package depot

import (
	"fmt"
	"sort"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/logger"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/model"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/internal/eventbus"
)

// EventHub bundles the typed event streams of a simulation. Metrics and
// exporters subscribe here.
type EventHub struct {
	Vehicle    *eventbus.Bus[events.VehicleEvent]
	Process    *eventbus.Bus[events.ProcessEvent]
	Slot       *eventbus.Bus[events.SlotEvent]
	Switch     *eventbus.Bus[events.SwitchEvent]
	Resource   *eventbus.Bus[events.ResourceEvent]
	Power      *eventbus.Bus[events.PowerEvent]
	Congestion *eventbus.Bus[events.CongestionEvent]
}

// NewEventHub creates the bus set.
func NewEventHub() *EventHub {
	return &EventHub{
		Vehicle:    eventbus.New[events.VehicleEvent](),
		Process:    eventbus.New[events.ProcessEvent](),
		Slot:       eventbus.New[events.SlotEvent](),
		Switch:     eventbus.New[events.SwitchEvent](),
		Resource:   eventbus.New[events.ResourceEvent](),
		Power:      eventbus.New[events.PowerEvent](),
		Congestion: eventbus.New[events.CongestionEvent](),
	}
}

// Close closes all buses.
func (h *EventHub) Close() {
	h.Vehicle.Close()
	h.Process.Close()
	h.Slot.Close()
	h.Switch.Close()
	h.Resource.Close()
	h.Power.Close()
	h.Congestion.Close()
}

// PowerSample is one point of the depot's total charging load curve.
type PowerSample struct {
	Time  int64
	Total float64
}

// Depot is one bus depot: its areas, resources, plans and the trips and
// vehicles currently bound to it.
type Depot struct {
	ID string

	env    *sim.Engine
	log    logger.Logger
	Events *EventHub

	Resources map[string]*Resource
	Switches  []*ResourceSwitch
	Processes map[string]*ProcessSpec
	Areas     map[string]Area

	Groups            map[string]*AreaGroup
	ParkingAreaGroups []*ParkingAreaGroup
	// DepartureAreas groups all sink areas; vehicles leave for trips
	// from here.
	DepartureAreas *AreaGroup
	// DirectDepartureAreas are sink buffers outside the parking groups
	// that dispatch scans after the regular stores.
	DirectDepartureAreas []Area

	DefaultPlan   *ActivityPlan
	SpecificPlans []*SpecificPlan

	Control  *DepotControl
	Dispatch DispatchStrategy

	Consumption *ConsumptionConfig

	// initStore holds vehicles that have not entered service yet.
	initStore []*Vehicle

	// PendingDepartures are trips that requested a vehicle and have not
	// departed. UnassignedTrips is the subset already due for matching,
	// sorted by scheduled departure. PendingArrivals is sorted by ETA.
	PendingDepartures []*Trip
	UnassignedTrips   []*Trip
	PendingArrivals   []*Trip

	// Vehicle counts and shares per type and group, set by the fleet
	// generator; the buffer parking criterion reads the shares.
	TypeCount  map[*model.VehicleType]int
	GroupCount map[*model.VehicleTypeGroup]int
	TypeShare  map[*model.VehicleType]float64
	GroupShare map[*model.VehicleTypeGroup]float64

	Checkins  int
	Checkouts int
	// Count is the number of vehicles currently in the depot, MaxCount
	// its observed maximum.
	Count    int
	MaxCount int

	totalPower float64
	PowerLog   []PowerSample

	// QueueWaits records, in seconds, how long queued parking requests
	// waited for a slot.
	QueueWaits []float64

	// anyProcessCancellable caches whether any configured process may
	// be cancelled for dispatch; the urgent retrigger loop only runs
	// then.
	anyProcessCancellable bool
}

// NewDepot builds an empty depot; areas, plans and strategies are wired
// by the configuration layer.
func NewDepot(env *sim.Engine, log logger.Logger, hub *EventHub, id string) *Depot {
	d := &Depot{
		ID: id, env: env, log: log, Events: hub,
		Resources: make(map[string]*Resource),
		Processes: make(map[string]*ProcessSpec),
		Areas:     make(map[string]Area),
		Groups:    make(map[string]*AreaGroup),
		TypeCount: make(map[*model.VehicleType]int), GroupCount: make(map[*model.VehicleTypeGroup]int),
		TypeShare: make(map[*model.VehicleType]float64), GroupShare: make(map[*model.VehicleTypeGroup]float64),
	}
	d.Control = newDepotControl(d)
	return d
}

// Env exposes the engine for components bound to the depot.
func (d *Depot) Env() *sim.Engine { return d.env }

// Finalize derives lookup structures after configuration: the departure
// area group and the dispatch cancellation cache. Must run before the
// simulation starts.
func (d *Depot) Finalize(types []*model.VehicleType) error {
	if d.DefaultPlan == nil {
		return fmt.Errorf("depot %s: default plan required", d.ID)
	}
	if err := d.DefaultPlan.Validate(); err != nil {
		return fmt.Errorf("depot %s: %w", d.ID, err)
	}
	for _, sp := range d.SpecificPlans {
		if err := sp.Validate(); err != nil {
			return fmt.Errorf("depot %s: %w", d.ID, err)
		}
	}
	var sinks []Area
	d.DirectDepartureAreas = nil
	for _, name := range sortedAreaNames(d.Areas) {
		a := d.Areas[name]
		if !a.IsSink() {
			continue
		}
		sinks = append(sinks, a)
		if a.ParkingGroup() == nil {
			d.DirectDepartureAreas = append(d.DirectDepartureAreas, a)
		}
	}
	if len(sinks) == 0 {
		return fmt.Errorf("depot %s: no sink areas", d.ID)
	}
	g, err := NewAreaGroup(d.env, d.log, d.ID+"_departure_areas", sinks, types)
	if err != nil {
		return err
	}
	d.DepartureAreas = g
	for _, r := range d.Resources {
		r.hub = d.Events
	}
	d.anyProcessCancellable = false
	for _, p := range d.Processes {
		if p.CancellableForDispatch {
			d.anyProcessCancellable = true
			break
		}
	}
	if d.Dispatch == nil {
		d.Dispatch = NewDSFirst(0)
	}
	return nil
}

func sortedAreaNames(areas map[string]Area) []string {
	names := make([]string, 0, len(areas))
	for n := range areas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Capacity is the total slot count over all areas.
func (d *Depot) Capacity() int {
	total := 0
	for _, a := range d.Areas {
		total += a.Capacity()
	}
	return total
}

// ParkingCapacity is the slot count of all parking groups.
func (d *Depot) ParkingCapacity() int {
	total := 0
	for _, g := range d.ParkingAreaGroups {
		total += g.Capacity()
	}
	return total
}

// ParkingCapacityDirect is the direct-area slot count of all parking
// groups.
func (d *Depot) ParkingCapacityDirect() int {
	total := 0
	for _, g := range d.ParkingAreaGroups {
		total += g.CapacityDirect
	}
	return total
}

// VacantParking counts free parking slots; VacantParkingAccessible only
// those a newcomer can reach.
func (d *Depot) VacantParking() int {
	total := 0
	for _, g := range d.ParkingAreaGroups {
		for _, s := range g.Stores {
			total += s.Vacant()
		}
	}
	return total
}

func (d *Depot) VacantParkingAccessible() int {
	total := 0
	for _, g := range d.ParkingAreaGroups {
		for _, s := range g.Stores {
			total += s.VacantAccessible()
		}
	}
	return total
}

// UrgentTrips returns the unassigned trips already due for departure.
// UnassignedTrips is sorted by STD, so they form its prefix.
func (d *Depot) UrgentTrips() []*Trip {
	now := d.env.Now()
	for i, t := range d.UnassignedTrips {
		if t.STD > now {
			return d.UnassignedTrips[:i]
		}
	}
	return d.UnassignedTrips
}

// OverdueTrips returns pending departures past their scheduled
// departure.
func (d *Depot) OverdueTrips() []*Trip {
	now := d.env.Now()
	var out []*Trip
	for _, t := range d.PendingDepartures {
		if !t.Departed() && t.STD < now {
			out = append(out, t)
		}
	}
	return out
}

// TotalPower is the momentary charging load in kW.
func (d *Depot) TotalPower() float64 { return d.totalPower }

// addPower books a load change and samples the curve.
func (d *Depot) addPower(delta float64) {
	d.totalPower += delta
	d.PowerLog = append(d.PowerLog, PowerSample{Time: d.env.Now(), Total: d.totalPower})
	d.Events.Power.Publish(events.PowerEvent{
		Time: d.env.Now(), DepotID: d.ID, DeltaKW: delta, TotalKW: d.totalPower,
	})
}

// noteQueueWait books a resolved wait for a parking slot and publishes
// the congestion event.
func (d *Depot) noteQueueWait(areaID, vehicleID string, wait int64) {
	d.QueueWaits = append(d.QueueWaits, float64(wait))
	d.Events.Congestion.Publish(events.CongestionEvent{
		Time: d.env.Now(), AreaID: areaID, VehicleID: vehicleID, Wait: wait,
	})
}

// AddInitVehicle stages a vehicle in the depot before simulation start.
func (d *Depot) AddInitVehicle(v *Vehicle) {
	d.initStore = append(d.initStore, v)
}

// InitStoreLen is the number of vehicles not yet in service.
func (d *Depot) InitStoreLen() int { return len(d.initStore) }

// takeInit removes and returns the first staged vehicle matching the
// filter.
func (d *Depot) takeInit(filter func(*Vehicle) bool) *Vehicle {
	for i, v := range d.initStore {
		if filter == nil || filter(v) {
			d.initStore = append(d.initStore[:i], d.initStore[i+1:]...)
			return v
		}
	}
	return nil
}

// removeUnassigned drops the trip from the matching backlog.
func (d *Depot) removeUnassigned(t *Trip) {
	for i, u := range d.UnassignedTrips {
		if u == t {
			d.UnassignedTrips = append(d.UnassignedTrips[:i], d.UnassignedTrips[i+1:]...)
			return
		}
	}
}

// removePendingDeparture drops the trip from the departure backlog.
func (d *Depot) removePendingDeparture(t *Trip) {
	for i, u := range d.PendingDepartures {
		if u == t {
			d.PendingDepartures = append(d.PendingDepartures[:i], d.PendingDepartures[i+1:]...)
			return
		}
	}
}

// removePendingArrival drops the trip from the arrival backlog.
func (d *Depot) removePendingArrival(t *Trip) {
	for i, u := range d.PendingArrivals {
		if u == t {
			d.PendingArrivals = append(d.PendingArrivals[:i], d.PendingArrivals[i+1:]...)
			return
		}
	}
}

// CheckIn hands an arriving vehicle to depot control.
func (d *Depot) CheckIn(v *Vehicle) { d.Control.CheckIn(v) }
