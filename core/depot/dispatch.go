package depot

import (
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/rating"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// DispatchStrategy matches pending trips with parked vehicles.
type DispatchStrategy interface {
	Name() string
	// Trigger runs one matching pass over the depot.
	Trigger(d *Depot)
	// SchedulingDelay defers a trip's entry into the matching backlog.
	SchedulingDelay(env *sim.Engine, t *Trip) int64
}

// nextTrips returns the urgent trips, or the single earliest unassigned
// trip, or nothing. Relies on UnassignedTrips being sorted by STD.
func nextTrips(d *Depot) []*Trip {
	if len(d.UnassignedTrips) == 0 {
		return nil
	}
	if urgent := d.UrgentTrips(); len(urgent) > 0 {
		return urgent
	}
	return d.UnassignedTrips[:1]
}

// dispatchFilter builds the vehicle filter for matching a trip. Urgent
// trips accept vehicles whose running processes can all be cancelled, as
// long as they are first in line; regular matching requires idle
// vehicles.
func dispatchFilter(d *Depot, t *Trip, urgent bool) *VehicleFilter {
	names := []FilterName{FilterVehicleType, FilterNotOnHold, FilterNoActiveProcesses, FilterSufficientEnergy}
	if urgent {
		names = []FilterName{FilterVehicleType, FilterNotOnHold, FilterNoActiveUncancellable, FilterSufficientEnergy, FilterIsUnblocked}
	}
	return &VehicleFilter{
		Names:        names,
		VehicleTypes: t.VehicleTypes,
		Trip:         t,
		Consumption:  d.Consumption,
	}
}

// dsAssign matches the vehicle and the trip: cancel running processes
// for an early departure, unlink a previously assigned vehicle, schedule
// preconditioning toward the departure and wake waiting gets.
func dsAssign(d *Depot, v *Vehicle, t *Trip) {
	env := d.env
	now := env.Now()

	if len(v.DWD.ActiveProcesses) > 0 {
		if t.STD > now {
			d.log.Errorf("trip %s: early vehicle %s taken before departure is due", t.ID, v.ID)
		}
		active := append([]Process(nil), v.DWD.ActiveProcesses...)
		for _, p := range active {
			p.Cancel()
		}
		t.GotEarlyVehicle = true
		t.TGotEarlyVehicle = now
	} else {
		t.GotEarlyVehicle = false
		t.TGotEarlyVehicle = -1
	}

	reassignment := t.Vehicle != nil
	if reassignment {
		if t.STD < now {
			d.log.Errorf("trip %s: refusing to reassign a delayed trip", t.ID)
			return
		}
		t.Vehicle.Trip = nil
	}

	t.TMatch = now
	t.Vehicle = v
	v.Trip = t
	if !reassignment {
		d.removeUnassigned(t)
	}
	d.log.Debugf("trip %s matched with vehicle %s (type %s)", t.ID, v.ID, v.Type.ID)

	schedulePreconditioning(d, v, t)

	if v.DWD.CurrentArea != nil {
		v.DWD.CurrentArea.TriggerGet()
	}
}

// schedulePreconditioning starts cabin conditioning so it ends at the
// scheduled departure, if the vehicle's area offers it. Matches after
// the departure time get none.
func schedulePreconditioning(d *Depot, v *Vehicle, t *Trip) {
	area := v.DWD.CurrentArea
	if area == nil {
		return
	}
	var spec *ProcessSpec
	for _, p := range area.AvailableProcesses() {
		if p.Kind == KindPrecondition {
			spec = p
			break
		}
	}
	if spec == nil {
		return
	}
	if spec.Filter != nil && !spec.Filter.Match(d.env.Now(), v) {
		return
	}
	untilSTD := t.STD - d.env.Now()
	if untilSTD <= 0 {
		return
	}
	proc := spec.New(d, v)
	if untilSTD > spec.Dur {
		d.env.After(untilSTD-spec.Dur, func() {
			if v.Trip == t && v.DWD.CurrentDepot == d {
				proc.Start()
			}
		})
		return
	}
	// Shorter lead than the full duration: run until departure cancels
	// the rest.
	proc.Start()
}

// triggerUntilFound re-triggers dispatch periodically until the trip has
// a vehicle, enabling departures that require cancelling a process.
func triggerUntilFound(d *Depot, t *Trip, interval int64) {
	if t.PeriodicTriggerScheduled {
		return
	}
	t.PeriodicTriggerScheduled = true
	var loop func()
	loop = func() {
		if t.Vehicle != nil {
			return
		}
		d.env.After(interval, func() {
			if t.Vehicle == nil {
				d.Control.TriggerDispatch()
			}
			loop()
		})
	}
	loop()
}

// DSFirst matches trips and vehicles in store order: the first pending
// vehicle per parking store, then the direct departure buffers.
type DSFirst struct {
	// RetriggerInterval re-runs matching for delayed trips when a
	// cancellable process might free a vehicle; zero disables it.
	RetriggerInterval int64
}

// NewDSFirst builds the strategy; interval zero disables periodic
// retriggering.
func NewDSFirst(retriggerInterval int64) *DSFirst {
	return &DSFirst{RetriggerInterval: retriggerInterval}
}

func (s *DSFirst) Name() string { return "FIRST" }

// SchedulingDelay is zero: trips enter the matching backlog right away.
func (s *DSFirst) SchedulingDelay(*sim.Engine, *Trip) int64 { return 0 }

func (s *DSFirst) Trigger(d *Depot) {
	trips := nextTrips(d)
	if len(trips) == 0 {
		return
	}
	// Step 1: first pending vehicle per parking store.
	for _, t := range trips {
		for _, pg := range d.ParkingAreaGroups {
			for _, store := range pg.Stores {
				v := firstPending(store, t)
				if v == nil {
					continue
				}
				if s.tryAssign(d, v, t) {
					// The situation changed, rematch from the start.
					s.Trigger(d)
					return
				}
			}
		}
	}
	// Step 2: unassigned vehicles in the direct departure buffers.
	for _, t := range trips {
		for _, buf := range d.DirectDepartureAreas {
			for _, v := range buf.Vehicles() {
				if v.Trip == nil && s.tryAssign(d, v, t) {
					s.Trigger(d)
					return
				}
			}
		}
	}
	if d.anyProcessCancellable && s.RetriggerInterval > 0 {
		for _, t := range trips {
			if t.Vehicle == nil && t.STD <= d.env.Now() {
				triggerUntilFound(d, t, s.RetriggerInterval)
			}
		}
	}
}

// firstPending returns the store's first vehicle available for the
// trip: no trip yet, or one departing later.
func firstPending(store Area, t *Trip) *Vehicle {
	var vehicles []*Vehicle
	switch a := store.(type) {
	case *LineArea:
		vehicles = a.VehiclesFromExit()
	default:
		vehicles = store.Vehicles()
		for i, j := 0, len(vehicles)-1; i < j; i, j = i+1, j-1 {
			vehicles[i], vehicles[j] = vehicles[j], vehicles[i]
		}
	}
	for _, v := range vehicles {
		if v.Trip == nil || t.STD < v.Trip.STD {
			return v
		}
	}
	return nil
}

func (s *DSFirst) tryAssign(d *Depot, v *Vehicle, t *Trip) bool {
	urgent := t.Vehicle == nil && t.STD <= d.env.Now()
	vf := dispatchFilter(d, t, urgent)
	if !vf.Match(d.env.Now(), v) {
		return false
	}
	dsAssign(d, v, t)
	return true
}

// DSSmart rates all suitable vehicles per trip with the weighted
// dispatch criteria and assigns the best.
type DSSmart struct {
	// LeadTimeMatch delays matching until this long before departure.
	LeadTimeMatch int64
	// RetriggerInterval as in DSFirst.
	RetriggerInterval int64
}

// NewDSSmart builds the strategy.
func NewDSSmart(leadTimeMatch, retriggerInterval int64) *DSSmart {
	return &DSSmart{LeadTimeMatch: leadTimeMatch, RetriggerInterval: retriggerInterval}
}

func (s *DSSmart) Name() string { return "SMART" }

// SchedulingDelay holds trips back until LeadTimeMatch before departure.
func (s *DSSmart) SchedulingDelay(env *sim.Engine, t *Trip) int64 {
	if t.STD < env.Now() {
		return 0
	}
	if delay := t.STD - env.Now() - s.LeadTimeMatch; delay > 0 {
		return delay
	}
	return 0
}

func (s *DSSmart) Trigger(d *Depot) {
	for _, t := range nextTrips(d) {
		urgent := t.Vehicle == nil && t.STD <= d.env.Now()
		vf := dispatchFilter(d, t, urgent)

		vehicles := suitableVehicles(d, t, vf)
		if len(vehicles) > 0 {
			best := rateVehicles(d, vehicles)
			dsAssign(d, best, t)
			s.Trigger(d)
			return
		}
		if urgent && d.anyProcessCancellable && s.RetriggerInterval > 0 {
			triggerUntilFound(d, t, s.RetriggerInterval)
		}
	}
}

// suitableVehicles collects per parking store the vehicles available for
// the trip and passing the filter; lane areas contribute at most their
// exit-most pending vehicle.
func suitableVehicles(d *Depot, t *Trip, vf *VehicleFilter) []*Vehicle {
	now := d.env.Now()
	var out []*Vehicle
	pending := func(v *Vehicle) bool { return v.Trip == nil || t.STD < v.Trip.STD }
	for _, pg := range d.ParkingAreaGroups {
		for _, store := range pg.Stores {
			if la, ok := store.(*LineArea); ok {
				for _, v := range la.VehiclesFromExit() {
					if pending(v) {
						if vf.Match(now, v) {
							out = append(out, v)
						}
						break
					}
				}
				continue
			}
			for _, v := range store.Vehicles() {
				if pending(v) && vf.Match(now, v) {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

// rateVehicles scores the candidates with the dispatch criteria and
// returns the first best.
func rateVehicles(d *Depot, vehicles []*Vehicle) *Vehicle {
	if len(vehicles) == 1 || len(d.ParkingAreaGroups) == 0 {
		return vehicles[0]
	}
	refGroup := d.ParkingAreaGroups[0]
	values := make([][]float64, len(vehicles))
	for i, v := range vehicles {
		values[i] = dispatchCriteria(d, v, refGroup.MaxPower, refGroup.MaxCapacityLine)
	}
	res, err := rating.WeightedSum(values, rating.DispatchWeights)
	if err != nil {
		d.log.Errorf("dispatch rating failed: %v", err)
		return vehicles[0]
	}
	return vehicles[res.BestIndex]
}

// dispatchCriteria builds the feature vector [buffer, typestack,
// rfd_diff, available_power, empty_slots_exit] for one candidate
// vehicle.
func dispatchCriteria(d *Depot, v *Vehicle, maxPower float64, maxCapacityLine int) []float64 {
	area := v.DWD.CurrentArea
	slot := area.IndexOf(v)

	buffer := 0.0
	if _, ok := area.(*DirectArea); ok {
		buffer = -1
	}

	typestack := 0.0
	if _, ok := area.(*LineArea); ok {
		stack, known := area.Typestack()
		if !known {
			d.log.Errorf("area %s cannot be empty while rating its vehicle", area.Name())
		} else if !stack {
			typestack = 1
		}
	}

	rfdDiff := 0.0
	if la, ok := area.(*LineArea); ok {
		rfdDiff = rating.RfdDiffDispatchValue(maxETCDiff(d, la))
	}

	power := availablePowerValue(area, slot, maxPower)

	emptyExit := 0.0
	if la, ok := area.(*LineArea); ok && maxCapacityLine > 1 {
		emptyExit = float64(la.VacantBlocked()) / float64(maxCapacityLine-1)
	}

	return []float64{buffer, typestack, rfdDiff, power, emptyExit}
}

// maxETCDiff is the worst remaining process time among the lane's
// vehicles, in seconds from now.
func maxETCDiff(d *Depot, la *LineArea) float64 {
	now := d.env.Now()
	chargeProc := la.ChargeProc()
	maxDiff := 0.0
	first := true
	for _, v := range la.Vehicles() {
		var diff float64
		etc := v.DWD.ETCProcesses()
		switch {
		case etc.Known():
			diff = float64(etc.Time - now)
		case etc.Unknown():
			if chargeProc != nil {
				diff = estimateSeconds(chargeProc, v, ciAt(la, la.IndexOf(v)))
			}
		default:
			diff = 0
		}
		if first || diff > maxDiff {
			maxDiff = diff
			first = false
		}
	}
	return maxDiff
}
