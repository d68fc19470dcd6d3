package depot

import (
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/logger"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// DepotControl moves vehicles through the depot: it checks arrivals in,
// routes them along their activity plan, runs the processes of each stop
// and checks them out onto departing trips.
type DepotControl struct {
	depot *Depot
	env   *sim.Engine
	log   logger.Logger

	// LeadTimeMatch is how long before scheduled departure dispatch is
	// nudged for a still unmatched trip.
	LeadTimeMatch int64
	// PrioInit serves vehicle requests from the init store before the
	// departure areas, used to ramp up a fleet from scratch.
	PrioInit bool
}

func newDepotControl(d *Depot) *DepotControl {
	return &DepotControl{depot: d, env: d.env, log: d.log}
}

// CheckIn books an arriving vehicle into the depot and starts its way
// along the activity plan.
func (c *DepotControl) CheckIn(v *Vehicle) {
	d := c.depot
	if v.TripAtDeparture != v.Trip {
		c.log.Errorf("vehicle %s: arrival trip %s differs from departure trip", v.ID, v.Trip.ID)
	}
	c.log.Debugf("vehicle %s checking in at %s, energy %.1f kWh", v.ID, d.ID, v.Battery.Energy())

	v.DWD.CurrentDepot = d
	d.Count++
	if d.Count > d.MaxCount {
		d.MaxCount = d.Count
	}
	c.assignPlan(v)

	trip := v.Trip
	d.removePendingArrival(trip)
	trip.ATA = c.env.Now()
	trip.arrived = true
	v.FinishedTrips = append(v.FinishedTrips, trip)
	v.publishEvent(d, events.VehicleArrived, trip.ArrivalDelay())
	v.Trip = nil

	c.proceed(v)
	d.Checkins++
}

// assignPlan picks the first specific plan matching the vehicle, falling
// back to the default plan.
func (c *DepotControl) assignPlan(v *Vehicle) {
	now := c.env.Now()
	for _, sp := range c.depot.SpecificPlans {
		if sp.Filter != nil && sp.Filter.Match(now, v) {
			v.DWD.Plan = append([]PlanEntry(nil), sp.Entries...)
			return
		}
	}
	v.DWD.Plan = append([]PlanEntry(nil), c.depot.DefaultPlan.Entries...)
}

// proceed moves the vehicle toward the next plan entry. Once the vehicle
// sits at a sink it stays there ready for departure.
func (c *DepotControl) proceed(v *Vehicle) {
	current := v.DWD.CurrentArea
	atSink := current != nil && current.IsSink()
	if len(v.DWD.Plan) > 0 && !atSink {
		entry := v.DWD.Plan[0]
		v.DWD.Plan = v.DWD.Plan[1:]
		switch {
		case entry.ParkingGroup != nil:
			c.proceedGroup(v, current, &entry.ParkingGroup.AreaGroup, entry.ParkingGroup)
		case entry.Group != nil:
			c.proceedGroup(v, current, entry.Group, nil)
		default:
			c.proceedArea(v, current, entry.Area)
		}
		return
	}
	v.DWD.Plan = nil
	if current != nil {
		current.TriggerGet()
	}
	c.TriggerDispatch()
}

// proceedArea calls at a single area: when entry is permitted and a
// process is needed the vehicle waits for a slot, moves over and runs
// its processes; otherwise it skips to the next plan entry.
func (c *DepotControl) proceedArea(v *Vehicle, current Area, next Area) {
	now := c.env.Now()
	if f := next.EntryFilter(); f != nil && !f.Match(now, v) {
		c.proceed(v)
		return
	}
	needs := c.processNeeds(v, next)
	if len(needs) == 0 {
		c.proceed(v)
		return
	}
	v.DWD.OnHold = true
	grp := &RequestGroup{}
	next.RequestPut(v, grp, func(area Area) {
		c.leaveAndRun(v, current, area, needs)
	})
}

// proceedGroup calls at an area group, letting the group (or its parking
// strategy) pick among the members the vehicle has both permission and a
// process need for.
func (c *DepotControl) proceedGroup(v *Vehicle, current Area, g *AreaGroup, pg *ParkingAreaGroup) {
	now := c.env.Now()
	needsByStore := make(map[Area][]*ProcessSpec, len(g.Stores))
	var selection []Area
	anyPermitted := false
	for _, store := range g.Stores {
		if f := store.EntryFilter(); f != nil && !f.Match(now, v) {
			continue
		}
		anyPermitted = true
		needs := c.processNeeds(v, store)
		if len(needs) == 0 {
			continue
		}
		needsByStore[store] = needs
		selection = append(selection, store)
	}
	if !anyPermitted || len(selection) == 0 {
		c.proceed(v)
		return
	}
	v.DWD.OnHold = true
	reqTime := c.env.Now()
	onto := func(area Area) {
		if wait := c.env.Now() - reqTime; wait > 0 && current != nil {
			c.log.Warnf("vehicle %s waited %ds for a slot in group %s", v.ID, wait, g.ID)
		}
		c.leaveAndRun(v, current, area, needsByStore[area])
	}
	if pg != nil {
		pg.Put(v, selection, onto)
	} else {
		g.Put(v, selection, onto)
	}
}

// leaveAndRun finishes a move: take the vehicle out of its previous area
// and start the requested processes at the new one.
func (c *DepotControl) leaveAndRun(v *Vehicle, from Area, to Area, needs []*ProcessSpec) {
	if from != nil {
		match := func(it *Vehicle) bool { return it == v }
		if from.TryGet(match) == nil {
			// Blocked in a lane behind other vehicles; processes start
			// once the slot clears.
			from.RequestGet(match, &RequestGroup{}, func(*Vehicle) {
				c.runProcesses(v, needs)
			})
			return
		}
	}
	c.runProcesses(v, needs)
}

// processNeeds lists the processes the vehicle would request at the
// area.
func (c *DepotControl) processNeeds(v *Vehicle, area Area) []*ProcessSpec {
	now := c.env.Now()
	var needs []*ProcessSpec
	for _, spec := range area.AvailableProcesses() {
		if spec.Needed(now, v) {
			needs = append(needs, spec)
		}
	}
	return needs
}

// runProcesses starts all requested processes simultaneously and
// proceeds once every one of them has finished.
func (c *DepotControl) runProcesses(v *Vehicle, specs []*ProcessSpec) {
	v.DWD.AnyActiveProcesses = true
	v.DWD.OnHold = false

	remaining := len(specs)
	if remaining == 0 {
		v.DWD.AnyActiveProcesses = false
		c.proceed(v)
		return
	}
	procs := make([]Process, 0, len(specs))
	for _, spec := range specs {
		procs = append(procs, spec.New(c.depot, v))
	}
	for _, p := range procs {
		p.OnFinished(func() {
			remaining--
			if remaining == 0 {
				v.DWD.AnyActiveProcesses = false
				c.proceed(v)
			}
		})
	}
	for _, p := range procs {
		p.Start()
	}
}

// TriggerDispatch runs the depot's dispatch strategy.
func (c *DepotControl) TriggerDispatch() {
	if c.depot.Dispatch != nil {
		c.depot.Dispatch.Trigger(c.depot)
	}
}

// RequestVehicle schedules serving the trip's vehicle request at its
// scheduled departure.
func (c *DepotControl) RequestVehicle(t *Trip, filter func(*Vehicle) bool) {
	if c.PrioInit {
		c.processRequestPrioInit(t, filter)
	} else {
		c.processRequestPrioParking(t, filter)
	}
}

// registerForDispatch makes the trip visible to dispatch and schedules
// the matching and due-departure nudges.
func (c *DepotControl) registerForDispatch(t *Trip) {
	d := c.depot
	d.PendingDepartures = append(d.PendingDepartures, t)
	delay := d.Dispatch.SchedulingDelay(c.env, t)
	c.env.After(delay, func() {
		d.UnassignedTrips = append(d.UnassignedTrips, t)
		sortTripsBySTD(d.UnassignedTrips)
	})
	t.notifyDueDeparture(c.env, d, t.STD-c.LeadTimeMatch)
	t.notifyDueDeparture(c.env, d, t.STD)
}

// processRequestPrioParking serves the request from the departure areas
// at departure time, falling back to the init store before waiting.
func (c *DepotControl) processRequestPrioParking(t *Trip, filter func(*Vehicle) bool) {
	d := c.depot
	c.registerForDispatch(t)
	wait := t.STD - c.env.Now()
	if wait < 0 {
		wait = 0
	}
	c.env.After(wait, func() {
		// One extra scheduling round so same-instant arrivals and
		// cancellations settle first.
		c.env.After(0, func() {
			c.TriggerDispatch()
			if v := d.DepartureAreas.TryGet(filter); v != nil {
				c.depart(v, t)
				return
			}
			if v := d.takeInit(filter); v != nil {
				d.removeUnassigned(t)
				v.SystemEntry = true
				c.log.Debugf("trip %s served from init store of %s, %d left", t.ID, d.ID, len(d.initStore))
				c.depart(v, t)
				return
			}
			d.DepartureAreas.RequestGet(filter, func(v *Vehicle) {
				c.depart(v, t)
			})
		})
	})
}

// processRequestPrioInit serves reserved trips straight from the init
// store at departure time; other trips go through the departure areas.
func (c *DepotControl) processRequestPrioInit(t *Trip, filter func(*Vehicle) bool) {
	d := c.depot
	if !t.ReservedForInit {
		c.registerForDispatch(t)
	}
	wait := t.STD - c.env.Now()
	if wait < 0 {
		wait = 0
	}
	c.env.After(wait, func() {
		if t.ReservedForInit {
			v := d.takeInit(filter)
			if v == nil {
				c.log.Errorf("trip %s reserved for init but no staged vehicle matches", t.ID)
				return
			}
			v.SystemEntry = true
			c.depart(v, t)
			return
		}
		if v := d.DepartureAreas.TryGet(filter); v != nil {
			c.depart(v, t)
			return
		}
		d.DepartureAreas.RequestGet(filter, func(v *Vehicle) {
			c.depart(v, t)
		})
	})
}

// depart links the trip and vehicle and checks the vehicle out.
func (c *DepotControl) depart(v *Vehicle, t *Trip) {
	v.Trip = t
	t.Vehicle = v
	v.TripAtDeparture = t
	c.Checkout(v)
}

// Checkout books the vehicle out of the depot, starts the trip drive and
// cancels leftover preconditioning.
func (c *DepotControl) Checkout(v *Vehicle) {
	d := c.depot
	now := c.env.Now()
	trip := v.Trip

	v.DWD.Plan = nil
	if !trip.ReservedForInit {
		d.removePendingDeparture(trip)
	}
	if len(v.FinishedTrips) > 0 {
		if v.DWD.CurrentArea == nil {
			c.log.Errorf("vehicle %s checking out without a current area", v.ID)
		}
		trip.VehicleFrom = v.DWD.CurrentArea
		v.DWD.PreviousArea = v.DWD.CurrentArea
		v.DWD.CurrentArea = nil
		d.Count--
		d.Checkouts++
	}
	v.DWD.CurrentDepot = nil

	trip.ATD = now
	trip.departed = true
	trip.ETA = now + trip.Duration()
	trip.Destination.PendingArrivals = append(trip.Destination.PendingArrivals, trip)
	sortTripsByETA(trip.Destination.PendingArrivals)

	v.publishEvent(d, events.VehicleDeparted, trip.DepartureDelay(now))
	if trip.DepartureDelay(now) > 0 {
		v.publishEvent(d, events.VehicleDelayed, trip.DepartureDelay(now))
	}

	v.Drive(c.env, d.Consumption)
	c.afterCheckout(v)
	c.TriggerDispatch()
}

// afterCheckout cancels preconditioning still running at departure and
// verifies nothing else survived the checkout.
func (c *DepotControl) afterCheckout(v *Vehicle) {
	c.env.After(0, func() {
		active := append([]Process(nil), v.DWD.ActiveProcesses...)
		for _, p := range active {
			if p.Kind() == KindPrecondition {
				p.Cancel()
			}
		}
		if len(v.DWD.ActiveProcesses) > 0 {
			c.log.Errorf("vehicle %s departed with %d active processes", v.ID, len(v.DWD.ActiveProcesses))
		}
	})
}
