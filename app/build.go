package app

import (
	"fmt"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/config"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/depot"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/model"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

// World is the fully wired simulation: engine, depots, fleet and
// timetable, ready to run.
type World struct {
	Engine *sim.Engine
	Hub    *depot.EventHub

	Types  map[string]*model.VehicleType
	Groups []*model.VehicleTypeGroup
	Depots map[string]*depot.Depot

	Timetable *depot.Timetable
	Generator *depot.VehicleGenerator
	Counts    depot.VehicleCounts

	// Horizon is the simulated span in seconds.
	Horizon int64
}

// BuildWorld turns a validated scenario into live simulation objects.
func BuildWorld(cfg *config.Config, log logger.Logger) (*World, error) {
	w := &World{
		Engine: sim.NewEngine(),
		Hub:    depot.NewEventHub(),
		Types:  make(map[string]*model.VehicleType, len(cfg.VehicleTypes)),
		Depots: make(map[string]*depot.Depot, len(cfg.Depots)),
		Counts: make(depot.VehicleCounts),
	}

	for _, tc := range cfg.VehicleTypes {
		vt := &model.VehicleType{
			ID: tc.ID, BatteryCapacity: tc.BatteryCapacity,
			SoCMin: tc.SoCMin, SoCMax: tc.SoCMax, SoCInit: tc.SoCInit,
			SoH: tc.SoH, CR: tc.CR,
		}
		if err := vt.Validate(); err != nil {
			return nil, err
		}
		w.Types[vt.ID] = vt
	}
	for _, gc := range cfg.TypeGroups {
		g := &model.VehicleTypeGroup{}
		for _, id := range gc.Types {
			vt := w.Types[id]
			vt.Group = g
			g.Types = append(g.Types, vt)
		}
		w.Groups = append(w.Groups, g)
	}

	allTypes := make([]*model.VehicleType, 0, len(w.Types))
	for _, tc := range cfg.VehicleTypes {
		allTypes = append(allTypes, w.Types[tc.ID])
	}

	for i := range cfg.Depots {
		d, err := w.buildDepot(&cfg.Depots[i], allTypes, log)
		if err != nil {
			return nil, fmt.Errorf("depot %s: %w", cfg.Depots[i].ID, err)
		}
		w.Depots[d.ID] = d
	}

	trips := make([]*depot.Trip, 0, len(cfg.Trips))
	for _, tc := range cfg.Trips {
		vts := make([]*model.VehicleType, 0, len(tc.VehicleTypes))
		for _, id := range tc.VehicleTypes {
			vts = append(vts, w.Types[id])
		}
		tr, err := depot.NewTrip(tc.ID, w.Depots[tc.Origin], w.Depots[tc.Destination], vts, tc.STD, tc.STA, tc.Distance)
		if err != nil {
			return nil, err
		}
		tr.LineName = tc.Line
		if tc.StartSoC != 0 || tc.EndSoC != 0 {
			if err := tr.SetSoCProfile(tc.StartSoC, tc.EndSoC, tc.ChargeOnTrack); err != nil {
				return nil, err
			}
		}
		trips = append(trips, tr)
	}
	tt, err := depot.NewTimetable(w.Engine, log, trips)
	if err != nil {
		return nil, err
	}
	tt.Repeat = cfg.Simulation.RepeatTrips
	w.Timetable = tt

	w.Generator = depot.NewVehicleGenerator(w.Engine, log)
	for _, fc := range cfg.Fleet {
		d := w.Depots[fc.Depot]
		if w.Counts[d] == nil {
			w.Counts[d] = make(map[*model.VehicleType]int)
		}
		w.Counts[d][w.Types[fc.VehicleType]] += fc.Count
	}

	w.Horizon = cfg.Simulation.Horizon(tt.IntervalCovered)
	return w, nil
}

func (w *World) buildDepot(dc *config.DepotConfig, allTypes []*model.VehicleType, log logger.Logger) (*depot.Depot, error) {
	env := w.Engine
	d := depot.NewDepot(env, log, w.Hub, dc.ID)
	d.Control.PrioInit = dc.PrioInit
	d.Control.LeadTimeMatch = dc.Dispatch.LeadTimeMatch
	d.Consumption = &depot.ConsumptionConfig{
		Mode:          depot.ConsumptionMode(dc.Consumption.Mode),
		EnergyReserve: dc.Consumption.EnergyReserve,
	}
	switch dc.Dispatch.Strategy {
	case "SMART":
		d.Dispatch = depot.NewDSSmart(dc.Dispatch.LeadTimeMatch, dc.Dispatch.RetriggerInterval)
	default:
		d.Dispatch = depot.NewDSFirst(dc.Dispatch.RetriggerInterval)
	}

	for _, rc := range dc.Resources {
		r, err := depot.NewResource(env, log, rc.Name, rc.Capacity)
		if err != nil {
			return nil, err
		}
		d.Resources[rc.Name] = r
	}
	for _, sc := range dc.Switches {
		breaks := make([]depot.BreakWindow, 0, len(sc.Windows))
		for _, wnd := range sc.Windows {
			breaks = append(breaks, depot.BreakWindow{Start: wnd.Start, End: wnd.End})
		}
		sw, err := depot.NewResourceSwitch(env, log, d, sc.Name, d.Resources[sc.Resource], breaks, sc.Strength, sc.Preempt, sc.Resume)
		if err != nil {
			return nil, err
		}
		d.Switches = append(d.Switches, sw)
	}

	for _, pc := range dc.Processes {
		spec := &depot.ProcessSpec{
			Name:                   pc.Name,
			Kind:                   depot.ProcessKind(pc.Kind),
			Dur:                    pc.Dur,
			Mandatory:              pc.Mandatory,
			RequestImmediately:     pc.RequestImmediately,
			CancellableForDispatch: pc.CancellableForDispatch,
			ResourcePriority:       pc.ResourcePriority,
			Preempt:                pc.Preempt,
			Power:                  pc.Power,
			Efficiency:             pc.Efficiency,
			SoCTarget:              pc.SoCTarget,
			SoCTargetMax:           pc.SoCTargetMax,
			Precision:              pc.Precision,
		}
		for _, rn := range pc.Resources {
			spec.Resources = append(spec.Resources, d.Resources[rn])
		}
		for _, st := range pc.Steps {
			spec.Steps = append(spec.Steps, depot.ChargeStep{SoC: st.SoC, Power: st.Power})
		}
		if spec.Kind == depot.KindChargeEquationSteps {
			if pc.Curve == "exponential" {
				spec.PowerFuncSoC = depot.ExponentialPower(pc.CurveThreshold)
			} else {
				spec.PowerFuncSoC = taperedPower(pc.CurveThreshold)
			}
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		d.Processes[pc.Name] = spec
	}

	for _, ac := range dc.Areas {
		procs := make([]*depot.ProcessSpec, 0, len(ac.Processes))
		for _, pn := range ac.Processes {
			procs = append(procs, d.Processes[pn])
		}
		var entry *depot.VehicleFilter
		if len(ac.EntryTypes) > 0 {
			entry = &depot.VehicleFilter{
				Names:        []depot.FilterName{depot.FilterVehicleType},
				VehicleTypes: w.resolveTypes(ac.EntryTypes),
			}
		}
		var cis []*depot.ChargingInterface
		if ac.ChargePower > 0 {
			cis = make([]*depot.ChargingInterface, ac.Capacity)
			for i := range cis {
				ci, err := depot.NewChargingInterface(env, log, fmt.Sprintf("%s-%s-ci%d", dc.ID, ac.Name, i+1), ac.ChargePower, d)
				if err != nil {
					return nil, err
				}
				cis[i] = ci
			}
		}
		var (
			a   depot.Area
			err error
		)
		if ac.Kind == "line" {
			a, err = depot.NewLineArea(env, log, d, ac.Name, ac.Capacity, ac.Issink,
				sideFromName(ac.PutSide), sideFromName(ac.GetSide), entry, procs, cis)
		} else {
			a, err = depot.NewDirectArea(env, log, d, ac.Name, ac.Capacity, ac.Issink, entry, procs, cis)
		}
		if err != nil {
			return nil, err
		}
		d.Areas[ac.Name] = a
	}

	parkingGroups := make(map[string]*depot.ParkingAreaGroup, len(dc.ParkingGroups))
	for _, gc := range dc.ParkingGroups {
		stores := make([]depot.Area, 0, len(gc.Areas))
		for _, an := range gc.Areas {
			stores = append(stores, d.Areas[an])
		}
		types := allTypes
		if len(gc.Types) > 0 {
			types = w.resolveTypes(gc.Types)
		}
		pg, err := depot.NewParkingAreaGroup(env, log, gc.Name, stores, types, gc.Strategy)
		if err != nil {
			return nil, err
		}
		d.ParkingAreaGroups = append(d.ParkingAreaGroups, pg)
		parkingGroups[gc.Name] = pg
	}

	entries := func(names []string) []depot.PlanEntry {
		out := make([]depot.PlanEntry, 0, len(names))
		for _, n := range names {
			if pg, ok := parkingGroups[n]; ok {
				out = append(out, depot.PlanEntry{ParkingGroup: pg})
			} else {
				out = append(out, depot.PlanEntry{Area: d.Areas[n]})
			}
		}
		return out
	}
	d.DefaultPlan = &depot.ActivityPlan{Name: "default", Entries: entries(dc.Plan.Default)}
	for i, spc := range dc.Plan.Specific {
		filter := &depot.VehicleFilter{
			ServiceNeedTripTime: spc.ServiceNeedTripTime,
			ServiceNeedElapsed:  spc.ServiceNeedElapsed,
		}
		for _, n := range spc.FilterNames {
			filter.Names = append(filter.Names, depot.FilterName(n))
		}
		if len(spc.VehicleTypes) > 0 {
			filter.VehicleTypes = w.resolveTypes(spc.VehicleTypes)
		}
		d.SpecificPlans = append(d.SpecificPlans, &depot.SpecificPlan{
			ActivityPlan: depot.ActivityPlan{Name: fmt.Sprintf("specific-%d", i+1), Entries: entries(spc.Entries)},
			Filter:       filter,
		})
	}

	if err := d.Finalize(allTypes); err != nil {
		return nil, err
	}
	return d, nil
}

func (w *World) resolveTypes(ids []string) []*model.VehicleType {
	out := make([]*model.VehicleType, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.Types[id])
	}
	return out
}

// taperedPower approximates a CC-CV charge curve: full power up to the
// threshold SoC, then a linear taper down to 10 % of the limit at full
// charge.
func taperedPower(threshold float64) depot.PowerFunc {
	return func(soc, maxPower, _ float64) float64 {
		if soc <= threshold {
			return maxPower
		}
		frac := (soc - threshold) / (1 - threshold)
		return maxPower * (1 - 0.9*frac)
	}
}

func sideFromName(s string) depot.Side {
	if s == "front" {
		return depot.SideFront
	}
	return depot.SideBack
}
