package depot

import (
	"fmt"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/logger"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/model"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// AreaGroup bundles areas so a vehicle can be routed to whichever member
// accepts it first.
type AreaGroup struct {
	ID     string
	Stores []Area

	env *sim.Engine
	log logger.Logger

	// StoresByVehicleType maps each type to the member areas whose
	// entry filter admits it.
	StoresByVehicleType map[*model.VehicleType][]Area
	DirectAreas         []*DirectArea
	LineAreas           []*LineArea
	MaxCapacityLine     int
	CapacityDirect      int
	CapacityLine        int
}

// NewAreaGroup builds a group over the given areas.
func NewAreaGroup(env *sim.Engine, log logger.Logger, id string, stores []Area, types []*model.VehicleType) (*AreaGroup, error) {
	if len(stores) == 0 {
		return nil, fmt.Errorf("area group %s: at least one area required", id)
	}
	g := &AreaGroup{ID: id, Stores: stores, env: env, log: log}
	g.updateDefaults(types)
	return g, nil
}

// updateDefaults derives the lookup tables from the member areas.
func (g *AreaGroup) updateDefaults(types []*model.VehicleType) {
	g.StoresByVehicleType = make(map[*model.VehicleType][]Area)
	g.DirectAreas = g.DirectAreas[:0]
	g.LineAreas = g.LineAreas[:0]
	g.MaxCapacityLine, g.CapacityDirect, g.CapacityLine = 0, 0, 0

	for _, store := range g.Stores {
		for _, vt := range types {
			if entryAdmits(store.EntryFilter(), vt) {
				g.StoresByVehicleType[vt] = append(g.StoresByVehicleType[vt], store)
			}
		}
		switch a := store.(type) {
		case *DirectArea:
			g.DirectAreas = append(g.DirectAreas, a)
			g.CapacityDirect += a.Capacity()
		case *LineArea:
			g.LineAreas = append(g.LineAreas, a)
			g.CapacityLine += a.Capacity()
			if a.Capacity() > g.MaxCapacityLine {
				g.MaxCapacityLine = a.Capacity()
			}
		}
	}
}

// entryAdmits reports whether an entry filter lets the type pass; only
// the vehicle_type criterion restricts by type.
func entryAdmits(f *VehicleFilter, vt *model.VehicleType) bool {
	if f == nil {
		return true
	}
	for _, name := range f.Names {
		if name != FilterVehicleType {
			continue
		}
		for _, cand := range f.VehicleTypes {
			if cand == vt {
				return true
			}
		}
		return false
	}
	return true
}

// Capacity is the summed capacity of all member areas.
func (g *AreaGroup) Capacity() int {
	total := 0
	for _, s := range g.Stores {
		total += s.Capacity()
	}
	return total
}

// Count is the number of vehicles across all member areas.
func (g *AreaGroup) Count() int {
	total := 0
	for _, s := range g.Stores {
		total += s.Count()
	}
	return total
}

// Put routes the vehicle to the first member that can take it, waiting
// for a slot if all are full. With a non-nil selection only those
// members are considered.
func (g *AreaGroup) Put(v *Vehicle, selection []Area, onSuccess func(Area)) {
	stores := g.Stores
	if selection != nil {
		stores = selection
	}
	// One shared group: the first successful put retires the rest.
	grp := &RequestGroup{}
	for _, store := range stores {
		store.RequestPut(v, grp, onSuccess)
		if grp.Done() {
			return
		}
	}
}

// TryGet removes the first accessible vehicle matching the filter from
// any member area.
func (g *AreaGroup) TryGet(filter func(*Vehicle) bool) *Vehicle {
	for _, store := range g.Stores {
		if v := store.TryGet(filter); v != nil {
			return v
		}
	}
	return nil
}

// RequestGet files waiting gets on all member areas; the first match
// wins and retires the rest.
func (g *AreaGroup) RequestGet(filter func(*Vehicle) bool, onSuccess func(*Vehicle)) []*StoreRequest {
	grp := &RequestGroup{}
	reqs := make([]*StoreRequest, 0, len(g.Stores))
	for _, store := range g.Stores {
		reqs = append(reqs, store.RequestGet(filter, grp, onSuccess))
		if grp.Done() {
			break
		}
	}
	return reqs
}

// TriggerGet re-evaluates waiting gets on all member areas.
func (g *AreaGroup) TriggerGet() {
	for _, store := range g.Stores {
		store.TriggerGet()
	}
}

// ParkingAreaGroup routes arriving vehicles to parking slots using a
// configurable strategy. All member areas must be sinks.
type ParkingAreaGroup struct {
	AreaGroup
	Strategy ParkingStrategy

	// MaxPower and MinPower are the extrema over all member charge
	// points, feeding slot ratings.
	MaxPower float64
	MinPower float64
}

// NewParkingAreaGroup builds a parking group with the named strategy.
func NewParkingAreaGroup(env *sim.Engine, log logger.Logger, id string, stores []Area, types []*model.VehicleType, strategy string) (*ParkingAreaGroup, error) {
	for _, s := range stores {
		if !s.IsSink() {
			return nil, fmt.Errorf("parking area group %s: area %s is not a sink", id, s.Name())
		}
	}
	base, err := NewAreaGroup(env, log, id, stores, types)
	if err != nil {
		return nil, err
	}
	strat, err := parkingStrategyByName(strategy)
	if err != nil {
		return nil, fmt.Errorf("parking area group %s: %w", id, err)
	}
	g := &ParkingAreaGroup{AreaGroup: *base, Strategy: strat}
	for _, s := range stores {
		if sb, ok := s.(interface{ setParkingGroup(*ParkingAreaGroup) }); ok {
			sb.setParkingGroup(g)
		}
	}
	g.updatePowerExtrema()
	return g, nil
}

func (a *baseArea) setParkingGroup(g *ParkingAreaGroup) { a.group = g }

// updatePowerExtrema recomputes the charge point power bounds.
func (g *ParkingAreaGroup) updatePowerExtrema() {
	g.MaxPower, g.MinPower = 0, 0
	first := true
	for _, s := range g.Stores {
		for _, ci := range s.ChargingInterfaces() {
			if ci == nil {
				continue
			}
			if first {
				g.MaxPower, g.MinPower = ci.MaxPower, ci.MaxPower
				first = false
				continue
			}
			if ci.MaxPower > g.MaxPower {
				g.MaxPower = ci.MaxPower
			}
			if ci.MaxPower < g.MinPower {
				g.MinPower = ci.MaxPower
			}
		}
	}
}

// Put parks the vehicle on the area picked by the strategy; when the
// strategy has no pick the vehicle takes the first slot that frees up.
func (g *ParkingAreaGroup) Put(v *Vehicle, selection []Area, onSuccess func(Area)) {
	stores := g.Stores
	if selection != nil {
		stores = selection
	}
	if target := g.Strategy.DetermineStore(g, v, stores); target != nil {
		if target.TryPut(v) {
			if onSuccess != nil {
				onSuccess(target)
			}
			return
		}
		g.log.Warnf("parking group %s: strategy %s picked full area %s", g.ID, g.Strategy.Name(), target.Name())
	}
	g.AreaGroup.Put(v, stores, onSuccess)
}
