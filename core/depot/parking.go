package depot

import (
	"fmt"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/rating"
)

// ParkingStrategy picks the member area an arriving vehicle should park
// on. A nil result means no area can take the vehicle right now.
type ParkingStrategy interface {
	Name() string
	DetermineStore(g *ParkingAreaGroup, v *Vehicle, candidates []Area) Area
}

func parkingStrategyByName(name string) (ParkingStrategy, error) {
	switch name {
	case "", "FIRST":
		return psFirst{}, nil
	case "EVEN":
		return psEven{}, nil
	case "MIXED":
		return psMixed{}, nil
	case "SMART":
		return psSmart{}, nil
	case "SMART2":
		return psSmart2{}, nil
	}
	return nil, fmt.Errorf("unknown parking strategy %q", name)
}

// psFirst fills areas one by one in configuration order.
type psFirst struct{}

func (psFirst) Name() string { return "FIRST" }

func (psFirst) DetermineStore(_ *ParkingAreaGroup, _ *Vehicle, candidates []Area) Area {
	for _, store := range candidates {
		if store.VacantAccessible() > 0 {
			return store
		}
	}
	return nil
}

// psEven levels out area usage for better vehicle availability.
type psEven struct{}

func (psEven) Name() string { return "EVEN" }

func (psEven) DetermineStore(_ *ParkingAreaGroup, _ *Vehicle, candidates []Area) Area {
	var target Area
	for _, store := range candidates {
		if store.VacantAccessible() == 0 {
			continue
		}
		count := store.Count()
		if target == nil || count < target.Count() {
			target = store
			if count == 0 {
				// Cannot get emptier than this.
				break
			}
		}
	}
	return target
}

// psMixed fills areas in rounds: the next area opens once the previous
// one is a quarter full, until all are, then the fill level rises by
// another quarter.
type psMixed struct{}

func (psMixed) Name() string { return "MIXED" }

func (psMixed) DetermineStore(_ *ParkingAreaGroup, _ *Vehicle, candidates []Area) Area {
	for pct := 25; pct <= 100; pct += 25 {
		for _, store := range candidates {
			if store.VacantAccessible() == 0 {
				continue
			}
			if store.Count()*100/store.Capacity() < pct {
				return store
			}
		}
	}
	return nil
}

// psSmart rates lane areas by how well the vehicle would line up behind
// its pending occupants and spills over into direct buffer areas when no
// lane fits cleanly.
type psSmart struct{}

func (psSmart) Name() string { return "SMART" }

func (s psSmart) DetermineStore(g *ParkingAreaGroup, v *Vehicle, candidates []Area) Area {
	var target Area
	bestRating := -1
	for _, store := range candidates {
		r, ok := s.rateStore(store, v)
		if !ok {
			continue
		}
		if bestRating == -1 || r < bestRating {
			bestRating = r
			target = store
		}
	}
	// Fall back to a direct buffer when no lane fits, or when the best
	// lane would park the vehicle behind others.
	if target == nil || bestRating > 0 {
		for _, direct := range g.DirectAreas {
			if !containsArea(candidates, direct) || direct.Vacant() == 0 {
				continue
			}
			return direct
		}
	}
	return target
}

// rateStore scores accessibility of the store for the vehicle: 0 is
// directly accessible, higher means more vehicles in the way. Full
// stores rate not at all.
func (psSmart) rateStore(store Area, v *Vehicle) (int, bool) {
	if store.VacantAccessible() == 0 {
		return 0, false
	}
	la, ok := store.(*LineArea)
	if !ok {
		return 0, true
	}
	var pending []*Vehicle
	for _, it := range la.items {
		if it != nil && it.Trip == nil {
			pending = append(pending, it)
		}
	}
	if len(pending) == 0 {
		return 0, true
	}
	// Front of the lane first.
	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}
	typestack := true
	for _, other := range pending {
		if other.Type == v.Type {
			continue
		}
		if v.Type.Group != nil && v.Type.Group.Contains(other.Type) {
			continue
		}
		typestack = false
		break
	}
	if !typestack {
		return len(pending), true
	}
	// Count pending vehicles with less energy than the newcomer; they
	// should leave first and would be stuck behind it.
	result := 0
	for result < len(pending) && pending[result].Battery.Energy() < v.Battery.Energy() {
		result++
	}
	return result, true
}

func containsArea(stores []Area, a Area) bool {
	for _, s := range stores {
		if s == a {
			return true
		}
	}
	return false
}

// psSmart2 rates the concrete target slot of every candidate area with
// the weighted parking criteria and picks the best.
type psSmart2 struct{}

func (psSmart2) Name() string { return "SMART2" }

func (psSmart2) DetermineStore(g *ParkingAreaGroup, v *Vehicle, candidates []Area) Area {
	var stores []Area
	var values [][]float64
	for _, store := range candidates {
		if store.VacantAccessible() == 0 {
			continue
		}
		slot := nextPutSlot(store)
		if slot < 0 {
			continue
		}
		stores = append(stores, store)
		values = append(values, parkCriteria(store, slot, v, g))
	}
	if len(stores) == 0 {
		return nil
	}
	res, err := rating.WeightedSum(values, rating.ParkWeights)
	if err != nil {
		return nil
	}
	return stores[res.BestIndex]
}

// nextPutSlot is the slot index the vehicle would take on the area.
func nextPutSlot(store Area) int {
	switch a := store.(type) {
	case *LineArea:
		return a.IndexPut()
	case *DirectArea:
		for i, it := range a.items {
			if it == nil {
				return i
			}
		}
	}
	return -1
}

// parkCriteria builds the feature vector [buffer, typestack,
// rfd_diff_pos, rfd_diff_neg, available_power, empty_slots_exit] for
// parking the vehicle at the given slot.
func parkCriteria(store Area, slot int, v *Vehicle, g *ParkingAreaGroup) []float64 {
	buffer := bufferParkValue(store, v)
	typestack := typestackParkValue(store, v)
	diff, hasBlocker := rfdDiffPark(store, slot, v)
	pos, neg := rating.SplitParkDiff(diff, hasBlocker)
	power := availablePowerValue(store, slot, g.MaxPower)
	emptyExit := emptySlotsExitParkValue(store, g.MaxCapacityLine)
	return []float64{buffer, typestack, pos, neg, power, emptyExit}
}

// bufferParkValue favors direct buffer slots while the vehicle's type is
// underrepresented there. Lane areas score 0.
func bufferParkValue(store Area, v *Vehicle) float64 {
	da, ok := store.(*DirectArea)
	if !ok {
		return 0
	}
	d := da.Depot()
	countDirect := 0
	for _, pg := range d.ParkingAreaGroups {
		for _, a := range pg.DirectAreas {
			countDirect += a.Count()
		}
	}
	if countDirect == 0 {
		return 1
	}
	total := d.ParkingCapacityDirect()
	if total == 0 {
		return 0
	}
	pg := da.ParkingGroup()
	if pg == nil {
		return 0
	}
	var count int
	var shareTarget float64
	if v.Type.Group != nil {
		for _, a := range pg.DirectAreas {
			for _, it := range a.items {
				if it != nil && it.Type.Group == v.Type.Group {
					count++
				}
			}
		}
		shareTarget = d.GroupShare[v.Type.Group]
	} else {
		for _, a := range pg.DirectAreas {
			for _, it := range a.items {
				if it != nil && it.Type == v.Type {
					count++
				}
			}
		}
		shareTarget = d.TypeShare[v.Type]
	}
	if float64(count)/float64(total) < shareTarget {
		return 1
	}
	return 0
}

// typestackParkValue rewards lanes the vehicle's type stacks cleanly
// onto and penalizes mixing. Direct areas score 0.
func typestackParkValue(store Area, v *Vehicle) float64 {
	if _, ok := store.(*LineArea); !ok {
		return 0
	}
	stack, known := store.TypestackWith(v)
	switch {
	case !known:
		return 0
	case stack:
		return 1
	default:
		return -1
	}
}

// rfdDiffPark estimates how much later than its blocking neighbour the
// newcomer would be ready for departure. Only lane slots with an
// occupied neighbour toward the exit have a blocker.
func rfdDiffPark(store Area, slot int, v *Vehicle) (float64, bool) {
	la, ok := store.(*LineArea)
	if !ok {
		return 0, false
	}
	chargeProc := la.ChargeProc()
	if chargeProc == nil {
		return 0, false
	}
	blockIdx := slot
	if la.getSide == SideFront {
		blockIdx++
	} else {
		blockIdx--
	}
	if blockIdx < 0 || blockIdx >= la.capacity {
		return 0, false
	}
	blocker := la.items[blockIdx]
	if blocker == nil {
		return 0, false
	}
	durEst := estimateSeconds(chargeProc, v, ciAt(la, slot))
	etc := blocker.DWD.ETCProcesses()
	switch {
	case etc.Known():
		return float64(la.env.Now()) + durEst - float64(etc.Time), true
	case etc.Unknown():
		return durEst - estimateSeconds(chargeProc, blocker, ciAt(la, blockIdx)), true
	default:
		return durEst, true
	}
}

func ciAt(a Area, slot int) *ChargingInterface {
	cis := a.ChargingInterfaces()
	if cis == nil || slot < 0 || slot >= len(cis) {
		return nil
	}
	return cis[slot]
}

func estimateSeconds(spec *ProcessSpec, v *Vehicle, ci *ChargingInterface) float64 {
	est := spec.EstimateDuration(v, ci)
	if est.Known() {
		return float64(est.Time)
	}
	return 0
}

// availablePowerValue normalizes the slot's charge point power by the
// group maximum.
func availablePowerValue(store Area, slot int, maxPower float64) float64 {
	ci := ciAt(store, slot)
	if ci == nil || maxPower == 0 {
		return 0
	}
	return ci.MaxPower / maxPower
}

// emptySlotsExitParkValue penalizes lanes with unused slots between the
// parked vehicles and the exit. Direct areas and two-slot lanes score 0.
func emptySlotsExitParkValue(store Area, maxCapacityLine int) float64 {
	la, ok := store.(*LineArea)
	if !ok {
		return 0
	}
	if la.Capacity() == 2 || maxCapacityLine <= 2 {
		return 0
	}
	return -float64(la.VacantBlocked()) / float64(maxCapacityLine-2)
}
