package depot

import (
	"fmt"
	"math"
	"sort"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/logger"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/model"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// VehicleCounts gives the number of vehicles per type stationed at each
// depot.
type VehicleCounts map[*Depot]map[*model.VehicleType]int

// Timetable issues vehicle requests for a sorted list of trips at their
// origin depots.
type Timetable struct {
	env *sim.Engine
	log logger.Logger

	// Trips is the base list, sorted by scheduled departure.
	Trips       []*Trip
	TripsIssued []*Trip

	// IntervalCovered is the trip horizon rounded up to full days.
	IntervalCovered int64

	// Repeat re-issues the base list every IntervalCovered seconds,
	// shifted in time, for as long as the simulation runs.
	Repeat bool

	reservations  map[*Depot]map[*model.VehicleType]int
	fullyReserved bool
}

// NewTimetable validates and wraps the trip list.
func NewTimetable(env *sim.Engine, log logger.Logger, trips []*Trip) (*Timetable, error) {
	if len(trips) == 0 {
		return nil, fmt.Errorf("timetable: no trips")
	}
	if !sort.SliceIsSorted(trips, func(i, j int) bool { return trips[i].STD < trips[j].STD }) {
		return nil, fmt.Errorf("timetable: trips must be sorted by departure time")
	}
	for _, t := range trips {
		if t.Origin == nil {
			return nil, fmt.Errorf("timetable: trip %s has no origin depot", t.ID)
		}
		if t.IsCopy {
			return nil, fmt.Errorf("timetable: trip %s is a copy, only originals allowed", t.ID)
		}
	}
	sharp := trips[len(trips)-1].STD - trips[0].STD
	return &Timetable{
		env:             env,
		log:             log,
		Trips:           trips,
		IntervalCovered: int64(float64(secondsPerDay) * math.Ceil(float64(sharp)/float64(secondsPerDay))),
	}, nil
}

// Run issues the vehicle requests at simulation start. Counts are only
// needed when a depot prioritizes its init store and may be nil
// otherwise.
func (tt *Timetable) Run(counts VehicleCounts) {
	if tt.prioInit() {
		tt.reserveTrips(tt.Trips, counts)
	}
	for _, t := range tt.Trips {
		tt.issueRequest(t)
		tt.TripsIssued = append(tt.TripsIssued, t)
	}
	if tt.Repeat && tt.IntervalCovered > 0 {
		tt.scheduleRound(1)
	}
}

// scheduleRound issues day-shifted copies of the base trips at the start
// of the given repetition round and chains the next one.
func (tt *Timetable) scheduleRound(round int) {
	offset := int64(round) * tt.IntervalCovered
	tt.env.After(offset-tt.env.Now(), func() {
		suffix := fmt.Sprintf("_r%d", round)
		for _, base := range tt.Trips {
			c := base.Copy(offset, suffix)
			tt.issueRequest(c)
			tt.TripsIssued = append(tt.TripsIssued, c)
		}
		tt.log.Debugf("timetable: issued round %d, %d trips from %d", round, len(tt.Trips), offset)
		tt.scheduleRound(round + 1)
	})
}

func (tt *Timetable) prioInit() bool {
	for _, t := range tt.Trips {
		if t.Origin.Control.PrioInit {
			return true
		}
	}
	return false
}

// issueRequest asks the origin depot for a matching vehicle. Any further
// selection restrictions belong in the dispatch strategies, not here.
func (tt *Timetable) issueRequest(t *Trip) {
	vf := &VehicleFilter{Names: []FilterName{FilterTripVehicleMatch}, Trip: t}
	now := func() int64 { return tt.env.Now() }
	t.Origin.Control.RequestVehicle(t, func(v *Vehicle) bool { return vf.Match(now(), v) })
}

// reserveTrips marks the first trips, up to the number of matching
// stationed vehicles, to be served from the init store.
func (tt *Timetable) reserveTrips(trips []*Trip, counts VehicleCounts) {
	if tt.fullyReserved {
		return
	}
	if tt.reservations == nil {
		tt.reservations = make(map[*Depot]map[*model.VehicleType]int)
		for d, types := range counts {
			tt.reservations[d] = make(map[*model.VehicleType]int, len(types))
		}
	}
	for _, t := range trips {
		reserved := tt.reservations[t.Origin]
		if reserved == nil {
			continue
		}
		for _, vt := range t.VehicleTypes {
			if reserved[vt] < counts[t.Origin][vt] {
				reserved[vt]++
				t.ReservedForInit = true
				break
			}
		}
	}
	tt.fullyReserved = true
	for d, types := range tt.reservations {
		for vt, n := range types {
			if n < counts[d][vt] {
				tt.fullyReserved = false
			}
		}
	}
}

// VehicleGenerator creates the vehicle fleet at simulation start and
// stages it in the depots' init stores.
type VehicleGenerator struct {
	env *sim.Engine
	log logger.Logger

	// Items holds every generated vehicle.
	Items []*Vehicle

	idCounter map[*model.VehicleType]int
}

// NewVehicleGenerator builds an empty generator.
func NewVehicleGenerator(env *sim.Engine, log logger.Logger) *VehicleGenerator {
	return &VehicleGenerator{env: env, log: log, idCounter: make(map[*model.VehicleType]int)}
}

// Run instantiates the fleet given by counts, stages each vehicle at its
// home depot and derives the per-depot type and group shares used by the
// parking criteria.
func (g *VehicleGenerator) Run(counts VehicleCounts, groups []*model.VehicleTypeGroup) {
	for d, types := range counts {
		total := 0
		for vt, n := range types {
			for i := 0; i < n; i++ {
				g.idCounter[vt]++
				v, err := NewVehicle(g.env, fmt.Sprintf("%s %d", vt.ID, g.idCounter[vt]), vt, d)
				if err != nil {
					g.log.Errorf("vehicle generation for type %s failed: %v", vt.ID, err)
					continue
				}
				g.Items = append(g.Items, v)
				d.AddInitVehicle(v)
			}
			d.TypeCount[vt] = n
			total += n
		}
		for vt, n := range types {
			d.TypeShare[vt] = float64(n) / float64(total)
		}
		for _, vtg := range groups {
			sum := 0
			for _, vt := range vtg.Types {
				sum += types[vt]
			}
			if sum > 0 {
				d.GroupCount[vtg] = sum
				d.GroupShare[vtg] = float64(sum) / float64(total)
			}
		}
		g.checkArrival(d)
	}
}

// checkArrival warns when the first default plan entry cannot hold the
// whole staged fleet at once.
func (g *VehicleGenerator) checkArrival(d *Depot) {
	if d.DefaultPlan == nil || len(d.DefaultPlan.Entries) == 0 {
		return
	}
	first := d.DefaultPlan.Entries[0]
	if cap := entryCapacity(first); d.InitStoreLen() > cap {
		g.log.Warnf("depot %s: first plan entry %s holds %d slots for %d staged vehicles",
			d.ID, first, cap, d.InitStoreLen())
	}
}

func entryCapacity(e PlanEntry) int {
	switch {
	case e.Area != nil:
		return e.Area.Capacity()
	case e.ParkingGroup != nil:
		return e.ParkingGroup.Capacity()
	case e.Group != nil:
		return e.Group.Capacity()
	}
	return 0
}
