package depot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/model"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

// testVehicleType is a 100 kWh bus delivered at 90% charge, consuming
// 1 kWh/km.
func testVehicleType() *model.VehicleType {
	return &model.VehicleType{
		ID: "EN", BatteryCapacity: 100,
		SoCMin: 0.05, SoCMax: 1, SoCInit: 0.9, SoH: 1,
		CR: 1,
	}
}

type fixtureOpts struct {
	// directSlots and lineSlots size the parking areas; zero omits the
	// area. Default is four direct slots.
	directSlots int
	lineSlots   int
	// chargePower is the power per charging interface, 30 kW by
	// default.
	chargePower float64
	// strategy selects the parking strategy, FIRST by default.
	strategy string
	// dispatch overrides the default FIRST dispatch when set.
	dispatch DispatchStrategy
	// noCharge leaves the areas without a charging process.
	noCharge bool
}

type depotFixture struct {
	env *sim.Engine
	hub *EventHub
	d   *Depot
	vt  *model.VehicleType

	charge  *ProcessSpec
	parking *ParkingAreaGroup
	direct  *DirectArea
	line    *LineArea
}

// newDepotFixture wires a minimal single-depot world: one parking group
// of sink areas with a charge point per slot and a mandatory charging
// process.
func newDepotFixture(t *testing.T, opts fixtureOpts) *depotFixture {
	t.Helper()
	if opts.directSlots == 0 && opts.lineSlots == 0 {
		opts.directSlots = 4
	}
	if opts.chargePower == 0 {
		opts.chargePower = 30
	}

	env := sim.NewEngine()
	log := logger.NopLogger{}
	hub := NewEventHub()
	d := NewDepot(env, log, hub, "depot1")
	vt := testVehicleType()

	f := &depotFixture{env: env, hub: hub, d: d, vt: vt}

	var procs []*ProcessSpec
	if !opts.noCharge {
		f.charge = &ProcessSpec{
			Name: "charge", Kind: KindCharge,
			Power: opts.chargePower, Efficiency: 1, SoCTargetMax: true,
			Mandatory: true, RequestImmediately: true,
			CancellableForDispatch: true,
		}
		require.NoError(t, f.charge.Validate())
		d.Processes[f.charge.Name] = f.charge
		procs = []*ProcessSpec{f.charge}
	}

	var stores []Area
	if opts.directSlots > 0 {
		cis := f.newChargePoints(t, "d", opts.directSlots, opts.chargePower)
		a, err := NewDirectArea(env, log, d, "stalls", opts.directSlots, true, nil, procs, cis)
		require.NoError(t, err)
		d.Areas[a.Name()] = a
		f.direct = a
		stores = append(stores, a)
	}
	if opts.lineSlots > 0 {
		cis := f.newChargePoints(t, "l", opts.lineSlots, opts.chargePower)
		a, err := NewLineArea(env, log, d, "lane", opts.lineSlots, true, SideBack, SideFront, nil, procs, cis)
		require.NoError(t, err)
		d.Areas[a.Name()] = a
		f.line = a
		stores = append(stores, a)
	}

	types := []*model.VehicleType{vt}
	pg, err := NewParkingAreaGroup(env, log, "parking", stores, types, opts.strategy)
	require.NoError(t, err)
	d.ParkingAreaGroups = append(d.ParkingAreaGroups, pg)
	f.parking = pg

	d.DefaultPlan = &ActivityPlan{Name: "default", Entries: []PlanEntry{{ParkingGroup: pg}}}
	d.Consumption = &ConsumptionConfig{Mode: ConsumptionDistance}
	d.Dispatch = opts.dispatch

	require.NoError(t, d.Finalize(types))
	return f
}

func (f *depotFixture) newChargePoints(t *testing.T, prefix string, n int, power float64) []*ChargingInterface {
	t.Helper()
	cis := make([]*ChargingInterface, n)
	for i := range cis {
		ci, err := NewChargingInterface(f.env, logger.NopLogger{}, fmt.Sprintf("ci_%s%d", prefix, i), power, f.d)
		require.NoError(t, err)
		cis[i] = ci
	}
	return cis
}

// newVehicle builds a vehicle of the fixture's type holding the given
// energy.
func (f *depotFixture) newVehicle(t *testing.T, id string, energy float64) *Vehicle {
	t.Helper()
	v, err := NewVehicle(f.env, id, f.vt, f.d)
	require.NoError(t, err)
	v.Battery.SetEnergy(energy)
	return v
}

// arrive checks a vehicle in as if it just finished a trip into the
// depot.
func (f *depotFixture) arrive(t *testing.T, id string, energy float64) *Vehicle {
	t.Helper()
	v := f.newVehicle(t, id, energy)
	now := f.env.Now()
	trip, err := NewTrip("in_"+id, nil, f.d, []*model.VehicleType{f.vt}, now-3600, now, 20)
	require.NoError(t, err)
	v.SystemEntry = true
	v.Trip = trip
	v.TripAtDeparture = trip
	f.d.CheckIn(v)
	return v
}

// departureTrip builds a round trip leaving and re-entering the fixture
// depot.
func (f *depotFixture) departureTrip(t *testing.T, id string, std int64) *Trip {
	t.Helper()
	trip, err := NewTrip(id, f.d, f.d, []*model.VehicleType{f.vt}, std, std+1800, 10)
	require.NoError(t, err)
	return trip
}

// requestTrip issues the trip's vehicle request the way the timetable
// does.
func (f *depotFixture) requestTrip(trip *Trip) {
	vf := &VehicleFilter{Names: []FilterName{FilterTripVehicleMatch}, Trip: trip}
	f.d.Control.RequestVehicle(trip, func(v *Vehicle) bool { return vf.Match(f.env.Now(), v) })
}
