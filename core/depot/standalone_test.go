package depot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/model"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

func TestNewTimetableValidation(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{})
	t1 := f.departureTrip(t, "t1", 600)
	t2 := f.departureTrip(t, "t2", 900)

	_, err := NewTimetable(f.env, logger.NopLogger{}, nil)
	assert.ErrorContains(t, err, "no trips")

	_, err = NewTimetable(f.env, logger.NopLogger{}, []*Trip{t2, t1})
	assert.ErrorContains(t, err, "sorted")

	orphan, err := NewTrip("orphan", nil, f.d, []*model.VehicleType{f.vt}, 300, 1200, 5)
	require.NoError(t, err)
	_, err = NewTimetable(f.env, logger.NopLogger{}, []*Trip{orphan, t1})
	assert.ErrorContains(t, err, "no origin")

	_, err = NewTimetable(f.env, logger.NopLogger{}, []*Trip{t1, t2.Copy(0, "_c")})
	assert.ErrorContains(t, err, "copy")

	tt, err := NewTimetable(f.env, logger.NopLogger{}, []*Trip{t1, t2})
	require.NoError(t, err)
	assert.Len(t, tt.Trips, 2)
}

func TestTimetableIntervalCovered(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{})

	for _, tc := range []struct {
		name string
		stds []int64
		want int64
	}{
		{"single trip", []int64{600}, 0},
		{"same day", []int64{100, 200}, 86400},
		{"into second day", []int64{0, 90000}, 172800},
		{"exactly one day", []int64{600, 87000}, 86400},
	} {
		t.Run(tc.name, func(t *testing.T) {
			trips := make([]*Trip, len(tc.stds))
			for i, std := range tc.stds {
				trips[i] = f.departureTrip(t, tc.name, std)
			}
			tt, err := NewTimetable(f.env, logger.NopLogger{}, trips)
			require.NoError(t, err)
			assert.Equal(t, tc.want, tt.IntervalCovered)
		})
	}
}

func TestTimetableRunIssuesRequests(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{})
	f.d.AddInitVehicle(f.newVehicle(t, "bus1", 100))
	f.d.AddInitVehicle(f.newVehicle(t, "bus2", 100))

	t1 := f.departureTrip(t, "t1", 600)
	t2 := f.departureTrip(t, "t2", 900)
	tt, err := NewTimetable(f.env, logger.NopLogger{}, []*Trip{t1, t2})
	require.NoError(t, err)

	tt.Run(nil)
	f.env.Run(1000)

	assert.Equal(t, []*Trip{t1, t2}, tt.TripsIssued)
	assert.Equal(t, int64(600), t1.ATD)
	assert.Equal(t, int64(900), t2.ATD)
	assert.Equal(t, 0, f.d.InitStoreLen())
	assert.False(t, t1.ReservedForInit)
}

func TestReserveTripsMarksFirstPerDepotAndType(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{})
	trips := []*Trip{
		f.departureTrip(t, "t1", 600),
		f.departureTrip(t, "t2", 900),
		f.departureTrip(t, "t3", 1200),
	}
	tt, err := NewTimetable(f.env, logger.NopLogger{}, trips)
	require.NoError(t, err)

	counts := VehicleCounts{f.d: {f.vt: 2}}
	tt.reserveTrips(tt.Trips, counts)

	assert.True(t, trips[0].ReservedForInit)
	assert.True(t, trips[1].ReservedForInit)
	assert.False(t, trips[2].ReservedForInit)
	assert.True(t, tt.fullyReserved)

	// A second pass is a no-op once every stationed vehicle has a trip.
	tt.reserveTrips(tt.Trips, counts)
	assert.False(t, trips[2].ReservedForInit)
}

func TestReserveTripsPartialFleet(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{})
	trips := []*Trip{
		f.departureTrip(t, "t1", 600),
		f.departureTrip(t, "t2", 900),
	}
	tt, err := NewTimetable(f.env, logger.NopLogger{}, trips)
	require.NoError(t, err)

	tt.reserveTrips(tt.Trips, VehicleCounts{f.d: {f.vt: 5}})

	assert.True(t, trips[0].ReservedForInit)
	assert.True(t, trips[1].ReservedForInit)
	// Three stationed vehicles still lack a first trip.
	assert.False(t, tt.fullyReserved)
}

func TestTimetableRunServesReservedFromInit(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{})
	f.d.Control.PrioInit = true
	f.d.AddInitVehicle(f.newVehicle(t, "bus1", 100))

	t1 := f.departureTrip(t, "t1", 600)
	tt, err := NewTimetable(f.env, logger.NopLogger{}, []*Trip{t1})
	require.NoError(t, err)

	tt.Run(VehicleCounts{f.d: {f.vt: 1}})
	f.env.Run(700)

	assert.True(t, t1.ReservedForInit)
	require.NotNil(t, t1.Vehicle)
	assert.Equal(t, "bus1", t1.Vehicle.ID)
	assert.Equal(t, int64(600), t1.ATD)
	assert.True(t, t1.Vehicle.SystemEntry)
}

func TestTimetableRepeatIssuesShiftedCopies(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{})
	v := f.arrive(t, "bus1", 90)

	// 600 and 40000 fit one day, so the repeated round starts at 86400.
	t1 := f.departureTrip(t, "t1", 600)
	t2 := f.departureTrip(t, "t2", 40000)
	tt, err := NewTimetable(f.env, logger.NopLogger{}, []*Trip{t1, t2})
	require.NoError(t, err)
	require.Equal(t, int64(86400), tt.IntervalCovered)
	tt.Repeat = true

	tt.Run(nil)
	f.env.Run(89000)

	require.Len(t, tt.TripsIssued, 4)
	r1, r2 := tt.TripsIssued[2], tt.TripsIssued[3]
	assert.Equal(t, "t1_r1", r1.ID)
	assert.True(t, r1.IsCopy)
	assert.Equal(t, int64(87000), r1.STD)
	assert.Equal(t, "t2_r1", r2.ID)
	assert.Equal(t, int64(126400), r2.STD)

	// The single bus works the copied trip like a base one.
	assert.Same(t, v, r1.Vehicle)
	assert.Equal(t, int64(87000), r1.ATD)
	assert.Equal(t, int64(88800), r1.ATA)
	assert.Equal(t, int64(-1), r2.ATD)
	assert.Equal(t, 4, f.d.Checkins)
	assert.Equal(t, 3, f.d.Checkouts)
}

func TestVehicleGeneratorRun(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{})
	g := NewVehicleGenerator(f.env, logger.NopLogger{})
	grp := &model.VehicleTypeGroup{Types: []*model.VehicleType{f.vt}}

	g.Run(VehicleCounts{f.d: {f.vt: 3}}, []*model.VehicleTypeGroup{grp})

	require.Len(t, g.Items, 3)
	ids := make([]string, len(g.Items))
	for i, v := range g.Items {
		ids[i] = v.ID
	}
	assert.ElementsMatch(t, []string{"EN 1", "EN 2", "EN 3"}, ids)

	assert.Equal(t, 3, f.d.InitStoreLen())
	assert.Equal(t, 3, f.d.TypeCount[f.vt])
	assert.InDelta(t, 1.0, f.d.TypeShare[f.vt], 1e-9)
	assert.Equal(t, 3, f.d.GroupCount[grp])
	assert.InDelta(t, 1.0, f.d.GroupShare[grp], 1e-9)

	// Every staged vehicle starts at the configured initial charge.
	for _, v := range g.Items {
		assert.InDelta(t, 90, v.Battery.Energy(), 1e-9)
	}
}
