package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/config"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

const scenarioYAML = `vehicle_types:
  - id: "EN"
    battery_capacity: 100
    soc_min: 0.05
    soc_max: 1
    soc_init: 0.9
    soh: 1
    cr: 1
depots:
  - id: "depot1"
    prio_init: true
    consumption:
      mode: "CR_distance_based"
    dispatch:
      strategy: "FIRST"
    processes:
      - name: "charge"
        kind: "charge"
        power: 90
        mandatory: true
        request_immediately: true
        cancellable_for_dispatch: true
    areas:
      - name: "charge_line"
        kind: "line"
        capacity: 4
        issink: true
        charge_power: 90
        put_side: "back"
        get_side: "front"
        processes: ["charge"]
    parking_groups:
      - name: "parking"
        areas: ["charge_line"]
        strategy: "FIRST"
    plan:
      default: ["parking"]
trips:
  - id: "t1"
    line: "X10"
    origin: "depot1"
    destination: "depot1"
    vehicle_types: ["EN"]
    std: 600
    sta: 1200
    distance: 5
fleet:
  - depot: "depot1"
    vehicle_type: "EN"
    count: 1
`

func loadScenario(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestBuildWorld(t *testing.T) {
	cfg := loadScenario(t)
	w, err := BuildWorld(cfg, logger.NopLogger{})
	require.NoError(t, err)

	d := w.Depots["depot1"]
	require.NotNil(t, d)
	assert.True(t, d.Control.PrioInit)
	assert.Equal(t, "FIRST", d.Dispatch.Name())
	require.Contains(t, d.Areas, "charge_line")
	assert.Equal(t, 4, d.Areas["charge_line"].Capacity())
	assert.Len(t, d.Areas["charge_line"].ChargingInterfaces(), 4)
	require.Len(t, d.ParkingAreaGroups, 1)
	require.Len(t, w.Timetable.Trips, 1)
	assert.Equal(t, "X10", w.Timetable.Trips[0].LineName)
	// No explicit horizon: one day, the floor for a single-trip timetable.
	assert.Equal(t, int64(86400), w.Horizon)
	assert.Equal(t, 1, w.Counts[d][w.Types["EN"]])
}

func TestWorldServesScenario(t *testing.T) {
	cfg := loadScenario(t)
	w, err := BuildWorld(cfg, logger.NopLogger{})
	require.NoError(t, err)

	w.Generator.Run(w.Counts, w.Groups)
	w.Timetable.Run(w.Counts)
	w.Engine.Run(w.Horizon)

	trip := w.Timetable.TripsIssued[0]
	require.NotNil(t, trip.Vehicle)
	assert.True(t, trip.Departed())
	assert.Equal(t, int64(600), trip.ATD)
	assert.Equal(t, int64(1200), trip.ATA)

	d := w.Depots["depot1"]
	assert.Equal(t, 1, d.Checkins)
	// The returning vehicle recharges to full at the line slots.
	v := trip.Vehicle
	assert.InDelta(t, 100, v.Battery.Energy(), 1e-9)

	svc := &Service{RunID: "test-run", World: w, log: logger.NopLogger{}}
	sum := svc.Summarize()
	assert.Equal(t, 1, sum.TripsServed)
	assert.Equal(t, 0, sum.TripsDelayed)
	assert.Equal(t, 0, sum.TripsUnserved)
	require.Len(t, sum.Depots, 1)
	assert.Equal(t, 1, sum.Depots[0].Checkins)
	assert.Greater(t, sum.Depots[0].PeakPowerKW, 0.0)
}

const slowChargeYAML = `vehicle_types:
  - id: "EN"
    battery_capacity: 100
    soc_min: 0.05
    soc_max: 1
    soc_init: 0.9
    soh: 1
    cr: 1
depots:
  - id: "depot1"
    prio_init: true
    consumption:
      mode: "CR_distance_based"
    dispatch:
      strategy: "FIRST"
    processes:
      - name: "charge"
        kind: "charge"
        power: 9
        mandatory: true
        request_immediately: true
        cancellable_for_dispatch: true
    areas:
      - name: "charge_line"
        kind: "line"
        capacity: 4
        issink: true
        charge_power: 9
        put_side: "back"
        get_side: "front"
        processes: ["charge"]
    parking_groups:
      - name: "parking"
        areas: ["charge_line"]
        strategy: "FIRST"
    plan:
      default: ["parking"]
trips:
  - id: "t1"
    origin: "depot1"
    destination: "depot1"
    vehicle_types: ["EN"]
    std: 600
    sta: 1200
    distance: 5
  - id: "t2"
    origin: "depot1"
    destination: "depot1"
    vehicle_types: ["EN"]
    std: 2000
    sta: 2600
    distance: 5
fleet:
  - depot: "depot1"
    vehicle_type: "EN"
    count: 1
`

func TestSummaryCountsGotEarlyAndQueueWaits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(slowChargeYAML), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	w, err := BuildWorld(cfg, logger.NopLogger{})
	require.NoError(t, err)

	w.Generator.Run(w.Counts, w.Groups)
	w.Timetable.Run(w.Counts)
	w.Engine.Run(w.Horizon)

	// The 9 kW charge after the first round trip is still running when
	// the second departure is due, so dispatch cancels it.
	t2 := w.Timetable.TripsIssued[1]
	assert.True(t, t2.GotEarlyVehicle)
	assert.Equal(t, int64(2000), t2.ATD)

	d := w.Depots["depot1"]
	d.QueueWaits = append(d.QueueWaits, 120, 480)

	svc := &Service{RunID: "test-run", World: w, log: logger.NopLogger{}}
	sum := svc.Summarize()
	assert.Equal(t, 2, sum.TripsServed)
	assert.Equal(t, 1, sum.GotEarlyVehicles)
	require.Len(t, sum.Depots, 1)
	assert.Equal(t, 2, sum.Depots[0].QueuedParkings)
	assert.InDelta(t, 300, sum.Depots[0].MeanQueueWaitSec, 1e-9)
	assert.InDelta(t, 480, sum.Depots[0].MaxQueueWaitSec, 1e-9)
}

const equationChargeYAML = `vehicle_types:
  - id: "EN"
    battery_capacity: 100
    soc_min: 0.05
    soc_max: 1
    soc_init: 0.9
    soh: 1
    cr: 1
depots:
  - id: "depot1"
    consumption:
      mode: "CR_distance_based"
    processes:
      - name: "eq_tapered"
        kind: "charge_equation_steps"
        precision: 0.05
        soc_target_max: true
      - name: "eq_exp"
        kind: "charge_equation_steps"
        precision: 0.05
        soc_target_max: true
        curve: "exponential"
    areas:
      - name: "charge_line"
        kind: "line"
        capacity: 2
        issink: true
        charge_power: 90
        put_side: "back"
        get_side: "front"
        processes: ["eq_tapered"]
    parking_groups:
      - name: "parking"
        areas: ["charge_line"]
        strategy: "FIRST"
    plan:
      default: ["parking"]
trips:
  - id: "t1"
    origin: "depot1"
    destination: "depot1"
    vehicle_types: ["EN"]
    std: 600
    sta: 1200
    distance: 5
`

func TestBuildWorldSelectsPowerCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(equationChargeYAML), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	w, err := BuildWorld(cfg, logger.NopLogger{})
	require.NoError(t, err)

	d := w.Depots["depot1"]
	tp := d.Processes["eq_tapered"]
	ex := d.Processes["eq_exp"]
	require.NotNil(t, tp.PowerFuncSoC)
	require.NotNil(t, ex.PowerFuncSoC)

	// Both run at full power below the 0.8 default threshold; at full
	// charge the tapered curve holds 10 % while the exponential one has
	// rolled off almost completely.
	assert.InDelta(t, 90, tp.PowerFuncSoC(0.5, 90, 100), 1e-9)
	assert.InDelta(t, 90, ex.PowerFuncSoC(0.5, 90, 100), 1e-9)
	assert.InDelta(t, 9, tp.PowerFuncSoC(1, 90, 100), 1e-9)
	assert.InDelta(t, 0.09, ex.PowerFuncSoC(1, 90, 100), 1e-6)
}
