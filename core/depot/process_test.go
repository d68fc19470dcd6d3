package depot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/infra/logger"
)

func TestProcessSpecValidate(t *testing.T) {
	cases := []struct {
		name string
		spec ProcessSpec
		ok   bool
	}{
		{"timed", ProcessSpec{Name: "serve", Kind: KindServe, Dur: 600}, true},
		{"timed without duration", ProcessSpec{Name: "serve", Kind: KindServe}, false},
		{"unknown kind", ProcessSpec{Name: "x", Kind: "juggle", Dur: 1}, false},
		{"missing name", ProcessSpec{Kind: KindServe, Dur: 600}, false},
		{"charge", ProcessSpec{Name: "c", Kind: KindCharge, Power: 30, Efficiency: 0.9, SoCTarget: 1}, true},
		{"charge without power", ProcessSpec{Name: "c", Kind: KindCharge, Efficiency: 0.9, SoCTarget: 1}, false},
		{"charge bad efficiency", ProcessSpec{Name: "c", Kind: KindCharge, Power: 30, Efficiency: 1.2, SoCTarget: 1}, false},
		{"charge bad target", ProcessSpec{Name: "c", Kind: KindCharge, Power: 30, Efficiency: 1, SoCTarget: 1.5}, false},
		{"steps", ProcessSpec{Name: "c", Kind: KindChargeSteps, Efficiency: 1, SoCTargetMax: true,
			Steps: []ChargeStep{{SoC: 0.8, Power: 90}, {SoC: 1, Power: 30}}}, true},
		{"steps descending", ProcessSpec{Name: "c", Kind: KindChargeSteps, Efficiency: 1, SoCTargetMax: true,
			Steps: []ChargeStep{{SoC: 0.8, Power: 90}, {SoC: 0.5, Power: 30}}}, false},
		{"equation without precision", ProcessSpec{Name: "c", Kind: KindChargeEquationSteps,
			Efficiency: 1, SoCTargetMax: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTimedProcessLifecycle(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{noCharge: true})
	v := f.newVehicle(t, "bus1", 90)
	v.DWD.ServiceNeed = true

	var actions []events.ProcessAction
	f.hub.Process.Subscribe(func(e events.ProcessEvent) {
		actions = append(actions, e.Action)
	})

	spec := &ProcessSpec{Name: "serve", Kind: KindServe, Dur: 600, Mandatory: true, RequestImmediately: true}
	require.NoError(t, spec.Validate())
	p := spec.New(f.d, v)

	assert.Equal(t, StatusNotStarted, p.Status())
	p.Start()
	require.Len(t, v.DWD.ActiveProcesses, 1)

	f.env.Run(0)
	assert.Equal(t, StatusInProgress, p.Status())
	etc := p.ETC()
	require.True(t, etc.Known())
	assert.Equal(t, int64(600), etc.Time)

	f.env.Run(600)
	assert.Equal(t, StatusCompleted, p.Status())
	assert.False(t, v.DWD.ServiceNeed)
	assert.Equal(t, int64(600), v.DWD.TLastServed)
	assert.Empty(t, v.DWD.ActiveProcesses)
	assert.Equal(t, []events.ProcessAction{events.ProcessStarted, events.ProcessCompleted}, actions)
}

func TestTimedProcessInterruptResumeKeepsRemaining(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{noCharge: true})
	v := f.newVehicle(t, "bus1", 90)

	spec := &ProcessSpec{Name: "maintain", Kind: KindMaintain, Dur: 600, Mandatory: true, RequestImmediately: true}
	p := spec.New(f.d, v)
	p.Start()

	f.env.After(200, func() { p.Interrupt(true) })
	f.env.Run(400)
	// 200 s done before the interrupt, 400 s remain after the resume.
	assert.Equal(t, StatusInProgress, p.Status())

	f.env.Run(600)
	assert.Equal(t, StatusCompleted, p.Status())
}

func TestProcessCancel(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{noCharge: true})
	v := f.newVehicle(t, "bus1", 90)
	v.DWD.RepairNeed = true

	var cancelled bool
	f.hub.Process.Subscribe(func(e events.ProcessEvent) {
		if e.Action == events.ProcessCancelled {
			cancelled = true
		}
	})

	spec := &ProcessSpec{Name: "repair", Kind: KindRepair, Dur: 3600, Mandatory: true, RequestImmediately: true}
	p := spec.New(f.d, v)
	p.Start()
	f.env.After(100, func() { p.Cancel() })
	f.env.Run(5000)

	assert.Equal(t, StatusCancelled, p.Status())
	assert.True(t, v.DWD.RepairNeed)
	assert.True(t, cancelled)
	assert.Empty(t, v.DWD.ActiveProcesses)
}

func TestProcessWaitsForWorkers(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{noCharge: true})
	res, err := NewResource(f.env, logger.NopLogger{}, "crew", 1)
	require.NoError(t, err)

	spec := &ProcessSpec{
		Name: "serve", Kind: KindServe, Dur: 600,
		Mandatory: true, RequestImmediately: true,
		Resources: []*Resource{res},
	}
	v1 := f.newVehicle(t, "bus1", 90)
	v2 := f.newVehicle(t, "bus2", 90)

	p1 := spec.New(f.d, v1)
	p2 := spec.New(f.d, v2)
	p1.Start()
	p2.Start()

	f.env.Run(0)
	assert.Equal(t, StatusInProgress, p1.Status())
	assert.Equal(t, StatusWaiting, p2.Status())

	f.env.Run(600)
	assert.Equal(t, StatusCompleted, p1.Status())

	f.env.Run(1200)
	assert.Equal(t, StatusCompleted, p2.Status())
}

func TestProcessNeeded(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{noCharge: true})
	v := f.newVehicle(t, "bus1", 90)

	mandatory := &ProcessSpec{Name: "a", Kind: KindServe, Dur: 1, Mandatory: true, RequestImmediately: true}
	assert.True(t, mandatory.Needed(0, v))

	lazy := &ProcessSpec{Name: "b", Kind: KindServe, Dur: 1, Mandatory: true}
	assert.False(t, lazy.Needed(0, v))

	filtered := &ProcessSpec{
		Name: "c", Kind: KindRepair, Dur: 1, RequestImmediately: true,
		Filter: &VehicleFilter{Names: []FilterName{FilterRepairNeed}},
	}
	assert.False(t, filtered.Needed(0, v))
	v.DWD.RepairNeed = true
	assert.True(t, filtered.Needed(0, v))
}

func TestEstimateDuration(t *testing.T) {
	f := newDepotFixture(t, fixtureOpts{})
	v := f.newVehicle(t, "bus1", 90)

	timed := &ProcessSpec{Name: "serve", Kind: KindServe, Dur: 600}
	est := timed.EstimateDuration(v, nil)
	require.True(t, est.Known())
	assert.Equal(t, int64(600), est.Time)

	// 10 kWh missing at 30 kW.
	est = f.charge.EstimateDuration(v, nil)
	require.True(t, est.Known())
	assert.Equal(t, int64(1200), est.Time)

	full := f.newVehicle(t, "bus2", 100)
	assert.True(t, f.charge.EstimateDuration(full, nil).Completed())

	steps := &ProcessSpec{
		Name: "fastcharge", Kind: KindChargeSteps, Efficiency: 1, SoCTargetMax: true,
		Steps: []ChargeStep{{SoC: 0.95, Power: 90}, {SoC: 1, Power: 30}},
	}
	require.NoError(t, steps.Validate())
	// 5 kWh at 90 kW, then 5 kWh at 30 kW.
	est = steps.EstimateDuration(v, nil)
	require.True(t, est.Known())
	assert.Equal(t, int64(200+600), est.Time)

	eq := &ProcessSpec{
		Name: "eqcharge", Kind: KindChargeEquationSteps, Efficiency: 1, SoCTargetMax: true,
		Precision: 0.05, PowerFuncSoC: ConstantPower(),
	}
	require.NoError(t, eq.Validate())
	assert.True(t, eq.EstimateDuration(v, nil).Unknown())
	ci := f.newChargePoints(t, "x", 1, 50)[0]
	est = eq.EstimateDuration(v, ci)
	require.True(t, est.Known())
	// 10 kWh at the interface's 50 kW.
	assert.Equal(t, int64(720), est.Time)
}
