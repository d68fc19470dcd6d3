package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64 { return c.now }

func testType() *VehicleType {
	return &VehicleType{
		ID:              "SB",
		BatteryCapacity: 200,
		SoCMin:          0.05,
		SoCMax:          0.95,
		SoCInit:         0.5,
		SoH:             0.9,
	}
}

func TestBatteryDerivedLevels(t *testing.T) {
	b, err := NewBattery(&fakeClock{}, testType())
	require.NoError(t, err)

	assert.InDelta(t, 180.0, b.EnergyReal(), 1e-9)
	assert.InDelta(t, 90.0, b.Energy(), 1e-9)
	assert.InDelta(t, 0.5, b.SoC(), 1e-9)
	assert.InDelta(t, 171.0, b.EnergyMax(), 1e-9)
	assert.InDelta(t, 9.0, b.EnergyMin(), 1e-9)
	assert.InDelta(t, 81.0, b.EnergyRemaining(), 1e-9)
}

func TestBatteryGetResetsNegative(t *testing.T) {
	b, err := NewBattery(&fakeClock{}, testType())
	require.NoError(t, err)
	b.ResetNegativeSoCTo = 0.1

	b.Get(100)
	assert.InDelta(t, 18.0, b.Energy(), 1e-9, "negative level resets to 10%% of real capacity")

	b.AllowNegative = true
	b.Get(50)
	assert.InDelta(t, -32.0, b.Energy(), 1e-9)
}

type countingUpdater struct {
	b     *Battery
	calls int
	rate  float64
	clock *fakeClock
	last  int64
}

func (u *countingUpdater) UpdateBattery() {
	u.calls++
	u.b.Put(u.rate * float64(u.clock.now-u.last))
	u.last = u.clock.now
}

func TestBatteryLazyFlush(t *testing.T) {
	clock := &fakeClock{}
	b, err := NewBattery(clock, testType())
	require.NoError(t, err)

	u := &countingUpdater{b: b, rate: 0.01, clock: clock}
	b.AttachUpdater(u)

	clock.now = 100
	assert.InDelta(t, 91.0, b.Energy(), 1e-9)
	assert.Equal(t, 1, u.calls)

	// Same instant: no second flush.
	b.Energy()
	assert.Equal(t, 1, u.calls)

	clock.now = 200
	b.Energy()
	assert.Equal(t, 2, u.calls)

	b.DetachUpdater(u)
	assert.Zero(t, b.ActiveUpdaters())
	clock.now = 300
	assert.InDelta(t, 92.0, b.Energy(), 1e-9, "detached updater no longer accrues")
}

func TestVehicleTypeValidate(t *testing.T) {
	vt := testType()
	require.NoError(t, vt.Validate())

	bad := testType()
	bad.SoCMin = 0.95
	bad.SoCMax = 0.5
	assert.Error(t, bad.Validate())

	bad = testType()
	bad.BatteryCapacity = 0
	assert.Error(t, bad.Validate())

	bad = testType()
	bad.SoCInit = 1.2
	assert.Error(t, bad.Validate())
}

func TestVehicleTypeGroup(t *testing.T) {
	a := &VehicleType{ID: "EN"}
	bType := &VehicleType{ID: "DL"}
	g := &VehicleTypeGroup{Types: []*VehicleType{a, bType}}
	a.Group = g
	bType.Group = g

	assert.True(t, g.Contains(a))
	assert.False(t, g.Contains(&VehicleType{ID: "GN"}))
	assert.Equal(t, "EN, DL", g.JoinedIDs())
}
