package model

import "fmt"

// Clock yields the current simulation time in seconds.
type Clock interface {
	Now() int64
}

// EnergyUpdater is implemented by charging processes that modify battery
// energy continuously. The battery asks them to flush accrued energy
// before reporting its level.
type EnergyUpdater interface {
	UpdateBattery()
}

// Battery models a vehicle battery. Energy accounting is lazy: while a
// charging process is active the stored level is stale, and Energy()
// asks the active processes to flush before returning.
type Battery struct {
	clock Clock

	// EnergyNominal is the nameplate capacity in kWh.
	EnergyNominal float64
	SoCMin        float64
	SoCMax        float64
	SoH           float64

	// AllowNegative keeps a negative level after over-consumption. When
	// false the level is reset to ResetNegativeSoCTo of the real
	// capacity instead, imitating opportunity charging en route.
	AllowNegative      bool
	ResetNegativeSoCTo float64

	energy float64
	// NCharges counts completed charge starts.
	NCharges int

	active     []EnergyUpdater
	lastUpdate int64
	updating   bool
}

// NewBattery creates a battery at soc_init of the real capacity.
func NewBattery(clock Clock, vt *VehicleType) (*Battery, error) {
	if vt.BatteryCapacity <= 0 {
		return nil, fmt.Errorf("battery: nominal energy must be positive")
	}
	b := &Battery{
		clock:         clock,
		EnergyNominal: vt.BatteryCapacity,
		SoCMin:        vt.SoCMin,
		SoCMax:        vt.SoCMax,
		SoH:           vt.SoH,
	}
	b.energy = vt.SoCInit * b.EnergyReal()
	return b, nil
}

// EnergyReal returns the usable capacity after state of health derating.
func (b *Battery) EnergyReal() float64 { return b.EnergyNominal * b.SoH }

// Energy returns the current level, flushing active charging processes
// first so concurrent readers see up-to-date values.
func (b *Battery) Energy() float64 {
	if len(b.active) > 0 && b.lastUpdate != b.clock.Now() && !b.updating {
		b.lastUpdate = b.clock.Now()
		b.updating = true
		for _, p := range b.active {
			p.UpdateBattery()
		}
		b.updating = false
	}
	return b.energy
}

// SetEnergy overwrites the level without consumption rules. Used by SoC
// driven trip consumption.
func (b *Battery) SetEnergy(v float64) { b.energy = v }

// SoC returns the state of charge relative to the real capacity.
func (b *Battery) SoC() float64 { return b.Energy() / b.EnergyReal() }

// EnergyMax returns the highest usable level.
func (b *Battery) EnergyMax() float64 { return b.EnergyReal() * b.SoCMax }

// EnergyMin returns the lowest usable level.
func (b *Battery) EnergyMin() float64 { return b.EnergyReal() * b.SoCMin }

// EnergyRemaining returns the energy usable above the reserve.
func (b *Battery) EnergyRemaining() float64 { return b.Energy() - b.EnergyMin() }

// Get subtracts amount. A resulting negative level is reset to
// ResetNegativeSoCTo of the real capacity unless AllowNegative is set.
func (b *Battery) Get(amount float64) {
	b.energy -= amount
	if b.energy < 0 && !b.AllowNegative {
		b.energy = b.ResetNegativeSoCTo * b.EnergyReal()
	}
}

// Put adds amount to the level.
func (b *Battery) Put(amount float64) { b.energy += amount }

// AttachUpdater registers a charging process as an active energy source.
func (b *Battery) AttachUpdater(u EnergyUpdater) {
	b.active = append(b.active, u)
}

// DetachUpdater removes a previously attached process.
func (b *Battery) DetachUpdater(u EnergyUpdater) {
	for i, p := range b.active {
		if p == u {
			b.active = append(b.active[:i], b.active[i+1:]...)
			return
		}
	}
}

// ActiveUpdaters reports how many charging processes are attached.
func (b *Battery) ActiveUpdaters() int { return len(b.active) }
