package depot

import (
	"math"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// charge carries the bookkeeping shared by all charging processes: the
// claimed charge point, the energy level as the process sees it and the
// time of the last battery update.
type charge struct {
	p  *baseProcess
	ci *ChargingInterface

	// power is the momentary charging power, updated per step.
	power      float64
	energy     float64
	lastUpdate int64
}

func newCharge(p *baseProcess) *charge {
	return &charge{p: p, lastUpdate: -1}
}

// begin claims the slot interface and attaches the process to the
// battery so reads flush pending energy.
func (c *charge) begin() bool {
	p := c.p
	c.ci = p.vehicle.DWD.CurrentChargingInterface(p.vehicle)
	if c.ci == nil {
		p.log.Warnf("process %s/%s: no charging interface at current slot", p.spec.Name, p.vehicle.ID)
		return false
	}
	c.energy = p.vehicle.Battery.Energy()
	c.lastUpdate = p.env.Now()
	p.vehicle.Battery.AttachUpdater(c)
	p.publish(events.ChargeStarted)
	return true
}

// end settles the interface and the battery attachment; runs on both
// completion and interruption.
func (c *charge) end() {
	if c.ci != nil {
		c.ci.SetCurrentPower(0)
		c.ci = nil
	}
	c.p.vehicle.Battery.DetachUpdater(c)
	c.p.vehicle.Battery.NCharges++
}

// UpdateBattery flushes accrued energy when the battery level is read
// mid-charge.
func (c *charge) UpdateBattery() {
	c.settle(nil, "")
}

// settle books charged energy into the battery. With a nil amount the
// energy since the last update accrues at the current power; the amount
// is capped at the remaining distance to the charge target.
func (c *charge) settle(amount *float64, event events.ProcessAction) {
	p := c.p
	now := p.env.Now()
	var amt float64
	if amount == nil {
		last := c.lastUpdate
		if n := len(p.starts); n > 0 && p.starts[n-1] > last {
			last = p.starts[n-1]
		}
		if last >= now {
			return
		}
		amt = float64(now-last) / 3600 * c.power * p.spec.Efficiency
	} else {
		amt = *amount
	}
	rest := round14(p.vehicle.Battery.EnergyReal()*p.spec.targetSoC(p.vehicle) - c.energy)
	if rest < amt {
		amt = rest
		event = events.ChargeEnded
	}
	p.vehicle.Battery.Put(amt)
	c.energy += amt
	c.lastUpdate = now
	if event != "" {
		p.publish(event)
	}
}

// remaining is the energy still missing to the charge target.
func (c *charge) remaining() float64 {
	return round14(c.p.vehicle.Battery.EnergyReal()*c.p.spec.targetSoC(c.p.vehicle) - c.energy)
}

func round14(x float64) float64 {
	return math.Round(x*1e14) / 1e14
}

// chargeRunner charges at constant power until the target SoC.
type chargeRunner struct {
	charge *charge
	timer  *sim.Timer
}

func (r *chargeRunner) run(complete func()) {
	c := r.charge
	p := c.p
	if !c.begin() {
		complete()
		return
	}
	amount := c.remaining()
	if amount <= 0 {
		c.end()
		complete()
		return
	}
	c.power = p.spec.Power
	dur := int64(amount / (c.power * p.spec.Efficiency) * 3600)
	p.etc = EstimateAt(p.env.Now() + dur)
	c.ci.SetCurrentPower(c.power)
	r.timer = p.env.After(dur, func() {
		if rest := c.remaining(); rest > 0 {
			c.settle(&rest, events.ChargeEnded)
		}
		c.end()
		complete()
	})
}

func (r *chargeRunner) interrupted() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.charge.settle(nil, "")
	r.charge.end()
}

// cropSteps drops curve steps the battery has already passed.
func cropSteps(steps []ChargeStep, soc float64) []ChargeStep {
	for i, st := range steps {
		if st.SoC > soc {
			return steps[i:]
		}
	}
	return nil
}

// chargeStepsRunner charges along a stepwise power curve: each step runs
// at its power until its SoC threshold or the target is reached.
type chargeStepsRunner struct {
	charge *charge
	timer  *sim.Timer
}

func (r *chargeStepsRunner) run(complete func()) {
	c := r.charge
	p := c.p
	if !c.begin() {
		complete()
		return
	}
	target := p.spec.targetSoC(p.vehicle)
	steps := cropSteps(p.spec.Steps, p.vehicle.Battery.SoC())
	if len(steps) == 0 || c.remaining() <= 0 {
		c.end()
		complete()
		return
	}
	if est := p.spec.EstimateDuration(p.vehicle, c.ci); est.Known() {
		p.etc = EstimateAt(p.env.Now() + est.Time)
	}

	var runStep func(i int)
	runStep = func(i int) {
		if i >= len(steps) {
			if rest := c.remaining(); rest > 0 {
				c.settle(&rest, events.ChargeEnded)
			}
			c.end()
			complete()
			return
		}
		st := steps[i]
		upper := st.SoC
		if upper > target {
			upper = target
		}
		amount := round14(p.vehicle.Battery.EnergyReal()*upper - c.energy)
		if amount <= 0 {
			runStep(i + 1)
			return
		}
		c.power = st.Power
		c.ci.SetCurrentPower(st.Power)
		dur := int64(amount / (c.power * p.spec.Efficiency) * 3600)
		r.timer = p.env.After(dur, func() {
			c.settle(nil, "")
			if c.remaining() <= 0 {
				c.end()
				complete()
				return
			}
			runStep(i + 1)
		})
	}
	runStep(0)
}

func (r *chargeStepsRunner) interrupted() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.charge.settle(nil, "")
	r.charge.end()
}

// chargeEquationRunner charges in precision-sized SoC intervals, with
// the power per interval given by a power equation over the momentary
// SoC.
type chargeEquationRunner struct {
	charge *charge
	timer  *sim.Timer
}

func (r *chargeEquationRunner) run(complete func()) {
	c := r.charge
	p := c.p
	if !c.begin() {
		complete()
		return
	}
	target := p.spec.targetSoC(p.vehicle)

	var step func()
	step = func() {
		soc := c.energy / p.vehicle.Battery.EnergyReal()
		if c.remaining() <= 0 {
			c.end()
			complete()
			return
		}
		interval := p.spec.Precision
		if target-soc < interval {
			interval = target - soc
		}
		c.power = p.spec.PowerFuncSoC(soc, c.ci.MaxPower, p.vehicle.Battery.EnergyNominal)
		if c.power <= 0 {
			p.log.Warnf("process %s/%s: power equation returned %g, stopping", p.spec.Name, p.vehicle.ID, c.power)
			c.end()
			complete()
			return
		}
		dur := int64(p.vehicle.Battery.EnergyReal() * interval / (c.power * p.spec.Efficiency) * 3600)
		stepTarget := p.vehicle.Battery.EnergyReal() * (soc + interval)
		if dur == 0 {
			// Interval too small for one second, charge one second
			// worth instead.
			dur = 1
			stepTarget = c.energy + c.power*p.spec.Efficiency/3600
		}
		c.ci.SetCurrentPower(c.power)
		r.timer = p.env.After(dur, func() {
			amount := round14(stepTarget - c.energy)
			c.settle(&amount, "")
			step()
		})
	}
	step()
}

func (r *chargeEquationRunner) interrupted() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.charge.settle(nil, "")
	r.charge.end()
}

// ExponentialPower is a power equation that charges at full power up to
// the SoC threshold and tapers exponentially above it.
func ExponentialPower(socThreshold float64) PowerFunc {
	return func(soc, maxPower, energyNominal float64) float64 {
		if soc < socThreshold {
			return maxPower
		}
		return maxPower/10*(1/energyNominal-10)/
			(math.E-math.Exp(socThreshold))*
			(math.Exp(soc)-math.Exp(socThreshold)) + maxPower
	}
}

// ConstantPower is a power equation that ignores the SoC and always
// charges at the charge point's limit.
func ConstantPower() PowerFunc {
	return func(_, maxPower, _ float64) float64 { return maxPower }
}
