package depot

import (
	"fmt"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/logger"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// ProcessKind is the closed set of process types a depot can run.
type ProcessKind string

const (
	KindServe               ProcessKind = "serve"
	KindStandby             ProcessKind = "standby"
	KindRepair              ProcessKind = "repair"
	KindMaintain            ProcessKind = "maintain"
	KindPrecondition        ProcessKind = "precondition"
	KindCharge              ProcessKind = "charge"
	KindChargeSteps         ProcessKind = "charge_steps"
	KindChargeEquationSteps ProcessKind = "charge_equation_steps"
)

// Valid reports whether k is a known process kind.
func (k ProcessKind) Valid() bool {
	switch k {
	case KindServe, KindStandby, KindRepair, KindMaintain, KindPrecondition,
		KindCharge, KindChargeSteps, KindChargeEquationSteps:
		return true
	}
	return false
}

// Status is the lifecycle state of a process instance.
type Status int

const (
	StatusNotStarted Status = iota
	StatusWaiting
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusWaiting:
		return "waiting"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Estimate is an estimated completion time: a point in time, already
// completed, or unknown.
type Estimate struct {
	Time int64
	kind int8
}

const (
	estAt int8 = iota
	estCompleted
	estUnknown
)

// EstimateAt returns a point-in-time estimate.
func EstimateAt(t int64) Estimate { return Estimate{Time: t, kind: estAt} }

// EstimateCompleted marks work that is already done.
func EstimateCompleted() Estimate { return Estimate{kind: estCompleted} }

// EstimateUnknown marks work whose completion cannot be predicted.
func EstimateUnknown() Estimate { return Estimate{kind: estUnknown} }

// Unknown reports whether the estimate has no usable time.
func (e Estimate) Unknown() bool { return e.kind == estUnknown }

// Completed reports whether the work is already done.
func (e Estimate) Completed() bool { return e.kind == estCompleted }

// Known reports whether the estimate is a concrete point in time.
func (e Estimate) Known() bool { return e.kind == estAt }

// Process is one running activity on a vehicle in the depot.
type Process interface {
	Name() string
	Kind() ProcessKind
	Status() Status
	// ETC is the estimated completion time while the process runs.
	ETC() Estimate
	Mandatory() bool
	CancellableForDispatch() bool
	// Start begins the lifecycle: acquire resources, run the action.
	Start()
	// Interrupt stops the action. With resume the process restarts for
	// its remaining work, otherwise it is cancelled.
	Interrupt(resume bool)
	// Cancel is Interrupt without resume.
	Cancel()
	// OnFinished registers a callback for terminal states.
	OnFinished(fn func())
}

// ChargeStep is one point of a stepwise charging curve: once SoC reaches
// the threshold, charging continues with the given power.
type ChargeStep struct {
	SoC   float64
	Power float64
}

// PowerFunc maps the momentary SoC to charging power for
// equation-stepped charging, given the charge point's power limit and
// the battery's nominal capacity.
type PowerFunc func(soc, maxPower, energyNominal float64) float64

// ProcessSpec is the static configuration of a process at an area. One
// spec instantiates a fresh Process per vehicle and visit.
type ProcessSpec struct {
	Name string
	Kind ProcessKind

	// Dur is the fixed duration for timed processes and preconditioning.
	Dur int64

	// Mandatory processes always run when the vehicle enters the area;
	// optional ones only run when Filter matches.
	Mandatory bool
	// RequestImmediately makes the process part of the area entry
	// decision; processes without it never create a process need.
	RequestImmediately bool
	// CancellableForDispatch allows dispatch to interrupt the process
	// for an urgent departure.
	CancellableForDispatch bool

	Filter *VehicleFilter

	// Resources are acquired together before the action starts.
	Resources        []*Resource
	ResourcePriority int
	Preempt          bool

	// Charging parameters.
	Power      float64
	Efficiency float64
	// SoCTarget is the charge target; SoCTargetMax uses the battery's
	// configured maximum instead.
	SoCTarget    float64
	SoCTargetMax bool
	Steps        []ChargeStep
	Precision    float64
	PowerFuncSoC PowerFunc
}

// Validate checks the spec for its kind.
func (s *ProcessSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("process spec: name required")
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("process %s: unknown kind %q", s.Name, s.Kind)
	}
	switch s.Kind {
	case KindServe, KindStandby, KindRepair, KindMaintain, KindPrecondition:
		if s.Dur <= 0 {
			return fmt.Errorf("process %s: duration must be positive, got %d", s.Name, s.Dur)
		}
	case KindCharge, KindChargeEquationSteps:
		if s.Kind == KindCharge && s.Power <= 0 {
			return fmt.Errorf("process %s: power must be positive, got %g", s.Name, s.Power)
		}
	case KindChargeSteps:
		if err := checkSteps(s.Steps); err != nil {
			return fmt.Errorf("process %s: %w", s.Name, err)
		}
	}
	if s.Kind == KindCharge || s.Kind == KindChargeSteps || s.Kind == KindChargeEquationSteps {
		if s.Efficiency <= 0 || s.Efficiency > 1 {
			return fmt.Errorf("process %s: efficiency %g outside (0, 1]", s.Name, s.Efficiency)
		}
		if !s.SoCTargetMax && (s.SoCTarget <= 0 || s.SoCTarget > 1) {
			return fmt.Errorf("process %s: soc target %g outside (0, 1]", s.Name, s.SoCTarget)
		}
	}
	if s.Kind == KindChargeEquationSteps {
		if s.Precision <= 0 || s.Precision > 1 {
			return fmt.Errorf("process %s: precision %g outside (0, 1]", s.Name, s.Precision)
		}
	}
	return nil
}

func checkSteps(steps []ChargeStep) error {
	if len(steps) == 0 {
		return fmt.Errorf("at least one charge step required")
	}
	for i, st := range steps {
		if st.SoC < 0 || st.SoC > 1 {
			return fmt.Errorf("step %d: soc %g outside [0, 1]", i, st.SoC)
		}
		if st.Power <= 0 {
			return fmt.Errorf("step %d: power must be positive, got %g", i, st.Power)
		}
		if i > 0 && st.SoC <= steps[i-1].SoC {
			return fmt.Errorf("step %d: soc values must be strictly ascending", i)
		}
	}
	return nil
}

// Needed reports whether this spec creates a process need for the
// vehicle when it reaches the area: immediately requested and either
// mandatory or matching the filter.
func (s *ProcessSpec) Needed(now int64, v *Vehicle) bool {
	if !s.RequestImmediately {
		return false
	}
	if s.Mandatory {
		return true
	}
	return s.Filter != nil && s.Filter.Match(now, v)
}

// IsCharge reports whether the spec belongs to the charge family.
func (s *ProcessSpec) IsCharge() bool {
	return s.Kind == KindCharge || s.Kind == KindChargeSteps || s.Kind == KindChargeEquationSteps
}

// targetSoC resolves the configured charge target for a battery.
func (s *ProcessSpec) targetSoC(v *Vehicle) float64 {
	if s.SoCTargetMax {
		return v.Battery.SoCMax
	}
	return s.SoCTarget
}

// New instantiates the process for one vehicle visit.
func (s *ProcessSpec) New(d *Depot, v *Vehicle) Process {
	base := &baseProcess{
		env: d.env, log: d.log, depot: d, vehicle: v, spec: s,
		dur: s.Dur,
	}
	switch s.Kind {
	case KindServe:
		base.durPredefined = true
		base.runner = &timedRunner{p: base, onDone: func() {
			v.DWD.ServiceNeed = false
			v.DWD.TLastServed = d.env.Now()
		}}
	case KindStandby:
		base.durPredefined = true
		base.runner = &timedRunner{p: base}
	case KindRepair:
		base.durPredefined = true
		base.runner = &timedRunner{p: base, onDone: func() { v.DWD.RepairNeed = false }}
	case KindMaintain:
		base.durPredefined = true
		base.runner = &timedRunner{p: base, onDone: func() { v.DWD.MaintenanceNeed = false }}
	case KindPrecondition:
		base.durPredefined = true
		base.runner = &preconditionRunner{p: base}
	case KindCharge:
		base.runner = &chargeRunner{charge: newCharge(base)}
	case KindChargeSteps:
		base.runner = &chargeStepsRunner{charge: newCharge(base)}
	case KindChargeEquationSteps:
		base.runner = &chargeEquationRunner{charge: newCharge(base)}
	}
	// A finishing process can leave the vehicle ready for an urgent
	// departure; tell dispatch when only cancellable work remains.
	base.OnFinished(func() {
		dwd := &v.DWD
		if dwd.CurrentArea == nil || !dwd.CurrentArea.IsSink() {
			return
		}
		if len(dwd.ActiveProcesses) == 0 {
			return
		}
		for _, p := range dwd.ActiveProcesses {
			if !p.CancellableForDispatch() {
				return
			}
		}
		d.Control.TriggerDispatch()
	})
	return base
}

// EstimateDuration predicts how long the process would run for the
// vehicle, before it starts. The charging interface feeds the power
// equation of equation-stepped charging and may be nil otherwise.
func (s *ProcessSpec) EstimateDuration(v *Vehicle, ci *ChargingInterface) Estimate {
	switch s.Kind {
	case KindServe, KindStandby, KindRepair, KindMaintain, KindPrecondition:
		return EstimateAt(s.Dur)
	case KindCharge:
		amount := v.Battery.EnergyReal()*s.targetSoC(v) - v.Battery.Energy()
		if amount <= 0 {
			return EstimateCompleted()
		}
		return EstimateAt(int64(amount / (s.Power * s.Efficiency) * 3600))
	case KindChargeSteps:
		steps := cropSteps(s.Steps, v.Battery.SoC())
		if len(steps) == 0 {
			return EstimateCompleted()
		}
		var total int64
		prev := v.Battery.SoC()
		target := s.targetSoC(v)
		for _, st := range steps {
			upper := st.SoC
			if upper > target {
				upper = target
			}
			if upper <= prev {
				continue
			}
			amount := v.Battery.EnergyReal() * (upper - prev)
			total += int64(amount / (st.Power * s.Efficiency) * 3600)
			prev = upper
		}
		if total <= 0 {
			return EstimateCompleted()
		}
		return EstimateAt(total)
	case KindChargeEquationSteps:
		if ci == nil {
			return EstimateUnknown()
		}
		// Walk the charging curve in precision-sized SoC intervals,
		// evaluating the power equation at each interval's start.
		soc := v.Battery.SoC()
		target := s.targetSoC(v)
		if soc >= target {
			return EstimateCompleted()
		}
		var dur float64
		for soc < target {
			interval := s.Precision
			if target-soc < interval {
				interval = target - soc
			}
			power := s.PowerFuncSoC(soc, ci.MaxPower, v.Battery.EnergyNominal)
			if power <= 0 {
				return EstimateUnknown()
			}
			dur += v.Battery.EnergyReal() * interval / (power * s.Efficiency) * 3600
			soc += interval
		}
		return EstimateAt(int64(dur))
	}
	return EstimateUnknown()
}

// runner is the action part of a process; the base drives resources and
// the lifecycle around it.
type runner interface {
	// run starts the action and calls complete when it is done.
	run(complete func())
	// interrupted stops the action's internal timers and settles any
	// partial progress.
	interrupted()
}

type baseProcess struct {
	env     *sim.Engine
	log     logger.Logger
	depot   *Depot
	vehicle *Vehicle
	spec    *ProcessSpec
	runner  runner

	status        Status
	dur           int64
	durPredefined bool
	actionStart   int64
	etc           Estimate
	recallCount   int

	starts, ends []int64
	requests     []*Request
	pendingReqs  int

	finished []func()
}

func (p *baseProcess) Name() string                 { return p.spec.Name }
func (p *baseProcess) Kind() ProcessKind            { return p.spec.Kind }
func (p *baseProcess) Status() Status               { return p.status }
func (p *baseProcess) Mandatory() bool              { return p.spec.Mandatory }
func (p *baseProcess) CancellableForDispatch() bool { return p.spec.CancellableForDispatch }
func (p *baseProcess) OnFinished(fn func())         { p.finished = append(p.finished, fn) }

func (p *baseProcess) ETC() Estimate {
	switch p.status {
	case StatusInProgress:
		return p.etc
	case StatusCompleted:
		return EstimateCompleted()
	default:
		return EstimateUnknown()
	}
}

// Start runs one lifecycle pass: wait for resources, step one scheduling
// round, then run the action.
func (p *baseProcess) Start() {
	p.vehicle.DWD.addActive(p)
	p.run(p.spec.ResourcePriority)
}

func (p *baseProcess) run(priority int) {
	p.status = StatusWaiting
	p.etc = EstimateUnknown()
	p.requests = p.requests[:0]
	resources := p.spec.Resources
	if p.spec.IsCharge() {
		// Charging claims the charge point at the vehicle's slot.
		resources = nil
		if ci := p.vehicle.DWD.CurrentChargingInterface(p.vehicle); ci != nil {
			resources = []*Resource{ci.Resource}
		}
	}
	p.pendingReqs = len(resources)
	if p.pendingReqs == 0 {
		p.allGranted()
		return
	}
	for _, res := range resources {
		req := res.Request(RequestSpec{
			Priority: priority,
			Preempt:  p.spec.Preempt,
			Holder:   fmt.Sprintf("%s/%s", p.spec.Name, p.vehicle.ID),
			OnGrant:  p.grantOne,
			OnPreempt: func(by *Request) {
				p.Interrupt(by.ResumeVictims())
			},
		})
		p.requests = append(p.requests, req)
	}
}

func (p *baseProcess) grantOne() {
	p.pendingReqs--
	if p.pendingReqs == 0 {
		p.allGranted()
	}
}

// allGranted records the start and defers the action by one scheduling
// round so same-instant arrivals settle first.
func (p *baseProcess) allGranted() {
	p.starts = append(p.starts, p.env.Now())
	p.env.After(0, func() {
		if p.status != StatusWaiting {
			return
		}
		p.status = StatusInProgress
		p.actionStart = p.env.Now()
		if p.durPredefined {
			p.etc = EstimateAt(p.env.Now() + p.dur)
		}
		if p.recallCount == 0 {
			p.publish(events.ProcessStarted)
		} else {
			p.publish(events.ProcessResumed)
		}
		p.runner.run(p.complete)
	})
}

func (p *baseProcess) complete() {
	p.releaseAll()
	p.ends = append(p.ends, p.env.Now())
	p.status = StatusCompleted
	p.vehicle.DWD.removeActive(p)
	p.publish(events.ProcessCompleted)
	p.notifyFinished()
}

// Interrupt stops the running action. With resume the process re-enters
// the lifecycle for its remaining work, otherwise it ends cancelled.
func (p *baseProcess) Interrupt(resume bool) {
	if p.status != StatusWaiting && p.status != StatusInProgress {
		return
	}
	wasInProgress := p.status == StatusInProgress
	if wasInProgress {
		p.runner.interrupted()
	}
	p.releaseAll()
	p.ends = append(p.ends, p.env.Now())
	if !resume {
		p.status = StatusCancelled
		p.vehicle.DWD.removeActive(p)
		p.publish(events.ProcessCancelled)
		p.notifyFinished()
		return
	}
	if p.durPredefined {
		remaining := p.dur
		if wasInProgress {
			remaining = p.dur - (p.env.Now() - p.actionStart)
		}
		if remaining <= 0 {
			p.status = StatusCompleted
			p.vehicle.DWD.removeActive(p)
			p.publish(events.ProcessCompleted)
			p.notifyFinished()
			return
		}
		p.dur = remaining
	}
	p.recallCount++
	p.run(recallPriority)
	p.log.Debugf("process %s/%s: interrupted, resuming for recall %d", p.spec.Name, p.vehicle.ID, p.recallCount)
}

// recallPriority lets resumed processes re-acquire workers ahead of
// fresh requests.
const recallPriority = -1

// Cancel is Interrupt without resume.
func (p *baseProcess) Cancel() { p.Interrupt(false) }

func (p *baseProcess) releaseAll() {
	for _, req := range p.requests {
		if req.Granted() {
			req.res.Release(req)
		} else {
			req.res.Cancel(req)
		}
	}
	p.requests = p.requests[:0]
	p.pendingReqs = 0
}

func (p *baseProcess) notifyFinished() {
	for _, fn := range p.finished {
		fn()
	}
}

func (p *baseProcess) publish(action events.ProcessAction) {
	areaID := ""
	if p.vehicle.DWD.CurrentArea != nil {
		areaID = p.vehicle.DWD.CurrentArea.Name()
	}
	p.depot.Events.Process.Publish(events.ProcessEvent{
		Time:      p.env.Now(),
		Action:    action,
		Process:   p.spec.Name,
		Kind:      string(p.spec.Kind),
		VehicleID: p.vehicle.ID,
		AreaID:    areaID,
		SoC:       p.vehicle.Battery.SoC(),
	})
}

// timedRunner runs a fixed-duration action and optionally clears a
// vehicle need on completion.
type timedRunner struct {
	p      *baseProcess
	timer  *sim.Timer
	onDone func()
}

func (r *timedRunner) run(complete func()) {
	r.timer = r.p.env.After(r.p.dur, func() {
		if r.onDone != nil {
			r.onDone()
		}
		complete()
	})
}

func (r *timedRunner) interrupted() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

// preconditionRunner heats or cools the cabin before departure, drawing
// power from the slot's charging interface without charging the battery.
type preconditionRunner struct {
	p     *baseProcess
	timer *sim.Timer
	ci    *ChargingInterface
}

func (r *preconditionRunner) run(complete func()) {
	p := r.p
	r.ci = p.vehicle.DWD.CurrentChargingInterface(p.vehicle)
	if r.ci != nil {
		r.ci.SetCurrentPower(p.spec.Power)
	}
	r.timer = p.env.After(p.dur, func() {
		r.resetPower()
		complete()
	})
}

func (r *preconditionRunner) interrupted() {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.resetPower()
}

func (r *preconditionRunner) resetPower() {
	if r.ci != nil {
		r.ci.SetCurrentPower(0)
		r.ci = nil
	}
}
