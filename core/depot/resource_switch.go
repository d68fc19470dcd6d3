package depot

import (
	"fmt"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/logger"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

const secondsPerDay int64 = 86400

// breakPriority outranks all regular processes so break claims preempt
// running work when configured to.
const breakPriority = -3

// BreakWindow is one daily unavailability window in seconds since
// midnight, start inclusive, end exclusive.
type BreakWindow struct {
	Start int64
	End   int64
}

// Duration of the window in seconds.
func (w BreakWindow) Duration() int64 { return w.End - w.Start }

// ResourceSwitch takes capacity away from a resource during daily break
// windows, modelling worker shifts and pauses. Strength is how many
// capacity slots the breaks occupy; FullStrength occupies all of them.
type ResourceSwitch struct {
	ID       string
	Resource *Resource
	Breaks   []BreakWindow
	Strength int
	// Preempt evicts running users when a break starts; Resume lets the
	// evicted processes continue afterwards instead of cancelling them.
	Preempt bool
	Resume  bool

	env   *sim.Engine
	log   logger.Logger
	depot *Depot

	open   bool
	claims []*Request
}

// FullStrength occupies the resource's whole capacity during breaks.
const FullStrength = -1

// NewResourceSwitch validates the break windows against the resource.
// Windows must be within one day, in ascending order and non-overlapping.
func NewResourceSwitch(env *sim.Engine, log logger.Logger, d *Depot, id string, res *Resource, breaks []BreakWindow, strength int, preempt, resume bool) (*ResourceSwitch, error) {
	if res == nil {
		return nil, fmt.Errorf("switch %s: resource required", id)
	}
	if len(breaks) == 0 {
		return nil, fmt.Errorf("switch %s: at least one break window required", id)
	}
	var prevEnd int64 = -1
	for i, w := range breaks {
		if w.Start < 0 || w.End > secondsPerDay {
			return nil, fmt.Errorf("switch %s: window %d outside [0, %d)", id, i, secondsPerDay)
		}
		if w.Start >= w.End {
			return nil, fmt.Errorf("switch %s: window %d start %d not before end %d", id, i, w.Start, w.End)
		}
		if w.Start < prevEnd {
			return nil, fmt.Errorf("switch %s: window %d overlaps previous", id, i)
		}
		prevEnd = w.End
	}
	if strength == FullStrength {
		strength = res.Capacity
	}
	if strength < 1 || strength > res.Capacity {
		return nil, fmt.Errorf("switch %s: strength %d outside [1, %d]", id, strength, res.Capacity)
	}
	sw := &ResourceSwitch{
		ID: id, Resource: res, Breaks: breaks, Strength: strength,
		Preempt: preempt, Resume: resume,
		env: env, log: log, depot: d,
	}
	res.switches = append(res.switches, sw)
	return sw, nil
}

// Open reports whether a break window is currently active.
func (s *ResourceSwitch) Open() bool { return !s.open }

// Run starts the daily break cycle.
func (s *ResourceSwitch) Run() {
	s.scheduleWindow(0)
}

// scheduleWindow waits for the next occurrence of Breaks[i], occupies the
// resource for its duration and moves on to the following window.
func (s *ResourceSwitch) scheduleWindow(i int) {
	w := s.Breaks[i]
	now := s.env.Now()
	dayNo := now / secondsPerDay
	if dayNo*secondsPerDay+w.Start < now {
		dayNo++
	}
	start := dayNo*secondsPerDay + w.Start
	s.env.After(start-now, func() {
		s.beginBreak(w)
		s.env.After(w.Duration(), func() {
			s.endBreak()
			s.scheduleWindow((i + 1) % len(s.Breaks))
		})
	})
}

func (s *ResourceSwitch) beginBreak(w BreakWindow) {
	s.open = true
	s.log.Debugf("switch %s: break on %s, strength %d", s.ID, s.Resource.ID, s.Strength)
	s.claims = s.claims[:0]
	for n := 0; n < s.Strength; n++ {
		req := s.Resource.Request(RequestSpec{
			Priority:      breakPriority,
			Preempt:       s.Preempt,
			ResumeVictims: s.Resume,
			Holder:        s.ID,
		})
		s.claims = append(s.claims, req)
	}
	s.publish(false)
}

func (s *ResourceSwitch) endBreak() {
	for _, req := range s.claims {
		s.Resource.Release(req)
	}
	s.claims = s.claims[:0]
	s.open = false
	s.log.Debugf("switch %s: break on %s over", s.ID, s.Resource.ID)
	s.publish(true)
}

func (s *ResourceSwitch) publish(open bool) {
	if s.depot == nil {
		return
	}
	s.depot.Events.Switch.Publish(events.SwitchEvent{
		Time:     s.env.Now(),
		SwitchID: s.ID,
		Resource: s.Resource.ID,
		Strength: s.Strength,
		Full:     s.Strength == s.Resource.Capacity,
		Open:     open,
	})
}
