package depot

import (
	"fmt"
	"sort"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/logger"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// RequestSpec describes a claim on a Resource. Lower Priority wins;
// among equal priorities the earlier request wins.
type RequestSpec struct {
	Priority int
	// Preempt evicts the worst current user when the resource is full
	// and that user is strictly worse than this claim.
	Preempt bool
	// ResumeVictims tells an evicted process whether it may continue
	// once capacity frees up again.
	ResumeVictims bool
	// Holder identifies the owning process for log output.
	Holder string
	// OnGrant runs when the claim is granted, OnPreempt when a granted
	// claim is taken away by a higher-priority request.
	OnGrant   func()
	OnPreempt func(by *Request)
}

// Request is one pending or granted claim on a Resource.
type Request struct {
	res  *Resource
	spec RequestSpec
	seq  uint64

	granted   bool
	cancelled bool
}

// Granted reports whether the claim currently holds a capacity slot.
func (r *Request) Granted() bool { return r.granted }

// Priority returns the claim's priority.
func (r *Request) Priority() int { return r.spec.Priority }

// ResumeVictims reports whether processes evicted by this claim may
// continue afterwards.
func (r *Request) ResumeVictims() bool { return r.spec.ResumeVictims }

// key orders users for preemption: the user with the largest key is the
// most expendable.
func (r *Request) key() (int, uint64) { return r.spec.Priority, r.seq }

func keyLess(p1 int, s1 uint64, p2 int, s2 uint64) bool {
	if p1 != p2 {
		return p1 < p2
	}
	return s1 < s2
}

// Resource is a counted resource with priorities and preemption, covering
// workers and equipment shared between processes.
type Resource struct {
	ID       string
	Capacity int

	env *sim.Engine
	log logger.Logger
	seq uint64

	// hub receives occupancy samples once the resource is registered
	// with a depot; nil for standalone resources.
	hub *EventHub

	users []*Request
	queue []*Request

	// switches attached to this resource, informational only.
	switches []*ResourceSwitch
}

// NewResource builds a resource with the given capacity.
func NewResource(env *sim.Engine, log logger.Logger, id string, capacity int) (*Resource, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("resource %s: capacity must be at least 1, got %d", id, capacity)
	}
	return &Resource{ID: id, Capacity: capacity, env: env, log: log}, nil
}

// UserCount returns how many claims currently hold the resource.
func (r *Resource) UserCount() int { return len(r.users) }

// QueueLen returns how many claims are waiting.
func (r *Resource) QueueLen() int { return len(r.queue) }

// Request files a claim. OnGrant fires as soon as a slot is available,
// possibly before Request returns when the resource is free. A request
// with Preempt set evicts the worst current user if that user is strictly
// worse than the new claim; the evicted user's OnPreempt runs before the
// new grant.
func (r *Resource) Request(spec RequestSpec) *Request {
	r.seq++
	req := &Request{res: r, spec: spec, seq: r.seq}
	// Queue before preempting: a victim re-requesting from its OnPreempt
	// callback must compete against this claim, not overtake it.
	r.queue = append(r.queue, req)
	r.sortQueue()
	if spec.Preempt && len(r.users) >= r.Capacity {
		r.tryPreempt(req)
	}
	r.triggerGrants()
	r.publishUsage()
	return req
}

// publishUsage samples the occupancy onto the event hub.
func (r *Resource) publishUsage() {
	if r.hub == nil {
		return
	}
	r.hub.Resource.Publish(events.ResourceEvent{
		Time: r.env.Now(), Resource: r.ID,
		Users: len(r.users), Queue: len(r.queue), Capacity: r.Capacity,
	})
}

// tryPreempt evicts the worst user when it is strictly worse than req.
func (r *Resource) tryPreempt(req *Request) {
	var worst *Request
	for _, u := range r.users {
		if worst == nil {
			worst = u
			continue
		}
		wp, ws := worst.key()
		up, us := u.key()
		if keyLess(wp, ws, up, us) {
			worst = u
		}
	}
	if worst == nil {
		return
	}
	wp, ws := worst.key()
	if !keyLess(req.spec.Priority, req.seq, wp, ws) {
		return
	}
	r.removeUser(worst)
	worst.granted = false
	r.log.Debugf("resource %s: %s preempted by %s", r.ID, worst.spec.Holder, req.spec.Holder)
	if worst.spec.OnPreempt != nil {
		worst.spec.OnPreempt(req)
	}
}

func (r *Resource) sortQueue() {
	sort.SliceStable(r.queue, func(i, j int) bool {
		pi, si := r.queue[i].key()
		pj, sj := r.queue[j].key()
		return keyLess(pi, si, pj, sj)
	})
}

// triggerGrants moves queued claims into the user set while capacity
// remains.
func (r *Resource) triggerGrants() {
	for len(r.queue) > 0 && len(r.users) < r.Capacity {
		req := r.queue[0]
		r.queue = r.queue[1:]
		if req.cancelled {
			continue
		}
		req.granted = true
		r.users = append(r.users, req)
		if req.spec.OnGrant != nil {
			req.spec.OnGrant()
		}
	}
}

func (r *Resource) removeUser(req *Request) {
	for i, u := range r.users {
		if u == req {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return
		}
	}
}

// Release gives the claim's slot back and hands it to the next waiter.
func (r *Resource) Release(req *Request) {
	if req.granted {
		r.removeUser(req)
		req.granted = false
		r.triggerGrants()
		r.publishUsage()
		return
	}
	r.Cancel(req)
}

// Cancel withdraws a claim that has not been granted yet.
func (r *Resource) Cancel(req *Request) {
	req.cancelled = true
	for i, q := range r.queue {
		if q == req {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}
	r.publishUsage()
}

// ChargingInterface is a slot-bound charge point: a capacity-1 resource
// with a power limit. The momentary power draw is reported to the depot
// for the total load curve.
type ChargingInterface struct {
	*Resource
	MaxPower float64

	depot        *Depot
	currentPower float64
}

// NewChargingInterface builds a charge point with the given power limit
// in kW.
func NewChargingInterface(env *sim.Engine, log logger.Logger, id string, maxPower float64, d *Depot) (*ChargingInterface, error) {
	if maxPower <= 0 {
		return nil, fmt.Errorf("charging interface %s: max power must be positive, got %g", id, maxPower)
	}
	res, err := NewResource(env, log, id, 1)
	if err != nil {
		return nil, err
	}
	return &ChargingInterface{Resource: res, MaxPower: maxPower, depot: d}, nil
}

// CurrentPower returns the momentary draw in kW.
func (ci *ChargingInterface) CurrentPower() float64 { return ci.currentPower }

// SetCurrentPower updates the draw and the depot's total load.
func (ci *ChargingInterface) SetCurrentPower(p float64) {
	if p == ci.currentPower {
		return
	}
	delta := p - ci.currentPower
	ci.currentPower = p
	if ci.depot != nil {
		ci.depot.addPower(delta)
	}
}
