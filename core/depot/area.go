package depot

import (
	"fmt"

	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/events"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/logger"
	"github.com/mpm-tu-berlin/eflips-depot-sub000/core/sim"
)

// Side names an end of a line area: vehicles enter at one side and leave
// at the other, or at the same one, depending on the layout.
type Side int

const (
	SideBack Side = iota
	SideFront
)

func (s Side) String() string {
	if s == SideFront {
		return "front"
	}
	return "back"
}

// RequestGroup ties store requests together so that the first satisfied
// request retires the whole group.
type RequestGroup struct{ done bool }

// Done reports whether one request of the group has been satisfied.
func (g *RequestGroup) Done() bool { return g != nil && g.done }

func (g *RequestGroup) settle() {
	if g != nil {
		g.done = true
	}
}

// StoreRequest is one pending put or get on an area.
type StoreRequest struct {
	group     *RequestGroup
	vehicle   *Vehicle
	filter    func(*Vehicle) bool
	onPut     func(Area)
	onGet     func(*Vehicle)
	cancelled bool
	// since is the enqueue time of a put that found no free slot.
	since int64
}

// Cancel withdraws the request.
func (r *StoreRequest) Cancel() {
	if r != nil {
		r.cancelled = true
	}
}

func (r *StoreRequest) stale() bool {
	return r.cancelled || r.group.Done()
}

// Area is a set of slots vehicles park or are worked on in, with the
// processes available there.
type Area interface {
	Name() string
	Capacity() int
	// IsSink reports whether vehicles depart for trips from this area.
	IsSink() bool
	EntryFilter() *VehicleFilter
	Depot() *Depot
	ParkingGroup() *ParkingAreaGroup

	AvailableProcesses() []*ProcessSpec
	// ChargeProc is the first charging process available here, nil
	// when the area has none.
	ChargeProc() *ProcessSpec
	ChargingInterfaces() []*ChargingInterface

	Vehicles() []*Vehicle
	Count() int
	Vacant() int
	// VacantAccessible is the number of slots a newly arriving vehicle
	// can actually reach.
	VacantAccessible() int
	IndexOf(v *Vehicle) int
	SlotNo(v *Vehicle) int
	// IsUnblocked reports whether the vehicle can leave without moving
	// others first.
	IsUnblocked(v *Vehicle) bool
	CountRFD() int
	CountRFDUnblocked() int
	// Typestack reports whether all parked vehicles share one type;
	// known is false for an empty area.
	Typestack() (stack, known bool)
	// TypestackWith additionally admits the candidate type, treating
	// types of the same group as interchangeable.
	TypestackWith(v *Vehicle) (stack, known bool)

	// TryPut places the vehicle if a slot is reachable right now.
	TryPut(v *Vehicle) bool
	// RequestPut files a put that completes as soon as a slot is
	// reachable, possibly before returning.
	RequestPut(v *Vehicle, group *RequestGroup, onSuccess func(Area)) *StoreRequest
	// TryGet removes and returns an accessible vehicle matching the
	// filter, nil when there is none.
	TryGet(filter func(*Vehicle) bool) *Vehicle
	// RequestGet files a get that completes once a matching vehicle
	// becomes accessible.
	RequestGet(filter func(*Vehicle) bool, group *RequestGroup, onSuccess func(*Vehicle)) *StoreRequest
	// TriggerGet re-evaluates waiting gets, used after vehicle state
	// changed without a put.
	TriggerGet()
}

// areaOps is the geometry-specific part of an area.
type areaOps interface {
	// tryInsert places the vehicle, returning the slot index.
	tryInsert(v *Vehicle) (int, bool)
	// tryExtract removes an accessible vehicle matching the filter.
	tryExtract(filter func(*Vehicle) bool) (int, *Vehicle, bool)
}

type baseArea struct {
	env   *sim.Engine
	log   logger.Logger
	depot *Depot
	area  Area
	ops   areaOps

	name        string
	capacity    int
	issink      bool
	entryFilter *VehicleFilter
	processes   []*ProcessSpec
	cis         []*ChargingInterface
	group       *ParkingAreaGroup

	items    []*Vehicle
	putQueue []*StoreRequest
	getQueue []*StoreRequest
}

func (a *baseArea) init(env *sim.Engine, log logger.Logger, d *Depot, area Area, ops areaOps, name string, capacity int, issink bool, entry *VehicleFilter, procs []*ProcessSpec, cis []*ChargingInterface) error {
	if capacity < 1 {
		return fmt.Errorf("area %s: capacity must be at least 1, got %d", name, capacity)
	}
	if cis != nil && len(cis) != capacity {
		return fmt.Errorf("area %s: %d charging interfaces for %d slots", name, len(cis), capacity)
	}
	for _, p := range procs {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("area %s: %w", name, err)
		}
	}
	a.env, a.log, a.depot, a.area, a.ops = env, log, d, area, ops
	a.name, a.capacity, a.issink = name, capacity, issink
	a.entryFilter, a.processes, a.cis = entry, procs, cis
	a.items = make([]*Vehicle, capacity)
	return nil
}

func (a *baseArea) Name() string                           { return a.name }
func (a *baseArea) Capacity() int                          { return a.capacity }
func (a *baseArea) IsSink() bool                           { return a.issink }
func (a *baseArea) EntryFilter() *VehicleFilter            { return a.entryFilter }
func (a *baseArea) Depot() *Depot                          { return a.depot }
func (a *baseArea) ParkingGroup() *ParkingAreaGroup        { return a.group }
func (a *baseArea) AvailableProcesses() []*ProcessSpec     { return a.processes }
func (a *baseArea) ChargingInterfaces() []*ChargingInterface { return a.cis }

func (a *baseArea) ChargeProc() *ProcessSpec {
	for _, p := range a.processes {
		if p.IsCharge() {
			return p
		}
	}
	return nil
}

func (a *baseArea) Vehicles() []*Vehicle {
	out := make([]*Vehicle, 0, a.capacity)
	for _, v := range a.items {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func (a *baseArea) Count() int {
	n := 0
	for _, v := range a.items {
		if v != nil {
			n++
		}
	}
	return n
}

func (a *baseArea) Vacant() int { return a.capacity - a.Count() }

func (a *baseArea) IndexOf(v *Vehicle) int {
	for i, it := range a.items {
		if it == v {
			return i
		}
	}
	return -1
}

func (a *baseArea) CountRFD() int {
	n := 0
	for _, v := range a.items {
		if v != nil && v.DWD.IsRFD() {
			n++
		}
	}
	return n
}

func (a *baseArea) Typestack() (bool, bool) {
	var first *Vehicle
	for _, v := range a.items {
		if v == nil {
			continue
		}
		if first == nil {
			first = v
			continue
		}
		if v.Type != first.Type {
			return false, true
		}
	}
	if first == nil {
		return false, false
	}
	return true, true
}

func (a *baseArea) TypestackWith(cand *Vehicle) (bool, bool) {
	any := false
	for _, v := range a.items {
		if v == nil {
			continue
		}
		any = true
		if v.Type == cand.Type {
			continue
		}
		if v.Type.Group != nil && v.Type.Group == cand.Type.Group {
			continue
		}
		return false, true
	}
	if !any {
		return false, false
	}
	return true, true
}

// TryPut places the vehicle when a slot is reachable right now.
func (a *baseArea) TryPut(v *Vehicle) bool {
	slot, ok := a.ops.tryInsert(v)
	if !ok {
		return false
	}
	a.afterPut(v, slot)
	return true
}

func (a *baseArea) RequestPut(v *Vehicle, group *RequestGroup, onSuccess func(Area)) *StoreRequest {
	req := &StoreRequest{group: group, vehicle: v, onPut: onSuccess}
	if group.Done() {
		req.cancelled = true
		return req
	}
	if slot, ok := a.ops.tryInsert(v); ok {
		group.settle()
		a.afterPut(v, slot)
		if onSuccess != nil {
			onSuccess(a.area)
		}
		return req
	}
	req.since = a.env.Now()
	a.putQueue = append(a.putQueue, req)
	return req
}

func (a *baseArea) TryGet(filter func(*Vehicle) bool) *Vehicle {
	slot, v, ok := a.ops.tryExtract(filter)
	if !ok {
		return nil
	}
	a.afterGet(v, slot)
	return v
}

func (a *baseArea) RequestGet(filter func(*Vehicle) bool, group *RequestGroup, onSuccess func(*Vehicle)) *StoreRequest {
	req := &StoreRequest{group: group, filter: filter, onGet: onSuccess}
	if group.Done() {
		req.cancelled = true
		return req
	}
	if slot, v, ok := a.ops.tryExtract(filter); ok {
		group.settle()
		a.afterGet(v, slot)
		if onSuccess != nil {
			onSuccess(v)
		}
		return req
	}
	a.getQueue = append(a.getQueue, req)
	return req
}

// afterPut links the vehicle to the area and wakes waiting gets.
func (a *baseArea) afterPut(v *Vehicle, slot int) {
	v.DWD.PreviousArea = v.DWD.CurrentArea
	v.DWD.CurrentArea = a.area
	a.depot.Events.Slot.Publish(events.SlotEvent{
		Time: a.env.Now(), AreaID: a.name, Slot: slot, VehicleID: v.ID, Entered: true,
	})
	a.processGetQueue()
}

// afterGet frees the slot and wakes waiting puts. The vehicle keeps its
// current-area link until the next put or checkout clears it.
func (a *baseArea) afterGet(v *Vehicle, slot int) {
	a.depot.Events.Slot.Publish(events.SlotEvent{
		Time: a.env.Now(), AreaID: a.name, Slot: slot, VehicleID: v.ID, Entered: false,
	})
	a.processPutQueue()
}

func (a *baseArea) TriggerGet() { a.processGetQueue() }

func (a *baseArea) processPutQueue() {
	for len(a.putQueue) > 0 {
		req := a.putQueue[0]
		if req.stale() {
			a.putQueue = a.putQueue[1:]
			continue
		}
		slot, ok := a.ops.tryInsert(req.vehicle)
		if !ok {
			return
		}
		a.putQueue = a.putQueue[1:]
		req.group.settle()
		if wait := a.env.Now() - req.since; wait > 0 {
			a.depot.noteQueueWait(a.name, req.vehicle.ID, wait)
		}
		a.afterPut(req.vehicle, slot)
		if req.onPut != nil {
			req.onPut(a.area)
		}
	}
}

func (a *baseArea) processGetQueue() {
	i := 0
	for i < len(a.getQueue) {
		req := a.getQueue[i]
		if req.stale() {
			a.getQueue = append(a.getQueue[:i], a.getQueue[i+1:]...)
			continue
		}
		slot, v, ok := a.ops.tryExtract(req.filter)
		if !ok {
			i++
			continue
		}
		a.getQueue = append(a.getQueue[:i], a.getQueue[i+1:]...)
		req.group.settle()
		a.afterGet(v, slot)
		if req.onGet != nil {
			req.onGet(v)
		}
	}
}

// DirectArea holds independently accessible slots: every parked vehicle
// can enter and leave at any time.
type DirectArea struct {
	baseArea
}

// NewDirectArea builds an area whose slots are all directly accessible.
func NewDirectArea(env *sim.Engine, log logger.Logger, d *Depot, name string, capacity int, issink bool, entry *VehicleFilter, procs []*ProcessSpec, cis []*ChargingInterface) (*DirectArea, error) {
	a := &DirectArea{}
	if err := a.init(env, log, d, a, a, name, capacity, issink, entry, procs, cis); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *DirectArea) tryInsert(v *Vehicle) (int, bool) {
	for i, it := range a.items {
		if it == nil {
			a.items[i] = v
			return i, true
		}
	}
	return 0, false
}

func (a *DirectArea) tryExtract(filter func(*Vehicle) bool) (int, *Vehicle, bool) {
	for i, it := range a.items {
		if it != nil && (filter == nil || filter(it)) {
			a.items[i] = nil
			return i, it, true
		}
	}
	return 0, nil, false
}

func (a *DirectArea) VacantAccessible() int { return a.Vacant() }

func (a *DirectArea) IsUnblocked(*Vehicle) bool { return true }

func (a *DirectArea) CountRFDUnblocked() int { return a.CountRFD() }

func (a *DirectArea) SlotNo(v *Vehicle) int {
	idx := a.IndexOf(v)
	if idx < 0 {
		return -1
	}
	return idx + 1
}

// LineArea holds slots in a driving lane: vehicles enter at the put side,
// roll up behind the vehicle in front and can only leave when they are
// first in line at the get side.
type LineArea struct {
	baseArea
	putSide Side
	getSide Side
}

// NewLineArea builds a lane-shaped area with the given entry and exit
// sides.
func NewLineArea(env *sim.Engine, log logger.Logger, d *Depot, name string, capacity int, issink bool, putSide, getSide Side, entry *VehicleFilter, procs []*ProcessSpec, cis []*ChargingInterface) (*LineArea, error) {
	a := &LineArea{putSide: putSide, getSide: getSide}
	if err := a.init(env, log, d, a, a, name, capacity, issink, entry, procs, cis); err != nil {
		return nil, err
	}
	if !issink {
		log.Warnf("area %s: line layout on a non-sink area can deadlock vehicles behind slower ones", name)
	}
	return a, nil
}

// PutSide is the side vehicles enter at, GetSide the side they leave at.
func (a *LineArea) PutSide() Side { return a.putSide }
func (a *LineArea) GetSide() Side { return a.getSide }

// scan returns the slot indices ordered from the given side inward.
func (a *LineArea) scan(side Side) []int {
	idxs := make([]int, a.capacity)
	for i := range idxs {
		if side == SideBack {
			idxs[i] = i
		} else {
			idxs[i] = a.capacity - 1 - i
		}
	}
	return idxs
}

// indexPut returns the slot a vehicle entering from the given side would
// take: as deep into the lane as possible, directly behind the last
// vehicle. Blocked when the entry slot itself is occupied.
func (a *LineArea) indexPut(side Side) (int, bool) {
	order := a.scan(side)
	if a.items[order[0]] != nil {
		return 0, false
	}
	for i := 1; i < len(order); i++ {
		if a.items[order[i]] != nil {
			return order[i-1], true
		}
	}
	return order[len(order)-1], true
}

// IndexPut is the slot the next arriving vehicle would take, -1 when the
// entry is blocked.
func (a *LineArea) IndexPut() int {
	idx, ok := a.indexPut(a.putSide)
	if !ok {
		return -1
	}
	return idx
}

// indexGet returns the first occupied slot from the given side.
func (a *LineArea) indexGet(side Side) (int, bool) {
	for _, i := range a.scan(side) {
		if a.items[i] != nil {
			return i, true
		}
	}
	return 0, false
}

func (a *LineArea) tryInsert(v *Vehicle) (int, bool) {
	idx, ok := a.indexPut(a.putSide)
	if !ok {
		return 0, false
	}
	a.items[idx] = v
	return idx, true
}

// tryExtract only considers the vehicle first in line at the get side;
// vehicles behind it are blocked regardless of the filter.
func (a *LineArea) tryExtract(filter func(*Vehicle) bool) (int, *Vehicle, bool) {
	idx, ok := a.indexGet(a.getSide)
	if !ok {
		return 0, nil, false
	}
	v := a.items[idx]
	if filter != nil && !filter(v) {
		return 0, nil, false
	}
	a.items[idx] = nil
	return idx, v, true
}

// vacantSide is the number of free slots reachable from the given side.
func (a *LineArea) vacantSide(side Side) int {
	idx, ok := a.indexPut(side)
	if !ok {
		return 0
	}
	if side == SideBack {
		return idx + 1
	}
	return a.capacity - idx
}

// VacantEntrance and VacantExit are the free slot runs at the respective
// default sides.
func (a *LineArea) VacantEntrance() int { return a.vacantSide(a.putSide) }
func (a *LineArea) VacantExit() int     { return a.vacantSide(a.getSide) }

// VacantBlocked counts exit-side slots that departing vehicles would
// have to roll through; an empty lane has none.
func (a *LineArea) VacantBlocked() int {
	ve := a.VacantExit()
	if ve == a.capacity {
		return 0
	}
	return ve
}

func (a *LineArea) VacantAccessible() int { return a.VacantEntrance() }

func (a *LineArea) IsUnblocked(v *Vehicle) bool {
	idx, ok := a.indexGet(a.getSide)
	return ok && a.items[idx] == v
}

func (a *LineArea) CountRFDUnblocked() int {
	n := 0
	for _, v := range a.items {
		if v != nil && v.DWD.IsRFD() && a.IsUnblocked(v) {
			n++
		}
	}
	return n
}

func (a *LineArea) SlotNo(v *Vehicle) int {
	idx := a.IndexOf(v)
	if idx < 0 {
		return -1
	}
	return a.capacity - idx
}

// VehiclesFromExit lists parked vehicles ordered from the get side
// inward, first in line first.
func (a *LineArea) VehiclesFromExit() []*Vehicle {
	out := make([]*Vehicle, 0, a.capacity)
	for _, i := range a.scan(a.getSide) {
		if a.items[i] != nil {
			out = append(out, a.items[i])
		}
	}
	return out
}

// NeighbourToward returns the vehicle one slot closer to the given side,
// nil at the lane boundary or when the slot is empty.
func (a *LineArea) NeighbourToward(v *Vehicle, side Side) *Vehicle {
	idx := a.IndexOf(v)
	if idx < 0 {
		return nil
	}
	if side == SideFront {
		idx++
	} else {
		idx--
	}
	if idx < 0 || idx >= a.capacity {
		return nil
	}
	return a.items[idx]
}
