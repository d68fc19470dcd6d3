package sim

import "container/heap"

// Engine is a single-threaded discrete-event clock. Time is measured in
// whole simulated seconds since the start of the run. Callbacks scheduled
// for the same instant fire in insertion order, which keeps runs
// deterministic.
type Engine struct {
	now   int64
	seq   uint64
	queue timerHeap
}

// NewEngine returns an engine positioned at t=0.
func NewEngine() *Engine {
	return &Engine{}
}

// Now returns the current simulation time in seconds.
func (e *Engine) Now() int64 { return e.now }

// After schedules fn to run delay seconds from now. A zero delay defers fn
// until the currently firing events of this instant have settled (the
// "step back" pattern). Negative delays panic: scheduling into the past
// indicates corrupted control flow.
func (e *Engine) After(delay int64, fn func()) *Timer {
	if delay < 0 {
		panic("sim: negative delay")
	}
	if fn == nil {
		panic("sim: nil callback")
	}
	t := &Timer{at: e.now + delay, seq: e.seq, fn: fn, index: -1}
	e.seq++
	heap.Push(&e.queue, t)
	return t
}

// Run processes events in time order until the queue is empty or the
// clock would pass horizon. Events scheduled exactly at horizon still
// fire.
func (e *Engine) Run(horizon int64) {
	for e.queue.Len() > 0 {
		next := e.queue[0]
		if next.at > horizon {
			break
		}
		heap.Pop(&e.queue)
		if next.fn == nil {
			// Stopped timer, drained lazily.
			continue
		}
		e.now = next.at
		fn := next.fn
		next.fn = nil
		fn()
	}
	if e.now < horizon {
		e.now = horizon
	}
}

// Pending returns the number of scheduled, not yet fired timers.
func (e *Engine) Pending() int { return e.queue.Len() }

// Timer is a handle for a scheduled callback.
type Timer struct {
	at    int64
	seq   uint64
	fn    func()
	index int
	eng   *Engine
}

// At returns the simulation time the timer fires at.
func (t *Timer) At() int64 { return t.at }

// Stopped reports whether the timer was stopped or has already fired.
func (t *Timer) Stopped() bool { return t.fn == nil }

// Stop cancels the timer. It returns false if the callback already fired
// or the timer was stopped before.
func (t *Timer) Stop() bool {
	if t.fn == nil {
		return false
	}
	// Lazy removal: keep the heap entry but neutralize the callback.
	t.fn = nil
	return true
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
