package eventbus

// Bus delivers events of type T to subscribers synchronously, in
// subscription order. The simulation runs on one goroutine, so inline
// delivery keeps event ordering deterministic and needs no locking.
type Bus[T any] struct {
	subs   []func(T)
	closed bool
}

// New creates an empty Bus.
func New[T any]() *Bus[T] { return &Bus[T]{} }

// Subscribe registers fn to be called for every published event. Nil
// handlers are ignored.
func (b *Bus[T]) Subscribe(fn func(T)) {
	if fn == nil || b.closed {
		return
	}
	b.subs = append(b.subs, fn)
}

// Publish calls every subscriber with e. Handlers run inline on the
// caller's goroutine.
func (b *Bus[T]) Publish(e T) {
	if b.closed {
		return
	}
	for _, fn := range b.subs {
		fn(e)
	}
}

// Close drops all subscribers. Subsequent publishes are no-ops.
func (b *Bus[T]) Close() {
	b.closed = true
	b.subs = nil
}
