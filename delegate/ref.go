package delegate

import (
	"fmt"
	"sync/atomic"
	"weak"
)

// Ref is a non-owning handle to a listener of type L.
//
// A Ref never keeps its listener alive: it resolves through a weak pointer, so
// once the owner drops the listener (or calls Release) Get reports false and the
// holder silently skips it. Two refs made from the same pointer are equal for
// Bind/Unbind purposes.
type Ref[L any] struct {
	id       any
	load     func() (L, bool)
	released atomic.Bool
}

// Weak builds a Ref to the listener p points to. *T must implement L.
//
//	ref := delegate.Weak[jukebox.Listener](view)
//
// T must not be a zero-size type: all zero-size values share one address and
// would collapse into a single identity.
func Weak[L any, T any](p *T) *Ref[L] {
	if p == nil {
		panic("delegate: Weak called with nil pointer")
	}
	if _, ok := any(p).(L); !ok {
		var zero L
		panic(fmt.Sprintf("delegate: %T does not implement %T", p, &zero))
	}

	wp := weak.Make(p)
	return &Ref[L]{
		id: wp,
		load: func() (L, bool) {
			v := wp.Value()
			if v == nil {
				var zero L
				return zero, false
			}
			l, ok := any(v).(L)
			return l, ok
		},
	}
}

// Get returns the listener while it is alive and not released.
func (r *Ref[L]) Get() (L, bool) {
	if r == nil || r.released.Load() {
		var zero L
		return zero, false
	}
	return r.load()
}

// Alive reports whether Get would currently succeed.
func (r *Ref[L]) Alive() bool {
	_, ok := r.Get()
	return ok
}

// Release detaches the ref from its listener. Every holder drops it on its next
// notification pass.
func (r *Ref[L]) Release() {
	if r == nil {
		return
	}
	r.released.Store(true)
}

// Same reports whether both refs point at the same listener.
func (r *Ref[L]) Same(other *Ref[L]) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.id == other.id
}
