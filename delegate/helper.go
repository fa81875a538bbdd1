package delegate

import (
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Helper holds a set of non-owning listener refs and fans actions out to the
// ones still alive. It is safe for concurrent use, and listeners may Bind or
// Unbind from inside NotifyAll: every pass iterates a snapshot.
type Helper[L any] struct {
	mu   sync.Mutex
	refs []*Ref[L]
	log  *zap.Logger
	name string
}

type Option func(*options)

type options struct {
	log  *zap.Logger
	name string
}

// WithLogger sets the logger used to report recovered listener panics.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithName labels log entries emitted by the helper.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

func New[L any](opts ...Option) *Helper[L] {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return &Helper[L]{log: o.log, name: o.name}
}

// Bind adds ref. It returns false when a live ref to the same listener is
// already bound. A stale entry for the same listener is replaced.
func (h *Helper[L]) Bind(ref *Ref[L]) bool {
	if ref == nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.refs {
		if !existing.Same(ref) {
			continue
		}
		if existing.Alive() {
			return false
		}
		h.refs[i] = ref
		return true
	}
	h.refs = append(h.refs, ref)
	return true
}

// Unbind removes ref. Removing a ref that is not bound is a no-op.
func (h *Helper[L]) Unbind(ref *Ref[L]) bool {
	if ref == nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.refs {
		if existing.Same(ref) {
			h.refs = append(h.refs[:i:i], h.refs[i+1:]...)
			return true
		}
	}
	return false
}

// NotifyAll applies action to every live listener. Dead refs are skipped and
// pruned. A panicking listener is logged and does not stop delivery to the rest.
func (h *Helper[L]) NotifyAll(action func(L)) {
	if action == nil {
		return
	}

	refs := h.snapshot()
	dead := 0
	for _, ref := range refs {
		l, ok := ref.Get()
		if !ok {
			dead++
			continue
		}
		h.invoke(l, action)
	}

	if dead > 0 {
		h.prune()
	}
}

// Len returns the number of live listeners.
func (h *Helper[L]) Len() int {
	n := 0
	for _, ref := range h.snapshot() {
		if ref.Alive() {
			n++
		}
	}
	return n
}

// Contains reports whether a live ref to the same listener is bound.
func (h *Helper[L]) Contains(ref *Ref[L]) bool {
	for _, existing := range h.snapshot() {
		if existing.Same(ref) {
			return existing.Alive()
		}
	}
	return false
}

// Clear unbinds every listener.
func (h *Helper[L]) Clear() {
	h.mu.Lock()
	h.refs = nil
	h.mu.Unlock()
}

func (h *Helper[L]) snapshot() []*Ref[L] {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.refs) == 0 {
		return nil
	}
	return append([]*Ref[L](nil), h.refs...)
}

func (h *Helper[L]) prune() {
	h.mu.Lock()
	defer h.mu.Unlock()

	live := h.refs[:0]
	for _, ref := range h.refs {
		if ref.Alive() {
			live = append(live, ref)
		}
	}
	for i := len(live); i < len(h.refs); i++ {
		h.refs[i] = nil
	}
	h.refs = live
}

func (h *Helper[L]) invoke(l L, action func(L)) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error(
				"panic in delegate listener",
				zap.String("helper", h.name),
				zap.String("listener", fmt.Sprintf("%T", l)),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	action(l)
}
