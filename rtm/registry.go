package rtm

import (
	"hash/maphash"
	"sync"

	"github.com/apex-wang/AUIKit/delegate"
	"go.uber.org/zap"
)

const DefaultShardCount = 32

// Topic is the subscription unit: a channel plus an attribute key. Capabilities
// that are not key-scoped use an empty Key.
type Topic struct {
	Channel string
	Key     string
}

// Registry maps topics to listener sets for one capability. Topics are spread
// over independently locked shards, and each listener set carries its own
// lock, so fan-out in one room never waits on another.
type Registry[S any] struct {
	seed   maphash.Seed
	shards []registryShard[S]
	log    *zap.Logger
	name   string
}

type registryShard[S any] struct {
	mu     sync.RWMutex
	topics map[Topic]*delegate.Helper[S]
}

func NewRegistry[S any](name string, shards int, log *zap.Logger) *Registry[S] {
	if shards <= 0 {
		shards = DefaultShardCount
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry[S]{
		seed:   maphash.MakeSeed(),
		shards: make([]registryShard[S], shards),
		log:    log,
		name:   name,
	}
	for i := range r.shards {
		r.shards[i].topics = make(map[Topic]*delegate.Helper[S])
	}
	return r
}

// Subscribe registers ref under topic. Subscribing the same listener twice
// keeps a single registration.
func (r *Registry[S]) Subscribe(topic Topic, ref *delegate.Ref[S]) bool {
	if ref == nil {
		return false
	}
	s := r.shard(topic)

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.topics[topic]
	if !ok {
		h = delegate.New[S](
			delegate.WithLogger(r.log),
			delegate.WithName(r.name+":"+topic.Channel+"/"+topic.Key),
		)
		s.topics[topic] = h
	}
	return h.Bind(ref)
}

// Unsubscribe removes ref from topic. Unknown topics and listeners are ignored.
func (r *Registry[S]) Unsubscribe(topic Topic, ref *delegate.Ref[S]) bool {
	if ref == nil {
		return false
	}
	s := r.shard(topic)

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.topics[topic]
	if !ok {
		return false
	}
	removed := h.Unbind(ref)
	if h.Len() == 0 {
		delete(s.topics, topic)
	}
	return removed
}

// FanOut calls fn for every live listener of topic. The listener set is
// snapshotted first, so callbacks may subscribe or unsubscribe freely. A topic
// whose listeners have all been collected or released is dropped afterwards.
func (r *Registry[S]) FanOut(topic Topic, fn func(S)) {
	s := r.shard(topic)

	s.mu.RLock()
	h := s.topics[topic]
	s.mu.RUnlock()

	if h == nil {
		return
	}
	h.NotifyAll(fn)
	if h.Len() == 0 {
		s.drop(topic, h)
	}
}

// FanOutAll calls fn for every live listener of every topic, then drops the
// topics left without listeners.
func (r *Registry[S]) FanOutAll(fn func(S)) {
	for _, h := range r.helpers() {
		h.NotifyAll(fn)
	}
	r.Sweep()
}

// Sweep drops every topic without a live listener.
func (r *Registry[S]) Sweep() {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for topic, h := range s.topics {
			if h.Len() == 0 {
				delete(s.topics, topic)
			}
		}
		s.mu.Unlock()
	}
}

// Has reports whether ref is a live registration for topic.
func (r *Registry[S]) Has(topic Topic, ref *delegate.Ref[S]) bool {
	s := r.shard(topic)

	s.mu.RLock()
	h := s.topics[topic]
	s.mu.RUnlock()

	return h != nil && h.Contains(ref)
}

// Count returns the number of live registrations across all topics.
func (r *Registry[S]) Count() int {
	n := 0
	for _, h := range r.helpers() {
		n += h.Len()
	}
	return n
}

// Topics returns the number of topics with at least one registration entry.
func (r *Registry[S]) Topics() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.topics)
		s.mu.RUnlock()
	}
	return n
}

func (r *Registry[S]) helpers() []*delegate.Helper[S] {
	var out []*delegate.Helper[S]
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, h := range s.topics {
			out = append(out, h)
		}
		s.mu.RUnlock()
	}
	return out
}

// drop deletes topic if it still maps to h and h is still empty. Subscribe
// binds under the same lock, so a concurrent registration is never lost.
func (s *registryShard[S]) drop(topic Topic, h *delegate.Helper[S]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.topics[topic] == h && h.Len() == 0 {
		delete(s.topics, topic)
	}
}

func (r *Registry[S]) shard(topic Topic) *registryShard[S] {
	if len(r.shards) == 1 {
		return &r.shards[0]
	}
	var h maphash.Hash
	h.SetSeed(r.seed)
	_, _ = h.WriteString(topic.Channel)
	_ = h.WriteByte(0)
	_, _ = h.WriteString(topic.Key)
	return &r.shards[h.Sum64()%uint64(len(r.shards))]
}
