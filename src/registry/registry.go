package registry

import "sync"

// -----------------------------------------------------------------------------
// Registry tracks runtime state of active streams: subscriber counts and
// per-stream counters. Created at process start, owned by the engine; no
// ambient globals.
// -----------------------------------------------------------------------------

// ActiveStream exists only while a stream has >= 1 subscriber.
type ActiveStream struct {
	Name          string
	Subscribers   int
	FetchCount    int64
	RequestsSaved int64 // scheduler cycles served from cache
}

// -----------------------------------------------------------------------------

type Registry struct {
	mu      sync.Mutex
	streams map[string]*ActiveStream
}

// -----------------------------------------------------------------------------

func NewRegistry() *Registry {
	return &Registry{
		streams: make(map[string]*ActiveStream),
	}
}

// -----------------------------------------------------------------------------

// AddSubscriber increments the stream's subscriber count, creating the
// active state when this is the first subscriber. Returns the new count
// and whether the state was created.
func (r *Registry) AddSubscriber(name string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[name]
	if !ok {
		s = &ActiveStream{Name: name}
		r.streams[name] = s
	}
	s.Subscribers++
	return s.Subscribers, !ok
}

// -----------------------------------------------------------------------------

// RemoveSubscriber decrements the count; at zero the active state is
// removed. Returns the remaining count, whether the state was removed, and
// the requests-saved counter at removal. Inactive streams are a no-op.
func (r *Registry) RemoveSubscriber(name string) (int, bool, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[name]
	if !ok {
		return 0, false, 0
	}

	s.Subscribers--
	if s.Subscribers > 0 {
		return s.Subscribers, false, s.RequestsSaved
	}

	delete(r.streams, name)
	return 0, true, s.RequestsSaved
}

// -----------------------------------------------------------------------------

// IncrementFetch records one completed upstream fetch for name.
func (r *Registry) IncrementFetch(name string) {
	r.mu.Lock()
	if s, ok := r.streams[name]; ok {
		s.FetchCount++
	}
	r.mu.Unlock()
}

// -----------------------------------------------------------------------------

// IncrementSaved records one cycle served from cache (fetch avoided).
func (r *Registry) IncrementSaved(name string) {
	r.mu.Lock()
	if s, ok := r.streams[name]; ok {
		s.RequestsSaved++
	}
	r.mu.Unlock()
}

// -----------------------------------------------------------------------------

// IsActive reports whether name currently has subscribers.
func (r *Registry) IsActive(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.streams[name]
	return ok
}

// -----------------------------------------------------------------------------

// Count returns the number of active streams.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// -----------------------------------------------------------------------------

// Snapshot returns copies of all active stream states.
func (r *Registry) Snapshot() []ActiveStream {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ActiveStream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, *s)
	}
	return out
}
