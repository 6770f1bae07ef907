package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// -----------------------------------------------------------------------------
// Store holds the last value per stream with lazy TTL staleness. Entries
// are catalogue-sized and never evicted: a stream that loses all its
// subscribers keeps its entry so a later re-join can still be served a
// TTL-valid value without an upstream call.
// -----------------------------------------------------------------------------

type entry struct {
	value     json.RawMessage
	fetchedAt time.Time
	ttl       time.Duration
}

// -----------------------------------------------------------------------------

type Store struct {
	clock clock.Clock

	mu      sync.RWMutex
	entries map[string]*entry
	ttls    map[string]time.Duration // static per-stream config

	hits   int64
	misses int64
}

// -----------------------------------------------------------------------------

// NewStore creates a Store with the catalogue's per-stream TTLs.
// clk may be nil (wall clock).
func NewStore(ttls map[string]time.Duration, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}

	copied := make(map[string]time.Duration, len(ttls))
	for k, v := range ttls {
		copied[k] = v
	}

	return &Store{
		clock:   clk,
		entries: make(map[string]*entry),
		ttls:    copied,
	}
}

// -----------------------------------------------------------------------------

// IsFresh reports whether stream has a value younger than its TTL, and
// counts the check as a hit or miss.
func (s *Store) IsFresh(stream string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[stream]
	if ok && s.clock.Now().Sub(e.fetchedAt) < e.ttl {
		s.hits++
		return true
	}

	s.misses++
	return false
}

// -----------------------------------------------------------------------------

// Read returns the cached value whether fresh or stale.
func (s *Store) Read(stream string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[stream]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// -----------------------------------------------------------------------------

// Age returns time since the last write for stream.
func (s *Store) Age(stream string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[stream]
	if !ok {
		return 0, false
	}
	return s.clock.Now().Sub(e.fetchedAt), true
}

// -----------------------------------------------------------------------------

// Write stores value and stamps it with the current time. ttlOverride of
// zero keeps the stream's configured TTL.
func (s *Store) Write(stream string, value json.RawMessage, ttlOverride time.Duration) {
	ttl := ttlOverride
	if ttl <= 0 {
		ttl = s.ttls[stream]
	}

	s.mu.Lock()
	s.entries[stream] = &entry{
		value:     value,
		fetchedAt: s.clock.Now(),
		ttl:       ttl,
	}
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Counters
// -----------------------------------------------------------------------------

func (s *Store) Hits() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits
}

// -----------------------------------------------------------------------------

func (s *Store) Misses() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.misses
}
