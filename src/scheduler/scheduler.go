package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chain-observer/src/interfaces"
	"chain-observer/src/logger"
	"chain-observer/src/models"
	"chain-observer/src/registry"

	"github.com/benbjohnson/clock"
)

// -----------------------------------------------------------------------------
// Scheduler owns one refresh loop per active stream and is the engine
// facade the server talks to. Each loop runs an immediate first cycle on
// activation (the first subscriber never waits a full interval), then a
// recurring ticker. A cycle either serves the cache or pushes exactly one
// request through the shared queue; failures are broadcast to the stream's
// subscribers and retried on the next tick, with no backoff below the
// global rate limiter.
// -----------------------------------------------------------------------------

const recentLatencySamples = 20

type streamLoop struct {
	def  *registry.StreamDefinition
	stop chan struct{}
	done chan struct{}
}

// -----------------------------------------------------------------------------

type Scheduler struct {
	Logger *logger.Logger

	clock       clock.Clock
	catalogue   *registry.Catalogue
	registry    *registry.Registry
	head        *registry.ChainHead
	cache       interfaces.ICacheStore
	queue       interfaces.IRequestQueue
	broadcaster interfaces.IBroadcaster
	latencies   interfaces.ILatencySampler // optional

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu    sync.Mutex
	loops map[string]*streamLoop

	// One guard per catalogue entry: a cycle that cannot take the guard is
	// a skipped tick, never a second overlapping fetch.
	fetchGuards map[string]*sync.Mutex

	seedMu sync.Mutex
}

// -----------------------------------------------------------------------------

// NewScheduler wires the scheduler. clk may be nil (wall clock); latencies
// may be nil.
func NewScheduler(
	cat *registry.Catalogue,
	reg *registry.Registry,
	head *registry.ChainHead,
	cacheStore interfaces.ICacheStore,
	queue interfaces.IRequestQueue,
	broadcaster interfaces.IBroadcaster,
	latencies interfaces.ILatencySampler,
	clk clock.Clock,
	log *logger.Logger,
) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())

	guards := make(map[string]*sync.Mutex)
	for _, name := range cat.Names() {
		guards[name] = &sync.Mutex{}
	}

	return &Scheduler{
		Logger:      log,
		clock:       clk,
		catalogue:   cat,
		registry:    reg,
		head:        head,
		cache:       cacheStore,
		queue:       queue,
		broadcaster: broadcaster,
		latencies:   latencies,
		rootCtx:     ctx,
		rootCancel:  cancel,
		loops:       make(map[string]*streamLoop),
		fetchGuards: guards,
	}
}

// -----------------------------------------------------------------------------

// SetBroadcaster wires the fan-out target. The server needs the scheduler
// as its controller and the scheduler needs the server as its broadcaster,
// so one side is attached after construction, before any stream activates.
func (s *Scheduler) SetBroadcaster(b interfaces.IBroadcaster) {
	s.broadcaster = b
}

// -----------------------------------------------------------------------------
// Activation Lifecycle
// -----------------------------------------------------------------------------

// Activate adds a subscriber and starts the refresh loop on the first one.
func (s *Scheduler) Activate(stream string) (int64, error) {
	def, ok := s.catalogue.Get(stream)
	if !ok {
		return 0, fmt.Errorf("unknown stream '%s'", stream)
	}

	_, created := s.registry.AddSubscriber(stream)
	if created {
		l := &streamLoop{
			def:  def,
			stop: make(chan struct{}),
			done: make(chan struct{}),
		}

		s.mu.Lock()
		s.loops[stream] = l
		s.mu.Unlock()

		go s.run(l)
		s.Logger.Info("Stream '%s' activated (interval %v)", stream, def.Interval)
	}

	return def.Interval.Milliseconds(), nil
}

// -----------------------------------------------------------------------------

// Deactivate drops a subscriber; the loop stops when the count hits zero.
// An in-flight fetch finishes and still lands in the cache, it just has
// nobody left to broadcast to.
func (s *Scheduler) Deactivate(stream string) int64 {
	_, removed, saved := s.registry.RemoveSubscriber(stream)
	if !removed {
		return saved
	}

	s.mu.Lock()
	l, ok := s.loops[stream]
	if ok {
		delete(s.loops, stream)
	}
	s.mu.Unlock()

	if ok {
		close(l.stop)
		s.Logger.Info("Stream '%s' deactivated (%d fetches saved)", stream, saved)
	}

	return saved
}

// -----------------------------------------------------------------------------

// Stop tears down every loop and rejects anything still queued.
func (s *Scheduler) Stop() {
	s.rootCancel()

	s.mu.Lock()
	loops := make([]*streamLoop, 0, len(s.loops))
	for name, l := range s.loops {
		loops = append(loops, l)
		delete(s.loops, name)
	}
	s.mu.Unlock()

	for _, l := range loops {
		close(l.stop)
		<-l.done
	}
}

// -----------------------------------------------------------------------------
// Refresh Loop
// -----------------------------------------------------------------------------

func (s *Scheduler) run(l *streamLoop) {
	defer close(l.done)

	// Immediate first dispatch so the first subscriber is served right
	// away. This one waits out a fetch still finishing from a previous
	// activation instead of skipping; a skipped first cycle would leave
	// a re-joining subscriber waiting a full interval.
	s.cycle(l.def, true)

	ticker := s.clock.Ticker(l.def.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			s.cycle(l.def, false)
			// Drop a tick that queued up while the cycle ran; the next
			// fire retries instead of bursting.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// -----------------------------------------------------------------------------

// cycle is one IDLE -> FETCHING -> IDLE pass for def's stream. wait
// controls guard contention: the activation cycle blocks until the guard
// frees, ticker cycles skip the tick.
func (s *Scheduler) cycle(def *registry.StreamDefinition, wait bool) {
	guard := s.fetchGuards[def.Name]
	if wait {
		guard.Lock()
	} else if !guard.TryLock() {
		// Still FETCHING from a previous cycle; skip this tick entirely.
		return
	}
	defer guard.Unlock()

	if s.cache.IsFresh(def.Name) {
		value, ok := s.cache.Read(def.Name)
		if ok {
			age, _ := s.cache.Age(def.Name)
			s.registry.IncrementSaved(def.Name)
			s.broadcastData(def.Name, value, true, age)
		}
		return
	}

	params, err := s.resolveParams(def)
	if err != nil {
		s.broadcastError(def.Name, err)
		return
	}

	result, err := s.queue.Enqueue(s.rootCtx, def.Name, def.Method, params)
	if err != nil {
		s.Logger.Warning("Fetch for '%s' failed: %v", def.Name, err)
		s.broadcastError(def.Name, err)
		return
	}

	payload := result
	if def.Process != nil {
		payload, err = def.Process(result)
		if err != nil {
			s.Logger.Warning("Post-processing for '%s' failed: %v", def.Name, err)
			s.broadcastError(def.Name, err)
			return
		}
	}

	s.cache.Write(def.Name, payload, 0)
	s.registry.IncrementFetch(def.Name)
	s.broadcastData(def.Name, payload, false, 0)
}

// -----------------------------------------------------------------------------

// resolveParams fills def's parameter template, seeding the chain head
// first when the template needs it and none has been observed yet.
func (s *Scheduler) resolveParams(def *registry.StreamDefinition) ([]interface{}, error) {
	if def.Params == nil {
		return nil, nil
	}
	if !def.NeedsHead {
		return def.Params(0), nil
	}

	height, known := s.head.Get()
	if !known {
		if err := s.seedHead(); err != nil {
			return nil, fmt.Errorf("chain head unavailable: %w", err)
		}
		height, known = s.head.Get()
		if !known {
			return nil, fmt.Errorf("chain head still unknown after seed")
		}
	}

	return def.Params(height), nil
}

// -----------------------------------------------------------------------------

// seedHead runs a one-time fetch of the chain-state stream so
// head-dependent templates can resolve at startup.
func (s *Scheduler) seedHead() error {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	// Another caller may have seeded while we waited
	if _, known := s.head.Get(); known {
		return nil
	}

	def, ok := s.catalogue.Get(s.catalogue.ChainStateStream)
	if !ok {
		return fmt.Errorf("catalogue has no chain-state stream")
	}

	s.Logger.Info("Seeding chain head via %s", def.Method)

	result, err := s.queue.Enqueue(s.rootCtx, def.Name, def.Method, nil)
	if err != nil {
		return err
	}

	payload := result
	if def.Process != nil {
		payload, err = def.Process(result)
		if err != nil {
			return err
		}
	}

	// The seed is a real fetch of that stream; cache it so its own loop
	// benefits too.
	s.cache.Write(def.Name, payload, 0)
	return nil
}

// -----------------------------------------------------------------------------
// Broadcast Helpers
// -----------------------------------------------------------------------------

func (s *Scheduler) broadcastData(stream string, payload []byte, cached bool, age time.Duration) {
	msg := models.MLiveData{
		Type:      "live_data",
		Stream:    stream,
		Data:      payload,
		Cached:    cached,
		Timestamp: s.clock.Now().Unix(),
	}
	if cached {
		seconds := age.Seconds()
		msg.CacheAge = &seconds
	}
	s.broadcaster.Broadcast(stream, msg)
}

// -----------------------------------------------------------------------------

func (s *Scheduler) broadcastError(stream string, err error) {
	s.broadcaster.Broadcast(stream, models.MStreamError{
		Type:      "error",
		Stream:    stream,
		Error:     err.Error(),
		Timestamp: s.clock.Now().Unix(),
	})
}

// -----------------------------------------------------------------------------
// State & Stats Surface
// -----------------------------------------------------------------------------

// CurrentBlock returns the last observed chain head, if any.
func (s *Scheduler) CurrentBlock() (uint64, bool) {
	return s.head.Get()
}

// -----------------------------------------------------------------------------

func (s *Scheduler) Stats() models.MAPIStats {
	return models.MAPIStats{
		Type:              "api_stats",
		RequestsPerMinute: s.queue.RequestsThisWindow(),
		ActiveStreams:     s.registry.Count(),
		CacheHits:         s.cache.Hits(),
	}
}

// -----------------------------------------------------------------------------

func (s *Scheduler) EngineStats() models.MEngineStats {
	active := s.registry.Snapshot()

	streams := make([]models.MActiveStreamStats, 0, len(active))
	for _, a := range active {
		st := models.MActiveStreamStats{
			Name:          a.Name,
			Subscribers:   a.Subscribers,
			FetchCount:    a.FetchCount,
			RequestsSaved: a.RequestsSaved,
		}
		if age, ok := s.cache.Age(a.Name); ok {
			seconds := age.Seconds()
			st.CacheAge = &seconds
		}
		streams = append(streams, st)
	}

	stats := models.MEngineStats{
		RequestsPerMinute: s.queue.RequestsThisWindow(),
		TotalRequests:     s.queue.TotalRequests(),
		ActiveStreams:     streams,
		CacheHits:         s.cache.Hits(),
		CacheMisses:       s.cache.Misses(),
	}
	if s.latencies != nil {
		stats.RecentLatenciesMs = s.latencies.RecentLatencies(recentLatencySamples)
	}
	return stats
}

// -----------------------------------------------------------------------------

func (s *Scheduler) Catalogue() []models.MStreamInfo {
	names := s.catalogue.Names()

	out := make([]models.MStreamInfo, 0, len(names))
	for _, name := range names {
		def, _ := s.catalogue.Get(name)
		out = append(out, models.MStreamInfo{
			Name:       def.Name,
			Method:     def.Method,
			IntervalMs: def.Interval.Milliseconds(),
			TTLMs:      def.TTL.Milliseconds(),
			Active:     s.registry.IsActive(name),
		})
	}
	return out
}
