package rpcqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chain-observer/src/interfaces"
	"chain-observer/src/logger"
	"chain-observer/src/models"

	"github.com/benbjohnson/clock"
)

// -----------------------------------------------------------------------------
// Queue serializes every upstream call through one drain loop. Two gates on
// dispatch: a minimum spacing between consecutive calls, and a hard ceiling
// per 60-second window. The window is a fixed counter reset on the 60s
// boundary, not a sliding window; a burst straddling the boundary can
// briefly exceed the nominal rate. Kept that way on purpose.
//
// FIFO across all callers: the gates delay the head request, they never
// reorder. No two requests are ever dispatched concurrently.
// -----------------------------------------------------------------------------

const defaultQueueDepth = 256

var ErrQueueStopped = fmt.Errorf("request queue stopped")

// -----------------------------------------------------------------------------

type outcome struct {
	result json.RawMessage
	err    error
}

type queuedRequest struct {
	ctx        context.Context
	stream     string
	method     string
	params     []interface{}
	done       chan outcome // buffered; drain loop never blocks on it
	enqueuedAt time.Time
}

// -----------------------------------------------------------------------------

type Queue struct {
	Logger *logger.Logger

	client interfaces.IUpstreamClient
	sink   interfaces.IRequestSink // optional telemetry
	clock  clock.Clock

	minSpacing   time.Duration
	maxPerWindow int64
	callTimeout  time.Duration

	requests chan *queuedRequest
	stop     chan struct{}
	stopOnce sync.Once

	mu           sync.Mutex
	lastDispatch time.Time
	windowStart  time.Time
	windowCount  int64
	total        int64
}

// -----------------------------------------------------------------------------

// NewQueue wires the queue but does not start draining; call Start.
// sink may be nil. clk may be nil (wall clock).
func NewQueue(cfg *models.MConfig, client interfaces.IUpstreamClient, sink interfaces.IRequestSink, clk clock.Clock, log *logger.Logger) *Queue {
	if clk == nil {
		clk = clock.New()
	}

	return &Queue{
		Logger:       log,
		client:       client,
		sink:         sink,
		clock:        clk,
		minSpacing:   time.Duration(cfg.RateLimit.MinSpacingMs) * time.Millisecond,
		maxPerWindow: int64(cfg.RateLimit.MaxPerMinute),
		callTimeout:  time.Duration(cfg.Upstream.RequestTimeout) * time.Second,
		requests:     make(chan *queuedRequest, defaultQueueDepth),
		stop:         make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

func (q *Queue) Start() {
	go q.drain()
}

// -----------------------------------------------------------------------------

func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
}

// -----------------------------------------------------------------------------

// Enqueue blocks until the request has been dispatched and resolved, the
// caller's context is done, or the queue stops.
func (q *Queue) Enqueue(ctx context.Context, stream string, method string, params []interface{}) (json.RawMessage, error) {
	req := &queuedRequest{
		ctx:        ctx,
		stream:     stream,
		method:     method,
		params:     params,
		done:       make(chan outcome, 1),
		enqueuedAt: q.clock.Now(),
	}

	select {
	case q.requests <- req:
	case <-q.stop:
		return nil, ErrQueueStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case out := <-req.done:
		return out.result, out.err
	case <-q.stop:
		return nil, ErrQueueStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// Drain Loop
// -----------------------------------------------------------------------------

func (q *Queue) drain() {
	for {
		select {
		case <-q.stop:
			return
		case req := <-q.requests:
			if !q.waitUntilEligible(req) {
				continue
			}
			q.dispatch(req)
		}
	}
}

// -----------------------------------------------------------------------------

// waitUntilEligible sleeps until both rate gates open. Returns false if the
// queue stopped or the request's context expired while waiting (the request
// is rejected, not dispatched).
func (q *Queue) waitUntilEligible(req *queuedRequest) bool {
	for {
		wait := q.nextDelay()
		if wait <= 0 {
			return true
		}

		t := q.clock.Timer(wait)
		select {
		case <-t.C:
			// Re-check: the window may have rolled over meanwhile
		case <-req.ctx.Done():
			t.Stop()
			req.done <- outcome{err: req.ctx.Err()}
			return false
		case <-q.stop:
			t.Stop()
			req.done <- outcome{err: ErrQueueStopped}
			return false
		}
	}
}

// -----------------------------------------------------------------------------

// nextDelay returns how long the head request must still wait, or <= 0 when
// dispatch is allowed now.
func (q *Queue) nextDelay() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	q.rollWindowLocked(now)

	var delay time.Duration

	if q.windowCount >= q.maxPerWindow {
		delay = q.windowStart.Add(time.Minute).Sub(now)
	}

	if q.minSpacing > 0 && !q.lastDispatch.IsZero() {
		if spacing := q.lastDispatch.Add(q.minSpacing).Sub(now); spacing > delay {
			delay = spacing
		}
	}

	return delay
}

// -----------------------------------------------------------------------------

func (q *Queue) rollWindowLocked(now time.Time) {
	if q.windowStart.IsZero() || now.Sub(q.windowStart) >= time.Minute {
		q.windowStart = now
		q.windowCount = 0
	}
}

// -----------------------------------------------------------------------------

func (q *Queue) dispatch(req *queuedRequest) {
	q.mu.Lock()
	now := q.clock.Now()
	q.rollWindowLocked(now)
	q.windowCount++
	q.total++
	q.lastDispatch = now
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(req.ctx, q.callTimeout)
	defer cancel()

	started := q.clock.Now()
	result, err := q.client.Call(ctx, req.method, req.params)
	elapsed := q.clock.Since(started)

	if q.sink != nil {
		rec := models.MRequestRecord{
			Stream:     req.stream,
			Method:     req.method,
			DurationMs: float64(elapsed) / float64(time.Millisecond),
			OK:         err == nil,
			Timestamp:  q.clock.Now().Unix(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		q.sink.Record(rec)
	}

	if err != nil {
		q.Logger.Debug("Dispatch %s failed after %v: %v", req.method, elapsed, err)
	}

	req.done <- outcome{result: result, err: err}
}

// -----------------------------------------------------------------------------
// Stats
// -----------------------------------------------------------------------------

func (q *Queue) RequestsThisWindow() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollWindowLocked(q.clock.Now())
	return q.windowCount
}

// -----------------------------------------------------------------------------

func (q *Queue) TotalRequests() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}
