package storage

import (
	"sync"

	"chain-observer/src/interfaces"
	"chain-observer/src/logger"
	"chain-observer/src/models"
	"chain-observer/src/utils"
)

// -----------------------------------------------------------------------------
// Recorder fans each dispatch outcome into the latency ring, the upstream
// health flag, and the request ledger. Ledger writes happen on a worker
// goroutine behind a buffered channel so the queue's drain loop is never
// blocked on the database; when the buffer is full, rows are dropped.
// -----------------------------------------------------------------------------

const recorderQueueDepth = 512

// consecutive failures before the upstream is considered unhealthy
const unhealthyThreshold = 3

type Recorder struct {
	Logger *logger.Logger

	db   interfaces.IDatabase // may be nil (storage disabled)
	ring *utils.RingBuffer

	writes chan models.MRequestRecord
	stop   chan struct{}
	done   chan struct{}

	mu            sync.Mutex
	failureStreak int
}

// -----------------------------------------------------------------------------

func NewRecorder(db interfaces.IDatabase, ringCapacity int, log *logger.Logger) *Recorder {
	return &Recorder{
		Logger: log,
		db:     db,
		ring:   utils.NewRingBuffer(ringCapacity),
		writes: make(chan models.MRequestRecord, recorderQueueDepth),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

func (r *Recorder) Start() {
	go r.writeLoop()
}

// -----------------------------------------------------------------------------

func (r *Recorder) Stop() {
	close(r.stop)
	<-r.done
}

// -----------------------------------------------------------------------------

// Record implements interfaces.IRequestSink. Never blocks.
func (r *Recorder) Record(rec models.MRequestRecord) {
	r.mu.Lock()
	r.ring.Append(rec)
	if rec.OK {
		r.failureStreak = 0
	} else {
		r.failureStreak++
	}
	r.mu.Unlock()

	if r.db == nil {
		return
	}

	select {
	case r.writes <- rec:
	default:
		r.Logger.Warning("Ledger write buffer full, dropping row for %s", rec.Method)
	}
}

// -----------------------------------------------------------------------------

// RecentLatencies implements interfaces.ILatencySampler.
func (r *Recorder) RecentLatencies(n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ring.LatestDurations(n)
}

// -----------------------------------------------------------------------------

// UpstreamHealthy reports whether recent calls have been succeeding.
func (r *Recorder) UpstreamHealthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failureStreak < unhealthyThreshold
}

// -----------------------------------------------------------------------------

func (r *Recorder) writeLoop() {
	defer close(r.done)

	for {
		select {
		case rec := <-r.writes:
			if err := r.db.SaveRequestRecord(rec); err != nil {
				r.Logger.Error("Ledger write failed: %v", err)
			}
		case <-r.stop:
			// Flush what is already buffered, then exit
			for {
				select {
				case rec := <-r.writes:
					if err := r.db.SaveRequestRecord(rec); err != nil {
						r.Logger.Error("Ledger write failed: %v", err)
					}
				default:
					return
				}
			}
		}
	}
}
