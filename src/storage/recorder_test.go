package storage

import (
	"sync"
	"testing"
	"time"

	"chain-observer/src/logger"
	"chain-observer/src/models"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

type memoryDB struct {
	mu   sync.Mutex
	rows []models.MRequestRecord
}

func (m *memoryDB) Initialize() error     { return nil }
func (m *memoryDB) CleanupOldData() error { return nil }
func (m *memoryDB) Close() error          { return nil }

func (m *memoryDB) SaveRequestRecord(rec models.MRequestRecord) error {
	m.mu.Lock()
	m.rows = append(m.rows, rec)
	m.mu.Unlock()
	return nil
}

func (m *memoryDB) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// -----------------------------------------------------------------------------

func ok(durationMs float64) models.MRequestRecord {
	return models.MRequestRecord{Stream: "s", Method: "m", DurationMs: durationMs, OK: true, Timestamp: time.Now().Unix()}
}

func failed() models.MRequestRecord {
	return models.MRequestRecord{Stream: "s", Method: "m", OK: false, Error: "timeout", Timestamp: time.Now().Unix()}
}

// -----------------------------------------------------------------------------

func TestRecorderForwardsRowsToLedger(t *testing.T) {
	db := &memoryDB{}
	r := NewRecorder(db, 10, logger.NewLogger("ERROR", "recorder-test"))
	r.Start()

	r.Record(ok(12))
	r.Record(failed())

	require.Eventually(t, func() bool { return db.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	r.Stop()
}

// -----------------------------------------------------------------------------

func TestRecorderFlushesOnStop(t *testing.T) {
	db := &memoryDB{}
	r := NewRecorder(db, 10, logger.NewLogger("ERROR", "recorder-test"))
	r.Start()

	for i := 0; i < 5; i++ {
		r.Record(ok(float64(i)))
	}
	r.Stop()

	require.Equal(t, 5, db.count(), "buffered rows must be flushed before shutdown")
}

// -----------------------------------------------------------------------------

func TestRecorderWithoutDatabase(t *testing.T) {
	r := NewRecorder(nil, 10, logger.NewLogger("ERROR", "recorder-test"))
	r.Start()

	// Sampling still works with storage disabled
	r.Record(ok(7))
	require.Equal(t, []float64{7}, r.RecentLatencies(5))
	r.Stop()
}

// -----------------------------------------------------------------------------

func TestRecentLatenciesOldestFirst(t *testing.T) {
	r := NewRecorder(nil, 3, logger.NewLogger("ERROR", "recorder-test"))

	r.Record(ok(10))
	r.Record(ok(20))
	r.Record(ok(30))
	r.Record(ok(40))

	require.Equal(t, []float64{20, 30, 40}, r.RecentLatencies(3))
}

// -----------------------------------------------------------------------------

func TestUpstreamHealthTracksFailureStreak(t *testing.T) {
	r := NewRecorder(nil, 10, logger.NewLogger("ERROR", "recorder-test"))

	require.True(t, r.UpstreamHealthy())

	r.Record(failed())
	r.Record(failed())
	require.True(t, r.UpstreamHealthy(), "two failures are below the threshold")

	r.Record(failed())
	require.False(t, r.UpstreamHealthy())

	// A single success resets the streak
	r.Record(ok(5))
	require.True(t, r.UpstreamHealthy())
}
