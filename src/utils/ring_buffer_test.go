package utils

import (
	"testing"

	"chain-observer/src/models"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func sample(ts int64, durationMs float64, ok bool) models.MRequestRecord {
	return models.MRequestRecord{Stream: "s", Method: "m", DurationMs: durationMs, OK: ok, Timestamp: ts}
}

// -----------------------------------------------------------------------------

func TestAppendAndSize(t *testing.T) {
	rb := NewRingBuffer(3)
	require.Equal(t, 0, rb.Size())
	require.Equal(t, 3, rb.Capacity())
	require.False(t, rb.IsFull())

	rb.Append(sample(1, 10, true))
	rb.Append(sample(2, 20, true))
	require.Equal(t, 2, rb.Size())

	rb.Append(sample(3, 30, true))
	require.True(t, rb.IsFull())

	// Overwrites the oldest, size stays pinned at capacity
	rb.Append(sample(4, 40, true))
	require.Equal(t, 3, rb.Size())
}

// -----------------------------------------------------------------------------

func TestLatestDurationsOldestFirst(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Append(sample(1, 10, true))
	rb.Append(sample(2, 20, true))
	rb.Append(sample(3, 30, true))
	rb.Append(sample(4, 40, true)) // evicts 10

	require.Equal(t, []float64{20, 30, 40}, rb.LatestDurations(3))
	require.Equal(t, []float64{30, 40}, rb.LatestDurations(2))

	// Asking for more than stored clamps to size
	require.Equal(t, []float64{20, 30, 40}, rb.LatestDurations(10))
}

// -----------------------------------------------------------------------------

func TestLatestDurationsEmpty(t *testing.T) {
	rb := NewRingBuffer(3)
	require.Empty(t, rb.LatestDurations(5))
	require.Empty(t, rb.LatestDurations(0))
}

// -----------------------------------------------------------------------------

func TestSuccessRate(t *testing.T) {
	rb := NewRingBuffer(4)
	require.Equal(t, 1.0, rb.SuccessRate(), "empty buffer reports healthy")

	rb.Append(sample(1, 10, true))
	rb.Append(sample(2, 20, false))
	rb.Append(sample(3, 30, true))
	rb.Append(sample(4, 40, true))
	require.InDelta(t, 0.75, rb.SuccessRate(), 1e-9)
}

// -----------------------------------------------------------------------------

func TestClear(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Append(sample(1, 10, true))
	rb.Append(sample(2, 20, true))

	rb.Clear()
	require.Equal(t, 0, rb.Size())
	require.Empty(t, rb.LatestDurations(2))

	rb.Append(sample(3, 30, false))
	require.Equal(t, []float64{30}, rb.LatestDurations(1))
}

// -----------------------------------------------------------------------------

func TestZeroCapacityFallsBackToDefault(t *testing.T) {
	rb := NewRingBuffer(0)
	require.Equal(t, 100, rb.Capacity())
}
