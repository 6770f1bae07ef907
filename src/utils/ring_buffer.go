package utils

import (
	"chain-observer/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of request samples.
// True ring buffer - no resizing allowed!
// -----------------------------------------------------------------------------

type RingBuffer struct {
	// Data storage as 2D slice (rows x features)
	data     [][models.RB_NUM_FEATURES]float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 100 // Default reasonable size
	}

	return &RingBuffer{
		data:     make([][models.RB_NUM_FEATURES]float64, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds a request sample (Strict Type)
func (rb *RingBuffer) Append(rec models.MRequestRecord) {
	okFlag := 0.0
	if rec.OK {
		okFlag = 1.0
	}

	rb.data[rb.index] = [models.RB_NUM_FEATURES]float64{
		float64(rec.Timestamp),
		rec.DurationMs,
		okFlag,
	}

	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// LatestDurations returns up to n most recent durations in ms, oldest first
func (rb *RingBuffer) LatestDurations(n int) []float64 {
	if rb.size == 0 || n <= 0 {
		return []float64{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]float64, count)

	// Latest data is at index-1
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		result[i] = rb.data[idx][models.RB_IDX_DURATION]
	}

	return result
}

// -----------------------------------------------------------------------------

// SuccessRate returns the fraction of recorded requests that succeeded
func (rb *RingBuffer) SuccessRate() float64 {
	if rb.size == 0 {
		return 1.0
	}

	succeeded := 0
	for i := 0; i < rb.size; i++ {
		if rb.data[i][models.RB_IDX_OK] == 1.0 {
			succeeded++
		}
	}
	return float64(succeeded) / float64(rb.size)
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (rb *RingBuffer) IsFull() bool {
	return rb.size == rb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (rb *RingBuffer) Clear() {
	rb.index = 0
	rb.size = 0
}
