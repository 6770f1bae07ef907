package models

// Ring buffer feature layout for request samples
const (
	RB_NUM_FEATURES  = 3
	RB_IDX_TIMESTAMP = 0
	RB_IDX_DURATION  = 1
	RB_IDX_OK        = 2
)

// MRequestRecord is one upstream dispatch, as persisted in the request
// ledger and sampled by the latency ring. Telemetry only: never read back
// into the cache.
type MRequestRecord struct {
	Stream     string  `json:"stream"`
	Method     string  `json:"method"`
	DurationMs float64 `json:"duration_ms"`
	OK         bool    `json:"ok"`
	Error      string  `json:"error,omitempty"`
	Timestamp  int64   `json:"timestamp"` // unix seconds
}
