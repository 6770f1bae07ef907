package models

// -----------------------------------------------------------------------------
// Status Surface Structures (read-only, polled out-of-band)
// -----------------------------------------------------------------------------

// MStreamInfo describes one catalogue entry for /api/streams
type MStreamInfo struct {
	Name       string `json:"name"`
	Method     string `json:"method"`
	IntervalMs int64  `json:"interval_ms"`
	TTLMs      int64  `json:"ttl_ms"`
	Active     bool   `json:"active"`
}

// MActiveStreamStats is the per-stream slice of /api/stats
type MActiveStreamStats struct {
	Name          string   `json:"name"`
	Subscribers   int      `json:"subscribers"`
	FetchCount    int64    `json:"fetch_count"`
	RequestsSaved int64    `json:"requests_saved"`
	CacheAge      *float64 `json:"cache_age,omitempty"` // seconds
}

// MEngineStats is the full /api/stats response
type MEngineStats struct {
	RequestsPerMinute int64                `json:"requests_per_minute"`
	TotalRequests     int64                `json:"total_requests"`
	ActiveStreams     []MActiveStreamStats `json:"active_streams"`
	CacheHits         int64                `json:"cache_hits"`
	CacheMisses       int64                `json:"cache_misses"`
	RecentLatenciesMs []float64            `json:"recent_latencies_ms"`
}
