package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Inbound Command (type-discriminated, one handler per variant)
// -----------------------------------------------------------------------------

const (
	CmdStartStream     = "start_stream"
	CmdStopStream      = "stop_stream"
	CmdGetCurrentBlock = "get_current_block"
	CmdGetAPIStats     = "get_api_stats"
)

type MClientCommand struct {
	Type   string `json:"type"`
	Stream string `json:"stream,omitempty"`
}

// -----------------------------------------------------------------------------
// Outbound Responses (Matches the wire protocol exactly)
// -----------------------------------------------------------------------------

type MStreamStarted struct {
	Type     string `json:"type"` // "stream_started"
	Stream   string `json:"stream"`
	Interval int64  `json:"interval"` // ms
}

type MStreamStopped struct {
	Type          string `json:"type"` // "stream_stopped"
	Stream        string `json:"stream"`
	RequestsSaved int64  `json:"requests_saved"`
}

type MCurrentBlock struct {
	Type        string `json:"type"` // "current_block"
	BlockNumber uint64 `json:"block_number"`
}

type MAPIStats struct {
	Type              string `json:"type"` // "api_stats"
	RequestsPerMinute int64  `json:"requests_per_minute"`
	ActiveStreams     int    `json:"active_streams"`
	CacheHits         int64  `json:"cache_hits"`
}

type MProtocolError struct {
	Type           string   `json:"type"` // "error"
	Message        string   `json:"message"`
	AvailableTypes []string `json:"available_types,omitempty"`
}

// -----------------------------------------------------------------------------
// Outbound Push
// -----------------------------------------------------------------------------

// MLiveData carries one scheduler cycle's payload to every subscriber.
// Data is opaque: whatever the upstream returned, post-processed but never
// interpreted here.
type MLiveData struct {
	Type      string          `json:"type"` // "live_data"
	Stream    string          `json:"stream"`
	Data      json.RawMessage `json:"data"`
	Cached    bool            `json:"cached"`
	CacheAge  *float64        `json:"cache_age,omitempty"` // seconds, cached only
	Timestamp int64           `json:"timestamp"`           // unix seconds
}

type MStreamError struct {
	Type      string `json:"type"` // "error"
	Stream    string `json:"stream"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}
