package interfaces

import (
	"encoding/json"
	"time"
)

// -----------------------------------------------------------------------------
// ICacheStore keeps the last value per stream with a TTL.
// -----------------------------------------------------------------------------

type ICacheStore interface {

	// -----------------------------------------------------------------------------

	// IsFresh reports whether the entry exists and its age is below TTL.
	IsFresh(stream string) bool

	// -----------------------------------------------------------------------------

	// Read returns the cached value if present (fresh or stale).
	Read(stream string) (json.RawMessage, bool)

	// -----------------------------------------------------------------------------

	// Age returns time since the last write.
	Age(stream string) (time.Duration, bool)

	// -----------------------------------------------------------------------------

	// Write stores a value and stamps it with the current time. A zero
	// ttlOverride keeps the stream's configured TTL.
	Write(stream string, value json.RawMessage, ttlOverride time.Duration)

	// -----------------------------------------------------------------------------

	// Hits and Misses are cumulative freshness-check counters.
	Hits() int64
	Misses() int64
}
