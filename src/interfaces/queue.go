package interfaces

import (
	"context"
	"encoding/json"
)

// -----------------------------------------------------------------------------
// IRequestQueue serializes and rate-limits all upstream traffic.
// -----------------------------------------------------------------------------

type IRequestQueue interface {

	// -----------------------------------------------------------------------------

	// Enqueue appends a request and blocks until it has been dispatched and
	// resolved (FIFO across all callers). Rate limiting delays dispatch, it
	// never reorders.
	Enqueue(ctx context.Context, stream string, method string, params []interface{}) (json.RawMessage, error)

	// -----------------------------------------------------------------------------

	// RequestsThisWindow returns dispatches in the current 60s window.
	RequestsThisWindow() int64

	// -----------------------------------------------------------------------------

	// TotalRequests returns dispatches since startup.
	TotalRequests() int64

	// -----------------------------------------------------------------------------

	// Stop drains nothing further; queued requests are rejected.
	Stop()
}
