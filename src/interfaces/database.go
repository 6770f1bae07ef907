package interfaces

import "chain-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the request ledger.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveRequestRecord appends one dispatch outcome to the ledger.
	SaveRequestRecord(rec models.MRequestRecord) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes rows older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}

// -----------------------------------------------------------------------------
// IRequestSink receives dispatch outcomes as they happen (ledger writes,
// latency ring, health flag). Implementations must not block the queue.
// -----------------------------------------------------------------------------

type IRequestSink interface {
	Record(rec models.MRequestRecord)
}
