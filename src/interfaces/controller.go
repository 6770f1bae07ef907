package interfaces

import "chain-observer/src/models"

// -----------------------------------------------------------------------------
// IStreamController is the server's view of the engine: activation
// lifecycle plus the read-only state the wire protocol exposes.
// -----------------------------------------------------------------------------

type IStreamController interface {

	// -----------------------------------------------------------------------------

	// Activate registers one more subscriber for stream, starting its
	// refresh loop if it was inactive. Returns the effective interval in
	// milliseconds. Unknown stream names are an error with no state change.
	Activate(stream string) (int64, error)

	// -----------------------------------------------------------------------------

	// Deactivate drops one subscriber; at zero the refresh loop stops and
	// the active state is removed (cache entry retained). Returns the
	// stream's requests-saved counter. Unknown or inactive streams are a
	// no-op returning 0.
	Deactivate(stream string) int64

	// -----------------------------------------------------------------------------

	// CurrentBlock returns the last observed chain head, if any.
	CurrentBlock() (uint64, bool)

	// -----------------------------------------------------------------------------

	// Stats is the compact api_stats answer; EngineStats the full
	// /api/stats surface; Catalogue the stream listing.
	Stats() models.MAPIStats
	EngineStats() models.MEngineStats
	Catalogue() []models.MStreamInfo
}
