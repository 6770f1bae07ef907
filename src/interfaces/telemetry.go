package interfaces

// -----------------------------------------------------------------------------
// ILatencySampler exposes recent upstream call durations for the status
// surface.
// -----------------------------------------------------------------------------

type ILatencySampler interface {

	// -----------------------------------------------------------------------------

	// RecentLatencies returns up to n most recent durations in ms,
	// oldest first.
	RecentLatencies(n int) []float64
}

// -----------------------------------------------------------------------------
// IHealthReporter answers whether the upstream has been reachable lately.
// -----------------------------------------------------------------------------

type IHealthReporter interface {
	UpstreamHealthy() bool
}
