package interfaces

// -----------------------------------------------------------------------------
// IBroadcaster fans a message out to every subscriber of a stream.
// -----------------------------------------------------------------------------

type IBroadcaster interface {

	// -----------------------------------------------------------------------------

	// Broadcast delivers message to all current subscribers of stream.
	// Best-effort per subscriber: a dead connection is pruned, the rest
	// still receive the message. Zero subscribers is a no-op.
	Broadcast(stream string, message interface{})
}
