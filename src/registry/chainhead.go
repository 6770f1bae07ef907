package registry

import "sync"

// -----------------------------------------------------------------------------
// ChainHead is the one piece of cross-stream shared state: the most
// recently observed block height. Written only by the chain-state stream's
// post-processor, read by head-dependent parameter templates. Guarded so
// a template resolving right after a head write sees the new value.
// -----------------------------------------------------------------------------

type ChainHead struct {
	mu     sync.RWMutex
	height uint64
	known  bool
}

// -----------------------------------------------------------------------------

func NewChainHead() *ChainHead {
	return &ChainHead{}
}

// -----------------------------------------------------------------------------

func (h *ChainHead) Set(height uint64) {
	h.mu.Lock()
	h.height = height
	h.known = true
	h.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Get returns the last observed height; false until the first observation.
func (h *ChainHead) Get() (uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.height, h.known
}
