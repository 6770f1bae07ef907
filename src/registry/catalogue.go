package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chain-observer/src/models"
)

// -----------------------------------------------------------------------------
// Stream Catalogue
// -----------------------------------------------------------------------------

// StreamDefinition is one catalogue entry: static, read-only after startup.
type StreamDefinition struct {
	Name     string
	Method   string
	Interval time.Duration
	TTL      time.Duration

	// NeedsHead marks a parameter template that reads the chain head. When
	// the head is still unknown the scheduler seeds it first.
	NeedsHead bool

	// Params resolves the positional parameter list. nil means no params.
	Params func(head uint64) []interface{}

	// Process maps the raw upstream payload to the emitted payload. nil
	// means passthrough. This is the only place a payload is touched.
	Process func(raw json.RawMessage) (json.RawMessage, error)
}

// -----------------------------------------------------------------------------

// Catalogue is the static name -> definition map plus lookup order.
type Catalogue struct {
	defs  map[string]*StreamDefinition
	order []string

	// ChainStateStream is the stream whose processor feeds the head cell.
	ChainStateStream string
}

// -----------------------------------------------------------------------------

// NewCatalogue builds the default Ethereum-flavored catalogue, wires the
// chain-state processor to head, and applies per-stream config overrides.
// Unknown override names are an error so typos fail at startup.
func NewCatalogue(head *ChainHead, overrides []models.MStreamOverride) (*Catalogue, error) {
	c := &Catalogue{
		defs:             make(map[string]*StreamDefinition),
		ChainStateStream: "chain_head",
	}

	c.add(&StreamDefinition{
		Name:     "chain_head",
		Method:   "eth_blockNumber",
		Interval: 5 * time.Second,
		TTL:      4 * time.Second,
		Process:  headProcessor(head),
	})
	c.add(&StreamDefinition{
		Name:      "latest_block",
		Method:    "eth_getBlockByNumber",
		Interval:  10 * time.Second,
		TTL:       8 * time.Second,
		NeedsHead: true,
		Params: func(height uint64) []interface{} {
			return []interface{}{"0x" + strconv.FormatUint(height, 16), false}
		},
	})
	c.add(&StreamDefinition{
		Name:     "gas_price",
		Method:   "eth_gasPrice",
		Interval: 15 * time.Second,
		TTL:      12 * time.Second,
	})
	c.add(&StreamDefinition{
		Name:     "syncing",
		Method:   "eth_syncing",
		Interval: 30 * time.Second,
		TTL:      25 * time.Second,
	})
	c.add(&StreamDefinition{
		Name:     "peer_count",
		Method:   "net_peerCount",
		Interval: 30 * time.Second,
		TTL:      25 * time.Second,
	})
	c.add(&StreamDefinition{
		Name:     "chain_id",
		Method:   "eth_chainId",
		Interval: 5 * time.Minute,
		TTL:      4 * time.Minute,
	})

	for _, o := range overrides {
		def, ok := c.defs[o.Name]
		if !ok {
			return nil, fmt.Errorf("stream override '%s' does not match any catalogue entry", o.Name)
		}
		if o.IntervalMs > 0 {
			def.Interval = time.Duration(o.IntervalMs) * time.Millisecond
		}
		if o.TTLMs > 0 {
			def.TTL = time.Duration(o.TTLMs) * time.Millisecond
		}
	}

	return c, nil
}

// -----------------------------------------------------------------------------

func (c *Catalogue) add(def *StreamDefinition) {
	c.defs[def.Name] = def
	c.order = append(c.order, def.Name)
}

// -----------------------------------------------------------------------------

// Get returns the definition for name.
func (c *Catalogue) Get(name string) (*StreamDefinition, bool) {
	def, ok := c.defs[name]
	return def, ok
}

// -----------------------------------------------------------------------------

// Names returns stream names in catalogue order.
func (c *Catalogue) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// -----------------------------------------------------------------------------

// TTLs returns the per-stream TTL map the cache store is seeded with.
func (c *Catalogue) TTLs() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.defs))
	for name, def := range c.defs {
		out[name] = def.TTL
	}
	return out
}

// -----------------------------------------------------------------------------
// Processors
// -----------------------------------------------------------------------------

// headProcessor parses the eth_blockNumber hex quantity, updates the head
// cell, and emits a structured payload.
func headProcessor(head *ChainHead) func(raw json.RawMessage) (json.RawMessage, error) {
	return func(raw json.RawMessage) (json.RawMessage, error) {
		var quantity string
		if err := json.Unmarshal(raw, &quantity); err != nil {
			return nil, fmt.Errorf("chain head payload is not a quantity: %w", err)
		}

		height, err := strconv.ParseUint(strings.TrimPrefix(quantity, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse chain head '%s': %w", quantity, err)
		}

		head.Set(height)

		return json.Marshal(map[string]interface{}{
			"block_number": height,
			"hex":          quantity,
		})
	}
}
