package interfaces

import (
	"context"
	"encoding/json"
)

// -----------------------------------------------------------------------------
// IUpstreamClient performs a single outbound JSON-RPC call.
// -----------------------------------------------------------------------------

type IUpstreamClient interface {

	// -----------------------------------------------------------------------------

	// Call sends one request and returns the raw result payload, or an error.
	// Transport failures and upstream RPC errors are distinguishable by type.
	Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error)
}
