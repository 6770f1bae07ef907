package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"chain-observer/src/logger"
	"chain-observer/src/models"
)

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// RPCError is an application-level error returned by the upstream node.
// The node was reachable; the call itself failed.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("upstream rpc error %d: %s", e.Code, e.Message)
}

// ConnectionError is a transport-level failure: timeout, DNS, socket,
// or a non-200 HTTP status.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("upstream connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// -----------------------------------------------------------------------------
// Wire Structures (JSON-RPC 2.0)
// -----------------------------------------------------------------------------

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type Client struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger

	endpoint string
	nextID   atomic.Uint64
}

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MConfig, log *logger.Logger) *Client {
	c := &Client{
		Config:   cfg,
		Logger:   log,
		endpoint: cfg.Upstream.URL,
	}
	c.Client = c.createClient()
	return c
}

// -----------------------------------------------------------------------------

func (c *Client) createClient() *http.Client {
	transport := &http.Transport{}

	// Optional static outbound proxy
	if c.Config.Upstream.Proxy != "" {
		proxyURL, err := url.Parse(c.Config.Upstream.Proxy)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			c.Logger.Warning("Ignoring invalid proxy url: %v", err)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(c.Config.Upstream.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

// Call performs a single JSON-RPC request. No retries here: the scheduler
// retries on its next tick, and the queue already bounds pressure.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &ConnectionError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ConnectionError{Cause: fmt.Errorf("bad status: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Cause: err}
	}

	var parsed rpcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ConnectionError{Cause: fmt.Errorf("unparseable response: %w", err)}
	}

	if parsed.Error != nil {
		return nil, parsed.Error
	}

	return parsed.Result, nil
}
