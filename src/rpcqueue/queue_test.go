package rpcqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"chain-observer/src/logger"
	"chain-observer/src/models"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeClient struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (f *fakeClient) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()

	if f.fail != nil {
		return nil, f.fail
	}
	return json.RawMessage(fmt.Sprintf(`"result-%s"`, method)), nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// -----------------------------------------------------------------------------

type recordingSink struct {
	mu   sync.Mutex
	recs []models.MRequestRecord
}

func (s *recordingSink) Record(rec models.MRequestRecord) {
	s.mu.Lock()
	s.recs = append(s.recs, rec)
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

func testConfig(maxPerMinute, minSpacingMs int) *models.MConfig {
	return &models.MConfig{
		Upstream:  models.MUpstreamConfig{URL: "http://example", RequestTimeout: 15},
		RateLimit: models.MRateLimitConfig{MaxPerMinute: maxPerMinute, MinSpacingMs: minSpacingMs},
	}
}

func newTestQueue(t *testing.T, client *fakeClient, sink *recordingSink, maxPerMinute, minSpacingMs int) (*Queue, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	log := logger.NewLogger("ERROR", "queue-test")

	var q *Queue
	if sink != nil {
		q = NewQueue(testConfig(maxPerMinute, minSpacingMs), client, sink, mock, log)
	} else {
		q = NewQueue(testConfig(maxPerMinute, minSpacingMs), client, nil, mock, log)
	}
	q.Start()
	t.Cleanup(q.Stop)
	return q, mock
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestRequestsServicedInOrder(t *testing.T) {
	client := &fakeClient{}
	q, _ := newTestQueue(t, client, nil, 100, 0)

	for _, method := range []string{"eth_blockNumber", "eth_gasPrice", "eth_chainId"} {
		result, err := q.Enqueue(context.Background(), "s", method, nil)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf(`"result-%s"`, method), string(result))
	}

	require.Equal(t, []string{"eth_blockNumber", "eth_gasPrice", "eth_chainId"}, client.calls)
	require.Equal(t, int64(3), q.TotalRequests())
}

// -----------------------------------------------------------------------------

func TestMinSpacingDelaysDispatch(t *testing.T) {
	client := &fakeClient{}
	q, mock := newTestQueue(t, client, nil, 100, 500)

	_, err := q.Enqueue(context.Background(), "s", "eth_gasPrice", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(context.Background(), "s", "eth_chainId", nil)
		done <- err
	}()

	// Give the drain loop time to park on the spacing timer
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, client.callCount(), "second dispatch must wait out the spacing")

	mock.Add(500 * time.Millisecond)

	require.NoError(t, <-done)
	require.Equal(t, 2, client.callCount())
}

// -----------------------------------------------------------------------------

func TestWindowCeilingDefersDispatch(t *testing.T) {
	client := &fakeClient{}
	q, mock := newTestQueue(t, client, nil, 2, 0)

	for i := 0; i < 2; i++ {
		_, err := q.Enqueue(context.Background(), "s", "eth_gasPrice", nil)
		require.NoError(t, err)
	}
	require.Equal(t, int64(2), q.RequestsThisWindow())

	done := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(context.Background(), "s", "eth_chainId", nil)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, client.callCount(), "ceiling reached: third dispatch must wait for the next window")

	// Fixed-window reset: the counter clears on the 60s boundary
	mock.Add(time.Minute)

	require.NoError(t, <-done)
	require.Equal(t, 3, client.callCount())
	require.Equal(t, int64(1), q.RequestsThisWindow())
}

// -----------------------------------------------------------------------------

func TestWindowCounterRollsOver(t *testing.T) {
	client := &fakeClient{}
	q, mock := newTestQueue(t, client, nil, 100, 0)

	_, err := q.Enqueue(context.Background(), "s", "eth_gasPrice", nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), q.RequestsThisWindow())

	mock.Add(61 * time.Second)
	require.Equal(t, int64(0), q.RequestsThisWindow())
	require.Equal(t, int64(1), q.TotalRequests(), "totals are not window-scoped")
}

// -----------------------------------------------------------------------------

func TestUpstreamFailurePropagates(t *testing.T) {
	client := &fakeClient{fail: fmt.Errorf("connection refused")}
	q, _ := newTestQueue(t, client, nil, 100, 0)

	_, err := q.Enqueue(context.Background(), "s", "eth_gasPrice", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

// -----------------------------------------------------------------------------

func TestSinkReceivesOutcomes(t *testing.T) {
	client := &fakeClient{}
	sink := &recordingSink{}
	q, _ := newTestQueue(t, client, sink, 100, 0)

	_, err := q.Enqueue(context.Background(), "gas_price", "eth_gasPrice", nil)
	require.NoError(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.recs, 1)
	require.Equal(t, "gas_price", sink.recs[0].Stream)
	require.Equal(t, "eth_gasPrice", sink.recs[0].Method)
	require.True(t, sink.recs[0].OK)
}

// -----------------------------------------------------------------------------

func TestCanceledCallerIsRejected(t *testing.T) {
	client := &fakeClient{}
	q, _ := newTestQueue(t, client, nil, 1, 0)

	// Exhaust the window so the next request parks
	_, err := q.Enqueue(context.Background(), "s", "eth_gasPrice", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(ctx, "s", "eth_chainId", nil)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, 1, client.callCount(), "canceled request must not dispatch")
}

// -----------------------------------------------------------------------------

func TestStoppedQueueRejectsEnqueue(t *testing.T) {
	client := &fakeClient{}
	q, _ := newTestQueue(t, client, nil, 100, 0)
	q.Stop()

	_, err := q.Enqueue(context.Background(), "s", "eth_gasPrice", nil)
	require.ErrorIs(t, err, ErrQueueStopped)
}
