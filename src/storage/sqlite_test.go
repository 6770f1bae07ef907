package storage

import (
	"path/filepath"
	"testing"
	"time"

	"chain-observer/src/logger"
	"chain-observer/src/models"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func newTestDB(t *testing.T) *AsyncSQLiteDB {
	t.Helper()

	cfg := &models.MConfig{
		Storage: models.MStorageConfig{
			DBType:        "sqlite",
			DBPath:        filepath.Join(t.TempDir(), "ledger.db"),
			RetentionDays: 7,
		},
	}

	db, err := NewAsyncSQLiteDB(cfg, logger.NewLogger("ERROR", "storage-test"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *AsyncSQLiteDB) int {
	t.Helper()
	var n int
	require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM request_ledger").Scan(&n))
	return n
}

// -----------------------------------------------------------------------------

func TestSaveRequestRecord(t *testing.T) {
	db := newTestDB(t)

	rec := models.MRequestRecord{
		Stream:     "gas_price",
		Method:     "eth_gasPrice",
		DurationMs: 42.5,
		OK:         true,
		Timestamp:  time.Now().Unix(),
	}
	require.NoError(t, db.SaveRequestRecord(rec))

	var stream, method string
	var duration float64
	var okFlag int
	row := db.DB.QueryRow("SELECT stream, method, duration_ms, ok FROM request_ledger")
	require.NoError(t, row.Scan(&stream, &method, &duration, &okFlag))
	require.Equal(t, "gas_price", stream)
	require.Equal(t, "eth_gasPrice", method)
	require.Equal(t, 42.5, duration)
	require.Equal(t, 1, okFlag)
}

// -----------------------------------------------------------------------------

func TestFailedRequestKeepsErrorText(t *testing.T) {
	db := newTestDB(t)

	rec := models.MRequestRecord{
		Stream:    "chain_head",
		Method:    "eth_blockNumber",
		OK:        false,
		Error:     "connection refused",
		Timestamp: time.Now().Unix(),
	}
	require.NoError(t, db.SaveRequestRecord(rec))

	var okFlag int
	var errText string
	row := db.DB.QueryRow("SELECT ok, error FROM request_ledger")
	require.NoError(t, row.Scan(&okFlag, &errText))
	require.Equal(t, 0, okFlag)
	require.Equal(t, "connection refused", errText)
}

// -----------------------------------------------------------------------------

func TestCleanupPrunesOnlyExpiredRows(t *testing.T) {
	db := newTestDB(t)

	old := models.MRequestRecord{Stream: "s", Method: "m", OK: true,
		Timestamp: time.Now().AddDate(0, 0, -30).Unix()}
	fresh := models.MRequestRecord{Stream: "s", Method: "m", OK: true,
		Timestamp: time.Now().Unix()}

	require.NoError(t, db.SaveRequestRecord(old))
	require.NoError(t, db.SaveRequestRecord(fresh))
	require.Equal(t, 2, countRows(t, db))

	require.NoError(t, db.CleanupOldData())
	require.Equal(t, 1, countRows(t, db))
}

// -----------------------------------------------------------------------------

func TestInitializeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.createTables())
}
