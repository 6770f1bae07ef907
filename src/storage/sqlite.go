package storage

import (
	"database/sql"
	"fmt"
	"time"

	"chain-observer/src/logger"
	"chain-observer/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// The ledger is operational telemetry, not engine state; rows survive
	// a restart only until retention cleanup removes them.
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS request_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stream TEXT,
			method TEXT,
			duration_ms REAL,
			ok INTEGER,
			error TEXT,
			timestamp INTEGER
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create request_ledger: %w", err)
	}

	query = `CREATE INDEX IF NOT EXISTS idx_ledger_timestamp ON request_ledger (timestamp);`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index request_ledger: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveRequestRecord(rec models.MRequestRecord) error {
	okFlag := 0
	if rec.OK {
		okFlag = 1
	}

	_, err := d.DB.Exec(
		`INSERT INTO request_ledger (stream, method, duration_ms, ok, error, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Stream, rec.Method, rec.DurationMs, okFlag, rec.Error, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger row: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	cutoff := time.Now().AddDate(0, 0, -d.Config.Storage.RetentionDays).Unix()

	res, err := d.DB.Exec("DELETE FROM request_ledger WHERE timestamp < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune request_ledger: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.Logger.Debug("Pruned %d ledger rows", n)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
