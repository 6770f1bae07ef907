package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chain-observer/src/logger"
	"chain-observer/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	// Executable name as schema keeps multiple deployments apart
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."request_ledger" (
			id BIGSERIAL PRIMARY KEY,
			stream TEXT,
			method TEXT,
			duration_ms DOUBLE PRECISION,
			ok BOOLEAN,
			error TEXT,
			timestamp BIGINT
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create request_ledger: %w", err)
	}

	query = fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_ledger_timestamp ON "%s"."request_ledger" (timestamp);`,
		d.Schema,
	)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index request_ledger: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveRequestRecord(rec models.MRequestRecord) error {
	query := fmt.Sprintf(
		`INSERT INTO "%s"."request_ledger" (stream, method, duration_ms, ok, error, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.Schema,
	)

	_, err := d.DB.Exec(query, rec.Stream, rec.Method, rec.DurationMs, rec.OK, rec.Error, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert ledger row: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	cutoff := time.Now().AddDate(0, 0, -d.Config.Storage.RetentionDays).Unix()

	query := fmt.Sprintf(`DELETE FROM "%s"."request_ledger" WHERE timestamp < $1`, d.Schema)
	res, err := d.DB.Exec(query, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune request_ledger: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.Logger.Debug("Pruned %d ledger rows", n)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
