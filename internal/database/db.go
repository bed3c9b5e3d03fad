package database

import (
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Database represents the database connection and operations
type Database struct {
	DB *sql.DB
}

// New creates a new Database instance
func New(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &Database{DB: db}, nil
}

// Init creates the required tables if they don't exist
func (d *Database) Init() error {
	createTables := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		area_name TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL DEFAULT 'general',
		crowd_threshold INTEGER NOT NULL DEFAULT 10,
		area_sq_meters DOUBLE PRECISION NOT NULL DEFAULT 20,
		occupancy_threshold INTEGER NOT NULL DEFAULT 5,
		current_occupancy INTEGER NOT NULL DEFAULT 0,
		tripwire_line_x1 INTEGER,
		tripwire_line_y1 INTEGER,
		tripwire_line_x2 INTEGER,
		tripwire_line_y2 INTEGER,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS detection_logs (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		area_name TEXT NOT NULL,
		mode TEXT NOT NULL,
		person_count INTEGER NOT NULL DEFAULT 0,
		density DOUBLE PRECISION NOT NULL DEFAULT 0,
		entry_count INTEGER NOT NULL DEFAULT 0,
		exit_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS detection_logs_area_ts ON detection_logs (area_name, timestamp);
	`

	_, err := d.DB.Exec(createTables)
	return err
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}
