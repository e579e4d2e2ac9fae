// Package postgres persists playback event logs so runs can be replayed.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/FNOLSimulator/internal/config"
	"github.com/AaronLay10/FNOLSimulator/internal/events"
)

// RunSummary describes one stored run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	CaseID    string    `json:"case_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Entries   int       `json:"entries"`
}

// Client stores event log entries in the sim_events table.
type Client struct {
	db *sql.DB
}

// New connects using the standard PG* environment variables.
func New(ctx context.Context) (*Client, error) {
	password, err := config.ResolveSecret("PGPASSWORD")
	if err != nil {
		return nil, err
	}

	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "fnolsim")
	dbname := getEnv("PGDATABASE", "fnolsim")

	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		host, port, user, dbname, getEnv("PGSSLMODE", "disable"))
	if password != "" {
		connStr += " password=" + password
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	c := NewFromDB(db)
	if err := c.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sim_events table: %w", err)
	}
	return c, nil
}

// NewFromDB wraps an open database handle.
func NewFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Migrate creates the schema if it does not exist.
func (c *Client) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS sim_events (
			id         BIGSERIAL PRIMARY KEY,
			run_id     TEXT NOT NULL,
			case_id    TEXT,
			seq        INTEGER NOT NULL,
			ts         TIMESTAMPTZ NOT NULL,
			from_stage TEXT,
			to_stage   TEXT NOT NULL,
			reason     TEXT NOT NULL,
			UNIQUE (run_id, seq)
		);
		CREATE INDEX IF NOT EXISTS idx_sim_events_run_id ON sim_events(run_id);
	`
	_, err := c.db.ExecContext(ctx, query)
	return err
}

// Append stores one entry of a run. seq is the entry's index in the run.
func (c *Client) Append(ctx context.Context, runID, caseID string, seq int, e events.LogEntry) error {
	var from, caseRef *string
	if e.FromStageID != "" {
		from = &e.FromStageID
	}
	if caseID != "" {
		caseRef = &caseID
	}

	query := `INSERT INTO sim_events (run_id, case_id, seq, ts, from_stage, to_stage, reason) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := c.db.ExecContext(ctx, query, runID, caseRef, seq, e.Timestamp, from, e.ToStageID, e.Reason)
	return err
}

// Entries returns a run's log in append order.
func (c *Client) Entries(ctx context.Context, runID string) ([]events.LogEntry, error) {
	query := `SELECT ts, from_stage, to_stage, reason FROM sim_events WHERE run_id = $1 ORDER BY seq`
	rows, err := c.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []events.LogEntry
	for rows.Next() {
		var e events.LogEntry
		var from sql.NullString
		if err := rows.Scan(&e.Timestamp, &from, &e.ToStageID, &e.Reason); err != nil {
			return nil, err
		}
		e.FromStageID = from.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Runs lists the most recent runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `SELECT run_id, COALESCE(MAX(case_id), ''), MIN(ts), COUNT(*) FROM sim_events GROUP BY run_id ORDER BY MIN(ts) DESC LIMIT $1`
	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.CaseID, &r.StartedAt, &r.Entries); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
