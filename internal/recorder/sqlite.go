package recorder

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/signalsfoundry/antenna-tracker/model"
)

//go:embed schema.sql
var schema string

// SQLiteRecorder keeps the session history in a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

// SessionSummary is one row of the session history.
type SessionSummary struct {
	ID       string
	Target   string
	Status   string
	Start    time.Time
	Finish   time.Time
	Attempts int
	Records  int
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(path string) (*SQLiteRecorder, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("recorder database path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &SQLiteRecorder{db: db}, nil
}

// Close closes the database handle.
func (r *SQLiteRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save writes the session and its records in one transaction.
func (r *SQLiteRecorder) Save(ctx context.Context, s Session) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r == nil || r.db == nil {
		return fmt.Errorf("recorder is not configured")
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (
		   id, target, status, started_at, finished_at, requested_ms, attempts,
		   latitude, longitude, elevation, az_min, az_max, min_safe_altitude,
		   errors, host_ip, host_city, host_country, provenance_degraded, notes
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Target, s.Status, toMillis(s.Start), toMillis(s.Finish), s.Requested.Milliseconds(), s.Attempts,
		s.Observer.Latitude, s.Observer.Longitude, s.Observer.Elevation,
		s.Limits.AzMin, s.Limits.AzMax, s.Limits.MinSafeAltitude,
		strings.Join(s.Errors, "\n"), s.Provenance.IP, s.Provenance.City, s.Provenance.Country,
		s.Provenance.Degraded, s.Notes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tracking_records (
		   session_id, seq, recorded_at,
		   intended_altitude, intended_azimuth, actual_altitude, actual_azimuth
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range s.Records {
		if _, err = stmt.ExecContext(ctx,
			s.ID, i, toMillis(rec.Timestamp),
			rec.Intended.Altitude, rec.Intended.Azimuth, rec.Actual.Altitude, rec.Actual.Azimuth,
		); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Load returns a saved session with its records in cycle order.
func (r *SQLiteRecorder) Load(ctx context.Context, id string) (Session, error) {
	var (
		s                   Session
		start, finish, reqd int64
		errs                string
	)
	row := r.db.QueryRowContext(ctx,
		`SELECT id, target, status, started_at, finished_at, requested_ms, attempts,
		        latitude, longitude, elevation, az_min, az_max, min_safe_altitude,
		        errors, host_ip, host_city, host_country, provenance_degraded, notes
		   FROM sessions WHERE id = ?`, id)
	err := row.Scan(
		&s.ID, &s.Target, &s.Status, &start, &finish, &reqd, &s.Attempts,
		&s.Observer.Latitude, &s.Observer.Longitude, &s.Observer.Elevation,
		&s.Limits.AzMin, &s.Limits.AzMax, &s.Limits.MinSafeAltitude,
		&errs, &s.Provenance.IP, &s.Provenance.City, &s.Provenance.Country, &s.Provenance.Degraded, &s.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	s.Start, s.Finish = fromMillis(start), fromMillis(finish)
	s.Requested = time.Duration(reqd) * time.Millisecond
	if errs != "" {
		s.Errors = strings.Split(errs, "\n")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT recorded_at, intended_altitude, intended_azimuth, actual_altitude, actual_azimuth
		   FROM tracking_records WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return Session{}, fmt.Errorf("load records for %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			at  int64
			rec model.TrackingRecord
		)
		if err := rows.Scan(&at, &rec.Intended.Altitude, &rec.Intended.Azimuth, &rec.Actual.Altitude, &rec.Actual.Azimuth); err != nil {
			return Session{}, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp = fromMillis(at)
		s.Records = append(s.Records, rec)
	}
	return s, rows.Err()
}

// List returns the most recent sessions first, up to limit (all if
// limit <= 0).
func (r *SQLiteRecorder) List(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := `SELECT s.id, s.target, s.status, s.started_at, s.finished_at, s.attempts,
	                 (SELECT COUNT(*) FROM tracking_records t WHERE t.session_id = s.id)
	            FROM sessions s ORDER BY s.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum           SessionSummary
			start, finish int64
		)
		if err := rows.Scan(&sum.ID, &sum.Target, &sum.Status, &start, &finish, &sum.Attempts, &sum.Records); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Start, sum.Finish = fromMillis(start), fromMillis(finish)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
