// Package archive provides SQLite-backed storage of completed and
// in-progress simulation runs: per-tick power telemetry, the event
// log and a rolling digest that fingerprints the whole run.
package archive

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"

	"github.com/talgya/mars-colony/internal/sim"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		hours INTEGER NOT NULL DEFAULT 0,
		checksum TEXT NOT NULL DEFAULT '',
		digest TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS ticks (
		run_id TEXT NOT NULL,
		hour INTEGER NOT NULL,
		producers REAL NOT NULL,
		critical REAL NOT NULL,
		noncrit_eff REAL NOT NULL,
		batt_stored REAL NOT NULL,
		blackout INTEGER NOT NULL,
		checksum TEXT NOT NULL,
		PRIMARY KEY (run_id, hour)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		hour INTEGER NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS archive_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ticks_run ON ticks(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_run_hour ON events(run_id, hour);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run accumulates one simulation run. The digest folds every tick
// checksum in order, so two runs with the same digest took identical
// per-tick trajectories, not just matching endpoints.
type Run struct {
	ID   string
	Seed uint64

	db     *DB
	hasher *blake3.Hasher
}

// BeginRun registers a new run and returns its handle.
func (db *DB) BeginRun(seed uint64) (*Run, error) {
	r := &Run{
		ID:     uuid.New().String(),
		Seed:   seed,
		db:     db,
		hasher: blake3.New(32, nil),
	}
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, started_at) VALUES (?, ?, ?)",
		r.ID, strconv.FormatUint(seed, 10), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return r, nil
}

// RecordTick appends one tick of telemetry plus its events.
func (r *Run) RecordTick(s *sim.State, events []sim.Event) error {
	tx, err := r.db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sum := s.ChecksumHex()
	blackout := 0
	if s.LastPower.Blackout {
		blackout = 1
	}
	_, err = tx.Exec(`INSERT INTO ticks
		(run_id, hour, producers, critical, noncrit_eff, batt_stored, blackout, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, s.Hour, s.LastPower.Producers, s.LastPower.CriticalDemand,
		s.LastPower.NonCriticalEff, s.Res.PowerStored, blackout, sum,
	)
	if err != nil {
		return fmt.Errorf("insert tick %d: %w", s.Hour, err)
	}

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, hour, category, message) VALUES (?, ?, ?, ?)",
			r.ID, e.Hour, e.Category, e.Message,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	r.hasher.Write([]byte(sum))
	return nil
}

// Finish stamps the run with its length, final checksum and digest.
func (r *Run) Finish(s *sim.State) error {
	digest := hex.EncodeToString(r.hasher.Sum(nil))
	_, err := r.db.conn.Exec(
		"UPDATE runs SET hours = ?, checksum = ?, digest = ? WHERE id = ?",
		s.Hour, s.ChecksumHex(), digest, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID        string `db:"id"`
	Seed      string `db:"seed"`
	StartedAt string `db:"started_at"`
	Hours     int64  `db:"hours"`
	Checksum  string `db:"checksum"`
	Digest    string `db:"digest"`
}

// Runs lists the most recent runs, newest first.
func (db *DB) Runs(limit int) ([]RunSummary, error) {
	var out []RunSummary
	err := db.conn.Select(&out,
		"SELECT id, seed, started_at, hours, checksum, digest FROM runs ORDER BY started_at DESC, id LIMIT ?",
		limit,
	)
	return out, err
}

// RecentEvents returns the most recent events of a run.
func (db *DB) RecentEvents(runID string, limit int) ([]sim.Event, error) {
	var out []sim.Event
	err := db.conn.Select(&out,
		"SELECT hour, category, message FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return out, err
}

// TickChecksums returns a run's per-tick checksums in hour order, used
// to diff two runs that were expected to match.
func (db *DB) TickChecksums(runID string) ([]string, error) {
	var out []string
	err := db.conn.Select(&out,
		"SELECT checksum FROM ticks WHERE run_id = ? ORDER BY hour",
		runID,
	)
	return out, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO archive_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM archive_meta WHERE key = ?", key)
	return value, err
}
