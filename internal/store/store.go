// Package store keeps training runs and versioned agent checkpoints in
// SQLite, with an active pointer that can be rolled back.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/trust-aht/internal/codec"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	variant      TEXT NOT NULL,
	config_json  TEXT NOT NULL,
	cohort_id    TEXT,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	version_id   TEXT PRIMARY KEY,
	parent_id    TEXT,
	run_id       TEXT NOT NULL,
	update_step  INTEGER NOT NULL,
	variant      TEXT NOT NULL,
	weights      BLOB NOT NULL,
	created_at   TEXT NOT NULL,
	metrics_json TEXT,
	FOREIGN KEY (parent_id) REFERENCES checkpoints(version_id),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS training_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id   TEXT,
	run_id       TEXT NOT NULL,
	update_step  INTEGER NOT NULL,
	record_json  TEXT,
	decision     TEXT NOT NULL,
	reason       TEXT,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_checkpoint (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	version_id   TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES checkpoints(version_id)
);
`
// #endregion schema

// #region store-struct
// Store manages runs and checkpoints in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the training log.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region runs
// CreateRun records a new training run.
func (s *Store) CreateRun(variant, configJSON, cohortID string) (Run, error) {
	run := Run{
		RunID:      uuid.New().String(),
		Variant:    variant,
		ConfigJSON: configJSON,
		CohortID:   cohortID,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, variant, config_json, cohort_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Variant, run.ConfigJSON, nullIfEmpty(run.CohortID), run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun reads a run by ID.
func (s *Store) GetRun(id string) (Run, error) {
	var run Run
	var cohort sql.NullString
	var created string
	err := s.db.QueryRow(
		`SELECT run_id, variant, config_json, cohort_id, created_at FROM runs WHERE run_id = ?`, id,
	).Scan(&run.RunID, &run.Variant, &run.ConfigJSON, &cohort, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	run.CohortID = cohort.String
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return run, nil
}
// #endregion runs

// #region commit-checkpoint
// CommitCheckpoint inserts a checkpoint and moves the active pointer to it
// in one transaction. An empty VersionID is filled with a fresh UUID and a
// zero CreatedAt with the current time.
func (s *Store) CommitCheckpoint(cp Checkpoint) (Checkpoint, error) {
	if cp.VersionID == "" {
		cp.VersionID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO checkpoints (version_id, parent_id, run_id, update_step, variant, weights, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.VersionID, nullIfEmpty(cp.ParentID), cp.RunID, cp.UpdateStep, cp.Variant,
		codec.Encode(cp.Weights), cp.CreatedAt.Format(time.RFC3339Nano), nullIfEmpty(cp.MetricsJSON),
	)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("insert checkpoint: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_checkpoint (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		cp.VersionID,
	)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Checkpoint{}, fmt.Errorf("commit: %w", err)
	}
	return cp, nil
}
// #endregion commit-checkpoint

// #region get-current
// GetCurrent reads the active checkpoint.
func (s *Store) GetCurrent() (Checkpoint, error) {
	id, err := s.ActiveID()
	if err != nil {
		return Checkpoint{}, err
	}
	return s.GetVersion(id)
}

// ActiveID returns the active checkpoint's version ID.
func (s *Store) ActiveID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT version_id FROM active_checkpoint WHERE id = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoActive
	}
	if err != nil {
		return "", fmt.Errorf("get active: %w", err)
	}
	return id, nil
}
// #endregion get-current

// #region get-version
// GetVersion retrieves a checkpoint by ID.
func (s *Store) GetVersion(id string) (Checkpoint, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, run_id, update_step, variant, weights, created_at, metrics_json
		 FROM checkpoints WHERE version_id = ?`, id,
	)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("get checkpoint %s: %w", id, err)
	}
	return cp, nil
}
// #endregion get-version

// #region rollback
// Rollback sets the active pointer to a previous checkpoint.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM checkpoints WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("checkpoint %s: %w", targetVersionID, ErrNotFound)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_checkpoint (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		targetVersionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
// #endregion rollback

// #region list-versions
// ListVersions returns the most recent checkpoints of a run, newest first.
// An empty runID lists every run.
func (s *Store) ListVersions(runID string, limit int) ([]Checkpoint, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, run_id, update_step, variant, weights, created_at, metrics_json
		 FROM checkpoints WHERE (? = '' OR run_id = ?)
		 ORDER BY rowid DESC LIMIT ?`, runID, runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// ListVersionsWithLog returns recent checkpoints joined with the log row
// that committed them.
func (s *Store) ListVersionsWithLog(limit int) ([]CheckpointWithLog, error) {
	rows, err := s.db.Query(
		`SELECT c.version_id, c.parent_id, c.run_id, c.update_step, c.variant, c.weights, c.created_at, c.metrics_json,
		        COALESCE(l.decision, ''), COALESCE(l.reason, ''), COALESCE(l.record_json, '')
		 FROM checkpoints c
		 LEFT JOIN training_log l ON l.id = (
		     SELECT id FROM training_log WHERE version_id = c.version_id AND decision = 'commit' ORDER BY id DESC LIMIT 1)
		 ORDER BY c.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions with log: %w", err)
	}
	defer rows.Close()

	var out []CheckpointWithLog
	for rows.Next() {
		var v CheckpointWithLog
		cp, err := scanCheckpoint(rows, &v.Decision, &v.Reason, &v.RecordJSON)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		v.Checkpoint = cp
		out = append(out, v)
	}
	return out, rows.Err()
}
// #endregion list-versions

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(sc scanner, extra ...any) (Checkpoint, error) {
	var cp Checkpoint
	var parentID, metricsJSON sql.NullString
	var blob []byte
	var created string

	dest := append([]any{&cp.VersionID, &parentID, &cp.RunID, &cp.UpdateStep, &cp.Variant, &blob, &created, &metricsJSON}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return Checkpoint{}, err
	}
	weights, err := codec.Decode(blob)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("decode weights of %s: %w", cp.VersionID, err)
	}
	cp.Weights = weights
	cp.ParentID = parentID.String
	cp.MetricsJSON = metricsJSON.String
	cp.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return cp, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
