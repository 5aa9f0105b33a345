package logging

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE training_log (
		version_id  TEXT,
		run_id      TEXT NOT NULL,
		update_step INTEGER NOT NULL,
		record_json TEXT,
		decision    TEXT NOT NULL,
		reason      TEXT,
		created_at  TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-step-tests
func TestLogStep_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	rec := StepRecord{RunID: "r1", Update: 200, Losses: StepLosses{Total: 1.5}, GateAction: "commit"}
	recJSON, _ := json.Marshal(rec)
	entry := StepEntry{
		VersionID:  "v1",
		RunID:      "r1",
		UpdateStep: 200,
		RecordJSON: string(recJSON),
		Decision:   "commit",
		Reason:     "clean",
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogStep(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var versionID, decision, stored string
	var step int
	db.QueryRow("SELECT version_id, decision, update_step, record_json FROM training_log").Scan(&versionID, &decision, &step, &stored)
	if versionID != "v1" || decision != "commit" || step != 200 {
		t.Fatalf("unexpected row: %q %q %d", versionID, decision, step)
	}
	var back StepRecord
	if err := json.Unmarshal([]byte(stored), &back); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if back.Losses.Total != 1.5 || back.GateAction != "commit" {
		t.Fatalf("record did not survive: %+v", back)
	}
}

func TestLogStep_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogStep(db, StepEntry{RunID: "r", Decision: "reject"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM training_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogStep_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogStep(db, StepEntry{RunID: "r", Decision: "reject"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var versionID, recordJSON, reason sql.NullString
	db.QueryRow("SELECT version_id, record_json, reason FROM training_log").Scan(&versionID, &recordJSON, &reason)
	if versionID.Valid || recordJSON.Valid || reason.Valid {
		t.Error("expected NULL for empty optional fields")
	}
}

func TestLogStep_Error(t *testing.T) {
	db := setupDB(t)
	db.Close()

	if err := LogStep(db, StepEntry{RunID: "r", Decision: "commit"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-step-tests

// #region logger-tests
func TestLoggerRenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, slog.LevelInfo)
	log.Info("train aborted", "error", errors.New("boom"))
	log.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "err=boom") {
		t.Fatalf("expected err key, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatal("debug line should be filtered at info level")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "": slog.LevelInfo, "WARN": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	NewNop().Info("discarded")
}

// #endregion logger-tests
