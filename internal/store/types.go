package store

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/mat"
)

// ErrNoActive is returned when no checkpoint has been committed yet.
var ErrNoActive = errors.New("no active checkpoint")

// ErrNotFound is returned for unknown run or version IDs.
var ErrNotFound = errors.New("not found")

// #region run
// Run is one training run: a configuration applied to one cohort.
type Run struct {
	RunID      string
	Variant    string
	ConfigJSON string
	CohortID   string
	CreatedAt  time.Time
}
// #endregion run

// #region checkpoint
// Checkpoint is a versioned snapshot of every agent network.
type Checkpoint struct {
	VersionID   string
	ParentID    string
	RunID       string
	UpdateStep  int
	Variant     string
	Weights     map[string]*mat.Dense
	CreatedAt   time.Time
	MetricsJSON string
}
// #endregion checkpoint

// #region checkpoint-with-log
// CheckpointWithLog pairs a checkpoint with the training_log row that
// committed it.
type CheckpointWithLog struct {
	Checkpoint
	Decision   string
	Reason     string
	RecordJSON string
}
// #endregion checkpoint-with-log
