package cohort

import "errors"

// ErrNotFound is returned when no cohort matches the requested ID.
var ErrNotFound = errors.New("cohort not found")

// ErrCorrupt is returned when stored rows no longer hash to the recorded digest.
var ErrCorrupt = errors.New("cohort digest mismatch")

// #region cohort
// Cohort is the metadata of one stored synthetic cohort.
type Cohort struct {
	CohortID  string `db:"cohort_id" json:"cohort_id"`
	Seed      uint64 `db:"seed" json:"seed"`
	Size      int    `db:"size" json:"size"`
	Horizon   int    `db:"horizon" json:"horizon"`
	Digest    string `db:"digest" json:"digest"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// row is one individual at one time step.
type row struct {
	Individual int     `db:"individual"`
	Step       int     `db:"step"`
	Type       uint8   `db:"type"`
	Trust      uint8   `db:"trust"`
	Case       uint8   `db:"case_idx"`
	Advice     uint8   `db:"advice"`
	Decision   uint8   `db:"decision"`
	Outcome    uint8   `db:"outcome"`
	ContX      float64 `db:"cont_x"`
	ContY      float64 `db:"cont_y"`
}

// #endregion cohort
