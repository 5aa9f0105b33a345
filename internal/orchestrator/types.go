package orchestrator

import (
	"github.com/danielpatrickdp/trust-aht/internal/agent"
	"github.com/danielpatrickdp/trust-aht/internal/eval"
)

// #region options

// RunOptions selects the data and the starting point of a run.
type RunOptions struct {
	CohortID string // empty generates and stores a new cohort
	Resume   bool   // start from the active checkpoint instead of fresh weights
}

// #endregion

// #region result

// Result summarizes a finished run.
type Result struct {
	RunID         string
	CohortID      string
	Updates       int
	Syncs         int
	Commits       int
	Rejects       int
	ActiveVersion string
	FinalLoss     agent.Losses
	Eval          *eval.EvalResult // nil when no trajectories were held out
}

// #endregion
