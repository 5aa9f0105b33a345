package logging

import "time"

// #region step-entry
// StepEntry is a single row in the training_log table.
type StepEntry struct {
	VersionID  string // active checkpoint after the decision, may be empty
	RunID      string
	UpdateStep int
	RecordJSON string
	Decision   string // "commit" | "reject" | "abort"
	Reason     string
	CreatedAt  time.Time
}
// #endregion step-entry

// #region step-record
// StepRecord captures everything the gate saw for one checkpoint decision.
// Serialized as JSON into training_log.record_json for later inspection.
type StepRecord struct {
	RunID  string `json:"run_id"`
	Update int    `json:"update"`

	// Loss terms of the update that produced the checkpoint
	Losses StepLosses `json:"losses"`
	Synced bool       `json:"synced"`

	// Parameter statistics
	ParamNorm float64 `json:"param_norm"`
	DeltaNorm float64 `json:"delta_norm"`

	// Gate thresholds active at decision time
	Thresholds StepThresholds `json:"thresholds"`

	// Gate output
	GateAction    string  `json:"gate_action"`
	GateSoftScore float64 `json:"gate_soft_score"`
	GateVetoed    bool    `json:"gate_vetoed"`
	GateReason    string  `json:"gate_reason"`
}

// StepLosses are the mean loss terms of one update.
type StepLosses struct {
	Imitation    float64 `json:"imitation"`
	TD           float64 `json:"td"`
	Conservative float64 `json:"conservative"`
	Total        float64 `json:"total"`
}

// StepThresholds captures the gate config active at decision time.
type StepThresholds struct {
	MaxParamNorm float64 `json:"max_param_norm"`
	MaxDeltaNorm float64 `json:"max_delta_norm"`
	MaxLossRise  float64 `json:"max_loss_rise"`
}
// #endregion step-record
