package gate

import (
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
)

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoNonFinite VetoType = "non_finite"
	VetoParamNorm VetoType = "param_norm"
	VetoDelta     VetoType = "delta_norm"
	VetoLossRise  VetoType = "loss_rise"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for checkpoint decisions.
type GateConfig struct {
	MaxParamNorm float64 `yaml:"max_param_norm"` // max Frobenius norm over trainable weights
	MaxDeltaNorm float64 `yaml:"max_delta_norm"` // max norm of the change since the last commit
	MaxLossRise  float64 `yaml:"max_loss_rise"`  // reject if total loss exceeds this multiple of the last committed loss; 0 disables
}

// DefaultGateConfig returns the thresholds used for training runs.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxParamNorm: 1e4,
		MaxDeltaNorm: 100,
		MaxLossRise:  10,
	}
}

// #endregion gate-config

// #region proposal
// Proposal is a candidate checkpoint.
type Proposal struct {
	Old      map[string]*mat.Dense // weights at the last commit, nil for the first
	New      map[string]*mat.Dense
	Losses   agent.Losses
	PrevLoss float64 // total loss at the last commit, 0 if none
}

// #endregion proposal

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	SoftScore   float64      // 0-1 composite of soft signals (for logging)
	ParamNorm   float64
	DeltaNorm   float64
}

// #endregion gate-decision
