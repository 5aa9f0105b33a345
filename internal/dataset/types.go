package dataset

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/vectorize"
)

// ObsDim is the width of one observation: continuous input, case one-hot,
// and the previous human decision (all -1 at the first step).
const ObsDim = domain.ContDim + domain.NumCases + domain.NumDecisions

// Sentinel fills the previous-decision slot at the first step and every
// slot of the next observation after the final step.
const Sentinel = -1.0

// ErrBatchSize is returned when a batch cannot be drawn without replacement.
var ErrBatchSize = errors.New("batch size out of range")

// #region dataset
// Dataset is the offline training set derived from a vectorized cohort.
type Dataset struct {
	Obs     *vectorize.Tensor3 // (N, H, ObsDim)
	NextObs *vectorize.Tensor3 // (N, H, ObsDim)
	Human   *vectorize.Tensor3 // (N, H, NumDecisions)
	AI      *vectorize.Tensor3 // (N, H, NumAdvice)
	Reward  *mat.Dense         // (N, H), 1 for a good outcome
	Done    *mat.Dense         // (N, H)
}

// Batch is a set of trajectories laid out step-major: element t of each
// slice is the (B, width) matrix of step t.
type Batch struct {
	Index   []int
	Obs     []*mat.Dense
	NextObs []*mat.Dense
	Human   []*mat.Dense
	AI      []*mat.Dense
	Reward  *mat.Dense // (B, H)
	Done    *mat.Dense // (B, H)
}

// #endregion dataset
