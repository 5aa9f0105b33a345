package generator

import (
	"errors"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
)

// ErrHorizon is returned when the requested horizon is outside 1..NumCases.
var ErrHorizon = errors.New("horizon outside case sequence")

// ErrCohortSize is returned for a non-positive cohort size.
var ErrCohortSize = errors.New("cohort size must be positive")

// #region step
// Step is the state of every individual in the cohort at one time step.
// Each slice has one entry per individual.
type Step struct {
	Type     []domain.Type
	Trust    []domain.Trust
	Case     []domain.Case
	Advice   []domain.Advice
	Decision []domain.Decision
	Outcome  []domain.Outcome
	Cont     [][domain.ContDim]float64
}

// Observed is a Step with the latent type and trust removed.
type Observed struct {
	Case     []domain.Case
	Advice   []domain.Advice
	Decision []domain.Decision
	Outcome  []domain.Outcome
	Cont     [][domain.ContDim]float64
}

// #endregion step

// Size returns the cohort size of a step.
func (s Step) Size() int { return len(s.Case) }

// Size returns the cohort size of an observed step.
func (o Observed) Size() int { return len(o.Case) }
