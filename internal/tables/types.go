package tables

import (
	"errors"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
)

// #region errors
var (
	// ErrMissingEntry is returned when a tables file omits a required key.
	ErrMissingEntry = errors.New("missing table entry")
	// ErrNotNormalized is returned when a leaf is not a probability vector.
	ErrNotNormalized = errors.New("probability vector not normalized")
	// ErrOutOfRange is returned when a lookup key is outside its alphabet.
	ErrOutOfRange = errors.New("table key out of range")
)

// #endregion errors

// Tolerance bounds how far a leaf may sum away from 1.
const Tolerance = 1e-6

// #region regime-spec
// RegimeSpec parameterises the trust transitions of one latent type.
type RegimeSpec struct {
	Expertise   [domain.NumCases]bool // cases where the type behaves as an expert
	ExpertShift float64               // stochastic shift probability inside the expertise set
	NoviceShift float64               // stochastic shift probability outside it
	// OutcomeBlindInExpertise makes the update ignore the outcome inside the
	// expertise set. Only type 3 sets it.
	OutcomeBlindInExpertise bool
}

// InExpertise reports whether c is in the expertise set.
func (r RegimeSpec) InExpertise(c domain.Case) bool {
	return int(c) < domain.NumCases && r.Expertise[c]
}

// #endregion regime-spec

// #region tables
// Tables is the dense, validated form of every conditional distribution the
// generator samples from. Leaves are indexed by the domain enums.
type Tables struct {
	TypePrior  [domain.NumTypes]float64
	TrustPrior [domain.NumTypes][domain.NumTrust]float64
	Advice     [domain.NumCases][domain.NumAdvice]float64
	Acceptance [domain.NumTypes][domain.NumCases][domain.NumAdvice][domain.NumTrust][domain.NumDecisions]float64
	Outcome    [domain.NumCases][domain.NumDecisions][domain.NumOutcomes]float64
	Regimes    [domain.NumTypes]RegimeSpec
}

// #endregion tables

// #region raw
// rawTables mirrors the YAML layout: nested maps keyed by alphabet labels.
type rawTables struct {
	Types       map[string]float64                                             `yaml:"types"`
	TrustPrior  map[string]map[string]float64                                  `yaml:"trust_prior"`
	Advice      map[string]map[string]float64                                  `yaml:"advice"`
	Outcome     map[string]map[string]map[string]float64                       `yaml:"outcome"`
	Acceptance  map[string]map[string]map[string]map[string]map[string]float64 `yaml:"acceptance"`
	TrustUpdate map[string]rawRegime                                           `yaml:"trust_update"`
}

type rawRegime struct {
	Expertise               []string `yaml:"expertise"`
	ExpertShift             *float64 `yaml:"expert_shift"`
	NoviceShift             *float64 `yaml:"novice_shift"`
	OutcomeBlindInExpertise bool     `yaml:"outcome_blind_in_expertise"`
}

// #endregion raw
