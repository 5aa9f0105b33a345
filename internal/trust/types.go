package trust

import (
	"errors"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
)

// ErrUnknownType is returned for latent types the rule has no regime for.
var ErrUnknownType = errors.New("trust update not implemented for type")

// #region regime
// Regime tags which transition table applies: the latent type and whether
// the current case is in that type's expertise set.
type Regime struct {
	Type   domain.Type
	Expert bool
}

// Transition holds the parameters of one regime.
type Transition struct {
	Shift        float64 // probability of a stochastic one-step move
	OutcomeBlind bool    // agreement alone drives the move
}

// #endregion regime

// #region effect
// Effect names the branch of the rule taken for one observation.
type Effect string

const (
	EffectHold           Effect = "hold"            // advice withheld
	EffectReinforce      Effect = "reinforce"       // stochastic move towards Trusting
	EffectErode          Effect = "erode"           // stochastic move towards Distrusting
	EffectDemote         Effect = "demote"          // deterministic move towards Distrusting
	EffectBlindReinforce Effect = "blind_reinforce" // outcome-blind agreement
	EffectBlindErode     Effect = "blind_erode"     // outcome-blind disagreement
)

// #endregion effect
