// Package trust implements the per-type stochastic trust transition that
// drives the latent state of each simulated individual.
package trust

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
)

// #region rule
// Rule maps (type, case, previous trust, advice, decision, outcome) to the
// next trust state. It is a pure function of its inputs and the random
// source passed to Update.
type Rule struct {
	regimes  map[Regime]Transition
	regimeOf [domain.NumTypes]tables.RegimeSpec
}

// NewRule builds the regime table from the tables' trust_update section.
func NewRule(t *tables.Tables) *Rule {
	r := &Rule{regimes: make(map[Regime]Transition, 2*domain.NumTypes)}
	for ty := 0; ty < domain.NumTypes; ty++ {
		spec := t.Regimes[ty]
		r.regimeOf[ty] = spec
		r.regimes[Regime{Type: domain.Type(ty), Expert: true}] = Transition{
			Shift:        spec.ExpertShift,
			OutcomeBlind: spec.OutcomeBlindInExpertise,
		}
		r.regimes[Regime{Type: domain.Type(ty), Expert: false}] = Transition{
			Shift: spec.NoviceShift,
		}
	}
	return r
}

// RegimeFor resolves the regime tag for a type and case.
func (r *Rule) RegimeFor(ty domain.Type, c domain.Case) (Regime, error) {
	if !ty.Valid() {
		return Regime{}, fmt.Errorf("%w %s", ErrUnknownType, ty)
	}
	return Regime{Type: ty, Expert: r.regimeOf[ty].InExpertise(c)}, nil
}

// Transition returns the parameters of a regime.
func (r *Rule) Transition(reg Regime) (Transition, error) {
	tr, ok := r.regimes[reg]
	if !ok {
		return Transition{}, fmt.Errorf("%w %s", ErrUnknownType, reg.Type)
	}
	return tr, nil
}

// #endregion rule

// #region classify
// Classify names the branch taken for one observation under a transition.
// Withheld advice always holds; otherwise agreement and outcome select the
// move, except that outcome-blind regimes look at agreement only.
func Classify(tr Transition, advice domain.Advice, decision domain.Decision, outcome domain.Outcome) Effect {
	agree := advice.Matches(decision)
	switch {
	case advice == domain.AdviceWithhold:
		return EffectHold
	case tr.OutcomeBlind && agree:
		return EffectBlindReinforce
	case tr.OutcomeBlind:
		return EffectBlindErode
	case agree && outcome == domain.OutcomeGood:
		return EffectReinforce
	case agree:
		return EffectErode
	case outcome == domain.OutcomeGood:
		return EffectDemote
	default:
		return EffectReinforce
	}
}

// #endregion classify

// #region distribution
// Distribution returns the exact next-trust probability vector.
func (r *Rule) Distribution(ty domain.Type, c domain.Case, prev domain.Trust, advice domain.Advice, decision domain.Decision, outcome domain.Outcome) ([domain.NumTrust]float64, error) {
	var dist [domain.NumTrust]float64
	if int(prev) >= domain.NumTrust {
		return dist, fmt.Errorf("previous trust %s out of range", prev)
	}
	reg, err := r.RegimeFor(ty, c)
	if err != nil {
		return dist, err
	}
	tr, err := r.Transition(reg)
	if err != nil {
		return dist, err
	}

	switch Classify(tr, advice, decision, outcome) {
	case EffectHold:
		dist[prev] = 1
	case EffectReinforce, EffectBlindReinforce:
		shift(&dist, prev, prev.Up(), tr.Shift)
	case EffectErode, EffectBlindErode:
		shift(&dist, prev, prev.Down(), tr.Shift)
	case EffectDemote:
		dist[prev.Down()] = 1
	}
	return dist, nil
}

// shift puts p on moving to next and the rest on staying. At the boundary
// next == prev and all mass stays.
func shift(dist *[domain.NumTrust]float64, prev, next domain.Trust, p float64) {
	if next == prev {
		dist[prev] = 1
		return
	}
	dist[next] = p
	dist[prev] = 1 - p
}

// #endregion distribution

// #region update
// Update samples the next trust state. Deterministic branches consume no
// randomness.
func (r *Rule) Update(rng *rand.Rand, ty domain.Type, c domain.Case, prev domain.Trust, advice domain.Advice, decision domain.Decision, outcome domain.Outcome) (domain.Trust, error) {
	dist, err := r.Distribution(ty, c, prev, advice, decision, outcome)
	if err != nil {
		return prev, err
	}
	for i, p := range dist {
		if p == 1 {
			return domain.Trust(i), nil
		}
	}
	idx := distuv.NewCategorical(dist[:], rng).Rand()
	return domain.Trust(int(idx)), nil
}

// #endregion update
