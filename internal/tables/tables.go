package tables

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
)

//go:embed default_tables.yaml
var defaultTablesYAML []byte

// #region load
// Default returns the built-in tables. It panics if the embedded file is
// invalid, which is a build defect rather than a runtime condition.
func Default() *Tables {
	t, err := Load(bytes.NewReader(defaultTablesYAML))
	if err != nil {
		panic(fmt.Sprintf("tables: embedded defaults invalid: %v", err))
	}
	return t
}

// LoadFile reads and validates a tables file.
func LoadFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tables %s: %w", path, err)
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load tables %s: %w", path, err)
	}
	return t, nil
}

// Load decodes a tables document, checks that every key tuple the sampler
// can ask for is present, and validates every leaf.
func Load(r io.Reader) (*Tables, error) {
	var raw rawTables
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}

	t := &Tables{}
	if err := fill(t.TypePrior[:], raw.Types, typeLabels(), "types"); err != nil {
		return nil, err
	}

	for ty := 0; ty < domain.NumTypes; ty++ {
		tl := domain.Type(ty).String()
		row, err := child(raw.TrustPrior, tl, "trust_prior")
		if err != nil {
			return nil, err
		}
		if err := fill(t.TrustPrior[ty][:], row, trustLabels(), "trust_prior/"+tl); err != nil {
			return nil, err
		}
	}
	if err := noExtra(len(raw.TrustPrior), domain.NumTypes, "trust_prior"); err != nil {
		return nil, err
	}

	for c := 0; c < domain.NumCases; c++ {
		cl := domain.Case(c).String()
		row, err := child(raw.Advice, cl, "advice")
		if err != nil {
			return nil, err
		}
		if err := fill(t.Advice[c][:], row, adviceLabels(), "advice/"+cl); err != nil {
			return nil, err
		}

		byDecision, err := child(raw.Outcome, cl, "outcome")
		if err != nil {
			return nil, err
		}
		for d := 0; d < domain.NumDecisions; d++ {
			dl := domain.Decision(d).String()
			row, err := child(byDecision, dl, "outcome/"+cl)
			if err != nil {
				return nil, err
			}
			if err := fill(t.Outcome[c][d][:], row, outcomeLabels(), "outcome/"+cl+"/"+dl); err != nil {
				return nil, err
			}
		}
		if err := noExtra(len(byDecision), domain.NumDecisions, "outcome/"+cl); err != nil {
			return nil, err
		}
	}
	if err := noExtra(len(raw.Advice), domain.NumCases, "advice"); err != nil {
		return nil, err
	}
	if err := noExtra(len(raw.Outcome), domain.NumCases, "outcome"); err != nil {
		return nil, err
	}

	if err := fillAcceptance(t, raw.Acceptance); err != nil {
		return nil, err
	}
	if err := fillRegimes(t, raw.TrustUpdate); err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func fillAcceptance(t *Tables, raw map[string]map[string]map[string]map[string]map[string]float64) error {
	for ty := 0; ty < domain.NumTypes; ty++ {
		tl := domain.Type(ty).String()
		byCase, err := child(raw, tl, "acceptance")
		if err != nil {
			return err
		}
		for c := 0; c < domain.NumCases; c++ {
			cl := domain.Case(c).String()
			base := "acceptance/" + tl
			byAdvice, err := child(byCase, cl, base)
			if err != nil {
				return err
			}
			for a := 0; a < domain.NumAdvice; a++ {
				al := domain.Advice(a).String()
				byTrust, err := child(byAdvice, al, base+"/"+cl)
				if err != nil {
					return err
				}
				for tr := 0; tr < domain.NumTrust; tr++ {
					trl := domain.Trust(tr).String()
					path := base + "/" + cl + "/" + al
					row, err := child(byTrust, trl, path)
					if err != nil {
						return err
					}
					if err := fill(t.Acceptance[ty][c][a][tr][:], row, decisionLabels(), path+"/"+trl); err != nil {
						return err
					}
				}
				if err := noExtra(len(byTrust), domain.NumTrust, base+"/"+cl+"/"+al); err != nil {
					return err
				}
			}
			if err := noExtra(len(byAdvice), domain.NumAdvice, base+"/"+cl); err != nil {
				return err
			}
		}
		if err := noExtra(len(byCase), domain.NumCases, "acceptance/"+tl); err != nil {
			return err
		}
	}
	return noExtra(len(raw), domain.NumTypes, "acceptance")
}

func fillRegimes(t *Tables, raw map[string]rawRegime) error {
	for ty := 0; ty < domain.NumTypes; ty++ {
		tl := domain.Type(ty).String()
		rr, ok := raw[tl]
		if !ok {
			return fmt.Errorf("trust_update/%s: %w", tl, ErrMissingEntry)
		}
		if rr.ExpertShift == nil {
			return fmt.Errorf("trust_update/%s/expert_shift: %w", tl, ErrMissingEntry)
		}
		if rr.NoviceShift == nil {
			return fmt.Errorf("trust_update/%s/novice_shift: %w", tl, ErrMissingEntry)
		}
		spec := RegimeSpec{
			ExpertShift:             *rr.ExpertShift,
			NoviceShift:             *rr.NoviceShift,
			OutcomeBlindInExpertise: rr.OutcomeBlindInExpertise,
		}
		for _, label := range rr.Expertise {
			c, err := domain.ParseCase(label)
			if err != nil {
				return fmt.Errorf("trust_update/%s/expertise: %w", tl, err)
			}
			spec.Expertise[c] = true
		}
		t.Regimes[ty] = spec
	}
	return noExtra(len(raw), domain.NumTypes, "trust_update")
}

// #endregion load

// #region validate
// Validate checks that every leaf is a probability vector and every regime
// shift probability lies in [0, 1].
func (t *Tables) Validate() error {
	if err := checkVector(t.TypePrior[:], "types"); err != nil {
		return err
	}
	for ty := 0; ty < domain.NumTypes; ty++ {
		tl := domain.Type(ty).String()
		if err := checkVector(t.TrustPrior[ty][:], "trust_prior/"+tl); err != nil {
			return err
		}
		r := t.Regimes[ty]
		for _, p := range []float64{r.ExpertShift, r.NoviceShift} {
			if math.IsNaN(p) || p < 0 || p > 1 {
				return fmt.Errorf("trust_update/%s: shift %v: %w", tl, p, ErrNotNormalized)
			}
		}
		for c := 0; c < domain.NumCases; c++ {
			cl := domain.Case(c).String()
			for a := 0; a < domain.NumAdvice; a++ {
				for tr := 0; tr < domain.NumTrust; tr++ {
					path := fmt.Sprintf("acceptance/%s/%s/%s/%s", tl, cl, domain.Advice(a), domain.Trust(tr))
					if err := checkVector(t.Acceptance[ty][c][a][tr][:], path); err != nil {
						return err
					}
				}
			}
		}
	}
	for c := 0; c < domain.NumCases; c++ {
		cl := domain.Case(c).String()
		if err := checkVector(t.Advice[c][:], "advice/"+cl); err != nil {
			return err
		}
		for d := 0; d < domain.NumDecisions; d++ {
			if err := checkVector(t.Outcome[c][d][:], "outcome/"+cl+"/"+domain.Decision(d).String()); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkVector(p []float64, path string) error {
	var sum float64
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s: entry %v: %w", path, v, ErrNotNormalized)
		}
		sum += v
	}
	if math.Abs(sum-1) > Tolerance {
		return fmt.Errorf("%s: sums to %v: %w", path, sum, ErrNotNormalized)
	}
	return nil
}

// #endregion validate

// #region lookup
// TypeProbs returns the prior over latent types.
func (t *Tables) TypeProbs() []float64 {
	return clone(t.TypePrior[:])
}

// TrustProbs returns the initial trust prior for a type.
func (t *Tables) TrustProbs(ty domain.Type) ([]float64, error) {
	if !ty.Valid() {
		return nil, fmt.Errorf("trust prior for type %s: %w", ty, ErrOutOfRange)
	}
	return clone(t.TrustPrior[ty][:]), nil
}

// AdviceProbs returns the advice distribution for a case.
func (t *Tables) AdviceProbs(c domain.Case) ([]float64, error) {
	if int(c) >= domain.NumCases {
		return nil, fmt.Errorf("advice for case %s: %w", c, ErrOutOfRange)
	}
	return clone(t.Advice[c][:]), nil
}

// DecisionProbs returns the acceptance distribution over human decisions.
func (t *Tables) DecisionProbs(ty domain.Type, c domain.Case, a domain.Advice, tr domain.Trust) ([]float64, error) {
	if !ty.Valid() || int(c) >= domain.NumCases || int(a) >= domain.NumAdvice || int(tr) >= domain.NumTrust {
		return nil, fmt.Errorf("acceptance for (%s, %s, %s, %s): %w", ty, c, a, tr, ErrOutOfRange)
	}
	return clone(t.Acceptance[ty][c][a][tr][:]), nil
}

// OutcomeProbs returns the outcome distribution for a case and decision.
func (t *Tables) OutcomeProbs(c domain.Case, d domain.Decision) ([]float64, error) {
	if int(c) >= domain.NumCases || int(d) >= domain.NumDecisions {
		return nil, fmt.Errorf("outcome for (%s, %s): %w", c, d, ErrOutOfRange)
	}
	return clone(t.Outcome[c][d][:]), nil
}

// Regime returns the trust regime of a type.
func (t *Tables) Regime(ty domain.Type) (RegimeSpec, error) {
	if !ty.Valid() {
		return RegimeSpec{}, fmt.Errorf("regime for type %s: %w", ty, ErrOutOfRange)
	}
	return t.Regimes[ty], nil
}

// #endregion lookup

// #region helpers
func child[V any](m map[string]V, key, path string) (V, error) {
	v, ok := m[key]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%s/%s: %w", path, key, ErrMissingEntry)
	}
	return v, nil
}

func fill(dst []float64, row map[string]float64, labels []string, path string) error {
	for i, l := range labels {
		v, ok := row[l]
		if !ok {
			return fmt.Errorf("%s/%s: %w", path, l, ErrMissingEntry)
		}
		dst[i] = v
	}
	return noExtra(len(row), len(labels), path)
}

func noExtra(got, want int, path string) error {
	if got > want {
		return fmt.Errorf("%s: %d keys, expected %d", path, got, want)
	}
	return nil
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}

func typeLabels() []string { return labels(domain.NumTypes, func(i int) string { return domain.Type(i).String() }) }
func trustLabels() []string { return labels(domain.NumTrust, func(i int) string { return domain.Trust(i).String() }) }
func adviceLabels() []string { return labels(domain.NumAdvice, func(i int) string { return domain.Advice(i).String() }) }
func decisionLabels() []string { return labels(domain.NumDecisions, func(i int) string { return domain.Decision(i).String() }) }
func outcomeLabels() []string { return labels(domain.NumOutcomes, func(i int) string { return domain.Outcome(i).String() }) }

func labels(n int, name func(int) string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = name(i)
	}
	return out
}

// #endregion helpers
