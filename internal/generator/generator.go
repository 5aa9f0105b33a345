// Package generator samples cohorts of synthetic advice-taking
// trajectories from the probability tables and the trust rule.
package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
	"github.com/danielpatrickdp/trust-aht/internal/trust"
)

// Sampler draws trajectories. All randomness comes from its own source, so
// two samplers with the same tables and seed produce identical cohorts.
type Sampler struct {
	tables *tables.Tables
	rule   *trust.Rule
	rng    *rand.Rand
}

// NewSampler creates a sampler seeded with seed.
func NewSampler(t *tables.Tables, seed uint64) *Sampler {
	return &Sampler{
		tables: t,
		rule:   trust.NewRule(t),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// #region generate
// Generate samples n independent trajectories over h steps, advancing all
// of them in lockstep. Step t presents case t+1; trust at step t is the
// rule applied to step t-1's case, advice, decision and outcome.
func (s *Sampler) Generate(n, h int) ([]Step, error) {
	if n <= 0 {
		return nil, fmt.Errorf("generate %d individuals: %w", n, ErrCohortSize)
	}
	if h <= 0 || h > domain.NumCases {
		return nil, fmt.Errorf("generate horizon %d: %w", h, ErrHorizon)
	}

	seq := make([]Step, 0, h)
	for t := 0; t < h; t++ {
		c, err := domain.CaseAt(t)
		if err != nil {
			return nil, err
		}
		cur := newStep(n)
		for i := 0; i < n; i++ {
			if t == 0 {
				if err := s.initial(&cur, i); err != nil {
					return nil, fmt.Errorf("initialize individual %d: %w", i, err)
				}
			} else {
				prev := seq[t-1]
				cur.Type[i] = prev.Type[i]
				next, err := s.rule.Update(s.rng, prev.Type[i], prev.Case[i], prev.Trust[i], prev.Advice[i], prev.Decision[i], prev.Outcome[i])
				if err != nil {
					return nil, fmt.Errorf("update trust of individual %d at step %d: %w", i, t+1, err)
				}
				cur.Trust[i] = next
			}
			if err := s.observe(&cur, i, c); err != nil {
				return nil, fmt.Errorf("sample individual %d at step %d: %w", i, t+1, err)
			}
		}
		seq = append(seq, cur)
	}
	return seq, nil
}

func newStep(n int) Step {
	return Step{
		Type:     make([]domain.Type, n),
		Trust:    make([]domain.Trust, n),
		Case:     make([]domain.Case, n),
		Advice:   make([]domain.Advice, n),
		Decision: make([]domain.Decision, n),
		Outcome:  make([]domain.Outcome, n),
		Cont:     make([][domain.ContDim]float64, n),
	}
}

// initial draws the latent type and the initial trust of individual i.
func (s *Sampler) initial(st *Step, i int) error {
	ty := domain.Type(s.draw(s.tables.TypeProbs()))
	p, err := s.tables.TrustProbs(ty)
	if err != nil {
		return err
	}
	st.Type[i] = ty
	st.Trust[i] = domain.Trust(s.draw(p))
	return nil
}

// observe fills the case, advice, decision, outcome and continuous input of
// individual i given its type and current trust.
func (s *Sampler) observe(st *Step, i int, c domain.Case) error {
	st.Case[i] = c

	p, err := s.tables.AdviceProbs(c)
	if err != nil {
		return err
	}
	a := domain.Advice(s.draw(p))
	st.Advice[i] = a

	p, err = s.tables.DecisionProbs(st.Type[i], c, a, st.Trust[i])
	if err != nil {
		return err
	}
	d := domain.Decision(s.draw(p))
	st.Decision[i] = d

	p, err = s.tables.OutcomeProbs(c, d)
	if err != nil {
		return err
	}
	st.Outcome[i] = domain.Outcome(s.draw(p))
	st.Cont[i] = s.cont(c)
	return nil
}

func (s *Sampler) draw(p []float64) int {
	return int(distuv.NewCategorical(p, s.rng).Rand())
}

// cont draws the continuous input for a case: T1 in [0,1)², T2 in [1,2)²,
// every later case in [2,3)².
func (s *Sampler) cont(c domain.Case) [domain.ContDim]float64 {
	lo := float64(min(int(c), 2))
	u := distuv.Uniform{Min: lo, Max: lo + 1, Src: s.rng}
	var x [domain.ContDim]float64
	for k := range x {
		x[k] = u.Rand()
	}
	return x
}

// #endregion generate

// #region strip
// StripLatents drops type and trust, leaving the observable record.
func StripLatents(seq []Step) []Observed {
	out := make([]Observed, len(seq))
	for t, st := range seq {
		out[t] = Observed{
			Case:     st.Case,
			Advice:   st.Advice,
			Decision: st.Decision,
			Outcome:  st.Outcome,
			Cont:     st.Cont,
		}
	}
	return out
}

// #endregion strip

// #region digest
// Digest is the hex SHA-256 of the categorical content of a cohort, laid
// out individual-major. Continuous inputs are excluded.
func Digest(seq []Step) string {
	h := sha256.New()
	if len(seq) == 0 {
		return hex.EncodeToString(h.Sum(nil))
	}
	n := seq[0].Size()
	row := make([]byte, 0, 6*len(seq))
	for i := 0; i < n; i++ {
		row = row[:0]
		for _, st := range seq {
			row = append(row,
				byte(st.Type[i]), byte(st.Trust[i]), byte(st.Case[i]),
				byte(st.Advice[i]), byte(st.Decision[i]), byte(st.Outcome[i]))
		}
		h.Write(row)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// #endregion digest
