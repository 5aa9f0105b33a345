// Package vectorize converts observed cohorts into one-hot tensors and back.
package vectorize

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/generator"
)

// #region vectorize
// Vectorize one-hot encodes case, advice, decision and outcome, copies the
// continuous input, and marks the final step of every trajectory as done.
func Vectorize(seq []generator.Observed) (*Tensors, error) {
	h := len(seq)
	if h == 0 {
		return nil, fmt.Errorf("vectorize empty sequence: %w", ErrShape)
	}
	n := seq[0].Size()
	if n == 0 {
		return nil, fmt.Errorf("vectorize empty cohort: %w", ErrShape)
	}
	for t, st := range seq {
		if len(st.Case) != n || len(st.Advice) != n || len(st.Decision) != n || len(st.Outcome) != n || len(st.Cont) != n {
			return nil, fmt.Errorf("vectorize step %d: want %d individuals in every field: %w", t, n, ErrShape)
		}
	}

	out := &Tensors{
		Case:     NewTensor3(n, h, domain.NumCases),
		Advice:   NewTensor3(n, h, domain.NumAdvice),
		Decision: NewTensor3(n, h, domain.NumDecisions),
		Outcome:  NewTensor3(n, h, domain.NumOutcomes),
		Cont:     NewTensor3(n, h, domain.ContDim),
		Done:     mat.NewDense(n, h, nil),
	}
	for t, st := range seq {
		for i := 0; i < n; i++ {
			if err := oneHot(out.Case, i, t, int(st.Case[i])); err != nil {
				return nil, fmt.Errorf("case: %w", err)
			}
			if err := oneHot(out.Advice, i, t, int(st.Advice[i])); err != nil {
				return nil, fmt.Errorf("advice: %w", err)
			}
			if err := oneHot(out.Decision, i, t, int(st.Decision[i])); err != nil {
				return nil, fmt.Errorf("decision: %w", err)
			}
			if err := oneHot(out.Outcome, i, t, int(st.Outcome[i])); err != nil {
				return nil, fmt.Errorf("outcome: %w", err)
			}
			copy(out.Cont.Row(i, t), st.Cont[i][:])
		}
	}
	for i := 0; i < n; i++ {
		out.Done.Set(i, h-1, 1)
	}
	return out, nil
}

func oneHot(t *Tensor3, i, j, k int) error {
	if k < 0 || k >= t.d {
		return fmt.Errorf("symbol %d outside alphabet of %d: %w", k, t.d, ErrShape)
	}
	t.Set(i, j, k, 1)
	return nil
}

// #endregion vectorize

// #region decode
// Decode inverts Vectorize. Every categorical row must be exactly one-hot.
func Decode(ts *Tensors) ([]generator.Observed, error) {
	if ts == nil || ts.Done == nil {
		return nil, fmt.Errorf("decode without done flags: %w", ErrShape)
	}
	n, h := ts.Dims()
	want := map[string]struct {
		t *Tensor3
		d int
	}{
		"case":     {ts.Case, domain.NumCases},
		"advice":   {ts.Advice, domain.NumAdvice},
		"decision": {ts.Decision, domain.NumDecisions},
		"outcome":  {ts.Outcome, domain.NumOutcomes},
		"cont":     {ts.Cont, domain.ContDim},
	}
	for name, w := range want {
		if w.t == nil || w.t.Shape() != [3]int{n, h, w.d} {
			return nil, fmt.Errorf("decode %s: want (%d, %d, %d): %w", name, n, h, w.d, ErrShape)
		}
	}

	seq := make([]generator.Observed, h)
	for t := 0; t < h; t++ {
		st := generator.Observed{
			Case:     make([]domain.Case, n),
			Advice:   make([]domain.Advice, n),
			Decision: make([]domain.Decision, n),
			Outcome:  make([]domain.Outcome, n),
			Cont:     make([][domain.ContDim]float64, n),
		}
		for i := 0; i < n; i++ {
			c, err := Argmax(ts.Case.Row(i, t))
			if err != nil {
				return nil, fmt.Errorf("decode case (%d, %d): %w", i, t, err)
			}
			a, err := Argmax(ts.Advice.Row(i, t))
			if err != nil {
				return nil, fmt.Errorf("decode advice (%d, %d): %w", i, t, err)
			}
			d, err := Argmax(ts.Decision.Row(i, t))
			if err != nil {
				return nil, fmt.Errorf("decode decision (%d, %d): %w", i, t, err)
			}
			o, err := Argmax(ts.Outcome.Row(i, t))
			if err != nil {
				return nil, fmt.Errorf("decode outcome (%d, %d): %w", i, t, err)
			}
			st.Case[i] = domain.Case(c)
			st.Advice[i] = domain.Advice(a)
			st.Decision[i] = domain.Decision(d)
			st.Outcome[i] = domain.Outcome(o)
			copy(st.Cont[i][:], ts.Cont.Row(i, t))
		}
		seq[t] = st
	}
	return seq, nil
}

// Argmax returns the hot index of a one-hot row.
func Argmax(row []float64) (int, error) {
	hot := -1
	for k, v := range row {
		switch v {
		case 0:
		case 1:
			if hot >= 0 {
				return 0, fmt.Errorf("indices %d and %d both set: %w", hot, k, ErrNotOneHot)
			}
			hot = k
		default:
			return 0, fmt.Errorf("index %d holds %v: %w", k, v, ErrNotOneHot)
		}
	}
	if hot < 0 {
		return 0, fmt.Errorf("no index set: %w", ErrNotOneHot)
	}
	return hot, nil
}

// #endregion decode
