package replay

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/generator"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
	"github.com/danielpatrickdp/trust-aht/internal/trust"
)

// Tolerance is the largest per-entry difference accepted between a stored
// and a recomputed trust distribution.
const Tolerance = 1e-12

// #region types
// CaseResult is the outcome of checking one trust case.
type CaseResult struct {
	Index    int
	Key      TrustKey
	Got      [domain.NumTrust]float64
	Expected [domain.NumTrust]float64
	Pass     bool
	Reason   string
}

// ReplaySummary provides aggregate results from a replay run.
type ReplaySummary struct {
	Digest      string // recomputed
	DigestMatch bool
	Cases       []CaseResult
	Failed      int
}

// Passed reports whether the digest and every trust case matched.
func (s ReplaySummary) Passed() bool { return s.DigestMatch && s.Failed == 0 }

// #endregion types

// #region replay
// Replay regenerates the fixture's cohort from its seed, compares the
// digest, and recomputes every pinned trust distribution. Operates
// entirely in-memory.
func Replay(f *Fixture, t *tables.Tables) (ReplaySummary, error) {
	seq, err := generator.NewSampler(t, f.Seed).Generate(f.CohortSize, f.Horizon)
	if err != nil {
		return ReplaySummary{}, fmt.Errorf("regenerate cohort: %w", err)
	}
	summary := ReplaySummary{Digest: generator.Digest(seq)}
	summary.DigestMatch = summary.Digest == f.Digest

	rule := trust.NewRule(t)
	for i := range f.TrustCases {
		tc := &f.TrustCases[i]
		res := CaseResult{Index: i, Expected: tc.Expected}
		k, err := tc.Key()
		if err != nil {
			return ReplaySummary{}, fmt.Errorf("trust case %d: %w", i, err)
		}
		res.Key = k

		got, err := rule.Distribution(k.Type, k.Case, k.Trust, k.Advice, k.Decision, k.Outcome)
		if err != nil {
			res.Reason = err.Error()
		} else {
			res.Got = got
			res.Pass = true
			for j := range got {
				if math.Abs(got[j]-tc.Expected[j]) > Tolerance {
					res.Pass = false
					res.Reason = fmt.Sprintf("%s: got %v, want %v", domain.Trust(j), got, tc.Expected)
					break
				}
			}
		}
		if !res.Pass {
			summary.Failed++
		}
		summary.Cases = append(summary.Cases, res)
	}
	return summary, nil
}

// #endregion replay

// #region export
// ExportFixture builds a fixture from a cohort: its digest plus the trust
// distribution of every distinct transition the cohort went through, in
// the order first seen. limit caps the number of cases; 0 keeps all.
func ExportFixture(description string, seed uint64, seq []generator.Step, rule *trust.Rule, limit int) (*Fixture, error) {
	if len(seq) == 0 {
		return nil, fmt.Errorf("export fixture: %w", generator.ErrCohortSize)
	}
	f := &Fixture{
		Description: description,
		Seed:        seed,
		CohortSize:  seq[0].Size(),
		Horizon:     len(seq),
		Digest:      generator.Digest(seq),
		TrustCases:  []FixtureTrustCase{},
	}

	seen := make(map[TrustKey]bool)
	for t := 0; t+1 < len(seq); t++ {
		st := seq[t]
		for i := 0; i < st.Size(); i++ {
			if limit > 0 && len(f.TrustCases) >= limit {
				return f, nil
			}
			k := TrustKey{
				Type:     st.Type[i],
				Case:     st.Case[i],
				Trust:    st.Trust[i],
				Advice:   st.Advice[i],
				Decision: st.Decision[i],
				Outcome:  st.Outcome[i],
			}
			if seen[k] {
				continue
			}
			seen[k] = true
			dist, err := rule.Distribution(k.Type, k.Case, k.Trust, k.Advice, k.Decision, k.Outcome)
			if err != nil {
				return nil, fmt.Errorf("trust case %+v: %w", k, err)
			}
			f.TrustCases = append(f.TrustCases, toCase(k, dist))
		}
	}
	return f, nil
}

// #endregion export
