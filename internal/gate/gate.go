// Package gate decides whether a training checkpoint is committed.
package gate

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// #region gate
// Gate evaluates whether a proposed checkpoint should be committed or rejected.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the gate's thresholds.
func (g *Gate) Config() GateConfig { return g.config }

// Evaluate checks hard vetoes first, then scores soft signals.
func (g *Gate) Evaluate(p Proposal) GateDecision {
	var vetoes []VetoSignal

	paramNorm := weightNorm(p.New, nil)
	deltaNorm := 0.0
	if p.Old != nil {
		deltaNorm = weightNorm(p.New, p.Old)
	}

	// 1. Loss or weights are NaN/Inf
	if !finite(p.Losses.Total) || !finite(paramNorm) || !finite(deltaNorm) {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoNonFinite,
			Reason: fmt.Sprintf("non-finite loss %v or weights", p.Losses.Total),
		})
	}

	// 2. Parameter norm exceeds cap
	if paramNorm > g.config.MaxParamNorm {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoParamNorm,
			Reason: fmt.Sprintf("param norm %.4f exceeds cap %.4f", paramNorm, g.config.MaxParamNorm),
		})
	}

	// 3. Delta norm exceeds cap
	if deltaNorm > g.config.MaxDeltaNorm {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoDelta,
			Reason: fmt.Sprintf("delta norm %.4f exceeds cap %.4f", deltaNorm, g.config.MaxDeltaNorm),
		})
	}

	// 4. Loss blew up relative to the last commit
	if g.config.MaxLossRise > 0 && p.PrevLoss > 0 && p.Losses.Total > g.config.MaxLossRise*p.PrevLoss {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoLossRise,
			Reason: fmt.Sprintf("loss %.4f exceeds %.1fx last commit %.4f", p.Losses.Total, g.config.MaxLossRise, p.PrevLoss),
		})
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
			ParamNorm:   paramNorm,
			DeltaNorm:   deltaNorm,
		}
	}

	softScore := computeSoftScore(p, deltaNorm, g.config.MaxDeltaNorm)
	return GateDecision{
		Action:    "commit",
		Reason:    fmt.Sprintf("passed gate: soft_score=%.4f", softScore),
		SoftScore: softScore,
		ParamNorm: paramNorm,
		DeltaNorm: deltaNorm,
	}
}

// #endregion gate

// #region helpers
// weightNorm is the Frobenius norm of a - b over every tensor of a, or of a
// alone when b is nil. A name missing from b counts as all zeros.
func weightNorm(a, b map[string]*mat.Dense) float64 {
	var sum float64
	for name, m := range a {
		if strings.HasPrefix(name, "target.") {
			continue
		}
		d := m
		if b != nil {
			if old, ok := b[name]; ok {
				var diff mat.Dense
				diff.Sub(m, old)
				d = &diff
			}
		}
		n := mat.Norm(d, 2)
		sum += n * n
	}
	return math.Sqrt(sum)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// computeSoftScore produces a 0-1 composite from loss improvement and delta
// stability. Logged only.
func computeSoftScore(p Proposal, deltaNorm, maxDelta float64) float64 {
	var score float64

	// Loss component: reward improvement over the last commit (weight 0.5)
	switch {
	case p.PrevLoss <= 0:
		score += 0.25
	case p.Losses.Total < p.PrevLoss:
		score += 0.5 * math.Min(1, (p.PrevLoss-p.Losses.Total)/p.PrevLoss*10)
	}

	// Delta stability component: smaller moves are more stable (weight 0.5)
	if maxDelta > 0 && deltaNorm < maxDelta {
		score += 0.5 * (1 - deltaNorm/maxDelta)
	}
	return score
}

// #endregion helpers
