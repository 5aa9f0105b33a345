// Package eval scores a trained agent on a held-out dataset.
package eval

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
	"github.com/danielpatrickdp/trust-aht/internal/dataset"
	"github.com/danielpatrickdp/trust-aht/internal/nn"
)

// #region eval-harness
// EvalHarness runs validation passes over whole datasets.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run unrolls the agent over every trajectory of ds from a zero recurrent
// state. The agent's own recurrent states and weights are left untouched.
func (h *EvalHarness) Run(a *agent.Agent, ds *dataset.Dataset) (EvalResult, error) {
	b := ds.All()
	if b == nil {
		return EvalResult{}, fmt.Errorf("eval batch: %w", dataset.ErrBatchSize)
	}
	losses, err := a.Loss(b)
	if err != nil && !errors.Is(err, agent.ErrNonFiniteLoss) {
		return EvalResult{}, fmt.Errorf("eval loss: %w", err)
	}

	var (
		total, imitated, agreed int
		maxAbs                  float64
		finite                  = true
		s                       nn.State
	)
	for t := range b.Obs {
		ev, next, err := a.Evaluate(b.Obs[t], s)
		if err != nil {
			return EvalResult{}, fmt.Errorf("eval step %d: %w", t, err)
		}
		s = next

		predicted := nn.ArgmaxRows(ev.HumanProbs)
		greedy := nn.ArgmaxRows(ev.Values)
		human := nn.ArgmaxRows(b.Human[t])
		advice := nn.ArgmaxRows(b.AI[t])
		for r := range predicted {
			total++
			if predicted[r] == human[r] {
				imitated++
			}
			if greedy[r] == advice[r] {
				agreed++
			}
		}

		vals := ev.Values.RawMatrix().Data
		for _, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				finite = false
			}
		}
		if m := maxAbsOf(vals); m > maxAbs {
			maxAbs = m
		}
	}

	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Decoder accuracy against the recorded human decision
	acc := float64(imitated) / float64(total)
	accPass := acc >= h.config.MinImitationAccuracy
	metrics = append(metrics, EvalMetric{Name: "imitation_accuracy", Value: acc, Pass: accPass})
	if !accPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("imitation accuracy %.4f below %.4f", acc, h.config.MinImitationAccuracy))
	}

	// 2. How often the greedy action matches the logged advice (informational)
	metrics = append(metrics, EvalMetric{Name: "advice_agreement", Value: float64(agreed) / float64(total), Pass: true})

	// 3. Values finite and bounded
	metrics = append(metrics, EvalMetric{Name: "values_finite", Value: boolValue(finite), Pass: finite})
	if !finite {
		passed = false
		failReasons = append(failReasons, "non-finite value predictions")
	}
	boundPass := finite && maxAbs <= h.config.MaxAbsValue
	metrics = append(metrics, EvalMetric{Name: "max_abs_value", Value: maxAbs, Pass: boundPass})
	if finite && !boundPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("max |value| %.4f exceeds %.4f", maxAbs, h.config.MaxAbsValue))
	}

	// 4. Loss terms on the held-out set (informational)
	metrics = append(metrics,
		EvalMetric{Name: "loss_imitation", Value: losses.Imitation, Pass: true},
		EvalMetric{Name: "loss_td", Value: losses.TD, Pass: true},
		EvalMetric{Name: "loss_conservative", Value: losses.Conservative, Pass: true},
		EvalMetric{Name: "loss_total", Value: losses.Total, Pass: true},
	)

	reason := "all checks passed"
	if !passed {
		reason = strings.Join(failReasons, "; ")
	}
	return EvalResult{Passed: passed, Metrics: metrics, Reason: reason}, nil
}

// #endregion eval-harness

func maxAbsOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	abs := make([]float64, len(v))
	for i, x := range v {
		abs[i] = math.Abs(x)
	}
	return floats.Max(abs)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
