package eval

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
	"github.com/danielpatrickdp/trust-aht/internal/dataset"
	"github.com/danielpatrickdp/trust-aht/internal/generator"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
	"github.com/danielpatrickdp/trust-aht/internal/vectorize"
)

func makeDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	seq, err := generator.NewSampler(tables.Default(), 5).Generate(12, 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ts, err := vectorize.Vectorize(generator.StripLatents(seq))
	if err != nil {
		t.Fatalf("vectorize: %v", err)
	}
	ds, err := dataset.Build(ts)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return ds
}

func makeAgent(t *testing.T, v agent.Variant) *agent.Agent {
	t.Helper()
	cfg := agent.DefaultConfig()
	cfg.Variant = v
	cfg.LayerSize = 8
	cfg.LSTMDim = 8
	cfg.EncodingDim = 4
	a, err := agent.New(cfg, agent.DefaultDims())
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func TestEvalPassesOnFreshAgent(t *testing.T) {
	for _, v := range []agent.Variant{agent.VariantIndependent, agent.VariantJoint} {
		h := NewEvalHarness(DefaultEvalConfig())
		result, err := h.Run(makeAgent(t, v), makeDataset(t))
		if err != nil {
			t.Fatalf("%s: run: %v", v, err)
		}
		if !result.Passed {
			t.Fatalf("%s: expected pass, got fail: %s", v, result.Reason)
		}
		acc, ok := result.Metric("imitation_accuracy")
		if !ok || acc.Value < 0 || acc.Value > 1 {
			t.Fatalf("%s: bad imitation accuracy %+v", v, acc)
		}
		if _, ok := result.Metric("loss_total"); !ok {
			t.Fatalf("%s: expected loss_total metric", v)
		}
	}
}

func TestEvalDoesNotMutateAgent(t *testing.T) {
	a := makeAgent(t, agent.VariantJoint)
	before := a.Weights()

	if _, err := NewEvalHarness(DefaultEvalConfig()).Run(a, makeDataset(t)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.Updates() != 0 {
		t.Fatalf("expected no updates, got %d", a.Updates())
	}
	if a.EvalState().H != nil || a.TrainState().H != nil {
		t.Fatal("recurrent state slots should stay empty")
	}
	after := a.Weights()
	for name, w := range before {
		if !mat.Equal(w, after[name]) {
			t.Fatalf("weight %s changed", name)
		}
	}
}

func TestEvalFailsOnValueBound(t *testing.T) {
	config := DefaultEvalConfig()
	config.MaxAbsValue = 1e-12
	result, err := NewEvalHarness(config).Run(makeAgent(t, agent.VariantIndependent), makeDataset(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Passed {
		t.Fatal("expected fail on tiny value bound")
	}
	m, _ := result.Metric("max_abs_value")
	if m.Pass {
		t.Fatal("max_abs_value should fail")
	}
}

func TestEvalFailsOnAccuracyFloor(t *testing.T) {
	config := DefaultEvalConfig()
	config.MinImitationAccuracy = 1.01
	result, err := NewEvalHarness(config).Run(makeAgent(t, agent.VariantIndependent), makeDataset(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Passed {
		t.Fatal("expected fail on unreachable accuracy floor")
	}
}

func TestEvalFlagsNonFiniteValues(t *testing.T) {
	a := makeAgent(t, agent.VariantIndependent)
	a.Value.Layers[2].Bias.W.Set(0, 0, math.Inf(1))

	result, err := NewEvalHarness(DefaultEvalConfig()).Run(a, makeDataset(t))
	if err != nil {
		t.Fatalf("non-finite loss should be reported, not returned: %v", err)
	}
	if result.Passed {
		t.Fatal("expected fail on non-finite values")
	}
	m, ok := result.Metric("values_finite")
	if !ok || m.Pass || m.Value != 0 {
		t.Fatalf("values_finite should fail, got %+v", m)
	}
}
