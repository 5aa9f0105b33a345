package agent

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/dataset"
	"github.com/danielpatrickdp/trust-aht/internal/generator"
	"github.com/danielpatrickdp/trust-aht/internal/nn"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
	"github.com/danielpatrickdp/trust-aht/internal/vectorize"
)

func smallConfig(v Variant) Config {
	cfg := DefaultConfig()
	cfg.Variant = v
	cfg.LayerSize = 16
	cfg.LSTMDim = 8
	cfg.EncodingDim = 4
	return cfg
}

func testData(t *testing.T, n, h int) *dataset.Dataset {
	t.Helper()
	seq, err := generator.NewSampler(tables.Default(), 17).Generate(n, h)
	require.NoError(t, err)
	ts, err := vectorize.Vectorize(generator.StripLatents(seq))
	require.NoError(t, err)
	d, err := dataset.Build(ts)
	require.NoError(t, err)
	return d
}

func newAgent(t *testing.T, cfg Config) *Agent {
	t.Helper()
	a, err := New(cfg, DefaultDims())
	require.NoError(t, err)
	return a
}

func TestSingleTrainStep(t *testing.T) {
	for _, v := range []Variant{VariantIndependent, VariantJoint} {
		t.Run(string(v), func(t *testing.T) {
			a := newAgent(t, smallConfig(v))
			before := nn.Weights(a.Trainable())
			b := testData(t, 32, 5).All()

			loss, err := a.Train(b)
			require.NoError(t, err)
			for _, x := range []float64{loss.Imitation, loss.TD, loss.Conservative, loss.Total} {
				require.False(t, math.IsNaN(x) || math.IsInf(x, 0))
			}
			require.InDelta(t, loss.Imitation+loss.TD+loss.Conservative, loss.Total, 1e-12)
			require.Equal(t, 1, loss.Update)
			require.Equal(t, 1, a.Updates())

			after := nn.Weights(a.Trainable())
			for name, w := range before {
				require.False(t, mat.Equal(w, after[name]), "%s unchanged", name)
			}
		})
	}
}

func TestTargetSyncBoundary(t *testing.T) {
	cfg := smallConfig(VariantJoint)
	require.Equal(t, 100, cfg.TargetSyncPeriod)
	a := newAgent(t, cfg)
	require.True(t, nn.Equal(a.Target, a.Value))

	d := testData(t, 16, 3)
	rng := rand.New(rand.NewPCG(5, 5))
	for i := 1; i <= 101; i++ {
		b, err := d.SampleBatch(rng, 8)
		require.NoError(t, err)
		loss, err := a.Train(b)
		require.NoError(t, err)
		switch i {
		case 1, 99:
			require.False(t, loss.Synced)
			require.False(t, nn.Equal(a.Target, a.Value), "update %d", i)
		case 100:
			require.True(t, loss.Synced)
			require.True(t, nn.Equal(a.Target, a.Value))
		case 101:
			require.False(t, loss.Synced)
			require.False(t, nn.Equal(a.Target, a.Value))
		}
	}
}

func TestJointMarginalIsWeightedSum(t *testing.T) {
	a := newAgent(t, smallConfig(VariantJoint))
	d := testData(t, 10, 2)
	_, err := a.Train(d.All())
	require.NoError(t, err)

	obs := d.All().Obs[0]
	ev, _, err := a.Evaluate(obs, nn.State{})
	require.NoError(t, err)

	rep, _, _ := a.Encoder.Step(obs, a.Encoder.ZeroState(10))
	var in mat.Dense
	in.Augment(obs, rep)
	q, _ := a.Value.Forward(&in)
	logits, _ := a.Decoder.Forward(rep)
	w := nn.Softmax(logits)

	dims := a.Dims()
	for r := 0; r < 10; r++ {
		for ai := 0; ai < dims.AI; ai++ {
			var want float64
			for h := 0; h < dims.Human; h++ {
				want += q.At(r, ai*dims.Human+h) * w.At(r, h)
			}
			require.InDelta(t, want, ev.Values.At(r, ai), 1e-12)
		}
	}
	require.True(t, mat.EqualApprox(q, ev.Raw, 1e-12))
}

func TestIndependentValuesAreRaw(t *testing.T) {
	a := newAgent(t, smallConfig(VariantIndependent))
	obs := testData(t, 4, 1).All().Obs[0]
	ev, _, err := a.Evaluate(obs, nn.State{})
	require.NoError(t, err)
	_, c := ev.Values.Dims()
	require.Equal(t, a.Dims().AI, c)
	require.True(t, mat.Equal(ev.Raw, ev.Values))
}

func TestActKeepsSeparateEvalState(t *testing.T) {
	a := newAgent(t, smallConfig(VariantJoint))
	d := testData(t, 6, 3)
	obs := d.All().Obs[0]

	first, err := a.Act(obs)
	require.NoError(t, err)
	require.Len(t, first, 6)
	held := a.EvalState()
	require.Equal(t, 6, held.Rows())

	_, err = a.Train(d.All())
	require.NoError(t, err)
	require.Same(t, held.H, a.EvalState().H)
	require.NotSame(t, held.H, a.TrainState().H)

	_, err = a.Act(obs)
	require.NoError(t, err)
	require.NotSame(t, held.H, a.EvalState().H)

	a.ResetEval()
	require.Zero(t, a.EvalState().Rows())
	ev1, s1, err := a.Evaluate(obs, nn.State{})
	require.NoError(t, err)
	ev2, _, err := a.Evaluate(obs, s1)
	require.NoError(t, err)
	assert.False(t, mat.Equal(ev1.Rep, ev2.Rep), "recurrent state should change the summary")
}

func TestNonFiniteLossSkipsUpdate(t *testing.T) {
	a := newAgent(t, smallConfig(VariantIndependent))
	a.Value.Layers[2].Bias.W.Set(0, 0, math.NaN())
	enc := nn.Weights(a.Encoder)

	loss, err := a.Train(testData(t, 8, 3).All())
	require.ErrorIs(t, err, ErrNonFiniteLoss)
	require.True(t, math.IsNaN(loss.Total))
	require.Zero(t, a.Updates())
	after := nn.Weights(a.Encoder)
	for name, w := range enc {
		require.True(t, mat.Equal(w, after[name]), "%s changed", name)
	}
}

func TestShapeErrors(t *testing.T) {
	a := newAgent(t, smallConfig(VariantJoint))
	_, err := a.Act(mat.NewDense(2, 5, nil))
	require.ErrorIs(t, err, ErrShape)

	b := testData(t, 4, 2).All()
	b.Human[1] = mat.NewDense(4, 3, nil)
	_, err = a.Train(b)
	require.ErrorIs(t, err, ErrShape)

	_, err = a.Train(nil)
	require.ErrorIs(t, err, ErrShape)
}

func TestImitationLossFalls(t *testing.T) {
	cfg := smallConfig(VariantJoint)
	cfg.LearningRate = 1e-2
	a := newAgent(t, cfg)
	b := testData(t, 64, 4).All()

	first, err := a.Train(b)
	require.NoError(t, err)
	var last Losses
	for i := 0; i < 150; i++ {
		last, err = a.Train(b)
		require.NoError(t, err)
	}
	require.Less(t, last.Imitation, first.Imitation)
}

func TestRestore(t *testing.T) {
	a := newAgent(t, smallConfig(VariantIndependent))
	_, err := a.Train(testData(t, 8, 2).All())
	require.NoError(t, err)

	cfg := smallConfig(VariantIndependent)
	cfg.Seed = 99
	b := newAgent(t, cfg)
	require.False(t, nn.Equal(a.All(), b.All()))
	require.NoError(t, b.Restore(a.Weights(), a.Updates()))
	require.True(t, nn.Equal(a.All(), b.All()))
	require.Equal(t, 1, b.Updates())

	joint := newAgent(t, smallConfig(VariantJoint))
	require.Error(t, joint.Restore(a.Weights(), 1))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	bad := DefaultConfig()
	bad.Variant = "v3"
	require.ErrorIs(t, bad.Validate(), ErrConfig)
	bad = DefaultConfig()
	bad.TargetSyncPeriod = 0
	require.ErrorIs(t, bad.Validate(), ErrConfig)
	_, err := New(DefaultConfig(), Dims{})
	require.ErrorIs(t, err, ErrConfig)
}

func TestLossMatchesTrainWithoutUpdating(t *testing.T) {
	a := newAgent(t, smallConfig(VariantJoint))
	b := testData(t, 12, 4).All()
	before := nn.Weights(a.All())

	peek, err := a.Loss(b)
	require.NoError(t, err)
	require.Zero(t, a.Updates())
	require.Zero(t, a.TrainState().Rows())
	after := nn.Weights(a.All())
	for name, w := range before {
		require.True(t, mat.Equal(w, after[name]), "%s changed", name)
	}

	trained, err := a.Train(b)
	require.NoError(t, err)
	require.InDelta(t, peek.Total, trained.Total, 1e-12)
}
