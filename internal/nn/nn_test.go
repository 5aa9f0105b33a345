package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randDense(rng *rand.Rand, r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, rng.NormFloat64())
		}
	}
	return m
}

// weighted is Σ out ⊙ w, whose gradient with respect to out is w.
func weighted(out, w *mat.Dense) float64 {
	var e mat.Dense
	e.MulElem(out, w)
	return mat.Sum(&e)
}

// checkGrad compares an analytic gradient against central differences of
// loss with respect to every entry of x.
func checkGrad(t *testing.T, name string, x, analytic *mat.Dense, loss func() float64) {
	t.Helper()
	const eps = 1e-6
	r, c := x.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			orig := x.At(i, j)
			x.Set(i, j, orig+eps)
			up := loss()
			x.Set(i, j, orig-eps)
			down := loss()
			x.Set(i, j, orig)
			num := (up - down) / (2 * eps)
			got := analytic.At(i, j)
			tol := 1e-5 * math.Max(1, math.Abs(num))
			if math.Abs(num-got) > tol {
				t.Fatalf("%s[%d,%d]: analytic %g, numeric %g", name, i, j, got, num)
			}
		}
	}
}

func TestLinearGradients(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	l := NewLinear("lin", 4, 3, rng)
	x := randDense(rng, 5, 4)
	w := randDense(rng, 5, 3)
	loss := func() float64 { return weighted(l.Forward(x), w) }

	ZeroGrad(l)
	dx := l.Backward(x, w)
	checkGrad(t, "weight", l.Weight.W, l.Weight.G, loss)
	checkGrad(t, "bias", l.Bias.W, l.Bias.G, loss)
	checkGrad(t, "x", x, dx, loss)
}

func TestMLPGradients(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	m := NewMLP("mlp", []int{6, 8, 8, 3}, rng)
	x := randDense(rng, 4, 6)
	w := randDense(rng, 4, 3)
	loss := func() float64 {
		out, _ := m.Forward(x)
		return weighted(out, w)
	}

	ZeroGrad(m)
	_, cache := m.Forward(x)
	dx := m.Backward(cache, w)
	for _, p := range m.Params() {
		checkGrad(t, p.Name, p.W, p.G, loss)
	}
	checkGrad(t, "x", x, dx, loss)
}

func TestEncoderBPTTGradients(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	e := NewEncoder("enc", 5, 6, 4, rng)
	const steps, batch = 3, 2
	xs := make([]*mat.Dense, steps)
	ws := make([]*mat.Dense, steps)
	for k := range xs {
		xs[k] = randDense(rng, batch, 5)
		ws[k] = randDense(rng, batch, 4)
	}
	loss := func() float64 {
		s := e.ZeroState(batch)
		var total float64
		for k := range xs {
			var rep *mat.Dense
			rep, s, _ = e.Step(xs[k], s)
			total += weighted(rep, ws[k])
		}
		return total
	}

	ZeroGrad(e)
	s := e.ZeroState(batch)
	caches := make([]*EncoderCache, steps)
	for k := range xs {
		_, s, caches[k] = e.Step(xs[k], s)
	}
	dxs := make([]*mat.Dense, steps)
	var dh, dc *mat.Dense
	for k := steps - 1; k >= 0; k-- {
		dxs[k], dh, dc = e.StepBackward(caches[k], ws[k], dh, dc)
	}
	for _, p := range e.Params() {
		checkGrad(t, p.Name, p.W, p.G, loss)
	}
	for k := range xs {
		checkGrad(t, "x", xs[k], dxs[k], loss)
	}
}

func TestSoftmaxRows(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 1000, 1000, 1000})
	p := Softmax(x)
	lp := LogSoftmax(x)
	for i := 0; i < 2; i++ {
		require.InDelta(t, 1.0, mat.Sum(p.RowView(i)), 1e-12)
		for j := 0; j < 3; j++ {
			require.InDelta(t, math.Log(p.At(i, j)), lp.At(i, j), 1e-12)
		}
	}
	require.InDelta(t, 1.0/3, p.At(1, 0), 1e-12)
	require.Equal(t, []int{2, 0}, ArgmaxRows(x))
}

func TestAdamMovesAgainstGradient(t *testing.T) {
	p := newParam("p", 1, 2)
	p.W.Set(0, 0, 1)
	p.W.Set(0, 1, -1)
	opt := NewAdam([]*Param{p}, 0.01)
	p.G.Set(0, 0, 4)
	p.G.Set(0, 1, -0.5)
	opt.Step()
	// the first bias-corrected step has magnitude lr regardless of scale
	require.InDelta(t, 0.99, p.W.At(0, 0), 1e-6)
	require.InDelta(t, -0.99, p.W.At(0, 1), 1e-6)
	require.Equal(t, 1, opt.Steps())

	opt.ZeroGrad()
	require.Zero(t, p.G.At(0, 0))
}

func TestWeightsRoundTrip(t *testing.T) {
	a := NewMLP("v", []int{3, 4, 2}, rand.New(rand.NewPCG(1, 0)))
	b := NewMLP("v", []int{3, 4, 2}, rand.New(rand.NewPCG(2, 0)))
	require.False(t, Equal(a, b))

	w := Weights(a)
	require.Len(t, w, 4)
	require.NoError(t, SetWeights(b, w))
	require.True(t, Equal(a, b))

	// the map is a copy
	w["v.0.weight"].Set(0, 0, 99)
	require.NotEqual(t, 99.0, a.Layers[0].Weight.W.At(0, 0))

	delete(w, "v.1.bias")
	require.ErrorIs(t, SetWeights(b, w), ErrWeights)

	c := NewMLP("v", []int{3, 5, 2}, rand.New(rand.NewPCG(3, 0)))
	require.ErrorIs(t, CopyWeights(c, a), ErrWeights)
	require.Greater(t, Norm(a), 0.0)
	require.Equal(t, []string{"v.0.bias", "v.0.weight", "v.1.bias", "v.1.weight"}, Names(a))
}

func TestInitBounds(t *testing.T) {
	l := NewLinear("l", 16, 4, rand.New(rand.NewPCG(9, 9)))
	bound := 1 / math.Sqrt(16)
	r, c := l.Weight.W.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			require.LessOrEqual(t, math.Abs(l.Weight.W.At(i, j)), bound)
		}
	}
}
