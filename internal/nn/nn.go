// Package nn provides the small set of differentiable building blocks the
// agent needs: linear layers, ReLU MLPs, an LSTM encoder, row softmax and
// Adam. Backward passes are written by hand and accumulate into Param.G.
package nn

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// #region weights
// Weights returns a deep copy of every parameter keyed by name.
func Weights(m Module) map[string]*mat.Dense {
	out := make(map[string]*mat.Dense)
	for _, p := range m.Params() {
		out[p.Name] = mat.DenseCopyOf(p.W)
	}
	return out
}

// SetWeights overwrites every parameter from w. Every parameter must be
// present with matching dimensions; extra keys are rejected.
func SetWeights(m Module, w map[string]*mat.Dense) error {
	params := m.Params()
	if len(w) != len(params) {
		return fmt.Errorf("set weights: %d entries for %d params: %w", len(w), len(params), ErrWeights)
	}
	for _, p := range params {
		src, ok := w[p.Name]
		if !ok {
			return fmt.Errorf("set weights: missing %s: %w", p.Name, ErrWeights)
		}
		pr, pc := p.W.Dims()
		sr, sc := src.Dims()
		if pr != sr || pc != sc {
			return fmt.Errorf("set weights: %s is %dx%d, got %dx%d: %w", p.Name, pr, pc, sr, sc, ErrWeights)
		}
	}
	for _, p := range params {
		p.W.Copy(w[p.Name])
	}
	return nil
}

// CopyWeights copies src's parameters into dst position by position. Both
// modules must have the same architecture.
func CopyWeights(dst, src Module) error {
	dp, sp := dst.Params(), src.Params()
	if len(dp) != len(sp) {
		return fmt.Errorf("copy weights: %d vs %d params: %w", len(dp), len(sp), ErrWeights)
	}
	for i := range dp {
		dr, dc := dp[i].W.Dims()
		sr, sc := sp[i].W.Dims()
		if dr != sr || dc != sc {
			return fmt.Errorf("copy weights: %s vs %s: %w", dp[i].Name, sp[i].Name, ErrWeights)
		}
	}
	for i := range dp {
		dp[i].W.Copy(sp[i].W)
	}
	return nil
}

// Equal reports whether two modules hold identical parameter values.
func Equal(a, b Module) bool {
	ap, bp := a.Params(), b.Params()
	if len(ap) != len(bp) {
		return false
	}
	for i := range ap {
		if !mat.Equal(ap[i].W, bp[i].W) {
			return false
		}
	}
	return true
}

// Norm is the Frobenius norm over all parameters.
func Norm(m Module) float64 {
	var sum float64
	for _, p := range m.Params() {
		n := mat.Norm(p.W, 2)
		sum += n * n
	}
	return math.Sqrt(sum)
}

// ZeroGrad clears every accumulated gradient.
func ZeroGrad(m Module) {
	for _, p := range m.Params() {
		p.G.Zero()
	}
}

// Names returns the sorted parameter names of a module.
func Names(m Module) []string {
	var out []string
	for _, p := range m.Params() {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}

// Group combines several modules into one parameter list.
type Group []Module

func (g Group) Params() []*Param {
	var out []*Param
	for _, m := range g {
		out = append(out, m.Params()...)
	}
	return out
}

// #endregion weights

// #region init
// uniform fills m from U(-bound, bound), the PyTorch default for linear and
// recurrent layers with bound 1/sqrt(fan).
func uniform(m *mat.Dense, fan int, rng *rand.Rand) {
	bound := 1 / math.Sqrt(float64(fan))
	u := distuv.Uniform{Min: -bound, Max: bound, Src: rng}
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, u.Rand())
		}
	}
}

// #endregion init

// #region activations
// ReLU returns max(x, 0) elementwise.
func ReLU(x *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, x)
	return &out
}

// reluBackward masks dy where the activation output was not positive.
func reluBackward(out, dy *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.Apply(func(i, j int, v float64) float64 {
		if out.At(i, j) > 0 {
			return v
		}
		return 0
	}, dy)
	return &dx
}

// Softmax applies a numerically stable softmax to every row.
func Softmax(x *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(x)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		mx := floats.Max(row)
		for k := range row {
			row[k] = math.Exp(row[k] - mx)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return out
}

// LogSoftmax applies a numerically stable log-softmax to every row.
func LogSoftmax(x *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(x)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		lse := floats.LogSumExp(row)
		floats.AddConst(-lse, row)
	}
	return out
}

// ArgmaxRows returns the index of the largest entry in every row. Ties go to
// the lowest index.
func ArgmaxRows(x mat.Matrix) []int {
	r, c := x.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		best := x.At(i, 0)
		for j := 1; j < c; j++ {
			if v := x.At(i, j); v > best {
				best, out[i] = v, j
			}
		}
	}
	return out
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// #endregion activations

// #region linear
// Linear computes y = x Wᵀ + b with W stored (out, in).
type Linear struct {
	Weight *Param
	Bias   *Param
}

// NewLinear creates a layer with PyTorch-style uniform initialization.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		Weight: newParam(name+".weight", out, in),
		Bias:   newParam(name+".bias", 1, out),
	}
	uniform(l.Weight.W, in, rng)
	uniform(l.Bias.W, in, rng)
	return l
}

func (l *Linear) Params() []*Param { return []*Param{l.Weight, l.Bias} }

// Forward maps a (B, in) batch to (B, out).
func (l *Linear) Forward(x mat.Matrix) *mat.Dense {
	var y mat.Dense
	y.Mul(x, l.Weight.W.T())
	addRow(&y, l.Bias.W)
	return &y
}

// Backward accumulates weight and bias gradients for input x and output
// gradient dy, and returns the input gradient.
func (l *Linear) Backward(x mat.Matrix, dy *mat.Dense) *mat.Dense {
	var gw mat.Dense
	gw.Mul(dy.T(), x)
	l.Weight.G.Add(l.Weight.G, &gw)
	addColSums(l.Bias.G, dy)

	var dx mat.Dense
	dx.Mul(dy, l.Weight.W)
	return &dx
}

func addRow(m *mat.Dense, b *mat.Dense) {
	r, _ := m.Dims()
	bias := b.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), bias)
	}
}

func addColSums(g *mat.Dense, dy *mat.Dense) {
	r, _ := dy.Dims()
	dst := g.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(dst, dy.RawRowView(i))
	}
}

// #endregion linear

// #region mlp
// MLP is a stack of linear layers with ReLU between them and no activation
// on the output.
type MLP struct {
	Layers []*Linear
}

// MLPCache holds the input of every layer from one forward pass.
type MLPCache struct {
	inputs []*mat.Dense
}

// NewMLP builds layers for sizes[0] -> sizes[1] -> ... -> sizes[n-1].
func NewMLP(name string, sizes []int, rng *rand.Rand) *MLP {
	if len(sizes) < 2 {
		panic("nn: MLP needs at least input and output sizes")
	}
	m := &MLP{}
	for k := 0; k+1 < len(sizes); k++ {
		m.Layers = append(m.Layers, NewLinear(fmt.Sprintf("%s.%d", name, k), sizes[k], sizes[k+1], rng))
	}
	return m
}

func (m *MLP) Params() []*Param {
	var out []*Param
	for _, l := range m.Layers {
		out = append(out, l.Params()...)
	}
	return out
}

// Forward runs the stack and returns its output and cache.
func (m *MLP) Forward(x *mat.Dense) (*mat.Dense, *MLPCache) {
	cache := &MLPCache{inputs: make([]*mat.Dense, len(m.Layers))}
	h := x
	for k, l := range m.Layers {
		cache.inputs[k] = h
		h = l.Forward(h)
		if k+1 < len(m.Layers) {
			h = ReLU(h)
		}
	}
	return h, cache
}

// Backward accumulates gradients and returns the input gradient.
func (m *MLP) Backward(cache *MLPCache, dy *mat.Dense) *mat.Dense {
	grad := dy
	for k := len(m.Layers) - 1; k >= 0; k-- {
		grad = m.Layers[k].Backward(cache.inputs[k], grad)
		if k > 0 {
			grad = reluBackward(cache.inputs[k], grad)
		}
	}
	return grad
}

// #endregion mlp
