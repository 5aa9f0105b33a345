package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam optimizer with bias correction.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	params []*Param
	m, v   []*mat.Dense
	steps  int
}

// NewAdam creates an optimizer over params with the usual
// β1=0.9, β2=0.999, ε=1e-8.
func NewAdam(params []*Param, lr float64) *Adam {
	a := &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, params: params}
	for _, p := range params {
		r, c := p.W.Dims()
		a.m = append(a.m, mat.NewDense(r, c, nil))
		a.v = append(a.v, mat.NewDense(r, c, nil))
	}
	return a
}

// Steps returns how many updates have been applied.
func (a *Adam) Steps() int { return a.steps }

// ZeroGrad clears the gradients of every tracked parameter.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.G.Zero()
	}
}

// Step applies one update from the accumulated gradients.
func (a *Adam) Step() {
	a.steps++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.steps))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.steps))
	for idx, p := range a.params {
		w, g := p.W.RawMatrix(), p.G.RawMatrix()
		m, v := a.m[idx].RawMatrix(), a.v[idx].RawMatrix()
		for r := 0; r < w.Rows; r++ {
			for c := 0; c < w.Cols; c++ {
				gi := g.Data[r*g.Stride+c]
				mi := &m.Data[r*m.Stride+c]
				vi := &v.Data[r*v.Stride+c]
				*mi = a.Beta1*(*mi) + (1-a.Beta1)*gi
				*vi = a.Beta2*(*vi) + (1-a.Beta2)*gi*gi
				mhat := *mi / bc1
				vhat := *vi / bc2
				w.Data[r*w.Stride+c] -= a.LR * mhat / (math.Sqrt(vhat) + a.Eps)
			}
		}
	}
}
