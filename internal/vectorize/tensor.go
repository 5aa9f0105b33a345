package vectorize

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor3 is a dense row-major (N, H, D) array.
type Tensor3 struct {
	n, h, d int
	data    []float64
}

// NewTensor3 allocates a zeroed tensor.
func NewTensor3(n, h, d int) *Tensor3 {
	if n <= 0 || h <= 0 || d <= 0 {
		panic(fmt.Sprintf("vectorize: bad tensor shape (%d, %d, %d)", n, h, d))
	}
	return &Tensor3{n: n, h: h, d: d, data: make([]float64, n*h*d)}
}

// Shape returns (N, H, D).
func (t *Tensor3) Shape() [3]int { return [3]int{t.n, t.h, t.d} }

func (t *Tensor3) At(i, j, k int) float64 { return t.data[t.index(i, j, k)] }

func (t *Tensor3) Set(i, j, k int, v float64) { t.data[t.index(i, j, k)] = v }

// Row returns the feature vector at (i, j). The slice aliases the tensor.
func (t *Tensor3) Row(i, j int) []float64 {
	off := t.index(i, j, 0)
	return t.data[off : off+t.d : off+t.d]
}

// Step copies the (N, D) slice at step j into a matrix.
func (t *Tensor3) Step(j int) *mat.Dense {
	m := mat.NewDense(t.n, t.d, nil)
	for i := 0; i < t.n; i++ {
		m.SetRow(i, t.Row(i, j))
	}
	return m
}

// Fill sets every element to v.
func (t *Tensor3) Fill(v float64) {
	for i := range t.data {
		t.data[i] = v
	}
}

func (t *Tensor3) index(i, j, k int) int {
	if i < 0 || i >= t.n || j < 0 || j >= t.h || k < 0 || k >= t.d {
		panic(fmt.Sprintf("vectorize: index (%d, %d, %d) out of range (%d, %d, %d)", i, j, k, t.n, t.h, t.d))
	}
	return (i*t.h+j)*t.d + k
}
