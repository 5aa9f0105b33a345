package nn

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrWeights is returned when a weight map does not match a module.
var ErrWeights = errors.New("weight map mismatch")

// #region param
// Param is a trainable matrix and its accumulated gradient.
type Param struct {
	Name string
	W    *mat.Dense
	G    *mat.Dense
}

func newParam(name string, r, c int) *Param {
	return &Param{Name: name, W: mat.NewDense(r, c, nil), G: mat.NewDense(r, c, nil)}
}

// Module is anything that owns parameters.
type Module interface {
	Params() []*Param
}

// #endregion param

// #region state
// State is the recurrent (hidden, cell) pair of an LSTM, one row per
// sequence in the batch.
type State struct {
	H *mat.Dense
	C *mat.Dense
}

// Rows returns the batch size the state was built for, or 0 for the zero State.
func (s State) Rows() int {
	if s.H == nil {
		return 0
	}
	r, _ := s.H.Dims()
	return r
}

// #endregion state
