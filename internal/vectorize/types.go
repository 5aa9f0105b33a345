package vectorize

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape is returned when inputs disagree on cohort size, horizon or width.
	ErrShape = errors.New("tensor shape mismatch")
	// ErrNotOneHot is returned when decoding a row that is not one-hot.
	ErrNotOneHot = errors.New("row is not one-hot")
)

// #region tensors
// Tensors holds the numeric form of an observed cohort. Every Tensor3 is
// indexed (individual, step, feature).
type Tensors struct {
	Case     *Tensor3 // (N, H, 15)
	Advice   *Tensor3 // (N, H, 3)
	Decision *Tensor3 // (N, H, 2)
	Outcome  *Tensor3 // (N, H, 2)
	Cont     *Tensor3 // (N, H, 2)
	Done     *mat.Dense
}

// #endregion tensors

// Dims returns the cohort size and horizon.
func (t *Tensors) Dims() (n, h int) {
	return t.Done.Dims()
}
