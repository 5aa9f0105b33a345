package codec

import "errors"

// ErrMalformed is returned when a payload cannot be decoded.
var ErrMalformed = errors.New("malformed weight payload")

// #region field-numbers
// Wire layout:
//
//	WeightSet { repeated Tensor tensor = 1; }
//	Tensor    { string name = 1; uint64 rows = 2; uint64 cols = 3; repeated double data = 4 [packed]; }
const (
	fieldTensor = 1

	fieldName = 1
	fieldRows = 2
	fieldCols = 3
	fieldData = 4
)
// #endregion field-numbers
