// Package codec serializes named weight matrices to the protobuf wire
// format so checkpoints can be stored as opaque blobs.
package codec

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/encoding/protowire"
)

// #region encode
// Encode writes every matrix in name order, so equal maps give equal bytes.
func Encode(weights map[string]*mat.Dense) []byte {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []byte
	for _, name := range names {
		out = protowire.AppendTag(out, fieldTensor, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeTensor(name, weights[name]))
	}
	return out
}

func encodeTensor(name string, m *mat.Dense) []byte {
	r, c := m.Dims()
	var b []byte
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	b = protowire.AppendTag(b, fieldRows, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r))
	b = protowire.AppendTag(b, fieldCols, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c))

	data := make([]byte, 0, r*c*8)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = protowire.AppendFixed64(data, math.Float64bits(m.At(i, j)))
		}
	}
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	return b
}
// #endregion encode

// #region decode
// Decode parses a payload produced by Encode. Unknown fields are skipped.
func Decode(b []byte) (map[string]*mat.Dense, error) {
	out := make(map[string]*mat.Dense)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("weight set tag: %w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldTensor || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("skip field %d: %w: %v", num, ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("tensor bytes: %w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		name, m, err := decodeTensor(msg)
		if err != nil {
			return nil, err
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("duplicate tensor %q: %w", name, ErrMalformed)
		}
		out[name] = m
	}
	return out, nil
}

func decodeTensor(b []byte) (string, *mat.Dense, error) {
	var (
		name       string
		rows, cols uint64
		data       []float64
		haveName   bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, fmt.Errorf("tensor tag: %w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldName && typ == protowire.BytesType:
			name, n = protowire.ConsumeString(b)
			haveName = true
		case num == fieldRows && typ == protowire.VarintType:
			rows, n = protowire.ConsumeVarint(b)
		case num == fieldCols && typ == protowire.VarintType:
			cols, n = protowire.ConsumeVarint(b)
		case num == fieldData && typ == protowire.BytesType:
			var packed []byte
			packed, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				if len(packed)%8 != 0 {
					return "", nil, fmt.Errorf("tensor %q data length %d: %w", name, len(packed), ErrMalformed)
				}
				for len(packed) > 0 {
					v, k := protowire.ConsumeFixed64(packed)
					data = append(data, math.Float64frombits(v))
					packed = packed[k:]
				}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return "", nil, fmt.Errorf("tensor field %d: %w: %v", num, ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if !haveName || name == "" {
		return "", nil, fmt.Errorf("tensor without name: %w", ErrMalformed)
	}
	if rows == 0 || cols == 0 || rows*cols != uint64(len(data)) {
		return "", nil, fmt.Errorf("tensor %q is %dx%d with %d values: %w", name, rows, cols, len(data), ErrMalformed)
	}
	return name, mat.NewDense(int(rows), int(cols), data), nil
}
// #endregion decode
