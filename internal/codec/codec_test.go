package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/encoding/protowire"
)

func sample() map[string]*mat.Dense {
	return map[string]*mat.Dense{
		"value.0.weight": mat.NewDense(2, 3, []float64{1, -2, 3.5, 0, math.SmallestNonzeroFloat64, -1e300}),
		"value.0.bias":   mat.NewDense(1, 2, []float64{0.25, -0.75}),
	}
}

func TestEncodeDecode(t *testing.T) {
	in := sample()
	got, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("expected %d tensors, got %d", len(in), len(got))
	}
	for name, m := range in {
		if !mat.Equal(m, got[name]) {
			t.Fatalf("tensor %s differs after decode", name)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := Encode(sample())
	b := Encode(sample())
	if !bytes.Equal(a, b) {
		t.Fatal("encoding the same weights twice should give identical bytes")
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = append(b, Encode(sample())...)
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tensors, got %d", len(got))
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	b := Encode(sample())
	_, err := Decode(b[:len(b)-3])
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeRejectsShapeMismatch(t *testing.T) {
	var tensor []byte
	tensor = protowire.AppendTag(tensor, fieldName, protowire.BytesType)
	tensor = protowire.AppendString(tensor, "w")
	tensor = protowire.AppendTag(tensor, fieldRows, protowire.VarintType)
	tensor = protowire.AppendVarint(tensor, 2)
	tensor = protowire.AppendTag(tensor, fieldCols, protowire.VarintType)
	tensor = protowire.AppendVarint(tensor, 2)
	tensor = protowire.AppendTag(tensor, fieldData, protowire.BytesType)
	tensor = protowire.AppendBytes(tensor, protowire.AppendFixed64(nil, 1))

	b := protowire.AppendTag(nil, fieldTensor, protowire.BytesType)
	b = protowire.AppendBytes(b, tensor)
	if _, err := Decode(b); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeRejectsDuplicate(t *testing.T) {
	one := map[string]*mat.Dense{"w": mat.NewDense(1, 1, []float64{1})}
	b := append(Encode(one), Encode(one)...)
	if _, err := Decode(b); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
