package agent

import "gonum.org/v1/gonum/mat"

// valueHead captures what differs between the two value-network variants.
type valueHead interface {
	// width is the value network's output size.
	width() int
	// marginal maps raw outputs to per-AI-action values using predicted
	// human-action probabilities.
	marginal(q, probs *mat.Dense) *mat.Dense
	// marginalBackward maps a gradient on marginal values back onto q with
	// probs held constant.
	marginalBackward(dm, probs *mat.Dense) *mat.Dense
	// column is the raw output trained towards the TD target.
	column(ai, human int) int
}

func newHead(v Variant, d Dims) valueHead {
	if v == VariantIndependent {
		return independentHead{ai: d.AI}
	}
	return jointHead{ai: d.AI, human: d.Human}
}

type independentHead struct{ ai int }

func (h independentHead) width() int                                   { return h.ai }
func (h independentHead) marginal(q, _ *mat.Dense) *mat.Dense          { return q }
func (h independentHead) marginalBackward(dm, _ *mat.Dense) *mat.Dense { return dm }
func (h independentHead) column(ai, _ int) int                         { return ai }

// jointHead lays out raw output column ai*human + h for the pair (ai, h).
type jointHead struct{ ai, human int }

func (h jointHead) width() int { return h.ai * h.human }

func (h jointHead) marginal(q, probs *mat.Dense) *mat.Dense {
	b, _ := q.Dims()
	out := mat.NewDense(b, h.ai, nil)
	for r := 0; r < b; r++ {
		for a := 0; a < h.ai; a++ {
			var v float64
			for k := 0; k < h.human; k++ {
				v += q.At(r, a*h.human+k) * probs.At(r, k)
			}
			out.Set(r, a, v)
		}
	}
	return out
}

func (h jointHead) marginalBackward(dm, probs *mat.Dense) *mat.Dense {
	b, _ := dm.Dims()
	dq := mat.NewDense(b, h.width(), nil)
	for r := 0; r < b; r++ {
		for a := 0; a < h.ai; a++ {
			for k := 0; k < h.human; k++ {
				dq.Set(r, a*h.human+k, dm.At(r, a)*probs.At(r, k))
			}
		}
	}
	return dq
}

func (h jointHead) column(ai, human int) int { return ai*h.human + human }
