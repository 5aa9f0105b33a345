package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// #region lstm
// LSTM is a single recurrent layer with gate order input, forget, cell,
// output, matching the usual (4*hidden, in) weight layout.
type LSTM struct {
	Hidden   int
	WeightIH *Param
	WeightHH *Param
	BiasIH   *Param
	BiasHH   *Param
}

// LSTMCache holds one step's activations for the backward pass.
type LSTMCache struct {
	x, hPrev, cPrev *mat.Dense
	i, f, g, o      *mat.Dense
	tanhC           *mat.Dense
}

// NewLSTM creates a layer initialised from U(-1/sqrt(hidden), 1/sqrt(hidden)).
func NewLSTM(name string, in, hidden int, rng *rand.Rand) *LSTM {
	l := &LSTM{
		Hidden:   hidden,
		WeightIH: newParam(name+".weight_ih", 4*hidden, in),
		WeightHH: newParam(name+".weight_hh", 4*hidden, hidden),
		BiasIH:   newParam(name+".bias_ih", 1, 4*hidden),
		BiasHH:   newParam(name+".bias_hh", 1, 4*hidden),
	}
	for _, p := range l.Params() {
		uniform(p.W, hidden, rng)
	}
	return l
}

func (l *LSTM) Params() []*Param {
	return []*Param{l.WeightIH, l.WeightHH, l.BiasIH, l.BiasHH}
}

// ZeroState returns zeroed hidden and cell matrices for a batch of b.
func (l *LSTM) ZeroState(b int) State {
	return State{H: mat.NewDense(b, l.Hidden, nil), C: mat.NewDense(b, l.Hidden, nil)}
}

// Step advances the recurrence by one input row per sequence.
func (l *LSTM) Step(x *mat.Dense, s State) (State, *LSTMCache) {
	var gates, rec mat.Dense
	gates.Mul(x, l.WeightIH.W.T())
	rec.Mul(s.H, l.WeightHH.W.T())
	gates.Add(&gates, &rec)
	addRow(&gates, l.BiasIH.W)
	addRow(&gates, l.BiasHH.W)

	b, _ := x.Dims()
	hd := l.Hidden
	c := &LSTMCache{
		x: x, hPrev: s.H, cPrev: s.C,
		i:     mat.NewDense(b, hd, nil),
		f:     mat.NewDense(b, hd, nil),
		g:     mat.NewDense(b, hd, nil),
		o:     mat.NewDense(b, hd, nil),
		tanhC: mat.NewDense(b, hd, nil),
	}
	next := State{H: mat.NewDense(b, hd, nil), C: mat.NewDense(b, hd, nil)}
	for r := 0; r < b; r++ {
		row := gates.RawRowView(r)
		for k := 0; k < hd; k++ {
			i := sigmoid(row[k])
			f := sigmoid(row[hd+k])
			g := math.Tanh(row[2*hd+k])
			o := sigmoid(row[3*hd+k])
			cell := f*s.C.At(r, k) + i*g
			tc := math.Tanh(cell)
			c.i.Set(r, k, i)
			c.f.Set(r, k, f)
			c.g.Set(r, k, g)
			c.o.Set(r, k, o)
			c.tanhC.Set(r, k, tc)
			next.C.Set(r, k, cell)
			next.H.Set(r, k, o*tc)
		}
	}
	return next, c
}

// StepBackward takes the gradients flowing into the step's new hidden and
// cell state, accumulates parameter gradients, and returns the gradients
// for the step input and the previous state.
func (l *LSTM) StepBackward(c *LSTMCache, dh, dc *mat.Dense) (dx, dhPrev, dcPrev *mat.Dense) {
	b, _ := c.x.Dims()
	hd := l.Hidden
	dgates := mat.NewDense(b, 4*hd, nil)
	dcPrev = mat.NewDense(b, hd, nil)
	for r := 0; r < b; r++ {
		row := dgates.RawRowView(r)
		for k := 0; k < hd; k++ {
			i, f, g, o, tc := c.i.At(r, k), c.f.At(r, k), c.g.At(r, k), c.o.At(r, k), c.tanhC.At(r, k)
			dH := dh.At(r, k)
			dC := dc.At(r, k) + dH*o*(1-tc*tc)
			row[k] = dC * g * i * (1 - i)
			row[hd+k] = dC * c.cPrev.At(r, k) * f * (1 - f)
			row[2*hd+k] = dC * i * (1 - g*g)
			row[3*hd+k] = dH * tc * o * (1 - o)
			dcPrev.Set(r, k, dC*f)
		}
	}

	var gih, ghh mat.Dense
	gih.Mul(dgates.T(), c.x)
	ghh.Mul(dgates.T(), c.hPrev)
	l.WeightIH.G.Add(l.WeightIH.G, &gih)
	l.WeightHH.G.Add(l.WeightHH.G, &ghh)
	addColSums(l.BiasIH.G, dgates)
	addColSums(l.BiasHH.G, dgates)

	var x, h mat.Dense
	x.Mul(dgates, l.WeightIH.W)
	h.Mul(dgates, l.WeightHH.W)
	return &x, &h, dcPrev
}

// #endregion lstm

// #region encoder
// Encoder is an LSTM followed by a linear projection of its hidden state
// to the latent summary.
type Encoder struct {
	LSTM *LSTM
	Proj *Linear
}

// EncoderCache holds one encoder step's activations.
type EncoderCache struct {
	lstm *LSTMCache
	h    *mat.Dense
}

// NewEncoder builds an encoder with input width in, recurrent width hidden
// and latent width out.
func NewEncoder(name string, in, hidden, out int, rng *rand.Rand) *Encoder {
	return &Encoder{
		LSTM: NewLSTM(name+".lstm", in, hidden, rng),
		Proj: NewLinear(name+".proj", hidden, out, rng),
	}
}

func (e *Encoder) Params() []*Param {
	return append(e.LSTM.Params(), e.Proj.Params()...)
}

// ZeroState returns the initial recurrent state for a batch of b.
func (e *Encoder) ZeroState(b int) State { return e.LSTM.ZeroState(b) }

// Step encodes one observation row per sequence and returns the latent
// summary and the next recurrent state.
func (e *Encoder) Step(x *mat.Dense, s State) (*mat.Dense, State, *EncoderCache) {
	next, lc := e.LSTM.Step(x, s)
	rep := e.Proj.Forward(next.H)
	return rep, next, &EncoderCache{lstm: lc, h: next.H}
}

// StepBackward propagates the latent gradient drep plus the recurrent
// gradients (dh, dc) arriving from the following step.
func (e *Encoder) StepBackward(c *EncoderCache, drep, dh, dc *mat.Dense) (dx, dhPrev, dcPrev *mat.Dense) {
	dH := e.Proj.Backward(c.h, drep)
	if dh != nil {
		dH.Add(dH, dh)
	}
	if dc == nil {
		r, k := c.h.Dims()
		dc = mat.NewDense(r, k, nil)
	}
	return e.LSTM.StepBackward(c.lstm, dH, dc)
}

// #endregion encoder
