// Package agent implements the offline sequential value-learning agent: an
// LSTM encoder over interaction history, a decoder that imitates the human,
// and a value network trained with a bootstrapped TD loss plus a
// conservative behaviour-matching term.
package agent

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/dataset"
	"github.com/danielpatrickdp/trust-aht/internal/nn"
)

// Agent owns the networks, the optimizer and two recurrent state slots:
// one reset at the start of every training batch and one that persists
// across Act calls until ResetEval.
type Agent struct {
	cfg  Config
	dims Dims
	head valueHead

	Encoder *nn.Encoder
	Decoder *nn.MLP
	Value   *nn.MLP
	Target  *nn.MLP

	opt        *nn.Adam
	updates    int
	trainState nn.State
	evalState  nn.State
}

// #region new
// New builds an agent with freshly initialised networks. The target
// network starts as a copy of the value network.
func New(cfg Config, dims Dims) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dims.Obs <= 0 || dims.AI <= 0 || dims.Human <= 0 {
		return nil, fmt.Errorf("dims %+v: %w", dims, ErrConfig)
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	head := newHead(cfg.Variant, dims)
	valueSizes := []int{dims.Obs + cfg.EncodingDim, cfg.LayerSize, cfg.LayerSize, head.width()}

	a := &Agent{
		cfg:     cfg,
		dims:    dims,
		head:    head,
		Encoder: nn.NewEncoder("encoder", dims.Obs, cfg.LSTMDim, cfg.EncodingDim, rng),
		Decoder: nn.NewMLP("decoder", []int{cfg.EncodingDim, cfg.LayerSize, dims.Human}, rng),
		Value:   nn.NewMLP("value", valueSizes, rng),
		Target:  nn.NewMLP("target", valueSizes, rng),
	}
	if err := nn.CopyWeights(a.Target, a.Value); err != nil {
		return nil, fmt.Errorf("init target: %w", err)
	}
	a.opt = nn.NewAdam(a.Trainable().Params(), cfg.LearningRate)
	return a, nil
}

// #endregion new

// Config returns the agent's configuration.
func (a *Agent) Config() Config { return a.cfg }

// Dims returns the widths the agent was built for.
func (a *Agent) Dims() Dims { return a.dims }

// Updates returns the number of optimizer steps applied.
func (a *Agent) Updates() int { return a.updates }

// Trainable groups every parameter the optimizer updates.
func (a *Agent) Trainable() nn.Group { return nn.Group{a.Encoder, a.Decoder, a.Value} }

// All groups every parameter including the target network.
func (a *Agent) All() nn.Group { return nn.Group{a.Encoder, a.Decoder, a.Value, a.Target} }

// #region checkpoint
// Weights returns a copy of every network's parameters keyed by name.
func (a *Agent) Weights() map[string]*mat.Dense { return nn.Weights(a.All()) }

// Restore loads weights and the update counter. Optimizer moments restart
// from zero.
func (a *Agent) Restore(w map[string]*mat.Dense, updates int) error {
	if err := nn.SetWeights(a.All(), w); err != nil {
		return fmt.Errorf("restore agent: %w", err)
	}
	a.updates = updates
	a.opt = nn.NewAdam(a.Trainable().Params(), a.cfg.LearningRate)
	return nil
}

// #endregion checkpoint

// #region train
type stepCache struct {
	enc    *nn.EncoderCache
	dec    *nn.MLPCache
	val    *nn.MLPCache
	logits *mat.Dense
	q      *mat.Dense
	next   *mat.Dense // marginal target values at the next observation
}

// pass is one forward pass over a batch with the output gradients of
// every step, ready for the backward sweep.
type pass struct {
	caches  []stepCache
	dlogits []*mat.Dense
	dq      []*mat.Dense
	final   nn.State
}

// Train runs one optimizer update on a batch of whole trajectories. The
// encoder and decoder learn from the imitation loss only; the value
// network sees a detached latent summary and learns from the TD and
// conservative terms. Every TargetSyncPeriod updates the target network
// is overwritten with the value network.
func (a *Agent) Train(b *dataset.Batch) (Losses, error) {
	loss, p, err := a.forward(b)
	if err != nil {
		return loss, err
	}
	a.trainState = p.final
	if math.IsNaN(loss.Total) || math.IsInf(loss.Total, 0) {
		return loss, fmt.Errorf("update %d: %w", a.updates+1, ErrNonFiniteLoss)
	}

	a.opt.ZeroGrad()
	var dh, dc *mat.Dense
	for t := len(p.caches) - 1; t >= 0; t-- {
		c := p.caches[t]
		a.Value.Backward(c.val, p.dq[t])
		drep := a.Decoder.Backward(c.dec, p.dlogits[t])
		_, dh, dc = a.Encoder.StepBackward(c.enc, drep, dh, dc)
	}
	a.opt.Step()

	a.updates++
	loss.Update = a.updates
	if a.updates%a.cfg.TargetSyncPeriod == 0 {
		if err := nn.CopyWeights(a.Target, a.Value); err != nil {
			return loss, fmt.Errorf("sync target: %w", err)
		}
		loss.Synced = true
	}
	return loss, nil
}

// Loss computes the loss terms of a batch without touching any parameter
// or recurrent state slot.
func (a *Agent) Loss(b *dataset.Batch) (Losses, error) {
	loss, _, err := a.forward(b)
	if err != nil {
		return loss, err
	}
	if math.IsNaN(loss.Total) || math.IsInf(loss.Total, 0) {
		return loss, ErrNonFiniteLoss
	}
	return loss, nil
}

func (a *Agent) forward(b *dataset.Batch) (Losses, *pass, error) {
	size, h, err := a.checkBatch(b)
	if err != nil {
		return Losses{}, nil, err
	}
	norm := 1 / float64(size*h)

	p := &pass{
		caches:  make([]stepCache, h),
		dlogits: make([]*mat.Dense, h),
		dq:      make([]*mat.Dense, h),
	}
	state := a.Encoder.ZeroState(size)
	for t := 0; t < h; t++ {
		rep, next, ec := a.Encoder.Step(b.Obs[t], state)
		logits, dc := a.Decoder.Forward(rep)
		q, vc := a.Value.Forward(augment(b.Obs[t], rep))

		// the next latent continues from the state after step t
		nrep, _, _ := a.Encoder.Step(b.NextObs[t], next)
		nlogits, _ := a.Decoder.Forward(nrep)
		tq, _ := a.Target.Forward(augment(b.NextObs[t], nrep))

		p.caches[t] = stepCache{
			enc: ec, dec: dc, val: vc,
			logits: logits, q: q,
			next: a.head.marginal(tq, nn.Softmax(nlogits)),
		}
		state = next
	}
	p.final = state

	var loss Losses
	for t := 0; t < h; t++ {
		c := p.caches[t]
		human := nn.ArgmaxRows(b.Human[t])
		ai := nn.ArgmaxRows(b.AI[t])

		// imitation: cross-entropy of the decoder against the human decision
		probs := nn.Softmax(c.logits)
		logp := nn.LogSoftmax(c.logits)
		dl := mat.DenseCopyOf(probs)
		for r := 0; r < size; r++ {
			loss.Imitation -= logp.At(r, human[r])
			dl.Set(r, human[r], dl.At(r, human[r])-1)
		}
		dl.Scale(norm, dl)
		p.dlogits[t] = dl

		// TD towards r + γ(1-done)·max_a target
		_, qw := c.q.Dims()
		g := mat.NewDense(size, qw, nil)
		for r := 0; r < size; r++ {
			best := mat.Max(c.next.RowView(r))
			target := b.Reward.At(r, t) + a.cfg.Gamma*(1-b.Done.At(r, t))*best
			col := a.head.column(ai[r], human[r])
			diff := c.q.At(r, col) - target
			loss.TD += diff * diff
			g.Set(r, col, 2*diff*norm)
		}

		// conservative: cross-entropy of value logits against the logged advice
		cql := a.head.marginal(c.q, probs)
		cp := nn.Softmax(cql)
		clogp := nn.LogSoftmax(cql)
		for r := 0; r < size; r++ {
			loss.Conservative -= clogp.At(r, ai[r])
			cp.Set(r, ai[r], cp.At(r, ai[r])-1)
		}
		cp.Scale(norm, cp)
		g.Add(g, a.head.marginalBackward(cp, probs))
		p.dq[t] = g
	}
	loss.Imitation *= norm
	loss.TD *= norm
	loss.Conservative *= norm
	loss.Total = loss.Imitation + loss.TD + loss.Conservative
	loss.Update = a.updates
	return loss, p, nil
}

func (a *Agent) checkBatch(b *dataset.Batch) (size, h int, err error) {
	if b == nil || b.Reward == nil || b.Done == nil {
		return 0, 0, fmt.Errorf("nil batch: %w", ErrShape)
	}
	size, h = b.Dims()
	if dr, dc := b.Done.Dims(); dr != size || dc != h {
		return 0, 0, fmt.Errorf("done is %dx%d, want %dx%d: %w", dr, dc, size, h, ErrShape)
	}
	if len(b.Obs) != h || len(b.NextObs) != h || len(b.Human) != h || len(b.AI) != h {
		return 0, 0, fmt.Errorf("batch needs %d steps in every field: %w", h, ErrShape)
	}
	for t := 0; t < h; t++ {
		for _, f := range []struct {
			name string
			m    *mat.Dense
			want int
		}{
			{"obs", b.Obs[t], a.dims.Obs},
			{"next_obs", b.NextObs[t], a.dims.Obs},
			{"human", b.Human[t], a.dims.Human},
			{"ai", b.AI[t], a.dims.AI},
		} {
			if f.m == nil {
				return 0, 0, fmt.Errorf("%s at step %d missing: %w", f.name, t, ErrShape)
			}
			if r, c := f.m.Dims(); r != size || c != f.want {
				return 0, 0, fmt.Errorf("%s at step %d is %dx%d, want %dx%d: %w", f.name, t, r, c, size, f.want, ErrShape)
			}
		}
	}
	return size, h, nil
}

// #endregion train

// #region act
// Evaluate runs the encoder from state s on one observation per row and
// returns the forward pass together with the advanced state.
func (a *Agent) Evaluate(obs *mat.Dense, s nn.State) (*Evaluation, nn.State, error) {
	r, c := obs.Dims()
	if c != a.dims.Obs {
		return nil, s, fmt.Errorf("observation width %d, want %d: %w", c, a.dims.Obs, ErrShape)
	}
	if s.Rows() != r {
		s = a.Encoder.ZeroState(r)
	}
	rep, next, _ := a.Encoder.Step(obs, s)
	logits, _ := a.Decoder.Forward(rep)
	probs := nn.Softmax(logits)
	q, _ := a.Value.Forward(augment(obs, rep))
	return &Evaluation{
		Rep:        rep,
		HumanProbs: probs,
		Raw:        q,
		Values:     a.head.marginal(q, probs),
	}, next, nil
}

// Act picks the AI action with the highest value for every row of obs.
// The evaluation recurrent state carries over between calls; it restarts
// from zeros after ResetEval or when the batch size changes.
func (a *Agent) Act(obs *mat.Dense) ([]int, error) {
	ev, next, err := a.Evaluate(obs, a.evalState)
	if err != nil {
		return nil, err
	}
	a.evalState = next
	return nn.ArgmaxRows(ev.Values), nil
}

// ResetEval clears the evaluation recurrent state.
func (a *Agent) ResetEval() { a.evalState = nn.State{} }

// TrainState returns the recurrent state left by the last training batch.
func (a *Agent) TrainState() nn.State { return a.trainState }

// EvalState returns the current evaluation recurrent state.
func (a *Agent) EvalState() nn.State { return a.evalState }

// #endregion act

func augment(x, rep *mat.Dense) *mat.Dense {
	var m mat.Dense
	m.Augment(x, rep)
	return &m
}
