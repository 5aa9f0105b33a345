// Package dataset assembles observations, actions, rewards and next
// observations for offline training, and samples trajectory batches.
package dataset

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/vectorize"
)

// #region build
// Build derives the training set. The human action is the decision, the AI
// action is the advice, and the reward is 1 when the outcome was good.
func Build(ts *vectorize.Tensors) (*Dataset, error) {
	if ts == nil || ts.Done == nil {
		return nil, fmt.Errorf("build dataset: %w", vectorize.ErrShape)
	}
	n, h := ts.Dims()
	for name, t := range map[string]*vectorize.Tensor3{"case": ts.Case, "advice": ts.Advice, "decision": ts.Decision, "outcome": ts.Outcome, "cont": ts.Cont} {
		if t == nil || t.Shape()[0] != n || t.Shape()[1] != h {
			return nil, fmt.Errorf("build dataset: %s tensor: %w", name, vectorize.ErrShape)
		}
	}

	d := &Dataset{
		Obs:     vectorize.NewTensor3(n, h, ObsDim),
		NextObs: vectorize.NewTensor3(n, h, ObsDim),
		Human:   ts.Decision,
		AI:      ts.Advice,
		Reward:  mat.NewDense(n, h, nil),
		Done:    mat.DenseCopyOf(ts.Done),
	}
	prevOff := domain.ContDim + domain.NumCases
	for i := 0; i < n; i++ {
		for t := 0; t < h; t++ {
			row := d.Obs.Row(i, t)
			copy(row, ts.Cont.Row(i, t))
			copy(row[domain.ContDim:], ts.Case.Row(i, t))
			if t == 0 {
				for k := prevOff; k < ObsDim; k++ {
					row[k] = Sentinel
				}
			} else {
				copy(row[prevOff:], ts.Decision.Row(i, t-1))
			}
			d.Reward.Set(i, t, ts.Outcome.At(i, t, int(domain.OutcomeGood)))
		}
		for t := 0; t < h; t++ {
			next := d.NextObs.Row(i, t)
			if t+1 < h {
				copy(next, d.Obs.Row(i, t+1))
				continue
			}
			for k := range next {
				next[k] = Sentinel
			}
		}
	}
	return d, nil
}

// #endregion build

// Dims returns the number of trajectories and the horizon.
func (d *Dataset) Dims() (n, h int) { return d.Done.Dims() }

// #region sample
// SampleBatch draws size distinct trajectories.
func (d *Dataset) SampleBatch(rng *rand.Rand, size int) (*Batch, error) {
	n, _ := d.Dims()
	if size <= 0 || size > n {
		return nil, fmt.Errorf("sample %d of %d trajectories: %w", size, n, ErrBatchSize)
	}
	return d.Slice(rng.Perm(n)[:size])
}

// All returns every trajectory as one batch, in order.
func (d *Dataset) All() *Batch {
	n, _ := d.Dims()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	b, _ := d.Slice(idx)
	return b
}

// Slice gathers the given trajectories into a batch.
func (d *Dataset) Slice(idx []int) (*Batch, error) {
	n, h := d.Dims()
	if len(idx) == 0 {
		return nil, fmt.Errorf("empty batch: %w", ErrBatchSize)
	}
	for _, i := range idx {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("trajectory %d of %d: %w", i, n, ErrBatchSize)
		}
	}
	b := &Batch{
		Index:   append([]int(nil), idx...),
		Obs:     make([]*mat.Dense, h),
		NextObs: make([]*mat.Dense, h),
		Human:   make([]*mat.Dense, h),
		AI:      make([]*mat.Dense, h),
		Reward:  mat.NewDense(len(idx), h, nil),
		Done:    mat.NewDense(len(idx), h, nil),
	}
	for t := 0; t < h; t++ {
		b.Obs[t] = gather(d.Obs, idx, t)
		b.NextObs[t] = gather(d.NextObs, idx, t)
		b.Human[t] = gather(d.Human, idx, t)
		b.AI[t] = gather(d.AI, idx, t)
	}
	for r, i := range idx {
		b.Reward.SetRow(r, d.Reward.RawRowView(i))
		b.Done.SetRow(r, d.Done.RawRowView(i))
	}
	return b, nil
}

func gather(src *vectorize.Tensor3, idx []int, t int) *mat.Dense {
	m := mat.NewDense(len(idx), src.Shape()[2], nil)
	for r, i := range idx {
		m.SetRow(r, src.Row(i, t))
	}
	return m
}

// #endregion sample

// Dims returns the batch size and horizon.
func (b *Batch) Dims() (size, h int) { return b.Reward.Dims() }
