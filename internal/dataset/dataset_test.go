package dataset

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/generator"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
	"github.com/danielpatrickdp/trust-aht/internal/vectorize"
)

func build(t *testing.T, n, h int) (*Dataset, *vectorize.Tensors) {
	t.Helper()
	seq, err := generator.NewSampler(tables.Default(), 21).Generate(n, h)
	require.NoError(t, err)
	ts, err := vectorize.Vectorize(generator.StripLatents(seq))
	require.NoError(t, err)
	d, err := Build(ts)
	require.NoError(t, err)
	return d, ts
}

func TestObservationLayout(t *testing.T) {
	d, ts := build(t, 12, 4)
	require.Equal(t, [3]int{12, 4, ObsDim}, d.Obs.Shape())
	prevOff := domain.ContDim + domain.NumCases
	for i := 0; i < 12; i++ {
		first := d.Obs.Row(i, 0)
		for k := prevOff; k < ObsDim; k++ {
			require.Equal(t, Sentinel, first[k])
		}
		for step := 1; step < 4; step++ {
			row := d.Obs.Row(i, step)
			require.Equal(t, ts.Cont.Row(i, step), row[:domain.ContDim])
			require.Equal(t, ts.Case.Row(i, step), row[domain.ContDim:prevOff])
			require.Equal(t, ts.Decision.Row(i, step-1), row[prevOff:])
		}
	}
}

func TestNextObservationShift(t *testing.T) {
	d, _ := build(t, 8, 3)
	for i := 0; i < 8; i++ {
		require.Equal(t, d.Obs.Row(i, 1), d.NextObs.Row(i, 0))
		require.Equal(t, d.Obs.Row(i, 2), d.NextObs.Row(i, 1))
		for _, v := range d.NextObs.Row(i, 2) {
			require.Equal(t, Sentinel, v)
		}
	}
}

func TestRewardIsGoodOutcome(t *testing.T) {
	d, ts := build(t, 20, 5)
	for i := 0; i < 20; i++ {
		for step := 0; step < 5; step++ {
			want := 0.0
			if ts.Outcome.At(i, step, int(domain.OutcomeGood)) == 1 {
				want = 1
			}
			require.Equal(t, want, d.Reward.At(i, step))
		}
	}
}

func TestSampleBatchWithoutReplacement(t *testing.T) {
	d, _ := build(t, 30, 3)
	rng := rand.New(rand.NewPCG(1, 2))
	b, err := d.SampleBatch(rng, 30)
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, i := range b.Index {
		require.False(t, seen[i], "trajectory %d drawn twice", i)
		seen[i] = true
	}
	size, h := b.Dims()
	require.Equal(t, 30, size)
	require.Equal(t, 3, h)
	require.Len(t, b.Obs, 3)
	r, c := b.Obs[0].Dims()
	require.Equal(t, 30, r)
	require.Equal(t, ObsDim, c)

	_, err = d.SampleBatch(rng, 31)
	require.ErrorIs(t, err, ErrBatchSize)
	_, err = d.SampleBatch(rng, 0)
	require.ErrorIs(t, err, ErrBatchSize)
}

func TestSliceGathersRows(t *testing.T) {
	d, _ := build(t, 10, 2)
	b, err := d.Slice([]int{7, 3})
	require.NoError(t, err)
	require.Equal(t, d.Obs.Row(7, 1), b.Obs[1].RawRowView(0))
	require.Equal(t, d.AI.Row(3, 0), b.AI[0].RawRowView(1))
	require.Equal(t, d.Reward.At(3, 1), b.Reward.At(1, 1))
	require.Equal(t, 1.0, b.Done.At(0, 1))

	_, err = d.Slice([]int{10})
	require.ErrorIs(t, err, ErrBatchSize)
}
