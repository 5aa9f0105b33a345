package vectorize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/generator"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
)

func observed(t *testing.T, seed uint64, n, h int) []generator.Observed {
	t.Helper()
	seq, err := generator.NewSampler(tables.Default(), seed).Generate(n, h)
	require.NoError(t, err)
	return generator.StripLatents(seq)
}

func TestShapesForSmallCohort(t *testing.T) {
	ts, err := Vectorize(observed(t, 42, 100, 3))
	require.NoError(t, err)
	require.Equal(t, [3]int{100, 3, 15}, ts.Case.Shape())
	require.Equal(t, [3]int{100, 3, 3}, ts.Advice.Shape())
	require.Equal(t, [3]int{100, 3, 2}, ts.Decision.Shape())
	require.Equal(t, [3]int{100, 3, 2}, ts.Outcome.Shape())
	n, h := ts.Dims()
	require.Equal(t, 100, n)
	require.Equal(t, 3, h)
}

func TestDoneMarksFinalStepOnly(t *testing.T) {
	for _, h := range []int{1, 3, 15} {
		ts, err := Vectorize(observed(t, 1, 30, h))
		require.NoError(t, err)
		for i := 0; i < 30; i++ {
			var total float64
			for j := 0; j < h; j++ {
				total += ts.Done.At(i, j)
			}
			require.Equal(t, 1.0, total)
			require.Equal(t, 1.0, ts.Done.At(i, h-1))
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for seed := uint64(0); seed < 5; seed++ {
		seq := observed(t, seed, 40, domain.NumCases)
		ts, err := Vectorize(seq)
		require.NoError(t, err)
		back, err := Decode(ts)
		require.NoError(t, err)
		require.Equal(t, seq, back)
	}
}

func TestVectorizeRejectsRaggedStep(t *testing.T) {
	seq := observed(t, 3, 10, 2)
	seq[1].Advice = seq[1].Advice[:9]
	_, err := Vectorize(seq)
	require.ErrorIs(t, err, ErrShape)

	_, err = Vectorize(nil)
	require.ErrorIs(t, err, ErrShape)
}

func TestVectorizeRejectsSymbolOutsideAlphabet(t *testing.T) {
	seq := observed(t, 3, 4, 2)
	seq[0].Outcome[2] = domain.Outcome(5)
	_, err := Vectorize(seq)
	require.ErrorIs(t, err, ErrShape)
}

func TestDecodeRejectsBrokenOneHot(t *testing.T) {
	ts, err := Vectorize(observed(t, 8, 5, 2))
	require.NoError(t, err)
	ts.Advice.Fill(0)
	_, err = Decode(ts)
	require.ErrorIs(t, err, ErrNotOneHot)

	_, err = Argmax([]float64{0, 1, 1})
	require.ErrorIs(t, err, ErrNotOneHot)
	_, err = Argmax([]float64{0, 0.5})
	require.ErrorIs(t, err, ErrNotOneHot)
	k, err := Argmax([]float64{0, 0, 1})
	require.NoError(t, err)
	require.Equal(t, 2, k)
}

func TestStepMatrix(t *testing.T) {
	ts, err := Vectorize(observed(t, 4, 6, 3))
	require.NoError(t, err)
	m := ts.Case.Step(2)
	r, c := m.Dims()
	require.Equal(t, 6, r)
	require.Equal(t, domain.NumCases, c)
	for i := 0; i < r; i++ {
		require.Equal(t, 1.0, m.At(i, 2))
	}
}
