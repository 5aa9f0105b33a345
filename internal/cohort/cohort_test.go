package cohort

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/trust-aht/internal/generator"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cohort.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func generate(t *testing.T, seed uint64, n, h int) []generator.Step {
	t.Helper()
	seq, err := generator.NewSampler(tables.Default(), seed).Generate(n, h)
	require.NoError(t, err)
	return seq
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	seq := generate(t, 3, 20, 4)

	c, err := db.Save(3, seq)
	require.NoError(t, err)
	assert.Equal(t, 20, c.Size)
	assert.Equal(t, 4, c.Horizon)
	assert.Equal(t, generator.Digest(seq), c.Digest)
	assert.NotEmpty(t, c.CohortID)

	got, loaded, err := db.Load(c.CohortID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, seq, loaded)
}

func TestLoadMissing(t *testing.T) {
	db := openTestDB(t)
	_, _, err := db.Load("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadDetectsTampering(t *testing.T) {
	db := openTestDB(t)
	c, err := db.Save(9, generate(t, 9, 5, 3))
	require.NoError(t, err)

	_, err = db.conn.Exec("UPDATE cohort_steps SET trust = (trust + 1) % 3 WHERE cohort_id = ? AND individual = 0 AND step = 1", c.CohortID)
	require.NoError(t, err)

	_, _, err = db.Load(c.CohortID)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestSaveRejectsEmpty(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Save(1, nil)
	require.ErrorIs(t, err, generator.ErrCohortSize)
}

func TestListNewestFirst(t *testing.T) {
	db := openTestDB(t)
	first, err := db.Save(1, generate(t, 1, 3, 2))
	require.NoError(t, err)
	second, err := db.Save(2, generate(t, 2, 3, 2))
	require.NoError(t, err)

	list, err := db.List(10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.CohortID, list[0].CohortID)
	assert.Equal(t, first.CohortID, list[1].CohortID)
	assert.Equal(t, uint64(1), list[1].Seed)
}
