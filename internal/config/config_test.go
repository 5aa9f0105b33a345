package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aht.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	t.Setenv("AHT_DB", "")
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20000, cfg.Generator.CohortSize)
	assert.Equal(t, 15, cfg.Generator.Horizon)
	assert.Equal(t, 128, cfg.Training.BatchSize)
	assert.Equal(t, agent.VariantJoint, cfg.Agent.Variant)
	assert.Equal(t, 100, cfg.Agent.TargetSyncPeriod)
	assert.Equal(t, "trust_aht.db", cfg.Store.Path)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv("AHT_DB", "")
	path := writeFile(t, `
generator:
  cohort_size: 500
  horizon: 5
agent:
  variant: v1
training:
  batch_size: 32
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Generator.CohortSize)
	assert.Equal(t, 5, cfg.Generator.Horizon)
	assert.Equal(t, agent.VariantIndependent, cfg.Agent.Variant)
	assert.Equal(t, 64, cfg.Agent.LayerSize, "unset fields keep defaults")
	assert.Equal(t, 50000, cfg.Training.Iterations)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverridesStorePath(t *testing.T) {
	t.Setenv("AHT_DB", "/tmp/override.db")
	path := writeFile(t, "store:\n  path: from-file.db\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Store.Path)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "generator:\n  cohort: 3\n",
		"horizon":        "generator:\n  horizon: 16\n",
		"variant":        "agent:\n  variant: v3\n",
		"batch too big":  "generator:\n  cohort_size: 100\ntraining:\n  batch_size: 95\n",
		"hold out":       "training:\n  hold_out: 1\n",
		"log level":      "log:\n  level: loud\n",
		"checkpoint gap": "training:\n  checkpoint_every: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Setenv("AHT_DB", "")
	data, err := Default().Marshal()
	require.NoError(t, err)
	cfg, err := Load(writeFile(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestHeldOut(t *testing.T) {
	assert.Equal(t, 2000, HeldOut(20000, 0.1))
	assert.Equal(t, 0, HeldOut(5, 0.1))
}
