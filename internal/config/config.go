// Package config loads the experiment configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
	"github.com/danielpatrickdp/trust-aht/internal/domain"
	"github.com/danielpatrickdp/trust-aht/internal/eval"
	"github.com/danielpatrickdp/trust-aht/internal/gate"
	"github.com/danielpatrickdp/trust-aht/internal/logging"
)

// Default returns the configuration of the reference experiment: 20000
// trajectories of 15 steps, 50000 updates of 128 trajectories.
func Default() Config {
	return Config{
		Generator: GeneratorConfig{
			Seed:       1,
			CohortSize: 20000,
			Horizon:    domain.NumCases,
		},
		Agent: agent.DefaultConfig(),
		Training: TrainingConfig{
			Iterations:      50000,
			BatchSize:       128,
			CheckpointEvery: 1000,
			HoldOut:         0.1,
			SampleSeed:      2,
		},
		Gate:  gate.DefaultGateConfig(),
		Eval:  eval.DefaultEvalConfig(),
		Store: StoreConfig{Path: envOr("AHT_DB", "trust_aht.db")},
		Log:   LogConfig{Level: "info"},
	}
}

// Load overlays the YAML file at path onto Default and validates the
// result. An empty path returns the defaults. AHT_DB, when set, wins over
// the file's store path.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if v := os.Getenv("AHT_DB"); v != "" {
			cfg.Store.Path = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	g := c.Generator
	if g.CohortSize <= 0 {
		return fmt.Errorf("generator.cohort_size %d: %w", g.CohortSize, ErrInvalid)
	}
	if g.Horizon < 1 || g.Horizon > domain.NumCases {
		return fmt.Errorf("generator.horizon %d outside 1..%d: %w", g.Horizon, domain.NumCases, ErrInvalid)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	t := c.Training
	if t.Iterations < 0 {
		return fmt.Errorf("training.iterations %d: %w", t.Iterations, ErrInvalid)
	}
	if t.BatchSize <= 0 {
		return fmt.Errorf("training.batch_size %d: %w", t.BatchSize, ErrInvalid)
	}
	if t.CheckpointEvery <= 0 {
		return fmt.Errorf("training.checkpoint_every %d: %w", t.CheckpointEvery, ErrInvalid)
	}
	if t.HoldOut < 0 || t.HoldOut >= 1 {
		return fmt.Errorf("training.hold_out %v outside [0, 1): %w", t.HoldOut, ErrInvalid)
	}
	train := g.CohortSize - HeldOut(g.CohortSize, t.HoldOut)
	if t.BatchSize > train {
		return fmt.Errorf("training.batch_size %d exceeds %d training trajectories: %w", t.BatchSize, train, ErrInvalid)
	}
	if c.Gate.MaxParamNorm <= 0 || c.Gate.MaxDeltaNorm <= 0 || c.Gate.MaxLossRise < 0 {
		return fmt.Errorf("gate %+v: %w", c.Gate, ErrInvalid)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path empty: %w", ErrInvalid)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// HeldOut is the number of trajectories reserved for evaluation.
func HeldOut(size int, frac float64) int {
	return int(float64(size) * frac)
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
