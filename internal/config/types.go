package config

import (
	"errors"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
	"github.com/danielpatrickdp/trust-aht/internal/eval"
	"github.com/danielpatrickdp/trust-aht/internal/gate"
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("invalid config")

// #region config
// Config is the whole experiment configuration.
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	Agent     agent.Config    `yaml:"agent"`
	Training  TrainingConfig  `yaml:"training"`
	Gate      gate.GateConfig `yaml:"gate"`
	Eval      eval.EvalConfig `yaml:"eval"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
}

// GeneratorConfig controls cohort synthesis.
type GeneratorConfig struct {
	Seed       uint64 `yaml:"seed"`
	CohortSize int    `yaml:"cohort_size"`
	Horizon    int    `yaml:"horizon"`
	TablesPath string `yaml:"tables_path"` // empty uses the embedded tables
}

// TrainingConfig controls the optimisation loop.
type TrainingConfig struct {
	Iterations      int     `yaml:"iterations"`
	BatchSize       int     `yaml:"batch_size"`
	CheckpointEvery int     `yaml:"checkpoint_every"` // updates between gated checkpoints
	HoldOut         float64 `yaml:"hold_out"`         // fraction of trajectories kept for eval
	SampleSeed      uint64  `yaml:"sample_seed"`
	MetricsAddr     string  `yaml:"metrics_addr"` // empty disables the /metrics listener
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// #endregion config
