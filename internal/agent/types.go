package agent

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/dataset"
	"github.com/danielpatrickdp/trust-aht/internal/domain"
)

var (
	// ErrNonFiniteLoss is returned when a training loss is NaN or infinite.
	// The optimizer step is not applied.
	ErrNonFiniteLoss = errors.New("non-finite training loss")
	// ErrShape is returned when a batch or observation has the wrong width.
	ErrShape = errors.New("agent input shape mismatch")
	// ErrConfig is returned for an invalid agent configuration.
	ErrConfig = errors.New("invalid agent config")
)

// #region variant
// Variant selects the value head.
type Variant string

const (
	// VariantIndependent scores AI actions directly.
	VariantIndependent Variant = "v1"
	// VariantJoint scores (AI, human) action pairs and marginalises over the
	// decoder's predicted human action.
	VariantJoint Variant = "v2"
)

// #endregion variant

// #region config
// Config holds the agent hyperparameters.
type Config struct {
	Variant          Variant `yaml:"variant" json:"variant"`
	LayerSize        int     `yaml:"layer_size" json:"layer_size"`
	LSTMDim          int     `yaml:"lstm_dim" json:"lstm_dim"`
	EncodingDim      int     `yaml:"encoding_dim" json:"encoding_dim"`
	Gamma            float64 `yaml:"gamma" json:"gamma"`
	LearningRate     float64 `yaml:"learning_rate" json:"learning_rate"`
	TargetSyncPeriod int     `yaml:"target_sync_period" json:"target_sync_period"`
	Seed             uint64  `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the experiment's hyperparameters.
func DefaultConfig() Config {
	return Config{
		Variant:          VariantJoint,
		LayerSize:        64,
		LSTMDim:          64,
		EncodingDim:      32,
		Gamma:            0.99,
		LearningRate:     1e-4,
		TargetSyncPeriod: 100,
		Seed:             1,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	switch {
	case c.Variant != VariantIndependent && c.Variant != VariantJoint:
		return fmt.Errorf("variant %q: %w", c.Variant, ErrConfig)
	case c.LayerSize <= 0 || c.LSTMDim <= 0 || c.EncodingDim <= 0:
		return fmt.Errorf("layer sizes must be positive: %w", ErrConfig)
	case c.Gamma < 0 || c.Gamma > 1:
		return fmt.Errorf("gamma %v outside [0, 1]: %w", c.Gamma, ErrConfig)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning rate %v: %w", c.LearningRate, ErrConfig)
	case c.TargetSyncPeriod <= 0:
		return fmt.Errorf("target sync period %d: %w", c.TargetSyncPeriod, ErrConfig)
	}
	return nil
}

// #endregion config

// Dims are the input and action widths the networks are built for.
type Dims struct {
	Obs   int
	AI    int
	Human int
}

// DefaultDims matches the dataset package's layout.
func DefaultDims() Dims {
	return Dims{Obs: dataset.ObsDim, AI: domain.NumAdvice, Human: domain.NumDecisions}
}

// #region results
// Losses are the mean loss terms of one training call.
type Losses struct {
	Imitation    float64 `json:"imitation"`
	TD           float64 `json:"td"`
	Conservative float64 `json:"conservative"`
	Total        float64 `json:"total"`
	Update       int     `json:"update"`
	Synced       bool    `json:"synced"`
}

// Evaluation is the forward pass of one observation batch.
type Evaluation struct {
	Rep        *mat.Dense // latent summary
	HumanProbs *mat.Dense // softmax of the decoder logits
	Raw        *mat.Dense // value network output
	Values     *mat.Dense // per-AI-action values
}

// #endregion results
