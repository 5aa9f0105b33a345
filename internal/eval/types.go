package eval

// #region eval-config
// EvalConfig holds thresholds for held-out validation.
type EvalConfig struct {
	MaxAbsValue          float64 `yaml:"max_abs_value"`          // reject if any predicted value exceeds this magnitude
	MinImitationAccuracy float64 `yaml:"min_imitation_accuracy"` // reject if the decoder predicts fewer human decisions; 0 disables
}

// DefaultEvalConfig returns the thresholds used after training.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxAbsValue:          1e3,
		MinImitationAccuracy: 0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of held-out validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Metric returns the named metric and whether it was recorded.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
