package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/trust-aht/internal/domain"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string             `json:"description"`
	Seed        uint64             `json:"seed"`
	CohortSize  int                `json:"cohort_size"`
	Horizon     int                `json:"horizon"`
	Digest      string             `json:"digest"`
	TrustCases  []FixtureTrustCase `json:"trust_cases"`
}

// FixtureTrustCase pins the exact next-trust distribution for one
// transition, keyed by the source alphabet labels.
type FixtureTrustCase struct {
	Type     string     `json:"type"`
	Case     string     `json:"case"`
	Trust    string     `json:"trust"`
	Advice   string     `json:"advice"`
	Decision string     `json:"decision"`
	Outcome  string     `json:"outcome"`
	Expected [domain.NumTrust]float64 `json:"expected"` // over T, N, D
}

// TrustKey is a parsed FixtureTrustCase key.
type TrustKey struct {
	Type     domain.Type
	Case     domain.Case
	Trust    domain.Trust
	Advice   domain.Advice
	Decision domain.Decision
	Outcome  domain.Outcome
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// Key parses the labels of a trust case.
func (c *FixtureTrustCase) Key() (TrustKey, error) {
	var (
		k   TrustKey
		err error
	)
	if k.Type, err = domain.ParseType(c.Type); err != nil {
		return k, err
	}
	if k.Case, err = domain.ParseCase(c.Case); err != nil {
		return k, err
	}
	if k.Trust, err = domain.ParseTrust(c.Trust); err != nil {
		return k, err
	}
	if k.Advice, err = domain.ParseAdvice(c.Advice); err != nil {
		return k, err
	}
	if k.Decision, err = domain.ParseDecision(c.Decision); err != nil {
		return k, err
	}
	if k.Outcome, err = domain.ParseOutcome(c.Outcome); err != nil {
		return k, err
	}
	return k, nil
}

// toCase renders a key and its distribution as a fixture entry.
func toCase(k TrustKey, dist [domain.NumTrust]float64) FixtureTrustCase {
	return FixtureTrustCase{
		Type:     k.Type.String(),
		Case:     k.Case.String(),
		Trust:    k.Trust.String(),
		Advice:   k.Advice.String(),
		Decision: k.Decision.String(),
		Outcome:  k.Outcome.String(),
		Expected: dist,
	}
}

// #endregion fixture-loader
