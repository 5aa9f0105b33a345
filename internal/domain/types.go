// Package domain holds the categorical alphabets shared by the generator,
// the vectorizer, and the trainer.
package domain

import "fmt"

// #region alphabet-sizes
const (
	NumTypes     = 3
	NumTrust     = 3
	NumCases     = 15
	NumAdvice    = 3
	NumDecisions = 2
	NumOutcomes  = 2
	ContDim      = 2
)

// #endregion alphabet-sizes

// #region type
// Type is the latent behavioural type of a simulated individual.
type Type uint8

const (
	Type1 Type = iota
	Type2
	Type3
)

var typeLabels = [NumTypes]string{"1", "2", "3"}

func (t Type) String() string {
	if int(t) < NumTypes {
		return typeLabels[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool { return int(t) < NumTypes }

// ParseType maps "1".."3" to a Type.
func ParseType(s string) (Type, error) {
	for i, l := range typeLabels {
		if l == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown type label %q", s)
}

// #endregion type

// #region trust
// Trust is the latent attitude of an individual towards the advisor.
type Trust uint8

const (
	Trusting Trust = iota
	Neutral
	Distrusting
)

var trustLabels = [NumTrust]string{"T", "N", "D"}

func (t Trust) String() string {
	if int(t) < NumTrust {
		return trustLabels[t]
	}
	return fmt.Sprintf("Trust(%d)", uint8(t))
}

// Up moves one step towards Trusting.
func (t Trust) Up() Trust {
	if t == Trusting {
		return Trusting
	}
	return t - 1
}

// Down moves one step towards Distrusting.
func (t Trust) Down() Trust {
	if t == Distrusting {
		return Distrusting
	}
	return t + 1
}

// ParseTrust maps "T", "N", "D" to a Trust.
func ParseTrust(s string) (Trust, error) {
	for i, l := range trustLabels {
		if l == s {
			return Trust(i), nil
		}
	}
	return 0, fmt.Errorf("unknown trust label %q", s)
}

// #endregion trust

// #region case
// Case identifies the question presented at a step. Step k (1-indexed)
// always presents Case(k-1).
type Case uint8

func (c Case) String() string {
	if int(c) < NumCases {
		return fmt.Sprintf("T%d", int(c)+1)
	}
	return fmt.Sprintf("Case(%d)", uint8(c))
}

// CaseAt returns the case presented at zero-based step t.
func CaseAt(t int) (Case, error) {
	if t < 0 || t >= NumCases {
		return 0, fmt.Errorf("step %d has no case label", t)
	}
	return Case(t), nil
}

// ParseCase maps "T1".."T15" to a Case.
func ParseCase(s string) (Case, error) {
	for i := 0; i < NumCases; i++ {
		if Case(i).String() == s {
			return Case(i), nil
		}
	}
	return 0, fmt.Errorf("unknown case label %q", s)
}

// #endregion case

// #region advice
// Advice is the advisor's recommendation. AdviceWithhold means no
// recommendation was given.
type Advice uint8

const (
	AdviceX Advice = iota
	AdviceY
	AdviceWithhold
)

var adviceLabels = [NumAdvice]string{"X", "Y", "W"}

func (a Advice) String() string {
	if int(a) < NumAdvice {
		return adviceLabels[a]
	}
	return fmt.Sprintf("Advice(%d)", uint8(a))
}

// Matches reports whether the human decision followed the advice.
// Withheld advice never matches.
func (a Advice) Matches(d Decision) bool {
	return a != AdviceWithhold && uint8(a) == uint8(d)
}

// ParseAdvice maps "X", "Y", "W" to an Advice.
func ParseAdvice(s string) (Advice, error) {
	for i, l := range adviceLabels {
		if l == s {
			return Advice(i), nil
		}
	}
	return 0, fmt.Errorf("unknown advice label %q", s)
}

// #endregion advice

// #region decision
// Decision is the human's answer.
type Decision uint8

const (
	DecisionX Decision = iota
	DecisionY
)

var decisionLabels = [NumDecisions]string{"X", "Y"}

func (d Decision) String() string {
	if int(d) < NumDecisions {
		return decisionLabels[d]
	}
	return fmt.Sprintf("Decision(%d)", uint8(d))
}

// ParseDecision maps "X", "Y" to a Decision.
func ParseDecision(s string) (Decision, error) {
	for i, l := range decisionLabels {
		if l == s {
			return Decision(i), nil
		}
	}
	return 0, fmt.Errorf("unknown decision label %q", s)
}

// #endregion decision

// #region outcome
// Outcome is whether the decision turned out well.
type Outcome uint8

const (
	OutcomeGood Outcome = iota
	OutcomeBad
)

var outcomeLabels = [NumOutcomes]string{"G", "B"}

func (o Outcome) String() string {
	if int(o) < NumOutcomes {
		return outcomeLabels[o]
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// ParseOutcome maps "G", "B" to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	for i, l := range outcomeLabels {
		if l == s {
			return Outcome(i), nil
		}
	}
	return 0, fmt.Errorf("unknown outcome label %q", s)
}

// #endregion outcome
