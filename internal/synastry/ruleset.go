package synastry

import (
	"fmt"
	"math"
)

// weightTolerance bounds how far the weight table may stray from summing to 1.
const weightTolerance = 1e-6

// Weights maps module keys to their weight in the final percentage.
type Weights map[string]float64

// Sum adds up every weight.
func (w Weights) Sum() float64 {
	s := 0.0
	for _, v := range w {
		s += v
	}
	return s
}

func (w Weights) validate() error {
	for _, k := range ModuleKeys {
		v, ok := w[k]
		if !ok {
			return fmt.Errorf("weights: missing module %q", k)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("weights: %s = %.3f outside [0,1]", k, v)
		}
	}
	for k := range w {
		if !isModuleKey(k) {
			return fmt.Errorf("weights: unknown module %q", k)
		}
	}
	if s := w.Sum(); math.Abs(s-1) > weightTolerance {
		return fmt.Errorf("weights: sum %.6f, expected 1", s)
	}
	return nil
}

func isModuleKey(k string) bool {
	for _, m := range ModuleKeys {
		if m == k {
			return true
		}
	}
	return false
}

// RuleSet bundles every static table the scoring core reads. It is immutable
// once validated and safe to share between goroutines.
type RuleSet struct {
	Version     string
	Weights     Weights
	Ascendant   AscendantTable
	Overlays    *OverlayRules
	Mitigations MitigationTable
	Expression  ExpressionTable
	TextScorer  TextScorer
	Penalty     PenaltyConfig
	// Bonus is the flat bonus for a Sun/Moon house coincidence.
	Bonus int
}

// Validate checks the invariants every table must hold.
func (rs *RuleSet) Validate() error {
	if rs == nil {
		return fmt.Errorf("rule set is nil")
	}
	if err := rs.Weights.validate(); err != nil {
		return err
	}
	if err := rs.Ascendant.validate(); err != nil {
		return err
	}
	if err := rs.Mitigations.validate(); err != nil {
		return err
	}
	if err := rs.Expression.validate(); err != nil {
		return err
	}
	if err := rs.Penalty.validate(); err != nil {
		return err
	}
	if rs.TextScorer == nil {
		return fmt.Errorf("rule set: text scorer missing")
	}
	if rs.Bonus < 0 || rs.Bonus > 100 {
		return fmt.Errorf("rule set: bonus %d outside 0..100", rs.Bonus)
	}
	return nil
}
