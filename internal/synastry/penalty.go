package synastry

import (
	"fmt"
	"math"
)

// PenaltyConfig parameterizes the affliction penalty.
type PenaltyConfig struct {
	SingleBase     int     `yaml:"single_base" json:"single_base"`
	MutualBase     int     `yaml:"mutual_base" json:"mutual_base"`
	ClassicalRatio float64 `yaml:"classical_ratio" json:"classical_ratio"`
	JupiterRatio   float64 `yaml:"jupiter_ratio" json:"jupiter_ratio"`
	MoonRatio      float64 `yaml:"moon_ratio" json:"moon_ratio"`
	FactorFloor    float64 `yaml:"factor_floor" json:"factor_floor"`
}

// DefaultPenaltyConfig returns the stock penalty parameters.
func DefaultPenaltyConfig() PenaltyConfig {
	return PenaltyConfig{
		SingleBase:     -16,
		MutualBase:     -9,
		ClassicalRatio: 0.70,
		JupiterRatio:   0.85,
		MoonRatio:      0.85,
		FactorFloor:    0.35,
	}
}

func (c PenaltyConfig) validate() error {
	if c.SingleBase > 0 || c.MutualBase > 0 {
		return fmt.Errorf("penalty: base penalties must not be positive")
	}
	for name, r := range map[string]float64{
		"classical_ratio": c.ClassicalRatio,
		"jupiter_ratio":   c.JupiterRatio,
		"moon_ratio":      c.MoonRatio,
		"factor_floor":    c.FactorFloor,
	} {
		if r <= 0 || r > 1 {
			return fmt.Errorf("penalty: %s %.3f outside (0,1]", name, r)
		}
	}
	return nil
}

// PenaltySide is one chart's input to the penalty model.
type PenaltySide struct {
	Afflicted bool            `json:"afflicted"`
	Flags     MitigationFlags `json:"flags"`
}

// PenaltyResult is the outcome of the penalty model. Penalty is never
// positive.
type PenaltyResult struct {
	Base    int     `json:"base"`
	Factor  float64 `json:"factor"`
	Penalty int     `json:"penalty"`
}

// MitigationFactor multiplies the ratios of all present mitigations.
func (c PenaltyConfig) MitigationFactor(f MitigationFlags) float64 {
	factor := 1.0
	if f.Classical {
		factor *= c.ClassicalRatio
	}
	if f.JupiterAspect {
		factor *= c.JupiterRatio
	}
	if f.MoonConjunction {
		factor *= c.MoonRatio
	}
	return factor
}

func (c PenaltyConfig) clampFactor(f float64) float64 {
	return clip(f, c.FactorFloor, 1)
}

// Compute derives the symmetric penalty from both sides.
func (c PenaltyConfig) Compute(left, right PenaltySide) PenaltyResult {
	switch {
	case left.Afflicted && right.Afflicted:
		f := (c.MitigationFactor(left.Flags) + c.MitigationFactor(right.Flags)) / 2
		return c.result(c.MutualBase, f)
	case left.Afflicted:
		return c.result(c.SingleBase, c.MitigationFactor(left.Flags))
	case right.Afflicted:
		return c.result(c.SingleBase, c.MitigationFactor(right.Flags))
	}
	return PenaltyResult{Factor: 1}
}

// ComputeDirectional derives the penalty as seen by primary. Only the
// primary's affliction is penalized; the other side decides between the
// single and the mutual base.
func (c PenaltyConfig) ComputeDirectional(primary, other PenaltySide) PenaltyResult {
	if !primary.Afflicted {
		return PenaltyResult{Factor: 1}
	}
	base := c.SingleBase
	if other.Afflicted {
		base = c.MutualBase
	}
	return c.result(base, c.MitigationFactor(primary.Flags))
}

func (c PenaltyConfig) result(base int, factor float64) PenaltyResult {
	factor = c.clampFactor(factor)
	p := int(math.Round(float64(base) * factor))
	if p > 0 {
		p = 0
	}
	return PenaltyResult{Base: base, Factor: factor, Penalty: p}
}

// ApplyPenalty adds a (non-positive) penalty to a percentage and clamps the
// result to [0, 100].
func ApplyPenalty(percent, penalty int) int {
	return clampPercent(percent + penalty)
}
