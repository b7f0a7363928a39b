package synastry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/chart"
)

type placement struct {
	body  chart.Body
	sign  chart.Sign
	house int
}

// buildChart produces a record in the shape charting services emit. Houses
// are derived from the ascendant.
func buildChart(asc chart.Sign, ps ...placement) chart.Record {
	planets := make([]any, 0, len(ps))
	for _, p := range ps {
		entry := map[string]any{"name": string(p.body), "house": p.house}
		if p.sign != "" {
			entry["sign"] = string(p.sign)
		}
		planets = append(planets, entry)
	}
	rec := chart.Record{"planets": planets}
	if asc != "" {
		rec["ascendant"] = map[string]any{"sign": string(asc)}
	}
	return rec
}

func testWeights() Weights {
	return Weights{
		ModuleAscendant:  0.20,
		ModuleMoonMoon:   0.15,
		ModuleSunSun:     0.10,
		ModuleSunMoon:    0.15,
		ModuleVenusMars:  0.15,
		ModuleOverlays:   0.10,
		ModuleNumerology: 0.05,
		ModuleExpression: 0.10,
	}
}

func testRules(t *testing.T) *RuleSet {
	t.Helper()

	overlays, err := NewOverlayRules([]OverlayRule{
		{Body: chart.Venus, House: 7, Score: 6, Label: "Venus in the seventh", Reason: "harmony"},
		{Body: chart.Moon, House: 8, Score: -4, Label: "Moon in the eighth", Reason: "jealousy"},
	})
	require.NoError(t, err)

	asc := AscendantTable{}
	for _, a := range chart.Signs {
		asc[a] = map[chart.Sign]float64{}
		for _, b := range chart.Signs {
			asc[a][b] = 0.5
		}
	}
	asc[chart.Leo][chart.Aries] = 0.9
	asc[chart.Aries][chart.Leo] = 0.7

	scorer := &KeywordScorer{
		Base: 50,
		Keywords: []KeywordWeight{
			{Keyword: "ideal", Weight: 40},
			{Keyword: "tension", Weight: -20},
		},
		Tiers: []Tier{{Min: 0, Name: "difficult"}, {Min: 45, Name: "neutral"}, {Min: 86, Name: "ideal"}},
	}
	require.NoError(t, scorer.Normalize())

	return &RuleSet{
		Version:   "test",
		Weights:   testWeights(),
		Ascendant: asc,
		Overlays:  overlays,
		Mitigations: MitigationTable{
			{Sign: chart.Aries, Reason: "Mars in its own sign in house {house}"},
			{Sign: chart.Cancer, Houses: []int{7}, Reason: "Mars in Cancer in house {house}"},
		},
		Expression: ExpressionTable{
			"1+9": "An ideal match of beginning and completion.",
			"1+5": "Restless tension.",
		},
		TextScorer: scorer,
		Penalty:    DefaultPenaltyConfig(),
		Bonus:      10,
	}
}

func testAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(testRules(t))
	require.NoError(t, err)
	return a
}
