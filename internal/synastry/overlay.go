package synastry

import (
	"fmt"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/chart"
)

// overlayCap is the rule-score sum treated as a full-strength overlay.
const overlayCap = 60.0

// OverlayRule scores a body of one chart falling into a house of the other.
type OverlayRule struct {
	Body   chart.Body `yaml:"body" json:"body"`
	House  int        `yaml:"house" json:"house"`
	Score  int        `yaml:"score" json:"score"`
	Label  string     `yaml:"label" json:"label"`
	Reason string     `yaml:"reason" json:"reason"`
}

// OverlayRules is a rule table indexed by body and target house.
type OverlayRules struct {
	rules []OverlayRule
	index map[chart.Body]map[int]OverlayRule
}

// NewOverlayRules validates and indexes a rule list. A later duplicate
// (body, house) entry replaces an earlier one.
func NewOverlayRules(rules []OverlayRule) (*OverlayRules, error) {
	or := &OverlayRules{index: make(map[chart.Body]map[int]OverlayRule)}
	for i, r := range rules {
		b, ok := chart.ParseBody(string(r.Body))
		if !ok {
			return nil, fmt.Errorf("overlay rule %d: unknown body %q", i, r.Body)
		}
		if r.House < 1 || r.House > 12 {
			return nil, fmt.Errorf("overlay rule %d: house %d outside 1..12", i, r.House)
		}
		if r.Score < -6 || r.Score > 6 {
			return nil, fmt.Errorf("overlay rule %d: score %d outside -6..6", i, r.Score)
		}
		r.Body = b
		if or.index[b] == nil {
			or.index[b] = make(map[int]OverlayRule)
		}
		or.index[b][r.House] = r
		or.rules = append(or.rules, r)
	}
	return or, nil
}

// Match returns the rule for body in house.
func (or *OverlayRules) Match(body chart.Body, house int) (OverlayRule, bool) {
	if or == nil {
		return OverlayRule{}, false
	}
	r, ok := or.index[body][house]
	return r, ok
}

// Len returns the number of rules.
func (or *OverlayRules) Len() int {
	if or == nil {
		return 0
	}
	return len(or.rules)
}

// OverlayResult is the outcome of running the rule table over both charts.
type OverlayResult struct {
	Sum   int      `json:"sum"`
	Raw   float64  `json:"raw"`
	Notes []string `json:"notes"`
}

// EvaluateOverlays places the bodies of each chart into the houses of the
// other and accumulates the matching rule scores.
func EvaluateOverlays(left, right chart.Record, rules *OverlayRules) OverlayResult {
	res := OverlayResult{Notes: []string{}}
	sides := []struct {
		tag        string
		from, onto chart.Record
	}{
		{"left", left, right},
		{"right", right, left},
	}
	for _, side := range sides {
		for _, body := range chart.Bodies {
			p := chart.Lookup(side.from, body)
			if !p.Found {
				continue
			}
			house, ok := overlayHouse(p, side.onto)
			if !ok {
				continue
			}
			rule, ok := rules.Match(body, house)
			if !ok {
				continue
			}
			res.Sum += rule.Score
			res.Notes = append(res.Notes, fmt.Sprintf("[%s] %s in house %d (%+d) %s: %s",
				side.tag, body.Name(), house, rule.Score, rule.Label, rule.Reason))
		}
	}
	res.Raw = clip(float64(res.Sum)/overlayCap, -1, 1)
	return res
}

// overlayHouse finds the house of onto that holds the body's sign, falling
// back to the body's own house number.
func overlayHouse(p chart.Placement, onto chart.Record) (int, bool) {
	if p.HasSign {
		if h, ok := chart.HouseOfSign(onto, p.Sign); ok {
			return h, true
		}
	}
	if p.HasHouse() {
		return p.House, true
	}
	return 0, false
}

func (a *Analyzer) overlayModule(left, right chart.Record) (ModuleScore, OverlayResult) {
	m := a.module(ModuleOverlays, "House overlays")
	res := EvaluateOverlays(left, right, a.rules.Overlays)
	m.Raw = res.Raw
	if len(res.Notes) == 0 {
		m.Details = append(m.Details, "no overlay rule matched")
	} else {
		m.Details = append(m.Details, fmt.Sprintf("%d overlay rules matched, total %+d", len(res.Notes), res.Sum))
	}
	return m.finish(), res
}
