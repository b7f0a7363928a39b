package synastry

import (
	"fmt"
	"math"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/chart"
)

// sunSunFactor scales the Sun/Sun affinity before weighting.
const sunSunFactor = 0.8

// Analyzer scores pairs of charts against a rule set. It holds no mutable
// state; one Analyzer can serve any number of concurrent evaluations.
type Analyzer struct {
	rules *RuleSet
}

// NewAnalyzer validates rules and returns an Analyzer bound to them.
func NewAnalyzer(rules *RuleSet) (*Analyzer, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}
	return &Analyzer{rules: rules}, nil
}

// Rules returns the rule set the analyzer was built with.
func (a *Analyzer) Rules() *RuleSet { return a.rules }

type moduleDraft struct {
	ModuleScore
}

func (a *Analyzer) module(key, title string) *moduleDraft {
	return &moduleDraft{ModuleScore{
		Key:     key,
		Title:   title,
		Weight:  a.rules.Weights[key],
		Details: []string{},
	}}
}

func (m *moduleDraft) finish() ModuleScore {
	m.Raw = clip(m.Raw, -1, 1)
	m.Normalized = normalize01(m.Raw)
	return m.ModuleScore
}

// houseAffinity scores the house distance from body src of one chart to body
// dst of another.
func houseAffinity(from chart.Record, src chart.Body, to chart.Record, dst chart.Body) (float64, string, bool) {
	hs, ok := chart.HouseOf(from, src)
	if !ok {
		return 0, fmt.Sprintf("%s house unknown", src.Name()), false
	}
	ht, ok := chart.HouseOf(to, dst)
	if !ok {
		return 0, fmt.Sprintf("%s house unknown", dst.Name()), false
	}
	raw := Affinity(ht - hs)
	return raw, fmt.Sprintf("%s in house %d, %s in house %d: %+.2f", src.Name(), hs, dst.Name(), ht, raw), true
}

func (a *Analyzer) moonMoonModule(left, right chart.Record) ModuleScore {
	m := a.module(ModuleMoonMoon, "Moon and Moon")
	raw, detail, _ := houseAffinity(left, chart.Moon, right, chart.Moon)
	m.Raw = raw
	m.Details = append(m.Details, detail)
	return m.finish()
}

func (a *Analyzer) sunSunModule(left, right chart.Record) ModuleScore {
	m := a.module(ModuleSunSun, "Sun and Sun")
	raw, detail, ok := houseAffinity(left, chart.Sun, right, chart.Sun)
	m.Raw = raw * sunSunFactor
	m.Details = append(m.Details, detail)
	if ok {
		m.Details = append(m.Details, fmt.Sprintf("scaled by %.1f", sunSunFactor))
	}
	return m.finish()
}

// crossPair names a source body in one chart and a target body in the other.
type crossPair struct {
	src, dst chart.Body
	damp     bool
}

var (
	sunMoonPair   = crossPair{src: chart.Sun, dst: chart.Moon, damp: true}
	venusMarsPair = crossPair{src: chart.Mars, dst: chart.Venus}
)

func (p crossPair) score(from, to chart.Record) (float64, string, bool) {
	raw, detail, ok := houseAffinity(from, p.src, to, p.dst)
	if ok && p.damp {
		raw = dampen(raw)
	}
	return raw, detail, ok
}

func (a *Analyzer) crossModule(key string, pair crossPair, from, to chart.Record) ModuleScore {
	m := a.module(key, crossTitle(pair))
	raw, detail, _ := pair.score(from, to)
	m.Raw = raw
	m.Details = append(m.Details, detail)
	return m.finish()
}

// crossModuleBoth averages the pair over both directions.
func (a *Analyzer) crossModuleBoth(key string, pair crossPair, left, right chart.Record) ModuleScore {
	m := a.module(key, crossTitle(pair))
	sum, n := 0.0, 0
	for _, dir := range []struct {
		tag      string
		from, to chart.Record
	}{{"left to right", left, right}, {"right to left", right, left}} {
		raw, detail, ok := pair.score(dir.from, dir.to)
		m.Details = append(m.Details, dir.tag+": "+detail)
		if ok {
			sum += raw
			n++
		}
	}
	if n > 0 {
		m.Raw = sum / float64(n)
	}
	return m.finish()
}

func crossTitle(p crossPair) string {
	return p.src.Name() + " and " + p.dst.Name()
}

// weightedPercent sums normalized scores times weights as a 0–100 integer.
func weightedPercent(mods []ModuleScore) int {
	total := 0.0
	for _, m := range mods {
		total += m.Normalized * m.Weight
	}
	return clampPercent(int(math.Round(total * 100)))
}

// bonus returns the flat Sun/Moon coincidence bonus, capped so percent+bonus
// never exceeds 100.
func (a *Analyzer) bonus(in Input, o Orientation, percent int) (int, string) {
	if !o.Opposite() || a.rules.Bonus == 0 {
		return 0, ""
	}
	match := func(x chart.Record, xb chart.Body, y chart.Record, yb chart.Body) bool {
		hx, okx := chart.HouseOf(x, xb)
		hy, oky := chart.HouseOf(y, yb)
		return okx && oky && hx == hy
	}
	var reason string
	switch {
	case match(in.Left.Chart, chart.Sun, in.Right.Chart, chart.Moon):
		reason = "left Sun shares a house number with right Moon"
	case match(in.Left.Chart, chart.Moon, in.Right.Chart, chart.Sun):
		reason = "left Moon shares a house number with right Sun"
	default:
		return 0, ""
	}
	b := a.rules.Bonus
	if percent+b > 100 {
		b = 100 - percent
	}
	if b < 0 {
		b = 0
	}
	return b, reason
}

func (a *Analyzer) afflictions(in Input) (left, right []Finding, ls, rs PenaltySide) {
	left = AnalyzeAffliction(in.Left.Chart, a.rules.Mitigations)
	right = AnalyzeAffliction(in.Right.Chart, a.rules.Mitigations)
	ls = PenaltySide{Afflicted: len(left) > 0, Flags: DetectMitigations(in.Left.Chart, left)}
	rs = PenaltySide{Afflicted: len(right) > 0, Flags: DetectMitigations(in.Right.Chart, right)}
	return left, right, ls, rs
}

// Directional scores the pair as seen by the left party. Cross-gender modules
// are only computed for opposite genders, and only the left party's
// affliction is penalized.
func (a *Analyzer) Directional(in Input) (DirectionalResult, error) {
	o := OrientationOf(in.Left.Profile.Gender, in.Right.Profile.Gender)
	mods := []ModuleScore{
		a.ascendantModule(in.Left.Chart, in.Right.Chart),
		a.moonMoonModule(in.Left.Chart, in.Right.Chart),
		a.sunSunModule(in.Left.Chart, in.Right.Chart),
	}
	if src, dst, ok := ChooseDirection(o); ok {
		from, to := in.party(src).Chart, in.party(dst).Chart
		mods = append(mods,
			a.crossModule(ModuleSunMoon, sunMoonPair, from, to),
			a.crossModule(ModuleVenusMars, venusMarsPair, from, to),
		)
	}
	num, verdict, err := a.numerologyModules(in.Left.Profile, in.Right.Profile)
	if err != nil {
		return DirectionalResult{}, err
	}
	mods = append(mods, num...)

	base := weightedPercent(mods)
	lf, rf, ls, rs := a.afflictions(in)
	pen := a.rules.Penalty.ComputeDirectional(ls, rs)
	total := ApplyPenalty(base, pen.Penalty)
	bonus, reason := a.bonus(in, o, total)

	return DirectionalResult{
		Percent:     clampPercent(total + bonus),
		BasePercent: base,
		Penalty:     pen.Penalty,
		Bonus:       bonus,
		Orientation: o,
		Modules:     mods,
		Notes:       summaryNotes(lf, rf, pen, bonus, reason),
		Afflictions: AfflictionSummary{Left: lf, Right: rf, Penalty: pen},
		Expression:  verdict,
	}, nil
}

func summaryNotes(lf, rf []Finding, pen PenaltyResult, bonus int, reason string) []string {
	notes := describeFindings("left", lf)
	notes = append(notes, describeFindings("right", rf)...)
	if pen.Penalty < 0 {
		notes = append(notes, fmt.Sprintf("affliction penalty %d (base %d, factor %.2f)", pen.Penalty, pen.Base, pen.Factor))
	}
	if reason != "" {
		notes = append(notes, fmt.Sprintf("bonus %+d: %s", bonus, reason))
	}
	return notes
}

// Report is the symmetric display variant. Every module is computed, then the
// cross-gender ones are dropped unless the genders are opposite.
func (a *Analyzer) Report(in Input) (Report, error) {
	o := OrientationOf(in.Left.Profile.Gender, in.Right.Profile.Gender)
	overlay, overlayRes := a.overlayModule(in.Left.Chart, in.Right.Chart)
	all := []ModuleScore{
		a.ascendantModule(in.Left.Chart, in.Right.Chart),
		a.moonMoonModule(in.Left.Chart, in.Right.Chart),
		a.sunSunModule(in.Left.Chart, in.Right.Chart),
		a.crossModuleBoth(ModuleSunMoon, sunMoonPair, in.Left.Chart, in.Right.Chart),
		a.crossModuleBoth(ModuleVenusMars, venusMarsPair, in.Left.Chart, in.Right.Chart),
		overlay,
	}
	num, verdict, err := a.numerologyModules(in.Left.Profile, in.Right.Profile)
	if err != nil {
		return Report{}, err
	}
	all = append(all, num...)

	mods := make([]ModuleScore, 0, len(all))
	for _, m := range all {
		if crossGenderModules[m.Key] && !o.Opposite() {
			continue
		}
		mods = append(mods, m)
	}

	base := weightedPercent(mods)
	lf, rf, ls, rs := a.afflictions(in)
	pen := a.rules.Penalty.Compute(ls, rs)
	total := ApplyPenalty(base, pen.Penalty)
	bonus, reason := a.bonus(in, o, total)

	notes := summaryNotes(lf, rf, pen, bonus, reason)

	return Report{
		Percent:      clampPercent(total + bonus),
		BasePercent:  base,
		Penalty:      pen.Penalty,
		Bonus:        bonus,
		Orientation:  o,
		Modules:      mods,
		OverlayNotes: overlayRes.Notes,
		Notes:        notes,
		Afflictions:  AfflictionSummary{Left: lf, Right: rf, Penalty: pen},
		Expression:   verdict,
	}, nil
}
