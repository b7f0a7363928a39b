package synastry

import "github.com/ZanzyTHEbar/synastry-o-meter/internal/chart"

// Module keys. They double as keys of the weight table.
const (
	ModuleAscendant  = "ascendant"
	ModuleMoonMoon   = "moon_moon"
	ModuleSunSun     = "sun_sun"
	ModuleSunMoon    = "sun_moon"
	ModuleVenusMars  = "venus_mars"
	ModuleOverlays   = "overlays"
	ModuleNumerology = "numerology"
	ModuleExpression = "expression"
)

// ModuleKeys lists every module in report order.
var ModuleKeys = []string{
	ModuleAscendant, ModuleMoonMoon, ModuleSunSun, ModuleSunMoon,
	ModuleVenusMars, ModuleOverlays, ModuleNumerology, ModuleExpression,
}

// crossGenderModules only apply to opposite-gender pairs.
var crossGenderModules = map[string]bool{ModuleSunMoon: true, ModuleVenusMars: true}

// Profile holds the profile fields the scoring core reads.
type Profile struct {
	BirthDateTime string `json:"birthDateTime,omitempty"`
	Gender        Gender `json:"gender,omitempty"`
}

// Party is one side of a pairing.
type Party struct {
	Chart   chart.Record `json:"chart"`
	Profile Profile      `json:"profile"`
}

// Input is a pair of parties. Left is the evaluating side in directional
// scoring.
type Input struct {
	Left  Party `json:"left"`
	Right Party `json:"right"`
}

func (in Input) party(i int) Party {
	if i == 0 {
		return in.Left
	}
	return in.Right
}

// ModuleScore is the outcome of a single sub-model.
type ModuleScore struct {
	Key        string   `json:"key"`
	Title      string   `json:"title"`
	Weight     float64  `json:"weight"`
	Raw        float64  `json:"raw_score"`
	Normalized float64  `json:"normalized_score"`
	Details    []string `json:"details"`
}

// DirectionalResult is the score as seen from the left party.
type DirectionalResult struct {
	Percent     int                `json:"percent"`
	BasePercent int                `json:"base_percent"`
	Penalty     int                `json:"affliction_penalty"`
	Bonus       int                `json:"bonus"`
	Orientation Orientation        `json:"orientation"`
	Modules     []ModuleScore      `json:"modules"`
	Notes       []string           `json:"notes"`
	Afflictions AfflictionSummary  `json:"afflictions"`
	Expression  *ExpressionVerdict `json:"expression,omitempty"`
}

// Report is the symmetric display variant.
type Report struct {
	Percent      int                `json:"percent"`
	BasePercent  int                `json:"base_percent"`
	Penalty      int                `json:"affliction_penalty"`
	Bonus        int                `json:"bonus"`
	Orientation  Orientation        `json:"orientation"`
	Modules      []ModuleScore      `json:"modules"`
	OverlayNotes []string           `json:"overlay_notes"`
	Notes        []string           `json:"notes"`
	Afflictions  AfflictionSummary  `json:"afflictions"`
	Expression   *ExpressionVerdict `json:"expression,omitempty"`
}

// AfflictionSummary carries the affliction findings of both sides together
// with the derived penalty.
type AfflictionSummary struct {
	Left    []Finding     `json:"left"`
	Right   []Finding     `json:"right"`
	Penalty PenaltyResult `json:"penalty"`
}

// Module looks up a module by key.
func (r DirectionalResult) Module(key string) (ModuleScore, bool) {
	return findModule(r.Modules, key)
}

// Module looks up a module by key.
func (r Report) Module(key string) (ModuleScore, bool) {
	return findModule(r.Modules, key)
}

func findModule(mods []ModuleScore, key string) (ModuleScore, bool) {
	for _, m := range mods {
		if m.Key == key {
			return m, true
		}
	}
	return ModuleScore{}, false
}
