package synastry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/chart"
)

// Frame is the reference point an affliction is counted from.
type Frame string

const (
	FrameAscendant Frame = "ascendant"
	FrameLunar     Frame = "lunar"
)

// AfflictedHouses are the houses that make Mars afflicting.
var AfflictedHouses = []int{1, 4, 7, 8, 12}

func isAfflictedHouse(h int) bool {
	for _, a := range AfflictedHouses {
		if a == h {
			return true
		}
	}
	return false
}

// jupiterAspects are the house offsets Jupiter aspects (5th, 7th, 9th), plus
// conjunction.
var jupiterAspects = []int{0, 4, 6, 8}

// Finding is Mars afflicting from one reference frame.
type Finding struct {
	Frame       Frame      `json:"frame"`
	House       int        `json:"house"`
	Sign        chart.Sign `json:"sign,omitempty"`
	Mitigations []string   `json:"mitigations"`
}

// Mitigation is a sign/house coincidence that softens Mars. An empty Houses
// list applies to every afflicted house. "{house}" in Reason is replaced by
// the house number.
type Mitigation struct {
	Sign   chart.Sign `yaml:"sign" json:"sign"`
	Houses []int      `yaml:"houses" json:"houses,omitempty"`
	Reason string     `yaml:"reason" json:"reason"`
}

// MitigationTable lists every known coincidence.
type MitigationTable []Mitigation

// For returns the reasons that apply to Mars in sign at house.
func (t MitigationTable) For(sign chart.Sign, house int) []string {
	out := []string{}
	if sign == "" {
		return out
	}
	for _, m := range t {
		if m.Sign != sign {
			continue
		}
		if len(m.Houses) > 0 && !containsInt(m.Houses, house) {
			continue
		}
		out = append(out, strings.ReplaceAll(m.Reason, "{house}", strconv.Itoa(house)))
	}
	return out
}

func (t MitigationTable) validate() error {
	for i, m := range t {
		if m.Sign.Index() < 0 {
			return fmt.Errorf("mitigation %d: unknown sign %q", i, m.Sign)
		}
		for _, h := range m.Houses {
			if !isAfflictedHouse(h) {
				return fmt.Errorf("mitigation %d: house %d is not an afflicted house", i, h)
			}
		}
		if m.Reason == "" {
			return fmt.Errorf("mitigation %d: empty reason", i)
		}
	}
	return nil
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// relativeHouse counts the house of x from the house of ref, 1-based.
func relativeHouse(x, ref int) int {
	return ((x-ref)%12+12)%12 + 1
}

// AnalyzeAffliction evaluates Mars from the ascendant and from the Moon.
func AnalyzeAffliction(rec chart.Record, table MitigationTable) []Finding {
	findings := []Finding{}
	mars := chart.Lookup(rec, chart.Mars)
	if !mars.HasHouse() {
		return findings
	}
	if isAfflictedHouse(mars.House) {
		findings = append(findings, Finding{
			Frame:       FrameAscendant,
			House:       mars.House,
			Sign:        mars.Sign,
			Mitigations: table.For(mars.Sign, mars.House),
		})
	}
	if moon := chart.Lookup(rec, chart.Moon); moon.HasHouse() {
		rel := relativeHouse(mars.House, moon.House)
		if isAfflictedHouse(rel) {
			findings = append(findings, Finding{
				Frame:       FrameLunar,
				House:       rel,
				Sign:        mars.Sign,
				Mitigations: table.For(mars.Sign, rel),
			})
		}
	}
	return findings
}

// MitigationFlags are the softening conditions the penalty model knows.
type MitigationFlags struct {
	Classical       bool `json:"classical"`
	JupiterAspect   bool `json:"jupiter_aspect"`
	MoonConjunction bool `json:"moon_conjunction"`
}

// DetectMitigations derives the flags for one chart from its findings and the
// positions of Jupiter and the Moon relative to Mars.
func DetectMitigations(rec chart.Record, findings []Finding) MitigationFlags {
	var f MitigationFlags
	for _, fd := range findings {
		if len(fd.Mitigations) > 0 {
			f.Classical = true
			break
		}
	}
	mars := chart.Lookup(rec, chart.Mars)
	if !mars.HasHouse() {
		return f
	}
	if jup := chart.Lookup(rec, chart.Jupiter); jup.HasHouse() {
		f.JupiterAspect = containsInt(jupiterAspects, relativeHouse(mars.House, jup.House)-1)
	}
	if moon := chart.Lookup(rec, chart.Moon); moon.HasHouse() {
		f.MoonConjunction = moon.House == mars.House
	}
	return f
}

func describeFindings(side string, fs []Finding) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		line := fmt.Sprintf("%s: Mars in house %d from the %s", side, f.House, f.Frame)
		if len(f.Mitigations) > 0 {
			line += " (mitigated: " + strings.Join(f.Mitigations, "; ") + ")"
		}
		out = append(out, line)
	}
	return out
}
