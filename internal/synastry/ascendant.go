package synastry

import (
	"fmt"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/chart"
)

// AscendantTable maps an ordered (left, right) ascendant pair to a score in
// [0, 1]. The table is not assumed to be symmetric.
type AscendantTable map[chart.Sign]map[chart.Sign]float64

// Score returns the table value for the ordered pair.
func (t AscendantTable) Score(a, b chart.Sign) (float64, bool) {
	row, ok := t[a]
	if !ok {
		return 0, false
	}
	v, ok := row[b]
	return v, ok
}

// Raw converts the table value to the [-1, 1] range.
func (t AscendantTable) Raw(a, b chart.Sign) (float64, bool) {
	v, ok := t.Score(a, b)
	if !ok {
		return 0, false
	}
	return clip((v-0.5)*2, -1, 1), true
}

func (t AscendantTable) validate() error {
	for a, row := range t {
		if a.Index() < 0 {
			return fmt.Errorf("ascendant table: unknown sign %q", a)
		}
		for b, v := range row {
			if b.Index() < 0 {
				return fmt.Errorf("ascendant table: unknown sign %q", b)
			}
			if v < 0 || v > 1 {
				return fmt.Errorf("ascendant table: %s/%s score %.3f outside [0,1]", a, b, v)
			}
		}
	}
	return nil
}

func (a *Analyzer) ascendantModule(left, right chart.Record) ModuleScore {
	m := a.module(ModuleAscendant, "Ascendant compatibility")
	la, lok := chart.AscendantSign(left)
	ra, rok := chart.AscendantSign(right)
	if !lok || !rok {
		m.Details = append(m.Details, "ascendant missing in one of the charts")
		return m.finish()
	}
	raw, ok := a.rules.Ascendant.Raw(la, ra)
	if !ok {
		m.Details = append(m.Details, fmt.Sprintf("no table entry for %s/%s", la.Name(), ra.Name()))
		return m.finish()
	}
	m.Raw = raw
	m.Details = append(m.Details, fmt.Sprintf("%s rising with %s rising: %+.2f", la.Name(), ra.Name(), raw))
	return m.finish()
}
