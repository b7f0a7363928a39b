package synastry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/chart"
)

func leftChart() chart.Record {
	return buildChart(chart.Leo,
		placement{chart.Sun, chart.Leo, 1},
		placement{chart.Moon, chart.Scorpio, 4},
		placement{chart.Mars, chart.Capricorn, 6},
	)
}

func rightChart() chart.Record {
	return buildChart(chart.Aries,
		placement{chart.Sun, chart.Leo, 5},
		placement{chart.Moon, chart.Cancer, 4},
		placement{chart.Mars, chart.Virgo, 6},
		placement{chart.Venus, chart.Capricorn, 10},
	)
}

func pair(lg, rg Gender) Input {
	return Input{
		Left:  Party{Chart: leftChart(), Profile: Profile{Gender: lg}},
		Right: Party{Chart: rightChart(), Profile: Profile{Gender: rg}},
	}
}

func moduleKeys(mods []ModuleScore) []string {
	keys := make([]string, 0, len(mods))
	for _, m := range mods {
		keys = append(keys, m.Key)
	}
	return keys
}

func TestNewAnalyzerValidates(t *testing.T) {
	rules := testRules(t)
	rules.Weights[ModuleAscendant] = 0.5
	_, err := NewAnalyzer(rules)
	assert.Error(t, err)

	rules = testRules(t)
	delete(rules.Weights, ModuleExpression)
	_, err = NewAnalyzer(rules)
	assert.Error(t, err)

	rules = testRules(t)
	rules.Weights["extra"] = 0
	_, err = NewAnalyzer(rules)
	assert.Error(t, err)

	_, err = NewAnalyzer(nil)
	assert.Error(t, err)
}

func TestDirectionalSameGender(t *testing.T) {
	a := testAnalyzer(t)

	for _, in := range []Input{pair(GenderMale, GenderMale), pair(GenderUnknown, GenderFemale)} {
		res, err := a.Directional(in)
		require.NoError(t, err)

		assert.Equal(t, []string{ModuleAscendant, ModuleMoonMoon, ModuleSunSun}, moduleKeys(res.Modules))
		_, ok := res.Module(ModuleSunMoon)
		assert.False(t, ok)
		_, ok = res.Module(ModuleVenusMars)
		assert.False(t, ok)

		assert.Equal(t, 42, res.BasePercent)
		assert.Equal(t, 42, res.Percent)
		assert.Equal(t, 0, res.Penalty)
		assert.Equal(t, 0, res.Bonus)
		assert.Nil(t, res.Expression)
	}
}

// Directional never carries the overlay module, and same-gender pairs also
// lack the cross modules, so even identical charts stay below 100.
func TestDirectionalIsRelativeScore(t *testing.T) {
	rules := testRules(t)
	rules.Ascendant[chart.Leo][chart.Leo] = 1.0
	a, err := NewAnalyzer(rules)
	require.NoError(t, err)

	twin := func() chart.Record {
		return buildChart(chart.Leo,
			placement{chart.Sun, chart.Leo, 1},
			placement{chart.Moon, chart.Leo, 1},
			placement{chart.Mars, chart.Sagittarius, 5},
			placement{chart.Venus, chart.Sagittarius, 5},
		)
	}
	in := func(lg, rg Gender) Input {
		return Input{
			Left:  Party{Chart: twin(), Profile: Profile{Gender: lg}},
			Right: Party{Chart: twin(), Profile: Profile{Gender: rg}},
		}
	}

	same, err := a.Directional(in(GenderFemale, GenderFemale))
	require.NoError(t, err)
	_, ok := same.Module(ModuleOverlays)
	assert.False(t, ok)
	// ascendant 0.20 + moon_moon 0.15 + sun_sun 0.10*0.9
	assert.Equal(t, 44, same.BasePercent)

	opp, err := a.Directional(in(GenderMale, GenderFemale))
	require.NoError(t, err)
	_, ok = opp.Module(ModuleOverlays)
	assert.False(t, ok)
	assert.Equal(t, 74, opp.BasePercent)
	assert.Equal(t, 10, opp.Bonus)
	assert.Equal(t, 84, opp.Percent)
}

func TestDirectionalOppositeGender(t *testing.T) {
	a := testAnalyzer(t)

	res, err := a.Directional(pair(GenderMale, GenderFemale))
	require.NoError(t, err)
	assert.Equal(t, OrientationMaleFemale, res.Orientation)
	assert.Equal(t, []string{ModuleAscendant, ModuleMoonMoon, ModuleSunSun, ModuleSunMoon, ModuleVenusMars}, moduleKeys(res.Modules))
	assert.Equal(t, 68, res.Percent)

	sm, _ := res.Module(ModuleSunMoon)
	assert.InDelta(t, 0.63, sm.Raw, 1e-9)
	vm, _ := res.Module(ModuleVenusMars)
	assert.InDelta(t, 0.9, vm.Raw, 1e-9)

	// The male side stays the source when the genders swap sides.
	swapped, err := a.Directional(pair(GenderFemale, GenderMale))
	require.NoError(t, err)
	sm, _ = swapped.Module(ModuleSunMoon)
	assert.InDelta(t, -0.27, sm.Raw, 1e-9)

	for _, m := range res.Modules {
		assert.True(t, m.Raw >= -1 && m.Raw <= 1)
		assert.True(t, m.Normalized >= 0 && m.Normalized <= 1)
		assert.InDelta(t, normalize01(m.Raw), m.Normalized, 1e-9)
	}
}

func TestDirectionalBonus(t *testing.T) {
	a := testAnalyzer(t)
	in := pair(GenderMale, GenderFemale)
	in.Right.Chart = buildChart(chart.Aries,
		placement{chart.Sun, chart.Cancer, 4},
		placement{chart.Moon, chart.Cancer, 4},
		placement{chart.Mars, chart.Virgo, 6},
		placement{chart.Venus, chart.Capricorn, 10},
	)

	res, err := a.Directional(in)
	require.NoError(t, err)
	assert.Equal(t, 67, res.BasePercent)
	assert.Equal(t, 10, res.Bonus)
	assert.Equal(t, 77, res.Percent)
	assert.Contains(t, res.Notes, "bonus +10: left Moon shares a house number with right Sun")

	b, _ := a.bonus(in, OrientationMaleFemale, 95)
	assert.Equal(t, 5, b)
	b, _ = a.bonus(in, OrientationMaleFemale, 100)
	assert.Equal(t, 0, b)
	b, _ = a.bonus(in, OrientationSame, 10)
	assert.Equal(t, 0, b)
}

func TestDirectionalAffliction(t *testing.T) {
	a := testAnalyzer(t)
	in := pair(GenderMale, GenderFemale)
	in.Left.Chart = buildChart(chart.Leo,
		placement{chart.Sun, chart.Leo, 1},
		placement{chart.Moon, chart.Scorpio, 4},
		placement{chart.Mars, chart.Aries, 1},
	)

	res, err := a.Directional(in)
	require.NoError(t, err)
	assert.Equal(t, 67, res.BasePercent)
	assert.Equal(t, -11, res.Penalty)
	assert.Equal(t, 56, res.Percent)
	require.Len(t, res.Afflictions.Left, 1)
	assert.Empty(t, res.Afflictions.Right)
	assert.Contains(t, res.Notes, "left: Mars in house 1 from the ascendant (mitigated: Mars in its own sign in house 1)")

	// Seen from the unafflicted side there is no penalty.
	rev, err := a.Directional(Input{Left: in.Right, Right: in.Left})
	require.NoError(t, err)
	assert.Equal(t, 0, rev.Penalty)
	assert.Equal(t, rev.BasePercent, rev.Percent)

	// The report penalizes regardless of order.
	r1, err := a.Report(in)
	require.NoError(t, err)
	r2, err := a.Report(Input{Left: in.Right, Right: in.Left})
	require.NoError(t, err)
	assert.Equal(t, -11, r1.Penalty)
	assert.Equal(t, r1.Penalty, r2.Penalty)
}

func TestDirectionalNumerology(t *testing.T) {
	a := testAnalyzer(t)
	in := pair(GenderMale, GenderMale)
	in.Left.Profile.BirthDateTime = "24.12.1980"
	in.Right.Profile.BirthDateTime = "1900-09-10T06:00:00Z"

	res, err := a.Directional(in)
	require.NoError(t, err)
	require.NotNil(t, res.Expression)
	assert.Equal(t, 9, res.Expression.Left)
	assert.Equal(t, 1, res.Expression.Right)
	assert.Equal(t, "ideal", res.Expression.Tier)

	expr, ok := res.Module(ModuleExpression)
	require.True(t, ok)
	assert.InDelta(t, 0.9, expr.Normalized, 1e-9)
	_, ok = res.Module(ModuleNumerology)
	assert.True(t, ok)

	in.Right.Profile.BirthDateTime = "  "
	res, err = a.Directional(in)
	require.NoError(t, err)
	assert.Nil(t, res.Expression)
	_, ok = res.Module(ModuleExpression)
	assert.False(t, ok)
}

func TestBadBirthDatePropagates(t *testing.T) {
	a := testAnalyzer(t)
	in := pair(GenderMale, GenderFemale)
	in.Left.Profile.BirthDateTime = "sometime in spring"
	in.Right.Profile.BirthDateTime = "21.02.1987"

	_, err := a.Directional(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadDateFormat))

	_, err = a.Report(in)
	assert.True(t, errors.Is(err, ErrBadDateFormat))
}

func TestReport(t *testing.T) {
	a := testAnalyzer(t)

	in := pair(GenderMale, GenderMale)
	in.Left.Chart = buildChart(chart.Leo,
		placement{chart.Sun, chart.Leo, 1},
		placement{chart.Moon, chart.Scorpio, 4},
		placement{chart.Venus, chart.Aquarius, 7},
	)

	rep, err := a.Report(in)
	require.NoError(t, err)
	assert.Equal(t, []string{ModuleAscendant, ModuleMoonMoon, ModuleSunSun, ModuleOverlays}, moduleKeys(rep.Modules))
	// Right's ascendant is Aries, so Venus in Aquarius lands in its eleventh.
	assert.Empty(t, rep.OverlayNotes)
	assert.NotNil(t, rep.OverlayNotes)

	in.Right.Chart = buildChart(chart.Leo,
		placement{chart.Sun, chart.Leo, 5},
		placement{chart.Moon, chart.Pisces, 8},
	)
	rep, err = a.Report(in)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"[left] Venus in house 7 (+6) Venus in the seventh: harmony",
		"[right] Moon in house 8 (-4) Moon in the eighth: jealousy",
	}, rep.OverlayNotes)
	ov, ok := rep.Module(ModuleOverlays)
	require.True(t, ok)
	assert.InDelta(t, 2.0/60, ov.Raw, 1e-9)

	opp, err := a.Report(pair(GenderFemale, GenderMale))
	require.NoError(t, err)
	assert.Equal(t, []string{ModuleAscendant, ModuleMoonMoon, ModuleSunSun, ModuleSunMoon, ModuleVenusMars, ModuleOverlays}, moduleKeys(opp.Modules))
	sm, _ := opp.Module(ModuleSunMoon)
	assert.Len(t, sm.Details, 2)
	assert.True(t, opp.Percent >= 0 && opp.Percent <= 100)
}

func TestMissingDataIsNeutral(t *testing.T) {
	a := testAnalyzer(t)
	res, err := a.Directional(Input{
		Left:  Party{Chart: chart.Record{}, Profile: Profile{Gender: GenderMale}},
		Right: Party{Chart: chart.Record{"garbage": []any{1, "x"}}, Profile: Profile{Gender: GenderFemale}},
	})
	require.NoError(t, err)
	for _, m := range res.Modules {
		assert.Equal(t, 0.0, m.Raw, m.Key)
		assert.NotEmpty(t, m.Details, m.Key)
	}
	// Weights are not renormalized over the modules that ran.
	assert.InDelta(t, 38, res.Percent, 1)
}
