package synastry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/chart"
)

func TestAffinity(t *testing.T) {
	tests := []struct {
		d    int
		want float64
	}{
		{0, 1.0}, {1, 0.3}, {2, 0.4}, {3, 0.7}, {4, 0.9}, {5, -0.3},
		{6, 0.6}, {7, -0.6}, {8, 0.9}, {9, 0.7}, {10, 0.5}, {11, -0.3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Affinity(tt.d), 1e-9, "distance %d", tt.d)
	}
}

func TestAffinityIsPeriodic(t *testing.T) {
	for d := -30; d <= 30; d++ {
		assert.Equal(t, Affinity(d), Affinity(d+12), "distance %d", d)
		assert.True(t, Affinity(d) >= -1 && Affinity(d) <= 1)
	}
	assert.Equal(t, Affinity(9), Affinity(-3))
}

func TestDampen(t *testing.T) {
	assert.Equal(t, 1.0, dampen(1.0))
	assert.Equal(t, -1.0, dampen(-1.0))
	assert.InDelta(t, 0.63, dampen(0.7), 1e-9)
	assert.InDelta(t, -0.54, dampen(-0.6), 1e-9)
}

func TestNormalizeAndClamp(t *testing.T) {
	assert.Equal(t, 0.0, normalize01(-1))
	assert.Equal(t, 0.5, normalize01(0))
	assert.Equal(t, 1.0, normalize01(3))
	assert.Equal(t, 0, clampPercent(-4))
	assert.Equal(t, 100, clampPercent(130))
	assert.Equal(t, 42, clampPercent(42))
}

func TestAscendantRawRange(t *testing.T) {
	rules := testRules(t)
	for _, a := range chart.Signs {
		for _, b := range chart.Signs {
			raw, ok := rules.Ascendant.Raw(a, b)
			assert.True(t, ok)
			assert.True(t, raw >= -1 && raw <= 1, "%s/%s raw %f", a, b, raw)
		}
	}

	raw, ok := rules.Ascendant.Raw(chart.Leo, chart.Aries)
	assert.True(t, ok)
	assert.InDelta(t, 0.8, raw, 1e-9)

	// Asymmetric entries are honored in order.
	raw, _ = rules.Ascendant.Raw(chart.Aries, chart.Leo)
	assert.InDelta(t, 0.4, raw, 1e-9)

	_, ok = AscendantTable{}.Raw(chart.Leo, chart.Aries)
	assert.False(t, ok)
}

func TestOrientation(t *testing.T) {
	tests := []struct {
		left, right Gender
		want        Orientation
		src, dst    int
		opposite    bool
	}{
		{GenderMale, GenderFemale, OrientationMaleFemale, 0, 1, true},
		{GenderFemale, GenderMale, OrientationFemaleMale, 1, 0, true},
		{GenderMale, GenderMale, OrientationSame, -1, -1, false},
		{GenderFemale, GenderUnknown, OrientationUnspecified, -1, -1, false},
		{GenderUnknown, GenderUnknown, OrientationUnspecified, -1, -1, false},
	}
	for _, tt := range tests {
		o := OrientationOf(tt.left, tt.right)
		assert.Equal(t, tt.want, o)
		assert.Equal(t, tt.opposite, o.Opposite())
		src, dst, ok := ChooseDirection(o)
		assert.Equal(t, tt.opposite, ok)
		assert.Equal(t, tt.src, src)
		assert.Equal(t, tt.dst, dst)
	}
}

func TestParseGender(t *testing.T) {
	assert.Equal(t, GenderMale, ParseGender(" M "))
	assert.Equal(t, GenderFemale, ParseGender("Woman"))
	assert.Equal(t, GenderUnknown, ParseGender("x"))

	var g Gender
	assert.NoError(t, g.UnmarshalJSON([]byte(`"F"`)))
	assert.Equal(t, GenderFemale, g)
	assert.NoError(t, g.UnmarshalJSON([]byte(`42`)))
	assert.Equal(t, GenderUnknown, g)
}
