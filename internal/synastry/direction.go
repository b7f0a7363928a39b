package synastry

import (
	"encoding/json"
	"strings"
)

// Gender of a party. The zero value means unspecified.
type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// ParseGender normalizes a free-form gender code; anything unrecognised is
// GenderUnknown.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "man":
		return GenderMale
	case "female", "f", "woman":
		return GenderFemale
	}
	return GenderUnknown
}

// UnmarshalJSON accepts any string and normalizes it.
func (g *Gender) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*g = GenderUnknown
		return nil
	}
	*g = ParseGender(s)
	return nil
}

// Orientation describes the gender pairing of left and right.
type Orientation string

const (
	OrientationUnspecified Orientation = "unspecified"
	OrientationSame        Orientation = "same"
	OrientationMaleFemale  Orientation = "male_female"
	OrientationFemaleMale  Orientation = "female_male"
)

// OrientationOf derives the orientation of a left/right gender pair.
func OrientationOf(left, right Gender) Orientation {
	switch {
	case left == GenderUnknown || right == GenderUnknown:
		return OrientationUnspecified
	case left == right:
		return OrientationSame
	case left == GenderMale:
		return OrientationMaleFemale
	default:
		return OrientationFemaleMale
	}
}

// Opposite reports whether cross-gender modules apply.
func (o Orientation) Opposite() bool {
	return o == OrientationMaleFemale || o == OrientationFemaleMale
}

// ChooseDirection returns the party indexes (0 = left, 1 = right) acting as
// source (male) and target (female). ok is false unless the pair is opposite.
func ChooseDirection(o Orientation) (source, target int, ok bool) {
	switch o {
	case OrientationMaleFemale:
		return 0, 1, true
	case OrientationFemaleMale:
		return 1, 0, true
	}
	return -1, -1, false
}
