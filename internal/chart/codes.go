package chart

import "strings"

// Body is one of the nine classical grahas.
type Body string

const (
	Sun     Body = "Su"
	Moon    Body = "Mo"
	Mars    Body = "Ma"
	Mercury Body = "Me"
	Jupiter Body = "Ju"
	Venus   Body = "Ve"
	Saturn  Body = "Sa"
	Rahu    Body = "Ra"
	Ketu    Body = "Ke"
)

// Bodies lists every body in canonical order.
var Bodies = []Body{Sun, Moon, Mars, Mercury, Jupiter, Venus, Saturn, Rahu, Ketu}

var bodyAliases = map[string]Body{
	"su": Sun, "sun": Sun, "surya": Sun,
	"mo": Moon, "moon": Moon, "chandra": Moon,
	"ma": Mars, "mars": Mars, "mangal": Mars, "kuja": Mars,
	"me": Mercury, "mercury": Mercury, "budha": Mercury,
	"ju": Jupiter, "jupiter": Jupiter, "guru": Jupiter,
	"ve": Venus, "venus": Venus, "shukra": Venus,
	"sa": Saturn, "saturn": Saturn, "shani": Saturn,
	"ra": Rahu, "rahu": Rahu, "north node": Rahu, "northnode": Rahu, "true node": Rahu,
	"ke": Ketu, "ketu": Ketu, "south node": Ketu, "southnode": Ketu,
}

// ParseBody resolves a body code or name, case-insensitively.
func ParseBody(s string) (Body, bool) {
	b, ok := bodyAliases[strings.ToLower(strings.TrimSpace(s))]
	return b, ok
}

// Name returns the English name of the body.
func (b Body) Name() string {
	switch b {
	case Sun:
		return "Sun"
	case Moon:
		return "Moon"
	case Mars:
		return "Mars"
	case Mercury:
		return "Mercury"
	case Jupiter:
		return "Jupiter"
	case Venus:
		return "Venus"
	case Saturn:
		return "Saturn"
	case Rahu:
		return "Rahu"
	case Ketu:
		return "Ketu"
	}
	return string(b)
}

// Sign is a zodiacal sign code.
type Sign string

const (
	Aries       Sign = "Ar"
	Taurus      Sign = "Ta"
	Gemini      Sign = "Ge"
	Cancer      Sign = "Cn"
	Leo         Sign = "Le"
	Virgo       Sign = "Vi"
	Libra       Sign = "Li"
	Scorpio     Sign = "Sc"
	Sagittarius Sign = "Sg"
	Capricorn   Sign = "Cp"
	Aquarius    Sign = "Aq"
	Pisces      Sign = "Pi"
)

// Signs lists the signs in zodiacal order; the slice index is the sign index.
var Signs = []Sign{Aries, Taurus, Gemini, Cancer, Leo, Virgo, Libra, Scorpio, Sagittarius, Capricorn, Aquarius, Pisces}

var signNames = []string{"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo", "Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces"}

var signAliases = func() map[string]Sign {
	m := make(map[string]Sign, 36)
	for i, s := range Signs {
		m[strings.ToLower(string(s))] = s
		m[strings.ToLower(signNames[i])] = s
		m[strings.ToLower(signNames[i][:3])] = s
	}
	// common alternates
	m["cap"] = Capricorn
	m["sag"] = Sagittarius
	m["ca"] = Cancer
	m["sco"] = Scorpio
	return m
}()

// ParseSign resolves a sign code or name, case-insensitively.
func ParseSign(s string) (Sign, bool) {
	sign, ok := signAliases[strings.ToLower(strings.TrimSpace(s))]
	return sign, ok
}

// Index returns the zodiacal index 0–11, or -1 for an unknown sign.
func (s Sign) Index() int {
	for i, v := range Signs {
		if v == s {
			return i
		}
	}
	return -1
}

// Name returns the English name of the sign.
func (s Sign) Name() string {
	if i := s.Index(); i >= 0 {
		return signNames[i]
	}
	return string(s)
}

// SignAt returns the sign for any integer index, wrapping modulo 12.
func SignAt(i int) Sign {
	return Signs[((i%12)+12)%12]
}
