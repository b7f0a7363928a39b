package synastry

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

var (
	// ErrBadDateFormat marks a birth date no supported format could read.
	ErrBadDateFormat = stderrors.New("bad date format")
	// ErrDigitInvariant marks a digit reduction that left the 1..9 range.
	ErrDigitInvariant = stderrors.New("digit reduction out of range")
)

// BirthDate holds the calendar fields numerology reads. No calendar validation
// beyond field ranges is done; a zero day is representable.
type BirthDate struct {
	Day   int
	Month int
	Year  int
}

var (
	isoDate    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ]\d{1,2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?$`)
	dottedDate = regexp.MustCompile(`^(\d{1,2})([./-])(\d{1,2})([./-])(\d{4})$`)
	lenientYMD = regexp.MustCompile(`(\d{4})\D+(\d{1,2})\D+(\d{1,2})`)
	lenientDMY = regexp.MustCompile(`(\d{1,2})\D+(\d{1,2})\D+(\d{2,4})`)
)

// ParseBirthDate reads the strict formats: ISO 8601 with optional time and
// offset, and D.M.Y / D-M-Y / D/M/Y with one- or two-digit day and month.
func ParseBirthDate(s string) (BirthDate, error) {
	s = strings.TrimSpace(s)
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return newBirthDate(s, m[3], m[2], m[1])
	}
	if m := dottedDate.FindStringSubmatch(s); m != nil && m[2] == m[4] {
		return newBirthDate(s, m[1], m[3], m[5])
	}
	return BirthDate{}, badDate(s)
}

// parseBirthDateLenient tries the strict formats and then any
// year-month-day or day-month-year digit groups found in s.
func parseBirthDateLenient(s string) (BirthDate, error) {
	if d, err := ParseBirthDate(s); err == nil {
		return d, nil
	}
	if m := lenientYMD.FindStringSubmatch(s); m != nil {
		if d, err := newBirthDate(s, m[3], m[2], m[1]); err == nil {
			return d, nil
		}
	}
	if m := lenientDMY.FindStringSubmatch(s); m != nil {
		if d, err := newBirthDate(s, m[1], m[2], m[3]); err == nil {
			return d, nil
		}
	}
	return BirthDate{}, badDate(s)
}

func newBirthDate(src, day, month, year string) (BirthDate, error) {
	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	y, _ := strconv.Atoi(year)
	if d > 31 || m > 12 {
		return BirthDate{}, badDate(src)
	}
	return BirthDate{Day: d, Month: m, Year: y}, nil
}

func badDate(s string) error {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("birth_date", stderrors.New(s))
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("unsupported birth date format %q", s)).
		WithDetails(errbuilder.NewErrDetails(errorMap)).
		WithCause(ErrBadDateFormat)
}

func digitInvariant(n int) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("digit reduction produced %d", n)).
		WithCause(ErrDigitInvariant)
}
