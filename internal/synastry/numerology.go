package synastry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NoDataMarker is returned when the expression table has no entry for a pair.
const NoDataMarker = "no data"

// CoarseNumerology compares the days of month of two birth dates. An
// unreadable date yields a neutral score with an explanatory note.
func CoarseNumerology(a, b string) (float64, []string) {
	da, errA := parseBirthDateLenient(a)
	db, errB := parseBirthDateLenient(b)
	if errA != nil || errB != nil {
		return 0, []string{"birth date unreadable, numerology neutral"}
	}
	raw := 0.0
	notes := []string{}
	if da.Day%2 == db.Day%2 {
		raw += 0.2
		notes = append(notes, fmt.Sprintf("days %d and %d share parity (+0.2)", da.Day, db.Day))
	}
	diff := da.Day - db.Day
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0, 9:
		raw += 0.2
		notes = append(notes, fmt.Sprintf("day difference %d (+0.2)", diff))
	case 1, 11:
		raw += 0.1
		notes = append(notes, fmt.Sprintf("day difference %d (+0.1)", diff))
	}
	if len(notes) == 0 {
		notes = append(notes, "no numerological link between birth days")
	}
	return clip(raw, -1, 1), notes
}

// ReduceDigits sums the decimal digits of n until a single digit remains. A
// zero reduces to 1, never 9.
func ReduceDigits(n int) (int, error) {
	if n < 0 {
		n = -n
	}
	for n > 9 {
		sum := 0
		for ; n > 0; n /= 10 {
			sum += n % 10
		}
		n = sum
	}
	if n == 0 {
		n = 1
	}
	if n < 1 || n > 9 {
		return 0, digitInvariant(n)
	}
	return n, nil
}

// ExpressionNumber reduces day and month of a birth date separately and then
// reduces their sum.
func ExpressionNumber(date string) (int, error) {
	d, err := parseBirthDateLenient(date)
	if err != nil {
		return 0, err
	}
	day, err := ReduceDigits(d.Day)
	if err != nil {
		return 0, err
	}
	month, err := ReduceDigits(d.Month)
	if err != nil {
		return 0, err
	}
	return ReduceDigits(day + month)
}

// ExpressionTable maps "a+b" expression-number pairs to lecture text.
type ExpressionTable map[string]string

// Lookup tries the ordered key and then the ascending mirror.
func (t ExpressionTable) Lookup(a, b int) (key, text string, ok bool) {
	key = pairKey(a, b)
	if text, ok = t[key]; ok {
		return key, text, true
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	key = pairKey(lo, hi)
	if text, ok = t[key]; ok {
		return key, text, true
	}
	return pairKey(a, b), NoDataMarker, false
}

func pairKey(a, b int) string {
	return strconv.Itoa(a) + "+" + strconv.Itoa(b)
}

func (t ExpressionTable) validate() error {
	for k := range t {
		parts := strings.Split(k, "+")
		if len(parts) != 2 {
			return fmt.Errorf("expression table: malformed key %q", k)
		}
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 1 || n > 9 {
				return fmt.Errorf("expression table: malformed key %q", k)
			}
		}
	}
	return nil
}

// Keys returns the table keys in sorted order.
func (t ExpressionTable) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExpressionVerdict is the expression-number comparison of a pair.
type ExpressionVerdict struct {
	Left  int    `json:"left"`
	Right int    `json:"right"`
	Key   string `json:"key"`
	Text  string `json:"text"`
	Found bool   `json:"found"`
	Score int    `json:"score"`
	Tier  string `json:"tier"`
}

// CompareExpression computes both expression numbers and scores the matching
// table text.
func CompareExpression(a, b string, table ExpressionTable, scorer TextScorer) (ExpressionVerdict, error) {
	ea, err := ExpressionNumber(a)
	if err != nil {
		return ExpressionVerdict{}, err
	}
	eb, err := ExpressionNumber(b)
	if err != nil {
		return ExpressionVerdict{}, err
	}
	v := ExpressionVerdict{Left: ea, Right: eb}
	v.Key, v.Text, v.Found = table.Lookup(ea, eb)
	if !v.Found {
		v.Score, v.Tier = 50, NoDataMarker
		return v, nil
	}
	v.Score, v.Tier = scorer.ScoreText(v.Text)
	return v, nil
}

func (a *Analyzer) numerologyModules(left, right Profile) ([]ModuleScore, *ExpressionVerdict, error) {
	if strings.TrimSpace(left.BirthDateTime) == "" || strings.TrimSpace(right.BirthDateTime) == "" {
		return nil, nil, nil
	}

	coarse := a.module(ModuleNumerology, "Birth-day numerology")
	coarse.Raw, coarse.Details = CoarseNumerology(left.BirthDateTime, right.BirthDateTime)

	verdict, err := CompareExpression(left.BirthDateTime, right.BirthDateTime, a.rules.Expression, a.rules.TextScorer)
	if err != nil {
		return nil, nil, err
	}
	expr := a.module(ModuleExpression, "Expression numbers")
	expr.Raw = float64(verdict.Score)/50 - 1
	expr.Details = append(expr.Details,
		fmt.Sprintf("expression numbers %d and %d (%s): %s, %d/100", verdict.Left, verdict.Right, verdict.Key, verdict.Tier, verdict.Score))
	scored := expr.finish()
	scored.Normalized = clip(float64(verdict.Score)/100, 0, 1)

	return []ModuleScore{coarse.finish(), scored}, &verdict, nil
}
