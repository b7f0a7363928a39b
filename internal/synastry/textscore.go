package synastry

import (
	"fmt"
	"sort"
	"strings"
)

// TextScorer turns an expression-table text into a 0–100 score and a tier
// name. Implementations must be deterministic.
type TextScorer interface {
	ScoreText(text string) (score int, tier string)
}

// KeywordWeight adds Weight to the score when Keyword occurs in the text.
type KeywordWeight struct {
	Keyword string `yaml:"keyword" json:"keyword"`
	Weight  int    `yaml:"weight" json:"weight"`
}

// Tier names the scores at or above Min.
type Tier struct {
	Min  int    `yaml:"min" json:"min"`
	Name string `yaml:"name" json:"name"`
}

// KeywordScorer starts from Base, adds the weight of every keyword present
// (each counted once, case-insensitive) and clamps to [0, 100].
type KeywordScorer struct {
	Base     int             `yaml:"base" json:"base"`
	Keywords []KeywordWeight `yaml:"keywords" json:"keywords"`
	Tiers    []Tier          `yaml:"tiers" json:"tiers"`
}

// ScoreText implements TextScorer.
func (k *KeywordScorer) ScoreText(text string) (int, string) {
	lower := strings.ToLower(text)
	score := k.Base
	for _, kw := range k.Keywords {
		if kw.Keyword != "" && strings.Contains(lower, strings.ToLower(kw.Keyword)) {
			score += kw.Weight
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, k.tier(score)
}

func (k *KeywordScorer) tier(score int) string {
	for _, t := range k.Tiers {
		if score >= t.Min {
			return t.Name
		}
	}
	return "unrated"
}

// Normalize sorts tiers from the highest threshold down and checks the
// configuration.
func (k *KeywordScorer) Normalize() error {
	if k.Base < 0 || k.Base > 100 {
		return fmt.Errorf("text scorer: base %d outside 0..100", k.Base)
	}
	if len(k.Tiers) == 0 {
		return fmt.Errorf("text scorer: no tiers configured")
	}
	sort.SliceStable(k.Tiers, func(i, j int) bool { return k.Tiers[i].Min > k.Tiers[j].Min })
	return nil
}
