// Package ruleset loads the static scoring tables. The stock tables are
// embedded in the binary; a directory of YAML files with the same names can
// override any subset of them.
package ruleset

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
)

//go:embed data/*.yaml
var assets embed.FS

// Asset file names. An override directory uses the same names.
const (
	RulesFile       = "rules.yaml"
	AscendantFile   = "ascendant.yaml"
	OverlaysFile    = "overlays.yaml"
	MitigationsFile = "mitigations.yaml"
	ExpressionFile  = "expression.yaml"
)

// Files lists every asset in load order.
var Files = []string{RulesFile, AscendantFile, OverlaysFile, MitigationsFile, ExpressionFile}

type rulesDoc struct {
	Weights synastry.Weights        `yaml:"weights"`
	Penalty *synastry.PenaltyConfig `yaml:"penalty"`
	Bonus   *int                    `yaml:"bonus"`
}

type ascendantDoc struct {
	Version string                  `yaml:"version"`
	Table   synastry.AscendantTable `yaml:"table"`
}

type overlaysDoc struct {
	Rules []synastry.OverlayRule `yaml:"rules"`
}

type mitigationsDoc struct {
	Mitigations synastry.MitigationTable `yaml:"mitigations"`
}

type expressionDoc struct {
	Scorer synastry.KeywordScorer   `yaml:"scorer"`
	Pairs  synastry.ExpressionTable `yaml:"pairs"`
}

// source resolves an asset name to its bytes.
type source interface {
	read(name string) ([]byte, string, error)
}

type embedded struct{}

func (embedded) read(name string) ([]byte, string, error) {
	b, err := assets.ReadFile("data/" + name)
	return b, "embedded:" + name, err
}

// layered prefers files in dir and falls back to the embedded copy.
type layered struct {
	dir string
}

func (l layered) read(name string) ([]byte, string, error) {
	path := filepath.Join(l.dir, name)
	b, err := os.ReadFile(path)
	if err == nil {
		return b, path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, path, err
	}
	return embedded{}.read(name)
}

// LoadDefault builds the rule set from the embedded tables.
func LoadDefault() (*synastry.RuleSet, error) {
	return load(embedded{})
}

// LoadDir builds the rule set from dir, using the embedded table for any file
// dir does not contain. An empty dir means LoadDefault.
func LoadDir(dir string) (*synastry.RuleSet, error) {
	if dir == "" {
		return LoadDefault()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, loadError(dir, err)
	}
	if !info.IsDir() {
		return nil, loadError(dir, fmt.Errorf("not a directory"))
	}
	return load(layered{dir: dir})
}

func load(src source) (*synastry.RuleSet, error) {
	var (
		rules rulesDoc
		asc   ascendantDoc
		ovl   overlaysDoc
		mit   mitigationsDoc
		expr  expressionDoc
	)
	docs := map[string]any{
		RulesFile:       &rules,
		AscendantFile:   &asc,
		OverlaysFile:    &ovl,
		MitigationsFile: &mit,
		ExpressionFile:  &expr,
	}
	for _, name := range Files {
		if err := decode(src, name, docs[name]); err != nil {
			return nil, err
		}
	}

	overlays, err := synastry.NewOverlayRules(ovl.Rules)
	if err != nil {
		return nil, loadError(OverlaysFile, err)
	}
	scorer := expr.Scorer
	if err := scorer.Normalize(); err != nil {
		return nil, loadError(ExpressionFile, err)
	}

	penalty := synastry.DefaultPenaltyConfig()
	if rules.Penalty != nil {
		penalty = *rules.Penalty
	}
	bonus := 0
	if rules.Bonus != nil {
		bonus = *rules.Bonus
	}

	rs := &synastry.RuleSet{
		Version:     asc.Version,
		Weights:     rules.Weights,
		Ascendant:   asc.Table,
		Overlays:    overlays,
		Mitigations: mit.Mitigations,
		Expression:  expr.Pairs,
		TextScorer:  &scorer,
		Penalty:     penalty,
		Bonus:       bonus,
	}
	if err := rs.Validate(); err != nil {
		return nil, loadError("rule set", err)
	}
	return rs, nil
}

func decode(src source, name string, dst any) error {
	b, origin, err := src.read(name)
	if err != nil {
		return loadError(origin, err)
	}
	if err := yaml.Unmarshal(b, dst); err != nil {
		return loadError(origin, err)
	}
	return nil
}

func loadError(origin string, cause error) error {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("source", errors.New(origin))
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("load rule set %s: %v", origin, cause)).
		WithDetails(errbuilder.NewErrDetails(errorMap)).
		WithCause(cause)
}
