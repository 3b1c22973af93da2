// Package vocab holds the controlled vocabularies used to normalize
// categorical fields: ions, solvents, deposition methods, atmospheres,
// architectures and layer functionalities.
package vocab

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
)

//go:embed vocab.yaml
var vocabYAML []byte

// Kind names one vocabulary.
type Kind string

const (
	Ions                 Kind = "ion"
	Solvents             Kind = "solvent"
	DepositionMethods    Kind = "deposition_method"
	Atmospheres          Kind = "atmosphere"
	Architectures        Kind = "architecture"
	LayerFunctionalities Kind = "layer_functionality"
)

// Kinds lists every vocabulary kind in a stable order.
var Kinds = []Kind{Ions, Solvents, DepositionMethods, Atmospheres, Architectures, LayerFunctionalities}

// Ion is one entry of the ion table.
type Ion struct {
	Abbreviation string `yaml:"abbreviation" json:"abbreviation"`
	Site         string `yaml:"site" json:"site"`
	Formula      string `yaml:"formula" json:"formula"`
	Charge       int    `yaml:"charge" json:"charge"`
	Name         string `yaml:"name" json:"name"`
}

// Vocabulary is the parsed data file.
type Vocabulary struct {
	Ions                 []Ion    `yaml:"ions"`
	Solvents             []string `yaml:"solvents"`
	DepositionMethods    []string `yaml:"deposition_methods"`
	Atmospheres          []string `yaml:"atmospheres"`
	Architectures        []string `yaml:"architectures"`
	LayerFunctionalities []string `yaml:"layer_functionalities"`

	// lowercase value -> canonical spelling, per kind
	index map[Kind]map[string]string
	ions  map[string]Ion
}

// Parse decodes a vocabulary document and builds its lookup indexes.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}

	v.index = make(map[Kind]map[string]string, len(Kinds))
	v.ions = make(map[string]Ion, len(v.Ions))

	abbrevs := make([]string, 0, len(v.Ions))
	for _, ion := range v.Ions {
		if ion.Abbreviation == "" {
			return nil, fmt.Errorf("parse vocabulary: ion without abbreviation")
		}
		if _, dup := v.ions[ion.Abbreviation]; dup {
			return nil, fmt.Errorf("parse vocabulary: duplicate ion %q", ion.Abbreviation)
		}
		v.ions[ion.Abbreviation] = ion
		abbrevs = append(abbrevs, ion.Abbreviation)
	}

	lists := map[Kind][]string{
		Ions:                 abbrevs,
		Solvents:             v.Solvents,
		DepositionMethods:    v.DepositionMethods,
		Atmospheres:          v.Atmospheres,
		Architectures:        v.Architectures,
		LayerFunctionalities: v.LayerFunctionalities,
	}
	for kind, values := range lists {
		m := make(map[string]string, len(values))
		for _, s := range values {
			m[strings.ToLower(s)] = s
		}
		v.index[kind] = m
	}
	return &v, nil
}

var (
	defaultOnce  sync.Once
	defaultVocab *Vocabulary
)

// Default returns the embedded vocabulary, parsed on first use.
func Default() *Vocabulary {
	defaultOnce.Do(func() {
		v, err := Parse(vocabYAML)
		if err != nil {
			panic(err) // embedded file is covered by tests
		}
		defaultVocab = v
	})
	return defaultVocab
}

// Lookup returns the canonical spelling of value in the given vocabulary.
// Matching ignores case and surrounding whitespace. Ion abbreviations are
// case-sensitive ("Cs" and "CS" are different species).
func (v *Vocabulary) Lookup(kind Kind, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if kind == Ions {
		if _, ok := v.ions[value]; ok {
			return value, true
		}
		return "", false
	}
	m, ok := v.index[kind]
	if !ok {
		return "", false
	}
	canonical, ok := m[strings.ToLower(value)]
	return canonical, ok
}

// Normalize maps value onto its vocabulary. Recognized values come back in
// canonical spelling, sentinels pass through, and anything else becomes
// "Unknown". The second result is false when value was replaced.
func (v *Vocabulary) Normalize(kind Kind, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if delimited.IsSentinel(value) {
		return value, true
	}
	if c, ok := v.Lookup(kind, value); ok {
		return c, true
	}
	return delimited.UnknownCategory, false
}

// Ion returns the ion table entry for an abbreviation.
func (v *Vocabulary) Ion(abbreviation string) (Ion, bool) {
	ion, ok := v.ions[strings.TrimSpace(abbreviation)]
	return ion, ok
}

// Values returns the canonical values of one vocabulary, sorted.
func (v *Vocabulary) Values(kind Kind) []string {
	m := v.index[kind]
	out := make([]string, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Lookup is Default().Lookup.
func Lookup(kind Kind, value string) (string, bool) {
	return Default().Lookup(kind, value)
}

// Normalize is Default().Normalize.
func Normalize(kind Kind, value string) (string, bool) {
	return Default().Normalize(kind, value)
}

// IonByAbbreviation is Default().Ion.
func IonByAbbreviation(abbreviation string) (Ion, bool) {
	return Default().Ion(abbreviation)
}
