// Package concentration classifies concentration strings such as "0.2 M",
// "5 wt%" or "10 mg/ml" into one of four physical quantity kinds.
package concentration

import (
	"fmt"
	"strings"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/units"
)

// Kind is the physical kind of a concentration.
type Kind string

const (
	MassConcentration  Kind = "mass_concentration"
	MolarConcentration Kind = "molar_concentration"
	MassFraction       Kind = "mass_fraction"
	VolumeFraction     Kind = "volume_fraction"
)

// Canonical units per kind.
const (
	MassConcentrationUnit  = "g/l"
	MolarConcentrationUnit = "mol/l"
	MassFractionUnit       = "g/g"
	VolumeFractionUnit     = "l/l"
)

// Concentration is a classified value in its canonical unit.
type Concentration struct {
	Kind  Kind           `json:"kind"`
	Value units.Quantity `json:"value"`
	Input string         `json:"input"`
}

// UnrecognizedError reports a value whose dimensionality matches none of the
// four kinds.
type UnrecognizedError struct {
	Input     string
	Unit      string
	Dimension units.Dimension
}

func (e *UnrecognizedError) Error() string {
	return fmt.Sprintf("unrecognized concentration %q: unit %q has dimension %s", e.Input, e.Unit, e.Dimension)
}

// synonyms are applied in order; "%" must come after the compound forms.
var synonyms = []struct{ from, to string }{
	{"wt%", "weight_percent"},
	{"vol%", "volume_percent"},
	{"mol%", "mol_percent"},
	{"%", "percent"},
	{"dm3", "liter"},
	{"cm3", "ml"},
}

// NormalizeUnit rewrites spreadsheet unit spellings to names the unit
// registry understands.
func NormalizeUnit(unit string) string {
	u := strings.TrimSpace(unit)
	for _, s := range synonyms {
		u = strings.ReplaceAll(u, s.from, s.to)
	}
	return u
}

var (
	massPerVolume      = units.Mass.Div(units.Volume)
	substancePerVolume = units.Substance.Div(units.Volume)
)

// Classify parses text and returns it as one of the four concentration kinds.
// Parse failures are returned as unit errors; a parsed value of any other
// dimensionality yields *UnrecognizedError.
func Classify(text string) (Concentration, error) {
	v, rawUnit, err := units.SplitNumberUnit(text)
	if err != nil {
		return Concentration{}, err
	}
	unit := NormalizeUnit(rawUnit)
	parsed, err := units.Parse(unit)
	if err != nil {
		return Concentration{}, err
	}
	q := units.Quantity{Magnitude: v, Unit: unit}

	var kind Kind
	var target string
	switch {
	case parsed.Dim == massPerVolume:
		kind, target = MassConcentration, MassConcentrationUnit
	case parsed.Dim == substancePerVolume:
		kind, target = MolarConcentration, MolarConcentrationUnit
	case parsed.Dim.IsDimensionless() && massLike(unit):
		kind, target = MassFraction, MassFractionUnit
	case parsed.Dim.IsDimensionless() && volumeLike(unit):
		kind, target = VolumeFraction, VolumeFractionUnit
	default:
		return Concentration{}, &UnrecognizedError{Input: text, Unit: unit, Dimension: parsed.Dim}
	}

	out, err := units.Convert(q, target)
	if err != nil {
		return Concentration{}, err
	}
	return Concentration{Kind: kind, Value: out, Input: text}, nil
}

func massLike(unit string) bool {
	if strings.Contains(unit, "weight") || strings.Contains(unit, "mass") {
		return true
	}
	return numeratorHas(unit, units.Mass)
}

func volumeLike(unit string) bool {
	if strings.Contains(unit, "volume") {
		return true
	}
	return numeratorHas(unit, units.Volume)
}

// numeratorHas handles ratio spellings like "mg/g" or "ml/l".
func numeratorHas(unit string, dim units.Dimension) bool {
	num, _, ok := strings.Cut(unit, "/")
	if !ok {
		return false
	}
	u, err := units.Parse(num)
	if err != nil {
		return false
	}
	return u.Dim == dim
}
