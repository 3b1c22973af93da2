// Package composition builds perovskite composition strings (short form,
// long form and chemical formula) from per-site ion lists.
package composition

import (
	"regexp"
	"sort"
	"strings"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/vocab"
)

// Ion is one constituent of a perovskite. Empty strings mean "missing".
type Ion struct {
	Site             string `json:"site,omitempty"`
	Abbreviation     string `json:"abbreviation"`
	Coefficient      string `json:"coefficient"`
	MolecularFormula string `json:"molecular_formula,omitempty"`
}

// Forms are the three composition strings.
type Forms struct {
	ShortForm string `json:"short_form"`
	LongForm  string `json:"long_form"`
	Formula   string `json:"formula"`
}

var siteRank = map[string]int{"A": 0, "B": 1, "X": 2}

func rank(site string) int {
	if r, ok := siteRank[strings.ToUpper(site)]; ok {
		return r
	}
	return len(siteRank)
}

// Sort orders ions by site (A, B, X, then unsited) and alphabetically by
// abbreviation within a site.
func Sort(ions []Ion) []Ion {
	out := make([]Ion, len(ions))
	copy(out, ions)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i].Site), rank(out[j].Site)
		if ri != rj {
			return ri < rj
		}
		return out[i].Abbreviation < out[j].Abbreviation
	})
	return out
}

// BuildForms accumulates the three strings over the sorted ions and stops at
// the first ion with a missing part. Each string halts at its own point: a
// missing abbreviation stops everything, a missing coefficient stops after the
// short form, a missing molecular formula stops after the long form.
func BuildForms(ions []Ion) Forms {
	var short, long, formula strings.Builder
	for _, ion := range Sort(ions) {
		if ion.Abbreviation == "" {
			break
		}
		short.WriteString(ion.Abbreviation)

		if ion.Coefficient == "" {
			break
		}
		coef := CleanCoefficient(ion.Coefficient)
		long.WriteString(ion.Abbreviation)
		if coef != "1" {
			long.WriteString(coef)
		}

		if ion.MolecularFormula == "" {
			break
		}
		formula.WriteString("(")
		formula.WriteString(CleanMolecularFormula(ion.MolecularFormula))
		formula.WriteString(")")
		formula.WriteString(coef)
	}
	return Forms{ShortForm: short.String(), LongForm: long.String(), Formula: formula.String()}
}

// CleanCoefficient strips trailing zeros and a trailing decimal point:
// "0.500" -> "0.5", "1.0" -> "1". Non-decimal tokens such as "x" pass through.
func CleanCoefficient(c string) string {
	c = strings.TrimSpace(c)
	if !strings.Contains(c, ".") {
		return c
	}
	c = strings.TrimRight(c, "0")
	c = strings.TrimSuffix(c, ".")
	if c == "" {
		return "0"
	}
	return c
}

var (
	chargePattern = regexp.MustCompile(`([A-Za-z])\d*[+-]+`)
	caretCharge   = regexp.MustCompile(`\^\d*[+-]+$`)
)

// CleanMolecularFormula removes charge annotations that directly follow a
// letter: "Pb2+" -> "Pb", "I-" -> "I". Digits before the sign are read as
// charge, so "BF4-" becomes "BF"; write "BF4^-" to keep the stoichiometry.
func CleanMolecularFormula(f string) string {
	f = strings.TrimSpace(f)
	if loc := caretCharge.FindStringIndex(f); loc != nil {
		return f[:loc[0]]
	}
	return chargePattern.ReplaceAllString(f, "$1")
}

// Fields are the delimited site columns of one row. Each field may hold
// several perovskite layers separated by " | " and several ions separated
// by "; ".
type Fields struct {
	AIons         string
	ACoefficients string
	BIons         string
	BCoefficients string
	XIons         string
	XCoefficients string
}

// Result is the composition of one perovskite layer.
type Result struct {
	Ions  []Ion `json:"ions"`
	Forms Forms `json:"forms"`
}

// FromFields parses site columns into one Result per perovskite layer.
// Ion names and coefficients must align at both the layer and the item level;
// a mismatch returns *delimited.MismatchError and no results. Molecular
// formulas come from the ion vocabulary; ions missing from it get none.
func FromFields(f Fields) ([]Result, error) {
	type site struct {
		name, ions, coefs string
	}
	sites := []site{
		{"A", f.AIons, f.ACoefficients},
		{"B", f.BIons, f.BCoefficients},
		{"X", f.XIons, f.XCoefficients},
	}

	var layerFields []delimited.Field
	layered := make([][2][]string, len(sites))
	for i, s := range sites {
		if delimited.IsBlank(s.ions) {
			continue
		}
		layered[i][0] = delimited.SplitLayers(s.ions)
		layerFields = append(layerFields, delimited.Field{Name: s.name + "_ions", Values: layered[i][0]})
		if !delimited.IsBlank(s.coefs) {
			layered[i][1] = delimited.SplitLayers(s.coefs)
			layerFields = append(layerFields, delimited.Field{Name: s.name + "_coefficients", Values: layered[i][1]})
		}
	}
	if len(layerFields) == 0 {
		return nil, nil
	}
	if err := delimited.CheckAligned(layerFields...); err != nil {
		return nil, err
	}
	nLayers := len(layerFields[0].Values)

	results := make([]Result, nLayers)
	for l := range nLayers {
		var ions []Ion
		for i, s := range sites {
			if layered[i][0] == nil {
				continue
			}
			names := delimited.SplitItems(layered[i][0][l])
			var coefs []string
			if layered[i][1] != nil {
				coefs = delimited.SplitItems(layered[i][1][l])
				if err := delimited.CheckAligned(
					delimited.Field{Name: s.name + "_ions", Values: names},
					delimited.Field{Name: s.name + "_coefficients", Values: coefs},
				); err != nil {
					return nil, err
				}
			}
			for k, name := range names {
				ions = append(ions, newIon(s.name, name, at(coefs, k)))
			}
		}
		results[l] = Result{Ions: ions, Forms: BuildForms(ions)}
	}
	return results, nil
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

// newIon maps sentinel tokens to "missing" except the unspecified coefficient
// "x", which is kept.
func newIon(site, name, coef string) Ion {
	ion := Ion{Site: site}
	if name != "" && !delimited.IsUnknown(name) && name != delimited.NotApplicable {
		ion.Abbreviation = name
		if v, ok := vocab.IonByAbbreviation(name); ok {
			ion.MolecularFormula = v.Formula
		}
	}
	if coef != "" && !delimited.IsUnknown(coef) && coef != delimited.NotApplicable {
		ion.Coefficient = coef
	}
	return ion
}
