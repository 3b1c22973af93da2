package ingest

import "sort"

// Canonical column names, after header normalization.
const (
	ColRefID        = "ref_id"
	ColRefDOI       = "ref_doi"
	ColArchitecture = "cell_architecture"
	ColArea         = "cell_area_total"
	ColFlexible     = "cell_flexible"
	ColStack        = "cell_stack_sequence"

	ColFunctionality          = "layer_functionality"
	ColThickness              = "layer_thickness"
	ColProcedure              = "layer_deposition_procedure"
	ColSolvents               = "layer_deposition_solvents"
	ColSolventRatios          = "layer_deposition_solvents_mixing_ratios"
	ColCompounds              = "layer_deposition_reaction_solutions_compounds"
	ColConcentrations         = "layer_deposition_reaction_solutions_concentrations"
	ColAnnealTemperature      = "layer_deposition_thermal_annealing_temperature"
	ColAnnealTime             = "layer_deposition_thermal_annealing_time"
	ColAtmosphere             = "layer_deposition_synthesis_atmosphere"
	ColPressure               = "layer_deposition_pressure"
	ColAdditives              = "layer_additives_compounds"
	ColAdditiveConcentrations = "layer_additives_concentrations"

	ColAIons         = "perovskite_composition_a_ions"
	ColACoefficients = "perovskite_composition_a_ions_coefficients"
	ColBIons         = "perovskite_composition_b_ions"
	ColBCoefficients = "perovskite_composition_b_ions_coefficients"
	ColCIons         = "perovskite_composition_c_ions"
	ColCCoefficients = "perovskite_composition_c_ions_coefficients"
	ColBandGap       = "perovskite_band_gap"

	ColVoc = "jv_default_voc"
	ColJsc = "jv_default_jsc"
	ColFF  = "jv_default_ff"
	ColPCE = "jv_default_pce"
	ColRs  = "jv_default_rs"

	ColTandemSubcells   = "tandem_subcells"
	ColTandemTerminals  = "tandem_terminals"
	ColTandemSubcellPCE = "tandem_subcell_pce"
)

// Preferred units of numeric columns.
var columnUnits = map[string]string{
	ColArea:              "cm^2",
	ColThickness:         "nm",
	ColAnnealTemperature: "celsius",
	ColAnnealTime:        "hour",
	ColPressure:          "mbar",
	ColBandGap:           "eV",
	ColVoc:               "V",
	ColJsc:               "mA/cm^2",
	ColFF:                "",
	ColPCE:               "%",
	ColRs:                "ohm*cm^2",
	ColTandemSubcellPCE:  "%",
}

// layerColumns are split on " | " into one token per layer, in the order
// used to pick the reference layer count.
var layerColumns = []string{
	ColStack, ColFunctionality, ColThickness,
	ColProcedure, ColSolvents, ColSolventRatios, ColCompounds, ColConcentrations,
	ColAnnealTemperature, ColAnnealTime, ColAtmosphere, ColPressure,
	ColAdditives, ColAdditiveConcentrations,
}

// stepColumns are further split on " >> " into one token per step.
var stepColumns = []string{
	ColProcedure, ColSolvents, ColSolventRatios, ColCompounds, ColConcentrations,
	ColAnnealTemperature, ColAnnealTime, ColAtmosphere, ColPressure,
}

var otherColumns = []string{
	ColRefID, ColRefDOI, ColArchitecture, ColArea, ColFlexible,
	ColAIons, ColACoefficients, ColBIons, ColBCoefficients, ColCIons, ColCCoefficients, ColBandGap,
	ColVoc, ColJsc, ColFF, ColPCE, ColRs,
	ColTandemSubcells, ColTandemTerminals, ColTandemSubcellPCE,
}

// aliases maps alternative normalized headers to canonical names.
var aliases = map[string]string{
	"sample_id":      ColRefID,
	"name":           ColRefID,
	"reference":      ColRefDOI,
	"doi":            ColRefDOI,
	"architecture":   ColArchitecture,
	"stack":          ColStack,
	"stack_sequence": ColStack,
	"cell_area":      ColArea,
	"band_gap":       ColBandGap,
}

var known = func() map[string]bool {
	m := make(map[string]bool)
	for _, cols := range [][]string{layerColumns, otherColumns} {
		for _, c := range cols {
			m[c] = true
		}
	}
	return m
}()

// Canonical resolves a normalized header to its canonical column name.
func Canonical(header string) (string, bool) {
	if known[header] {
		return header, true
	}
	if c, ok := aliases[header]; ok {
		return c, true
	}
	return "", false
}

// KnownColumns lists every canonical column, sorted.
func KnownColumns() []string {
	out := make([]string, 0, len(known))
	for c := range known {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// UnknownColumns returns the headers no column recognizes, in file order.
func UnknownColumns(headers []string) []string {
	var out []string
	for _, h := range headers {
		if h == "" {
			continue
		}
		if _, ok := Canonical(h); !ok {
			out = append(out, h)
		}
	}
	return out
}
