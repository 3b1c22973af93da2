package ops

import (
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/composition"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/vocab"
)

// FormulaInput contains parameters for the Formula operation. Either Ions or
// the delimited site fields are given. Missing molecular formulas are looked
// up in the ion vocabulary.
type FormulaInput struct {
	Ions []composition.Ion

	AIons         string
	ACoefficients string
	BIons         string
	BCoefficients string
	XIons         string
	XCoefficients string
}

// FormulaOutput contains the result of the Formula operation, one entry per
// perovskite layer.
type FormulaOutput struct {
	Layers []composition.Result `json:"layers"`
}

// Formula builds the short form, long form and chemical formula of a
// perovskite.
func Formula(input FormulaInput) (*FormulaOutput, error) {
	if len(input.Ions) > 0 {
		ions := composition.Sort(input.Ions)
		for i := range ions {
			if ions[i].MolecularFormula != "" {
				continue
			}
			if v, ok := vocab.IonByAbbreviation(ions[i].Abbreviation); ok {
				ions[i].MolecularFormula = v.Formula
			}
		}
		return &FormulaOutput{Layers: []composition.Result{{Ions: ions, Forms: composition.BuildForms(ions)}}}, nil
	}

	results, err := composition.FromFields(composition.Fields{
		AIons:         input.AIons,
		ACoefficients: input.ACoefficients,
		BIons:         input.BIons,
		BCoefficients: input.BCoefficients,
		XIons:         input.XIons,
		XCoefficients: input.XCoefficients,
	})
	if err != nil {
		return nil, lengthMismatch(err)
	}
	if len(results) == 0 {
		return nil, errors.NewInvalidRequest("ions or at least one site field is required")
	}
	return &FormulaOutput{Layers: results}, nil
}
