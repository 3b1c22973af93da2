package ops

import (
	stderrors "errors"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/concentration"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

// ClassifyInput contains parameters for the Classify operation.
type ClassifyInput struct {
	Text string // e.g. "1.2 M", "5 wt%", "461 mg/ml"
}

// ClassifyOutput contains the result of the Classify operation.
type ClassifyOutput struct {
	concentration.Concentration
}

// Classify reports the kind of a concentration and its value in the
// kind's canonical unit.
func Classify(input ClassifyInput) (*ClassifyOutput, error) {
	c, err := concentration.Classify(input.Text)
	if err != nil {
		var ue *concentration.UnrecognizedError
		if stderrors.As(err, &ue) {
			return nil, errors.NewUnrecognizedConcentration(ue.Input, ue.Dimension.String())
		}
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return &ClassifyOutput{Concentration: c}, nil
}
