package ops

import (
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/coerce"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
)

// CoerceInput contains parameters for the Coerce operation.
type CoerceInput struct {
	Text  string
	Unit  string // optional target unit, e.g. "nm" or "celsius"
	Level string // optional; when set, Text is split first and each token coerced. Nested flattens layers and steps.
}

// CoerceOutput contains the result of the Coerce operation.
type CoerceOutput struct {
	Unit   string         `json:"unit,omitempty"`
	Tokens []string       `json:"tokens"`
	Values []coerce.Value `json:"values"`
}

// Coerce converts one token, or every token of a delimited cell, into typed
// values. Unparseable tokens come back as strings rather than errors.
func Coerce(input CoerceInput) (*CoerceOutput, error) {
	tokens := []string{input.Text}
	switch input.Level {
	case "":
	case LevelNested:
		tokens = tokens[:0]
		for _, layer := range delimited.SplitNested(input.Text) {
			for _, step := range layer {
				tokens = append(tokens, step...)
			}
		}
	default:
		sep, err := separatorFor(input.Level)
		if err != nil {
			return nil, err
		}
		tokens = delimited.SplitOn(input.Text, sep)
	}

	out := &CoerceOutput{Unit: input.Unit, Tokens: tokens, Values: make([]coerce.Value, len(tokens))}
	for i, tok := range tokens {
		out.Values[i] = coerce.Coerce(tok, input.Unit)
	}
	return out, nil
}
