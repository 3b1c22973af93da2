package ops

import (
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

// Split levels.
const (
	LevelLayer  = "layer"
	LevelItem   = "item"
	LevelStep   = "step"
	LevelNested = "nested"
)

// SplitInput contains parameters for the Split operation.
type SplitInput struct {
	Text  string
	Level string // layer (default), item, step or nested

	// Parallel fields are split at the same level and must have as many
	// tokens as Text. Ignored for nested.
	Parallel map[string]string
}

// SplitOutput contains the result of the Split operation.
type SplitOutput struct {
	Level     string              `json:"level"`
	Separator string              `json:"separator,omitempty"`
	Tokens    []string            `json:"tokens,omitempty"`
	Nested    [][][]string        `json:"nested,omitempty"`
	Parallel  map[string][]string `json:"parallel,omitempty"`
}

func separatorFor(level string) (string, error) {
	switch level {
	case LevelLayer:
		return delimited.LayerSep, nil
	case LevelItem:
		return delimited.ItemSep, nil
	case LevelStep:
		return delimited.StepSep, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown level %q (want layer, item, step or nested)", level))
}

// Split tokenizes a delimited cell.
func Split(input SplitInput) (*SplitOutput, error) {
	level := input.Level
	if level == "" {
		level = LevelLayer
	}
	if level == LevelNested {
		return &SplitOutput{Level: level, Nested: delimited.SplitNested(input.Text)}, nil
	}

	sep, err := separatorFor(level)
	if err != nil {
		return nil, err
	}
	out := &SplitOutput{Level: level, Separator: sep, Tokens: delimited.SplitOn(input.Text, sep)}
	if len(input.Parallel) == 0 {
		return out, nil
	}

	names := make([]string, 0, len(input.Parallel))
	for name := range input.Parallel {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := []delimited.Field{{Name: "text", Values: out.Tokens}}
	out.Parallel = make(map[string][]string, len(names))
	for _, name := range names {
		tokens := delimited.SplitOn(input.Parallel[name], sep)
		out.Parallel[name] = tokens
		fields = append(fields, delimited.Field{Name: name, Values: tokens})
	}
	if err := delimited.CheckAligned(fields...); err != nil {
		return nil, lengthMismatch(err)
	}
	return out, nil
}

// lengthMismatch converts a tokenizer alignment error into LENGTH_MISMATCH.
func lengthMismatch(err error) error {
	var me *delimited.MismatchError
	if stderrors.As(err, &me) {
		return errors.NewLengthMismatch(me.Fields, me.Counts)
	}
	return err
}
