// Package delimited implements the cell grammar used by curated solar-cell
// spreadsheets: " | " separates device layers, " >> " separates sequential
// process steps inside a layer, and "; " separates co-present items.
package delimited

import (
	"fmt"
	"strings"
)

// Separators. These are part of the curation convention and must stay bit-exact.
const (
	LayerSep = " | "
	ItemSep  = "; "
	StepSep  = " >> "
)

// Sentinel tokens.
const (
	Unknown                = "nan"     // numeric value unknown
	UnknownCategory        = "Unknown" // categorical value unknown
	NotApplicable          = "none"    // not applicable / absent
	UnspecifiedCoefficient = "x"       // coefficient present but unspecified
)

// SplitOn splits text on sep and trims whitespace around every token.
// An empty text yields a single empty token so that parallel fields stay
// positionally aligned.
func SplitOn(text, sep string) []string {
	parts := strings.Split(text, sep)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// SplitLayers splits a device-stack description on " | ".
func SplitLayers(text string) []string {
	return SplitOn(text, LayerSep)
}

// SplitItems splits a mixture or list on "; ".
func SplitItems(text string) []string {
	return SplitOn(text, ItemSep)
}

// SplitSteps splits a multi-step process description on " >> ".
func SplitSteps(text string) []string {
	return SplitOn(text, StepSep)
}

// Join is the inverse of SplitOn. Round-tripping holds for tokens that are
// already trimmed and do not contain sep.
func Join(parts []string, sep string) string {
	return strings.Join(parts, sep)
}

// SplitNested splits text into layers, each layer into steps, and each step
// into items.
func SplitNested(text string) [][][]string {
	layers := SplitLayers(text)
	out := make([][][]string, len(layers))
	for i, layer := range layers {
		steps := SplitSteps(layer)
		out[i] = make([][]string, len(steps))
		for j, step := range steps {
			out[i][j] = SplitItems(step)
		}
	}
	return out
}

// JoinNested is the inverse of SplitNested.
func JoinNested(layers [][][]string) string {
	ls := make([]string, len(layers))
	for i, steps := range layers {
		ss := make([]string, len(steps))
		for j, items := range steps {
			ss[j] = Join(items, ItemSep)
		}
		ls[i] = Join(ss, StepSep)
	}
	return Join(ls, LayerSep)
}

// IsSentinel reports whether token is one of the reserved sentinel tokens.
// Tokens are compared exactly; "NaN" is not the sentinel.
func IsSentinel(token string) bool {
	switch token {
	case Unknown, UnknownCategory, NotApplicable, UnspecifiedCoefficient:
		return true
	}
	return false
}

// IsUnknown reports whether token marks an unknown value, numeric or categorical.
func IsUnknown(token string) bool {
	return strings.EqualFold(token, Unknown) || token == UnknownCategory
}

// IsBlank reports whether a whole field carries no information: empty or "none".
func IsBlank(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || t == NotApplicable
}

// Field is a named, already split, parallel field.
type Field struct {
	Name   string
	Values []string
}

// MismatchError reports parallel fields whose token counts differ.
type MismatchError struct {
	Fields []string
	Counts []int
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	for i, name := range e.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%d", name, e.Counts[i])
	}
	return "parallel fields have different lengths: " + b.String()
}

// CheckAligned verifies that all fields have the same number of tokens.
// Fields with no values are ignored (the column was absent).
func CheckAligned(fields ...Field) error {
	want := -1
	mismatch := false
	for _, f := range fields {
		if f.Values == nil {
			continue
		}
		if want == -1 {
			want = len(f.Values)
			continue
		}
		if len(f.Values) != want {
			mismatch = true
		}
	}
	if !mismatch {
		return nil
	}
	e := &MismatchError{}
	for _, f := range fields {
		if f.Values == nil {
			continue
		}
		e.Fields = append(e.Fields, f.Name)
		e.Counts = append(e.Counts, len(f.Values))
	}
	return e
}
