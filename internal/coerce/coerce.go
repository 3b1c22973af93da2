// Package coerce turns free-text spreadsheet tokens into typed values.
package coerce

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/units"
)

// Kind identifies which payload of a Value is populated.
type Kind int

const (
	Absent   Kind = iota // no token at all
	Unknown              // the "nan" sentinel
	Bool
	Int
	Float
	Quantity
	String
)

var kindNames = map[Kind]string{
	Absent:   "absent",
	Unknown:  "unknown",
	Bool:     "bool",
	Int:      "int",
	Float:    "float",
	Quantity: "quantity",
	String:   "string",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Value is the result of coercing a token.
type Value struct {
	Kind     Kind
	Bool     bool
	Int      int64
	Float    float64
	Quantity units.Quantity
	Str      string
}

// MarshalJSON emits {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind  Kind `json:"kind"`
		Value any  `json:"value,omitempty"`
	}{Kind: v.Kind}
	switch v.Kind {
	case Bool:
		out.Value = v.Bool
	case Int:
		out.Value = v.Int
	case Float:
		out.Value = v.Float
	case Quantity:
		out.Value = v.Quantity
	case String:
		out.Value = v.Str
	}
	return json.Marshal(out)
}

// Number returns the numeric magnitude for Int, Float and Quantity values.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case Int:
		return float64(v.Int), true
	case Float:
		return v.Float, true
	case Quantity:
		return v.Quantity.Magnitude, true
	}
	return 0, false
}

var (
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
	// a numeric literal followed by a unit expression
	quantityPattern = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?\s*[\w*/^()%\-°µμ·]+$`)
)

// Coerce converts token into a typed value, optionally in unit.
// Attempts, first match wins: boolean, "nan", integer, float, number with
// unit, and finally the token itself. It never fails: an unparseable unit
// yields the original string.
func Coerce(token, unit string) Value {
	s := strings.TrimSpace(token)
	unit = strings.TrimSpace(unit)
	if s == "" {
		return Value{Kind: Absent}
	}

	switch strings.ToLower(s) {
	case "true":
		return Value{Kind: Bool, Bool: true}
	case "false":
		return Value{Kind: Bool, Bool: false}
	case "nan":
		return Value{Kind: Unknown}
	}

	if unit == "" && digitsPattern.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Value{Kind: Int, Int: n}
		}
	}

	if f, ok := parseFloat(s); ok {
		if unit == "" {
			return Value{Kind: Float, Float: f}
		}
		if _, err := units.Parse(unit); err != nil {
			return Value{Kind: String, Str: token}
		}
		return Value{Kind: Quantity, Quantity: units.Quantity{Magnitude: f, Unit: unit}}
	}

	if quantityPattern.MatchString(s) {
		q, err := units.ParseQuantity(s)
		if err != nil {
			return Value{Kind: String, Str: token}
		}
		if unit != "" {
			q, err = units.Convert(q, unit)
			if err != nil {
				return Value{Kind: String, Str: token}
			}
		}
		return Value{Kind: Quantity, Quantity: q}
	}

	return Value{Kind: String, Str: token}
}

// parseFloat accepts decimal float literals only; Go's "inf", hex and
// underscore forms are not spreadsheet conventions.
func parseFloat(s string) (float64, bool) {
	lower := strings.ToLower(s)
	if strings.Contains(lower, "inf") || strings.Contains(lower, "0x") || strings.Contains(s, "_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Measure coerces token into a magnitude in unit. The boolean is false when
// the token is not numeric; unknown reports the "nan" sentinel. With no unit
// requested, a token that names its own unit must be dimensionless and is
// reduced to a plain ratio ("78 %" is 0.78).
func Measure(token, unit string) (value float64, unknown bool, ok bool) {
	v := Coerce(token, unit)
	if v.Kind == Unknown {
		return 0, true, true
	}
	if v.Kind == Quantity && strings.TrimSpace(unit) == "" {
		dim, err := v.Quantity.Dimension()
		if err != nil || !dim.IsDimensionless() {
			return 0, false, false
		}
		q, err := units.Convert(v.Quantity, "")
		if err != nil {
			return 0, false, false
		}
		return q.Magnitude, false, true
	}
	value, ok = v.Number()
	return value, false, ok
}
