package units

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Quantity is a magnitude with a unit expression.
type Quantity struct {
	Magnitude float64 `json:"magnitude"`
	Unit      string  `json:"unit"`
}

// String formats the quantity as "<magnitude> <unit>".
func (q Quantity) String() string {
	m := strconv.FormatFloat(q.Magnitude, 'g', -1, 64)
	if q.Unit == "" {
		return m
	}
	return m + " " + q.Unit
}

// Dimension returns the dimensionality of the quantity's unit.
func (q Quantity) Dimension() (Dimension, error) {
	u, err := Parse(q.Unit)
	if err != nil {
		return Dimension{}, err
	}
	return u.Dim, nil
}

// numberUnitPattern splits "<number><unit>" with optional whitespace between.
var numberUnitPattern = regexp.MustCompile(`^\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*(.*?)\s*$`)

// SplitNumberUnit separates the leading numeric literal from the unit text.
func SplitNumberUnit(text string) (float64, string, error) {
	m := numberUnitPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, "", fmt.Errorf("%w: no leading number in %q", ErrMalformed, text)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, m[2], nil
}

// ParseQuantity parses text like "1.5 kg" or "10mg/ml".
func ParseQuantity(text string) (Quantity, error) {
	v, unit, err := SplitNumberUnit(text)
	if err != nil {
		return Quantity{}, err
	}
	if _, err := Parse(unit); err != nil {
		return Quantity{}, err
	}
	return Quantity{Magnitude: v, Unit: unit}, nil
}

// Convert expresses q in the target unit.
func Convert(q Quantity, target string) (Quantity, error) {
	from, err := Parse(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	to, err := Parse(target)
	if err != nil {
		return Quantity{}, err
	}
	if from.Dim != to.Dim {
		return Quantity{}, fmt.Errorf("%w: cannot convert %s (%s) to %s (%s)",
			ErrIncompatible, q.Unit, from.Dim, target, to.Dim)
	}
	v := to.FromSI(from.ToSI(q.Magnitude))
	return Quantity{Magnitude: Round(v), Unit: strings.TrimSpace(target)}, nil
}

// Round trims floating-point noise from unit arithmetic by rounding to 12
// significant digits.
func Round(v float64) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 12, 64), 64)
	if err != nil {
		return v
	}
	return r
}
