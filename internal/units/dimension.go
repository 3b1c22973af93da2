package units

import (
	"fmt"
	"math"
	"strings"
)

// Dimension holds the exponents of the base dimensions, in the order
// length, mass, time, current, temperature, substance.
type Dimension [6]int8

var dimensionNames = [6]string{"length", "mass", "time", "current", "temperature", "substance"}

// Base dimensions.
var (
	Dimensionless = Dimension{}
	Length        = Dimension{1, 0, 0, 0, 0, 0}
	Mass          = Dimension{0, 1, 0, 0, 0, 0}
	Time          = Dimension{0, 0, 1, 0, 0, 0}
	Current       = Dimension{0, 0, 0, 1, 0, 0}
	Temperature   = Dimension{0, 0, 0, 0, 1, 0}
	Substance     = Dimension{0, 0, 0, 0, 0, 1}
	Volume        = Length.Pow(3)
)

// Mul returns d*o.
func (d Dimension) Mul(o Dimension) Dimension {
	var r Dimension
	for i := range d {
		r[i] = d[i] + o[i]
	}
	return r
}

// Div returns d/o.
func (d Dimension) Div(o Dimension) Dimension {
	var r Dimension
	for i := range d {
		r[i] = d[i] - o[i]
	}
	return r
}

// Pow returns d^n.
func (d Dimension) Pow(n int) Dimension {
	var r Dimension
	for i := range d {
		r[i] = d[i] * int8(n)
	}
	return r
}

// scaled returns d + k*o, or false when an exponent leaves the int8 range.
func (d Dimension) scaled(o Dimension, k int) (Dimension, bool) {
	var r Dimension
	for i := range d {
		e := int(d[i]) + k*int(o[i])
		if e < math.MinInt8 || e > math.MaxInt8 {
			return Dimension{}, false
		}
		r[i] = int8(e)
	}
	return r, true
}

// IsDimensionless reports whether all exponents are zero.
func (d Dimension) IsDimensionless() bool {
	return d == Dimensionless
}

// String renders the dimension as e.g. "[mass]/[length]^3".
func (d Dimension) String() string {
	if d.IsDimensionless() {
		return "dimensionless"
	}
	var num, den []string
	for i, e := range d {
		switch {
		case e > 0:
			num = append(num, term(dimensionNames[i], int(e)))
		case e < 0:
			den = append(den, term(dimensionNames[i], int(-e)))
		}
	}
	s := strings.Join(num, "*")
	if s == "" {
		s = "1"
	}
	if len(den) > 0 {
		s += "/" + strings.Join(den, "/")
	}
	return s
}

func term(name string, exp int) string {
	if exp == 1 {
		return "[" + name + "]"
	}
	return fmt.Sprintf("[%s]^%d", name, exp)
}
