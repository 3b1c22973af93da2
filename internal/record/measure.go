package record

import (
	"strconv"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
)

// Measure is a numeric field in a fixed unit. A nil *Measure means the field
// was absent; Unknown means the curator wrote "nan".
type Measure struct {
	Value   float64 `json:"value"`
	Unit    string  `json:"unit,omitempty"`
	Unknown bool    `json:"unknown,omitempty"`
}

// Known returns a populated measure.
func Known(value float64, unit string) *Measure {
	return &Measure{Value: value, Unit: unit}
}

// UnknownMeasure returns a measure marked unknown.
func UnknownMeasure(unit string) *Measure {
	return &Measure{Unit: unit, Unknown: true}
}

// Float returns the value, or nil when m is absent or unknown.
func (m *Measure) Float() *float64 {
	if m == nil || m.Unknown {
		return nil
	}
	v := m.Value
	return &v
}

// String formats the measure as "<value> <unit>", "nan" when unknown, or ""
// when absent.
func (m *Measure) String() string {
	if m == nil {
		return ""
	}
	if m.Unknown {
		return delimited.Unknown
	}
	s := strconv.FormatFloat(m.Value, 'g', -1, 64)
	if m.Unit == "" {
		return s
	}
	return s + " " + m.Unit
}
