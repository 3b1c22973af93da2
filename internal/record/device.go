package record

import (
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/composition"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/concentration"
)

// Device is one curated solar cell: its layer stack, perovskite composition
// and headline JV metrics.
type Device struct {
	// ID is a ULID that uniquely identifies this device
	ID string `json:"id"`

	// WorkspaceRaw is the workspace as provided by the user
	WorkspaceRaw string `json:"workspace"`

	// WorkspaceNorm is the normalized workspace (lowercased, trimmed, collapsed spaces)
	WorkspaceNorm string `json:"workspace_norm"`

	// NameRaw is the sample identifier from the source row (ref_id)
	NameRaw string `json:"name"`

	// NameNorm is the normalized name, unique per workspace among live devices
	NameNorm string `json:"name_norm"`

	// Reference is the publication DOI or other citation
	Reference *string `json:"reference,omitempty"`

	// Architecture is the cell architecture from the vocabulary (nip, pin, ...)
	Architecture string `json:"architecture,omitempty"`

	// Source is the file the device was ingested from
	Source *string `json:"source,omitempty"`

	// Area is the total cell area in cm^2
	Area *Measure `json:"area,omitempty"`

	// Flexible reports a flexible substrate
	Flexible *bool `json:"flexible,omitempty"`

	// Layers is the device stack, substrate first
	Layers []Layer `json:"layers,omitempty"`

	// Perovskite holds one composition per perovskite layer
	Perovskite []Composition `json:"perovskite,omitempty"`

	JV     *JV     `json:"jv,omitempty"`
	Tandem *Tandem `json:"tandem,omitempty"`

	// Warnings are the data-quality defects found while building the record
	Warnings []Warning `json:"warnings,omitempty"`

	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// Layer is one film of the stack.
type Layer struct {
	Name          string   `json:"name"`
	Functionality string   `json:"functionality,omitempty"`
	Thickness     *Measure `json:"thickness,omitempty"`
	Steps         []Step   `json:"steps,omitempty"`
	Additives     []Solute `json:"additives,omitempty"`
}

// Step is one stage of a layer's deposition.
type Step struct {
	Method            string    `json:"method,omitempty"`
	Solvents          []Solvent `json:"solvents,omitempty"`
	Solutes           []Solute  `json:"solutes,omitempty"`
	AnnealTemperature *Measure  `json:"anneal_temperature,omitempty"`
	AnnealTime        *Measure  `json:"anneal_time,omitempty"`
	Atmosphere        string    `json:"atmosphere,omitempty"`
	Pressure          *Measure  `json:"pressure,omitempty"`
}

// Solvent is a solvent with its share of the mixture.
type Solvent struct {
	Name        string   `json:"name"`
	MixingRatio *Measure `json:"mixing_ratio,omitempty"`
}

// Solute is a dissolved compound or additive. Raw keeps the concentration as
// written; Concentration is set only when it could be classified.
type Solute struct {
	Compound      string                       `json:"compound"`
	Raw           string                       `json:"raw,omitempty"`
	Concentration *concentration.Concentration `json:"concentration,omitempty"`
}

// Composition is the perovskite of one absorber layer.
type Composition struct {
	Ions      []composition.Ion `json:"ions"`
	ShortForm string            `json:"short_form"`
	LongForm  string            `json:"long_form"`
	Formula   string            `json:"formula"`
	BandGap   *Measure          `json:"band_gap,omitempty"`
}

// JV holds the default current-voltage metrics.
type JV struct {
	Voc *Measure `json:"voc,omitempty"`
	Jsc *Measure `json:"jsc,omitempty"`
	FF  *Measure `json:"ff,omitempty"`
	PCE *Measure `json:"pce,omitempty"`
	Rs  *Measure `json:"rs,omitempty"`
}

// Tandem describes a multi-junction device.
type Tandem struct {
	Terminals *int      `json:"terminals,omitempty"`
	Subcells  []Subcell `json:"subcells,omitempty"`
}

// Subcell is one junction of a tandem.
type Subcell struct {
	Label string   `json:"label"`
	PCE   *Measure `json:"pce,omitempty"`
}

// Warning is a data-quality defect attached to a record.
type Warning struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PCE returns the power conversion efficiency in percent, if known.
func (d *Device) PCE() *float64 {
	if d.JV == nil {
		return nil
	}
	return d.JV.PCE.Float()
}

// ShortForms returns each perovskite's short form.
func (d *Device) ShortForms() []string {
	out := make([]string, 0, len(d.Perovskite))
	for _, c := range d.Perovskite {
		if c.ShortForm != "" {
			out = append(out, c.ShortForm)
		}
	}
	return out
}
