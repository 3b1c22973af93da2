package record

import (
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
)

// DeviceSummary is a device's headline fields without layers or warnings text.
// Used for browse operations (list, search) to reduce data transfer.
type DeviceSummary struct {
	ID            string   `json:"id"`
	Workspace     string   `json:"workspace"`
	WorkspaceNorm string   `json:"workspace_norm"`
	Name          string   `json:"name"`
	NameNorm      string   `json:"name_norm"`
	Reference     *string  `json:"reference,omitempty"`
	Architecture  string   `json:"architecture,omitempty"`
	Stack         string   `json:"stack"`
	ShortForm     string   `json:"short_form,omitempty"`
	PCE           *float64 `json:"pce,omitempty"`
	LayerCount    int      `json:"layer_count"`
	WarningCount  int      `json:"warning_count"`
	Source        *string  `json:"source,omitempty"`
	CreatedAt     int64    `json:"created_at"`
	UpdatedAt     int64    `json:"updated_at"`
	DeletedAt     *int64   `json:"deleted_at,omitempty"`
}

// ToSummary converts a Device to a DeviceSummary.
func (d *Device) ToSummary() DeviceSummary {
	return DeviceSummary{
		ID:            d.ID,
		Workspace:     d.WorkspaceRaw,
		WorkspaceNorm: d.WorkspaceNorm,
		Name:          d.NameRaw,
		NameNorm:      d.NameNorm,
		Reference:     d.Reference,
		Architecture:  d.Architecture,
		Stack:         d.StackString(),
		ShortForm:     delimited.Join(d.ShortForms(), delimited.LayerSep),
		PCE:           d.PCE(),
		LayerCount:    len(d.Layers),
		WarningCount:  len(d.Warnings),
		Source:        d.Source,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		DeletedAt:     d.DeletedAt,
	}
}
