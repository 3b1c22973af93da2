package record

import "encoding/json"

// ExportSchemaVersion is written in the header line of every export file.
const ExportSchemaVersion = "1"

// ExportHeader is the first line of a JSONL export. The remaining lines are
// Device objects.
type ExportHeader struct {
	Export        bool   `json:"_pscdb_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
	Workspace     string `json:"workspace,omitempty"`
	Count         int    `json:"count"`
}

// IsExportHeader reports whether line is an export header.
func IsExportHeader(line []byte) bool {
	var h struct {
		Export bool `json:"_pscdb_export"`
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return false
	}
	return h.Export
}

// Restore prepares a device read from an export file for storage again,
// recomputing the normalized fields.
func (d *Device) Restore() {
	d.WorkspaceNorm = Normalize(d.WorkspaceRaw)
	d.NameNorm = Normalize(d.NameRaw)
}
