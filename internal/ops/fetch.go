package ops

import (
	"context"
	"database/sql"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID              string
	Workspace       string
	Name            string
	IncludeDeleted  bool
	IncludeMarkdown *bool // default: true (nil means default)
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	record.Device          // embedded (copy, not pointer)
	FetchKey      FetchKey `json:"fetch_key"`
	Stack         string   `json:"stack"`
	Procedure     string   `json:"procedure,omitempty"`
	Markdown      string   `json:"markdown,omitempty"`
}

// Fetch retrieves a device by ID or by name within a workspace.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Workspace, input.Name)
	if err != nil {
		return nil, err
	}

	var d *record.Device
	if addr.ByID {
		d, err = db.GetByID(ctx, database, addr.ID, input.IncludeDeleted)
	} else {
		d, err = db.GetByName(ctx, database, addr.Workspace, addr.Name, input.IncludeDeleted)
	}
	if err != nil {
		return nil, err
	}

	output := &FetchOutput{
		Device:    *d,
		FetchKey:  BuildFetchKey(d.WorkspaceRaw, d.NameRaw, d.ID),
		Stack:     d.StackString(),
		Procedure: d.ProcedureString(),
	}
	if input.IncludeMarkdown == nil || *input.IncludeMarkdown {
		output.Markdown = d.Markdown()
	}
	return output, nil
}
