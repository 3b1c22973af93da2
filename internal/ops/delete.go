package ops

import (
	"context"
	"database/sql"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID        string
	Workspace string
	Name      string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Delete soft-deletes a device. Its name becomes free for a new ingest.
func Delete(ctx context.Context, database *sql.DB, input DeleteInput) (*DeleteOutput, error) {
	addr, err := ValidateAddress(input.ID, input.Workspace, input.Name)
	if err != nil {
		return nil, err
	}

	id := addr.ID
	if !addr.ByID {
		d, err := db.GetByName(ctx, database, addr.Workspace, addr.Name, false)
		if err != nil {
			return nil, err
		}
		id = d.ID
	}

	// SoftDelete reports NOT_FOUND for unknown and already deleted ids.
	if err := db.SoftDelete(ctx, database, id); err != nil {
		return nil, err
	}

	return &DeleteOutput{Deleted: true, ID: id}, nil
}
