package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	Workspace     *string // optional filter by workspace
	OlderThanDays *int    // optional, only purge if deleted_at < (now - N days)
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes soft-deleted devices.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	if input.OlderThanDays != nil && *input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must not be negative")
	}
	workspace := optionalWorkspace(input.Workspace)

	count, err := db.PurgeDeleted(ctx, database, workspace, input.OlderThanDays)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, workspace, input.OlderThanDays),
	}, nil
}

func formatPurgeMessage(count int, workspace *string, olderThanDays *int) string {
	if count == 0 {
		return "No deleted devices to purge"
	}

	word := "device"
	if count > 1 {
		word = "devices"
	}
	msg := fmt.Sprintf("Permanently deleted %d %s", count, word)

	if workspace != nil {
		msg += fmt.Sprintf(" from workspace %q", *workspace)
	}
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (deleted more than %d days ago)", *olderThanDays)
	}
	return msg
}
