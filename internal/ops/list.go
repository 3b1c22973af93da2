package ops

import (
	"context"
	"database/sql"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Workspace      string  // defaults to "default"
	Architecture   *string // optional filter
	Limit          int     // default: 20, max: 100
	Offset         int     // default: 0
	IncludeDeleted bool
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []SummaryItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// List retrieves device summaries for a workspace with pagination.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	workspace := normalizeWorkspace(input.Workspace)
	limit, offset := paginate(input.Limit, input.Offset, MaxListLimit, DefaultListLimit)

	filters := db.ListFilters{Architecture: cleanOptionalString(input.Architecture)}

	summaries, total, err := db.ListByWorkspace(ctx, database, workspace, filters, limit, offset, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Items: toSummaryItems(summaries),
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(summaries) < total,
			Total:   total,
		},
		Sort: "updated_at_desc",
	}, nil
}
