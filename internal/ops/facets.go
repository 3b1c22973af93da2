package ops

import (
	"context"
	"database/sql"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
)

// FacetsInput contains parameters for the Facets operation.
type FacetsInput struct {
	Workspace *string // optional; nil aggregates every workspace
	TopN      int     // short forms to report, default: 20, max: 100
}

// FacetsOutput contains the result of the Facets operation.
type FacetsOutput struct {
	Workspace *string `json:"workspace,omitempty"`
	db.FacetCounts
}

// Facets counts live devices by architecture and perovskite short form and
// summarizes their efficiencies.
func Facets(ctx context.Context, database *sql.DB, input FacetsInput) (*FacetsOutput, error) {
	workspace := optionalWorkspace(input.Workspace)
	topN, _ := paginate(input.TopN, 0, MaxListLimit, DefaultFacetTopN)

	counts, err := db.Facets(ctx, database, workspace, topN)
	if err != nil {
		return nil, err
	}
	return &FacetsOutput{Workspace: workspace, FacetCounts: *counts}, nil
}
