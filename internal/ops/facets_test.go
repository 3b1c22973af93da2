package ops

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
)

func TestFacets(t *testing.T) {
	database := setupDB(t)
	seedDevices(t, database, "lab")
	seedDevices(t, database, "other")
	if _, err := Delete(context.Background(), database, DeleteInput{Workspace: "other", Name: "Cell-1"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	out, err := Facets(context.Background(), database, FacetsInput{Workspace: stringPtr("Lab")})
	if err != nil {
		t.Fatalf("Facets failed: %v", err)
	}
	if out.Workspace == nil || *out.Workspace != "lab" {
		t.Errorf("Workspace = %v", out.Workspace)
	}
	if out.Total != 3 || out.WithWarnings != 1 {
		t.Errorf("Total = %d, WithWarnings = %d", out.Total, out.WithWarnings)
	}
	wantArch := []db.Bucket{{Value: "nip", Count: 2}, {Value: "pin", Count: 1}}
	if diff := cmp.Diff(wantArch, out.ByArchitecture); diff != "" {
		t.Errorf("ByArchitecture mismatch (-want +got):\n%s", diff)
	}
	if out.PCE.Count != 2 || out.PCE.Max == nil || *out.PCE.Max != 21.5 {
		t.Errorf("PCE = %+v", out.PCE)
	}

	all, err := Facets(context.Background(), database, FacetsInput{TopN: 1})
	if err != nil {
		t.Fatalf("Facets failed: %v", err)
	}
	if all.Total != 5 || len(all.ByShortForm) != 1 {
		t.Errorf("Total = %d, ByShortForm = %v", all.Total, all.ByShortForm)
	}
}
