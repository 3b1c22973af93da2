package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

func TestFetch_ByIDAndName(t *testing.T) {
	database := setupDB(t)
	seedDevices(t, database, "Lab A")
	ctx := context.Background()

	byName, err := Fetch(ctx, database, FetchInput{Workspace: "  LAB   a ", Name: "CELL-1"})
	if err != nil {
		t.Fatalf("Fetch by name failed: %v", err)
	}
	if byName.NameRaw != "Cell-1" || byName.WorkspaceRaw != "Lab A" {
		t.Errorf("got %q in %q", byName.NameRaw, byName.WorkspaceRaw)
	}

	byID, err := Fetch(ctx, database, FetchInput{ID: byName.ID})
	if err != nil {
		t.Fatalf("Fetch by ID failed: %v", err)
	}
	if byID.ID != byName.ID {
		t.Errorf("ID = %s, want %s", byID.ID, byName.ID)
	}
	if byID.FetchKey != (FetchKey{ID: byName.ID, Workspace: "Lab A", Name: "Cell-1"}) {
		t.Errorf("FetchKey = %+v", byID.FetchKey)
	}
	if byID.Stack != "SLG | FTO | TiO2-c | Perovskite | Spiro-MeOTAD | Au" {
		t.Errorf("Stack = %q", byID.Stack)
	}
	if !strings.Contains(byID.Markdown, "Spiro-MeOTAD") {
		t.Errorf("Markdown missing layer names:\n%s", byID.Markdown)
	}
}

func TestFetch_WithoutMarkdown(t *testing.T) {
	database := setupDB(t)
	seedDevices(t, database, DefaultWorkspace)

	out, err := Fetch(context.Background(), database, FetchInput{Name: "Cell-2", IncludeMarkdown: boolPtr(false)})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if out.Markdown != "" {
		t.Errorf("Markdown = %q, want empty", out.Markdown)
	}
	if len(out.Perovskite) != 1 || out.Perovskite[0].ShortForm != "FAMAPbI" {
		t.Errorf("Perovskite = %+v", out.Perovskite)
	}
}

func TestFetch_Errors(t *testing.T) {
	database := setupDB(t)
	seedDevices(t, database, "lab")

	tests := []struct {
		name  string
		input FetchInput
		code  errors.ErrorCode
	}{
		{"unknown id", FetchInput{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"}, errors.ErrNotFound},
		{"unknown name", FetchInput{Workspace: "lab", Name: "Cell-99"}, errors.ErrNotFound},
		{"wrong workspace", FetchInput{Workspace: "other", Name: "Cell-1"}, errors.ErrNotFound},
		{"ambiguous", FetchInput{ID: "x", Name: "Cell-1"}, errors.ErrAmbiguousAddressing},
		{"no address", FetchInput{Workspace: "lab"}, errors.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fetch(context.Background(), database, tt.input)
			if !errors.Is(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestFetch_IncludeDeleted(t *testing.T) {
	database := setupDB(t)
	seedDevices(t, database, "lab")
	ctx := context.Background()

	del, err := Delete(ctx, database, DeleteInput{Workspace: "lab", Name: "Cell-1"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := Fetch(ctx, database, FetchInput{ID: del.ID}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND for deleted device, got %v", err)
	}
	out, err := Fetch(ctx, database, FetchInput{ID: del.ID, IncludeDeleted: true})
	if err != nil {
		t.Fatalf("Fetch with include_deleted failed: %v", err)
	}
	if out.DeletedAt == nil {
		t.Error("DeletedAt is nil")
	}
}
