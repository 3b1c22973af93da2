package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/composition"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestDevice creates a small n-i-p device with default values for testing.
func newTestDevice(id, workspace, name string) *record.Device {
	now := time.Now().Unix()
	return &record.Device{
		ID:            id,
		WorkspaceRaw:  workspace,
		WorkspaceNorm: record.Normalize(workspace),
		NameRaw:       name,
		NameNorm:      record.Normalize(name),
		Architecture:  "nip",
		Layers: []record.Layer{
			{Name: "SLG"},
			{Name: "FTO"},
			{Name: "TiO2-c", Steps: []record.Step{{Method: "Spray-coating"}}},
			{Name: "Perovskite", Steps: []record.Step{{
				Method:   "Spin-coating",
				Solvents: []record.Solvent{{Name: "DMF"}, {Name: "DMSO"}},
				Solutes:  []record.Solute{{Compound: "PbI2"}, {Compound: "MAI"}},
			}}},
			{Name: "Spiro-MeOTAD"},
			{Name: "Au", Steps: []record.Step{{Method: "Evaporation"}}},
		},
		Perovskite: []record.Composition{{
			Ions: []composition.Ion{
				{Site: "A", Abbreviation: "MA", Coefficient: "1"},
				{Site: "B", Abbreviation: "Pb", Coefficient: "1"},
				{Site: "X", Abbreviation: "I", Coefficient: "3"},
			},
			ShortForm: "MAPbI",
			LongForm:  "MAPbI3",
		}},
		JV:        &record.JV{PCE: record.Known(19.3, "%")},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func stringPtr(s string) *string {
	return &s
}

func TestInsertAndGetByID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	d := newTestDevice("01DEV001", "Lab A", "Cell 1")
	d.Reference = stringPtr("10.1000/xyz")
	d.Source = stringPtr("devices.xlsx")
	d.Warnings = []record.Warning{{Row: 2, Field: "layer_thickness", Code: "LENGTH_MISMATCH", Message: "x"}}

	if err := insert(ctx, db, d); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := GetByID(ctx, db, "01DEV001", false)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.WorkspaceRaw != "Lab A" || got.WorkspaceNorm != "lab a" {
		t.Errorf("workspace = %q/%q", got.WorkspaceRaw, got.WorkspaceNorm)
	}
	if got.NameRaw != "Cell 1" || got.NameNorm != "cell 1" {
		t.Errorf("name = %q/%q", got.NameRaw, got.NameNorm)
	}
	if got.StackString() != "SLG | FTO | TiO2-c | Perovskite | Spiro-MeOTAD | Au" {
		t.Errorf("StackString() = %q", got.StackString())
	}
	if len(got.Perovskite) != 1 || got.Perovskite[0].LongForm != "MAPbI3" {
		t.Errorf("Perovskite = %+v", got.Perovskite)
	}
	if pce := got.PCE(); pce == nil || *pce != 19.3 {
		t.Errorf("PCE() = %v, want 19.3", pce)
	}
	if got.Reference == nil || *got.Reference != "10.1000/xyz" {
		t.Errorf("Reference = %v", got.Reference)
	}
	if len(got.Warnings) != 1 {
		t.Errorf("Warnings = %+v", got.Warnings)
	}
	if got.DeletedAt != nil {
		t.Errorf("DeletedAt = %v, want nil", *got.DeletedAt)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetByID(context.Background(), db, "nonexistent", false)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID should return ErrNotFound, got: %v", err)
	}
}

func TestGetByName(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := insert(ctx, db, newTestDevice("01DEV002", "MyWorkspace", "Champion  Cell")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := GetByName(ctx, db, "myworkspace", "champion cell", false)
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if got.ID != "01DEV002" {
		t.Errorf("ID = %q, want 01DEV002", got.ID)
	}

	_, err = GetByName(ctx, db, "other", "champion cell", false)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND for wrong workspace, got %v", err)
	}
}

func TestGetByName_PrefersLiveDevice(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	old := newTestDevice("01DEV010", "default", "cell")
	if err := insert(ctx, db, old); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := SoftDelete(ctx, db, old.ID); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	// deleted only
	got, err := GetByName(ctx, db, "default", "cell", true)
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if got.ID != old.ID || got.DeletedAt == nil {
		t.Errorf("got %q deleted=%v, want deleted %q", got.ID, got.DeletedAt, old.ID)
	}

	live := newTestDevice("01DEV011", "default", "cell")
	if err := insert(ctx, db, live); err != nil {
		t.Fatalf("Insert after soft delete failed: %v", err)
	}
	got, err = GetByName(ctx, db, "default", "cell", true)
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if got.ID != live.ID {
		t.Errorf("ID = %q, want live %q", got.ID, live.ID)
	}
}

func TestInsert_DuplicateName(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := insert(ctx, db, newTestDevice("01DEV020", "default", "cell")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	err := insert(ctx, db, newTestDevice("01DEV021", "Default", "CELL"))
	if !errors.Is(err, errors.ErrNameAlreadyExists) {
		t.Errorf("insert duplicate = %v, want NAME_ALREADY_EXISTS", err)
	}
}

func sequentialIDs(prefix string) func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s%03d", prefix, n), nil
	}
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		t.Fatal(err)
	}
	return count
}

func TestUpsertAll(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first := newTestDevice("01DEV030", "default", "cell")
	first.CreatedAt = 1000
	created, updated, err := UpsertAll(ctx, db, []*record.Device{first}, sequentialIDs("01NEW"))
	if err != nil || created != 1 || updated != 0 {
		t.Fatalf("UpsertAll(new) = %d, %d, %v", created, updated, err)
	}

	second := newTestDevice("01DEV031", "default", "Cell")
	second.Architecture = "pin"
	second.Layers = second.Layers[:2]
	created, updated, err = UpsertAll(ctx, db, []*record.Device{second}, sequentialIDs("01NEW"))
	if err != nil {
		t.Fatalf("UpsertAll(replace) failed: %v", err)
	}
	if created != 0 || updated != 1 {
		t.Errorf("UpsertAll(replace) = %d created, %d updated", created, updated)
	}
	if second.ID != first.ID || second.CreatedAt != 1000 {
		t.Errorf("replacement ID/CreatedAt = %q/%d, want %q/1000", second.ID, second.CreatedAt, first.ID)
	}

	got, err := GetByID(ctx, db, first.ID, false)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Architecture != "pin" || len(got.Layers) != 2 {
		t.Errorf("replacement not stored: %+v", got)
	}
	if n := countRows(t, db); n != 1 {
		t.Errorf("devices = %d, want 1", n)
	}
}

func TestUpsertAll_AssignsMissingID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	d := newTestDevice("", "default", "cell")
	if _, _, err := UpsertAll(ctx, db, []*record.Device{d}, sequentialIDs("01NEW")); err != nil {
		t.Fatalf("UpsertAll failed: %v", err)
	}
	if d.ID != "01NEW001" {
		t.Errorf("ID = %q, want 01NEW001", d.ID)
	}
}

func TestUpsertAll_RevivesDeletedRow(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := insert(ctx, db, newTestDevice("01DEV032", "lab", "cell")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := SoftDelete(ctx, db, "01DEV032"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	restored := newTestDevice("01DEV032", "archive", "cell")
	restored.CreatedAt = 500
	created, _, err := UpsertAll(ctx, db, []*record.Device{restored}, sequentialIDs("01NEW"))
	if err != nil {
		t.Fatalf("UpsertAll failed: %v", err)
	}
	if created != 1 || restored.ID != "01DEV032" {
		t.Errorf("created = %d, ID = %q", created, restored.ID)
	}

	got, err := GetByID(ctx, db, "01DEV032", false)
	if err != nil {
		t.Fatalf("revived device not live: %v", err)
	}
	if got.WorkspaceNorm != "archive" || got.CreatedAt != 500 || got.DeletedAt != nil {
		t.Errorf("revived = %s created %d deleted %v", got.WorkspaceNorm, got.CreatedAt, got.DeletedAt)
	}
	if _, total, _ := SearchFullText(ctx, db, "Spiro", SearchFilters{}, 10, 0, false); total != 1 {
		t.Errorf("revived device matches %d searches, want 1", total)
	}
	if n := countRows(t, db); n != 1 {
		t.Errorf("devices = %d, want 1", n)
	}
}

func TestUpsertAll_LiveIDElsewhereGetsNewID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := insert(ctx, db, newTestDevice("01DEV033", "lab", "cell")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	copied := newTestDevice("01DEV033", "copy", "cell")
	created, _, err := UpsertAll(ctx, db, []*record.Device{copied}, sequentialIDs("01NEW"))
	if err != nil {
		t.Fatalf("UpsertAll failed: %v", err)
	}
	if created != 1 || copied.ID != "01NEW001" {
		t.Errorf("created = %d, ID = %q", created, copied.ID)
	}
	if n := countRows(t, db); n != 2 {
		t.Errorf("devices = %d, want 2", n)
	}
}

func TestUpsertAll_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	failing := func() (string, error) { return "", fmt.Errorf("entropy exhausted") }
	devices := []*record.Device{
		newTestDevice("01DEV034", "lab", "one"),
		newTestDevice("", "lab", "two"),
	}
	_, _, err := UpsertAll(ctx, db, devices, failing)
	if !errors.Is(err, errors.ErrInternal) {
		t.Fatalf("UpsertAll = %v, want INTERNAL", err)
	}
	if n := countRows(t, db); n != 0 {
		t.Errorf("devices = %d, want 0 after rollback", n)
	}
}

func TestUpsertAll_Cancelled(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := UpsertAll(ctx, db, []*record.Device{newTestDevice("01DEV035", "lab", "x")}, sequentialIDs("01NEW"))
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	db := openTestDB(t)
	err := update(context.Background(), db, newTestDevice("missing", "default", "x"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("update = %v, want NOT_FOUND", err)
	}
}

func TestListByWorkspace(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for i, name := range []string{"a", "b", "c", "d"} {
		d := newTestDevice("01DEV04"+name, "default", name)
		d.UpdatedAt = int64(1000 + i)
		if name == "d" {
			d.Architecture = "pin"
		}
		if err := insert(ctx, db, d); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := insert(ctx, db, newTestDevice("01DEV04z", "other", "z")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := SoftDelete(ctx, db, "01DEV04a"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	tests := []struct {
		name           string
		filters        ListFilters
		limit, offset  int
		includeDeleted bool
		wantNames      []string
		wantTotal      int
	}{
		{name: "live, newest first", limit: 10, wantNames: []string{"d", "c", "b"}, wantTotal: 3},
		{name: "paged", limit: 1, offset: 1, wantNames: []string{"c"}, wantTotal: 3},
		{name: "include deleted", limit: 10, includeDeleted: true, wantNames: []string{"d", "c", "b", "a"}, wantTotal: 4},
		{name: "architecture", filters: ListFilters{Architecture: stringPtr("PIN")}, limit: 10, wantNames: []string{"d"}, wantTotal: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := ListByWorkspace(ctx, db, "default", tt.filters, tt.limit, tt.offset, tt.includeDeleted)
			if err != nil {
				t.Fatalf("ListByWorkspace failed: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(items) != len(tt.wantNames) {
				t.Fatalf("items = %d, want %d", len(items), len(tt.wantNames))
			}
			for i, want := range tt.wantNames {
				if items[i].Name != want {
					t.Errorf("items[%d].Name = %q, want %q", i, items[i].Name, want)
				}
			}
		})
	}
}

func TestListByWorkspace_SummaryColumns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	d := newTestDevice("01DEV050", "default", "cell")
	d.Warnings = []record.Warning{{Code: "X"}, {Code: "Y"}}
	if err := insert(ctx, db, d); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	items, _, err := ListByWorkspace(ctx, db, "default", ListFilters{}, 10, 0, false)
	if err != nil || len(items) != 1 {
		t.Fatalf("ListByWorkspace = %v, %v", items, err)
	}
	s := items[0]
	if s.Stack != d.StackString() || s.ShortForm != "MAPbI" || s.LayerCount != 6 || s.WarningCount != 2 {
		t.Errorf("summary = %+v", s)
	}
	if s.PCE == nil || *s.PCE != 19.3 {
		t.Errorf("PCE = %v", s.PCE)
	}
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := insert(ctx, db, newTestDevice("01DEV060", "default", "cell")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := SoftDelete(ctx, db, "01DEV060"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := SoftDelete(ctx, db, "01DEV060"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second SoftDelete = %v, want NOT_FOUND", err)
	}
	if _, err := GetByID(ctx, db, "01DEV060", false); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetByID(live) = %v, want NOT_FOUND", err)
	}
	got, err := GetByID(ctx, db, "01DEV060", true)
	if err != nil || got.DeletedAt == nil {
		t.Errorf("GetByID(includeDeleted) = %+v, %v", got, err)
	}
}

func TestPurgeDeleted(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, d := range []*record.Device{
		newTestDevice("01DEV070", "a", "one"),
		newTestDevice("01DEV071", "a", "two"),
		newTestDevice("01DEV072", "b", "three"),
		newTestDevice("01DEV073", "b", "live"),
	} {
		if err := insert(ctx, db, d); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	for _, id := range []string{"01DEV070", "01DEV071", "01DEV072"} {
		if err := SoftDelete(ctx, db, id); err != nil {
			t.Fatalf("SoftDelete failed: %v", err)
		}
	}
	// Backdate one deletion by 10 days.
	if _, err := db.Exec("UPDATE devices SET deleted_at = ? WHERE id = ?", time.Now().Add(-240*time.Hour).Unix(), "01DEV070"); err != nil {
		t.Fatal(err)
	}

	days := 7
	n, err := PurgeDeleted(ctx, db, stringPtr("a"), &days)
	if err != nil || n != 1 {
		t.Fatalf("PurgeDeleted(a, 7 days) = %d, %v, want 1", n, err)
	}
	n, err = PurgeDeleted(ctx, db, nil, nil)
	if err != nil || n != 2 {
		t.Fatalf("PurgeDeleted(all) = %d, %v, want 2", n, err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("remaining devices = %d, want 1", count)
	}
}

func TestStreamForExport(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, d := range []*record.Device{
		newTestDevice("01DEV080", "b", "x"),
		newTestDevice("01DEV081", "a", "y"),
		newTestDevice("01DEV082", "a", "gone"),
	} {
		if err := insert(ctx, db, d); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := SoftDelete(ctx, db, "01DEV082"); err != nil {
		t.Fatal(err)
	}

	collect := func(ws *string, includeDeleted bool) []string {
		rows, err := StreamForExport(ctx, db, ws, includeDeleted)
		if err != nil {
			t.Fatalf("StreamForExport failed: %v", err)
		}
		defer rows.Close()
		var ids []string
		for rows.Next() {
			d, err := ScanDeviceFromRows(rows)
			if err != nil {
				t.Fatalf("ScanDeviceFromRows failed: %v", err)
			}
			ids = append(ids, d.ID)
		}
		if err := rows.Err(); err != nil {
			t.Fatal(err)
		}
		return ids
	}

	if got := collect(nil, false); len(got) != 2 || got[0] != "01DEV081" {
		t.Errorf("live export = %v", got)
	}
	if got := collect(nil, true); len(got) != 3 {
		t.Errorf("export with deleted = %v", got)
	}
	if got := collect(stringPtr("b"), false); len(got) != 1 || got[0] != "01DEV080" {
		t.Errorf("workspace export = %v", got)
	}
}
