package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

func readExportLines(t *testing.T, path string) (record.ExportHeader, []record.Device) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if !sc.Scan() {
		t.Fatal("export file is empty")
	}
	var header record.ExportHeader
	if err := json.Unmarshal(sc.Bytes(), &header); err != nil {
		t.Fatalf("header: %v", err)
	}
	var devices []record.Device
	for sc.Scan() {
		var d record.Device
		if err := json.Unmarshal(sc.Bytes(), &d); err != nil {
			t.Fatalf("device line: %v", err)
		}
		devices = append(devices, d)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return header, devices
}

func TestExport_HappyPath(t *testing.T) {
	database := setupDB(t)
	seedDevices(t, database, "lab")
	seedDevices(t, database, "other")

	path := filepath.Join(t.TempDir(), "lab.jsonl")
	out, err := Export(context.Background(), database, testConfig(), ExportInput{Path: path, Workspace: stringPtr("Lab")})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if out.Path != path || out.Count != 3 || out.ExportedAt == 0 {
		t.Errorf("output = %+v", out)
	}

	header, devices := readExportLines(t, path)
	if !header.Export || header.SchemaVersion != record.ExportSchemaVersion || header.Count != 3 || header.Workspace != "lab" {
		t.Errorf("header = %+v", header)
	}
	if len(devices) != 3 {
		t.Fatalf("devices = %d, want 3", len(devices))
	}
	for _, d := range devices {
		if d.WorkspaceNorm != "lab" || d.ID == "" || len(d.Layers) == 0 {
			t.Errorf("device = %s in %s with %d layers", d.ID, d.WorkspaceNorm, len(d.Layers))
		}
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("permissions = %o, want 600", perm)
		}
	}
}

func TestExport_IncludeDeleted(t *testing.T) {
	database := setupDB(t)
	seedDevices(t, database, "lab")
	if _, err := Delete(context.Background(), database, DeleteInput{Workspace: "lab", Name: "Cell-1"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	dir := t.TempDir()
	live, err := Export(context.Background(), database, testConfig(), ExportInput{Path: filepath.Join(dir, "live.jsonl")})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	all, err := Export(context.Background(), database, testConfig(), ExportInput{Path: filepath.Join(dir, "all.jsonl"), IncludeDeleted: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if live.Count != 2 || all.Count != 3 {
		t.Errorf("live = %d, all = %d", live.Count, all.Count)
	}
}

func TestExport_Empty(t *testing.T) {
	database := setupDB(t)
	path := filepath.Join(t.TempDir(), "empty.jsonl")

	out, err := Export(context.Background(), database, testConfig(), ExportInput{Path: path})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if out.Count != 0 {
		t.Errorf("Count = %d, want 0", out.Count)
	}
	header, devices := readExportLines(t, path)
	if !header.Export || len(devices) != 0 {
		t.Errorf("header = %+v, devices = %d", header, len(devices))
	}
}

func TestExport_OverwritesAndLeavesNoTempFiles(t *testing.T) {
	database := setupDB(t)
	seedDevices(t, database, "lab")
	dir := t.TempDir()
	path := filepath.Join(dir, "backup.jsonl")
	if err := os.WriteFile(path, []byte("stale\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if runtime.GOOS == "windows" {
		t.Skip("rename over an existing file is refused on Windows")
	}

	if _, err := Export(context.Background(), database, testConfig(), ExportInput{Path: path}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want 1", len(entries))
	}
	if _, devices := readExportLines(t, path); len(devices) != 3 {
		t.Errorf("devices = %d, want 3", len(devices))
	}
}

func TestExport_PathErrors(t *testing.T) {
	database := setupDB(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"traversal", filepath.Join(dir, "..", "escape.jsonl")},
		{"wrong extension", filepath.Join(dir, "backup.csv")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Export(context.Background(), database, testConfig(), ExportInput{Path: tt.path})
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected INVALID_REQUEST, got %v", err)
			}
		})
	}
}

func TestDefaultExportPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	all, err := defaultExportPath(nil, now)
	if err != nil {
		t.Fatalf("defaultExportPath failed: %v", err)
	}
	if filepath.Base(all) != "all-2026-03-04T050607.jsonl" {
		t.Errorf("path = %q", all)
	}

	ws, err := defaultExportPath(stringPtr("lab/../a"), now)
	if err != nil {
		t.Fatalf("defaultExportPath failed: %v", err)
	}
	base := filepath.Base(ws)
	if strings.ContainsAny(base, `/\`) || strings.Contains(base, "..") {
		t.Errorf("unsafe file name %q", base)
	}
	if filepath.Base(filepath.Dir(ws)) != "exports" {
		t.Errorf("path %q is not in the exports directory", ws)
	}
}

func TestExport_DefaultPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("HOME does not control the home directory on Windows")
	}
	t.Setenv("HOME", t.TempDir())
	database := setupDB(t)
	seedDevices(t, database, "lab")

	out, err := Export(context.Background(), database, nil, ExportInput{Workspace: stringPtr("lab")})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	exportsDir, err := DefaultExportsDir()
	if err != nil {
		t.Fatalf("DefaultExportsDir failed: %v", err)
	}
	if filepath.Dir(out.Path) != exportsDir || !strings.HasPrefix(filepath.Base(out.Path), "lab-") {
		t.Errorf("Path = %q", out.Path)
	}
}
