package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		" Cell Stack Sequence ": "cell_stack_sequence",
		"JV.default-Voc":        "jv_default_voc",
		"Cell/area":             "cell_area",
		"Ref_ID":                "ref_id",
		"--x--":                 "x",
	}
	for in, want := range tests {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadCSV(t *testing.T) {
	data := "Ref_ID,Cell_stack_sequence,Extra\nA,SLG | Au,x\n\nB,SLG,y\n"
	tbl, err := Read(strings.NewReader(data), ".csv", ReadOptions{})
	require.NoError(t, err)

	require.Equal(t, []string{"ref_id", "cell_stack_sequence", "extra"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	require.Equal(t, 2, tbl.Rows[0].Index)
	require.Equal(t, 4, tbl.Rows[1].Index)
	require.Equal(t, "SLG | Au", tbl.Rows[0].Get("cell_stack_sequence"))
	require.Equal(t, []string{"extra"}, UnknownColumns(tbl.Headers))
}

func TestReadCSV_ShortRowAndMaxRows(t *testing.T) {
	data := "ref_id,cell_stack_sequence\nA\nB,SLG\nC,SLG\n"
	tbl, err := Read(strings.NewReader(data), ".csv", ReadOptions{MaxRows: 2})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	require.True(t, tbl.Truncated)
	require.Equal(t, "", tbl.Rows[0].Get("cell_stack_sequence"))
}

func TestReadJSON(t *testing.T) {
	data := `[{"Ref_ID": "A", "layer": {"thickness": "5 | 6"}, "tags": ["x", "y"], "pce": 20.5, "flag": true, "missing": null}]`
	tbl, err := Read(strings.NewReader(data), ".json", ReadOptions{})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)

	want := map[string]string{
		"ref_id":          "A",
		"layer_thickness": "5 | 6",
		"tags":            "x; y",
		"pce":             "20.5",
		"flag":            "true",
		"missing":         "",
	}
	if diff := cmp.Diff(want, tbl.Rows[0].Cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"flag", "layer_thickness", "missing", "pce", "ref_id", "tags"}, tbl.Headers)
}

func TestReadJSON_NotArray(t *testing.T) {
	_, err := Read(strings.NewReader(`{"ref_id": "A"}`), ".json", ReadOptions{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestReadJSONL(t *testing.T) {
	data := `{"_pscdb_export": true, "schema_version": "1"}

{"ref_id": "A"}
{"ref_id": "B", "cell": {"stack_sequence": "SLG | Au"}}
`
	tbl, err := Read(strings.NewReader(data), ".jsonl", ReadOptions{})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	require.Equal(t, 3, tbl.Rows[0].Index)
	require.Equal(t, 4, tbl.Rows[1].Index)
	require.Equal(t, "SLG | Au", tbl.Rows[1].Get(ColStack))

	_, err = Read(strings.NewReader("{broken\n"), ".jsonl", ReadOptions{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func writeWorkbook(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadXLSX(t *testing.T) {
	buf := writeWorkbook(t, "Devices", [][]any{
		{"Ref_ID", "Cell_stack_sequence", "JV_default_PCE"},
		{"Cell-1", "SLG | FTO | Perovskite | Au", 19.3},
		{"Cell-2", "SLG | ITO | Perovskite | Ag", "nan"},
	})

	tbl, err := Read(bytes.NewReader(buf.Bytes()), ".xlsx", ReadOptions{Sheet: "Devices"})
	require.NoError(t, err)
	require.Equal(t, []string{"ref_id", "cell_stack_sequence", "jv_default_pce"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	require.Equal(t, 2, tbl.Rows[0].Index)
	require.Equal(t, "19.3", tbl.Rows[0].Get(ColPCE))
	require.Equal(t, "nan", tbl.Rows[1].Get(ColPCE))

	_, err = Read(bytes.NewReader(buf.Bytes()), ".xlsx", ReadOptions{Sheet: "Missing"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile(filepath.Join(dir, "devices.ods"), ReadOptions{})
	require.True(t, errors.Is(err, errors.ErrUnsupportedFormat), "got %v", err)

	_, err = ReadFile(filepath.Join(dir, "missing.csv"), ReadOptions{})
	require.True(t, errors.Is(err, errors.ErrFileNotFound), "got %v", err)

	path := filepath.Join(dir, "devices.CSV")
	require.NoError(t, os.WriteFile(path, []byte("ref_id\nA\n"), 0600))
	tbl, err := ReadFile(path, ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, path, tbl.Source)
	require.Len(t, tbl.Rows, 1)
}

func TestReadExport(t *testing.T) {
	data := `{"_pscdb_export": true, "schema_version": "1", "exported_at": 1700000000, "count": 1}
{"id": "01ABC", "workspace": "Lab A", "name": "Cell 1", "layers": [{"name": "SLG"}], "created_at": 1, "updated_at": 2}
`
	header, devices, err := ReadExport(strings.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "1", header.SchemaVersion)
	require.Len(t, devices, 1)
	require.Equal(t, "lab a", devices[0].WorkspaceNorm)
	require.Equal(t, "cell 1", devices[0].NameNorm)
	require.Equal(t, "SLG", devices[0].Layers[0].Name)

	_, _, err = ReadExport(strings.NewReader(`{"ref_id": "A"}`))
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestIsExportFile(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "export.jsonl")
	require.NoError(t, os.WriteFile(export, []byte("\n{\"_pscdb_export\": true}\n"), 0600))
	plain := filepath.Join(dir, "rows.jsonl")
	require.NoError(t, os.WriteFile(plain, []byte("{\"ref_id\": \"A\"}\n"), 0600))

	require.True(t, IsExportFile(export))
	require.False(t, IsExportFile(plain))
	require.False(t, IsExportFile(filepath.Join(dir, "rows.csv")))
}
