package ops

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
)

// devicesCSV holds three devices: an n-i-p MAPbI3 cell, a p-i-n FA/MA cell
// and a tin cell whose thickness column is misaligned with its stack.
var devicesCSV = strings.Join([]string{
	"Ref ID,Ref DOI,Cell architecture,Cell stack sequence,Layer thickness,Perovskite composition a ions,Perovskite composition a ions coefficients,Perovskite composition b ions,Perovskite composition b ions coefficients,Perovskite composition c ions,Perovskite composition c ions coefficients,JV default PCE",
	"Cell-1,10.1000/one,nip,SLG | FTO | TiO2-c | Perovskite | Spiro-MeOTAD | Au,nan | 500 | 50 | 450 | 200 | 80,MA,1,Pb,1,I,3,19.3",
	"Cell-2,10.1000/two,pin,SLG | ITO | PTAA | Perovskite | C60 | BCP | Ag,nan | 150 | 10 | 500 | 30 | 8 | 100,FA; MA,0.85; 0.15,Pb,1,I,3,21.5",
	"Cell-3,,nip,SLG | FTO | TiO2-c | Perovskite | Spiro-MeOTAD | Au,10 | 20,FA,1,Sn,1,I,3,nan",
}, "\n") + "\n"

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	return cfg
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// seedDevices ingests devicesCSV into workspace.
func seedDevices(t *testing.T, database *sql.DB, workspace string) *IngestOutput {
	t.Helper()
	out, err := Ingest(context.Background(), database, testConfig(), nil, IngestInput{
		Path:      writeFile(t, "devices.csv", devicesCSV),
		Workspace: workspace,
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if out.Created != 3 {
		t.Fatalf("Created = %d, want 3", out.Created)
	}
	return out
}

func stringPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func boolPtr(b bool) *bool { return &b }
