package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path           string  // optional, default: ~/.pscdb/exports/<workspace>-<timestamp>.jsonl
	Workspace      *string // optional filter by workspace
	IncludeDeleted bool
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes devices to a JSONL file: a header line followed by one
// device per line. Ingest restores such a file.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	workspace := optionalWorkspace(input.Workspace)
	now := time.Now()
	exportedAt := now.Unix()

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(workspace, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are checked too; they embed the workspace.
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write a temp file and rename it into place; a failed export leaves any
	// existing file untouched.
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	rows, err := db.StreamForExport(ctx, database, workspace, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*record.Device
	for rows.Next() {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("export")
		}
		d, err := db.ScanDeviceFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	header := record.ExportHeader{
		Export:        true,
		SchemaVersion: record.ExportSchemaVersion,
		ExportedAt:    exportedAt,
		Count:         len(devices),
	}
	if workspace != nil {
		header.Workspace = *workspace
	}
	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}
	for _, d := range devices {
		if err := enc.Encode(d); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Windows cannot rename an open file.
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails if the destination exists; the existing
	// file is kept.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path on Windows")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      len(devices),
		ExportedAt: exportedAt,
	}, nil
}

// defaultExportPath returns ~/.pscdb/exports/<workspace>-<timestamp>.jsonl,
// or all-<timestamp>.jsonl without a workspace.
func defaultExportPath(workspace *string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}

	name := "all"
	if workspace != nil {
		name = SanitizeForFilename(*workspace)
	}
	filename := fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405"))
	return filepath.Join(dir, filename), nil
}
