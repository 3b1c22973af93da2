package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/ingest"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/logging"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

// IngestInput contains parameters for the Ingest operation.
type IngestInput struct {
	Path      string // required
	Workspace string // default: "default"; for export files, overrides the stored workspaces
	Sheet     string // xlsx only; default: first sheet
	Strict    *bool  // overrides strict_alignment from config
	DryRun    bool   // build and report without storing
}

// IngestRowError reports a rejected row.
type IngestRowError struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// IngestOutput contains the result of the Ingest operation.
type IngestOutput struct {
	Path           string                 `json:"path"`
	Rows           int                    `json:"rows"`
	Created        int                    `json:"created"`
	Updated        int                    `json:"updated"`
	Rejected       int                    `json:"rejected"`
	Warnings       int                    `json:"warnings"`
	Truncated      bool                   `json:"truncated,omitempty"`
	Restored       bool                   `json:"restored,omitempty"`
	DryRun         bool                   `json:"dry_run,omitempty"`
	UnknownColumns []string               `json:"unknown_columns,omitempty"`
	Errors         []IngestRowError       `json:"errors,omitempty"`
	Devices        []record.DeviceSummary `json:"devices,omitempty"` // dry run only, first MaxListLimit
}

// Ingest reads a spreadsheet, CSV or JSON file and stores one device per row,
// replacing live devices with the same workspace and name. A JSONL file
// written by Export is restored as-is, reviving soft-deleted devices under
// their stored IDs. All devices of one file are stored in a single
// transaction.
func Ingest(ctx context.Context, database *sql.DB, cfg *config.Config, logger *zap.Logger, input IngestInput) (*IngestOutput, error) {
	logger = logging.OrNop(logger)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	out := &IngestOutput{Path: input.Path, DryRun: input.DryRun}
	var devices []*record.Device
	var err error
	if ingest.IsExportFile(input.Path) {
		out.Restored = true
		devices, err = readExport(input)
	} else {
		devices, err = buildRows(ctx, cfg, logger, input, out)
	}
	if err != nil {
		return nil, err
	}

	for _, d := range devices {
		out.Warnings += len(d.Warnings)
	}

	if input.DryRun {
		out.Devices = make([]record.DeviceSummary, 0, min(len(devices), MaxListLimit))
		for _, d := range devices[:min(len(devices), MaxListLimit)] {
			out.Devices = append(out.Devices, d.ToSummary())
		}
		return out, nil
	}

	now := time.Now().Unix()
	for _, d := range devices {
		if d.CreatedAt == 0 {
			d.CreatedAt = now
		}
		d.UpdatedAt = now
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("ingest")
	}
	out.Created, out.Updated, err = db.UpsertAll(ctx, database, devices, newID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("ingest")
		}
		return nil, err
	}

	logger.Info("ingest complete",
		zap.String("path", input.Path),
		zap.Int("rows", out.Rows),
		zap.Int("created", out.Created),
		zap.Int("updated", out.Updated),
		zap.Int("rejected", out.Rejected),
		zap.Int("warnings", out.Warnings),
	)
	return out, nil
}

func buildRows(ctx context.Context, cfg *config.Config, logger *zap.Logger, input IngestInput, out *IngestOutput) ([]*record.Device, error) {
	format, _ := ingest.FormatOf(input.Path)
	f, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open ingest file: %w", err))
	}
	defer f.Close()

	table, err := ingest.Read(f, format, ingest.ReadOptions{Sheet: input.Sheet, MaxRows: cfg.MaxIngestRows})
	if err != nil {
		return nil, err
	}
	out.Rows = len(table.Rows)
	out.Truncated = table.Truncated
	if table.Truncated {
		logger.Warn("row limit reached", zap.String("path", input.Path), zap.Int("max_ingest_rows", cfg.MaxIngestRows))
	}
	if unknown := ingest.UnknownColumns(table.Headers); len(unknown) > 0 {
		out.UnknownColumns = unknown
		logger.Warn("unknown columns ignored",
			zap.String("path", input.Path),
			zap.Strings("columns", unknown),
			zap.Strings("known_columns", ingest.KnownColumns()),
		)
	}

	strict := cfg.StrictAlignment
	if input.Strict != nil {
		strict = *input.Strict
	}
	workspace := strings.TrimSpace(input.Workspace)
	if workspace == "" {
		workspace = DefaultWorkspace
	}

	results, err := ingest.Run(ctx, table.Rows, ingest.RunOptions{
		BuildOptions: ingest.BuildOptions{
			Workspace:       workspace,
			Source:          input.Path,
			StrictAlignment: strict,
			Logger:          logger,
		},
		Workers: cfg.IngestWorkers,
	})
	if err != nil {
		return nil, err
	}

	devices := make([]*record.Device, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			out.Rejected++
			rowErr := IngestRowError{Row: res.Row, Code: string(errors.ErrInternal), Message: res.Err.Error()}
			if cErr, ok := errors.As(res.Err); ok {
				rowErr.Code, rowErr.Message = string(cErr.Code), cErr.Message
			}
			out.Errors = append(out.Errors, rowErr)
			continue
		}
		devices = append(devices, res.Device)
	}
	return devices, nil
}

func readExport(input IngestInput) ([]*record.Device, error) {
	f, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open export file: %w", err))
	}
	defer f.Close()

	_, devices, err := ingest.ReadExport(f)
	if err != nil {
		return nil, err
	}
	ws := strings.TrimSpace(input.Workspace)
	for _, d := range devices {
		if ws != "" {
			d.WorkspaceRaw = ws
			d.WorkspaceNorm = record.Normalize(ws)
		}
		// Deleted devices are restored live.
		d.DeletedAt = nil
	}
	return devices, nil
}
