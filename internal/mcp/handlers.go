package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/logging"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Handlers {
	return &Handlers{db: db, cfg: cfg, logger: logging.OrNop(logger)}
}

// Request types for each tool

// IngestRequest represents the arguments for device_ingest.
type IngestRequest struct {
	Path      string `json:"path"`
	Workspace string `json:"workspace,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	Strict    *bool  `json:"strict,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// FetchRequest represents the arguments for device_fetch.
type FetchRequest struct {
	ID              string `json:"id,omitempty"`
	Workspace       string `json:"workspace,omitempty"`
	Name            string `json:"name,omitempty"`
	IncludeDeleted  bool   `json:"include_deleted,omitempty"`
	IncludeMarkdown *bool  `json:"include_markdown,omitempty"`
}

// ListRequest represents the arguments for device_list.
type ListRequest struct {
	Workspace      string  `json:"workspace,omitempty"`
	Architecture   *string `json:"architecture,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	Offset         int     `json:"offset,omitempty"`
	IncludeDeleted bool    `json:"include_deleted,omitempty"`
}

// SearchRequest represents the arguments for device_search.
type SearchRequest struct {
	Query          string   `json:"query"`
	Workspace      *string  `json:"workspace,omitempty"`
	Architecture   *string  `json:"architecture,omitempty"`
	ShortForm      *string  `json:"short_form,omitempty"`
	MinPCE         *float64 `json:"min_pce,omitempty"`
	MaxPCE         *float64 `json:"max_pce,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Offset         int      `json:"offset,omitempty"`
	IncludeDeleted bool     `json:"include_deleted,omitempty"`
}

// FacetsRequest represents the arguments for device_facets.
type FacetsRequest struct {
	Workspace *string `json:"workspace,omitempty"`
	TopN      int     `json:"top_n,omitempty"`
}

// DeleteRequest represents the arguments for device_delete.
type DeleteRequest struct {
	ID        string `json:"id,omitempty"`
	Workspace string `json:"workspace,omitempty"`
	Name      string `json:"name,omitempty"`
}

// PurgeRequest represents the arguments for device_purge.
type PurgeRequest struct {
	Workspace     *string `json:"workspace,omitempty"`
	OlderThanDays *int    `json:"older_than_days,omitempty"`
}

// ExportRequest represents the arguments for device_export.
type ExportRequest struct {
	Path           string  `json:"path,omitempty"`
	Workspace      *string `json:"workspace,omitempty"`
	IncludeDeleted bool    `json:"include_deleted,omitempty"`
}

// SplitRequest represents the arguments for grammar_split.
type SplitRequest struct {
	Text     string            `json:"text"`
	Level    string            `json:"level,omitempty"`
	Parallel map[string]string `json:"parallel,omitempty"`
}

// CoerceRequest represents the arguments for value_coerce.
type CoerceRequest struct {
	Text  string `json:"text"`
	Unit  string `json:"unit,omitempty"`
	Level string `json:"level,omitempty"`
}

// ClassifyRequest represents the arguments for concentration_classify.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// CompositionRequest represents the arguments for composition_build.
type CompositionRequest struct {
	AIons         string `json:"a_ions,omitempty"`
	ACoefficients string `json:"a_coefficients,omitempty"`
	BIons         string `json:"b_ions,omitempty"`
	BCoefficients string `json:"b_coefficients,omitempty"`
	XIons         string `json:"x_ions,omitempty"`
	XCoefficients string `json:"x_coefficients,omitempty"`
}

// Handler implementations

// HandleIngest handles the device_ingest tool call.
func (h *Handlers) HandleIngest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IngestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Ingest(ctx, h.db, h.cfg, h.logger, ops.IngestInput{
		Path:      input.Path,
		Workspace: input.Workspace,
		Sheet:     input.Sheet,
		Strict:    input.Strict,
		DryRun:    input.DryRun,
	})
	if err != nil {
		return h.fail("device_ingest", err), nil
	}
	return successResult(result)
}

// HandleFetch handles the device_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.db, ops.FetchInput{
		ID:              input.ID,
		Workspace:       input.Workspace,
		Name:            input.Name,
		IncludeDeleted:  input.IncludeDeleted,
		IncludeMarkdown: input.IncludeMarkdown,
	})
	if err != nil {
		return h.fail("device_fetch", err), nil
	}
	return successResult(result)
}

// HandleList handles the device_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, ops.ListInput{
		Workspace:      input.Workspace,
		Architecture:   input.Architecture,
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return h.fail("device_list", err), nil
	}
	return successResult(result)
}

// HandleSearch handles the device_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.db, ops.SearchInput{
		Query:          input.Query,
		Workspace:      input.Workspace,
		Architecture:   input.Architecture,
		ShortForm:      input.ShortForm,
		MinPCE:         input.MinPCE,
		MaxPCE:         input.MaxPCE,
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return h.fail("device_search", err), nil
	}
	return successResult(result)
}

// HandleFacets handles the device_facets tool call.
func (h *Handlers) HandleFacets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FacetsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Facets(ctx, h.db, ops.FacetsInput{Workspace: input.Workspace, TopN: input.TopN})
	if err != nil {
		return h.fail("device_facets", err), nil
	}
	return successResult(result)
}

// HandleDelete handles the device_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.db, ops.DeleteInput{
		ID:        input.ID,
		Workspace: input.Workspace,
		Name:      input.Name,
	})
	if err != nil {
		return h.fail("device_delete", err), nil
	}
	return successResult(result)
}

// HandlePurge handles the device_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Purge(ctx, h.db, ops.PurgeInput{
		Workspace:     input.Workspace,
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return h.fail("device_purge", err), nil
	}
	return successResult(result)
}

// HandleExport handles the device_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{
		Path:           input.Path,
		Workspace:      input.Workspace,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return h.fail("device_export", err), nil
	}
	return successResult(result)
}

// HandleSplit handles the grammar_split tool call.
func (h *Handlers) HandleSplit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SplitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Split(ops.SplitInput{Text: input.Text, Level: input.Level, Parallel: input.Parallel})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCoerce handles the value_coerce tool call.
func (h *Handlers) HandleCoerce(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CoerceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Coerce(ops.CoerceInput{Text: input.Text, Unit: input.Unit, Level: input.Level})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleClassify handles the concentration_classify tool call.
func (h *Handlers) HandleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassifyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Classify(ops.ClassifyInput{Text: input.Text})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleComposition handles the composition_build tool call.
func (h *Handlers) HandleComposition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CompositionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Formula(ops.FormulaInput{
		AIons:         input.AIons,
		ACoefficients: input.ACoefficients,
		BIons:         input.BIons,
		BCoefficients: input.BCoefficients,
		XIons:         input.XIons,
		XCoefficients: input.XCoefficients,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// fail logs internal failures of store-backed tools before converting them.
func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	if cErr, ok := errors.As(err); !ok || cErr.Code == errors.ErrInternal {
		h.logger.Error("tool failed", zap.String("tool", tool), zap.Error(err))
	}
	return errorResult(err)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr, ok := errors.As(err); ok {
		message := cErr.Message
		// Keep the context of wrapped errors ("items[2]: ...").
		if full := err.Error(); full != cErr.Error() {
			message = strings.Replace(full, cErr.Error(), cErr.Message, 1)
		}
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": message,
			"status":  cErr.Status,
		}
		if cErr.Code != errors.ErrInternal && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		if cErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
