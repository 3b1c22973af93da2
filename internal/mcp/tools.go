package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/vocab"
)

// Shared addressing parameters.
func addressOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("id", mcp.Description("Device ID (ULID). Mutually exclusive with name.")),
		mcp.WithString("workspace", mcp.Description(`Workspace of a name-addressed device (default "default").`)),
		mcp.WithString("name", mcp.Description("Device name (ref_id) within the workspace. Mutually exclusive with id.")),
	}
}

func paginationOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)."), mcp.Min(0), mcp.Max(100)),
		mcp.WithNumber("offset", mcp.Description("Number of items to skip."), mcp.Min(0)),
		mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted devices.")),
	}
}

func newTool(name, description string, groups ...[]mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(description)}
	for _, g := range groups {
		opts = append(opts, g...)
	}
	return mcp.NewTool(name, opts...)
}

var levelEnum = mcp.Enum("layer", "item", "step", "nested")

// architectureDescription lists the architectures the vocabulary knows.
func architectureDescription() mcp.PropertyOption {
	return mcp.Description("Filter by cell architecture, one of: " +
		strings.Join(vocab.Default().Values(vocab.Architectures), ", ") + ".")
}

var ingestToolDef = newTool("device_ingest",
	"Ingest a curated spreadsheet (.xlsx, .csv, .json, .jsonl) into device records. "+
		"Each row becomes one device; rows are matched to existing devices by workspace and ref_id. "+
		"A .jsonl file written by device_export is restored as-is.",
	[]mcp.ToolOption{
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the file to ingest.")),
		mcp.WithString("workspace", mcp.Description(`Target workspace (default "default"). For exports, overrides the stored workspaces.`)),
		mcp.WithString("sheet", mcp.Description("Worksheet name for .xlsx files (default: first sheet).")),
		mcp.WithBoolean("strict", mcp.Description("Reject rows whose parallel fields disagree in length instead of warning.")),
		mcp.WithBoolean("dry_run", mcp.Description("Build and report without storing.")),
	},
)

var fetchToolDef = newTool("device_fetch",
	"Fetch one device with its layers, perovskite compositions, JV metrics, warnings and a Markdown description.",
	addressOptions(),
	[]mcp.ToolOption{
		mcp.WithBoolean("include_deleted", mcp.Description("Allow fetching a soft-deleted device.")),
		mcp.WithBoolean("include_markdown", mcp.Description("Include the Markdown description (default true).")),
	},
)

var listToolDef = newTool("device_list",
	"List device summaries of a workspace, most recently updated first.",
	[]mcp.ToolOption{
		mcp.WithString("workspace", mcp.Description(`Workspace (default "default").`)),
		mcp.WithString("architecture", architectureDescription()),
	},
	paginationOptions(),
)

var searchToolDef = newTool("device_search",
	"Full-text search over device names, layer stacks, deposition procedures and compositions, ranked by relevance.",
	[]mcp.ToolOption{
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms; every term must match.")),
		mcp.WithString("workspace", mcp.Description("Restrict to one workspace.")),
		mcp.WithString("architecture", architectureDescription()),
		mcp.WithString("short_form", mcp.Description("Filter by perovskite short form substring, e.g. FASnI.")),
		mcp.WithNumber("min_pce", mcp.Description("Minimum power conversion efficiency in percent.")),
		mcp.WithNumber("max_pce", mcp.Description("Maximum power conversion efficiency in percent.")),
	},
	paginationOptions(),
)

var facetsToolDef = newTool("device_facets",
	"Count live devices by architecture and perovskite short form and summarize their efficiencies.",
	[]mcp.ToolOption{
		mcp.WithString("workspace", mcp.Description("Restrict to one workspace (default: all).")),
		mcp.WithNumber("top_n", mcp.Description("Short forms to report (default 20, max 100)."), mcp.Min(0), mcp.Max(100)),
	},
)

var deleteToolDef = newTool("device_delete",
	"Soft-delete a device. It can be restored from an export until purged.",
	addressOptions(),
)

var purgeToolDef = newTool("device_purge",
	"Permanently remove soft-deleted devices.",
	[]mcp.ToolOption{
		mcp.WithString("workspace", mcp.Description("Restrict to one workspace.")),
		mcp.WithNumber("older_than_days", mcp.Description("Only purge devices deleted more than N days ago."), mcp.Min(0)),
	},
)

var exportToolDef = newTool("device_export",
	"Export devices to a JSONL file that device_ingest can restore.",
	[]mcp.ToolOption{
		mcp.WithString("path", mcp.Description("Destination .jsonl path (default ~/.pscdb/exports/<workspace>-<timestamp>.jsonl).")),
		mcp.WithString("workspace", mcp.Description("Restrict to one workspace.")),
		mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted devices.")),
	},
)

var splitToolDef = newTool("grammar_split",
	`Split a delimited cell: " | " separates layers, "; " items and " >> " steps. Tokens are trimmed; sentinels pass through.`,
	[]mcp.ToolOption{
		mcp.WithString("text", mcp.Required(), mcp.Description("Cell text.")),
		mcp.WithString("level", levelEnum, mcp.Description("Separator level (default layer).")),
		mcp.WithObject("parallel", mcp.Description("Named cells that must split into as many tokens as text."),
			mcp.AdditionalProperties(map[string]any{"type": "string"})),
	},
)

var coerceToolDef = newTool("value_coerce",
	"Coerce spreadsheet tokens into typed values: bool, unknown (nan), int, float or quantity, else string.",
	[]mcp.ToolOption{
		mcp.WithString("text", mcp.Required(), mcp.Description("Token or delimited cell.")),
		mcp.WithString("unit", mcp.Description("Target unit, e.g. nm or celsius.")),
		mcp.WithString("level", levelEnum, mcp.Description("Split the text first at this level.")),
	},
)

var classifyToolDef = newTool("concentration_classify",
	"Classify a concentration as mass or molar concentration, mass fraction or volume fraction, in canonical units.",
	[]mcp.ToolOption{
		mcp.WithString("text", mcp.Required(), mcp.Description(`Concentration, e.g. "1.2 M" or "5 wt%".`)),
	},
)

var compositionToolDef = newTool("composition_build",
	"Build perovskite short form, long form and chemical formula from delimited A/B/X site ions and coefficients.",
	[]mcp.ToolOption{
		mcp.WithString("a_ions", mcp.Description(`A-site ions, e.g. "Cs; FA; MA".`)),
		mcp.WithString("a_coefficients", mcp.Description(`A-site coefficients, e.g. "0.05; 0.79; 0.16".`)),
		mcp.WithString("b_ions", mcp.Description("B-site ions.")),
		mcp.WithString("b_coefficients", mcp.Description("B-site coefficients.")),
		mcp.WithString("x_ions", mcp.Description("X-site ions.")),
		mcp.WithString("x_coefficients", mcp.Description("X-site coefficients.")),
	},
)
