// Package mcp exposes the device operations as MCP tools over stdio.
package mcp

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/logging"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"device", "grammar", "value", "concentration", "composition"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"device_ingest": {
		def:     ingestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIngest },
	},
	"device_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"device_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"device_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"device_facets": {
		def:     facetsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFacets },
	},
	"device_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"device_purge": {
		def:     purgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurge },
	},
	"device_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"grammar_split": {
		def:     splitToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSplit },
	},
	"value_coerce": {
		def:     coerceToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCoerce },
	},
	"concentration_classify": {
		def:     classifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassify },
	},
	"composition_build": {
		def:     compositionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleComposition },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "device_fetch" → "device").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates an MCP server with the device and grammar tools
// registered. Tools listed in cfg.DisabledTools or belonging to
// cfg.DisabledTypes are left out.
func NewServer(db *sql.DB, cfg *config.Config, logger *zap.Logger, version string) *server.MCPServer {
	logger = logging.OrNop(logger)
	s := server.NewMCPServer(
		"pscdb",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, logger)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	registered := 0
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
		registered++
	}
	logger.Debug("mcp tools registered", zap.Int("count", registered), zap.Int("disabled", len(toolRegistry)-registered))

	return s
}

// Run serves MCP over stdio until stdin closes. Logs go to the zap logger;
// stdout carries only protocol messages.
func Run(db *sql.DB, cfg *config.Config, logger *zap.Logger, version string) error {
	logger = logging.OrNop(logger)
	s := NewServer(db, cfg, logger, version)
	return server.ServeStdio(s, server.WithErrorLogger(zap.NewStdLog(logger.Named("mcp"))))
}
