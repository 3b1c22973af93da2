package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/ops"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.App {
	app := &cli.App{
		Name:    "pscdb",
		Usage:   "Perovskite solar cell device database",
		Version: Version,
		Commands: []*cli.Command{
			ingestCmd(db, cfg, logger),
			fetchCmd(db),
			listCmd(db),
			searchCmd(db),
			facetsCmd(db),
			deleteCmd(db),
			purgeCmd(db),
			exportCmd(db, cfg),
			splitCmd(),
			coerceCmd(),
			classifyCmd(),
			formulaCmd(),
			serveCmd(db, cfg, logger),
		},
		// Cells may contain commas; each --parallel value is taken whole.
		DisableSliceFlagSeparator: true,
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func workspaceFlag() cli.Flag {
	return &cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Value: "default", Usage: "Workspace name"}
}

// ingestCmd creates the ingest command.
func ingestCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest devices from a CSV, TSV, XLSX or JSONL export file",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "sheet", Usage: "XLSX sheet name (default: first sheet)"},
			&cli.BoolFlag{Name: "strict", Usage: "Reject rows whose parallel fields are misaligned"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Parse and build without writing"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one input path is required"))
			}
			input := ops.IngestInput{
				Path:      c.Args().First(),
				Workspace: c.String("workspace"),
				Sheet:     c.String("sheet"),
				DryRun:    c.Bool("dry-run"),
			}
			if c.IsSet("strict") {
				strict := c.Bool("strict")
				input.Strict = &strict
			}

			output, err := ops.Ingest(c.Context, db, cfg, logger, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a device by ID or name",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Device name"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted devices"},
			&cli.BoolFlag{Name: "no-markdown", Usage: "Exclude the markdown description"},
		},
		Action: func(c *cli.Context) error {
			input := ops.FetchInput{
				IncludeDeleted: c.Bool("include-deleted"),
			}

			// Check for positional ID argument
			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Workspace = c.String("workspace")
				input.Name = c.String("name")
			}

			if c.Bool("no-markdown") {
				includeMarkdown := false
				input.IncludeMarkdown = &includeMarkdown
			}

			output, err := ops.Fetch(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List devices in a workspace",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "architecture", Aliases: []string{"a"}, Usage: "Filter by architecture (nip, pin, ...)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted devices"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{
				Workspace:      c.String("workspace"),
				Architecture:   optionalString(c, "architecture"),
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			}

			output, err := ops.List(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search over names, stacks, compositions and references",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace"},
			&cli.StringFlag{Name: "architecture", Aliases: []string{"a"}, Usage: "Filter by architecture"},
			&cli.StringFlag{Name: "short-form", Usage: "Filter by perovskite short form, e.g. MAPbI"},
			&cli.Float64Flag{Name: "min-pce", Usage: "Minimum PCE in percent"},
			&cli.Float64Flag{Name: "max-pce", Usage: "Maximum PCE in percent"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultSearchLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted devices"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SearchInput{
				Query:          strings.Join(c.Args().Slice(), " "),
				Workspace:      optionalString(c, "workspace"),
				Architecture:   optionalString(c, "architecture"),
				ShortForm:      optionalString(c, "short-form"),
				MinPCE:         optionalFloat(c, "min-pce"),
				MaxPCE:         optionalFloat(c, "max-pce"),
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			}

			output, err := ops.Search(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// facetsCmd creates the facets command.
func facetsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "facets",
		Usage: "Summarize devices: counts by architecture and perovskite, PCE statistics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace"},
			&cli.IntFlag{Name: "top", Usage: "Buckets per facet (default 10)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Facets(c.Context, db, ops.FacetsInput{
				Workspace: optionalString(c, "workspace"),
				TopN:      c.Int("top"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a device",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			workspaceFlag(),
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Device name"},
		},
		Action: func(c *cli.Context) error {
			input := ops.DeleteInput{}

			// Check for positional ID argument
			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Workspace = c.String("workspace")
				input.Name = c.String("name")
			}

			output, err := ops.Delete(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted devices",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace"},
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{
				Workspace: optionalString(c, "workspace"),
			}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export devices to a JSONL file that ingest can restore",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.pscdb/exports/<workspace>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted devices"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{
				Path:           c.String("path"),
				Workspace:      optionalString(c, "workspace"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// splitCmd creates the split command.
func splitCmd() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Split a delimited cell into tokens",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "level", Value: ops.LevelLayer, Usage: "layer, item, step or nested"},
			&cli.StringSliceFlag{Name: "parallel", Usage: "name=text cell that must align with text (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			parallel, err := parseParallel(c.StringSlice("parallel"))
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Split(ops.SplitInput{
				Text:     strings.Join(c.Args().Slice(), " "),
				Level:    c.String("level"),
				Parallel: parallel,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// coerceCmd creates the coerce command.
func coerceCmd() *cli.Command {
	return &cli.Command{
		Name:      "coerce",
		Usage:     "Coerce tokens into typed values, optionally converting units",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "unit", Aliases: []string{"u"}, Usage: "Target unit, e.g. nm"},
			&cli.StringFlag{Name: "level", Usage: "Split the text first at this level"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Coerce(ops.CoerceInput{
				Text:  strings.Join(c.Args().Slice(), " "),
				Unit:  c.String("unit"),
				Level: c.String("level"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// classifyCmd creates the classify command.
func classifyCmd() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify a concentration string (mg/ml, M, wt%, vol%)",
		ArgsUsage: "<text>",
		Action: func(c *cli.Context) error {
			output, err := ops.Classify(ops.ClassifyInput{Text: strings.Join(c.Args().Slice(), " ")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// formulaCmd creates the formula command.
func formulaCmd() *cli.Command {
	return &cli.Command{
		Name:  "formula",
		Usage: "Build perovskite short form, long form and formula from ion fields",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "a-ions", Usage: "A-site ions, e.g. \"FA; MA\""},
			&cli.StringFlag{Name: "a-coefficients", Usage: "A-site coefficients"},
			&cli.StringFlag{Name: "b-ions", Usage: "B-site ions"},
			&cli.StringFlag{Name: "b-coefficients", Usage: "B-site coefficients"},
			&cli.StringFlag{Name: "x-ions", Usage: "X-site ions"},
			&cli.StringFlag{Name: "x-coefficients", Usage: "X-site coefficients"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Formula(ops.FormulaInput{
				AIons:         c.String("a-ions"),
				ACoefficients: c.String("a-coefficients"),
				BIons:         c.String("b-ions"),
				BCoefficients: c.String("b-coefficients"),
				XIons:         c.String("x-ions"),
				XCoefficients: c.String("x-coefficients"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the device browser over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(db, cfg, logger, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, logger)
		},
	}
}

// Helper functions

// outputJSON writes result as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// optionalString returns a pointer to the flag value when it is non-empty.
func optionalString(c *cli.Context, name string) *string {
	if v := strings.TrimSpace(c.String(name)); v != "" {
		return &v
	}
	return nil
}

// optionalFloat returns a pointer to the flag value when it was set.
func optionalFloat(c *cli.Context, name string) *float64 {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Float64(name)
	return &v
}

// parseParallel turns name=text pairs into a map.
func parseParallel(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, text, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("parallel must be name=text, got %q", p))
		}
		out[name] = text
	}
	return out, nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
