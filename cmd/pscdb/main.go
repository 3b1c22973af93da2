package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/logging"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"ingest": true, "fetch": true, "list": true, "search": true, "facets": true,
	"delete": true, "purge": true, "export": true,
	"split": true, "coerce": true, "classify": true, "formula": true,
	"serve": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  ___  ___ ___  ___
  | _ \/ __|/ __|   \| _ )
  |  _/\__ \ (__| |) | _ \
  |_|  |___/\___|___/|___/

  Perovskite solar cell device database

  Usage: pscdb <command> [options]
         pscdb --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fatal("could not determine working directory: %v", err)
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if err := config.ApplyEnv(cfg, ".env"); err != nil {
		fatal("%v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fatal("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	// CLI mode: known subcommand
	if isCLIMode(os.Args) {
		app := newCLIApp(database, cfg, logger)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'pscdb --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, logger, Version); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		database.Close()
		os.Exit(1)
	}
}
