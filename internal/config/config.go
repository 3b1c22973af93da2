package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DirName is the name of the global and per-repo configuration directories.
const DirName = ".pscdb"

// Environment variables that override file configuration.
const (
	EnvLogLevel        = "PSCDB_LOG_LEVEL"
	EnvIngestWorkers   = "PSCDB_INGEST_WORKERS"
	EnvStrictAlignment = "PSCDB_STRICT_ALIGNMENT"
)

// Config holds application configuration.
type Config struct {
	// IngestWorkers is the number of rows built concurrently during ingestion.
	IngestWorkers int `json:"ingest_workers,omitempty"`

	// MaxIngestRows caps the number of data rows read from one file.
	MaxIngestRows int `json:"max_ingest_rows,omitempty"`

	// StrictAlignment rejects a whole row when parallel delimited fields
	// disagree in length. When false the affected field is left empty and a
	// warning is recorded on the device.
	StrictAlignment bool `json:"strict_alignment,omitempty"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for ingest/export operations.
	// Paths outside ~/.pscdb/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for ingest/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes disables every tool of a type ("device", "grammar",
	// "value", "concentration", "composition").
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		IngestWorkers: 4,
		MaxIngestRows: 50000,
		LogLevel:      "info",
	}
}

// BaseDir returns ~/.pscdb.
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.pscdb) and repo (.pscdb) directories.
// Repo config is found by walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .pscdb/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, DirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero-valued config (not defaults) if the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		IngestWorkers:  firstNonZero(overlay.IngestWorkers, base.IngestWorkers),
		MaxIngestRows:  firstNonZero(overlay.MaxIngestRows, base.MaxIngestRows),
		DBMaxOpenConns: firstNonZero(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns: firstNonZero(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		LogLevel:       overlay.LogLevel,
	}
	if result.LogLevel == "" {
		result.LogLevel = base.LogLevel
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.StrictAlignment = base.StrictAlignment || overlay.StrictAlignment

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// ApplyEnv overlays PSCDB_* environment variables onto cfg. When dotenvPath
// names an existing file its variables are loaded first; variables already
// set in the process environment win over the file.
func ApplyEnv(cfg *Config, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	if v, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvIngestWorkers); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvIngestWorkers, v)
		}
		cfg.IngestWorkers = n
	}
	if v, ok := os.LookupEnv(EnvStrictAlignment); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be a boolean, got %q", EnvStrictAlignment, v)
		}
		cfg.StrictAlignment = b
	}
	return nil
}
