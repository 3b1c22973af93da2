package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/ingest"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // ingest: any supported input format
	PathCheckWrite                      // export: .jsonl only
)

func (m PathCheckMode) extensions() []string {
	if m == PathCheckRead {
		return ingest.Formats
	}
	return []string{".jsonl"}
}

// ValidatePath checks a path used by ingest or export:
//  1. no ".." components
//  2. an extension the mode accepts
//  3. the file sits directly in ~/.pscdb/exports or an allowed_paths entry
//     (no subdirectories), unless allow_unsafe_paths is set
//  4. neither the file nor its parent directory is a symlink
//
// Requiring the parent to be an allowed directory leaves no intermediate
// component to swap between the check and the O_NOFOLLOW open.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	exts := mode.extensions()
	if !slices.Contains(exts, strings.ToLower(filepath.Ext(cleaned))) {
		if mode == PathCheckRead {
			return errors.NewUnsupportedFormat(path, exts)
		}
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		allowedDirs, err := getAllowedDirs(cfg)
		if err != nil {
			return err
		}
		parentDir := filepath.Dir(absPath)
		if !isDirectlyInAllowedDir(parentDir, allowedDirs) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v",
					allowedDirs))
		}
		if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}

	// Symlinks are rejected even with allow_unsafe_paths.
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// getAllowedDirs returns the exports directory and the absolute allowed_paths,
// with symlinked entries resolved.
func getAllowedDirs(cfg *config.Config) ([]string, error) {
	exportsDir, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{exportsDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

func isDirectlyInAllowedDir(parentDir string, allowedDirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowedDirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

// DefaultExportsDir returns ~/.pscdb/exports.
func DefaultExportsDir() (string, error) {
	base, err := config.BaseDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(base, "exports"), nil
}

func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename makes s safe as a file name component: path separators
// and ".." become dashes and control characters are dropped.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	s = b.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		s = "unnamed"
	}
	return s
}
