// Package ingest reads curated spreadsheets and JSON files and turns each row
// into a typed device record.
package ingest

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

// Supported input extensions.
var Formats = []string{".xlsx", ".csv", ".json", ".jsonl"}

// Row is one data row keyed by normalized header.
type Row struct {
	// Index is the 1-based position in the source: the spreadsheet line for
	// xlsx/csv, the element or line number for json/jsonl.
	Index int
	Cells map[string]string
}

// Get returns the trimmed cell for a normalized header.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r.Cells[key])
}

// Table is the content of one input file.
type Table struct {
	Source    string
	Headers   []string // normalized, in file order
	Rows      []Row
	Truncated bool // MaxRows was reached
}

// ReadOptions control file reading.
type ReadOptions struct {
	Sheet   string // xlsx sheet; defaults to the first sheet
	MaxRows int    // 0 means unlimited
}

var headerSeparators = regexp.MustCompile(`[\s.\-/]+`)

// NormalizeHeader lowercases and trims a header and replaces runs of spaces,
// dots, dashes and slashes with "_".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = headerSeparators.ReplaceAllString(h, "_")
	return strings.Trim(h, "_")
}

// FormatOf returns the lowercased extension of path if it is supported.
func FormatOf(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range Formats {
		if f == ext {
			return ext, true
		}
	}
	return ext, false
}

// ReadFile opens path and reads it according to its extension.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	ext, ok := FormatOf(path)
	if !ok {
		return nil, errors.NewUnsupportedFormat(path, Formats)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	defer f.Close()

	t, err := Read(f, ext, opts)
	if err != nil {
		return nil, err
	}
	t.Source = path
	return t, nil
}

// Read reads r in the given format (an extension from Formats).
func Read(r io.Reader, format string, opts ReadOptions) (*Table, error) {
	switch format {
	case ".xlsx":
		return readXLSX(r, opts)
	case ".csv":
		return readCSV(r, opts)
	case ".json":
		return readJSON(r, opts)
	case ".jsonl":
		return readJSONL(r, opts)
	}
	return nil, errors.NewUnsupportedFormat(format, Formats)
}

// fromGrid builds a table from a header line followed by data lines.
// lines holds the 1-based source line of each grid entry; nil means i+1.
func fromGrid(grid [][]string, lines []int, opts ReadOptions) *Table {
	t := &Table{}
	start := -1
	for i, line := range grid {
		if !blankLine(line) {
			start = i
			break
		}
	}
	if start == -1 {
		return t
	}

	headers := grid[start]
	t.Headers = make([]string, len(headers))
	for i, h := range headers {
		t.Headers[i] = NormalizeHeader(h)
	}

	for i := start + 1; i < len(grid); i++ {
		line := grid[i]
		if blankLine(line) {
			continue
		}
		if opts.MaxRows > 0 && len(t.Rows) >= opts.MaxRows {
			t.Truncated = true
			break
		}
		cells := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if h == "" || j >= len(line) {
				continue
			}
			if _, dup := cells[h]; dup {
				continue
			}
			cells[h] = line[j]
		}
		index := i + 1
		if lines != nil {
			index = lines[i]
		}
		t.Rows = append(t.Rows, Row{Index: index, Cells: cells})
	}
	return t
}

func blankLine(line []string) bool {
	for _, c := range line {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
