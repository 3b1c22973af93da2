package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

// MaxSearchQueryChars bounds the length of a full-text query.
const MaxSearchQueryChars = 500

// Snippet highlight markers. They are replaced after HTML escaping.
const (
	SnippetOpen  = "[[[B]]]"
	SnippetClose = "[[[/B]]]"
)

// SearchFilters narrow a full-text search. Nil fields are ignored.
type SearchFilters struct {
	Workspace    *string // normalized
	Architecture *string
	ShortForm    *string // substring of the short form
	MinPCE       *float64
	MaxPCE       *float64
}

// SearchResult is one match with its highlighted context.
type SearchResult struct {
	Summary record.DeviceSummary
	Snippet string
}

// matchExpression quotes every whitespace-separated term so user input is
// never parsed as FTS5 query syntax. Terms are ANDed.
func matchExpression(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " ")
}

func (f SearchFilters) where(includeDeleted bool) ([]string, []any) {
	var where []string
	var args []any
	if !includeDeleted {
		where = append(where, "d.deleted_at IS NULL")
	}
	if f.Workspace != nil {
		where = append(where, "d.workspace_norm = ?")
		args = append(args, *f.Workspace)
	}
	if f.Architecture != nil {
		where = append(where, "d.architecture = ? COLLATE NOCASE")
		args = append(args, *f.Architecture)
	}
	if f.ShortForm != nil {
		where = append(where, "instr(d.short_form, ?) > 0")
		args = append(args, *f.ShortForm)
	}
	if f.MinPCE != nil {
		where = append(where, "d.pce >= ?")
		args = append(args, *f.MinPCE)
	}
	if f.MaxPCE != nil {
		where = append(where, "d.pce <= ?")
		args = append(args, *f.MaxPCE)
	}
	return where, args
}

// SearchFullText ranks devices matching query by BM25, weighting name matches
// above stack matches above the rest of the indexed text.
func SearchFullText(ctx context.Context, db *sql.DB, query string, filters SearchFilters, limit, offset int, includeDeleted bool) ([]SearchResult, int, error) {
	match := matchExpression(query)
	if match == "" {
		return nil, 0, errors.NewInvalidRequest("query is required")
	}

	where, args := filters.where(includeDeleted)
	where = append([]string{"devices_fts MATCH ?"}, where...)
	args = append([]any{match}, args...)
	clause := strings.Join(where, " AND ")

	from := ` FROM devices_fts JOIN devices d ON d.rowid = devices_fts.rowid WHERE ` + clause

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, ftsError(err)
	}

	q := `SELECT d.id, d.workspace_raw, d.workspace_norm, d.name_raw, d.name_norm,
			d.reference, d.architecture, d.stack, d.short_form, d.pce,
			d.layer_count, d.warning_count, d.source,
			d.created_at, d.updated_at, d.deleted_at,
			snippet(devices_fts, -1, '` + SnippetOpen + `', '` + SnippetClose + `', '...', 16)` +
		from +
		` ORDER BY bm25(devices_fts, 5.0, 2.0, 1.0), d.updated_at DESC LIMIT ? OFFSET ?`

	rows, err := db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, ftsError(err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var snippet string
		s, err := scanSummary(snippetScanner{rows: rows, snippet: &snippet})
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, SearchResult{Summary: *s, Snippet: snippet})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// snippetScanner appends the snippet column to a summary scan.
type snippetScanner struct {
	rows    *sql.Rows
	snippet *string
}

func (s snippetScanner) Scan(dest ...any) error {
	return s.rows.Scan(append(dest, s.snippet)...)
}

func ftsError(err error) error {
	if strings.Contains(err.Error(), "fts5") {
		return errors.NewInvalidRequest("invalid search query: " + err.Error())
	}
	return errors.NewInternal(err)
}

// Bucket is one value of a facet and its device count.
type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// PCEStats summarizes the known efficiencies of a device set.
type PCEStats struct {
	Count int      `json:"count"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Mean  *float64 `json:"mean,omitempty"`
}

// FacetCounts are dashboard aggregates over live devices.
type FacetCounts struct {
	Total          int      `json:"total"`
	WithWarnings   int      `json:"with_warnings"`
	ByArchitecture []Bucket `json:"by_architecture"`
	ByShortForm    []Bucket `json:"by_short_form"`
	PCE            PCEStats `json:"pce"`
}

// Facets aggregates live devices, optionally within one workspace.
// ByShortForm lists at most topN values.
func Facets(ctx context.Context, db *sql.DB, workspaceNorm *string, topN int) (*FacetCounts, error) {
	where := "deleted_at IS NULL"
	var args []any
	if workspaceNorm != nil {
		where += " AND workspace_norm = ?"
		args = append(args, *workspaceNorm)
	}

	out := &FacetCounts{}
	var lo, hi, avg sql.NullFloat64
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(warning_count > 0), 0),
			COUNT(pce), MIN(pce), MAX(pce), AVG(pce)
		FROM devices WHERE `+where, args...).Scan(
		&out.Total, &out.WithWarnings,
		&out.PCE.Count, &lo, &hi, &avg,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if lo.Valid {
		out.PCE.Min, out.PCE.Max, out.PCE.Mean = &lo.Float64, &hi.Float64, &avg.Float64
	}

	out.ByArchitecture, err = buckets(ctx, db, `
		SELECT COALESCE(architecture, ''), COUNT(*) FROM devices WHERE `+where+`
		GROUP BY 1 ORDER BY 2 DESC, 1`, args)
	if err != nil {
		return nil, err
	}

	out.ByShortForm, err = buckets(ctx, db, `
		SELECT short_form, COUNT(*) FROM devices WHERE `+where+` AND short_form != ''
		GROUP BY 1 ORDER BY 2 DESC, 1 LIMIT ?`, append(args, topN))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func buckets(ctx context.Context, db *sql.DB, query string, args []any) ([]Bucket, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []Bucket{}
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Value, &b.Count); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}
