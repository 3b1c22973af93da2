package ops

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/db"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

// Search limits
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	MaxQueryLength     = db.MaxSearchQueryChars
	MaxSnippetChars    = 300
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query          string   // required
	Workspace      *string  // optional filter
	Architecture   *string  // optional filter
	ShortForm      *string  // optional filter, matches a substring of the short form
	MinPCE         *float64 // optional filter, percent
	MaxPCE         *float64 // optional filter, percent
	Limit          int      // default: 20, max: 100
	Offset         int      // default: 0
	IncludeDeleted bool
}

// SearchResultItem wraps a SummaryItem with a match snippet.
type SearchResultItem struct {
	SummaryItem
	// Snippet is HTML-safe: user-controlled content is escaped; only <b>...</b>
	// highlight tags are present.
	Snippet string `json:"snippet"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []SearchResultItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"` // "relevance"
}

// Search performs full-text search across device names, stacks and
// procedures. Results are ranked by BM25 with name matches weighted highest.
func Search(ctx context.Context, database *sql.DB, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}
	if input.MinPCE != nil && input.MaxPCE != nil && *input.MinPCE > *input.MaxPCE {
		return nil, errors.NewInvalidRequest("min_pce must not exceed max_pce")
	}

	filters := db.SearchFilters{
		Workspace:    optionalWorkspace(input.Workspace),
		Architecture: cleanOptionalString(input.Architecture),
		ShortForm:    cleanOptionalString(input.ShortForm),
		MinPCE:       input.MinPCE,
		MaxPCE:       input.MaxPCE,
	}

	limit, offset := paginate(input.Limit, input.Offset, MaxSearchLimit, DefaultSearchLimit)

	results, total, err := db.SearchFullText(ctx, database, query, filters, limit, offset, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	items := make([]SearchResultItem, len(results))
	for i, r := range results {
		// Escape before truncating so truncation sees the final markup.
		snippet := escapeSnippetHTML(r.Snippet)
		snippet = truncateSnippet(snippet, MaxSnippetChars)

		items[i] = SearchResultItem{
			SummaryItem: SummaryItem{
				DeviceSummary: r.Summary,
				FetchKey:      BuildFetchKey(r.Summary.Workspace, r.Summary.Name, r.Summary.ID),
			},
			Snippet: snippet,
		}
	}

	return &SearchOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "relevance",
	}, nil
}

// truncateSnippet cuts a snippet to about maxChars bytes without splitting a
// rune, a tag or an entity, and closes any <b> left open.
func truncateSnippet(s string, maxChars int) string {
	if maxChars <= 0 {
		return "..."
	}

	if len(s) <= maxChars {
		return s
	}

	// Find a safe truncation point that doesn't split UTF-8 runes
	truncateAt := maxChars
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}

	if truncateAt == 0 {
		return "..."
	}

	truncated := s[:truncateAt]

	// Only <b> and </b> tags and escaped entities can be present here.
	if lastLT := strings.LastIndex(truncated, "<"); lastLT != -1 && !strings.Contains(truncated[lastLT:], ">") {
		truncated = truncated[:lastLT]
	}
	if lastAmp := strings.LastIndex(truncated, "&"); lastAmp != -1 && !strings.Contains(truncated[lastAmp:], ";") {
		truncated = truncated[:lastAmp]
	}

	// Try to cut at word boundary if we're not losing too much content
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > truncateAt/2 {
		truncated = truncated[:lastSpace]
	}

	openTags := strings.Count(truncated, "<b>")
	closeTags := strings.Count(truncated, "</b>")
	unclosedCount := openTags - closeTags

	for range unclosedCount {
		truncated += "</b>"
	}

	return truncated + "..."
}

// escapeSnippetHTML escapes device text in a snippet and turns the FTS5
// highlight markers into <b> tags.
func escapeSnippetHTML(s string) string {
	const (
		openPlaceholder  = "\x00HL_OPEN\x00"
		closePlaceholder = "\x00HL_CLOSE\x00"
	)

	s = strings.ReplaceAll(s, db.SnippetOpen, openPlaceholder)
	s = strings.ReplaceAll(s, db.SnippetClose, closePlaceholder)

	s = html.EscapeString(s)

	s = strings.ReplaceAll(s, openPlaceholder, "<b>")
	s = strings.ReplaceAll(s, closePlaceholder, "</b>")

	return s
}
