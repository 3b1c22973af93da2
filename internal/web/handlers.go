package web

import (
	"database/sql"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	logger   *zap.Logger
}

// HandleList handles GET /devices: list devices in a workspace.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace")
	if workspace == "" {
		workspace = "default"
	}
	architecture := r.URL.Query().Get("architecture")

	input := ops.ListInput{
		Workspace:      workspace,
		Architecture:   ptrString(architecture),
		Limit:          parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	}

	result, err := ops.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Devices",
			Version: h.renderer.version,
			Nav:     "devices",
		},
		Items:        result.Items,
		Pagination:   result.Pagination,
		Workspace:    workspace,
		Architecture: architecture,
		Deleted:      input.IncludeDeleted,
	})
}

// HandleSearch handles GET /devices/search: full-text search with filters.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")

	data := SearchPageData{
		PageData: PageData{
			Title:   "Search",
			Version: h.renderer.version,
			Nav:     "search",
		},
		Query:        query,
		Workspace:    q.Get("workspace"),
		Architecture: q.Get("architecture"),
		ShortForm:    q.Get("short_form"),
		MinPCE:       q.Get("min_pce"),
		MaxPCE:       q.Get("max_pce"),
		Deleted:      parseBoolParam(r, "include_deleted"),
		HasQuery:     strings.TrimSpace(query) != "",
	}

	if !data.HasQuery {
		// If htmx targets #results (user cleared the search box), return just the results fragment
		if r.Header.Get("HX-Target") == "results" {
			h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
			return
		}
		h.renderer.renderPage(w, r, "search", data)
		return
	}

	minPCE, err := parseFloatParam(data.MinPCE, "min_pce")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	maxPCE, err := parseFloatParam(data.MaxPCE, "max_pce")
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	input := ops.SearchInput{
		Query:          query,
		Workspace:      ptrString(data.Workspace),
		Architecture:   ptrString(data.Architecture),
		ShortForm:      ptrString(data.ShortForm),
		MinPCE:         minPCE,
		MaxPCE:         maxPCE,
		Limit:          parseIntParam(r, "limit", ops.DefaultSearchLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: data.Deleted,
	}

	result, err := ops.Search(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data.Items = result.Items
	data.Pagination = result.Pagination

	// If htmx targets #results, render only the results fragment
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
		return
	}

	h.renderer.renderPage(w, r, "search", data)
}

// HandleFacets handles GET /devices/facets: dashboard aggregates.
func (h *Handlers) HandleFacets(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspace")

	result, err := ops.Facets(r.Context(), h.db, ops.FacetsInput{
		Workspace: ptrString(workspace),
		TopN:      parseIntParam(r, "top_n", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "facets", FacetsPageData{
		PageData: PageData{
			Title:   "Dashboard",
			Version: h.renderer.version,
			Nav:     "facets",
		},
		Workspace: workspace,
		Facets:    result.FacetCounts,
	})
}

// HandleDetail handles GET /devices/{id}: view a single device.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("device ID is required"))
		return
	}

	includeMarkdown := true
	device, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{
		ID:              id,
		IncludeDeleted:  parseBoolParam(r, "include_deleted"),
		IncludeMarkdown: &includeMarkdown,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, device)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   displayName(device.NameRaw, device.ID),
			Version: h.renderer.version,
			Nav:     "devices",
		},
		Device:       device,
		RenderedHTML: h.renderer.renderMarkdown(device.Markdown),
	})
}

// HandleDelete handles DELETE /devices/{id}: soft-delete a device.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("device ID is required"))
		return
	}

	result, err := ops.Delete(r.Context(), h.db, ops.DeleteInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("device deleted", zap.String("id", result.ID))

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/devices")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/devices", http.StatusFound)
}

// HandlePurge handles POST /devices/purge: permanently delete soft-deleted devices.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	input := ops.PurgeInput{
		Workspace: ptrString(r.FormValue("workspace")),
	}

	if days := r.FormValue("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.logger.Info("devices purged", zap.Int("count", result.Purged))

	// HTMX request: return HTML fragment
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="purge-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/devices?include_deleted=true", http.StatusFound)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

// parseFloatParam parses an optional numeric filter. Unlike paging
// parameters a malformed value is rejected rather than ignored.
func parseFloatParam(s, name string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.NewInvalidRequest(name + " must be a number")
	}
	return &v, nil
}

// ptrString returns a pointer to s if non-empty, nil otherwise.
func ptrString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// displayName returns the device name if present, or a truncated ID.
func displayName(name, id string) string {
	if name != "" {
		return name
	}
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}
