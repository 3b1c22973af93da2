// Package ops implements the device operations shared by the CLI, the MCP
// server and the web app.
package ops

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
)

// DefaultWorkspace is used when a workspace is omitted.
const DefaultWorkspace = "default"

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	DefaultFacetTopN = 20
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

func paginate(limit, offset, maxLimit, defaultLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, max(offset, 0)
}

// Address represents a validated device address.
type Address struct {
	ByID      bool
	ID        string
	Workspace string // normalized, defaulted to "default" for name-mode
	Name      string // normalized
}

// ValidateAddress validates addressing parameters and returns a normalized Address.
// A device is addressed by id alone or by name within a workspace; giving
// both id and name is ambiguous.
func ValidateAddress(id, workspace, name string) (*Address, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)

	hasID := id != ""
	hasName := name != ""

	if hasID && hasName {
		return nil, errors.NewAmbiguousAddressing()
	}
	if !hasID && !hasName {
		return nil, errors.NewInvalidRequest("must specify either id or name")
	}

	if hasID {
		return &Address{ByID: true, ID: id}, nil
	}

	return &Address{
		Workspace: normalizeWorkspace(workspace),
		Name:      record.Normalize(name),
	}, nil
}

func normalizeWorkspace(ws string) string {
	if n := record.Normalize(ws); n != "" {
		return n
	}
	return DefaultWorkspace
}

// optionalWorkspace normalizes an optional workspace filter; blank means none.
func optionalWorkspace(ws *string) *string {
	if ws == nil {
		return nil
	}
	n := record.Normalize(*ws)
	if n == "" {
		return nil
	}
	return &n
}

func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// newID generates a new ULID.
func newID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// FetchKey is the minimal address a client needs to fetch a device.
type FetchKey struct {
	ID        string `json:"id"`
	Workspace string `json:"workspace"`
	Name      string `json:"name"`
}

// BuildFetchKey returns the fetch address of a device.
func BuildFetchKey(workspace, name, id string) FetchKey {
	return FetchKey{ID: id, Workspace: workspace, Name: name}
}

// SummaryItem is a device summary with its fetch address, as returned by
// browse operations.
type SummaryItem struct {
	record.DeviceSummary
	FetchKey FetchKey `json:"fetch_key"`
}

func toSummaryItems(summaries []record.DeviceSummary) []SummaryItem {
	items := make([]SummaryItem, len(summaries))
	for i, s := range summaries {
		items[i] = SummaryItem{
			DeviceSummary: s,
			FetchKey:      BuildFetchKey(s.Workspace, s.Name, s.ID),
		}
	}
	return items
}
