package query

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/fielddoc/fielddoc/internal/projection"
	"github.com/fielddoc/fielddoc/internal/resolve"
)

// MaxPerPage caps the per_page parameter.
const MaxPerPage = 100

// filterPattern matches query parameters like filter[key]
var filterPattern = regexp.MustCompile(`^filter\[([^\]]+)\]$`)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortField is one resolved sort column.
type SortField struct {
	Column    string
	Direction Direction
}

// Page is the requested page window.
type Page struct {
	Number  int
	PerPage int
}

// Offset returns the number of items skipped before the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// InvalidSortFieldError reports a sort column outside the allowed set.
type InvalidSortFieldError struct {
	Field   string
	Allowed []string
}

func (e *InvalidSortFieldError) Error() string {
	return fmt.Sprintf("sorting by %q is not allowed", e.Field)
}

// InvalidRelationPathError reports a relation path outside the allowed set.
type InvalidRelationPathError struct {
	Path    string
	Allowed []string
}

func (e *InvalidRelationPathError) Error() string {
	return fmt.Sprintf("relation %q is not available", e.Path)
}

// ParseSelector reads the field selector parameter. A missing parameter
// selects everything.
// Example: ?fields=id,profile.name
func ParseSelector(r *http.Request, naming resolve.Naming) projection.Selection {
	return projection.ParseSelector(r.URL.Query().Get(selectorName(naming)))
}

// ParseFilter parses the filter query parameters into a map of filter keys to values.
// Example: ?filter[status]=published&filter[author_id]=123
// Returns: {"status": "published", "author_id": "123"}
// Returns an empty map if no filter parameters are present.
func ParseFilter(r *http.Request, naming resolve.Naming) map[string]string {
	pattern := filterPattern
	if naming.FilterWrapper != "" && naming.FilterWrapper != "filter" {
		pattern = regexp.MustCompile(`^` + regexp.QuoteMeta(naming.FilterWrapper) + `\[([^\]]+)\]$`)
	}

	result := make(map[string]string)
	for key, values := range r.URL.Query() {
		matches := pattern.FindStringSubmatch(key)
		if len(matches) != 2 {
			continue
		}

		if len(values) > 0 {
			result[matches[1]] = values[0]
		}
	}

	return result
}

// ParsePage reads page and per_page. Missing or malformed values fall back
// to the documented defaults; per_page is capped at MaxPerPage.
func ParsePage(r *http.Request) Page {
	q := r.URL.Query()
	page := Page{Number: resolve.DefaultPage, PerPage: resolve.DefaultPerPage}

	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page.Number = n
	}
	if n, err := strconv.Atoi(q.Get("per_page")); err == nil && n > 0 {
		page.PerPage = min(n, MaxPerPage)
	}

	return page
}

// ParseSort parses the sort query parameter against the allowed columns.
// Example: ?sort=-created_at,title returns created_at descending then title
// ascending. Without a sort parameter the first two allowed columns are used.
// A column outside allowed yields *InvalidSortFieldError.
func ParseSort(r *http.Request, naming resolve.Naming, allowed []string) ([]SortField, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(sortName(naming)))
	if raw == "" {
		if len(allowed) == 0 {
			return []SortField{}, nil
		}
		raw = strings.Join(allowed[:min(2, len(allowed))], ",")
	}

	permitted := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		permitted[strings.TrimPrefix(a, "-")] = true
	}

	parts := splitList(raw)
	result := make([]SortField, 0, len(parts))
	for _, part := range parts {
		dir := Asc
		if strings.HasPrefix(part, "-") {
			dir = Desc
			part = strings.TrimPrefix(part, "-")
		}
		if !permitted[part] {
			return nil, &InvalidSortFieldError{Field: part, Allowed: allowed}
		}
		result = append(result, SortField{Column: part, Direction: dir})
	}

	return result, nil
}

// ParseRelations parses the relations query parameter. Every dotted path is
// expanded to each of its prefixes, so "author.profile" yields "author" and
// "author.profile". A path outside allowed yields *InvalidRelationPathError.
func ParseRelations(r *http.Request, naming resolve.Naming, allowed []string) ([]string, error) {
	raw := r.URL.Query().Get(relationsName(naming))
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}

	permitted := make(map[string]bool)
	for _, a := range allowed {
		for _, p := range ExpandPath(a) {
			permitted[p] = true
		}
	}

	seen := make(map[string]bool)
	result := []string{}
	for _, rel := range splitList(raw) {
		for _, p := range ExpandPath(rel) {
			if !permitted[p] {
				return nil, &InvalidRelationPathError{Path: rel, Allowed: allowed}
			}
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result, nil
}

// ExpandPath returns every prefix of a dotted path, shortest first.
// Example: "a.b.c" returns ["a", "a.b", "a.b.c"]
func ExpandPath(path string) []string {
	segments := strings.Split(strings.Trim(path, "."), ".")
	result := make([]string, 0, len(segments))
	for i := range segments {
		if segments[i] == "" {
			continue
		}
		result = append(result, strings.Join(segments[:i+1], "."))
	}
	return result
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func selectorName(n resolve.Naming) string {
	if n.SelectorField != "" {
		return n.SelectorField
	}
	return resolve.DefaultNaming().SelectorField
}

func sortName(n resolve.Naming) string {
	if n.SortField != "" {
		return n.SortField
	}
	return resolve.DefaultNaming().SortField
}

func relationsName(n resolve.Naming) string {
	if n.RelationsField != "" {
		return n.RelationsField
	}
	return resolve.DefaultNaming().RelationsField
}
