package query

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fielddoc/fielddoc/internal/resolve"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected []string
		all      bool
	}{
		{
			name:     "everything when not present",
			url:      "/api/posts",
			expected: []string{},
			all:      true,
		},
		{
			name:     "wildcard",
			url:      "/api/posts?fields=*",
			expected: []string{"*"},
			all:      true,
		},
		{
			name:     "nested paths",
			url:      "/api/posts?fields=id,%20author.name,,id",
			expected: []string{"id", "author.name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			sel := ParseSelector(req, resolve.Naming{})

			if !reflect.DeepEqual(sel.Paths(), tt.expected) {
				t.Errorf("ParseSelector() = %v, want %v", sel.Paths(), tt.expected)
			}
			if sel.IsAll() != tt.all {
				t.Errorf("IsAll() = %v, want %v", sel.IsAll(), tt.all)
			}
		})
	}
}

func TestParseSelector_CustomName(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/posts?only=id&fields=name", nil)
	sel := ParseSelector(req, resolve.Naming{SelectorField: "only"})
	assert.Equal(t, []string{"id"}, sel.Paths())
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		naming   resolve.Naming
		expected map[string]string
	}{
		{
			name:     "empty when not present",
			url:      "/api/posts",
			expected: map[string]string{},
		},
		{
			name:     "multiple filters",
			url:      "/api/posts?filter[status]=published&filter[author_id]=123",
			expected: map[string]string{"status": "published", "author_id": "123"},
		},
		{
			name:     "ignores malformed keys",
			url:      "/api/posts?filter=x&filter[]=y&filters[a]=z",
			expected: map[string]string{},
		},
		{
			name:     "custom wrapper",
			url:      "/api/posts?where[status]=1&filter[status]=2",
			naming:   resolve.Naming{FilterWrapper: "where"},
			expected: map[string]string{"status": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			result := ParseFilter(req, tt.naming)

			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ParseFilter() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		url      string
		expected Page
	}{
		{url: "/api/posts", expected: Page{Number: 1, PerPage: 15}},
		{url: "/api/posts?page=3&per_page=20", expected: Page{Number: 3, PerPage: 20}},
		{url: "/api/posts?page=0&per_page=-1", expected: Page{Number: 1, PerPage: 15}},
		{url: "/api/posts?page=x&per_page=1000", expected: Page{Number: 1, PerPage: MaxPerPage}},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			assert.Equal(t, tt.expected, ParsePage(req))
		})
	}

	assert.Equal(t, 40, Page{Number: 3, PerPage: 20}.Offset())
}

func TestParseSort(t *testing.T) {
	allowed := []string{"id", "-created_at", "title"}

	tests := []struct {
		name     string
		url      string
		allowed  []string
		expected []SortField
	}{
		{
			name:     "defaults to first two allowed columns",
			url:      "/api/posts",
			allowed:  allowed,
			expected: []SortField{{"id", Asc}, {"created_at", Desc}},
		},
		{
			name:     "single allowed column default",
			url:      "/api/posts",
			allowed:  []string{"id"},
			expected: []SortField{{"id", Asc}},
		},
		{
			name:     "nothing sortable",
			url:      "/api/posts",
			expected: []SortField{},
		},
		{
			name:     "descending prefix",
			url:      "/api/posts?sort=-title,%20id",
			allowed:  allowed,
			expected: []SortField{{"title", Desc}, {"id", Asc}},
		},
		{
			name:     "allowed entry with prefix matches bare column",
			url:      "/api/posts?sort=created_at",
			allowed:  allowed,
			expected: []SortField{{"created_at", Asc}},
		},
		{
			name:     "hyphen inside column keeps ascending",
			url:      "/api/posts?sort=e-mail,-sign-up",
			allowed:  []string{"e-mail", "sign-up"},
			expected: []SortField{{"e-mail", Asc}, {"sign-up", Desc}},
		},
		{
			name:     "trailing hyphen is part of the column",
			url:      "/api/posts",
			allowed:  []string{"rank-", "-score"},
			expected: []SortField{{"rank-", Asc}, {"score", Desc}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			result, err := ParseSort(req, resolve.Naming{}, tt.allowed)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseSort_Invalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/posts?sort=id,-password", nil)

	_, err := ParseSort(req, resolve.Naming{}, []string{"id"})
	require.Error(t, err)

	var sortErr *InvalidSortFieldError
	require.True(t, errors.As(err, &sortErr))
	assert.Equal(t, "password", sortErr.Field)
	assert.Contains(t, err.Error(), "password")
}

func TestParseRelations(t *testing.T) {
	allowed := []string{"author.profile", "comments"}

	req := httptest.NewRequest(http.MethodGet, "/api/posts?relations=author.profile,comments,author", nil)
	result, err := ParseRelations(req, resolve.Naming{}, allowed)
	require.NoError(t, err)
	assert.Equal(t, []string{"author", "author.profile", "comments"}, result)

	req = httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	result, err = ParseRelations(req, resolve.Naming{}, allowed)
	require.NoError(t, err)
	assert.Equal(t, []string{}, result)
}

func TestParseRelations_Invalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/posts?relations=author.secrets", nil)

	_, err := ParseRelations(req, resolve.Naming{}, []string{"author.profile"})

	var relErr *InvalidRelationPathError
	require.True(t, errors.As(err, &relErr))
	assert.Equal(t, "author.secrets", relErr.Path)
}

func TestExpandPath(t *testing.T) {
	assert.Equal(t, []string{"a", "a.b", "a.b.c"}, ExpandPath("a.b.c"))
	assert.Equal(t, []string{"a"}, ExpandPath(".a."))
}
