package docs

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fielddoc/fielddoc/internal/catalog"
	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/resolve"
)

func fields(pairs ...any) *ordered.Map[field.Descriptor] {
	m := ordered.New[field.Descriptor](len(pairs) / 2)
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].(field.Descriptor))
	}
	return m
}

func testCatalog() *catalog.Catalog {
	users := catalog.Controller{
		Name:    "UserController",
		Title:   "Users",
		Desc:    "Account management",
		Authors: []catalog.Author{{Name: "Ada", Email: "ada@example.com"}},
	}

	relations := ordered.New[resolve.Relation](1)
	relations.Set("posts", resolve.Relation{Type: "Post", Comment: "Posts"})

	return &catalog.Catalog{
		Entries: []catalog.Entry{
			{
				Action:        "UserController@index",
				Controller:    users,
				URI:           "/users",
				Title:         "List users",
				Methods:       []string{"GET"},
				ResourceClass: "UserResource",
				Route:         catalog.Route{Version: "v1", Module: "admin", Controller: "User", SDKName: "Admin.User.UserIndexApi"},
				Document: resolve.Document{
					Input: fields(
						"fields", field.Descriptor{Type: "string", Default: "*", Comment: "Fields to return", Options: []string{"id", "name"}},
						"filter[role]", field.Descriptor{Type: "string", Options: []string{"admin", "member"}},
						"page", field.Descriptor{Type: "integer", Default: 1, Comment: "Page number."},
					),
					Output: fields(
						"id", field.Descriptor{Type: "integer"},
						"name", field.Descriptor{Type: "string", Required: true, Comment: "Display name"},
						"profile", field.Descriptor{Type: resolve.ArrayType},
						"profile.bio", field.Descriptor{Type: "string"},
						"tags", field.Descriptor{Type: resolve.ArrayType},
						"tags.0", field.Descriptor{Type: "string"},
					),
					Relations: relations,
				},
			},
			{
				Action:      "UserController@store",
				Controller:  users,
				URI:         "/users",
				Title:       "Create user",
				Methods:     []string{"POST"},
				Deprecation: catalog.Deprecation{Deprecated: true, Note: "Use /accounts"},
				Document: resolve.Document{
					Input: fields(
						"name", field.Descriptor{Type: "string", Required: true, Comment: "Display name | short"},
						"email", field.Descriptor{Type: "email"},
					),
				},
			},
			{
				Action:     "UserController@show",
				Controller: users,
				URI:        "/users/{id}",
				Title:      "Show user",
				Methods:    []string{"GET"},
				URIParams:  fields("id", field.Descriptor{Type: "integer", Comment: "User id"}),
			},
		},
		Errors: []*catalog.EndpointError{
			{Action: "GhostController@missing", URI: "/ghosts", Message: "route /ghosts could not be matched to action GhostController@missing"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" Markdown ")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	f, err = ParseFormat("openapi")
	require.NoError(t, err)
	assert.Equal(t, FormatOpenAPI, f)

	f, err = ParseFormat("ZIP")
	require.NoError(t, err)
	assert.Equal(t, FormatZip, f)

	_, err = ParseFormat("html")
	assert.ErrorContains(t, err, "unknown format")
}

func TestContainsPathTraversal(t *testing.T) {
	assert.False(t, containsPathTraversal("docs/out"))
	assert.False(t, containsPathTraversal("/tmp/docs"))
	assert.False(t, containsPathTraversal("..docs"))
	assert.True(t, containsPathTraversal("../docs"))
	assert.True(t, containsPathTraversal(`docs\..\..\etc`))
}

func TestAnchor(t *testing.T) {
	assert.Equal(t, "usercontrollerindex", anchor("UserController@index"))
	assert.Equal(t, "list-users", anchor("List Users"))
}

func TestMarkdownRender(t *testing.T) {
	g := NewMarkdownGenerator(&Config{Title: "Petstore", Version: "2.1", BaseURL: "https://api.example.com"})
	pages := g.Render(testCatalog())

	require.Len(t, pages, 2)

	index := pages["README.md"]
	assert.Contains(t, index, "# Petstore Documentation")
	assert.Contains(t, index, "**Version:** 2.1")
	assert.Contains(t, index, "**Base URL:** `https://api.example.com`")
	assert.Contains(t, index, "| [Users](usercontroller.md) | 3 | Account management |")
	assert.Contains(t, index, "| `GET` | `/users` | [UserController@index](usercontroller.md#usercontrollerindex) | List users |")
	assert.Contains(t, index, "## Undocumented endpoints")
	assert.Contains(t, index, "- `GhostController@missing` `/ghosts`: route /ghosts")

	page := pages["usercontroller.md"]
	assert.Contains(t, page, "# Users\n\n> Account management")
	assert.Contains(t, page, "**Authors:** Ada <ada@example.com>")
	assert.Contains(t, page, "- [List users](#usercontrollerindex)")
	assert.Contains(t, page, "### UserController@index\n\n**List users**\n\n```http\nGET /users\n```")
	assert.Contains(t, page, "**Resource:** `UserResource`")
	assert.Contains(t, page, "**Version:** `v1` | **Module:** `admin` | **SDK:** `Admin.User.UserIndexApi`")
	assert.Contains(t, page, "#### Input")
	assert.Contains(t, page, "| `page` | `integer` | No | `1` | Page number. |")
	assert.Contains(t, page, "| `name` | `string` | Yes | - | Display name \\| short |")
	assert.Contains(t, page, "| `posts` | `Post` | Posts |")
	assert.Contains(t, page, "> **Deprecated:** Use /accounts")
	assert.Contains(t, page, "#### URI parameters\n\n")
	assert.Contains(t, page, "| `id` | `integer` | No | - | User id |")
}

func TestMarkdownEmptyCatalog(t *testing.T) {
	pages := NewMarkdownGenerator(&Config{}).Render(&catalog.Catalog{})
	require.Len(t, pages, 1)
	assert.Contains(t, pages["README.md"], "# API Documentation")
	assert.Contains(t, pages["README.md"], "No endpoints documented.")
}

// dig walks decoded JSON by object keys and array indexes.
func dig(t *testing.T, v any, path ...any) any {
	t.Helper()
	for _, p := range path {
		switch key := p.(type) {
		case string:
			obj, ok := v.(map[string]any)
			require.True(t, ok, "expected object at %v", p)
			v, ok = obj[key]
			require.True(t, ok, "missing key %q", key)
		case int:
			list, ok := v.([]any)
			require.True(t, ok, "expected array at %v", p)
			require.Greater(t, len(list), key)
			v = list[key]
		}
	}
	return v
}

func decodedSpec(t *testing.T, cfg *Config) map[string]any {
	t.Helper()
	data, err := json.Marshal(NewOpenAPIGenerator(cfg).Spec(testCatalog()))
	require.NoError(t, err)
	var spec map[string]any
	require.NoError(t, json.Unmarshal(data, &spec))
	return spec
}

func TestOpenAPISpec(t *testing.T) {
	spec := decodedSpec(t, &Config{Title: "Petstore"})

	assert.Equal(t, "3.0.3", spec["openapi"])
	assert.Equal(t, "Petstore", dig(t, spec, "info", "title"))
	assert.Equal(t, "1.0.0", dig(t, spec, "info", "version"))
	assert.Equal(t, "http://localhost:8080", dig(t, spec, "servers", 0, "url"))
	assert.Equal(t, "UserController", dig(t, spec, "tags", 0, "name"))
	assert.Equal(t, "Account management", dig(t, spec, "tags", 0, "description"))

	index := dig(t, spec, "paths", "/users", "get")
	assert.Equal(t, "UserController@index", dig(t, index, "operationId"))
	assert.Equal(t, []any{"UserController"}, dig(t, index, "tags"))
	assert.Equal(t, "Admin.User.UserIndexApi", dig(t, index, "x-fielddoc-sdk-name"))
	assert.Equal(t, "v1", dig(t, index, "x-fielddoc-api-version"))

	params := dig(t, index, "parameters").([]any)
	require.Len(t, params, 3)
	assert.Equal(t, "fields", dig(t, params[0], "name"))
	assert.Equal(t, "query", dig(t, params[0], "in"))
	assert.Equal(t, []any{"id", "name"}, dig(t, params[0], "schema", "x-fielddoc-values"))
	assert.NotContains(t, dig(t, params[0], "schema"), "enum")
	assert.Equal(t, "filter[role]", dig(t, params[1], "name"))
	assert.Equal(t, []any{"admin", "member"}, dig(t, params[1], "schema", "enum"))
	assert.Equal(t, float64(1), dig(t, params[2], "schema", "default"))

	schema := dig(t, index, "responses", "200", "content", "application/json", "schema")
	assert.Equal(t, "UserResource", dig(t, schema, "title"))
	assert.Equal(t, []any{"name"}, dig(t, schema, "required"))
	assert.Equal(t, "integer", dig(t, schema, "properties", "id", "type"))
	assert.Equal(t, "object", dig(t, schema, "properties", "profile", "type"))
	assert.Equal(t, "string", dig(t, schema, "properties", "profile", "properties", "bio", "type"))
	assert.Equal(t, "array", dig(t, schema, "properties", "tags", "type"))
	assert.Equal(t, "string", dig(t, schema, "properties", "tags", "items", "type"))
	assert.Equal(t, "Post", dig(t, schema, "properties", "posts", "x-fielddoc-resource"))
	assert.NotContains(t, dig(t, schema, "properties"), "profile.bio")

	store := dig(t, spec, "paths", "/users", "post")
	assert.Equal(t, true, dig(t, store, "deprecated"))
	assert.NotContains(t, store, "x-fielddoc-sdk-name")
	assert.NotContains(t, store, "parameters")
	assert.Equal(t, true, dig(t, store, "requestBody", "required"))
	body := dig(t, store, "requestBody", "content", "application/json", "schema")
	assert.Equal(t, "email", dig(t, body, "properties", "email", "format"))
	assert.Equal(t, "Success", dig(t, store, "responses", "200", "description"))
	assert.NotContains(t, dig(t, store, "responses", "200"), "content")

	show := dig(t, spec, "paths", "/users/{id}", "get")
	assert.Equal(t, "path", dig(t, show, "parameters", 0, "in"))
	assert.Equal(t, true, dig(t, show, "parameters", 0, "required"))
	assert.Equal(t, "integer", dig(t, show, "parameters", 0, "schema", "type"))
	assert.Equal(t, "User id", dig(t, show, "parameters", 0, "description"))
}

func TestOpenAPIMultipleMethods(t *testing.T) {
	cat := &catalog.Catalog{Entries: []catalog.Entry{{
		Action:     "UserController@update",
		Controller: catalog.Controller{Name: "UserController"},
		URI:        "/users/{id}",
		Title:      "Update user",
		Methods:    []string{"PUT", "PATCH"},
	}}}

	spec := NewOpenAPIGenerator(&Config{BaseURL: "https://api.example.com"}).Spec(cat)
	paths := spec["paths"].(map[string]any)
	item := paths["/users/{id}"].(map[string]any)
	assert.Equal(t, "UserController@update_put", item["put"].(map[string]any)["operationId"])
	assert.Equal(t, "UserController@update_patch", item["patch"].(map[string]any)["operationId"])
	assert.Equal(t, []map[string]any{{"url": "https://api.example.com"}}, spec["servers"])
}

func TestTypeSchema(t *testing.T) {
	tests := []struct {
		typ  string
		want map[string]any
	}{
		{"integer", map[string]any{"type": "integer"}},
		{"numeric", map[string]any{"type": "number"}},
		{"float", map[string]any{"type": "number"}},
		{"boolean", map[string]any{"type": "boolean"}},
		{"array", map[string]any{"type": "array", "items": map[string]any{}}},
		{"json", map[string]any{"type": "object"}},
		{"url", map[string]any{"type": "string", "format": "uri"}},
		{"date", map[string]any{"type": "string", "format": "date"}},
		{"file", map[string]any{"type": "string", "format": "binary"}},
		{"mixed", map[string]any{}},
		{"Carbon", map[string]any{"type": "string"}},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, typeSchema(field.Descriptor{Type: tt.typ}))
		})
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(&Config{Title: "Petstore", OutputDir: dir})

	written, err := g.Generate(testCatalog())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "markdown", "README.md"),
		filepath.Join(dir, "markdown", "usercontroller.md"),
		filepath.Join(dir, "openapi.json"),
	}, written)

	data, err := os.ReadFile(filepath.Join(dir, "openapi.json"))
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	written, err = g.Generate(testCatalog(), FormatOpenAPI)
	require.NoError(t, err)
	assert.Len(t, written, 1)

	_, err = NewGenerator(&Config{OutputDir: "../escape"}).Generate(testCatalog())
	assert.ErrorContains(t, err, "path traversal")
}

func TestGenerateZip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	g := NewGenerator(&Config{Title: "Petstore", OutputDir: dir})

	written, err := g.Generate(testCatalog(), FormatZip)
	require.NoError(t, err)
	require.Len(t, written, 4)
	assert.Equal(t, dir+".zip", written[3])
	assert.Equal(t, dir+".zip", g.ArchivePath())

	r, err := zip.OpenReader(dir + ".zip")
	require.NoError(t, err)
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Subset(t, names, []string{
		"docs/",
		"docs/markdown/",
		"docs/markdown/README.md",
		"docs/markdown/usercontroller.md",
		"docs/openapi.json",
	})

	for _, f := range r.File {
		if f.Name != "docs/openapi.json" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		var spec map[string]any
		require.NoError(t, json.NewDecoder(rc).Decode(&spec))
		require.NoError(t, rc.Close())
		assert.Equal(t, "Petstore", dig(t, spec, "info", "title"))
	}
}

func TestGenerateZipWithFormat(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	written, err := NewGenerator(&Config{OutputDir: dir}).Generate(testCatalog(), FormatOpenAPI, FormatZip)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "openapi.json"), dir + ".zip"}, written)

	r, err := zip.OpenReader(dir + ".zip")
	require.NoError(t, err)
	defer r.Close()
	for _, f := range r.File {
		assert.NotContains(t, f.Name, "markdown")
	}
}

func TestArchiveMissingDirectory(t *testing.T) {
	g := NewGenerator(&Config{OutputDir: filepath.Join(t.TempDir(), "missing")})
	_, err := g.Archive()
	assert.ErrorContains(t, err, "failed to read output directory")
}
