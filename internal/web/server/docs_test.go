package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fielddoc/fielddoc/internal/catalog"
	apidocs "github.com/fielddoc/fielddoc/internal/docs"
	"github.com/fielddoc/fielddoc/internal/metrics"
	"github.com/fielddoc/fielddoc/internal/projection"
	"github.com/fielddoc/fielddoc/internal/resolve"
	"github.com/fielddoc/fielddoc/internal/web/auth"
	"github.com/fielddoc/fielddoc/internal/web/cache"
	"github.com/fielddoc/fielddoc/internal/web/profiling"
	"github.com/fielddoc/fielddoc/internal/web/ratelimit"
)

func stamp(day int) *time.Time {
	t := time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Entries: []catalog.Entry{
			{Action: "UserController@index", URI: "/users", Title: "List users", Methods: []string{"GET"}, CreatedAt: stamp(3), Controller: catalog.Controller{Name: "UserController"}, Route: catalog.Route{Version: "v1", Module: catalog.DefaultModule}},
			{Action: "UserController@store", URI: "/users", Title: "Create user", Methods: []string{"POST"}, CreatedAt: stamp(2), Controller: catalog.Controller{Name: "UserController"}, Route: catalog.Route{Version: "v2", Module: catalog.DefaultModule}},
			{Action: "OrderController@index", URI: "/orders", Title: "List orders", Methods: []string{"GET"}, CreatedAt: stamp(1), Controller: catalog.Controller{Name: "OrderController"}, Route: catalog.Route{Version: "v1", Module: "shop"}},
		},
		Errors: []*catalog.EndpointError{
			{Action: "GhostController@index", URI: "/ghosts", Message: "route /ghosts could not be matched to action GhostController@index"},
		},
		BuiltAt: time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC),
	}
}

func newTestRouter(t *testing.T, cfg RouterConfig) (http.Handler, *Docs) {
	t.Helper()
	if cfg.Docs == nil {
		cfg.Docs = NewDocs(resolve.DefaultNaming(), nil, nil)
	}
	cfg.Docs.Publish(context.Background(), testCatalog())
	return NewRouter(cfg), cfg.Docs
}

func get(t *testing.T, h http.Handler, target string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func actions(body map[string]any) []string {
	out := []string{}
	for _, item := range body["data"].([]any) {
		out = append(out, item.(map[string]any)["action"].(string))
	}
	return out
}

func TestDocs_NotReady(t *testing.T) {
	h := NewRouter(RouterConfig{Docs: NewDocs(resolve.DefaultNaming(), nil, nil)})

	rec, _ := get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = get(t, h, "/docs")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDocs_List(t *testing.T) {
	h, _ := newTestRouter(t, RouterConfig{})

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"default order", "/docs", []string{"UserController@index", "UserController@store", "OrderController@index"}},
		{"keyword", "/docs?q=orders", []string{"OrderController@index"}},
		{"sort by title", "/docs?sort=title", []string{"UserController@store", "OrderController@index", "UserController@index"}},
		{"sort by name then title desc", "/docs?sort=name,-title", []string{"OrderController@index", "UserController@index", "UserController@store"}},
		{"filter controller", "/docs?filter[controller]=ordercontroller", []string{"OrderController@index"}},
		{"filter method", "/docs?filter[method]=post", []string{"UserController@store"}},
		{"filter version", "/docs?filter[version]=V1", []string{"UserController@index", "OrderController@index"}},
		{"filter module", "/docs?filter[module]=shop", []string{"OrderController@index"}},
		{"filter version and module", "/docs?filter[version]=v2&filter[module]=shop", []string{}},
		{"paging", "/docs?per_page=2&page=2", []string{"OrderController@index"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := get(t, h, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, actions(body))
		})
	}
}

func TestDocs_ListMetaAndLinks(t *testing.T) {
	h, _ := newTestRouter(t, RouterConfig{})

	_, body := get(t, h, "/docs?per_page=1&page=2")
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(3), meta["total"])
	assert.Equal(t, float64(1), meta["failed"])
	assert.Equal(t, "2025-01-04T00:00:00Z", meta["built_at"])

	links := body["links"].(map[string]any)
	assert.Equal(t, "/docs?page=1&per_page=1", links["prev"])
	assert.Equal(t, "/docs?page=3&per_page=1", links["next"])
}

func TestDocs_InvalidSort(t *testing.T) {
	h, _ := newTestRouter(t, RouterConfig{})

	rec, body := get(t, h, "/docs?sort=secret")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_failed", body["error"])
}

func TestDocs_ProjectionOnlyFiltersData(t *testing.T) {
	h, _ := newTestRouter(t, RouterConfig{Metrics: metrics.NewCollector("", nil)})

	rec, body := get(t, h, "/docs?fields=action,title")
	require.Equal(t, http.StatusOK, rec.Code)

	first := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"action": "UserController@index", "title": "List users"}, first)
	assert.Contains(t, body, "meta")
	assert.Contains(t, body["links"], "self")
}

func TestDocs_Endpoint(t *testing.T) {
	h, _ := newTestRouter(t, RouterConfig{})

	rec, body := get(t, h, "/docs/endpoints/OrderController@index?fields=name,title")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"name": "/orders", "title": "List orders"}, body)

	rec, _ = get(t, h, "/docs/endpoints/Nope@nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocs_Errors(t *testing.T) {
	h, _ := newTestRouter(t, RouterConfig{})

	rec, _ := get(t, h, "/docs/errors?fields=action")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"action":"GhostController@index"}]`, rec.Body.String())
}

func TestDocs_ResponseWrapper(t *testing.T) {
	h, _ := newTestRouter(t, RouterConfig{
		Projector: projection.New(projection.Config{WrapperKey: "data"}),
	})

	// An object without the wrapper key is sent unchanged.
	rec, body := get(t, h, "/docs/endpoints/OrderController@index?fields=title")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "action")
	assert.Contains(t, body, "document")

	// Lists are filtered directly.
	rec, _ = get(t, h, "/docs/errors?fields=uri")
	assert.JSONEq(t, `[{"uri":"/ghosts"}]`, rec.Body.String())

	// Pagination envelopes still filter data only.
	_, body = get(t, h, "/docs?fields=action")
	assert.Equal(t, map[string]any{"action": "UserController@index"}, body["data"].([]any)[0])
}

func TestDocs_Cache(t *testing.T) {
	c := cache.NewMemoryCache(cache.DefaultConfig())
	defer c.Close()

	docs := NewDocs(resolve.DefaultNaming(), c, nil)
	h, _ := newTestRouter(t, RouterConfig{Docs: docs})

	_, first := get(t, h, "/docs")
	assert.Equal(t, 1, c.Len())

	_, second := get(t, h, "/docs")
	assert.Equal(t, first, second)

	cat := testCatalog()
	cat.Entries = cat.Entries[:1]
	docs.Publish(context.Background(), cat)
	assert.Equal(t, 0, c.Len())

	_, third := get(t, h, "/docs")
	assert.Equal(t, []string{"UserController@index"}, actions(third))
}

// publishingCache publishes next the first time it is read, which lands a
// Publish in the middle of a request.
type publishingCache struct {
	*cache.MemoryCache
	docs *Docs
	next *catalog.Catalog
	keys []string
}

func (c *publishingCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.next != nil {
		next := c.next
		c.next = nil
		c.docs.Publish(ctx, next)
	}
	return c.MemoryCache.Get(ctx, key)
}

func (c *publishingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.keys = append(c.keys, key)
	return c.MemoryCache.Set(ctx, key, value, ttl)
}

func TestDocs_CacheKeyMatchesServedCatalog(t *testing.T) {
	mem := cache.NewMemoryCache(cache.DefaultConfig())
	defer mem.Close()

	c := &publishingCache{MemoryCache: mem}
	docs := NewDocs(resolve.DefaultNaming(), c, nil)
	h, _ := newTestRouter(t, RouterConfig{Docs: docs})

	next := testCatalog()
	next.Entries = next.Entries[2:]
	c.docs, c.next = docs, next

	// The request started on generation 1, so its body is stored under it.
	_, first := get(t, h, "/docs")
	assert.Len(t, actions(first), 3)
	require.Len(t, c.keys, 1)
	assert.Contains(t, c.keys[0], "docs:1:")

	_, second := get(t, h, "/docs")
	assert.Equal(t, []string{"OrderController@index"}, actions(second))
	require.Len(t, c.keys, 2)
	assert.Contains(t, c.keys[1], "docs:2:")

	_, third := get(t, h, "/docs")
	assert.Equal(t, second, third)
	assert.Len(t, c.keys, 2)
}

func TestDocs_Auth(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour)
	h, _ := newTestRouter(t, RouterConfig{Tokens: tokens, Scope: "docs:read"})

	rec, _ := get(t, h, "/docs")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	noScope, err := tokens.Issue("ada")
	require.NoError(t, err)
	rec, _ = get(t, h, "/docs", "Authorization", "Bearer "+noScope)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token, err := tokens.Issue("ada", "docs:read")
	require.NoError(t, err)
	rec, _ = get(t, h, "/docs", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	collector := metrics.NewCollector("", nil)
	h, _ := newTestRouter(t, RouterConfig{Metrics: collector})

	get(t, h, "/docs?fields=action")
	rec, _ := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fielddoc_projection_total{outcome="filtered"} 1`)
}

func TestRouter_Reload(t *testing.T) {
	reload := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h, _ := newTestRouter(t, RouterConfig{Reload: reload})

	rec, _ := get(t, h, "/ws")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRouter_OpenAPI(t *testing.T) {
	h, _ := newTestRouter(t, RouterConfig{})
	rec, _ := get(t, h, "/docs/openapi.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	gen := apidocs.NewOpenAPIGenerator(&apidocs.Config{Title: "Shop"})
	h, _ = newTestRouter(t, RouterConfig{OpenAPI: gen})

	rec, body := get(t, h, "/docs/openapi.json?fields=openapi")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3.0.3", body["openapi"])
	assert.Equal(t, "Shop", body["info"].(map[string]any)["title"])

	paths := body["paths"].(map[string]any)
	assert.Contains(t, paths, "/users")
	assert.Contains(t, paths, "/orders")
	assert.Contains(t, paths["/users"], "post")
}

func TestRouter_RateLimit(t *testing.T) {
	limiter, err := ratelimit.NewTokenBucket(ratelimit.Config{Limit: 1, Window: time.Minute})
	require.NoError(t, err)
	defer limiter.Close()

	h, _ := newTestRouter(t, RouterConfig{Limiter: limiter})

	rec, _ := get(t, h, "/docs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec, _ = get(t, h, "/docs/errors")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Profiling(t *testing.T) {
	h, _ := newTestRouter(t, RouterConfig{})
	rec, _ := get(t, h, "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	tokens := auth.NewTokenService("secret", time.Hour)
	h, _ = newTestRouter(t, RouterConfig{
		Tokens:    tokens,
		Profiling: profiling.Config{Enabled: true, Path: "/debug/pprof"},
	})

	rec, _ = get(t, h, "/debug/pprof/stats")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := tokens.Issue("ops")
	require.NoError(t, err)
	rec, body := get(t, h, "/debug/pprof/stats", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "goroutines")
}
