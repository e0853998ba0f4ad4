package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fielddoc/fielddoc/internal/catalog"
	apidocs "github.com/fielddoc/fielddoc/internal/docs"
	"github.com/fielddoc/fielddoc/internal/resolve"
	"github.com/fielddoc/fielddoc/internal/web/cache"
	"github.com/fielddoc/fielddoc/internal/web/query"
	"github.com/fielddoc/fielddoc/internal/web/response"
)

// SortColumns are the columns /docs can be sorted by; the first two are the
// default order.
var SortColumns = []string{"-created_at", "name", "title", "controller"}

// Docs serves the current catalog. Publish swaps the catalog atomically, so
// requests never see a partially built one.
type Docs struct {
	current atomic.Pointer[snapshot]

	naming resolve.Naming
	cache  cache.Cache
	logger *zap.Logger
}

// NewDocs creates an empty Docs. c may be nil to disable caching.
func NewDocs(naming resolve.Naming, c cache.Cache, logger *zap.Logger) *Docs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Docs{naming: naming, cache: c, logger: logger}
}

// snapshot pairs a catalog with its generation. Responses and their cache
// keys are both derived from one snapshot.
type snapshot struct {
	cat *catalog.Catalog
	gen uint64
}

func (s *snapshot) key(r *http.Request) string {
	return cache.Key("docs", strconv.FormatUint(s.gen, 10), r.URL.RequestURI())
}

// Publish makes cat the served catalog and invalidates cached responses.
func (d *Docs) Publish(ctx context.Context, cat *catalog.Catalog) {
	for {
		old := d.current.Load()
		next := &snapshot{cat: cat, gen: 1}
		if old != nil {
			next.gen = old.gen + 1
		}
		if d.current.CompareAndSwap(old, next) {
			break
		}
	}
	if d.cache != nil {
		if err := d.cache.Clear(ctx); err != nil {
			d.logger.Warn("failed to clear docs cache", zap.Error(err))
		}
	}
}

// Catalog returns the served catalog, or nil before the first Publish.
func (d *Docs) Catalog() *catalog.Catalog {
	if s := d.current.Load(); s != nil {
		return s.cat
	}
	return nil
}

type listMeta struct {
	Total   int    `json:"total"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Failed  int    `json:"failed"`
	BuiltAt string `json:"built_at"`
}

type listLinks struct {
	Self string `json:"self"`
	Prev string `json:"prev,omitempty"`
	Next string `json:"next,omitempty"`
}

type listBody struct {
	Data  []catalog.Summary `json:"data"`
	Meta  listMeta          `json:"meta"`
	Links listLinks         `json:"links"`
}

func (d *Docs) handleList(w http.ResponseWriter, r *http.Request) {
	snap, ok := d.ready(w)
	if !ok {
		return
	}
	cat := snap.cat

	sorts, err := query.ParseSort(r, d.naming, SortColumns)
	if err != nil {
		response.RenderError(w, http.StatusUnprocessableEntity, err)
		return
	}
	page := query.ParsePage(r)
	filters := query.ParseFilter(r, d.naming)

	d.cached(w, r, snap, func() (any, error) {
		entries := filterEntries(cat.Filter(r.URL.Query().Get("q")), filters)
		sortEntries(entries, sorts)

		total := len(entries)
		start := min(page.Offset(), total)
		end := min(start+page.PerPage, total)

		data := make([]catalog.Summary, 0, end-start)
		for _, e := range entries[start:end] {
			data = append(data, e.Summary())
		}

		body := listBody{
			Data: data,
			Meta: listMeta{
				Total:   total,
				Page:    page.Number,
				PerPage: page.PerPage,
				Failed:  len(cat.Errors),
				BuiltAt: cat.BuiltAt.UTC().Format(time.RFC3339),
			},
			Links: listLinks{Self: pageLink(r, page.Number)},
		}
		if page.Number > 1 {
			body.Links.Prev = pageLink(r, page.Number-1)
		}
		if end < total {
			body.Links.Next = pageLink(r, page.Number+1)
		}
		return body, nil
	})
}

func (d *Docs) handleErrors(w http.ResponseWriter, r *http.Request) {
	snap, ok := d.ready(w)
	if !ok {
		return
	}
	response.RenderJSON(w, http.StatusOK, snap.cat.Errors)
}

func (d *Docs) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	snap, ok := d.ready(w)
	if !ok {
		return
	}

	action := chi.URLParam(r, "action")
	entry, found := snap.cat.Lookup(action)
	if !found {
		response.RenderNotFound(w, fmt.Sprintf("No documentation for %s", action))
		return
	}

	d.cached(w, r, snap, func() (any, error) {
		return entry, nil
	})
}

func (d *Docs) handleOpenAPI(gen *apidocs.OpenAPIGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := d.ready(w)
		if !ok {
			return
		}
		d.cached(w, r, snap, func() (any, error) {
			return gen.Spec(snap.cat), nil
		})
	}
}

func (d *Docs) handleHealth(w http.ResponseWriter, r *http.Request) {
	cat := d.Catalog()
	if cat == nil {
		response.RenderServiceUnavailable(w, "Catalog not built yet")
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"endpoints": len(cat.Entries),
		"failed":    len(cat.Errors),
	})
}

func (d *Docs) ready(w http.ResponseWriter) (*snapshot, bool) {
	snap := d.current.Load()
	if snap == nil {
		response.RenderServiceUnavailable(w, "Catalog not built yet")
		return nil, false
	}
	return snap, true
}

// cached serves the JSON encoding of render, keyed by the generation of
// snap and the request URI. render must only read snap. Cache failures
// fall back to rendering.
func (d *Docs) cached(w http.ResponseWriter, r *http.Request, snap *snapshot, render func() (any, error)) {
	ctx := r.Context()
	key := snap.key(r)

	if d.cache != nil {
		body, err := d.cache.Get(ctx, key)
		if err == nil {
			response.RenderRawJSON(w, http.StatusOK, body)
			return
		}
		if !errors.Is(err, cache.ErrMiss) {
			d.logger.Warn("docs cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	v, err := render()
	if err != nil {
		response.RenderError(w, http.StatusInternalServerError, err)
		return
	}
	body, err := response.Marshal(v)
	if err != nil {
		d.logger.Error("failed to encode docs response", zap.Error(err))
		response.RenderInternalError(w)
		return
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, key, body, 0); err != nil {
			d.logger.Warn("docs cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	response.RenderRawJSON(w, http.StatusOK, body)
}

// filterEntries applies filter[controller], filter[method],
// filter[version] and filter[module].
func filterEntries(entries []catalog.Entry, filters map[string]string) []catalog.Entry {
	controller := filters["controller"]
	method := strings.ToUpper(filters["method"])
	version := filters["version"]
	module := filters["module"]
	if controller == "" && method == "" && version == "" && module == "" {
		return append([]catalog.Entry(nil), entries...)
	}

	out := make([]catalog.Entry, 0, len(entries))
	for _, e := range entries {
		if controller != "" && !strings.EqualFold(e.Controller.Name, controller) {
			continue
		}
		if method != "" && !hasMethod(e.Methods, method) {
			continue
		}
		if version != "" && !strings.EqualFold(e.Route.Version, version) {
			continue
		}
		if module != "" && !strings.EqualFold(e.Route.Module, module) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasMethod(methods []string, method string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func sortEntries(entries []catalog.Entry, sorts []query.SortField) {
	sort.SliceStable(entries, func(i, j int) bool {
		for _, s := range sorts {
			c := compareEntries(entries[i], entries[j], s.Column)
			if c == 0 {
				continue
			}
			if s.Direction == query.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareEntries(a, b catalog.Entry, column string) int {
	switch column {
	case "created_at":
		ta, tb := a.CreatedAt, b.CreatedAt
		switch {
		case ta == nil && tb == nil:
			return 0
		case ta == nil:
			return -1
		case tb == nil:
			return 1
		}
		return ta.Compare(*tb)
	case "name":
		return strings.Compare(a.URI, b.URI)
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "controller":
		return strings.Compare(a.Controller.Name, b.Controller.Name)
	}
	return 0
}

func pageLink(r *http.Request, page int) string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.RequestURI()
}
