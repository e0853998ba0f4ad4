package catalog

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/metrics"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/resolve"
)

// ErrUnresolvedAction is returned for endpoints whose action is missing from
// the ActionIndex.
var ErrUnresolvedAction = errors.New("action not found")

// EndpointError records why one endpoint could not be documented.
type EndpointError struct {
	Action  string `json:"action"`
	URI     string `json:"uri"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *EndpointError) Error() string {
	return e.Message
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

func newEndpointError(ep Endpoint, err error) *EndpointError {
	var msg string
	if errors.Is(err, ErrUnresolvedAction) {
		msg = fmt.Sprintf("route %s could not be matched to action %s", ep.URI, ep.Action)
	} else {
		msg = fmt.Sprintf("route %s %s: %v", ep.URI, ep.Action, err)
	}
	return &EndpointError{Action: ep.Action, URI: ep.URI, Message: msg, Err: err}
}

// Entry is the documentation of one endpoint.
type Entry struct {
	Action        string                         `json:"action"`
	Controller    Controller                     `json:"controller"`
	Route         Route                          `json:"route"`
	URI           string                         `json:"name"`
	Title         string                         `json:"title"`
	Desc          string                         `json:"desc"`
	Methods       []string                       `json:"methods"`
	CreatedAt     *time.Time                     `json:"created_at"`
	Deprecation   Deprecation                    `json:"deprecated"`
	Authors       []Author                       `json:"author"`
	URIParams     *ordered.Map[field.Descriptor] `json:"uriParams"`
	RequestClass  string                         `json:"requestClass,omitempty"`
	ResourceClass string                         `json:"resourceClass,omitempty"`
	Document      resolve.Document               `json:"document"`
}

// Summary is an Entry without its document, used in listings.
type Summary struct {
	Action     string   `json:"action"`
	Controller string   `json:"controller"`
	URI        string   `json:"name"`
	Title      string   `json:"title"`
	Methods    []string `json:"methods"`
	Deprecated bool     `json:"isDeprecated"`
	Version    string   `json:"version,omitempty"`
	Module     string   `json:"module"`
}

// Summary returns the listing form of e.
func (e Entry) Summary() Summary {
	return Summary{
		Action:     e.Action,
		Controller: e.Controller.Name,
		URI:        e.URI,
		Title:      e.Title,
		Methods:    e.Methods,
		Deprecated: e.Deprecation.Deprecated,
		Version:    e.Route.Version,
		Module:     e.Route.Module,
	}
}

// Catalog is the result of one build.
type Catalog struct {
	Entries []Entry          `json:"entries"`
	Errors  []*EndpointError `json:"errors"`
	BuiltAt time.Time        `json:"builtAt"`
}

// Lookup finds the entry of action.
func (c *Catalog) Lookup(action string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.Action == action {
			return e, true
		}
	}
	return Entry{}, false
}

// ErrorMap returns failure messages keyed by action.
func (c *Catalog) ErrorMap() map[string]string {
	out := make(map[string]string, len(c.Errors))
	for _, e := range c.Errors {
		out[e.Action] = e.Message
	}
	return out
}

// Filter returns the entries matching keyword case-insensitively in title,
// URI, description, controller, action or author names. An empty keyword
// matches everything.
func (c *Catalog) Filter(keyword string) []Entry {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return c.Entries
	}

	out := []Entry{}
	for _, e := range c.Entries {
		if e.matches(keyword) {
			out = append(out, e)
		}
	}
	return out
}

func (e Entry) matches(keyword string) bool {
	candidates := []string{e.Title, e.URI, e.Desc, e.Controller.Name, e.Controller.Title, e.Action}
	for _, a := range e.Authors {
		candidates = append(candidates, a.Name)
	}
	for _, s := range candidates {
		if strings.Contains(strings.ToLower(s), keyword) {
			return true
		}
	}
	return false
}

// Service builds catalogs.
type Service struct {
	Request  resolve.RequestResolver
	Response resolve.ResponseResolver

	// Actions, when set, must contain every endpoint action.
	Actions *ActionIndex

	// Workers bounds concurrent endpoint builds. Zero uses GOMAXPROCS.
	Workers int

	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Build documents every endpoint. Failing endpoints are recorded in
// Catalog.Errors in input order; the others are sorted newest first.
// Cancelling ctx records the remaining endpoints as failed.
func (s *Service) Build(ctx context.Context, endpoints []Endpoint) *Catalog {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	entries := make([]*Entry, len(endpoints))
	failures := make([]error, len(endpoints))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, ep := range endpoints {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			entry, err := s.BuildEntry(ep)
			if err != nil {
				failures[i] = err
				return nil
			}
			entries[i] = &entry
			return nil
		})
	}
	_ = g.Wait()

	cat := &Catalog{Entries: []Entry{}, Errors: []*EndpointError{}, BuiltAt: time.Now()}
	for i, ep := range endpoints {
		if err := failures[i]; err != nil {
			epErr := newEndpointError(ep, err)
			logger.Warn("endpoint skipped",
				zap.String("endpoint", ep.Action),
				zap.String("uri", ep.URI),
				zap.Error(err),
			)
			cat.Errors = append(cat.Errors, epErr)
			continue
		}
		cat.Entries = append(cat.Entries, *entries[i])
	}

	sort.SliceStable(cat.Entries, func(i, j int) bool {
		return createdAt(cat.Entries[i]).After(createdAt(cat.Entries[j]))
	})

	s.Metrics.RecordCatalogBuild(len(cat.Entries), len(cat.Errors))
	logger.Info("catalog built",
		zap.Int("endpoints", len(endpoints)),
		zap.Int("resolved", len(cat.Entries)),
		zap.Int("failed", len(cat.Errors)),
	)
	return cat
}

// BuildEntry documents a single endpoint: output first, then the input that
// refers to the output's attribute and relation names.
func (s *Service) BuildEntry(ep Endpoint) (Entry, error) {
	if s.Actions != nil && !s.Actions.Has(ep.Action) {
		return Entry{}, ErrUnresolvedAction
	}

	var output *resolve.Output
	if ep.HasResponse {
		out, err := s.Response.Resolve(ep.Response)
		if err != nil {
			return Entry{}, err
		}
		output = out
	}

	input := s.Request.Resolve(ep.Request, ep.Shape, output)

	entry := Entry{
		Action:       ep.Action,
		Controller:   ep.Controller,
		Route:        ParseRoute(ep.Prefix, ep.URI, ep.Name, ep.Action),
		URI:          ep.URI,
		Title:        ep.Title,
		Desc:         ep.Desc,
		Methods:      ep.Methods,
		Deprecation:  ep.Deprecation,
		Authors:      ep.Authors,
		URIParams:    uriParams(ep.URI, ep.URIParams),
		RequestClass: ep.RequestClass,
		Document:     resolve.NewDocument(input, output),
	}
	if entry.Title == "" {
		entry.Title = ep.ActionName()
	}
	if entry.Authors == nil {
		entry.Authors = []Author{}
	}
	if ep.HasResponse {
		entry.ResourceClass = ep.Response.Resource
	}
	if !ep.CreatedAt.IsZero() {
		t := ep.CreatedAt
		entry.CreatedAt = &t
	}
	return entry, nil
}

func (s *Service) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func createdAt(e Entry) time.Time {
	if e.CreatedAt == nil {
		return time.Time{}
	}
	return *e.CreatedAt
}
