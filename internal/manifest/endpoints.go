package manifest

import (
	"fmt"
	"strings"

	"github.com/fielddoc/fielddoc/internal/catalog"
	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/resolve"
	"github.com/fielddoc/fielddoc/internal/rules"
)

// Actions indexes the actions every controller declares.
func (m *Manifest) Actions() *catalog.ActionIndex {
	ix := catalog.NewActionIndex()
	for name, c := range m.Controllers {
		ix.Add(name, c.Actions...)
	}
	return ix
}

// CatalogEndpoints converts the manifest endpoints in declaration order.
// An endpoint referring to an unknown model fails the whole conversion.
func (m *Manifest) CatalogEndpoints() ([]catalog.Endpoint, error) {
	out := make([]catalog.Endpoint, 0, len(m.Endpoints))
	for _, ep := range m.Endpoints {
		converted, err := m.convert(ep)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s %s: %w", ep.Action, ep.URI, err)
		}
		out = append(out, converted)
	}
	return out, nil
}

func (m *Manifest) convert(ep Endpoint) (catalog.Endpoint, error) {
	controllerName, _, _ := strings.Cut(ep.Action, "@")
	c := m.Controllers[controllerName]

	out := catalog.Endpoint{
		Action:      ep.Action,
		URI:         ep.URI,
		Prefix:      ep.Prefix,
		Name:        ep.Name,
		Methods:     ep.Methods,
		Title:       ep.Title,
		Desc:        ep.Desc,
		CreatedAt:   ep.CreatedAt,
		Authors:     authors(ep.Authors),
		Deprecation: catalog.Deprecation(ep.Deprecated),
		Controller: catalog.Controller{
			Name:        controllerName,
			Title:       c.Title,
			Desc:        c.Desc,
			Authors:     authors(c.Authors),
			Deprecation: catalog.Deprecation(c.Deprecated),
		},
		URIParams: params(ep.Params),
		Shape: resolve.Shape{
			Methods:    ep.Methods,
			Collection: ep.Collection,
			Download:   ep.Download,
			Sorts:      ep.Sorts,
		},
	}
	if out.Prefix == "" {
		out.Prefix = c.Prefix
	}
	if len(out.Authors) == 0 {
		out.Authors = out.Controller.Authors
	}
	if !out.Deprecation.Deprecated {
		out.Deprecation = out.Controller.Deprecation
	}

	if ep.Request != nil {
		req, err := m.requestSource(ep.Request)
		if err != nil {
			return catalog.Endpoint{}, err
		}
		out.RequestClass = ep.Request.Class
		out.Request = req
	}

	if ep.Response != nil {
		resp, err := m.responseSource(ep.Response)
		if err != nil {
			return catalog.Endpoint{}, err
		}
		out.HasResponse = true
		out.Response = resp
	}
	return out, nil
}

func (m *Manifest) requestSource(req *Request) (resolve.RequestSource, error) {
	if req.Model == "" {
		return resolve.RequestSource{
			Rules:   req.Rules.Map,
			Labels:  req.Labels,
			Options: req.Options.Source(),
		}, nil
	}

	model := m.Adapter(req.Model)
	var (
		base *ordered.Map[rules.Spec]
		err  error
	)
	switch req.RulesFrom {
	case RulesFromFillable:
		base, err = model.FillableRules()
	case RulesFromFillableOptional:
		base, err = model.FillableRules()
		if err == nil {
			base = rules.StripRequired(base)
		}
	default:
		base, err = model.Rules()
	}
	if err != nil {
		return resolve.RequestSource{}, fmt.Errorf("request model %q: %w", req.Model, err)
	}

	labels, options, err := modelText(model)
	if err != nil {
		return resolve.RequestSource{}, err
	}

	base.Merge(req.Rules.Map)
	return resolve.RequestSource{
		Rules:   base,
		Labels:  mergeLabels(labels, req.Labels),
		Options: chain(req.Options.Source(), options),
	}, nil
}

func (m *Manifest) responseSource(resp *Response) (resolve.ResponseSource, error) {
	set := ordered.New[rules.Spec](0)
	var (
		labels  map[string]string
		options field.OptionSource
	)
	if resp.Model != "" {
		model := m.Adapter(resp.Model)
		base, err := model.Rules()
		if err != nil {
			return resolve.ResponseSource{}, fmt.Errorf("response model %q: %w", resp.Model, err)
		}
		set = base
		if labels, options, err = modelText(model); err != nil {
			return resolve.ResponseSource{}, err
		}
	}
	set.Merge(resp.Rules.Map)

	src := resolve.ResponseSource{
		Resource:       resp.Resource,
		Scenario:       resp.Scenario,
		DeclaredFields: resp.Fields,
		Rules:          set,
		Labels:         mergeLabels(labels, resp.Labels),
		Options:        chain(resp.Options.Source(), options),
		Relations:      resp.Relations,
	}
	if resp.Sample != nil {
		sample, hier := resp.Sample, m.Hierarchy
		src.Render = func() (any, error) {
			return sample.Payload(set, hier), nil
		}
	}
	return src, nil
}

func modelText(model ModelAdapter) (map[string]string, field.OptionSource, error) {
	labels, err := model.Labels()
	if err != nil {
		return nil, nil, err
	}
	options, err := model.Options()
	if err != nil {
		return nil, nil, err
	}
	return labels, options, nil
}

func mergeLabels(base, override map[string]string) map[string]string {
	if len(base) == 0 {
		return override
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func chain(sources ...field.OptionSource) field.OptionSource {
	var present []field.OptionSource
	for _, s := range sources {
		if s != nil {
			present = append(present, s)
		}
	}
	switch len(present) {
	case 0:
		return nil
	case 1:
		return present[0]
	}
	return field.Chain(present...)
}

func authors(in Authors) []catalog.Author {
	out := make([]catalog.Author, 0, len(in))
	for _, a := range in {
		out = append(out, catalog.Author{Name: a.Name, Email: a.Email})
	}
	return out
}

func params(in map[string]Param) map[string]field.Descriptor {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]field.Descriptor, len(in))
	for name, p := range in {
		typ := p.Type
		if typ == "" {
			typ = rules.TypeString
		}
		comment := p.Comment
		if comment == "" {
			comment = name
		}
		out[name] = field.Descriptor{
			Type:       typ,
			TypeDetail: typ,
			Default:    p.Default,
			Comment:    comment,
			Options:    []string{},
		}
	}
	return out
}
