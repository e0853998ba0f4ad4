package resolve

import (
	"net/http"
	"strings"

	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/rules"
)

const (
	// DefaultPage is the documented default of the page parameter.
	DefaultPage = 1
	// DefaultPerPage is the documented default of the per_page parameter.
	DefaultPerPage = 15
)

const (
	selectorComment     = "Fields to return, comma separated. Request only what you need; see the output section for field meanings."
	relationsComment    = "Related objects to embed, comma separated. Request only what you need."
	sortCommentSingle   = "Sort column. Prefix with \"-\" for descending order, e.g. <code>sort=-id</code>."
	sortCommentMultiple = "Sort columns, comma separated. Prefix a column with \"-\" for descending order, e.g. <code>sort=type,-id</code> sorts by type ascending then id descending."
	pageComment         = "Page number."
	perPageComment      = "Items per page."
)

// RequestSource is what an endpoint declares about its input.
type RequestSource struct {
	// Rules maps attribute to rule spec. Nil means no validator is bound.
	Rules   *ordered.Map[rules.Spec]
	Labels  map[string]string
	Options field.OptionSource
}

// Shape carries the endpoint flags that decide which input fields appear.
type Shape struct {
	Methods    []string
	Collection bool
	Download   bool
	Sorts      []string
}

// IsGet reports whether the endpoint answers GET.
func (s Shape) IsGet() bool {
	for _, m := range s.Methods {
		if strings.EqualFold(m, http.MethodGet) {
			return true
		}
	}
	return false
}

// Sortable reports whether the endpoint declares sortable columns.
func (s Shape) Sortable() bool {
	return len(s.Sorts) > 0
}

// RequestResolver builds the input descriptors of an endpoint.
type RequestResolver struct {
	Naming    Naming
	Hierarchy rules.Hierarchy
	Render    field.Renderer
}

// Resolve returns the input descriptors for src given the endpoint shape.
// output supplies the attribute and relation names offered by the field
// selectors; it may be nil.
func (r RequestResolver) Resolve(src RequestSource, shape Shape, output *Output) *ordered.Map[field.Descriptor] {
	naming := r.Naming.withDefaults()
	plain := r.plainFields(src)

	if !shape.IsGet() {
		return plain
	}

	if shape.Download {
		return wrapFilter(plain, naming.FilterWrapper)
	}

	if shape.Collection {
		result := wrapFilter(plain, naming.FilterWrapper)
		result.Merge(selectorFields(naming, output))
		if shape.Sortable() {
			result.Set(naming.SortField, sortField(shape.Sorts))
		}
		result.Merge(pageFields())
		return result
	}

	result := selectorFields(naming, output)
	result.Merge(plain)
	return result
}

func (r RequestResolver) plainFields(src RequestSource) *ordered.Map[field.Descriptor] {
	out := ordered.New[field.Descriptor](src.Rules.Len())
	if src.Rules == nil {
		return out
	}

	builder := field.Builder{Render: r.Render, FallbackToAttribute: true}
	src.Rules.Range(func(attr string, spec rules.Spec) bool {
		if strings.Contains(attr, ".") {
			return true
		}

		in := field.Input{
			Attribute: attr,
			Parser:    rules.Parse(spec, rules.WithAttribute(attr), rules.WithHierarchy(r.Hierarchy)),
			Label:     src.Labels[attr],
		}
		if src.Options != nil {
			in.Options, _ = src.Options.Options(attr)
		}

		out.Set(attr, builder.Build(in))
		return true
	})
	return out
}

func wrapFilter(fields *ordered.Map[field.Descriptor], wrapper string) *ordered.Map[field.Descriptor] {
	out := ordered.New[field.Descriptor](fields.Len())
	fields.Range(func(attr string, d field.Descriptor) bool {
		out.Set(wrapper+"["+attr+"]", d)
		return true
	})
	return out
}

func selectorFields(naming Naming, output *Output) *ordered.Map[field.Descriptor] {
	out := ordered.New[field.Descriptor](2)

	attrs := []string{}
	relations := []string{}
	if output != nil {
		if keys := output.Fields.Keys(); keys != nil {
			attrs = keys
		}
		relations = output.Relations.Keys()
	}

	out.Set(naming.SelectorField, field.Descriptor{
		Type:       "string",
		TypeDetail: "string",
		Default:    "*",
		Comment:    selectorComment,
		Options:    attrs,
	})

	if len(relations) > 0 {
		out.Set(naming.RelationsField, field.Descriptor{
			Type:       "string",
			TypeDetail: "string",
			Comment:    relationsComment,
			Options:    relations,
			IsRelation: true,
		})
	}
	return out
}

func sortField(columns []string) field.Descriptor {
	comment := sortCommentSingle
	if len(columns) > 1 {
		comment = sortCommentMultiple
	}
	return field.Descriptor{
		Type:       "string",
		TypeDetail: "string",
		Comment:    comment,
		Options:    append([]string(nil), columns...),
	}
}

func pageFields() *ordered.Map[field.Descriptor] {
	out := ordered.New[field.Descriptor](2)
	out.Set("page", field.Descriptor{
		Type:       "integer",
		TypeDetail: "integer",
		Default:    DefaultPage,
		Comment:    pageComment,
		Options:    []string{},
	})
	out.Set("per_page", field.Descriptor{
		Type:       "integer",
		TypeDetail: "integer",
		Default:    DefaultPerPage,
		Comment:    perPageComment,
		Options:    []string{},
	})
	return out
}
