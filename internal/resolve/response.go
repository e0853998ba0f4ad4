package resolve

import (
	"sort"
	"strconv"

	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/rules"
)

// ArrayType replaces the type of any attribute whose sample value is a
// container.
const ArrayType = "[ ]"

// Nested marks a sample value that is an embedded resource or collection of
// resources. Marked values become relations and are not descended into.
type Nested struct {
	Type       string
	Collection bool
}

// ResponseSource is what an endpoint declares about its output.
type ResponseSource struct {
	// Resource and Scenario identify the sample in error messages.
	Resource string
	Scenario string

	// Render produces the sample output. A failing or missing renderer
	// falls back to DeclaredFields.
	Render         func() (any, error)
	DeclaredFields []string

	Rules   *ordered.Map[rules.Spec]
	Labels  map[string]string
	Options field.OptionSource

	// Relations maps attribute to related type. When non-nil it is the only
	// source of relations and Nested markers are treated as plain values.
	Relations map[string]string
}

// Output is the resolved output schema of an endpoint.
type Output struct {
	Fields    *ordered.Map[field.Descriptor]
	Relations *ordered.Map[Relation]
}

// ResponseResolver builds the output descriptors of an endpoint.
type ResponseResolver struct {
	Hierarchy rules.Hierarchy
	Render    field.Renderer
}

// Resolve renders the sample output of src and describes every attribute
// in it. Nested attributes are addressed with dot notation, list elements
// with their index.
func (r ResponseResolver) Resolve(src ResponseSource) (*Output, error) {
	sample, err := sampleOf(src)
	if err != nil {
		return nil, err
	}

	w := walker{
		src:     src,
		builder: field.Builder{Render: r.Render},
		hier:    r.Hierarchy,
		out: &Output{
			Fields:    ordered.New[field.Descriptor](len(sample)),
			Relations: ordered.New[Relation](0),
		},
	}
	for _, e := range sample {
		w.visit(e.key, e.value)
	}
	return w.out, nil
}

func sampleOf(src ResponseSource) ([]entry, error) {
	var cause error
	if src.Render != nil {
		data, err := src.Render()
		if err == nil {
			entries := entriesOf(firstItem(data))
			if len(entries) == 0 {
				return nil, &MissingOutputDataError{Resource: src.Resource, Scenario: src.Scenario}
			}
			return entries, nil
		}
		cause = err
	}

	if len(src.DeclaredFields) == 0 {
		return nil, &MissingOutputDataError{Resource: src.Resource, Scenario: src.Scenario, Cause: cause}
	}

	entries := make([]entry, 0, len(src.DeclaredFields))
	for _, name := range src.DeclaredFields {
		entries = append(entries, entry{key: name, value: name})
	}
	return entries, nil
}

// firstItem unwraps a collection sample to its first element.
func firstItem(data any) any {
	if list, ok := data.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return data
}

type walker struct {
	src     ResponseSource
	builder field.Builder
	hier    rules.Hierarchy
	out     *Output
}

func (w *walker) visit(attr string, value any) {
	d := w.describe(attr)

	if target, ok := w.relationOf(attr, value); ok {
		w.out.Relations.Set(attr, Relation{Type: target, Comment: d.Comment})
		return
	}

	children := entriesOf(value)
	if children != nil {
		d.Type, d.TypeDetail = ArrayType, ArrayType
	}
	w.out.Fields.Set(attr, d)

	for _, child := range children {
		w.visit(attr+"."+child.key, child.value)
	}
}

func (w *walker) describe(attr string) field.Descriptor {
	in := field.Input{Attribute: attr, Label: w.src.Labels[attr]}
	if spec, ok := w.src.Rules.Get(attr); ok {
		in.Parser = rules.Parse(spec, rules.WithAttribute(attr), rules.WithHierarchy(w.hier))
	}
	if w.src.Options != nil {
		in.Options, _ = w.src.Options.Options(attr)
	}
	return w.builder.Build(in)
}

func (w *walker) relationOf(attr string, value any) (string, bool) {
	if w.src.Relations != nil {
		target, ok := w.src.Relations[attr]
		return target, ok
	}

	switch v := value.(type) {
	case Nested:
		return v.Type, true
	case *Nested:
		if v != nil {
			return v.Type, true
		}
	}
	return "", false
}

type entry struct {
	key   string
	value any
}

// entriesOf lists the members of a container in order. It returns nil for
// scalars and a non-nil empty slice for empty containers.
func entriesOf(v any) []entry {
	switch c := v.(type) {
	case *ordered.Map[any]:
		if c == nil {
			return nil
		}
		out := make([]entry, 0, c.Len())
		c.Range(func(k string, val any) bool {
			out = append(out, entry{key: k, value: val})
			return true
		})
		return out
	case map[string]any:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]entry, 0, len(c))
		for _, k := range keys {
			out = append(out, entry{key: k, value: c[k]})
		}
		return out
	case []any:
		out := make([]entry, 0, len(c))
		for i, val := range c {
			out = append(out, entry{key: strconv.Itoa(i), value: val})
		}
		return out
	}
	return nil
}
