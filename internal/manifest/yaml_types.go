package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/resolve"
	"github.com/fielddoc/fielddoc/internal/rules"
)

// Sample markers for embedded resources.
const (
	ResourceMarker   = "@resource"
	CollectionMarker = "@collection"
)

// --- RuleSet YAML methods ---

// RuleSet is an ordered attribute -> rule spec mapping.
type RuleSet struct {
	*ordered.Map[rules.Spec]
}

// UnmarshalYAML accepts a mapping whose values are either a pipe separated
// string ("required|max:20") or a list of entries, where an entry is a
// string or {ref: TypeName}.
func (r *RuleSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: rules must be a mapping", node.Line)
	}

	set := ordered.New[rules.Spec](len(node.Content) / 2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		attr := node.Content[i].Value
		spec, err := parseSpec(node.Content[i+1])
		if err != nil {
			return fmt.Errorf("rules of %q: %w", attr, err)
		}
		set.Set(attr, spec)
	}

	r.Map = set
	return nil
}

func parseSpec(node *yaml.Node) (rules.Spec, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return rules.Pipe(node.Value), nil

	case yaml.SequenceNode:
		spec := make(rules.Spec, 0, len(node.Content))
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				spec = append(spec, item.Value)
			case yaml.MappingNode:
				var ref struct {
					Ref string `yaml:"ref"`
				}
				if err := item.Decode(&ref); err != nil {
					return nil, err
				}
				if ref.Ref == "" {
					return nil, fmt.Errorf("line %d: expected {ref: Type}", item.Line)
				}
				spec = append(spec, rules.Ref(ref.Ref))
			default:
				return nil, fmt.Errorf("line %d: expected string or {ref: Type} in rule list", item.Line)
			}
		}
		return spec, nil

	default:
		return nil, fmt.Errorf("line %d: expected string or list", node.Line)
	}
}

// --- OptionTable YAML methods ---

// OptionTable maps attribute to its enumerated options.
type OptionTable map[string]field.Options

// UnmarshalYAML accepts, per attribute, a list of {key, label} pairs or a
// mapping of key to label. Mapping order is kept.
func (t *OptionTable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: options must be a mapping", node.Line)
	}

	out := make(OptionTable, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		attr := node.Content[i].Value
		opts, err := parseOptions(node.Content[i+1])
		if err != nil {
			return fmt.Errorf("options of %q: %w", attr, err)
		}
		out[attr] = opts
	}

	*t = out
	return nil
}

func parseOptions(node *yaml.Node) (field.Options, error) {
	switch node.Kind {
	case yaml.MappingNode:
		opts := make(field.Options, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			opts = append(opts, field.Option{Key: node.Content[i].Value, Label: node.Content[i+1].Value})
		}
		return opts, nil

	case yaml.SequenceNode:
		var opts field.Options
		if err := node.Decode(&opts); err != nil {
			return nil, err
		}
		return opts, nil

	default:
		return nil, fmt.Errorf("line %d: expected mapping or list", node.Line)
	}
}

// Source adapts t to field.OptionSource. A nil table yields nil.
func (t OptionTable) Source() field.OptionSource {
	if t == nil {
		return nil
	}
	return field.OptionTable(t)
}

// --- Sample YAML methods ---

// Sample is an example output payload as written, with key order kept.
type Sample struct {
	Value any
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Sample) UnmarshalYAML(node *yaml.Node) error {
	v, err := ordered.FromYAML(node)
	if err != nil {
		return err
	}
	s.Value = v
	return nil
}

// Payload coerces the sample to the cast types declared by set, then turns
// objects of the form {"@resource": Type} or {"@collection": Type} into
// resolve.Nested markers.
func (s *Sample) Payload(set *ordered.Map[rules.Spec], h rules.Hierarchy) any {
	return markNested(rules.CastTree(s.Value, set, h))
}

func markNested(v any) any {
	switch c := v.(type) {
	case *ordered.Map[any]:
		if c.Len() == 1 {
			if t, ok := c.Get(ResourceMarker); ok {
				return resolve.Nested{Type: fmt.Sprint(t)}
			}
			if t, ok := c.Get(CollectionMarker); ok {
				return resolve.Nested{Type: fmt.Sprint(t), Collection: true}
			}
		}
		out := ordered.New[any](c.Len())
		c.Range(func(k string, val any) bool {
			out.Set(k, markNested(val))
			return true
		})
		return out
	case []any:
		out := make([]any, len(c))
		for i, val := range c {
			out[i] = markNested(val)
		}
		return out
	}
	return v
}

// --- Deprecation YAML methods ---

// Deprecation is either a boolean or a note; a note implies deprecated.
type Deprecation struct {
	Deprecated bool
	Note       string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Deprecation) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: deprecated must be a boolean or a note", node.Line)
	}

	var b bool
	if node.Tag == "!!bool" && node.Decode(&b) == nil {
		*d = Deprecation{Deprecated: b}
		return nil
	}

	note := strings.TrimSpace(node.Value)
	*d = Deprecation{Deprecated: note != "", Note: note}
	return nil
}

// --- Authors YAML methods ---

// Author credits a person.
type Author struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Authors accepts a single name, a list of names or a list of {name, email}.
type Authors []Author

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Authors) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*a = Authors{}
			return nil
		}
		*a = Authors{{Name: node.Value}}
		return nil

	case yaml.SequenceNode:
		out := make(Authors, 0, len(node.Content))
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				out = append(out, Author{Name: item.Value})
			case yaml.MappingNode:
				var au Author
				if err := item.Decode(&au); err != nil {
					return err
				}
				out = append(out, au)
			default:
				return fmt.Errorf("line %d: expected name or {name, email}", item.Line)
			}
		}
		*a = out
		return nil

	default:
		return fmt.Errorf("line %d: expected string or list of authors", node.Line)
	}
}
