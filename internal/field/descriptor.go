// Package field defines the normalized metadata record describing one
// attribute and the builder that derives it from rules, labels and
// enumerated options.
package field

// Descriptor is the documentation record for one attribute.
type Descriptor struct {
	Type       string   `json:"type"`
	TypeDetail string   `json:"typeDetail"`
	Required   bool     `json:"required"`
	Default    any      `json:"default"`
	Comment    string   `json:"comment"`
	Options    []string `json:"options"`
	Choices    Options  `json:"choices,omitempty"`
	IsRelation bool     `json:"isRelation"`
}

// Option is one enumerated value with its display label.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Options is an ordered list of enumerated values.
type Options []Option

// Keys returns the option keys in order.
func (o Options) Keys() []string {
	keys := make([]string, len(o))
	for i, opt := range o {
		keys[i] = opt.Key
	}
	return keys
}

// Narrow keeps the options whose key is in allowed, in the receiver's order.
func (o Options) Narrow(allowed []string) Options {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}

	out := make(Options, 0, len(o))
	for _, opt := range o {
		if set[opt.Key] {
			out = append(out, opt)
		}
	}
	return out
}

// OptionSource resolves the enumerated options declared for an attribute.
type OptionSource interface {
	Options(attribute string) (Options, bool)
}

// OptionTable is an OptionSource backed by a map.
type OptionTable map[string]Options

// Options implements OptionSource.
func (t OptionTable) Options(attribute string) (Options, bool) {
	opts, ok := t[attribute]
	return opts, ok && len(opts) > 0
}

// Chain tries each source in turn and returns the first match. Nil sources
// are skipped.
func Chain(sources ...OptionSource) OptionSource {
	return chain(sources)
}

type chain []OptionSource

func (c chain) Options(attribute string) (Options, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if opts, ok := src.Options(attribute); ok {
			return opts, true
		}
	}
	return nil, false
}
