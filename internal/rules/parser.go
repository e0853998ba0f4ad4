package rules

import (
	"strconv"
	"strings"
)

// Parser exposes the constraints declared by one attribute's rule Spec.
type Parser struct {
	tokens    []Token
	names     map[string]bool
	attribute string

	min, max       int
	hasMin, hasMax bool
	in             []string
	hasIn          bool
}

// Option configures Parse.
type Option func(*parseOptions)

type parseOptions struct {
	attribute string
	hierarchy Hierarchy
}

// WithAttribute sets the attribute name used for default-type heuristics.
func WithAttribute(name string) Option {
	return func(o *parseOptions) { o.attribute = name }
}

// WithHierarchy sets the collaborator used to recognize type references.
func WithHierarchy(h Hierarchy) Option {
	return func(o *parseOptions) { o.hierarchy = h }
}

// Parse tokenizes spec and extracts its constraints. Malformed entries are
// ignored.
func Parse(spec Spec, opts ...Option) *Parser {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := &Parser{
		tokens:    Tokenize(spec, o.hierarchy),
		names:     make(map[string]bool),
		attribute: o.attribute,
	}

	for _, tok := range p.tokens {
		kw, ok := tok.(Keyword)
		if !ok {
			continue
		}
		p.names[kw.Name] = true
		if !kw.HasParams {
			continue
		}

		switch kw.Name {
		case "max":
			if n, ok := parseBound(kw.Params); ok {
				p.max, p.hasMax = n, true
			}
		case "min":
			if n, ok := parseBound(kw.Params); ok {
				p.min, p.hasMin = n, true
			}
		case "in":
			p.in = parseIn(kw.Params)
			p.hasIn = true
		}
	}

	return p
}

// ParseString is shorthand for Parse(Pipe(rule), opts...).
func ParseString(rule string, opts ...Option) *Parser {
	return Parse(Pipe(rule), opts...)
}

func parseBound(params string) (int, bool) {
	s := strings.NewReplacer("(", "", ")", "").Replace(params)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseIn(params string) []string {
	parts := strings.Split(params, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		values = append(values, strings.Trim(strings.TrimSpace(part), `"'`))
	}
	return values
}

// Tokens returns the parsed tokens in declaration order.
func (p *Parser) Tokens() []Token {
	return p.tokens
}

// Required reports whether the literal "required" keyword is present.
func (p *Parser) Required() bool {
	return p.names["required"]
}

// Has reports whether a keyword with the given name is present.
func (p *Parser) Has(keyword string) bool {
	return p.names[strings.ToLower(keyword)]
}

// Max returns the value of "max:N".
func (p *Parser) Max() (int, bool) {
	return p.max, p.hasMax
}

// Min returns the value of "min:N".
func (p *Parser) Min() (int, bool) {
	return p.min, p.hasMin
}

// In returns the values of "in:a,b,c".
func (p *Parser) In() ([]string, bool) {
	if !p.hasIn {
		return nil, false
	}
	out := make([]string, len(p.in))
	copy(out, p.in)
	return out, true
}

// Type returns the display type of the attribute.
func (p *Parser) Type() string {
	if t, ok := displayTypeOf(p.names); ok {
		return t
	}

	for _, tok := range p.tokens {
		if ref, ok := tok.(TypeReference); ok {
			return ref.Identifier
		}
	}

	if len(p.names) > 0 {
		return TypeString
	}
	// No keyword constrains the value: fall back to the name heuristic.
	if p.attribute != "" && len(p.tokens) == 0 {
		return GuessType(p.attribute)
	}
	return TypeMixed
}

// TypeDetail refines Type with length bounds: "string(3,10)" when the type
// is string and at least one positive bound is declared.
func (p *Parser) TypeDetail() string {
	t := p.Type()
	if t != TypeString {
		return t
	}

	bounds := make([]string, 0, 2)
	if p.hasMin && p.min > 0 {
		bounds = append(bounds, strconv.Itoa(p.min))
	}
	if p.hasMax && p.max > 0 {
		bounds = append(bounds, strconv.Itoa(p.max))
	}
	if len(bounds) == 0 {
		return t
	}
	return t + "(" + strings.Join(bounds, ",") + ")"
}

// CastType returns the runtime type serializers coerce the value to.
func (p *Parser) CastType() CastType {
	return castTypeOf(p.names)
}

// Default returns the declared default value. Rule keywords never declare
// one, so this is always nil.
func (p *Parser) Default() any {
	return nil
}
