package field

import (
	"strings"

	"github.com/fielddoc/fielddoc/internal/rules"
)

// Renderer turns narrowed options into text appended to a comment.
type Renderer func(Options) string

// MarkdownList renders options as a Markdown bullet list.
func MarkdownList(opts Options) string {
	var b strings.Builder
	b.WriteString("Allowed values:")
	for _, opt := range opts {
		b.WriteString("\n- `")
		b.WriteString(opt.Key)
		b.WriteString("`")
		if opt.Label != "" {
			b.WriteString(": ")
			b.WriteString(opt.Label)
		}
	}
	return b.String()
}

// Builder produces Descriptors.
type Builder struct {
	// Render formats allowed values. Defaults to MarkdownList.
	Render Renderer

	// FallbackToAttribute uses the attribute name as the comment when no
	// label exists. Request-side documentation sets this.
	FallbackToAttribute bool
}

// Input is everything known about one attribute.
type Input struct {
	Attribute string
	Parser    *rules.Parser
	Label     string
	Options   Options
}

// Build derives a Descriptor from in.
func (b Builder) Build(in Input) Descriptor {
	comment := in.Label
	if comment == "" && b.FallbackToAttribute {
		comment = in.Attribute
	}

	d := Descriptor{Options: []string{}}

	if in.Parser == nil {
		guess := rules.GuessType(in.Attribute)
		d.Type, d.TypeDetail = guess, guess
	} else {
		d.Type = in.Parser.Type()
		d.TypeDetail = in.Parser.TypeDetail()
		d.Required = in.Parser.Required()
		d.Default = in.Parser.Default()
	}

	var allowed []string
	var hasIn bool
	if in.Parser != nil {
		allowed, hasIn = in.Parser.In()
	}

	choices := in.Options
	if hasIn && len(choices) > 0 {
		choices = choices.Narrow(allowed)
	}

	switch {
	case len(choices) > 0:
		d.Options = choices.Keys()
		d.Choices = choices
		comment = appendSentence(comment, b.render(choices))
	case hasIn:
		d.Options = allowed
	}

	d.Comment = comment
	return d
}

func (b Builder) render(opts Options) string {
	if b.Render != nil {
		return b.Render(opts)
	}
	return MarkdownList(opts)
}

func appendSentence(comment, text string) string {
	if comment == "" {
		return text
	}
	return strings.TrimRight(comment, ". ") + ". " + text
}
