package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"

	"github.com/fielddoc/fielddoc/internal/catalog"
	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/resolve"
)

// MarkdownGenerator generates Markdown documentation
type MarkdownGenerator struct {
	config *Config
}

// NewMarkdownGenerator creates a new Markdown generator
func NewMarkdownGenerator(config *Config) *MarkdownGenerator {
	return &MarkdownGenerator{
		config: config,
	}
}

// Generate writes README.md and one page per controller under
// OutputDir/markdown.
func (g *MarkdownGenerator) Generate(cat *catalog.Catalog) ([]string, error) {
	outputDir := filepath.Join(g.config.OutputDir, "markdown")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	pages := g.Render(cat)
	names := make([]string, 0, len(pages))
	names = append(names, "README.md")
	order, _ := controllers(cat.Entries)
	for _, c := range order {
		names = append(names, pageName(c))
	}

	written := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(outputDir, name)
		if err := os.WriteFile(path, []byte(pages[name]), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// Render returns the pages keyed by file name.
func (g *MarkdownGenerator) Render(cat *catalog.Catalog) map[string]string {
	order, groups := controllers(cat.Entries)

	pages := make(map[string]string, len(order)+1)
	pages["README.md"] = g.index(cat, order, groups)
	for _, c := range order {
		pages[pageName(c)] = g.controllerPage(groups[c])
	}
	return pages
}

func (g *MarkdownGenerator) index(cat *catalog.Catalog, order []string, groups map[string][]catalog.Entry) string {
	var buf strings.Builder

	title := g.config.Title
	if title == "" {
		title = "API"
	}
	fmt.Fprintf(&buf, "# %s Documentation\n\n", title)
	if g.config.Description != "" {
		fmt.Fprintf(&buf, "%s\n\n", g.config.Description)
	}
	if g.config.Version != "" {
		fmt.Fprintf(&buf, "**Version:** %s\n\n", g.config.Version)
	}
	if g.config.BaseURL != "" {
		fmt.Fprintf(&buf, "**Base URL:** `%s`\n\n", g.config.BaseURL)
	}

	buf.WriteString("## Controllers\n\n")
	if len(order) == 0 {
		buf.WriteString("No endpoints documented.\n\n")
	} else {
		buf.WriteString("| Controller | Endpoints | Description |\n")
		buf.WriteString("|------------|-----------|-------------|\n")
		for _, c := range order {
			entries := groups[c]
			fmt.Fprintf(&buf, "| [%s](%s) | %d | %s |\n",
				cellText(controllerTitle(entries[0])), pageName(c), len(entries), cellText(orDash(entries[0].Controller.Desc)))
		}
		buf.WriteString("\n")

		buf.WriteString("## Endpoints\n\n")
		buf.WriteString("| Method | URI | Action | Title |\n")
		buf.WriteString("|--------|-----|--------|-------|\n")
		for _, e := range cat.Entries {
			fmt.Fprintf(&buf, "| `%s` | `%s` | [%s](%s#%s) | %s |\n",
				strings.Join(e.Methods, ", "), e.URI, e.Action, pageName(e.Controller.Name), anchor(e.Action), cellText(e.Title))
		}
		buf.WriteString("\n")
	}

	if len(cat.Errors) > 0 {
		buf.WriteString("## Undocumented endpoints\n\n")
		for _, e := range cat.Errors {
			fmt.Fprintf(&buf, "- `%s` `%s`: %s\n", e.Action, e.URI, e.Message)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

func (g *MarkdownGenerator) controllerPage(entries []catalog.Entry) string {
	var buf strings.Builder
	c := entries[0].Controller

	fmt.Fprintf(&buf, "# %s\n\n", controllerTitle(entries[0]))
	if c.Desc != "" {
		fmt.Fprintf(&buf, "> %s\n\n", c.Desc)
	}
	if c.Deprecation.Deprecated {
		writeDeprecation(&buf, c.Deprecation)
	}
	if len(c.Authors) > 0 {
		fmt.Fprintf(&buf, "**Authors:** %s\n\n", authorList(c.Authors))
	}

	buf.WriteString("## Endpoints\n\n")
	for _, e := range entries {
		fmt.Fprintf(&buf, "- [%s](#%s)\n", e.Title, anchor(e.Action))
	}
	buf.WriteString("\n")

	for _, e := range entries {
		g.writeEndpoint(&buf, e)
	}
	return buf.String()
}

// writeEndpoint writes a single endpoint to the buffer
func (g *MarkdownGenerator) writeEndpoint(buf *strings.Builder, e catalog.Entry) {
	fmt.Fprintf(buf, "### %s\n\n", e.Action)
	fmt.Fprintf(buf, "**%s**\n\n", e.Title)

	buf.WriteString("```http\n")
	for _, method := range e.Methods {
		fmt.Fprintf(buf, "%s %s\n", method, e.URI)
	}
	buf.WriteString("```\n\n")

	if e.Desc != "" {
		fmt.Fprintf(buf, "%s\n\n", e.Desc)
	}
	if e.Deprecation.Deprecated {
		writeDeprecation(buf, e.Deprecation)
	}
	if e.RequestClass != "" {
		fmt.Fprintf(buf, "**Request:** `%s`\n\n", e.RequestClass)
	}
	if e.ResourceClass != "" {
		fmt.Fprintf(buf, "**Resource:** `%s`\n\n", e.ResourceClass)
	}
	writeRoute(buf, e.Route)

	writeFields(buf, "URI parameters", e.URIParams)
	writeFields(buf, "Input", e.Document.Input)
	writeFields(buf, "Output", e.Document.Output)
	writeRelations(buf, e.Document.Relations)
}

func writeFields(buf *strings.Builder, title string, fields *ordered.Map[field.Descriptor]) {
	if fields.Len() == 0 {
		return
	}

	fmt.Fprintf(buf, "#### %s\n\n", title)
	buf.WriteString("| Name | Type | Required | Default | Description |\n")
	buf.WriteString("|------|------|----------|---------|-------------|\n")
	fields.Range(func(name string, d field.Descriptor) bool {
		required := "No"
		if d.Required {
			required = "Yes"
		}
		def := "-"
		if d.Default != nil {
			def = "`" + cast.ToString(d.Default) + "`"
		}
		fmt.Fprintf(buf, "| `%s` | `%s` | %s | %s | %s |\n",
			name, d.Type, required, def, cellText(orDash(d.Comment)))
		return true
	})
	buf.WriteString("\n")
}

func writeRelations(buf *strings.Builder, relations *ordered.Map[resolve.Relation]) {
	if relations.Len() == 0 {
		return
	}

	buf.WriteString("#### Relations\n\n")
	buf.WriteString("| Name | Type | Description |\n")
	buf.WriteString("|------|------|-------------|\n")
	relations.Range(func(name string, r resolve.Relation) bool {
		fmt.Fprintf(buf, "| `%s` | `%s` | %s |\n", name, r.Type, cellText(orDash(r.Comment)))
		return true
	})
	buf.WriteString("\n")
}

func writeRoute(buf *strings.Builder, r catalog.Route) {
	var parts []string
	if r.Version != "" {
		parts = append(parts, fmt.Sprintf("**Version:** `%s`", r.Version))
	}
	if r.Module != "" && r.Module != catalog.DefaultModule {
		parts = append(parts, fmt.Sprintf("**Module:** `%s`", r.Module))
	}
	if r.SDKName != "" {
		parts = append(parts, fmt.Sprintf("**SDK:** `%s`", r.SDKName))
	}
	if len(parts) > 0 {
		fmt.Fprintf(buf, "%s\n\n", strings.Join(parts, " | "))
	}
}

func writeDeprecation(buf *strings.Builder, d catalog.Deprecation) {
	if d.Note != "" {
		fmt.Fprintf(buf, "> **Deprecated:** %s\n\n", d.Note)
		return
	}
	buf.WriteString("> **Deprecated.**\n\n")
}

func controllerTitle(e catalog.Entry) string {
	if e.Controller.Title != "" {
		return e.Controller.Title
	}
	return e.Controller.Name
}

func authorList(authors []catalog.Author) string {
	parts := make([]string, len(authors))
	for i, a := range authors {
		parts[i] = a.Name
		if a.Email != "" {
			parts[i] += " <" + a.Email + ">"
		}
	}
	return strings.Join(parts, ", ")
}

func pageName(controller string) string {
	if controller == "" {
		return "endpoints.md"
	}
	return strings.ToLower(controller) + ".md"
}

// anchor mirrors the heading ids GitHub generates.
func anchor(heading string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(heading) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	return b.String()
}

// cellText makes s safe inside a table cell.
func cellText(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "<br>")
	return strings.ReplaceAll(s, "\n", "<br>")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
