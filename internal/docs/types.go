// Package docs exports a built catalog as static documentation.
// It supports Markdown pages and an OpenAPI 3.0 document, optionally
// bundled into a zip archive next to the output directory.
package docs

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fielddoc/fielddoc/internal/catalog"
	"github.com/fielddoc/fielddoc/internal/resolve"
)

// Config holds configuration for documentation export
type Config struct {
	// Title names the API in both formats.
	Title string

	// Version is the API version; OpenAPI requires one, so it defaults to
	// "1.0.0" there.
	Version string

	Description string

	// OutputDir is the base directory for generated documentation
	OutputDir string

	// BaseURL is the base URL for the API (used in OpenAPI servers)
	BaseURL string

	// Naming identifies the generated query parameters.
	Naming resolve.Naming
}

// Format represents a documentation output format
type Format string

const (
	// FormatOpenAPI generates OpenAPI 3.0 specification
	FormatOpenAPI Format = "openapi"

	// FormatMarkdown generates Markdown documentation
	FormatMarkdown Format = "markdown"

	// FormatZip archives the output directory once the other formats are
	// written.
	FormatZip Format = "zip"
)

// Formats lists every supported format.
var Formats = []Format{FormatMarkdown, FormatOpenAPI, FormatZip}

// documentFormats are written when no format, or only zip, is requested.
var documentFormats = []Format{FormatMarkdown, FormatOpenAPI}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (expected markdown, openapi or zip)", name)
}

// Generator writes a catalog in several formats.
type Generator struct {
	config *Config
}

// NewGenerator creates a Generator.
func NewGenerator(config *Config) *Generator {
	return &Generator{config: config}
}

// Generate writes cat in every format and returns the files written.
func (g *Generator) Generate(cat *catalog.Catalog, formats ...Format) ([]string, error) {
	if containsPathTraversal(g.config.OutputDir) {
		return nil, fmt.Errorf("invalid output directory: path traversal detected")
	}
	bundle := false
	documents := make([]Format, 0, len(formats))
	for _, f := range formats {
		if f == FormatZip {
			bundle = true
			continue
		}
		documents = append(documents, f)
	}
	if len(documents) == 0 {
		documents = documentFormats
	}

	var written []string
	for _, f := range documents {
		var (
			files []string
			err   error
		)
		switch f {
		case FormatMarkdown:
			files, err = NewMarkdownGenerator(g.config).Generate(cat)
		case FormatOpenAPI:
			var path string
			path, err = NewOpenAPIGenerator(g.config).Generate(cat)
			files = []string{path}
		default:
			err = fmt.Errorf("unknown format %q", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, files...)
	}

	if bundle {
		path, err := g.Archive()
		if err != nil {
			return written, fmt.Errorf("%s: %w", FormatZip, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// containsPathTraversal checks if a path contains path traversal sequences
func containsPathTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

// controllers groups entries by controller in order of first appearance.
func controllers(entries []catalog.Entry) ([]string, map[string][]catalog.Entry) {
	var order []string
	groups := make(map[string][]catalog.Entry)
	for _, e := range entries {
		name := e.Controller.Name
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], e)
	}
	return order, groups
}
