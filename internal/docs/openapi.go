package docs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fielddoc/fielddoc/internal/catalog"
	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/resolve"
	"github.com/fielddoc/fielddoc/internal/rules"
)

const (
	// OpenAPIVersion is the version of the generated document.
	OpenAPIVersion = "3.0.3"

	// relationType marks relation descriptors merged into output schemas.
	relationType = "relation"

	// valuesExtension lists the values a selector parameter accepts. They
	// are not an enum: the parameter takes a comma separated subset.
	valuesExtension = "x-fielddoc-values"

	sdkExtension     = "x-fielddoc-sdk-name"
	versionExtension = "x-fielddoc-api-version"
)

// OpenAPIGenerator generates OpenAPI 3.0 specifications
type OpenAPIGenerator struct {
	config *Config
}

// NewOpenAPIGenerator creates a new OpenAPI generator
func NewOpenAPIGenerator(config *Config) *OpenAPIGenerator {
	return &OpenAPIGenerator{
		config: config,
	}
}

// Generate writes OutputDir/openapi.json and returns its path.
func (g *OpenAPIGenerator) Generate(cat *catalog.Catalog) (string, error) {
	if containsPathTraversal(g.config.OutputDir) {
		return "", fmt.Errorf("invalid output directory: path traversal detected")
	}

	outputDir := filepath.Clean(g.config.OutputDir)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(g.Spec(cat), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal OpenAPI spec: %w", err)
	}

	outputPath := filepath.Join(outputDir, "openapi.json")
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write OpenAPI spec: %w", err)
	}
	return outputPath, nil
}

// Spec builds the OpenAPI document of cat.
func (g *OpenAPIGenerator) Spec(cat *catalog.Catalog) map[string]any {
	title := g.config.Title
	if title == "" {
		title = "API"
	}
	version := g.config.Version
	if version == "" {
		version = "1.0.0"
	}

	info := map[string]any{
		"title":   title,
		"version": version,
	}
	if g.config.Description != "" {
		info["description"] = g.config.Description
	}

	return map[string]any{
		"openapi": OpenAPIVersion,
		"info":    info,
		"servers": g.createServers(),
		"tags":    g.createTags(cat.Entries),
		"paths":   g.createPaths(cat.Entries),
	}
}

// createServers creates the servers section
func (g *OpenAPIGenerator) createServers() []map[string]any {
	if g.config.BaseURL != "" {
		return []map[string]any{{"url": g.config.BaseURL}}
	}
	return []map[string]any{{
		"url":         "http://localhost:8080",
		"description": "Development server",
	}}
}

func (g *OpenAPIGenerator) createTags(entries []catalog.Entry) []map[string]any {
	order, groups := controllers(entries)
	tags := make([]map[string]any, 0, len(order))
	for _, name := range order {
		tag := map[string]any{"name": name}
		if desc := groups[name][0].Controller.Desc; desc != "" {
			tag["description"] = desc
		}
		tags = append(tags, tag)
	}
	return tags
}

// createPaths creates the paths section
func (g *OpenAPIGenerator) createPaths(entries []catalog.Entry) map[string]any {
	paths := make(map[string]any)
	for _, e := range entries {
		pathItem, ok := paths[e.URI].(map[string]any)
		if !ok {
			pathItem = make(map[string]any)
			paths[e.URI] = pathItem
		}
		for _, method := range e.Methods {
			pathItem[strings.ToLower(method)] = g.createOperation(e, method)
		}
	}
	return paths
}

// createOperation creates an operation object
func (g *OpenAPIGenerator) createOperation(e catalog.Entry, method string) map[string]any {
	operationID := e.Action
	if len(e.Methods) > 1 {
		operationID += "_" + strings.ToLower(method)
	}

	operation := map[string]any{
		"summary":     e.Title,
		"operationId": operationID,
		"tags":        []string{e.Controller.Name},
		"responses":   g.createResponses(e),
	}
	if e.Desc != "" {
		operation["description"] = e.Desc
	}
	if e.Deprecation.Deprecated {
		operation["deprecated"] = true
	}
	if e.Route.SDKName != "" {
		operation[sdkExtension] = e.Route.SDKName
	}
	if e.Route.Version != "" {
		operation[versionExtension] = e.Route.Version
	}

	params := g.pathParameters(e.URIParams)
	if strings.EqualFold(method, http.MethodGet) || strings.EqualFold(method, http.MethodHead) {
		params = append(params, g.queryParameters(e.Document.Input)...)
	} else if e.Document.Input.Len() > 0 {
		operation["requestBody"] = g.createRequestBody(e.Document.Input)
	}
	if len(params) > 0 {
		operation["parameters"] = params
	}
	return operation
}

func (g *OpenAPIGenerator) pathParameters(fields *ordered.Map[field.Descriptor]) []map[string]any {
	params := make([]map[string]any, 0, fields.Len())
	fields.Range(func(name string, d field.Descriptor) bool {
		params = append(params, parameter(name, "path", true, d, g.schemaFor(name, d)))
		return true
	})
	return params
}

func (g *OpenAPIGenerator) queryParameters(fields *ordered.Map[field.Descriptor]) []map[string]any {
	params := make([]map[string]any, 0, fields.Len())
	fields.Range(func(name string, d field.Descriptor) bool {
		params = append(params, parameter(name, "query", d.Required, d, g.schemaFor(name, d)))
		return true
	})
	return params
}

func parameter(name, in string, required bool, d field.Descriptor, schema map[string]any) map[string]any {
	p := map[string]any{
		"name":     name,
		"in":       in,
		"required": required,
		"schema":   schema,
	}
	if d.Comment != "" {
		p["description"] = d.Comment
	}
	return p
}

// createRequestBody creates a request body object
func (g *OpenAPIGenerator) createRequestBody(fields *ordered.Map[field.Descriptor]) map[string]any {
	required := false
	fields.Range(func(_ string, d field.Descriptor) bool {
		required = d.Required
		return !required
	})

	return map[string]any{
		"required": required,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": g.objectSchema(fields, ""),
			},
		},
	}
}

// createResponses creates responses object
func (g *OpenAPIGenerator) createResponses(e catalog.Entry) map[string]any {
	ok := map[string]any{"description": "Success"}

	fields := withRelations(e.Document.Output, e.Document.Relations)
	if fields.Len() > 0 {
		schema := g.objectSchema(fields, "")
		if e.ResourceClass != "" {
			schema["title"] = e.ResourceClass
		}
		ok["content"] = map[string]any{
			"application/json": map[string]any{"schema": schema},
		}
	}
	return map[string]any{"200": ok}
}

// withRelations merges relations into a copy of fields so that they nest
// like any other attribute.
func withRelations(fields *ordered.Map[field.Descriptor], relations *ordered.Map[resolve.Relation]) *ordered.Map[field.Descriptor] {
	if relations.Len() == 0 {
		return fields
	}
	out := fields.Clone()
	relations.Range(func(name string, r resolve.Relation) bool {
		out.Set(name, field.Descriptor{Type: relationType, TypeDetail: r.Type, Comment: r.Comment})
		return true
	})
	return out
}

// objectSchema builds an object schema from the dotted descendants of
// prefix.
func (g *OpenAPIGenerator) objectSchema(fields *ordered.Map[field.Descriptor], prefix string) map[string]any {
	properties := make(map[string]any)
	var required []string

	fields.Range(func(name string, d field.Descriptor) bool {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" || strings.Contains(rest, ".") {
			return true
		}
		properties[rest] = g.propertySchema(fields, name, d)
		if d.Required {
			required = append(required, rest)
		}
		return true
	})

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// propertySchema describes name, descending into sampled containers. A
// container whose first child is "0" is a list described by that element.
func (g *OpenAPIGenerator) propertySchema(fields *ordered.Map[field.Descriptor], name string, d field.Descriptor) map[string]any {
	if d.Type != resolve.ArrayType {
		return g.schemaFor(name, d)
	}

	var schema map[string]any
	if item, ok := fields.Get(name + ".0"); ok {
		schema = map[string]any{
			"type":  "array",
			"items": g.propertySchema(fields, name+".0", item),
		}
	} else if hasDescendants(fields, name+".") {
		schema = g.objectSchema(fields, name+".")
	} else {
		schema = map[string]any{"type": "array", "items": map[string]any{}}
	}
	if d.Comment != "" {
		schema["description"] = d.Comment
	}
	return schema
}

func hasDescendants(fields *ordered.Map[field.Descriptor], prefix string) bool {
	found := false
	fields.Range(func(name string, _ field.Descriptor) bool {
		found = strings.HasPrefix(name, prefix)
		return !found
	})
	return found
}

// schemaFor maps a descriptor to a schema object.
func (g *OpenAPIGenerator) schemaFor(name string, d field.Descriptor) map[string]any {
	schema := typeSchema(d)

	if d.Comment != "" {
		schema["description"] = d.Comment
	}
	if d.Default != nil {
		schema["default"] = d.Default
	}
	if len(d.Options) > 0 {
		if g.isSelector(name) {
			schema[valuesExtension] = d.Options
		} else {
			schema["enum"] = d.Options
		}
	}
	return schema
}

// isSelector reports whether name is one of the generated list parameters.
func (g *OpenAPIGenerator) isSelector(name string) bool {
	n := g.config.Naming
	if n == (resolve.Naming{}) {
		n = resolve.DefaultNaming()
	}
	return name == n.SelectorField || name == n.RelationsField || name == n.SortField
}

// typeSchema maps descriptor types to OpenAPI types
func typeSchema(d field.Descriptor) map[string]any {
	switch d.Type {
	case rules.TypeInteger:
		return map[string]any{"type": "integer"}
	case rules.TypeNumeric, rules.TypeFloat:
		return map[string]any{"type": "number"}
	case rules.TypeBoolean:
		return map[string]any{"type": "boolean"}
	case rules.TypeArray, resolve.ArrayType:
		return map[string]any{"type": "array", "items": map[string]any{}}
	case rules.TypeJSON:
		return map[string]any{"type": "object"}
	case rules.TypeEmail:
		return map[string]any{"type": "string", "format": "email"}
	case rules.TypeURL:
		return map[string]any{"type": "string", "format": "uri"}
	case rules.TypeDate:
		return map[string]any{"type": "string", "format": "date"}
	case rules.TypeImage, rules.TypeFile:
		return map[string]any{"type": "string", "format": "binary"}
	case relationType:
		return map[string]any{"type": "object", "x-fielddoc-resource": d.TypeDetail}
	case rules.TypeMixed, "":
		return map[string]any{}
	default:
		return map[string]any{"type": "string"}
	}
}
