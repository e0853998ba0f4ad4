// Package resolve builds the input and output field descriptors of an API
// endpoint from its rules, labels, options and a sample of its output.
package resolve

import (
	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
)

// Naming holds the query parameter names used for generated input fields.
type Naming struct {
	SelectorField  string `mapstructure:"selector_field"`
	FilterWrapper  string `mapstructure:"filter_wrapper"`
	RelationsField string `mapstructure:"relations_field"`
	SortField      string `mapstructure:"sort_field"`
}

// DefaultNaming returns the conventional parameter names.
func DefaultNaming() Naming {
	return Naming{
		SelectorField:  "fields",
		FilterWrapper:  "filter",
		RelationsField: "relations",
		SortField:      "sort",
	}
}

func (n Naming) withDefaults() Naming {
	d := DefaultNaming()
	if n.SelectorField == "" {
		n.SelectorField = d.SelectorField
	}
	if n.FilterWrapper == "" {
		n.FilterWrapper = d.FilterWrapper
	}
	if n.RelationsField == "" {
		n.RelationsField = d.RelationsField
	}
	if n.SortField == "" {
		n.SortField = d.SortField
	}
	return n
}

// Relation describes an output attribute whose value is a nested resource
// or collection.
type Relation struct {
	Type    string `json:"type"`
	Comment string `json:"comment"`
}

// Document is the schema of one endpoint. It is built once and not mutated.
type Document struct {
	Input     *ordered.Map[field.Descriptor] `json:"input"`
	Output    *ordered.Map[field.Descriptor] `json:"output"`
	Relations *ordered.Map[Relation]         `json:"relations"`
}

// NewDocument assembles a Document. A nil output yields empty output and
// relation maps.
func NewDocument(input *ordered.Map[field.Descriptor], output *Output) Document {
	doc := Document{Input: input}
	if doc.Input == nil {
		doc.Input = ordered.New[field.Descriptor](0)
	}
	if output != nil {
		doc.Output = output.Fields
		doc.Relations = output.Relations
	}
	if doc.Output == nil {
		doc.Output = ordered.New[field.Descriptor](0)
	}
	if doc.Relations == nil {
		doc.Relations = ordered.New[Relation](0)
	}
	return doc
}
