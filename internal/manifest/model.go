package manifest

import (
	"errors"

	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/rules"
)

// ErrNotPermittedSource is returned by a ModelAdapter with no model bound.
var ErrNotPermittedSource = errors.New("no model bound to this source")

// ModelAdapter exposes the rules, labels and options of a model.
type ModelAdapter struct {
	Name  string
	model *Model
}

// Adapter binds the model called name. The adapter of an unknown model
// fails every call with ErrNotPermittedSource.
func (m *Manifest) Adapter(name string) ModelAdapter {
	a := ModelAdapter{Name: name}
	if model, ok := m.Models[name]; ok {
		a.model = &model
	}
	return a
}

// Bound reports whether a model is bound.
func (a ModelAdapter) Bound() bool {
	return a.model != nil
}

// Rules returns a copy of the model rules.
func (a ModelAdapter) Rules() (*ordered.Map[rules.Spec], error) {
	if a.model == nil {
		return nil, ErrNotPermittedSource
	}
	if a.model.Rules.Map == nil {
		return ordered.New[rules.Spec](0), nil
	}
	return a.model.Rules.Clone(), nil
}

// FillableRules returns the rules of the fillable attributes in rule order.
// A model without a fillable list exposes every rule.
func (a ModelAdapter) FillableRules() (*ordered.Map[rules.Spec], error) {
	all, err := a.Rules()
	if err != nil {
		return nil, err
	}
	if len(a.model.Fillable) == 0 {
		return all, nil
	}

	fillable := make(map[string]bool, len(a.model.Fillable))
	for _, attr := range a.model.Fillable {
		fillable[attr] = true
	}

	out := ordered.New[rules.Spec](len(a.model.Fillable))
	all.Range(func(attr string, spec rules.Spec) bool {
		if fillable[attr] {
			out.Set(attr, spec)
		}
		return true
	})
	return out, nil
}

// Labels returns a copy of the model labels.
func (a ModelAdapter) Labels() (map[string]string, error) {
	if a.model == nil {
		return nil, ErrNotPermittedSource
	}
	out := make(map[string]string, len(a.model.Labels))
	for k, v := range a.model.Labels {
		out[k] = v
	}
	return out, nil
}

// Options returns the model option table.
func (a ModelAdapter) Options() (field.OptionSource, error) {
	if a.model == nil {
		return nil, ErrNotPermittedSource
	}
	return a.model.Options.Source(), nil
}
