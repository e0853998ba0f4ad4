package projection

import (
	"github.com/fielddoc/fielddoc/internal/ordered"
)

const (
	linksKey = "links"
	dataKey  = "data"
)

// Config controls envelope detection.
type Config struct {
	// WrapperKey is the single key a framework wraps every body in, such as
	// "data". Empty disables wrapper detection.
	WrapperKey string `mapstructure:"response_wrapper"`
}

// Result is the outcome of a projection.
type Result struct {
	// Body is the projected body. It is the input itself when nothing was
	// filtered.
	Body any

	// Unwrapped names the wrapper key removed from Body. Callers that want
	// the original envelope back must re-wrap under this key.
	Unwrapped string
}

// Projector filters response bodies. It holds no per-call state and is safe
// for concurrent use.
type Projector struct {
	cfg Config
}

// New returns a Projector using cfg.
func New(cfg Config) *Projector {
	return &Projector{cfg: cfg}
}

// Project filters body to the paths listed in raw.
func (p *Projector) Project(body any, raw string) Result {
	return p.Apply(body, ParseSelector(raw))
}

// Apply filters body to sel. Pagination envelopes (objects with a "links"
// key) have only their "data" member filtered. A body whose sole key is the
// configured wrapper is unwrapped first.
func (p *Projector) Apply(body any, sel Selection) Result {
	if sel.IsAll() {
		return Result{Body: body}
	}

	if obj, ok := asObject(body); ok {
		if obj.has(linksKey) {
			if !obj.has(dataKey) {
				return Result{Body: body}
			}
			return Result{Body: obj.replace(dataKey, filter(obj.get(dataKey), sel))}
		}

		if key := p.cfg.WrapperKey; key != "" {
			if !obj.has(key) {
				return Result{Body: body}
			}
			if obj.len() == 1 {
				return Result{Body: filter(obj.get(key), sel), Unwrapped: key}
			}
			return Result{Body: obj.replace(key, filter(obj.get(key), sel))}
		}
	}

	return Result{Body: filter(body, sel)}
}

func filter(item any, sel Selection) any {
	if sel.IsAll() {
		return item
	}

	switch v := item.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = filter(elem, sel)
		}
		return out

	case *ordered.Map[any]:
		if v == nil {
			return item
		}
		roots := sel.rootSet()
		out := ordered.New[any](len(roots))
		v.Range(func(key string, val any) bool {
			if roots[key] {
				out.Set(key, filterValue(key, val, sel))
			}
			return true
		})
		return out

	case map[string]any:
		roots := sel.rootSet()
		out := make(map[string]any, len(roots))
		for key, val := range v {
			if roots[key] {
				out[key] = filterValue(key, val, sel)
			}
		}
		return out
	}

	return item
}

func filterValue(key string, val any, sel Selection) any {
	if ordered.IsContainer(val) {
		return filter(val, sel.Descend(key))
	}
	return val
}

// object adapts the two object representations found in decoded bodies.
type object struct {
	om *ordered.Map[any]
	m  map[string]any
}

func asObject(v any) (object, bool) {
	switch o := v.(type) {
	case *ordered.Map[any]:
		if o != nil {
			return object{om: o}, true
		}
	case map[string]any:
		return object{m: o}, true
	}
	return object{}, false
}

func (o object) has(key string) bool {
	if o.om != nil {
		return o.om.Has(key)
	}
	_, ok := o.m[key]
	return ok
}

func (o object) get(key string) any {
	if o.om != nil {
		v, _ := o.om.Get(key)
		return v
	}
	return o.m[key]
}

func (o object) len() int {
	if o.om != nil {
		return o.om.Len()
	}
	return len(o.m)
}

// replace returns a shallow copy with key set to val.
func (o object) replace(key string, val any) any {
	if o.om != nil {
		out := o.om.Clone()
		out.Set(key, val)
		return out
	}
	out := make(map[string]any, len(o.m))
	for k, v := range o.m {
		out[k] = v
	}
	out[key] = val
	return out
}
