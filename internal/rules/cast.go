package rules

import (
	"time"

	"github.com/spf13/cast"

	"github.com/fielddoc/fielddoc/internal/ordered"
)

// Cast coerces value to the given cast type. Objects are returned untouched
// unless the target is CastArray. Times become Unix seconds for CastInt and
// RFC 3339 text for CastString.
func Cast(value any, to CastType) any {
	if t, ok := value.(time.Time); ok {
		switch to {
		case CastInt:
			return t.Unix()
		case CastString:
			return t.Format(time.RFC3339)
		}
		return value
	}

	if to != CastArray {
		switch value.(type) {
		case *ordered.Map[any], map[string]any, []any:
			return value
		}
	}

	switch to {
	case CastInt:
		return cast.ToInt64(value)
	case CastFloat:
		return cast.ToFloat64(value)
	case CastBool:
		return cast.ToBool(value)
	case CastString:
		return cast.ToString(value)
	case CastArray:
		if value == nil {
			return []any{}
		}
		if obj, ok := value.(*ordered.Map[any]); ok {
			return obj
		}
		list, err := cast.ToSliceE(value)
		if err != nil {
			return []any{value}
		}
		return list
	}
	return value
}

// CastTree walks a rendered payload and coerces every attribute that has a
// rule in set. Nested attributes are addressed by their dotted object path;
// list positions are not part of the path.
func CastTree(data any, set *ordered.Map[Spec], h Hierarchy) any {
	if set.Len() == 0 {
		return data
	}
	return castNode(data, "", set, h)
}

func castNode(node any, prefix string, set *ordered.Map[Spec], h Hierarchy) any {
	switch v := node.(type) {
	case *ordered.Map[any]:
		out := ordered.New[any](v.Len())
		v.Range(func(key string, val any) bool {
			out.Set(key, castAttribute(join(prefix, key), val, set, h))
			return true
		})
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = castAttribute(join(prefix, key), val, set, h)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = castNode(val, prefix, set, h)
		}
		return out
	}
	return node
}

func castAttribute(path string, val any, set *ordered.Map[Spec], h Hierarchy) any {
	val = castNode(val, path, set, h)
	if spec, ok := set.Get(path); ok {
		return Cast(val, Parse(spec, WithHierarchy(h)).CastType())
	}
	return val
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
